package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/alem-hub/learning-tracker/internal/domain/progress"
	"github.com/alem-hub/learning-tracker/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS REPOSITORY
// Id sets are stored as sorted JSON arrays. Times are UTC nanoseconds.
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRepository implements progress.ProgressRepository.
type ProgressRepository struct {
	db *DB
}

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(db *DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

var _ progress.ProgressRepository = (*ProgressRepository)(nil)

const progressColumns = `user_id, display_name, total_xp, current_streak, longest_streak,
	last_activity_at, unlocked_badges, completed_lessons, completed_quests,
	version, created_at, updated_at`

// LoadUserProgress reads one record.
func (r *ProgressRepository) LoadUserProgress(ctx context.Context, id shared.UserID) (*progress.UserProgress, error) {
	row := r.db.db.QueryRowContext(ctx,
		`SELECT `+progressColumns+` FROM user_progress WHERE user_id = ?`, string(id))

	p, err := scanProgress(row)
	if isNoRows(err) {
		return nil, shared.ErrUserNotFound
	}
	if err != nil {
		return nil, unavailable("LoadUserProgress", err)
	}
	return p, nil
}

// SaveUserProgress updates the row only if its version is still p.Version.
func (r *ProgressRepository) SaveUserProgress(ctx context.Context, p *progress.UserProgress) error {
	sets, err := encodeSets(p)
	if err != nil {
		return err
	}

	res, err := r.db.db.ExecContext(ctx, `
		UPDATE user_progress SET
			display_name = ?,
			total_xp = ?,
			current_streak = ?,
			longest_streak = ?,
			last_activity_at = ?,
			unlocked_badges = ?,
			completed_lessons = ?,
			completed_quests = ?,
			updated_at = ?,
			version = version + 1
		WHERE user_id = ? AND version = ?`,
		p.DisplayName, p.TotalXP, p.CurrentStreak, p.LongestStreak, nullableTime(p),
		sets[0], sets[1], sets[2], toNanos(p.UpdatedAt),
		string(p.UserID), p.Version,
	)
	if err != nil {
		return unavailable("SaveUserProgress", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("SaveUserProgress", err)
	}

	if n == 0 {
		var exists bool
		err := r.db.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM user_progress WHERE user_id = ?)`, string(p.UserID),
		).Scan(&exists)
		if err != nil {
			return unavailable("SaveUserProgress", err)
		}
		if !exists {
			return shared.ErrUserNotFound
		}
		return shared.ErrProgressConflict
	}

	p.Version++
	return nil
}

// CreateUserProgress inserts a record at version 1.
func (r *ProgressRepository) CreateUserProgress(ctx context.Context, p *progress.UserProgress) error {
	sets, err := encodeSets(p)
	if err != nil {
		return err
	}

	res, err := r.db.db.ExecContext(ctx, `
		INSERT INTO user_progress (`+progressColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT (user_id) DO NOTHING`,
		string(p.UserID), p.DisplayName, p.TotalXP, p.CurrentStreak, p.LongestStreak, nullableTime(p),
		sets[0], sets[1], sets[2], toNanos(p.CreatedAt), toNanos(p.UpdatedAt),
	)
	if err != nil {
		return unavailable("CreateUserProgress", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("CreateUserProgress", err)
	}
	if n == 0 {
		return shared.ErrUserExists
	}
	p.Version = 1
	return nil
}

// TopByXP returns up to limit records by XP descending, ties by user id.
// A non-positive limit returns every record.
func (r *ProgressRepository) TopByXP(ctx context.Context, limit int) ([]*progress.UserProgress, error) {
	if limit <= 0 {
		limit = -1 // LIMIT -1 means no limit
	}
	rows, err := r.db.db.QueryContext(ctx,
		`SELECT `+progressColumns+` FROM user_progress ORDER BY total_xp DESC, user_id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, unavailable("TopByXP", err)
	}
	defer rows.Close()

	var out []*progress.UserProgress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan progress: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("TopByXP", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProgress(row scanner) (*progress.UserProgress, error) {
	var (
		p                       progress.UserProgress
		userID                  string
		lastActivity            sql.NullInt64
		badges, lessons, quests string
		created, updated        int64
	)
	err := row.Scan(
		&userID, &p.DisplayName, &p.TotalXP, &p.CurrentStreak, &p.LongestStreak,
		&lastActivity, &badges, &lessons, &quests,
		&p.Version, &created, &updated,
	)
	if err != nil {
		return nil, err
	}

	p.UserID = shared.UserID(userID)
	p.CreatedAt = fromNanos(created)
	p.UpdatedAt = fromNanos(updated)
	if lastActivity.Valid {
		t := fromNanos(lastActivity.Int64)
		p.LastActivityAt = &t
	}
	if p.UnlockedBadges, err = decodeSet[shared.BadgeID](badges); err != nil {
		return nil, err
	}
	if p.CompletedLessons, err = decodeSet[shared.LessonID](lessons); err != nil {
		return nil, err
	}
	if p.CompletedQuests, err = decodeSet[shared.QuestID](quests); err != nil {
		return nil, err
	}
	return &p, nil
}

func nullableTime(p *progress.UserProgress) sql.NullInt64 {
	if p.LastActivityAt == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toNanos(*p.LastActivityAt), Valid: true}
}

// encodeSets returns the badge, lesson and quest sets as JSON.
func encodeSets(p *progress.UserProgress) ([3]string, error) {
	var out [3]string
	for i, ids := range [][]string{
		idStrings(p.UnlockedBadges), idStrings(p.CompletedLessons), idStrings(p.CompletedQuests),
	} {
		b, err := json.Marshal(ids)
		if err != nil {
			return out, fmt.Errorf("sqlite: encode id set: %w", err)
		}
		out[i] = string(b)
	}
	return out, nil
}

func idStrings[T ~string](s progress.IDSet[T]) []string {
	sorted := s.Sorted()
	out := make([]string, len(sorted))
	for i, id := range sorted {
		out[i] = string(id)
	}
	return out
}

func decodeSet[T ~string](raw string) (progress.IDSet[T], error) {
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("sqlite: decode id set: %w", err)
	}
	s := progress.NewIDSet[T]()
	for _, id := range ids {
		s.Add(T(id))
	}
	return s, nil
}
