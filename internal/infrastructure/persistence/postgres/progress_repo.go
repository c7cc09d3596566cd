package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/learning-tracker/internal/domain/progress"
	"github.com/alem-hub/learning-tracker/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS REPOSITORY
// One row per learner. The id sets are TEXT[] columns so a save is a single
// version-checked UPDATE.
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRepository implements progress.ProgressRepository.
type ProgressRepository struct {
	conn *Connection
}

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(conn *Connection) *ProgressRepository {
	return &ProgressRepository{conn: conn}
}

var _ progress.ProgressRepository = (*ProgressRepository)(nil)

const progressColumns = `user_id, display_name, total_xp, current_streak, longest_streak,
	last_activity_at, unlocked_badges, completed_lessons, completed_quests,
	version, created_at, updated_at`

// LoadUserProgress reads one record.
func (r *ProgressRepository) LoadUserProgress(ctx context.Context, id shared.UserID) (*progress.UserProgress, error) {
	row := r.conn.Pool().QueryRow(ctx,
		`SELECT `+progressColumns+` FROM user_progress WHERE user_id = $1`, string(id))

	p, err := scanProgress(row)
	if IsNoRows(err) {
		return nil, shared.ErrUserNotFound
	}
	if err != nil {
		return nil, unavailable("LoadUserProgress", err)
	}
	return p, nil
}

// SaveUserProgress updates the row only if its version is still p.Version.
func (r *ProgressRepository) SaveUserProgress(ctx context.Context, p *progress.UserProgress) error {
	tag, err := r.conn.Pool().Exec(ctx, `
		UPDATE user_progress SET
			display_name = $3,
			total_xp = $4,
			current_streak = $5,
			longest_streak = $6,
			last_activity_at = $7,
			unlocked_badges = $8,
			completed_lessons = $9,
			completed_quests = $10,
			updated_at = $11,
			version = version + 1
		WHERE user_id = $1 AND version = $2`,
		string(p.UserID), p.Version,
		p.DisplayName, p.TotalXP, p.CurrentStreak, p.LongestStreak, p.LastActivityAt,
		idStrings(p.UnlockedBadges), idStrings(p.CompletedLessons), idStrings(p.CompletedQuests),
		p.UpdatedAt,
	)
	if err != nil {
		return unavailable("SaveUserProgress", err)
	}

	if tag.RowsAffected() == 0 {
		var exists bool
		err := r.conn.Pool().QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM user_progress WHERE user_id = $1)`, string(p.UserID),
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
	_, err := r.conn.Pool().Exec(ctx, `
		INSERT INTO user_progress (`+progressColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1, $10, $11)`,
		string(p.UserID), p.DisplayName, p.TotalXP, p.CurrentStreak, p.LongestStreak, p.LastActivityAt,
		idStrings(p.UnlockedBadges), idStrings(p.CompletedLessons), idStrings(p.CompletedQuests),
		p.CreatedAt, p.UpdatedAt,
	)
	if IsUniqueViolation(err) {
		return shared.ErrUserExists
	}
	if err != nil {
		return unavailable("CreateUserProgress", err)
	}
	p.Version = 1
	return nil
}

// TopByXP returns up to limit records by XP descending, ties by user id.
// A non-positive limit returns every record.
func (r *ProgressRepository) TopByXP(ctx context.Context, limit int) ([]*progress.UserProgress, error) {
	var lim any // LIMIT NULL means no limit
	if limit > 0 {
		lim = limit
	}
	rows, err := r.conn.Pool().Query(ctx,
		`SELECT `+progressColumns+` FROM user_progress ORDER BY total_xp DESC, user_id ASC LIMIT $1`, lim)
	if err != nil {
		return nil, unavailable("TopByXP", err)
	}
	defer rows.Close()

	out := make([]*progress.UserProgress, 0, max(limit, 0))
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan progress: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("TopByXP", err)
	}
	return out, nil
}

func scanProgress(row pgx.Row) (*progress.UserProgress, error) {
	var (
		p            progress.UserProgress
		userID       string
		lastActivity *time.Time
	)
	var badges, lessons, quests []string
	err := row.Scan(
		&userID, &p.DisplayName, &p.TotalXP, &p.CurrentStreak, &p.LongestStreak,
		&lastActivity, &badges, &lessons, &quests,
		&p.Version, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.UserID = shared.UserID(userID)
	p.LastActivityAt = lastActivity
	p.UnlockedBadges = toIDSet[shared.BadgeID](badges)
	p.CompletedLessons = toIDSet[shared.LessonID](lessons)
	p.CompletedQuests = toIDSet[shared.QuestID](quests)
	return &p, nil
}

func idStrings[T ~string](s progress.IDSet[T]) []string {
	sorted := s.Sorted()
	out := make([]string, len(sorted))
	for i, id := range sorted {
		out[i] = string(id)
	}
	return out
}

func toIDSet[T ~string](ids []string) progress.IDSet[T] {
	s := progress.NewIDSet[T]()
	for _, id := range ids {
		s.Add(T(id))
	}
	return s
}
