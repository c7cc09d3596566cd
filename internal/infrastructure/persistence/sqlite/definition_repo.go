package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/alem-hub/learning-tracker/internal/domain/progress"
	"github.com/alem-hub/learning-tracker/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DEFINITION REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// DefinitionRepository implements progress.Catalog.
type DefinitionRepository struct {
	db *DB
}

// NewDefinitionRepository creates a new DefinitionRepository.
func NewDefinitionRepository(db *DB) *DefinitionRepository {
	return &DefinitionRepository{db: db}
}

var _ progress.Catalog = (*DefinitionRepository)(nil)

const (
	lessonColumns = `id, title, category, difficulty, xp_reward, estimated_time_minutes, active, sort_order`
	questColumns  = `id, title, difficulty, xp_reward, badge_reward, active`
	badgeColumns  = `id, name, description, badge_type, required_value, rarity, category, active`
)

// ─────────────────────────────────────────────────────────────────────────────
// Badges
// ─────────────────────────────────────────────────────────────────────────────

// ListActiveBadgeDefinitions returns active badges in insertion order.
func (r *DefinitionRepository) ListActiveBadgeDefinitions(ctx context.Context) ([]progress.BadgeDefinition, error) {
	rows, err := r.db.db.QueryContext(ctx,
		`SELECT `+badgeColumns+` FROM badges WHERE active ORDER BY position`)
	if err != nil {
		return nil, unavailable("ListActiveBadgeDefinitions", err)
	}
	defer rows.Close()

	var out []progress.BadgeDefinition
	for rows.Next() {
		b, err := scanBadge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("ListActiveBadgeDefinitions", err)
	}
	return out, nil
}

// GetBadge returns a badge by id, active or not.
func (r *DefinitionRepository) GetBadge(ctx context.Context, id shared.BadgeID) (progress.BadgeDefinition, error) {
	b, err := scanBadge(r.db.db.QueryRowContext(ctx,
		`SELECT `+badgeColumns+` FROM badges WHERE id = ?`, string(id)))
	if isNoRows(err) {
		return progress.BadgeDefinition{}, shared.ErrBadgeNotFound
	}
	if err != nil {
		return progress.BadgeDefinition{}, err
	}
	return b, nil
}

// SaveBadge inserts or replaces a badge. New badges go to the end of the
// catalog; updates keep their position.
func (r *DefinitionRepository) SaveBadge(ctx context.Context, b progress.BadgeDefinition) error {
	var required sql.NullInt64
	if b.RequiredValue != nil {
		required = sql.NullInt64{Int64: *b.RequiredValue, Valid: true}
	}
	_, err := r.db.db.ExecContext(ctx, `
		INSERT INTO badges (`+badgeColumns+`, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM badges))
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			badge_type = excluded.badge_type,
			required_value = excluded.required_value,
			rarity = excluded.rarity,
			category = excluded.category,
			active = excluded.active`,
		string(b.ID), b.Name, b.Description, b.Type.String(), required,
		string(b.Rarity), b.Category, b.Active,
	)
	if err != nil {
		return unavailable("SaveBadge", err)
	}
	return nil
}

func scanBadge(row scanner) (progress.BadgeDefinition, error) {
	var (
		b               progress.BadgeDefinition
		id, typ, rarity string
		required        sql.NullInt64
	)
	err := row.Scan(&id, &b.Name, &b.Description, &typ, &required, &rarity, &b.Category, &b.Active)
	if isNoRows(err) {
		return b, err
	}
	if err != nil {
		return b, unavailable("scanBadge", err)
	}

	b.ID = shared.BadgeID(id)
	b.Rarity = progress.Rarity(rarity)
	if required.Valid {
		b.RequiredValue = progress.Int64(required.Int64)
	}
	if b.Type, err = progress.ParseBadgeType(typ); err != nil {
		return b, fmt.Errorf("badge %s: %w", id, err)
	}
	return b, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Lessons
// ─────────────────────────────────────────────────────────────────────────────

// ListActiveLessonDefinitions returns active lessons matching filter by order.
func (r *DefinitionRepository) ListActiveLessonDefinitions(ctx context.Context, filter progress.LessonFilter) ([]progress.LessonDefinition, error) {
	rows, err := r.db.db.QueryContext(ctx, `
		SELECT `+lessonColumns+` FROM lessons
		WHERE active
		  AND (? = 0 OR difficulty <= ?)
		  AND (? = '' OR category = ?)
		ORDER BY sort_order, id`,
		filter.MaxDifficulty, filter.MaxDifficulty, filter.Category, filter.Category,
	)
	if err != nil {
		return nil, unavailable("ListActiveLessonDefinitions", err)
	}
	defer rows.Close()

	var out []progress.LessonDefinition
	for rows.Next() {
		l, err := scanLesson(rows)
		if err != nil {
			return nil, unavailable("ListActiveLessonDefinitions", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("ListActiveLessonDefinitions", err)
	}
	return out, nil
}

// GetLesson returns a lesson by id, active or not.
func (r *DefinitionRepository) GetLesson(ctx context.Context, id shared.LessonID) (progress.LessonDefinition, error) {
	l, err := scanLesson(r.db.db.QueryRowContext(ctx,
		`SELECT `+lessonColumns+` FROM lessons WHERE id = ?`, string(id)))
	if isNoRows(err) {
		return progress.LessonDefinition{}, shared.ErrLessonNotFound
	}
	if err != nil {
		return progress.LessonDefinition{}, unavailable("GetLesson", err)
	}
	return l, nil
}

// SaveLesson inserts or replaces a lesson.
func (r *DefinitionRepository) SaveLesson(ctx context.Context, l progress.LessonDefinition) error {
	var minutes sql.NullInt64
	if l.EstimatedTimeMinutes != nil {
		minutes = sql.NullInt64{Int64: int64(*l.EstimatedTimeMinutes), Valid: true}
	}
	_, err := r.db.db.ExecContext(ctx, `
		INSERT INTO lessons (`+lessonColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			category = excluded.category,
			difficulty = excluded.difficulty,
			xp_reward = excluded.xp_reward,
			estimated_time_minutes = excluded.estimated_time_minutes,
			active = excluded.active,
			sort_order = excluded.sort_order`,
		string(l.ID), l.Title, l.Category, l.Difficulty, l.XPReward, minutes, l.Active, l.Order,
	)
	if err != nil {
		return unavailable("SaveLesson", err)
	}
	return nil
}

// MaxLessonOrder returns the highest sort order, 0 for an empty catalog.
func (r *DefinitionRepository) MaxLessonOrder(ctx context.Context) (int, error) {
	var n int
	if err := r.db.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(sort_order), 0) FROM lessons`).Scan(&n); err != nil {
		return 0, unavailable("MaxLessonOrder", err)
	}
	return n, nil
}

func scanLesson(row scanner) (progress.LessonDefinition, error) {
	var (
		l       progress.LessonDefinition
		id      string
		minutes sql.NullInt64
	)
	err := row.Scan(&id, &l.Title, &l.Category, &l.Difficulty, &l.XPReward, &minutes, &l.Active, &l.Order)
	l.ID = shared.LessonID(id)
	if minutes.Valid {
		l.EstimatedTimeMinutes = progress.Int(int(minutes.Int64))
	}
	return l, err
}

// ─────────────────────────────────────────────────────────────────────────────
// Quests
// ─────────────────────────────────────────────────────────────────────────────

// GetQuest returns a quest by id, active or not.
func (r *DefinitionRepository) GetQuest(ctx context.Context, id shared.QuestID) (progress.QuestDefinition, error) {
	var (
		q           progress.QuestDefinition
		qid, reward string
	)
	err := r.db.db.QueryRowContext(ctx, `SELECT `+questColumns+` FROM quests WHERE id = ?`, string(id)).
		Scan(&qid, &q.Title, &q.Difficulty, &q.XPReward, &reward, &q.Active)
	if isNoRows(err) {
		return progress.QuestDefinition{}, shared.ErrQuestNotFound
	}
	if err != nil {
		return progress.QuestDefinition{}, unavailable("GetQuest", err)
	}
	q.ID = shared.QuestID(qid)
	q.BadgeReward = shared.BadgeID(reward)
	return q, nil
}

// SaveQuest inserts or replaces a quest.
func (r *DefinitionRepository) SaveQuest(ctx context.Context, q progress.QuestDefinition) error {
	_, err := r.db.db.ExecContext(ctx, `
		INSERT INTO quests (`+questColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			difficulty = excluded.difficulty,
			xp_reward = excluded.xp_reward,
			badge_reward = excluded.badge_reward,
			active = excluded.active`,
		string(q.ID), q.Title, q.Difficulty, q.XPReward, string(q.BadgeReward), q.Active,
	)
	if err != nil {
		return unavailable("SaveQuest", err)
	}
	return nil
}
