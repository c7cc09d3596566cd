package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/learning-tracker/internal/domain/progress"
	"github.com/alem-hub/learning-tracker/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DEFINITION REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// DefinitionRepository implements progress.Catalog.
type DefinitionRepository struct {
	conn *Connection
}

// NewDefinitionRepository creates a new DefinitionRepository.
func NewDefinitionRepository(conn *Connection) *DefinitionRepository {
	return &DefinitionRepository{conn: conn}
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
	rows, err := r.conn.Pool().Query(ctx,
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
	b, err := scanBadge(r.conn.Pool().QueryRow(ctx,
		`SELECT `+badgeColumns+` FROM badges WHERE id = $1`, string(id)))
	if IsNoRows(err) {
		return progress.BadgeDefinition{}, shared.ErrBadgeNotFound
	}
	if err != nil {
		return progress.BadgeDefinition{}, err
	}
	return b, nil
}

// SaveBadge inserts or replaces a badge. Its catalog position survives updates.
func (r *DefinitionRepository) SaveBadge(ctx context.Context, b progress.BadgeDefinition) error {
	_, err := r.conn.Pool().Exec(ctx, `
		INSERT INTO badges (`+badgeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			badge_type = EXCLUDED.badge_type,
			required_value = EXCLUDED.required_value,
			rarity = EXCLUDED.rarity,
			category = EXCLUDED.category,
			active = EXCLUDED.active`,
		string(b.ID), b.Name, b.Description, b.Type.String(), b.RequiredValue,
		string(b.Rarity), b.Category, b.Active,
	)
	if err != nil {
		return unavailable("SaveBadge", err)
	}
	return nil
}

func scanBadge(row pgx.Row) (progress.BadgeDefinition, error) {
	var b progress.BadgeDefinition
	var id, typ, rarity string
	err := row.Scan(&id, &b.Name, &b.Description, &typ, &b.RequiredValue, &rarity, &b.Category, &b.Active)
	if IsNoRows(err) {
		return b, err
	}
	if err != nil {
		return b, unavailable("scanBadge", err)
	}

	b.ID = shared.BadgeID(id)
	b.Rarity = progress.Rarity(rarity)
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
	rows, err := r.conn.Pool().Query(ctx, `
		SELECT `+lessonColumns+` FROM lessons
		WHERE active
		  AND ($1::int = 0 OR difficulty <= $1::int)
		  AND ($2::text = '' OR category = $2::text)
		ORDER BY sort_order, id`,
		filter.MaxDifficulty, filter.Category,
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
	l, err := scanLesson(r.conn.Pool().QueryRow(ctx,
		`SELECT `+lessonColumns+` FROM lessons WHERE id = $1`, string(id)))
	if IsNoRows(err) {
		return progress.LessonDefinition{}, shared.ErrLessonNotFound
	}
	if err != nil {
		return progress.LessonDefinition{}, unavailable("GetLesson", err)
	}
	return l, nil
}

// SaveLesson inserts or replaces a lesson.
func (r *DefinitionRepository) SaveLesson(ctx context.Context, l progress.LessonDefinition) error {
	_, err := r.conn.Pool().Exec(ctx, `
		INSERT INTO lessons (`+lessonColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			category = EXCLUDED.category,
			difficulty = EXCLUDED.difficulty,
			xp_reward = EXCLUDED.xp_reward,
			estimated_time_minutes = EXCLUDED.estimated_time_minutes,
			active = EXCLUDED.active,
			sort_order = EXCLUDED.sort_order`,
		string(l.ID), l.Title, l.Category, l.Difficulty, l.XPReward, l.EstimatedTimeMinutes, l.Active, l.Order,
	)
	if err != nil {
		return unavailable("SaveLesson", err)
	}
	return nil
}

// MaxLessonOrder returns the highest sort order, 0 for an empty catalog.
func (r *DefinitionRepository) MaxLessonOrder(ctx context.Context) (int, error) {
	var n int
	if err := r.conn.Pool().QueryRow(ctx, `SELECT COALESCE(MAX(sort_order), 0) FROM lessons`).Scan(&n); err != nil {
		return 0, unavailable("MaxLessonOrder", err)
	}
	return n, nil
}

func scanLesson(row pgx.Row) (progress.LessonDefinition, error) {
	var (
		l  progress.LessonDefinition
		id string
	)
	err := row.Scan(&id, &l.Title, &l.Category, &l.Difficulty, &l.XPReward, &l.EstimatedTimeMinutes, &l.Active, &l.Order)
	l.ID = shared.LessonID(id)
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
	err := r.conn.Pool().QueryRow(ctx, `SELECT `+questColumns+` FROM quests WHERE id = $1`, string(id)).
		Scan(&qid, &q.Title, &q.Difficulty, &q.XPReward, &reward, &q.Active)
	if IsNoRows(err) {
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
	_, err := r.conn.Pool().Exec(ctx, `
		INSERT INTO quests (`+questColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			difficulty = EXCLUDED.difficulty,
			xp_reward = EXCLUDED.xp_reward,
			badge_reward = EXCLUDED.badge_reward,
			active = EXCLUDED.active`,
		string(q.ID), q.Title, q.Difficulty, q.XPReward, string(q.BadgeReward), q.Active,
	)
	if err != nil {
		return unavailable("SaveQuest", err)
	}
	return nil
}
