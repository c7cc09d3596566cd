package redis

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/alem-hub/learning-tracker/internal/domain/progress"
	"github.com/alem-hub/learning-tracker/internal/domain/shared"
	"github.com/alem-hub/learning-tracker/pkg/circuitbreaker"
)

// ══════════════════════════════════════════════════════════════════════════════
// DEFINITION CACHE
// Read-through cache for the active badge and lesson lists, which every
// completion and recommendation reads. Single definitions are not cached.
// When Redis misbehaves the breaker opens and reads go straight to the store.
// ══════════════════════════════════════════════════════════════════════════════

const (
	keyActiveBadges  = "defs:badges:active"
	keyActiveLessons = "defs:lessons:active"

	// DefaultDefinitionTTL bounds how stale another instance's view can get.
	DefaultDefinitionTTL = 5 * time.Minute
)

// DefinitionCache decorates a progress.Catalog.
type DefinitionCache struct {
	inner   progress.Catalog
	cache   *Cache
	breaker *circuitbreaker.CircuitBreaker
	ttl     time.Duration
	logger  *slog.Logger
}

// DefinitionCacheConfig configures the decorator.
type DefinitionCacheConfig struct {
	// TTL - 0 uses DefaultDefinitionTTL.
	TTL time.Duration

	// Breaker - nil uses circuitbreaker.CacheBreaker.
	Breaker *circuitbreaker.CircuitBreaker

	Logger *slog.Logger
}

// NewDefinitionCache wraps inner.
func NewDefinitionCache(inner progress.Catalog, cache *Cache, cfg DefinitionCacheConfig) *DefinitionCache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultDefinitionTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Breaker == nil {
		logger := cfg.Logger
		cfg.Breaker = circuitbreaker.CacheBreaker(func(name string, from, to circuitbreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from, "to", to)
		})
	}
	return &DefinitionCache{
		inner:   inner,
		cache:   cache,
		breaker: cfg.Breaker,
		ttl:     cfg.TTL,
		logger:  cfg.Logger,
	}
}

var _ progress.Catalog = (*DefinitionCache)(nil)

// ListActiveBadgeDefinitions serves the badge list from Redis when possible.
func (c *DefinitionCache) ListActiveBadgeDefinitions(ctx context.Context) ([]progress.BadgeDefinition, error) {
	return readThrough(ctx, c, keyActiveBadges, c.inner.ListActiveBadgeDefinitions)
}

// ListActiveLessonDefinitions caches the unfiltered list and filters in memory.
func (c *DefinitionCache) ListActiveLessonDefinitions(ctx context.Context, filter progress.LessonFilter) ([]progress.LessonDefinition, error) {
	all, err := readThrough(ctx, c, keyActiveLessons, func(ctx context.Context) ([]progress.LessonDefinition, error) {
		return c.inner.ListActiveLessonDefinitions(ctx, progress.LessonFilter{})
	})
	if err != nil {
		return nil, err
	}
	if filter == (progress.LessonFilter{}) {
		return all, nil
	}
	out := make([]progress.LessonDefinition, 0, len(all))
	for _, l := range all {
		if filter.Matches(l) {
			out = append(out, l)
		}
	}
	return out, nil
}

// GetLesson reads through to the store.
func (c *DefinitionCache) GetLesson(ctx context.Context, id shared.LessonID) (progress.LessonDefinition, error) {
	return c.inner.GetLesson(ctx, id)
}

// GetQuest reads through to the store.
func (c *DefinitionCache) GetQuest(ctx context.Context, id shared.QuestID) (progress.QuestDefinition, error) {
	return c.inner.GetQuest(ctx, id)
}

// GetBadge reads through to the store.
func (c *DefinitionCache) GetBadge(ctx context.Context, id shared.BadgeID) (progress.BadgeDefinition, error) {
	return c.inner.GetBadge(ctx, id)
}

// SaveLesson writes to the store and drops the cached lesson list.
func (c *DefinitionCache) SaveLesson(ctx context.Context, l progress.LessonDefinition) error {
	if err := c.inner.SaveLesson(ctx, l); err != nil {
		return err
	}
	c.invalidate(ctx, keyActiveLessons)
	return nil
}

// SaveQuest writes to the store. Quests are not cached.
func (c *DefinitionCache) SaveQuest(ctx context.Context, q progress.QuestDefinition) error {
	return c.inner.SaveQuest(ctx, q)
}

// SaveBadge writes to the store and drops the cached badge list.
func (c *DefinitionCache) SaveBadge(ctx context.Context, b progress.BadgeDefinition) error {
	if err := c.inner.SaveBadge(ctx, b); err != nil {
		return err
	}
	c.invalidate(ctx, keyActiveBadges)
	return nil
}

// MaxLessonOrder reads through to the store.
func (c *DefinitionCache) MaxLessonOrder(ctx context.Context) (int, error) {
	return c.inner.MaxLessonOrder(ctx)
}

// HandleEvent drops cached lists when another instance changes the catalog.
// Subscribe it to shared.EventLessonUpserted.
func (c *DefinitionCache) HandleEvent(event shared.Event) error {
	if event.EventType() == shared.EventLessonUpserted {
		c.invalidate(context.Background(), keyActiveLessons)
	}
	return nil
}

// Invalidate drops every cached list.
func (c *DefinitionCache) Invalidate(ctx context.Context) {
	c.invalidate(ctx, keyActiveBadges, keyActiveLessons)
}

func (c *DefinitionCache) invalidate(ctx context.Context, keys ...string) {
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.cache.Delete(ctx, keys...)
	})
	if err != nil {
		c.logger.Warn("failed to invalidate definition cache", "keys", keys, "error", err)
	}
}

// readThrough returns the cached list at key, loading and storing it on a miss.
// Cache failures are logged and fall back to load.
func readThrough[T any](
	ctx context.Context,
	c *DefinitionCache,
	key string,
	load func(context.Context) ([]T, error),
) ([]T, error) {
	var (
		cached []T
		hit    bool
		refill = true
	)
	err := c.breaker.ExecuteWithFallback(ctx, func(ctx context.Context) error {
		err := c.cache.Get(ctx, key, &cached)
		if errors.Is(err, ErrCacheMiss) {
			return nil
		}
		hit = err == nil
		return err
	}, func(error) error {
		// Breaker open: go straight to the store.
		refill = false
		return nil
	})
	if hit {
		return cached, nil
	}
	if err != nil {
		c.logger.Warn("definition cache read failed", "key", key, "error", err)
		refill = false
	}

	fresh, loadErr := load(ctx)
	if loadErr != nil {
		return nil, loadErr
	}

	if refill {
		// Only refill when Redis answered the read.
		setErr := c.breaker.Execute(ctx, func(ctx context.Context) error {
			return c.cache.Set(ctx, key, fresh, c.ttl)
		})
		if setErr != nil && !circuitbreaker.IsRejected(setErr) {
			c.logger.Warn("definition cache write failed", "key", key, "error", setErr)
		}
	}
	return fresh, nil
}
