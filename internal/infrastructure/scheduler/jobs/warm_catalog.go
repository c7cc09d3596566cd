// Package jobs contains the scheduled jobs of the tracker.
package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alem-hub/learning-tracker/internal/domain/progress"
)

// ══════════════════════════════════════════════════════════════════════════════
// WARM CATALOG JOB
// Drops the cached definition lists and reloads them, so a definition edited
// directly in the database shows up without waiting for the cache TTL.
// ══════════════════════════════════════════════════════════════════════════════

// WarmCatalogJobName is the scheduler name of WarmCatalogJob.
const WarmCatalogJobName = "warm_catalog"

// CatalogCache is the cache side of a caching catalog.
type CatalogCache interface {
	progress.DefinitionRepository
	Invalidate(ctx context.Context)
}

// WarmCatalogJob refreshes a CatalogCache.
type WarmCatalogJob struct {
	cache  CatalogCache
	logger *slog.Logger
}

// NewWarmCatalogJob creates a new WarmCatalogJob.
func NewWarmCatalogJob(cache CatalogCache, logger *slog.Logger) *WarmCatalogJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &WarmCatalogJob{cache: cache, logger: logger.With("job", WarmCatalogJobName)}
}

// Name implements scheduler.Job.
func (j *WarmCatalogJob) Name() string {
	return WarmCatalogJobName
}

// Run implements scheduler.Job.
func (j *WarmCatalogJob) Run(ctx context.Context) error {
	j.cache.Invalidate(ctx)

	badges, err := j.cache.ListActiveBadgeDefinitions(ctx)
	if err != nil {
		return fmt.Errorf("reload badges: %w", err)
	}
	lessons, err := j.cache.ListActiveLessonDefinitions(ctx, progress.LessonFilter{})
	if err != nil {
		return fmt.Errorf("reload lessons: %w", err)
	}

	j.logger.Debug("definition cache warmed", "badges", len(badges), "lessons", len(lessons))
	return nil
}
