package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/alem-hub/learning-tracker/internal/application/command"
	"github.com/alem-hub/learning-tracker/internal/domain/progress"
	"github.com/alem-hub/learning-tracker/internal/domain/shared"
)

func init() {
	rootCmd.AddCommand(seedCmd)
}

var seedCmd = &cobra.Command{
	Use:   "seed <definitions.toml>",
	Short: "Load lesson, quest and badge definitions into the catalog",
	Long: `seed upserts every definition in the file. Lessons go through the same
path as the API, so a missing xp_reward or order is filled in.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}

		file, err := readSeedFile(args[0])
		if err != nil {
			return err
		}

		st, err := openStores(cmd.Context(), cfg.Database, log)
		if err != nil {
			return err
		}
		defer st.close()

		res, err := seedCatalog(cmd.Context(), st.catalog, file, log)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "seeded %d lesson(s), %d quest(s), %d badge(s)\n",
			res.lessons, res.quests, res.badges)
		return nil
	},
}

// ══════════════════════════════════════════════════════════════════════════════
// SEED FILE
// ══════════════════════════════════════════════════════════════════════════════

type seedFile struct {
	Lessons []seedLesson `toml:"lessons"`
	Quests  []seedQuest  `toml:"quests"`
	Badges  []seedBadge  `toml:"badges"`
}

type seedLesson struct {
	ID                   string `toml:"id"`
	Title                string `toml:"title"`
	Category             string `toml:"category"`
	Difficulty           int    `toml:"difficulty"`
	XPReward             int64  `toml:"xp_reward"`
	EstimatedTimeMinutes *int   `toml:"estimated_time_minutes"`
	Order                int    `toml:"order"`
	Active               *bool  `toml:"active"`
}

type seedQuest struct {
	ID          string `toml:"id"`
	Title       string `toml:"title"`
	Difficulty  int    `toml:"difficulty"`
	XPReward    int64  `toml:"xp_reward"`
	BadgeReward string `toml:"badge_reward"`
	Active      *bool  `toml:"active"`
}

type seedBadge struct {
	ID            string             `toml:"id"`
	Name          string             `toml:"name"`
	Description   string             `toml:"description"`
	Type          progress.BadgeType `toml:"type"`
	RequiredValue *int64             `toml:"required_value"`
	Rarity        progress.Rarity    `toml:"rarity"`
	Category      string             `toml:"category"`
	Active        *bool              `toml:"active"`
}

func readSeedFile(path string) (*seedFile, error) {
	var f seedFile
	md, err := toml.DecodeFile(path, &f)
	if err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("parse seed file: unknown key %q", undecoded[0].String())
	}
	return &f, nil
}

func activeOrDefault(b *bool) bool {
	return b == nil || *b
}

type seedResult struct {
	lessons, quests, badges int
}

// seedCatalog writes badges first so quest rewards reference known badges.
// Every invalid definition is reported; valid ones are still written.
func seedCatalog(ctx context.Context, catalog progress.Catalog, f *seedFile, log *slog.Logger) (seedResult, error) {
	var (
		res  seedResult
		errs []error
	)

	for _, b := range f.Badges {
		def := progress.BadgeDefinition{
			ID:            shared.BadgeID(b.ID),
			Name:          b.Name,
			Description:   b.Description,
			Type:          b.Type,
			RequiredValue: b.RequiredValue,
			Rarity:        b.Rarity,
			Category:      b.Category,
			Active:        activeOrDefault(b.Active),
		}
		if err := def.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("badge %q: %w", b.ID, err))
			continue
		}
		if err := catalog.SaveBadge(ctx, def); err != nil {
			return res, fmt.Errorf("save badge %q: %w", b.ID, err)
		}
		res.badges++
	}

	for _, q := range f.Quests {
		def := progress.QuestDefinition{
			ID:          shared.QuestID(q.ID),
			Title:       q.Title,
			Difficulty:  q.Difficulty,
			XPReward:    q.XPReward,
			BadgeReward: shared.BadgeID(q.BadgeReward),
			Active:      activeOrDefault(q.Active),
		}
		if err := def.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("quest %q: %w", q.ID, err))
			continue
		}
		if def.BadgeReward != "" {
			if _, err := catalog.GetBadge(ctx, def.BadgeReward); err != nil {
				errs = append(errs, fmt.Errorf("quest %q: badge reward %q: %w", q.ID, def.BadgeReward, err))
				continue
			}
		}
		if err := catalog.SaveQuest(ctx, def); err != nil {
			return res, fmt.Errorf("save quest %q: %w", q.ID, err)
		}
		res.quests++
	}

	upsert := command.NewUpsertLessonHandler(catalog, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	for _, l := range f.Lessons {
		_, err := upsert.Handle(ctx, command.UpsertLessonCommand{
			ID:                   shared.LessonID(l.ID),
			Title:                l.Title,
			Category:             l.Category,
			Difficulty:           l.Difficulty,
			EstimatedTimeMinutes: l.EstimatedTimeMinutes,
			XPReward:             l.XPReward,
			Order:                l.Order,
			Active:               activeOrDefault(l.Active),
		})
		switch {
		case shared.IsValidation(err):
			errs = append(errs, fmt.Errorf("lesson %q: %w", l.ID, err))
			continue
		case err != nil:
			return res, fmt.Errorf("save lesson %q: %w", l.ID, err)
		}
		res.lessons++
	}

	log.Info("catalog seeded", "lessons", res.lessons, "quests", res.quests, "badges", res.badges, "rejected", len(errs))
	return res, errors.Join(errs...)
}
