package cli

import (
	"context"
	"fmt"

	"course-progress-service/internal/infra/catalog"
	pginfra "course-progress-service/internal/infra/postgres"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewSeedCmd imports the YAML course catalog into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Import the YAML course catalog into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), *configPath)
		},
	}
}

func runSeed(ctx context.Context, configPath string) error {
	cfg, log, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	defer log.Sync()

	if cfg.Catalog.Path == "" {
		return fmt.Errorf("catalog path not configured")
	}
	if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
		return err
	}

	courses, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		log.Warn("skipping invalid catalog entries", zap.Error(err))
	}

	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	loader := pginfra.NewCourseLoader(pool)
	for _, course := range courses {
		if err := loader.UpsertCourse(ctx, course); err != nil {
			return err
		}
	}
	log.Info("catalog seeded", zap.Int("courses", len(courses)))
	return nil
}
