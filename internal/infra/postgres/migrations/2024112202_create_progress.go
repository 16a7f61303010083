package migrations

import (
	"context"

	"github.com/uptrace/bun"
)

const createProgressSQL = `
CREATE TABLE IF NOT EXISTS progress (
	user_id          TEXT NOT NULL,
	course_id        TEXT NOT NULL,
	completed_topics INT[] NOT NULL DEFAULT '{}',
	quiz_score       INT,
	certified_at     TIMESTAMPTZ,
	last_updated     TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (user_id, course_id)
)`

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, createProgressSQL)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS progress`)
			return err
		},
	)
}
