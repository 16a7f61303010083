package migrations

import "github.com/uptrace/bun/migrate"

// Migrations holds the schema for courses and learner progress.
var Migrations = migrate.NewMigrations()
