package statestore

import (
	"context"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// RunSwarmMigrations applies the swarm schema migration files at
// migrationsDir (expected to contain the DDL in SwarmSchema split into
// versioned .up.sql/.down.sql files) to databaseURL, mirroring the
// teacher's platform.RunGlobalMigrations wiring.
func RunSwarmMigrations(databaseURL, migrationsDir string) error {
	m, err := migrate.New(fmt.Sprintf("file://%s", migrationsDir), databaseURL)
	if err != nil {
		return fmt.Errorf("creating swarm migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("running swarm migrations: %w", err)
	}
	return nil
}

// ApplySchema execs SwarmSchema directly against the given StateStore. This
// is a lightweight bootstrap path (used by the admin CLI's "swarm register-peer"
// on first run, or in environments without a migrations directory mounted)
// that is idempotent via IF NOT EXISTS / CREATE INDEX IF NOT EXISTS.
func ApplySchema(ctx context.Context, store StateStore) error {
	if err := store.Run(ctx, SwarmSchema); err != nil {
		return fmt.Errorf("applying swarm schema: %w", err)
	}
	return nil
}
