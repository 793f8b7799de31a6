package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/iliyamo/desk-booking/internal/logger"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrator applies the schema shipped inside the binary.
type Migrator struct {
	m   *migrate.Migrate
	log *logger.Logger
}

// NewMigrator wraps an open connection.  The connection must have been
// opened with multi statements enabled (see DSN).
func NewMigrator(db *sql.DB, log *logger.Logger) (*Migrator, error) {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	driver, err := migratemysql.WithInstance(db, &migratemysql.Config{})
	if err != nil {
		return nil, fmt.Errorf("create mysql migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "mysql", driver)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return &Migrator{m: m, log: log}, nil
}

// Up applies pending migrations.  A dirty version left by a crashed run
// is forced back to its last recorded number and re-applied.
func (r *Migrator) Up() error {
	version, dirty, err := r.m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read migration version: %w", err)
	}
	if dirty {
		r.log.Warn("DATABASE", fmt.Sprintf("dirty migration at version %d, forcing", version))
		if err := r.m.Force(int(version) - 1); err != nil {
			return fmt.Errorf("fix dirty migration: %w", err)
		}
	}
	if err := r.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	if v, _, err := r.m.Version(); err == nil {
		r.log.LogDatabase("MIGRATE", "schema_migrations", fmt.Sprintf("schema version %d", v))
	}
	return nil
}

// Down rolls back every migration.
func (r *Migrator) Down() error {
	if err := r.m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration down failed: %w", err)
	}
	return nil
}

// Close releases the source only.  The *sql.DB belongs to the caller.
func (r *Migrator) Close() error {
	srcErr, _ := r.m.Close()
	return srcErr
}
