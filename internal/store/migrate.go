package store

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/matheus3301/camlog/internal/store/migrations"
)

// migrationsTable keeps camlog's schema version apart from anything else
// that might share the file.
const migrationsTable = "camlog_schema_migrations"

// MigrateResult reports the schema version before and after Migrate.
type MigrateResult struct {
	From    uint
	Version uint
	Changed bool
}

// Migrate applies pending schema migrations. A database left dirty by an
// interrupted migration is reported as an error rather than patched.
func (db *DB) Migrate() (*MigrateResult, error) {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("migration source: %w", err)
	}
	driver, err := sqlite3.WithInstance(db.DB, &sqlite3.Config{MigrationsTable: migrationsTable})
	if err != nil {
		return nil, fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return nil, fmt.Errorf("migration instance: %w", err)
	}

	from, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		from = 0
	case err != nil:
		return nil, fmt.Errorf("read schema version: %w", err)
	case dirty:
		return nil, fmt.Errorf("schema version %d is dirty", from)
	}

	res := &MigrateResult{From: from, Version: from}
	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return res, nil
		}
		return nil, fmt.Errorf("migration up: %w", err)
	}
	res.Changed = true
	if res.Version, _, err = m.Version(); err != nil {
		return nil, fmt.Errorf("read schema version: %w", err)
	}
	return res, nil
}
