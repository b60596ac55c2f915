package db

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/lock"
)

// migrationFS holds one directory of goose SQL migrations per dialect.
//
//go:embed migrations
var migrationFS embed.FS

// MigrationResult summarizes a Migrate run.
type MigrationResult struct {
	Applied int // migrations run by this call
	Skipped int // migrations already recorded before this call
	Version int // schema version after the call
}

// gooseDialect maps a Dialect to goose's dialect and migration directory.
func (d Dialect) gooseDialect() (goose.Dialect, string, error) {
	switch d {
	case Postgres:
		return goose.DialectPostgres, "migrations/postgres", nil
	case SQLite:
		return goose.DialectSQLite3, "migrations/sqlite", nil
	default:
		return "", "", fmt.Errorf("unsupported dialect %q", d)
	}
}

// newMigrationProvider builds a goose provider over the embedded migrations.
// On Postgres an advisory session lock serializes concurrent workers.
func (db *DB) newMigrationProvider() (*goose.Provider, error) {
	dialect, dir, err := db.dialect.gooseDialect()
	if err != nil {
		return nil, err
	}
	fsys, err := fs.Sub(migrationFS, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open migrations: %w", err)
	}

	var opts []goose.ProviderOption
	if db.dialect == Postgres {
		locker, err := lock.NewPostgresSessionLocker()
		if err != nil {
			return nil, fmt.Errorf("failed to create migration lock: %w", err)
		}
		opts = append(opts, goose.WithSessionLocker(locker))
	}

	p, err := goose.NewProvider(dialect, db.x.DB, fsys, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration provider: %w", err)
	}
	return p, nil
}

// Migrate brings the schema up to the latest version.
func (db *DB) Migrate(ctx context.Context) (MigrationResult, error) {
	var result MigrationResult

	p, err := db.newMigrationProvider()
	if err != nil {
		return result, err
	}

	applied, err := p.Up(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to migrate database: %w", err)
	}
	result.Applied = len(applied)
	result.Skipped = len(p.ListSources()) - len(applied)

	version, err := p.GetDBVersion(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to read schema version: %w", err)
	}
	result.Version = int(version)
	return result, nil
}
