package main

import (
	"context"
	"fmt"

	"github.com/jonathan/otj-helper/internal/catalog"
	"github.com/jonathan/otj-helper/internal/config"
	"github.com/jonathan/otj-helper/internal/db"
)

// store is an open, migrated and seeded database together with the catalog it was seeded from.
type store struct {
	db         *db.DB
	catalog    *catalog.Catalog
	migrations db.MigrationResult
	seeded     int
}

// openStore connects to the configured database, applies pending migrations
// and inserts any missing KSB definitions.
func openStore(ctx context.Context, cfg *config.Config) (*store, error) {
	dialect, dsn, err := cfg.Database()
	if err != nil {
		return nil, err
	}

	database, err := db.Open(ctx, dialect, dsn)
	if err != nil {
		return nil, err
	}

	result, err := database.Migrate(ctx)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	cat, err := catalog.Load()
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	seeded, err := database.SeedKSBs(ctx, cat.KSBs())
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to seed KSBs: %w", err)
	}

	return &store{db: database, catalog: cat, migrations: result, seeded: seeded}, nil
}

// userByEmail loads the account for an email address.
func (s *store) userByEmail(ctx context.Context, email string) (*db.User, error) {
	user, err := s.db.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("no user with email %s", email)
	}
	return user, nil
}
