package db

import (
	"context"
	"fmt"

	"github.com/jonathan/otj-helper/internal/types"
)

// SeedKSBs inserts any KSB definitions not yet present and returns how many were added.
// Rows are keyed by (spec_code, code); existing rows are left untouched.
func (db *DB) SeedKSBs(ctx context.Context, ksbs []types.KSB) (int, error) {
	added := 0
	for _, k := range ksbs {
		n, err := exec(ctx, db.x,
			`INSERT INTO ksb (spec_code, code, category, title, description)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT (spec_code, code) DO NOTHING`,
			k.Spec, k.Code, k.Category, k.Title, k.Description,
		)
		if err != nil {
			// A concurrent worker seeding the same row is not a failure.
			if IsUniqueViolation(err) {
				continue
			}
			return added, fmt.Errorf("failed to seed KSB %s: %w", k.ID(), err)
		}
		added += int(n)
	}
	return added, nil
}
