package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jonathan/otj-helper/internal/types"
)

const userColumns = `id, email, name, google_sub, selected_spec, otj_target_hours,
	seminar_target_hours, weekly_target_hours, created_at`

func (db *DB) getUser(ctx context.Context, where string, arg any) (*User, error) {
	var u User
	err := get(ctx, db.x, &u, `SELECT `+userColumns+` FROM app_user WHERE `+where, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUser retrieves a user by ID. Returns nil, nil when not found.
func (db *DB) GetUser(ctx context.Context, id int64) (*User, error) {
	u, err := db.getUser(ctx, "id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// GetUserByEmail retrieves a user by email address (case-insensitive).
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	u, err := db.getUser(ctx, "email = ?", normalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return u, nil
}

// GetOrCreateUser returns the user with the given email, creating it when missing.
func (db *DB) GetOrCreateUser(ctx context.Context, email, name string) (*User, error) {
	email = normalizeEmail(email)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	if _, err := exec(ctx, db.x,
		`INSERT INTO app_user (email, name) VALUES (?, ?) ON CONFLICT (email) DO NOTHING`,
		email, name,
	); err != nil && !IsUniqueViolation(err) {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return db.GetUserByEmail(ctx, email)
}

// UpsertGoogleUser resolves a Google sign-in to a user. The Google subject wins
// over the email; an existing email account gets its subject back-filled.
func (db *DB) UpsertGoogleUser(ctx context.Context, email, name, sub string) (*User, error) {
	u, err := db.getUser(ctx, "google_sub = ?", sub)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by google subject: %w", err)
	}
	if u != nil {
		return u, nil
	}

	u, err = db.GetOrCreateUser(ctx, email, name)
	if err != nil {
		return nil, err
	}
	if u.GoogleSub == nil {
		if _, err := exec(ctx, db.x, `UPDATE app_user SET google_sub = ? WHERE id = ?`, sub, u.ID); err != nil {
			return nil, fmt.Errorf("failed to link google account: %w", err)
		}
		u.GoogleSub = &sub
	}
	return u, nil
}

// SetSelectedSpec records the standard the user is working towards.
func (db *DB) SetSelectedSpec(ctx context.Context, userID int64, specCode string) error {
	if _, err := exec(ctx, db.x, `UPDATE app_user SET selected_spec = ? WHERE id = ?`, specCode, userID); err != nil {
		return fmt.Errorf("failed to set selected spec: %w", err)
	}
	return nil
}

// UpdateTargets replaces the user's hour targets. Nil clears a target.
func (db *DB) UpdateTargets(ctx context.Context, userID int64, req *types.TargetsRequest) error {
	_, err := exec(ctx, db.x,
		`UPDATE app_user SET otj_target_hours = ?, seminar_target_hours = ?, weekly_target_hours = ? WHERE id = ?`,
		req.OTJTargetHours, req.SeminarTargetHours, req.WeeklyTargetHours, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to update targets: %w", err)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
