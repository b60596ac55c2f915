package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/jonathan/otj-helper/internal/types"
)

// DefaultRecurringHours is the duration of a generated activity when the
// template has none.
const DefaultRecurringHours = 1.0

// CreateTemplate stores a new template. req must already be normalized and validated.
func (db *DB) CreateTemplate(ctx context.Context, userID int64, req *types.TemplateRequest) (*Template, error) {
	var id int64
	err := get(ctx, db.x, &id,
		`INSERT INTO activity_template (user_id, name, title, description, activity_type, duration_hours,
			evidence_quality, tags_csv, ksb_codes_csv, is_recurring, recurrence_day)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		userID, req.Name, req.Title, req.Description, req.ActivityType, req.DurationHours,
		req.EvidenceQuality, strings.Join(req.Tags, ","), strings.Join(req.KSBCodes, ","),
		req.IsRecurring, req.RecurrenceDay,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create template: %w", err)
	}
	return db.GetTemplate(ctx, userID, id)
}

// GetTemplate retrieves one of the user's templates. Returns nil, nil when not found.
func (db *DB) GetTemplate(ctx context.Context, userID, id int64) (*Template, error) {
	var t Template
	err := get(ctx, db.x, &t,
		`SELECT `+templateColumns+` FROM activity_template WHERE id = ? AND user_id = ?`, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return &t, nil
}

// ListTemplates returns the user's templates ordered by name.
func (db *DB) ListTemplates(ctx context.Context, userID int64) ([]Template, error) {
	templates := []Template{}
	if err := selectAll(ctx, db.x, &templates,
		`SELECT `+templateColumns+` FROM activity_template WHERE user_id = ? ORDER BY name, id`, userID,
	); err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	return templates, nil
}

// UpdateTemplate replaces a template. Returns false when it does not exist.
func (db *DB) UpdateTemplate(ctx context.Context, userID, id int64, req *types.TemplateRequest) (bool, error) {
	n, err := exec(ctx, db.x,
		`UPDATE activity_template SET name = ?, title = ?, description = ?, activity_type = ?,
			duration_hours = ?, evidence_quality = ?, tags_csv = ?, ksb_codes_csv = ?,
			is_recurring = ?, recurrence_day = ?
		 WHERE id = ? AND user_id = ?`,
		req.Name, req.Title, req.Description, req.ActivityType, req.DurationHours,
		req.EvidenceQuality, strings.Join(req.Tags, ","), strings.Join(req.KSBCodes, ","),
		req.IsRecurring, req.RecurrenceDay, id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update template: %w", err)
	}
	return n > 0, nil
}

// DeleteTemplate removes a template.
func (db *DB) DeleteTemplate(ctx context.Context, userID, id int64) (bool, error) {
	n, err := exec(ctx, db.x, `DELETE FROM activity_template WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete template: %w", err)
	}
	return n > 0, nil
}

// ListRecurringTemplates returns every user's recurring templates scheduled for
// the given weekday (0 = Monday).
func (db *DB) ListRecurringTemplates(ctx context.Context, weekday int) ([]Template, error) {
	templates := []Template{}
	if err := selectAll(ctx, db.x, &templates,
		`SELECT `+templateColumns+` FROM activity_template
		 WHERE is_recurring = ? AND recurrence_day = ?
		 ORDER BY id`, true, weekday,
	); err != nil {
		return nil, fmt.Errorf("failed to list recurring templates: %w", err)
	}
	return templates, nil
}

// CreateRecurringActivity generates today's draft activity from a recurring
// template. The template is claimed by moving last_generated to today in the
// same transaction, so concurrent runs generate at most one activity per day;
// a template already generated today returns 0, false.
func (db *DB) CreateRecurringActivity(ctx context.Context, tpl *Template, today types.Date) (int64, bool, error) {
	hours := DefaultRecurringHours
	if tpl.DurationHours != nil {
		hours = *tpl.DurationHours
	}
	req := &types.ActivityRequest{
		Title:           tpl.Title,
		Description:     tpl.Description,
		ActivityDate:    today.String(),
		DurationHours:   hours,
		ActivityType:    tpl.ActivityType,
		EvidenceQuality: types.QualityDraft,
		KSBCodes:        tpl.KSBCodes(),
		Tags:            tpl.Tags(),
	}
	req.Normalize()

	var id int64
	err := db.withTx(ctx, func(tx *sqlx.Tx) error {
		n, err := exec(ctx, tx,
			`UPDATE activity_template SET last_generated = ?
			 WHERE id = ? AND (last_generated IS NULL OR last_generated < ?)`,
			today, tpl.ID, today,
		)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}

		var spec sql.NullString
		if err := get(ctx, tx, &spec, `SELECT selected_spec FROM app_user WHERE id = ?`, tpl.UserID); err != nil {
			return fmt.Errorf("failed to load template owner: %w", err)
		}
		id, err = insertActivity(ctx, tx, tpl.UserID, spec.String, req)
		return err
	})
	if err != nil {
		return 0, false, fmt.Errorf("failed to generate activity from template %d: %w", tpl.ID, err)
	}
	return id, id != 0, nil
}
