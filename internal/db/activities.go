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

// CreateActivity records an activity with its KSB links, tags and resource links.
// KSB codes are resolved within spec; codes the standard does not define are ignored.
// req must already be normalized and validated.
func (db *DB) CreateActivity(ctx context.Context, userID int64, spec string, req *types.ActivityRequest) (*Activity, error) {
	var id int64
	err := db.withTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		id, err = insertActivity(ctx, tx, userID, spec, req)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create activity: %w", err)
	}
	return db.GetActivity(ctx, userID, id)
}

func insertActivity(ctx context.Context, tx *sqlx.Tx, userID int64, spec string, req *types.ActivityRequest) (int64, error) {
	var id int64
	err := get(ctx, tx, &id,
		`INSERT INTO activity (user_id, title, description, activity_date, duration_hours,
			activity_type, evidence_quality, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		userID, req.Title, req.Description, req.Date(), req.DurationHours,
		req.ActivityType, req.EvidenceQuality.OrDraft(), req.Notes,
	)
	if err != nil {
		return 0, err
	}
	if err := replaceLinks(ctx, tx, userID, id, spec, req); err != nil {
		return 0, err
	}
	return id, nil
}

// replaceLinks rewrites the KSB links, tags and resource links of an activity.
func replaceLinks(ctx context.Context, tx *sqlx.Tx, userID, activityID int64, spec string, req *types.ActivityRequest) error {
	for _, table := range []string{"activity_ksbs", "activity_tags", "resource_link"} {
		if _, err := exec(ctx, tx, `DELETE FROM `+table+` WHERE activity_id = ?`, activityID); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	if err := linkKSBs(ctx, tx, activityID, spec, req.KSBCodes); err != nil {
		return err
	}

	tagIDs, err := resolveTags(ctx, tx, userID, req.Tags)
	if err != nil {
		return err
	}
	for _, tagID := range tagIDs {
		if _, err := exec(ctx, tx,
			`INSERT INTO activity_tags (activity_id, tag_id) VALUES (?, ?)`, activityID, tagID,
		); err != nil {
			return fmt.Errorf("failed to tag activity: %w", err)
		}
	}

	for _, res := range req.Resources {
		if _, err := exec(ctx, tx,
			`INSERT INTO resource_link (activity_id, url, title, source_type, description, workflow_stage)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			activityID, res.URL, res.Title, res.SourceType, res.Description, res.WorkflowStage,
		); err != nil {
			return fmt.Errorf("failed to add resource link: %w", err)
		}
	}
	return nil
}

func linkKSBs(ctx context.Context, tx *sqlx.Tx, activityID int64, spec string, codes []string) error {
	if spec == "" || len(codes) == 0 {
		return nil
	}

	var known []string
	if err := selectIn(ctx, tx, &known,
		`SELECT code FROM ksb WHERE spec_code = ? AND code IN (?)`, spec, codes,
	); err != nil {
		return fmt.Errorf("failed to resolve KSB codes: %w", err)
	}
	valid := make(map[string]bool, len(known))
	for _, code := range known {
		valid[code] = true
	}

	for _, code := range codes {
		if !valid[code] {
			continue
		}
		if _, err := exec(ctx, tx,
			`INSERT INTO activity_ksbs (activity_id, spec_code, ksb_code) VALUES (?, ?, ?)`,
			activityID, spec, code,
		); err != nil {
			return fmt.Errorf("failed to link KSB %s: %w", code, err)
		}
	}
	return nil
}

// UpdateActivity replaces an activity and all of its links. Returns false when
// the activity does not exist or belongs to another user.
func (db *DB) UpdateActivity(ctx context.Context, userID, id int64, spec string, req *types.ActivityRequest) (bool, error) {
	found := false
	err := db.withTx(ctx, func(tx *sqlx.Tx) error {
		n, err := exec(ctx, tx,
			`UPDATE activity SET title = ?, description = ?, activity_date = ?, duration_hours = ?,
				activity_type = ?, evidence_quality = ?, notes = ?, updated_at = CURRENT_TIMESTAMP
			 WHERE id = ? AND user_id = ?`,
			req.Title, req.Description, req.Date(), req.DurationHours,
			req.ActivityType, req.EvidenceQuality.OrDraft(), req.Notes, id, userID,
		)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		found = true
		return replaceLinks(ctx, tx, userID, id, spec, req)
	})
	if err != nil {
		return false, fmt.Errorf("failed to update activity: %w", err)
	}
	return found, nil
}

// GetActivity retrieves one of the user's activities with KSBs, tags, resource
// links and attachments. Returns nil, nil when not found.
func (db *DB) GetActivity(ctx context.Context, userID, id int64) (*Activity, error) {
	var a Activity
	found := true
	err := db.readTx(ctx, func(tx *sqlx.Tx) error {
		err := get(ctx, tx, &a,
			`SELECT `+activityColumns+` FROM activity a WHERE a.id = ? AND a.user_id = ?`, id, userID)
		if errors.Is(err, sql.ErrNoRows) {
			found = false
			return nil
		}
		if err != nil {
			return err
		}
		list := []Activity{a}
		if err := hydrate(ctx, tx, list, true); err != nil {
			return err
		}
		a = list[0]
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get activity: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &a, nil
}

// DeleteActivity removes an activity and, by cascade, its links and attachment rows.
func (db *DB) DeleteActivity(ctx context.Context, userID, id int64) (bool, error) {
	n, err := exec(ctx, db.x, `DELETE FROM activity WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete activity: %w", err)
	}
	return n > 0, nil
}

// ListActivities returns one page of the user's activities, newest first.
func (db *DB) ListActivities(ctx context.Context, userID int64, f ActivityFilters) (*ActivityPage, error) {
	f.normalize()

	where := []string{"a.user_id = ?"}
	args := []any{userID}
	if f.KSB != "" {
		if f.Spec != "" {
			where = append(where, "a.id IN (SELECT activity_id FROM activity_ksbs WHERE spec_code = ? AND ksb_code = ?)")
			args = append(args, f.Spec, f.KSB)
		} else {
			where = append(where, "a.id IN (SELECT activity_id FROM activity_ksbs WHERE ksb_code = ?)")
			args = append(args, f.KSB)
		}
	}
	if f.Type != "" {
		where = append(where, "a.activity_type = ?")
		args = append(args, f.Type)
	}
	if f.TagID != 0 {
		where = append(where, "a.id IN (SELECT activity_id FROM activity_tags WHERE tag_id = ?)")
		args = append(args, f.TagID)
	}
	clause := strings.Join(where, " AND ")

	page := &ActivityPage{Activities: []Activity{}, Page: f.Page, PerPage: f.PerPage}
	err := db.readTx(ctx, func(tx *sqlx.Tx) error {
		if err := get(ctx, tx, &page.Total, `SELECT COUNT(*) FROM activity a WHERE `+clause, args...); err != nil {
			return err
		}
		listArgs := append(append([]any{}, args...), f.PerPage, (f.Page-1)*f.PerPage)
		if err := selectAll(ctx, tx, &page.Activities,
			`SELECT `+activityColumns+` FROM activity a WHERE `+clause+`
			 ORDER BY a.activity_date DESC, a.id DESC LIMIT ? OFFSET ?`, listArgs...,
		); err != nil {
			return err
		}
		return hydrate(ctx, tx, page.Activities, false)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	page.Pages = (page.Total + f.PerPage - 1) / f.PerPage
	return page, nil
}

// ListAllActivities returns every activity of the user with KSBs and tags, newest first.
func (db *DB) ListAllActivities(ctx context.Context, userID int64) ([]Activity, error) {
	return db.listHydrated(ctx,
		`SELECT `+activityColumns+` FROM activity a WHERE a.user_id = ?
		 ORDER BY a.activity_date DESC, a.id DESC`, userID)
}

func (db *DB) listHydrated(ctx context.Context, query string, args ...any) ([]Activity, error) {
	activities := []Activity{}
	err := db.readTx(ctx, func(tx *sqlx.Tx) error {
		if err := selectAll(ctx, tx, &activities, query, args...); err != nil {
			return err
		}
		return hydrate(ctx, tx, activities, false)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	return activities, nil
}

// hydrate fills KSBs and tags of each activity in place, plus resource links and
// attachments when details is set.
func hydrate(ctx context.Context, q sqlx.ExtContext, activities []Activity, details bool) error {
	if len(activities) == 0 {
		return nil
	}
	ids := make([]int64, len(activities))
	pos := make(map[int64]int, len(activities))
	for i := range activities {
		ids[i] = activities[i].ID
		pos[activities[i].ID] = i
		activities[i].KSBs = []types.KSB{}
		activities[i].Tags = []Tag{}
		activities[i].Resources = []ResourceLink{}
		activities[i].Attachments = []Attachment{}
	}

	var ksbRows []struct {
		ActivityID int64 `db:"activity_id"`
		types.KSB
	}
	if err := selectIn(ctx, q, &ksbRows,
		`SELECT ak.activity_id, k.spec_code, k.code, k.category, k.title, k.description
		 FROM activity_ksbs ak
		 JOIN ksb k ON k.spec_code = ak.spec_code AND k.code = ak.ksb_code
		 WHERE ak.activity_id IN (?)
		 ORDER BY k.spec_code, k.code`, ids,
	); err != nil {
		return fmt.Errorf("failed to load activity KSBs: %w", err)
	}
	for _, row := range ksbRows {
		a := &activities[pos[row.ActivityID]]
		a.KSBs = append(a.KSBs, row.KSB)
	}

	var tagRows []struct {
		ActivityID int64 `db:"activity_id"`
		Tag
	}
	if err := selectIn(ctx, q, &tagRows,
		`SELECT tg.activity_id, t.id, t.name, t.user_id
		 FROM activity_tags tg
		 JOIN tag t ON t.id = tg.tag_id
		 WHERE tg.activity_id IN (?)
		 ORDER BY t.name`, ids,
	); err != nil {
		return fmt.Errorf("failed to load activity tags: %w", err)
	}
	for _, row := range tagRows {
		a := &activities[pos[row.ActivityID]]
		a.Tags = append(a.Tags, row.Tag)
	}

	if !details {
		return nil
	}

	var links []ResourceLink
	if err := selectIn(ctx, q, &links,
		`SELECT id, activity_id, url, title, source_type, description, workflow_stage
		 FROM resource_link WHERE activity_id IN (?) ORDER BY id`, ids,
	); err != nil {
		return fmt.Errorf("failed to load resource links: %w", err)
	}
	for _, link := range links {
		a := &activities[pos[link.ActivityID]]
		a.Resources = append(a.Resources, link)
	}

	var files []Attachment
	if err := selectIn(ctx, q, &files,
		`SELECT `+attachmentColumns+` FROM attachment WHERE activity_id IN (?) ORDER BY id`, ids,
	); err != nil {
		return fmt.Errorf("failed to load attachments: %w", err)
	}
	for _, file := range files {
		a := &activities[pos[file.ActivityID]]
		a.Attachments = append(a.Attachments, file)
	}
	return nil
}
