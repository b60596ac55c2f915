package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"

	"github.com/jonathan/otj-helper/internal/types"
)

// TotalHours sums every hour the user has logged.
func (db *DB) TotalHours(ctx context.Context, userID int64) (float64, error) {
	var total float64
	if err := get(ctx, db.x, &total,
		`SELECT COALESCE(SUM(duration_hours), 0.0) FROM activity WHERE user_id = ?`, userID,
	); err != nil {
		return 0, fmt.Errorf("failed to sum hours: %w", err)
	}
	return total, nil
}

// HoursSince sums the hours the user logged on or after from.
func (db *DB) HoursSince(ctx context.Context, userID int64, from types.Date) (float64, error) {
	var total float64
	if err := get(ctx, db.x, &total,
		`SELECT COALESCE(SUM(duration_hours), 0.0) FROM activity
		 WHERE user_id = ? AND activity_date >= ?`, userID, from,
	); err != nil {
		return 0, fmt.Errorf("failed to sum hours since %s: %w", from, err)
	}
	return total, nil
}

// HoursByType groups the user's hours by activity type, largest first.
func (db *DB) HoursByType(ctx context.Context, userID int64) ([]TypeHours, error) {
	rows := []TypeHours{}
	if err := selectAll(ctx, db.x, &rows,
		`SELECT activity_type, COALESCE(SUM(duration_hours), 0.0) AS hours
		 FROM activity WHERE user_id = ?
		 GROUP BY activity_type
		 ORDER BY hours DESC, activity_type`, userID,
	); err != nil {
		return nil, fmt.Errorf("failed to group hours by type: %w", err)
	}
	for i := range rows {
		rows[i].Label = rows[i].Type.Label()
	}
	return rows, nil
}

// RecentActivities returns the user's latest activities with KSBs and tags.
func (db *DB) RecentActivities(ctx context.Context, userID int64, limit int) ([]Activity, error) {
	return db.listHydrated(ctx,
		`SELECT `+activityColumns+` FROM activity a WHERE a.user_id = ?
		 ORDER BY a.activity_date DESC, a.id DESC LIMIT ?`, userID, limit)
}

// ActivityCount counts the user's activities.
func (db *DB) ActivityCount(ctx context.Context, userID int64) (int, error) {
	var n int
	if err := get(ctx, db.x, &n, `SELECT COUNT(*) FROM activity WHERE user_id = ?`, userID); err != nil {
		return 0, fmt.Errorf("failed to count activities: %w", err)
	}
	return n, nil
}

// KSBCoverage lists every KSB of the standard with the user's activity count and
// hours against it, ordered by code.
func (db *DB) KSBCoverage(ctx context.Context, userID int64, spec string) ([]KSBProgress, error) {
	rows := []KSBProgress{}
	if err := selectAll(ctx, db.x, &rows,
		`SELECT k.spec_code, k.code, k.category, k.title, k.description,
			COUNT(a.id) AS activity_count,
			COALESCE(SUM(a.duration_hours), 0.0) AS total_hours
		 FROM ksb k
		 LEFT JOIN activity_ksbs ak ON ak.spec_code = k.spec_code AND ak.ksb_code = k.code
		 LEFT JOIN activity a ON a.id = ak.activity_id AND a.user_id = ?
		 WHERE k.spec_code = ?
		 GROUP BY k.spec_code, k.code, k.category, k.title, k.description`, userID, spec,
	); err != nil {
		return nil, fmt.Errorf("failed to load KSB coverage: %w", err)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Code < rows[j].Code })
	return rows, nil
}

// KSBActivities returns the user's activities linked to one KSB, newest first.
func (db *DB) KSBActivities(ctx context.Context, userID int64, id types.KSBID) ([]Activity, error) {
	return db.listHydrated(ctx,
		`SELECT `+activityColumns+` FROM activity a
		 JOIN activity_ksbs ak ON ak.activity_id = a.id
		 WHERE a.user_id = ? AND ak.spec_code = ? AND ak.ksb_code = ?
		 ORDER BY a.activity_date DESC, a.id DESC`, userID, id.Spec, id.Code)
}

// GetKSB retrieves one KSB definition. Returns nil, nil when not found.
func (db *DB) GetKSB(ctx context.Context, id types.KSBID) (*types.KSB, error) {
	var k types.KSB
	err := get(ctx, db.x, &k,
		`SELECT spec_code, code, category, title, description FROM ksb WHERE spec_code = ? AND code = ?`,
		id.Spec, id.Code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get KSB: %w", err)
	}
	return &k, nil
}

// ListKSBs returns the KSBs of a standard ordered by code. Codes compare as plain
// strings, so S10 sorts before S2.
func (db *DB) ListKSBs(ctx context.Context, spec string) ([]types.KSB, error) {
	ksbs := []types.KSB{}
	if err := selectAll(ctx, db.x, &ksbs,
		`SELECT spec_code, code, category, title, description FROM ksb WHERE spec_code = ?`, spec,
	); err != nil {
		return nil, fmt.Errorf("failed to list KSBs: %w", err)
	}
	sort.Slice(ksbs, func(i, j int) bool { return ksbs[i].Code < ksbs[j].Code })
	return ksbs, nil
}

// ListEvidence returns every activity of the user, across all standards, with
// linked KSB identifiers and resource workflow stages.
func (db *DB) ListEvidence(ctx context.Context, userID int64) ([]types.Evidence, error) {
	var evidence []types.Evidence
	err := db.readTx(ctx, func(tx *sqlx.Tx) error {
		var rows []evidenceRow
		if err := selectAll(ctx, tx, &rows,
			`SELECT id, activity_date, duration_hours, activity_type, evidence_quality
			 FROM activity WHERE user_id = ?
			 ORDER BY activity_date, id`, userID,
		); err != nil {
			return err
		}

		var links []evidenceLink
		if err := selectAll(ctx, tx, &links,
			`SELECT ak.activity_id, ak.spec_code, ak.ksb_code
			 FROM activity_ksbs ak
			 JOIN activity a ON a.id = ak.activity_id
			 WHERE a.user_id = ?
			 ORDER BY ak.activity_id, ak.spec_code, ak.ksb_code`, userID,
		); err != nil {
			return err
		}

		var stages []evidenceStage
		if err := selectAll(ctx, tx, &stages,
			`SELECT r.activity_id, r.workflow_stage
			 FROM resource_link r
			 JOIN activity a ON a.id = r.activity_id
			 WHERE a.user_id = ?
			 ORDER BY r.id`, userID,
		); err != nil {
			return err
		}

		evidence = mergeEvidence(rows, links, stages)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list evidence: %w", err)
	}
	return evidence, nil
}

type evidenceRow struct {
	ID      int64                 `db:"id"`
	Date    types.Date            `db:"activity_date"`
	Hours   float64               `db:"duration_hours"`
	Type    types.ActivityType    `db:"activity_type"`
	Quality types.EvidenceQuality `db:"evidence_quality"`
}

type evidenceLink struct {
	ActivityID int64  `db:"activity_id"`
	Spec       string `db:"spec_code"`
	Code       string `db:"ksb_code"`
}

type evidenceStage struct {
	ActivityID int64               `db:"activity_id"`
	Stage      types.WorkflowStage `db:"workflow_stage"`
}

// mergeEvidence attaches links and stages to their activity rows. Links and
// stages whose activity is not among rows are dropped.
func mergeEvidence(rows []evidenceRow, links []evidenceLink, stages []evidenceStage) []types.Evidence {
	evidence := make([]types.Evidence, len(rows))
	pos := make(map[int64]int, len(rows))
	for i, row := range rows {
		pos[row.ID] = i
		evidence[i] = types.Evidence{
			ActivityID: row.ID,
			Date:       row.Date,
			Hours:      row.Hours,
			Type:       row.Type,
			Quality:    row.Quality,
		}
	}
	for _, l := range links {
		i, ok := pos[l.ActivityID]
		if !ok {
			continue
		}
		evidence[i].KSBs = append(evidence[i].KSBs, types.KSBID{Spec: l.Spec, Code: l.Code})
	}
	for _, s := range stages {
		i, ok := pos[s.ActivityID]
		if !ok {
			continue
		}
		evidence[i].Stages = append(evidence[i].Stages, s.Stage)
	}
	return evidence
}
