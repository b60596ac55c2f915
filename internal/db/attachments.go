package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const attachmentColumns = `id, activity_id, filename, stored_name, content_type, file_size,
	has_thumbnail, created_at`

// CreateAttachments records already-stored files against an activity in one transaction.
func (db *DB) CreateAttachments(ctx context.Context, activityID int64, files []NewAttachment) ([]Attachment, error) {
	ids := make([]int64, 0, len(files))
	err := db.withTx(ctx, func(tx *sqlx.Tx) error {
		for _, f := range files {
			var id int64
			if err := get(ctx, tx, &id,
				`INSERT INTO attachment (activity_id, filename, stored_name, content_type, file_size, has_thumbnail)
				 VALUES (?, ?, ?, ?, ?, ?) RETURNING id`,
				activityID, f.Filename, f.StoredName, f.ContentType, f.FileSize, f.HasThumbnail,
			); err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create attachments: %w", err)
	}

	out := []Attachment{}
	if len(ids) == 0 {
		return out, nil
	}
	if err := selectIn(ctx, db.x, &out,
		`SELECT `+attachmentColumns+` FROM attachment WHERE id IN (?) ORDER BY id`, ids,
	); err != nil {
		return nil, fmt.Errorf("failed to load attachments: %w", err)
	}
	return out, nil
}

// GetAttachment retrieves an attachment whose activity belongs to the user.
// Returns nil, nil when not found or not owned.
func (db *DB) GetAttachment(ctx context.Context, userID, id int64) (*Attachment, error) {
	var a Attachment
	err := get(ctx, db.x, &a,
		`SELECT f.id, f.activity_id, f.filename, f.stored_name, f.content_type, f.file_size,
			f.has_thumbnail, f.created_at
		 FROM attachment f
		 JOIN activity a ON a.id = f.activity_id
		 WHERE f.id = ? AND a.user_id = ?`, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get attachment: %w", err)
	}
	return &a, nil
}

// ListAttachments returns the attachments of an activity in upload order.
func (db *DB) ListAttachments(ctx context.Context, activityID int64) ([]Attachment, error) {
	files := []Attachment{}
	if err := selectAll(ctx, db.x, &files,
		`SELECT `+attachmentColumns+` FROM attachment WHERE activity_id = ? ORDER BY id`, activityID,
	); err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	return files, nil
}

// DeleteAttachment removes an attachment row owned by the user. The stored file
// is the caller's to remove.
func (db *DB) DeleteAttachment(ctx context.Context, userID, id int64) (bool, error) {
	n, err := exec(ctx, db.x,
		`DELETE FROM attachment WHERE id = ? AND activity_id IN (SELECT id FROM activity WHERE user_id = ?)`,
		id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete attachment: %w", err)
	}
	return n > 0, nil
}
