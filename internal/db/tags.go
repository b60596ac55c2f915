package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonathan/otj-helper/internal/types"
)

// resolveTags returns tag IDs for the given names, creating missing tags for the user.
func resolveTags(ctx context.Context, tx *sqlx.Tx, userID int64, names []string) ([]int64, error) {
	names = types.NormalizeTags(names)
	ids := make([]int64, 0, len(names))
	for _, name := range names {
		var id int64
		err := get(ctx, tx, &id, `SELECT id FROM tag WHERE user_id = ? AND name = ?`, userID, name)
		if errors.Is(err, sql.ErrNoRows) {
			err = get(ctx, tx, &id, `INSERT INTO tag (name, user_id) VALUES (?, ?) RETURNING id`, name, userID)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to resolve tag %q: %w", name, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ListTagsWithCounts returns the user's tags by name, with how many activities use each.
func (db *DB) ListTagsWithCounts(ctx context.Context, userID int64) ([]TagCount, error) {
	tags := []TagCount{}
	err := selectAll(ctx, db.x, &tags,
		`SELECT t.id, t.name, t.user_id, COUNT(tg.activity_id) AS activity_count
		 FROM tag t
		 LEFT JOIN activity_tags tg ON tg.tag_id = t.id
		 WHERE t.user_id = ?
		 GROUP BY t.id, t.name, t.user_id
		 ORDER BY t.name`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	return tags, nil
}

// GetTag retrieves one of the user's tags. Returns nil, nil when not found.
func (db *DB) GetTag(ctx context.Context, userID, id int64) (*Tag, error) {
	var t Tag
	err := get(ctx, db.x, &t, `SELECT id, name, user_id FROM tag WHERE id = ? AND user_id = ?`, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tag: %w", err)
	}
	return &t, nil
}

// RenameTag renames a tag. Returns ErrDuplicateTag when the user already has a
// tag with that name, and false when the tag does not exist.
func (db *DB) RenameTag(ctx context.Context, userID, id int64, name string) (bool, error) {
	var clash int
	if err := get(ctx, db.x, &clash,
		`SELECT COUNT(*) FROM tag WHERE user_id = ? AND name = ? AND id <> ?`, userID, name, id,
	); err != nil {
		return false, fmt.Errorf("failed to check tag name: %w", err)
	}
	if clash > 0 {
		return false, ErrDuplicateTag
	}

	n, err := exec(ctx, db.x, `UPDATE tag SET name = ? WHERE id = ? AND user_id = ?`, name, id, userID)
	if IsUniqueViolation(err) {
		return false, ErrDuplicateTag
	}
	if err != nil {
		return false, fmt.Errorf("failed to rename tag: %w", err)
	}
	return n > 0, nil
}

// DeleteTag removes a tag from the user and from every activity carrying it.
func (db *DB) DeleteTag(ctx context.Context, userID, id int64) (bool, error) {
	n, err := exec(ctx, db.x, `DELETE FROM tag WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete tag: %w", err)
	}
	return n > 0, nil
}
