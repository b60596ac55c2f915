package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTags_RenameAndDelete(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := newTestUser(t, db, "ST0787")

	req := activityRequest("Tagged", "2026-03-02", 1)
	req.Tags = []string{"python", "sql"}
	a, err := db.CreateActivity(ctx, u.ID, u.Spec(), req)
	require.NoError(t, err)

	tags, err := db.ListTagsWithCounts(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, "python", tags[0].Name)
	assert.Equal(t, 1, tags[0].ActivityCount)
	python, sqlTag := tags[0], tags[1]

	_, err = db.RenameTag(ctx, u.ID, python.ID, "sql")
	assert.ErrorIs(t, err, ErrDuplicateTag)

	renamed, err := db.RenameTag(ctx, u.ID, python.ID, "golang")
	require.NoError(t, err)
	assert.True(t, renamed)

	got, err := db.GetTag(ctx, u.ID, python.ID)
	require.NoError(t, err)
	assert.Equal(t, "golang", got.Name)

	other := newTestUser(t, db, "")
	renamed, err = db.RenameTag(ctx, other.ID, python.ID, "stolen")
	require.NoError(t, err)
	assert.False(t, renamed)

	deleted, err := db.DeleteTag(ctx, u.ID, sqlTag.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	a, err = db.GetActivity(ctx, u.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"golang"}, a.TagNames())
}

func TestTags_ScopedPerUser(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := newTestUser(t, db, "ST0787")
	bob := newTestUser(t, db, "ST0787")

	for _, u := range []*User{alice, bob} {
		req := activityRequest("Shared tag", "2026-03-02", 1)
		req.Tags = []string{"reading"}
		_, err := db.CreateActivity(ctx, u.ID, u.Spec(), req)
		require.NoError(t, err)
	}

	aliceTags, err := db.ListTagsWithCounts(ctx, alice.ID)
	require.NoError(t, err)
	bobTags, err := db.ListTagsWithCounts(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, aliceTags, 1)
	require.Len(t, bobTags, 1)
	assert.NotEqual(t, aliceTags[0].ID, bobTags[0].ID)

	missing, err := db.GetTag(ctx, alice.ID, bobTags[0].ID)
	require.NoError(t, err)
	assert.Nil(t, missing)
}
