package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/otj-helper/internal/types"
)

func TestGetOrCreateUser(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	u, err := db.GetOrCreateUser(ctx, " Apprentice@Example.com ", "")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "apprentice@example.com", u.Email)
	assert.Equal(t, "apprentice", u.Name)
	assert.Equal(t, "", u.Spec())

	again, err := db.GetOrCreateUser(ctx, "apprentice@example.com", "Other Name")
	require.NoError(t, err)
	assert.Equal(t, u.ID, again.ID)
	assert.Equal(t, "apprentice", again.Name)

	missing, err := db.GetUser(ctx, u.ID+1000)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUpsertGoogleUser(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	existing, err := db.GetOrCreateUser(ctx, "learner@example.com", "Learner")
	require.NoError(t, err)
	assert.Nil(t, existing.GoogleSub)

	u, err := db.UpsertGoogleUser(ctx, "learner@example.com", "Learner", "sub-123")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, u.ID)
	require.NotNil(t, u.GoogleSub)
	assert.Equal(t, "sub-123", *u.GoogleSub)

	// A changed email still resolves through the subject.
	bySub, err := db.UpsertGoogleUser(ctx, "renamed@example.com", "Learner", "sub-123")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, bySub.ID)
}

func TestSetSelectedSpecAndTargets(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := newTestUser(t, db, "")

	require.NoError(t, db.SetSelectedSpec(ctx, u.ID, "ST0787"))

	otj, weekly := 400.0, 6.0
	require.NoError(t, db.UpdateTargets(ctx, u.ID, &types.TargetsRequest{
		OTJTargetHours:    &otj,
		WeeklyTargetHours: &weekly,
	}))

	got, err := db.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "ST0787", got.Spec())
	require.NotNil(t, got.OTJTargetHours)
	assert.Equal(t, 400.0, *got.OTJTargetHours)
	assert.Nil(t, got.SeminarTargetHours)
	require.NotNil(t, got.WeeklyTargetHours)
	assert.Equal(t, 6.0, *got.WeeklyTargetHours)

	require.NoError(t, db.UpdateTargets(ctx, u.ID, &types.TargetsRequest{}))
	cleared, err := db.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Nil(t, cleared.OTJTargetHours)
}
