package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/otj-helper/internal/types"
)

func recurringTemplate(day int) *types.TemplateRequest {
	req := &types.TemplateRequest{
		Name:          "Weekly study",
		Title:         "Friday study block",
		Description:   "Course modules",
		ActivityType:  types.ActivitySelfStudy,
		Tags:          []string{"Weekly"},
		KSBCodes:      []string{"k1", "s1"},
		IsRecurring:   true,
		RecurrenceDay: &day,
	}
	req.Normalize()
	return req
}

func TestTemplateCRUD(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := newTestUser(t, db, "ST0787")

	hours := 1.5
	req := &types.TemplateRequest{
		Name:            "Mentoring",
		Title:           "Mentor session",
		ActivityType:    types.ActivityMentoring,
		DurationHours:   &hours,
		EvidenceQuality: "bogus",
		Tags:            []string{"Mentor"},
	}
	req.Normalize()
	require.NoError(t, req.Validate())

	tpl, err := db.CreateTemplate(ctx, u.ID, req)
	require.NoError(t, err)
	assert.Equal(t, "Mentoring", tpl.Name)
	assert.Equal(t, types.QualityDraft, tpl.EvidenceQuality)
	assert.Equal(t, []string{"mentor"}, tpl.Tags())
	require.NotNil(t, tpl.DurationHours)
	assert.Equal(t, 1.5, *tpl.DurationHours)
	assert.False(t, tpl.IsRecurring)
	assert.Nil(t, tpl.RecurrenceDay)
	assert.True(t, tpl.LastGenerated.IsZero())

	req.Title = "Mentor catch-up"
	updated, err := db.UpdateTemplate(ctx, u.ID, tpl.ID, req)
	require.NoError(t, err)
	assert.True(t, updated)

	list, err := db.ListTemplates(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Mentor catch-up", list[0].Title)

	other := newTestUser(t, db, "")
	missing, err := db.GetTemplate(ctx, other.ID, tpl.ID)
	require.NoError(t, err)
	assert.Nil(t, missing)

	deleted, err := db.DeleteTemplate(ctx, u.ID, tpl.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestListRecurringTemplates(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := newTestUser(t, db, "ST0787")

	_, err := db.CreateTemplate(ctx, u.ID, recurringTemplate(4))
	require.NoError(t, err)
	_, err = db.CreateTemplate(ctx, u.ID, recurringTemplate(0))
	require.NoError(t, err)

	friday, err := db.ListRecurringTemplates(ctx, 4)
	require.NoError(t, err)
	require.Len(t, friday, 1)
	assert.Equal(t, 4, *friday[0].RecurrenceDay)

	none, err := db.ListRecurringTemplates(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCreateRecurringActivity_OncePerDay(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := newTestUser(t, db, "ST0787")

	tpl, err := db.CreateTemplate(ctx, u.ID, recurringTemplate(4))
	require.NoError(t, err)

	friday, err := types.ParseDate("2026-03-06")
	require.NoError(t, err)

	id, created, err := db.CreateRecurringActivity(ctx, tpl, friday)
	require.NoError(t, err)
	require.True(t, created)

	a, err := db.GetActivity(ctx, u.ID, id)
	require.NoError(t, err)
	assert.Equal(t, "Friday study block", a.Title)
	assert.Equal(t, "2026-03-06", a.ActivityDate.String())
	assert.Equal(t, DefaultRecurringHours, a.DurationHours)
	assert.Equal(t, types.QualityDraft, a.EvidenceQuality)
	assert.Equal(t, []string{"K1", "S1"}, a.KSBCodes())
	assert.Equal(t, []string{"weekly"}, a.TagNames())

	_, created, err = db.CreateRecurringActivity(ctx, tpl, friday)
	require.NoError(t, err)
	assert.False(t, created, "second run on the same day is a no-op")

	stored, err := db.GetTemplate(ctx, u.ID, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-06", stored.LastGenerated.String())

	_, created, err = db.CreateRecurringActivity(ctx, stored, friday.AddDays(7))
	require.NoError(t, err)
	assert.True(t, created, "next week generates again")

	count, err := db.ActivityCount(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
