package db

import (
	"errors"
	"time"

	"github.com/jonathan/otj-helper/internal/types"
)

// DefaultPerPage is the activity list page size.
const DefaultPerPage = 20

// ErrDuplicateTag is returned when a rename collides with an existing tag of the same user.
var ErrDuplicateTag = errors.New("a tag with that name already exists")

// User is an apprentice account.
type User struct {
	ID                 int64     `db:"id" json:"id"`
	Email              string    `db:"email" json:"email"`
	Name               string    `db:"name" json:"name"`
	GoogleSub          *string   `db:"google_sub" json:"-"`
	SelectedSpec       *string   `db:"selected_spec" json:"selected_spec"`
	OTJTargetHours     *float64  `db:"otj_target_hours" json:"otj_target_hours"`
	SeminarTargetHours *float64  `db:"seminar_target_hours" json:"seminar_target_hours"`
	WeeklyTargetHours  *float64  `db:"weekly_target_hours" json:"weekly_target_hours"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}

// Spec returns the selected standard code, or "" when none is chosen.
func (u *User) Spec() string {
	if u == nil || u.SelectedSpec == nil {
		return ""
	}
	return *u.SelectedSpec
}

// Activity is one logged block of off-the-job training.
type Activity struct {
	ID              int64                 `db:"id" json:"id"`
	UserID          int64                 `db:"user_id" json:"-"`
	Title           string                `db:"title" json:"title"`
	Description     string                `db:"description" json:"description"`
	ActivityDate    types.Date            `db:"activity_date" json:"activity_date"`
	DurationHours   float64               `db:"duration_hours" json:"duration_hours"`
	ActivityType    types.ActivityType    `db:"activity_type" json:"activity_type"`
	EvidenceQuality types.EvidenceQuality `db:"evidence_quality" json:"evidence_quality"`
	Notes           string                `db:"notes" json:"notes"`
	CreatedAt       time.Time             `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time             `db:"updated_at" json:"updated_at"`

	KSBs        []types.KSB    `db:"-" json:"ksbs"`
	Tags        []Tag          `db:"-" json:"tags"`
	Resources   []ResourceLink `db:"-" json:"resources"`
	Attachments []Attachment   `db:"-" json:"attachments"`
}

// KSBCodes returns the codes of the linked KSBs in link order.
func (a *Activity) KSBCodes() []string {
	codes := make([]string, 0, len(a.KSBs))
	for _, k := range a.KSBs {
		codes = append(codes, k.Code)
	}
	return codes
}

// TagNames returns the names of the activity's tags.
func (a *Activity) TagNames() []string {
	names := make([]string, 0, len(a.Tags))
	for _, t := range a.Tags {
		names = append(names, t.Name)
	}
	return names
}

const activityColumns = `a.id, a.user_id, a.title, a.description, a.activity_date, a.duration_hours,
	a.activity_type, a.evidence_quality, a.notes, a.created_at, a.updated_at`

// ResourceLink points at evidence kept outside the app.
type ResourceLink struct {
	ID            int64               `db:"id" json:"id"`
	ActivityID    int64               `db:"activity_id" json:"-"`
	URL           string              `db:"url" json:"url"`
	Title         string              `db:"title" json:"title"`
	SourceType    types.SourceType    `db:"source_type" json:"source_type"`
	Description   string              `db:"description" json:"description"`
	WorkflowStage types.WorkflowStage `db:"workflow_stage" json:"workflow_stage"`
}

// Tag is a user-defined label.
type Tag struct {
	ID     int64  `db:"id" json:"id"`
	Name   string `db:"name" json:"name"`
	UserID int64  `db:"user_id" json:"-"`
}

// TagCount is a tag with the number of activities carrying it.
type TagCount struct {
	Tag
	ActivityCount int `db:"activity_count" json:"activity_count"`
}

// Template is a reusable activity pre-fill, optionally generated weekly.
type Template struct {
	ID              int64                 `db:"id" json:"id"`
	UserID          int64                 `db:"user_id" json:"-"`
	Name            string                `db:"name" json:"name"`
	Title           string                `db:"title" json:"title"`
	Description     string                `db:"description" json:"description"`
	ActivityType    types.ActivityType    `db:"activity_type" json:"activity_type"`
	DurationHours   *float64              `db:"duration_hours" json:"duration_hours"`
	EvidenceQuality types.EvidenceQuality `db:"evidence_quality" json:"evidence_quality"`
	TagsCSV         string                `db:"tags_csv" json:"-"`
	KSBCodesCSV     string                `db:"ksb_codes_csv" json:"-"`
	IsRecurring     bool                  `db:"is_recurring" json:"is_recurring"`
	RecurrenceDay   *int                  `db:"recurrence_day" json:"recurrence_day"`
	LastGenerated   types.Date            `db:"last_generated" json:"last_generated"`
	CreatedAt       time.Time             `db:"created_at" json:"created_at"`
}

// Tags returns the template's tag names.
func (t *Template) Tags() []string {
	return types.SplitCSV(t.TagsCSV)
}

// KSBCodes returns the template's KSB codes.
func (t *Template) KSBCodes() []string {
	return types.SplitCSV(t.KSBCodesCSV)
}

const templateColumns = `id, user_id, name, title, description, activity_type, duration_hours,
	evidence_quality, tags_csv, ksb_codes_csv, is_recurring, recurrence_day, last_generated, created_at`

// Attachment is an uploaded evidence file.
type Attachment struct {
	ID           int64     `db:"id" json:"id"`
	ActivityID   int64     `db:"activity_id" json:"activity_id"`
	Filename     string    `db:"filename" json:"filename"`
	StoredName   string    `db:"stored_name" json:"-"`
	ContentType  string    `db:"content_type" json:"content_type"`
	FileSize     int64     `db:"file_size" json:"file_size"`
	HasThumbnail bool      `db:"has_thumbnail" json:"has_thumbnail"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// NewAttachment is an already-stored file waiting to be recorded.
type NewAttachment struct {
	Filename     string
	StoredName   string
	ContentType  string
	FileSize     int64
	HasThumbnail bool
}

// ActivityFilters narrows an activity listing. Zero values mean "no filter".
type ActivityFilters struct {
	Spec    string
	KSB     string
	Type    types.ActivityType
	TagID   int64
	Page    int
	PerPage int
}

func (f *ActivityFilters) normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 {
		f.PerPage = DefaultPerPage
	}
}

// ActivityPage is one page of a filtered listing.
type ActivityPage struct {
	Activities []Activity `json:"activities"`
	Total      int        `json:"total"`
	Page       int        `json:"page"`
	PerPage    int        `json:"per_page"`
	Pages      int        `json:"pages"`
}

// TypeHours is the total time logged against one activity type.
type TypeHours struct {
	Type  types.ActivityType `db:"activity_type" json:"activity_type"`
	Label string             `db:"-" json:"label"`
	Hours float64            `db:"hours" json:"hours"`
}

// KSBProgress is a KSB with a user's activity count and hours against it.
type KSBProgress struct {
	types.KSB
	ActivityCount int     `db:"activity_count" json:"activity_count"`
	TotalHours    float64 `db:"total_hours" json:"total_hours"`
}
