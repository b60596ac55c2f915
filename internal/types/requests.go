package types

import (
	"fmt"
	"math"
	"net/url"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	must(v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()
		return !math.IsNaN(f) && !math.IsInf(f, 0)
	}))
	must(v.RegisterValidation("httpurl", func(fl validator.FieldLevel) bool {
		u, err := url.Parse(fl.Field().String())
		return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
	}))
	must(v.RegisterValidation("activity_type", func(fl validator.FieldLevel) bool {
		return ActivityType(fl.Field().String()).Valid()
	}))
	must(v.RegisterValidation("evidence_quality", func(fl validator.FieldLevel) bool {
		return EvidenceQuality(fl.Field().String()).Valid()
	}))
	must(v.RegisterValidation("workflow_stage", func(fl validator.FieldLevel) bool {
		return WorkflowStage(fl.Field().String()).Valid()
	}))
	must(v.RegisterValidation("source_type", func(fl validator.FieldLevel) bool {
		return SourceType(fl.Field().String()).Valid()
	}))
	return v
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// FieldErrors maps a request field path (e.g. "resources[0].url") to a message.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for field := range e {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+e[field])
	}
	return "invalid request: " + strings.Join(parts, "; ")
}

var fieldMessages = map[string]string{
	"required":         "is required",
	"datetime":         "must be a date in YYYY-MM-DD format",
	"gt":               "must be a positive number",
	"finite":           "must be a positive number",
	"max":              "is too long",
	"min":              "is out of range",
	"httpurl":          "must be an http(s) URL",
	"activity_type":    "is not a recognised activity type",
	"evidence_quality": "is not a recognised evidence quality",
	"workflow_stage":   "is not a recognised workflow stage",
	"source_type":      "is not a recognised source type",
}

// check runs struct validation and converts failures into FieldErrors.
func check(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	out := make(FieldErrors, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		msg, ok := fieldMessages[fe.Tag()]
		if !ok {
			msg = fmt.Sprintf("failed %s validation", fe.Tag())
		}
		if _, seen := out[field]; !seen {
			out[field] = msg
		}
	}
	return out
}

// ResourceInput is a resource link as submitted with an activity.
type ResourceInput struct {
	Title         string        `json:"title" validate:"max=200"`
	URL           string        `json:"url" validate:"required,max=500,httpurl"`
	SourceType    SourceType    `json:"source_type" validate:"omitempty,source_type"`
	Description   string        `json:"description"`
	WorkflowStage WorkflowStage `json:"workflow_stage" validate:"omitempty,workflow_stage"`
}

// ActivityRequest is the body of an activity create or update.
type ActivityRequest struct {
	Title           string          `json:"title" validate:"required,max=200"`
	Description     string          `json:"description"`
	ActivityDate    string          `json:"activity_date" validate:"required,datetime=2006-01-02"`
	DurationHours   float64         `json:"duration_hours" validate:"finite,gt=0"`
	ActivityType    ActivityType    `json:"activity_type" validate:"required,activity_type"`
	EvidenceQuality EvidenceQuality `json:"evidence_quality" validate:"omitempty,evidence_quality"`
	Notes           string          `json:"notes"`
	KSBCodes        []string        `json:"ksb_codes"`
	Tags            []string        `json:"tags"`
	Resources       []ResourceInput `json:"resources" validate:"dive"`
}

// Normalize trims input and fills defaults. Call before Validate.
func (r *ActivityRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.ActivityDate = strings.TrimSpace(r.ActivityDate)
	r.EvidenceQuality = r.EvidenceQuality.OrDraft()
	r.KSBCodes = normalizeCodes(r.KSBCodes)
	r.Tags = NormalizeTags(r.Tags)

	resources := r.Resources[:0]
	for _, res := range r.Resources {
		res.URL = strings.TrimSpace(res.URL)
		if res.URL == "" {
			continue
		}
		res.Title = strings.TrimSpace(res.Title)
		if res.Title == "" {
			res.Title = res.URL
		}
		res.Description = strings.TrimSpace(res.Description)
		if res.SourceType == "" {
			res.SourceType = SourceOther
		}
		if res.WorkflowStage == "" {
			res.WorkflowStage = DefaultWorkflowStage
		}
		resources = append(resources, res)
	}
	r.Resources = resources
}

// Validate validates the ActivityRequest using the validator.
func (r *ActivityRequest) Validate() error {
	return check(r)
}

// Date returns the parsed activity date. Only meaningful after Validate succeeds.
func (r *ActivityRequest) Date() Date {
	d, _ := ParseDate(r.ActivityDate)
	return d
}

// TemplateRequest is the body of a template create or update.
type TemplateRequest struct {
	Name            string          `json:"name" validate:"required,max=100"`
	Title           string          `json:"title" validate:"required,max=200"`
	Description     string          `json:"description"`
	ActivityType    ActivityType    `json:"activity_type" validate:"required,activity_type"`
	DurationHours   *float64        `json:"duration_hours"`
	EvidenceQuality EvidenceQuality `json:"evidence_quality"`
	Tags            []string        `json:"tags"`
	KSBCodes        []string        `json:"ksb_codes"`
	IsRecurring     bool            `json:"is_recurring"`
	RecurrenceDay   *int            `json:"recurrence_day" validate:"omitempty,min=0,max=6"`
}

// Normalize trims input, lower-cases tags and coerces an unknown quality to draft.
func (r *TemplateRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Title = strings.TrimSpace(r.Title)
	if !r.EvidenceQuality.Valid() {
		r.EvidenceQuality = QualityDraft
	}
	r.Tags = NormalizeTags(r.Tags)
	r.KSBCodes = normalizeCodes(r.KSBCodes)
	if !r.IsRecurring {
		r.RecurrenceDay = nil
	}
}

// Validate validates the TemplateRequest using the validator. A recurring
// template needs a weekday (0 = Monday).
func (r *TemplateRequest) Validate() error {
	extra := FieldErrors{}
	if !optionalPositive(r.DurationHours) {
		extra["duration_hours"] = "must be a positive number (e.g. 2.5)"
	}
	if r.IsRecurring && r.RecurrenceDay == nil {
		extra["recurrence_day"] = "a valid day of the week is required for recurring templates"
	}
	return merge(check(r), extra)
}

// TargetsRequest updates a user's hour targets. A nil target clears it.
type TargetsRequest struct {
	OTJTargetHours     *float64 `json:"otj_target_hours"`
	SeminarTargetHours *float64 `json:"seminar_target_hours"`
	WeeklyTargetHours  *float64 `json:"weekly_target_hours"`
}

// Validate checks that every target that is set is a positive number.
func (r *TargetsRequest) Validate() error {
	errs := FieldErrors{}
	if !optionalPositive(r.OTJTargetHours) {
		errs["otj_target_hours"] = fieldMessages["gt"]
	}
	if !optionalPositive(r.SeminarTargetHours) {
		errs["seminar_target_hours"] = fieldMessages["gt"]
	}
	if !optionalPositive(r.WeeklyTargetHours) {
		errs["weekly_target_hours"] = fieldMessages["gt"]
	}
	return merge(nil, errs)
}

// optionalPositive accepts nil or a finite number above zero.
func optionalPositive(v *float64) bool {
	return v == nil || (!math.IsNaN(*v) && !math.IsInf(*v, 0) && *v > 0)
}

// merge folds extra field errors into the result of check.
func merge(err error, extra FieldErrors) error {
	if err == nil {
		if len(extra) == 0 {
			return nil
		}
		return extra
	}
	fields, ok := err.(FieldErrors)
	if !ok {
		return err
	}
	for k, v := range extra {
		fields[k] = v
	}
	return fields
}

// RenameTagRequest renames one of the user's tags.
type RenameTagRequest struct {
	Name string `json:"name" validate:"required,max=50"`
}

// Validate trims and lower-cases the name, then validates it.
func (r *RenameTagRequest) Validate() error {
	r.Name = strings.ToLower(strings.TrimSpace(r.Name))
	return check(r)
}

// NormalizeTags trims and lower-cases tag names, dropping blanks and duplicates
// while keeping first-seen order.
func NormalizeTags(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// SplitCSV splits a comma-separated list, dropping blanks.
func SplitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func normalizeCodes(codes []string) []string {
	out := make([]string, 0, len(codes))
	seen := make(map[string]bool, len(codes))
	for _, code := range codes {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		out = append(out, code)
	}
	return out
}
