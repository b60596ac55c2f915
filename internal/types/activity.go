package types

// ActivityType is the kind of off-the-job training an activity records.
type ActivityType string

// Activity types in display order.
const (
	ActivityTrainingCourse ActivityType = "training_course"
	ActivitySelfStudy      ActivityType = "self_study"
	ActivityMentoring      ActivityType = "mentoring"
	ActivityShadowing      ActivityType = "shadowing"
	ActivityWorkshop       ActivityType = "workshop"
	ActivityConference     ActivityType = "conference"
	ActivityProjectWork    ActivityType = "project_work"
	ActivityResearch       ActivityType = "research"
	ActivityWriting        ActivityType = "writing"
	ActivityOther          ActivityType = "other"
)

// ActivityTypes lists every activity type in display order.
var ActivityTypes = []ActivityType{
	ActivityTrainingCourse,
	ActivitySelfStudy,
	ActivityMentoring,
	ActivityShadowing,
	ActivityWorkshop,
	ActivityConference,
	ActivityProjectWork,
	ActivityResearch,
	ActivityWriting,
	ActivityOther,
}

var activityTypeLabels = map[ActivityType]string{
	ActivityTrainingCourse: "Training Course",
	ActivitySelfStudy:      "Self-Study",
	ActivityMentoring:      "Mentoring",
	ActivityShadowing:      "Shadowing",
	ActivityWorkshop:       "Workshop",
	ActivityConference:     "Conference / Event",
	ActivityProjectWork:    "Project Work",
	ActivityResearch:       "Research",
	ActivityWriting:        "Writing / Reflection",
	ActivityOther:          "Other",
}

// Label returns the human label, or the raw identifier for unknown types.
func (t ActivityType) Label() string {
	if label, ok := activityTypeLabels[t]; ok {
		return label
	}
	return string(t)
}

// Valid reports whether t is a known activity type.
func (t ActivityType) Valid() bool {
	_, ok := activityTypeLabels[t]
	return ok
}

// EvidenceQuality tracks how far a piece of evidence is from portfolio-ready.
type EvidenceQuality string

// Evidence qualities, weakest first.
const (
	QualityDraft       EvidenceQuality = "draft"
	QualityGood        EvidenceQuality = "good"
	QualityReviewReady EvidenceQuality = "review_ready"
)

// EvidenceQualities lists every quality, weakest first.
var EvidenceQualities = []EvidenceQuality{QualityDraft, QualityGood, QualityReviewReady}

// Label returns the human label for the quality.
func (q EvidenceQuality) Label() string {
	switch q.OrDraft() {
	case QualityGood:
		return "Good"
	case QualityReviewReady:
		return "Review Ready"
	case QualityDraft:
		return "Draft"
	default:
		return string(q)
	}
}

// Valid reports whether q is a known quality. The empty value is not valid.
func (q EvidenceQuality) Valid() bool {
	return q == QualityDraft || q == QualityGood || q == QualityReviewReady
}

// OrDraft treats an unset quality as draft.
func (q EvidenceQuality) OrDraft() EvidenceQuality {
	if q == "" {
		return QualityDraft
	}
	return q
}

// WorkflowStage is a stage of the CORE evidence workflow.
type WorkflowStage string

// CORE workflow stages in order.
const (
	StageCapture  WorkflowStage = "capture"
	StageOrganise WorkflowStage = "organise"
	StageReview   WorkflowStage = "review"
	StageEngage   WorkflowStage = "engage"
)

// DefaultWorkflowStage is used for resource links saved without a stage.
const DefaultWorkflowStage = StageEngage

// StageInfo describes a CORE workflow stage for display.
type StageInfo struct {
	Stage       WorkflowStage `json:"stage"`
	Label       string        `json:"label"`
	Description string        `json:"description"`
	SourceTypes []SourceType  `json:"source_types"`
}

// WorkflowStages lists the four CORE stages in order, with the source types
// offered for each (first entry is the default).
var WorkflowStages = []StageInfo{
	{StageCapture, "Capture", "Collect raw notes and ideas", []SourceType{SourceGoogleKeep, SourceWebsite, SourceOther}},
	{StageOrganise, "Organise", "Plan and track tasks", []SourceType{SourceGoogleTasks, SourceWebsite, SourceOther}},
	{StageReview, "Review", "Refine and reflect on the work", []SourceType{SourceGoogleDocs, SourceDiagram, SourceMarkdown, SourceGoogleDrive, SourceOther}},
	{StageEngage, "Engage", "Share finished evidence", []SourceType{SourceGoogleDocs, SourceGoogleDrive, SourceGitHub, SourceDiagram, SourceMarkdown, SourceWebsite, SourceOther}},
}

// Label returns the human label for the stage.
func (s WorkflowStage) Label() string {
	for _, info := range WorkflowStages {
		if info.Stage == s {
			return info.Label
		}
	}
	return string(s)
}

// Valid reports whether s is one of the four CORE stages.
func (s WorkflowStage) Valid() bool {
	for _, info := range WorkflowStages {
		if info.Stage == s {
			return true
		}
	}
	return false
}

// SourceType is where a linked resource lives.
type SourceType string

// Resource source types.
const (
	SourceGoogleDrive SourceType = "google_drive"
	SourceGoogleDocs  SourceType = "google_docs"
	SourceGoogleKeep  SourceType = "google_keep"
	SourceGoogleTasks SourceType = "google_tasks"
	SourceGitHub      SourceType = "github"
	SourceDiagram     SourceType = "diagram"
	SourceMarkdown    SourceType = "markdown"
	SourceWebsite     SourceType = "website"
	SourceOther       SourceType = "other"
)

var sourceTypeLabels = map[SourceType]string{
	SourceGoogleDrive: "Google Drive",
	SourceGoogleDocs:  "Google Docs",
	SourceGoogleKeep:  "Google Keep",
	SourceGoogleTasks: "Google Tasks",
	SourceGitHub:      "GitHub",
	SourceDiagram:     "Diagram",
	SourceMarkdown:    "Markdown",
	SourceWebsite:     "Website",
	SourceOther:       "Other",
}

// Label returns the human label for the source type.
func (s SourceType) Label() string {
	if label, ok := sourceTypeLabels[s]; ok {
		return label
	}
	return string(s)
}

// Valid reports whether s is a known source type.
func (s SourceType) Valid() bool {
	_, ok := sourceTypeLabels[s]
	return ok
}

// Evidence is the read model of one logged activity as the gap analysis sees it.
type Evidence struct {
	ActivityID int64           `json:"activity_id"`
	Date       Date            `json:"activity_date"`
	Hours      float64         `json:"duration_hours"`
	Type       ActivityType    `json:"activity_type"`
	Quality    EvidenceQuality `json:"evidence_quality"`
	KSBs       []KSBID         `json:"ksbs"`
	Stages     []WorkflowStage `json:"stages"`
}
