package models

import (
	"time"

	"gorm.io/datatypes"
)

type ReviewStatus string

const (
	ReviewDraft               ReviewStatus = "draft"
	ReviewSubmitted           ReviewStatus = "submitted"
	ReviewUnderAudit          ReviewStatus = "under_audit"
	ReviewApproved            ReviewStatus = "approved"
	ReviewReturnedForRevision ReviewStatus = "returned_for_revision"
)

type Evidence struct {
	Description   string `json:"description,omitempty"`
	PageReference string `json:"page_reference,omitempty"`
	AttachmentURL string `json:"attachment_url,omitempty"`
}

// Criterion is one weighted, scored line of a review. Score is 0-100, weight 0-1.
type Criterion struct {
	Name     string     `json:"name"`
	Score    float64    `json:"score"`
	Weight   float64    `json:"weight"`
	Comments string     `json:"comments,omitempty"`
	Evidence []Evidence `json:"evidence,omitempty"`
}

type Strength struct {
	Area        string `json:"area"`
	Description string `json:"description"`
	Impact      string `json:"impact,omitempty"`
}

type Weakness struct {
	Area            string `json:"area"`
	Description     string `json:"description"`
	Severity        string `json:"severity,omitempty"`
	Recommendations string `json:"recommendations,omitempty"`
	RequiredAction  string `json:"required_action,omitempty"`
}

type Recommendation struct {
	Category        string `json:"category"`
	Description     string `json:"description"`
	Priority        string `json:"priority,omitempty"`
	Timeframe       string `json:"timeframe,omitempty"`
	ExpectedOutcome string `json:"expected_outcome,omitempty"`
}

type ReviewFeedback struct {
	ToInstitute       string     `json:"to_institute,omitempty"`
	ConfidentialNotes string     `json:"confidential_notes,omitempty"`
	FollowUpRequired  bool       `json:"follow_up_required"`
	FollowUpDate      *time.Time `json:"follow_up_date,omitempty"`
}

type Revision struct {
	Version    int       `json:"version"`
	ModifiedAt time.Time `json:"modified_at"`
	ModifiedBy string    `json:"modified_by"`
	Changes    string    `json:"changes"`
	Reason     string    `json:"reason"`
}

type Review struct {
	Base
	DocumentID  string `gorm:"column:document_id;type:varchar(36);index" json:"document_id"`
	ReviewerID  string `gorm:"column:reviewer_id;type:varchar(36);index" json:"reviewer_id"`
	InstituteID string `gorm:"column:institute_id;type:varchar(36);index" json:"institute_id"`

	OverallScore    *int                                `gorm:"column:overall_score" json:"overall_score"`
	Criteria        datatypes.JSONSlice[Criterion]      `gorm:"column:criteria" json:"criteria"`
	Strengths       datatypes.JSONSlice[Strength]       `gorm:"column:strengths" json:"strengths"`
	Weaknesses      datatypes.JSONSlice[Weakness]       `gorm:"column:weaknesses" json:"weaknesses"`
	Recommendations datatypes.JSONSlice[Recommendation] `gorm:"column:recommendations" json:"recommendations"`

	Status      ReviewStatus `gorm:"column:status;size:32;default:draft;index" json:"status"`
	StartedAt   time.Time    `gorm:"column:started_at" json:"started_at"`
	SubmittedAt *time.Time   `gorm:"column:submitted_at" json:"submitted_at,omitempty"`
	CompletedAt *time.Time   `gorm:"column:completed_at" json:"completed_at,omitempty"`
	DueDate     *time.Time   `gorm:"column:due_date" json:"due_date,omitempty"`

	Feedback datatypes.JSONType[ReviewFeedback] `gorm:"column:feedback" json:"feedback"`

	Signed           bool       `gorm:"column:signed" json:"signed"`
	SignedAt         *time.Time `gorm:"column:signed_at" json:"signed_at,omitempty"`
	DigitalSignature string     `gorm:"column:digital_signature" json:"digital_signature,omitempty"`

	RevisionHistory datatypes.JSONSlice[Revision] `gorm:"column:revision_history" json:"revision_history"`

	Document *Document `gorm:"foreignKey:DocumentID" json:"document,omitempty"`
	Reviewer *Reviewer `gorm:"foreignKey:ReviewerID" json:"reviewer,omitempty"`
}

func (Review) TableName() string {
	return "reviews"
}

// TimeSpentHours is the rounded number of hours between start and completion, if completed.
func (r *Review) TimeSpentHours() *int {
	if r.CompletedAt == nil {
		return nil
	}
	h := int(r.CompletedAt.Sub(r.StartedAt).Round(time.Hour) / time.Hour)
	return &h
}
