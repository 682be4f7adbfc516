package models

import (
	"math"
	"time"

	"gorm.io/datatypes"
)

type AuditStatus string

const (
	AuditAssigned    AuditStatus = "assigned"
	AuditInProgress  AuditStatus = "in_progress"
	AuditUnderReview AuditStatus = "under_review"
	AuditCompleted   AuditStatus = "completed"
	AuditOnHold      AuditStatus = "on_hold"
)

type Outcome string

const (
	OutcomeApproved               Outcome = "approved"
	OutcomeApprovedWithConditions Outcome = "approved_with_conditions"
	OutcomeRejected               Outcome = "rejected"
	OutcomeRequiresRevision       Outcome = "requires_revision"
)

func (o Outcome) Valid() bool {
	switch o {
	case OutcomeApproved, OutcomeApprovedWithConditions, OutcomeRejected, OutcomeRequiresRevision:
		return true
	}
	return false
}

var findingCategories = map[string]bool{
	"critical": true, "major": true, "minor": true, "observation": true, "commendation": true,
}

func ValidFindingCategory(c string) bool { return findingCategories[c] }

var complianceLevels = map[string]bool{
	"fully_compliant": true, "mostly_compliant": true, "partially_compliant": true, "non_compliant": true,
}

func ValidComplianceLevel(c string) bool { return complianceLevels[c] }

type CriteriaValidation struct {
	CriteriaName      string  `json:"criteria_name"`
	ReviewerScore     float64 `json:"reviewer_score"`
	AuditorScore      float64 `json:"auditor_score"`
	Variance          float64 `json:"variance"`
	Acceptable        bool    `json:"acceptable"`
	AuditorComments   string  `json:"auditor_comments,omitempty"`
	EvidenceValidated bool    `json:"evidence_validated"`
}

type StandardVerification struct {
	Standard            string   `json:"standard"`
	Version             string   `json:"version,omitempty"`
	ReviewerAssessment  string   `json:"reviewer_assessment,omitempty"`
	AuditorVerification string   `json:"auditor_verification,omitempty"`
	Compliant           bool     `json:"compliant"`
	Gaps                []string `json:"gaps,omitempty"`
	Recommendations     string   `json:"recommendations,omitempty"`
}

type ComplianceCheck struct {
	StandardsVerification []StandardVerification `json:"standards_verification"`
	OverallCompliance     string                 `json:"overall_compliance"`
}

type Finding struct {
	Category       string `json:"category"`
	Description    string `json:"description"`
	Evidence       string `json:"evidence,omitempty"`
	Impact         string `json:"impact,omitempty"`
	Recommendation string `json:"recommendation,omitempty"`
	Timeline       string `json:"timeline,omitempty"`
	Responsible    string `json:"responsible,omitempty"`
}

type Risk struct {
	Description string `json:"description"`
	Probability string `json:"probability,omitempty"`
	Impact      string `json:"impact,omitempty"`
	Mitigation  string `json:"mitigation,omitempty"`
}

type RiskAssessment struct {
	Risks       []Risk `json:"risks"`
	OverallRisk string `json:"overall_risk"`
}

type Condition struct {
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Priority    string     `json:"priority,omitempty"`
}

type AuditQuality struct {
	Thoroughness int    `json:"thoroughness,omitempty"`
	Accuracy     int    `json:"accuracy,omitempty"`
	Timeliness   int    `json:"timeliness,omitempty"`
	Notes        string `json:"notes,omitempty"`
}

// TrailEntry is one append-only step of an audit's own action trail.
type TrailEntry struct {
	Action      string                 `json:"action"`
	PerformedBy string                 `json:"performed_by"`
	Timestamp   time.Time              `json:"timestamp"`
	Details     map[string]interface{} `json:"details,omitempty"`
	IP          string                 `json:"ip"`
	UserAgent   string                 `json:"user_agent"`
}

type Audit struct {
	Base
	DocumentID  string `gorm:"column:document_id;type:varchar(36);index" json:"document_id"`
	ReviewID    string `gorm:"column:review_id;type:varchar(36);index" json:"review_id"`
	AuditorID   string `gorm:"column:auditor_id;type:varchar(36);index" json:"auditor_id"`
	InstituteID string `gorm:"column:institute_id;type:varchar(36);index" json:"institute_id"`

	AccuracyScore      int                                     `gorm:"column:accuracy_score" json:"accuracy_score"`
	CompletenessScore  int                                     `gorm:"column:completeness_score" json:"completeness_score"`
	ConsistencyScore   int                                     `gorm:"column:consistency_score" json:"consistency_score"`
	ValidationComments string                                  `gorm:"column:validation_comments" json:"validation_comments,omitempty"`
	CriteriaValidation datatypes.JSONSlice[CriteriaValidation] `gorm:"column:criteria_validation" json:"criteria_validation"`
	Compliance         datatypes.JSONType[ComplianceCheck]     `gorm:"column:compliance" json:"compliance"`
	Findings           datatypes.JSONSlice[Finding]            `gorm:"column:findings" json:"findings"`
	Risk               datatypes.JSONType[RiskAssessment]      `gorm:"column:risk" json:"risk"`

	Outcome       *Outcome                       `gorm:"column:outcome;size:32;index" json:"outcome,omitempty"`
	FinalScore    *int                           `gorm:"column:final_score" json:"final_score,omitempty"`
	Justification *string                        `gorm:"column:justification" json:"justification,omitempty"`
	Conditions    datatypes.JSONSlice[Condition] `gorm:"column:conditions" json:"conditions"`
	ValidityStart *time.Time                     `gorm:"column:validity_start" json:"validity_start,omitempty"`
	ValidityEnd   *time.Time                     `gorm:"column:validity_end" json:"validity_end,omitempty"`

	Status      AuditStatus `gorm:"column:status;size:20;default:assigned;index" json:"status"`
	AssignedAt  time.Time   `gorm:"column:assigned_at" json:"assigned_at"`
	StartedAt   *time.Time  `gorm:"column:started_at" json:"started_at,omitempty"`
	SubmittedAt *time.Time  `gorm:"column:submitted_at" json:"submitted_at,omitempty"`
	CompletedAt *time.Time  `gorm:"column:completed_at" json:"completed_at,omitempty"`
	DueDate     *time.Time  `gorm:"column:due_date" json:"due_date,omitempty"`

	Quality datatypes.JSONType[AuditQuality] `gorm:"column:quality" json:"quality"`

	Signed           bool       `gorm:"column:signed" json:"signed"`
	SignedAt         *time.Time `gorm:"column:signed_at" json:"signed_at,omitempty"`
	DigitalSignature string     `gorm:"column:digital_signature" json:"digital_signature,omitempty"`
	SignatureIP      string     `gorm:"column:signature_ip;size:64" json:"signature_ip,omitempty"`

	Trail datatypes.JSONSlice[TrailEntry] `gorm:"column:trail" json:"audit_trail"`

	Document *Document `gorm:"foreignKey:DocumentID" json:"document,omitempty"`
	Review   *Review   `gorm:"foreignKey:ReviewID" json:"review,omitempty"`
	Auditor  *Auditor  `gorm:"foreignKey:AuditorID" json:"auditor,omitempty"`
}

func (Audit) TableName() string {
	return "audits"
}

// OverallAuditScore averages the three review-validation scores.
func (a *Audit) OverallAuditScore() int {
	return int(math.Round(float64(a.AccuracyScore+a.CompletenessScore+a.ConsistencyScore) / 3))
}

// AppendTrail adds one entry to the audit's own action trail.
func (a *Audit) AppendTrail(e TrailEntry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	a.Trail = append(a.Trail, e)
}
