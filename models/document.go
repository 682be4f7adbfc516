package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type DocumentStatus string

const (
	StatusUploaded          DocumentStatus = "uploaded"
	StatusAssignedForReview DocumentStatus = "assigned_for_review"
	StatusUnderReview       DocumentStatus = "under_review"
	StatusReviewCompleted   DocumentStatus = "review_completed"
	StatusAssignedForAudit  DocumentStatus = "assigned_for_audit"
	StatusUnderAudit        DocumentStatus = "under_audit"
	StatusAuditCompleted    DocumentStatus = "audit_completed"
	StatusApproved          DocumentStatus = "approved"
	StatusRejected          DocumentStatus = "rejected"
	StatusRevisionRequired  DocumentStatus = "revision_required"
)

var documentStatuses = []DocumentStatus{
	StatusUploaded, StatusAssignedForReview, StatusUnderReview, StatusReviewCompleted,
	StatusAssignedForAudit, StatusUnderAudit, StatusAuditCompleted,
	StatusApproved, StatusRejected, StatusRevisionRequired,
}

// DocumentStatuses returns every lifecycle status in workflow order.
func DocumentStatuses() []DocumentStatus {
	out := make([]DocumentStatus, len(documentStatuses))
	copy(out, documentStatuses)
	return out
}

func (s DocumentStatus) Valid() bool {
	for _, v := range documentStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Locked reports whether institute edits and deletes are blocked in this status.
func (s DocumentStatus) Locked() bool {
	return s == StatusUnderReview || s == StatusUnderAudit || s == StatusApproved
}

// Terminal reports whether the status ends the workflow.
func (s DocumentStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

const (
	StageUpload           = "upload"
	StageReviewAssignment = "review_assignment"
	StageReview           = "review"
	StageAuditAssignment  = "audit_assignment"
	StageAudit            = "audit"
	StageFinalDecision    = "final_decision"
)

var stageByStatus = map[DocumentStatus]string{
	StatusUploaded:          StageUpload,
	StatusAssignedForReview: StageReviewAssignment,
	StatusUnderReview:       StageReview,
	StatusReviewCompleted:   StageReview,
	StatusAssignedForAudit:  StageAuditAssignment,
	StatusUnderAudit:        StageAudit,
	StatusAuditCompleted:    StageAudit,
	StatusApproved:          StageFinalDecision,
	StatusRejected:          StageFinalDecision,
	StatusRevisionRequired:  StageFinalDecision,
}

// StageForStatus maps a document status to its workflow stage name.
func StageForStatus(s DocumentStatus) string {
	if stage, ok := stageByStatus[s]; ok {
		return stage
	}
	return StageUpload
}

const (
	StagePending    = "pending"
	StageInProgress = "in_progress"
	StageCompleted  = "completed"
	StageSkipped    = "skipped"
)

var documentTypes = map[string]bool{
	"accreditation_application": true,
	"financial_report":          true,
	"academic_report":           true,
	"infrastructure_report":     true,
	"compliance_certificate":    true,
	"quality_manual":            true,
	"other":                     true,
}

func ValidDocumentType(t string) bool { return documentTypes[t] }

func ValidDocumentCategory(c string) bool {
	return c == "mandatory" || c == "optional" || c == "supporting"
}

type WorkflowStage struct {
	Name        string     `json:"name"`
	Status      string     `json:"status"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	AssignedTo  string     `json:"assigned_to,omitempty"`
	Notes       string     `json:"notes,omitempty"`
}

type FileVersion struct {
	Version    int       `json:"version"`
	FileName   string    `json:"file_name"`
	StorageURL string    `json:"storage_url"`
	StorageID  string    `json:"storage_id"`
	UploadedAt time.Time `json:"uploaded_at"`
	UploadedBy string    `json:"uploaded_by"`
	Reason     string    `json:"reason,omitempty"`
}

type FileInfo struct {
	OriginalName string `gorm:"column:original_name" json:"original_name"`
	FileName     string `gorm:"column:file_name" json:"file_name"`
	FileSize     int64  `gorm:"column:file_size" json:"file_size"`
	MimeType     string `gorm:"column:mime_type;size:100" json:"mime_type"`
	StorageURL   string `gorm:"column:storage_url" json:"storage_url"`
	StorageID    string `gorm:"column:storage_id" json:"storage_id"`
	Checksum     string `gorm:"column:checksum;size:128" json:"checksum"`
}

type Document struct {
	Base
	Title       string `gorm:"column:title;size:200" json:"title"`
	Description string `gorm:"column:description;size:1000" json:"description"`
	Type        string `gorm:"column:type;size:40;index" json:"type"`
	Category    string `gorm:"column:category;size:20;default:mandatory" json:"category"`
	Priority    string `gorm:"column:priority;size:20;default:medium" json:"priority"`
	InstituteID string `gorm:"column:institute_id;type:varchar(36);index" json:"institute_id"`
	UploadedBy  string `gorm:"column:uploaded_by;type:varchar(36);index" json:"uploaded_by"`

	File FileInfo `gorm:"embedded;embeddedPrefix:file_" json:"file"`

	Status             DocumentStatus `gorm:"column:status;size:32;index" json:"status"`
	AssignedReviewerID *string        `gorm:"column:assigned_reviewer_id;type:varchar(36);index" json:"assigned_reviewer_id,omitempty"`
	AssignedAuditorID  *string        `gorm:"column:assigned_auditor_id;type:varchar(36);index" json:"assigned_auditor_id,omitempty"`
	ReviewerAssignedBy *string        `gorm:"column:reviewer_assigned_by;type:varchar(36)" json:"reviewer_assigned_by,omitempty"`
	AuditorAssignedBy  *string        `gorm:"column:auditor_assigned_by;type:varchar(36)" json:"auditor_assigned_by,omitempty"`
	ReviewerAssignedAt *time.Time     `gorm:"column:reviewer_assigned_at" json:"reviewer_assigned_at,omitempty"`
	AuditorAssignedAt  *time.Time     `gorm:"column:auditor_assigned_at" json:"auditor_assigned_at,omitempty"`
	ReviewDue          *time.Time     `gorm:"column:review_due" json:"review_due,omitempty"`
	AuditDue           *time.Time     `gorm:"column:audit_due" json:"audit_due,omitempty"`
	FinalDue           *time.Time     `gorm:"column:final_due" json:"final_due,omitempty"`

	Version          int                              `gorm:"column:version;default:1" json:"version"`
	PreviousVersions datatypes.JSONSlice[FileVersion] `gorm:"column:previous_versions" json:"previous_versions"`
	Tags             datatypes.JSONSlice[string]      `gorm:"column:tags" json:"tags"`

	CurrentStage string                             `gorm:"column:current_stage;size:32" json:"current_stage"`
	Stages       datatypes.JSONSlice[WorkflowStage] `gorm:"column:stages" json:"stages"`

	AccessCount   int        `gorm:"column:access_count" json:"access_count"`
	DownloadCount int        `gorm:"column:download_count" json:"download_count"`
	LastModified  *time.Time `gorm:"column:last_modified" json:"last_modified,omitempty"`

	// LockVersion is bumped on every guarded write; a stale writer gets a conflict.
	LockVersion int            `gorm:"column:lock_version;default:0" json:"-"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	Institute *Institute `gorm:"foreignKey:InstituteID" json:"institute,omitempty"`
	Uploader  *User      `gorm:"foreignKey:UploadedBy" json:"uploader,omitempty"`
}

func (Document) TableName() string {
	return "documents"
}

// HasStage reports whether a stage with the given name was already recorded.
func (d *Document) HasStage(name string) bool {
	for _, s := range d.Stages {
		if s.Name == name {
			return true
		}
	}
	return false
}
