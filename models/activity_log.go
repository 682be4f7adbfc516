package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Action string

const (
	ActionLogin                  Action = "login"
	ActionLogout                 Action = "logout"
	ActionLoginFailed            Action = "login_failed"
	ActionPasswordReset          Action = "password_reset"
	ActionPasswordChanged        Action = "password_changed"
	ActionDocumentUploaded       Action = "document_uploaded"
	ActionDocumentUpdated        Action = "document_updated"
	ActionDocumentDeleted        Action = "document_deleted"
	ActionDocumentDownloaded     Action = "document_downloaded"
	ActionReviewerAssigned       Action = "reviewer_assigned"
	ActionAuditorAssigned        Action = "auditor_assigned"
	ActionAssignmentRemoved      Action = "assignment_removed"
	ActionReviewStarted          Action = "review_started"
	ActionReviewUpdated          Action = "review_updated"
	ActionReviewSubmitted        Action = "review_submitted"
	ActionAuditStarted           Action = "audit_started"
	ActionAuditUpdated           Action = "audit_updated"
	ActionAuditCompleted         Action = "audit_completed"
	ActionInstituteCreated       Action = "institute_created"
	ActionInstituteUpdated       Action = "institute_updated"
	ActionInstituteStatusChanged Action = "institute_status_changed"
	ActionUserCreated            Action = "user_created"
	ActionUserUpdated            Action = "user_updated"
	ActionUserStatusChanged      Action = "user_status_changed"
	ActionUserRoleChanged        Action = "user_role_changed"
	ActionNotificationSent       Action = "notification_sent"
	ActionReportGenerated        Action = "report_generated"
	ActionSystemBackup           Action = "system_backup"
	ActionDataExport             Action = "data_export"
	ActionSecurityAlert          Action = "security_alert"
	ActionAccountLocked          Action = "account_locked"
	ActionAccountUnlocked        Action = "account_unlocked"

	ActionDocumentStatusChanged Action = "document_status_changed"
	ActionDocumentUploadFailed  Action = "document_upload_failed"
	ActionAuditFindingAdded     Action = "audit_finding_added"
	ActionLogsCleanedUp         Action = "logs_cleaned_up"
)

// APIRequestAction names the entry written for a plain HTTP request.
func APIRequestAction(method string) Action {
	return Action("api_request_" + strings.ToLower(method))
}

type Category string

const (
	CategoryAuthentication Category = "authentication"
	CategoryAuthorization  Category = "authorization"
	CategoryDocument       Category = "document"
	CategoryReview         Category = "review"
	CategoryAudit          Category = "audit"
	CategoryAdmin          Category = "admin"
	CategorySecurity       Category = "security"
	CategorySystem         Category = "system"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Protected severities survive routine retention cleanup.
func (s Severity) Protected() bool {
	return s == SeverityCritical || s == SeverityHigh
}

type LogStatus string

const (
	LogSuccess LogStatus = "success"
	LogFailure LogStatus = "failure"
	LogWarning LogStatus = "warning"
	LogInfo    LogStatus = "info"
)

func (s LogStatus) Valid() bool {
	switch s {
	case LogSuccess, LogFailure, LogWarning, LogInfo:
		return true
	}
	return false
}

var categoryByAction = map[Action]Category{
	ActionLogin:                  CategoryAuthentication,
	ActionLogout:                 CategoryAuthentication,
	ActionLoginFailed:            CategoryAuthentication,
	ActionPasswordReset:          CategoryAuthentication,
	ActionPasswordChanged:        CategoryAuthentication,
	ActionDocumentUploaded:       CategoryDocument,
	ActionDocumentUpdated:        CategoryDocument,
	ActionDocumentDeleted:        CategoryDocument,
	ActionDocumentDownloaded:     CategoryDocument,
	ActionReviewerAssigned:       CategoryAdmin,
	ActionAuditorAssigned:        CategoryAdmin,
	ActionAssignmentRemoved:      CategoryAdmin,
	ActionReviewStarted:          CategoryReview,
	ActionReviewUpdated:          CategoryReview,
	ActionReviewSubmitted:        CategoryReview,
	ActionAuditStarted:           CategoryAudit,
	ActionAuditUpdated:           CategoryAudit,
	ActionAuditCompleted:         CategoryAudit,
	ActionAuditFindingAdded:      CategoryAudit,
	ActionInstituteCreated:       CategoryAdmin,
	ActionInstituteUpdated:       CategoryAdmin,
	ActionInstituteStatusChanged: CategoryAdmin,
	ActionUserCreated:            CategoryAdmin,
	ActionUserUpdated:            CategoryAdmin,
	ActionUserStatusChanged:      CategoryAdmin,
	ActionUserRoleChanged:        CategoryAdmin,
	ActionAccountLocked:          CategorySecurity,
	ActionAccountUnlocked:        CategorySecurity,
	ActionSecurityAlert:          CategorySecurity,
}

var severityByAction = map[Action]Severity{
	ActionLoginFailed:     SeverityHigh,
	ActionAccountLocked:   SeverityCritical,
	ActionSecurityAlert:   SeverityCritical,
	ActionPasswordReset:   SeverityMedium,
	ActionUserRoleChanged: SeverityHigh,
	ActionDocumentDeleted: SeverityHigh,
	ActionAuditCompleted:  SeverityMedium,
	ActionReviewSubmitted: SeverityMedium,
}

// CategoryFor looks up the fixed category of an action. Unknown actions are system.
func CategoryFor(a Action) Category {
	if c, ok := categoryByAction[a]; ok {
		return c
	}
	return CategorySystem
}

// SeverityFor looks up the default severity of an action. Unknown actions are low.
func SeverityFor(a Action) Severity {
	if s, ok := severityByAction[a]; ok {
		return s
	}
	return SeverityLow
}

type ResourceKind string

const (
	ResourceUser      ResourceKind = "User"
	ResourceInstitute ResourceKind = "Institute"
	ResourceDocument  ResourceKind = "Document"
	ResourceReview    ResourceKind = "Review"
	ResourceAudit     ResourceKind = "Audit"
	ResourceReviewer  ResourceKind = "Reviewer"
	ResourceAuditor   ResourceKind = "Auditor"
)

// TargetResource is a tagged reference to whichever entity an entry is about.
type TargetResource struct {
	Kind ResourceKind `gorm:"column:kind;size:20;index:idx_log_target" json:"type"`
	ID   string       `gorm:"column:id;type:varchar(36);index:idx_log_target" json:"id"`
	Name string       `gorm:"column:name;size:200" json:"name,omitempty"`
}

type ActivityLog struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	UserID   *string  `gorm:"column:user_id;type:varchar(36);index" json:"user_id,omitempty"`
	Action   Action   `gorm:"column:action;size:64;index" json:"action"`
	Category Category `gorm:"column:category;size:20;index" json:"category"`
	Severity Severity `gorm:"column:severity;size:10;index" json:"severity"`

	Target  TargetResource    `gorm:"embedded;embeddedPrefix:target_" json:"target_resource"`
	Details datatypes.JSONMap `gorm:"column:details" json:"details"`

	IP        string `gorm:"column:ip;size:64;index" json:"ip"`
	UserAgent string `gorm:"column:user_agent;size:512" json:"user_agent"`
	Device    string `gorm:"column:device;size:16" json:"device"`
	Browser   string `gorm:"column:browser;size:32" json:"browser"`
	OS        string `gorm:"column:os;size:32" json:"os"`

	Status       LogStatus `gorm:"column:status;size:10;index" json:"status"`
	ErrorMessage string    `gorm:"column:error_message" json:"error_message,omitempty"`
	ErrorCode    string    `gorm:"column:error_code;size:64" json:"error_code,omitempty"`
	DurationMs   int64     `gorm:"column:duration_ms" json:"duration_ms"`

	SessionID     string                      `gorm:"column:session_id;size:64;index" json:"session_id,omitempty"`
	CorrelationID string                      `gorm:"column:correlation_id;size:64" json:"correlation_id,omitempty"`
	Tags          datatypes.JSONSlice[string] `gorm:"column:tags" json:"tags"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (ActivityLog) TableName() string {
	return "activity_logs"
}

func (l *ActivityLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}
