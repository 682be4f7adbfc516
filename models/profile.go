package models

import (
	"math"
	"time"

	"gorm.io/datatypes"
)

type Availability string

const (
	Available   Availability = "available"
	Busy        Availability = "busy"
	Unavailable Availability = "unavailable"
)

func (a Availability) Valid() bool {
	return a == Available || a == Busy || a == Unavailable
}

// WorkloadPercentage is round(current / maximum * 100). A zero maximum reads as fully loaded.
func WorkloadPercentage(current, maximum int) int {
	if maximum <= 0 {
		return 100
	}
	return int(math.Round(float64(current) / float64(maximum) * 100))
}

// IsAvailable is the assignment predicate shared by reviewers and auditors.
func IsAvailable(availability Availability, current, maximum int) bool {
	return availability == Available && current < maximum
}

type Reviewer struct {
	Base
	UserID            string                      `gorm:"column:user_id;type:varchar(36);uniqueIndex" json:"user_id"`
	User              *User                       `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Specialization    datatypes.JSONSlice[string] `gorm:"column:specialization" json:"specialization"`
	Experience        int                         `gorm:"column:experience" json:"experience"`
	CompletedReviews  int                         `gorm:"column:completed_reviews" json:"completed_reviews"`
	AverageReviewTime float64                     `gorm:"column:average_review_time" json:"average_review_time"`
	Rating            float64                     `gorm:"column:rating;default:5" json:"rating"`
	Availability      Availability                `gorm:"column:availability;size:20;default:available;index" json:"availability"`
	WorkloadCurrent   int                         `gorm:"column:workload_current;default:0" json:"workload_current"`
	WorkloadMaximum   int                         `gorm:"column:workload_maximum;default:10" json:"workload_maximum"`
}

func (Reviewer) TableName() string {
	return "reviewers"
}

func (r Reviewer) WorkloadPercentage() int {
	return WorkloadPercentage(r.WorkloadCurrent, r.WorkloadMaximum)
}

func (r Reviewer) IsAvailable() bool {
	return IsAvailable(r.Availability, r.WorkloadCurrent, r.WorkloadMaximum)
}

type AuditorPerformance struct {
	Accuracy    int `json:"accuracy"`
	Efficiency  int `json:"efficiency"`
	Consistency int `json:"consistency"`
}

type Auditor struct {
	Base
	UserID           string                                   `gorm:"column:user_id;type:varchar(36);uniqueIndex" json:"user_id"`
	User             *User                                    `gorm:"foreignKey:UserID" json:"user,omitempty"`
	LicenseNumber    string                                   `gorm:"column:license_number;size:64;uniqueIndex" json:"license_number"`
	Specialization   datatypes.JSONSlice[string]              `gorm:"column:specialization" json:"specialization"`
	Experience       int                                      `gorm:"column:experience" json:"experience"`
	CompletedAudits  int                                      `gorm:"column:completed_audits" json:"completed_audits"`
	AverageAuditTime float64                                  `gorm:"column:average_audit_time" json:"average_audit_time"`
	Rating           float64                                  `gorm:"column:rating;default:5" json:"rating"`
	Availability     Availability                             `gorm:"column:availability;size:20;default:available;index" json:"availability"`
	WorkloadCurrent  int                                      `gorm:"column:workload_current;default:0" json:"workload_current"`
	WorkloadMaximum  int                                      `gorm:"column:workload_maximum;default:8" json:"workload_maximum"`
	Performance      datatypes.JSONType[AuditorPerformance]   `gorm:"column:performance" json:"performance"`
	History          []AuditHistoryEntry                      `gorm:"foreignKey:AuditorID" json:"audit_history,omitempty"`
}

func (Auditor) TableName() string {
	return "auditors"
}

func (a Auditor) WorkloadPercentage() int {
	return WorkloadPercentage(a.WorkloadCurrent, a.WorkloadMaximum)
}

func (a Auditor) IsAvailable() bool {
	return IsAvailable(a.Availability, a.WorkloadCurrent, a.WorkloadMaximum)
}

// OverallPerformance averages the three performance scores.
func (a Auditor) OverallPerformance() int {
	p := a.Performance.Data()
	return int(math.Round(float64(p.Accuracy+p.Efficiency+p.Consistency) / 3))
}

type PersonKind string

const (
	KindReviewer PersonKind = "reviewer"
	KindAuditor  PersonKind = "auditor"
)

type AssignmentStatus string

const (
	AssignmentAssigned   AssignmentStatus = "assigned"
	AssignmentInProgress AssignmentStatus = "in_progress"
	AssignmentCompleted  AssignmentStatus = "completed"
	AssignmentRemoved    AssignmentStatus = "removed"
)

// AssignmentEntry is one row of a reviewer's or auditor's worklist.
type AssignmentEntry struct {
	Base
	PersonKind PersonKind       `gorm:"column:person_kind;size:16;index:idx_assignment_person" json:"person_kind"`
	PersonID   string           `gorm:"column:person_id;type:varchar(36);index:idx_assignment_person" json:"person_id"`
	DocumentID string           `gorm:"column:document_id;type:varchar(36);index" json:"document_id"`
	Status     AssignmentStatus `gorm:"column:status;size:20" json:"status"`
	AssignedAt time.Time        `gorm:"column:assigned_at" json:"assigned_at"`
	DueDate    *time.Time       `gorm:"column:due_date" json:"due_date,omitempty"`

	Document *Document `gorm:"foreignKey:DocumentID" json:"document,omitempty"`
}

func (AssignmentEntry) TableName() string {
	return "assignment_entries"
}

type AuditHistoryEntry struct {
	Base
	AuditorID     string    `gorm:"column:auditor_id;type:varchar(36);index" json:"auditor_id"`
	DocumentID    string    `gorm:"column:document_id;type:varchar(36)" json:"document_id"`
	InstituteID   string    `gorm:"column:institute_id;type:varchar(36)" json:"institute_id"`
	CompletedDate time.Time `gorm:"column:completed_date" json:"completed_date"`
	Outcome       string    `gorm:"column:outcome;size:32" json:"outcome"`
	Score         int       `gorm:"column:score" json:"score"`
}

func (AuditHistoryEntry) TableName() string {
	return "audit_history"
}
