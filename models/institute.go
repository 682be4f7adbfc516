package models

import (
	"time"

	"gorm.io/datatypes"
)

type InstituteStatus string

const (
	InstituteActive          InstituteStatus = "active"
	InstituteInactive        InstituteStatus = "inactive"
	InstituteSuspended       InstituteStatus = "suspended"
	InstitutePendingApproval InstituteStatus = "pending_approval"
)

func (s InstituteStatus) Valid() bool {
	switch s {
	case InstituteActive, InstituteInactive, InstituteSuspended, InstitutePendingApproval:
		return true
	}
	return false
}

type Institute struct {
	Base
	Name                string                      `gorm:"column:name;size:100" json:"name"`
	Code                string                      `gorm:"column:code;size:32;uniqueIndex" json:"code"`
	Type                string                      `gorm:"column:type;size:32" json:"type"`
	AccreditationLevel  string                      `gorm:"column:accreditation_level;size:20;default:basic" json:"accreditation_level"`
	ContactEmail        string                      `gorm:"column:contact_email;size:191" json:"contact_email"`
	ContactPhone        string                      `gorm:"column:contact_phone;size:40" json:"contact_phone"`
	Website             string                      `gorm:"column:website" json:"website,omitempty"`
	Street              string                      `gorm:"column:street" json:"street"`
	City                string                      `gorm:"column:city" json:"city"`
	State               string                      `gorm:"column:state" json:"state"`
	Country             string                      `gorm:"column:country" json:"country"`
	ZipCode             string                      `gorm:"column:zip_code;size:20" json:"zip_code"`
	AdministratorID     string                      `gorm:"column:administrator_id;type:varchar(36);index" json:"administrator_id"`
	Administrator       *User                       `gorm:"foreignKey:AdministratorID" json:"administrator,omitempty"`
	Status              InstituteStatus             `gorm:"column:status;size:20;default:pending_approval" json:"status"`
	AccreditationStatus string                      `gorm:"column:accreditation_status;size:20;default:not_started" json:"accreditation_status"`
	EstablishedDate     *time.Time                  `gorm:"column:established_date" json:"established_date,omitempty"`
	ComplianceScore     int                         `gorm:"column:compliance_score" json:"compliance_score"`
	LastAuditDate       *time.Time                  `gorm:"column:last_audit_date" json:"last_audit_date,omitempty"`
	NextAuditDue        *time.Time                  `gorm:"column:next_audit_due" json:"next_audit_due,omitempty"`
	Notes               string                      `gorm:"column:notes;size:1000" json:"notes,omitempty"`
	DocumentIDs         datatypes.JSONSlice[string] `gorm:"column:document_ids" json:"document_ids"`
}

func (Institute) TableName() string {
	return "institutes"
}
