package services

import (
	"context"
	"strings"
	"time"

	"accreditation-api/config"
	"accreditation-api/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var reviewerSpecializations = map[string]bool{
	"academic": true, "technical": true, "administrative": true,
	"financial": true, "infrastructure": true, "quality_assurance": true,
}

var auditorSpecializations = map[string]bool{
	"financial": true, "academic": true, "compliance": true,
	"quality_assurance": true, "infrastructure": true, "governance": true,
}

// ProfileService provisions and maintains reviewer and auditor capability profiles.
type ProfileService struct {
	db  *gorm.DB
	log *ActivityLog
	now func() time.Time
}

func NewProfileService(db *gorm.DB, log *ActivityLog) *ProfileService {
	if db == nil {
		db = config.DB
	}
	return &ProfileService{db: db, log: log, now: time.Now}
}

type ProfileInput struct {
	UserID          string
	Specialization  []string
	Experience      int
	WorkloadMaximum int
	LicenseNumber   string
}

func checkSpecializations(values []string, allowed map[string]bool) error {
	if len(values) == 0 {
		return invalid("Please add at least one specialization")
	}
	for _, v := range values {
		if !allowed[v] {
			return invalid("Invalid specialization %q", v)
		}
	}
	return nil
}

func (s *ProfileService) checkUser(tx *gorm.DB, userID string, role models.Role, table string) (*models.User, error) {
	var user models.User
	if err := tx.Where("id = ?", userID).Take(&user).Error; err != nil {
		if isNotFound(err) {
			return nil, notFound("User not found")
		}
		return nil, internal("failed to load user", err)
	}
	if user.Role != role {
		return nil, invalid("User must have the %s role", role)
	}
	var n int64
	if err := tx.Table(table).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		return nil, internal("failed to check profile", err)
	}
	if n > 0 {
		return nil, conflict("User already has a %s profile", role)
	}
	return &user, nil
}

// ProvisionReviewer binds a reviewer profile to a reviewer user.
func (s *ProfileService) ProvisionReviewer(ctx context.Context, actor *Actor, in ProfileInput, rc RequestContext) (*models.Reviewer, error) {
	if !actor.Is(models.RoleAdmin) {
		return nil, forbidden("Only admins can provision reviewers")
	}
	if err := checkSpecializations(in.Specialization, reviewerSpecializations); err != nil {
		return nil, err
	}
	if in.Experience < 0 {
		return nil, invalid("Experience cannot be negative")
	}
	db := s.db.WithContext(ctx)
	user, err := s.checkUser(db, in.UserID, models.RoleReviewer, "reviewers")
	if err != nil {
		return nil, err
	}
	r := &models.Reviewer{
		UserID:          user.ID,
		Specialization:  datatypes.JSONSlice[string](in.Specialization),
		Experience:      in.Experience,
		Rating:          5,
		Availability:    models.Available,
		WorkloadMaximum: in.WorkloadMaximum,
	}
	if r.WorkloadMaximum <= 0 {
		r.WorkloadMaximum = 10
	}
	if err := db.Create(r).Error; err != nil {
		return nil, internal("failed to create reviewer profile", err)
	}
	r.User = user
	s.log.Record(ctx, models.ActionUserUpdated, actor, rc, LogDetails{
		Target: &models.TargetResource{Kind: models.ResourceReviewer, ID: r.ID, Name: user.Name},
		Fields: map[string]interface{}{"profile": "reviewer", "userId": user.ID},
	})
	return r, nil
}

// ProvisionAuditor binds an auditor profile to an auditor user.
func (s *ProfileService) ProvisionAuditor(ctx context.Context, actor *Actor, in ProfileInput, rc RequestContext) (*models.Auditor, error) {
	if !actor.Is(models.RoleAdmin) {
		return nil, forbidden("Only admins can provision auditors")
	}
	if err := checkSpecializations(in.Specialization, auditorSpecializations); err != nil {
		return nil, err
	}
	license := strings.TrimSpace(in.LicenseNumber)
	if license == "" {
		return nil, invalid("Please add auditor license number")
	}
	if in.Experience < 0 {
		return nil, invalid("Experience cannot be negative")
	}
	db := s.db.WithContext(ctx)
	user, err := s.checkUser(db, in.UserID, models.RoleAuditor, "auditors")
	if err != nil {
		return nil, err
	}
	var n int64
	if err := db.Model(&models.Auditor{}).Where("license_number = ?", license).Count(&n).Error; err != nil {
		return nil, internal("failed to check license number", err)
	}
	if n > 0 {
		return nil, invalid("License number already registered")
	}
	a := &models.Auditor{
		UserID:          user.ID,
		LicenseNumber:   license,
		Specialization:  datatypes.JSONSlice[string](in.Specialization),
		Experience:      in.Experience,
		Rating:          5,
		Availability:    models.Available,
		WorkloadMaximum: in.WorkloadMaximum,
		Performance:     datatypes.NewJSONType(models.AuditorPerformance{Accuracy: 100, Efficiency: 100, Consistency: 100}),
	}
	if a.WorkloadMaximum <= 0 {
		a.WorkloadMaximum = 8
	}
	if err := db.Create(a).Error; err != nil {
		return nil, internal("failed to create auditor profile", err)
	}
	a.User = user
	s.log.Record(ctx, models.ActionUserUpdated, actor, rc, LogDetails{
		Target: &models.TargetResource{Kind: models.ResourceAuditor, ID: a.ID, Name: user.Name},
		Fields: map[string]interface{}{"profile": "auditor", "userId": user.ID, "licenseNumber": license},
	})
	return a, nil
}

// SetAvailability changes whether a reviewer or auditor accepts new assignments.
func (s *ProfileService) SetAvailability(ctx context.Context, actor *Actor, kind models.PersonKind, id string, availability models.Availability, rc RequestContext) error {
	if !actor.Is(models.RoleAdmin) {
		return forbidden("Only admins can change availability")
	}
	if !availability.Valid() {
		return invalid("Invalid availability %q", availability)
	}
	cols, ok := ledgerTables[kind]
	if !ok {
		return invalid("Unknown profile kind %q", kind)
	}
	res := s.db.WithContext(ctx).Table(cols.table).Where("id = ?", id).
		Updates(map[string]interface{}{"availability": availability, "updated_at": s.now()})
	if res.Error != nil {
		return internal("failed to update availability", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("%s not found", titleKind(kind))
	}
	target := models.ResourceReviewer
	if kind == models.KindAuditor {
		target = models.ResourceAuditor
	}
	s.log.Record(ctx, models.ActionUserUpdated, actor, rc, LogDetails{
		Target: &models.TargetResource{Kind: target, ID: id},
		Fields: map[string]interface{}{"availability": availability},
	})
	return nil
}
