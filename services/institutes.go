package services

import (
	"context"
	"strings"
	"time"

	"accreditation-api/config"
	"accreditation-api/models"
	"accreditation-api/utils"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var instituteTypes = map[string]bool{
	"university": true, "college": true, "school": true, "training_center": true, "other": true,
}

var accreditationLevels = map[string]bool{
	"basic": true, "intermediate": true, "advanced": true, "premium": true,
}

var accreditationStatuses = map[string]bool{
	"not_started": true, "in_progress": true, "under_review": true, "auditing": true,
	"approved": true, "rejected": true, "expired": true,
}

type InstituteService struct {
	db  *gorm.DB
	log *ActivityLog
	now func() time.Time
}

func NewInstituteService(db *gorm.DB, log *ActivityLog) *InstituteService {
	if db == nil {
		db = config.DB
	}
	return &InstituteService{db: db, log: log, now: time.Now}
}

// InstituteInput carries the editable institute fields. Nil members are left untouched on update.
type InstituteInput struct {
	Name                *string
	Code                *string
	Type                *string
	AccreditationLevel  *string
	AccreditationStatus *string
	ContactEmail        *string
	ContactPhone        *string
	Website             *string
	Street              *string
	City                *string
	State               *string
	Country             *string
	ZipCode             *string
	AdministratorID     *string
	EstablishedDate     *time.Time
	ComplianceScore     *int
	NextAuditDue        *time.Time
	Notes               *string
}

func trimmed(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

// columns validates the set fields and returns them as column updates.
func (in InstituteInput) columns() (map[string]interface{}, error) {
	out := map[string]interface{}{}
	if in.Name != nil {
		name := utils.SanitizeInput(*in.Name)
		if name == "" || len(name) > 100 {
			return nil, invalid("Institute name must be between 1 and 100 characters")
		}
		out["name"] = name
	}
	if in.Code != nil {
		code := strings.ToUpper(trimmed(in.Code))
		if code == "" {
			return nil, invalid("Please add institute code")
		}
		out["code"] = code
	}
	if in.Type != nil {
		if !instituteTypes[trimmed(in.Type)] {
			return nil, invalid("Invalid institute type %q", *in.Type)
		}
		out["type"] = trimmed(in.Type)
	}
	if in.AccreditationLevel != nil {
		if !accreditationLevels[trimmed(in.AccreditationLevel)] {
			return nil, invalid("Invalid accreditation level %q", *in.AccreditationLevel)
		}
		out["accreditation_level"] = trimmed(in.AccreditationLevel)
	}
	if in.AccreditationStatus != nil {
		if !accreditationStatuses[trimmed(in.AccreditationStatus)] {
			return nil, invalid("Invalid accreditation status %q", *in.AccreditationStatus)
		}
		out["accreditation_status"] = trimmed(in.AccreditationStatus)
	}
	if in.ContactEmail != nil {
		email := strings.ToLower(trimmed(in.ContactEmail))
		if !utils.ValidateEmail(email) {
			return nil, invalid("Please add a valid contact email")
		}
		out["contact_email"] = email
	}
	if in.ComplianceScore != nil {
		if *in.ComplianceScore < 0 || *in.ComplianceScore > 100 {
			return nil, invalid("Compliance score must be between 0 and 100")
		}
		out["compliance_score"] = *in.ComplianceScore
	}
	if in.Notes != nil {
		notes := utils.SanitizeInput(*in.Notes)
		if len(notes) > 1000 {
			return nil, invalid("Notes cannot be more than 1000 characters")
		}
		out["notes"] = notes
	}
	plain := map[string]*string{
		"contact_phone":    in.ContactPhone,
		"website":          in.Website,
		"street":           in.Street,
		"city":             in.City,
		"state":            in.State,
		"country":          in.Country,
		"zip_code":         in.ZipCode,
		"administrator_id": in.AdministratorID,
	}
	for col, v := range plain {
		if v != nil {
			out[col] = trimmed(v)
		}
	}
	if in.EstablishedDate != nil {
		out["established_date"] = *in.EstablishedDate
	}
	if in.NextAuditDue != nil {
		out["next_audit_due"] = *in.NextAuditDue
	}
	return out, nil
}

func (s *InstituteService) checkAdministrator(tx *gorm.DB, userID string) error {
	var user models.User
	if err := tx.Where("id = ?", userID).Take(&user).Error; err != nil {
		if isNotFound(err) {
			return invalid("Administrator user not found")
		}
		return internal("failed to load administrator", err)
	}
	if user.Role != models.RoleInstitute {
		return invalid("Institute administrator must be an institute user")
	}
	return nil
}

func (s *InstituteService) codeTaken(tx *gorm.DB, code, exceptID string) (bool, error) {
	var n int64
	q := tx.Model(&models.Institute{}).Where("code = ?", code)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&n).Error; err != nil {
		return false, internal("failed to check institute code", err)
	}
	return n > 0, nil
}

func instituteTarget(inst *models.Institute) *models.TargetResource {
	return &models.TargetResource{Kind: models.ResourceInstitute, ID: inst.ID, Name: inst.Name}
}

// Create registers an institute managed by an institute user.
func (s *InstituteService) Create(ctx context.Context, actor *Actor, in InstituteInput, rc RequestContext) (*models.Institute, error) {
	if !actor.Is(models.RoleAdmin) {
		return nil, forbidden("Only admins can create institutes")
	}
	required := map[string]*string{
		"Please add institute name":      in.Name,
		"Please add institute code":      in.Code,
		"Please specify institute type":  in.Type,
		"Please add contact email":       in.ContactEmail,
		"Please assign an administrator": in.AdministratorID,
	}
	for msg, v := range required {
		if trimmed(v) == "" {
			return nil, invalid("%s", msg)
		}
	}
	cols, err := in.columns()
	if err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	if err := s.checkAdministrator(db, cols["administrator_id"].(string)); err != nil {
		return nil, err
	}
	if taken, err := s.codeTaken(db, cols["code"].(string), ""); err != nil {
		return nil, err
	} else if taken {
		return nil, invalid("Institute code already exists")
	}

	inst := &models.Institute{
		Status:              models.InstitutePendingApproval,
		AccreditationLevel:  "basic",
		AccreditationStatus: "not_started",
		DocumentIDs:         datatypes.JSONSlice[string]{},
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(inst).Error; err != nil {
			return internal("failed to create institute", err)
		}
		if err := tx.Model(inst).Updates(cols).Error; err != nil {
			return internal("failed to save institute", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	created, err := s.load(db, inst.ID)
	if err != nil {
		return nil, err
	}

	s.log.Record(ctx, models.ActionInstituteCreated, actor, rc, LogDetails{
		Target: instituteTarget(created),
		Fields: map[string]interface{}{"instituteCode": created.Code},
	})
	return created, nil
}

func (s *InstituteService) load(tx *gorm.DB, id string) (*models.Institute, error) {
	var inst models.Institute
	if err := tx.Preload("Administrator").Where("id = ?", id).Take(&inst).Error; err != nil {
		if isNotFound(err) {
			return nil, notFound("Institute not found")
		}
		return nil, internal("failed to load institute", err)
	}
	return &inst, nil
}

// Update edits an institute's fields.
func (s *InstituteService) Update(ctx context.Context, actor *Actor, id string, in InstituteInput, rc RequestContext) (*models.Institute, error) {
	if !actor.Is(models.RoleAdmin) {
		return nil, forbidden("Only admins can update institutes")
	}
	db := s.db.WithContext(ctx)
	if _, err := s.load(db, id); err != nil {
		return nil, err
	}
	cols, err := in.columns()
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, invalid("No institute fields to update")
	}
	if admin, ok := cols["administrator_id"].(string); ok {
		if err := s.checkAdministrator(db, admin); err != nil {
			return nil, err
		}
	}
	if code, ok := cols["code"].(string); ok {
		if taken, err := s.codeTaken(db, code, id); err != nil {
			return nil, err
		} else if taken {
			return nil, invalid("Institute code already exists")
		}
	}
	fields := make([]string, 0, len(cols))
	for k := range cols {
		fields = append(fields, k)
	}
	cols["updated_at"] = s.now()
	if err := db.Model(&models.Institute{}).Where("id = ?", id).Updates(cols).Error; err != nil {
		return nil, internal("failed to update institute", err)
	}
	updated, err := s.load(db, id)
	if err != nil {
		return nil, err
	}
	s.log.Record(ctx, models.ActionInstituteUpdated, actor, rc, LogDetails{
		Target: instituteTarget(updated),
		Fields: map[string]interface{}{"updatedFields": fields},
	})
	return updated, nil
}

// SetStatus changes an institute's status. Institutes are deactivated, never deleted.
func (s *InstituteService) SetStatus(ctx context.Context, actor *Actor, id string, status models.InstituteStatus, rc RequestContext) (*models.Institute, error) {
	if !actor.Is(models.RoleAdmin) {
		return nil, forbidden("Only admins can change institute status")
	}
	if !status.Valid() {
		return nil, invalid("Invalid institute status %q", status)
	}
	db := s.db.WithContext(ctx)
	inst, err := s.load(db, id)
	if err != nil {
		return nil, err
	}
	old := inst.Status
	if err := db.Model(&models.Institute{}).Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "updated_at": s.now()}).Error; err != nil {
		return nil, internal("failed to update institute status", err)
	}
	inst.Status = status
	s.log.Record(ctx, models.ActionInstituteStatusChanged, actor, rc, LogDetails{
		Target: instituteTarget(inst),
		Fields: map[string]interface{}{"oldStatus": old, "newStatus": status},
	})
	return inst, nil
}

// Get returns one institute to an admin or to its administrator.
func (s *InstituteService) Get(ctx context.Context, actor *Actor, id string) (*models.Institute, error) {
	inst, err := s.load(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	if !actor.Is(models.RoleAdmin) && inst.AdministratorID != actor.ID {
		return nil, forbidden("Access denied")
	}
	return inst, nil
}

type InstituteFilter struct {
	Status string
	Search string
	Page   utils.Pagination
}

type InstitutePage struct {
	Institutes []models.Institute `json:"institutes"`
	Pagination utils.Pagination   `json:"pagination"`
}

func (s *InstituteService) List(ctx context.Context, f InstituteFilter) (*InstitutePage, error) {
	q := s.db.WithContext(ctx).Model(&models.Institute{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(code) LIKE ?", like, like)
	}
	if f.Page.Limit == 0 {
		f.Page = utils.NewPagination("", "", utils.DefaultPageLimit)
	}
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, internal("failed to count institutes", err)
	}
	var out []models.Institute
	if err := q.Session(&gorm.Session{}).Preload("Administrator").Order("created_at DESC").
		Limit(f.Page.Limit).Offset(f.Page.Offset()).Find(&out).Error; err != nil {
		return nil, internal("failed to load institutes", err)
	}
	return &InstitutePage{Institutes: out, Pagination: f.Page.WithTotal(total)}, nil
}
