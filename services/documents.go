package services

import (
	"context"
	"io"
	"strings"
	"time"

	"accreditation-api/config"
	"accreditation-api/metrics"
	"accreditation-api/models"
	"accreditation-api/storage"
	"accreditation-api/utils"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const documentFolder = "documents"

type DocumentService struct {
	db       *gorm.DB
	ledger   *Ledger
	log      *ActivityLog
	notifier Notifier
	blobs    storage.BlobStore
	now      func() time.Time
}

func NewDocumentService(db *gorm.DB, ledger *Ledger, log *ActivityLog, notifier Notifier, blobs storage.BlobStore) *DocumentService {
	if db == nil {
		db = config.DB
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &DocumentService{db: db, ledger: ledger, log: log, notifier: notifier, blobs: blobs, now: time.Now}
}

// Upload is a file received from the client.
type Upload struct {
	Reader       io.Reader
	OriginalName string
	Size         int64
	MimeType     string
}

type CreateDocumentInput struct {
	Title       string
	Description string
	Type        string
	Category    string
	Priority    string
	Tags        []string
}

func (in *CreateDocumentInput) normalize() error {
	in.Title = utils.SanitizeInput(in.Title)
	in.Description = utils.SanitizeInput(in.Description)
	if in.Title == "" {
		return invalid("Please add a document title")
	}
	if len(in.Title) > 200 {
		return invalid("Title cannot be more than 200 characters")
	}
	if len(in.Description) > 1000 {
		return invalid("Description cannot be more than 1000 characters")
	}
	if !models.ValidDocumentType(in.Type) {
		return invalid("Invalid document type %q", in.Type)
	}
	if in.Category == "" {
		in.Category = "mandatory"
	}
	if !models.ValidDocumentCategory(in.Category) {
		return invalid("Invalid document category %q", in.Category)
	}
	switch in.Priority {
	case "":
		in.Priority = "medium"
	case "low", "medium", "high", "urgent":
	default:
		return invalid("Invalid priority %q", in.Priority)
	}
	return nil
}

func (s *DocumentService) loadDocument(tx *gorm.DB, id string) (*models.Document, error) {
	var doc models.Document
	if err := tx.Where("id = ?", id).Take(&doc).Error; err != nil {
		if isNotFound(err) {
			return nil, notFound("Document not found")
		}
		return nil, internal("failed to load document", err)
	}
	return &doc, nil
}

func instituteForAdministrator(tx *gorm.DB, userID string) (*models.Institute, error) {
	var inst models.Institute
	if err := tx.Where("administrator_id = ?", userID).Take(&inst).Error; err != nil {
		if isNotFound(err) {
			return nil, forbidden("No institute found for this user")
		}
		return nil, internal("failed to load institute", err)
	}
	return &inst, nil
}

// profileIDFor resolves the reviewer or auditor profile bound to a user.
func profileIDFor(tx *gorm.DB, kind models.PersonKind, userID string) (string, error) {
	cols, ok := ledgerTables[kind]
	if !ok {
		return "", invalid("unknown assignee kind %q", kind)
	}
	var ids []string
	if err := tx.Table(cols.table).Where("user_id = ?", userID).Limit(1).Pluck("id", &ids).Error; err != nil {
		return "", internal("failed to load profile", err)
	}
	if len(ids) == 0 {
		return "", notFound("%s profile not found", titleKind(kind))
	}
	return ids[0], nil
}

func sameID(ref *string, id string) bool {
	return ref != nil && id != "" && *ref == id
}

// canRead is the shared document read guard: admins, the uploader and the currently assigned reviewer or auditor.
func canRead(tx *gorm.DB, actor *Actor, doc *models.Document) (bool, error) {
	switch actor.Role {
	case models.RoleAdmin:
		return true, nil
	case models.RoleInstitute:
		if doc.UploadedBy == actor.ID {
			return true, nil
		}
		inst, err := instituteForAdministrator(tx, actor.ID)
		if err != nil {
			if KindOf(err) == KindForbidden {
				return false, nil
			}
			return false, err
		}
		return inst.ID == doc.InstituteID, nil
	case models.RoleReviewer:
		id, err := profileIDFor(tx, models.KindReviewer, actor.ID)
		if err != nil {
			if KindOf(err) == KindNotFound {
				return false, nil
			}
			return false, err
		}
		return sameID(doc.AssignedReviewerID, id), nil
	case models.RoleAuditor:
		id, err := profileIDFor(tx, models.KindAuditor, actor.ID)
		if err != nil {
			if KindOf(err) == KindNotFound {
				return false, nil
			}
			return false, err
		}
		return sameID(doc.AssignedAuditorID, id), nil
	}
	return false, nil
}

func canModify(actor *Actor, doc *models.Document) bool {
	return actor.Role == models.RoleAdmin || doc.UploadedBy == actor.ID
}

// Create stores the file and records a new document for the caller's institute.
func (s *DocumentService) Create(ctx context.Context, actor *Actor, in CreateDocumentInput, up Upload, rc RequestContext) (*models.Document, error) {
	if !actor.Is(models.RoleInstitute) {
		return nil, forbidden("Only institute users can upload documents")
	}
	if up.Reader == nil {
		return nil, invalid("Please upload a file")
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	inst, err := instituteForAdministrator(db, actor.ID)
	if err != nil {
		return nil, err
	}

	obj, err := s.blobs.Store(ctx, up.Reader, up.OriginalName, documentFolder, up.MimeType)
	if err != nil {
		s.log.Record(ctx, models.ActionDocumentUploadFailed, actor, rc, LogDetails{
			Err:    err,
			Fields: map[string]interface{}{"reason": err.Error()},
		})
		return nil, upstream("Failed to store uploaded file", err)
	}

	now := s.now()
	size := up.Size
	if size == 0 {
		size = obj.Size
	}
	doc := &models.Document{
		Title:       in.Title,
		Description: in.Description,
		Type:        in.Type,
		Category:    in.Category,
		Priority:    in.Priority,
		InstituteID: inst.ID,
		UploadedBy:  actor.ID,
		File: models.FileInfo{
			OriginalName: up.OriginalName,
			FileName:     obj.Name,
			FileSize:     size,
			MimeType:     up.MimeType,
			StorageURL:   obj.URL,
			StorageID:    obj.ID,
			Checksum:     obj.Checksum,
		},
		Version:          1,
		PreviousVersions: datatypes.JSONSlice[models.FileVersion]{},
		Tags:             datatypes.JSONSlice[string](in.Tags),
		LastModified:     &now,
	}
	if doc.Tags == nil {
		doc.Tags = datatypes.JSONSlice[string]{}
	}
	applyStage(doc, models.StatusUploaded, actor.ID, "", now)

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(doc).Error; err != nil {
			return internal("failed to create document", err)
		}
		ids := append(datatypes.JSONSlice[string]{}, inst.DocumentIDs...)
		ids = append(ids, doc.ID)
		if err := tx.Model(&models.Institute{}).Where("id = ?", inst.ID).Update("document_ids", ids).Error; err != nil {
			return internal("failed to link document to institute", err)
		}
		return nil
	})
	if err != nil {
		if delErr := s.blobs.Delete(ctx, obj.ID); delErr != nil {
			config.Log.Warnw("failed to remove orphaned upload", "storage_id", obj.ID, "error", delErr)
		}
		return nil, err
	}

	s.log.Record(ctx, models.ActionDocumentUploaded, actor, rc, LogDetails{
		Target: documentTarget(doc),
		Fields: map[string]interface{}{"documentType": doc.Type, "fileSize": doc.File.FileSize},
	})
	return s.loadWithRelations(db, doc.ID)
}

func (s *DocumentService) loadWithRelations(tx *gorm.DB, id string) (*models.Document, error) {
	var doc models.Document
	if err := tx.Preload("Institute").Preload("Uploader").Where("id = ?", id).Take(&doc).Error; err != nil {
		if isNotFound(err) {
			return nil, notFound("Document not found")
		}
		return nil, internal("failed to load document", err)
	}
	return &doc, nil
}

var reuploadable = map[models.DocumentStatus]bool{
	models.StatusUploaded:         true,
	models.StatusRejected:         true,
	models.StatusRevisionRequired: true,
}

// Reupload replaces the file with a new version and sends the document back to uploaded.
func (s *DocumentService) Reupload(ctx context.Context, actor *Actor, id string, up Upload, reason string, rc RequestContext) (*models.Document, error) {
	if up.Reader == nil {
		return nil, invalid("Please upload a file")
	}
	db := s.db.WithContext(ctx)
	doc, err := s.loadDocument(db, id)
	if err != nil {
		return nil, err
	}
	if !canModify(actor, doc) {
		return nil, forbidden("Access denied")
	}
	if !reuploadable[doc.Status] {
		return nil, conflict("A new version can only be uploaded while the document is uploaded, rejected or requires revision")
	}

	obj, err := s.blobs.Store(ctx, up.Reader, up.OriginalName, documentFolder, up.MimeType)
	if err != nil {
		return nil, upstream("Failed to store uploaded file", err)
	}

	now := s.now()
	prev := models.FileVersion{
		Version:    doc.Version,
		FileName:   doc.File.FileName,
		StorageURL: doc.File.StorageURL,
		StorageID:  doc.File.StorageID,
		UploadedAt: doc.CreatedAt,
		UploadedBy: doc.UploadedBy,
		Reason:     strings.TrimSpace(reason),
	}
	if doc.LastModified != nil {
		prev.UploadedAt = *doc.LastModified
	}
	versions := append(datatypes.JSONSlice[models.FileVersion]{}, doc.PreviousVersions...)
	versions = append(versions, prev)
	oldStatus := doc.Status
	size := up.Size
	if size == 0 {
		size = obj.Size
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		return transition(tx, doc, models.StatusUploaded, actor.ID, prev.Reason, now, map[string]interface{}{
			"version":              doc.Version + 1,
			"previous_versions":    versions,
			"file_original_name":   up.OriginalName,
			"file_file_name":       obj.Name,
			"file_file_size":       size,
			"file_mime_type":       up.MimeType,
			"file_storage_url":     obj.URL,
			"file_storage_id":      obj.ID,
			"file_checksum":        obj.Checksum,
			"assigned_reviewer_id": nil,
			"assigned_auditor_id":  nil,
			"reviewer_assigned_by": nil,
			"auditor_assigned_by":  nil,
			"reviewer_assigned_at": nil,
			"auditor_assigned_at":  nil,
			"review_due":           nil,
			"audit_due":            nil,
		})
	})
	if err != nil {
		if delErr := s.blobs.Delete(ctx, obj.ID); delErr != nil {
			config.Log.Warnw("failed to remove orphaned upload", "storage_id", obj.ID, "error", delErr)
		}
		return nil, err
	}
	metrics.RecordTransition(string(oldStatus), string(models.StatusUploaded))

	s.log.Record(ctx, models.ActionDocumentUpdated, actor, rc, LogDetails{
		Target: documentTarget(doc),
		Fields: map[string]interface{}{"newVersion": doc.Version + 1, "reason": prev.Reason, "oldStatus": oldStatus},
	})
	return s.loadWithRelations(db, doc.ID)
}

type DocumentFilter struct {
	Status string
	Type   string
	Search string
	Page   utils.Pagination
}

type DocumentPage struct {
	Documents  []models.Document `json:"documents"`
	Pagination utils.Pagination  `json:"pagination"`
}

// List returns the documents visible to the caller's role, newest first.
func (s *DocumentService) List(ctx context.Context, actor *Actor, f DocumentFilter) (*DocumentPage, error) {
	db := s.db.WithContext(ctx)
	q := db.Model(&models.Document{})

	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleInstitute:
		inst, err := instituteForAdministrator(db, actor.ID)
		if err != nil {
			return nil, err
		}
		q = q.Where("institute_id = ?", inst.ID)
	case models.RoleReviewer:
		id, err := profileIDFor(db, models.KindReviewer, actor.ID)
		if err != nil {
			return nil, err
		}
		q = q.Where("assigned_reviewer_id = ?", id)
	case models.RoleAuditor:
		id, err := profileIDFor(db, models.KindAuditor, actor.ID)
		if err != nil {
			return nil, err
		}
		q = q.Where("assigned_auditor_id = ?", id)
	default:
		return nil, forbidden("Access denied")
	}

	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		q = q.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}
	if f.Page.Limit == 0 {
		f.Page = utils.NewPagination("", "", utils.DefaultPageLimit)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, internal("failed to count documents", err)
	}
	var docs []models.Document
	if err := q.Session(&gorm.Session{}).Preload("Institute").Preload("Uploader").
		Order("created_at DESC").Limit(f.Page.Limit).Offset(f.Page.Offset()).
		Find(&docs).Error; err != nil {
		return nil, internal("failed to load documents", err)
	}
	return &DocumentPage{Documents: docs, Pagination: f.Page.WithTotal(total)}, nil
}

// ListAssigned returns the caller's open work, soonest due first.
func (s *DocumentService) ListAssigned(ctx context.Context, actor *Actor) ([]models.Document, error) {
	db := s.db.WithContext(ctx)
	var q *gorm.DB
	switch actor.Role {
	case models.RoleReviewer:
		id, err := profileIDFor(db, models.KindReviewer, actor.ID)
		if err != nil {
			return nil, err
		}
		q = db.Where("assigned_reviewer_id = ? AND status IN ?", id,
			[]models.DocumentStatus{models.StatusAssignedForReview, models.StatusUnderReview}).
			Order("review_due ASC")
	case models.RoleAuditor:
		id, err := profileIDFor(db, models.KindAuditor, actor.ID)
		if err != nil {
			return nil, err
		}
		q = db.Where("assigned_auditor_id = ? AND status IN ?", id,
			[]models.DocumentStatus{models.StatusAssignedForAudit, models.StatusUnderAudit}).
			Order("audit_due ASC")
	default:
		return nil, forbidden("Only reviewers and auditors have assigned documents")
	}

	var docs []models.Document
	if err := q.Preload("Institute").Find(&docs).Error; err != nil {
		return nil, internal("failed to load documents", err)
	}
	return docs, nil
}

func (s *DocumentService) readable(db *gorm.DB, actor *Actor, id string) (*models.Document, error) {
	doc, err := s.loadWithRelations(db, id)
	if err != nil {
		return nil, err
	}
	ok, err := canRead(db, actor, doc)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, forbidden("Access denied")
	}
	return doc, nil
}

// Get returns one document and counts the access.
func (s *DocumentService) Get(ctx context.Context, actor *Actor, id string) (*models.Document, error) {
	db := s.db.WithContext(ctx)
	doc, err := s.readable(db, actor, id)
	if err != nil {
		return nil, err
	}
	if err := db.Model(&models.Document{}).Where("id = ?", doc.ID).
		UpdateColumn("access_count", gorm.Expr("access_count + 1")).Error; err != nil {
		return nil, internal("failed to update access count", err)
	}
	doc.AccessCount++
	return doc, nil
}

// Download returns the document whose file locator the caller may fetch and counts the download.
func (s *DocumentService) Download(ctx context.Context, actor *Actor, id string, rc RequestContext) (*models.Document, error) {
	db := s.db.WithContext(ctx)
	doc, err := s.readable(db, actor, id)
	if err != nil {
		return nil, err
	}
	if err := db.Model(&models.Document{}).Where("id = ?", doc.ID).
		UpdateColumn("download_count", gorm.Expr("download_count + 1")).Error; err != nil {
		return nil, internal("failed to update download count", err)
	}
	doc.DownloadCount++

	s.log.Record(ctx, models.ActionDocumentDownloaded, actor, rc, LogDetails{Target: documentTarget(doc)})
	return doc, nil
}

// OpenFile streams the stored file of a document the caller already resolved via Download.
func (s *DocumentService) OpenFile(ctx context.Context, doc *models.Document) (io.ReadCloser, error) {
	rc, err := s.blobs.Open(ctx, doc.File.StorageID)
	if err != nil {
		if err == storage.ErrNotFound {
			return nil, notFound("Stored file not found")
		}
		return nil, upstream("Failed to open stored file", err)
	}
	return rc, nil
}

type DocumentPatch struct {
	Title       *string
	Description *string
	Tags        []string
}

// Update edits the whitelisted fields while the document is not being processed.
func (s *DocumentService) Update(ctx context.Context, actor *Actor, id string, patch DocumentPatch, rc RequestContext) (*models.Document, error) {
	db := s.db.WithContext(ctx)
	doc, err := s.loadDocument(db, id)
	if err != nil {
		return nil, err
	}
	if !canModify(actor, doc) {
		return nil, forbidden("Access denied")
	}
	if doc.Status.Locked() {
		return nil, conflict("Cannot update document while it is being processed")
	}

	now := s.now()
	updates := map[string]interface{}{"last_modified": now, "updated_at": now}
	fields := make([]string, 0, 3)
	if patch.Title != nil {
		title := utils.SanitizeInput(*patch.Title)
		if title == "" || len(title) > 200 {
			return nil, invalid("Title must be between 1 and 200 characters")
		}
		updates["title"] = title
		fields = append(fields, "title")
	}
	if patch.Description != nil {
		desc := utils.SanitizeInput(*patch.Description)
		if len(desc) > 1000 {
			return nil, invalid("Description cannot be more than 1000 characters")
		}
		updates["description"] = desc
		fields = append(fields, "description")
	}
	if patch.Tags != nil {
		updates["tags"] = datatypes.JSONSlice[string](patch.Tags)
		fields = append(fields, "tags")
	}

	if err := casUpdate(db, doc, updates); err != nil {
		return nil, err
	}
	updated, err := s.loadWithRelations(db, doc.ID)
	if err != nil {
		return nil, err
	}
	s.log.Record(ctx, models.ActionDocumentUpdated, actor, rc, LogDetails{
		Target: documentTarget(updated),
		Fields: map[string]interface{}{"updatedFields": fields},
	})
	return updated, nil
}

// Delete removes a document that is not being processed. Documents that never
// left uploaded are removed physically; others are soft-deleted.
func (s *DocumentService) Delete(ctx context.Context, actor *Actor, id string, rc RequestContext) error {
	db := s.db.WithContext(ctx)
	doc, err := s.loadDocument(db, id)
	if err != nil {
		return err
	}
	if !canModify(actor, doc) {
		return forbidden("Access denied")
	}
	if doc.Status.Locked() {
		return conflict("Cannot delete document while it is being processed")
	}

	physical := doc.Status == models.StatusUploaded
	err = db.Transaction(func(tx *gorm.DB) error {
		if doc.AssignedReviewerID != nil {
			if _, err := s.ledger.Remove(tx, models.KindReviewer, *doc.AssignedReviewerID, doc.ID); err != nil {
				return err
			}
		}
		if doc.AssignedAuditorID != nil {
			if _, err := s.ledger.Remove(tx, models.KindAuditor, *doc.AssignedAuditorID, doc.ID); err != nil {
				return err
			}
		}

		q := tx.Where("id = ? AND lock_version = ?", doc.ID, doc.LockVersion)
		if physical {
			q = q.Unscoped()
		}
		res := q.Delete(&models.Document{})
		if res.Error != nil {
			return internal("failed to delete document", res.Error)
		}
		if res.RowsAffected == 0 {
			return conflict("Document was modified concurrently, please retry")
		}

		if physical {
			var inst models.Institute
			if err := tx.Where("id = ?", doc.InstituteID).Take(&inst).Error; err == nil {
				ids := make(datatypes.JSONSlice[string], 0, len(inst.DocumentIDs))
				for _, d := range inst.DocumentIDs {
					if d != doc.ID {
						ids = append(ids, d)
					}
				}
				if err := tx.Model(&models.Institute{}).Where("id = ?", inst.ID).Update("document_ids", ids).Error; err != nil {
					return internal("failed to unlink document", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if physical && doc.File.StorageID != "" {
		if err := s.blobs.Delete(ctx, doc.File.StorageID); err != nil {
			config.Log.Warnw("failed to delete stored file", "document_id", doc.ID, "storage_id", doc.File.StorageID, "error", err)
		}
	}

	s.log.Record(ctx, models.ActionDocumentDeleted, actor, rc, LogDetails{
		Target: documentTarget(doc),
		Fields: map[string]interface{}{"documentTitle": doc.Title, "physical": physical},
	})
	return nil
}

// OverrideStatus lets an admin force any status, bypassing the transition guards.
func (s *DocumentService) OverrideStatus(ctx context.Context, actor *Actor, id string, status models.DocumentStatus, notes string, rc RequestContext) (*models.Document, error) {
	if !actor.Is(models.RoleAdmin) {
		return nil, forbidden("Only admins can override document status")
	}
	if !status.Valid() {
		return nil, invalid("Invalid document status %q", status)
	}
	db := s.db.WithContext(ctx)
	doc, err := s.loadWithRelations(db, id)
	if err != nil {
		return nil, err
	}
	oldStatus := doc.Status
	if err := db.Transaction(func(tx *gorm.DB) error {
		return transition(tx, doc, status, actor.ID, strings.TrimSpace(notes), s.now(), nil)
	}); err != nil {
		return nil, err
	}
	metrics.RecordTransition(string(oldStatus), string(status))

	if doc.Uploader != nil {
		s.notifier.SendStatusUpdate(doc.Uploader.Email, doc.Uploader.Name, doc.Title, oldStatus, status)
	}
	s.log.Record(ctx, models.ActionDocumentStatusChanged, actor, rc, LogDetails{
		Target: documentTarget(doc),
		Fields: map[string]interface{}{"oldStatus": oldStatus, "newStatus": status, "notes": notes},
	})
	return doc, nil
}

type DocumentHistory struct {
	Document *models.Document      `json:"document"`
	Reviews  []models.Review       `json:"reviews"`
	Audits   []models.Audit        `json:"audits"`
	Stages   []models.WorkflowStage `json:"workflow"`
}

// History returns the document with its workflow stages and every review and audit.
func (s *DocumentService) History(ctx context.Context, actor *Actor, id string) (*DocumentHistory, error) {
	db := s.db.WithContext(ctx)
	doc, err := s.readable(db, actor, id)
	if err != nil {
		return nil, err
	}
	out := &DocumentHistory{Document: doc, Stages: doc.Stages}
	if err := db.Preload("Reviewer.User").Where("document_id = ?", doc.ID).
		Order("created_at DESC").Find(&out.Reviews).Error; err != nil {
		return nil, internal("failed to load reviews", err)
	}
	if err := db.Preload("Auditor.User").Where("document_id = ?", doc.ID).
		Order("created_at DESC").Find(&out.Audits).Error; err != nil {
		return nil, internal("failed to load audits", err)
	}
	return out, nil
}

// AssignmentInput names the person and due date of a new assignment.
type AssignmentInput struct {
	DocumentID string
	PersonID   string
	DueDate    *time.Time
}

func hasActiveAssignment(tx *gorm.DB, kind models.PersonKind, documentID string) (bool, error) {
	var n int64
	err := tx.Model(&models.AssignmentEntry{}).
		Where("person_kind = ? AND document_id = ? AND status IN ?", kind, documentID,
			[]models.AssignmentStatus{models.AssignmentAssigned, models.AssignmentInProgress}).
		Count(&n).Error
	if err != nil {
		return false, internal("failed to check assignments", err)
	}
	return n > 0, nil
}

// AssignReviewer moves an uploaded document to assigned_for_review.
func (s *DocumentService) AssignReviewer(ctx context.Context, actor *Actor, in AssignmentInput, rc RequestContext) (*models.Document, error) {
	return s.assign(ctx, actor, models.KindReviewer, in, rc)
}

// AssignAuditor moves a reviewed document to assigned_for_audit.
func (s *DocumentService) AssignAuditor(ctx context.Context, actor *Actor, in AssignmentInput, rc RequestContext) (*models.Document, error) {
	return s.assign(ctx, actor, models.KindAuditor, in, rc)
}

type assignmentPlan struct {
	from     models.DocumentStatus
	to       models.DocumentStatus
	guardMsg string
	role     string
	action   models.Action
	columns  [4]string
}

var assignmentPlans = map[models.PersonKind]assignmentPlan{
	models.KindReviewer: {
		from:     models.StatusUploaded,
		to:       models.StatusAssignedForReview,
		guardMsg: "A reviewer can only be assigned to an uploaded document",
		role:     "Reviewer",
		action:   models.ActionReviewerAssigned,
		columns:  [4]string{"assigned_reviewer_id", "reviewer_assigned_by", "reviewer_assigned_at", "review_due"},
	},
	models.KindAuditor: {
		from:     models.StatusReviewCompleted,
		to:       models.StatusAssignedForAudit,
		guardMsg: "Document must be reviewed before assigning auditor",
		role:     "Auditor",
		action:   models.ActionAuditorAssigned,
		columns:  [4]string{"assigned_auditor_id", "auditor_assigned_by", "auditor_assigned_at", "audit_due"},
	},
}

func loadAssignee(tx *gorm.DB, kind models.PersonKind, id string) (*models.User, error) {
	var user *models.User
	var err error
	switch kind {
	case models.KindReviewer:
		var r models.Reviewer
		err = tx.Preload("User").Where("id = ?", id).Take(&r).Error
		user = r.User
	case models.KindAuditor:
		var a models.Auditor
		err = tx.Preload("User").Where("id = ?", id).Take(&a).Error
		user = a.User
	}
	if err != nil {
		if isNotFound(err) {
			return nil, notFound("%s not found", titleKind(kind))
		}
		return nil, internal("failed to load assignee", err)
	}
	if user == nil {
		user = &models.User{}
	}
	return user, nil
}

func (s *DocumentService) assign(ctx context.Context, actor *Actor, kind models.PersonKind, in AssignmentInput, rc RequestContext) (*models.Document, error) {
	if !actor.Is(models.RoleAdmin) {
		return nil, forbidden("Only admins can assign documents")
	}
	plan := assignmentPlans[kind]
	db := s.db.WithContext(ctx)

	doc, err := s.loadDocument(db, in.DocumentID)
	if err != nil {
		return nil, err
	}
	assignee, err := loadAssignee(db, kind, in.PersonID)
	if err != nil {
		return nil, err
	}
	if doc.Status != plan.from {
		return nil, conflict("%s", plan.guardMsg)
	}
	active, err := hasActiveAssignment(db, kind, doc.ID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, conflict("Document already has an active %s assignment", strings.ToLower(plan.role))
	}

	now := s.now()
	oldStatus := doc.Status
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := s.ledger.Assign(tx, kind, in.PersonID, doc.ID, in.DueDate); err != nil {
			return err
		}
		return transition(tx, doc, plan.to, actor.ID, "", now, map[string]interface{}{
			plan.columns[0]: in.PersonID,
			plan.columns[1]: actor.ID,
			plan.columns[2]: now,
			plan.columns[3]: in.DueDate,
		})
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordTransition(string(oldStatus), string(plan.to))

	s.notifier.SendAssignment(assignee.Email, assignee.Name, doc.Title, plan.role, in.DueDate)
	s.log.Record(ctx, plan.action, actor, rc, LogDetails{
		Target: documentTarget(doc),
		Fields: map[string]interface{}{
			strings.ToLower(plan.role) + "Id":   in.PersonID,
			strings.ToLower(plan.role) + "Name": assignee.Name,
			"dueDate":                           in.DueDate,
		},
	})
	return s.loadWithRelations(db, doc.ID)
}

var removalRollback = map[models.PersonKind]struct {
	statuses map[models.DocumentStatus]bool
	back     models.DocumentStatus
	columns  [4]string
}{
	models.KindReviewer: {
		statuses: map[models.DocumentStatus]bool{models.StatusAssignedForReview: true, models.StatusUnderReview: true},
		back:     models.StatusUploaded,
		columns:  assignmentPlans[models.KindReviewer].columns,
	},
	models.KindAuditor: {
		statuses: map[models.DocumentStatus]bool{models.StatusAssignedForAudit: true, models.StatusUnderAudit: true},
		back:     models.StatusReviewCompleted,
		columns:  assignmentPlans[models.KindAuditor].columns,
	},
}

// RemoveAssignment withdraws the active reviewer or auditor of a document so
// that an admin can reassign it. The document returns to the status it had before assignment.
func (s *DocumentService) RemoveAssignment(ctx context.Context, actor *Actor, documentID string, kind models.PersonKind, reason string, rc RequestContext) (*models.Document, error) {
	if !actor.Is(models.RoleAdmin) {
		return nil, forbidden("Only admins can remove assignments")
	}
	rb, ok := removalRollback[kind]
	if !ok {
		return nil, invalid("Unknown assignment kind %q", kind)
	}
	db := s.db.WithContext(ctx)
	doc, err := s.loadDocument(db, documentID)
	if err != nil {
		return nil, err
	}
	var personID string
	if kind == models.KindReviewer && doc.AssignedReviewerID != nil {
		personID = *doc.AssignedReviewerID
	}
	if kind == models.KindAuditor && doc.AssignedAuditorID != nil {
		personID = *doc.AssignedAuditorID
	}
	if personID == "" || !rb.statuses[doc.Status] {
		return nil, conflict("Document has no active %s assignment", kind)
	}

	oldStatus := doc.Status
	err = db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.ledger.Remove(tx, kind, personID, doc.ID); err != nil {
			return err
		}
		return transition(tx, doc, rb.back, actor.ID, strings.TrimSpace(reason), s.now(), map[string]interface{}{
			rb.columns[0]: nil,
			rb.columns[1]: nil,
			rb.columns[2]: nil,
			rb.columns[3]: nil,
		})
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordTransition(string(oldStatus), string(rb.back))

	s.log.Record(ctx, models.ActionAssignmentRemoved, actor, rc, LogDetails{
		Target: documentTarget(doc),
		Fields: map[string]interface{}{"kind": kind, "personId": personID, "reason": reason, "oldStatus": oldStatus},
	})
	return s.loadWithRelations(db, doc.ID)
}
