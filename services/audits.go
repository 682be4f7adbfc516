package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"accreditation-api/config"
	"accreditation-api/metrics"
	"accreditation-api/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// VarianceTolerance is the largest reviewer/auditor score gap still accepted for a criterion.
const VarianceTolerance = 10

// CriteriaVariance returns |reviewerScore - auditorScore| and whether it is within tolerance.
func CriteriaVariance(reviewerScore, auditorScore float64) (float64, bool) {
	v := math.Abs(reviewerScore - auditorScore)
	return v, v <= VarianceTolerance
}

// Trail actions recorded on an audit.
const (
	TrailAuditStarted      = "audit_started"
	TrailAuditUpdated      = "audit_updated"
	TrailAuditCompleted    = "audit_completed"
	TrailFindingAdded      = "finding_added"
	TrailComplianceUpdated = "compliance_updated"
	TrailReviewValidated   = "review_validated"
)

type AuditService struct {
	db       *gorm.DB
	ledger   *Ledger
	log      *ActivityLog
	notifier Notifier
	now      func() time.Time
}

func NewAuditService(db *gorm.DB, ledger *Ledger, log *ActivityLog, notifier Notifier) *AuditService {
	if db == nil {
		db = config.DB
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &AuditService{db: db, ledger: ledger, log: log, notifier: notifier, now: time.Now}
}

func (s *AuditService) auditorFor(tx *gorm.DB, actor *Actor) (*models.Auditor, error) {
	if !actor.Is(models.RoleAuditor) {
		return nil, forbidden("Only auditors can perform this action")
	}
	var a models.Auditor
	if err := tx.Where("user_id = ?", actor.ID).Take(&a).Error; err != nil {
		if isNotFound(err) {
			return nil, notFound("Auditor profile not found")
		}
		return nil, internal("failed to load auditor profile", err)
	}
	return &a, nil
}

func loadAudit(tx *gorm.DB, id string) (*models.Audit, error) {
	var audit models.Audit
	if err := tx.Where("id = ?", id).Take(&audit).Error; err != nil {
		if isNotFound(err) {
			return nil, notFound("Audit not found")
		}
		return nil, internal("failed to load audit", err)
	}
	return &audit, nil
}

// editable loads an audit owned by the caller that has not been completed.
func (s *AuditService) editable(tx *gorm.DB, actor *Actor, id string) (*models.Audit, *models.Auditor, error) {
	auditor, err := s.auditorFor(tx, actor)
	if err != nil {
		return nil, nil, err
	}
	audit, err := loadAudit(tx, id)
	if err != nil {
		return nil, nil, err
	}
	if audit.AuditorID != auditor.ID {
		return nil, nil, forbidden("Access denied")
	}
	if audit.Status == models.AuditCompleted {
		return nil, nil, conflict("Cannot update completed audit")
	}
	return audit, auditor, nil
}

func trailEntry(action, actorID string, rc RequestContext, now time.Time, details map[string]interface{}) models.TrailEntry {
	ip, ua := rc.client()
	return models.TrailEntry{
		Action:      action,
		PerformedBy: actorID,
		Timestamp:   now,
		Details:     details,
		IP:          ip,
		UserAgent:   ua,
	}
}

// save writes the given columns together with the audit's trail. The write only
// lands while the audit is still open.
func (s *AuditService) save(tx *gorm.DB, audit *models.Audit, updates map[string]interface{}) error {
	updates["trail"] = audit.Trail
	updates["updated_at"] = s.now()
	res := tx.Model(&models.Audit{}).
		Where("id = ? AND status <> ?", audit.ID, models.AuditCompleted).
		Updates(updates)
	if res.Error != nil {
		return internal("failed to update audit", res.Error)
	}
	if res.RowsAffected == 0 {
		return conflict("Cannot update completed audit")
	}
	return nil
}

func auditTarget(audit *models.Audit) *models.TargetResource {
	return &models.TargetResource{Kind: models.ResourceAudit, ID: audit.ID}
}

// Start opens the caller's audit of a reviewed document. A second call returns
// the open audit; completed audits are never reopened and a new round gets a new audit.
func (s *AuditService) Start(ctx context.Context, actor *Actor, documentID string, rc RequestContext) (*models.Audit, error) {
	db := s.db.WithContext(ctx)
	auditor, err := s.auditorFor(db, actor)
	if err != nil {
		return nil, err
	}
	var doc models.Document
	if err := db.Where("id = ?", documentID).Take(&doc).Error; err != nil {
		if isNotFound(err) {
			return nil, notFound("Document not found")
		}
		return nil, internal("failed to load document", err)
	}

	var existing models.Audit
	found := true
	if err := db.Where("document_id = ? AND auditor_id = ? AND status <> ?", doc.ID, auditor.ID, models.AuditCompleted).
		Order("created_at DESC").Take(&existing).Error; err != nil {
		if !isNotFound(err) {
			return nil, internal("failed to load audit", err)
		}
		found = false
	}

	var review models.Review
	if found {
		if err := db.Where("id = ?", existing.ReviewID).Take(&review).Error; err != nil && !isNotFound(err) {
			return nil, internal("failed to load review", err)
		}
	} else {
		if err := db.Where("document_id = ? AND status = ?", doc.ID, models.ReviewSubmitted).
			Order("submitted_at DESC").Take(&review).Error; err != nil {
			if isNotFound(err) {
				return nil, invalid("No completed review found for this document")
			}
			return nil, internal("failed to load review", err)
		}
	}
	if !sameID(doc.AssignedAuditorID, auditor.ID) {
		return nil, forbidden("Document not assigned to you")
	}
	if !found && doc.Status != models.StatusAssignedForAudit && doc.Status != models.StatusUnderAudit {
		return nil, conflict("Document is not awaiting audit")
	}

	now := s.now()
	audit := &existing
	oldStatus := doc.Status
	moved := false
	err = db.Transaction(func(tx *gorm.DB) error {
		if !found {
			assignedAt := now
			if doc.AuditorAssignedAt != nil {
				assignedAt = *doc.AuditorAssignedAt
			}
			audit = &models.Audit{
				DocumentID:         doc.ID,
				ReviewID:           review.ID,
				AuditorID:          auditor.ID,
				InstituteID:        doc.InstituteID,
				CriteriaValidation: datatypes.JSONSlice[models.CriteriaValidation]{},
				Compliance: datatypes.NewJSONType(models.ComplianceCheck{
					StandardsVerification: []models.StandardVerification{},
					OverallCompliance:     "partially_compliant",
				}),
				Findings: datatypes.JSONSlice[models.Finding]{},
				Risk: datatypes.NewJSONType(models.RiskAssessment{
					Risks:       []models.Risk{},
					OverallRisk: "medium",
				}),
				Conditions: datatypes.JSONSlice[models.Condition]{},
				Status:     models.AuditInProgress,
				AssignedAt: assignedAt,
				StartedAt:  &now,
				DueDate:    doc.AuditDue,
			}
			audit.AppendTrail(trailEntry(TrailAuditStarted, actor.ID, rc, now, map[string]interface{}{
				"documentId": doc.ID,
				"reviewId":   review.ID,
				"startTime":  now,
			}))
			if err := tx.Create(audit).Error; err != nil {
				return internal("failed to create audit", err)
			}
			if err := tx.Model(&models.Review{}).
				Where("id = ? AND status = ?", review.ID, models.ReviewSubmitted).
				Updates(map[string]interface{}{"status": models.ReviewUnderAudit, "updated_at": now}).Error; err != nil {
				return internal("failed to update review", err)
			}
		}
		if doc.Status != models.StatusAssignedForAudit {
			return nil
		}
		if err := transition(tx, &doc, models.StatusUnderAudit, actor.ID, "", now, nil); err != nil {
			return err
		}
		moved = true
		return s.ledger.MarkInProgress(tx, models.KindAuditor, auditor.ID, doc.ID)
	})
	if err != nil {
		return nil, err
	}
	if moved {
		metrics.RecordTransition(string(oldStatus), string(models.StatusUnderAudit))
	}

	s.log.Record(ctx, models.ActionAuditStarted, actor, rc, LogDetails{
		Target: documentTarget(&doc),
		Fields: map[string]interface{}{"auditId": audit.ID, "reviewId": audit.ReviewID, "reused": found},
	})
	return s.withRelations(db, audit.ID)
}

func (s *AuditService) withRelations(tx *gorm.DB, id string) (*models.Audit, error) {
	var audit models.Audit
	if err := tx.Preload("Document").Preload("Review").Preload("Auditor.User").
		Where("id = ?", id).Take(&audit).Error; err != nil {
		if isNotFound(err) {
			return nil, notFound("Audit not found")
		}
		return nil, internal("failed to load audit", err)
	}
	return &audit, nil
}

// ReviewValidation is the auditor's scoring of the reviewer's work.
type ReviewValidation struct {
	AccuracyScore      int                         `json:"accuracyScore"`
	CompletenessScore  int                         `json:"completenessScore"`
	ConsistencyScore   int                         `json:"consistencyScore"`
	ValidationComments string                      `json:"validationComments,omitempty"`
	CriteriaValidation []models.CriteriaValidation `json:"criteriaValidation,omitempty"`
}

func (v ReviewValidation) validate() error {
	for _, score := range []int{v.AccuracyScore, v.CompletenessScore, v.ConsistencyScore} {
		if score < 0 || score > 100 {
			return invalid("Validation scores must be between 0 and 100")
		}
	}
	return nil
}

func withVariance(in []models.CriteriaValidation) datatypes.JSONSlice[models.CriteriaValidation] {
	out := make(datatypes.JSONSlice[models.CriteriaValidation], len(in))
	for i, c := range in {
		c.Variance, c.Acceptable = CriteriaVariance(c.ReviewerScore, c.AuditorScore)
		out[i] = c
	}
	return out
}

// AuditPatch holds the editable audit data and quality fields. Nil members are left untouched.
type AuditPatch struct {
	Validation *ReviewValidation
	Compliance *models.ComplianceCheck
	Findings   []models.Finding
	Risk       *models.RiskAssessment
	Quality    *models.AuditQuality
}

// Update edits the audit data of an open audit.
func (s *AuditService) Update(ctx context.Context, actor *Actor, id string, patch AuditPatch, rc RequestContext) (*models.Audit, error) {
	db := s.db.WithContext(ctx)
	audit, _, err := s.editable(db, actor, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	fields := make([]string, 0, 5)
	if v := patch.Validation; v != nil {
		if err := v.validate(); err != nil {
			return nil, err
		}
		audit.AccuracyScore, audit.CompletenessScore, audit.ConsistencyScore = v.AccuracyScore, v.CompletenessScore, v.ConsistencyScore
		audit.ValidationComments = v.ValidationComments
		updates["accuracy_score"] = v.AccuracyScore
		updates["completeness_score"] = v.CompletenessScore
		updates["consistency_score"] = v.ConsistencyScore
		updates["validation_comments"] = v.ValidationComments
		if v.CriteriaValidation != nil {
			audit.CriteriaValidation = withVariance(v.CriteriaValidation)
			updates["criteria_validation"] = audit.CriteriaValidation
		}
		fields = append(fields, "reviewValidation")
	}
	if patch.Compliance != nil {
		if patch.Compliance.OverallCompliance != "" && !models.ValidComplianceLevel(patch.Compliance.OverallCompliance) {
			return nil, invalid("Invalid compliance level %q", patch.Compliance.OverallCompliance)
		}
		audit.Compliance = datatypes.NewJSONType(*patch.Compliance)
		updates["compliance"] = audit.Compliance
		fields = append(fields, "complianceCheck")
	}
	if patch.Findings != nil {
		for _, f := range patch.Findings {
			if !models.ValidFindingCategory(f.Category) {
				return nil, invalid("Invalid finding category %q", f.Category)
			}
		}
		audit.Findings = datatypes.JSONSlice[models.Finding](patch.Findings)
		updates["findings"] = audit.Findings
		fields = append(fields, "findings")
	}
	if patch.Risk != nil {
		audit.Risk = datatypes.NewJSONType(*patch.Risk)
		updates["risk"] = audit.Risk
		fields = append(fields, "riskAssessment")
	}
	if patch.Quality != nil {
		audit.Quality = datatypes.NewJSONType(*patch.Quality)
		updates["quality"] = audit.Quality
		fields = append(fields, "quality")
	}
	if len(fields) == 0 {
		return nil, invalid("No audit fields to update")
	}

	now := s.now()
	audit.AppendTrail(trailEntry(TrailAuditUpdated, actor.ID, rc, now, map[string]interface{}{
		"updatedFields": fields,
		"updateTime":    now,
	}))
	if err := s.save(db, audit, updates); err != nil {
		return nil, err
	}

	s.log.Record(ctx, models.ActionAuditUpdated, actor, rc, LogDetails{
		Target: auditTarget(audit),
		Fields: map[string]interface{}{"auditId": audit.ID, "updatedFields": fields},
	})
	return audit, nil
}

// FinalDecision is the auditor's verdict on the document.
type FinalDecision struct {
	Outcome       models.Outcome
	FinalScore    *int
	Justification string
	Conditions    []models.Condition
	ValidityStart *time.Time
	ValidityEnd   *time.Time
}

func (d FinalDecision) validate() error {
	if d.Outcome == "" || strings.TrimSpace(d.Justification) == "" {
		return invalid("Final decision and justification are required")
	}
	if !d.Outcome.Valid() {
		return invalid("Invalid outcome %q", d.Outcome)
	}
	if d.FinalScore != nil && (*d.FinalScore < 0 || *d.FinalScore > 100) {
		return invalid("Final score must be between 0 and 100")
	}
	if d.ValidityStart != nil && d.ValidityEnd != nil && d.ValidityEnd.Before(*d.ValidityStart) {
		return invalid("Validity period ends before it starts")
	}
	return nil
}

func reviewStatusFor(outcome models.Outcome) models.ReviewStatus {
	if outcome == models.OutcomeApproved || outcome == models.OutcomeApprovedWithConditions {
		return models.ReviewApproved
	}
	return models.ReviewReturnedForRevision
}

// Submit records the final decision, completes the audit and moves the document to the outcome's status.
func (s *AuditService) Submit(ctx context.Context, actor *Actor, id string, decision FinalDecision, signature string, rc RequestContext) (*models.Audit, error) {
	db := s.db.WithContext(ctx)
	audit, auditor, err := s.editable(db, actor, id)
	if err != nil {
		return nil, err
	}
	if err := decision.validate(); err != nil {
		return nil, err
	}
	doc, err := loadDocumentWithInstitute(db, audit.DocumentID)
	if err != nil {
		return nil, err
	}
	if doc.Status != models.StatusUnderAudit && doc.Status != models.StatusAssignedForAudit {
		return nil, conflict("Document is not under audit")
	}

	now := s.now()
	if strings.TrimSpace(signature) == "" {
		signature = fmt.Sprintf("%s-%s", actor.Name, now.UTC().Format(time.RFC3339))
	}
	justification := strings.TrimSpace(decision.Justification)
	outcome := decision.Outcome
	score := 0
	if decision.FinalScore != nil {
		score = *decision.FinalScore
	}
	conditions := datatypes.JSONSlice[models.Condition](decision.Conditions)
	if conditions == nil {
		conditions = datatypes.JSONSlice[models.Condition]{}
	}
	newStatus := OutcomeStatus(outcome)
	oldStatus := doc.Status
	startedAt := audit.AssignedAt
	if audit.StartedAt != nil {
		startedAt = *audit.StartedAt
	}

	signatureIP, _ := rc.client()
	audit.AppendTrail(trailEntry(TrailAuditCompleted, actor.ID, rc, now, map[string]interface{}{
		"outcome":        outcome,
		"finalScore":     decision.FinalScore,
		"completionTime": now,
	}))

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := s.save(tx, audit, map[string]interface{}{
			"outcome":           outcome,
			"final_score":       decision.FinalScore,
			"justification":     justification,
			"conditions":        conditions,
			"validity_start":    decision.ValidityStart,
			"validity_end":      decision.ValidityEnd,
			"status":            models.AuditCompleted,
			"submitted_at":      now,
			"completed_at":      now,
			"signed":            true,
			"signed_at":         now,
			"digital_signature": signature,
			"signature_ip":      signatureIP,
		}); err != nil {
			return err
		}
		if audit.ReviewID != "" {
			if err := tx.Model(&models.Review{}).Where("id = ?", audit.ReviewID).
				Updates(map[string]interface{}{"status": reviewStatusFor(outcome), "updated_at": now}).Error; err != nil {
				return internal("failed to update review", err)
			}
		}
		if err := transition(tx, doc, newStatus, actor.ID, justification, now, nil); err != nil {
			return err
		}
		return s.ledger.Complete(tx, models.KindAuditor, auditor.ID, doc.ID, OutcomeSummary{
			StartedAt:   startedAt,
			CompletedAt: now,
			InstituteID: audit.InstituteID,
			Outcome:     string(outcome),
			Score:       score,
		})
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordTransition(string(oldStatus), string(newStatus))

	audit.Outcome = &outcome
	audit.FinalScore = decision.FinalScore
	audit.Justification = &justification
	audit.Conditions = conditions
	audit.ValidityStart, audit.ValidityEnd = decision.ValidityStart, decision.ValidityEnd
	audit.Status = models.AuditCompleted
	audit.SubmittedAt, audit.CompletedAt = &now, &now
	audit.Signed, audit.SignedAt = true, &now
	audit.DigitalSignature = signature
	audit.SignatureIP = signatureIP

	if doc.Institute != nil && doc.Institute.ContactEmail != "" {
		s.notifier.SendStatusUpdate(doc.Institute.ContactEmail, doc.Institute.Name, doc.Title, oldStatus, newStatus)
	}
	s.log.Record(ctx, models.ActionAuditCompleted, actor, rc, LogDetails{
		Target: documentTarget(doc),
		Fields: map[string]interface{}{
			"auditId":       audit.ID,
			"documentTitle": doc.Title,
			"outcome":       outcome,
			"finalScore":    decision.FinalScore,
		},
	})
	return audit, nil
}

// AddFinding appends one informational finding.
func (s *AuditService) AddFinding(ctx context.Context, actor *Actor, id string, finding models.Finding, rc RequestContext) (*models.Audit, error) {
	if !models.ValidFindingCategory(finding.Category) {
		return nil, invalid("Invalid finding category %q", finding.Category)
	}
	if strings.TrimSpace(finding.Description) == "" {
		return nil, invalid("Finding description is required")
	}
	db := s.db.WithContext(ctx)
	audit, _, err := s.editable(db, actor, id)
	if err != nil {
		return nil, err
	}

	findings := append(datatypes.JSONSlice[models.Finding]{}, audit.Findings...)
	audit.Findings = append(findings, finding)
	severity := "medium"
	if finding.Category == "critical" {
		severity = "high"
	}
	now := s.now()
	audit.AppendTrail(trailEntry(TrailFindingAdded, actor.ID, rc, now, map[string]interface{}{
		"findingCategory": finding.Category,
		"severity":        severity,
	}))
	if err := s.save(db, audit, map[string]interface{}{"findings": audit.Findings}); err != nil {
		return nil, err
	}

	s.log.Record(ctx, models.ActionAuditFindingAdded, actor, rc, LogDetails{
		Target: auditTarget(audit),
		Fields: map[string]interface{}{"auditId": audit.ID, "findingCategory": finding.Category},
	})
	return audit, nil
}

// UpdateCompliance replaces the standards verification and/or the overall compliance level.
func (s *AuditService) UpdateCompliance(ctx context.Context, actor *Actor, id string, standards []models.StandardVerification, overall string, rc RequestContext) (*models.Audit, error) {
	if standards == nil && overall == "" {
		return nil, invalid("No compliance fields to update")
	}
	if overall != "" && !models.ValidComplianceLevel(overall) {
		return nil, invalid("Invalid compliance level %q", overall)
	}
	db := s.db.WithContext(ctx)
	audit, _, err := s.editable(db, actor, id)
	if err != nil {
		return nil, err
	}

	check := audit.Compliance.Data()
	if standards != nil {
		check.StandardsVerification = standards
	}
	if overall != "" {
		check.OverallCompliance = overall
	}
	audit.Compliance = datatypes.NewJSONType(check)
	now := s.now()
	audit.AppendTrail(trailEntry(TrailComplianceUpdated, actor.ID, rc, now, map[string]interface{}{
		"overallCompliance": overall,
		"standardsCount":    len(standards),
	}))
	if err := s.save(db, audit, map[string]interface{}{"compliance": audit.Compliance}); err != nil {
		return nil, err
	}

	s.log.Record(ctx, models.ActionAuditUpdated, actor, rc, LogDetails{
		Target: auditTarget(audit),
		Fields: map[string]interface{}{"auditId": audit.ID, "updatedFields": []string{"complianceCheck"}},
	})
	return audit, nil
}

// ValidateReview overwrites the review validation scores and recomputes the per-criterion variance.
func (s *AuditService) ValidateReview(ctx context.Context, actor *Actor, id string, v ReviewValidation, rc RequestContext) (*models.Audit, error) {
	if err := v.validate(); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	audit, _, err := s.editable(db, actor, id)
	if err != nil {
		return nil, err
	}

	audit.AccuracyScore, audit.CompletenessScore, audit.ConsistencyScore = v.AccuracyScore, v.CompletenessScore, v.ConsistencyScore
	audit.ValidationComments = v.ValidationComments
	updates := map[string]interface{}{
		"accuracy_score":      v.AccuracyScore,
		"completeness_score":  v.CompletenessScore,
		"consistency_score":   v.ConsistencyScore,
		"validation_comments": v.ValidationComments,
	}
	if v.CriteriaValidation != nil {
		audit.CriteriaValidation = withVariance(v.CriteriaValidation)
		updates["criteria_validation"] = audit.CriteriaValidation
	}
	if audit.Status == models.AuditInProgress {
		audit.Status = models.AuditUnderReview
		updates["status"] = audit.Status
	}
	now := s.now()
	audit.AppendTrail(trailEntry(TrailReviewValidated, actor.ID, rc, now, map[string]interface{}{
		"accuracyScore":     v.AccuracyScore,
		"completenessScore": v.CompletenessScore,
		"consistencyScore":  v.ConsistencyScore,
	}))
	if err := s.save(db, audit, updates); err != nil {
		return nil, err
	}

	s.log.Record(ctx, models.ActionAuditUpdated, actor, rc, LogDetails{
		Target: auditTarget(audit),
		Fields: map[string]interface{}{"auditId": audit.ID, "overallAuditScore": audit.OverallAuditScore()},
	})
	return audit, nil
}

// Get returns one audit to an admin, its auditor or the uploading institute user.
func (s *AuditService) Get(ctx context.Context, actor *Actor, id string) (*models.Audit, error) {
	db := s.db.WithContext(ctx)
	audit, err := s.withRelations(db, id)
	if err != nil {
		return nil, err
	}
	allowed := false
	switch actor.Role {
	case models.RoleAdmin:
		allowed = true
	case models.RoleAuditor:
		auditor, err := s.auditorFor(db, actor)
		if err != nil && KindOf(err) != KindNotFound {
			return nil, err
		}
		allowed = auditor != nil && auditor.ID == audit.AuditorID
	case models.RoleInstitute:
		allowed = audit.Document != nil && audit.Document.UploadedBy == actor.ID
	}
	if !allowed {
		return nil, forbidden("Access denied")
	}
	return audit, nil
}

// ListByDocument returns every audit of a document the caller may read, newest first.
func (s *AuditService) ListByDocument(ctx context.Context, actor *Actor, documentID string) ([]models.Audit, error) {
	db := s.db.WithContext(ctx)
	doc, err := loadDocumentWithInstitute(db, documentID)
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
	var audits []models.Audit
	if err := db.Preload("Auditor.User").Preload("Review").Where("document_id = ?", doc.ID).
		Order("created_at DESC").Find(&audits).Error; err != nil {
		return nil, internal("failed to load audits", err)
	}
	return audits, nil
}

type AuditorStats struct {
	TotalAssigned      int     `json:"totalAssigned"`
	TotalCompleted     int     `json:"totalCompleted"`
	Overdue            int     `json:"overdue"`
	AverageAuditTime   float64 `json:"averageAuditTime"`
	CurrentWorkload    int     `json:"currentWorkload"`
	OverallPerformance int     `json:"overallPerformance"`
}

type AuditorDashboard struct {
	Auditor           *models.Auditor            `json:"auditor"`
	Assignments       []models.AssignmentEntry   `json:"assignments"`
	History           []models.AuditHistoryEntry `json:"auditHistory"`
	AssignedDocuments []models.Document          `json:"assignedDocuments"`
	CompletedAudits   []models.Audit             `json:"completedAudits"`
	Statistics        AuditorStats               `json:"statistics"`
}

// Dashboard summarizes the caller's open and finished audit work.
func (s *AuditService) Dashboard(ctx context.Context, actor *Actor) (*AuditorDashboard, error) {
	db := s.db.WithContext(ctx)
	auditor, err := s.auditorFor(db, actor)
	if err != nil {
		return nil, err
	}
	out := &AuditorDashboard{Auditor: auditor}

	if out.Assignments, err = s.ledger.Entries(db, models.KindAuditor, auditor.ID); err != nil {
		return nil, err
	}
	if err := db.Where("auditor_id = ?", auditor.ID).Order("completed_date DESC").Limit(10).
		Find(&out.History).Error; err != nil {
		return nil, internal("failed to load audit history", err)
	}
	if err := db.Preload("Institute").
		Where("assigned_auditor_id = ? AND status IN ?", auditor.ID,
			[]models.DocumentStatus{models.StatusAssignedForAudit, models.StatusUnderAudit}).
		Order("audit_due ASC").Find(&out.AssignedDocuments).Error; err != nil {
		return nil, internal("failed to load assigned documents", err)
	}
	if err := db.Preload("Document").Where("auditor_id = ?", auditor.ID).
		Order("created_at DESC").Limit(10).Find(&out.CompletedAudits).Error; err != nil {
		return nil, internal("failed to load audits", err)
	}

	now := s.now()
	overdue := 0
	for _, d := range out.AssignedDocuments {
		if d.AuditDue != nil && d.AuditDue.Before(now) {
			overdue++
		}
	}
	out.Statistics = AuditorStats{
		TotalAssigned:      len(out.AssignedDocuments),
		TotalCompleted:     auditor.CompletedAudits,
		Overdue:            overdue,
		AverageAuditTime:   auditor.AverageAuditTime,
		CurrentWorkload:    auditor.WorkloadPercentage(),
		OverallPerformance: auditor.OverallPerformance(),
	}
	return out, nil
}
