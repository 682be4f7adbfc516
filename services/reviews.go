package services

import (
	"context"
	"encoding/json"
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

// OverallScore is round(Σ score·weight / Σ weight), or 0 when the weights sum to zero.
func OverallScore(criteria []models.Criterion) int {
	var total, weight float64
	for _, c := range criteria {
		total += c.Score * c.Weight
		weight += c.Weight
	}
	if weight == 0 {
		return 0
	}
	return int(math.Round(total / weight))
}

func validateCriteria(criteria []models.Criterion) error {
	for i, c := range criteria {
		if strings.TrimSpace(c.Name) == "" {
			return invalid("Criterion %d needs a name", i+1)
		}
		if c.Score < 0 || c.Score > 100 {
			return invalid("Criterion %q score must be between 0 and 100", c.Name)
		}
		if c.Weight < 0 || c.Weight > 1 {
			return invalid("Criterion %q weight must be between 0 and 1", c.Name)
		}
	}
	return nil
}

type ReviewService struct {
	db       *gorm.DB
	ledger   *Ledger
	log      *ActivityLog
	notifier Notifier
	now      func() time.Time
}

func NewReviewService(db *gorm.DB, ledger *Ledger, log *ActivityLog, notifier Notifier) *ReviewService {
	if db == nil {
		db = config.DB
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &ReviewService{db: db, ledger: ledger, log: log, notifier: notifier, now: time.Now}
}

func (s *ReviewService) reviewerFor(tx *gorm.DB, actor *Actor) (*models.Reviewer, error) {
	if !actor.Is(models.RoleReviewer) {
		return nil, forbidden("Only reviewers can perform this action")
	}
	var r models.Reviewer
	if err := tx.Where("user_id = ?", actor.ID).Take(&r).Error; err != nil {
		if isNotFound(err) {
			return nil, notFound("Reviewer profile not found")
		}
		return nil, internal("failed to load reviewer profile", err)
	}
	return &r, nil
}

func loadReview(tx *gorm.DB, id string) (*models.Review, error) {
	var review models.Review
	if err := tx.Where("id = ?", id).Take(&review).Error; err != nil {
		if isNotFound(err) {
			return nil, notFound("Review not found")
		}
		return nil, internal("failed to load review", err)
	}
	return &review, nil
}

// owned loads a review and checks that the caller is its reviewer.
func (s *ReviewService) owned(tx *gorm.DB, actor *Actor, id string) (*models.Review, *models.Reviewer, error) {
	reviewer, err := s.reviewerFor(tx, actor)
	if err != nil {
		return nil, nil, err
	}
	review, err := loadReview(tx, id)
	if err != nil {
		return nil, nil, err
	}
	if review.ReviewerID != reviewer.ID {
		return nil, nil, forbidden("Access denied")
	}
	return review, reviewer, nil
}

// Start opens the caller's review of a document. Calling it again while the
// review is still a draft returns the same review. Submitted or returned reviews
// stay in the document's history and a new draft is opened for the next round.
func (s *ReviewService) Start(ctx context.Context, actor *Actor, documentID string, rc RequestContext) (*models.Review, error) {
	db := s.db.WithContext(ctx)
	reviewer, err := s.reviewerFor(db, actor)
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
	if !sameID(doc.AssignedReviewerID, reviewer.ID) {
		return nil, forbidden("Document not assigned to you")
	}

	var existing models.Review
	found := true
	if err := db.Where("document_id = ? AND reviewer_id = ? AND status = ?", doc.ID, reviewer.ID, models.ReviewDraft).
		Order("created_at DESC").Take(&existing).Error; err != nil {
		if !isNotFound(err) {
			return nil, internal("failed to load review", err)
		}
		found = false
	}
	if !found && doc.Status != models.StatusAssignedForReview && doc.Status != models.StatusUnderReview {
		return nil, conflict("Document is not awaiting review")
	}

	now := s.now()
	review := &existing
	oldStatus := doc.Status
	moved := false
	err = db.Transaction(func(tx *gorm.DB) error {
		if !found {
			review = &models.Review{
				DocumentID:      doc.ID,
				ReviewerID:      reviewer.ID,
				InstituteID:     doc.InstituteID,
				Criteria:        datatypes.JSONSlice[models.Criterion]{},
				Strengths:       datatypes.JSONSlice[models.Strength]{},
				Weaknesses:      datatypes.JSONSlice[models.Weakness]{},
				Recommendations: datatypes.JSONSlice[models.Recommendation]{},
				RevisionHistory: datatypes.JSONSlice[models.Revision]{},
				Status:          models.ReviewDraft,
				StartedAt:       now,
				DueDate:         doc.ReviewDue,
			}
			if err := tx.Create(review).Error; err != nil {
				return internal("failed to create review", err)
			}
		}
		if doc.Status != models.StatusAssignedForReview {
			return nil
		}
		if err := transition(tx, &doc, models.StatusUnderReview, actor.ID, "", now, nil); err != nil {
			return err
		}
		moved = true
		return s.ledger.MarkInProgress(tx, models.KindReviewer, reviewer.ID, doc.ID)
	})
	if err != nil {
		return nil, err
	}
	if moved {
		metrics.RecordTransition(string(oldStatus), string(models.StatusUnderReview))
	}

	s.log.Record(ctx, models.ActionReviewStarted, actor, rc, LogDetails{
		Target: documentTarget(&doc),
		Fields: map[string]interface{}{"reviewId": review.ID, "reused": found},
	})
	return review, nil
}

// ReviewPatch holds the mutable review fields. Nil members are left untouched.
type ReviewPatch struct {
	Criteria        []models.Criterion      `json:"criteria,omitempty"`
	Strengths       []models.Strength       `json:"strengths,omitempty"`
	Weaknesses      []models.Weakness       `json:"weaknesses,omitempty"`
	Recommendations []models.Recommendation `json:"recommendations,omitempty"`
	Feedback        *models.ReviewFeedback  `json:"feedback,omitempty"`
	Reason          string                  `json:"-"`
}

func (p ReviewPatch) empty() bool {
	return p.Criteria == nil && p.Strengths == nil && p.Weaknesses == nil &&
		p.Recommendations == nil && p.Feedback == nil
}

// Update edits a draft review, recomputes the overall score when criteria change
// and appends one revision entry.
func (s *ReviewService) Update(ctx context.Context, actor *Actor, id string, patch ReviewPatch, rc RequestContext) (*models.Review, error) {
	db := s.db.WithContext(ctx)
	review, _, err := s.owned(db, actor, id)
	if err != nil {
		return nil, err
	}
	if review.Status != models.ReviewDraft {
		return nil, invalid("Cannot update submitted review")
	}
	if patch.empty() {
		return nil, invalid("No review fields to update")
	}

	updates := map[string]interface{}{}
	fields := make([]string, 0, 6)
	if patch.Criteria != nil {
		if err := validateCriteria(patch.Criteria); err != nil {
			return nil, err
		}
		score := OverallScore(patch.Criteria)
		review.Criteria = datatypes.JSONSlice[models.Criterion](patch.Criteria)
		review.OverallScore = &score
		updates["criteria"] = review.Criteria
		updates["overall_score"] = score
		fields = append(fields, "criteria", "overallScore")
	}
	if patch.Strengths != nil {
		review.Strengths = datatypes.JSONSlice[models.Strength](patch.Strengths)
		updates["strengths"] = review.Strengths
		fields = append(fields, "strengths")
	}
	if patch.Weaknesses != nil {
		review.Weaknesses = datatypes.JSONSlice[models.Weakness](patch.Weaknesses)
		updates["weaknesses"] = review.Weaknesses
		fields = append(fields, "weaknesses")
	}
	if patch.Recommendations != nil {
		review.Recommendations = datatypes.JSONSlice[models.Recommendation](patch.Recommendations)
		updates["recommendations"] = review.Recommendations
		fields = append(fields, "recommendations")
	}
	if patch.Feedback != nil {
		review.Feedback = datatypes.NewJSONType(*patch.Feedback)
		updates["feedback"] = review.Feedback
		fields = append(fields, "feedback")
	}

	changes, err := json.Marshal(patch)
	if err != nil {
		return nil, internal("failed to serialize review changes", err)
	}
	reason := strings.TrimSpace(patch.Reason)
	if reason == "" {
		reason = "Review updated"
	}
	now := s.now()
	history := append(datatypes.JSONSlice[models.Revision]{}, review.RevisionHistory...)
	history = append(history, models.Revision{
		Version:    len(review.RevisionHistory) + 1,
		ModifiedAt: now,
		ModifiedBy: actor.ID,
		Changes:    string(changes),
		Reason:     reason,
	})
	review.RevisionHistory = history
	updates["revision_history"] = history
	updates["updated_at"] = now

	res := db.Model(&models.Review{}).
		Where("id = ? AND status = ?", review.ID, models.ReviewDraft).
		Updates(updates)
	if res.Error != nil {
		return nil, internal("failed to update review", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, conflict("Review was submitted concurrently")
	}

	s.log.Record(ctx, models.ActionReviewUpdated, actor, rc, LogDetails{
		Target: &models.TargetResource{Kind: models.ResourceReview, ID: review.ID},
		Fields: map[string]interface{}{"reviewId": review.ID, "updatedFields": fields},
	})
	return review, nil
}

// Submit finalizes a draft review and moves the document to review_completed.
func (s *ReviewService) Submit(ctx context.Context, actor *Actor, id string, rc RequestContext) (*models.Review, error) {
	db := s.db.WithContext(ctx)
	review, reviewer, err := s.owned(db, actor, id)
	if err != nil {
		return nil, err
	}
	if review.Status != models.ReviewDraft {
		return nil, conflict("Review has already been submitted")
	}
	if review.OverallScore == nil || len(review.Criteria) == 0 {
		return nil, invalid("Review is incomplete. Please add criteria and overall score")
	}

	doc, err := loadDocumentWithInstitute(db, review.DocumentID)
	if err != nil {
		return nil, err
	}
	if doc.Status != models.StatusUnderReview && doc.Status != models.StatusAssignedForReview {
		return nil, conflict("Document is not under review")
	}

	now := s.now()
	signature := fmt.Sprintf("%s-%s", actor.Name, now.UTC().Format(time.RFC3339))
	oldStatus := doc.Status
	err = db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Review{}).
			Where("id = ? AND status = ?", review.ID, models.ReviewDraft).
			Updates(map[string]interface{}{
				"status":            models.ReviewSubmitted,
				"submitted_at":      now,
				"completed_at":      now,
				"signed":            true,
				"signed_at":         now,
				"digital_signature": signature,
				"updated_at":        now,
			})
		if res.Error != nil {
			return internal("failed to submit review", res.Error)
		}
		if res.RowsAffected == 0 {
			return conflict("Review has already been submitted")
		}
		if err := transition(tx, doc, models.StatusReviewCompleted, actor.ID, "", now, nil); err != nil {
			return err
		}
		return s.ledger.Complete(tx, models.KindReviewer, reviewer.ID, doc.ID, OutcomeSummary{
			StartedAt:   review.StartedAt,
			CompletedAt: now,
			InstituteID: review.InstituteID,
			Score:       *review.OverallScore,
		})
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordTransition(string(oldStatus), string(models.StatusReviewCompleted))

	review.Status = models.ReviewSubmitted
	review.SubmittedAt = &now
	review.CompletedAt = &now
	review.Signed = true
	review.SignedAt = &now
	review.DigitalSignature = signature

	if doc.Institute != nil && doc.Institute.ContactEmail != "" {
		s.notifier.SendStatusUpdate(doc.Institute.ContactEmail, doc.Institute.Name, doc.Title, oldStatus, models.StatusReviewCompleted)
	}
	s.log.Record(ctx, models.ActionReviewSubmitted, actor, rc, LogDetails{
		Target: documentTarget(doc),
		Fields: map[string]interface{}{"reviewId": review.ID, "documentTitle": doc.Title, "overallScore": *review.OverallScore},
	})
	return review, nil
}

func loadDocumentWithInstitute(tx *gorm.DB, id string) (*models.Document, error) {
	var doc models.Document
	if err := tx.Preload("Institute").Where("id = ?", id).Take(&doc).Error; err != nil {
		if isNotFound(err) {
			return nil, notFound("Document not found")
		}
		return nil, internal("failed to load document", err)
	}
	return &doc, nil
}

// Get returns one review. Auditors may read any review; institutes only reviews of their uploads.
func (s *ReviewService) Get(ctx context.Context, actor *Actor, id string) (*models.Review, error) {
	db := s.db.WithContext(ctx)
	var review models.Review
	if err := db.Preload("Document").Preload("Reviewer.User").Where("id = ?", id).Take(&review).Error; err != nil {
		if isNotFound(err) {
			return nil, notFound("Review not found")
		}
		return nil, internal("failed to load review", err)
	}

	allowed := false
	switch actor.Role {
	case models.RoleAdmin, models.RoleAuditor:
		allowed = true
	case models.RoleReviewer:
		reviewer, err := s.reviewerFor(db, actor)
		if err != nil && KindOf(err) != KindNotFound {
			return nil, err
		}
		allowed = reviewer != nil && reviewer.ID == review.ReviewerID
	case models.RoleInstitute:
		allowed = review.Document != nil && review.Document.UploadedBy == actor.ID
	}
	if !allowed {
		return nil, forbidden("Access denied")
	}
	return &review, nil
}

// ListByDocument returns every review of a document the caller may read, newest first.
func (s *ReviewService) ListByDocument(ctx context.Context, actor *Actor, documentID string) ([]models.Review, error) {
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
	var reviews []models.Review
	if err := db.Preload("Reviewer.User").Where("document_id = ?", doc.ID).
		Order("created_at DESC").Find(&reviews).Error; err != nil {
		return nil, internal("failed to load reviews", err)
	}
	return reviews, nil
}

type ReviewerStats struct {
	TotalAssigned     int     `json:"totalAssigned"`
	TotalCompleted    int     `json:"totalCompleted"`
	Overdue           int     `json:"overdue"`
	AverageReviewTime float64 `json:"averageReviewTime"`
	CurrentWorkload   int     `json:"currentWorkload"`
}

type ReviewerDashboard struct {
	Reviewer          *models.Reviewer         `json:"reviewer"`
	Assignments       []models.AssignmentEntry `json:"assignments"`
	AssignedDocuments []models.Document        `json:"assignedDocuments"`
	CompletedReviews  []models.Review          `json:"completedReviews"`
	Statistics        ReviewerStats            `json:"statistics"`
}

// Dashboard summarizes the caller's open and finished review work.
func (s *ReviewService) Dashboard(ctx context.Context, actor *Actor) (*ReviewerDashboard, error) {
	db := s.db.WithContext(ctx)
	reviewer, err := s.reviewerFor(db, actor)
	if err != nil {
		return nil, err
	}
	out := &ReviewerDashboard{Reviewer: reviewer}

	if out.Assignments, err = s.ledger.Entries(db, models.KindReviewer, reviewer.ID); err != nil {
		return nil, err
	}
	if err := db.Preload("Institute").
		Where("assigned_reviewer_id = ? AND status IN ?", reviewer.ID,
			[]models.DocumentStatus{models.StatusAssignedForReview, models.StatusUnderReview}).
		Order("review_due ASC").Find(&out.AssignedDocuments).Error; err != nil {
		return nil, internal("failed to load assigned documents", err)
	}
	if err := db.Preload("Document").Where("reviewer_id = ?", reviewer.ID).
		Order("created_at DESC").Limit(10).Find(&out.CompletedReviews).Error; err != nil {
		return nil, internal("failed to load reviews", err)
	}

	now := s.now()
	overdue := 0
	for _, d := range out.AssignedDocuments {
		if d.ReviewDue != nil && d.ReviewDue.Before(now) {
			overdue++
		}
	}
	out.Statistics = ReviewerStats{
		TotalAssigned:     len(out.AssignedDocuments),
		TotalCompleted:    reviewer.CompletedReviews,
		Overdue:           overdue,
		AverageReviewTime: reviewer.AverageReviewTime,
		CurrentWorkload:   reviewer.WorkloadPercentage(),
	}
	return out, nil
}
