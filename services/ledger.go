package services

import (
	"math"
	"time"

	"accreditation-api/models"

	"gorm.io/gorm"
)

// AverageFunc folds one elapsed duration, in hours, into a stored average.
// completed is the count including the item being folded in.
type AverageFunc func(old, elapsed float64, completed int) float64

// RunningAverage halves toward each new sample. It is not a true mean; the
// dashboards have always shown this value.
func RunningAverage(old, elapsed float64, _ int) float64 {
	if old == 0 {
		return elapsed
	}
	return (old + elapsed) / 2
}

// CumulativeMean is the arithmetic mean over all completed items.
func CumulativeMean(old, elapsed float64, completed int) float64 {
	if completed <= 1 {
		return elapsed
	}
	return old + (elapsed-old)/float64(completed)
}

// OutcomeSummary describes a finished review or audit for the ledger.
type OutcomeSummary struct {
	StartedAt   time.Time
	CompletedAt time.Time
	InstituteID string
	Outcome     string
	Score       int
}

// ElapsedHours is the time between start and completion in hours, never negative.
func (o OutcomeSummary) ElapsedHours() float64 {
	h := o.CompletedAt.Sub(o.StartedAt).Hours()
	return math.Max(0, h)
}

type ledgerColumns struct {
	table     string
	completed string
	average   string
}

var ledgerTables = map[models.PersonKind]ledgerColumns{
	models.KindReviewer: {table: "reviewers", completed: "completed_reviews", average: "average_review_time"},
	models.KindAuditor:  {table: "auditors", completed: "completed_audits", average: "average_audit_time"},
}

type workloadRow struct {
	Availability    models.Availability
	WorkloadCurrent int
	WorkloadMaximum int
}

// Ledger keeps reviewer and auditor worklists and workload counters.
// Every method runs on the caller's transaction.
type Ledger struct {
	average AverageFunc
	now     func() time.Time
}

func NewLedger(average AverageFunc) *Ledger {
	if average == nil {
		average = RunningAverage
	}
	return &Ledger{average: average, now: time.Now}
}

func (l *Ledger) columns(kind models.PersonKind) (ledgerColumns, error) {
	cols, ok := ledgerTables[kind]
	if !ok {
		return ledgerColumns{}, invalid("unknown assignee kind %q", kind)
	}
	return cols, nil
}

func (l *Ledger) workload(tx *gorm.DB, kind models.PersonKind, personID string) (*workloadRow, error) {
	cols, err := l.columns(kind)
	if err != nil {
		return nil, err
	}
	var row workloadRow
	if err := tx.Table(cols.table).
		Select("availability, workload_current, workload_maximum").
		Where("id = ?", personID).Take(&row).Error; err != nil {
		if isNotFound(err) {
			return nil, notFound("%s not found", titleKind(kind))
		}
		return nil, internal("failed to load workload", err)
	}
	return &row, nil
}

// Assign adds a worklist entry and takes one unit of capacity.
func (l *Ledger) Assign(tx *gorm.DB, kind models.PersonKind, personID, documentID string, due *time.Time) error {
	row, err := l.workload(tx, kind, personID)
	if err != nil {
		return err
	}
	if !models.IsAvailable(row.Availability, row.WorkloadCurrent, row.WorkloadMaximum) {
		return capacityExceeded("%s is not available for new assignments", titleKind(kind))
	}

	cols, _ := l.columns(kind)
	res := tx.Table(cols.table).
		Where("id = ? AND workload_current < workload_maximum", personID).
		Update("workload_current", gorm.Expr("workload_current + 1"))
	if res.Error != nil {
		return internal("failed to update workload", res.Error)
	}
	if res.RowsAffected == 0 {
		return capacityExceeded("%s is not available for new assignments", titleKind(kind))
	}

	entry := models.AssignmentEntry{
		PersonKind: kind,
		PersonID:   personID,
		DocumentID: documentID,
		Status:     models.AssignmentAssigned,
		AssignedAt: l.now(),
		DueDate:    due,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return internal("failed to record assignment", err)
	}
	return nil
}

func activeEntry(tx *gorm.DB, kind models.PersonKind, personID, documentID string) *gorm.DB {
	return tx.Model(&models.AssignmentEntry{}).
		Where("person_kind = ? AND person_id = ? AND document_id = ? AND status IN ?",
			kind, personID, documentID,
			[]models.AssignmentStatus{models.AssignmentAssigned, models.AssignmentInProgress})
}

// MarkInProgress flags the matching entry as started. A missing entry is not an error.
func (l *Ledger) MarkInProgress(tx *gorm.DB, kind models.PersonKind, personID, documentID string) error {
	if _, err := l.columns(kind); err != nil {
		return err
	}
	if err := activeEntry(tx, kind, personID, documentID).
		Update("status", models.AssignmentInProgress).Error; err != nil {
		return internal("failed to update assignment", err)
	}
	return nil
}

// Complete closes the entry, releases capacity and folds the outcome into the running statistics.
func (l *Ledger) Complete(tx *gorm.DB, kind models.PersonKind, personID, documentID string, outcome OutcomeSummary) error {
	cols, err := l.columns(kind)
	if err != nil {
		return err
	}

	if err := activeEntry(tx, kind, personID, documentID).
		Update("status", models.AssignmentCompleted).Error; err != nil {
		return internal("failed to update assignment", err)
	}

	var stats struct {
		Completed int
		Average   float64
	}
	if err := tx.Table(cols.table).
		Select(cols.completed+" AS completed, "+cols.average+" AS average").
		Where("id = ?", personID).Take(&stats).Error; err != nil {
		if isNotFound(err) {
			return notFound("%s not found", titleKind(kind))
		}
		return internal("failed to load statistics", err)
	}

	completed := stats.Completed + 1
	if err := tx.Table(cols.table).Where("id = ?", personID).Updates(map[string]interface{}{
		"workload_current": gorm.Expr("CASE WHEN workload_current > 0 THEN workload_current - 1 ELSE 0 END"),
		cols.completed:     completed,
		cols.average:       l.average(stats.Average, outcome.ElapsedHours(), completed),
		"updated_at":       l.now(),
	}).Error; err != nil {
		return internal("failed to update statistics", err)
	}

	if kind == models.KindAuditor {
		entry := models.AuditHistoryEntry{
			AuditorID:     personID,
			DocumentID:    documentID,
			InstituteID:   outcome.InstituteID,
			CompletedDate: outcome.CompletedAt,
			Outcome:       outcome.Outcome,
			Score:         outcome.Score,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return internal("failed to record audit history", err)
		}
	}
	return nil
}

// Remove withdraws an active entry and releases its capacity. It reports whether an entry was found.
func (l *Ledger) Remove(tx *gorm.DB, kind models.PersonKind, personID, documentID string) (bool, error) {
	cols, err := l.columns(kind)
	if err != nil {
		return false, err
	}
	res := activeEntry(tx, kind, personID, documentID).Update("status", models.AssignmentRemoved)
	if res.Error != nil {
		return false, internal("failed to update assignment", res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	if err := tx.Table(cols.table).Where("id = ?", personID).
		Update("workload_current", gorm.Expr("CASE WHEN workload_current > 0 THEN workload_current - 1 ELSE 0 END")).Error; err != nil {
		return false, internal("failed to update workload", err)
	}
	return true, nil
}

// Entries lists a person's worklist, newest first, with the documents preloaded.
func (l *Ledger) Entries(tx *gorm.DB, kind models.PersonKind, personID string) ([]models.AssignmentEntry, error) {
	var entries []models.AssignmentEntry
	if err := tx.Preload("Document").
		Where("person_kind = ? AND person_id = ?", kind, personID).
		Order("assigned_at DESC").Find(&entries).Error; err != nil {
		return nil, internal("failed to load assignments", err)
	}
	return entries, nil
}

func titleKind(kind models.PersonKind) string {
	if kind == models.KindAuditor {
		return "Auditor"
	}
	return "Reviewer"
}
