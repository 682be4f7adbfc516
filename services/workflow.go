package services

import (
	"time"

	"accreditation-api/models"

	"gorm.io/gorm"
)

var completingStatuses = map[models.DocumentStatus]bool{
	models.StatusUploaded:         true,
	models.StatusReviewCompleted:  true,
	models.StatusAuditCompleted:   true,
	models.StatusApproved:         true,
	models.StatusRejected:         true,
	models.StatusRevisionRequired: true,
}

// applyStage records the stage for status on doc. The stage left behind is
// closed; an existing stage of the same name is updated in place, never duplicated.
func applyStage(doc *models.Document, status models.DocumentStatus, actorID, notes string, now time.Time) {
	name := models.StageForStatus(status)
	stages := make([]models.WorkflowStage, len(doc.Stages))
	copy(stages, doc.Stages)

	for i := range stages {
		if stages[i].Name != name && stages[i].Status == models.StageInProgress {
			stages[i].Status = models.StageCompleted
			stages[i].CompletedAt = &now
		}
	}

	done := completingStatuses[status]
	found := false
	for i := range stages {
		if stages[i].Name != name {
			continue
		}
		found = true
		if done && stages[i].Status != models.StageCompleted {
			stages[i].Status = models.StageCompleted
			stages[i].CompletedAt = &now
		}
		break
	}
	if !found {
		stage := models.WorkflowStage{
			Name:       name,
			Status:     models.StageInProgress,
			StartedAt:  &now,
			AssignedTo: actorID,
			Notes:      notes,
		}
		if done {
			stage.Status = models.StageCompleted
			stage.CompletedAt = &now
		}
		stages = append(stages, stage)
	}

	doc.Stages = stages
	doc.CurrentStage = name
	doc.Status = status
}

// transition moves doc to status and writes status, stages and any extra
// columns in one guarded UPDATE. A concurrent writer makes it fail with Conflict.
func transition(tx *gorm.DB, doc *models.Document, status models.DocumentStatus, actorID, notes string, now time.Time, extra map[string]interface{}) error {
	applyStage(doc, status, actorID, notes, now)

	updates := map[string]interface{}{
		"status":        doc.Status,
		"current_stage": doc.CurrentStage,
		"stages":        doc.Stages,
		"last_modified": now,
		"lock_version":  doc.LockVersion + 1,
		"updated_at":    now,
	}
	for k, v := range extra {
		updates[k] = v
	}
	return casUpdate(tx, doc, updates)
}

// casUpdate applies updates only if nobody bumped the lock version since doc was read.
func casUpdate(tx *gorm.DB, doc *models.Document, updates map[string]interface{}) error {
	if _, ok := updates["lock_version"]; !ok {
		updates["lock_version"] = doc.LockVersion + 1
	}
	res := tx.Model(&models.Document{}).
		Where("id = ? AND lock_version = ?", doc.ID, doc.LockVersion).
		Updates(updates)
	if res.Error != nil {
		return internal("failed to update document", res.Error)
	}
	if res.RowsAffected == 0 {
		return conflict("Document was modified concurrently, please retry")
	}
	doc.LockVersion++
	return nil
}

// OutcomeStatus maps an audit outcome to the document status it produces.
func OutcomeStatus(outcome models.Outcome) models.DocumentStatus {
	switch outcome {
	case models.OutcomeApproved, models.OutcomeApprovedWithConditions:
		return models.StatusApproved
	case models.OutcomeRejected:
		return models.StatusRejected
	case models.OutcomeRequiresRevision:
		return models.StatusRevisionRequired
	}
	return models.StatusAuditCompleted
}
