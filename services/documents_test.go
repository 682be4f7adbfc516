package services

import (
	"io"
	"strings"
	"testing"
	"time"

	"accreditation-api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateDocument_LinksInstituteAndStartsUploadStage(t *testing.T) {
	f := newFixture(t)

	doc := f.upload("Self-assessment report")

	assert.Equal(t, models.StatusUploaded, doc.Status)
	assert.Equal(t, f.institute.ID, doc.InstituteID)
	assert.Equal(t, 1, doc.Version)
	assert.Equal(t, models.StageUpload, doc.CurrentStage)
	require.Len(t, doc.Stages, 1)
	assert.Equal(t, models.StageCompleted, doc.Stages[0].Status)
	assert.NotEmpty(t, doc.File.Checksum)
	assert.Equal(t, 1, f.blobs.count())

	var inst models.Institute
	require.NoError(t, f.db.Where("id = ?", f.institute.ID).Take(&inst).Error)
	assert.Contains(t, []string(inst.DocumentIDs), doc.ID)
	assert.EqualValues(t, 1, f.logCount(models.ActionDocumentUploaded))
}

func TestCreateDocument_Validation(t *testing.T) {
	f := newFixture(t)
	up := Upload{Reader: strings.NewReader("x"), OriginalName: "a.pdf"}

	_, err := f.app.Documents.Create(f.ctx, f.actor(f.reviewerUser), CreateDocumentInput{Title: "t", Type: "other"}, up, f.rc())
	assert.Equal(t, KindForbidden, KindOf(err))

	_, err = f.app.Documents.Create(f.ctx, f.actor(f.instituteUser), CreateDocumentInput{Title: "t", Type: "brochure"}, up, f.rc())
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = f.app.Documents.Create(f.ctx, f.actor(f.instituteUser), CreateDocumentInput{Title: "  ", Type: "other"}, up, f.rc())
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestCreateDocument_StorageFailureIsUpstream(t *testing.T) {
	f := newFixture(t)
	f.blobs.failing = true

	_, err := f.app.Documents.Create(f.ctx, f.actor(f.instituteUser), CreateDocumentInput{Title: "t", Type: "other"},
		Upload{Reader: strings.NewReader("x"), OriginalName: "a.pdf"}, f.rc())

	assert.Equal(t, KindUpstream, KindOf(err))
	assert.EqualValues(t, 1, f.logCount(models.ActionDocumentUploadFailed))
	var n int64
	require.NoError(t, f.db.Model(&models.Document{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestAssignReviewer_MovesDocumentAndTakesCapacity(t *testing.T) {
	f := newFixture(t)
	doc := f.upload("Application")
	due := time.Now().Add(72 * time.Hour)

	got, err := f.app.Documents.AssignReviewer(f.ctx, f.actor(f.admin), AssignmentInput{
		DocumentID: doc.ID,
		PersonID:   f.reviewer.ID,
		DueDate:    &due,
	}, f.rc())
	require.NoError(t, err)

	assert.Equal(t, models.StatusAssignedForReview, got.Status)
	require.NotNil(t, got.AssignedReviewerID)
	assert.Equal(t, f.reviewer.ID, *got.AssignedReviewerID)
	require.NotNil(t, got.ReviewDue)
	assert.WithinDuration(t, due, *got.ReviewDue, time.Second)
	assert.Equal(t, 1, f.reloadReviewer().WorkloadCurrent)

	entries, err := f.app.Ledger.Entries(f.db, models.KindReviewer, f.reviewer.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.AssignmentAssigned, entries[0].Status)
	assert.Equal(t, doc.ID, entries[0].DocumentID)

	mails := f.notifier.byKind("assignment")
	require.Len(t, mails, 1)
	assert.Equal(t, f.reviewerUser.Email, mails[0].To)
	assert.EqualValues(t, 1, f.logCount(models.ActionReviewerAssigned))
}

func TestAssignReviewer_Guards(t *testing.T) {
	f := newFixture(t)
	doc := f.upload("Application")

	_, err := f.app.Documents.AssignReviewer(f.ctx, f.actor(f.instituteUser), AssignmentInput{DocumentID: doc.ID, PersonID: f.reviewer.ID}, f.rc())
	assert.Equal(t, KindForbidden, KindOf(err))

	_, err = f.app.Documents.AssignReviewer(f.ctx, f.actor(f.admin), AssignmentInput{DocumentID: doc.ID, PersonID: "missing"}, f.rc())
	assert.Equal(t, KindNotFound, KindOf(err))

	_, err = f.app.Documents.AssignReviewer(f.ctx, f.actor(f.admin), AssignmentInput{DocumentID: doc.ID, PersonID: f.reviewer.ID}, f.rc())
	require.NoError(t, err)

	_, err = f.app.Documents.AssignReviewer(f.ctx, f.actor(f.admin), AssignmentInput{DocumentID: doc.ID, PersonID: f.reviewer.ID}, f.rc())
	assert.Equal(t, KindConflict, KindOf(err))
	assert.Equal(t, 1, f.reloadReviewer().WorkloadCurrent)
}

func TestAssignReviewer_UnavailableReviewer(t *testing.T) {
	f := newFixture(t)
	doc := f.upload("Application")
	require.NoError(t, f.db.Model(&models.Reviewer{}).Where("id = ?", f.reviewer.ID).
		Updates(map[string]interface{}{"workload_current": 10}).Error)

	_, err := f.app.Documents.AssignReviewer(f.ctx, f.actor(f.admin), AssignmentInput{DocumentID: doc.ID, PersonID: f.reviewer.ID}, f.rc())

	assert.Equal(t, KindCapacityExceeded, KindOf(err))
	assert.Equal(t, models.StatusUploaded, f.document(doc.ID).Status)
}

func TestAssignAuditor_RejectedBeforeReview(t *testing.T) {
	f := newFixture(t)
	doc := f.upload("Application")
	before := f.document(doc.ID)

	_, err := f.app.Documents.AssignAuditor(f.ctx, f.actor(f.admin), AssignmentInput{DocumentID: doc.ID, PersonID: f.auditor.ID}, f.rc())

	require.Error(t, err)
	assert.Equal(t, KindConflict, KindOf(err))
	after := f.document(doc.ID)
	assert.Equal(t, models.StatusUploaded, after.Status)
	assert.Nil(t, after.AssignedAuditorID)
	assert.Equal(t, before.LockVersion, after.LockVersion)
	assert.Zero(t, f.reloadAuditor().WorkloadCurrent)
	assert.Zero(t, f.logCount(models.ActionAuditorAssigned))
}

func TestRemoveAssignment_ReturnsDocumentToUploaded(t *testing.T) {
	f := newFixture(t)
	doc := f.upload("Application")
	_, err := f.app.Documents.AssignReviewer(f.ctx, f.actor(f.admin), AssignmentInput{DocumentID: doc.ID, PersonID: f.reviewer.ID}, f.rc())
	require.NoError(t, err)

	got, err := f.app.Documents.RemoveAssignment(f.ctx, f.actor(f.admin), doc.ID, models.KindReviewer, "reviewer on leave", f.rc())
	require.NoError(t, err)

	assert.Equal(t, models.StatusUploaded, got.Status)
	assert.Nil(t, got.AssignedReviewerID)
	assert.Zero(t, f.reloadReviewer().WorkloadCurrent)

	_, err = f.app.Documents.RemoveAssignment(f.ctx, f.actor(f.admin), doc.ID, models.KindReviewer, "", f.rc())
	assert.Equal(t, KindConflict, KindOf(err))

	_, err = f.app.Documents.AssignReviewer(f.ctx, f.actor(f.admin), AssignmentInput{DocumentID: doc.ID, PersonID: f.reviewer.ID}, f.rc())
	assert.NoError(t, err)
}

func TestUpdateDocument_LockedWhileUnderReview(t *testing.T) {
	f := newFixture(t)
	doc := f.upload("Application")

	got, err := f.app.Documents.Update(f.ctx, f.actor(f.instituteUser), doc.ID, DocumentPatch{Title: strPtr("Renamed"), Tags: []string{"2026"}}, f.rc())
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.Equal(t, []string{"2026"}, []string(got.Tags))

	_, err = f.app.Documents.AssignReviewer(f.ctx, f.actor(f.admin), AssignmentInput{DocumentID: doc.ID, PersonID: f.reviewer.ID}, f.rc())
	require.NoError(t, err)
	_, err = f.app.Reviews.Start(f.ctx, f.actor(f.reviewerUser), doc.ID, f.rc())
	require.NoError(t, err)

	_, err = f.app.Documents.Update(f.ctx, f.actor(f.instituteUser), doc.ID, DocumentPatch{Title: strPtr("Again")}, f.rc())
	assert.Equal(t, KindConflict, KindOf(err))

	err = f.app.Documents.Delete(f.ctx, f.actor(f.instituteUser), doc.ID, f.rc())
	assert.Equal(t, KindConflict, KindOf(err))

	_, err = f.app.Documents.Update(f.ctx, f.actor(f.reviewerUser), doc.ID, DocumentPatch{Title: strPtr("x")}, f.rc())
	assert.Equal(t, KindForbidden, KindOf(err))
}

func TestCasUpdate_StaleWriterGetsConflict(t *testing.T) {
	f := newFixture(t)
	doc := f.upload("Application")

	stale := f.document(doc.ID)
	fresh := f.document(doc.ID)
	require.NoError(t, casUpdate(f.db, fresh, map[string]interface{}{"title": "first"}))

	err := casUpdate(f.db, stale, map[string]interface{}{"title": "second"})

	assert.Equal(t, KindConflict, KindOf(err))
	assert.Equal(t, "first", f.document(doc.ID).Title)
}

func TestDeleteDocument_UploadedIsRemovedPhysically(t *testing.T) {
	f := newFixture(t)
	doc := f.upload("Application")

	require.NoError(t, f.app.Documents.Delete(f.ctx, f.actor(f.instituteUser), doc.ID, f.rc()))

	var n int64
	require.NoError(t, f.db.Unscoped().Model(&models.Document{}).Where("id = ?", doc.ID).Count(&n).Error)
	assert.Zero(t, n)
	assert.Zero(t, f.blobs.count())
	var inst models.Institute
	require.NoError(t, f.db.Where("id = ?", f.institute.ID).Take(&inst).Error)
	assert.NotContains(t, []string(inst.DocumentIDs), doc.ID)
}

func TestDeleteDocument_RejectedIsSoftDeleted(t *testing.T) {
	f := newFixture(t)
	doc := f.upload("Application")
	_, err := f.app.Documents.OverrideStatus(f.ctx, f.actor(f.admin), doc.ID, models.StatusRejected, "incomplete", f.rc())
	require.NoError(t, err)

	require.NoError(t, f.app.Documents.Delete(f.ctx, f.actor(f.instituteUser), doc.ID, f.rc()))

	_, err = f.app.Documents.Get(f.ctx, f.actor(f.admin), doc.ID)
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.True(t, f.document(doc.ID).DeletedAt.Valid)
	assert.Equal(t, 1, f.blobs.count())
}

func TestReupload_KeepsPreviousVersion(t *testing.T) {
	f := newFixture(t)
	doc := f.upload("Application")
	_, err := f.app.Documents.OverrideStatus(f.ctx, f.actor(f.admin), doc.ID, models.StatusRevisionRequired, "", f.rc())
	require.NoError(t, err)

	got, err := f.app.Documents.Reupload(f.ctx, f.actor(f.instituteUser), doc.ID,
		Upload{Reader: strings.NewReader("v2"), OriginalName: "application-v2.pdf", MimeType: "application/pdf"}, "fixed annex", f.rc())
	require.NoError(t, err)

	assert.Equal(t, 2, got.Version)
	assert.Equal(t, models.StatusUploaded, got.Status)
	require.Len(t, got.PreviousVersions, 1)
	assert.Equal(t, 1, got.PreviousVersions[0].Version)
	assert.Equal(t, doc.File.StorageID, got.PreviousVersions[0].StorageID)
	assert.Equal(t, "fixed annex", got.PreviousVersions[0].Reason)
	assert.Equal(t, "application-v2.pdf", got.File.OriginalName)

	rc, err := f.app.Documents.OpenFile(f.ctx, got)
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "v2", string(body))
}

func TestReupload_BlockedWhileAssigned(t *testing.T) {
	f := newFixture(t)
	doc := f.upload("Application")
	_, err := f.app.Documents.AssignReviewer(f.ctx, f.actor(f.admin), AssignmentInput{DocumentID: doc.ID, PersonID: f.reviewer.ID}, f.rc())
	require.NoError(t, err)

	_, err = f.app.Documents.Reupload(f.ctx, f.actor(f.instituteUser), doc.ID,
		Upload{Reader: strings.NewReader("v2"), OriginalName: "v2.pdf"}, "", f.rc())

	assert.Equal(t, KindConflict, KindOf(err))
}

func TestDocumentReadAccess(t *testing.T) {
	f := newFixture(t)
	doc := f.upload("Application")
	other := f.user("Olga Outsider", "outsider@example.com", models.RoleInstitute)

	_, err := f.app.Documents.Get(f.ctx, f.actor(other), doc.ID)
	assert.Equal(t, KindForbidden, KindOf(err))

	_, err = f.app.Documents.Get(f.ctx, f.actor(f.reviewerUser), doc.ID)
	assert.Equal(t, KindForbidden, KindOf(err))

	_, err = f.app.Documents.AssignReviewer(f.ctx, f.actor(f.admin), AssignmentInput{DocumentID: doc.ID, PersonID: f.reviewer.ID}, f.rc())
	require.NoError(t, err)

	got, err := f.app.Documents.Get(f.ctx, f.actor(f.reviewerUser), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AccessCount)

	got, err = f.app.Documents.Download(f.ctx, f.actor(f.instituteUser), doc.ID, f.rc())
	require.NoError(t, err)
	assert.Equal(t, 1, got.DownloadCount)
	assert.EqualValues(t, 1, f.logCount(models.ActionDocumentDownloaded))
}

func TestListDocuments_ScopedByRole(t *testing.T) {
	f := newFixture(t)
	first := f.upload("First")
	f.upload("Second")
	_, err := f.app.Documents.AssignReviewer(f.ctx, f.actor(f.admin), AssignmentInput{DocumentID: first.ID, PersonID: f.reviewer.ID}, f.rc())
	require.NoError(t, err)

	page, err := f.app.Documents.List(f.ctx, f.actor(f.instituteUser), DocumentFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Pagination.Total)

	page, err = f.app.Documents.List(f.ctx, f.actor(f.reviewerUser), DocumentFilter{})
	require.NoError(t, err)
	require.Len(t, page.Documents, 1)
	assert.Equal(t, first.ID, page.Documents[0].ID)

	page, err = f.app.Documents.List(f.ctx, f.actor(f.admin), DocumentFilter{Search: "seco"})
	require.NoError(t, err)
	require.Len(t, page.Documents, 1)
	assert.Equal(t, "Second", page.Documents[0].Title)

	assigned, err := f.app.Documents.ListAssigned(f.ctx, f.actor(f.reviewerUser))
	require.NoError(t, err)
	assert.Len(t, assigned, 1)
}

func TestOverrideStatus_AdminOnly(t *testing.T) {
	f := newFixture(t)
	doc := f.upload("Application")

	_, err := f.app.Documents.OverrideStatus(f.ctx, f.actor(f.instituteUser), doc.ID, models.StatusApproved, "", f.rc())
	assert.Equal(t, KindForbidden, KindOf(err))

	_, err = f.app.Documents.OverrideStatus(f.ctx, f.actor(f.admin), doc.ID, "bogus", "", f.rc())
	assert.Equal(t, KindValidation, KindOf(err))

	got, err := f.app.Documents.OverrideStatus(f.ctx, f.actor(f.admin), doc.ID, models.StatusApproved, "board decision", f.rc())
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, got.Status)
	assert.Equal(t, models.StageFinalDecision, got.CurrentStage)
	assert.Len(t, f.notifier.byKind("status_update"), 1)
}
