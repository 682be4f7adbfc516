package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"accreditation-api/config"
	"accreditation-api/models"
	"accreditation-api/storage"
	"accreditation-api/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testPassword = "correct-horse-battery"

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

// memoryBlobs keeps uploads in a map.
type memoryBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	failing bool
}

func newMemoryBlobs() *memoryBlobs {
	return &memoryBlobs{objects: map[string][]byte{}}
}

func (m *memoryBlobs) Store(_ context.Context, r io.Reader, originalName, folder, _ string) (storage.Object, error) {
	if m.failing {
		return storage.Object{}, fmt.Errorf("bucket unavailable")
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return storage.Object{}, err
	}
	id := folder + "/" + uuid.NewString()
	m.mu.Lock()
	m.objects[id] = body
	m.mu.Unlock()
	return storage.Object{URL: "/uploads/" + id, ID: id, Checksum: utils.HashToken(string(body)), Size: int64(len(body)), Name: originalName}, nil
}

func (m *memoryBlobs) Open(_ context.Context, id string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	body, ok := m.objects[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

func (m *memoryBlobs) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[id]; !ok {
		return storage.ErrNotFound
	}
	delete(m.objects, id)
	return nil
}

func (m *memoryBlobs) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

type sentMail struct {
	Kind string
	To   string
	Body string
}

// recordingNotifier captures messages synchronously.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMail
}

func (n *recordingNotifier) add(kind, to, body string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMail{Kind: kind, To: to, Body: body})
}

func (n *recordingNotifier) SendAssignment(to, _, documentTitle, role string, _ *time.Time) {
	n.add("assignment", to, role+":"+documentTitle)
}

func (n *recordingNotifier) SendStatusUpdate(to, _, documentTitle string, _, newStatus models.DocumentStatus) {
	n.add("status_update", to, string(newStatus)+":"+documentTitle)
}

func (n *recordingNotifier) SendPasswordReset(to, token, _ string) {
	n.add("password_reset", to, token)
}

func (n *recordingNotifier) byKind(kind string) []sentMail {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sentMail
	for _, m := range n.sent {
		if m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}

type fixture struct {
	t        *testing.T
	ctx      context.Context
	db       *gorm.DB
	app      *App
	blobs    *memoryBlobs
	notifier *recordingNotifier

	admin         *models.User
	instituteUser *models.User
	reviewerUser  *models.User
	auditorUser   *models.User

	institute *models.Institute
	reviewer  *models.Reviewer
	auditor   *models.Auditor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	f := &fixture{
		t:        t,
		ctx:      context.Background(),
		db:       db,
		blobs:    newMemoryBlobs(),
		notifier: &recordingNotifier{},
	}
	settings := config.Settings{JWTSecret: "test-access-secret", JWTRefreshSecret: "test-refresh-secret"}
	f.app = NewApp(db, settings, AppDeps{Notifier: f.notifier, Blobs: f.blobs})

	f.admin = f.user("Ada Admin", "admin@example.com", models.RoleAdmin)
	f.instituteUser = f.user("Ivan Institute", "institute@example.com", models.RoleInstitute)
	f.reviewerUser = f.user("Rita Reviewer", "reviewer@example.com", models.RoleReviewer)
	f.auditorUser = f.user("Aldo Auditor", "auditor@example.com", models.RoleAuditor)

	f.institute = &models.Institute{
		Name:            "Northfield College",
		Code:            "NFC",
		Type:            "college",
		ContactEmail:    "office@northfield.example",
		AdministratorID: f.instituteUser.ID,
		Status:          models.InstituteActive,
		DocumentIDs:     datatypes.JSONSlice[string]{},
	}
	require.NoError(t, db.Create(f.institute).Error)

	f.reviewer = &models.Reviewer{
		UserID:          f.reviewerUser.ID,
		Specialization:  datatypes.JSONSlice[string]{"academic"},
		Availability:    models.Available,
		WorkloadMaximum: 10,
	}
	require.NoError(t, db.Create(f.reviewer).Error)

	f.auditor = &models.Auditor{
		UserID:          f.auditorUser.ID,
		LicenseNumber:   "AUD-0001",
		Specialization:  datatypes.JSONSlice[string]{"compliance"},
		Availability:    models.Available,
		WorkloadMaximum: 8,
		Performance:     datatypes.NewJSONType(models.AuditorPerformance{Accuracy: 90, Efficiency: 80, Consistency: 70}),
	}
	require.NoError(t, db.Create(f.auditor).Error)
	return f
}

func (f *fixture) user(name, email string, role models.Role) *models.User {
	f.t.Helper()
	hashed, err := utils.HashPassword(testPassword)
	require.NoError(f.t, err)
	u := &models.User{Name: name, Email: email, Password: hashed, Role: role, Status: models.UserActive}
	require.NoError(f.t, f.db.Create(u).Error)
	return u
}

func (f *fixture) actor(u *models.User) *Actor {
	return actorOf(u)
}

func (f *fixture) rc() RequestContext {
	return RequestContext{IP: "203.0.113.7", UserAgent: "Mozilla/5.0 (X11; Linux x86_64) Chrome/120.0", SessionID: "test-session"}
}

// upload creates a document as the institute user.
func (f *fixture) upload(title string) *models.Document {
	f.t.Helper()
	doc, err := f.app.Documents.Create(f.ctx, f.actor(f.instituteUser), CreateDocumentInput{
		Title: title,
		Type:  "accreditation_application",
	}, Upload{Reader: strings.NewReader("%PDF-1.7 " + title), OriginalName: "application.pdf", MimeType: "application/pdf"}, f.rc())
	require.NoError(f.t, err)
	return doc
}

func (f *fixture) document(id string) *models.Document {
	f.t.Helper()
	var doc models.Document
	require.NoError(f.t, f.db.Unscoped().Where("id = ?", id).Take(&doc).Error)
	return &doc
}

func (f *fixture) reloadReviewer() *models.Reviewer {
	f.t.Helper()
	var r models.Reviewer
	require.NoError(f.t, f.db.Where("id = ?", f.reviewer.ID).Take(&r).Error)
	return &r
}

func (f *fixture) reloadAuditor() *models.Auditor {
	f.t.Helper()
	var a models.Auditor
	require.NoError(f.t, f.db.Where("id = ?", f.auditor.ID).Take(&a).Error)
	return &a
}

func (f *fixture) logCount(action models.Action) int64 {
	f.t.Helper()
	var n int64
	require.NoError(f.t, f.db.Model(&models.ActivityLog{}).Where("action = ?", action).Count(&n).Error)
	return n
}

// reviewed drives a fresh document through assignment, review and submission.
func (f *fixture) reviewed(title string) (*models.Document, *models.Review) {
	f.t.Helper()
	doc := f.upload(title)
	_, err := f.app.Documents.AssignReviewer(f.ctx, f.actor(f.admin), AssignmentInput{DocumentID: doc.ID, PersonID: f.reviewer.ID}, f.rc())
	require.NoError(f.t, err)
	review, err := f.app.Reviews.Start(f.ctx, f.actor(f.reviewerUser), doc.ID, f.rc())
	require.NoError(f.t, err)
	_, err = f.app.Reviews.Update(f.ctx, f.actor(f.reviewerUser), review.ID, ReviewPatch{
		Criteria: []models.Criterion{{Name: "Governance", Score: 80, Weight: 1}, {Name: "Facilities", Score: 60, Weight: 1}},
	}, f.rc())
	require.NoError(f.t, err)
	review, err = f.app.Reviews.Submit(f.ctx, f.actor(f.reviewerUser), review.ID, f.rc())
	require.NoError(f.t, err)
	return f.document(doc.ID), review
}

// auditing takes a reviewed document through auditor assignment and audit start.
func (f *fixture) auditing(title string) (*models.Document, *models.Audit) {
	f.t.Helper()
	doc, _ := f.reviewed(title)
	_, err := f.app.Documents.AssignAuditor(f.ctx, f.actor(f.admin), AssignmentInput{DocumentID: doc.ID, PersonID: f.auditor.ID}, f.rc())
	require.NoError(f.t, err)
	audit, err := f.app.Audits.Start(f.ctx, f.actor(f.auditorUser), doc.ID, f.rc())
	require.NoError(f.t, err)
	return f.document(doc.ID), audit
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }
