package service

import (
	"context"
	"database/sql"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencampus/ucms-api/internal/models"
	appErrors "github.com/opencampus/ucms-api/pkg/errors"
	"github.com/opencampus/ucms-api/pkg/jobs"
	"github.com/opencampus/ucms-api/pkg/storage"
)

type mockReportRepo struct {
	jobs       map[string]*models.ReportJob
	listed     []models.ReportJob
	finishedID string
	failedID   string
	failedMsg  string
}

func newMockReportRepo() *mockReportRepo {
	return &mockReportRepo{jobs: map[string]*models.ReportJob{}}
}

func (m *mockReportRepo) Create(ctx context.Context, job *models.ReportJob) error {
	job.ID = uuid.NewString()
	job.CreatedAt = time.Now().UTC()
	m.jobs[job.ID] = job
	return nil
}

func (m *mockReportRepo) FindByID(ctx context.Context, id string) (*models.ReportJob, error) {
	job, ok := m.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return job, nil
}

func (m *mockReportRepo) ListByUser(ctx context.Context, userID string, limit int) ([]models.ReportJob, error) {
	return m.listed, nil
}

func (m *mockReportRepo) MarkProcessing(ctx context.Context, id string) error {
	m.jobs[id].Status = models.ReportStatusProcessing
	return nil
}

func (m *mockReportRepo) MarkFinished(ctx context.Context, id, resultURL string) error {
	m.finishedID = id
	m.jobs[id].Status = models.ReportStatusFinished
	m.jobs[id].ResultURL = &resultURL
	return nil
}

func (m *mockReportRepo) MarkFailed(ctx context.Context, id, message string) error {
	m.failedID = id
	m.failedMsg = message
	m.jobs[id].Status = models.ReportStatusFailed
	return nil
}

func (m *mockReportRepo) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

type mockReportGradeSource struct {
	grades []models.GradeDetail
}

func (m *mockReportGradeSource) List(ctx context.Context, filter models.GradeFilter) ([]models.GradeDetail, error) {
	return m.grades, nil
}

type mockReportEnrollmentSource struct {
	enrollments []models.EnrollmentDetail
}

func (m *mockReportEnrollmentSource) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	return m.enrollments, len(m.enrollments), nil
}

type mockReportUserSource struct {
	user *models.User
}

func (m *mockReportUserSource) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.user == nil {
		return nil, sql.ErrNoRows
	}
	return m.user, nil
}

type mockReportMeetingSource struct {
	rows []models.CourseMeetingRow
}

func (m *mockReportMeetingSource) ListMeetingsByInstructor(ctx context.Context, instructorID string) ([]models.CourseMeetingRow, error) {
	return m.rows, nil
}

func (m *mockReportMeetingSource) ListMeetingsByStudent(ctx context.Context, studentID string) ([]models.CourseMeetingRow, error) {
	return m.rows, nil
}

func newReportFixture(t *testing.T, repo *mockReportRepo, grades *mockReportGradeSource, users *mockReportUserSource, meetings *mockReportMeetingSource) *ReportService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("report-secret", time.Hour)
	return NewReportService(repo, grades, &mockReportEnrollmentSource{}, users, meetings, store, signer, jobs.QueueConfig{Workers: 1}, time.Hour, nil, nil)
}

func TestReportServiceRequestQueuesJob(t *testing.T) {
	repo := newMockReportRepo()
	svc := newReportFixture(t, repo, &mockReportGradeSource{}, &mockReportUserSource{}, &mockReportMeetingSource{})
	svc.Start(context.Background(), 0)
	defer svc.Stop()

	actor := &models.JWTClaims{UserID: uuid.NewString(), Role: models.RoleInstructor}
	job, err := svc.Request(context.Background(), RequestReportRequest{
		Type:     models.ReportTypeGrades,
		Format:   models.ReportFormatCSV,
		CourseID: uuid.NewString(),
	}, actor)
	require.NoError(t, err)

	assert.NotEmpty(t, job.ID)
	assert.Equal(t, actor.UserID, job.CreatedBy)
}

func TestReportServiceRequestGradesRequiresCourse(t *testing.T) {
	svc := newReportFixture(t, newMockReportRepo(), &mockReportGradeSource{}, &mockReportUserSource{}, &mockReportMeetingSource{})

	_, err := svc.Request(context.Background(), RequestReportRequest{
		Type:   models.ReportTypeGrades,
		Format: models.ReportFormatCSV,
	}, &models.JWTClaims{UserID: uuid.NewString(), Role: models.RoleAdmin})
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestReportServiceGetOtherUsersJobForbidden(t *testing.T) {
	repo := newMockReportRepo()
	owner := uuid.NewString()
	job := &models.ReportJob{Type: models.ReportTypeTimetable, Status: models.ReportStatusQueued, CreatedBy: owner}
	require.NoError(t, repo.Create(context.Background(), job))

	svc := newReportFixture(t, repo, &mockReportGradeSource{}, &mockReportUserSource{}, &mockReportMeetingSource{})

	_, err := svc.Get(context.Background(), job.ID, &models.JWTClaims{UserID: uuid.NewString(), Role: models.RoleStudent})
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)

	got, err := svc.Get(context.Background(), job.ID, &models.JWTClaims{UserID: uuid.NewString(), Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
}

func TestReportServiceProcessGradesCSVAndDownload(t *testing.T) {
	repo := newMockReportRepo()
	grades := &mockReportGradeSource{grades: []models.GradeDetail{
		{Grade: models.Grade{Component: "final", Score: 91, MaxScore: 100}, StudentName: "Grace Hopper"},
	}}
	svc := newReportFixture(t, repo, grades, &mockReportUserSource{}, &mockReportMeetingSource{})

	actorID := uuid.NewString()
	job := &models.ReportJob{
		Type:      models.ReportTypeGrades,
		Params:    models.ReportJobParams{CourseID: uuid.NewString(), Format: models.ReportFormatCSV},
		Status:    models.ReportStatusQueued,
		CreatedBy: actorID,
	}
	require.NoError(t, repo.Create(context.Background(), job))

	require.NoError(t, svc.process(context.Background(), jobs.Job{ID: job.ID, Type: string(job.Type)}))

	assert.Equal(t, job.ID, repo.finishedID)
	require.NotNil(t, job.ResultURL)
	assert.Contains(t, *job.ResultURL, "/api/v1/reports/download/")

	token := strings.TrimPrefix(*job.ResultURL, "/api/v1/reports/download/")
	got, file, err := svc.OpenByToken(context.Background(), token)
	require.NoError(t, err)
	defer file.Close()

	assert.Equal(t, job.ID, got.ID)
	data, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Grace Hopper,final,91.0,100.0")
}

func TestReportServiceProcessTimetablePDF(t *testing.T) {
	repo := newMockReportRepo()
	studentID := uuid.NewString()
	users := &mockReportUserSource{user: &models.User{ID: studentID, FullName: "Ada Park", Role: models.RoleStudent}}
	courseTime := "Mon 10:00-11:30"
	meetings := &mockReportMeetingSource{rows: []models.CourseMeetingRow{
		{Title: "Databases", CourseTime: &courseTime},
	}}
	svc := newReportFixture(t, repo, &mockReportGradeSource{}, users, meetings)

	job := &models.ReportJob{
		Type:      models.ReportTypeTimetable,
		Params:    models.ReportJobParams{UserID: studentID, Format: models.ReportFormatPDF},
		Status:    models.ReportStatusQueued,
		CreatedBy: studentID,
	}
	require.NoError(t, repo.Create(context.Background(), job))

	require.NoError(t, svc.process(context.Background(), jobs.Job{ID: job.ID, Type: string(job.Type)}))
	assert.Equal(t, models.ReportStatusFinished, job.Status)

	token := strings.TrimPrefix(*job.ResultURL, "/api/v1/reports/download/")
	_, file, err := svc.OpenByToken(context.Background(), token)
	require.NoError(t, err)
	defer file.Close()

	header := make([]byte, 4)
	_, err = io.ReadFull(file, header)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(header))
}

func TestReportServiceOpenByTokenUnfinishedJob(t *testing.T) {
	repo := newMockReportRepo()
	svc := newReportFixture(t, repo, &mockReportGradeSource{}, &mockReportUserSource{}, &mockReportMeetingSource{})

	job := &models.ReportJob{Type: models.ReportTypeGrades, Status: models.ReportStatusQueued, CreatedBy: uuid.NewString()}
	require.NoError(t, repo.Create(context.Background(), job))

	signer := storage.NewSignedURLSigner("report-secret", time.Hour)
	token, _, err := signer.Generate(job.ID, "reports/pending.csv")
	require.NoError(t, err)

	_, _, err = svc.OpenByToken(context.Background(), token)
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}
