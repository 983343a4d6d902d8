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
)

type mockAssignmentRepo struct {
	assignmentByID *models.Assignment
	submissionByID *models.Submission
	created        *models.Assignment
	upserted       *models.Submission
	upsertErr      error
	gradedID       string
	gradedScore    float64
}

func (m *mockAssignmentRepo) ListByCourse(ctx context.Context, courseID string) ([]models.Assignment, error) {
	return nil, nil
}

func (m *mockAssignmentRepo) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	if m.assignmentByID == nil {
		return nil, sql.ErrNoRows
	}
	return m.assignmentByID, nil
}

func (m *mockAssignmentRepo) Create(ctx context.Context, assignment *models.Assignment) error {
	assignment.ID = uuid.NewString()
	m.created = assignment
	return nil
}

func (m *mockAssignmentRepo) Update(ctx context.Context, assignment *models.Assignment) error {
	return nil
}

func (m *mockAssignmentRepo) Delete(ctx context.Context, id string) error {
	return nil
}

func (m *mockAssignmentRepo) UpsertSubmission(ctx context.Context, submission *models.Submission) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	submission.ID = uuid.NewString()
	m.upserted = submission
	return nil
}

func (m *mockAssignmentRepo) FindSubmission(ctx context.Context, assignmentID, studentID string) (*models.Submission, error) {
	return nil, sql.ErrNoRows
}

func (m *mockAssignmentRepo) FindSubmissionByID(ctx context.Context, id string) (*models.Submission, error) {
	if m.submissionByID == nil {
		return nil, sql.ErrNoRows
	}
	return m.submissionByID, nil
}

func (m *mockAssignmentRepo) ListSubmissions(ctx context.Context, assignmentID string) ([]models.SubmissionDetail, error) {
	return nil, nil
}

func (m *mockAssignmentRepo) GradeSubmission(ctx context.Context, id string, score float64, feedback *string, gradedAt time.Time) error {
	m.gradedID = id
	m.gradedScore = score
	return nil
}

type mockAssignmentCourseRepo struct {
	course *models.Course
}

func (m *mockAssignmentCourseRepo) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if m.course == nil {
		return nil, sql.ErrNoRows
	}
	return m.course, nil
}

type mockEnrollmentChecker struct {
	active bool
}

func (m *mockEnrollmentChecker) ExistsActive(ctx context.Context, studentID, courseID string) (bool, error) {
	return m.active, nil
}

type mockFileStore struct {
	saved   []string
	deleted []string
}

func (m *mockFileStore) SaveStream(filename string, r io.Reader) (string, error) {
	m.saved = append(m.saved, filename)
	return filename, nil
}

func (m *mockFileStore) Delete(filename string) error {
	m.deleted = append(m.deleted, filename)
	return nil
}

func futureDue() *time.Time {
	due := time.Now().UTC().Add(48 * time.Hour)
	return &due
}

func TestAssignmentServiceCreateSuccess(t *testing.T) {
	instructorID := uuid.NewString()
	courseID := uuid.NewString()
	repo := &mockAssignmentRepo{}
	courses := &mockAssignmentCourseRepo{course: &models.Course{ID: courseID, InstructorID: instructorID}}
	svc := NewAssignmentService(repo, courses, &mockEnrollmentChecker{}, &mockFileStore{}, nil, nil)

	assignment, err := svc.Create(context.Background(), CreateAssignmentRequest{
		CourseID: courseID,
		Title:    "Problem set 3",
		DueDate:  futureDue(),
		MaxScore: 100,
	}, &models.JWTClaims{UserID: instructorID, Role: models.RoleInstructor})
	require.NoError(t, err)

	assert.NotEmpty(t, assignment.ID)
	assert.Equal(t, "Problem set 3", repo.created.Title)
}

func TestAssignmentServiceSubmitWithFile(t *testing.T) {
	studentID := uuid.NewString()
	assignmentID := uuid.NewString()
	courseID := uuid.NewString()
	repo := &mockAssignmentRepo{assignmentByID: &models.Assignment{ID: assignmentID, CourseID: courseID, DueDate: futureDue(), MaxScore: 100}}
	files := &mockFileStore{}
	svc := NewAssignmentService(repo, &mockAssignmentCourseRepo{course: &models.Course{ID: courseID}}, &mockEnrollmentChecker{active: true}, files, nil, nil)

	fileName := "solution.pdf"
	submission, err := svc.Submit(context.Background(), SubmitRequest{
		AssignmentID: assignmentID,
		FileName:     &fileName,
		File:         strings.NewReader("%PDF-1.4 ..."),
	}, studentID)
	require.NoError(t, err)

	assert.Equal(t, models.SubmissionStatusSubmitted, submission.Status)
	require.NotNil(t, submission.FilePath)
	require.Len(t, files.saved, 1)
	assert.True(t, strings.HasPrefix(files.saved[0], "submissions/"))
	assert.True(t, strings.HasSuffix(files.saved[0], "solution.pdf"))
}

func TestAssignmentServiceSubmitPastDue(t *testing.T) {
	assignmentID := uuid.NewString()
	past := time.Now().UTC().Add(-time.Hour)
	repo := &mockAssignmentRepo{assignmentByID: &models.Assignment{ID: assignmentID, CourseID: uuid.NewString(), DueDate: &past, MaxScore: 100}}
	svc := NewAssignmentService(repo, &mockAssignmentCourseRepo{}, &mockEnrollmentChecker{active: true}, &mockFileStore{}, nil, nil)

	content := "late answer"
	_, err := svc.Submit(context.Background(), SubmitRequest{AssignmentID: assignmentID, Content: &content}, uuid.NewString())
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrPastDue.Code, appErr.Code)
}

func TestAssignmentServiceSubmitNotEnrolled(t *testing.T) {
	assignmentID := uuid.NewString()
	repo := &mockAssignmentRepo{assignmentByID: &models.Assignment{ID: assignmentID, CourseID: uuid.NewString(), DueDate: futureDue(), MaxScore: 100}}
	svc := NewAssignmentService(repo, &mockAssignmentCourseRepo{}, &mockEnrollmentChecker{active: false}, &mockFileStore{}, nil, nil)

	content := "answer"
	_, err := svc.Submit(context.Background(), SubmitRequest{AssignmentID: assignmentID, Content: &content}, uuid.NewString())
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestAssignmentServiceSubmitRequiresContentOrFile(t *testing.T) {
	svc := NewAssignmentService(&mockAssignmentRepo{}, &mockAssignmentCourseRepo{}, &mockEnrollmentChecker{}, &mockFileStore{}, nil, nil)

	_, err := svc.Submit(context.Background(), SubmitRequest{AssignmentID: uuid.NewString()}, uuid.NewString())
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestAssignmentServiceSubmitCleansUpFileOnStoreFailure(t *testing.T) {
	assignmentID := uuid.NewString()
	courseID := uuid.NewString()
	repo := &mockAssignmentRepo{
		assignmentByID: &models.Assignment{ID: assignmentID, CourseID: courseID, DueDate: futureDue(), MaxScore: 100},
		upsertErr:      sql.ErrConnDone,
	}
	files := &mockFileStore{}
	svc := NewAssignmentService(repo, &mockAssignmentCourseRepo{course: &models.Course{ID: courseID}}, &mockEnrollmentChecker{active: true}, files, nil, nil)

	fileName := "essay.txt"
	_, err := svc.Submit(context.Background(), SubmitRequest{
		AssignmentID: assignmentID,
		FileName:     &fileName,
		File:         strings.NewReader("body"),
	}, uuid.NewString())
	require.Error(t, err)

	require.Len(t, files.deleted, 1)
	assert.Equal(t, files.saved[0], files.deleted[0])
}

func TestAssignmentServiceGradeSubmission(t *testing.T) {
	instructorID := uuid.NewString()
	courseID := uuid.NewString()
	assignmentID := uuid.NewString()
	submissionID := uuid.NewString()
	repo := &mockAssignmentRepo{
		assignmentByID: &models.Assignment{ID: assignmentID, CourseID: courseID, MaxScore: 50},
		submissionByID: &models.Submission{ID: submissionID, AssignmentID: assignmentID},
	}
	courses := &mockAssignmentCourseRepo{course: &models.Course{ID: courseID, InstructorID: instructorID}}
	svc := NewAssignmentService(repo, courses, &mockEnrollmentChecker{}, &mockFileStore{}, nil, nil)

	err := svc.GradeSubmission(context.Background(), submissionID, GradeSubmissionRequest{Score: 42}, &models.JWTClaims{UserID: instructorID, Role: models.RoleInstructor})
	require.NoError(t, err)

	assert.Equal(t, submissionID, repo.gradedID)
	assert.InDelta(t, 42, repo.gradedScore, 0.001)
}

func TestAssignmentServiceGradeSubmissionScoreAboveMax(t *testing.T) {
	courseID := uuid.NewString()
	assignmentID := uuid.NewString()
	submissionID := uuid.NewString()
	repo := &mockAssignmentRepo{
		assignmentByID: &models.Assignment{ID: assignmentID, CourseID: courseID, MaxScore: 50},
		submissionByID: &models.Submission{ID: submissionID, AssignmentID: assignmentID},
	}
	svc := NewAssignmentService(repo, &mockAssignmentCourseRepo{course: &models.Course{ID: courseID}}, &mockEnrollmentChecker{}, &mockFileStore{}, nil, nil)

	err := svc.GradeSubmission(context.Background(), submissionID, GradeSubmissionRequest{Score: 75}, &models.JWTClaims{Role: models.RoleAdmin})
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}
