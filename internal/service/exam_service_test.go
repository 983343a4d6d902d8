package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencampus/ucms-api/internal/models"
	appErrors "github.com/opencampus/ucms-api/pkg/errors"
)

type mockExamRepo struct {
	examByID  *models.Exam
	created   *models.Exam
	deletedID string
	result    *models.ExamResult
}

func (m *mockExamRepo) ListByCourse(ctx context.Context, courseID string) ([]models.Exam, error) {
	return nil, nil
}

func (m *mockExamRepo) FindByID(ctx context.Context, id string) (*models.Exam, error) {
	if m.examByID == nil {
		return nil, sql.ErrNoRows
	}
	return m.examByID, nil
}

func (m *mockExamRepo) Create(ctx context.Context, exam *models.Exam) error {
	exam.ID = uuid.NewString()
	m.created = exam
	return nil
}

func (m *mockExamRepo) Update(ctx context.Context, exam *models.Exam) error {
	return nil
}

func (m *mockExamRepo) Delete(ctx context.Context, id string) error {
	m.deletedID = id
	return nil
}

func (m *mockExamRepo) UpsertResult(ctx context.Context, result *models.ExamResult) error {
	result.ID = uuid.NewString()
	m.result = result
	return nil
}

func (m *mockExamRepo) ListResults(ctx context.Context, examID string) ([]models.ExamResultDetail, error) {
	return nil, nil
}

func (m *mockExamRepo) ListResultsForStudent(ctx context.Context, studentID string) ([]models.ExamResultDetail, error) {
	return nil, nil
}

type mockExamCourseRepo struct {
	course *models.Course
}

func (m *mockExamCourseRepo) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if m.course == nil {
		return nil, sql.ErrNoRows
	}
	return m.course, nil
}

func TestExamServiceCreateSuccess(t *testing.T) {
	instructorID := uuid.NewString()
	courseID := uuid.NewString()
	repo := &mockExamRepo{}
	courses := &mockExamCourseRepo{course: &models.Course{ID: courseID, InstructorID: instructorID}}
	svc := NewExamService(repo, courses, nil, nil)

	room := "Hall B"
	exam, err := svc.Create(context.Background(), CreateExamRequest{
		CourseID:        courseID,
		Title:           "Final Exam",
		ExamDate:        time.Date(2026, 6, 15, 9, 0, 0, 0, time.UTC),
		DurationMinutes: 120,
		Room:            &room,
		MaxScore:        100,
	}, &models.JWTClaims{UserID: instructorID, Role: models.RoleInstructor})
	require.NoError(t, err)

	assert.NotEmpty(t, exam.ID)
	assert.Equal(t, 120, repo.created.DurationMinutes)
}

func TestExamServiceCreateInvalidDuration(t *testing.T) {
	courseID := uuid.NewString()
	courses := &mockExamCourseRepo{course: &models.Course{ID: courseID}}
	svc := NewExamService(&mockExamRepo{}, courses, nil, nil)

	_, err := svc.Create(context.Background(), CreateExamRequest{
		CourseID:        courseID,
		Title:           "Quiz",
		ExamDate:        time.Now(),
		DurationMinutes: 0,
		MaxScore:        20,
	}, &models.JWTClaims{Role: models.RoleAdmin})
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestExamServiceRecordResult(t *testing.T) {
	instructorID := uuid.NewString()
	courseID := uuid.NewString()
	examID := uuid.NewString()
	repo := &mockExamRepo{examByID: &models.Exam{ID: examID, CourseID: courseID, MaxScore: 100}}
	courses := &mockExamCourseRepo{course: &models.Course{ID: courseID, InstructorID: instructorID}}
	svc := NewExamService(repo, courses, nil, nil)

	label := "A-"
	result, err := svc.RecordResult(context.Background(), examID, RecordExamResultRequest{
		StudentID:  uuid.NewString(),
		Score:      88,
		GradeLabel: &label,
	}, &models.JWTClaims{UserID: instructorID, Role: models.RoleInstructor})
	require.NoError(t, err)

	assert.Equal(t, instructorID, result.RecordedBy)
	require.NotNil(t, repo.result)
	assert.Equal(t, examID, repo.result.ExamID)
}

func TestExamServiceRecordResultScoreAboveMax(t *testing.T) {
	courseID := uuid.NewString()
	examID := uuid.NewString()
	repo := &mockExamRepo{examByID: &models.Exam{ID: examID, CourseID: courseID, MaxScore: 40}}
	courses := &mockExamCourseRepo{course: &models.Course{ID: courseID}}
	svc := NewExamService(repo, courses, nil, nil)

	_, err := svc.RecordResult(context.Background(), examID, RecordExamResultRequest{
		StudentID: uuid.NewString(),
		Score:     41,
	}, &models.JWTClaims{Role: models.RoleAdmin})
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestExamServiceRecordResultOtherInstructorForbidden(t *testing.T) {
	examID := uuid.NewString()
	courseID := uuid.NewString()
	repo := &mockExamRepo{examByID: &models.Exam{ID: examID, CourseID: courseID, MaxScore: 100}}
	courses := &mockExamCourseRepo{course: &models.Course{ID: courseID, InstructorID: uuid.NewString()}}
	svc := NewExamService(repo, courses, nil, nil)

	_, err := svc.RecordResult(context.Background(), examID, RecordExamResultRequest{
		StudentID: uuid.NewString(),
		Score:     10,
	}, &models.JWTClaims{UserID: uuid.NewString(), Role: models.RoleInstructor})
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestExamServiceDeleteNotFound(t *testing.T) {
	svc := NewExamService(&mockExamRepo{}, &mockExamCourseRepo{}, nil, nil)

	err := svc.Delete(context.Background(), uuid.NewString(), &models.JWTClaims{Role: models.RoleAdmin})
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}
