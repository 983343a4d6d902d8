package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencampus/ucms-api/internal/models"
	appErrors "github.com/opencampus/ucms-api/pkg/errors"
)

type mockEnrollmentRepo struct {
	enrollmentByID *models.Enrollment
	activeExists   bool
	created        *models.Enrollment
	updatedID      string
	updatedStatus  models.EnrollmentStatus
	createErr      error
}

func (m *mockEnrollmentRepo) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	return nil, 0, nil
}

func (m *mockEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if m.enrollmentByID == nil {
		return nil, sql.ErrNoRows
	}
	return m.enrollmentByID, nil
}

func (m *mockEnrollmentRepo) ExistsActive(ctx context.Context, studentID, courseID string) (bool, error) {
	return m.activeExists, nil
}

func (m *mockEnrollmentRepo) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if m.createErr != nil {
		return m.createErr
	}
	enrollment.ID = uuid.NewString()
	m.created = enrollment
	return nil
}

func (m *mockEnrollmentRepo) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, droppedAt *time.Time) error {
	m.updatedID = id
	m.updatedStatus = status
	return nil
}

type mockEnrollmentCourseRepo struct {
	course      *models.Course
	activeCount int
}

func (m *mockEnrollmentCourseRepo) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if m.course == nil {
		return nil, sql.ErrNoRows
	}
	return m.course, nil
}

func (m *mockEnrollmentCourseRepo) CountActiveEnrollments(ctx context.Context, courseID string) (int, error) {
	return m.activeCount, nil
}

type mockCacheInvalidator struct {
	patterns []string
}

func (m *mockCacheInvalidator) DeleteByPattern(ctx context.Context, pattern string) error {
	m.patterns = append(m.patterns, pattern)
	return nil
}

func TestEnrollmentServiceEnrollSuccess(t *testing.T) {
	studentID := uuid.NewString()
	courseID := uuid.NewString()
	repo := &mockEnrollmentRepo{}
	courses := &mockEnrollmentCourseRepo{course: &models.Course{ID: courseID, Capacity: 30}, activeCount: 12}
	cache := &mockCacheInvalidator{}
	svc := NewEnrollmentService(repo, courses, cache, nil, nil)

	enrollment, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: studentID, CourseID: courseID})
	require.NoError(t, err)
	assert.NotEmpty(t, enrollment.ID)
	assert.Equal(t, models.EnrollmentStatusActive, enrollment.Status)
	assert.Contains(t, cache.patterns, "timetable:"+studentID+":*")
	assert.Contains(t, cache.patterns, "dashboard:*")
}

func TestEnrollmentServiceEnrollCourseNotFound(t *testing.T) {
	svc := NewEnrollmentService(&mockEnrollmentRepo{}, &mockEnrollmentCourseRepo{}, nil, nil, nil)

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: uuid.NewString(), CourseID: uuid.NewString()})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceEnrollAlreadyEnrolled(t *testing.T) {
	courseID := uuid.NewString()
	repo := &mockEnrollmentRepo{activeExists: true}
	courses := &mockEnrollmentCourseRepo{course: &models.Course{ID: courseID, Capacity: 30}}
	svc := NewEnrollmentService(repo, courses, nil, nil, nil)

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: uuid.NewString(), CourseID: courseID})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAlreadyEnrolled.Code, appErrors.FromError(err).Code)
	assert.Nil(t, repo.created)
}

func TestEnrollmentServiceEnrollRacingDuplicateMapsToConflict(t *testing.T) {
	courseID := uuid.NewString()
	repo := &mockEnrollmentRepo{createErr: &pq.Error{Code: "23505", Constraint: "idx_enrollments_active"}}
	courses := &mockEnrollmentCourseRepo{course: &models.Course{ID: courseID, Capacity: 30}}
	svc := NewEnrollmentService(repo, courses, nil, nil, nil)

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: uuid.NewString(), CourseID: courseID})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAlreadyEnrolled.Code, appErrors.FromError(err).Code)
	assert.Equal(t, appErrors.ErrAlreadyEnrolled.Status, appErrors.FromError(err).Status)
}

func TestEnrollmentServiceEnrollCourseFull(t *testing.T) {
	courseID := uuid.NewString()
	courses := &mockEnrollmentCourseRepo{course: &models.Course{ID: courseID, Capacity: 25}, activeCount: 25}
	svc := NewEnrollmentService(&mockEnrollmentRepo{}, courses, nil, nil, nil)

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: uuid.NewString(), CourseID: courseID})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCourseFull.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceEnrollUnlimitedCapacity(t *testing.T) {
	courseID := uuid.NewString()
	repo := &mockEnrollmentRepo{}
	courses := &mockEnrollmentCourseRepo{course: &models.Course{ID: courseID, Capacity: 0}, activeCount: 500}
	svc := NewEnrollmentService(repo, courses, nil, nil, nil)

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: uuid.NewString(), CourseID: courseID})
	require.NoError(t, err)
	require.NotNil(t, repo.created)
}

func TestEnrollmentServiceDropOwnEnrollment(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollmentByID: &models.Enrollment{
		ID:        "enr-1",
		StudentID: "stu-1",
		CourseID:  "crs-1",
		Status:    models.EnrollmentStatusActive,
	}}
	cache := &mockCacheInvalidator{}
	svc := NewEnrollmentService(repo, &mockEnrollmentCourseRepo{}, cache, nil, nil)

	err := svc.Drop(context.Background(), "enr-1", &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent})
	require.NoError(t, err)
	assert.Equal(t, "enr-1", repo.updatedID)
	assert.Equal(t, models.EnrollmentStatusDropped, repo.updatedStatus)
	assert.Contains(t, cache.patterns, "timetable:stu-1:*")
}

func TestEnrollmentServiceDropOtherStudentForbidden(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollmentByID: &models.Enrollment{
		ID:        "enr-1",
		StudentID: "stu-1",
		Status:    models.EnrollmentStatusActive,
	}}
	svc := NewEnrollmentService(repo, &mockEnrollmentCourseRepo{}, nil, nil, nil)

	err := svc.Drop(context.Background(), "enr-1", &models.JWTClaims{UserID: "stu-2", Role: models.RoleStudent})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.updatedID)
}

func TestEnrollmentServiceDropAlreadyDropped(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollmentByID: &models.Enrollment{
		ID:        "enr-1",
		StudentID: "stu-1",
		Status:    models.EnrollmentStatusDropped,
	}}
	svc := NewEnrollmentService(repo, &mockEnrollmentCourseRepo{}, nil, nil, nil)

	err := svc.Drop(context.Background(), "enr-1", &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceDropAsAdmin(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollmentByID: &models.Enrollment{
		ID:        "enr-1",
		StudentID: "stu-1",
		Status:    models.EnrollmentStatusActive,
	}}
	svc := NewEnrollmentService(repo, &mockEnrollmentCourseRepo{}, nil, nil, nil)

	err := svc.Drop(context.Background(), "enr-1", &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusDropped, repo.updatedStatus)
}
