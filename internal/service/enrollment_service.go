package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/opencampus/ucms-api/internal/models"
	appErrors "github.com/opencampus/ucms-api/pkg/errors"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	ExistsActive(ctx context.Context, studentID, courseID string) (bool, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, droppedAt *time.Time) error
}

type enrollmentCourseRepository interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	CountActiveEnrollments(ctx context.Context, courseID string) (int, error)
}

type enrollmentCacheInvalidator interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

// EnrollRequest is the payload for enrolling a student.
type EnrollRequest struct {
	StudentID string `json:"student_id" validate:"required,uuid4"`
	CourseID  string `json:"course_id" validate:"required,uuid4"`
}

// EnrollmentService handles course registration workflows.
type EnrollmentService struct {
	repo      enrollmentRepository
	courses   enrollmentCourseRepository
	cache     enrollmentCacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService creates an EnrollmentService instance.
func NewEnrollmentService(repo enrollmentRepository, courses enrollmentCourseRepository, cache enrollmentCacheInvalidator, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &EnrollmentService{repo: repo, courses: courses, cache: cache, validator: validate, logger: logger}
}

// List returns paginated enrollments.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	return enrollments, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Enroll registers a student into a course, enforcing uniqueness and the
// course capacity when one is set.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	exists, err := s.repo.ExistsActive(ctx, req.StudentID, req.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrAlreadyEnrolled, "")
	}

	if course.Capacity > 0 {
		active, err := s.courses.CountActiveEnrollments(ctx, req.CourseID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
		}
		if active >= course.Capacity {
			return nil, appErrors.Clone(appErrors.ErrCourseFull, "")
		}
	}

	enrollment := &models.Enrollment{
		StudentID: req.StudentID,
		CourseID:  req.CourseID,
		Status:    models.EnrollmentStatusActive,
	}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		// The partial unique index on active enrollments backstops the
		// exists check when two requests for the same pairing race.
		if isUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrAlreadyEnrolled, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	s.invalidate(ctx, req.StudentID)
	return enrollment, nil
}

// Drop marks an enrollment as dropped. Students may drop only their own
// enrollments; admins may drop anyone's.
func (s *EnrollmentService) Drop(ctx context.Context, id string, actor *models.JWTClaims) error {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	if actor != nil && actor.Role == models.RoleStudent && enrollment.StudentID != actor.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "enrollment belongs to another student")
	}

	if enrollment.Status == models.EnrollmentStatusDropped {
		return appErrors.Clone(appErrors.ErrConflict, "enrollment already dropped")
	}

	droppedAt := time.Now().UTC()
	if err := s.repo.UpdateStatus(ctx, id, models.EnrollmentStatusDropped, &droppedAt); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to drop enrollment")
	}

	s.invalidate(ctx, enrollment.StudentID)
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func (s *EnrollmentService) invalidate(ctx context.Context, studentID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "timetable:"+studentID+":*"); err != nil {
		s.logger.Warn("failed to invalidate timetable cache", zap.Error(err))
	}
	if err := s.cache.DeleteByPattern(ctx, "dashboard:*"); err != nil {
		s.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
	}
}
