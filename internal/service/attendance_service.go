package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/opencampus/ucms-api/internal/models"
	appErrors "github.com/opencampus/ucms-api/pkg/errors"
)

type attendanceRepository interface {
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, error)
	BulkUpsert(ctx context.Context, records []models.Attendance) error
	RatesByCourse(ctx context.Context, courseID string) ([]models.AttendanceRate, error)
}

type attendanceCourseRepository interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

// AttendanceMark is one student's status within a recorded session.
type AttendanceMark struct {
	StudentID string                  `json:"student_id" validate:"required,uuid4"`
	Status    models.AttendanceStatus `json:"status" validate:"required,oneof=PRESENT ABSENT LATE EXCUSED"`
	Notes     *string                 `json:"notes"`
}

// RecordAttendanceRequest records one session for a whole course roster.
type RecordAttendanceRequest struct {
	CourseID string           `json:"course_id" validate:"required,uuid4"`
	Date     time.Time        `json:"date" validate:"required"`
	Marks    []AttendanceMark `json:"marks" validate:"required,min=1,dive"`
}

// AttendanceService handles attendance recording and reporting.
type AttendanceService struct {
	repo      attendanceRepository
	courses   attendanceCourseRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAttendanceService creates an AttendanceService instance.
func NewAttendanceService(repo attendanceRepository, courses attendanceCourseRepository, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AttendanceService{repo: repo, courses: courses, validator: validate, logger: logger}
}

// List returns attendance records matching the filter.
func (s *AttendanceService) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, error) {
	records, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	return records, nil
}

// Record stores one session's roster in a single transaction. Marking the
// same (student, date) again replaces the earlier status.
func (s *AttendanceService) Record(ctx context.Context, req RecordAttendanceRequest, actor *models.JWTClaims) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}

	if err := s.checkCourseOwnership(ctx, req.CourseID, actor); err != nil {
		return err
	}

	records := make([]models.Attendance, 0, len(req.Marks))
	for _, mark := range req.Marks {
		records = append(records, models.Attendance{
			CourseID:  req.CourseID,
			StudentID: mark.StudentID,
			Date:      req.Date,
			Status:    mark.Status,
			Notes:     mark.Notes,
		})
	}

	if err := s.repo.BulkUpsert(ctx, records); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance")
	}
	return nil
}

// Rates returns per-student presence rates for a course.
func (s *AttendanceService) Rates(ctx context.Context, courseID string, actor *models.JWTClaims) ([]models.AttendanceRate, error) {
	if err := s.checkCourseOwnership(ctx, courseID, actor); err != nil {
		return nil, err
	}
	rates, err := s.repo.RatesByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute attendance rates")
	}
	return rates, nil
}

func (s *AttendanceService) checkCourseOwnership(ctx context.Context, courseID string, actor *models.JWTClaims) error {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if actor != nil && actor.Role == models.RoleInstructor && course.InstructorID != actor.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "course belongs to another instructor")
	}
	return nil
}
