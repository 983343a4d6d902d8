package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/opencampus/ucms-api/internal/models"
	appErrors "github.com/opencampus/ucms-api/pkg/errors"
)

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	DeleteCascade(ctx context.Context, id string) error
}

type courseUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type courseCacheInvalidator interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CreateCourseRequest is the payload for creating a course.
type CreateCourseRequest struct {
	Code         string  `json:"code" validate:"required"`
	Title        string  `json:"title" validate:"required"`
	Description  *string `json:"description"`
	InstructorID string  `json:"instructor_id" validate:"required,uuid4"`
	CourseTime   *string `json:"course_time"`
	Location     *string `json:"location"`
	ImageURL     *string `json:"image_url"`
	Capacity     int     `json:"capacity" validate:"gte=0"`
}

// UpdateCourseRequest is the payload for updating a course.
type UpdateCourseRequest struct {
	Code         string  `json:"code" validate:"required"`
	Title        string  `json:"title" validate:"required"`
	Description  *string `json:"description"`
	InstructorID string  `json:"instructor_id" validate:"required,uuid4"`
	CourseTime   *string `json:"course_time"`
	Location     *string `json:"location"`
	ImageURL     *string `json:"image_url"`
	Capacity     int     `json:"capacity" validate:"gte=0"`
}

// CourseService handles course management workflows. CourseTime is stored
// exactly as entered; parsing happens at timetable read time so a bad
// expression never blocks saving a course.
type CourseService struct {
	repo      courseRepository
	users     courseUserRepository
	cache     courseCacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService creates a CourseService instance.
func NewCourseService(repo courseRepository, users courseUserRepository, cache courseCacheInvalidator, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &CourseService{repo: repo, users: users, cache: cache, validator: validate, logger: logger}
}

// List returns paginated courses.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, *models.Pagination, error) {
	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	return courses, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns a course by ID.
func (s *CourseService) Get(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// Create adds a new course after checking the instructor exists.
func (s *CourseService) Create(ctx context.Context, req CreateCourseRequest, actorID string) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	if err := s.checkInstructor(ctx, req.InstructorID); err != nil {
		return nil, err
	}

	course := &models.Course{
		Code:         req.Code,
		Title:        req.Title,
		Description:  req.Description,
		InstructorID: req.InstructorID,
		CourseTime:   req.CourseTime,
		Location:     req.Location,
		ImageURL:     req.ImageURL,
		Capacity:     req.Capacity,
	}
	if err := s.repo.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}

	s.invalidateTimetables(ctx)
	return course, nil
}

// Update modifies a course. Instructors may only update their own courses.
func (s *CourseService) Update(ctx context.Context, id string, req UpdateCourseRequest, actor *models.JWTClaims) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	course, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if actor != nil && actor.Role == models.RoleInstructor && course.InstructorID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "course belongs to another instructor")
	}

	if err := s.checkInstructor(ctx, req.InstructorID); err != nil {
		return nil, err
	}

	course.Code = req.Code
	course.Title = req.Title
	course.Description = req.Description
	course.InstructorID = req.InstructorID
	course.CourseTime = req.CourseTime
	course.Location = req.Location
	course.ImageURL = req.ImageURL
	course.Capacity = req.Capacity

	if err := s.repo.Update(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}

	s.invalidateTimetables(ctx)
	return course, nil
}

// Delete removes a course and all dependent records in one transaction.
// Admin only; recorded in the audit trail.
func (s *CourseService) Delete(ctx context.Context, id, actorID string) error {
	course, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteCascade(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}

	oldValues, _ := json.Marshal(course)
	log := &models.AuditLog{
		Action:     models.AuditActionCourseDelete,
		Resource:   "courses",
		ResourceID: &id,
		OldValues:  oldValues,
	}
	if actorID != "" {
		log.UserID = &actorID
	}
	if err := s.users.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record course delete audit log", zap.Error(err))
	}

	s.invalidateTimetables(ctx)
	return nil
}

func (s *CourseService) checkInstructor(ctx context.Context, instructorID string) error {
	instructor, err := s.users.FindByID(ctx, instructorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "instructor does not exist")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor")
	}
	if instructor.Role != models.RoleInstructor && instructor.Role != models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrValidation, "user is not an instructor")
	}
	return nil
}

func (s *CourseService) invalidateTimetables(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "timetable:*"); err != nil {
		s.logger.Warn("failed to invalidate timetable cache", zap.Error(err))
	}
	if err := s.cache.DeleteByPattern(ctx, "dashboard:*"); err != nil {
		s.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
	}
}
