package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/opencampus/ucms-api/internal/models"
	appErrors "github.com/opencampus/ucms-api/pkg/errors"
)

type announcementRepository interface {
	List(ctx context.Context, filter models.AnnouncementFilter) ([]models.AnnouncementDetail, error)
	ListForStudent(ctx context.Context, studentID string, limit int) ([]models.AnnouncementDetail, error)
	FindByID(ctx context.Context, id string) (*models.Announcement, error)
	Create(ctx context.Context, announcement *models.Announcement) error
	Update(ctx context.Context, announcement *models.Announcement) error
	Delete(ctx context.Context, id string) error
}

type announcementCourseRepository interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

// CreateAnnouncementRequest posts a notice. Omitting CourseID makes the
// announcement campus-wide, which only admins may do.
type CreateAnnouncementRequest struct {
	CourseID *string `json:"course_id" validate:"omitempty,uuid4"`
	Title    string  `json:"title" validate:"required"`
	Body     string  `json:"body" validate:"required"`
}

// UpdateAnnouncementRequest edits a posted notice.
type UpdateAnnouncementRequest struct {
	Title string `json:"title" validate:"required"`
	Body  string `json:"body" validate:"required"`
}

// AnnouncementService handles campus and course announcements.
type AnnouncementService struct {
	repo      announcementRepository
	courses   announcementCourseRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAnnouncementService creates an AnnouncementService instance.
func NewAnnouncementService(repo announcementRepository, courses announcementCourseRepository, validate *validator.Validate, logger *zap.Logger) *AnnouncementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AnnouncementService{repo: repo, courses: courses, validator: validate, logger: logger}
}

// List returns announcements matching the filter.
func (s *AnnouncementService) List(ctx context.Context, filter models.AnnouncementFilter) ([]models.AnnouncementDetail, error) {
	announcements, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list announcements")
	}
	return announcements, nil
}

// Feed returns the announcements visible to a student: campus-wide ones
// plus those scoped to their active courses.
func (s *AnnouncementService) Feed(ctx context.Context, studentID string, limit int) ([]models.AnnouncementDetail, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	announcements, err := s.repo.ListForStudent(ctx, studentID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load announcement feed")
	}
	return announcements, nil
}

// Create posts a new announcement.
func (s *AnnouncementService) Create(ctx context.Context, req CreateAnnouncementRequest, actor *models.JWTClaims) (*models.Announcement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid announcement payload")
	}
	if actor == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "missing identity")
	}

	if req.CourseID == nil {
		if actor.Role != models.RoleAdmin {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins may post campus-wide announcements")
		}
	} else {
		if err := s.checkCourseOwnership(ctx, *req.CourseID, actor); err != nil {
			return nil, err
		}
	}

	announcement := &models.Announcement{
		CourseID: req.CourseID,
		Title:    req.Title,
		Body:     req.Body,
		PostedBy: actor.UserID,
	}
	if err := s.repo.Create(ctx, announcement); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create announcement")
	}
	return announcement, nil
}

// Update edits a posted announcement. Only the author or an admin may edit.
func (s *AnnouncementService) Update(ctx context.Context, id string, req UpdateAnnouncementRequest, actor *models.JWTClaims) (*models.Announcement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid announcement payload")
	}

	announcement, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkAuthor(announcement, actor); err != nil {
		return nil, err
	}

	announcement.Title = req.Title
	announcement.Body = req.Body
	if err := s.repo.Update(ctx, announcement); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update announcement")
	}
	return announcement, nil
}

// Delete removes an announcement. Only the author or an admin may delete.
func (s *AnnouncementService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	announcement, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.checkAuthor(announcement, actor); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete announcement")
	}
	return nil
}

func (s *AnnouncementService) get(ctx context.Context, id string) (*models.Announcement, error) {
	announcement, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load announcement")
	}
	return announcement, nil
}

func (s *AnnouncementService) checkAuthor(announcement *models.Announcement, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.Clone(appErrors.ErrUnauthorized, "missing identity")
	}
	if actor.Role != models.RoleAdmin && announcement.PostedBy != actor.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "announcement belongs to another user")
	}
	return nil
}

func (s *AnnouncementService) checkCourseOwnership(ctx context.Context, courseID string, actor *models.JWTClaims) error {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if actor.Role == models.RoleInstructor && course.InstructorID != actor.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "course belongs to another instructor")
	}
	return nil
}
