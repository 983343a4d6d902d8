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

type examRepository interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.Exam, error)
	FindByID(ctx context.Context, id string) (*models.Exam, error)
	Create(ctx context.Context, exam *models.Exam) error
	Update(ctx context.Context, exam *models.Exam) error
	Delete(ctx context.Context, id string) error
	UpsertResult(ctx context.Context, result *models.ExamResult) error
	ListResults(ctx context.Context, examID string) ([]models.ExamResultDetail, error)
	ListResultsForStudent(ctx context.Context, studentID string) ([]models.ExamResultDetail, error)
}

type examCourseRepository interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

// CreateExamRequest schedules an exam for a course.
type CreateExamRequest struct {
	CourseID        string    `json:"course_id" validate:"required,uuid4"`
	Title           string    `json:"title" validate:"required"`
	ExamDate        time.Time `json:"exam_date" validate:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"gt=0"`
	Room            *string   `json:"room"`
	MaxScore        float64   `json:"max_score" validate:"gt=0"`
}

// UpdateExamRequest edits a scheduled exam.
type UpdateExamRequest struct {
	Title           string    `json:"title" validate:"required"`
	ExamDate        time.Time `json:"exam_date" validate:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"gt=0"`
	Room            *string   `json:"room"`
	MaxScore        float64   `json:"max_score" validate:"gt=0"`
}

// RecordExamResultRequest stores one student's score.
type RecordExamResultRequest struct {
	StudentID  string  `json:"student_id" validate:"required,uuid4"`
	Score      float64 `json:"score" validate:"gte=0"`
	GradeLabel *string `json:"grade_label"`
}

// ExamService handles exam scheduling and results.
type ExamService struct {
	repo      examRepository
	courses   examCourseRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewExamService creates an ExamService instance.
func NewExamService(repo examRepository, courses examCourseRepository, validate *validator.Validate, logger *zap.Logger) *ExamService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ExamService{repo: repo, courses: courses, validator: validate, logger: logger}
}

// ListByCourse returns a course's exams.
func (s *ExamService) ListByCourse(ctx context.Context, courseID string) ([]models.Exam, error) {
	exams, err := s.repo.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list exams")
	}
	return exams, nil
}

// Get returns an exam by ID.
func (s *ExamService) Get(ctx context.Context, id string) (*models.Exam, error) {
	exam, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}
	return exam, nil
}

// Create schedules a new exam.
func (s *ExamService) Create(ctx context.Context, req CreateExamRequest, actor *models.JWTClaims) (*models.Exam, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exam payload")
	}
	if err := s.checkCourseOwnership(ctx, req.CourseID, actor); err != nil {
		return nil, err
	}

	exam := &models.Exam{
		CourseID:        req.CourseID,
		Title:           req.Title,
		ExamDate:        req.ExamDate,
		DurationMinutes: req.DurationMinutes,
		Room:            req.Room,
		MaxScore:        req.MaxScore,
	}
	if err := s.repo.Create(ctx, exam); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create exam")
	}
	return exam, nil
}

// Update edits a scheduled exam.
func (s *ExamService) Update(ctx context.Context, id string, req UpdateExamRequest, actor *models.JWTClaims) (*models.Exam, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exam payload")
	}

	exam, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkCourseOwnership(ctx, exam.CourseID, actor); err != nil {
		return nil, err
	}

	exam.Title = req.Title
	exam.ExamDate = req.ExamDate
	exam.DurationMinutes = req.DurationMinutes
	exam.Room = req.Room
	exam.MaxScore = req.MaxScore

	if err := s.repo.Update(ctx, exam); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update exam")
	}
	return exam, nil
}

// Delete removes an exam and its results.
func (s *ExamService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	exam, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.checkCourseOwnership(ctx, exam.CourseID, actor); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete exam")
	}
	return nil
}

// RecordResult stores a student's exam score, replacing any earlier mark.
func (s *ExamService) RecordResult(ctx context.Context, examID string, req RecordExamResultRequest, actor *models.JWTClaims) (*models.ExamResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exam result payload")
	}

	exam, err := s.Get(ctx, examID)
	if err != nil {
		return nil, err
	}
	if err := s.checkCourseOwnership(ctx, exam.CourseID, actor); err != nil {
		return nil, err
	}
	if req.Score > exam.MaxScore {
		return nil, appErrors.Clone(appErrors.ErrValidation, "score exceeds exam maximum")
	}

	result := &models.ExamResult{
		ExamID:     examID,
		StudentID:  req.StudentID,
		Score:      req.Score,
		GradeLabel: req.GradeLabel,
	}
	if actor != nil {
		result.RecordedBy = actor.UserID
	}
	if err := s.repo.UpsertResult(ctx, result); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record exam result")
	}
	return result, nil
}

// ListResults returns results for an exam (instructor view).
func (s *ExamService) ListResults(ctx context.Context, examID string, actor *models.JWTClaims) ([]models.ExamResultDetail, error) {
	exam, err := s.Get(ctx, examID)
	if err != nil {
		return nil, err
	}
	if err := s.checkCourseOwnership(ctx, exam.CourseID, actor); err != nil {
		return nil, err
	}
	results, err := s.repo.ListResults(ctx, examID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list exam results")
	}
	return results, nil
}

// MyResults returns the calling student's exam results.
func (s *ExamService) MyResults(ctx context.Context, studentID string) ([]models.ExamResultDetail, error) {
	results, err := s.repo.ListResultsForStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list exam results")
	}
	return results, nil
}

func (s *ExamService) checkCourseOwnership(ctx context.Context, courseID string, actor *models.JWTClaims) error {
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
