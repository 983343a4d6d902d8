package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/opencampus/ucms-api/internal/models"
	appErrors "github.com/opencampus/ucms-api/pkg/errors"
	"github.com/opencampus/ucms-api/pkg/export"
)

type gradeRepository interface {
	List(ctx context.Context, filter models.GradeFilter) ([]models.GradeDetail, error)
	FindByID(ctx context.Context, id string) (*models.Grade, error)
	Upsert(ctx context.Context, grade *models.Grade) error
	Delete(ctx context.Context, id string) error
	SummarizeCourse(ctx context.Context, courseID string) ([]models.StudentGradeSummary, error)
}

type gradeCourseRepository interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

// UpsertGradeRequest records or replaces one scored component.
type UpsertGradeRequest struct {
	CourseID  string  `json:"course_id" validate:"required,uuid4"`
	StudentID string  `json:"student_id" validate:"required,uuid4"`
	Component string  `json:"component" validate:"required"`
	Score     float64 `json:"score" validate:"gte=0"`
	MaxScore  float64 `json:"max_score" validate:"gt=0"`
	Remarks   *string `json:"remarks"`
}

// GradeService handles grade recording and summaries.
type GradeService struct {
	repo      gradeRepository
	courses   gradeCourseRepository
	csv       *export.CSVExporter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGradeService creates a GradeService instance.
func NewGradeService(repo gradeRepository, courses gradeCourseRepository, validate *validator.Validate, logger *zap.Logger) *GradeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &GradeService{repo: repo, courses: courses, csv: export.NewCSVExporter(), validator: validate, logger: logger}
}

// List returns grades matching the filter. Students only ever see their
// own rows; the handler pins StudentID for them.
func (s *GradeService) List(ctx context.Context, filter models.GradeFilter) ([]models.GradeDetail, error) {
	grades, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grades")
	}
	return grades, nil
}

// Upsert records a component score, replacing a previous entry for the
// same (course, student, component).
func (s *GradeService) Upsert(ctx context.Context, req UpsertGradeRequest, actor *models.JWTClaims) (*models.Grade, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	if req.Score > req.MaxScore {
		return nil, appErrors.Clone(appErrors.ErrValidation, "score exceeds max score")
	}

	if err := s.checkCourseOwnership(ctx, req.CourseID, actor); err != nil {
		return nil, err
	}

	grade := &models.Grade{
		CourseID:  req.CourseID,
		StudentID: req.StudentID,
		Component: req.Component,
		Score:     req.Score,
		MaxScore:  req.MaxScore,
		Remarks:   req.Remarks,
	}
	if actor != nil {
		grade.GradedBy = actor.UserID
	}
	if err := s.repo.Upsert(ctx, grade); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store grade")
	}
	return grade, nil
}

// Delete removes a grade row.
func (s *GradeService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	grade, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "grade not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade")
	}
	if err := s.checkCourseOwnership(ctx, grade.CourseID, actor); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "grade not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete grade")
	}
	return nil
}

// SummarizeCourse aggregates per-student totals for a course.
func (s *GradeService) SummarizeCourse(ctx context.Context, courseID string, actor *models.JWTClaims) ([]models.StudentGradeSummary, error) {
	if err := s.checkCourseOwnership(ctx, courseID, actor); err != nil {
		return nil, err
	}
	summaries, err := s.repo.SummarizeCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarize grades")
	}
	return summaries, nil
}

// ExportCourseCSV renders a course's grade sheet as CSV.
func (s *GradeService) ExportCourseCSV(ctx context.Context, courseID string, actor *models.JWTClaims) ([]byte, error) {
	grades, err := s.List(ctx, models.GradeFilter{CourseID: courseID})
	if err != nil {
		return nil, err
	}
	if err := s.checkCourseOwnership(ctx, courseID, actor); err != nil {
		return nil, err
	}

	headers := []string{"Student", "Component", "Score", "Max", "Remarks"}
	rows := make([]map[string]string, 0, len(grades))
	for _, g := range grades {
		remarks := ""
		if g.Remarks != nil {
			remarks = *g.Remarks
		}
		rows = append(rows, map[string]string{
			"Student":   g.StudentName,
			"Component": g.Component,
			"Score":     fmt.Sprintf("%.1f", g.Score),
			"Max":       fmt.Sprintf("%.1f", g.MaxScore),
			"Remarks":   remarks,
		})
	}

	data, err := s.csv.Render(export.Dataset{Headers: headers, Rows: rows})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render grade csv")
	}
	return data, nil
}

func (s *GradeService) checkCourseOwnership(ctx context.Context, courseID string, actor *models.JWTClaims) error {
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
