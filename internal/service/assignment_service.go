package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opencampus/ucms-api/internal/models"
	appErrors "github.com/opencampus/ucms-api/pkg/errors"
)

type assignmentRepository interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.Assignment, error)
	FindByID(ctx context.Context, id string) (*models.Assignment, error)
	Create(ctx context.Context, assignment *models.Assignment) error
	Update(ctx context.Context, assignment *models.Assignment) error
	Delete(ctx context.Context, id string) error
	UpsertSubmission(ctx context.Context, submission *models.Submission) error
	FindSubmission(ctx context.Context, assignmentID, studentID string) (*models.Submission, error)
	FindSubmissionByID(ctx context.Context, id string) (*models.Submission, error)
	ListSubmissions(ctx context.Context, assignmentID string) ([]models.SubmissionDetail, error)
	GradeSubmission(ctx context.Context, id string, score float64, feedback *string, gradedAt time.Time) error
}

type assignmentCourseRepository interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type assignmentEnrollmentChecker interface {
	ExistsActive(ctx context.Context, studentID, courseID string) (bool, error)
}

type submissionFileStore interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Delete(filename string) error
}

// CreateAssignmentRequest is the payload for publishing an assignment.
type CreateAssignmentRequest struct {
	CourseID    string     `json:"course_id" validate:"required,uuid4"`
	Title       string     `json:"title" validate:"required"`
	Description *string    `json:"description"`
	DueDate     *time.Time `json:"due_date"`
	MaxScore    float64    `json:"max_score" validate:"gt=0"`
}

// UpdateAssignmentRequest is the payload for editing an assignment.
type UpdateAssignmentRequest struct {
	Title       string     `json:"title" validate:"required"`
	Description *string    `json:"description"`
	DueDate     *time.Time `json:"due_date"`
	MaxScore    float64    `json:"max_score" validate:"gt=0"`
}

// SubmitRequest is the payload for a student submission. Content and file
// are both optional but at least one must be present.
type SubmitRequest struct {
	AssignmentID string  `json:"assignment_id" validate:"required,uuid4"`
	Content      *string `json:"content"`
	FileName     *string `json:"-"`
	File         io.Reader
}

// GradeSubmissionRequest records a score and optional feedback.
type GradeSubmissionRequest struct {
	Score    float64 `json:"score" validate:"gte=0"`
	Feedback *string `json:"feedback"`
}

// AssignmentService handles assignment and submission workflows.
type AssignmentService struct {
	repo        assignmentRepository
	courses     assignmentCourseRepository
	enrollments assignmentEnrollmentChecker
	files       submissionFileStore
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewAssignmentService creates an AssignmentService instance.
func NewAssignmentService(repo assignmentRepository, courses assignmentCourseRepository, enrollments assignmentEnrollmentChecker, files submissionFileStore, validate *validator.Validate, logger *zap.Logger) *AssignmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AssignmentService{repo: repo, courses: courses, enrollments: enrollments, files: files, validator: validate, logger: logger}
}

// ListByCourse returns a course's assignments.
func (s *AssignmentService) ListByCourse(ctx context.Context, courseID string) ([]models.Assignment, error) {
	assignments, err := s.repo.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	return assignments, nil
}

// Get returns an assignment by ID.
func (s *AssignmentService) Get(ctx context.Context, id string) (*models.Assignment, error) {
	assignment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	return assignment, nil
}

// Create publishes a new assignment. Instructors may only publish to their
// own courses.
func (s *AssignmentService) Create(ctx context.Context, req CreateAssignmentRequest, actor *models.JWTClaims) (*models.Assignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	if err := s.checkCourseOwnership(ctx, req.CourseID, actor); err != nil {
		return nil, err
	}

	assignment := &models.Assignment{
		CourseID:    req.CourseID,
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
		MaxScore:    req.MaxScore,
	}
	if err := s.repo.Create(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignment")
	}
	return assignment, nil
}

// Update edits an assignment.
func (s *AssignmentService) Update(ctx context.Context, id string, req UpdateAssignmentRequest, actor *models.JWTClaims) (*models.Assignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	assignment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkCourseOwnership(ctx, assignment.CourseID, actor); err != nil {
		return nil, err
	}

	assignment.Title = req.Title
	assignment.Description = req.Description
	assignment.DueDate = req.DueDate
	assignment.MaxScore = req.MaxScore

	if err := s.repo.Update(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update assignment")
	}
	return assignment, nil
}

// Delete removes an assignment and its submissions.
func (s *AssignmentService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	assignment, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.checkCourseOwnership(ctx, assignment.CourseID, actor); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete assignment")
	}
	return nil
}

// Submit records a student's submission. Re-submitting before grading
// replaces the previous one; submissions after the due date are rejected.
func (s *AssignmentService) Submit(ctx context.Context, req SubmitRequest, studentID string) (*models.Submission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}
	if req.Content == nil && req.File == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "submission requires text content or a file")
	}

	assignment, err := s.Get(ctx, req.AssignmentID)
	if err != nil {
		return nil, err
	}

	if assignment.DueDate != nil && time.Now().UTC().After(*assignment.DueDate) {
		return nil, appErrors.Clone(appErrors.ErrPastDue, "")
	}

	enrolled, err := s.enrollments.ExistsActive(ctx, studentID, assignment.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if !enrolled {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not enrolled in this course")
	}

	submission := &models.Submission{
		AssignmentID: req.AssignmentID,
		StudentID:    studentID,
		Content:      req.Content,
		Status:       models.SubmissionStatusSubmitted,
	}

	if req.File != nil {
		name := uuid.NewString()
		if req.FileName != nil {
			name = fmt.Sprintf("%s-%s", name, *req.FileName)
		}
		path, err := s.files.SaveStream(fmt.Sprintf("submissions/%s", name), req.File)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store submission file")
		}
		submission.FilePath = &path
		submission.FileName = req.FileName
	}

	if err := s.repo.UpsertSubmission(ctx, submission); err != nil {
		if submission.FilePath != nil {
			if cleanupErr := s.files.Delete(*submission.FilePath); cleanupErr != nil {
				s.logger.Warn("failed to remove orphaned submission file", zap.Error(cleanupErr))
			}
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store submission")
	}

	return submission, nil
}

// ListSubmissions returns all submissions for an assignment (instructor view).
func (s *AssignmentService) ListSubmissions(ctx context.Context, assignmentID string, actor *models.JWTClaims) ([]models.SubmissionDetail, error) {
	assignment, err := s.Get(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if err := s.checkCourseOwnership(ctx, assignment.CourseID, actor); err != nil {
		return nil, err
	}
	submissions, err := s.repo.ListSubmissions(ctx, assignmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	return submissions, nil
}

// MySubmission returns the calling student's submission, if any.
func (s *AssignmentService) MySubmission(ctx context.Context, assignmentID, studentID string) (*models.Submission, error) {
	submission, err := s.repo.FindSubmission(ctx, assignmentID, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no submission yet")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	return submission, nil
}

// GradeSubmission scores a submission. The score cannot exceed the
// assignment's maximum.
func (s *AssignmentService) GradeSubmission(ctx context.Context, submissionID string, req GradeSubmissionRequest, actor *models.JWTClaims) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grading payload")
	}

	submission, err := s.repo.FindSubmissionByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}

	assignment, err := s.Get(ctx, submission.AssignmentID)
	if err != nil {
		return err
	}
	if err := s.checkCourseOwnership(ctx, assignment.CourseID, actor); err != nil {
		return err
	}

	if req.Score > assignment.MaxScore {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("score exceeds maximum of %.1f", assignment.MaxScore))
	}

	if err := s.repo.GradeSubmission(ctx, submissionID, req.Score, req.Feedback, time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to grade submission")
	}
	return nil
}

func (s *AssignmentService) checkCourseOwnership(ctx context.Context, courseID string, actor *models.JWTClaims) error {
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
