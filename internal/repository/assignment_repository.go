package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/opencampus/ucms-api/internal/models"
)

// AssignmentRepository provides persistence for assignments and submissions.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository creates a new assignment repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

const assignmentColumns = `id, course_id, title, description, due_date, max_score, created_at, updated_at`

// ListByCourse returns assignments for a course ordered by due date.
func (r *AssignmentRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Assignment, error) {
	query := fmt.Sprintf(`SELECT %s FROM assignments WHERE course_id = $1 ORDER BY due_date ASC NULLS LAST, created_at ASC`, assignmentColumns)
	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, query, courseID); err != nil {
		return nil, fmt.Errorf("list assignments by course: %w", err)
	}
	return assignments, nil
}

// FindByID loads an assignment by id.
func (r *AssignmentRepository) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	query := fmt.Sprintf(`SELECT %s FROM assignments WHERE id = $1`, assignmentColumns)
	var assignment models.Assignment
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find assignment by id: %w", err)
	}
	return &assignment, nil
}

// CountPendingForStudent counts assignments in the student's active courses
// that the student has not yet submitted.
func (r *AssignmentRepository) CountPendingForStudent(ctx context.Context, studentID string) (int, error) {
	const query = `SELECT COUNT(*) FROM assignments a JOIN enrollments e ON e.course_id = a.course_id WHERE e.student_id = $1 AND e.status = 'ACTIVE' AND NOT EXISTS (SELECT 1 FROM submissions s WHERE s.assignment_id = a.id AND s.student_id = $1)`
	var count int
	if err := r.db.GetContext(ctx, &count, query, studentID); err != nil {
		return 0, fmt.Errorf("count pending assignments: %w", err)
	}
	return count, nil
}

// CountUngradedByInstructor counts submitted-but-ungraded submissions across
// an instructor's courses.
func (r *AssignmentRepository) CountUngradedByInstructor(ctx context.Context, instructorID string) (int, error) {
	const query = `SELECT COUNT(*) FROM submissions s JOIN assignments a ON a.id = s.assignment_id JOIN courses c ON c.id = a.course_id WHERE c.instructor_id = $1 AND s.status = 'SUBMITTED'`
	var count int
	if err := r.db.GetContext(ctx, &count, query, instructorID); err != nil {
		return 0, fmt.Errorf("count ungraded submissions: %w", err)
	}
	return count, nil
}

// Create stores a new assignment.
func (r *AssignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = now
	}
	assignment.UpdatedAt = now

	const query = `INSERT INTO assignments (id, course_id, title, description, due_date, max_score, created_at, updated_at) VALUES (:id, :course_id, :title, :description, :due_date, :max_score, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

// Update modifies an assignment.
func (r *AssignmentRepository) Update(ctx context.Context, assignment *models.Assignment) error {
	assignment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE assignments SET title = :title, description = :description, due_date = :due_date, max_score = :max_score, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("update assignment: %w", err)
	}
	return nil
}

// Delete removes an assignment and its submissions.
func (r *AssignmentRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin assignment delete: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err = tx.ExecContext(ctx, `DELETE FROM submissions WHERE assignment_id = $1`, id); err != nil {
		return fmt.Errorf("delete submissions: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM assignments WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit assignment delete: %w", err)
	}
	return nil
}

const submissionColumns = `id, assignment_id, student_id, content, file_path, file_name, status, score, feedback, submitted_at, graded_at`

// UpsertSubmission stores a submission, replacing any previous one by the
// same student for the same assignment (single best-effort conflict key).
func (r *AssignmentRepository) UpsertSubmission(ctx context.Context, submission *models.Submission) error {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	if submission.SubmittedAt.IsZero() {
		submission.SubmittedAt = time.Now().UTC()
	}
	const query = `INSERT INTO submissions (id, assignment_id, student_id, content, file_path, file_name, status, score, feedback, submitted_at) VALUES (:id, :assignment_id, :student_id, :content, :file_path, :file_name, :status, :score, :feedback, :submitted_at) ON CONFLICT (assignment_id, student_id) DO UPDATE SET content = EXCLUDED.content, file_path = EXCLUDED.file_path, file_name = EXCLUDED.file_name, status = EXCLUDED.status, submitted_at = EXCLUDED.submitted_at`
	if _, err := r.db.NamedExecContext(ctx, query, submission); err != nil {
		return fmt.Errorf("upsert submission: %w", err)
	}
	return nil
}

// FindSubmission loads one student's submission for an assignment.
func (r *AssignmentRepository) FindSubmission(ctx context.Context, assignmentID, studentID string) (*models.Submission, error) {
	query := fmt.Sprintf(`SELECT %s FROM submissions WHERE assignment_id = $1 AND student_id = $2`, submissionColumns)
	var submission models.Submission
	if err := r.db.GetContext(ctx, &submission, query, assignmentID, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find submission: %w", err)
	}
	return &submission, nil
}

// FindSubmissionByID loads a submission by primary key.
func (r *AssignmentRepository) FindSubmissionByID(ctx context.Context, id string) (*models.Submission, error) {
	query := fmt.Sprintf(`SELECT %s FROM submissions WHERE id = $1`, submissionColumns)
	var submission models.Submission
	if err := r.db.GetContext(ctx, &submission, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find submission by id: %w", err)
	}
	return &submission, nil
}

// ListSubmissions returns all submissions for an assignment with student info.
func (r *AssignmentRepository) ListSubmissions(ctx context.Context, assignmentID string) ([]models.SubmissionDetail, error) {
	const query = `SELECT s.id, s.assignment_id, s.student_id, s.content, s.file_path, s.file_name, s.status, s.score, s.feedback, s.submitted_at, s.graded_at, u.full_name AS student_name, u.email AS student_email FROM submissions s JOIN users u ON u.id = s.student_id WHERE s.assignment_id = $1 ORDER BY s.submitted_at ASC`
	var submissions []models.SubmissionDetail
	if err := r.db.SelectContext(ctx, &submissions, query, assignmentID); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return submissions, nil
}

// GradeSubmission records score and feedback for a submission.
func (r *AssignmentRepository) GradeSubmission(ctx context.Context, id string, score float64, feedback *string, gradedAt time.Time) error {
	const query = `UPDATE submissions SET score = $2, feedback = $3, status = $4, graded_at = $5 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, score, feedback, models.SubmissionStatusGraded, gradedAt); err != nil {
		return fmt.Errorf("grade submission: %w", err)
	}
	return nil
}
