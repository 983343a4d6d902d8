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

// ExamRepository provides persistence for exams and their results.
type ExamRepository struct {
	db *sqlx.DB
}

// NewExamRepository creates a new exam repository.
func NewExamRepository(db *sqlx.DB) *ExamRepository {
	return &ExamRepository{db: db}
}

const examColumns = `id, course_id, title, exam_date, duration_minutes, room, max_score, created_at, updated_at`

// ListByCourse returns a course's exams ordered by date.
func (r *ExamRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Exam, error) {
	query := fmt.Sprintf(`SELECT %s FROM exams WHERE course_id = $1 ORDER BY exam_date ASC`, examColumns)
	var exams []models.Exam
	if err := r.db.SelectContext(ctx, &exams, query, courseID); err != nil {
		return nil, fmt.Errorf("list exams by course: %w", err)
	}
	return exams, nil
}

// ListUpcomingForStudent returns future exams across a student's active
// enrollments.
func (r *ExamRepository) ListUpcomingForStudent(ctx context.Context, studentID string, limit int) ([]models.Exam, error) {
	const query = `SELECT e.id, e.course_id, e.title, e.exam_date, e.duration_minutes, e.room, e.max_score, e.created_at, e.updated_at FROM exams e JOIN enrollments en ON en.course_id = e.course_id WHERE en.student_id = $1 AND en.status = 'ACTIVE' AND e.exam_date >= NOW() ORDER BY e.exam_date ASC LIMIT $2`
	var exams []models.Exam
	if err := r.db.SelectContext(ctx, &exams, query, studentID, limit); err != nil {
		return nil, fmt.Errorf("list upcoming exams: %w", err)
	}
	return exams, nil
}

// ListUpcomingByInstructor returns future exams across an instructor's
// courses.
func (r *ExamRepository) ListUpcomingByInstructor(ctx context.Context, instructorID string, limit int) ([]models.Exam, error) {
	const query = `SELECT e.id, e.course_id, e.title, e.exam_date, e.duration_minutes, e.room, e.max_score, e.created_at, e.updated_at FROM exams e JOIN courses c ON c.id = e.course_id WHERE c.instructor_id = $1 AND e.exam_date >= NOW() ORDER BY e.exam_date ASC LIMIT $2`
	var exams []models.Exam
	if err := r.db.SelectContext(ctx, &exams, query, instructorID, limit); err != nil {
		return nil, fmt.Errorf("list upcoming exams by instructor: %w", err)
	}
	return exams, nil
}

// FindByID loads an exam by id.
func (r *ExamRepository) FindByID(ctx context.Context, id string) (*models.Exam, error) {
	query := fmt.Sprintf(`SELECT %s FROM exams WHERE id = $1`, examColumns)
	var exam models.Exam
	if err := r.db.GetContext(ctx, &exam, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find exam by id: %w", err)
	}
	return &exam, nil
}

// Create stores a new exam.
func (r *ExamRepository) Create(ctx context.Context, exam *models.Exam) error {
	if exam.ID == "" {
		exam.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if exam.CreatedAt.IsZero() {
		exam.CreatedAt = now
	}
	exam.UpdatedAt = now

	const query = `INSERT INTO exams (id, course_id, title, exam_date, duration_minutes, room, max_score, created_at, updated_at) VALUES (:id, :course_id, :title, :exam_date, :duration_minutes, :room, :max_score, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, exam); err != nil {
		return fmt.Errorf("create exam: %w", err)
	}
	return nil
}

// Update modifies an exam.
func (r *ExamRepository) Update(ctx context.Context, exam *models.Exam) error {
	exam.UpdatedAt = time.Now().UTC()
	const query = `UPDATE exams SET title = :title, exam_date = :exam_date, duration_minutes = :duration_minutes, room = :room, max_score = :max_score, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, exam); err != nil {
		return fmt.Errorf("update exam: %w", err)
	}
	return nil
}

// Delete removes an exam and its results.
func (r *ExamRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin exam delete: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err = tx.ExecContext(ctx, `DELETE FROM exam_results WHERE exam_id = $1`, id); err != nil {
		return fmt.Errorf("delete exam results: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM exams WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete exam: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit exam delete: %w", err)
	}
	return nil
}

// UpsertResult records a student's exam score, replacing a prior row for
// the same (exam, student) key.
func (r *ExamRepository) UpsertResult(ctx context.Context, result *models.ExamResult) error {
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if result.CreatedAt.IsZero() {
		result.CreatedAt = now
	}
	result.UpdatedAt = now

	const query = `INSERT INTO exam_results (id, exam_id, student_id, score, grade_label, recorded_by, created_at, updated_at) VALUES (:id, :exam_id, :student_id, :score, :grade_label, :recorded_by, :created_at, :updated_at) ON CONFLICT (exam_id, student_id) DO UPDATE SET score = EXCLUDED.score, grade_label = EXCLUDED.grade_label, recorded_by = EXCLUDED.recorded_by, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, result); err != nil {
		return fmt.Errorf("upsert exam result: %w", err)
	}
	return nil
}

// ListResults returns results for an exam with student labels.
func (r *ExamRepository) ListResults(ctx context.Context, examID string) ([]models.ExamResultDetail, error) {
	const query = `SELECT er.id, er.exam_id, er.student_id, er.score, er.grade_label, er.recorded_by, er.created_at, er.updated_at, e.title AS exam_title, e.course_id, u.full_name AS student_name FROM exam_results er JOIN exams e ON e.id = er.exam_id JOIN users u ON u.id = er.student_id WHERE er.exam_id = $1 ORDER BY u.full_name ASC`
	var results []models.ExamResultDetail
	if err := r.db.SelectContext(ctx, &results, query, examID); err != nil {
		return nil, fmt.Errorf("list exam results: %w", err)
	}
	return results, nil
}

// ListResultsForStudent returns a student's results across all exams.
func (r *ExamRepository) ListResultsForStudent(ctx context.Context, studentID string) ([]models.ExamResultDetail, error) {
	const query = `SELECT er.id, er.exam_id, er.student_id, er.score, er.grade_label, er.recorded_by, er.created_at, er.updated_at, e.title AS exam_title, e.course_id, u.full_name AS student_name FROM exam_results er JOIN exams e ON e.id = er.exam_id JOIN users u ON u.id = er.student_id WHERE er.student_id = $1 ORDER BY e.exam_date DESC`
	var results []models.ExamResultDetail
	if err := r.db.SelectContext(ctx, &results, query, studentID); err != nil {
		return nil, fmt.Errorf("list exam results for student: %w", err)
	}
	return results, nil
}
