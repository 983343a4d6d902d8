package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/opencampus/ucms-api/internal/models"
)

// EnrollmentRepository provides persistence for enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository creates a new enrollment repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns enrollments with student and course labels.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e JOIN users s ON s.id = e.student_id JOIN courses c ON c.id = e.course_id WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("e.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT e.id, e.student_id, e.course_id, e.status, e.enrolled_at, e.dropped_at, s.full_name AS student_name, c.title AS course_title, c.code AS course_code %s ORDER BY e.enrolled_at %s LIMIT %d OFFSET %d`, base, order, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}

	return enrollments, total, nil
}

// FindByID loads an enrollment by id.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, course_id, status, enrolled_at, dropped_at FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find enrollment by id: %w", err)
	}
	return &enrollment, nil
}

// ExistsActive reports whether the student already holds an active
// enrollment in the course.
func (r *EnrollmentRepository) ExistsActive(ctx context.Context, studentID, courseID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2 AND status = $3)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, studentID, courseID, models.EnrollmentStatusActive); err != nil {
		return false, fmt.Errorf("check active enrollment: %w", err)
	}
	return exists, nil
}

// ListActiveByStudent returns a student's active enrollments.
func (r *EnrollmentRepository) ListActiveByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error) {
	const query = `SELECT id, student_id, course_id, status, enrolled_at, dropped_at FROM enrollments WHERE student_id = $1 AND status = $2`
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, studentID, models.EnrollmentStatusActive); err != nil {
		return nil, fmt.Errorf("list active enrollments: %w", err)
	}
	return enrollments, nil
}

// Count returns the total number of active enrollments.
func (r *EnrollmentRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM enrollments WHERE status = 'ACTIVE'`); err != nil {
		return 0, fmt.Errorf("count enrollments: %w", err)
	}
	return count, nil
}

// CountStudentsByInstructor returns distinct active students across every
// course an instructor teaches.
func (r *EnrollmentRepository) CountStudentsByInstructor(ctx context.Context, instructorID string) (int, error) {
	const query = `SELECT COUNT(DISTINCT e.student_id) FROM enrollments e JOIN courses c ON c.id = e.course_id WHERE c.instructor_id = $1 AND e.status = 'ACTIVE'`
	var count int
	if err := r.db.GetContext(ctx, &count, query, instructorID); err != nil {
		return 0, fmt.Errorf("count students by instructor: %w", err)
	}
	return count, nil
}

// Create stores a new enrollment.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	const query = `INSERT INTO enrollments (id, student_id, course_id, status, enrolled_at) VALUES (:id, :student_id, :course_id, :status, :enrolled_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// UpdateStatus transitions the enrollment lifecycle.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, droppedAt *time.Time) error {
	const query = `UPDATE enrollments SET status = $2, dropped_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, droppedAt); err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	return nil
}
