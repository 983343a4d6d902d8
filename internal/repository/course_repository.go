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

// CourseRepository provides persistence for courses.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository creates a new course repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

const courseColumns = `id, code, title, description, instructor_id, course_time, location, image_url, capacity, created_at, updated_at`

// List returns courses with optional filtering and pagination.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error) {
	base := `FROM courses c JOIN users u ON u.id = c.instructor_id WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.InstructorID != "" {
		conditions = append(conditions, fmt.Sprintf("c.instructor_id = $%d", len(args)+1))
		args = append(args, filter.InstructorID)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(c.title) LIKE $%d OR LOWER(c.code) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"title":      "c.title",
		"code":       "c.code",
		"created_at": "c.created_at",
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "c.created_at"
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

	query := fmt.Sprintf(`SELECT c.id, c.code, c.title, c.description, c.instructor_id, c.course_time, c.location, c.image_url, c.capacity, c.created_at, c.updated_at, u.full_name AS instructor_name, (SELECT COUNT(*) FROM enrollments e WHERE e.course_id = c.id AND e.status = 'ACTIVE') AS enrolled_count %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, column, order, size, offset)

	var courses []models.CourseDetail
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}

	return courses, total, nil
}

// FindByID loads a course by id.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	query := fmt.Sprintf(`SELECT %s FROM courses WHERE id = $1`, courseColumns)
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find course by id: %w", err)
	}
	return &course, nil
}

// CountActiveEnrollments returns the number of active enrollments in a course.
func (r *CourseRepository) CountActiveEnrollments(ctx context.Context, courseID string) (int, error) {
	var count int
	const query = `SELECT COUNT(*) FROM enrollments WHERE course_id = $1 AND status = 'ACTIVE'`
	if err := r.db.GetContext(ctx, &count, query, courseID); err != nil {
		return 0, fmt.Errorf("count active enrollments: %w", err)
	}
	return count, nil
}

// Count returns the total number of courses.
func (r *CourseRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM courses`); err != nil {
		return 0, fmt.Errorf("count courses: %w", err)
	}
	return count, nil
}

// CountByInstructor returns the number of courses taught by an instructor.
func (r *CourseRepository) CountByInstructor(ctx context.Context, instructorID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM courses WHERE instructor_id = $1`, instructorID); err != nil {
		return 0, fmt.Errorf("count courses by instructor: %w", err)
	}
	return count, nil
}

// ListMeetingsByInstructor returns the meeting projection for every course
// taught by the instructor, feeding the timetable materializer.
func (r *CourseRepository) ListMeetingsByInstructor(ctx context.Context, instructorID string) ([]models.CourseMeetingRow, error) {
	const query = `SELECT id AS course_id, title, course_time, location FROM courses WHERE instructor_id = $1`
	var rows []models.CourseMeetingRow
	if err := r.db.SelectContext(ctx, &rows, query, instructorID); err != nil {
		return nil, fmt.Errorf("list meetings by instructor: %w", err)
	}
	return rows, nil
}

// ListMeetingsByStudent returns the meeting projection for every course the
// student is actively enrolled in.
func (r *CourseRepository) ListMeetingsByStudent(ctx context.Context, studentID string) ([]models.CourseMeetingRow, error) {
	const query = `SELECT c.id AS course_id, c.title, c.course_time, c.location FROM courses c JOIN enrollments e ON e.course_id = c.id WHERE e.student_id = $1 AND e.status = 'ACTIVE'`
	var rows []models.CourseMeetingRow
	if err := r.db.SelectContext(ctx, &rows, query, studentID); err != nil {
		return nil, fmt.Errorf("list meetings by student: %w", err)
	}
	return rows, nil
}

// Create stores a new course record.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = now

	const query = `INSERT INTO courses (id, code, title, description, instructor_id, course_time, location, image_url, capacity, created_at, updated_at) VALUES (:id, :code, :title, :description, :instructor_id, :course_time, :location, :image_url, :capacity, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// Update modifies a course record.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET code = :code, title = :title, description = :description, instructor_id = :instructor_id, course_time = :course_time, location = :location, image_url = :image_url, capacity = :capacity, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return nil
}

// DeleteCascade removes a course and every dependent record in a single
// transaction: submissions, assignments, materials, grades, attendance, exam
// results, exams, announcements and enrollments.
func (r *CourseRepository) DeleteCascade(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin course delete: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	statements := []string{
		`DELETE FROM submissions WHERE assignment_id IN (SELECT id FROM assignments WHERE course_id = $1)`,
		`DELETE FROM assignments WHERE course_id = $1`,
		`DELETE FROM materials WHERE course_id = $1`,
		`DELETE FROM grades WHERE course_id = $1`,
		`DELETE FROM attendance WHERE course_id = $1`,
		`DELETE FROM exam_results WHERE exam_id IN (SELECT id FROM exams WHERE course_id = $1)`,
		`DELETE FROM exams WHERE course_id = $1`,
		`DELETE FROM announcements WHERE course_id = $1`,
		`DELETE FROM enrollments WHERE course_id = $1`,
		`DELETE FROM courses WHERE id = $1`,
	}
	for _, stmt := range statements {
		if _, err = tx.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("cascade delete course: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit course delete: %w", err)
	}
	return nil
}
