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

// GradeRepository provides persistence for course grades.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository creates a new grade repository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

const gradeDetailQuery = `SELECT g.id, g.course_id, g.student_id, g.component, g.score, g.max_score, g.remarks, g.graded_by, g.created_at, g.updated_at, u.full_name AS student_name, c.title AS course_title FROM grades g JOIN users u ON u.id = g.student_id JOIN courses c ON c.id = g.course_id`

// List returns grades matching the filter with student and course labels.
func (r *GradeRepository) List(ctx context.Context, filter models.GradeFilter) ([]models.GradeDetail, error) {
	query := gradeDetailQuery + ` WHERE 1=1`
	args := []interface{}{}
	idx := 1

	if filter.CourseID != "" {
		query += fmt.Sprintf(" AND g.course_id = $%d", idx)
		args = append(args, filter.CourseID)
		idx++
	}
	if filter.StudentID != "" {
		query += fmt.Sprintf(" AND g.student_id = $%d", idx)
		args = append(args, filter.StudentID)
		idx++
	}
	if filter.Component != "" {
		query += fmt.Sprintf(" AND g.component = $%d", idx)
		args = append(args, filter.Component)
		idx++
	}

	sortColumn := "g.updated_at"
	switch filter.SortBy {
	case "component":
		sortColumn = "g.component"
	case "score":
		sortColumn = "g.score"
	case "student_name":
		sortColumn = "u.full_name"
	}
	sortOrder := "DESC"
	if filter.SortOrder == "asc" {
		sortOrder = "ASC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s", sortColumn, sortOrder)

	if filter.PageSize > 0 {
		offset := 0
		if filter.Page > 1 {
			offset = (filter.Page - 1) * filter.PageSize
		}
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", idx, idx+1)
		args = append(args, filter.PageSize, offset)
	}

	var grades []models.GradeDetail
	if err := r.db.SelectContext(ctx, &grades, query, args...); err != nil {
		return nil, fmt.Errorf("list grades: %w", err)
	}
	return grades, nil
}

// FindByID loads a grade by id.
func (r *GradeRepository) FindByID(ctx context.Context, id string) (*models.Grade, error) {
	const query = `SELECT id, course_id, student_id, component, score, max_score, remarks, graded_by, created_at, updated_at FROM grades WHERE id = $1`
	var grade models.Grade
	if err := r.db.GetContext(ctx, &grade, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find grade by id: %w", err)
	}
	return &grade, nil
}

// Upsert stores a grade, replacing any existing row for the same
// (course, student, component) key.
func (r *GradeRepository) Upsert(ctx context.Context, grade *models.Grade) error {
	if grade.ID == "" {
		grade.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if grade.CreatedAt.IsZero() {
		grade.CreatedAt = now
	}
	grade.UpdatedAt = now

	const query = `INSERT INTO grades (id, course_id, student_id, component, score, max_score, remarks, graded_by, created_at, updated_at) VALUES (:id, :course_id, :student_id, :component, :score, :max_score, :remarks, :graded_by, :created_at, :updated_at) ON CONFLICT (course_id, student_id, component) DO UPDATE SET score = EXCLUDED.score, max_score = EXCLUDED.max_score, remarks = EXCLUDED.remarks, graded_by = EXCLUDED.graded_by, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, grade); err != nil {
		return fmt.Errorf("upsert grade: %w", err)
	}
	return nil
}

// Delete removes a grade row.
func (r *GradeRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM grades WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete grade: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SummarizeCourse aggregates each enrolled student's totals for a course.
func (r *GradeRepository) SummarizeCourse(ctx context.Context, courseID string) ([]models.StudentGradeSummary, error) {
	const query = `SELECT g.student_id, u.full_name AS student_name, SUM(g.score) AS total_score, SUM(g.max_score) AS total_max, COALESCE(SUM(g.score) / NULLIF(SUM(g.max_score), 0) * 100, 0) AS percentage, COUNT(*) AS components FROM grades g JOIN users u ON u.id = g.student_id WHERE g.course_id = $1 GROUP BY g.student_id, u.full_name ORDER BY u.full_name ASC`
	var summaries []models.StudentGradeSummary
	if err := r.db.SelectContext(ctx, &summaries, query, courseID); err != nil {
		return nil, fmt.Errorf("summarize course grades: %w", err)
	}
	return summaries, nil
}

// AverageForStudent returns the student's mean score percentage across all
// courses, nil when no grades exist.
func (r *GradeRepository) AverageForStudent(ctx context.Context, studentID string) (*float64, error) {
	const query = `SELECT AVG(score / NULLIF(max_score, 0) * 100) FROM grades WHERE student_id = $1`
	var avg sql.NullFloat64
	if err := r.db.GetContext(ctx, &avg, query, studentID); err != nil {
		return nil, fmt.Errorf("average grades for student: %w", err)
	}
	if !avg.Valid {
		return nil, nil
	}
	return &avg.Float64, nil
}

// AverageByInstructor returns the mean score percentage across an
// instructor's courses, nil when no grades exist.
func (r *GradeRepository) AverageByInstructor(ctx context.Context, instructorID string) (*float64, error) {
	const query = `SELECT AVG(g.score / NULLIF(g.max_score, 0) * 100) FROM grades g JOIN courses c ON c.id = g.course_id WHERE c.instructor_id = $1`
	var avg sql.NullFloat64
	if err := r.db.GetContext(ctx, &avg, query, instructorID); err != nil {
		return nil, fmt.Errorf("average grades by instructor: %w", err)
	}
	if !avg.Valid {
		return nil, nil
	}
	return &avg.Float64, nil
}
