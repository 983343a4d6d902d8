package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/opencampus/ucms-api/internal/models"
)

// AttendanceRepository provides persistence for attendance records.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository creates a new attendance repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// List returns attendance records matching the filter with student names.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, error) {
	query := `SELECT a.id, a.course_id, a.student_id, a.date, a.status, a.notes, a.created_at, a.updated_at, u.full_name AS student_name FROM attendance a JOIN users u ON u.id = a.student_id WHERE 1=1`
	args := []interface{}{}
	idx := 1

	if filter.CourseID != "" {
		query += fmt.Sprintf(" AND a.course_id = $%d", idx)
		args = append(args, filter.CourseID)
		idx++
	}
	if filter.StudentID != "" {
		query += fmt.Sprintf(" AND a.student_id = $%d", idx)
		args = append(args, filter.StudentID)
		idx++
	}
	if filter.Status != nil {
		query += fmt.Sprintf(" AND a.status = $%d", idx)
		args = append(args, *filter.Status)
		idx++
	}
	if filter.DateFrom != nil {
		query += fmt.Sprintf(" AND a.date >= $%d", idx)
		args = append(args, *filter.DateFrom)
		idx++
	}
	if filter.DateTo != nil {
		query += fmt.Sprintf(" AND a.date <= $%d", idx)
		args = append(args, *filter.DateTo)
		idx++
	}
	query += " ORDER BY a.date DESC, u.full_name ASC"

	if filter.PageSize > 0 {
		offset := 0
		if filter.Page > 1 {
			offset = (filter.Page - 1) * filter.PageSize
		}
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", idx, idx+1)
		args = append(args, filter.PageSize, offset)
	}

	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return records, nil
}

// BulkUpsert records a full session's attendance in one transaction,
// replacing prior marks for the same (course, student, date) key.
func (r *AttendanceRepository) BulkUpsert(ctx context.Context, records []models.Attendance) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin attendance upsert: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `INSERT INTO attendance (id, course_id, student_id, date, status, notes, created_at, updated_at) VALUES (:id, :course_id, :student_id, :date, :status, :notes, :created_at, :updated_at) ON CONFLICT (course_id, student_id, date) DO UPDATE SET status = EXCLUDED.status, notes = EXCLUDED.notes, updated_at = EXCLUDED.updated_at`
	now := time.Now().UTC()
	for i := range records {
		if records[i].ID == "" {
			records[i].ID = uuid.NewString()
		}
		if records[i].CreatedAt.IsZero() {
			records[i].CreatedAt = now
		}
		records[i].UpdatedAt = now
		if _, err = tx.NamedExecContext(ctx, query, records[i]); err != nil {
			return fmt.Errorf("upsert attendance record: %w", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit attendance upsert: %w", err)
	}
	return nil
}

// RatesByCourse computes per-student presence rates for a course. PRESENT
// and LATE both count as attended.
func (r *AttendanceRepository) RatesByCourse(ctx context.Context, courseID string) ([]models.AttendanceRate, error) {
	const query = `SELECT a.student_id, u.full_name AS student_name, COUNT(*) AS total, COUNT(*) FILTER (WHERE a.status IN ('PRESENT', 'LATE')) AS present, COALESCE(COUNT(*) FILTER (WHERE a.status IN ('PRESENT', 'LATE'))::float / NULLIF(COUNT(*), 0) * 100, 0) AS rate FROM attendance a JOIN users u ON u.id = a.student_id WHERE a.course_id = $1 GROUP BY a.student_id, u.full_name ORDER BY u.full_name ASC`
	var rates []models.AttendanceRate
	if err := r.db.SelectContext(ctx, &rates, query, courseID); err != nil {
		return nil, fmt.Errorf("attendance rates by course: %w", err)
	}
	return rates, nil
}

// RateForStudent computes one student's overall presence percentage, nil
// when no records exist.
func (r *AttendanceRepository) RateForStudent(ctx context.Context, studentID string) (*float64, error) {
	const query = `SELECT COUNT(*) AS total, COUNT(*) FILTER (WHERE status IN ('PRESENT', 'LATE')) AS present FROM attendance WHERE student_id = $1`
	var agg struct {
		Total   int `db:"total"`
		Present int `db:"present"`
	}
	if err := r.db.GetContext(ctx, &agg, query, studentID); err != nil {
		return nil, fmt.Errorf("attendance rate for student: %w", err)
	}
	if agg.Total == 0 {
		return nil, nil
	}
	rate := float64(agg.Present) / float64(agg.Total) * 100
	return &rate, nil
}

// OverallRate computes the campus-wide presence percentage, nil when no
// records exist.
func (r *AttendanceRepository) OverallRate(ctx context.Context) (*float64, error) {
	const query = `SELECT COUNT(*) AS total, COUNT(*) FILTER (WHERE status IN ('PRESENT', 'LATE')) AS present FROM attendance`
	var agg struct {
		Total   int `db:"total"`
		Present int `db:"present"`
	}
	if err := r.db.GetContext(ctx, &agg, query); err != nil {
		return nil, fmt.Errorf("overall attendance rate: %w", err)
	}
	if agg.Total == 0 {
		return nil, nil
	}
	rate := float64(agg.Present) / float64(agg.Total) * 100
	return &rate, nil
}
