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

// AnnouncementRepository provides persistence for announcements.
type AnnouncementRepository struct {
	db *sqlx.DB
}

// NewAnnouncementRepository creates a new announcement repository.
func NewAnnouncementRepository(db *sqlx.DB) *AnnouncementRepository {
	return &AnnouncementRepository{db: db}
}

const announcementDetailQuery = `SELECT a.id, a.course_id, a.title, a.body, a.posted_by, a.created_at, a.updated_at, u.full_name AS author_name, c.title AS course_title FROM announcements a JOIN users u ON u.id = a.posted_by LEFT JOIN courses c ON c.id = a.course_id`

// List returns announcements matching the filter, newest first.
func (r *AnnouncementRepository) List(ctx context.Context, filter models.AnnouncementFilter) ([]models.AnnouncementDetail, error) {
	query := announcementDetailQuery + ` WHERE 1=1`
	args := []interface{}{}
	idx := 1

	if filter.CourseID != "" {
		query += fmt.Sprintf(" AND a.course_id = $%d", idx)
		args = append(args, filter.CourseID)
		idx++
	}
	if filter.Campus {
		query += " AND a.course_id IS NULL"
	}

	order := "DESC"
	if filter.SortOrder == "asc" {
		order = "ASC"
	}
	query += fmt.Sprintf(" ORDER BY a.created_at %s", order)

	if filter.PageSize > 0 {
		offset := 0
		if filter.Page > 1 {
			offset = (filter.Page - 1) * filter.PageSize
		}
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", idx, idx+1)
		args = append(args, filter.PageSize, offset)
	}

	var announcements []models.AnnouncementDetail
	if err := r.db.SelectContext(ctx, &announcements, query, args...); err != nil {
		return nil, fmt.Errorf("list announcements: %w", err)
	}
	return announcements, nil
}

// ListForStudent returns campus-wide announcements plus those of the
// student's active courses.
func (r *AnnouncementRepository) ListForStudent(ctx context.Context, studentID string, limit int) ([]models.AnnouncementDetail, error) {
	query := announcementDetailQuery + ` WHERE a.course_id IS NULL OR a.course_id IN (SELECT course_id FROM enrollments WHERE student_id = $1 AND status = 'ACTIVE') ORDER BY a.created_at DESC LIMIT $2`
	var announcements []models.AnnouncementDetail
	if err := r.db.SelectContext(ctx, &announcements, query, studentID, limit); err != nil {
		return nil, fmt.Errorf("list announcements for student: %w", err)
	}
	return announcements, nil
}

// FindByID loads an announcement by id.
func (r *AnnouncementRepository) FindByID(ctx context.Context, id string) (*models.Announcement, error) {
	const query = `SELECT id, course_id, title, body, posted_by, created_at, updated_at FROM announcements WHERE id = $1`
	var announcement models.Announcement
	if err := r.db.GetContext(ctx, &announcement, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find announcement by id: %w", err)
	}
	return &announcement, nil
}

// Create stores a new announcement.
func (r *AnnouncementRepository) Create(ctx context.Context, announcement *models.Announcement) error {
	if announcement.ID == "" {
		announcement.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if announcement.CreatedAt.IsZero() {
		announcement.CreatedAt = now
	}
	announcement.UpdatedAt = now

	const query = `INSERT INTO announcements (id, course_id, title, body, posted_by, created_at, updated_at) VALUES (:id, :course_id, :title, :body, :posted_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, announcement); err != nil {
		return fmt.Errorf("create announcement: %w", err)
	}
	return nil
}

// Update modifies an announcement's title and body.
func (r *AnnouncementRepository) Update(ctx context.Context, announcement *models.Announcement) error {
	announcement.UpdatedAt = time.Now().UTC()
	const query = `UPDATE announcements SET title = :title, body = :body, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, announcement); err != nil {
		return fmt.Errorf("update announcement: %w", err)
	}
	return nil
}

// Delete removes an announcement.
func (r *AnnouncementRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM announcements WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete announcement: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
