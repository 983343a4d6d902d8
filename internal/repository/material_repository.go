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

// MaterialRepository provides persistence for course materials.
type MaterialRepository struct {
	db *sqlx.DB
}

// NewMaterialRepository creates a new material repository.
func NewMaterialRepository(db *sqlx.DB) *MaterialRepository {
	return &MaterialRepository{db: db}
}

const materialColumns = `id, course_id, title, kind, file_path, file_name, content_type, size_bytes, external_url, uploaded_by, created_at`

// ListByCourse returns a course's materials, newest first.
func (r *MaterialRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Material, error) {
	query := fmt.Sprintf(`SELECT %s FROM materials WHERE course_id = $1 ORDER BY created_at DESC`, materialColumns)
	var materials []models.Material
	if err := r.db.SelectContext(ctx, &materials, query, courseID); err != nil {
		return nil, fmt.Errorf("list materials by course: %w", err)
	}
	return materials, nil
}

// FindByID loads a material by id.
func (r *MaterialRepository) FindByID(ctx context.Context, id string) (*models.Material, error) {
	query := fmt.Sprintf(`SELECT %s FROM materials WHERE id = $1`, materialColumns)
	var material models.Material
	if err := r.db.GetContext(ctx, &material, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find material by id: %w", err)
	}
	return &material, nil
}

// Create stores a new material row.
func (r *MaterialRepository) Create(ctx context.Context, material *models.Material) error {
	if material.ID == "" {
		material.ID = uuid.NewString()
	}
	if material.CreatedAt.IsZero() {
		material.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO materials (id, course_id, title, kind, file_path, file_name, content_type, size_bytes, external_url, uploaded_by, created_at) VALUES (:id, :course_id, :title, :kind, :file_path, :file_name, :content_type, :size_bytes, :external_url, :uploaded_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, material); err != nil {
		return fmt.Errorf("create material: %w", err)
	}
	return nil
}

// Delete removes a material row.
func (r *MaterialRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM materials WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete material: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
