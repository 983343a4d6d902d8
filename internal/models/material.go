package models

import "time"

// MaterialKind classifies course materials.
type MaterialKind string

const (
	MaterialKindDocument MaterialKind = "DOCUMENT"
	MaterialKindVideo    MaterialKind = "VIDEO"
	MaterialKindLink     MaterialKind = "LINK"
)

// Valid reports whether the kind is supported.
func (k MaterialKind) Valid() bool {
	switch k {
	case MaterialKindDocument, MaterialKindVideo, MaterialKindLink:
		return true
	default:
		return false
	}
}

// Material is a learning resource attached to a course: an uploaded file
// (stored locally, served via signed URLs) or an external link.
type Material struct {
	ID          string       `db:"id" json:"id"`
	CourseID    string       `db:"course_id" json:"course_id"`
	Title       string       `db:"title" json:"title"`
	Kind        MaterialKind `db:"kind" json:"kind"`
	FilePath    *string      `db:"file_path" json:"-"`
	FileName    *string      `db:"file_name" json:"file_name,omitempty"`
	ContentType *string      `db:"content_type" json:"content_type,omitempty"`
	SizeBytes   *int64       `db:"size_bytes" json:"size_bytes,omitempty"`
	ExternalURL *string      `db:"external_url" json:"external_url,omitempty"`
	UploadedBy  string       `db:"uploaded_by" json:"uploaded_by"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
}

// MaterialWithURL decorates a material with a signed, expiring download URL.
type MaterialWithURL struct {
	Material
	DownloadURL *string    `json:"download_url,omitempty"`
	URLExpires  *time.Time `json:"url_expires,omitempty"`
}
