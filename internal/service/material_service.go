package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opencampus/ucms-api/internal/models"
	appErrors "github.com/opencampus/ucms-api/pkg/errors"
	"github.com/opencampus/ucms-api/pkg/storage"
)

type materialRepository interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.Material, error)
	FindByID(ctx context.Context, id string) (*models.Material, error)
	Create(ctx context.Context, material *models.Material) error
	Delete(ctx context.Context, id string) error
}

type materialCourseRepository interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type materialFileStore interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

// UploadMaterialRequest attaches a file or external link to a course.
type UploadMaterialRequest struct {
	CourseID    string              `json:"course_id" validate:"required,uuid4"`
	Title       string              `json:"title" validate:"required"`
	Kind        models.MaterialKind `json:"kind" validate:"required,oneof=DOCUMENT VIDEO LINK"`
	ExternalURL *string             `json:"external_url"`
	FileName    *string             `json:"-"`
	ContentType *string             `json:"-"`
	SizeBytes   int64               `json:"-"`
	File        io.Reader           `json:"-"`
}

// MaterialService handles course learning resources. Uploaded files live on
// local disk and are served through expiring signed URLs; LINK materials
// just store the external URL.
type MaterialService struct {
	repo         materialRepository
	courses      materialCourseRepository
	files        materialFileStore
	signer       *storage.SignedURLSigner
	maxSizeBytes int64
	allowedMIMEs map[string]struct{}
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewMaterialService creates a MaterialService instance.
func NewMaterialService(repo materialRepository, courses materialCourseRepository, files materialFileStore, signer *storage.SignedURLSigner, maxSizeBytes int64, allowedMIMEs []string, validate *validator.Validate, logger *zap.Logger) *MaterialService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	mimes := make(map[string]struct{}, len(allowedMIMEs))
	for _, m := range allowedMIMEs {
		mimes[m] = struct{}{}
	}
	return &MaterialService{
		repo:         repo,
		courses:      courses,
		files:        files,
		signer:       signer,
		maxSizeBytes: maxSizeBytes,
		allowedMIMEs: mimes,
		validator:    validate,
		logger:       logger,
	}
}

// ListByCourse returns a course's materials decorated with signed download
// URLs for file-backed entries.
func (s *MaterialService) ListByCourse(ctx context.Context, courseID string) ([]models.MaterialWithURL, error) {
	materials, err := s.repo.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list materials")
	}

	out := make([]models.MaterialWithURL, 0, len(materials))
	for _, m := range materials {
		out = append(out, s.decorate(m))
	}
	return out, nil
}

// Upload stores a new material. DOCUMENT and VIDEO kinds require a file;
// LINK requires an external URL.
func (s *MaterialService) Upload(ctx context.Context, req UploadMaterialRequest, actor *models.JWTClaims) (*models.MaterialWithURL, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid material payload")
	}

	if err := s.checkCourseOwnership(ctx, req.CourseID, actor); err != nil {
		return nil, err
	}

	material := &models.Material{
		CourseID: req.CourseID,
		Title:    req.Title,
		Kind:     req.Kind,
	}
	if actor != nil {
		material.UploadedBy = actor.UserID
	}

	switch req.Kind {
	case models.MaterialKindLink:
		if req.ExternalURL == nil || *req.ExternalURL == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "link material requires external_url")
		}
		material.ExternalURL = req.ExternalURL
	default:
		if req.File == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "file material requires an upload")
		}
		if s.maxSizeBytes > 0 && req.SizeBytes > s.maxSizeBytes {
			return nil, appErrors.Clone(appErrors.ErrFileTooLarge, "")
		}
		if len(s.allowedMIMEs) > 0 && req.ContentType != nil {
			if _, ok := s.allowedMIMEs[*req.ContentType]; !ok {
				return nil, appErrors.Clone(appErrors.ErrUnsupportedMedia, "")
			}
		}

		name := uuid.NewString()
		if req.FileName != nil {
			name = fmt.Sprintf("%s-%s", name, *req.FileName)
		}
		path, err := s.files.SaveStream(fmt.Sprintf("materials/%s", name), req.File)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store material file")
		}
		size := req.SizeBytes
		material.FilePath = &path
		material.FileName = req.FileName
		material.ContentType = req.ContentType
		material.SizeBytes = &size
	}

	if err := s.repo.Create(ctx, material); err != nil {
		if material.FilePath != nil {
			if cleanupErr := s.files.Delete(*material.FilePath); cleanupErr != nil {
				s.logger.Warn("failed to remove orphaned material file", zap.Error(cleanupErr))
			}
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create material")
	}

	decorated := s.decorate(*material)
	return &decorated, nil
}

// Delete removes a material and its stored file, if any.
func (s *MaterialService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	material, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "material not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load material")
	}

	if err := s.checkCourseOwnership(ctx, material.CourseID, actor); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "material not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete material")
	}

	if material.FilePath != nil {
		if err := s.files.Delete(*material.FilePath); err != nil {
			s.logger.Warn("failed to delete material file", zap.String("material_id", id), zap.Error(err))
		}
	}
	return nil
}

// OpenByToken validates a signed download token and opens the backing file.
// Returns the material for content-type and filename headers.
func (s *MaterialService) OpenByToken(ctx context.Context, token string) (*models.Material, *os.File, error) {
	materialID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid or expired download token")
	}

	material, err := s.repo.FindByID(ctx, materialID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "material not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load material")
	}
	if material.FilePath == nil || *material.FilePath != relPath {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "token does not match material")
	}

	file, err := s.files.Open(*material.FilePath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open material file")
	}
	return material, file, nil
}

func (s *MaterialService) decorate(m models.Material) models.MaterialWithURL {
	out := models.MaterialWithURL{Material: m}
	if m.FilePath == nil || s.signer == nil {
		return out
	}
	token, expires, err := s.signer.Generate(m.ID, *m.FilePath)
	if err != nil {
		s.logger.Warn("failed to sign material url", zap.String("material_id", m.ID), zap.Error(err))
		return out
	}
	url := fmt.Sprintf("/api/v1/materials/download/%s", token)
	out.DownloadURL = &url
	out.URLExpires = &expires
	return out
}

func (s *MaterialService) checkCourseOwnership(ctx context.Context, courseID string, actor *models.JWTClaims) error {
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
