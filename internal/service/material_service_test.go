package service

import (
	"context"
	"database/sql"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencampus/ucms-api/internal/models"
	appErrors "github.com/opencampus/ucms-api/pkg/errors"
	"github.com/opencampus/ucms-api/pkg/storage"
)

type mockMaterialRepo struct {
	materialByID *models.Material
	listed       []models.Material
	created      *models.Material
	deletedID    string
}

func (m *mockMaterialRepo) ListByCourse(ctx context.Context, courseID string) ([]models.Material, error) {
	return m.listed, nil
}

func (m *mockMaterialRepo) FindByID(ctx context.Context, id string) (*models.Material, error) {
	if m.materialByID == nil {
		return nil, sql.ErrNoRows
	}
	return m.materialByID, nil
}

func (m *mockMaterialRepo) Create(ctx context.Context, material *models.Material) error {
	material.ID = uuid.NewString()
	m.created = material
	return nil
}

func (m *mockMaterialRepo) Delete(ctx context.Context, id string) error {
	m.deletedID = id
	return nil
}

type mockMaterialCourseRepo struct {
	course *models.Course
}

func (m *mockMaterialCourseRepo) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if m.course == nil {
		return nil, sql.ErrNoRows
	}
	return m.course, nil
}

func newMaterialFixture(t *testing.T, repo *mockMaterialRepo, course *models.Course) *MaterialService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	return NewMaterialService(repo, &mockMaterialCourseRepo{course: course}, store, signer, 1024, []string{"application/pdf", "text/plain"}, nil, nil)
}

func uploadPDF(t *testing.T, svc *MaterialService, courseID, instructorID string, body io.Reader, size int64) (*models.MaterialWithURL, error) {
	t.Helper()
	fileName := "syllabus.pdf"
	contentType := "application/pdf"
	return svc.Upload(context.Background(), UploadMaterialRequest{
		CourseID:    courseID,
		Title:       "Syllabus",
		Kind:        models.MaterialKindDocument,
		FileName:    &fileName,
		ContentType: &contentType,
		SizeBytes:   size,
		File:        body,
	}, &models.JWTClaims{UserID: instructorID, Role: models.RoleInstructor})
}

func TestMaterialServiceUploadDocument(t *testing.T) {
	instructorID := uuid.NewString()
	courseID := uuid.NewString()
	repo := &mockMaterialRepo{}
	svc := newMaterialFixture(t, repo, &models.Course{ID: courseID, InstructorID: instructorID})

	material, err := uploadPDF(t, svc, courseID, instructorID, strings.NewReader("%PDF-1.4 body"), 13)
	require.NoError(t, err)

	require.NotNil(t, material.DownloadURL)
	assert.Contains(t, *material.DownloadURL, "/api/v1/materials/download/")
	require.NotNil(t, repo.created.FilePath)
	assert.True(t, strings.HasPrefix(*repo.created.FilePath, "materials/"))
}

func TestMaterialServiceUploadTooLarge(t *testing.T) {
	instructorID := uuid.NewString()
	courseID := uuid.NewString()
	svc := newMaterialFixture(t, &mockMaterialRepo{}, &models.Course{ID: courseID, InstructorID: instructorID})

	_, err := uploadPDF(t, svc, courseID, instructorID, strings.NewReader("x"), 4096)
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrFileTooLarge.Code, appErr.Code)
}

func TestMaterialServiceUploadUnsupportedType(t *testing.T) {
	instructorID := uuid.NewString()
	courseID := uuid.NewString()
	svc := newMaterialFixture(t, &mockMaterialRepo{}, &models.Course{ID: courseID, InstructorID: instructorID})

	fileName := "malware.exe"
	contentType := "application/octet-stream"
	_, err := svc.Upload(context.Background(), UploadMaterialRequest{
		CourseID:    courseID,
		Title:       "Tool",
		Kind:        models.MaterialKindDocument,
		FileName:    &fileName,
		ContentType: &contentType,
		SizeBytes:   10,
		File:        strings.NewReader("MZ"),
	}, &models.JWTClaims{UserID: instructorID, Role: models.RoleInstructor})
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUnsupportedMedia.Code, appErr.Code)
}

func TestMaterialServiceUploadLinkRequiresURL(t *testing.T) {
	courseID := uuid.NewString()
	svc := newMaterialFixture(t, &mockMaterialRepo{}, &models.Course{ID: courseID})

	_, err := svc.Upload(context.Background(), UploadMaterialRequest{
		CourseID: courseID,
		Title:    "Lecture recording",
		Kind:     models.MaterialKindLink,
	}, &models.JWTClaims{Role: models.RoleAdmin})
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestMaterialServiceOpenByTokenRoundtrip(t *testing.T) {
	instructorID := uuid.NewString()
	courseID := uuid.NewString()
	repo := &mockMaterialRepo{}
	svc := newMaterialFixture(t, repo, &models.Course{ID: courseID, InstructorID: instructorID})

	uploaded, err := uploadPDF(t, svc, courseID, instructorID, strings.NewReader("%PDF-1.4 body"), 13)
	require.NoError(t, err)
	repo.materialByID = repo.created

	token := strings.TrimPrefix(*uploaded.DownloadURL, "/api/v1/materials/download/")
	material, file, err := svc.OpenByToken(context.Background(), token)
	require.NoError(t, err)
	defer file.Close()

	assert.Equal(t, repo.created.ID, material.ID)
	data, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 body", string(data))
}

func TestMaterialServiceOpenByTokenRejectsGarbage(t *testing.T) {
	svc := newMaterialFixture(t, &mockMaterialRepo{}, &models.Course{})

	_, _, err := svc.OpenByToken(context.Background(), "not-a-token")
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestMaterialServiceDeleteRemovesFile(t *testing.T) {
	instructorID := uuid.NewString()
	courseID := uuid.NewString()
	repo := &mockMaterialRepo{}
	svc := newMaterialFixture(t, repo, &models.Course{ID: courseID, InstructorID: instructorID})

	_, err := uploadPDF(t, svc, courseID, instructorID, strings.NewReader("%PDF-1.4 body"), 13)
	require.NoError(t, err)
	repo.materialByID = repo.created

	err = svc.Delete(context.Background(), repo.created.ID, &models.JWTClaims{UserID: instructorID, Role: models.RoleInstructor})
	require.NoError(t, err)
	assert.Equal(t, repo.created.ID, repo.deletedID)
}
