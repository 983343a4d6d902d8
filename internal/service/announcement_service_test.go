package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencampus/ucms-api/internal/models"
	appErrors "github.com/opencampus/ucms-api/pkg/errors"
)

type mockAnnouncementRepo struct {
	announcementByID *models.Announcement
	created          *models.Announcement
	updated          *models.Announcement
	deletedID        string
	feedLimit        int
}

func (m *mockAnnouncementRepo) List(ctx context.Context, filter models.AnnouncementFilter) ([]models.AnnouncementDetail, error) {
	return nil, nil
}

func (m *mockAnnouncementRepo) ListForStudent(ctx context.Context, studentID string, limit int) ([]models.AnnouncementDetail, error) {
	m.feedLimit = limit
	return nil, nil
}

func (m *mockAnnouncementRepo) FindByID(ctx context.Context, id string) (*models.Announcement, error) {
	if m.announcementByID == nil {
		return nil, sql.ErrNoRows
	}
	return m.announcementByID, nil
}

func (m *mockAnnouncementRepo) Create(ctx context.Context, announcement *models.Announcement) error {
	announcement.ID = uuid.NewString()
	m.created = announcement
	return nil
}

func (m *mockAnnouncementRepo) Update(ctx context.Context, announcement *models.Announcement) error {
	m.updated = announcement
	return nil
}

func (m *mockAnnouncementRepo) Delete(ctx context.Context, id string) error {
	m.deletedID = id
	return nil
}

type mockAnnouncementCourseRepo struct {
	course *models.Course
}

func (m *mockAnnouncementCourseRepo) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if m.course == nil {
		return nil, sql.ErrNoRows
	}
	return m.course, nil
}

func TestAnnouncementServiceCreateCampusWideAsAdmin(t *testing.T) {
	adminID := uuid.NewString()
	repo := &mockAnnouncementRepo{}
	svc := NewAnnouncementService(repo, &mockAnnouncementCourseRepo{}, nil, nil)

	announcement, err := svc.Create(context.Background(), CreateAnnouncementRequest{
		Title: "Campus closed Friday",
		Body:  "Maintenance work on the main building.",
	}, &models.JWTClaims{UserID: adminID, Role: models.RoleAdmin})
	require.NoError(t, err)

	assert.Nil(t, announcement.CourseID)
	assert.Equal(t, adminID, announcement.PostedBy)
}

func TestAnnouncementServiceCampusWideRequiresAdmin(t *testing.T) {
	svc := NewAnnouncementService(&mockAnnouncementRepo{}, &mockAnnouncementCourseRepo{}, nil, nil)

	_, err := svc.Create(context.Background(), CreateAnnouncementRequest{
		Title: "No class",
		Body:  "Office hours cancelled.",
	}, &models.JWTClaims{UserID: uuid.NewString(), Role: models.RoleInstructor})
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestAnnouncementServiceCreateForOwnCourse(t *testing.T) {
	instructorID := uuid.NewString()
	courseID := uuid.NewString()
	repo := &mockAnnouncementRepo{}
	courses := &mockAnnouncementCourseRepo{course: &models.Course{ID: courseID, InstructorID: instructorID}}
	svc := NewAnnouncementService(repo, courses, nil, nil)

	announcement, err := svc.Create(context.Background(), CreateAnnouncementRequest{
		CourseID: &courseID,
		Title:    "Midterm moved",
		Body:     "Now on week 9.",
	}, &models.JWTClaims{UserID: instructorID, Role: models.RoleInstructor})
	require.NoError(t, err)

	require.NotNil(t, announcement.CourseID)
	assert.Equal(t, courseID, *announcement.CourseID)
}

func TestAnnouncementServiceUpdateByOtherUserForbidden(t *testing.T) {
	repo := &mockAnnouncementRepo{announcementByID: &models.Announcement{
		ID:       uuid.NewString(),
		PostedBy: uuid.NewString(),
		Title:    "Original",
		Body:     "Original body",
	}}
	svc := NewAnnouncementService(repo, &mockAnnouncementCourseRepo{}, nil, nil)

	_, err := svc.Update(context.Background(), repo.announcementByID.ID, UpdateAnnouncementRequest{
		Title: "Edited",
		Body:  "Edited body",
	}, &models.JWTClaims{UserID: uuid.NewString(), Role: models.RoleInstructor})
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestAnnouncementServiceAdminMayDeleteAnyPost(t *testing.T) {
	repo := &mockAnnouncementRepo{announcementByID: &models.Announcement{
		ID:       uuid.NewString(),
		PostedBy: uuid.NewString(),
	}}
	svc := NewAnnouncementService(repo, &mockAnnouncementCourseRepo{}, nil, nil)

	err := svc.Delete(context.Background(), repo.announcementByID.ID, &models.JWTClaims{UserID: uuid.NewString(), Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, repo.announcementByID.ID, repo.deletedID)
}

func TestAnnouncementServiceFeedClampsLimit(t *testing.T) {
	repo := &mockAnnouncementRepo{}
	svc := NewAnnouncementService(repo, &mockAnnouncementCourseRepo{}, nil, nil)

	_, err := svc.Feed(context.Background(), uuid.NewString(), 500)
	require.NoError(t, err)
	assert.Equal(t, 20, repo.feedLimit)
}
