package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencampus/ucms-api/internal/models"
	appErrors "github.com/opencampus/ucms-api/pkg/errors"
)

type mockTimetableCourseRepo struct {
	instructorRows  []models.CourseMeetingRow
	studentRows     []models.CourseMeetingRow
	instructorCalls int
	studentCalls    int
}

func (m *mockTimetableCourseRepo) ListMeetingsByInstructor(ctx context.Context, instructorID string) ([]models.CourseMeetingRow, error) {
	m.instructorCalls++
	return m.instructorRows, nil
}

func (m *mockTimetableCourseRepo) ListMeetingsByStudent(ctx context.Context, studentID string) ([]models.CourseMeetingRow, error) {
	m.studentCalls++
	return m.studentRows, nil
}

type mockTimetableCache struct {
	entries map[string][]byte
	sets    int
}

func (m *mockTimetableCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *mockTimetableCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if m.entries == nil {
		m.entries = make(map[string][]byte)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	m.sets++
	return nil
}

func TestTimetableServiceForStudentSortsAndDefaults(t *testing.T) {
	monTime := "Mon 10:00-11:30"
	room := "B-204"
	repo := &mockTimetableCourseRepo{studentRows: []models.CourseMeetingRow{
		{CourseID: "crs-2", Title: "Databases"},
		{CourseID: "crs-1", Title: "Algorithms", CourseTime: &monTime, Location: &room},
	}}
	svc := NewTimetableService(repo, nil, time.Minute, nil)

	tt, err := svc.ForUser(context.Background(), &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent})
	require.NoError(t, err)
	require.Len(t, tt.Entries, 2)

	// Both land on Monday; the defaulted 09:00 slot sorts first.
	assert.Equal(t, "Databases", tt.Entries[0].CourseTitle)
	assert.Equal(t, "09:00", tt.Entries[0].StartTime)
	assert.False(t, tt.Entries[0].Parsed)
	assert.Equal(t, "TBA", tt.Entries[0].Room)

	assert.Equal(t, "Algorithms", tt.Entries[1].CourseTitle)
	assert.Equal(t, 1, tt.Entries[1].DayOfWeek)
	assert.Equal(t, "10:00", tt.Entries[1].StartTime)
	assert.Equal(t, "11:30", tt.Entries[1].EndTime)
	assert.True(t, tt.Entries[1].Parsed)
	assert.Equal(t, "B-204", tt.Entries[1].Room)

	assert.Equal(t, "Sunday", tt.DayNames[0])
	assert.Equal(t, 1, repo.studentCalls)
	assert.Zero(t, repo.instructorCalls)
}

func TestTimetableServiceForInstructor(t *testing.T) {
	wedTime := "Wednesday 14:00"
	repo := &mockTimetableCourseRepo{instructorRows: []models.CourseMeetingRow{
		{CourseID: "crs-3", Title: "Networks", CourseTime: &wedTime},
	}}
	svc := NewTimetableService(repo, nil, time.Minute, nil)

	tt, err := svc.ForUser(context.Background(), &models.JWTClaims{UserID: "ins-1", Role: models.RoleInstructor})
	require.NoError(t, err)
	require.Len(t, tt.Entries, 1)
	assert.Equal(t, 3, tt.Entries[0].DayOfWeek)
	assert.Equal(t, "14:00", tt.Entries[0].StartTime)
	assert.Equal(t, "15:00", tt.Entries[0].EndTime)
	assert.Equal(t, 1, repo.instructorCalls)
}

func TestTimetableServiceAdminEmptyGrid(t *testing.T) {
	repo := &mockTimetableCourseRepo{}
	svc := NewTimetableService(repo, nil, time.Minute, nil)

	tt, err := svc.ForUser(context.Background(), &models.JWTClaims{UserID: "adm-1", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Empty(t, tt.Entries)
	assert.Len(t, tt.DayNames, 7)
	assert.Zero(t, repo.studentCalls)
	assert.Zero(t, repo.instructorCalls)
}

func TestTimetableServiceCacheHitSkipsRepository(t *testing.T) {
	monTime := "Mon 08:00-09:00"
	repo := &mockTimetableCourseRepo{studentRows: []models.CourseMeetingRow{
		{CourseID: "crs-1", Title: "Calculus", CourseTime: &monTime},
	}}
	cache := &mockTimetableCache{}
	svc := NewTimetableService(repo, cache, time.Minute, nil)
	claims := &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent}

	first, err := svc.ForUser(context.Background(), claims)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.studentCalls)
	assert.Equal(t, 1, cache.sets)

	second, err := svc.ForUser(context.Background(), claims)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.studentCalls, "cache hit must not hit the repository")
	assert.Equal(t, first.Entries, second.Entries)
}

func TestTimetableServiceNilClaims(t *testing.T) {
	svc := NewTimetableService(&mockTimetableCourseRepo{}, nil, time.Minute, nil)

	_, err := svc.ForUser(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestTimetableServiceExportCSV(t *testing.T) {
	friTime := "Fri 13:00-14:30"
	repo := &mockTimetableCourseRepo{studentRows: []models.CourseMeetingRow{
		{CourseID: "crs-1", Title: "Compilers", CourseTime: &friTime},
	}}
	svc := NewTimetableService(repo, nil, time.Minute, nil)

	data, err := svc.ExportCSV(context.Background(), &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent})
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, "Day,Start,End,Course,Room")
	assert.Contains(t, out, "Friday,13:00,14:30,Compilers,TBA")
}

func TestTimetableServiceExportPDF(t *testing.T) {
	repo := &mockTimetableCourseRepo{studentRows: []models.CourseMeetingRow{
		{CourseID: "crs-1", Title: "Compilers"},
	}}
	svc := NewTimetableService(repo, nil, time.Minute, nil)

	data, err := svc.ExportPDF(context.Background(), &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent, FullName: "Jordan Lee"})
	require.NoError(t, err)
	assert.True(t, len(data) > 0)
	assert.Equal(t, "%PDF", string(data[:4]))
}
