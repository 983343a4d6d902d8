package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/opencampus/ucms-api/internal/models"
	"github.com/opencampus/ucms-api/internal/timetable"
	appErrors "github.com/opencampus/ucms-api/pkg/errors"
	"github.com/opencampus/ucms-api/pkg/export"
)

type timetableCourseRepository interface {
	ListMeetingsByInstructor(ctx context.Context, instructorID string) ([]models.CourseMeetingRow, error)
	ListMeetingsByStudent(ctx context.Context, studentID string) ([]models.CourseMeetingRow, error)
}

type timetableCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// WeeklyTimetable is the assembled view returned to clients: entries sorted
// by (day, start time) plus the day labels for rendering a grid.
type WeeklyTimetable struct {
	Entries  []timetable.Entry `json:"entries"`
	DayNames []string          `json:"day_names"`
}

// TimetableService builds weekly timetables from course meeting expressions.
// Instructors see the courses they teach, students the courses they are
// actively enrolled in.
type TimetableService struct {
	courses  timetableCourseRepository
	cache    timetableCache
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewTimetableService creates a TimetableService instance.
func NewTimetableService(courses timetableCourseRepository, cache timetableCache, cacheTTL time.Duration, logger *zap.Logger) *TimetableService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableService{
		courses:  courses,
		cache:    cache,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// ForUser returns the weekly timetable for the authenticated user based on
// their role. Admins get an empty grid; they have no personal schedule.
func (s *TimetableService) ForUser(ctx context.Context, claims *models.JWTClaims) (*WeeklyTimetable, error) {
	if claims == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "missing identity")
	}

	cacheKey := fmt.Sprintf("timetable:%s:%s", claims.UserID, claims.Role)
	if s.cache != nil {
		var cached WeeklyTimetable
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("timetable cache read failed", zap.Error(err))
		}
	}

	var (
		rows []models.CourseMeetingRow
		err  error
	)
	switch claims.Role {
	case models.RoleInstructor:
		rows, err = s.courses.ListMeetingsByInstructor(ctx, claims.UserID)
	case models.RoleStudent:
		rows, err = s.courses.ListMeetingsByStudent(ctx, claims.UserID)
	case models.RoleAdmin:
		rows = nil
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "unsupported role")
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course meetings")
	}

	result := &WeeklyTimetable{
		Entries:  timetable.Materialize(toMeetings(rows)),
		DayNames: timetable.DayNames[:],
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, result, s.cacheTTL); err != nil {
			s.logger.Warn("timetable cache write failed", zap.Error(err))
		}
	}

	return result, nil
}

// ExportCSV renders the user's timetable as CSV.
func (s *TimetableService) ExportCSV(ctx context.Context, claims *models.JWTClaims) ([]byte, error) {
	tt, err := s.ForUser(ctx, claims)
	if err != nil {
		return nil, err
	}
	data, err := s.csv.Render(timetableDataset(tt))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render timetable csv")
	}
	return data, nil
}

// ExportPDF renders the user's timetable as a PDF table.
func (s *TimetableService) ExportPDF(ctx context.Context, claims *models.JWTClaims) ([]byte, error) {
	tt, err := s.ForUser(ctx, claims)
	if err != nil {
		return nil, err
	}
	title := "Weekly Timetable"
	if claims != nil && claims.FullName != "" {
		title = fmt.Sprintf("Weekly Timetable - %s", claims.FullName)
	}
	data, err := s.pdf.Render(timetableDataset(tt), title)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render timetable pdf")
	}
	return data, nil
}

func toMeetings(rows []models.CourseMeetingRow) []timetable.CourseMeeting {
	meetings := make([]timetable.CourseMeeting, 0, len(rows))
	for _, row := range rows {
		m := timetable.CourseMeeting{CourseID: row.CourseID, Title: row.Title}
		if row.CourseTime != nil {
			m.CourseTime = *row.CourseTime
		}
		if row.Location != nil {
			m.Room = *row.Location
		}
		meetings = append(meetings, m)
	}
	return meetings
}

func timetableDataset(tt *WeeklyTimetable) export.Dataset {
	headers := []string{"Day", "Start", "End", "Course", "Room"}
	rows := make([]map[string]string, 0, len(tt.Entries))
	for _, entry := range tt.Entries {
		day := ""
		if entry.DayOfWeek >= 0 && entry.DayOfWeek < len(timetable.DayNames) {
			day = timetable.DayNames[entry.DayOfWeek]
		}
		rows = append(rows, map[string]string{
			"Day":    day,
			"Start":  entry.StartTime,
			"End":    entry.EndTime,
			"Course": entry.CourseTitle,
			"Room":   entry.Room,
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}
