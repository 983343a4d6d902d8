package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/opencampus/ucms-api/internal/models"
	appErrors "github.com/opencampus/ucms-api/pkg/errors"
)

type dashboardUserRepository interface {
	Count(ctx context.Context) (int, error)
	CountByRole(ctx context.Context, role models.UserRole) (int, error)
	ListRecent(ctx context.Context, limit int) ([]models.User, error)
}

type dashboardCourseRepository interface {
	Count(ctx context.Context) (int, error)
	CountByInstructor(ctx context.Context, instructorID string) (int, error)
}

type dashboardEnrollmentRepository interface {
	Count(ctx context.Context) (int, error)
	CountStudentsByInstructor(ctx context.Context, instructorID string) (int, error)
	ListActiveByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error)
}

type dashboardAssignmentRepository interface {
	CountPendingForStudent(ctx context.Context, studentID string) (int, error)
	CountUngradedByInstructor(ctx context.Context, instructorID string) (int, error)
}

type dashboardExamRepository interface {
	ListUpcomingForStudent(ctx context.Context, studentID string, limit int) ([]models.Exam, error)
	ListUpcomingByInstructor(ctx context.Context, instructorID string, limit int) ([]models.Exam, error)
}

type dashboardGradeRepository interface {
	List(ctx context.Context, filter models.GradeFilter) ([]models.GradeDetail, error)
}

type dashboardAnnouncementRepository interface {
	List(ctx context.Context, filter models.AnnouncementFilter) ([]models.AnnouncementDetail, error)
	ListForStudent(ctx context.Context, studentID string, limit int) ([]models.AnnouncementDetail, error)
}

type dashboardCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// DashboardService assembles role-specific landing views. Results are
// cached briefly since they fan out over several aggregate queries.
type DashboardService struct {
	users         dashboardUserRepository
	courses       dashboardCourseRepository
	enrollments   dashboardEnrollmentRepository
	assignments   dashboardAssignmentRepository
	exams         dashboardExamRepository
	grades        dashboardGradeRepository
	announcements dashboardAnnouncementRepository
	cache         dashboardCache
	cacheTTL      time.Duration
	logger        *zap.Logger
}

// NewDashboardService creates a DashboardService instance.
func NewDashboardService(users dashboardUserRepository, courses dashboardCourseRepository, enrollments dashboardEnrollmentRepository, assignments dashboardAssignmentRepository, exams dashboardExamRepository, grades dashboardGradeRepository, announcements dashboardAnnouncementRepository, cache dashboardCache, cacheTTL time.Duration, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		users:         users,
		courses:       courses,
		enrollments:   enrollments,
		assignments:   assignments,
		exams:         exams,
		grades:        grades,
		announcements: announcements,
		cache:         cache,
		cacheTTL:      cacheTTL,
		logger:        logger,
	}
}

// Student assembles the student landing view. The boolean reports whether
// the payload was served from cache.
func (s *DashboardService) Student(ctx context.Context, studentID string) (*models.StudentDashboard, bool, error) {
	cacheKey := fmt.Sprintf("dashboard:student:%s", studentID)
	var cached models.StudentDashboard
	if s.fromCache(ctx, cacheKey, &cached) {
		return &cached, true, nil
	}

	enrollments, err := s.enrollments.ListActiveByStudent(ctx, studentID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
	}

	pending, err := s.assignments.CountPendingForStudent(ctx, studentID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count pending assignments")
	}

	exams, err := s.exams.ListUpcomingForStudent(ctx, studentID, 5)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load upcoming exams")
	}

	grades, err := s.grades.List(ctx, models.GradeFilter{StudentID: studentID, PageSize: 5, Page: 1})
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recent grades")
	}

	announcements, err := s.announcements.ListForStudent(ctx, studentID, 5)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load announcements")
	}

	dashboard := &models.StudentDashboard{
		EnrolledCourses:    len(enrollments),
		PendingAssignments: pending,
		UpcomingExams:      exams,
		RecentGrades:       grades,
		Announcements:      announcements,
		GeneratedAt:        time.Now().UTC(),
	}
	s.toCache(ctx, cacheKey, dashboard)
	return dashboard, false, nil
}

// Instructor assembles the instructor landing view.
func (s *DashboardService) Instructor(ctx context.Context, instructorID string) (*models.InstructorDashboard, bool, error) {
	cacheKey := fmt.Sprintf("dashboard:instructor:%s", instructorID)
	var cached models.InstructorDashboard
	if s.fromCache(ctx, cacheKey, &cached) {
		return &cached, true, nil
	}

	courses, err := s.courses.CountByInstructor(ctx, instructorID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count courses")
	}

	students, err := s.enrollments.CountStudentsByInstructor(ctx, instructorID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}

	ungraded, err := s.assignments.CountUngradedByInstructor(ctx, instructorID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count ungraded submissions")
	}

	exams, err := s.exams.ListUpcomingByInstructor(ctx, instructorID, 5)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load upcoming exams")
	}

	announcements, err := s.announcements.List(ctx, models.AnnouncementFilter{Campus: true, PageSize: 5, Page: 1})
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load announcements")
	}

	dashboard := &models.InstructorDashboard{
		Courses:             courses,
		TotalStudents:       students,
		UngradedSubmissions: ungraded,
		UpcomingExams:       exams,
		Announcements:       announcements,
		GeneratedAt:         time.Now().UTC(),
	}
	s.toCache(ctx, cacheKey, dashboard)
	return dashboard, false, nil
}

// Admin assembles campus-wide totals.
func (s *DashboardService) Admin(ctx context.Context) (*models.AdminDashboard, bool, error) {
	const cacheKey = "dashboard:admin"
	var cached models.AdminDashboard
	if s.fromCache(ctx, cacheKey, &cached) {
		return &cached, true, nil
	}

	totalUsers, err := s.users.Count(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count users")
	}
	totalStudents, err := s.users.CountByRole(ctx, models.RoleStudent)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}
	totalInstructors, err := s.users.CountByRole(ctx, models.RoleInstructor)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count instructors")
	}
	totalCourses, err := s.courses.Count(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count courses")
	}
	totalEnrollments, err := s.enrollments.Count(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
	}
	recent, err := s.users.ListRecent(ctx, 5)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list recent users")
	}

	dashboard := &models.AdminDashboard{
		TotalUsers:       totalUsers,
		TotalStudents:    totalStudents,
		TotalInstructors: totalInstructors,
		TotalCourses:     totalCourses,
		TotalEnrollments: totalEnrollments,
		RecentUsers:      recent,
		GeneratedAt:      time.Now().UTC(),
	}
	s.toCache(ctx, cacheKey, dashboard)
	return dashboard, false, nil
}

func (s *DashboardService) fromCache(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	err := s.cache.Get(ctx, key, dest)
	if err == nil {
		return true
	}
	if !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("dashboard cache read failed", zap.Error(err))
	}
	return false
}

func (s *DashboardService) toCache(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.cacheTTL); err != nil {
		s.logger.Warn("dashboard cache write failed", zap.Error(err))
	}
}
