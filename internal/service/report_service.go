package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/opencampus/ucms-api/internal/models"
	"github.com/opencampus/ucms-api/internal/timetable"
	appErrors "github.com/opencampus/ucms-api/pkg/errors"
	"github.com/opencampus/ucms-api/pkg/export"
	"github.com/opencampus/ucms-api/pkg/jobs"
	"github.com/opencampus/ucms-api/pkg/storage"
)

type reportRepository interface {
	Create(ctx context.Context, job *models.ReportJob) error
	FindByID(ctx context.Context, id string) (*models.ReportJob, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]models.ReportJob, error)
	MarkProcessing(ctx context.Context, id string) error
	MarkFinished(ctx context.Context, id, resultURL string) error
	MarkFailed(ctx context.Context, id, message string) error
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type reportGradeSource interface {
	List(ctx context.Context, filter models.GradeFilter) ([]models.GradeDetail, error)
}

type reportEnrollmentSource interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
}

type reportUserSource interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type reportMeetingSource interface {
	ListMeetingsByInstructor(ctx context.Context, instructorID string) ([]models.CourseMeetingRow, error)
	ListMeetingsByStudent(ctx context.Context, studentID string) ([]models.CourseMeetingRow, error)
}

type reportFileStore interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// RequestReportRequest queues a new background report.
type RequestReportRequest struct {
	Type     models.ReportType   `json:"type" validate:"required,oneof=grades roster timetable"`
	Format   models.ReportFormat `json:"format" validate:"required,oneof=csv pdf"`
	CourseID string              `json:"course_id" validate:"omitempty,uuid4"`
}

// ReportService generates CSV/PDF reports asynchronously on a worker pool.
// Finished artifacts live on local disk behind expiring signed URLs and are
// swept together with their job rows after the retention window.
type ReportService struct {
	repo        reportRepository
	grades      reportGradeSource
	enrollments reportEnrollmentSource
	users       reportUserSource
	meetings    reportMeetingSource
	files       reportFileStore
	signer      *storage.SignedURLSigner
	queue       *jobs.Queue
	csv         *export.CSVExporter
	pdf         *export.PDFExporter
	retention   time.Duration
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewReportService creates a ReportService. Call Start before enqueuing.
func NewReportService(repo reportRepository, grades reportGradeSource, enrollments reportEnrollmentSource, users reportUserSource, meetings reportMeetingSource, files reportFileStore, signer *storage.SignedURLSigner, queueCfg jobs.QueueConfig, retention time.Duration, validate *validator.Validate, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	s := &ReportService{
		repo:        repo,
		grades:      grades,
		enrollments: enrollments,
		users:       users,
		meetings:    meetings,
		files:       files,
		signer:      signer,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		retention:   retention,
		validator:   validate,
		logger:      logger,
	}
	s.queue = jobs.NewQueue("reports", s.process, queueCfg)
	return s
}

// Start launches the worker pool and the periodic cleanup loop.
func (s *ReportService) Start(ctx context.Context, cleanupInterval time.Duration) {
	s.queue.Start(ctx)
	if cleanupInterval > 0 {
		go s.cleanupLoop(ctx, cleanupInterval)
	}
}

// Stop drains the worker pool.
func (s *ReportService) Stop() {
	s.queue.Stop()
}

// Request persists a queued job and hands it to the worker pool.
func (s *ReportService) Request(ctx context.Context, req RequestReportRequest, actor *models.JWTClaims) (*models.ReportJob, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report payload")
	}
	if actor == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "missing identity")
	}
	if (req.Type == models.ReportTypeGrades || req.Type == models.ReportTypeRoster) && req.CourseID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "course_id is required for this report type")
	}

	job := &models.ReportJob{
		Type: req.Type,
		Params: models.ReportJobParams{
			CourseID: req.CourseID,
			UserID:   actor.UserID,
			Format:   req.Format,
		},
		Status:    models.ReportStatusQueued,
		CreatedBy: actor.UserID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create report job")
	}

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type)}); err != nil {
		if markErr := s.repo.MarkFailed(ctx, job.ID, "queue unavailable"); markErr != nil {
			s.logger.Warn("failed to mark report job failed", zap.Error(markErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue report job")
	}

	return job, nil
}

// Get returns a job's status. Users only see their own jobs; admins see all.
func (s *ReportService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.ReportJob, error) {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report job")
	}
	if actor != nil && actor.Role != models.RoleAdmin && job.CreatedBy != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "report belongs to another user")
	}
	return job, nil
}

// ListMine returns the caller's recent jobs.
func (s *ReportService) ListMine(ctx context.Context, userID string) ([]models.ReportJob, error) {
	jobsList, err := s.repo.ListByUser(ctx, userID, 20)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list report jobs")
	}
	return jobsList, nil
}

func (s *ReportService) process(ctx context.Context, job jobs.Job) error {
	record, err := s.repo.FindByID(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("load report job %s: %w", job.ID, err)
	}
	if record.Status == models.ReportStatusFinished {
		return nil
	}

	if err := s.repo.MarkProcessing(ctx, record.ID); err != nil {
		s.logger.Warn("failed to mark report job processing", zap.Error(err))
	}

	dataset, title, err := s.buildDataset(ctx, record)
	if err != nil {
		if markErr := s.repo.MarkFailed(ctx, record.ID, err.Error()); markErr != nil {
			s.logger.Warn("failed to mark report job failed", zap.Error(markErr))
		}
		return nil
	}

	var payload []byte
	ext := "csv"
	if record.Params.Format == models.ReportFormatPDF {
		payload, err = s.pdf.Render(dataset, title)
		ext = "pdf"
	} else {
		payload, err = s.csv.Render(dataset)
	}
	if err != nil {
		if markErr := s.repo.MarkFailed(ctx, record.ID, err.Error()); markErr != nil {
			s.logger.Warn("failed to mark report job failed", zap.Error(markErr))
		}
		return nil
	}

	relPath, err := s.files.Save(fmt.Sprintf("%s-%s.%s", record.Type, record.ID, ext), payload)
	if err != nil {
		if markErr := s.repo.MarkFailed(ctx, record.ID, "failed to store report file"); markErr != nil {
			s.logger.Warn("failed to mark report job failed", zap.Error(markErr))
		}
		return fmt.Errorf("store report %s: %w", record.ID, err)
	}

	token, _, err := s.signer.Generate(record.ID, relPath)
	if err != nil {
		if markErr := s.repo.MarkFailed(ctx, record.ID, "failed to sign report url"); markErr != nil {
			s.logger.Warn("failed to mark report job failed", zap.Error(markErr))
		}
		return nil
	}

	resultURL := fmt.Sprintf("/api/v1/reports/download/%s", token)
	if err := s.repo.MarkFinished(ctx, record.ID, resultURL); err != nil {
		return fmt.Errorf("finish report %s: %w", record.ID, err)
	}

	s.logger.Info("report generated",
		zap.String("job_id", record.ID),
		zap.String("type", string(record.Type)),
		zap.String("format", string(record.Params.Format)))
	return nil
}

func (s *ReportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, string, error) {
	switch job.Type {
	case models.ReportTypeGrades:
		return s.gradesDataset(ctx, job.Params.CourseID)
	case models.ReportTypeRoster:
		return s.rosterDataset(ctx, job.Params.CourseID)
	case models.ReportTypeTimetable:
		return s.timetableDataset(ctx, job.Params.UserID)
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported report type %q", job.Type)
	}
}

func (s *ReportService) gradesDataset(ctx context.Context, courseID string) (export.Dataset, string, error) {
	grades, err := s.grades.List(ctx, models.GradeFilter{CourseID: courseID})
	if err != nil {
		return export.Dataset{}, "", fmt.Errorf("load grades: %w", err)
	}
	rows := make([]map[string]string, 0, len(grades))
	for _, g := range grades {
		rows = append(rows, map[string]string{
			"Student":   g.StudentName,
			"Component": g.Component,
			"Score":     fmt.Sprintf("%.1f", g.Score),
			"Max":       fmt.Sprintf("%.1f", g.MaxScore),
		})
	}
	return export.Dataset{Headers: []string{"Student", "Component", "Score", "Max"}, Rows: rows}, "Grade Report", nil
}

func (s *ReportService) rosterDataset(ctx context.Context, courseID string) (export.Dataset, string, error) {
	enrollments, _, err := s.enrollments.List(ctx, models.EnrollmentFilter{CourseID: courseID, Status: models.EnrollmentStatusActive, PageSize: 100})
	if err != nil {
		return export.Dataset{}, "", fmt.Errorf("load roster: %w", err)
	}
	rows := make([]map[string]string, 0, len(enrollments))
	for _, e := range enrollments {
		rows = append(rows, map[string]string{
			"Student":     e.StudentName,
			"Course":      e.CourseTitle,
			"Enrolled At": e.EnrolledAt.Format("2006-01-02"),
		})
	}
	return export.Dataset{Headers: []string{"Student", "Course", "Enrolled At"}, Rows: rows}, "Course Roster", nil
}

func (s *ReportService) timetableDataset(ctx context.Context, userID string) (export.Dataset, string, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return export.Dataset{}, "", fmt.Errorf("load user: %w", err)
	}

	var meetings []models.CourseMeetingRow
	switch user.Role {
	case models.RoleInstructor:
		meetings, err = s.meetings.ListMeetingsByInstructor(ctx, userID)
	case models.RoleStudent:
		meetings, err = s.meetings.ListMeetingsByStudent(ctx, userID)
	default:
		meetings = nil
	}
	if err != nil {
		return export.Dataset{}, "", fmt.Errorf("load meetings: %w", err)
	}

	entries := timetable.Materialize(toMeetings(meetings))
	rows := make([]map[string]string, 0, len(entries))
	for _, entry := range entries {
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
	title := fmt.Sprintf("Weekly Timetable - %s", user.FullName)
	return export.Dataset{Headers: []string{"Day", "Start", "End", "Course", "Room"}, Rows: rows}, title, nil
}

func (s *ReportService) cleanupLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.files.CleanupOlderThan(s.retention)
			if err != nil {
				s.logger.Warn("report file cleanup failed", zap.Error(err))
			} else if len(removed) > 0 {
				s.logger.Info("report files removed", zap.Int("count", len(removed)))
			}
			cutoff := time.Now().UTC().Add(-s.retention)
			if n, err := s.repo.DeleteFinishedBefore(ctx, cutoff); err != nil {
				s.logger.Warn("report job cleanup failed", zap.Error(err))
			} else if n > 0 {
				s.logger.Info("report jobs removed", zap.Int64("count", n))
			}
		}
	}
}

// OpenByToken validates a signed download token and returns the finished
// job together with an open handle on its artifact.
func (s *ReportService) OpenByToken(ctx context.Context, token string) (*models.ReportJob, *os.File, error) {
	jobID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid or expired download token")
	}
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "report not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report job")
	}
	if job.Status != models.ReportStatusFinished {
		return nil, nil, appErrors.Clone(appErrors.ErrConflict, "report is not ready")
	}
	file, err := s.files.Open(relPath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "report file no longer exists")
	}
	return job, file, nil
}
