package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/go-playground/validator/v10"

	_ "github.com/opencampus/ucms-api/api/swagger"
	"github.com/opencampus/ucms-api/internal/repository"
	"github.com/opencampus/ucms-api/internal/router"
	"github.com/opencampus/ucms-api/internal/service"
	"github.com/opencampus/ucms-api/migrations"
	"github.com/opencampus/ucms-api/pkg/cache"
	"github.com/opencampus/ucms-api/pkg/config"
	"github.com/opencampus/ucms-api/pkg/database"
	"github.com/opencampus/ucms-api/pkg/jobs"
	"github.com/opencampus/ucms-api/pkg/logger"
	"github.com/opencampus/ucms-api/pkg/storage"
)

// @title UCMS API
// @version 1.0.0
// @description University course management service
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close()

	if err := migrations.Run(ctx, db, logr); err != nil {
		logr.Sugar().Fatalw("migrations failed", "error", err)
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("redis connection failed", "error", err)
	}
	defer redisClient.Close()

	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	materialStore, err := storage.NewLocalStorage(cfg.Materials.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("material storage init failed", "error", err)
	}
	reportStore, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("report storage init failed", "error", err)
	}
	materialSigner := storage.NewSignedURLSigner(cfg.Materials.SignedURLSecret, cfg.Materials.SignedURLTTL)
	reportSigner := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	examRepo := repository.NewExamRepository(db)
	materialRepo := repository.NewMaterialRepository(db)
	announcementRepo := repository.NewAnnouncementRepository(db)
	reportRepo := repository.NewReportRepository(db)

	validate := validator.New()

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	courseSvc := service.NewCourseService(courseRepo, userRepo, cacheRepo, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, courseRepo, cacheRepo, validate, logr)
	timetableSvc := service.NewTimetableService(courseRepo, cacheRepo, cfg.Timetable.CacheTTL, logr)
	assignmentSvc := service.NewAssignmentService(assignmentRepo, courseRepo, enrollmentRepo, materialStore, validate, logr)
	gradeSvc := service.NewGradeService(gradeRepo, courseRepo, validate, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, courseRepo, validate, logr)
	examSvc := service.NewExamService(examRepo, courseRepo, validate, logr)
	materialSvc := service.NewMaterialService(materialRepo, courseRepo, materialStore, materialSigner, cfg.Materials.MaxFileSizeBytes, cfg.Materials.AllowedMIMEs, validate, logr)
	announcementSvc := service.NewAnnouncementService(announcementRepo, courseRepo, validate, logr)
	dashboardSvc := service.NewDashboardService(userRepo, courseRepo, enrollmentRepo, assignmentRepo, examRepo, gradeRepo, announcementRepo, cacheRepo, cfg.Dashboard.CacheTTL, logr)
	reportSvc := service.NewReportService(reportRepo, gradeRepo, enrollmentRepo, userRepo, courseRepo, reportStore, reportSigner, jobs.QueueConfig{
		Workers:    cfg.Reports.WorkerConcurrency,
		MaxRetries: cfg.Reports.WorkerRetries,
		Logger:     logr,
	}, cfg.Reports.SignedURLTTL, validate, logr)
	metricsSvc := service.NewMetricsService()

	if cfg.Reports.Enabled {
		reportSvc.Start(ctx, cfg.Reports.CleanupInterval)
		defer reportSvc.Stop()
	}

	r := router.New(router.Dependencies{
		Config:   cfg,
		Logger:   logr,
		UserRepo: userRepo,

		Auth:          authSvc,
		Users:         userSvc,
		Courses:       courseSvc,
		Enrollments:   enrollmentSvc,
		Timetable:     timetableSvc,
		Assignments:   assignmentSvc,
		Grades:        gradeSvc,
		Attendance:    attendanceSvc,
		Exams:         examSvc,
		Materials:     materialSvc,
		Announcements: announcementSvc,
		Dashboard:     dashboardSvc,
		Reports:       reportSvc,
		Metrics:       metricsSvc,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
