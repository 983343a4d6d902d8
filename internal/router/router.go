package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/opencampus/ucms-api/internal/handler"
	"github.com/opencampus/ucms-api/internal/middleware"
	"github.com/opencampus/ucms-api/internal/models"
	"github.com/opencampus/ucms-api/internal/repository"
	"github.com/opencampus/ucms-api/internal/service"
	"github.com/opencampus/ucms-api/pkg/config"
	"github.com/opencampus/ucms-api/pkg/logger"
	corsmiddleware "github.com/opencampus/ucms-api/pkg/middleware/cors"
	reqidmiddleware "github.com/opencampus/ucms-api/pkg/middleware/requestid"
)

// Dependencies collects everything the HTTP layer needs.
type Dependencies struct {
	Config   *config.Config
	Logger   *zap.Logger
	UserRepo *repository.UserRepository

	Auth          *service.AuthService
	Users         *service.UserService
	Courses       *service.CourseService
	Enrollments   *service.EnrollmentService
	Timetable     *service.TimetableService
	Assignments   *service.AssignmentService
	Grades        *service.GradeService
	Attendance    *service.AttendanceService
	Exams         *service.ExamService
	Materials     *service.MaterialService
	Announcements *service.AnnouncementService
	Dashboard     *service.DashboardService
	Reports       *service.ReportService
	Metrics       *service.MetricsService
}

// New assembles the gin engine with all routes and middleware.
func New(deps Dependencies) *gin.Engine {
	cfg := deps.Config
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.Metrics))
	r.Use(middleware.WithResponseMeta())

	metricsHandler := handler.NewMetricsHandler(deps.Metrics)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(deps.Auth)
	userHandler := handler.NewUserHandler(deps.Users)
	courseHandler := handler.NewCourseHandler(deps.Courses)
	enrollmentHandler := handler.NewEnrollmentHandler(deps.Enrollments)
	timetableHandler := handler.NewTimetableHandler(deps.Timetable)
	assignmentHandler := handler.NewAssignmentHandler(deps.Assignments)
	gradeHandler := handler.NewGradeHandler(deps.Grades)
	attendanceHandler := handler.NewAttendanceHandler(deps.Attendance)
	examHandler := handler.NewExamHandler(deps.Exams)
	materialHandler := handler.NewMaterialHandler(deps.Materials)
	announcementHandler := handler.NewAnnouncementHandler(deps.Announcements)
	dashboardHandler := handler.NewDashboardHandler(deps.Dashboard)
	reportHandler := handler.NewReportHandler(deps.Reports)

	jwt := middleware.JWT(deps.Auth)
	optionalJWT := middleware.OptionalJWT(deps.Auth)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleInstructor)
	studentOnly := middleware.RequireRoles(models.RoleStudent)

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", jwt, authHandler.Logout)
		auth.POST("/change-password", jwt, authHandler.ChangePassword)
		auth.GET("/me", jwt, authHandler.Me)
	}

	users := api.Group("/users", jwt)
	{
		users.GET("", adminOnly, userHandler.List)
		users.POST("", adminOnly, userHandler.Create)
		users.GET("/:id", middleware.RBAC(string(models.RoleAdmin), middleware.AllowSelf), userHandler.Get)
		users.PUT("/:id", adminOnly, userHandler.Update)
		users.DELETE("/:id", adminOnly, userHandler.Deactivate)
	}

	courses := api.Group("/courses", jwt)
	{
		courses.GET("", courseHandler.List)
		courses.GET("/:id", courseHandler.Get)
		courses.POST("", adminOnly, courseHandler.Create)
		courses.PUT("/:id", staff, courseHandler.Update)
		courses.DELETE("/:id", adminOnly, courseHandler.Delete)

		courses.GET("/:id/assignments", assignmentHandler.ListByCourse)
		courses.GET("/:id/exams", examHandler.ListByCourse)
		courses.GET("/:id/materials", materialHandler.ListByCourse)
		courses.GET("/:id/grades/summary", staff, gradeHandler.Summary)
		courses.GET("/:id/grades/export.csv", staff, gradeHandler.ExportCSV)
		courses.GET("/:id/attendance/rates", staff, attendanceHandler.Rates)
	}

	enrollments := api.Group("/enrollments", jwt)
	{
		enrollments.GET("", enrollmentHandler.List)
		enrollments.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleStudent), enrollmentHandler.Enroll)
		enrollments.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleStudent), enrollmentHandler.Drop)
	}

	api.GET("/timetable", jwt, timetableHandler.Get)
	api.GET("/timetable/export.csv", jwt, timetableHandler.ExportCSV)
	api.GET("/timetable/export.pdf", jwt, timetableHandler.ExportPDF)

	assignments := api.Group("/assignments", jwt)
	{
		assignments.GET("/:id", assignmentHandler.Get)
		assignments.POST("", staff, assignmentHandler.Create)
		assignments.PUT("/:id", staff, assignmentHandler.Update)
		assignments.DELETE("/:id", staff, assignmentHandler.Delete)
		assignments.POST("/:id/submissions", studentOnly, assignmentHandler.Submit)
		assignments.GET("/:id/submissions", staff, assignmentHandler.ListSubmissions)
		assignments.GET("/:id/submissions/mine", studentOnly, assignmentHandler.MySubmission)
	}
	api.POST("/submissions/:id/grade", jwt, staff, assignmentHandler.GradeSubmission)

	grades := api.Group("/grades", jwt)
	{
		grades.GET("", gradeHandler.List)
		grades.PUT("", staff, middleware.Audit(deps.UserRepo, "GRADE_UPSERT", "grades"), gradeHandler.Upsert)
		grades.DELETE("/:id", staff, gradeHandler.Delete)
	}

	attendance := api.Group("/attendance", jwt)
	{
		attendance.GET("", attendanceHandler.List)
		attendance.POST("", staff, middleware.Audit(deps.UserRepo, "ATTENDANCE_RECORD", "attendance"), attendanceHandler.Record)
	}

	exams := api.Group("/exams", jwt)
	{
		exams.GET("/:id", examHandler.Get)
		exams.POST("", staff, examHandler.Create)
		exams.PUT("/:id", staff, examHandler.Update)
		exams.DELETE("/:id", staff, examHandler.Delete)
		exams.POST("/:id/results", staff, examHandler.RecordResult)
		exams.GET("/:id/results", staff, examHandler.ListResults)
	}
	api.GET("/exam-results/mine", jwt, studentOnly, examHandler.MyResults)

	materials := api.Group("/materials")
	{
		materials.POST("", jwt, staff, materialHandler.Upload)
		materials.DELETE("/:id", jwt, staff, materialHandler.Delete)
		// Authorization travels in the signed token, not the session.
		materials.GET("/download/:token", optionalJWT, materialHandler.Download)
	}

	announcements := api.Group("/announcements", jwt)
	{
		announcements.GET("", announcementHandler.List)
		announcements.GET("/feed", studentOnly, announcementHandler.Feed)
		announcements.POST("", staff, announcementHandler.Create)
		announcements.PUT("/:id", staff, announcementHandler.Update)
		announcements.DELETE("/:id", staff, announcementHandler.Delete)
	}

	if cfg.Dashboard.Enabled {
		api.GET("/dashboard", jwt, dashboardHandler.Me)
	}

	if cfg.Reports.Enabled {
		reports := api.Group("/reports")
		{
			reports.POST("", jwt, reportHandler.Request)
			reports.GET("", jwt, reportHandler.ListMine)
			reports.GET("/jobs/:id", jwt, reportHandler.Get)
			reports.GET("/download/:token", optionalJWT, reportHandler.Download)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "NOT_FOUND", "message": "route not found"}})
	})

	return r
}
