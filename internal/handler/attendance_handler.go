package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/opencampus/ucms-api/internal/models"
	"github.com/opencampus/ucms-api/internal/service"
	appErrors "github.com/opencampus/ucms-api/pkg/errors"
	"github.com/opencampus/ucms-api/pkg/response"
)

// AttendanceHandler wires HTTP endpoints to the attendance service.
type AttendanceHandler struct {
	service *service.AttendanceService
}

// NewAttendanceHandler creates a new handler.
func NewAttendanceHandler(svc *service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{service: svc}
}

// List godoc
// @Summary List attendance records
// @Tags Attendance
// @Produce json
// @Param course_id query string false "Filter by course"
// @Param student_id query string false "Filter by student"
// @Param status query string false "Filter by status"
// @Param date_from query string false "Start date (YYYY-MM-DD)"
// @Param date_to query string false "End date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /attendance [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	filter := models.AttendanceFilter{
		CourseID:  c.Query("course_id"),
		StudentID: c.Query("student_id"),
		Page:      queryInt(c, "page", 1),
		PageSize:  queryInt(c, "page_size", 0),
	}
	if status := c.Query("status"); status != "" {
		s := models.AttendanceStatus(status)
		filter.Status = &s
	}
	if from := c.Query("date_from"); from != "" {
		parsed, err := time.Parse("2006-01-02", from)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid date_from"))
			return
		}
		filter.DateFrom = &parsed
	}
	if to := c.Query("date_to"); to != "" {
		parsed, err := time.Parse("2006-01-02", to)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid date_to"))
			return
		}
		filter.DateTo = &parsed
	}

	// Students only ever see their own records.
	if claims := claimsFromContext(c); claims != nil && claims.Role == models.RoleStudent {
		filter.StudentID = claims.UserID
	}

	records, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, records, nil)
}

// Record godoc
// @Summary Record attendance for a session
// @Description Record a whole roster at once; repeats for the same date overwrite
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body service.RecordAttendanceRequest true "Attendance payload"
// @Success 204 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /attendance [post]
func (h *AttendanceHandler) Record(c *gin.Context) {
	var req service.RecordAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid attendance payload"))
		return
	}

	if err := h.service.Record(c.Request.Context(), req, claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Rates godoc
// @Summary Attendance rates per student for a course
// @Tags Attendance
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /courses/{id}/attendance/rates [get]
func (h *AttendanceHandler) Rates(c *gin.Context) {
	rates, err := h.service.Rates(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rates, nil)
}
