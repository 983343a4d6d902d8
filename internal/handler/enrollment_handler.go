package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/opencampus/ucms-api/internal/models"
	"github.com/opencampus/ucms-api/internal/service"
	appErrors "github.com/opencampus/ucms-api/pkg/errors"
	"github.com/opencampus/ucms-api/pkg/response"
)

// EnrollmentHandler wires HTTP endpoints to the enrollment service.
type EnrollmentHandler struct {
	service *service.EnrollmentService
}

// NewEnrollmentHandler creates a new handler.
func NewEnrollmentHandler(svc *service.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{service: svc}
}

// List godoc
// @Summary List enrollments
// @Tags Enrollments
// @Produce json
// @Param student_id query string false "Filter by student"
// @Param course_id query string false "Filter by course"
// @Param status query string false "Filter by status"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	filter := models.EnrollmentFilter{
		StudentID: c.Query("student_id"),
		CourseID:  c.Query("course_id"),
		Status:    models.EnrollmentStatus(c.Query("status")),
		Page:      queryInt(c, "page", 1),
		PageSize:  queryInt(c, "page_size", 20),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}

	// Students only ever see their own enrollments.
	if claims := claimsFromContext(c); claims != nil && claims.Role == models.RoleStudent {
		filter.StudentID = claims.UserID
	}

	enrollments, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, enrollments, pagination)
}

// Enroll godoc
// @Summary Enroll in a course
// @Description Register a student into a course, enforcing capacity
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body service.EnrollRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	var req service.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid enrollment payload"))
		return
	}

	// A student enrolls themselves regardless of the payload.
	if claims := claimsFromContext(c); claims != nil && claims.Role == models.RoleStudent {
		req.StudentID = claims.UserID
	}

	enrollment, err := h.service.Enroll(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, enrollment)
}

// Drop godoc
// @Summary Drop an enrollment
// @Description Mark an enrollment as dropped
// @Tags Enrollments
// @Param id path string true "Enrollment ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments/{id} [delete]
func (h *EnrollmentHandler) Drop(c *gin.Context) {
	if err := h.service.Drop(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
