package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/opencampus/ucms-api/internal/models"
	"github.com/opencampus/ucms-api/internal/service"
	appErrors "github.com/opencampus/ucms-api/pkg/errors"
	"github.com/opencampus/ucms-api/pkg/response"
)

// GradeHandler wires HTTP endpoints to the grade service.
type GradeHandler struct {
	service *service.GradeService
}

// NewGradeHandler creates a new handler.
func NewGradeHandler(svc *service.GradeService) *GradeHandler {
	return &GradeHandler{service: svc}
}

// List godoc
// @Summary List grades
// @Tags Grades
// @Produce json
// @Param course_id query string false "Filter by course"
// @Param student_id query string false "Filter by student"
// @Param component query string false "Filter by component"
// @Success 200 {object} response.Envelope
// @Router /grades [get]
func (h *GradeHandler) List(c *gin.Context) {
	filter := models.GradeFilter{
		CourseID:  c.Query("course_id"),
		StudentID: c.Query("student_id"),
		Component: c.Query("component"),
		Page:      queryInt(c, "page", 1),
		PageSize:  queryInt(c, "page_size", 0),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}

	// Students only ever see their own grades.
	if claims := claimsFromContext(c); claims != nil && claims.Role == models.RoleStudent {
		filter.StudentID = claims.UserID
	}

	grades, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, grades, nil)
}

// Upsert godoc
// @Summary Record or update a grade
// @Description One grade per (course, student, component); repeats overwrite
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body service.UpsertGradeRequest true "Grade payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /grades [put]
func (h *GradeHandler) Upsert(c *gin.Context) {
	var req service.UpsertGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid grade payload"))
		return
	}

	grade, err := h.service.Upsert(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, grade, nil)
}

// Delete godoc
// @Summary Delete a grade
// @Tags Grades
// @Param id path string true "Grade ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /grades/{id} [delete]
func (h *GradeHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Summary godoc
// @Summary Per-student grade summary for a course
// @Tags Grades
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /courses/{id}/grades/summary [get]
func (h *GradeHandler) Summary(c *gin.Context) {
	summary, err := h.service.SummarizeCourse(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// ExportCSV godoc
// @Summary Export course grades as CSV
// @Tags Grades
// @Produce text/csv
// @Param id path string true "Course ID"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /courses/{id}/grades/export.csv [get]
func (h *GradeHandler) ExportCSV(c *gin.Context) {
	data, err := h.service.ExportCourseCSV(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := fmt.Sprintf("grades-%s.csv", time.Now().UTC().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv", data)
}
