package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/opencampus/ucms-api/internal/service"
	"github.com/opencampus/ucms-api/pkg/response"
)

// TimetableHandler serves the weekly timetable and its exports.
type TimetableHandler struct {
	service *service.TimetableService
}

// NewTimetableHandler creates a new handler.
func NewTimetableHandler(svc *service.TimetableService) *TimetableHandler {
	return &TimetableHandler{service: svc}
}

// Get godoc
// @Summary Weekly timetable
// @Description Return the materialized weekly timetable for the caller
// @Tags Timetable
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /timetable [get]
func (h *TimetableHandler) Get(c *gin.Context) {
	timetable, err := h.service.ForUser(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, timetable, nil)
}

// ExportCSV godoc
// @Summary Export timetable as CSV
// @Tags Timetable
// @Produce text/csv
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Router /timetable/export.csv [get]
func (h *TimetableHandler) ExportCSV(c *gin.Context) {
	data, err := h.service.ExportCSV(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := fmt.Sprintf("timetable-%s.csv", time.Now().UTC().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv", data)
}

// ExportPDF godoc
// @Summary Export timetable as PDF
// @Tags Timetable
// @Produce application/pdf
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Router /timetable/export.pdf [get]
func (h *TimetableHandler) ExportPDF(c *gin.Context) {
	data, err := h.service.ExportPDF(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := fmt.Sprintf("timetable-%s.pdf", time.Now().UTC().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/pdf", data)
}
