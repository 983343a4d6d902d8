package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/opencampus/ucms-api/internal/models"
	"github.com/opencampus/ucms-api/internal/service"
	appErrors "github.com/opencampus/ucms-api/pkg/errors"
	"github.com/opencampus/ucms-api/pkg/response"
)

// AnnouncementHandler wires HTTP endpoints to the announcement service.
type AnnouncementHandler struct {
	service *service.AnnouncementService
}

// NewAnnouncementHandler creates a new handler.
func NewAnnouncementHandler(svc *service.AnnouncementService) *AnnouncementHandler {
	return &AnnouncementHandler{service: svc}
}

// List godoc
// @Summary List announcements
// @Tags Announcements
// @Produce json
// @Param course_id query string false "Filter by course"
// @Param campus query bool false "Only campus-wide notices"
// @Success 200 {object} response.Envelope
// @Router /announcements [get]
func (h *AnnouncementHandler) List(c *gin.Context) {
	filter := models.AnnouncementFilter{
		CourseID:  c.Query("course_id"),
		Campus:    c.Query("campus") == "true",
		Page:      queryInt(c, "page", 1),
		PageSize:  queryInt(c, "page_size", 20),
		SortOrder: c.Query("sort_order"),
	}

	announcements, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, announcements, nil)
}

// Feed godoc
// @Summary Announcement feed for the current student
// @Description Campus-wide notices plus those for actively enrolled courses
// @Tags Announcements
// @Produce json
// @Param limit query int false "Max entries (default 20, cap 50)"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /announcements/feed [get]
func (h *AnnouncementHandler) Feed(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	feed, err := h.service.Feed(c.Request.Context(), claims.UserID, queryInt(c, "limit", 0))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, feed, nil)
}

// Create godoc
// @Summary Post an announcement
// @Description Course-scoped for instructors; campus-wide requires admin
// @Tags Announcements
// @Accept json
// @Produce json
// @Param payload body service.CreateAnnouncementRequest true "Announcement payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /announcements [post]
func (h *AnnouncementHandler) Create(c *gin.Context) {
	var req service.CreateAnnouncementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid announcement payload"))
		return
	}

	announcement, err := h.service.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, announcement)
}

// Update godoc
// @Summary Edit an announcement
// @Tags Announcements
// @Accept json
// @Produce json
// @Param id path string true "Announcement ID"
// @Param payload body service.UpdateAnnouncementRequest true "Announcement payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /announcements/{id} [put]
func (h *AnnouncementHandler) Update(c *gin.Context) {
	var req service.UpdateAnnouncementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid announcement payload"))
		return
	}

	announcement, err := h.service.Update(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, announcement, nil)
}

// Delete godoc
// @Summary Delete an announcement
// @Tags Announcements
// @Param id path string true "Announcement ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /announcements/{id} [delete]
func (h *AnnouncementHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
