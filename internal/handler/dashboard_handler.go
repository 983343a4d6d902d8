package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/opencampus/ucms-api/internal/middleware"
	"github.com/opencampus/ucms-api/internal/models"
	"github.com/opencampus/ucms-api/internal/service"
	appErrors "github.com/opencampus/ucms-api/pkg/errors"
	"github.com/opencampus/ucms-api/pkg/response"
)

// DashboardHandler serves role-specific landing views.
type DashboardHandler struct {
	service *service.DashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(svc *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{service: svc}
}

// Me godoc
// @Summary Dashboard for the current user
// @Description Return the dashboard matching the caller's role
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Me(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	start := time.Now()
	var (
		payload  interface{}
		cacheHit bool
		err      error
	)
	switch claims.Role {
	case models.RoleStudent:
		payload, cacheHit, err = h.service.Student(c.Request.Context(), claims.UserID)
	case models.RoleInstructor:
		payload, cacheHit, err = h.service.Instructor(c.Request.Context(), claims.UserID)
	case models.RoleAdmin:
		payload, cacheHit, err = h.service.Admin(c.Request.Context())
	default:
		err = appErrors.Clone(appErrors.ErrForbidden, "unsupported role")
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	middleware.SetCacheHit(c, cacheHit)
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = map[string]interface{}{}
	}
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.JSON(c, http.StatusOK, payload, nil, meta)
}
