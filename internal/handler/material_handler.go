package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/opencampus/ucms-api/internal/models"
	"github.com/opencampus/ucms-api/internal/service"
	appErrors "github.com/opencampus/ucms-api/pkg/errors"
	"github.com/opencampus/ucms-api/pkg/response"
)

// MaterialHandler wires HTTP endpoints to the material service.
type MaterialHandler struct {
	service *service.MaterialService
}

// NewMaterialHandler creates a new handler.
func NewMaterialHandler(svc *service.MaterialService) *MaterialHandler {
	return &MaterialHandler{service: svc}
}

// ListByCourse godoc
// @Summary List materials for a course
// @Description File materials carry a signed, expiring download URL
// @Tags Materials
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/materials [get]
func (h *MaterialHandler) ListByCourse(c *gin.Context) {
	materials, err := h.service.ListByCourse(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, materials, nil)
}

// Upload godoc
// @Summary Upload course material
// @Description Upload a file or register an external link
// @Tags Materials
// @Accept multipart/form-data
// @Produce json
// @Param course_id formData string true "Course ID"
// @Param title formData string true "Title"
// @Param kind formData string true "DOCUMENT, VIDEO or LINK"
// @Param external_url formData string false "External URL for LINK materials"
// @Param file formData file false "File for DOCUMENT or VIDEO materials"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Failure 415 {object} response.Envelope
// @Router /materials [post]
func (h *MaterialHandler) Upload(c *gin.Context) {
	req := service.UploadMaterialRequest{
		CourseID: c.PostForm("course_id"),
		Title:    c.PostForm("title"),
		Kind:     models.MaterialKind(c.PostForm("kind")),
	}
	if external := c.PostForm("external_url"); external != "" {
		req.ExternalURL = &external
	}

	if fileHeader, err := c.FormFile("file"); err == nil && fileHeader != nil {
		file, err := fileHeader.Open()
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read uploaded file"))
			return
		}
		defer file.Close()
		name := fileHeader.Filename
		contentType := fileHeader.Header.Get("Content-Type")
		req.FileName = &name
		req.ContentType = &contentType
		req.SizeBytes = fileHeader.Size
		req.File = file
	}

	material, err := h.service.Upload(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, material)
}

// Delete godoc
// @Summary Delete material
// @Tags Materials
// @Param id path string true "Material ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /materials/{id} [delete]
func (h *MaterialHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Download godoc
// @Summary Download material by signed token
// @Description Serve the file addressed by a signed URL token
// @Tags Materials
// @Produce application/octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /materials/download/{token} [get]
func (h *MaterialHandler) Download(c *gin.Context) {
	material, file, err := h.service.OpenByToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	contentType := "application/octet-stream"
	if material.ContentType != nil {
		contentType = *material.ContentType
	}
	filename := material.Title
	if material.FileName != nil {
		filename = *material.FileName
	}
	size := int64(-1)
	if material.SizeBytes != nil {
		size = *material.SizeBytes
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.DataFromReader(http.StatusOK, size, contentType, file, nil)
}
