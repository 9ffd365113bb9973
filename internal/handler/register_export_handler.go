package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kiwicoders/sessions-api/internal/models"
	"github.com/kiwicoders/sessions-api/internal/service"
	appErrors "github.com/kiwicoders/sessions-api/pkg/errors"
	"github.com/kiwicoders/sessions-api/pkg/response"
)

// RegisterExportHandler exposes asynchronous register export endpoints.
type RegisterExportHandler struct {
	service *service.RegisterExportService
}

// NewRegisterExportHandler constructs a register export handler.
func NewRegisterExportHandler(svc *service.RegisterExportService) *RegisterExportHandler {
	return &RegisterExportHandler{service: svc}
}

// Create godoc
// @Summary Queue a register export
// @Tags Registers
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body service.RegisterExportRequest true "Export payload"
// @Success 202 {object} response.Envelope
// @Router /sessions/{id}/registers [post]
func (h *RegisterExportHandler) Create(c *gin.Context) {
	var req service.RegisterExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	requestedBy := ""
	if claims := CurrentUser(c); claims != nil {
		requestedBy = claims.UserID
	}
	job, err := h.service.CreateJob(c.Request.Context(), c.Param("id"), req, requestedBy)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, job, nil)
}

// List godoc
// @Summary Recent register exports for a session
// @Tags Registers
// @Produce json
// @Param id path string true "Session ID"
// @Param limit query int false "Max jobs to return"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/registers [get]
func (h *RegisterExportHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	jobs, err := h.service.List(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	if jobs == nil {
		jobs = []models.RegisterJob{}
	}
	response.JSON(c, http.StatusOK, jobs, nil)
}

// Status godoc
// @Summary Poll a register export
// @Tags Registers
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /registers/{id} [get]
func (h *RegisterExportHandler) Status(c *gin.Context) {
	status, err := h.service.GetStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// Download godoc
// @Summary Download a finished export
// @Description Streams the exported file; the token comes from the job status endpoint
// @Tags Registers
// @Produce octet-stream
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Router /registers/download [get]
func (h *RegisterExportHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	file, job, err := h.service.ResolveDownload(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat export file"))
		return
	}

	contentType := "text/csv"
	if job.Format == models.RegisterFormatPDF {
		contentType = "application/pdf"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", info.Name()))
	c.DataFromReader(http.StatusOK, info.Size(), contentType, file, nil)
}
