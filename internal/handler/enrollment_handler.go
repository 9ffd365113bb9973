package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kiwicoders/sessions-api/internal/models"
	"github.com/kiwicoders/sessions-api/internal/service"
	appErrors "github.com/kiwicoders/sessions-api/pkg/errors"
	"github.com/kiwicoders/sessions-api/pkg/response"
)

// EnrollmentHandler exposes signup and enrollment lifecycle endpoints.
type EnrollmentHandler struct {
	service *service.EnrollmentService
}

// NewEnrollmentHandler constructs an enrollment handler.
func NewEnrollmentHandler(svc *service.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{service: svc}
}

// Signup godoc
// @Summary Public signup
// @Description Registers a participant for a session; new enrollments start WAITLISTED
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body service.SignupRequest true "Signup payload"
// @Success 201 {object} response.Envelope
// @Router /signups [post]
func (h *EnrollmentHandler) Signup(c *gin.Context) {
	var req service.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	enrollment, err := h.service.Signup(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// List godoc
// @Summary List session enrollments
// @Tags Enrollments
// @Produce json
// @Param id path string true "Session ID"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	filter := models.EnrollmentFilter{SessionID: c.Param("id")}
	if status := c.Query("status"); status != "" {
		filter.Status = models.EnrollmentStatus(status)
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	enrollments, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, pagination)
}

// Summary godoc
// @Summary Enrollment counts by status
// @Tags Enrollments
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/enrollments/summary [get]
func (h *EnrollmentHandler) Summary(c *gin.Context) {
	summary, err := h.service.Summary(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// BulkStatus godoc
// @Summary Bulk status transition
// @Description Moves a batch of enrollments to one status; admissions are capacity-checked atomically
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body service.BulkTransitionRequest true "Transition payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope "Capacity exceeded; details carry available places"
// @Router /sessions/{id}/enrollments/bulk-status [post]
func (h *EnrollmentHandler) BulkStatus(c *gin.Context) {
	var req service.BulkTransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.service.BulkTransition(c.Request.Context(), c.Param("id"), req); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"updated": len(req.EnrollmentIDs)}, nil)
}
