package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kiwicoders/sessions-api/internal/service"
	appErrors "github.com/kiwicoders/sessions-api/pkg/errors"
	"github.com/kiwicoders/sessions-api/pkg/response"
)

// AttendanceHandler exposes the attendance ledger endpoints.
type AttendanceHandler struct {
	service *service.AttendanceService
}

// NewAttendanceHandler constructs an attendance handler.
func NewAttendanceHandler(svc *service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{service: svc}
}

// Sheet godoc
// @Summary Attendance sheet
// @Description Grid of admitted enrollments against occurrence dates, grouped by term
// @Tags Attendance
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/attendance [get]
func (h *AttendanceHandler) Sheet(c *gin.Context) {
	sheet, err := h.service.Sheet(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sheet, nil)
}

// BulkSave godoc
// @Summary Save attendance marks
// @Description Persists marks for eligible enrollment/date pairs and reports the rest as skipped
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body service.BulkSaveRequest true "Attendance payload"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/attendance/bulk [post]
func (h *AttendanceHandler) BulkSave(c *gin.Context) {
	var req service.BulkSaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.service.BulkSave(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Stats godoc
// @Summary Attendance stats for an enrollment
// @Description Present count over eligible occurrence dates; unrecorded dates count as absent
// @Tags Attendance
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/attendance/stats [get]
func (h *AttendanceHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// EligibleDates godoc
// @Summary Eligible occurrence dates for an enrollment
// @Tags Attendance
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/attendance/eligible-dates [get]
func (h *AttendanceHandler) EligibleDates(c *gin.Context) {
	dates, err := h.service.EligibleDates(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dates, nil)
}
