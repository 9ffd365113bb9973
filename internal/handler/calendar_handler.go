package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kiwicoders/sessions-api/internal/service"
	appErrors "github.com/kiwicoders/sessions-api/pkg/errors"
	"github.com/kiwicoders/sessions-api/pkg/response"
)

// CalendarHandler exposes the admin calendar feed.
type CalendarHandler struct {
	service *service.CalendarService
}

// NewCalendarHandler constructs a calendar handler.
func NewCalendarHandler(svc *service.CalendarService) *CalendarHandler {
	return &CalendarHandler{service: svc}
}

// Range godoc
// @Summary Calendar feed
// @Description Occurrences of every session within the date range, sorted chronologically
// @Tags Calendar
// @Produce json
// @Param from query string true "Range start (YYYY-MM-DD)"
// @Param to query string true "Range end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /calendar [get]
func (h *CalendarHandler) Range(c *gin.Context) {
	from, err := time.Parse("2006-01-02", c.Query("from"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from must use YYYY-MM-DD format"))
		return
	}
	to, err := time.Parse("2006-01-02", c.Query("to"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "to must use YYYY-MM-DD format"))
		return
	}
	entries, err := h.service.Range(c.Request.Context(), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}
