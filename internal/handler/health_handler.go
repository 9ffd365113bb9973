package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/kiwicoders/sessions-api/pkg/response"
)

// HealthHandler exposes liveness and readiness probes.
type HealthHandler struct {
	db    *sqlx.DB
	cache *redis.Client
}

// NewHealthHandler constructs a health handler.
func NewHealthHandler(db *sqlx.DB, cache *redis.Client) *HealthHandler {
	return &HealthHandler{db: db, cache: cache}
}

// Health godoc
// @Summary Liveness probe
// @Tags Health
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	response.JSON(c, http.StatusOK, gin.H{"status": "ok"}, nil)
}

// Ready godoc
// @Summary Readiness probe
// @Description Checks database and cache connectivity; a missing cache degrades, it does not fail
// @Tags Health
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /ready [get]
func (h *HealthHandler) Ready(c *gin.Context) {
	checks := gin.H{"database": "ok", "cache": "disabled"}
	status := http.StatusOK

	if err := h.db.PingContext(c.Request.Context()); err != nil {
		checks["database"] = "unreachable"
		status = http.StatusServiceUnavailable
	}
	if h.cache != nil {
		checks["cache"] = "ok"
		if err := h.cache.Ping(c.Request.Context()).Err(); err != nil {
			checks["cache"] = "unreachable"
		}
	}
	c.JSON(status, gin.H{"data": checks})
}
