package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/clipshelf/server/internal/logger"
	"github.com/clipshelf/server/internal/response"
)

const healthTimeout = 2 * time.Second

type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthHandler struct {
	db Pinger
}

func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	err := h.db.PingContext(ctx)
	if err != nil {
		logger.FromContext(r.Context()).Warn("health check failed", "error", err)
		response.Error(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	response.JSON(w, http.StatusOK, map[string]string{"database": "ok"})
}
