package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports liveness of the API and its database.
type HealthHandler struct {
	db     Pinger
	logger zerolog.Logger
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(db Pinger, logger zerolog.Logger) *HealthHandler {
	return &HealthHandler{
		db:     db,
		logger: logger.With().Str("handler", "health").Logger(),
	}
}

// Check handles GET /health.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		h.logger.Warn().Err(err).Msg("database ping failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "database": "unreachable"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
