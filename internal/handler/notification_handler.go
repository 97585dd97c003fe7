package handler

import (
	"net/http"

	"storefront/internal/notify"

	"github.com/rs/zerolog"
)

// NotificationHandler streams order notifications over websocket.
type NotificationHandler struct {
	hub    *notify.Hub
	logger zerolog.Logger
}

// NewNotificationHandler creates a new notification handler.
func NewNotificationHandler(hub *notify.Hub, logger zerolog.Logger) *NotificationHandler {
	return &NotificationHandler{
		hub:    hub,
		logger: logger.With().Str("handler", "notification").Logger(),
	}
}

// Stream handles GET /ws/notifications. Users receive events for their own orders,
// admins receive every event.
func (h *NotificationHandler) Stream(w http.ResponseWriter, r *http.Request) {
	caller := identity(r)

	// The upgrader has already written the failure response.
	if err := h.hub.Serve(w, r, caller.UserID, caller.IsAdmin()); err != nil {
		h.logger.Debug().Err(err).Str("user_id", caller.UserID.String()).Msg("websocket stream rejected")
	}
}
