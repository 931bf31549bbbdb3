package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/hramba/internal/notify"
)

// NotificationsHandler sends and lists client SMS messages.
type NotificationsHandler struct {
	Notifier *notify.Service
}

// Create handles POST /api/notifications.
func (h *NotificationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req notify.Request
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	n, err := h.Notifier.Send(r.Context(), req, actor(r))
	switch {
	case errors.Is(err, notify.ErrInvalidPhone),
		errors.Is(err, notify.ErrEmptyMessage),
		errors.Is(err, notify.ErrMessageTooLong):
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, notify.ErrUnknownItem):
		jsonError(w, http.StatusNotFound, "item not found")
		return
	case err != nil && n != nil:
		slog.Error("failed to deliver notification", "id", n.ID, "error", err)
		jsonResponse(w, http.StatusBadGateway, map[string]any{
			"error":        "notification recorded but not delivered",
			"notification": n,
		})
		return
	case err != nil:
		slog.Error("failed to send notification", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to send notification")
		return
	}

	slog.Info("notification sent", "user", actor(r), "id", n.ID)
	jsonResponse(w, http.StatusCreated, n)
}

// List handles GET /api/notifications.
func (h *NotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			jsonError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	ns, err := h.Notifier.List(r.Context(), limit)
	if err != nil {
		slog.Error("failed to list notifications", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list notifications")
		return
	}
	jsonResponse(w, http.StatusOK, ns)
}
