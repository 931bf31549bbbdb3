package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/erazemk/hramba/internal/cloakroom"
)

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("error encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(target)
}

// workflowError writes the response for an error from the cloakroom
// workflows. Unexpected errors are logged and reported as 500.
func workflowError(w http.ResponseWriter, err error, action string) {
	var (
		verr *cloakroom.ValidationError
		cerr *cloakroom.CapacityExceededError
		nerr *cloakroom.NotFoundError
		terr *cloakroom.InvalidTransitionError
	)

	switch {
	case errors.As(err, &verr):
		jsonResponse(w, http.StatusBadRequest, map[string]any{
			"error":  "invalid item",
			"fields": verr.Fields,
		})
	case errors.As(err, &cerr):
		jsonResponse(w, http.StatusConflict, map[string]any{
			"error":      cerr.Error(),
			"department": cerr.Department,
			"limit":      cerr.Limit,
		})
	case errors.As(err, &nerr):
		jsonResponse(w, http.StatusNotFound, map[string]any{
			"error":   "item not found",
			"qr_code": nerr.QRCode,
		})
	case errors.As(err, &terr):
		jsonResponse(w, http.StatusConflict, map[string]any{
			"error":   "item already returned",
			"qr_code": terr.QRCode,
			"status":  terr.Status,
		})
	default:
		slog.Error("failed to "+action, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to "+action)
	}
}
