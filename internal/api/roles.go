package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/hramba/internal/auth"
)

// RolesHandler manages shared role passwords.
type RolesHandler struct {
	DB *sqlx.DB
}

type setPasswordRequest struct {
	Password string `json:"password"`
}

// SetPassword handles PUT /api/roles/{role}/password.
func (h *RolesHandler) SetPassword(w http.ResponseWriter, r *http.Request) {
	var req setPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	role := r.PathValue("role")
	err := auth.SetRolePassword(r.Context(), h.DB, role, req.Password)
	switch {
	case errors.Is(err, auth.ErrUnknownRole):
		jsonError(w, http.StatusNotFound, "unknown role")
		return
	case errors.Is(err, auth.ErrNoPassword), errors.Is(err, auth.ErrPasswordTooShort):
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		slog.Error("failed to set role password", "role", role, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to set password")
		return
	}

	slog.Info("role password reset", "user", actor(r), "role", role)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "password updated"})
}
