package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/hramba/internal/model"
	"github.com/erazemk/hramba/internal/store"
)

// UsersHandler handles the user registry (manage-users only).
type UsersHandler struct {
	DB *sqlx.DB
}

type createUserRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// List handles GET /api/users.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := store.ListUsers(r.Context(), h.DB)
	if err != nil {
		slog.Error("failed to list users", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	if users == nil {
		users = []model.User{}
	}
	jsonResponse(w, http.StatusOK, users)
}

// Create handles POST /api/users.
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.Role == "" {
		jsonError(w, http.StatusBadRequest, "name and role required")
		return
	}
	if !model.ValidRole(req.Role) {
		jsonError(w, http.StatusBadRequest, "invalid role")
		return
	}

	user, err := store.CreateUser(r.Context(), h.DB, req.Name, req.Phone, req.Email, req.Role, actor(r))
	if err != nil {
		slog.Error("failed to create user", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	slog.Info("user created", "user", actor(r), "new_user", req.Name, "role", req.Role)
	jsonResponse(w, http.StatusCreated, user)
}

// Delete handles DELETE /api/users/{id}. Users are deactivated, not removed.
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	ok, err := store.DeactivateUser(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to deactivate user", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to deactivate user")
		return
	}
	if !ok {
		jsonError(w, http.StatusNotFound, "user not found")
		return
	}

	slog.Info("user deactivated", "user", actor(r), "target_user_id", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "user deactivated"})
}
