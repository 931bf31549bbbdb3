package api

import (
	"errors"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/hramba/internal/auth"
	"github.com/erazemk/hramba/internal/model"
	"github.com/erazemk/hramba/internal/store"
)

// LoginObserver is told about refused logins.
type LoginObserver interface {
	LoginFailed(role, reason string)
}

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	DB          *sqlx.DB
	JWTSecret   string
	TokenExpiry time.Duration
	Gate        *auth.Gate
	Observer    LoginObserver
}

type loginRequest struct {
	Role     string `json:"role"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token        string             `json:"token,omitempty"`
	Name         string             `json:"name"`
	Role         string             `json:"role"`
	Capabilities []model.Capability `json:"capabilities"`
	ExpiresAt    time.Time          `json:"expires_at"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.Gate.Login(r.Context(), remoteHost(r), req.Role, req.Name, req.Password)
	if err != nil {
		h.loginError(w, r, req, err)
		return
	}

	token, err := auth.GenerateToken(h.JWTSecret, req.Name, req.Role, h.TokenExpiry)
	if err != nil {
		slog.Error("failed to generate token", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}
	claims, err := auth.ValidateToken(h.JWTSecret, token)
	if err != nil {
		slog.Error("failed to read issued token", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	slog.Info("user logged in", "user", req.Name, "role", req.Role)
	resp := h.session(claims)
	resp.Token = token
	jsonResponse(w, http.StatusOK, resp)
}

func (h *AuthHandler) loginError(w http.ResponseWriter, r *http.Request, req loginRequest, err error) {
	var (
		perr *auth.InvalidPasswordError
		lerr *auth.LockedOutError
	)

	switch {
	case errors.Is(err, auth.ErrUnknownRole):
		h.failed(req.Role, "role")
		jsonError(w, http.StatusBadRequest, "unknown role")
	case errors.Is(err, auth.ErrNameRequired):
		h.failed(req.Role, "name")
		jsonError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &perr):
		h.failed(req.Role, "password")
		slog.Warn("login failed", "user", req.Name, "role", req.Role, "remote", r.RemoteAddr)
		jsonResponse(w, http.StatusUnauthorized, map[string]any{
			"error":         "invalid credentials",
			"attempts_left": perr.AttemptsLeft,
		})
	case errors.As(err, &lerr):
		h.failed(req.Role, "locked")
		seconds := int(math.Ceil(lerr.Remaining.Seconds()))
		slog.Warn("login locked out", "user", req.Name, "role", req.Role, "remote", r.RemoteAddr, "retry_after", seconds)
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
		jsonResponse(w, http.StatusLocked, map[string]any{
			"error":       "too many failed attempts",
			"retry_after": seconds,
		})
	default:
		slog.Error("failed to log in", "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *AuthHandler) failed(role, reason string) {
	if h.Observer != nil {
		h.Observer.LoginFailed(role, reason)
	}
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	if err := store.RevokeToken(r.Context(), h.DB, claims.ID, claims.ExpiresAt.Time); err != nil {
		slog.Error("failed to revoke token", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to log out")
		return
	}

	slog.Info("user logged out", "user", claims.Name, "role", claims.Role)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	jsonResponse(w, http.StatusOK, h.session(claims))
}

func (h *AuthHandler) session(claims *auth.Claims) sessionResponse {
	return sessionResponse{
		Name:         claims.Name,
		Role:         claims.Role,
		Capabilities: h.Gate.Capabilities(claims.Role),
		ExpiresAt:    claims.ExpiresAt.Time,
	}
}

// remoteHost returns the client address without the port.
func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
