package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/hramba/internal/auth"
	"github.com/erazemk/hramba/internal/cloakroom"
	"github.com/erazemk/hramba/internal/metrics"
	"github.com/erazemk/hramba/internal/model"
	"github.com/erazemk/hramba/internal/notify"
)

// Deps are the collaborators the API serves.
type Deps struct {
	DB          *sqlx.DB
	JWTSecret   string
	TokenExpiry time.Duration
	Perms       model.Permissions
	Cloakroom   *cloakroom.Service
	Gate        *auth.Gate
	Notifier    *notify.Service
	ReceiptSize int
	// Metrics is optional; when set, /metrics is served and requests are counted.
	Metrics *metrics.Metrics
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: d.DB, JWTSecret: d.JWTSecret, TokenExpiry: d.TokenExpiry, Gate: d.Gate}
	if d.Metrics != nil {
		authHandler.Observer = d.Metrics
	}
	itemsHandler := &ItemsHandler{Cloakroom: d.Cloakroom, Perms: d.Perms, ReceiptSize: d.ReceiptSize}
	usersHandler := &UsersHandler{DB: d.DB}
	rolesHandler := &RolesHandler{DB: d.DB}
	notificationsHandler := &NotificationsHandler{Notifier: d.Notifier}

	authMW := AuthMiddleware(d.JWTSecret, d.DB)
	allow := func(caps ...model.Capability) func(http.Handler) http.Handler {
		return RequireCapability(d.Perms, caps...)
	}
	guard := func(h http.HandlerFunc, caps ...model.Capability) http.Handler {
		if len(caps) == 0 {
			return authMW(h)
		}
		return authMW(allow(caps...)(h))
	}

	// Public.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := d.DB.PingContext(r.Context()); err != nil {
			slog.Error("health check failed", "error", err)
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	})
	if d.Metrics != nil {
		mux.Handle("GET /metrics", d.Metrics.Handler())
	}

	// Session.
	mux.Handle("POST /api/auth/logout", guard(authHandler.Logout))
	mux.Handle("GET /api/auth/me", guard(authHandler.Me))

	// Items. The list checks capabilities per status itself.
	mux.Handle("POST /api/items", guard(itemsHandler.Create, model.CapAccept))
	mux.Handle("POST /api/items/return", guard(itemsHandler.Return, model.CapReturn))
	mux.Handle("GET /api/items", guard(itemsHandler.List))
	mux.Handle("GET /api/items/{code}", guard(itemsHandler.Get))
	mux.Handle("GET /api/items/{code}/receipt.png", guard(itemsHandler.Receipt, model.CapAccept))
	mux.Handle("GET /api/occupancy", guard(itemsHandler.Occupancy, model.CapAccept, model.CapReturn))

	// Notifications.
	mux.Handle("POST /api/notifications", guard(notificationsHandler.Create, model.CapNotify))
	mux.Handle("GET /api/notifications", guard(notificationsHandler.List, model.CapNotify))

	// Users and role passwords.
	mux.Handle("GET /api/users", guard(usersHandler.List, model.CapManageUsers))
	mux.Handle("POST /api/users", guard(usersHandler.Create, model.CapManageUsers))
	mux.Handle("DELETE /api/users/{id}", guard(usersHandler.Delete, model.CapManageUsers))
	mux.Handle("PUT /api/roles/{role}/password", guard(rolesHandler.SetPassword, model.CapManageUsers))

	if d.Metrics != nil {
		return d.Metrics.Middleware(mux)
	}
	return mux
}
