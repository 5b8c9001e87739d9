// Package httpx serves the local inventory console: auth endpoints, gated views and
// the administrator user pages, all backed by the session core.
package httpx

import (
	"log/slog"
	"net/http"

	domainauth "github.com/target/inventory-console/internal/domain/auth"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Auth  AuthServiceInterface
	Users UserAdminInterface
	// State is the session state holder the gate reads.
	State IdentitySource
	Gate  RouteGate
	// Navigation yields targets raised by the session core outside a request. Optional.
	Navigation PendingNavigation
	Logger     *slog.Logger
}

// NewRouter creates the console router wrapped in Recover, Logging and FollowNavigation.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "console_http")

	mux := http.NewServeMux()
	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	registerAuthRoutes(mux, &AuthHandlers{
		Svc:        services.Auth,
		State:      services.State,
		Navigation: services.Navigation,
		Logger:     logger,
	})
	registerViewRoutes(mux, services)
	if services.Users != nil {
		registerUserRoutes(mux, &UserHandlers{Svc: services.Users, Logger: logger}, services)
	}

	var handler http.Handler = mux
	if services.Navigation != nil {
		handler = FollowNavigation(services.Navigation)(handler)
	}
	handler = Logging(logger)(handler)
	return Recover(logger)(handler)
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers) {
	mux.HandleFunc("GET /auth/status", h.Status)
	mux.HandleFunc("POST /auth/login", h.Login)
	mux.HandleFunc("POST /auth/logout", h.Logout)
	mux.HandleFunc("POST /auth/refresh", h.Refresh)
}

func registerViewRoutes(mux *http.ServeMux, s RouterServices) {
	mux.Handle("GET /", rootHandler(s.State))
	mux.Handle("GET /login", loginViewHandler(s.State))

	gated := []struct {
		path string
		name string
		role domainauth.Role
	}{
		{"/profile", "profile", domainauth.RoleViewer},
		{"/actions", "actions", domainauth.RoleOperator},
		{"/property-definitions", "property-definitions", domainauth.RoleManager},
	}
	for _, v := range gated {
		mux.Handle("GET "+v.path, RequireRoute(s.Gate, s.State, v.role)(viewHandler(v.name, v.role)))
	}
}

func registerUserRoutes(mux *http.ServeMux, h *UserHandlers, s RouterServices) {
	admin := RequireAdmin(s.Gate, s.State)
	mux.Handle("GET /users", admin(http.HandlerFunc(h.List)))
	mux.Handle("GET /users/{id}", admin(http.HandlerFunc(h.Get)))
	mux.Handle("PUT /users/{id}/role", admin(http.HandlerFunc(h.ChangeRole)))
}
