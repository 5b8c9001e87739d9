package httpx

import (
	"log/slog"
	"net/http"
	"net/url"
	"runtime/debug"
	"strings"
	"time"

	domainauth "github.com/target/inventory-console/internal/domain/auth"
	"github.com/target/inventory-console/internal/navigation"
	"github.com/target/inventory-console/internal/service"
)

// Logging returns a middleware that logs HTTP requests and responses.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &respWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.InfoContext(r.Context(), "http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Recover returns a middleware that recovers from panics and logs them.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.ErrorContext(r.Context(), "panic",
						slog.Any("error", err),
						slog.String("path", r.URL.Path),
						slog.String("method", r.Method),
						slog.String("stack", string(debug.Stack())))
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// RouteGate is the subset of service.Gate the middleware needs.
type RouteGate interface {
	Decide(dest service.Destination) service.Decision
	DecideAdmin(dest service.Destination) service.Decision
}

// IdentitySource exposes the signed-in identity.
type IdentitySource interface {
	Current() *domainauth.Identity
}

// RequireRoute admits the request when the gate allows the destination for role.
// Role "" admits any signed-in user. Denials become 303 redirects for browsers
// and JSON errors carrying redirect_to for AJAX callers.
func RequireRoute(gate RouteGate, ids IdentitySource, role domainauth.Role) func(http.Handler) http.Handler {
	return guard(ids, func(r *http.Request) service.Decision {
		return gate.Decide(service.Destination{URL: requestDestination(r), RequiredRole: role})
	})
}

// RequireAdmin admits only administrators.
func RequireAdmin(gate RouteGate, ids IdentitySource) func(http.Handler) http.Handler {
	return guard(ids, func(r *http.Request) service.Decision {
		return gate.DecideAdmin(service.Destination{URL: requestDestination(r), RequiredRole: domainauth.RoleAdmin})
	})
}

func guard(ids IdentitySource, decide func(*http.Request) service.Decision) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := decide(r)
			if !d.Allow {
				status := http.StatusForbidden
				if d.Redirect.Path == navigation.LoginPath {
					status = http.StatusUnauthorized
				}
				redirectTo(w, r, d.Redirect, status)
				return
			}
			ctx := SetIdentityInContext(r.Context(), ids.Current())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PendingNavigation yields navigation targets raised outside a request, such as
// the login redirect recorded by a 401 teardown.
type PendingNavigation interface {
	Pending() (navigation.Target, bool)
}

// FollowNavigation redirects a request to the latest pending navigation target.
// Auth endpoints, the login view and health checks are never redirected, so the
// user can always sign back in.
func FollowNavigation(pending PendingNavigation) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if navigationExempt(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			target, ok := pending.Pending()
			if !ok || target.Path == r.URL.Path {
				next.ServeHTTP(w, r)
				return
			}
			status := http.StatusSeeOther
			if target.Path == navigation.LoginPath {
				status = http.StatusUnauthorized
			}
			redirectTo(w, r, target, status)
		})
	}
}

func navigationExempt(path string) bool {
	return path == navigation.LoginPath || path == "/healthz" || strings.HasPrefix(path, "/auth/")
}

// redirectTo sends browsers a 303 to target. AJAX callers get a JSON body with
// redirect_to and ajaxStatus instead, since fetch follows redirects silently.
func redirectTo(w http.ResponseWriter, r *http.Request, target navigation.Target, ajaxStatus int) {
	if isAJAX(r) {
		WriteJSON(w, ajaxStatus, map[string]string{
			"error":       strings.ToLower(strings.ReplaceAll(http.StatusText(ajaxStatus), " ", "_")),
			"redirect_to": target.String(),
		})
		return
	}
	http.Redirect(w, r, target.String(), http.StatusSeeOther)
}

func isAJAX(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.EqualFold(r.Header.Get("X-Requested-With"), "XMLHttpRequest")
}

func requestDestination(r *http.Request) string {
	return safeRedirectPath(r.URL.RequestURI())
}

// safeRedirectPath ensures the provided redirect is a same-origin relative path
// starting with "/" and not an absolute URL. Returns "/" when invalid.
func safeRedirectPath(candidate string) string {
	if candidate == "" {
		return "/"
	}
	u, err := url.Parse(candidate)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(candidate, "//") {
		return "/"
	}
	return candidate
}
