package httpx

import (
	"context"
	"log/slog"
	"mime"
	"net/http"

	domainauth "github.com/target/inventory-console/internal/domain/auth"
	"github.com/target/inventory-console/internal/navigation"
)

// AuthServiceInterface defines the auth service operations the console needs.
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password string) (*domainauth.TokenResponse, error)
	Logout(ctx context.Context)
	RefreshToken(ctx context.Context) (*domainauth.TokenResponse, error)
}

// AuthHandlers provides HTTP handlers for authentication operations.
type AuthHandlers struct {
	Svc        AuthServiceInterface
	State      IdentitySource
	Navigation PendingNavigation
	Logger     *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

type loginForm struct {
	Email     string `json:"email"`
	Password  string `json:"password"` //nolint:gosec // request DTO field
	ReturnURL string `json:"returnUrl"`
}

// Login signs in with email and password.
// POST /auth/login with a JSON or form body {email, password, returnUrl}.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var in loginForm
	jsonBody := isJSONBody(r)
	if jsonBody {
		if !DecodeJSON(w, r, &in) {
			return
		}
	} else {
		in = loginForm{
			Email:     r.FormValue("email"),
			Password:  r.FormValue("password"),
			ReturnURL: r.FormValue(navigation.ReturnURLParam),
		}
	}

	resp, err := h.Svc.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	dest := safeRedirectPath(in.ReturnURL)
	if jsonBody || isAJAX(r) {
		WriteJSON(w, http.StatusOK, map[string]any{
			"user":        resp.User.Normalized(),
			"redirect_to": dest,
		})
		return
	}
	http.Redirect(w, r, dest, http.StatusSeeOther)
}

// Logout ends the session. The backend revoke runs in the background.
// POST /auth/logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	h.Svc.Logout(r.Context())

	dest := navigation.Login("")
	if h.Navigation != nil {
		if t, ok := h.Navigation.Pending(); ok {
			dest = t
		}
	}

	if isAJAX(r) {
		WriteJSON(w, http.StatusOK, map[string]string{
			"status":      "success",
			"redirect_to": dest.String(),
		})
		return
	}
	http.Redirect(w, r, dest.String(), http.StatusSeeOther)
}

// Refresh exchanges the stored refresh token for a new pair.
// POST /auth/refresh answers 204 on success and 401 when there is no session left.
func (h *AuthHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	resp, err := h.Svc.RefreshToken(r.Context())
	if err != nil {
		h.logger().WarnContext(r.Context(), "refresh failed", "error", err)
		WriteServiceError(w, err)
		return
	}
	if resp == nil {
		if h.Navigation != nil {
			// The failed refresh already signed the user out; the status code says so.
			h.Navigation.Pending()
		}
		WriteJSON(w, http.StatusUnauthorized, errorResponse{
			Error:   "unauthorized",
			Message: "session expired",
		})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type statusResponse struct {
	Authenticated     bool                 `json:"authenticated"`
	User              *domainauth.Identity `json:"user,omitempty"`
	IsAdmin           bool                 `json:"isAdmin"`
	IsManagerOrAbove  bool                 `json:"isManagerOrAbove"`
	IsOperatorOrAbove bool                 `json:"isOperatorOrAbove"`
}

// Status returns the current authentication status.
// GET /auth/status.
func (h *AuthHandlers) Status(w http.ResponseWriter, _ *http.Request) {
	// Flags derive from one snapshot so they never disagree with user.
	id := h.State.Current()
	resp := statusResponse{Authenticated: id != nil, User: id}
	if id != nil {
		resp.IsAdmin = id.Role == domainauth.RoleAdmin
		resp.IsManagerOrAbove = id.Role.AtLeast(domainauth.RoleManager)
		resp.IsOperatorOrAbove = id.Role.AtLeast(domainauth.RoleOperator)
	}
	WriteJSON(w, http.StatusOK, resp)
}

func isJSONBody(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}
