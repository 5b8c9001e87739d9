package httpx

import (
	"context"
	"log/slog"
	"net/http"

	domainauth "github.com/target/inventory-console/internal/domain/auth"
)

// UserAdminInterface is the user administration surface exposed by the console.
type UserAdminInterface interface {
	List(ctx context.Context) ([]domainauth.UserListItem, error)
	Get(ctx context.Context, id string) (*domainauth.UserListItem, error)
	ChangeRole(ctx context.Context, id, role string) (*domainauth.MessageResponse, error)
}

// UserHandlers serves the administrator-only user views.
type UserHandlers struct {
	Svc    UserAdminInterface
	Logger *slog.Logger
}

func (h *UserHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// List handles GET /users.
func (h *UserHandlers) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.Svc.List(r.Context())
	if err != nil {
		h.logger().WarnContext(r.Context(), "list users failed", "error", err)
		WriteServiceError(w, err)
		return
	}
	if users == nil {
		users = []domainauth.UserListItem{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"users": users, "count": len(users)})
}

// Get handles GET /users/{id}.
func (h *UserHandlers) Get(w http.ResponseWriter, r *http.Request) {
	u, err := h.Svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, u)
}

type changeRoleBody struct {
	Role string `json:"role"`
}

// ChangeRole handles PUT /users/{id}/role with body {"role": "..."}.
func (h *UserHandlers) ChangeRole(w http.ResponseWriter, r *http.Request) {
	var in changeRoleBody
	if !DecodeJSON(w, r, &in) {
		return
	}
	resp, err := h.Svc.ChangeRole(r.Context(), r.PathValue("id"), in.Role)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, resp)
}
