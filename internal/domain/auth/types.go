package auth

// Package auth contains domain-level types for authentication and sessions.
// It is pure and free of framework/adapter concerns.

import (
	"fmt"
	"strings"
)

// Role represents an application's authorization role.
// Keep string form for easy persistence; values match what the backend sends.
type Role string

const (
	RoleViewer   Role = "Viewer"
	RoleOperator Role = "Operator"
	RoleManager  Role = "Manager"
	RoleAdmin    Role = "Admin"
)

// roleRank orders roles by privilege. Unknown roles rank 0.
var roleRank = map[Role]int{ //nolint:gochecknoglobals // read-only rank table
	RoleViewer:   1,
	RoleOperator: 2,
	RoleManager:  3,
	RoleAdmin:    4,
}

// Roles returns every known role in ascending privilege order.
func Roles() []Role {
	return []Role{RoleViewer, RoleOperator, RoleManager, RoleAdmin}
}

// Rank returns the privilege rank of the role, or 0 when the role is unknown.
func (r Role) Rank() int {
	return roleRank[r]
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether r carries at least the privileges of required.
func (r Role) AtLeast(required Role) bool {
	return r.Rank() >= required.Rank()
}

// ParseRole parses a role name case-insensitively.
func ParseRole(s string) (Role, error) {
	v := strings.TrimSpace(s)
	for _, r := range Roles() {
		if strings.EqualFold(string(r), v) {
			return r, nil
		}
	}
	return "", fmt.Errorf("invalid role: %q (valid options: Viewer, Operator, Manager, Admin)", s)
}

// Identity represents the authenticated principal returned by the backend.
// It is replaced wholesale on login, refresh and logout.
type Identity struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	UserName  string `json:"userName,omitempty"`
	Role      Role   `json:"role"`
	FullName  string `json:"fullName"`
}

// DisplayName returns FullName, deriving it when the backend left it empty.
func (i Identity) DisplayName() string {
	if i.FullName != "" {
		return i.FullName
	}
	if name := strings.TrimSpace(i.FirstName + " " + i.LastName); name != "" {
		return name
	}
	if i.UserName != "" {
		return i.UserName
	}
	return i.Email
}

// Normalized returns a copy with FullName filled in.
func (i Identity) Normalized() Identity {
	i.FullName = i.DisplayName()
	return i
}

// TokenPair holds the opaque credentials issued by the backend.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// TokenResponse is returned by login, register and refresh.
// ExpiresIn is informational; expiry is discovered through 401 responses.
type TokenResponse struct {
	TokenPair
	ExpiresIn int      `json:"expiresIn"`
	User      Identity `json:"user"`
}

// LoginRequest carries credentials for POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"` //nolint:gosec // request DTO field, not a hardcoded secret
}

// RegisterRequest carries the fields for POST /api/auth/register.
type RegisterRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`        //nolint:gosec // request DTO field
	ConfirmPassword string `json:"confirmPassword"` //nolint:gosec // request DTO field
	FirstName       string `json:"firstName,omitempty"`
	LastName        string `json:"lastName,omitempty"`
	UserName        string `json:"userName,omitempty"`
	Role            Role   `json:"role"`
}

// RefreshTokenRequest is the body of POST /api/auth/refresh-token.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"` //nolint:gosec // request DTO field
}

// RevokeTokenRequest is the body of POST /api/auth/revoke-token.
type RevokeTokenRequest struct {
	Email string `json:"email"`
}

// Storage keys for the persisted session record.
const (
	AccessTokenKey  = "access_token"
	RefreshTokenKey = "refresh_token"
	CurrentUserKey  = "current_user"
)

// SessionKeys lists every persisted session key.
func SessionKeys() []string {
	return []string{AccessTokenKey, RefreshTokenKey, CurrentUserKey}
}
