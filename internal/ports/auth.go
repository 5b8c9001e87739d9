// Package ports defines interfaces (hexagonal ports) for session-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.
package ports

import (
	"context"

	domainauth "github.com/target/inventory-console/internal/domain/auth"
)

// KeyValueStore is a persistent, synchronous, string-keyed storage medium.
// Implementations never fail loudly: when the medium is unavailable, reads
// report absent and writes are no-ops.
type KeyValueStore interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Remove(key string)
	Clear()
}

// AuthAPI is the backend's authentication surface.
type AuthAPI interface {
	Login(ctx context.Context, req domainauth.LoginRequest) (*domainauth.TokenResponse, error)
	Register(ctx context.Context, req domainauth.RegisterRequest) (*domainauth.TokenResponse, error)
	RefreshToken(ctx context.Context, req domainauth.RefreshTokenRequest) (*domainauth.TokenResponse, error)

	// RevokeToken notifies the backend that the user's tokens are void.
	// accessToken is sent explicitly because local teardown may already have
	// removed it from the store by the time the request goes out.
	RevokeToken(ctx context.Context, accessToken string, req domainauth.RevokeTokenRequest) error

	// Me returns the identity bound to the current access token.
	Me(ctx context.Context) (*domainauth.Identity, error)
}

// UserAPI is the backend's user administration surface.
type UserAPI interface {
	ListUsers(ctx context.Context) ([]domainauth.UserListItem, error)
	GetUser(ctx context.Context, id string) (*domainauth.UserListItem, error)
	CreateUser(ctx context.Context, req domainauth.RegisterRequest) (*domainauth.TokenResponse, error)
	UpdateUser(ctx context.Context, id string, req domainauth.UpdateUserRequest) (*domainauth.UserListItem, error)
	DeleteUser(ctx context.Context, id string) error
	ChangeUserRole(ctx context.Context, id string, req domainauth.ChangeRoleRequest) (*domainauth.MessageResponse, error)
	ResetUserPassword(
		ctx context.Context,
		id string,
		req domainauth.ResetPasswordRequest,
	) (*domainauth.MessageResponse, error)
}

// SessionClearer resets in-memory session state to logged-out.
type SessionClearer interface {
	Clear()
}
