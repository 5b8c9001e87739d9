// Package testutil provides testing utilities and helpers for the inventory console.
package testutil

import (
	domainauth "github.com/target/inventory-console/internal/domain/auth"
)

// IdentityBuilder provides a fluent interface for building Identity values for testing.
type IdentityBuilder struct {
	id domainauth.Identity
}

// NewIdentity creates a new IdentityBuilder with sensible defaults.
func NewIdentity() *IdentityBuilder {
	return &IdentityBuilder{
		id: domainauth.Identity{
			ID:        "1",
			Email:     "a@b.com",
			FirstName: "Ada",
			LastName:  "Byron",
			UserName:  "ada",
			Role:      domainauth.RoleViewer,
			FullName:  "Ada Byron",
		},
	}
}

// WithID sets the identity ID.
func (b *IdentityBuilder) WithID(id string) *IdentityBuilder {
	b.id.ID = id
	return b
}

// WithEmail sets the email.
func (b *IdentityBuilder) WithEmail(email string) *IdentityBuilder {
	b.id.Email = email
	return b
}

// WithRole sets the role.
func (b *IdentityBuilder) WithRole(role domainauth.Role) *IdentityBuilder {
	b.id.Role = role
	return b
}

// Build returns the built identity.
func (b *IdentityBuilder) Build() domainauth.Identity {
	return b.id
}

// TokenResponseBuilder builds TokenResponse values for testing.
type TokenResponseBuilder struct {
	resp domainauth.TokenResponse
}

// NewTokenResponse creates a TokenResponseBuilder with tokens AT1/RT1 and a default identity.
func NewTokenResponse() *TokenResponseBuilder {
	return &TokenResponseBuilder{
		resp: domainauth.TokenResponse{
			TokenPair: domainauth.TokenPair{AccessToken: "AT1", RefreshToken: "RT1"},
			ExpiresIn: 3600,
			User:      NewIdentity().Build(),
		},
	}
}

// WithTokens sets both tokens.
func (b *TokenResponseBuilder) WithTokens(access, refresh string) *TokenResponseBuilder {
	b.resp.AccessToken = access
	b.resp.RefreshToken = refresh
	return b
}

// WithUser sets the identity.
func (b *TokenResponseBuilder) WithUser(user domainauth.Identity) *TokenResponseBuilder {
	b.resp.User = user
	return b
}

// Build returns a pointer to the built response.
func (b *TokenResponseBuilder) Build() *domainauth.TokenResponse {
	resp := b.resp
	return &resp
}
