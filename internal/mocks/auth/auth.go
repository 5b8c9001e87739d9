// Package auth contains hand-written test doubles for the session ports.
// They count calls and fall back to deterministic defaults, so tests can
// assert "no backend call happened" without a gomock controller.
package auth

import (
	"context"
	"sync"

	domainauth "github.com/target/inventory-console/internal/domain/auth"
	"github.com/target/inventory-console/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.AuthAPI        = (*FakeAuthAPI)(nil)
	_ ports.SessionClearer = (*CountingClearer)(nil)
)

// FakeAuthAPI simulates the backend's auth endpoints.
type FakeAuthAPI struct {
	LoginFunc    func(ctx context.Context, req domainauth.LoginRequest) (*domainauth.TokenResponse, error)
	RegisterFunc func(ctx context.Context, req domainauth.RegisterRequest) (*domainauth.TokenResponse, error)
	RefreshFunc  func(ctx context.Context, req domainauth.RefreshTokenRequest) (*domainauth.TokenResponse, error)
	RevokeFunc   func(ctx context.Context, accessToken string, req domainauth.RevokeTokenRequest) error
	MeFunc       func(ctx context.Context) (*domainauth.Identity, error)

	// DefaultResponse is returned by Login/Register/RefreshToken when no Func is set.
	DefaultResponse domainauth.TokenResponse

	mu      sync.Mutex
	calls   map[string]int
	revokes []RevokeCall
}

// RevokeCall records one RevokeToken invocation.
type RevokeCall struct {
	AccessToken string
	Email       string
}

// NewFakeAuthAPI creates a FakeAuthAPI answering with tokens AT1/RT1 for a Viewer.
func NewFakeAuthAPI() *FakeAuthAPI {
	return &FakeAuthAPI{
		DefaultResponse: domainauth.TokenResponse{
			TokenPair: domainauth.TokenPair{AccessToken: "AT1", RefreshToken: "RT1"},
			ExpiresIn: 3600,
			User: domainauth.Identity{
				ID:        "1",
				Email:     "a@b.com",
				FirstName: "Mock",
				LastName:  "User",
				Role:      domainauth.RoleViewer,
			},
		},
	}
}

func (f *FakeAuthAPI) Login(ctx context.Context, req domainauth.LoginRequest) (*domainauth.TokenResponse, error) {
	f.record("Login")
	if f.LoginFunc != nil {
		return f.LoginFunc(ctx, req)
	}
	return f.defaultResponse(), nil
}

func (f *FakeAuthAPI) Register(
	ctx context.Context,
	req domainauth.RegisterRequest,
) (*domainauth.TokenResponse, error) {
	f.record("Register")
	if f.RegisterFunc != nil {
		return f.RegisterFunc(ctx, req)
	}
	return f.defaultResponse(), nil
}

func (f *FakeAuthAPI) RefreshToken(
	ctx context.Context,
	req domainauth.RefreshTokenRequest,
) (*domainauth.TokenResponse, error) {
	f.record("RefreshToken")
	if f.RefreshFunc != nil {
		return f.RefreshFunc(ctx, req)
	}
	return f.defaultResponse(), nil
}

func (f *FakeAuthAPI) RevokeToken(ctx context.Context, accessToken string, req domainauth.RevokeTokenRequest) error {
	f.record("RevokeToken")
	f.mu.Lock()
	f.revokes = append(f.revokes, RevokeCall{AccessToken: accessToken, Email: req.Email})
	f.mu.Unlock()
	if f.RevokeFunc != nil {
		return f.RevokeFunc(ctx, accessToken, req)
	}
	return nil
}

func (f *FakeAuthAPI) Me(ctx context.Context) (*domainauth.Identity, error) {
	f.record("Me")
	if f.MeFunc != nil {
		return f.MeFunc(ctx)
	}
	user := f.DefaultResponse.User
	return &user, nil
}

// Calls returns how many times method was invoked.
func (f *FakeAuthAPI) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// TotalCalls returns the number of backend calls of any kind.
func (f *FakeAuthAPI) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// Revokes returns every RevokeToken invocation in order.
func (f *FakeAuthAPI) Revokes() []RevokeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RevokeCall(nil), f.revokes...)
}

func (f *FakeAuthAPI) record(method string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[method]++
}

func (f *FakeAuthAPI) defaultResponse() *domainauth.TokenResponse {
	resp := f.DefaultResponse
	return &resp
}

// CountingClearer is a SessionClearer that only counts calls.
type CountingClearer struct {
	mu sync.Mutex
	n  int
}

func (c *CountingClearer) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
}

// Count returns how many times Clear ran.
func (c *CountingClearer) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}
