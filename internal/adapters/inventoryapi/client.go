// Package inventoryapi is the HTTP client for the inventory backend's auth and
// user administration endpoints, plus the transport that authorizes its requests.
package inventoryapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	domainauth "github.com/target/inventory-console/internal/domain/auth"
	"github.com/target/inventory-console/internal/navigation"
	"github.com/target/inventory-console/internal/ports"
)

// DefaultTimeout bounds every backend call when Options.Timeout is unset.
const DefaultTimeout = 15 * time.Second

// Backend paths.
const (
	pathLogin       = "/api/auth/login"
	pathRegister    = "/api/auth/register"
	pathRefresh     = "/api/auth/refresh-token"
	pathRevoke      = "/api/auth/revoke-token"
	pathMe          = "/api/auth/me"
	pathUsers       = "/api/users"
	contentTypeJSON = "application/json"
)

var (
	_ ports.AuthAPI = (*Client)(nil)
	_ ports.UserAPI = (*Client)(nil)
)

// Options configures a Client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	// Base is the underlying transport; http.DefaultTransport when nil.
	Base           http.RoundTripper
	Store          ports.KeyValueStore
	Session        ports.SessionClearer
	Navigator      navigation.Navigator
	OnUnauthorized UnauthorizedHook
	Logger         *slog.Logger
}

// Client talks JSON to the inventory backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a Client whose requests pass through an AuthTransport.
func New(opts Options) (*Client, error) {
	raw := strings.TrimSpace(opts.BaseURL)
	if raw == "" {
		return nil, errors.New("inventoryapi: base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("inventoryapi: parse base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("inventoryapi: base URL must be http or https, got %q", raw)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	transport := NewAuthTransport(TransportOptions{
		Base:           opts.Base,
		Store:          opts.Store,
		Session:        opts.Session,
		Navigator:      opts.Navigator,
		OnUnauthorized: opts.OnUnauthorized,
		Logger:         logger,
	})

	return &Client{
		baseURL:    strings.TrimRight(base.String(), "/"),
		httpClient: &http.Client{Transport: transport, Timeout: timeout},
		logger:     logger.With("component", "inventory_api"),
	}, nil
}

// Login exchanges credentials for tokens.
func (c *Client) Login(ctx context.Context, req domainauth.LoginRequest) (*domainauth.TokenResponse, error) {
	var out domainauth.TokenResponse
	if err := c.do(ctx, call{method: http.MethodPost, path: pathLogin, in: req, out: &out}); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return &out, nil
}

// Register creates an account and returns its tokens.
func (c *Client) Register(ctx context.Context, req domainauth.RegisterRequest) (*domainauth.TokenResponse, error) {
	var out domainauth.TokenResponse
	if err := c.do(ctx, call{method: http.MethodPost, path: pathRegister, in: req, out: &out}); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	return &out, nil
}

// RefreshToken trades a refresh token for a new pair.
func (c *Client) RefreshToken(
	ctx context.Context,
	req domainauth.RefreshTokenRequest,
) (*domainauth.TokenResponse, error) {
	var out domainauth.TokenResponse
	if err := c.do(ctx, call{method: http.MethodPost, path: pathRefresh, in: req, out: &out}); err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	return &out, nil
}

// RevokeToken asks the backend to void the user's tokens. The request carries
// accessToken explicitly and never triggers session teardown.
func (c *Client) RevokeToken(ctx context.Context, accessToken string, req domainauth.RevokeTokenRequest) error {
	ctx = WithoutSessionTeardown(ctx)
	var header http.Header
	if accessToken != "" {
		ctx = withExplicitAuthorization(ctx)
		header = http.Header{"Authorization": []string{"Bearer " + accessToken}}
	}
	if err := c.do(ctx, call{method: http.MethodPost, path: pathRevoke, in: req, header: header}); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// Me returns the identity bound to the current access token.
func (c *Client) Me(ctx context.Context) (*domainauth.Identity, error) {
	var out domainauth.Identity
	if err := c.do(ctx, call{method: http.MethodGet, path: pathMe, out: &out}); err != nil {
		return nil, fmt.Errorf("current identity: %w", err)
	}
	id := out.Normalized()
	return &id, nil
}

// ListUsers returns every user.
func (c *Client) ListUsers(ctx context.Context) ([]domainauth.UserListItem, error) {
	var out []domainauth.UserListItem
	if err := c.do(ctx, call{method: http.MethodGet, path: pathUsers, out: &out}); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return out, nil
}

// GetUser returns one user.
func (c *Client) GetUser(ctx context.Context, id string) (*domainauth.UserListItem, error) {
	var out domainauth.UserListItem
	if err := c.do(ctx, call{method: http.MethodGet, path: userPath(id), out: &out}); err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return &out, nil
}

// CreateUser registers a new account on behalf of an administrator.
// The returned tokens belong to the new user and must not be persisted.
func (c *Client) CreateUser(ctx context.Context, req domainauth.RegisterRequest) (*domainauth.TokenResponse, error) {
	var out domainauth.TokenResponse
	if err := c.do(ctx, call{method: http.MethodPost, path: pathRegister, in: req, out: &out}); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &out, nil
}

// UpdateUser replaces a user's profile fields.
func (c *Client) UpdateUser(
	ctx context.Context,
	id string,
	req domainauth.UpdateUserRequest,
) (*domainauth.UserListItem, error) {
	var out domainauth.UserListItem
	if err := c.do(ctx, call{method: http.MethodPut, path: userPath(id), in: req, out: &out}); err != nil {
		return nil, fmt.Errorf("update user %s: %w", id, err)
	}
	return &out, nil
}

// DeleteUser removes a user.
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	if err := c.do(ctx, call{method: http.MethodDelete, path: userPath(id)}); err != nil {
		return fmt.Errorf("delete user %s: %w", id, err)
	}
	return nil
}

// ChangeUserRole assigns a new role.
func (c *Client) ChangeUserRole(
	ctx context.Context,
	id string,
	req domainauth.ChangeRoleRequest,
) (*domainauth.MessageResponse, error) {
	var out domainauth.MessageResponse
	if err := c.do(ctx, call{method: http.MethodPut, path: userPath(id) + "/role", in: req, out: &out}); err != nil {
		return nil, fmt.Errorf("change role for user %s: %w", id, err)
	}
	return &out, nil
}

// ResetUserPassword sets a new password for a user.
func (c *Client) ResetUserPassword(
	ctx context.Context,
	id string,
	req domainauth.ResetPasswordRequest,
) (*domainauth.MessageResponse, error) {
	var out domainauth.MessageResponse
	if err := c.do(ctx, call{method: http.MethodPut, path: userPath(id) + "/password", in: req, out: &out}); err != nil {
		return nil, fmt.Errorf("reset password for user %s: %w", id, err)
	}
	return &out, nil
}

func userPath(id string) string {
	return pathUsers + "/" + url.PathEscape(id)
}

// call groups request parameters for do.
type call struct {
	method string
	path   string
	in     any
	out    any
	header http.Header
}

func (c *Client) do(ctx context.Context, cl call) error {
	var body io.Reader = http.NoBody
	if cl.in != nil {
		buf, err := json.Marshal(cl.in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	for k, vs := range cl.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", contentTypeJSON)
	if cl.in != nil {
		req.Header.Set("Content-Type", contentTypeJSON)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	c.logger.DebugContext(ctx, "backend call",
		"method", cl.method, "path", cl.path, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp)
	}
	if cl.out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(cl.out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
