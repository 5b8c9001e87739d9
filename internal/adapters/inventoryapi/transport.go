package inventoryapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/net/http/httpguts"
	"golang.org/x/oauth2"

	domainauth "github.com/target/inventory-console/internal/domain/auth"
	"github.com/target/inventory-console/internal/navigation"
	"github.com/target/inventory-console/internal/ports"
)

// RequestIDHeader is stamped on every outbound request that lacks one.
const RequestIDHeader = "X-Request-ID"

// ErrNoToken is returned by StoreTokenSource when no usable access token is persisted.
var ErrNoToken = errors.New("no access token")

type skipTeardownKey struct{}

// WithoutSessionTeardown marks ctx so a 401 on the request does not tear the session down.
func WithoutSessionTeardown(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipTeardownKey{}, true)
}

func teardownSkipped(ctx context.Context) bool {
	v, _ := ctx.Value(skipTeardownKey{}).(bool)
	return v
}

type explicitAuthKey struct{}

// withExplicitAuthorization keeps a caller-supplied Authorization header instead
// of replacing it with the persisted token.
func withExplicitAuthorization(ctx context.Context) context.Context {
	return context.WithValue(ctx, explicitAuthKey{}, true)
}

func explicitAuthorization(ctx context.Context, req *http.Request) bool {
	v, _ := ctx.Value(explicitAuthKey{}).(bool)
	return v && req.Header.Get("Authorization") != ""
}

// StoreTokenSource exposes the persisted access token as an oauth2.TokenSource.
// It reads the store on every call, so a logout is observed immediately.
type StoreTokenSource struct {
	Store ports.KeyValueStore
}

var _ oauth2.TokenSource = StoreTokenSource{}

// Token returns the persisted access token as a bearer token.
func (s StoreTokenSource) Token() (*oauth2.Token, error) {
	if s.Store == nil {
		return nil, ErrNoToken
	}
	v, ok := s.Store.Get(domainauth.AccessTokenKey)
	if !ok || v == "" || !httpguts.ValidHeaderFieldValue(v) {
		return nil, ErrNoToken
	}
	return &oauth2.Token{AccessToken: v, TokenType: "Bearer"}, nil
}

// UnauthorizedHook is called after a 401 teardown, e.g. to emit a metric.
type UnauthorizedHook func(ctx context.Context, req *http.Request)

// TransportOptions groups AuthTransport dependencies.
type TransportOptions struct {
	Base           http.RoundTripper
	Store          ports.KeyValueStore
	Session        ports.SessionClearer
	Navigator      navigation.Navigator
	OnUnauthorized UnauthorizedHook
	Logger         *slog.Logger
}

// AuthTransport attaches the persisted bearer token to outbound requests and
// tears the session down when the backend answers 401.
type AuthTransport struct {
	base      http.RoundTripper
	store     ports.KeyValueStore
	tokens    oauth2.TokenSource
	session   ports.SessionClearer
	navigator navigation.Navigator
	onUnauth  UnauthorizedHook
	logger    *slog.Logger
}

var _ http.RoundTripper = (*AuthTransport)(nil)

// NewAuthTransport creates an AuthTransport.
func NewAuthTransport(opts TransportOptions) *AuthTransport {
	base := opts.Base
	if base == nil {
		base = http.DefaultTransport
	}
	nav := opts.Navigator
	if nav == nil {
		nav = navigation.Discard
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthTransport{
		base:      base,
		store:     opts.Store,
		tokens:    StoreTokenSource{Store: opts.Store},
		session:   opts.Session,
		navigator: nav,
		onUnauth:  opts.OnUnauthorized,
		logger:    logger.With("component", "auth_transport"),
	}
}

// RoundTrip implements http.RoundTripper. The caller's request is never mutated.
func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	out := req.Clone(ctx)

	if !explicitAuthorization(ctx, out) {
		if tok, err := t.tokens.Token(); err == nil {
			tok.SetAuthHeader(out)
		}
	}
	if out.Header.Get(RequestIDHeader) == "" {
		out.Header.Set(RequestIDHeader, uuid.NewString())
	}

	resp, err := t.base.RoundTrip(out)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && !teardownSkipped(ctx) {
		t.teardown(ctx, req)
	}
	return resp, nil
}

// teardown removes persisted credentials, clears in-memory state and sends the user to login.
func (t *AuthTransport) teardown(ctx context.Context, req *http.Request) {
	t.logger.InfoContext(ctx, "backend rejected credentials; ending session",
		"method", req.Method, "path", req.URL.Path)

	if t.store != nil {
		for _, key := range domainauth.SessionKeys() {
			t.store.Remove(key)
		}
	}
	if t.session != nil {
		t.session.Clear()
	}
	t.navigator.Navigate(ctx, navigation.Login(""))

	if t.onUnauth != nil {
		t.onUnauth(ctx, req)
	}
}
