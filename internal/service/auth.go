package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	domainauth "github.com/target/inventory-console/internal/domain/auth"
	apperrors "github.com/target/inventory-console/internal/errors"
	"github.com/target/inventory-console/internal/navigation"
	"github.com/target/inventory-console/internal/observability/metrics"
	"github.com/target/inventory-console/internal/observability/statsd"
	"github.com/target/inventory-console/internal/ports"
)

// DefaultRevokeTimeout bounds the best-effort revoke call made on logout.
const DefaultRevokeTimeout = 5 * time.Second

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	API       ports.AuthAPI
	Store     ports.KeyValueStore
	State     *SessionState
	Navigator navigation.Navigator
	Metrics   statsd.Sink
	Logger    *slog.Logger

	// RevokeTimeout bounds the background revoke; DefaultRevokeTimeout when zero.
	RevokeTimeout time.Duration
}

// AuthService owns the session lifecycle: it is the only writer of persisted
// tokens and drives the SessionState through login, refresh, and logout.
type AuthService struct {
	api           ports.AuthAPI
	store         ports.KeyValueStore
	state         *SessionState
	navigator     navigation.Navigator
	metrics       statsd.Sink
	logger        *slog.Logger
	revokeTimeout time.Duration

	refreshGroup singleflight.Group
	background   sync.WaitGroup

	// mu serializes session transitions. generation changes on every
	// establish and teardown, so a late identity lookup can tell it is stale.
	// State changes are published with mu held; observers must not call back in.
	mu         sync.Mutex
	generation uint64
}

// NewAuthService constructs a new AuthService. API and Store are required.
// A backend 401 seen by the transport tap already navigates to login, so a failed
// refresh only navigates again when the state was still set after the call.
func NewAuthService(opts AuthServiceOptions) *AuthService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	state := opts.State
	if state == nil {
		state = NewSessionState(opts.Store, logger)
	}
	nav := opts.Navigator
	if nav == nil {
		nav = navigation.Discard
	}
	timeout := opts.RevokeTimeout
	if timeout <= 0 {
		timeout = DefaultRevokeTimeout
	}
	return &AuthService{
		api:           opts.API,
		store:         opts.Store,
		state:         state,
		navigator:     nav,
		metrics:       opts.Metrics,
		logger:        logger.With("component", "auth_service"),
		revokeTimeout: timeout,
	}
}

// State returns the SessionState this service drives.
func (s *AuthService) State() *SessionState {
	return s.state
}

// Login authenticates with email and password. On failure nothing changes.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domainauth.TokenResponse, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, apperrors.ValidationField("email", "email is required")
	}
	if password == "" {
		return nil, apperrors.ValidationField("password", "password is required")
	}

	start := time.Now()
	resp, err := s.api.Login(ctx, domainauth.LoginRequest{Email: email, Password: password})
	s.emit(metrics.OpLogin, start, err)
	if err != nil {
		s.logger.InfoContext(ctx, "login failed", "email", email, "error", err)
		return nil, err
	}
	if err := checkTokenResponse(resp); err != nil {
		s.logger.WarnContext(ctx, "login response rejected", "email", email, "error", err)
		return nil, err
	}

	s.establish(resp)
	s.logger.InfoContext(ctx, "login succeeded", "user_id", resp.User.ID, "role", resp.User.Role)
	return resp, nil
}

// Register creates an account and signs in as it.
func (s *AuthService) Register(ctx context.Context, req domainauth.RegisterRequest) (*domainauth.TokenResponse, error) {
	if err := validateRegistration(&req); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := s.api.Register(ctx, req)
	s.emit(metrics.OpRegister, start, err)
	if err != nil {
		s.logger.InfoContext(ctx, "registration failed", "email", req.Email, "error", err)
		return nil, err
	}
	if err := checkTokenResponse(resp); err != nil {
		s.logger.WarnContext(ctx, "registration response rejected", "email", req.Email, "error", err)
		return nil, err
	}

	s.establish(resp)
	return resp, nil
}

// checkTokenResponse rejects a success response that carries no usable session.
func checkTokenResponse(resp *domainauth.TokenResponse) error {
	if resp == nil || resp.AccessToken == "" {
		return apperrors.Internal("backend returned no access token")
	}
	if resp.User.ID == "" {
		return apperrors.Internal("backend returned no user")
	}
	return nil
}

// validateRegistration normalizes req in place and checks required fields.
func validateRegistration(req *domainauth.RegisterRequest) error {
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" {
		return apperrors.ValidationField("email", "email is required")
	}
	if req.Password == "" {
		return apperrors.ValidationField("password", "password is required")
	}
	if req.ConfirmPassword != "" && req.ConfirmPassword != req.Password {
		return apperrors.ValidationField("confirmPassword", "passwords do not match")
	}
	if req.Role != "" {
		role, err := domainauth.ParseRole(string(req.Role))
		if err != nil {
			return apperrors.ValidationField("role", err.Error())
		}
		req.Role = role
	}
	return nil
}

// Logout ends the session locally and sends the user to the login view.
// A best-effort revoke runs in the background carrying the access token held
// before teardown; Logout never waits for it.
func (s *AuthService) Logout(ctx context.Context) {
	s.logout(ctx, true)
}

func (s *AuthService) logout(ctx context.Context, navigate bool) {
	if email := s.state.Email(); email != "" {
		token, _ := s.store.Get(domainauth.AccessTokenKey)
		s.revokeInBackground(ctx, email, token)
	}

	s.teardown()
	s.emit(metrics.OpLogout, time.Time{}, nil)
	if navigate {
		s.navigator.Navigate(ctx, navigation.Login(""))
	}
}

func (s *AuthService) revokeInBackground(ctx context.Context, email, token string) {
	s.background.Add(1)
	go func() {
		defer s.background.Done()

		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.revokeTimeout)
		defer cancel()

		start := time.Now()
		err := s.api.RevokeToken(rctx, token, domainauth.RevokeTokenRequest{Email: email})
		s.emit(metrics.OpRevoke, start, err)
		if err != nil {
			s.logger.DebugContext(rctx, "token revoke failed", "error", err)
		}
	}()
}

// RefreshToken exchanges the persisted refresh token for a new pair.
// With no refresh token it returns (nil, nil) without calling the backend.
// Any backend failure logs the user out and also returns (nil, nil).
// Concurrent callers share one in-flight exchange.
func (s *AuthService) RefreshToken(ctx context.Context) (*domainauth.TokenResponse, error) {
	refresh, ok := s.store.Get(domainauth.RefreshTokenKey)
	if !ok || refresh == "" {
		return nil, nil //nolint:nilnil // no session to refresh is not an error
	}

	v, _, _ := s.refreshGroup.Do(refresh, func() (any, error) {
		wasSignedIn := s.state.Authenticated()
		start := time.Now()
		resp, err := s.api.RefreshToken(ctx, domainauth.RefreshTokenRequest{RefreshToken: refresh})
		if err == nil {
			err = checkTokenResponse(resp)
		}
		s.emit(metrics.OpRefresh, start, err)
		if err != nil {
			s.logger.InfoContext(ctx, "token refresh failed; logging out", "error", err)
			// Cleared during the call means the transport already sent the user to login.
			s.logout(ctx, !wasSignedIn || s.state.Authenticated())
			return (*domainauth.TokenResponse)(nil), nil
		}
		s.establish(resp)
		return resp, nil
	})

	resp, _ := v.(*domainauth.TokenResponse)
	return resp, nil
}

// GetCurrentIdentity fetches the identity bound to the access token and replaces
// the session state with it. On failure the session is torn down (without
// navigation) and the error returned. A lookup that finishes after the session
// it started under has ended or been replaced changes nothing.
func (s *AuthService) GetCurrentIdentity(ctx context.Context) (*domainauth.Identity, error) {
	return s.lookupIdentity(ctx, s.snapshot())
}

// sessionMark identifies the session a background call started under.
type sessionMark struct {
	generation uint64
	token      string
}

func (s *AuthService) snapshot() sessionMark {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, _ := s.store.Get(domainauth.AccessTokenKey)
	return sessionMark{generation: s.generation, token: token}
}

// currentLocked reports whether mark still describes the live session. Callers hold mu.
func (s *AuthService) currentLocked(mark sessionMark) bool {
	if s.generation != mark.generation {
		return false
	}
	token, _ := s.store.Get(domainauth.AccessTokenKey)
	return token == mark.token
}

func (s *AuthService) lookupIdentity(ctx context.Context, mark sessionMark) (*domainauth.Identity, error) {
	start := time.Now()
	id, err := s.api.Me(ctx)
	s.emit(metrics.OpMe, start, err)

	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.currentLocked(mark)
	if err != nil {
		if current {
			s.logger.InfoContext(ctx, "identity lookup failed; clearing session", "error", err)
			s.teardownLocked()
		}
		return nil, err
	}
	if !current {
		s.logger.InfoContext(ctx, "discarding identity lookup for an ended session")
		return nil, apperrors.Unauthorized("session ended during identity lookup")
	}

	normalized := id.Normalized()
	s.state.Set(normalized)
	return &normalized, nil
}

// GetAccessToken returns the persisted access token.
func (s *AuthService) GetAccessToken() (string, bool) {
	return s.store.Get(domainauth.AccessTokenKey)
}

// RestoreSession rebuilds the session from persisted entries. When both an access
// token and a readable identity snapshot exist, the state is set immediately and
// validated against the backend in the background. Reports whether it restored.
func (s *AuthService) RestoreSession(ctx context.Context) bool {
	token, hasToken := s.store.Get(domainauth.AccessTokenKey)
	raw, hasUser := s.store.Get(domainauth.CurrentUserKey)
	if !hasToken || token == "" || !hasUser {
		return false
	}

	var id domainauth.Identity
	err := json.Unmarshal([]byte(raw), &id)
	if err == nil && !restorable(id) {
		err = errors.New("identity snapshot has no user")
	}
	if err != nil {
		s.logger.WarnContext(ctx, "ignoring unreadable identity snapshot", "error", err)
		s.emit(metrics.OpRestore, time.Time{}, err)
		return false
	}

	s.mu.Lock()
	mark := sessionMark{generation: s.generation, token: token}
	if !s.currentLocked(mark) {
		s.mu.Unlock()
		return false
	}
	s.state.Set(id.Normalized())
	s.mu.Unlock()
	s.emit(metrics.OpRestore, time.Time{}, nil)

	s.background.Add(1)
	go func() {
		defer s.background.Done()
		if _, err := s.lookupIdentity(context.WithoutCancel(ctx), mark); err != nil {
			s.logger.InfoContext(ctx, "restored session rejected by backend", "error", err)
		}
	}()
	return true
}

// restorable reports whether a decoded snapshot names a real user. A "null" or
// "{}" snapshot decodes without error but is not a session.
func restorable(id domainauth.Identity) bool {
	return (id.ID != "" || id.Email != "") && id.Role.Valid()
}

// Wait blocks until background revoke and validation calls finish.
func (s *AuthService) Wait() {
	s.background.Wait()
}

// establish persists the token pair and then publishes the identity.
func (s *AuthService) establish(resp *domainauth.TokenResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.store.Set(domainauth.AccessTokenKey, resp.AccessToken)
	s.store.Set(domainauth.RefreshTokenKey, resp.RefreshToken)
	s.state.Set(resp.User.Normalized())
}

// teardown removes every persisted session entry and clears the state. Idempotent.
func (s *AuthService) teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardownLocked()
}

func (s *AuthService) teardownLocked() {
	s.generation++
	for _, key := range domainauth.SessionKeys() {
		s.store.Remove(key)
	}
	s.state.Clear()
}

func (s *AuthService) emit(op string, start time.Time, err error) {
	ev := metrics.SessionEvent{Operation: op, Result: metrics.ResultFor(err), Err: err}
	if !start.IsZero() {
		ev.Duration = time.Since(start)
	}
	metrics.EmitSessionEvent(s.metrics, ev)
}
