package httpx

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/target/inventory-console/internal/adapters/kvstore"
	domainauth "github.com/target/inventory-console/internal/domain/auth"
	apperrors "github.com/target/inventory-console/internal/errors"
	fakes "github.com/target/inventory-console/internal/mocks/auth"
	"github.com/target/inventory-console/internal/navigation"
	"github.com/target/inventory-console/internal/service"
)

type stubUsers struct {
	users     []domainauth.UserListItem
	err       error
	roleCalls []string
}

func (s *stubUsers) List(context.Context) ([]domainauth.UserListItem, error) {
	return s.users, s.err
}

func (s *stubUsers) Get(_ context.Context, id string) (*domainauth.UserListItem, error) {
	if s.err != nil {
		return nil, s.err
	}
	for i := range s.users {
		if s.users[i].ID == id {
			return &s.users[i], nil
		}
	}
	return nil, apperrors.NotFoundf("user %s not found", id)
}

func (s *stubUsers) ChangeRole(_ context.Context, id, role string) (*domainauth.MessageResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.roleCalls = append(s.roleCalls, id+":"+role)
	return &domainauth.MessageResponse{Message: "Role updated"}, nil
}

// consoleFixture wires the real session core against a fake backend.
type consoleFixture struct {
	api      *fakes.FakeAuthAPI
	store    *kvstore.Memory
	recorder *navigation.Recorder
	auth     *service.AuthService
	state    *service.SessionState
	users    *stubUsers
	handler  http.Handler
}

func newConsoleFixture(t *testing.T) *consoleFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := kvstore.NewMemory()
	recorder := navigation.NewRecorder()
	api := fakes.NewFakeAuthAPI()
	state := service.NewSessionState(store, logger)
	auth := service.NewAuthService(service.AuthServiceOptions{
		API:       api,
		Store:     store,
		State:     state,
		Navigator: recorder,
		Logger:    logger,
	})
	t.Cleanup(auth.Wait)

	users := &stubUsers{users: []domainauth.UserListItem{
		{ID: "1", Email: "a@b.com", Role: domainauth.RoleViewer},
		{ID: "2", Email: "boss@b.com", Role: domainauth.RoleAdmin},
	}}

	f := &consoleFixture{
		api:      api,
		store:    store,
		recorder: recorder,
		auth:     auth,
		state:    state,
		users:    users,
	}
	f.handler = NewRouter(RouterServices{
		Auth:       auth,
		Users:      users,
		State:      state,
		Gate:       service.NewGate(state, recorder),
		Navigation: recorder,
		Logger:     logger,
	})
	return f
}

func (f *consoleFixture) signIn(role domainauth.Role) {
	f.state.Set(domainauth.Identity{ID: "1", Email: "a@b.com", Role: role, FullName: "Mock User"})
	f.store.Set(domainauth.AccessTokenKey, "AT1")
	f.store.Set(domainauth.RefreshTokenKey, "RT1")
}

func (f *consoleFixture) do(method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

var jsonHeaders = map[string]string{ //nolint:gochecknoglobals // test fixture
	"Content-Type": "application/json",
	"Accept":       "application/json",
}

// captureHandler records log messages.
type captureHandler struct {
	lines *[]string
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	*h.lines = append(*h.lines, r.Message)
	return nil
}

func (h *captureHandler) WithAttrs([]slog.Attr) slog.Handler { return h }

func (h *captureHandler) WithGroup(string) slog.Handler { return h }
