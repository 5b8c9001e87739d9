package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/inventory-console/internal/adapters/inventoryapi"
	"github.com/target/inventory-console/internal/adapters/kvstore"
	domainauth "github.com/target/inventory-console/internal/domain/auth"
	apperrors "github.com/target/inventory-console/internal/errors"
	"github.com/target/inventory-console/internal/mocks"
	fakes "github.com/target/inventory-console/internal/mocks/auth"
	"github.com/target/inventory-console/internal/navigation"
	"github.com/target/inventory-console/internal/observability/statsd"
	"github.com/target/inventory-console/internal/ports"
	"github.com/target/inventory-console/internal/testutil"
)

type authFixture struct {
	api       *fakes.FakeAuthAPI
	store     *kvstore.Memory
	state     *SessionState
	navigator *navigation.Recorder
	metrics   *statsd.Recorder
	svc       *AuthService
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	return newAuthFixtureWithAPI(t, fakes.NewFakeAuthAPI())
}

func newAuthFixtureWithAPI(t *testing.T, api *fakes.FakeAuthAPI) *authFixture {
	t.Helper()
	f := &authFixture{
		api:       api,
		store:     kvstore.NewMemory(),
		navigator: navigation.NewRecorder(),
		metrics:   &statsd.Recorder{},
	}
	f.state = NewSessionState(f.store, nil)
	f.svc = NewAuthService(AuthServiceOptions{
		API:       f.api,
		Store:     f.store,
		State:     f.state,
		Navigator: f.navigator,
		Metrics:   f.metrics,
	})
	t.Cleanup(f.svc.Wait)
	return f
}

func (f *authFixture) seedSession(t *testing.T, id domainauth.Identity) {
	t.Helper()
	f.store.Set(domainauth.AccessTokenKey, "AT1")
	f.store.Set(domainauth.RefreshTokenKey, "RT1")
	f.state.Set(id)
}

func (f *authFixture) assertLoggedOut(t *testing.T) {
	t.Helper()
	for _, key := range domainauth.SessionKeys() {
		_, ok := f.store.Get(key)
		assert.False(t, ok, "store still holds %s", key)
	}
	assert.False(t, f.state.Authenticated())
}

func unauthorized() error {
	return &inventoryapi.APIError{StatusCode: http.StatusUnauthorized}
}

func TestAuthService_LoginManagerScenario(t *testing.T) {
	f := newAuthFixture(t)
	manager := testutil.NewIdentity().WithRole(domainauth.RoleManager).Build()
	f.api.DefaultResponse = *testutil.NewTokenResponse().WithUser(manager).Build()

	resp, err := f.svc.Login(context.Background(), "a@b.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "AT1", resp.AccessToken)

	token, ok := f.svc.GetAccessToken()
	require.True(t, ok)
	assert.Equal(t, "AT1", token)
	rt, _ := f.store.Get(domainauth.RefreshTokenKey)
	assert.Equal(t, "RT1", rt)

	assert.True(t, f.state.Authenticated())
	assert.True(t, f.state.IsManagerOrAbove())
	assert.True(t, f.state.IsOperatorOrAbove())
	assert.False(t, f.state.IsAdmin())

	raw, ok := f.store.Get(domainauth.CurrentUserKey)
	require.True(t, ok)
	var snap domainauth.Identity
	require.NoError(t, json.Unmarshal([]byte(raw), &snap))
	assert.Equal(t, manager, snap)

	assert.Len(t, f.metrics.Find("session.operation"), 1)
}

func TestAuthService_LoginFailureChangesNothing(t *testing.T) {
	ctrl := gomock.NewController(t)
	api := mocks.NewMockAuthAPI(ctrl)
	rejected := &inventoryapi.APIError{StatusCode: http.StatusBadRequest, Message: "Invalid credentials"}
	api.EXPECT().
		Login(gomock.Any(), domainauth.LoginRequest{Email: "a@b.com", Password: "bad"}).
		Return(nil, rejected).
		Times(1)

	store := kvstore.NewMemory()
	state := NewSessionState(store, nil)
	nav := navigation.NewRecorder()
	svc := NewAuthService(AuthServiceOptions{API: api, Store: store, State: state, Navigator: nav})

	resp, err := svc.Login(context.Background(), " a@b.com ", "bad")
	require.ErrorIs(t, err, rejected)
	assert.Nil(t, resp)
	assert.Zero(t, store.Len())
	assert.False(t, state.Authenticated())
	assert.Empty(t, nav.History())
}

func TestAuthService_LoginValidation(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.svc.Login(context.Background(), "  ", "pw")
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, "email", apperrors.GetField(err))

	_, err = f.svc.Login(context.Background(), "a@b.com", "")
	assert.Equal(t, "password", apperrors.GetField(err))

	assert.Zero(t, f.api.TotalCalls())
}

func TestAuthService_Register(t *testing.T) {
	f := newAuthFixture(t)
	var sent domainauth.RegisterRequest
	f.api.RegisterFunc = func(_ context.Context, req domainauth.RegisterRequest) (*domainauth.TokenResponse, error) {
		sent = req
		return testutil.NewTokenResponse().WithTokens("AT9", "RT9").Build(), nil
	}

	_, err := f.svc.Register(context.Background(), domainauth.RegisterRequest{
		Email: "a@b.com", Password: "pw", ConfirmPassword: "pw", Role: "operator",
	})
	require.NoError(t, err)
	assert.Equal(t, domainauth.RoleOperator, sent.Role)

	token, _ := f.svc.GetAccessToken()
	assert.Equal(t, "AT9", token)
	assert.True(t, f.state.Authenticated())
}

func TestAuthService_RegisterValidation(t *testing.T) {
	f := newAuthFixture(t)
	tests := []struct {
		name  string
		req   domainauth.RegisterRequest
		field string
	}{
		{"missing email", domainauth.RegisterRequest{Password: "pw"}, "email"},
		{"missing password", domainauth.RegisterRequest{Email: "a@b.com"}, "password"},
		{"mismatch", domainauth.RegisterRequest{Email: "a@b.com", Password: "pw", ConfirmPassword: "px"}, "confirmPassword"},
		{"bad role", domainauth.RegisterRequest{Email: "a@b.com", Password: "pw", Role: "Root"}, "role"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Register(context.Background(), tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.field, apperrors.GetField(err))
		})
	}
	assert.Zero(t, f.api.TotalCalls())
}

func TestAuthService_LogoutTearsDownAndRevokesWithCapturedToken(t *testing.T) {
	f := newAuthFixture(t)
	f.seedSession(t, testutil.NewIdentity().Build())

	release := make(chan struct{})
	f.api.RevokeFunc = func(context.Context, string, domainauth.RevokeTokenRequest) error {
		<-release
		return nil
	}

	f.svc.Logout(context.Background())

	// Teardown is complete before the revoke has finished.
	f.assertLoggedOut(t)
	assert.Equal(t, []navigation.Target{navigation.Login("")}, f.navigator.History())

	close(release)
	f.svc.Wait()
	assert.Equal(t, []fakes.RevokeCall{{AccessToken: "AT1", Email: "a@b.com"}}, f.api.Revokes())
}

func TestAuthService_LogoutSwallowsRevokeFailure(t *testing.T) {
	f := newAuthFixture(t)
	f.seedSession(t, testutil.NewIdentity().Build())
	f.api.RevokeFunc = func(context.Context, string, domainauth.RevokeTokenRequest) error {
		return errors.New("network down")
	}

	assert.NotPanics(t, func() { f.svc.Logout(context.Background()) })
	f.svc.Wait()
	f.assertLoggedOut(t)
}

func TestAuthService_LogoutWithoutSessionSkipsRevoke(t *testing.T) {
	f := newAuthFixture(t)

	f.svc.Logout(context.Background())
	f.svc.Wait()

	assert.Zero(t, f.api.Calls("RevokeToken"))
	assert.Equal(t, 1, f.navigator.Count(navigation.LoginPath))
	f.assertLoggedOut(t)
}

func TestAuthService_RefreshWithoutTokenMakesNoCall(t *testing.T) {
	f := newAuthFixture(t)

	resp, err := f.svc.RefreshToken(context.Background())
	require.NoError(t, err)
	assert.Nil(t, resp)
	assert.Zero(t, f.api.TotalCalls())
}

func TestAuthService_RefreshSuccessReplacesTokens(t *testing.T) {
	f := newAuthFixture(t)
	f.seedSession(t, testutil.NewIdentity().Build())
	admin := testutil.NewIdentity().WithRole(domainauth.RoleAdmin).Build()
	f.api.RefreshFunc = func(_ context.Context, req domainauth.RefreshTokenRequest) (*domainauth.TokenResponse, error) {
		assert.Equal(t, "RT1", req.RefreshToken)
		return testutil.NewTokenResponse().WithTokens("AT2", "RT2").WithUser(admin).Build(), nil
	}

	resp, err := f.svc.RefreshToken(context.Background())
	require.NoError(t, err)
	require.NotNil(t, resp)

	at, _ := f.store.Get(domainauth.AccessTokenKey)
	rt, _ := f.store.Get(domainauth.RefreshTokenKey)
	assert.Equal(t, "AT2", at)
	assert.Equal(t, "RT2", rt)
	assert.True(t, f.state.IsAdmin())
}

func TestAuthService_RefreshFailureLogsOut(t *testing.T) {
	f := newAuthFixture(t)
	f.seedSession(t, testutil.NewIdentity().Build())
	f.api.RefreshFunc = func(context.Context, domainauth.RefreshTokenRequest) (*domainauth.TokenResponse, error) {
		return nil, unauthorized()
	}

	resp, err := f.svc.RefreshToken(context.Background())
	require.NoError(t, err)
	assert.Nil(t, resp)

	f.svc.Wait()
	f.assertLoggedOut(t)
	assert.Equal(t, 1, f.navigator.Count(navigation.LoginPath))
	assert.Equal(t, 1, f.api.Calls("RevokeToken"))
}

func TestAuthService_RefreshRejectedByTransportNavigatesOnce(t *testing.T) {
	f := newAuthFixture(t)
	f.seedSession(t, testutil.NewIdentity().Build())
	// Mirrors the transport's 401 handling, which clears the session and
	// navigates before the error reaches the caller.
	f.api.RefreshFunc = func(ctx context.Context, _ domainauth.RefreshTokenRequest) (*domainauth.TokenResponse, error) {
		for _, key := range domainauth.SessionKeys() {
			f.store.Remove(key)
		}
		f.state.Clear()
		f.navigator.Navigate(ctx, navigation.Login(""))
		return nil, unauthorized()
	}

	resp, err := f.svc.RefreshToken(context.Background())
	require.NoError(t, err)
	assert.Nil(t, resp)

	f.svc.Wait()
	f.assertLoggedOut(t)
	assert.Equal(t, 1, f.navigator.Count(navigation.LoginPath))
}

func TestAuthService_EmptyTokenResponseIsRejected(t *testing.T) {
	empty := func() *domainauth.TokenResponse { return &domainauth.TokenResponse{} }
	noUser := func() *domainauth.TokenResponse {
		return &domainauth.TokenResponse{TokenPair: domainauth.TokenPair{AccessToken: "AT2", RefreshToken: "RT2"}}
	}

	for name, build := range map[string]func() *domainauth.TokenResponse{"empty": empty, "no user": noUser} {
		t.Run("login "+name, func(t *testing.T) {
			f := newAuthFixture(t)
			f.api.LoginFunc = func(context.Context, domainauth.LoginRequest) (*domainauth.TokenResponse, error) {
				return build(), nil
			}

			resp, err := f.svc.Login(context.Background(), "a@b.com", "pw")
			assertInternal(t, err)
			assert.Nil(t, resp)
			assert.Zero(t, f.store.Len())
			assert.False(t, f.state.Authenticated())
		})

		t.Run("register "+name, func(t *testing.T) {
			f := newAuthFixture(t)
			f.api.RegisterFunc = func(context.Context, domainauth.RegisterRequest) (*domainauth.TokenResponse, error) {
				return build(), nil
			}

			resp, err := f.svc.Register(context.Background(), domainauth.RegisterRequest{
				Email:           "new@b.com",
				Password:        "password1",
				ConfirmPassword: "password1",
				FirstName:       "New",
				LastName:        "User",
			})
			assertInternal(t, err)
			assert.Nil(t, resp)
			assert.Zero(t, f.store.Len())
			assert.False(t, f.state.Authenticated())
		})

		t.Run("refresh "+name, func(t *testing.T) {
			f := newAuthFixture(t)
			f.seedSession(t, testutil.NewIdentity().Build())
			f.api.RefreshFunc = func(context.Context, domainauth.RefreshTokenRequest) (*domainauth.TokenResponse, error) {
				return build(), nil
			}

			resp, err := f.svc.RefreshToken(context.Background())
			require.NoError(t, err)
			assert.Nil(t, resp)
			f.svc.Wait()
			f.assertLoggedOut(t)
			assert.Equal(t, 1, f.navigator.Count(navigation.LoginPath))
		})
	}
}

func assertInternal(t *testing.T, err error) {
	t.Helper()
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrCodeInternal, appErr.Code)
}

func TestAuthService_ConcurrentRefreshSharesOneCall(t *testing.T) {
	f := newAuthFixture(t)
	f.seedSession(t, testutil.NewIdentity().Build())

	release := make(chan struct{})
	f.api.RefreshFunc = func(context.Context, domainauth.RefreshTokenRequest) (*domainauth.TokenResponse, error) {
		<-release
		return testutil.NewTokenResponse().WithTokens("AT2", "RT2").Build(), nil
	}

	const callers = 5
	var wg sync.WaitGroup
	results := make([]*domainauth.TokenResponse, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = f.svc.RefreshToken(context.Background())
		}(i)
	}

	require.Eventually(t, func() bool { return f.api.Calls("RefreshToken") == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, 1, f.api.Calls("RefreshToken"))
	for _, r := range results {
		require.NotNil(t, r)
		assert.Equal(t, "AT2", r.AccessToken)
	}
}

func TestAuthService_GetCurrentIdentityReplacesState(t *testing.T) {
	f := newAuthFixture(t)
	f.seedSession(t, testutil.NewIdentity().Build())
	f.api.MeFunc = func(context.Context) (*domainauth.Identity, error) {
		id := testutil.NewIdentity().WithRole(domainauth.RoleOperator).Build()
		id.FullName = ""
		return &id, nil
	}

	id, err := f.svc.GetCurrentIdentity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Ada Byron", id.FullName)
	assert.Equal(t, domainauth.RoleOperator, f.state.Role())
}

func TestAuthService_GetCurrentIdentityFailureTearsDownWithoutNavigation(t *testing.T) {
	f := newAuthFixture(t)
	f.seedSession(t, testutil.NewIdentity().Build())
	f.api.MeFunc = func(context.Context) (*domainauth.Identity, error) { return nil, unauthorized() }

	_, err := f.svc.GetCurrentIdentity(context.Background())
	require.Error(t, err)
	assert.True(t, inventoryapi.IsUnauthorized(err))

	f.assertLoggedOut(t)
	assert.Empty(t, f.navigator.History())
}

func TestAuthService_RestoreSession(t *testing.T) {
	f := newAuthFixture(t)
	manager := testutil.NewIdentity().WithRole(domainauth.RoleManager).Build()
	snap, err := json.Marshal(manager)
	require.NoError(t, err)
	f.store.Set(domainauth.AccessTokenKey, "AT1")
	f.store.Set(domainauth.CurrentUserKey, string(snap))

	release := make(chan struct{})
	f.api.MeFunc = func(context.Context) (*domainauth.Identity, error) {
		<-release
		return &manager, nil
	}

	require.True(t, f.svc.RestoreSession(context.Background()))
	assert.True(t, f.state.IsManagerOrAbove(), "state is set before validation completes")

	close(release)
	f.svc.Wait()
	assert.Equal(t, 1, f.api.Calls("Me"))
	assert.True(t, f.state.Authenticated())
}

// blockMe makes Me wait for release and reports when it has been entered.
func blockMe(f *authFixture, id domainauth.Identity) (started <-chan struct{}, release chan<- struct{}) {
	entered := make(chan struct{})
	gate := make(chan struct{})
	var once sync.Once
	f.api.MeFunc = func(context.Context) (*domainauth.Identity, error) {
		once.Do(func() { close(entered) })
		<-gate
		return &id, nil
	}
	return entered, gate
}

func (f *authFixture) seedSnapshot(t *testing.T, id domainauth.Identity) {
	t.Helper()
	snap, err := json.Marshal(id)
	require.NoError(t, err)
	f.store.Set(domainauth.AccessTokenKey, "AT1")
	f.store.Set(domainauth.RefreshTokenKey, "RT1")
	f.store.Set(domainauth.CurrentUserKey, string(snap))
}

func TestAuthService_LogoutDuringRestoreValidationStaysLoggedOut(t *testing.T) {
	f := newAuthFixture(t)
	viewer := testutil.NewIdentity().Build()
	f.seedSnapshot(t, viewer)
	started, release := blockMe(f, viewer)

	require.True(t, f.svc.RestoreSession(context.Background()))
	<-started
	f.svc.Logout(context.Background())
	close(release)
	f.svc.Wait()

	f.assertLoggedOut(t)
	assert.Equal(t, 1, f.navigator.Count(navigation.LoginPath))
}

func TestAuthService_LoginDuringRestoreValidationKeepsNewSession(t *testing.T) {
	f := newAuthFixture(t)
	viewer := testutil.NewIdentity().Build()
	f.seedSnapshot(t, viewer)
	started, release := blockMe(f, viewer)

	admin := testutil.NewIdentity().WithRole(domainauth.RoleAdmin).Build()
	f.api.LoginFunc = func(context.Context, domainauth.LoginRequest) (*domainauth.TokenResponse, error) {
		return testutil.NewTokenResponse().WithTokens("AT2", "RT2").WithUser(admin).Build(), nil
	}

	require.True(t, f.svc.RestoreSession(context.Background()))
	<-started
	_, err := f.svc.Login(context.Background(), "a@b.com", "pw")
	require.NoError(t, err)
	close(release)
	f.svc.Wait()

	assert.True(t, f.state.IsAdmin())
	at, ok := f.store.Get(domainauth.AccessTokenKey)
	require.True(t, ok)
	assert.Equal(t, "AT2", at)
}

func TestAuthService_GetCurrentIdentityAfterLogoutIsDiscarded(t *testing.T) {
	f := newAuthFixture(t)
	f.seedSession(t, testutil.NewIdentity().Build())
	started, release := blockMe(f, testutil.NewIdentity().WithRole(domainauth.RoleAdmin).Build())

	errCh := make(chan error, 1)
	go func() {
		_, err := f.svc.GetCurrentIdentity(context.Background())
		errCh <- err
	}()
	<-started
	f.svc.Logout(context.Background())
	close(release)

	err := <-errCh
	require.Error(t, err)
	assert.True(t, apperrors.IsUnauthorized(err))
	f.assertLoggedOut(t)
}

func TestAuthService_RestoreSessionRejectedByBackend(t *testing.T) {
	f := newAuthFixture(t)
	snap, err := json.Marshal(testutil.NewIdentity().Build())
	require.NoError(t, err)
	f.store.Set(domainauth.AccessTokenKey, "AT1")
	f.store.Set(domainauth.RefreshTokenKey, "RT1")
	f.store.Set(domainauth.CurrentUserKey, string(snap))
	f.api.MeFunc = func(context.Context) (*domainauth.Identity, error) { return nil, unauthorized() }

	require.True(t, f.svc.RestoreSession(context.Background()))
	f.svc.Wait()
	f.assertLoggedOut(t)
}

func TestAuthService_RestoreSessionCorruptSnapshot(t *testing.T) {
	f := newAuthFixture(t)
	f.store.Set(domainauth.AccessTokenKey, "AT1")
	f.store.Set(domainauth.CurrentUserKey, "{not json")

	var restored bool
	assert.NotPanics(t, func() { restored = f.svc.RestoreSession(context.Background()) })
	assert.False(t, restored)
	assert.False(t, f.state.Authenticated())
	assert.Zero(t, f.api.TotalCalls())
}

func TestAuthService_RestoreSessionRejectsEmptySnapshot(t *testing.T) {
	tests := []struct {
		name     string
		snapshot string
	}{
		{name: "null", snapshot: "null"},
		{name: "empty object", snapshot: "{}"},
		{name: "missing role", snapshot: `{"id":"1","email":"a@b.com","role":""}`},
		{name: "unknown role", snapshot: `{"id":"1","email":"a@b.com","role":"Owner"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAuthFixture(t)
			f.store.Set(domainauth.AccessTokenKey, "AT1")
			f.store.Set(domainauth.CurrentUserKey, tt.snapshot)

			assert.False(t, f.svc.RestoreSession(context.Background()))
			f.svc.Wait()
			assert.False(t, f.state.Authenticated())
			assert.Zero(t, f.api.TotalCalls())
		})
	}
}

func TestAuthService_RestoreSessionNeedsBothEntries(t *testing.T) {
	f := newAuthFixture(t)
	f.store.Set(domainauth.AccessTokenKey, "AT1")
	assert.False(t, f.svc.RestoreSession(context.Background()))

	f.store.Clear()
	f.store.Set(domainauth.CurrentUserKey, `{"id":"1"}`)
	assert.False(t, f.svc.RestoreSession(context.Background()))
	assert.Zero(t, f.api.TotalCalls())
}

func TestAuthService_UnavailableStoreStillWorksInMemory(t *testing.T) {
	var store ports.KeyValueStore = kvstore.Unavailable{}
	api := fakes.NewFakeAuthAPI()
	svc := NewAuthService(AuthServiceOptions{API: api, Store: store})

	_, err := svc.Login(context.Background(), "a@b.com", "pw")
	require.NoError(t, err)
	assert.True(t, svc.State().Authenticated())
	_, ok := svc.GetAccessToken()
	assert.False(t, ok)

	svc.Logout(context.Background())
	svc.Wait()
	assert.False(t, svc.State().Authenticated())
}
