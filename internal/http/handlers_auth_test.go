package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/inventory-console/internal/adapters/inventoryapi"
	domainauth "github.com/target/inventory-console/internal/domain/auth"
)

func formHeaders() map[string]string {
	return map[string]string{"Content-Type": "application/x-www-form-urlencoded"}
}

func TestLogin_FormRedirectsToReturnURL(t *testing.T) {
	f := newConsoleFixture(t)
	form := url.Values{"email": {"a@b.com"}, "password": {"pw"}, "returnUrl": {"/actions"}}

	rec := f.do(http.MethodPost, "/auth/login", form.Encode(), formHeaders())

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/actions", rec.Header().Get("Location"))
	assert.True(t, f.state.Authenticated())
	tok, ok := f.store.Get(domainauth.AccessTokenKey)
	require.True(t, ok)
	assert.Equal(t, "AT1", tok)
}

func TestLogin_UnsafeReturnURLFallsBackToRoot(t *testing.T) {
	f := newConsoleFixture(t)
	form := url.Values{"email": {"a@b.com"}, "password": {"pw"}, "returnUrl": {"https://evil.example/"}}

	rec := f.do(http.MethodPost, "/auth/login", form.Encode(), formHeaders())

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestLogin_JSONReturnsUser(t *testing.T) {
	f := newConsoleFixture(t)

	rec := f.do(http.MethodPost, "/auth/login",
		`{"email":"a@b.com","password":"pw","returnUrl":"/profile"}`, jsonHeaders)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		User       domainauth.Identity `json:"user"`
		RedirectTo string              `json:"redirect_to"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Mock User", body.User.FullName)
	assert.Equal(t, "/profile", body.RedirectTo)
}

func TestLogin_BackendRejection(t *testing.T) {
	f := newConsoleFixture(t)
	f.api.LoginFunc = func(context.Context, domainauth.LoginRequest) (*domainauth.TokenResponse, error) {
		return nil, &inventoryapi.APIError{StatusCode: http.StatusUnauthorized, Message: "Invalid credentials"}
	}

	rec := f.do(http.MethodPost, "/auth/login", `{"email":"a@b.com","password":"bad"}`, jsonHeaders)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unauthorized", body.Error)
	assert.Contains(t, body.Message, "Invalid credentials")
	assert.False(t, f.state.Authenticated())
	_, ok := f.store.Get(domainauth.AccessTokenKey)
	assert.False(t, ok)
}

func TestLogin_ValidationError(t *testing.T) {
	f := newConsoleFixture(t)

	rec := f.do(http.MethodPost, "/auth/login", `{"email":"a@b.com","password":""}`, jsonHeaders)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "validation", body.Error)
	assert.Equal(t, "password", body.Field)
	assert.Zero(t, f.api.TotalCalls())
}

func TestLogin_UnknownJSONField(t *testing.T) {
	f := newConsoleFixture(t)

	rec := f.do(http.MethodPost, "/auth/login", `{"email":"a@b.com","password":"pw","extra":1}`, jsonHeaders)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_json")
}

func TestLogout_RedirectsToLogin(t *testing.T) {
	f := newConsoleFixture(t)
	f.signIn(domainauth.RoleManager)

	rec := f.do(http.MethodPost, "/auth/logout", "", nil)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	assert.False(t, f.state.Authenticated())
	for _, k := range domainauth.SessionKeys() {
		_, ok := f.store.Get(k)
		assert.False(t, ok, k)
	}
	_, pending := f.recorder.Pending()
	assert.False(t, pending, "logout consumes its own navigation")
}

func TestLogout_AJAX(t *testing.T) {
	f := newConsoleFixture(t)
	f.signIn(domainauth.RoleViewer)

	rec := f.do(http.MethodPost, "/auth/logout", "", map[string]string{"X-Requested-With": "XMLHttpRequest"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"success","redirect_to":"/login"}`, rec.Body.String())
}

func TestRefresh(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		f := newConsoleFixture(t)
		f.signIn(domainauth.RoleViewer)
		f.api.DefaultResponse.AccessToken = "AT2"

		rec := f.do(http.MethodPost, "/auth/refresh", "", nil)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		tok, _ := f.store.Get(domainauth.AccessTokenKey)
		assert.Equal(t, "AT2", tok)
	})

	t.Run("no session", func(t *testing.T) {
		f := newConsoleFixture(t)

		rec := f.do(http.MethodPost, "/auth/refresh", "", nil)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Zero(t, f.api.TotalCalls())
	})

	t.Run("rejected refresh signs out", func(t *testing.T) {
		f := newConsoleFixture(t)
		f.signIn(domainauth.RoleViewer)
		f.api.RefreshFunc = func(context.Context, domainauth.RefreshTokenRequest) (*domainauth.TokenResponse, error) {
			return nil, errors.New("refresh token expired")
		}

		rec := f.do(http.MethodPost, "/auth/refresh", "", nil)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.False(t, f.state.Authenticated())
		_, pending := f.recorder.Pending()
		assert.False(t, pending)
	})
}

func TestStatus(t *testing.T) {
	t.Run("anonymous", func(t *testing.T) {
		f := newConsoleFixture(t)

		rec := f.do(http.MethodGet, "/auth/status", "", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t,
			`{"authenticated":false,"isAdmin":false,"isManagerOrAbove":false,"isOperatorOrAbove":false}`,
			rec.Body.String())
	})

	t.Run("manager", func(t *testing.T) {
		f := newConsoleFixture(t)
		f.signIn(domainauth.RoleManager)

		rec := f.do(http.MethodGet, "/auth/status", "", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		var body statusResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.True(t, body.Authenticated)
		require.NotNil(t, body.User)
		assert.Equal(t, "a@b.com", body.User.Email)
		assert.False(t, body.IsAdmin)
		assert.True(t, body.IsManagerOrAbove)
		assert.True(t, body.IsOperatorOrAbove)
	})
}

func TestLoginView(t *testing.T) {
	f := newConsoleFixture(t)

	rec := f.do(http.MethodGet, "/login?returnUrl=%2Factions", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"view":"login","returnUrl":"/actions"}`, rec.Body.String())

	f.signIn(domainauth.RoleOperator)
	rec = f.do(http.MethodGet, "/login?returnUrl=%2Factions", "", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/actions", rec.Header().Get("Location"))
}
