package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"www.github.com/Wanderer0074348/MokabuLens/src/mocks"
	"www.github.com/Wanderer0074348/MokabuLens/src/models"
)

func setupTestHandler(t *testing.T) (*gin.Engine, *mocks.MockIdentityProvider, *mocks.MockStateStore, *TokenCodec) {
	gin.SetMode(gin.TestMode)

	service, provider, states, codec := setupTestService(t)
	handler := NewHandler(service, nil)

	r := gin.New()
	r.GET("/api/auth/signin/:provider", handler.SignIn)
	r.POST("/api/auth/signin/:provider", handler.SignIn)
	r.GET("/api/auth/callback/:provider", handler.Callback)
	r.POST("/api/auth/signout", handler.SignOut)
	r.GET("/api/auth/session", handler.Session)
	r.GET("/api/auth/providers", handler.Providers)

	return r, provider, states, codec
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandler_SignInRedirectsToProvider(t *testing.T) {
	r, provider, states, _ := setupTestHandler(t)
	states.On("Save", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	provider.On("AuthCodeURL", mock.Anything).Return("https://accounts.example/auth?state=abc")

	w := serve(r, httptest.NewRequest(http.MethodGet, "/api/auth/signin/google?callbackUrl=%2Fdashboard", nil))

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://accounts.example/auth?state=abc", w.Header().Get("Location"))
}

func TestHandler_SignInJSON(t *testing.T) {
	r, provider, states, _ := setupTestHandler(t)
	states.On("Save", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	provider.On("AuthCodeURL", mock.Anything).Return("https://accounts.example/auth")

	w := serve(r, httptest.NewRequest(http.MethodGet, "/api/auth/signin/google?json=true", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var result models.AuthCallbackResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.OK)
	assert.Equal(t, "https://accounts.example/auth", result.URL)
}

func TestHandler_SignInFailureRedirectsToSignInPage(t *testing.T) {
	r, _, states, _ := setupTestHandler(t)
	states.On("Save", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("redis down"))

	w := serve(r, httptest.NewRequest(http.MethodGet, "/api/auth/signin/google?callbackUrl=%2Fdashboard", nil))

	require.Equal(t, http.StatusFound, w.Code)
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/signin", loc.Path)
	assert.Equal(t, ErrorOAuthSignin, loc.Query().Get("error"))
	assert.Equal(t, "/dashboard", loc.Query().Get("callbackUrl"))
}

func TestHandler_CallbackSetsCookieAndRedirects(t *testing.T) {
	r, provider, states, codec := setupTestHandler(t)
	states.On("Consume", mock.Anything, "st").Return(&models.OAuthState{Provider: ProviderGoogle, ReturnPath: "/dashboard"}, nil)
	provider.On("Exchange", mock.Anything, "cd").Return(verifiedIdentity, nil)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/api/auth/callback/google?state=st&code=cd", nil))

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/dashboard", w.Header().Get("Location"))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, DefaultCookieName, cookies[0].Name)

	session, err := codec.Verify(cookies[0].Value)
	require.NoError(t, err)
	assert.Equal(t, "kabu@example.com", session.User.Email)
}

func TestHandler_CallbackFailureNeverSetsCookie(t *testing.T) {
	r, _, states, _ := setupTestHandler(t)
	states.On("Consume", mock.Anything, "st").Return(nil, ErrStateNotFound)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/api/auth/callback/google?state=st&code=cd", nil))

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/signin?error=OAuthCallback", w.Header().Get("Location"))
	assert.Empty(t, w.Result().Cookies())
}

func TestHandler_SignOut(t *testing.T) {
	r, _, _, _ := setupTestHandler(t)

	w := serve(r, httptest.NewRequest(http.MethodPost, "/api/auth/signout?callbackUrl=%2Fsignin", nil))

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/signin", w.Header().Get("Location"))
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestHandler_SignOutFailureIsSurfaced(t *testing.T) {
	r, _, _, _ := setupTestHandler(t)

	w := serve(r, httptest.NewRequest(http.MethodPost, "/api/auth/signout?callbackUrl=https%3A%2F%2Fevil.example", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "local absolute path")
}

func TestHandler_SessionWithoutToken(t *testing.T) {
	r, _, _, _ := setupTestHandler(t)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/api/auth/session", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{}`, w.Body.String())
}

func TestHandler_SessionWithToken(t *testing.T) {
	r, _, _, codec := setupTestHandler(t)
	token, err := codec.Issue(models.User{ID: "1", Email: "kabu@example.com"}, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: token})
	w := serve(r, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		User    models.User `json:"user"`
		Expires time.Time   `json:"expires"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "kabu@example.com", body.User.Email)
	assert.Equal(t, "", body.User.Name)
	assert.WithinDuration(t, time.Now().Add(time.Hour), body.Expires, 2*time.Second)
}

func TestHandler_Providers(t *testing.T) {
	r, _, _, _ := setupTestHandler(t)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/api/auth/providers", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"google":{"id":"google","signin_url":"/api/auth/signin/google"}}`, w.Body.String())
}

func TestHandler_SignOutDefaultsToSignInPage(t *testing.T) {
	r, _, _, _ := setupTestHandler(t)

	w := serve(r, httptest.NewRequest(http.MethodPost, "/api/auth/signout", nil))

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/signin", w.Header().Get("Location"))
}

func TestHandler_CallbackFailureKeepsReturnTarget(t *testing.T) {
	r, provider, states, _ := setupTestHandler(t)
	states.On("Consume", mock.Anything, "st").Return(&models.OAuthState{Provider: ProviderGoogle, ReturnPath: "/dashboard"}, nil)
	provider.On("Exchange", mock.Anything, "cd").Return(nil, errors.New("invalid_grant"))

	w := serve(r, httptest.NewRequest(http.MethodGet, "/api/auth/callback/google?state=st&code=cd", nil))

	require.Equal(t, http.StatusFound, w.Code)
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/signin", loc.Path)
	assert.Equal(t, ErrorOAuthCallback, loc.Query().Get("error"))
	assert.Equal(t, "/dashboard", loc.Query().Get("callbackUrl"))
	assert.Empty(t, w.Result().Cookies())
}

func TestHandler_SignInReadsFormBody(t *testing.T) {
	r, provider, states, _ := setupTestHandler(t)
	states.On("Save", mock.Anything, mock.MatchedBy(func(s *models.OAuthState) bool {
		return s.ReturnPath == "/dashboard"
	}), mock.Anything).Return(nil)
	provider.On("AuthCodeURL", mock.Anything).Return("https://accounts.example/auth")

	form := url.Values{}
	form.Set("callbackUrl", "/dashboard")
	form.Set("json", "true")
	req := httptest.NewRequest(http.MethodPost, "/api/auth/signin/google", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := serve(r, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true,"url":"https://accounts.example/auth"}`, w.Body.String())
	states.AssertExpectations(t)
}

func TestHandler_SignOutReadsFormBody(t *testing.T) {
	r, _, _, _ := setupTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/signout", strings.NewReader("callbackUrl=%2Fdashboard"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := serve(r, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/dashboard", w.Header().Get("Location"))
}
