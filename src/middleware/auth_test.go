package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"www.github.com/Wanderer0074348/MokabuLens/src/auth"
	"www.github.com/Wanderer0074348/MokabuLens/src/metrics"
	"www.github.com/Wanderer0074348/MokabuLens/src/models"
	"www.github.com/Wanderer0074348/MokabuLens/src/router"
)

const testCookie = "session_token"

func setupGateEngine(t *testing.T) (*gin.Engine, *auth.TokenCodec, *prometheus.Registry) {
	gin.SetMode(gin.TestMode)

	codec, err := auth.NewTokenCodec([]byte("middleware-test-signing-key-0123456789"))
	require.NoError(t, err)

	policy := router.NewPolicy([]string{"/", "/dashboard"}, []string{"/static"})
	gate := router.NewAccessGate(policy, codec, "/signin", "/api/auth")

	reg := prometheus.NewRegistry()
	m := NewAuthMiddleware(gate, codec, testCookie, WithAuthRecorder(metrics.NewCollector(reg)))

	r := gin.New()
	r.Use(m.Gate())

	page := func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.JSON(http.StatusOK, gin.H{"user": nil})
			return
		}
		fromCtx, _ := auth.SessionFromContext(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"user": user.Email, "ctx": fromCtx != nil})
	}
	r.GET("/", page)
	r.GET("/dashboard", page)
	r.GET("/dashboard/:section", page)
	r.GET("/signin", page)
	r.GET("/api/auth/callback/:provider", page)
	r.GET("/static/*file", page)

	return r, codec, reg
}

func request(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: testCookie, Value: token})
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGate_RedirectsWithoutSession(t *testing.T) {
	r, _, _ := setupGateEngine(t)

	w := request(r, "/dashboard", "")

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/signin?callbackUrl=%2Fdashboard", w.Header().Get("Location"))
	assert.NotContains(t, w.Body.String(), "user")
}

func TestGate_RedirectsWithInvalidToken(t *testing.T) {
	r, _, _ := setupGateEngine(t)

	w := request(r, "/dashboard/holdings?tab=1", "not-a-token")

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/signin?callbackUrl=%2Fdashboard%2Fholdings%3Ftab%3D1", w.Header().Get("Location"))
}

func TestGate_RedirectsPercentEncodedProtectedPath(t *testing.T) {
	r, _, reg := setupGateEngine(t)

	for _, target := range []string{"/%64ashboard", "/dashboar%64"} {
		w := request(r, target, "")

		assert.Equal(t, http.StatusFound, w.Code, target)
		assert.Equal(t, "/signin?callbackUrl="+url.QueryEscape(target), w.Header().Get("Location"), target)
		assert.NotContains(t, w.Body.String(), "user", target)
	}

	expected := `
# HELP mokabu_gate_decisions_total Access gate decisions by outcome
# TYPE mokabu_gate_decisions_total counter
mokabu_gate_decisions_total{outcome="redirected"} 2
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "mokabu_gate_decisions_total"))
}

func TestGate_AllowsValidSession(t *testing.T) {
	r, codec, _ := setupGateEngine(t)
	token, err := codec.Issue(models.User{ID: "u-1", Email: "kabu@example.com"}, time.Hour)
	require.NoError(t, err)

	w := request(r, "/dashboard", token)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user":"kabu@example.com","ctx":true}`, w.Body.String())
}

func TestGate_NeverRedirectsSignInOrCallback(t *testing.T) {
	r, _, _ := setupGateEngine(t)

	for _, path := range []string{"/signin", "/signin?error=OAuthCallback", "/api/auth/callback/google", "/static/app.css"} {
		w := request(r, path, "")
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestGate_RecordsDecisions(t *testing.T) {
	r, _, reg := setupGateEngine(t)

	request(r, "/dashboard", "")
	request(r, "/signin", "")
	request(r, "/static/app.css", "")

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)

	expected := `
# HELP mokabu_gate_decisions_total Access gate decisions by outcome
# TYPE mokabu_gate_decisions_total counter
mokabu_gate_decisions_total{outcome="allowed"} 2
mokabu_gate_decisions_total{outcome="redirected"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "mokabu_gate_decisions_total"))
}

func TestOptionalSession(t *testing.T) {
	gin.SetMode(gin.TestMode)

	codec, err := auth.NewTokenCodec([]byte("middleware-test-signing-key-0123456789"))
	require.NoError(t, err)
	gate := router.NewAccessGate(router.NewPolicy(nil, nil), codec, "/signin")
	m := NewAuthMiddleware(gate, codec, testCookie)

	r := gin.New()
	r.Use(m.OptionalSession())
	r.GET("/api/whoami", func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.String(http.StatusOK, "anonymous")
			return
		}
		c.String(http.StatusOK, user.ID)
	})

	w := request(r, "/api/whoami", "")
	assert.Equal(t, "anonymous", w.Body.String())

	w = request(r, "/api/whoami", "garbage")
	assert.Equal(t, "anonymous", w.Body.String())

	token, err := codec.Issue(models.User{Email: "kabu@example.com"}, time.Hour)
	require.NoError(t, err)
	w = request(r, "/api/whoami", token)
	assert.Equal(t, "kabu@example.com", w.Body.String())
}
