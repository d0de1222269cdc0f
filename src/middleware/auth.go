package middleware

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"www.github.com/Wanderer0074348/MokabuLens/src/auth"
	"www.github.com/Wanderer0074348/MokabuLens/src/logger"
	"www.github.com/Wanderer0074348/MokabuLens/src/metrics"
	"www.github.com/Wanderer0074348/MokabuLens/src/models"
	"www.github.com/Wanderer0074348/MokabuLens/src/router"
)

// Keys used with gin's c.Set / c.Get.
const (
	ContextKeySession = "session"
	ContextKeyUser    = "user"
)

type AuthMiddleware struct {
	gate       *router.AccessGate
	verifier   models.TokenVerifier
	cookieName string
	logger     *slog.Logger
	recorder   metrics.Recorder
}

type AuthOption func(*AuthMiddleware)

func WithAuthLogger(l *slog.Logger) AuthOption {
	return func(m *AuthMiddleware) {
		if l != nil {
			m.logger = l
		}
	}
}

func WithAuthRecorder(r metrics.Recorder) AuthOption {
	return func(m *AuthMiddleware) {
		if r != nil {
			m.recorder = r
		}
	}
}

func NewAuthMiddleware(gate *router.AccessGate, verifier models.TokenVerifier, cookieName string, opts ...AuthOption) *AuthMiddleware {
	m := &AuthMiddleware{
		gate:       gate,
		verifier:   verifier,
		cookieName: cookieName,
		logger:     logger.Discard(),
		recorder:   metrics.Nop{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Gate evaluates every request exactly once. Requests for protected paths
// without a valid session are redirected to the sign-in page and never reach
// the handler.
func (m *AuthMiddleware) Gate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.TokenFromRequest(c.Request, m.cookieName)
		decision := m.gate.EvaluateURL(c.Request.URL, token)
		m.recorder.RecordGateDecision(string(decision.Outcome))

		if decision.Outcome == models.OutcomeRedirected {
			m.logger.Debug("redirecting to sign-in",
				slog.String("path", decision.Path),
				slog.String("reason", decision.Reason),
			)
			c.Redirect(http.StatusFound, decision.Location)
			c.Abort()
			return
		}

		if decision.Session != nil {
			attachSession(c, decision.Session)
		}

		c.Next()
	}
}

// OptionalSession attaches a session when the request carries a valid token
// and otherwise lets the request through untouched.
func (m *AuthMiddleware) OptionalSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := auth.SessionFromContext(c.Request.Context()); ok {
			c.Next()
			return
		}

		token := auth.TokenFromRequest(c.Request, m.cookieName)
		if token == "" {
			c.Next()
			return
		}

		session, err := m.verifier.Verify(token)
		if err != nil {
			c.Next()
			return
		}

		attachSession(c, session)
		c.Next()
	}
}

func attachSession(c *gin.Context, session *models.Session) {
	c.Set(ContextKeySession, session)
	c.Set(ContextKeyUser, auth.ProjectUser(session))
	c.Request = c.Request.WithContext(auth.ContextWithSession(c.Request.Context(), session))
}

// CurrentUser returns the user attached by Gate or OptionalSession.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	value, exists := c.Get(ContextKeyUser)
	if !exists {
		return nil, false
	}
	user, ok := value.(*models.User)
	return user, ok && user != nil
}
