package auth

import (
	"context"
	"net/http"
	"strings"

	"www.github.com/Wanderer0074348/MokabuLens/src/models"
)

type contextKey string

var sessionContextKey = contextKey("session")

// ContextWithSession attaches a verified session to a request-scoped context.
func ContextWithSession(ctx context.Context, session *models.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}

func SessionFromContext(ctx context.Context) (*models.Session, bool) {
	session, ok := ctx.Value(sessionContextKey).(*models.Session)
	if !ok || session == nil {
		return nil, false
	}
	return session, true
}

// TokenFromRequest reads the session token from the cookie, falling back to a
// Bearer Authorization header.
func TokenFromRequest(r *http.Request, cookieName string) string {
	if cookie, err := r.Cookie(cookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader != "" && strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	return ""
}
