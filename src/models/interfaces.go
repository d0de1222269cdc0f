package models

import (
	"context"
	"time"
)

// TokenVerifier is the only session primitive the access gate depends on
type TokenVerifier interface {
	Verify(rawToken string) (*Session, error)
}

// TokenIssuer signs a session token for a user
type TokenIssuer interface {
	Issue(user User, ttl time.Duration) (string, error)
}

// TokenCodec combines issuing and verifying session tokens
type TokenCodec interface {
	TokenIssuer
	TokenVerifier
}

// IdentityProvider defines the external OAuth collaborator
type IdentityProvider interface {
	Name() string
	AuthCodeURL(state string) string
	// Exchange trades an authorization code for verified identity claims
	Exchange(ctx context.Context, code string) (*Identity, error)
}

// StateStore keeps pending sign-in attempts between the redirect and the callback
type StateStore interface {
	Save(ctx context.Context, state *OAuthState, ttl time.Duration) error
	// Consume returns the stored state and removes it; a state can be consumed once
	Consume(ctx context.Context, state string) (*OAuthState, error)
}

// HealthChecker reports whether a backing dependency is reachable
type HealthChecker interface {
	Ping(ctx context.Context) error
}
