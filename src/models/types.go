package models

import "time"

// User is the identity snapshot carried by a session token.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
}

// Session only exists as the decoded form of a verified token.
type Session struct {
	User      User      `json:"user"`
	ExpiresAt time.Time `json:"expires"`
}

type AuthCallbackResult struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	URL   string `json:"url,omitempty"`
}

// Identity holds the verified claims returned by an identity provider.
type Identity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// CallbackParams are the query parameters of a provider redirect back to us.
type CallbackParams struct {
	State string
	Code  string
	Error string
}

type OAuthState struct {
	State      string    `json:"state"`
	Provider   string    `json:"provider"`
	ReturnPath string    `json:"return_path"`
	ExpiresAt  time.Time `json:"expires_at"`
}

type Outcome string

const (
	OutcomeUnevaluated Outcome = ""
	OutcomeAllowed     Outcome = "allowed"
	OutcomeRedirected  Outcome = "redirected"
)

type AccessDecision struct {
	Outcome   Outcome
	Path      string
	Protected bool
	Location  string // set when Outcome is OutcomeRedirected
	Session   *Session
	Reason    string
}
