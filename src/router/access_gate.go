package router

import (
	"net/url"

	"www.github.com/Wanderer0074348/MokabuLens/src/models"
)

// ReturnTargetParam carries the originally requested path through sign-in.
const ReturnTargetParam = "callbackUrl"

// AccessGate decides, once per request, whether the request proceeds or is sent
// to the sign-in page. It holds no per-request state.
type AccessGate struct {
	policy     Policy
	verifier   models.TokenVerifier
	signInPath string
}

// NewAccessGate builds a gate for policy. The sign-in path and every path in
// alwaysAllowed (the provider callback routes) are excluded unconditionally so
// a user can never be locked out of the paths that grant a session.
func NewAccessGate(policy Policy, verifier models.TokenVerifier, signInPath string, alwaysAllowed ...string) *AccessGate {
	signInPath = Normalize(signInPath)

	exempt := append([]string{signInPath}, alwaysAllowed...)

	return &AccessGate{
		policy:     policy.WithExcluded(exempt...),
		verifier:   verifier,
		signInPath: signInPath,
	}
}

// Evaluate runs the transition rule for a single request. requestURI is the
// path as requested (query included); token may be empty. The policy is matched
// against the decoded path, the same one the router dispatches on.
func (g *AccessGate) Evaluate(requestURI, token string) models.AccessDecision {
	u, err := url.ParseRequestURI(requestURI)
	if err != nil {
		// Unparseable targets are treated as protected with no return target.
		return g.deny(models.AccessDecision{Path: Normalize(requestURI), Protected: true}, "")
	}
	return g.EvaluateURL(u, token)
}

// EvaluateURL is Evaluate for an already parsed request URL. Protection is
// decided on u.Path; the escaped request URI is only used as the return target.
func (g *AccessGate) EvaluateURL(u *url.URL, token string) models.AccessDecision {
	path := Normalize(u.Path)

	decision := models.AccessDecision{
		Path:      path,
		Protected: IsProtected(path, g.policy),
	}

	if !decision.Protected {
		decision.Outcome = models.OutcomeAllowed
		decision.Reason = "public path"
		return decision
	}

	session, err := g.verifier.Verify(token)
	if err != nil || session == nil {
		return g.deny(decision, u.RequestURI())
	}

	decision.Outcome = models.OutcomeAllowed
	decision.Session = session
	decision.Reason = "valid session"
	return decision
}

func (g *AccessGate) deny(decision models.AccessDecision, returnTarget string) models.AccessDecision {
	decision.Outcome = models.OutcomeRedirected
	decision.Location = g.SignInURL(returnTarget)
	decision.Reason = "no valid session"
	return decision
}

// SignInURL returns the sign-in path carrying returnTarget for post-login navigation.
func (g *AccessGate) SignInURL(returnTarget string) string {
	if returnTarget == "" {
		return g.signInPath
	}
	params := url.Values{}
	params.Set(ReturnTargetParam, returnTarget)
	return g.signInPath + "?" + params.Encode()
}

func (g *AccessGate) SignInPath() string {
	return g.signInPath
}

func (g *AccessGate) Policy() Policy {
	return g.policy
}
