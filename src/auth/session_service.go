package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"www.github.com/Wanderer0074348/MokabuLens/src/metrics"
	"www.github.com/Wanderer0074348/MokabuLens/src/models"
)

// Error codes reported in AuthCallbackResult.Error. They are meant for the
// sign-in page and for logs, not for branching.
const (
	ErrorOAuthSignin      = "OAuthSignin"
	ErrorOAuthCallback    = "OAuthCallback"
	ErrorAccessDenied     = "AccessDenied"
	ErrorEmailNotVerified = "EmailNotVerified"
	ErrorTimeout          = "timeout"
	ErrorCanceled         = "canceled"
)

const (
	DefaultCookieName      = "session_token"
	DefaultSignInPath      = "/signin"
	DefaultSessionTTL      = 30 * 24 * time.Hour
	DefaultStateTTL        = 10 * time.Minute
	DefaultProviderTimeout = 10 * time.Second
)

var ErrInvalidReturnPath = errors.New("auth: return path must be a local absolute path")

type SessionConfig struct {
	SessionTTL      time.Duration
	StateTTL        time.Duration
	ProviderTimeout time.Duration
	SignInPath      string
	CookieName      string
	CookieDomain    string
	CookieSecure    bool
	CookieSameSite  http.SameSite
}

// SessionService is the session facade used by handlers and pages. All
// session state lives in the signed token; the service itself is read-only
// after construction.
type SessionService struct {
	codec     models.TokenCodec
	states    models.StateStore
	providers map[string]models.IdentityProvider
	config    SessionConfig
	logger    *slog.Logger
	recorder  metrics.Recorder
}

type ServiceOption func(*SessionService)

func WithProvider(provider models.IdentityProvider) ServiceOption {
	return func(s *SessionService) {
		s.providers[provider.Name()] = provider
	}
}

func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *SessionService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithRecorder(recorder metrics.Recorder) ServiceOption {
	return func(s *SessionService) {
		if recorder != nil {
			s.recorder = recorder
		}
	}
}

func NewSessionService(codec models.TokenCodec, states models.StateStore, cfg SessionConfig, opts ...ServiceOption) *SessionService {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.StateTTL <= 0 {
		cfg.StateTTL = DefaultStateTTL
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = DefaultProviderTimeout
	}
	if cfg.SignInPath == "" {
		cfg.SignInPath = DefaultSignInPath
	}
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	if cfg.CookieSameSite == 0 {
		cfg.CookieSameSite = http.SameSiteLaxMode
	}

	s := &SessionService{
		codec:     codec,
		states:    states,
		providers: make(map[string]models.IdentityProvider),
		config:    cfg,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		recorder:  metrics.Nop{},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// BeginSignIn records a pending sign-in and returns the provider's
// authorization URL. It never returns an error; failures are reported in the result.
func (s *SessionService) BeginSignIn(ctx context.Context, provider, returnPath string) models.AuthCallbackResult {
	idp, ok := s.providers[provider]
	if !ok {
		s.logger.Warn("sign-in requested for unknown provider", slog.String("provider", provider))
		s.recorder.RecordSignIn(metrics.StageBegin, metrics.ResultFailure)
		return failed(ErrorOAuthSignin)
	}

	target, ok := SafeReturnPath(returnPath)
	if !ok {
		target = "/"
	}

	state, err := GenerateState()
	if err != nil {
		s.logger.Error("failed to generate oauth state", slog.String("error", err.Error()))
		s.recorder.RecordSignIn(metrics.StageBegin, metrics.ResultFailure)
		return failed(ErrorOAuthSignin)
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.ProviderTimeout)
	defer cancel()

	err = s.states.Save(ctx, &models.OAuthState{
		State:      state,
		Provider:   idp.Name(),
		ReturnPath: target,
	}, s.config.StateTTL)
	if err != nil {
		code := classify(ctx, err, ErrorOAuthSignin)
		s.logger.Error("failed to save oauth state",
			slog.String("provider", provider),
			slog.String("error", err.Error()),
		)
		s.recordFailure(metrics.StageBegin, code)
		return failed(code)
	}

	s.recorder.RecordSignIn(metrics.StageBegin, metrics.ResultSuccess)
	return models.AuthCallbackResult{OK: true, URL: idp.AuthCodeURL(state)}
}

// CompleteSignIn finishes the provider round trip. The result URL is the return
// path recorded by BeginSignIn whenever the state was found, on failure too, so
// a retry can go back to the page originally requested. On success token is a
// freshly issued session token. Deadline expiry, from the caller or the provider timeout, yields
// {ok: false, error: "timeout"}.
func (s *SessionService) CompleteSignIn(ctx context.Context, provider string, params models.CallbackParams) (models.AuthCallbackResult, string) {
	idp, ok := s.providers[provider]
	if !ok {
		s.logger.Warn("callback for unknown provider", slog.String("provider", provider))
		s.recorder.RecordSignIn(metrics.StageComplete, metrics.ResultFailure)
		return failed(ErrorOAuthCallback), ""
	}

	pending, err := s.states.Consume(ctx, params.State)
	if err != nil {
		code := classify(ctx, err, ErrorOAuthCallback)
		s.logger.Warn("oauth state rejected",
			slog.String("provider", provider),
			slog.String("error", err.Error()),
		)
		s.recordFailure(metrics.StageComplete, code)
		return failed(code), ""
	}
	if pending.Provider != idp.Name() {
		s.logger.Warn("oauth state issued for another provider",
			slog.String("provider", provider),
			slog.String("state_provider", pending.Provider),
		)
		s.recorder.RecordSignIn(metrics.StageComplete, metrics.ResultFailure)
		return failedReturning(ErrorOAuthCallback, pending.ReturnPath), ""
	}

	if params.Error != "" {
		code := ErrorOAuthCallback
		if params.Error == "access_denied" {
			code = ErrorAccessDenied
		}
		s.logger.Info("provider returned an error", slog.String("provider", provider), slog.String("error", params.Error))
		s.recorder.RecordSignIn(metrics.StageComplete, metrics.ResultFailure)
		return failedReturning(code, pending.ReturnPath), ""
	}
	if params.Code == "" {
		s.recorder.RecordSignIn(metrics.StageComplete, metrics.ResultFailure)
		return failedReturning(ErrorOAuthCallback, pending.ReturnPath), ""
	}

	exchangeCtx, cancel := context.WithTimeout(ctx, s.config.ProviderTimeout)
	defer cancel()

	identity, err := idp.Exchange(exchangeCtx, params.Code)
	if err != nil {
		code := classify(exchangeCtx, err, ErrorOAuthCallback)
		s.logger.Error("identity provider exchange failed",
			slog.String("provider", provider),
			slog.String("error", err.Error()),
		)
		s.recordFailure(metrics.StageComplete, code)
		return failedReturning(code, pending.ReturnPath), ""
	}

	if !identity.EmailVerified {
		s.logger.Warn("rejected unverified email", slog.String("provider", provider))
		s.recorder.RecordSignIn(metrics.StageComplete, metrics.ResultFailure)
		return failedReturning(ErrorEmailNotVerified, pending.ReturnPath), ""
	}

	user := models.User{
		ID:    identity.Subject,
		Email: identity.Email,
		Name:  identity.Name,
		Image: identity.Picture,
	}
	if user.ID == "" {
		user.ID = user.Email
	}

	token, err := s.codec.Issue(user, s.config.SessionTTL)
	if err != nil {
		s.logger.Error("failed to issue session token", slog.String("error", err.Error()))
		s.recorder.RecordSignIn(metrics.StageComplete, metrics.ResultFailure)
		return failedReturning(ErrorOAuthCallback, pending.ReturnPath), ""
	}

	s.logger.Info("user signed in", slog.String("provider", provider), slog.String("user_id", user.ID))
	s.recorder.RecordSignIn(metrics.StageComplete, metrics.ResultSuccess)
	return models.AuthCallbackResult{OK: true, URL: pending.ReturnPath}, token
}

// SignOut clears the client's session cookie and returns the redirect target.
// Unlike sign-in, failures are returned to the caller.
func (s *SessionService) SignOut(w http.ResponseWriter, returnPath string) (string, error) {
	if returnPath == "" {
		returnPath = "/"
	}

	target, ok := SafeReturnPath(returnPath)
	if !ok {
		s.recorder.RecordSignOut(metrics.ResultFailure)
		return "", fmt.Errorf("sign out to %q: %w", returnPath, ErrInvalidReturnPath)
	}

	http.SetCookie(w, s.cookie("", -1))
	s.recorder.RecordSignOut(metrics.ResultSuccess)
	return target, nil
}

// GetCurrentSession returns the verified session for r, or nil. The reason a
// token was rejected is never exposed.
func (s *SessionService) GetCurrentSession(r *http.Request) *models.Session {
	if session, ok := SessionFromContext(r.Context()); ok {
		return session
	}

	token := TokenFromRequest(r, s.config.CookieName)
	if token == "" {
		return nil
	}

	session, err := s.codec.Verify(token)
	if err != nil {
		return nil
	}
	return session
}

func (s *SessionService) IsAuthenticated(r *http.Request) bool {
	return s.GetCurrentSession(r) != nil
}

// GetCurrentUser projects the current session's user. Missing optional claims
// come back as empty strings and the email stands in for a missing id.
func (s *SessionService) GetCurrentUser(r *http.Request) *models.User {
	session := s.GetCurrentSession(r)
	if session == nil {
		return nil
	}
	return ProjectUser(session)
}

func ProjectUser(session *models.Session) *models.User {
	user := session.User
	if user.ID == "" {
		user.ID = user.Email
	}
	return &user
}

// SetSessionCookie hands token to the client.
func (s *SessionService) SetSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, s.cookie(token, int(s.config.SessionTTL.Seconds())))
}

func (s *SessionService) SignInPath() string {
	return s.config.SignInPath
}

func (s *SessionService) CookieName() string {
	return s.config.CookieName
}

// Providers lists the configured provider names.
func (s *SessionService) Providers() []string {
	names := make([]string, 0, len(s.providers))
	for name := range s.providers {
		names = append(names, name)
	}
	return names
}

func (s *SessionService) cookie(value string, maxAge int) *http.Cookie {
	domain := s.config.CookieDomain
	if domain == "localhost" {
		domain = ""
	}

	return &http.Cookie{
		Name:     s.config.CookieName,
		Value:    value,
		Path:     "/",
		Domain:   domain,
		MaxAge:   maxAge,
		Secure:   s.config.CookieSecure,
		HttpOnly: true,
		SameSite: s.config.CookieSameSite,
	}
}

func (s *SessionService) recordFailure(stage, code string) {
	if code == ErrorTimeout {
		s.recorder.RecordSignIn(stage, metrics.ResultTimeout)
		return
	}
	s.recorder.RecordSignIn(stage, metrics.ResultFailure)
}

// SafeReturnPath accepts only same-origin absolute paths and returns the path
// with its query. Anything that could leave the site is rejected.
func SafeReturnPath(raw string) (string, bool) {
	if raw == "" || !strings.HasPrefix(raw, "/") {
		return "", false
	}
	if strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") || strings.ContainsAny(raw, "\r\n") {
		return "", false
	}

	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "" || u.Host != "" || u.User != nil {
		return "", false
	}

	target := u.EscapedPath()
	if target == "" {
		target = "/"
	}
	if u.RawQuery != "" {
		target += "?" + u.RawQuery
	}
	return target, true
}

// ParseSameSite maps a config value to a cookie SameSite mode; anything unknown is lax.
func ParseSameSite(value string) http.SameSite {
	switch strings.ToLower(value) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

func failed(code string) models.AuthCallbackResult {
	return models.AuthCallbackResult{OK: false, Error: code}
}

func failedReturning(code, returnPath string) models.AuthCallbackResult {
	return models.AuthCallbackResult{OK: false, Error: code, URL: returnPath}
}

func classify(ctx context.Context, err error, fallback string) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return ErrorTimeout
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return ErrorCanceled
	default:
		return fallback
	}
}
