package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"www.github.com/Wanderer0074348/MokabuLens/src/models"
)

const (
	ProviderGoogle = "google"

	defaultGoogleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
)

var defaultGoogleScopes = []string{"openid", "email", "profile"}

type GoogleProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	// Overridable for tests.
	Endpoint    oauth2.Endpoint
	UserInfoURL string
	HTTPClient  *http.Client
}

// GoogleProvider performs the authorization-code flow against Google.
type GoogleProvider struct {
	oauthConfig *oauth2.Config
	userInfoURL string
	httpClient  *http.Client
}

type googleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func NewGoogleProvider(cfg GoogleProviderConfig) *GoogleProvider {
	endpoint := cfg.Endpoint
	if endpoint.AuthURL == "" || endpoint.TokenURL == "" {
		endpoint = google.Endpoint
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = defaultGoogleScopes
	}

	userInfoURL := cfg.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = defaultGoogleUserInfoURL
	}

	return &GoogleProvider{
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
		userInfoURL: userInfoURL,
		httpClient:  cfg.HTTPClient,
	}
}

func (p *GoogleProvider) Name() string {
	return ProviderGoogle
}

func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.oauthConfig.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*models.Identity, error) {
	if p.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	}

	token, err := p.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code for token: %w", err)
	}

	info, err := p.fetchUserInfo(ctx, token)
	if err != nil {
		return nil, err
	}

	return &models.Identity{
		Subject:       info.Sub,
		Email:         info.Email,
		EmailVerified: info.EmailVerified,
		Name:          info.Name,
		Picture:       info.Picture,
	}, nil
}

func (p *GoogleProvider) fetchUserInfo(ctx context.Context, token *oauth2.Token) (*googleUserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user info request: %w", err)
	}

	resp, err := p.oauthConfig.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("failed to fetch user info: status %d, body: %s", resp.StatusCode, string(body))
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}

	if info.Sub == "" && info.Email == "" {
		return nil, fmt.Errorf("failed to fetch user info: response carries no identity")
	}

	return &info, nil
}

var _ models.IdentityProvider = (*GoogleProvider)(nil)
