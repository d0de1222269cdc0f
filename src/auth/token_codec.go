package auth

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"www.github.com/Wanderer0074348/MokabuLens/src/models"
)

const DefaultIssuer = "mokabu-lens"

var (
	ErrMissingSigningKey = errors.New("auth: missing signing key")
	ErrInvalidTTL        = errors.New("auth: session ttl must be positive")
	ErrMissingSubject    = errors.New("auth: user has no id")
	// ErrInvalidToken covers every verification failure; callers never learn which check failed.
	ErrInvalidToken = errors.New("auth: invalid session token")
)

type sessionClaims struct {
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

// TokenCodec signs and verifies session tokens with HMAC-SHA256.
// It is immutable after construction and safe for concurrent use.
type TokenCodec struct {
	signingKey []byte
	issuer     string
	now        func() time.Time
	logger     *slog.Logger
}

type CodecOption func(*TokenCodec)

func WithIssuer(issuer string) CodecOption {
	return func(c *TokenCodec) {
		if issuer != "" {
			c.issuer = issuer
		}
	}
}

// WithClock overrides the time source used for issuing and expiry checks.
func WithClock(now func() time.Time) CodecOption {
	return func(c *TokenCodec) {
		if now != nil {
			c.now = now
		}
	}
}

func WithCodecLogger(logger *slog.Logger) CodecOption {
	return func(c *TokenCodec) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewTokenCodec(signingKey []byte, opts ...CodecOption) (*TokenCodec, error) {
	if len(signingKey) == 0 {
		return nil, ErrMissingSigningKey
	}

	key := make([]byte, len(signingKey))
	copy(key, signingKey)

	c := &TokenCodec{
		signingKey: key,
		issuer:     DefaultIssuer,
		now:        time.Now,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Issue encodes user into a signed token valid for ttl. The output is
// deterministic for identical inputs, clock and key.
func (c *TokenCodec) Issue(user models.User, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", ErrInvalidTTL
	}
	if user.ID == "" {
		return "", ErrMissingSubject
	}

	now := c.now()
	claims := sessionClaims{
		Email:   user.Email,
		Name:    user.Name,
		Picture: user.Image,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiryAfter(now, ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return signed, nil
}

// Verify returns the session encoded in rawToken, or ErrInvalidToken.
func (c *TokenCodec) Verify(rawToken string) (*models.Session, error) {
	if rawToken == "" {
		return nil, ErrInvalidToken
	}

	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(rawToken, claims, c.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(c.issuer),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		c.logger.Debug("session token rejected", slog.String("reason", err.Error()))
		return nil, ErrInvalidToken
	}
	if !parsed.Valid || claims.Subject == "" || claims.ExpiresAt == nil {
		c.logger.Debug("session token rejected", slog.String("reason", "incomplete claims"))
		return nil, ErrInvalidToken
	}

	return &models.Session{
		User: models.User{
			ID:    claims.Subject,
			Email: claims.Email,
			Name:  claims.Name,
			Image: claims.Picture,
		},
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (c *TokenCodec) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, jwt.ErrTokenUnverifiable
	}
	return c.signingKey, nil
}

// expiryAfter rounds now+ttl up to a whole second. Token timestamps have second
// precision, so truncating would let a short ttl expire before it is ever used.
func expiryAfter(now time.Time, ttl time.Duration) time.Time {
	exp := now.Add(ttl)
	if t := exp.Truncate(time.Second); !t.Equal(exp) {
		return t.Add(time.Second)
	}
	return exp
}

var _ models.TokenCodec = (*TokenCodec)(nil)
