package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"www.github.com/Wanderer0074348/MokabuLens/src/models"
)

const stateKeyPrefix = "oauth_state:"

var ErrStateNotFound = errors.New("auth: oauth state not found or expired")

// StateStore keeps pending sign-in attempts in Redis. Nothing about an
// established session is stored here.
type StateStore struct {
	client *redis.Client
}

func NewStateStore(client *redis.Client) *StateStore {
	return &StateStore{
		client: client,
	}
}

func GenerateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func (s *StateStore) Save(ctx context.Context, state *models.OAuthState, ttl time.Duration) error {
	if state == nil || state.State == "" {
		return fmt.Errorf("failed to save state: empty state")
	}

	stored := *state
	stored.ExpiresAt = time.Now().Add(ttl)

	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := s.client.Set(ctx, stateKeyPrefix+state.State, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}

	return nil
}

func (s *StateStore) Consume(ctx context.Context, state string) (*models.OAuthState, error) {
	if state == "" {
		return nil, ErrStateNotFound
	}

	data, err := s.client.GetDel(ctx, stateKeyPrefix+state).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get state: %w", err)
	}

	var oauthState models.OAuthState
	if err := json.Unmarshal([]byte(data), &oauthState); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}

	if time.Now().After(oauthState.ExpiresAt) {
		return nil, ErrStateNotFound
	}

	return &oauthState, nil
}

var _ models.StateStore = (*StateStore)(nil)
