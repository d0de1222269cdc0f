package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"www.github.com/Wanderer0074348/MokabuLens/src/models"
)

// MockTokenVerifier implements models.TokenVerifier
type MockTokenVerifier struct {
	mock.Mock
}

func (m *MockTokenVerifier) Verify(rawToken string) (*models.Session, error) {
	args := m.Called(rawToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

// MockIdentityProvider implements models.IdentityProvider
type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockIdentityProvider) AuthCodeURL(state string) string {
	args := m.Called(state)
	return args.String(0)
}

func (m *MockIdentityProvider) Exchange(ctx context.Context, code string) (*models.Identity, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Identity), args.Error(1)
}

// MockStateStore implements models.StateStore
type MockStateStore struct {
	mock.Mock
}

func (m *MockStateStore) Save(ctx context.Context, state *models.OAuthState, ttl time.Duration) error {
	args := m.Called(ctx, state, ttl)
	return args.Error(0)
}

func (m *MockStateStore) Consume(ctx context.Context, state string) (*models.OAuthState, error) {
	args := m.Called(ctx, state)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OAuthState), args.Error(1)
}

// MockHealthChecker implements models.HealthChecker
type MockHealthChecker struct {
	mock.Mock
}

func (m *MockHealthChecker) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
