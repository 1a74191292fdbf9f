//go:build !production

package session

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/palemoky/take-six/internal/server/storage"
)

// MockStore 会话存储 mock
type MockStore struct {
	mock.Mock
}

func (m *MockStore) SaveSession(ctx context.Context, data *storage.PlayerSessionData, ttl time.Duration) error {
	args := m.Called(ctx, data, ttl)
	return args.Error(0)
}

func (m *MockStore) LoadSession(ctx context.Context, playerID string) (*storage.PlayerSessionData, error) {
	args := m.Called(ctx, playerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.PlayerSessionData), args.Error(1)
}

func (m *MockStore) DeleteSession(ctx context.Context, playerID string) error {
	args := m.Called(ctx, playerID)
	return args.Error(0)
}

// ExpireForTest 把会话的断线时间往前拨
func (sm *SessionManager) ExpireForTest(playerID string, ago time.Duration) {
	if s := sm.GetSession(playerID); s != nil {
		s.mu.Lock()
		s.online = false
		s.disconnectedAt = time.Now().Add(-ago)
		s.mu.Unlock()
	}
}
