//go:build !production

package testutil

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/palemoky/take-six/internal/server/storage"
)

// MockLeaderboard 排行榜 mock
type MockLeaderboard struct {
	mock.Mock
}

func (m *MockLeaderboard) GetPlayerStats(ctx context.Context, playerID string) (*storage.PlayerStats, error) {
	args := m.Called(ctx, playerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.PlayerStats), args.Error(1)
}

func (m *MockLeaderboard) GetPlayerRank(ctx context.Context, playerID string) (int64, error) {
	args := m.Called(ctx, playerID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLeaderboard) GetLeaderboard(ctx context.Context, limit int) ([]*storage.LeaderboardEntry, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*storage.LeaderboardEntry), args.Error(1)
}

// RecordingHistory 记录收到的对局结果
type RecordingHistory struct {
	mu      sync.Mutex
	records []*storage.GameRecord
}

// RecordGame 实现 storage.HistorySink
func (h *RecordingHistory) RecordGame(_ context.Context, rec *storage.GameRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, rec)
	return nil
}

// Records 已记录的结果
func (h *RecordingHistory) Records() []*storage.GameRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*storage.GameRecord(nil), h.records...)
}

// MockRoomStore 房间快照存储 mock
type MockRoomStore struct {
	mock.Mock
}

func (m *MockRoomStore) SaveRoom(ctx context.Context, code string, data *storage.RoomData) error {
	args := m.Called(ctx, code, data)
	return args.Error(0)
}

func (m *MockRoomStore) DeleteRoom(ctx context.Context, code string) error {
	args := m.Called(ctx, code)
	return args.Error(0)
}
