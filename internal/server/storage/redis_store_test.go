package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	store := NewRedisStore(client)
	return store, mr
}

func TestRedisStore_SaveLoadDeleteRoom(t *testing.T) {
	t.Parallel()

	store, mr := newTestRedisStore(t)
	defer mr.Close()
	ctx := context.Background()

	roomData := &RoomData{
		Code:     "123456",
		State:    "PLAYING",
		Round:    1,
		Turn:     3,
		Capacity: 4,
		Players: []PlayerData{
			{ID: "c1", AccountID: "a1", Name: "Alice", Hand: []int{3, 17}, Pile: []int{55}, Score: 7},
		},
		Rows:      [][]int{{1, 2}, {10}, {20}, {30}},
		CreatedAt: time.Now().Unix(),
	}

	require.NoError(t, store.SaveRoom(ctx, roomData.Code, roomData))
	assert.True(t, mr.Exists(roomKeyPrefix+roomData.Code))
	assert.Positive(t, mr.TTL(roomKeyPrefix+roomData.Code))

	loaded, err := store.LoadRoom(ctx, roomData.Code)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "PLAYING", loaded.State)
	assert.Equal(t, 7, loaded.Players[0].Score)
	assert.Equal(t, []int{3, 17}, loaded.Players[0].Hand)

	require.NoError(t, store.DeleteRoom(ctx, roomData.Code))

	loaded, err = store.LoadRoom(ctx, roomData.Code)
	assert.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestRedisStore_SaveNilRoom(t *testing.T) {
	t.Parallel()

	store, mr := newTestRedisStore(t)
	defer mr.Close()

	assert.NoError(t, store.SaveRoom(context.Background(), "000000", nil))
	assert.False(t, mr.Exists(roomKeyPrefix+"000000"))
}

func TestRedisStore_GetAllRoomCodes(t *testing.T) {
	t.Parallel()

	store, mr := newTestRedisStore(t)
	defer mr.Close()
	ctx := context.Background()

	for _, code := range []string{"111111", "222222"} {
		require.NoError(t, store.SaveRoom(ctx, code, &RoomData{Code: code}))
	}

	codes, err := store.GetAllRoomCodes(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"111111", "222222"}, codes)
}

func TestRedisStore_Session(t *testing.T) {
	t.Parallel()

	store, mr := newTestRedisStore(t)
	defer mr.Close()
	ctx := context.Background()

	session := &PlayerSessionData{
		PlayerID:       "a1",
		PlayerName:     "Alice",
		ReconnectToken: "tok",
		RoomCode:       "123456",
		IsOnline:       false,
		DisconnectedAt: 1700000000,
	}
	require.NoError(t, store.SaveSession(ctx, session, time.Minute))
	assert.Positive(t, mr.TTL(sessionKeyPrefix+"a1"))

	loaded, err := store.LoadSession(ctx, "a1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "tok", loaded.ReconnectToken)
	assert.Equal(t, "123456", loaded.RoomCode)
	assert.False(t, loaded.IsOnline)
	assert.Equal(t, int64(1700000000), loaded.DisconnectedAt)

	require.NoError(t, store.DeleteSession(ctx, "a1"))
	loaded, err = store.LoadSession(ctx, "a1")
	assert.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestRedisStore_Ping(t *testing.T) {
	t.Parallel()

	store, mr := newTestRedisStore(t)
	assert.NoError(t, store.Ping(context.Background()))

	mr.Close()
	assert.Error(t, store.Ping(context.Background()))
}
