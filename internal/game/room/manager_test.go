package room

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palemoky/take-six/internal/apperrors"
	"github.com/palemoky/take-six/internal/server/storage"
	"github.com/palemoky/take-six/internal/testutil"
)

func TestRoomManager_CreateRoom(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	owner := ident("A")

	r, err := h.rm.CreateRoom(owner, Options{Capacity: 5, ScoreThreshold: 40})
	require.NoError(t, err)

	assert.Len(t, r.Code, roomCodeLength)
	assert.Same(t, r, h.rm.GetRoom(r.Code))
	assert.Equal(t, 5, r.Capacity())
	assert.Equal(t, 1, h.rm.RoomCount())
	assert.True(t, r.HasPlayer(owner.ConnID))

	snap, err := h.rm.Snapshot(r.Code, owner.ConnID)
	require.NoError(t, err)
	assert.True(t, playerInfo(snap, owner.ConnID).IsHost)
	assert.Equal(t, 40, snap.ScoreThreshold)
}

func TestRoomManager_Defaults(t *testing.T) {
	t.Parallel()

	dir := testutil.NewRecordingDirectory()
	rm := NewRoomManager(ManagerConfig{
		Directory: dir,
		Scheduler: &FakeScheduler{},
		Defaults:  Options{Capacity: 6, ScoreThreshold: 50, ChoiceTimeout: 10 * time.Second},
	})
	defer rm.Stop()

	r, err := rm.CreateRoom(ident("A"), Options{})
	require.NoError(t, err)
	assert.Equal(t, 6, r.Capacity())
	inspect(r, func() {
		assert.Equal(t, 50, r.opts.ScoreThreshold)
		assert.Equal(t, 10*time.Second, r.opts.ChoiceTimeout)
	})
}

func TestRoomManager_OwnerKeepsHostOnRejoin(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	a, b := ident("A"), ident("B")
	r := h.newRoom(t, Options{}, a, b)
	require.NoError(t, r.Leave(a.ConnID))

	// 房主账号回到房间后重新成为房主
	require.NoError(t, r.Join(a, ""))
	snap, err := r.Snapshot(b.ConnID)
	require.NoError(t, err)
	assert.True(t, playerInfo(snap, a.ConnID).IsHost)
	assert.False(t, playerInfo(snap, b.ConnID).IsHost)
}

func TestRoomManager_RoutesByCode(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	a, b := ident("A"), ident("B")
	r, err := h.rm.CreateRoom(a, Options{})
	require.NoError(t, err)

	_, err = h.rm.Join("000000", b, "")
	assert.ErrorIs(t, err, apperrors.ErrRoomNotFound)
	assert.ErrorIs(t, h.rm.SetReady("000000", a.ConnID, true), apperrors.ErrRoomNotFound)
	assert.ErrorIs(t, h.rm.PlayCard("000000", a.ConnID, 1), apperrors.ErrRoomNotFound)
	assert.ErrorIs(t, h.rm.ChooseRow("000000", a.ConnID, 0), apperrors.ErrRoomNotFound)

	joined, err := h.rm.Join(r.Code, b, "")
	require.NoError(t, err)
	assert.Same(t, r, joined)

	require.NoError(t, h.rm.SetReady(r.Code, a.ConnID, true))
	require.NoError(t, h.rm.SetReady(r.Code, b.ConnID, true))
	assert.Equal(t, 1, h.rm.GetActiveGamesCount())
	assert.Equal(t, []string{r.Code}, h.rm.ActiveGameCodes())

	require.NoError(t, h.rm.Leave(r.Code, b.ConnID))
	assert.Equal(t, 0, h.rm.GetActiveGamesCount())

	h.rm.OnDisconnected(r.Code, a.ConnID)
	h.rm.OnDisconnected("000000", a.ConnID)
	assert.NotNil(t, h.rm.GetRoom(r.Code))
}

func TestRoomManager_GetRoomList(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	open := h.newRoom(t, Options{Capacity: 3}, ident("A"))
	full := h.newRoom(t, Options{Capacity: 2}, ident("B"), ident("C"))
	h.newRoom(t, Options{Private: true, Password: "pw"}, ident("D"))
	playing := h.newRoom(t, Options{}, ident("E"), ident("F"))
	readyAll(t, playing, ident("E"), ident("F"))

	rooms := h.rm.GetRoomList()
	require.Len(t, rooms, 1)
	assert.Equal(t, open.Code, rooms[0].RoomCode)
	assert.Equal(t, 1, rooms[0].PlayerCount)
	assert.Equal(t, 3, rooms[0].MaxPlayers)
	assert.Equal(t, "WAITING", rooms[0].State)

	require.NoError(t, full.Leave(ident("C").ConnID))
	assert.Len(t, h.rm.GetRoomList(), 2)
}

func TestRoomManager_Cleanup(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	a, b := ident("A"), ident("B")
	idle := h.newRoom(t, Options{}, a)
	active := h.newRoom(t, Options{}, b)

	idle.OnDisconnected(a.ConnID)

	// 只清理没有在线真人的房间
	h.rm.cleanup(time.Now().Add(11 * time.Minute))

	assert.Nil(t, h.rm.GetRoom(idle.Code))
	assert.Same(t, active, h.rm.GetRoom(active.Code))
	assert.Equal(t, 0, idle.PlayerCount())
	assert.Empty(t, h.dir.RoomOf(a.ConnID))

	h.rm.cleanup(time.Now().Add(time.Minute))
	assert.Equal(t, 1, h.rm.RoomCount())
}

func TestRoomManager_PersistsSnapshots(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	store := storage.NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	dir := testutil.NewRecordingDirectory()
	rm := NewRoomManager(ManagerConfig{
		Directory: dir,
		Store:     store,
		Scheduler: &FakeScheduler{},
	})
	defer rm.Stop()

	a := ident("A")
	r, err := rm.CreateRoom(a, Options{ScoreThreshold: 40})
	require.NoError(t, err)

	ctx := context.Background()
	require.Eventually(t, func() bool {
		data, err := store.LoadRoom(ctx, r.Code)
		return err == nil && data != nil
	}, time.Second, 10*time.Millisecond)

	data, err := store.LoadRoom(ctx, r.Code)
	require.NoError(t, err)
	assert.Equal(t, "WAITING", data.State)
	assert.Equal(t, 40, data.ScoreThreshold)
	require.Len(t, data.Players, 1)
	assert.Equal(t, a.AccountID, data.Players[0].AccountID)

	// 房间解散后快照被删除
	require.NoError(t, r.Leave(a.ConnID))
	assert.Nil(t, rm.GetRoom(r.Code))

	assert.Eventually(t, func() bool {
		data, err := store.LoadRoom(ctx, r.Code)
		return err == nil && data == nil
	}, time.Second, 10*time.Millisecond)
}
