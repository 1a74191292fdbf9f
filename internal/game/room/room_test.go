package room

import (
	"math"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palemoky/take-six/internal/apperrors"
	"github.com/palemoky/take-six/internal/game/card"
	"github.com/palemoky/take-six/internal/game/rule"
	"github.com/palemoky/take-six/internal/protocol"
	"github.com/palemoky/take-six/internal/protocol/codec"
	"github.com/palemoky/take-six/internal/testutil"
)

type harness struct {
	rm    *RoomManager
	dir   *testutil.RecordingDirectory
	sched *FakeScheduler
	hist  *testutil.RecordingHistory
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := testutil.NewRecordingDirectory()
	h := &harness{
		dir:   dir,
		sched: &FakeScheduler{},
		hist:  &testutil.RecordingHistory{},
	}
	h.rm = NewRoomManager(ManagerConfig{
		Directory:    dir,
		Scheduler:    h.sched,
		History:      h.hist,
		OnMembership: dir.OnMembership,
		RoomTimeout:  10 * time.Minute,
	})
	t.Cleanup(h.rm.Stop)
	return h
}

func ident(name string) Identity {
	return Identity{ConnID: "conn-" + name, AccountID: "acc-" + name, Name: name}
}

// newRoom creates a room owned by ids[0] and joins the others in order.
func (h *harness) newRoom(t *testing.T, opts Options, ids ...Identity) *Room {
	t.Helper()
	r, err := h.rm.CreateRoom(ids[0], opts)
	require.NoError(t, err)
	for _, id := range ids[1:] {
		require.NoError(t, r.Join(id, opts.Password))
	}
	return r
}

// readyAll marks every identity ready; the last one starts the game.
func readyAll(t *testing.T, r *Room, ids ...Identity) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, r.SetReady(id.ConnID, true))
	}
	require.Equal(t, RoomStatePlaying, r.State())
}

// stackedDeck deals seeds first, then each hand in seat order; unused numbers follow in ascending order.
func stackedDeck(seeds []int, hands ...[]int) func() card.Deck {
	return func() card.Deck {
		used := make(map[int]bool)
		deck := make(card.Deck, 0, card.DeckSize)
		add := func(nums []int) {
			for _, n := range nums {
				deck = append(deck, card.New(n))
				used[n] = true
			}
		}
		add(seeds)
		for _, h := range hands {
			add(h)
		}
		for n := card.MinNumber; n <= card.MaxNumber; n++ {
			if !used[n] {
				deck = append(deck, card.New(n))
			}
		}
		return deck
	}
}

func row(nums ...int) rule.Row {
	out := make(rule.Row, len(nums))
	for i, n := range nums {
		out[i] = card.New(n)
	}
	return out
}

func setTable(r *Room, rows ...rule.Row) {
	r.RigForTest(func(t *rule.Table, _ map[string][]card.Card) {
		for i := range t {
			t[i] = rows[i]
		}
	})
}

// inspect runs fn while holding the room lock.
func inspect(r *Room, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn()
}

func handOf(r *Room, connID string) []int {
	var nums []int
	inspect(r, func() { nums = card.Numbers(r.players[connID].Hand) })
	return nums
}

func scoreOf(r *Room, connID string) int {
	var score int
	inspect(r, func() { score = r.players[connID].Score })
	return score
}

func rowsOf(r *Room) [][]int {
	var rows [][]int
	inspect(r, func() {
		for _, rw := range r.table {
			rows = append(rows, card.Numbers(rw))
		}
	})
	return rows
}

func payloadOf[T any](t *testing.T, msg *protocol.Message) *T {
	t.Helper()
	require.NotNil(t, msg)
	p, err := codec.ParsePayload[T](msg)
	require.NoError(t, err)
	return p
}

func playerInfo(dto *protocol.RoomStateDTO, id string) *protocol.PlayerInfo {
	for i := range dto.Players {
		if dto.Players[i].ID == id {
			return &dto.Players[i]
		}
	}
	return nil
}

func TestJoin_HostAndBroadcast(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	a, b := ident("A"), ident("B")
	r := h.newRoom(t, Options{}, a, b)

	assert.Equal(t, 2, r.PlayerCount())
	assert.Equal(t, r.Code, h.dir.RoomOf(a.ConnID))
	assert.Equal(t, r.Code, h.dir.RoomOf(b.ConnID))

	joined := payloadOf[protocol.RoomJoinedPayload](t, h.dir.Last(b.ConnID, protocol.MsgRoomJoined))
	assert.Equal(t, r.Code, joined.RoomCode)
	assert.Len(t, joined.Players, 2)

	other := payloadOf[protocol.PlayerJoinedPayload](t, h.dir.Last(a.ConnID, protocol.MsgPlayerJoined))
	assert.Equal(t, b.ConnID, other.Player.ID)

	snap, err := r.Snapshot(a.ConnID)
	require.NoError(t, err)
	assert.True(t, playerInfo(snap, a.ConnID).IsHost)
	assert.False(t, playerInfo(snap, b.ConnID).IsHost)
	assert.Equal(t, "WAITING", snap.State)
}

func TestJoin_Idempotent(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	a := ident("A")
	r := h.newRoom(t, Options{}, a)

	require.NoError(t, r.Join(a, ""))
	assert.Equal(t, 1, r.PlayerCount())
}

func TestJoin_Capacity(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	a, b, c := ident("A"), ident("B"), ident("C")
	r := h.newRoom(t, Options{Capacity: 2}, a, b)

	assert.ErrorIs(t, r.Join(c, ""), apperrors.ErrRoomFull)

	// 托管玩家不占容量
	r.OnDisconnected(b.ConnID)
	require.NoError(t, r.Join(c, ""))
	assert.Equal(t, 3, r.PlayerCount())
}

func TestJoin_CapacityIsClamped(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	small := h.newRoom(t, Options{Capacity: 1}, ident("A"))
	large := h.newRoom(t, Options{Capacity: 50}, ident("B"))

	assert.Equal(t, MinPlayers, small.Capacity())
	assert.Equal(t, MaxPlayers, large.Capacity())
	assert.Equal(t, 10, MaxPlayers)
}

func TestJoin_PrivateRoomPassword(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	a, b := ident("A"), ident("B")
	r := h.newRoom(t, Options{Private: true, Password: "secret"}, a)

	assert.ErrorIs(t, r.Join(b, "wrong"), apperrors.ErrWrongPassword)
	require.NoError(t, r.Join(b, "secret"))
	assert.Empty(t, h.rm.GetRoomList())
}

func TestJoin_RejectedWhileInGame(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	a, b := ident("A"), ident("B")
	r := h.newRoom(t, Options{}, a, b)
	readyAll(t, r, a, b)

	assert.ErrorIs(t, r.Join(ident("C"), ""), apperrors.ErrGameStarted)

	// 在线玩家不能被另一个连接抢占
	dup := Identity{ConnID: "conn-A2", AccountID: a.AccountID, Name: "A"}
	assert.ErrorIs(t, r.Join(dup, ""), apperrors.ErrGameStarted)
	assert.True(t, r.HasPlayer(a.ConnID))
}

func TestJoin_RebindInLobby(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	a, b := ident("A"), ident("B")
	r := h.newRoom(t, Options{}, a, b)

	newConn := Identity{ConnID: "conn-B2", AccountID: b.AccountID, Name: "B"}
	require.NoError(t, r.Join(newConn, ""))

	assert.Equal(t, 2, r.PlayerCount())
	assert.False(t, r.HasPlayer(b.ConnID))
	assert.True(t, r.HasPlayer(newConn.ConnID))
	assert.NotNil(t, h.dir.Last(b.ConnID, protocol.MsgKicked))
	assert.Empty(t, h.dir.RoomOf(b.ConnID))
	assert.Equal(t, r.Code, h.dir.RoomOf(newConn.ConnID))

	connID, ok := r.FindByAccount(b.AccountID)
	assert.True(t, ok)
	assert.Equal(t, newConn.ConnID, connID)
}

func TestReady_AutoStart(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	a, b := ident("A"), ident("B")
	r := h.newRoom(t, Options{}, a, b)

	require.NoError(t, r.SetReady(a.ConnID, true))
	assert.Equal(t, RoomStateWaiting, r.State())

	require.NoError(t, r.SetReady(b.ConnID, true))
	assert.Equal(t, RoomStatePlaying, r.State())
	assert.NotNil(t, h.dir.Last(a.ConnID, protocol.MsgGameStart))

	assert.ErrorIs(t, r.SetReady(a.ConnID, false), apperrors.ErrGameStarted)
}

func TestReady_SinglePlayerDoesNotStart(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	a := ident("A")
	r := h.newRoom(t, Options{}, a)

	require.NoError(t, r.SetReady(a.ConnID, true))
	assert.Equal(t, RoomStateWaiting, r.State())
	assert.ErrorIs(t, r.StartGame(a.ConnID), apperrors.ErrNotEnoughPlayers)
}

func TestStartGame_CountsCaller(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	a, b, c := ident("A"), ident("B"), ident("C")
	r := h.newRoom(t, Options{}, a, b, c)

	require.NoError(t, r.SetReady(b.ConnID, true))
	assert.ErrorIs(t, r.StartGame(a.ConnID), apperrors.ErrNotAllReady)

	require.NoError(t, r.SetReady(c.ConnID, true))
	require.NoError(t, r.StartGame(a.ConnID))
	assert.Equal(t, RoomStatePlaying, r.State())

	assert.ErrorIs(t, r.StartGame(a.ConnID), apperrors.ErrGameStarted)
	assert.ErrorIs(t, r.StartGame("nobody"), apperrors.ErrNotInRoom)
}

func TestDeal_Fairness(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	a, b, c := ident("A"), ident("B"), ident("C")
	r := h.newRoom(t, Options{}, a, b, c)
	readyAll(t, r, a, b, c)

	seen := make(map[int]bool)
	count := func(nums []int) {
		for _, n := range nums {
			assert.False(t, seen[n], "card %d dealt twice", n)
			seen[n] = true
		}
	}

	inspect(r, func() {
		assert.Equal(t, 1, r.round)
		assert.Equal(t, 1, r.turn)
		assert.Equal(t, card.DeckSize-rule.RowCount-3*TricksPerRound, r.deck.Len())
		for _, p := range r.players {
			assert.Len(t, p.Hand, TricksPerRound)
			assert.True(t, slices.IsSortedFunc(p.Hand, func(x, y card.Card) int { return x.Number - y.Number }))
			count(card.Numbers(p.Hand))
		}
		for _, rw := range r.table {
			assert.Len(t, rw, 1)
			count(card.Numbers(rw))
		}
		count(card.Numbers(r.deck))
	})
	assert.Len(t, seen, card.DeckSize)
}

func TestLeave_InLobby(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	a, b := ident("A"), ident("B")
	r := h.newRoom(t, Options{}, a, b)

	require.NoError(t, r.Leave(b.ConnID))
	assert.Equal(t, 1, r.PlayerCount())
	assert.Empty(t, h.dir.RoomOf(b.ConnID))

	left := payloadOf[protocol.PlayerLeftPayload](t, h.dir.Last(a.ConnID, protocol.MsgPlayerLeft))
	assert.Equal(t, b.ConnID, left.PlayerID)

	assert.ErrorIs(t, r.Leave(b.ConnID), apperrors.ErrNotInRoom)
}

func TestLeave_HostPassesToEarliestHuman(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	a, b, c := ident("A"), ident("B"), ident("C")
	r := h.newRoom(t, Options{}, a, b, c)
	require.NoError(t, r.AddBots(a.ConnID, 1))

	require.NoError(t, r.Leave(a.ConnID))

	snap, err := r.Snapshot(b.ConnID)
	require.NoError(t, err)
	assert.True(t, playerInfo(snap, b.ConnID).IsHost)
	assert.False(t, playerInfo(snap, c.ConnID).IsHost)
}

func TestLeave_LastHumanTearsDown(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	a := ident("A")
	r := h.newRoom(t, Options{}, a)
	require.NoError(t, r.AddBots(a.ConnID, 2))

	require.NoError(t, r.Leave(a.ConnID))

	assert.Nil(t, h.rm.GetRoom(r.Code))
	assert.Equal(t, 0, r.PlayerCount())
	assert.ErrorIs(t, r.Join(ident("B"), ""), apperrors.ErrRoomNotFound)
}

func TestLeave_MidGameBelowMinimumAborts(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	a, b := ident("A"), ident("B")
	r := h.newRoom(t, Options{}, a, b)
	readyAll(t, r, a, b)

	require.NoError(t, r.Leave(b.ConnID))

	assert.Equal(t, RoomStateGameOver, r.State())
	over := payloadOf[protocol.GameOverPayload](t, h.dir.Last(a.ConnID, protocol.MsgGameOver))
	assert.Equal(t, ReasonNotEnoughPlayers, over.Reason)
	assert.Empty(t, over.WinnerID)

	assert.Eventually(t, func() bool { return len(h.hist.Records()) == 1 }, time.Second, 10*time.Millisecond)
	rec := h.hist.Records()[0]
	assert.Equal(t, ReasonNotEnoughPlayers, rec.Reason)
	for _, res := range rec.Results {
		assert.False(t, res.IsWinner)
	}
}

func TestDisconnect_InLobbyKeepsSeat(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	a, b := ident("A"), ident("B")
	r := h.newRoom(t, Options{}, a, b)
	require.NoError(t, r.SetReady(b.ConnID, true))

	r.OnDisconnected(b.ConnID)

	snap, err := r.Snapshot(a.ConnID)
	require.NoError(t, err)
	info := playerInfo(snap, b.ConnID)
	require.NotNil(t, info)
	assert.True(t, info.IsTrustee)
	assert.False(t, info.Ready)
	assert.False(t, info.Online)
	assert.NotNil(t, h.dir.Last(a.ConnID, protocol.MsgPlayerOffline))

	// 掉线玩家不参与投票：A 准备即可开局
	require.NoError(t, r.SetReady(a.ConnID, true))
	assert.Equal(t, RoomStatePlaying, r.State())
}

func TestAddBots(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	a, b := ident("A"), ident("B")
	r := h.newRoom(t, Options{Capacity: 4}, a, b)

	assert.ErrorIs(t, r.AddBots(b.ConnID, 1), apperrors.ErrNotHost)
	assert.ErrorIs(t, r.AddBots(a.ConnID, 0), apperrors.ErrInvalidState)
	assert.ErrorIs(t, r.AddBots(a.ConnID, 3), apperrors.ErrRoomFull)

	require.NoError(t, r.AddBots(a.ConnID, 2))
	assert.Equal(t, 4, r.PlayerCount())

	snap, err := r.Snapshot(a.ConnID)
	require.NoError(t, err)
	names := make(map[string]bool)
	bots := 0
	for _, p := range snap.Players {
		names[p.Name] = true
		if p.IsRobot {
			bots++
			assert.True(t, p.Ready)
			assert.True(t, p.IsTrustee)
		}
	}
	assert.Equal(t, 2, bots)
	assert.Len(t, names, 4)
}

func TestAddBots_HugeCountRejected(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	a := ident("A")
	r := h.newRoom(t, Options{Capacity: 4}, a)

	for _, count := range []int{math.MaxInt, math.MaxInt - 1, 4} {
		assert.ErrorIs(t, r.AddBots(a.ConnID, count), apperrors.ErrRoomFull)
	}
	assert.Equal(t, 1, r.PlayerCount())

	// 锁已释放
	require.NoError(t, r.AddBots(a.ConnID, 3))
	assert.Equal(t, 4, r.PlayerCount())
}

// staleDirectory 模拟连接已关闭、房间尚未收到掉线通知的传输层
type staleDirectory struct {
	*testutil.RecordingDirectory
	gone string
}

func (d *staleDirectory) IsOnline(connID string) bool {
	return connID != d.gone && d.RecordingDirectory.IsOnline(connID)
}

func TestSendTo_SkipsConnectionsTransportReportsOffline(t *testing.T) {
	t.Parallel()

	dir := &staleDirectory{RecordingDirectory: testutil.NewRecordingDirectory(), gone: "conn-B"}
	rm := NewRoomManager(ManagerConfig{
		Directory:   dir,
		Scheduler:   &FakeScheduler{},
		RoomTimeout: 10 * time.Minute,
	})
	t.Cleanup(rm.Stop)

	a, b := ident("A"), ident("B")
	r, err := rm.CreateRoom(a, Options{})
	require.NoError(t, err)
	require.NoError(t, r.Join(b, ""))

	assert.NotNil(t, dir.Last(a.ConnID, protocol.MsgPlayerJoined))
	assert.Empty(t, dir.Messages(b.ConnID))
	assert.True(t, r.HasPlayer(b.ConnID))
}

func TestAddBots_StartsWhenHumansReady(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	a := ident("A")
	r := h.newRoom(t, Options{}, a)
	require.NoError(t, r.SetReady(a.ConnID, true))
	assert.Equal(t, RoomStateWaiting, r.State())

	require.NoError(t, r.AddBots(a.ConnID, 3))
	assert.Equal(t, RoomStatePlaying, r.State())

	// 机器人在每墩开始时立即出牌
	inspect(r, func() {
		assert.Len(t, r.played, 3)
		assert.NotContains(t, r.played, a.ConnID)
	})
}

func TestKick(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	a, b, c := ident("A"), ident("B"), ident("C")
	r := h.newRoom(t, Options{}, a, b, c)

	assert.ErrorIs(t, r.Kick(b.ConnID, c.ConnID), apperrors.ErrNotHost)
	assert.ErrorIs(t, r.Kick(a.ConnID, a.ConnID), apperrors.ErrInvalidState)
	assert.ErrorIs(t, r.Kick(a.ConnID, "nobody"), apperrors.ErrNotInRoom)

	require.NoError(t, r.Kick(a.ConnID, b.ConnID))
	assert.False(t, r.HasPlayer(b.ConnID))
	assert.NotNil(t, h.dir.Last(b.ConnID, protocol.MsgKicked))
	assert.Empty(t, h.dir.RoomOf(b.ConnID))

	readyAll(t, r, a, c)
	assert.ErrorIs(t, r.Kick(a.ConnID, c.ConnID), apperrors.ErrGameStarted)
}

func TestSnapshot_HidesOtherPlayersCards(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	a, b := ident("A"), ident("B")
	r := h.newRoom(t, Options{}, a, b)
	r.newDeck = stackedDeck([]int{1, 2, 3, 4}, roundOneA, roundOneB)
	readyAll(t, r, a, b)

	require.NoError(t, r.PlayCard(a.ConnID, 6))

	own, err := r.Snapshot(a.ConnID)
	require.NoError(t, err)
	require.NotNil(t, playerInfo(own, a.ConnID).PlayedCard)
	assert.Equal(t, 6, playerInfo(own, a.ConnID).PlayedCard.Number)
	assert.Len(t, own.Hand, 9)

	other, err := r.Snapshot(b.ConnID)
	require.NoError(t, err)
	assert.True(t, playerInfo(other, a.ConnID).HasPlayed)
	assert.Nil(t, playerInfo(other, a.ConnID).PlayedCard)
	assert.Equal(t, 9, playerInfo(other, a.ConnID).CardsCount)
	assert.Len(t, other.Hand, 10)
	assert.Empty(t, other.LastTrick)

	// 每次状态变化都会推送各自的快照
	pushed := payloadOf[protocol.RoomStateDTO](t, h.dir.Last(b.ConnID, protocol.MsgRoomState))
	assert.Nil(t, playerInfo(pushed, a.ConnID).PlayedCard)

	require.NoError(t, r.PlayCard(b.ConnID, 19))
	after, err := r.Snapshot(b.ConnID)
	require.NoError(t, err)
	assert.Len(t, after.LastTrick, 2)
	assert.Equal(t, 6, after.LastTrick[0].Card.Number)
	assert.Equal(t, 19, after.LastTrick[1].Card.Number)

	_, err = r.Snapshot("nobody")
	assert.ErrorIs(t, err, apperrors.ErrNotInRoom)
}

func TestWithLock_PanicAbortsGame(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	a, b := ident("A"), ident("B")
	r := h.newRoom(t, Options{}, a, b)
	readyAll(t, r, a, b)

	err := r.withLock(func() error { panic("boom") })
	assert.ErrorIs(t, err, apperrors.ErrInternal)
	assert.Equal(t, RoomStateGameOver, r.State())

	over := payloadOf[protocol.GameOverPayload](t, h.dir.Last(a.ConnID, protocol.MsgGameOver))
	assert.Equal(t, ReasonInternalError, over.Reason)
	assert.Empty(t, over.WinnerName)

	// 房间仍然可用
	require.NoError(t, r.RequestNewGame(a.ConnID))
	require.NoError(t, r.RequestNewGame(b.ConnID))
	assert.Equal(t, RoomStatePlaying, r.State())
}

func TestToRoomData(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	a, b := ident("A"), ident("B")
	r := h.newRoom(t, Options{ScoreThreshold: 40}, a, b)
	readyAll(t, r, a, b)

	data := r.ToRoomData()
	assert.Equal(t, r.Code, data.Code)
	assert.Equal(t, "PLAYING", data.State)
	assert.Equal(t, 40, data.ScoreThreshold)
	assert.Len(t, data.Rows, rule.RowCount)
	require.Len(t, data.Players, 2)
	assert.Equal(t, a.AccountID, data.Players[0].AccountID)
	assert.Len(t, data.Players[0].Hand, TricksPerRound)
	assert.Equal(t, card.DeckSize-rule.RowCount-2*TricksPerRound, data.DeckRemaining)
}
