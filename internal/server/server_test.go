package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palemoky/take-six/internal/config"
	"github.com/palemoky/take-six/internal/protocol"
	"github.com/palemoky/take-six/internal/protocol/codec"
)

const readTimeout = 2 * time.Second

type testServer struct {
	s  *Server
	ts *httptest.Server
	mr *miniredis.Miniredis
}

func newTestServer(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()

	mr := miniredis.RunT(t)
	cfg := config.Default()
	cfg.Redis.Addr = mr.Addr()
	cfg.Security.AllowedOrigins = nil
	if mutate != nil {
		mutate(cfg)
	}

	s, err := NewServer(cfg)
	require.NoError(t, err)

	ts := httptest.NewServer(s.Router())
	t.Cleanup(func() {
		s.Shutdown()
		ts.Close()
	})
	return &testServer{s: s, ts: ts, mr: mr}
}

func (e *testServer) wsURL() string {
	return "ws" + strings.TrimPrefix(e.ts.URL, "http") + "/ws"
}

func (e *testServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(e.wsURL(), nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func writeMsg(t *testing.T, conn *websocket.Conn, msgType protocol.MessageType, payload any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(codec.MustNewMessage(msgType, payload)))
}

// readUntil 读取直到收到指定类型的消息
func readUntil(t *testing.T, conn *websocket.Conn, msgType protocol.MessageType) *protocol.Message {
	t.Helper()
	deadline := time.Now().Add(readTimeout)
	require.NoError(t, conn.SetReadDeadline(deadline))
	for {
		var msg protocol.Message
		require.NoError(t, conn.ReadJSON(&msg), "waiting for %s", msgType)
		if msg.Type == msgType {
			return &msg
		}
	}
}

func decode[T any](t *testing.T, msg *protocol.Message) *T {
	t.Helper()
	out, err := codec.ParsePayload[T](msg)
	require.NoError(t, err)
	return out
}

func TestServer_NewServer_InvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Server.Codec = "xml"
	_, err := NewServer(cfg)
	assert.Error(t, err)

	cfg = config.Default()
	mr := miniredis.RunT(t)
	cfg.Redis.Addr = mr.Addr()
	mr.Close()
	_, err = NewServer(cfg)
	assert.ErrorContains(t, err, "redis")
}

func TestServer_ConnectAndCreateRoom(t *testing.T) {
	t.Parallel()

	e := newTestServer(t, nil)
	conn := e.dial(t)

	connected := decode[protocol.ConnectedPayload](t, readUntil(t, conn, protocol.MsgConnected))
	assert.NotEmpty(t, connected.PlayerID)
	assert.NotEmpty(t, connected.PlayerName)
	assert.NotEmpty(t, connected.ReconnectToken)
	assert.Equal(t, 1, e.s.GetOnlineCount())

	writeMsg(t, conn, protocol.MsgCreateRoom, protocol.CreateRoomPayload{Capacity: 4})
	created := decode[protocol.RoomCreatedPayload](t, readUntil(t, conn, protocol.MsgRoomCreated))
	assert.Len(t, created.RoomCode, 6)
	assert.Equal(t, connected.PlayerName, created.Player.Name)

	assert.Equal(t, created.RoomCode, e.s.sessionManager.GetSession(connected.PlayerID).RoomCode())

	resp, err := http.Get(e.ts.URL + "/rooms")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var list protocol.RoomListResultPayload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list.Rooms, 1)
	assert.Equal(t, created.RoomCode, list.Rooms[0].RoomCode)
	assert.Equal(t, 1, list.Rooms[0].PlayerCount)
}

func TestServer_InvalidFrame(t *testing.T) {
	t.Parallel()

	e := newTestServer(t, nil)
	conn := e.dial(t)
	readUntil(t, conn, protocol.MsgConnected)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	errMsg := decode[protocol.ErrorPayload](t, readUntil(t, conn, protocol.MsgError))
	assert.Equal(t, protocol.ErrCodeInvalidMsg, errMsg.Code)

	// 连接仍然可用
	writeMsg(t, conn, protocol.MsgPing, nil)
	readUntil(t, conn, protocol.MsgPong)
}

func TestServer_DisconnectPutsPlayerInTrustee(t *testing.T) {
	t.Parallel()

	e := newTestServer(t, nil)
	a := e.dial(t)
	connected := decode[protocol.ConnectedPayload](t, readUntil(t, a, protocol.MsgConnected))
	accountA := connected.PlayerID
	b := e.dial(t)
	readUntil(t, b, protocol.MsgConnected)

	writeMsg(t, a, protocol.MsgCreateRoom, protocol.CreateRoomPayload{})
	code := decode[protocol.RoomCreatedPayload](t, readUntil(t, a, protocol.MsgRoomCreated)).RoomCode
	writeMsg(t, b, protocol.MsgJoinRoom, protocol.JoinRoomPayload{RoomCode: code})
	readUntil(t, b, protocol.MsgRoomJoined)

	require.NoError(t, a.Close())

	offline := decode[protocol.PlayerOfflinePayload](t, readUntil(t, b, protocol.MsgPlayerOffline))
	assert.NotEmpty(t, offline.PlayerName)

	assert.Eventually(t, func() bool { return e.s.GetOnlineCount() == 1 }, readTimeout, 10*time.Millisecond)
	assert.False(t, e.s.sessionManager.IsOnline(accountA))
	assert.True(t, e.s.sessionManager.CanReconnect(connected.ReconnectToken, accountA))
	assert.Eventually(t, func() bool { return len(e.s.semaphore) == 1 }, readTimeout, 10*time.Millisecond)
}

func TestServer_ReconnectWithToken(t *testing.T) {
	t.Parallel()

	e := newTestServer(t, nil)
	a := e.dial(t)
	connected := decode[protocol.ConnectedPayload](t, readUntil(t, a, protocol.MsgConnected))
	writeMsg(t, a, protocol.MsgCreateRoom, protocol.CreateRoomPayload{})
	code := decode[protocol.RoomCreatedPayload](t, readUntil(t, a, protocol.MsgRoomCreated)).RoomCode

	require.NoError(t, a.Close())
	assert.Eventually(t, func() bool { return !e.s.sessionManager.IsOnline(connected.PlayerID) }, readTimeout, 10*time.Millisecond)

	a2 := e.dial(t)
	readUntil(t, a2, protocol.MsgConnected)
	writeMsg(t, a2, protocol.MsgReconnect, protocol.ReconnectPayload{
		Token:    connected.ReconnectToken,
		PlayerID: connected.PlayerID,
	})

	rec := decode[protocol.ReconnectedPayload](t, readUntil(t, a2, protocol.MsgReconnected))
	assert.Equal(t, connected.PlayerID, rec.PlayerID)
	assert.Equal(t, connected.PlayerName, rec.PlayerName)
	assert.Equal(t, code, rec.RoomCode)
	require.NotNil(t, rec.RoomState)
	assert.Len(t, rec.RoomState.Players, 1)
	assert.True(t, e.s.sessionManager.IsOnline(connected.PlayerID))
}

func TestServer_ProtobufFrames(t *testing.T) {
	t.Parallel()

	e := newTestServer(t, func(cfg *config.Config) { cfg.Server.Codec = string(codec.FormatProtobuf) })
	pb, err := codec.New(codec.FormatProtobuf)
	require.NoError(t, err)

	conn := e.dial(t)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(readTimeout)))

	frameType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, frameType)

	msg, err := pb.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, protocol.MsgConnected, msg.Type)

	ping, err := pb.Encode(codec.MustNewMessage(protocol.MsgPing, nil))
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, ping))

	_, data, err = conn.ReadMessage()
	require.NoError(t, err)
	msg, err = pb.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, protocol.MsgPong, msg.Type)
}

func TestServer_RejectsConnections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*config.Config)
		setup  func(*Server)
		header http.Header
		status int
	}{
		{
			name:   "maintenance",
			setup:  func(s *Server) { s.EnterMaintenanceMode() },
			status: http.StatusServiceUnavailable,
		},
		{
			name:   "origin",
			mutate: func(cfg *config.Config) { cfg.Security.AllowedOrigins = []string{"https://take-six.example"} },
			header: http.Header{"Origin": []string{"https://evil.example"}},
			status: http.StatusForbidden,
		},
		{
			name:   "blacklisted ip",
			mutate: func(cfg *config.Config) { cfg.Security.IPBlacklist = []string{"203.0.113.7"} },
			header: http.Header{"X-Forwarded-For": []string{"203.0.113.7"}},
			status: http.StatusForbidden,
		},
		{
			name:   "not whitelisted",
			mutate: func(cfg *config.Config) { cfg.Security.IPWhitelist = []string{"198.51.100.10"} },
			header: http.Header{"X-Forwarded-For": []string{"203.0.113.8"}},
			status: http.StatusForbidden,
		},
		{
			name:   "server full",
			mutate: func(cfg *config.Config) { cfg.Server.MaxConnections = 1 },
			setup:  func(s *Server) { s.semaphore <- struct{}{} },
			status: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := newTestServer(t, tt.mutate)
			if tt.setup != nil {
				tt.setup(e.s)
			}

			conn, resp, err := websocket.DefaultDialer.Dial(e.wsURL(), tt.header)
			if conn != nil {
				_ = conn.Close()
			}
			require.Error(t, err)
			require.NotNil(t, resp)
			defer resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestServer_ConnectionRateLimit(t *testing.T) {
	t.Parallel()

	e := newTestServer(t, func(cfg *config.Config) {
		cfg.Security.RateLimit.MaxPerSecond = 1
		cfg.Security.RateLimit.MaxPerMinute = 10
	})

	e.dial(t)

	conn, resp, err := websocket.DefaultDialer.Dial(e.wsURL(), nil)
	if conn != nil {
		_ = conn.Close()
	}
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestServer_Health(t *testing.T) {
	t.Parallel()

	e := newTestServer(t, nil)

	resp, err := http.Get(e.ts.URL + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	e.mr.Close()
	resp, err = http.Get(e.ts.URL + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestServer_Leaderboard(t *testing.T) {
	t.Parallel()

	e := newTestServer(t, nil)

	resp, err := http.Get(e.ts.URL + "/leaderboard?limit=" + strconv.Itoa(500))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var board protocol.LeaderboardResultPayload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&board))
	assert.Empty(t, board.Entries)
}

func TestServer_DirectoryAndBroadcast(t *testing.T) {
	t.Parallel()

	e := newTestServer(t, nil)
	assert.ErrorIs(t, e.s.SendTo("missing", codec.MustNewMessage(protocol.MsgPong, nil)), ErrClientOffline)
	assert.False(t, e.s.IsOnline("missing"))
	assert.Nil(t, e.s.GetClientByID("missing"))

	a := e.dial(t)
	readUntil(t, a, protocol.MsgConnected)
	b := e.dial(t)
	readUntil(t, b, protocol.MsgConnected)

	writeMsg(t, a, protocol.MsgCreateRoom, protocol.CreateRoomPayload{})
	code := decode[protocol.RoomCreatedPayload](t, readUntil(t, a, protocol.MsgRoomCreated)).RoomCode

	e.s.BroadcastToRoom(code, codec.NewErrorMessageWithText(protocol.ErrCodeServerMaintenance, "room"))
	e.s.BroadcastToLobby(codec.NewErrorMessageWithText(protocol.ErrCodeServerMaintenance, "lobby"))

	assert.Equal(t, "room", decode[protocol.ErrorPayload](t, readUntil(t, a, protocol.MsgError)).Message)
	assert.Equal(t, "lobby", decode[protocol.ErrorPayload](t, readUntil(t, b, protocol.MsgError)).Message)
}

func TestServer_RegisterUnregister_Concurrency(t *testing.T) {
	t.Parallel()

	s := &Server{clients: make(map[string]*Client)}

	var wg sync.WaitGroup
	const count = 100

	for i := range count {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := &Client{ID: strconv.Itoa(i)}
			s.RegisterClient(c.ID, c)
		}()
	}
	wg.Wait()
	assert.Equal(t, count, s.GetOnlineCount())

	for i := range count {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.UnregisterClient(strconv.Itoa(i))
		}()
	}
	wg.Wait()
	assert.Zero(t, s.GetOnlineCount())
}

func TestServer_MaintenanceMode(t *testing.T) {
	t.Parallel()

	e := newTestServer(t, nil)
	lobby := e.dial(t)
	readUntil(t, lobby, protocol.MsgConnected)

	assert.False(t, e.s.IsMaintenanceMode())
	e.s.EnterMaintenanceMode()
	assert.True(t, e.s.IsMaintenanceMode())

	notice := decode[protocol.ErrorPayload](t, readUntil(t, lobby, protocol.MsgError))
	assert.Equal(t, protocol.ErrCodeServerMaintenance, notice.Code)

	writeMsg(t, lobby, protocol.MsgCreateRoom, protocol.CreateRoomPayload{})
	rejected := decode[protocol.ErrorPayload](t, readUntil(t, lobby, protocol.MsgError))
	assert.Equal(t, protocol.ErrCodeServerMaintenance, rejected.Code)
}

func TestServer_GracefulShutdown_NoActiveGames(t *testing.T) {
	t.Parallel()

	e := newTestServer(t, func(cfg *config.Config) {
		cfg.Game.ShutdownCheckInterval = 1
		cfg.Game.RoomCleanupDelay = 0
	})
	conn := e.dial(t)
	readUntil(t, conn, protocol.MsgConnected)

	done := make(chan struct{})
	go func() {
		e.s.GracefulShutdown(time.Minute)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("graceful shutdown did not finish")
	}
	assert.True(t, e.s.IsMaintenanceMode())

	// 连接被服务器关闭
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(readTimeout)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
