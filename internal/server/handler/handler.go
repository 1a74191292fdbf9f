package handler

import (
	"context"
	"log"

	"github.com/palemoky/take-six/internal/apperrors"
	"github.com/palemoky/take-six/internal/game/room"
	"github.com/palemoky/take-six/internal/protocol"
	"github.com/palemoky/take-six/internal/protocol/codec"
	"github.com/palemoky/take-six/internal/server/session"
	"github.com/palemoky/take-six/internal/server/storage"
	"github.com/palemoky/take-six/internal/types"
)

// StatsReader 个人统计与排行榜查询
type StatsReader interface {
	GetPlayerStats(ctx context.Context, playerID string) (*storage.PlayerStats, error)
	GetPlayerRank(ctx context.Context, playerID string) (int64, error)
	GetLeaderboard(ctx context.Context, limit int) ([]*storage.LeaderboardEntry, error)
}

// HandlerDeps 处理器依赖
type HandlerDeps struct {
	Server         types.ServerInterface
	RoomManager    *room.RoomManager
	SessionManager *session.SessionManager
	Leaderboard    StatsReader // 可为 nil
}

// Handler 消息处理器
type Handler struct {
	server         types.ServerInterface
	roomManager    *room.RoomManager
	sessionManager *session.SessionManager
	leaderboard    StatsReader
	handlers       map[protocol.MessageType]handlerFunc
}

// handlerFunc 统一的处理器函数签名
type handlerFunc func(client types.ClientInterface, msg *protocol.Message)

// NewHandler 创建处理器
func NewHandler(deps HandlerDeps) *Handler {
	h := &Handler{
		server:         deps.Server,
		roomManager:    deps.RoomManager,
		sessionManager: deps.SessionManager,
		leaderboard:    deps.Leaderboard,
	}
	h.initHandlers()
	return h
}

// initHandlers 初始化消息处理器映射
func (h *Handler) initHandlers() {
	h.handlers = map[protocol.MessageType]handlerFunc{
		// 连接操作
		protocol.MsgPing:      h.handlePing,
		protocol.MsgReconnect: h.handleReconnect,

		// 房间操作
		protocol.MsgCreateRoom:     h.handleCreateRoom,
		protocol.MsgJoinRoom:       h.handleJoinRoom,
		protocol.MsgLeaveRoom:      func(c types.ClientInterface, _ *protocol.Message) { h.handleLeaveRoom(c) },
		protocol.MsgReady:          func(c types.ClientInterface, m *protocol.Message) { h.handleReady(c, m, true) },
		protocol.MsgCancelReady:    func(c types.ClientInterface, m *protocol.Message) { h.handleReady(c, m, false) },
		protocol.MsgStartGame:      h.handleStartGame,
		protocol.MsgRequestNewGame: h.handleRequestNewGame,
		protocol.MsgAddBots:        h.handleAddBots,
		protocol.MsgKickPlayer:     h.handleKickPlayer,

		// 游戏操作
		protocol.MsgPlayCard:  h.handlePlayCard,
		protocol.MsgChooseRow: h.handleChooseRow,

		// 信息查询
		protocol.MsgGetRoomList:    func(c types.ClientInterface, _ *protocol.Message) { h.handleGetRoomList(c) },
		protocol.MsgGetRoomState:   h.handleGetRoomState,
		protocol.MsgGetStats:       func(c types.ClientInterface, _ *protocol.Message) { h.handleGetStats(c) },
		protocol.MsgGetLeaderboard: h.handleGetLeaderboard,
	}
}

// Handle 处理消息
func (h *Handler) Handle(client types.ClientInterface, msg *protocol.Message) {
	if handler, ok := h.handlers[msg.Type]; ok {
		handler(client, msg)
		return
	}

	log.Printf("⚠️  未知消息类型: '%s' (来自玩家: %s, ID: %s)", msg.Type, client.GetName(), client.GetID())
	client.SendMessage(codec.NewErrorMessage(protocol.ErrCodeInvalidMsg))
}

// identity 连接对应的房间身份
func identity(client types.ClientInterface) room.Identity {
	return room.Identity{
		ConnID:    client.GetID(),
		AccountID: client.GetPlayerID(),
		Name:      client.GetName(),
	}
}

// sendError 只回给发起请求的连接
func sendError(client types.ClientInterface, err error) {
	code := apperrors.Code(err)
	if code == protocol.ErrCodeInternal {
		log.Printf("❌ 处理玩家 %s 的请求失败: %v", client.GetName(), err)
	}
	client.SendMessage(codec.NewErrorMessage(code))
}

// parse 解析 payload，失败时回复格式错误
func parse[T any](client types.ClientInterface, msg *protocol.Message) (*T, bool) {
	payload, err := codec.ParsePayload[T](msg)
	if err != nil {
		client.SendMessage(codec.NewErrorMessage(protocol.ErrCodeInvalidMsg))
		return nil, false
	}
	return payload, true
}

// roomCode 请求中的房间号，为空时使用连接当前所在房间
func roomCode(client types.ClientInterface, code string) (string, error) {
	if code != "" {
		return code, nil
	}
	if current := client.GetRoom(); current != "" {
		return current, nil
	}
	return "", apperrors.ErrNotInRoom
}
