package handler

import (
	"github.com/palemoky/take-six/internal/apperrors"
	"github.com/palemoky/take-six/internal/game/room"
	"github.com/palemoky/take-six/internal/protocol"
	"github.com/palemoky/take-six/internal/protocol/codec"
	"github.com/palemoky/take-six/internal/types"
)

// rejectInMaintenance 维护模式下拒绝新建和加入房间
func (h *Handler) rejectInMaintenance(client types.ClientInterface, text string) bool {
	if !h.server.IsMaintenanceMode() {
		return false
	}
	client.SendMessage(codec.NewErrorMessageWithText(protocol.ErrCodeServerMaintenance, text))
	return true
}

// leaveCurrent 如果已在其他房间中，先离开
func (h *Handler) leaveCurrent(client types.ClientInterface, except string) {
	if code := client.GetRoom(); code != "" && code != except {
		_ = h.roomManager.Leave(code, client.GetID())
	}
}

// handleCreateRoom 处理创建房间
func (h *Handler) handleCreateRoom(client types.ClientInterface, msg *protocol.Message) {
	if h.rejectInMaintenance(client, "服务器维护中，暂停创建房间") {
		return
	}

	payload, ok := parse[protocol.CreateRoomPayload](client, msg)
	if !ok {
		return
	}

	h.leaveCurrent(client, "")

	r, err := h.roomManager.CreateRoom(identity(client), room.Options{
		Capacity:       payload.Capacity,
		ScoreThreshold: payload.ScoreThreshold,
		MaxRounds:      payload.MaxRounds,
		Private:        payload.Private,
		Password:       payload.Password,
	})
	if err != nil {
		sendError(client, err)
		return
	}

	created := protocol.RoomCreatedPayload{RoomCode: r.Code}
	if snap, err := r.Snapshot(client.GetID()); err == nil {
		for _, p := range snap.Players {
			if p.ID == client.GetID() {
				created.Player = p
			}
		}
	}
	client.SendMessage(codec.MustNewMessage(protocol.MsgRoomCreated, created))
}

// handleJoinRoom 处理加入房间，成功后由房间推送 room_joined
func (h *Handler) handleJoinRoom(client types.ClientInterface, msg *protocol.Message) {
	if h.rejectInMaintenance(client, "服务器维护中，暂停加入房间") {
		return
	}

	payload, ok := parse[protocol.JoinRoomPayload](client, msg)
	if !ok {
		return
	}
	if payload.RoomCode == "" {
		sendError(client, apperrors.ErrRoomNotFound)
		return
	}

	h.leaveCurrent(client, payload.RoomCode)

	if _, err := h.roomManager.Join(payload.RoomCode, identity(client), payload.Password); err != nil {
		sendError(client, err)
	}
}

// handleLeaveRoom 处理离开房间
func (h *Handler) handleLeaveRoom(client types.ClientInterface) {
	code := client.GetRoom()
	if code == "" {
		sendError(client, apperrors.ErrNotInRoom)
		return
	}
	if err := h.roomManager.Leave(code, client.GetID()); err != nil {
		sendError(client, err)
	}
}

// handleReady 处理准备/取消准备
func (h *Handler) handleReady(client types.ClientInterface, msg *protocol.Message, ready bool) {
	h.inRoom(client, msg, func(code string) error {
		return h.roomManager.SetReady(code, client.GetID(), ready)
	})
}

// handleStartGame 处理开局请求
func (h *Handler) handleStartGame(client types.ClientInterface, msg *protocol.Message) {
	h.inRoom(client, msg, func(code string) error {
		return h.roomManager.StartGame(code, client.GetID())
	})
}

// handleRequestNewGame 处理再来一局
func (h *Handler) handleRequestNewGame(client types.ClientInterface, msg *protocol.Message) {
	h.inRoom(client, msg, func(code string) error {
		return h.roomManager.RequestNewGame(code, client.GetID())
	})
}

// handleAddBots 房主添加机器人
func (h *Handler) handleAddBots(client types.ClientInterface, msg *protocol.Message) {
	payload, ok := parse[protocol.AddBotsPayload](client, msg)
	if !ok {
		return
	}
	code, err := roomCode(client, payload.RoomCode)
	if err == nil {
		err = h.roomManager.AddBots(code, client.GetID(), payload.Count)
	}
	if err != nil {
		sendError(client, err)
	}
}

// handleKickPlayer 房主踢人
func (h *Handler) handleKickPlayer(client types.ClientInterface, msg *protocol.Message) {
	payload, ok := parse[protocol.KickPlayerPayload](client, msg)
	if !ok {
		return
	}
	code, err := roomCode(client, payload.RoomCode)
	if err == nil {
		err = h.roomManager.Kick(code, client.GetID(), payload.PlayerID)
	}
	if err != nil {
		sendError(client, err)
	}
}

// inRoom 解析只带房间号的请求并执行操作
func (h *Handler) inRoom(client types.ClientInterface, msg *protocol.Message, fn func(code string) error) {
	payload, ok := parse[protocol.RoomPayload](client, msg)
	if !ok {
		return
	}
	code, err := roomCode(client, payload.RoomCode)
	if err == nil {
		err = fn(code)
	}
	if err != nil {
		sendError(client, err)
	}
}
