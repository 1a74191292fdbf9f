package handler

import (
	"github.com/palemoky/take-six/internal/protocol"
	"github.com/palemoky/take-six/internal/protocol/codec"
	"github.com/palemoky/take-six/internal/types"
)

// handlePlayCard 处理出牌
func (h *Handler) handlePlayCard(client types.ClientInterface, msg *protocol.Message) {
	payload, ok := parse[protocol.PlayCardPayload](client, msg)
	if !ok {
		return
	}
	code, err := roomCode(client, payload.RoomCode)
	if err == nil {
		err = h.roomManager.PlayCard(code, client.GetID(), payload.Card)
	}
	if err != nil {
		sendError(client, err)
	}
}

// handleChooseRow 处理选择收走的行
func (h *Handler) handleChooseRow(client types.ClientInterface, msg *protocol.Message) {
	payload, ok := parse[protocol.ChooseRowPayload](client, msg)
	if !ok {
		return
	}
	code, err := roomCode(client, payload.RoomCode)
	if err == nil {
		err = h.roomManager.ChooseRow(code, client.GetID(), payload.Row)
	}
	if err != nil {
		sendError(client, err)
	}
}

// handleGetRoomState 返回按请求者裁剪的房间快照
func (h *Handler) handleGetRoomState(client types.ClientInterface, msg *protocol.Message) {
	payload, ok := parse[protocol.RoomPayload](client, msg)
	if !ok {
		return
	}
	code, err := roomCode(client, payload.RoomCode)
	if err != nil {
		sendError(client, err)
		return
	}
	snap, err := h.roomManager.Snapshot(code, client.GetID())
	if err != nil {
		sendError(client, err)
		return
	}
	client.SendMessage(codec.MustNewMessage(protocol.MsgRoomState, snap))
}
