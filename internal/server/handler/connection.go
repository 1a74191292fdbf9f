package handler

import (
	"context"
	"log"
	"time"

	"github.com/palemoky/take-six/internal/protocol"
	"github.com/palemoky/take-six/internal/protocol/codec"
	"github.com/palemoky/take-six/internal/types"
)

const reconnectTimeout = 5 * time.Second

// handlePing 处理心跳消息
func (h *Handler) handlePing(client types.ClientInterface, msg *protocol.Message) {
	payload, err := codec.ParsePayload[protocol.PingPayload](msg)
	if err != nil {
		return
	}

	// 立即回复 pong
	client.SendMessage(codec.MustNewMessage(protocol.MsgPong, protocol.PongPayload{
		ClientTimestamp: payload.Timestamp,
		ServerTimestamp: time.Now().UnixMilli(),
	}))
}

// handleReconnect 处理断线重连
// 新连接凭令牌接管原账号；原账号在房间中时重新绑定座位并返回快照。
func (h *Handler) handleReconnect(client types.ClientInterface, msg *protocol.Message) {
	payload, ok := parse[protocol.ReconnectPayload](client, msg)
	if !ok {
		return
	}

	var oldConn string
	if old := h.sessionManager.GetSession(payload.PlayerID); old != nil {
		oldConn = old.ConnID()
	}

	ctx, cancel := context.WithTimeout(context.Background(), reconnectTimeout)
	defer cancel()

	sess, err := h.sessionManager.Reconnect(ctx, payload.Token, payload.PlayerID, client.GetID())
	if err != nil {
		client.SendMessage(codec.NewErrorMessage(protocol.ErrCodeInvalidToken))
		return
	}

	// 新连接握手时分配的临时账号不再需要
	if tempID := client.GetPlayerID(); tempID != sess.PlayerID {
		if code := client.GetRoom(); code != "" {
			_ = h.roomManager.Leave(code, client.GetID())
		}
		h.sessionManager.DeleteSession(tempID)
	}
	client.BindAccount(sess.PlayerID, sess.PlayerName)

	code := sess.RoomCode()

	// 旧连接可能还没被发现断开：先让它下线，座位转入托管再重新绑定
	if oldConn != "" && oldConn != client.GetID() {
		if oc := h.server.GetClientByID(oldConn); oc != nil {
			oc.Close()
		}
		if code != "" {
			h.roomManager.OnDisconnected(code, oldConn)
		}
	}

	reconnected := protocol.ReconnectedPayload{
		PlayerID:   sess.PlayerID,
		PlayerName: sess.PlayerName,
	}

	if code != "" {
		if _, err := h.roomManager.Join(code, identity(client), ""); err != nil {
			log.Printf("重连到房间 %s 失败: %v", code, err)
			h.sessionManager.SetRoom(sess.PlayerID, "")
		} else if snap, err := h.roomManager.Snapshot(code, client.GetID()); err == nil {
			reconnected.RoomCode = code
			reconnected.RoomState = snap
		}
	}

	client.SendMessage(codec.MustNewMessage(protocol.MsgReconnected, reconnected))

	log.Printf("🔄 玩家 %s (%s) 重连成功", sess.PlayerName, sess.PlayerID)
}
