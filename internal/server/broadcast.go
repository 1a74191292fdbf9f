package server

import "github.com/palemoky/take-six/internal/protocol"

// GetOnlineCount 获取在线连接数
func (s *Server) GetOnlineCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// Broadcast 广播消息给所有连接
func (s *Server) Broadcast(msg *protocol.Message) {
	s.broadcastIf(msg, func(*Client) bool { return true })
}

// BroadcastToLobby 广播消息给未在房间内的连接
func (s *Server) BroadcastToLobby(msg *protocol.Message) {
	s.broadcastIf(msg, func(c *Client) bool { return c.GetRoom() == "" })
}

// BroadcastToRoom 广播消息给指定房间内的连接
func (s *Server) BroadcastToRoom(roomCode string, msg *protocol.Message) {
	s.broadcastIf(msg, func(c *Client) bool { return c.GetRoom() == roomCode })
}

// broadcastIf 先复制目标列表，发送时不持有 clientsMu
func (s *Server) broadcastIf(msg *protocol.Message, match func(*Client) bool) {
	s.clientsMu.RLock()
	targets := make([]*Client, 0, len(s.clients))
	for _, c := range s.clients {
		if match(c) {
			targets = append(targets, c)
		}
	}
	s.clientsMu.RUnlock()

	for _, c := range targets {
		c.SendMessage(msg)
	}
}
