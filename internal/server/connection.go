package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/palemoky/take-six/internal/protocol"
	"github.com/palemoky/take-six/internal/protocol/codec"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 50
)

// handleWebSocket 处理 WebSocket 连接
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	clientIP := GetClientIP(r)

	// 维护模式检查（最优先）
	if s.IsMaintenanceMode() {
		log.Printf("🔧 维护模式，拒绝新连接: %s", clientIP)
		http.Error(w, "Server is under maintenance, please try again later", http.StatusServiceUnavailable)
		return
	}

	if !s.ipFilter.IsAllowed(clientIP) {
		log.Printf("🚫 IP %s 被过滤器拒绝", clientIP)
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	if !s.originChecker.Check(r) {
		log.Printf("🚫 来源验证失败: %s (IP: %s)", r.Header.Get("Origin"), clientIP)
		http.Error(w, "Origin not allowed", http.StatusForbidden)
		return
	}

	if !s.rateLimiter.Allow(clientIP) {
		log.Printf("🚫 IP %s 请求过于频繁", clientIP)
		http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
		return
	}

	// 连接数限制，断开时释放
	select {
	case s.semaphore <- struct{}{}:
	default:
		log.Printf("🚫 达到最大连接数限制 (%d), IP: %s", s.maxConnections, clientIP)
		http.Error(w, "Server Full", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		<-s.semaphore
		log.Printf("WebSocket 升级失败: %v", err)
		return
	}

	client := NewClient(s, conn, clientIP)
	s.registerClient(client)

	sess := s.sessionManager.CreateSession(client.GetPlayerID(), client.GetName(), client.ID)

	client.SendMessage(codec.MustNewMessage(protocol.MsgConnected, protocol.ConnectedPayload{
		PlayerID:       sess.PlayerID,
		PlayerName:     sess.PlayerName,
		ReconnectToken: sess.ReconnectToken,
	}))

	log.Printf("✅ 玩家 %s (%s) 已连接, IP: %s", client.GetName(), client.ID, clientIP)

	go client.WritePump()
	go client.ReadPump()
}

// handleHealth 健康检查
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.redisStore.Ping(ctx); err != nil {
		http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleRooms 公开房间列表
func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, protocol.RoomListResultPayload{
		Rooms: s.roomManager.GetRoomList(),
	})
}

// handleLeaderboard 排行榜，?limit= 控制条数
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := defaultLeaderboardLimit
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = min(v, maxLeaderboardLimit)
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	entries, err := s.leaderboard.GetLeaderboard(ctx, limit)
	if err != nil {
		log.Printf("获取排行榜失败: %v", err)
		http.Error(w, "leaderboard unavailable", http.StatusInternalServerError)
		return
	}

	out := make([]protocol.LeaderboardEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, protocol.LeaderboardEntry{
			Rank:       e.Rank,
			PlayerID:   e.PlayerID,
			PlayerName: e.PlayerName,
			Wins:       e.Wins,
			TotalGames: e.TotalGames,
			WinRate:    e.WinRate,
		})
	}
	writeJSON(w, http.StatusOK, protocol.LeaderboardResultPayload{Entries: out})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("写入响应失败: %v", err)
	}
}
