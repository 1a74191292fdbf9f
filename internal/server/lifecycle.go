package server

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"time"

	"github.com/palemoky/take-six/internal/protocol"
	"github.com/palemoky/take-six/internal/protocol/codec"
)

// monitorStats 定期输出服务器状态
func (s *Server) monitorStats() {
	ticker := time.NewTicker(monitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			var m runtime.MemStats
			runtime.ReadMemStats(&m)

			log.Printf("📊 [监控] 在线: %d | 房间: %d | 对局中: %d | 会话: %d | Goroutines: %d | 活跃连接: %d/%d | 内存: %.2f MB",
				s.GetOnlineCount(),
				s.roomManager.RoomCount(),
				s.roomManager.GetActiveGamesCount(),
				s.sessionManager.Count(),
				runtime.NumGoroutine(),
				len(s.semaphore),
				s.maxConnections,
				float64(m.Alloc)/1024/1024)
		}
	}
}

// EnterMaintenanceMode 进入维护模式：拒绝新连接和新房间，进行中的对局不受影响
func (s *Server) EnterMaintenanceMode() {
	s.maintenanceMu.Lock()
	if s.maintenanceMode {
		s.maintenanceMu.Unlock()
		return
	}
	s.maintenanceMode = true
	s.maintenanceMu.Unlock()

	s.BroadcastToLobby(codec.NewErrorMessageWithText(protocol.ErrCodeServerMaintenance,
		"👷🏻‍♂️ 维护模式：停止新的房间创建"))
	for _, code := range s.roomManager.ActiveGameCodes() {
		s.BroadcastToRoom(code, codec.NewErrorMessageWithText(protocol.ErrCodeServerMaintenance,
			"👷🏻‍♂️ 本局结束后服务器将停机维护"))
	}

	log.Println("🔧 进入维护模式：停止新连接和房间创建")
}

// IsMaintenanceMode 检查是否在维护模式
func (s *Server) IsMaintenanceMode() bool {
	s.maintenanceMu.RLock()
	defer s.maintenanceMu.RUnlock()
	return s.maintenanceMode
}

// GracefulShutdown 进入维护模式，等待对局结束（最多 timeout）后关闭
func (s *Server) GracefulShutdown(timeout time.Duration) {
	s.EnterMaintenanceMode()

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(s.config.Game.ShutdownCheckIntervalDuration())
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		activeGames := s.roomManager.GetActiveGamesCount()
		if activeGames == 0 {
			log.Printf("✅ 所有对局已结束，将在 %ds 后关闭服务器！", s.config.Game.RoomCleanupDelay)
			s.Broadcast(codec.NewErrorMessageWithText(protocol.ErrCodeServerMaintenance,
				fmt.Sprintf("🚧 服务器将在 %d 秒后停机维护！", s.config.Game.RoomCleanupDelay)))
			time.Sleep(s.config.Game.RoomCleanupDelayDuration())
			break
		}
		log.Printf("⏳ 等待 %d 个对局结束...", activeGames)
		<-ticker.C
	}

	if activeGames := s.roomManager.GetActiveGamesCount(); activeGames > 0 {
		log.Printf("⚠️ 超时，仍有 %d 个对局进行中，强制关闭", activeGames)
	}

	s.Shutdown()
}

// Shutdown 立即关闭并释放资源，可重复调用
func (s *Server) Shutdown() {
	s.stopOnce.Do(func() {
		close(s.stop)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Printf("HTTP 服务关闭失败: %v", err)
		}
		cancel()

		s.clientsMu.RLock()
		clients := make([]*Client, 0, len(s.clients))
		for _, c := range s.clients {
			clients = append(clients, c)
		}
		s.clientsMu.RUnlock()
		for _, c := range clients {
			c.Close()
		}

		s.roomManager.Stop()
		s.sessionManager.Stop()
		s.rateLimiter.Stop()

		_ = s.redis.Close()

		log.Println("服务器已关闭")
		close(s.done)
	})
}

// Done 关闭完成后返回的通道被关闭
func (s *Server) Done() <-chan struct{} {
	return s.done
}
