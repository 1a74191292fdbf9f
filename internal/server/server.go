package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/palemoky/take-six/internal/config"
	"github.com/palemoky/take-six/internal/game/room"
	"github.com/palemoky/take-six/internal/protocol"
	"github.com/palemoky/take-six/internal/protocol/codec"
	"github.com/palemoky/take-six/internal/server/handler"
	"github.com/palemoky/take-six/internal/server/session"
	"github.com/palemoky/take-six/internal/server/storage"
	"github.com/palemoky/take-six/internal/types"
)

const monitorInterval = 30 * time.Second

// ErrClientOffline 目标连接不在线
var ErrClientOffline = errors.New("client offline")

// Server WebSocket 服务器
type Server struct {
	config         *config.Config
	redis          *redis.Client
	redisStore     *storage.RedisStore
	leaderboard    *storage.LeaderboardManager
	roomManager    *room.RoomManager
	sessionManager *session.SessionManager
	handler        *handler.Handler
	codec          *codec.Codec
	upgrader       websocket.Upgrader

	clients   map[string]*Client
	clientsMu sync.RWMutex

	// 安全组件
	rateLimiter    *RateLimiter
	originChecker  *OriginChecker
	messageLimiter *MessageRateLimiter
	ipFilter       *IPFilter

	// 连接控制
	maxConnections int
	semaphore      chan struct{}

	// 维护模式
	maintenanceMode bool
	maintenanceMu   sync.RWMutex

	httpServer *http.Server
	stop       chan struct{}
	stopOnce   sync.Once
	done       chan struct{}
}

// NewServer 创建服务器实例，extra 为 Redis 排行榜之外的对局结果接收方（如 Postgres）
func NewServer(cfg *config.Config, extra ...storage.HistorySink) (*Server, error) {
	wireCodec, err := codec.New(codec.Format(cfg.Server.Codec))
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis 连接失败: %w", err)
	}

	s := &Server{
		config:      cfg,
		redis:       rdb,
		redisStore:  storage.NewRedisStore(rdb),
		leaderboard: storage.NewLeaderboardManager(rdb),
		codec:       wireCodec,
		clients:     make(map[string]*Client),
		rateLimiter: NewRateLimiter(
			cfg.Security.RateLimit.MaxPerSecond,
			cfg.Security.RateLimit.MaxPerMinute,
			cfg.Security.RateLimit.BanDurationTime(),
		),
		originChecker:  NewOriginChecker(cfg.Security.AllowedOrigins),
		messageLimiter: NewMessageRateLimiter(cfg.Security.MessageLimit.MaxPerSecond),
		ipFilter:       NewIPFilter(cfg.Security.IPWhitelist, cfg.Security.IPBlacklist),
		maxConnections: cfg.Server.MaxConnections,
		semaphore:      make(chan struct{}, cfg.Server.MaxConnections),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}

	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		// 来源在升级前已由 originChecker 校验
		CheckOrigin: func(r *http.Request) bool { return true },
		// 消息都很小，压缩反而是负优化
		EnableCompression: false,
	}

	s.sessionManager = session.NewSessionManager(session.Options{
		Store:            s.redisStore,
		ReconnectTimeout: cfg.Game.SessionTimeoutDuration(),
		ExpireTime:       cfg.Game.RoomTimeoutDuration(),
	})

	history := storage.MultiSink{s.leaderboard}
	history = append(history, extra...)

	s.roomManager = room.NewRoomManager(room.ManagerConfig{
		Directory:    s,
		Store:        s.redisStore,
		History:      history,
		OnMembership: s.onMembership,
		RoomTimeout:  cfg.Game.RoomTimeoutDuration(),
		Defaults: room.Options{
			Capacity:       cfg.Game.DefaultCapacity,
			ScoreThreshold: cfg.Game.ScoreThreshold,
			MaxRounds:      cfg.Game.MaxRounds,
			ChoiceTimeout:  cfg.Game.ChoiceTimeoutDuration(),
		},
	})

	s.handler = handler.NewHandler(handler.HandlerDeps{
		Server:         s,
		RoomManager:    s.roomManager,
		SessionManager: s.sessionManager,
		Leaderboard:    s.leaderboard,
	})

	s.httpServer = &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second, // 防止 Slowloris 攻击
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("🔒 安全配置: 连接限制=%d/s, 消息限制=%d/s, 最大连接数=%d, 编码=%s",
		cfg.Security.RateLimit.MaxPerSecond, cfg.Security.MessageLimit.MaxPerSecond,
		cfg.Server.MaxConnections, wireCodec.Format())

	return s, nil
}

// Router HTTP 路由
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/ws", s.handleWebSocket)
	r.Get("/health", s.handleHealth)
	r.Get("/rooms", s.handleRooms)
	r.Get("/leaderboard", s.handleLeaderboard)

	return r
}

// Start 启动服务器，阻塞直到关闭
func (s *Server) Start() error {
	go s.monitorStats()

	log.Printf("🚀 服务器启动在 ws://%s/ws (CPU核心数: %d)", s.httpServer.Addr, runtime.NumCPU())
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// onMembership 连接进入或离开房间时同步客户端与会话上的房间号
func (s *Server) onMembership(connID, roomCode string) {
	c := s.getClient(connID)
	if c == nil {
		return
	}
	c.SetRoom(roomCode)
	s.sessionManager.SetRoom(c.GetPlayerID(), roomCode)
}

// onDisconnect 连接断开：会话离线、房间托管、注销连接
func (s *Server) onDisconnect(c *Client) {
	s.sessionManager.SetOffline(c.GetPlayerID(), c.ID)
	// 先通知房间再注销，房间成员回调仍能找到该连接
	if code := c.GetRoom(); code != "" {
		s.roomManager.OnDisconnected(code, c.ID)
	}
	s.unregisterClient(c)
	s.messageLimiter.ClearRateLimit(c.ID)
	<-s.semaphore
}

// --- room.Directory ---

// SendTo 向连接投递消息，不阻塞
func (s *Server) SendTo(connID string, msg *protocol.Message) error {
	c := s.getClient(connID)
	if c == nil {
		return ErrClientOffline
	}
	return c.Send(msg)
}

// IsOnline 连接是否在线
func (s *Server) IsOnline(connID string) bool {
	c := s.getClient(connID)
	return c != nil && !c.IsClosed()
}

// --- types.ServerInterface ---

func (s *Server) getClient(id string) *Client {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return s.clients[id]
}

// GetClientByID 按连接 ID 查找客户端
func (s *Server) GetClientByID(id string) types.ClientInterface {
	if c := s.getClient(id); c != nil {
		return c
	}
	// 避免返回包着 nil 指针的接口
	return nil
}

func (s *Server) RegisterClient(id string, client types.ClientInterface) {
	if c, ok := client.(*Client); ok {
		s.clientsMu.Lock()
		s.clients[id] = c
		s.clientsMu.Unlock()
	}
}

func (s *Server) UnregisterClient(id string) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	delete(s.clients, id)
}

func (s *Server) registerClient(c *Client) {
	s.RegisterClient(c.ID, c)
}

func (s *Server) unregisterClient(c *Client) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	if cur, ok := s.clients[c.ID]; ok && cur == c {
		delete(s.clients, c.ID)
		log.Printf("❌ 玩家 %s (%s) 已断开", c.GetName(), c.ID)
	}
}
