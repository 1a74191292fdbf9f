package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/palemoky/take-six/internal/server/storage"
)

const (
	// 默认重连等待时间
	defaultReconnectTimeout = 2 * time.Minute
	// 默认会话过期时间
	defaultSessionExpireTime = 10 * time.Minute

	cleanupInterval = time.Minute
	persistTimeout  = 3 * time.Second
)

var (
	ErrInvalidToken   = errors.New("重连令牌无效或已过期")
	ErrSessionExpired = errors.New("会话已过期")
)

// Store 会话持久化（尽力而为，进程重启后仍可凭令牌找回账号）
type Store interface {
	SaveSession(ctx context.Context, session *storage.PlayerSessionData, ttl time.Duration) error
	LoadSession(ctx context.Context, playerID string) (*storage.PlayerSessionData, error)
	DeleteSession(ctx context.Context, playerID string) error
}

// PlayerSession 玩家会话（用于断线重连）
// PlayerID 是稳定的账号 ID，ConnID 是当前绑定的连接。
type PlayerSession struct {
	PlayerID       string
	PlayerName     string
	ReconnectToken string

	mu             sync.RWMutex
	connID         string
	roomCode       string
	disconnectedAt time.Time
	online         bool
}

// ConnID 当前连接
func (s *PlayerSession) ConnID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connID
}

// RoomCode 所在房间
func (s *PlayerSession) RoomCode() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roomCode
}

// IsOnline 是否在线
func (s *PlayerSession) IsOnline() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.online
}

// DisconnectedAt 断线时间，在线时为零值
func (s *PlayerSession) DisconnectedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.disconnectedAt
}

func (s *PlayerSession) toData() *storage.PlayerSessionData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data := &storage.PlayerSessionData{
		PlayerID:       s.PlayerID,
		PlayerName:     s.PlayerName,
		ReconnectToken: s.ReconnectToken,
		RoomCode:       s.roomCode,
		IsOnline:       s.online,
	}
	if !s.disconnectedAt.IsZero() {
		data.DisconnectedAt = s.disconnectedAt.Unix()
	}
	return data
}

// Options 会话管理器参数
type Options struct {
	Store            Store         // 可为 nil
	ReconnectTimeout time.Duration // 断线后允许重连的时长
	ExpireTime       time.Duration // 离线会话保留时长
}

// SessionManager 会话管理器
type SessionManager struct {
	opts     Options
	sessions map[string]*PlayerSession // playerID -> session
	tokens   map[string]string         // token -> playerID
	mu       sync.RWMutex

	stop     chan struct{}
	stopOnce sync.Once
}

// NewSessionManager 创建会话管理器
func NewSessionManager(opts Options) *SessionManager {
	if opts.ReconnectTimeout <= 0 {
		opts.ReconnectTimeout = defaultReconnectTimeout
	}
	if opts.ExpireTime <= 0 {
		opts.ExpireTime = defaultSessionExpireTime
	}
	opts.ExpireTime = max(opts.ExpireTime, opts.ReconnectTimeout)

	sm := &SessionManager{
		opts:     opts,
		sessions: make(map[string]*PlayerSession),
		tokens:   make(map[string]string),
		stop:     make(chan struct{}),
	}

	// 启动会话清理协程
	go sm.cleanupLoop()

	return sm
}

// Stop 停止清理协程
func (sm *SessionManager) Stop() {
	sm.stopOnce.Do(func() { close(sm.stop) })
}

// CreateSession 为新连接创建会话
func (sm *SessionManager) CreateSession(playerID, playerName, connID string) *PlayerSession {
	session := &PlayerSession{
		PlayerID:       playerID,
		PlayerName:     playerName,
		ReconnectToken: generateToken(),
		connID:         connID,
		online:         true,
	}

	sm.mu.Lock()
	if old, ok := sm.sessions[playerID]; ok {
		delete(sm.tokens, old.ReconnectToken)
	}
	sm.sessions[playerID] = session
	sm.tokens[session.ReconnectToken] = playerID
	sm.mu.Unlock()

	sm.persist(session)
	return session
}

// GetSession 获取会话
func (sm *SessionManager) GetSession(playerID string) *PlayerSession {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.sessions[playerID]
}

// GetSessionByToken 通过 token 获取会话
func (sm *SessionManager) GetSessionByToken(token string) *PlayerSession {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	playerID, ok := sm.tokens[token]
	if !ok {
		return nil
	}
	return sm.sessions[playerID]
}

// Reconnect 校验令牌并把会话绑定到新连接
// 内存中没有时尝试从存储中恢复（服务重启后房间已不存在，只恢复账号）。
func (sm *SessionManager) Reconnect(ctx context.Context, token, playerID, connID string) (*PlayerSession, error) {
	session := sm.GetSession(playerID)
	if session == nil {
		restored, err := sm.restore(ctx, token, playerID)
		if err != nil {
			return nil, err
		}
		session = restored
	}

	if !sm.CanReconnect(token, playerID) {
		return nil, ErrInvalidToken
	}

	session.mu.Lock()
	session.connID = connID
	session.online = true
	session.disconnectedAt = time.Time{}
	session.mu.Unlock()

	sm.persist(session)
	return session, nil
}

func (sm *SessionManager) restore(ctx context.Context, token, playerID string) (*PlayerSession, error) {
	if sm.opts.Store == nil {
		return nil, ErrInvalidToken
	}
	data, err := sm.opts.Store.LoadSession(ctx, playerID)
	if err != nil {
		log.Printf("⚠️ 加载会话 %s 失败: %v", playerID, err)
		return nil, ErrInvalidToken
	}
	if data == nil || data.ReconnectToken != token {
		return nil, ErrInvalidToken
	}
	if data.DisconnectedAt != 0 && time.Since(time.Unix(data.DisconnectedAt, 0)) > sm.opts.ReconnectTimeout {
		return nil, ErrSessionExpired
	}

	session := &PlayerSession{
		PlayerID:       data.PlayerID,
		PlayerName:     data.PlayerName,
		ReconnectToken: data.ReconnectToken,
		disconnectedAt: time.Now(),
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()
	if existing, ok := sm.sessions[playerID]; ok {
		return existing, nil
	}
	sm.sessions[playerID] = session
	sm.tokens[token] = playerID
	return session, nil
}

// SetOffline 设置玩家离线
// 只有会话仍绑定在 connID 上时才生效，已被新连接接管的旧连接断开不影响会话。
func (sm *SessionManager) SetOffline(playerID, connID string) bool {
	session := sm.GetSession(playerID)
	if session == nil {
		return false
	}

	session.mu.Lock()
	if session.connID != connID || !session.online {
		session.mu.Unlock()
		return false
	}
	session.online = false
	session.disconnectedAt = time.Now()
	session.mu.Unlock()

	sm.persist(session)
	return true
}

// SetRoom 设置玩家所在房间
func (sm *SessionManager) SetRoom(playerID, roomCode string) {
	session := sm.GetSession(playerID)
	if session == nil {
		return
	}

	session.mu.Lock()
	changed := session.roomCode != roomCode
	session.roomCode = roomCode
	session.mu.Unlock()

	if changed {
		sm.persist(session)
	}
}

// DeleteSession 删除会话
func (sm *SessionManager) DeleteSession(playerID string) {
	sm.mu.Lock()
	session, ok := sm.sessions[playerID]
	if ok {
		delete(sm.tokens, session.ReconnectToken)
		delete(sm.sessions, playerID)
	}
	sm.mu.Unlock()

	if ok && sm.opts.Store != nil {
		go sm.storeCall(func(ctx context.Context) error {
			return sm.opts.Store.DeleteSession(ctx, playerID)
		})
	}
}

// CanReconnect 检查玩家是否可以重连
func (sm *SessionManager) CanReconnect(token, playerID string) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	storedPlayerID, ok := sm.tokens[token]
	if !ok || storedPlayerID != playerID {
		return false
	}

	session, ok := sm.sessions[playerID]
	if !ok {
		return false
	}

	session.mu.RLock()
	defer session.mu.RUnlock()

	// 检查是否在重连时限内
	if !session.online && !session.disconnectedAt.IsZero() &&
		time.Since(session.disconnectedAt) > sm.opts.ReconnectTimeout {
		return false
	}

	return true
}

// IsOnline 检查玩家是否在线
func (sm *SessionManager) IsOnline(playerID string) bool {
	session := sm.GetSession(playerID)
	return session != nil && session.IsOnline()
}

// Count 会话总数
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// cleanupLoop 定期清理过期会话
func (sm *SessionManager) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sm.cleanup(time.Now())
		case <-sm.stop:
			return
		}
	}
}

// cleanup 清理离线超过过期时间的会话
func (sm *SessionManager) cleanup(now time.Time) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	for playerID, session := range sm.sessions {
		session.mu.RLock()
		expired := !session.online && now.Sub(session.disconnectedAt) > sm.opts.ExpireTime
		session.mu.RUnlock()
		if expired {
			delete(sm.tokens, session.ReconnectToken)
			delete(sm.sessions, playerID)
		}
	}
}

// persist 异步写入会话存储，TTL 与会话过期时间一致
func (sm *SessionManager) persist(session *PlayerSession) {
	if sm.opts.Store == nil {
		return
	}
	data := session.toData()
	go sm.storeCall(func(ctx context.Context) error {
		return sm.opts.Store.SaveSession(ctx, data, sm.opts.ExpireTime)
	})
}

func (sm *SessionManager) storeCall(fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		log.Printf("⚠️ 会话存储失败: %v", err)
	}
}

// generateToken 生成随机 token
func generateToken() string {
	bytes := make([]byte, 32)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
