package room

import (
	"context"
	"log"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/palemoky/take-six/internal/apperrors"
	"github.com/palemoky/take-six/internal/protocol"
	"github.com/palemoky/take-six/internal/server/storage"
)

const cleanupInterval = time.Minute

// ManagerConfig 房间管理器依赖与参数
type ManagerConfig struct {
	Directory Directory
	Store     RoomStore           // 可为 nil
	History   storage.HistorySink // 可为 nil
	Scheduler Scheduler           // 为 nil 时使用 time.AfterFunc

	// OnMembership 连接加入/离开房间时回调（roomCode 为空表示离开），在房间锁外调用
	OnMembership func(connID, roomCode string)

	RoomTimeout time.Duration // 无在线真人的房间闲置多久后清理
	Defaults    Options       // 建房默认参数
}

// RoomManager 房间管理器
type RoomManager struct {
	cfg   ManagerConfig
	rooms map[string]*Room
	mu    sync.RWMutex

	stop     chan struct{}
	stopOnce sync.Once
}

// NewRoomManager 创建房间管理器并启动清理协程
func NewRoomManager(cfg ManagerConfig) *RoomManager {
	if cfg.Scheduler == nil {
		cfg.Scheduler = RealScheduler{}
	}
	rm := &RoomManager{
		cfg:   cfg,
		rooms: make(map[string]*Room),
		stop:  make(chan struct{}),
	}

	go rm.cleanupLoop()

	return rm
}

// Stop 停止清理协程
func (rm *RoomManager) Stop() {
	rm.stopOnce.Do(func() { close(rm.stop) })
}

// CreateRoom 创建房间，创建者自动加入并成为房主
func (rm *RoomManager) CreateRoom(owner Identity, opts Options) (*Room, error) {
	opts = rm.withDefaults(opts)
	if opts.OwnerID == "" {
		opts.OwnerID = owner.AccountID
	}

	rm.mu.Lock()
	code := rm.generateRoomCode()
	room := newRoom(code, opts, deps{
		dir:          rm.cfg.Directory,
		scheduler:    rm.cfg.Scheduler,
		store:        rm.cfg.Store,
		history:      rm.cfg.History,
		onEmpty:      rm.removeRoom,
		onMembership: rm.cfg.OnMembership,
	})
	rm.rooms[code] = room
	rm.mu.Unlock()

	log.Printf("🏠 房间 %s 已创建，房主 %s (容量 %d，阈值 %d)", code, owner.Name, room.opts.Capacity, room.opts.ScoreThreshold)

	if err := room.Join(owner, opts.Password); err != nil {
		rm.removeRoom(code)
		return nil, err
	}
	return room, nil
}

func (rm *RoomManager) withDefaults(opts Options) Options {
	d := rm.cfg.Defaults
	if opts.Capacity <= 0 {
		opts.Capacity = d.Capacity
	}
	if opts.ScoreThreshold <= 0 {
		opts.ScoreThreshold = d.ScoreThreshold
	}
	if opts.MaxRounds == 0 {
		opts.MaxRounds = d.MaxRounds
	}
	if opts.ChoiceTimeout <= 0 {
		opts.ChoiceTimeout = d.ChoiceTimeout
	}
	return opts
}

// removeRoom 从管理器中移除房间（在房间锁外调用）
func (rm *RoomManager) removeRoom(code string) {
	rm.mu.Lock()
	_, ok := rm.rooms[code]
	delete(rm.rooms, code)
	rm.mu.Unlock()

	if ok && rm.cfg.Store != nil {
		store := rm.cfg.Store
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
			defer cancel()
			if err := store.DeleteRoom(ctx, code); err != nil {
				log.Printf("⚠️ 删除房间 %s 快照失败: %v", code, err)
			}
		}()
	}
}

// GetRoom 获取房间
func (rm *RoomManager) GetRoom(code string) *Room {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.rooms[code]
}

func (rm *RoomManager) room(code string) (*Room, error) {
	if r := rm.GetRoom(code); r != nil {
		return r, nil
	}
	return nil, apperrors.ErrRoomNotFound
}

// snapshotRooms 复制房间列表，避免持有管理器锁时获取房间锁
func (rm *RoomManager) snapshotRooms() []*Room {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	rooms := make([]*Room, 0, len(rm.rooms))
	for _, r := range rm.rooms {
		rooms = append(rooms, r)
	}
	return rooms
}

// GetRoomList 获取可加入的公开房间
func (rm *RoomManager) GetRoomList() []protocol.RoomListItem {
	var items []protocol.RoomListItem
	for _, r := range rm.snapshotRooms() {
		if r.IsPrivate() {
			continue
		}
		item := r.listItem()
		if (item.State == RoomStateWaiting.String() || item.State == RoomStateGameOver.String()) && item.PlayerCount < item.MaxPlayers {
			items = append(items, item)
		}
	}
	slices.SortFunc(items, func(a, b protocol.RoomListItem) int {
		if a.RoomCode < b.RoomCode {
			return -1
		}
		if a.RoomCode > b.RoomCode {
			return 1
		}
		return 0
	})
	return items
}

// GetActiveGamesCount 获取进行中的游戏数量
func (rm *RoomManager) GetActiveGamesCount() int {
	return len(rm.ActiveGameCodes())
}

// ActiveGameCodes 进行中游戏的房间号
func (rm *RoomManager) ActiveGameCodes() []string {
	var codes []string
	for _, r := range rm.snapshotRooms() {
		if r.State().InGame() {
			codes = append(codes, r.Code)
		}
	}
	slices.Sort(codes)
	return codes
}

// RoomCount 房间总数
func (rm *RoomManager) RoomCount() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.rooms)
}

// --- 入站操作：按房间号路由到房间 ---

// Join 加入房间
func (rm *RoomManager) Join(code string, id Identity, password string) (*Room, error) {
	r, err := rm.room(code)
	if err != nil {
		return nil, err
	}
	if err := r.Join(id, password); err != nil {
		return nil, err
	}
	return r, nil
}

// SetReady 设置准备状态
func (rm *RoomManager) SetReady(code, connID string, ready bool) error {
	r, err := rm.room(code)
	if err != nil {
		return err
	}
	return r.SetReady(connID, ready)
}

// StartGame 开局
func (rm *RoomManager) StartGame(code, connID string) error {
	r, err := rm.room(code)
	if err != nil {
		return err
	}
	return r.StartGame(connID)
}

// PlayCard 出牌
func (rm *RoomManager) PlayCard(code, connID string, number int) error {
	r, err := rm.room(code)
	if err != nil {
		return err
	}
	return r.PlayCard(connID, number)
}

// ChooseRow 选择收走的行
func (rm *RoomManager) ChooseRow(code, connID string, row int) error {
	r, err := rm.room(code)
	if err != nil {
		return err
	}
	return r.ChooseRow(connID, row)
}

// RequestNewGame 请求再来一局
func (rm *RoomManager) RequestNewGame(code, connID string) error {
	r, err := rm.room(code)
	if err != nil {
		return err
	}
	return r.RequestNewGame(connID)
}

// Leave 主动离开
func (rm *RoomManager) Leave(code, connID string) error {
	r, err := rm.room(code)
	if err != nil {
		return err
	}
	return r.Leave(connID)
}

// OnDisconnected 连接断开
func (rm *RoomManager) OnDisconnected(code, connID string) {
	if r := rm.GetRoom(code); r != nil {
		r.OnDisconnected(connID)
	}
}

// AddBots 添加机器人
func (rm *RoomManager) AddBots(code, connID string, count int) error {
	r, err := rm.room(code)
	if err != nil {
		return err
	}
	return r.AddBots(connID, count)
}

// Kick 踢出玩家
func (rm *RoomManager) Kick(code, connID, targetID string) error {
	r, err := rm.room(code)
	if err != nil {
		return err
	}
	return r.Kick(connID, targetID)
}

// Snapshot 获取房间快照
func (rm *RoomManager) Snapshot(code, connID string) (*protocol.RoomStateDTO, error) {
	r, err := rm.room(code)
	if err != nil {
		return nil, err
	}
	return r.Snapshot(connID)
}

// generateRoomCode 生成房间号（调用方持有 rm.mu）
func (rm *RoomManager) generateRoomCode() string {
	for {
		code := make([]byte, roomCodeLength)
		for i := range code {
			code[i] = roomCodeChars[rand.IntN(len(roomCodeChars))]
		}
		codeStr := string(code)
		if _, exists := rm.rooms[codeStr]; !exists {
			return codeStr
		}
	}
}

// cleanupLoop 定期清理超时房间
func (rm *RoomManager) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rm.cleanup(time.Now())
		case <-rm.stop:
			return
		}
	}
}

// cleanup 清理长时间没有在线真人的房间
func (rm *RoomManager) cleanup(now time.Time) {
	if rm.cfg.RoomTimeout <= 0 {
		return
	}
	for _, r := range rm.snapshotRooms() {
		if r.idleSince(now) > rm.cfg.RoomTimeout {
			log.Printf("🧹 房间 %s 超时已清理", r.Code)
			r.Close()
		}
	}
}

// idleSince 没有在线真人时返回闲置时长，否则返回 0
func (r *Room) idleSince(now time.Time) time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed || r.hasConnectedHuman() {
		return 0
	}
	return now.Sub(r.lastActive)
}
