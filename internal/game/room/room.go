package room

import (
	"context"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/palemoky/take-six/internal/apperrors"
	"github.com/palemoky/take-six/internal/game/card"
	"github.com/palemoky/take-six/internal/game/rule"
	"github.com/palemoky/take-six/internal/logger"
	"github.com/palemoky/take-six/internal/protocol"
	"github.com/palemoky/take-six/internal/server/storage"
)

const (
	roomCodeLength = 6            // 房间号长度
	roomCodeChars  = "0123456789" // 房间号字符集

	// TricksPerRound 每轮墩数（每人 10 张牌）
	TricksPerRound = 10
	// MaxPlayers 一副牌最多支持的人数：104 - 4 - 10N >= 0
	MaxPlayers = (card.DeckSize - rule.RowCount) / TricksPerRound
	// MinPlayers 开局最少人数
	MinPlayers = 2

	DefaultCapacity       = 4
	DefaultScoreThreshold = 66
	DefaultChoiceTimeout  = 30 * time.Second

	persistTimeout = 3 * time.Second
	historyTimeout = 10 * time.Second
)

// Directory 会话目录，由传输层实现；房间只读取，不修改
type Directory interface {
	SendTo(connID string, msg *protocol.Message) error
	IsOnline(connID string) bool
}

// RoomStore 房间快照存储（尽力而为）
type RoomStore interface {
	SaveRoom(ctx context.Context, code string, data *storage.RoomData) error
	DeleteRoom(ctx context.Context, code string) error
}

// Options 建房参数
type Options struct {
	Capacity       int           // 非托管玩家上限 2..10
	ScoreThreshold int           // 任一玩家牛头数达到即结束
	MaxRounds      int           // 0 表示仅受牌堆限制
	Private        bool          // 私密房间不出现在列表中
	Password       string        // 私密房间密码
	OwnerID        string        // 房主账号 ID
	ChoiceTimeout  time.Duration // 选择收走行的超时
}

// normalize 填充默认值并修正越界参数
func (o Options) normalize() Options {
	if o.Capacity <= 0 {
		o.Capacity = DefaultCapacity
	}
	o.Capacity = min(max(o.Capacity, MinPlayers), MaxPlayers)
	if o.ScoreThreshold <= 0 {
		o.ScoreThreshold = DefaultScoreThreshold
	}
	if o.MaxRounds < 0 {
		o.MaxRounds = 0
	}
	if o.ChoiceTimeout <= 0 {
		o.ChoiceTimeout = DefaultChoiceTimeout
	}
	return o
}

// deps 房间依赖的外部协作者
type deps struct {
	dir          Directory
	scheduler    Scheduler
	store        RoomStore
	history      storage.HistorySink
	onEmpty      func(code string)
	onMembership func(connID, roomCode string)
}

// entry 本墩一张已出的牌
type entry struct {
	player *Player
	card   card.Card
}

// Room 游戏房间
//
// 所有可变状态都由 mu 保护；对外发送、持久化等副作用先写入 outbox，
// 在释放锁之后再执行。
type Room struct {
	Code      string
	CreatedAt time.Time

	opts    Options
	deps    deps
	newDeck func() card.Deck

	mu         sync.RWMutex
	state      RoomState
	players    map[string]*Player
	nextSeat   int
	table      rule.Table
	deck       card.Deck
	played     map[string]card.Card // 本墩已出的牌（connID → 牌）
	pending    []entry              // 本墩尚未结算的牌（升序），pending[0] 为当前处理的牌
	trick      []entry              // 本墩全部出牌（升序）
	lastTrick  []entry              // 上一墩，结算完成后公开
	discard    []card.Card          // 前几轮结束时留在桌面上的牌
	round      int
	turn       int
	winnerName string
	closed     bool
	lastActive time.Time

	choiceTimer Stopper
	choiceSeq   uint64

	dirty  bool
	outbox []func()
}

func newRoom(code string, opts Options, d deps) *Room {
	now := time.Now()
	return &Room{
		Code:       code,
		CreatedAt:  now,
		opts:       opts.normalize(),
		deps:       d,
		newDeck:    shuffledDeck,
		state:      RoomStateWaiting,
		players:    make(map[string]*Player),
		played:     make(map[string]card.Card),
		lastActive: now,
	}
}

func shuffledDeck() card.Deck {
	deck := card.NewDeck()
	deck.Shuffle()
	return deck
}

// withLock 在房间锁内执行 fn，释放锁后再执行排队的副作用
// fn 中的 panic 会终止当前一局（无胜者），房间继续存活。
func (r *Room) withLock(fn func() error) (err error) {
	r.mu.Lock()
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				logger.LogPanic(rec)
				if r.state.InGame() {
					r.abortGame(ReasonInternalError)
				}
				err = apperrors.ErrInternal
			}
		}()
		err = fn()
	}()

	if r.dirty {
		r.flushState()
	}
	out := r.outbox
	r.outbox = nil
	r.mu.Unlock()

	for _, f := range out {
		f()
	}
	return err
}

// touch 标记状态已变化：解锁前推送快照并保存到 Redis
func (r *Room) touch() {
	r.dirty = true
	r.lastActive = time.Now()
}

// later 登记一个解锁后执行的副作用
func (r *Room) later(f func()) {
	r.outbox = append(r.outbox, f)
}

// sendTo 向单个玩家发送消息（机器人和托管玩家跳过）
func (r *Room) sendTo(p *Player, msg *protocol.Message) {
	if p == nil || p.IsRobot || p.IsTrustee || r.deps.dir == nil {
		return
	}
	connID := p.ConnID
	dir := r.deps.dir
	r.later(func() {
		// 传输层已断开但房间尚未收到掉线通知
		if !dir.IsOnline(connID) {
			return
		}
		if err := dir.SendTo(connID, msg); err != nil {
			log.Printf("⚠️ 房间 %s 向 %s 发送 %s 失败: %v", r.Code, connID, msg.Type, err)
		}
	})
}

// broadcast 向房间内所有在线玩家发送消息
func (r *Room) broadcast(msg *protocol.Message) {
	r.broadcastExcept("", msg)
}

// broadcastExcept 向除指定玩家外的所有在线玩家发送消息
func (r *Room) broadcastExcept(exceptID string, msg *protocol.Message) {
	for _, p := range r.sortedPlayers() {
		if p.ConnID != exceptID {
			r.sendTo(p, msg)
		}
	}
}

// membership 通知传输层连接所在房间的变化（code 为空表示离开）
func (r *Room) membership(connID, code string) {
	if r.deps.onMembership == nil {
		return
	}
	cb := r.deps.onMembership
	r.later(func() { cb(connID, code) })
}

// flushState 向每个在线玩家推送各自的快照，并保存到 Redis
func (r *Room) flushState() {
	r.dirty = false
	if r.closed {
		return
	}
	for _, p := range r.sortedPlayers() {
		if p.Connected() {
			r.sendTo(p, r.stateMessage(p))
		}
	}
	if r.deps.store != nil {
		data := r.toRoomData()
		store := r.deps.store
		r.later(func() {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
				defer cancel()
				if err := store.SaveRoom(ctx, data.Code, data); err != nil {
					log.Printf("⚠️ 保存房间 %s 失败: %v", data.Code, err)
				}
			}()
		})
	}
}

// sortedPlayers 按加入顺序返回玩家
func (r *Room) sortedPlayers() []*Player {
	players := make([]*Player, 0, len(r.players))
	for _, p := range r.players {
		players = append(players, p)
	}
	slices.SortFunc(players, func(a, b *Player) int { return a.seat - b.seat })
	return players
}

// hasConnectedHuman 是否还有在线真人
func (r *Room) hasConnectedHuman() bool {
	for _, p := range r.players {
		if p.Connected() {
			return true
		}
	}
	return false
}

// hasHuman 是否还有真人（含掉线托管）
func (r *Room) hasHuman() bool {
	for _, p := range r.players {
		if p.IsHuman() {
			return true
		}
	}
	return false
}

// State 当前状态
func (r *Room) State() RoomState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// PlayerCount 当前人数
func (r *Room) PlayerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players)
}

// Capacity 房间容量
func (r *Room) Capacity() int {
	return r.opts.Capacity
}

// IsPrivate 是否私密房间
func (r *Room) IsPrivate() bool {
	return r.opts.Private
}

// HasPlayer 连接是否在房间中
func (r *Room) HasPlayer(connID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.players[connID]
	return ok
}

// FindByAccount 通过账号 ID 查找玩家当前的连接 ID
func (r *Room) FindByAccount(accountID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p := r.playerByAccount(accountID); p != nil {
		return p.ConnID, true
	}
	return "", false
}

func (r *Room) playerByAccount(accountID string) *Player {
	if accountID == "" {
		return nil
	}
	for _, p := range r.players {
		if !p.IsRobot && p.AccountID == accountID {
			return p
		}
	}
	return nil
}

// listItem 房间列表条目
func (r *Room) listItem() protocol.RoomListItem {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return protocol.RoomListItem{
		RoomCode:    r.Code,
		State:       r.state.String(),
		PlayerCount: len(r.players),
		MaxPlayers:  r.opts.Capacity,
	}
}
