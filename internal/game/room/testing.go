//go:build !production

package room

import (
	"sync"
	"time"

	"github.com/palemoky/take-six/internal/game/card"
	"github.com/palemoky/take-six/internal/game/rule"
)

// FakeScheduler 手动触发的调度器，用于确定性地测试超时
type FakeScheduler struct {
	mu     sync.Mutex
	timers []*FakeTimer
}

// FakeTimer FakeScheduler 创建的定时器
type FakeTimer struct {
	Delay   time.Duration
	f       func()
	stopped bool
	fired   int
	mu      sync.Mutex
}

// AfterFunc 记录定时任务，不会自动执行
func (s *FakeScheduler) AfterFunc(d time.Duration, f func()) Stopper {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &FakeTimer{Delay: d, f: f}
	s.timers = append(s.timers, t)
	return t
}

// Stop 停止定时器
func (t *FakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	wasActive := !t.stopped && t.fired == 0
	t.stopped = true
	return wasActive
}

// Fire 像 time.AfterFunc 一样执行回调；已停止的定时器不执行
func (t *FakeTimer) Fire() bool {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return false
	}
	t.fired++
	t.mu.Unlock()
	t.f()
	return true
}

// ForceFire 忽略 Stop 直接执行回调，模拟“已触发但尚未拿到锁”的竞态
func (t *FakeTimer) ForceFire() {
	t.mu.Lock()
	t.fired++
	t.mu.Unlock()
	t.f()
}

// Stopped 是否已停止
func (t *FakeTimer) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// Timers 返回所有创建过的定时器
func (s *FakeScheduler) Timers() []*FakeTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*FakeTimer(nil), s.timers...)
}

// Last 最近一次创建的定时器
func (s *FakeScheduler) Last() *FakeTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.timers) == 0 {
		return nil
	}
	return s.timers[len(s.timers)-1]
}

// AddRoomForTest 添加房间用于测试
func (rm *RoomManager) AddRoomForTest(room *Room) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.rooms[room.Code] = room
}

// RigForTest 在锁内直接修改房间，用于构造特定牌局
func (r *Room) RigForTest(fn func(t *rule.Table, hands map[string][]card.Card)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	hands := make(map[string][]card.Card, len(r.players))
	for id, p := range r.players {
		hands[id] = p.Hand
	}
	fn(&r.table, hands)
	for id, hand := range hands {
		card.SortAscending(hand)
		r.players[id].Hand = hand
	}
}
