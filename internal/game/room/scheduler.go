package room

import "time"

// Stopper 可取消的定时任务
type Stopper interface {
	Stop() bool
}

// Scheduler 定时器工厂，用于选择超时
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Stopper
}

// RealScheduler 基于 time.AfterFunc 的调度器
type RealScheduler struct{}

// AfterFunc 在 d 之后于独立 goroutine 中执行 f
func (RealScheduler) AfterFunc(d time.Duration, f func()) Stopper {
	return time.AfterFunc(d, f)
}
