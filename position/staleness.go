package position

import (
	"sync"
	"time"
)

// Clock 抽象时间便于测试。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Tracker 记录每个账户最近一笔落账回报的时间，用于判断
// 该账户是否仍处于不稳定窗口（窗口内只信本地增量计算）。
type Tracker struct {
	mu    sync.Mutex
	last  map[string]time.Time
	clock Clock
}

func NewTracker() *Tracker {
	return NewTrackerWithClock(realClock{})
}

func NewTrackerWithClock(c Clock) *Tracker {
	return &Tracker{
		last:  make(map[string]time.Time),
		clock: c,
	}
}

// Touch 记录账户最近一次成交时间；ts 为零值时取当前时间。
func (t *Tracker) Touch(acct string, ts time.Time) {
	if ts.IsZero() {
		ts = t.clock.Now()
	}
	t.mu.Lock()
	t.last[acct] = ts
	t.mu.Unlock()
}

// Unstable 判断账户是否在不稳定窗口内。threshold<=0 表示功能关闭，
// 没有记录过成交的账户视为稳定。
func (t *Tracker) Unstable(acct string, threshold time.Duration) bool {
	if threshold <= 0 {
		return false
	}
	t.mu.Lock()
	last, ok := t.last[acct]
	t.mu.Unlock()
	if !ok {
		return false
	}
	return t.clock.Now().Sub(last) < threshold
}
