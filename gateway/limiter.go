package gateway

import (
	"sync"
	"time"
)

// RateLimiter 控制权威查询速率，避免触发券商流控。
type RateLimiter interface {
	Wait()
}

// TokenBucketLimiter 令牌桶限速器；rate 为每秒补充令牌数，burst 为桶容量。
type TokenBucketLimiter struct {
	mu     sync.Mutex
	rate   float64
	burst  float64
	tokens float64
	last   time.Time
}

func NewTokenBucketLimiter(rate float64, burst int) *TokenBucketLimiter {
	if rate <= 0 {
		rate = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &TokenBucketLimiter{
		rate:   rate,
		burst:  float64(burst),
		tokens: float64(burst),
		last:   time.Now(),
	}
}

func (l *TokenBucketLimiter) refill(now time.Time) {
	l.tokens += now.Sub(l.last).Seconds() * l.rate
	if l.tokens > l.burst {
		l.tokens = l.burst
	}
	l.last = now
}

// Wait 阻塞直到取得一个令牌。
func (l *TokenBucketLimiter) Wait() {
	l.mu.Lock()
	l.refill(time.Now())
	if l.tokens >= 1 {
		l.tokens--
		l.mu.Unlock()
		return
	}
	need := time.Duration((1-l.tokens)/l.rate*float64(time.Second)) + time.Millisecond
	l.mu.Unlock()
	time.Sleep(need)
	l.mu.Lock()
	l.refill(time.Now())
	l.tokens = 0
	l.mu.Unlock()
}

// NopLimiter 测试用：不限速。
type NopLimiter struct{}

func (NopLimiter) Wait() {}
