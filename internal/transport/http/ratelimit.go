package http

import (
	"sync"
	"time"
)

// sendLimiter caps how many messages one socket connection may send per
// minute. A zero or negative limit disables it.
type sendLimiter struct {
	limit int

	mu          sync.Mutex
	windowStart time.Time
	count       int
}

func newSendLimiter(limit int) *sendLimiter {
	return &sendLimiter{limit: limit}
}

func (l *sendLimiter) allow() bool {
	if l == nil || l.limit <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.windowStart) >= time.Minute {
		l.windowStart = now
		l.count = 0
	}
	l.count++
	return l.count <= l.limit
}
