package homebridge

import (
	"sync"
	"time"
)

// ConcurrentTimer tracks the time since the last reset.
type ConcurrentTimer struct {
	at  time.Time
	mu  sync.RWMutex
	now func() time.Time
}

func (t *ConcurrentTimer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.at = t.clock()
}

func (t *ConcurrentTimer) Elapsed() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.clock().Sub(t.at)
}

func (t *ConcurrentTimer) clock() time.Time {
	if t.now != nil {
		return t.now()
	}
	return time.Now()
}
