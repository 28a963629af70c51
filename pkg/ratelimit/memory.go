package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	mu      sync.Mutex
	count   int64
	resetAt time.Time
	swept   bool
}

// hit counts one request. ok is false when the window was swept after it
// was looked up, the caller must look it up again.
func (w *window) hit(now time.Time, length time.Duration) (count int64, ttl time.Duration, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.swept {
		return 0, 0, false
	}
	if !now.Before(w.resetAt) {
		w.count = 0
		w.resetAt = now.Add(length)
	}
	w.count++
	return w.count, w.resetAt.Sub(now), true
}

// MemoryCounter keeps fixed-window counters in process memory. Each key has
// its own lock so unrelated identities never wait on each other.
type MemoryCounter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

func (m *MemoryCounter) Increment(ctx context.Context, key string, length time.Duration) (int64, time.Duration, error) {
	for {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}
		if count, ttl, ok := m.lookup(key).hit(m.now(), length); ok {
			return count, ttl, nil
		}
	}
}

func (m *MemoryCounter) lookup(key string) *window {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.windows[key]
	if !ok {
		w = &window{}
		m.windows[key] = w
	}
	return w
}

// Sweep drops every window that has already reset.
func (m *MemoryCounter) Sweep() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for key, w := range m.windows {
		w.mu.Lock()
		if !now.Before(w.resetAt) {
			w.swept = true
			delete(m.windows, key)
			removed++
		}
		w.mu.Unlock()
	}
	return removed
}

// Len reports how many windows are tracked.
func (m *MemoryCounter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows)
}

// StartJanitor sweeps every interval until ctx is cancelled.
func (m *MemoryCounter) StartJanitor(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Sweep()
			}
		}
	}()
}
