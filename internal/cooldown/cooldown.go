// Package cooldown debounces per-symbol decisions. It is a minimum-interval
// gate, not a rate limiter: one symbol's cooldown never blocks another's.
package cooldown

import (
	"sync"
	"time"
)

// Manager tracks the last decision time per symbol.
type Manager struct {
	mu       sync.Mutex
	interval time.Duration
	last     map[string]time.Time
	now      func() time.Time
}

// NewManager creates a manager with the given minimum interval.
func NewManager(interval time.Duration) *Manager {
	return &Manager{
		interval: interval,
		last:     make(map[string]time.Time),
		now:      time.Now,
	}
}

// Allow reports whether a decision for the symbol is permitted: either no
// prior decision exists or the configured interval has elapsed.
func (m *Manager) Allow(symbol string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	last, ok := m.last[symbol]
	if !ok {
		return true
	}
	return m.now().Sub(last) >= m.interval
}

// Record marks a decision for the symbol at the current time.
func (m *Manager) Record(symbol string) {
	m.mu.Lock()
	m.last[symbol] = m.now()
	m.mu.Unlock()
}

// Reset forgets the symbol's last decision.
func (m *Manager) Reset(symbol string) {
	m.mu.Lock()
	delete(m.last, symbol)
	m.mu.Unlock()
}
