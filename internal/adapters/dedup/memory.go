// Package dedup implements ports.DedupStore: a process-local map and a
// redis-backed store for several instances sharing one wallet.
package dedup

import (
	"context"
	"sync"
	"time"

	"github.com/alejandrodnm/automerger/internal/domain"
)

// Memory keeps the last admission per (amount, market) in a map.
// State is lost on restart.
type Memory struct {
	mu       sync.Mutex
	cooldown time.Duration
	seen     map[domain.DedupKey]time.Time
}

// NewMemory creates an in-process store with the given cooldown.
func NewMemory(cooldown time.Duration) *Memory {
	return &Memory{
		cooldown: cooldown,
		seen:     make(map[domain.DedupKey]time.Time),
	}
}

// Admit implements ports.DedupStore.
func (m *Memory) Admit(_ context.Context, key domain.DedupKey, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if last, ok := m.seen[key]; ok && now.Sub(last) < m.cooldown {
		return false, nil
	}

	// un mercado solo recuerda su último importe
	for k := range m.seen {
		if k.MarketID == key.MarketID {
			delete(m.seen, k)
		}
	}
	m.seen[key] = now
	return true, nil
}

// Len returns the number of remembered keys.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.seen)
}
