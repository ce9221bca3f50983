package storage

import (
	"context"
	"sync"

	"financeboard/internal/core"

	"github.com/shopspring/decimal"
)

// MemoryStore keeps everything in process. Values are copied on the way in
// and out so callers never share maps or slices with the store.
type MemoryStore struct {
	mu       sync.RWMutex
	settings *core.Settings
	rollups  []core.DailyRollup
	seeded   bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) LoadSettings(ctx context.Context) (core.Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.settings == nil {
		return core.Settings{}, ErrNotFound
	}
	return m.settings.Clone(), nil
}

func (m *MemoryStore) SaveSettings(ctx context.Context, s core.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := s.Clone()
	m.settings = &c
	return nil
}

func (m *MemoryStore) LoadRollups(ctx context.Context) ([]core.DailyRollup, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.seeded {
		return nil, ErrNotFound
	}
	return cloneRollups(m.rollups), nil
}

func (m *MemoryStore) ReplaceRollups(ctx context.Context, rollups []core.DailyRollup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollups = cloneRollups(rollups)
	m.seeded = true
	return nil
}

func cloneRollups(in []core.DailyRollup) []core.DailyRollup {
	out := make([]core.DailyRollup, len(in))
	for i, r := range in {
		txs := make([]core.Transaction, len(r.Transactions))
		copy(txs, r.Transactions)
		r.Transactions = txs
		totals := make(map[string]decimal.Decimal, len(r.TotalByCategory))
		for k, v := range r.TotalByCategory {
			totals[k] = v
		}
		r.TotalByCategory = totals
		out[i] = r
	}
	return out
}
