// Package store provides in-memory Store implementations.
package store

import (
	"context"
	"sync"

	"github.com/warp/towel-workflow/production"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu      sync.RWMutex
	records map[production.Collection][]production.Record
	index   map[key]int
}

var _ production.Store = (*Memory)(nil)

type key struct {
	Collection production.Collection
	ID         string
}

func NewMemory() *Memory {
	return &Memory{
		records: make(map[production.Collection][]production.Record),
		index:   make(map[key]int),
	}
}

// Add appends rec, generating an id when it has none.
func (m *Memory) Add(_ context.Context, rec production.Record) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec = production.EnsureID(rec)
	k := key{Collection: rec.Collection(), ID: rec.RecordID()}
	if _, exists := m.index[k]; exists {
		return "", &production.DuplicateIDError{Collection: k.Collection, ID: k.ID}
	}
	m.records[k.Collection] = append(m.records[k.Collection], rec)
	m.index[k] = len(m.records[k.Collection]) - 1
	return k.ID, nil
}

func (m *Memory) List(_ context.Context, c production.Collection) ([]production.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]production.Record, len(m.records[c]))
	copy(result, m.records[c])
	return result, nil
}

func (m *Memory) Find(_ context.Context, c production.Collection, id string) (production.Record, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i, ok := m.index[key{Collection: c, ID: id}]
	if !ok {
		return nil, false, nil
	}
	return m.records[c][i], true, nil
}

// Remove deletes id from c. Absent ids return false.
func (m *Memory) Remove(_ context.Context, c production.Collection, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key{Collection: c, ID: id}
	i, ok := m.index[k]
	if !ok {
		return false, nil
	}
	recs := m.records[c]
	m.records[c] = append(recs[:i:i], recs[i+1:]...)
	delete(m.index, k)
	for j := i; j < len(m.records[c]); j++ {
		m.index[key{Collection: c, ID: m.records[c][j].RecordID()}] = j
	}
	return true, nil
}

// Seed adds every record, stopping at the first failure. Test fixture helper.
func (m *Memory) Seed(ctx context.Context, recs ...production.Record) error {
	for _, rec := range recs {
		if _, err := m.Add(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}
