package usage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxEntries bounds a MemoryStore.
const DefaultMaxEntries = 100000

// MemoryStore keeps records in memory. The oldest records are evicted once
// maxEntries is reached. All data is lost when the process exits.
type MemoryStore struct {
	mu         sync.RWMutex
	records    []*Record
	maxEntries int
}

// NewMemoryStore creates an in-memory store. maxEntries <= 0 uses DefaultMaxEntries.
func NewMemoryStore(maxEntries int) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &MemoryStore{maxEntries: maxEntries}
}

// prepare validates rec and fills the fields the store owns.
func prepare(rec *Record) error {
	if rec == nil {
		return fmt.Errorf("record cannot be nil")
	}
	if rec.Provider == "" {
		return fmt.Errorf("record provider cannot be empty")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	if rec.Status == "" {
		rec.Status = StatusSuccess
	}
	return nil
}

// Record stores a copy of rec.
func (m *MemoryStore) Record(ctx context.Context, rec *Record) error {
	if err := prepare(rec); err != nil {
		return err
	}

	stored := *rec
	if rec.CostUSD != nil {
		cost := *rec.CostUSD
		stored.CostUSD = &cost
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.records) >= m.maxEntries {
		m.records = m.records[1:]
	}
	m.records = append(m.records, &stored)
	return nil
}

// List returns matching records, newest first.
func (m *MemoryStore) List(ctx context.Context, filter Filter) ([]*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Record
	for _, rec := range m.records {
		if filter.matches(rec) {
			cp := *rec
			out = append(out, &cp)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Summary aggregates records at or after since.
func (m *MemoryStore) Summary(ctx context.Context, since time.Time) (*Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return summarize(m.records, since), nil
}

// Cleanup deletes records older than olderThan.
func (m *MemoryStore) Cleanup(ctx context.Context, olderThan time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.records[:0]
	for _, rec := range m.records {
		if !rec.Timestamp.Before(olderThan) {
			kept = append(kept, rec)
		}
	}
	deleted := len(m.records) - len(kept)
	for i := len(kept); i < len(m.records); i++ {
		m.records[i] = nil
	}
	m.records = kept
	return deleted, nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}
