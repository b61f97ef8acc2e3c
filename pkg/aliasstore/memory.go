package aliasstore

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps records in process memory. It is used by tests and by
// the "memory" backend, where aliases do not survive a restart.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
	now     func() time.Time

	// failErr, when set, is returned (wrapped in ErrUnavailable) from
	// every operation.
	failErr error
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
		now:     time.Now,
	}
}

// SetFailure makes every subsequent call fail with err. A nil err clears it.
func (m *MemoryStore) SetFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}

func (m *MemoryStore) Lookup(_ context.Context, alias string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.failErr != nil {
		return nil, unavailable("lookup", m.failErr)
	}
	rec, ok := m.records[alias]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *MemoryStore) Upsert(_ context.Context, alias, internalID string, bumpRefresh bool) error {
	if err := validate(alias, internalID); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failErr != nil {
		return unavailable("upsert", m.failErr)
	}

	now := m.now().UTC()
	rec, ok := m.records[alias]
	if !ok {
		rec = Record{Alias: alias, CreatedAt: now}
	} else if bumpRefresh {
		rec.RefreshCount++
	}
	rec.InternalID = internalID
	rec.UpdatedAt = now
	m.records[alias] = rec
	return nil
}

func (m *MemoryStore) LookupOrCreate(_ context.Context, alias, internalID string) (*Record, error) {
	if err := validate(alias, internalID); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failErr != nil {
		return nil, unavailable("insert", m.failErr)
	}

	rec, ok := m.records[alias]
	if !ok {
		now := m.now().UTC()
		rec = Record{Alias: alias, InternalID: internalID, CreatedAt: now, UpdatedAt: now}
		m.records[alias] = rec
	}
	return &rec, nil
}

func (m *MemoryStore) List(_ context.Context) ([]*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.failErr != nil {
		return nil, unavailable("list", m.failErr)
	}
	out := make([]*Record, 0, len(m.records))
	for _, rec := range m.records {
		rec := rec
		out = append(out, &rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Alias < out[j].Alias })
	return out, nil
}

func (m *MemoryStore) Stats(ctx context.Context) (Stats, error) {
	records, err := m.List(ctx)
	if err != nil {
		return Stats{}, err
	}
	st := Stats{Aliases: int64(len(records))}
	for _, rec := range records {
		st.Refreshes += rec.RefreshCount
	}
	return st, nil
}

func (m *MemoryStore) Ping(_ context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.failErr != nil {
		return unavailable("ping", m.failErr)
	}
	return nil
}

func (m *MemoryStore) Close() error { return nil }
