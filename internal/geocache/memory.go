package geocache

import (
	"context"
	"sync"
)

// MemoryStore is an in-process cache used by tests and dry runs.
type MemoryStore struct {
	mu      sync.Mutex
	entries []Entry

	// FetchErr and AppendErr, when set, are returned wrapped as unavailable.
	FetchErr  error
	AppendErr error
}

// NewMemory returns a store seeded with entries.
func NewMemory(entries ...Entry) *MemoryStore {
	return &MemoryStore{entries: append([]Entry(nil), entries...)}
}

func (m *MemoryStore) FetchAll(context.Context) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FetchErr != nil {
		return nil, unavailable("memory fetch", m.FetchErr)
	}
	return append([]Entry(nil), m.entries...), nil
}

func (m *MemoryStore) Append(_ context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AppendErr != nil {
		return unavailable("memory append", m.AppendErr)
	}
	m.entries = append(m.entries, entries...)
	return nil
}

func (m *MemoryStore) Migrate(context.Context) error { return nil }

func (m *MemoryStore) Count(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.entries)), nil
}

func (m *MemoryStore) Close() error { return nil }

// Entries returns a copy of the stored rows.
func (m *MemoryStore) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries...)
}
