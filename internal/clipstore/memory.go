package clipstore

import (
	"context"
	"slices"
	"sync"

	"matchup-go/internal/matchup"
)

// MemoryStore is an in-memory implementation of the ClipStore interface.
// It is useful for testing and is safe for concurrent use.
type MemoryStore struct {
	clips map[string]*matchup.StoredClip
	mu    sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{clips: make(map[string]*matchup.StoredClip)}
}

func copyClip(c *matchup.StoredClip) *matchup.StoredClip {
	return &matchup.StoredClip{
		MimeType:  c.MimeType,
		CreatedAt: c.CreatedAt,
		Data:      slices.Clone(c.Data),
	}
}

func (m *MemoryStore) Put(ctx context.Context, key string, clip *matchup.StoredClip) error {
	if err := validateKey(key); err != nil {
		return err
	}
	c := copyClip(clip)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.clips[key] = c
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, key string) (*matchup.StoredClip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.clips[key]
	if !ok {
		return nil, nil // Not found
	}
	return copyClip(c), nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.clips[key]
	delete(m.clips, key)
	return ok, nil
}

func (m *MemoryStore) ListKeys(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.clips))
	for k := range m.clips {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys, nil
}

// Compile-time check that MemoryStore implements matchup.ClipStore interface
var _ matchup.ClipStore = (*MemoryStore)(nil)
