package quota

import (
	"context"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// UpdateFunc mutates a state in place and reports whether it changed.
// It may be called more than once when a store retries a conflicting write.
type UpdateFunc func(s *State) (changed bool, err error)

// Store persists owner usage records.
//
// Update must apply fn as an atomic read-modify-write for ownerID. A missing
// record is presented to fn as a zero State. Errors returned by fn are
// returned unchanged; backend failures wrap ErrUnavailable.
type Store interface {
	Get(ctx context.Context, ownerID string) (State, error)
	Update(ctx context.Context, ownerID string, fn UpdateFunc) error
}

// MemoryStore keeps usage records in process memory, sharded by owner so
// that different owners rarely contend on the same mutex.
type MemoryStore struct {
	shards []memoryShard
	mask   uint64
}

type memoryShard struct {
	mu     sync.Mutex
	states map[string]State
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	m := &MemoryStore{
		shards: make([]memoryShard, defaultLockShards),
		mask:   defaultLockShards - 1,
	}
	for i := range m.shards {
		m.shards[i].states = make(map[string]State)
	}
	return m
}

func (m *MemoryStore) shard(ownerID string) *memoryShard {
	return &m.shards[xxhash.Sum64String(ownerID)&m.mask]
}

// Get returns the record for ownerID, or a zero State
func (m *MemoryStore) Get(_ context.Context, ownerID string) (State, error) {
	sh := m.shard(ownerID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.states[ownerID], nil
}

// Update applies fn under the owner's shard mutex
func (m *MemoryStore) Update(_ context.Context, ownerID string, fn UpdateFunc) error {
	sh := m.shard(ownerID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	s := sh.states[ownerID]
	changed, err := fn(&s)
	if err != nil {
		return err
	}
	if changed {
		sh.states[ownerID] = s
	}
	return nil
}

// Len returns the number of stored records
func (m *MemoryStore) Len() int {
	n := 0
	for i := range m.shards {
		sh := &m.shards[i]
		sh.mu.Lock()
		n += len(sh.states)
		sh.mu.Unlock()
	}
	return n
}
