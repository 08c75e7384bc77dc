package quota

import (
	"context"
	"sync"

	"github.com/cespare/xxhash/v2"
)

const defaultLockShards = 32

// KeyLock is an in-process mutex per key.
//
// Entries are reference counted and removed once no goroutine holds or waits
// on them, so memory is bounded by the number of keys in flight.
type KeyLock struct {
	shards []lockShard
	mask   uint64
}

type lockShard struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

// lockEntry uses a one-slot channel as the mutex: send acquires, receive releases
type lockEntry struct {
	ch   chan struct{}
	refs int
}

// NewKeyLock creates a KeyLock. shards is rounded up to a power of two.
func NewKeyLock(shards int) *KeyLock {
	if shards <= 0 {
		shards = defaultLockShards
	}
	n := 1
	for n < shards {
		n <<= 1
	}
	kl := &KeyLock{
		shards: make([]lockShard, n),
		mask:   uint64(n - 1),
	}
	for i := range kl.shards {
		kl.shards[i].entries = make(map[string]*lockEntry)
	}
	return kl
}

func (kl *KeyLock) shard(key string) *lockShard {
	return &kl.shards[xxhash.Sum64String(key)&kl.mask]
}

func (kl *KeyLock) ref(key string) *lockEntry {
	s := kl.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		e = &lockEntry{ch: make(chan struct{}, 1)}
		s.entries[key] = e
	}
	e.refs++
	return e
}

func (kl *KeyLock) unref(key string, e *lockEntry) {
	s := kl.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(s.entries, key)
	}
}

// Acquire blocks until the lock for key is held or ctx is done.
// The returned function releases the lock and must be called exactly once.
func (kl *KeyLock) Acquire(ctx context.Context, key string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e := kl.ref(key)
	select {
	case e.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-e.ch
				kl.unref(key, e)
			})
		}, nil
	case <-ctx.Done():
		kl.unref(key, e)
		return nil, ctx.Err()
	}
}

// Len returns the number of keys currently held or waited on
func (kl *KeyLock) Len() int {
	n := 0
	for i := range kl.shards {
		s := &kl.shards[i]
		s.mu.Lock()
		n += len(s.entries)
		s.mu.Unlock()
	}
	return n
}
