package store

import (
	"context"
	"encoding/json"
	"sync"
)

// Backend is the storage collaborator shared by many stores. Implementations
// must be safe for concurrent use. Get reports ok=false when the key is
// absent; absence is never an error. Stores only touch keys derived from
// their own base key, so isolation depends on key-namespace discipline.
type Backend interface {
	Get(ctx context.Context, key string) (json.RawMessage, bool, error)
	Set(ctx context.Context, key string, value json.RawMessage) error
	Remove(ctx context.Context, key string) error
}

// Watcher is an optional Backend capability for observing external writes.
// fn is invoked with the raw payload after each write to key until cancel is
// called. Removals are not reported.
type Watcher interface {
	Watch(ctx context.Context, key string, fn func(json.RawMessage)) (cancel func(), err error)
}

// MemoryBackend is a minimal in-memory Backend implementation intended for
// tests and examples. It supports Watch and makes no persistence assumptions.
type MemoryBackend struct {
	mu       sync.RWMutex
	records  map[string][]byte
	watchers map[string]map[int]func(json.RawMessage)
	nextID   int
}

// NewMemoryBackend constructs an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		records:  map[string][]byte{},
		watchers: map[string]map[int]func(json.RawMessage){},
	}
}

// Get returns the payload stored under key, ok=false when absent.
func (b *MemoryBackend) Get(_ context.Context, key string) (json.RawMessage, bool, error) {
	b.mu.RLock()
	record, ok := b.records[key]
	b.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	return cloneBytes(record), true, nil
}

// Set stores a copy of value under key and notifies watchers.
func (b *MemoryBackend) Set(_ context.Context, key string, value json.RawMessage) error {
	stored := cloneBytes(value)

	b.mu.Lock()
	b.records[key] = stored
	subscribers := make([]func(json.RawMessage), 0, len(b.watchers[key]))
	for _, fn := range b.watchers[key] {
		subscribers = append(subscribers, fn)
	}
	b.mu.Unlock()

	for _, fn := range subscribers {
		fn(cloneBytes(stored))
	}
	return nil
}

// Remove deletes key. Removing an absent key is a no-op.
func (b *MemoryBackend) Remove(_ context.Context, key string) error {
	b.mu.Lock()
	delete(b.records, key)
	b.mu.Unlock()
	return nil
}

// Watch registers fn for writes to key until the returned cancel is called.
func (b *MemoryBackend) Watch(_ context.Context, key string, fn func(json.RawMessage)) (func(), error) {
	b.mu.Lock()
	if b.watchers[key] == nil {
		b.watchers[key] = map[int]func(json.RawMessage){}
	}
	id := b.nextID
	b.nextID++
	b.watchers[key][id] = fn
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		delete(b.watchers[key], id)
		b.mu.Unlock()
	}
	return cancel, nil
}

// Len reports the number of stored entries.
func (b *MemoryBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.records)
}

func cloneBytes(src []byte) []byte {
	if src == nil {
		return nil
	}
	dst := make([]byte, len(src))
	copy(dst, src)
	return dst
}
