package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/goliatone/go-store/internal/hydrate"
	"github.com/goliatone/go-store/pkg/activity"
)

// Store is a single named value of type T persisted in a Backend, with an
// in-memory cached copy and a load-or-initialize readiness lifecycle.
type Store[T any] struct {
	key          string
	defaultValue T
	backend      Backend
	cfg          storeConfig
	decoder      *hydrate.Decoder[T]

	initMu sync.Mutex
	ready  bool

	mu     sync.RWMutex
	value  T
	cancel func()
}

// New constructs a Store. Construction performs no I/O; the value is not
// trustworthy until Ready resolves.
func New[T any](key string, defaultValue T, backend Backend, opts ...Option) (*Store[T], error) {
	if key == "" {
		return nil, fmt.Errorf("store: key must not be empty")
	}
	if backend == nil {
		return nil, fmt.Errorf("store: backend is required")
	}
	return &Store[T]{
		key:          key,
		defaultValue: defaultValue,
		backend:      backend,
		cfg:          applyOptions(opts),
		decoder:      hydrate.NewDecoder[T](),
		value:        defaultValue,
	}, nil
}

// Key returns the storage key this store reads and writes.
func (s *Store[T]) Key() string {
	return s.key
}

// Ready loads the stored value into the cache, adopting and persisting the
// default when the backend has no entry. It is idempotent; concurrent callers
// await the same completion. A failed attempt leaves the store unready so a
// later call retries.
func (s *Store[T]) Ready(ctx context.Context) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()
	if s.ready {
		return nil
	}

	value, ok, err := s.load(ctx)
	if err != nil {
		return err
	}
	if !ok {
		value = s.defaultValue
		if err := s.persist(ctx, value); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.value = value
	s.mu.Unlock()

	if s.cfg.externalSync {
		if watcher, ok := s.backend.(Watcher); ok {
			cancel, err := watcher.Watch(ctx, s.key, s.applyExternal)
			if err != nil {
				return fmt.Errorf("store: watch %q: %w", s.key, err)
			}
			s.mu.Lock()
			s.cancel = cancel
			s.mu.Unlock()
		}
	}

	s.ready = true
	return nil
}

// Value returns the cached value. It reflects persisted state only after a
// successful Ready.
func (s *Store[T]) Value() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Set writes value through to the backend under the store key, then updates
// the cache. Configured activity hooks are notified after the write; their
// errors propagate to the caller.
func (s *Store[T]) Set(ctx context.Context, value T) error {
	if err := s.persist(ctx, value); err != nil {
		return err
	}
	s.mu.Lock()
	s.value = value
	s.mu.Unlock()

	if s.cfg.activityHooks.Enabled() {
		event := activity.BuildValueSavedEvent(activity.StoreEventInput{
			Key:      s.key,
			NewValue: value,
		})
		if err := s.cfg.activityHooks.Notify(ctx, event); err != nil {
			return fmt.Errorf("store: notify save %q: %w", s.key, err)
		}
	}
	return nil
}

// Refresh reloads the cache from the backend, falling back to the default
// value when the entry is absent.
func (s *Store[T]) Refresh(ctx context.Context) error {
	value, ok, err := s.load(ctx)
	if err != nil {
		return err
	}
	if !ok {
		value = s.defaultValue
	}
	s.mu.Lock()
	s.value = value
	s.mu.Unlock()
	return nil
}

// Close cancels the external-sync watch, if one was registered.
func (s *Store[T]) Close() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *Store[T]) load(ctx context.Context) (T, bool, error) {
	var zero T
	raw, ok, err := s.backend.Get(ctx, s.key)
	if err != nil {
		return zero, false, fmt.Errorf("store: load %q: %w", s.key, err)
	}
	if !ok {
		return zero, false, nil
	}
	value, err := s.decoder.DecodeRaw(hydrate.Context{Key: s.key}, raw)
	if err != nil {
		return zero, false, fmt.Errorf("store: decode %q: %w", s.key, err)
	}
	return value, true, nil
}

func (s *Store[T]) persist(ctx context.Context, value T) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("store: encode %q: %w", s.key, err)
	}
	if err := s.backend.Set(ctx, s.key, raw); err != nil {
		return fmt.Errorf("store: save %q: %w", s.key, err)
	}
	return nil
}

// applyExternal refreshes the cache from a watched backend write. Payloads
// that do not decode into T are ignored; the cache keeps its previous value.
func (s *Store[T]) applyExternal(raw json.RawMessage) {
	value, err := s.decoder.DecodeRaw(hydrate.Context{Key: s.key}, raw)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.value = value
	s.mu.Unlock()
}
