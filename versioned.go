package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/goliatone/go-store/pkg/activity"
)

// Versioned decorates a Store with schema versioning and forward migration.
// The wrapped store only ever touches the version-qualified key
// baseKey + separator + version. On first Ready, values found under
// registered older version keys are transformed into the current shape,
// adopted under the current key, and deleted from the backend.
type Versioned[T any] struct {
	store      *Store[T]
	backend    Backend
	baseKey    string
	version    uint64
	separator  string
	migrations Migrations[T]
	cfg        storeConfig

	mu    sync.Mutex
	ready bool
}

// NewVersioned constructs a Versioned store. Construction performs no I/O;
// it derives the current key and validates the migration table. The backend
// is shared, never owned: collision-free key derivation across base keys and
// separators is the caller's responsibility.
func NewVersioned[T any](baseKey string, defaultValue T, backend Backend, version uint64, migrations Migrations[T], opts ...Option) (*Versioned[T], error) {
	if baseKey == "" {
		return nil, fmt.Errorf("store: base key must not be empty")
	}
	if backend == nil {
		return nil, fmt.Errorf("store: backend is required")
	}
	cfg := applyOptions(opts)
	separator := cfg.separatorOrDefault()
	if err := migrations.Validate(version); err != nil {
		return nil, err
	}

	inner, err := New(versionKey(baseKey, separator, version), defaultValue, backend, opts...)
	if err != nil {
		return nil, err
	}

	return &Versioned[T]{
		store:      inner,
		backend:    backend,
		baseKey:    baseKey,
		version:    version,
		separator:  separator,
		migrations: migrations.clone(),
		cfg:        cfg,
	}, nil
}

// Ready migrates stale old-version entries, loads the current value into the
// cache, and marks the store usable. It is idempotent: after the first
// successful call it returns immediately with no further backend calls.
// Concurrent callers serialize on the same completion. On failure the store
// stays unready and the error propagates; a later call retries the full
// sequence, re-running any migrations that had not completed.
func (v *Versioned[T]) Ready(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.ready {
		return nil
	}

	if err := v.migrateBackend(ctx); err != nil {
		return err
	}
	if err := v.store.Ready(ctx); err != nil {
		return err
	}

	v.ready = true
	return nil
}

// migrateBackend drains registered old-version entries in table order. Each
// old version is handled independently: a failure aborts the loop and leaves
// later versions un-migrated, but never leaves an already-completed version
// half-written.
func (v *Versioned[T]) migrateBackend(ctx context.Context) error {
	logger := v.cfg.migrationLogger()
	for _, migration := range v.migrations {
		oldKey := versionKey(v.baseKey, v.separator, migration.From)
		start := time.Now()
		applied, err := v.migrateOne(ctx, oldKey, migration)
		logger.LogMigration(MigrationLogEvent{
			BaseKey:     v.baseKey,
			Key:         oldKey,
			FromVersion: migration.From,
			ToVersion:   v.version,
			Skipped:     !applied && err == nil,
			Duration:    time.Since(start),
			Err:         err,
		})
		if err != nil {
			return wrapMigrationError(v.baseKey, oldKey, migration.From, v.version, err)
		}
	}
	return nil
}

func (v *Versioned[T]) migrateOne(ctx context.Context, oldKey string, migration Migration[T]) (bool, error) {
	raw, ok, err := v.backend.Get(ctx, oldKey)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	var old any
	if err := json.Unmarshal(raw, &old); err != nil {
		return false, fmt.Errorf("decode %q: %w", oldKey, err)
	}
	next, err := migration.Transform(old)
	if err != nil {
		return false, err
	}

	// Adopt under the current key before deleting the old entry: an
	// interruption between the two duplicates the value instead of losing it.
	if err := v.store.Set(ctx, next); err != nil {
		return false, err
	}
	if err := v.backend.Remove(ctx, oldKey); err != nil {
		return false, err
	}

	if v.cfg.activityHooks.Enabled() {
		from, to := migration.From, v.version
		event := activity.BuildValueMigratedEvent(activity.StoreEventInput{
			Key:         v.store.Key(),
			OldKey:      oldKey,
			FromVersion: &from,
			ToVersion:   &to,
			OldValue:    old,
			NewValue:    next,
		})
		if err := v.cfg.activityHooks.Notify(ctx, event); err != nil {
			return false, fmt.Errorf("notify migrate %q: %w", oldKey, err)
		}
	}
	return true, nil
}

// Value returns the cached current-shape value.
func (v *Versioned[T]) Value() T {
	return v.store.Value()
}

// Set writes value through to the backend under the current key and updates
// the cache.
func (v *Versioned[T]) Set(ctx context.Context, value T) error {
	return v.store.Set(ctx, value)
}

// Refresh reloads the cache from the backend.
func (v *Versioned[T]) Refresh(ctx context.Context) error {
	return v.store.Refresh(ctx)
}

// Close releases the wrapped store's external-sync watch, if any.
func (v *Versioned[T]) Close() {
	v.store.Close()
}

// Key returns the version-qualified storage key.
func (v *Versioned[T]) Key() string {
	return v.store.Key()
}

// Version returns the current schema version.
func (v *Versioned[T]) Version() uint64 {
	return v.version
}

// Separator returns the configured key separator.
func (v *Versioned[T]) Separator() string {
	return v.separator
}

// Migrations returns a copy of the migration table.
func (v *Versioned[T]) Migrations() Migrations[T] {
	return v.migrations.clone()
}

func versionKey(base, separator string, version uint64) string {
	return base + separator + strconv.FormatUint(version, 10)
}
