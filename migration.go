package store

import "fmt"

// Transform converts a value stored under an older schema version into the
// current shape. The input is the decoded JSON payload found under the old
// key; it is unvalidated until the transform returns. Transforms are the
// single trust boundary between persisted data and typed values.
type Transform[T any] func(old any) (T, error)

// Migration pairs an old schema version with the transform that adopts its
// stored value.
type Migration[T any] struct {
	From      uint64
	Transform Transform[T]
}

// Migrations is an ordered migration table. Declaration order is the order
// migrations run in, and it is load-bearing: when several old versions exist
// in the backend at once, the last entry processed wins as the final stored
// and cached value.
type Migrations[T any] []Migration[T]

// Validate checks the table against the current schema version: every entry
// needs a transform, a source version older than current, and no two entries
// may name the same source version.
func (m Migrations[T]) Validate(current uint64) error {
	seen := make(map[uint64]struct{}, len(m))
	for _, entry := range m {
		if entry.Transform == nil {
			return fmt.Errorf("store: migration from version %d has nil transform", entry.From)
		}
		if entry.From >= current {
			return fmt.Errorf("store: migration from version %d is not older than current version %d", entry.From, current)
		}
		if _, dup := seen[entry.From]; dup {
			return fmt.Errorf("store: duplicate migration from version %d", entry.From)
		}
		seen[entry.From] = struct{}{}
	}
	return nil
}

func (m Migrations[T]) clone() Migrations[T] {
	if len(m) == 0 {
		return nil
	}
	out := make(Migrations[T], len(m))
	copy(out, m)
	return out
}
