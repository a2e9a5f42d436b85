package store

import (
	"errors"
	"fmt"
)

// MigrationError reports a failed migration step for a single old version.
type MigrationError struct {
	BaseKey     string
	Key         string
	FromVersion uint64
	ToVersion   uint64
	Err         error
}

func (e *MigrationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("store: migrate %q v%d -> v%d: %v", e.BaseKey, e.FromVersion, e.ToVersion, e.Err)
}

func (e *MigrationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func wrapMigrationError(baseKey, key string, from, to uint64, err error) error {
	if err == nil {
		return nil
	}

	var migErr *MigrationError
	if errors.As(err, &migErr) {
		return err
	}

	return &MigrationError{
		BaseKey:     baseKey,
		Key:         key,
		FromVersion: from,
		ToVersion:   to,
		Err:         err,
	}
}
