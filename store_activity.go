package store

import "github.com/goliatone/go-store/pkg/activity"

// WithActivityHooks attaches activity hooks to the store configuration.
// Hooks are cloned and nil entries dropped to preserve immutability. The
// plain store notifies hooks on Set; the versioned store additionally
// notifies one value-migrated event per drained old version. Hook errors
// propagate to the caller.
func WithActivityHooks(hooks activity.Hooks) Option {
	normalized := cloneActivityHooks(hooks)
	return func(cfg *storeConfig) {
		cfg.activityHooks = normalized
	}
}

func cloneActivityHooks(hooks activity.Hooks) activity.Hooks {
	if len(hooks) == 0 {
		return nil
	}
	normalized := make([]activity.ActivityHook, 0, len(hooks))
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		normalized = append(normalized, hook)
	}
	if len(normalized) == 0 {
		return nil
	}
	return activity.Hooks(normalized)
}
