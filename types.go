package store

import (
	"time"

	"github.com/goliatone/go-store/pkg/activity"
)

// DefaultSeparator joins a base key and a schema version into a storage key
// when no separator is configured.
const DefaultSeparator = ":"

// TransformContext carries inputs available to an expression-defined
// transform. Old holds the decoded payload found under the old version key
// and must be treated as unvalidated.
type TransformContext struct {
	Old         any
	Key         string
	FromVersion uint64
	ToVersion   uint64
	Now         *time.Time
	Args        map[string]any
	Metadata    map[string]any
}

func (ctx TransformContext) withDefaultNow() TransformContext {
	if ctx.Now != nil {
		return ctx
	}
	now := time.Now()
	ctx.Now = &now
	return ctx
}

func (ctx TransformContext) timestamp() time.Time {
	ctx = ctx.withDefaultNow()
	return *ctx.Now
}

func (ctx TransformContext) withDefaultMaps() TransformContext {
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

func (ctx TransformContext) withDefaults() TransformContext {
	return ctx.withDefaultNow().withDefaultMaps()
}

func (ctx TransformContext) keyLabel() string {
	if ctx.Key != "" {
		return ctx.Key
	}
	return "unknown"
}

func (ctx TransformContext) oldAsMap() map[string]any {
	if m, ok := ctx.Old.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

// Evaluator executes transform expressions against a transform context.
type Evaluator interface {
	Evaluate(ctx TransformContext, expr string) (any, error)
	Compile(expr string, opts ...CompileOption) (CompiledRule, error)
}

// CompiledRule represents a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx TransformContext) (any, error)
}

// CompileOption configures evaluator compile behaviour.
type CompileOption interface {
	applyCompileOption(*compileConfig)
}

type compileConfig struct{}

type compileOptionFunc func(*compileConfig)

func (f compileOptionFunc) applyCompileOption(cfg *compileConfig) {
	if f != nil {
		f(cfg)
	}
}

// Option configures store construction.
type Option func(*storeConfig)

type storeConfig struct {
	separator     string
	externalSync  bool
	logger        MigrationLogger
	activityHooks activity.Hooks
}

func applyOptions(opts []Option) storeConfig {
	cfg := storeConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

func (cfg storeConfig) separatorOrDefault() string {
	if cfg.separator != "" {
		return cfg.separator
	}
	return DefaultSeparator
}

func (cfg storeConfig) migrationLogger() MigrationLogger {
	if cfg.logger != nil {
		return cfg.logger
	}
	return noopMigrationLogger{}
}

// WithSeparator configures the string joining a base key and a version
// number. Callers must pick separators that keep derived keys collision-free
// across base keys; the store does not detect collisions at runtime.
func WithSeparator(separator string) Option {
	return func(cfg *storeConfig) {
		cfg.separator = separator
	}
}

// WithExternalSync keeps the cached value in sync with external backend
// writes when the backend implements Watcher.
func WithExternalSync(enabled bool) Option {
	return func(cfg *storeConfig) {
		cfg.externalSync = enabled
	}
}
