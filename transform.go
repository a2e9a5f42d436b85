package store

import (
	"fmt"

	"github.com/goliatone/go-store/internal/hydrate"
)

// TransformOption configures an expression-defined transform.
type TransformOption func(*transformConfig)

type transformConfig struct {
	key      string
	from     uint64
	to       uint64
	args     map[string]any
	metadata map[string]any
}

// TransformWithKey exposes the storage key to the expression environment.
func TransformWithKey(key string) TransformOption {
	return func(cfg *transformConfig) {
		cfg.key = key
	}
}

// TransformWithVersions exposes the source and target schema versions to the
// expression environment.
func TransformWithVersions(from, to uint64) TransformOption {
	return func(cfg *transformConfig) {
		cfg.from = from
		cfg.to = to
	}
}

// TransformWithArgs exposes caller-supplied arguments to the expression
// environment.
func TransformWithArgs(args map[string]any) TransformOption {
	return func(cfg *transformConfig) {
		cfg.args = args
	}
}

// TransformWithMetadata exposes caller-supplied metadata to the expression
// environment.
func TransformWithMetadata(metadata map[string]any) TransformOption {
	return func(cfg *transformConfig) {
		cfg.metadata = metadata
	}
}

// EvaluatedTransform returns a Transform that evaluates expression through
// evaluator and decodes the result into T. A nil evaluator falls back to the
// expr engine.
func EvaluatedTransform[T any](evaluator Evaluator, expression string, opts ...TransformOption) Transform[T] {
	cfg := transformConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if evaluator == nil {
		evaluator = NewExprEvaluator()
	}
	engine := evaluatorEngineName(evaluator)
	decoder := hydrate.NewDecoder[T]()

	return func(old any) (T, error) {
		var zero T
		if expression == "" {
			return zero, wrapEvaluatorError(engine, fmt.Errorf("expression must not be empty"))
		}
		ctx := TransformContext{
			Old:         old,
			Key:         cfg.key,
			FromVersion: cfg.from,
			ToVersion:   cfg.to,
			Args:        cfg.args,
			Metadata:    cfg.metadata,
		}.withDefaults()
		result, err := evaluator.Evaluate(ctx, expression)
		if err != nil {
			return zero, wrapEvaluationError(engine, expression, ctx.keyLabel(), err)
		}
		value, err := decoder.DecodeValue(hydrate.Context{Key: cfg.key, Version: cfg.to}, result)
		if err != nil {
			return zero, wrapEvaluationError(engine, expression, ctx.keyLabel(), err)
		}
		return value, nil
	}
}

func evaluatorEngineName(e Evaluator) string {
	if e == nil {
		return "unknown"
	}
	switch fmt.Sprintf("%T", e) {
	case "*store.exprEvaluator":
		return "expr"
	case "*store.celEvaluator":
		return "cel"
	case "*store.jsEvaluator":
		return "js"
	default:
		return "custom"
	}
}
