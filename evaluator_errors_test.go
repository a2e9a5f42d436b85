package store

import (
	"errors"
	"testing"
)

func TestWrapEvaluationErrorCreatesMetadata(t *testing.T) {
	base := errors.New("boom")
	err := wrapEvaluationError("expr", "old.size * 2", "settings:1", base)

	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvaluationError, got %T", err)
	}
	if evalErr.Engine != "expr" {
		t.Fatalf("expected engine expr, got %q", evalErr.Engine)
	}
	if evalErr.Expr != "old.size * 2" {
		t.Fatalf("expected expression metadata, got %q", evalErr.Expr)
	}
	if evalErr.Key != "settings:1" {
		t.Fatalf("expected key metadata, got %q", evalErr.Key)
	}
	if !errors.Is(evalErr.Err, base) {
		t.Fatalf("wrapped error should unwrap to base error")
	}
}

func TestWrapEvaluationErrorAugmentsExisting(t *testing.T) {
	base := errors.New("compile failure")
	existing := &EvaluationError{
		Engine: "expr",
		Err:    base,
	}

	err := wrapEvaluationError("cel", "rule", "settings:9", existing)
	if !errors.Is(err, base) {
		t.Fatalf("expected base error to unwrap")
	}
	if existing.Engine != "expr" {
		t.Fatalf("existing engine should not be overwritten, got %q", existing.Engine)
	}
	if existing.Expr != "rule" {
		t.Fatalf("expression should be filled, got %q", existing.Expr)
	}
	if existing.Key != "settings:9" {
		t.Fatalf("key should be filled, got %q", existing.Key)
	}
}

func TestWrapEvaluatorErrorKeepsStorePrefix(t *testing.T) {
	base := errors.New("store: already prefixed")
	if err := wrapEvaluatorError("expr", base); err != base {
		t.Fatalf("expected prefixed error passed through, got %v", err)
	}

	wrapped := wrapEvaluatorError("expr", errors.New("raw"))
	if wrapped == nil || wrapped.Error() != "store: expr evaluator: raw" {
		t.Fatalf("unexpected wrapped error: %v", wrapped)
	}
}
