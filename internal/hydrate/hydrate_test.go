package hydrate

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
)

type settings struct {
	Size  int    `json:"size"`
	Scale int    `json:"scale"`
	Unit  string `json:"unit"`
}

func TestDecodeObjectPayload(t *testing.T) {
	decoder := NewDecoder[settings]()

	got, err := decoder.Decode(Context{Key: "settings:2"}, map[string]any{
		"size": 10, "scale": 1, "unit": "px",
	})
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	want := settings{Size: 10, Scale: 1, Unit: "px"}
	if !reflect.DeepEqual(want, got) {
		t.Fatalf("decoded value mismatch:\nwant: %#v\n got: %#v", want, got)
	}
}

func TestDecodeRawParsesAndDecodes(t *testing.T) {
	decoder := NewDecoder[settings]()

	got, err := decoder.DecodeRaw(Context{Key: "settings:2"}, json.RawMessage(`{"size":10,"unit":"em"}`))
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if got.Size != 10 || got.Unit != "em" {
		t.Fatalf("unexpected decoded value: %#v", got)
	}
}

func TestDecodeRawRejectsEmptyAndMalformed(t *testing.T) {
	decoder := NewDecoder[settings]()

	if _, err := decoder.DecodeRaw(Context{Key: "settings:2"}, nil); err == nil {
		t.Fatal("expected error for empty payload")
	}
	_, err := decoder.DecodeRaw(Context{Key: "settings:2"}, json.RawMessage(`{`))
	if err == nil || !strings.Contains(err.Error(), "parse key") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestDecodeValueNonObject(t *testing.T) {
	decoder := NewDecoder[int]()

	got, err := decoder.DecodeValue(Context{Key: "counter:1"}, float64(42))
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
}

func TestPreHookRunsBeforeDecoding(t *testing.T) {
	decoder := NewDecoder[settings](WithPreHook[settings](func(ctx Context, payload map[string]any) (map[string]any, error) {
		if _, ok := payload["unit"]; !ok {
			payload["unit"] = "px"
		}
		return payload, nil
	}))

	got, err := decoder.Decode(Context{Key: "settings:2"}, map[string]any{"size": 5})
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if got.Unit != "px" {
		t.Fatalf("expected pre-hook default unit, got %#v", got)
	}
}

func TestPreHookDoesNotMutateInput(t *testing.T) {
	decoder := NewDecoder[settings](WithPreHook[settings](func(ctx Context, payload map[string]any) (map[string]any, error) {
		payload["size"] = 99
		return payload, nil
	}))

	input := map[string]any{"size": 5}
	if _, err := decoder.Decode(Context{Key: "settings:2"}, input); err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if input["size"] != 5 {
		t.Fatalf("expected input payload untouched, got %v", input["size"])
	}
}

func TestPostHookValidates(t *testing.T) {
	wantErr := errors.New("scale must be positive")
	decoder := NewDecoder[settings](WithPostHook[settings](func(ctx Context, result *settings) error {
		if result.Scale <= 0 {
			return wantErr
		}
		return nil
	}))

	_, err := decoder.Decode(Context{Key: "settings:2"}, map[string]any{"size": 5, "scale": 0})
	if err == nil || !errors.Is(err, wantErr) {
		t.Fatalf("expected post-hook error, got %v", err)
	}
}

func TestCustomDecoderReplacesDefaultPath(t *testing.T) {
	decoder := NewDecoder[settings](WithCustomDecoder[settings](func(ctx Context, payload map[string]any) (settings, error) {
		size, ok := payload["size"].(float64)
		if !ok {
			return settings{}, fmt.Errorf("size missing for %s", ctx.Key)
		}
		return settings{Size: int(size) * 2}, nil
	}))

	got, err := decoder.Decode(Context{Key: "settings:2"}, map[string]any{"size": float64(4)})
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if got.Size != 8 {
		t.Fatalf("expected custom decoder result, got %#v", got)
	}
}

func TestDisallowUnknownFields(t *testing.T) {
	decoder := NewDecoder[settings](WithDisallowUnknownFields[settings]())

	_, err := decoder.Decode(Context{Key: "settings:2"}, map[string]any{"size": 1, "bogus": true})
	if err == nil {
		t.Fatal("expected unknown field error")
	}
}
