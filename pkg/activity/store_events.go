package activity

import (
	"strings"
	"time"
)

// StoreEventInput describes the common fields for store lifecycle events.
// Key is the version-qualified storage key the event refers to; OldKey names
// the drained old-version key for migration events.
type StoreEventInput struct {
	ActorID     string
	UserID      string
	TenantID    string
	Key         string
	OldKey      string
	Channel     string
	Metadata    map[string]any
	FromVersion *uint64
	ToVersion   *uint64
	OldValue    any
	NewValue    any
	OccurredAt  time.Time
}

// BuildValueSavedEvent constructs a normalized activity event for a value
// written through to the backend.
func BuildValueSavedEvent(input StoreEventInput) Event {
	return buildStoreEvent("store.value.saved", input)
}

// BuildValueLoadedEvent constructs a normalized activity event for a value
// loaded from the backend into the cache.
func BuildValueLoadedEvent(input StoreEventInput) Event {
	return buildStoreEvent("store.value.loaded", input)
}

// BuildValueMigratedEvent constructs a normalized activity event for an
// old-version value adopted under the current key.
func BuildValueMigratedEvent(input StoreEventInput) Event {
	return buildStoreEvent("store.value.migrated", input)
}

// BuildValueDeletedEvent constructs a normalized activity event for a removed
// backend entry.
func BuildValueDeletedEvent(input StoreEventInput) Event {
	return buildStoreEvent("store.value.deleted", input)
}

func buildStoreEvent(verb string, input StoreEventInput) Event {
	const objectType = "store.value"

	metadata := cloneMap(input.Metadata)
	if input.OldKey != "" {
		metadata = ensureMetadata(metadata)
		metadata["old_key"] = input.OldKey
	}
	if input.FromVersion != nil {
		metadata = ensureMetadata(metadata)
		metadata["from_version"] = *input.FromVersion
	}
	if input.ToVersion != nil {
		metadata = ensureMetadata(metadata)
		metadata["to_version"] = *input.ToVersion
	}
	if input.OldValue != nil {
		metadata = ensureMetadata(metadata)
		metadata["old_value"] = input.OldValue
	}
	if input.NewValue != nil {
		metadata = ensureMetadata(metadata)
		metadata["new_value"] = input.NewValue
	}

	objectID := strings.TrimSpace(input.Key)
	if objectID == "" {
		objectID = strings.TrimSpace(input.OldKey)
	}
	if objectID == "" {
		objectID = objectType
	}

	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		UserID:     strings.TrimSpace(input.UserID),
		TenantID:   strings.TrimSpace(input.TenantID),
		ObjectType: objectType,
		ObjectID:   objectID,
		Channel:    strings.TrimSpace(input.Channel),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}
