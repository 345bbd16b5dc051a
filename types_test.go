package roster

import (
	"errors"
	"testing"
	"time"
)

// TestEntityType_IsValid covers the known set and rejection of strangers.
func TestEntityType_IsValid(t *testing.T) {
	for _, et := range ValidEntityTypes() {
		if !et.IsValid() {
			t.Errorf("%q should be valid", et)
		}
	}
	for _, et := range []EntityType{"", "widget", "Project"} {
		if et.IsValid() {
			t.Errorf("%q should be invalid", et)
		}
	}
}

// TestRecord_Identity verifies the composite key format.
func TestRecord_Identity(t *testing.T) {
	rec := &Record{EntityType: EntityProject, ID: "p1"}
	if rec.Identity() != "project/p1" {
		t.Errorf("Identity() = %q", rec.Identity())
	}
}

// TestDecodePayload verifies typed decoding per entity type.
func TestDecodePayload(t *testing.T) {
	rec := &Record{
		EntityType: EntityManifestation,
		ID:         "m1",
		Payload:    []byte(`{"project_id":"p1","kind":"remote","location":"/srv/app","host":"build-01"}`),
	}
	payload, err := DecodePayload(rec)
	if err != nil {
		t.Fatalf("DecodePayload failed: %v", err)
	}
	m, ok := payload.(*Manifestation)
	if !ok {
		t.Fatalf("expected *Manifestation, got %T", payload)
	}
	if m.ProjectID != "p1" || m.Host != "build-01" {
		t.Errorf("decoded %+v", m)
	}
}

// TestDecodePayload_Tombstone verifies that tombstones decode to nil.
func TestDecodePayload_Tombstone(t *testing.T) {
	rec := &Record{EntityType: EntityProject, ID: "p1", Deleted: true, UpdatedAt: time.Now()}
	payload, err := DecodePayload(rec)
	if err != nil {
		t.Fatalf("DecodePayload failed: %v", err)
	}
	if payload != nil {
		t.Errorf("tombstone should decode to nil, got %+v", payload)
	}
}

// TestDecodePayload_UnknownType verifies the error path.
func TestDecodePayload_UnknownType(t *testing.T) {
	rec := &Record{EntityType: "widget", ID: "w1", Payload: []byte(`{}`)}
	if _, err := DecodePayload(rec); !errors.Is(err, ErrInvalidEntityType) {
		t.Errorf("expected ErrInvalidEntityType, got %v", err)
	}
}
