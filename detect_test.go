package roster

import (
	"testing"
)

// TestDetectChange_FirstObservation verifies that an empty previous hash
// always counts as a change.
func TestDetectChange_FirstObservation(t *testing.T) {
	det := DetectChange("", []byte(`{"a":1}`))
	if !det.Changed {
		t.Error("expected first observation to be a change")
	}
	if det.Hash == "" {
		t.Error("expected a hash to be computed")
	}
}

// TestDetectChange_Unchanged verifies that identical content produces no change.
func TestDetectChange_Unchanged(t *testing.T) {
	content := []byte(`{"a":1,"b":2}`)
	first := DetectChange("", content)

	second := DetectChange(first.Hash, content)
	if second.Changed {
		t.Error("expected identical content to be unchanged")
	}
	if second.Hash != first.Hash {
		t.Errorf("hash moved on identical content: %q vs %q", first.Hash, second.Hash)
	}
}

// TestDetectChange_Changed verifies that different content is detected.
func TestDetectChange_Changed(t *testing.T) {
	first := DetectChange("", []byte(`{"a":1}`))
	second := DetectChange(first.Hash, []byte(`{"a":2}`))
	if !second.Changed {
		t.Error("expected modified content to be a change")
	}
	if second.Hash == first.Hash {
		t.Error("expected a different hash for different content")
	}
}

// TestContentHash_KeyOrderIndependent verifies that JSON key order does
// not affect the hash.
func TestContentHash_KeyOrderIndependent(t *testing.T) {
	a := ContentHash([]byte(`{"a":1,"b":{"x":true,"y":"z"}}`))
	b := ContentHash([]byte(`{"b":{"y":"z","x":true},"a":1}`))
	if a != b {
		t.Errorf("hash depends on key order: %q vs %q", a, b)
	}
}

// TestContentHash_WhitespaceIndependent verifies that JSON formatting
// does not affect the hash.
func TestContentHash_WhitespaceIndependent(t *testing.T) {
	a := ContentHash([]byte(`{"a": 1}`))
	b := ContentHash([]byte("{\n  \"a\": 1\n}"))
	if a != b {
		t.Errorf("hash depends on whitespace: %q vs %q", a, b)
	}
}

// TestContentHash_NonJSON verifies that non-JSON content is hashed as
// raw bytes.
func TestContentHash_NonJSON(t *testing.T) {
	a := ContentHash([]byte("not json at all"))
	b := ContentHash([]byte("not json at all"))
	if a != b {
		t.Error("expected stable hash for identical raw content")
	}

	c := ContentHash([]byte("not json at ALL"))
	if a == c {
		t.Error("expected different hash for different raw content")
	}
}
