package roster

import (
	"encoding/json"
	"time"
)

// Wire format for the Roster/Atlas sync protocol. Both the client-side
// Syncer and the server-side applier (internal/atlas) speak these types.
//
// Both sides compare the client-assigned updated_at as-is. Under client
// clock skew a client can out-wait a legitimately newer server edit; a
// stricter design would have the server stamp updated_at on acceptance.

// Push outcome statuses.
const (
	OutcomeApplied  = "applied"
	OutcomeConflict = "conflict"
)

// RecordEnvelope is the wire form of a syncable record. Payload internals
// are opaque to the protocol; tombstones travel with a null payload.
type RecordEnvelope struct {
	EntityType  string          `json:"entity_type"`
	EntityID    string          `json:"entity_id"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	ContentHash string          `json:"content_hash,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Deleted     bool            `json:"deleted,omitempty"`
}

// NewEnvelope converts a store record to its wire form.
func NewEnvelope(rec *Record) RecordEnvelope {
	return RecordEnvelope{
		EntityType:  string(rec.EntityType),
		EntityID:    rec.ID,
		Payload:     rec.Payload,
		ContentHash: rec.ContentHash,
		UpdatedAt:   rec.UpdatedAt.UTC(),
		Deleted:     rec.Deleted,
	}
}

// Record converts the envelope back to a store record.
func (e *RecordEnvelope) Record() *Record {
	return &Record{
		EntityType:  EntityType(e.EntityType),
		ID:          e.EntityID,
		Payload:     e.Payload,
		ContentHash: e.ContentHash,
		UpdatedAt:   e.UpdatedAt.UTC(),
		Deleted:     e.Deleted,
	}
}

// PushRequest is the body of POST /api/v1/sync/push.
// PushID is a per-attempt idempotency token; replaying the same batch is
// safe regardless because equal-timestamp records resolve to applied
// no-ops, but the ID lets the server correlate retries in its logs.
type PushRequest struct {
	PushID   string           `json:"push_id"`
	SourceID string           `json:"source_id"`
	Records  []RecordEnvelope `json:"records"`
}

// PushOutcome is the server's per-record verdict. A batch is never
// all-or-nothing; every submitted record gets exactly one outcome.
type PushOutcome struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	Status     string `json:"status"` // applied | conflict
	// UpdatedAt is the server's authoritative timestamp for the record
	// after this push. On applied outcomes the client adopts it.
	UpdatedAt time.Time `json:"updated_at"`
	// Record is the server's current version, present on conflict so the
	// client can reconcile without another round trip.
	Record *RecordEnvelope `json:"record,omitempty"`
}

// PushResponse is the success body of POST /api/v1/sync/push.
type PushResponse struct {
	Outcomes []PushOutcome `json:"outcomes"`
}

// PullResponse is the body of GET /api/v1/sync/pull. Records are ordered
// by updated_at ascending; Cursor is the new high-water mark to persist
// once the whole batch has been applied.
type PullResponse struct {
	Records []RecordEnvelope `json:"records"`
	Cursor  time.Time        `json:"cursor"`
}

// HealthResponse is the body of GET /api/v1/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Records int    `json:"records"`
}
