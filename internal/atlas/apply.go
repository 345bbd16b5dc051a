// Package atlas implements the server side of the Roster sync protocol:
// the last-write-wins applier that resolves pushed records against the
// authoritative store, and the HTTP handler that exposes push, pull,
// status, and health endpoints.
package atlas

import (
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/hyperengineering/roster"
)

// RecordStore is the authoritative persistence contract consumed by the
// applier. Implemented by *roster.Store.
type RecordStore interface {
	GetRecord(entityType roster.EntityType, id string) (*roster.Record, error)
	UpsertRecord(rec *roster.Record) (time.Time, error)
	ListModifiedSince(entityType roster.EntityType, since time.Time) ([]roster.Record, error)
}

// lockStripes bounds the lock table regardless of how many identities
// the server ever sees. Identities hashing to the same stripe serialize
// against each other, which is harmless for correctness.
const lockStripes = 128

// Applier resolves pushed records against the authoritative store with
// last-write-wins comparison. Each identity's read-compare-write is
// serialized with a per-identity lock, so two concurrent pushes for the
// same record can never both read an older version and both win.
type Applier struct {
	store RecordStore
	locks [lockStripes]sync.Mutex
}

// NewApplier creates an applier over the given store.
func NewApplier(store RecordStore) *Applier {
	return &Applier{store: store}
}

func (a *Applier) lockFor(identity string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(identity))
	return &a.locks[h.Sum32()%lockStripes]
}

// ApplyPush resolves every record in the batch and returns one outcome
// per record. Outcomes are per-identity; a conflicted record never
// blocks acceptance of the others.
func (a *Applier) ApplyPush(req *roster.PushRequest) (*roster.PushResponse, error) {
	outcomes := make([]roster.PushOutcome, 0, len(req.Records))
	for i := range req.Records {
		outcome, err := a.applyOne(&req.Records[i])
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, *outcome)
	}
	return &roster.PushResponse{Outcomes: outcomes}, nil
}

// applyOne runs the compare-and-store for a single record:
//
//   - no authoritative record yet: accept as-is
//   - pushed newer: accept, overwrite
//   - equal timestamps: the server already has this exact mutation
//     (a retried push after a dropped response); applied no-op
//   - pushed older: conflict, returning the server's current version
func (a *Applier) applyOne(env *roster.RecordEnvelope) (*roster.PushOutcome, error) {
	rec := env.Record()
	if !rec.EntityType.IsValid() {
		return nil, fmt.Errorf("%w: %q", roster.ErrInvalidEntityType, env.EntityType)
	}

	l := a.lockFor(rec.Identity())
	l.Lock()
	defer l.Unlock()

	current, err := a.store.GetRecord(rec.EntityType, rec.ID)
	if err != nil && !errors.Is(err, roster.ErrNotFound) {
		return nil, err
	}

	if current != nil {
		if rec.UpdatedAt.Before(current.UpdatedAt) {
			serverEnv := roster.NewEnvelope(current)
			return &roster.PushOutcome{
				EntityType: env.EntityType,
				EntityID:   env.EntityID,
				Status:     roster.OutcomeConflict,
				UpdatedAt:  current.UpdatedAt,
				Record:     &serverEnv,
			}, nil
		}
		if rec.UpdatedAt.Equal(current.UpdatedAt) {
			return &roster.PushOutcome{
				EntityType: env.EntityType,
				EntityID:   env.EntityID,
				Status:     roster.OutcomeApplied,
				UpdatedAt:  current.UpdatedAt,
			}, nil
		}
	}

	confirmedAt, err := a.store.UpsertRecord(rec)
	if err != nil {
		return nil, err
	}

	return &roster.PushOutcome{
		EntityType: env.EntityType,
		EntityID:   env.EntityID,
		Status:     roster.OutcomeApplied,
		UpdatedAt:  confirmedAt,
	}, nil
}

// ListSince returns every record changed after the cursor, tombstones
// included, ordered by updated_at ascending, along with the new cursor
// value (the highest timestamp in the batch, or the request cursor when
// nothing changed).
func (a *Applier) ListSince(entityType roster.EntityType, since time.Time) (*roster.PullResponse, error) {
	records, err := a.store.ListModifiedSince(entityType, since)
	if err != nil {
		return nil, err
	}

	cursor := since.UTC()
	envelopes := make([]roster.RecordEnvelope, 0, len(records))
	for i := range records {
		envelopes = append(envelopes, roster.NewEnvelope(&records[i]))
		if records[i].UpdatedAt.After(cursor) {
			cursor = records[i].UpdatedAt
		}
	}

	return &roster.PullResponse{Records: envelopes, Cursor: cursor}, nil
}
