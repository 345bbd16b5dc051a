package roster

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AtlasClient abstracts HTTP communication with the Atlas central
// registry. Implementations must be safe for concurrent use.
type AtlasClient interface {
	// HealthCheck validates connectivity and returns Atlas metadata.
	HealthCheck(ctx context.Context) (*HealthResponse, error)

	// Push sends a batch of dirty records and returns one outcome per
	// submitted record.
	Push(ctx context.Context, req *PushRequest) (*PushResponse, error)

	// Pull retrieves records changed since the given cursor, scoped to
	// one entity type ("" for all), ordered by updated_at ascending.
	Pull(ctx context.Context, entityType string, since time.Time) (*PullResponse, error)

	// Status returns the registry summary used by the status command.
	Status(ctx context.Context) (*StatusView, error)
}

// SyncStore is the local persistence contract consumed by the Syncer.
// Implemented by *Store.
type SyncStore interface {
	GetRecord(entityType EntityType, id string) (*Record, error)
	UpsertRecord(rec *Record) (time.Time, error)
	ListDirty(entityType EntityType) ([]DirtyEntry, error)
	ClearDirty(entityType EntityType, id string, confirmedAt time.Time) error
	Cursor(scope string) (time.Time, error)
	SetCursor(scope string, at time.Time) error
	SetMeta(key, value string) error
}

// Syncer reconciles the local cache against Atlas. Push and pull are
// each a single bounded round trip; the syncer never retries on its own,
// and a call aborted before its response is processed leaves the store
// exactly as it was, safe to simply retry.
type Syncer struct {
	store    SyncStore
	atlas    AtlasClient
	sourceID string
	debug    *DebugLogger
}

// NewSyncer creates a syncer over the local store and an Atlas client.
func NewSyncer(store SyncStore, atlas AtlasClient, sourceID string) *Syncer {
	return &Syncer{store: store, atlas: atlas, sourceID: sourceID}
}

// WithDebugLogger attaches a debug logger.
func (s *Syncer) WithDebugLogger(logger *DebugLogger) *Syncer {
	s.debug = logger
	return s
}

// Sync performs a full cycle: push dirty records, then pull remote
// changes.
func (s *Syncer) Sync(ctx context.Context) (*SyncStats, error) {
	start := time.Now()

	stats, err := s.Push(ctx)
	if err != nil {
		return nil, fmt.Errorf("push: %w", err)
	}

	pulled, err := s.Pull(ctx)
	if err != nil {
		return nil, fmt.Errorf("pull: %w", err)
	}

	stats.Pulled = pulled
	stats.Duration = time.Since(start)
	return stats, nil
}

// Push sends every dirty record to Atlas in one batch and applies the
// per-record outcomes. A transport failure leaves all dirty entries in
// place; nothing is ever partially cleared.
func (s *Syncer) Push(ctx context.Context) (*SyncStats, error) {
	entries, err := s.store.ListDirty("")
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return &SyncStats{}, nil
	}

	envelopes := make([]RecordEnvelope, 0, len(entries))
	for _, entry := range entries {
		rec, err := s.store.GetRecord(entry.EntityType, entry.ID)
		if errors.Is(err, ErrNotFound) {
			// Dirty entry with no backing record; drop it.
			_ = s.store.ClearDirty(entry.EntityType, entry.ID, entry.UpdatedAt)
			continue
		}
		if err != nil {
			return nil, err
		}
		envelopes = append(envelopes, NewEnvelope(rec))
	}
	if len(envelopes) == 0 {
		return &SyncStats{}, nil
	}

	resp, err := s.atlas.Push(ctx, &PushRequest{
		PushID:   uuid.NewString(),
		SourceID: s.sourceID,
		Records:  envelopes,
	})
	if err != nil {
		return nil, err
	}

	stats := &SyncStats{Pushed: len(envelopes)}
	for i := range resp.Outcomes {
		outcome := &resp.Outcomes[i]
		switch outcome.Status {
		case OutcomeApplied:
			if err := s.handleApplied(outcome); err != nil {
				return nil, err
			}
			stats.Applied++
		case OutcomeConflict:
			if err := s.handleConflict(outcome); err != nil {
				return nil, err
			}
			stats.Conflicts++
		default:
			return nil, fmt.Errorf("push: unknown outcome status %q for %s/%s",
				outcome.Status, outcome.EntityType, outcome.EntityID)
		}
	}

	s.debug.LogSync("push", "pushed=%d applied=%d conflicts=%d",
		stats.Pushed, stats.Applied, stats.Conflicts)
	_ = s.store.SetMeta("last_sync", time.Now().UTC().Format(time.RFC3339Nano))
	return stats, nil
}

// handleApplied adopts the server's authoritative timestamp for the
// record (clock normalization) and clears the dirty entry. If the record
// was edited again during the round trip, the dirty entry carries a newer
// timestamp and survives ClearDirty, and the local record keeps its newer
// edit untouched.
func (s *Syncer) handleApplied(outcome *PushOutcome) error {
	entityType := EntityType(outcome.EntityType)

	local, err := s.store.GetRecord(entityType, outcome.EntityID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if err == nil && !local.UpdatedAt.After(outcome.UpdatedAt) {
		local.UpdatedAt = outcome.UpdatedAt
		if _, err := s.store.UpsertRecord(local); err != nil {
			return err
		}
	}

	return s.store.ClearDirty(entityType, outcome.EntityID, outcome.UpdatedAt)
}

// handleConflict adopts the server's current version: the local edit is
// provably older, and server wins. The overwrite goes through the same
// merge rule as pull, so an even newer concurrent local edit is
// preserved and pushed next cycle.
func (s *Syncer) handleConflict(outcome *PushOutcome) error {
	if outcome.Record == nil {
		return fmt.Errorf("push: conflict outcome for %s/%s is missing the server record",
			outcome.EntityType, outcome.EntityID)
	}

	serverRec := outcome.Record.Record()
	if _, err := s.applyRemote(serverRec); err != nil {
		return err
	}

	return s.store.ClearDirty(serverRec.EntityType, serverRec.ID, serverRec.UpdatedAt)
}

// Pull fetches records changed since the local cursor and merges them
// into the store. The cursor advances only after the entire batch has
// been applied, so an interrupted pull is simply retried over the same
// interval; re-applying is idempotent.
func (s *Syncer) Pull(ctx context.Context) (int, error) {
	cursor, err := s.store.Cursor(CursorAll)
	if err != nil {
		return 0, err
	}

	resp, err := s.atlas.Pull(ctx, "", cursor)
	if err != nil {
		return 0, err
	}

	applied := 0
	highWater := cursor
	for i := range resp.Records {
		rec := resp.Records[i].Record()
		merged, err := s.applyRemote(rec)
		if err != nil {
			// Cursor stays put; the interval will be re-pulled.
			return applied, err
		}
		if merged {
			applied++
		}
		if rec.UpdatedAt.After(highWater) {
			highWater = rec.UpdatedAt
		}
	}

	if resp.Cursor.After(highWater) {
		highWater = resp.Cursor
	}
	if err := s.store.SetCursor(CursorAll, highWater); err != nil {
		return applied, err
	}

	s.debug.LogSync("pull", "applied=%d cursor=%s",
		applied, highWater.Format(time.RFC3339Nano))
	_ = s.store.SetMeta("last_sync", time.Now().UTC().Format(time.RFC3339Nano))
	return applied, nil
}

// applyRemote merges one incoming record under last-write-wins against
// the local store. The stored record only changes when the incoming
// version is strictly newer; this covers both plain last-write-wins and
// the dirty-local protection, since a pending local edit always carries
// a timestamp at least as new as the stored record. Equal timestamps are
// already-applied no-ops, which makes re-pulling an interval idempotent.
// Reports whether the incoming record was stored.
func (s *Syncer) applyRemote(rec *Record) (bool, error) {
	local, err := s.store.GetRecord(rec.EntityType, rec.ID)
	if errors.Is(err, ErrNotFound) {
		_, err := s.store.UpsertRecord(rec)
		return err == nil, err
	}
	if err != nil {
		return false, err
	}

	if !rec.UpdatedAt.After(local.UpdatedAt) {
		return false, nil
	}

	_, err = s.store.UpsertRecord(rec)
	return err == nil, err
}

// HTTPClient implements AtlasClient using net/http.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	sourceID   string
	httpClient *http.Client
	debug      *DebugLogger
}

// NewHTTPClient creates a new Atlas HTTP client.
// sourceID is optional; if non-empty, it's sent as X-Roster-Source-ID
// header for observability.
func NewHTTPClient(atlasURL, apiKey, sourceID string) *HTTPClient {
	return &HTTPClient{
		baseURL:  strings.TrimSuffix(atlasURL, "/"),
		apiKey:   apiKey,
		sourceID: sourceID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// WithHTTPClient sets a custom http.Client (for testing or custom timeouts).
func (c *HTTPClient) WithHTTPClient(client *http.Client) *HTTPClient {
	c.httpClient = client
	return c
}

// WithDebugLogger attaches a debug logger for request/response tracing.
func (c *HTTPClient) WithDebugLogger(logger *DebugLogger) *HTTPClient {
	c.debug = logger
	return c
}

func (c *HTTPClient) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("User-Agent", "roster-client/1.0")
	if strings.TrimSpace(c.sourceID) != "" {
		req.Header.Set("X-Roster-Source-ID", c.sourceID)
	}
}

func newSyncError(op string, statusCode int, body []byte) *SyncError {
	msg := ""
	if len(body) > 0 && statusCode >= 400 {
		if len(body) > 200 {
			msg = string(body[:200]) + "..."
		} else {
			msg = string(body)
		}
	}
	return &SyncError{
		Operation:  op,
		StatusCode: statusCode,
		Err:        fmt.Errorf("HTTP %d: %s", statusCode, msg),
	}
}

func (c *HTTPClient) HealthCheck(ctx context.Context) (*HealthResponse, error) {
	var health HealthResponse
	if err := c.getJSON(ctx, "health_check", "/api/v1/health", &health); err != nil {
		return nil, err
	}
	return &health, nil
}

func (c *HTTPClient) Push(ctx context.Context, pushReq *PushRequest) (*PushResponse, error) {
	body, err := json.Marshal(pushReq)
	if err != nil {
		return nil, &SyncError{Operation: "push", Err: err}
	}
	c.debug.LogRequest(http.MethodPost, c.baseURL+"/api/v1/sync/push", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/sync/push", bytes.NewReader(body))
	if err != nil {
		return nil, &SyncError{Operation: "push", Err: err}
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.debug.LogError("push", err)
		return nil, &SyncError{Operation: "push", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		c.debug.LogResponse(resp.StatusCode, resp.Status, respBody)
		return nil, newSyncError("push", resp.StatusCode, respBody)
	}

	var result PushResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		// The server was reached; carry its status so this is not
		// mistaken for a transport failure.
		return nil, &SyncError{Operation: "push", StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}

	return &result, nil
}

func (c *HTTPClient) Pull(ctx context.Context, entityType string, since time.Time) (*PullResponse, error) {
	path := "/api/v1/sync/pull?since=" + url.QueryEscape(since.UTC().Format(time.RFC3339Nano))
	if entityType != "" {
		path += "&entity_type=" + url.QueryEscape(entityType)
	}

	var result PullResponse
	if err := c.getJSON(ctx, "pull", path, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *HTTPClient) Status(ctx context.Context) (*StatusView, error) {
	var view StatusView
	if err := c.getJSON(ctx, "status", "/api/v1/status", &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, op, path string, out any) error {
	c.debug.LogRequest(http.MethodGet, c.baseURL+path, nil)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return &SyncError{Operation: op, Err: err}
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.debug.LogError(op, err)
		return &SyncError{Operation: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		c.debug.LogResponse(resp.StatusCode, resp.Status, body)
		return newSyncError(op, resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &SyncError{Operation: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
