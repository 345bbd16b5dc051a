package roster

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hyperengineering/roster/internal/harness"
	"github.com/oklog/ulid/v2"
)

// Client is the main interface for interacting with the registry.
type Client struct {
	store  *Store
	atlas  AtlasClient
	syncer *Syncer
	debug  *DebugLogger
	config Config
}

// New creates a new Roster client.
func New(cfg Config) (*Client, error) {
	cfg = cfg.WithDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	debug, err := NewDebugLogger(cfg.Debug, cfg.DebugLogPath)
	if err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}

	store, err := NewStore(cfg.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}

	c := &Client{
		store:  store,
		debug:  debug,
		config: cfg,
	}

	if !cfg.IsOffline() {
		c.atlas = NewHTTPClient(cfg.AtlasURL, cfg.APIKey, cfg.SourceID).WithDebugLogger(debug)
		c.syncer = NewSyncer(store, c.atlas, cfg.SourceID).WithDebugLogger(debug)
	}

	return c, nil
}

// Store exposes the underlying local store, for the serve command and
// tooling that operates on the database directly.
func (c *Client) Store() *Store {
	return c.store
}

// AddProject registers a new project and returns its record.
func (c *Client) AddProject(ctx context.Context, p Project) (*Record, error) {
	if p.Name == "" {
		return nil, ErrEmptyName
	}
	return c.save(EntityProject, ulid.Make().String(), p)
}

// AddManifestation registers a location where a project exists.
func (c *Client) AddManifestation(ctx context.Context, m Manifestation) (*Record, error) {
	if m.ProjectID == "" {
		return nil, &ValidationError{Field: "ProjectID", Message: "required"}
	}
	if m.Location == "" {
		return nil, &ValidationError{Field: "Location", Message: "required"}
	}
	if _, err := c.store.GetRecord(EntityProject, m.ProjectID); err != nil {
		return nil, fmt.Errorf("manifestation project: %w", err)
	}
	if m.Kind == "" {
		m.Kind = "local"
	}
	return c.save(EntityManifestation, ulid.Make().String(), m)
}

func (c *Client) save(entityType EntityType, id string, payload any) (*Record, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", entityType, err)
	}

	rec := &Record{
		EntityType: entityType,
		ID:         id,
		Payload:    data,
	}
	if err := c.store.SaveLocal(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Get retrieves a live record by identity.
func (c *Client) Get(entityType EntityType, id string) (*Record, error) {
	rec, err := c.store.GetRecord(entityType, id)
	if err != nil {
		return nil, err
	}
	if rec.Deleted {
		return nil, ErrNotFound
	}
	return rec, nil
}

// Records lists all live records of the given type.
func (c *Client) Records(entityType EntityType) ([]Record, error) {
	if !entityType.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEntityType, entityType)
	}
	return c.store.ListRecords(entityType)
}

// Remove writes a tombstone for the record. The deletion propagates to
// Atlas on the next push like any other mutation.
func (c *Client) Remove(entityType EntityType, id string) error {
	return c.store.DeleteLocal(entityType, id)
}

// DiscoveryResult summarizes one discovery run.
type DiscoveryResult struct {
	Scanned   int      `json:"scanned"`
	Changed   int      `json:"changed"`
	Unchanged int      `json:"unchanged"`
	Keys      []string `json:"keys,omitempty"` // identities of changed artifacts
}

// Discover runs the given providers against a root directory and records
// every artifact whose content actually changed. Unchanged artifacts are
// left completely untouched, so repeated scans never manufacture sync
// churn.
func (c *Client) Discover(ctx context.Context, root string, providers []harness.Provider) (*DiscoveryResult, error) {
	artifacts, err := harness.DiscoverAll(providers, root)
	if err != nil {
		return nil, err
	}

	result := &DiscoveryResult{Scanned: len(artifacts)}
	for i := range artifacts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		changed, err := c.recordArtifact(&artifacts[i])
		if err != nil {
			return nil, err
		}
		if changed {
			result.Changed++
			result.Keys = append(result.Keys, artifacts[i].Key())
		} else {
			result.Unchanged++
		}
	}
	return result, nil
}

// recordArtifact applies the change detector to one discovered artifact
// and writes it only when the content hash moved. A tombstoned artifact
// that reappears on disk is resurrected as a fresh change.
func (c *Client) recordArtifact(a *harness.Artifact) (bool, error) {
	id := a.Key()

	prevHash := ""
	existing, err := c.store.GetRecord(EntityHarnessConfig, id)
	if err != nil && err != ErrNotFound {
		return false, err
	}
	if existing != nil && !existing.Deleted {
		prevHash = existing.ContentHash
	}

	det := DetectChange(prevHash, a.Content)
	if !det.Changed {
		return false, nil
	}

	payload, err := json.Marshal(HarnessConfig{
		Harness:  a.Harness,
		Path:     a.Path,
		Settings: a.Content,
	})
	if err != nil {
		return false, err
	}

	rec := &Record{
		EntityType:  EntityHarnessConfig,
		ID:          id,
		Payload:     payload,
		ContentHash: det.Hash,
	}
	if err := c.store.SaveLocal(rec); err != nil {
		return false, err
	}

	return true, c.recordSkills(a)
}

// recordSkills registers skill records for any skills the artifact
// declares in a top-level "skills" array. Existing skills stay as they
// are; only unseen names produce new records.
func (c *Client) recordSkills(a *harness.Artifact) error {
	var decl struct {
		Skills []string `json:"skills"`
	}
	if err := json.Unmarshal(a.Content, &decl); err != nil || len(decl.Skills) == 0 {
		return nil
	}

	for _, name := range decl.Skills {
		if name == "" {
			continue
		}
		id := a.Harness + ":" + name
		_, err := c.store.GetRecord(EntitySkill, id)
		if err == nil {
			continue
		}
		if err != ErrNotFound {
			return err
		}

		payload, err := json.Marshal(Skill{Name: name, Harness: a.Harness})
		if err != nil {
			return err
		}
		rec := &Record{EntityType: EntitySkill, ID: id, Payload: payload}
		if err := c.store.SaveLocal(rec); err != nil {
			return err
		}
	}
	return nil
}

// Sync synchronizes with Atlas (if configured).
func (c *Client) Sync(ctx context.Context) (*SyncStats, error) {
	if c.syncer == nil {
		return nil, ErrOffline
	}
	return c.syncer.Sync(ctx)
}

// SyncPush pushes dirty records to Atlas.
func (c *Client) SyncPush(ctx context.Context) (*SyncStats, error) {
	if c.syncer == nil {
		return nil, ErrOffline
	}
	return c.syncer.Push(ctx)
}

// SyncPull pulls remote changes from Atlas.
func (c *Client) SyncPull(ctx context.Context) (int, error) {
	if c.syncer == nil {
		return 0, ErrOffline
	}
	return c.syncer.Pull(ctx)
}

// Status returns the registry summary. When Atlas is reachable the live
// view is served and snapshotted locally; on a transport failure the
// read degrades to the cached snapshot, tagged with its capture time.
// In offline-only mode the local store's own summary is served.
func (c *Client) Status(ctx context.Context) (FetchResult[*StatusView], error) {
	if c.atlas == nil {
		view, err := c.store.StatusSummary()
		if err != nil {
			return FetchResult[*StatusView]{}, err
		}
		return FetchResult[*StatusView]{Data: view, Fresh: true}, nil
	}

	return FallbackRead(ctx,
		func(ctx context.Context) (*StatusView, error) {
			view, err := c.atlas.Status(ctx)
			if err != nil {
				return nil, err
			}
			if data, err := json.Marshal(view); err == nil {
				_ = c.store.SaveSnapshot("status", data, time.Now().UTC())
			}
			return view, nil
		},
		func() (*StatusView, time.Time, error) {
			data, asOf, err := c.store.Snapshot("status")
			if err != nil {
				return nil, time.Time{}, err
			}
			var view StatusView
			if err := json.Unmarshal(data, &view); err != nil {
				return nil, time.Time{}, err
			}
			return &view, asOf, nil
		},
	)
}

// Stats returns local store statistics.
func (c *Client) Stats() (*StoreStats, error) {
	return c.store.Stats()
}

// HealthCheck returns the health status of the client.
func (c *Client) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Healthy: true,
		StoreOK: true,
	}

	if _, err := c.store.Stats(); err != nil {
		status.StoreOK = false
		status.Healthy = false
		status.Error = err.Error()
		return status
	}

	if c.atlas != nil {
		_, err := c.atlas.HealthCheck(ctx)
		status.AtlasReachable = err == nil
		if err != nil && status.Error == "" {
			status.Error = err.Error()
		}
	}

	return status
}

// Close closes the client.
func (c *Client) Close() error {
	if err := c.debug.Close(); err != nil {
		return err
	}
	return c.store.Close()
}
