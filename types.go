package roster

import (
	"encoding/json"
	"fmt"
	"time"
)

// EntityType identifies which logical table a record belongs to.
type EntityType string

const (
	EntityProject       EntityType = "project"
	EntityManifestation EntityType = "manifestation"
	EntityHarnessConfig EntityType = "harness_config"
	EntitySkill         EntityType = "skill"
)

// ValidEntityTypes returns all entity types known to the registry.
func ValidEntityTypes() []EntityType {
	return []EntityType{
		EntityProject,
		EntityManifestation,
		EntityHarnessConfig,
		EntitySkill,
	}
}

// IsValid checks if the entity type is known.
func (t EntityType) IsValid() bool {
	for _, valid := range ValidEntityTypes() {
		if t == valid {
			return true
		}
	}
	return false
}

// Record is the generic unit of synchronization: an envelope around an
// entity-specific payload. The sync engine only ever reads the envelope
// fields; payload internals are decoded at the API and CLI boundaries.
type Record struct {
	EntityType EntityType      `json:"entity_type"`
	ID         string          `json:"id"` // stable natural key (ULID)
	Payload    json.RawMessage `json:"payload,omitempty"`
	// ContentHash is set only for discovered-artifact types and is compared
	// by the change detector independently of UpdatedAt.
	ContentHash string    `json:"content_hash,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
	Deleted     bool      `json:"deleted,omitempty"`
}

// Identity returns the (entity_type, id) pair as a single map key.
func (r *Record) Identity() string {
	return string(r.EntityType) + "/" + r.ID
}

// Project is a tracked software project.
type Project struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Language    string   `json:"language,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Manifestation is a concrete location where a project exists.
type Manifestation struct {
	ProjectID string `json:"project_id"`
	Kind      string `json:"kind"` // local | remote
	Location  string `json:"location"`
	Host      string `json:"host,omitempty"`
}

// HarnessConfig is a configuration artifact discovered from an external tool.
type HarnessConfig struct {
	Harness   string          `json:"harness"`
	Path      string          `json:"path"`
	ProjectID string          `json:"project_id,omitempty"`
	Settings  json.RawMessage `json:"settings,omitempty"`
}

// Skill is a named capability declared by a harness configuration.
type Skill struct {
	Name      string `json:"name"`
	Harness   string `json:"harness,omitempty"`
	ProjectID string `json:"project_id,omitempty"`
}

// DecodePayload decodes a record payload into its typed form.
// Tombstones carry no payload and decode to nil.
func DecodePayload(rec *Record) (any, error) {
	if rec.Deleted || len(rec.Payload) == 0 {
		return nil, nil
	}

	var out any
	switch rec.EntityType {
	case EntityProject:
		out = &Project{}
	case EntityManifestation:
		out = &Manifestation{}
	case EntityHarnessConfig:
		out = &HarnessConfig{}
	case EntitySkill:
		out = &Skill{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidEntityType, rec.EntityType)
	}

	if err := json.Unmarshal(rec.Payload, out); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", rec.EntityType, err)
	}
	return out, nil
}

// DirtyEntry is a locally mutated record awaiting push confirmation.
type DirtyEntry struct {
	EntityType EntityType `json:"entity_type"`
	ID         string     `json:"id"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// SyncStats summarizes one sync cycle.
type SyncStats struct {
	Pushed    int           `json:"pushed"`
	Applied   int           `json:"applied"`
	Conflicts int           `json:"conflicts"`
	Pulled    int           `json:"pulled"`
	Duration  time.Duration `json:"duration"`
}

// StoreStats contains statistics about the local store.
type StoreStats struct {
	RecordCount   int       `json:"record_count"`
	PendingSync   int       `json:"pending_sync"`
	LastSync      time.Time `json:"last_sync"`
	SchemaVersion string    `json:"schema_version"`
}

// StatusView is the registry summary consumed by the status command.
// Served live from Atlas when reachable, otherwise from the most recent
// cached snapshot.
type StatusView struct {
	Projects       int       `json:"projects"`
	Manifestations int       `json:"manifestations"`
	HarnessConfigs int       `json:"harness_configs"`
	Skills         int       `json:"skills"`
	GeneratedAt    time.Time `json:"generated_at"`
}

// HealthStatus represents the health of the client.
type HealthStatus struct {
	Healthy        bool   `json:"healthy"`
	StoreOK        bool   `json:"store_ok"`
	AtlasReachable bool   `json:"atlas_reachable"`
	Error          string `json:"error,omitempty"`
}
