package roster

import (
	"os"

	"github.com/hyperengineering/roster/internal/store"
)

// Config configures the Roster client.
type Config struct {
	// LocalPath is the path to the local SQLite database.
	LocalPath string

	// AtlasURL is the URL of the Atlas central registry.
	// If empty, the client operates in offline-only mode.
	AtlasURL string

	// APIKey authenticates with Atlas.
	APIKey string

	// SourceID identifies this client instance.
	// Defaults to hostname if not set.
	SourceID string

	// Debug enables verbose logging of all Atlas API communications.
	Debug bool

	// DebugLogPath is the path to write debug logs.
	// Defaults to stderr if empty.
	DebugLogPath string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	hostname, _ := os.Hostname()
	return Config{
		LocalPath: store.DefaultDBPath(),
		SourceID:  hostname,
	}
}

// ConfigFromEnv reads configuration from environment variables.
//
//	ROSTER_DB_PATH    → LocalPath
//	ATLAS_URL         → AtlasURL
//	ATLAS_API_KEY     → APIKey
//	ROSTER_SOURCE_ID  → SourceID
//	ROSTER_DEBUG      → Debug (any non-empty value enables)
//	ROSTER_DEBUG_LOG  → DebugLogPath
func ConfigFromEnv() Config {
	return Config{
		LocalPath:    os.Getenv("ROSTER_DB_PATH"),
		AtlasURL:     os.Getenv("ATLAS_URL"),
		APIKey:       os.Getenv("ATLAS_API_KEY"),
		SourceID:     os.Getenv("ROSTER_SOURCE_ID"),
		Debug:        os.Getenv("ROSTER_DEBUG") != "",
		DebugLogPath: os.Getenv("ROSTER_DEBUG_LOG"),
	}
}

// Validate checks the configuration for errors.
// Returns *ValidationError for invalid fields.
func (c *Config) Validate() error {
	if c.LocalPath == "" {
		return &ValidationError{Field: "LocalPath", Message: "required: path to SQLite database"}
	}

	if c.AtlasURL != "" && c.APIKey == "" {
		return &ValidationError{Field: "APIKey", Message: "required when AtlasURL is set"}
	}

	return nil
}

// IsOffline returns true if the client operates in offline-only mode.
func (c *Config) IsOffline() bool {
	return c.AtlasURL == ""
}

// WithDefaults fills in default values for unset fields.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.LocalPath == "" {
		c.LocalPath = def.LocalPath
	}
	if c.SourceID == "" {
		c.SourceID = def.SourceID
	}
	return c
}
