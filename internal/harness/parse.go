package harness

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ParseFile reads a configuration file and returns its contents as
// canonical JSON: parsed into a generic structure, then re-encoded with
// sorted object keys. Two files with the same data in different key
// order, or in different formats entirely, produce identical bytes.
func ParseFile(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var data map[string]any
	switch format(path) {
	case "toml":
		if err := toml.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("toml: %w", err)
		}
	case "yaml":
		if err := yaml.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("yaml: %w", err)
		}
	default:
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("json: %w", err)
		}
	}

	// encoding/json sorts map keys on marshal.
	return json.Marshal(data)
}

// format infers the file format from the extension. Extensionless
// rc-files (.prettierrc and friends) default to JSON.
func format(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return "toml"
	case ".yml", ".yaml":
		return "yaml"
	default:
		return "json"
	}
}
