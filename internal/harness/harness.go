// Package harness discovers configuration artifacts written by external
// tools. Providers are plain values constructed by the caller and passed
// into the discovery pipeline explicitly; there is no process-wide
// registry, so a test can run the pipeline with any fixed provider set.
package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Artifact is one discovered configuration file, normalized to canonical
// JSON so that hashing is stable across formats and key order.
type Artifact struct {
	Harness string // tool that owns the file
	Path    string // path relative to the discovery root
	Content []byte // canonical JSON form of the parsed settings
}

// Key returns the artifact's stable natural identity. Discovery must
// produce the same key on every run so repeated scans update the same
// record instead of minting new ones.
func (a *Artifact) Key() string {
	return a.Harness + ":" + filepath.ToSlash(a.Path)
}

// Provider discovers the artifacts of one harness under a root directory.
type Provider interface {
	Name() string
	Discover(root string) ([]Artifact, error)
}

// FileProvider discovers artifacts by matching well-known file locations
// under the root and parsing them with a format inferred from the file
// extension (JSON, YAML, or TOML).
type FileProvider struct {
	name     string
	patterns []string
}

// NewFileProvider creates a provider matching the given glob patterns,
// interpreted relative to the discovery root.
func NewFileProvider(name string, patterns ...string) *FileProvider {
	return &FileProvider{name: name, patterns: patterns}
}

func (p *FileProvider) Name() string { return p.name }

func (p *FileProvider) Discover(root string) ([]Artifact, error) {
	seen := make(map[string]bool)
	var artifacts []Artifact

	for _, pattern := range p.patterns {
		matches, err := filepath.Glob(filepath.Join(root, pattern))
		if err != nil {
			return nil, fmt.Errorf("harness %s: bad pattern %q: %w", p.name, pattern, err)
		}

		for _, match := range matches {
			rel, err := filepath.Rel(root, match)
			if err != nil {
				return nil, err
			}
			if seen[rel] {
				continue
			}
			seen[rel] = true

			info, err := os.Stat(match)
			if err != nil || info.IsDir() {
				continue
			}

			content, err := ParseFile(match)
			if err != nil {
				return nil, fmt.Errorf("harness %s: parse %s: %w", p.name, rel, err)
			}

			artifacts = append(artifacts, Artifact{
				Harness: p.name,
				Path:    rel,
				Content: content,
			})
		}
	}

	sort.Slice(artifacts, func(i, j int) bool { return artifacts[i].Path < artifacts[j].Path })
	return artifacts, nil
}

// DefaultProviders returns the built-in provider set for commonly
// tracked harnesses.
func DefaultProviders() []Provider {
	return []Provider{
		NewFileProvider("claude", ".claude/settings.json", ".claude/settings.local.json"),
		NewFileProvider("vscode", ".vscode/settings.json"),
		NewFileProvider("golangci", ".golangci.yml", ".golangci.yaml"),
		NewFileProvider("ruff", "ruff.toml", ".ruff.toml"),
		NewFileProvider("prettier", ".prettierrc", ".prettierrc.json", ".prettierrc.yaml"),
	}
}

// DiscoverAll runs every provider against the root and returns the
// combined artifact list.
func DiscoverAll(providers []Provider, root string) ([]Artifact, error) {
	var all []Artifact
	for _, p := range providers {
		artifacts, err := p.Discover(root)
		if err != nil {
			return nil, err
		}
		all = append(all, artifacts...)
	}
	return all, nil
}
