package pluginhost

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Manifest is the plugins.yaml document operators use to enable/disable
// compiled-in plugins and override dependency order hints without
// recompiling.
type Manifest struct {
	Plugins []ManifestEntry `yaml:"plugins"`
}

// ManifestEntry describes one plugin's desired state.
type ManifestEntry struct {
	Name         string   `yaml:"name"`
	Dependencies []string `yaml:"dependencies,omitempty"`
	Disabled     bool     `yaml:"disabled,omitempty"`
}

// LoadManifest reads and parses a plugins.yaml document from path.
func LoadManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pluginhost: read %s: %w", path, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("pluginhost: parse %s: %w", path, err)
	}

	return &m, nil
}

// enabled returns the set of plugin names this manifest does not disable.
func (m *Manifest) enabled() map[string]bool {
	out := make(map[string]bool, len(m.Plugins))

	for _, e := range m.Plugins {
		out[e.Name] = !e.Disabled
	}

	return out
}

// dependencyOverride returns e's declared dependencies for name, if the
// manifest lists that plugin at all.
func (m *Manifest) dependencyOverride(name string) ([]string, bool) {
	for _, e := range m.Plugins {
		if e.Name == name {
			return e.Dependencies, true
		}
	}

	return nil, false
}

// ApplyManifest removes from h every plugin the manifest disables, and
// records a Dependencies() override for ordering when one is declared for
// that plugin name. Any plugin not mentioned in the manifest keeps its
// compiled-in Dependencies() unchanged (manifests are
// opt-out, not opt-in, since the alternative — silently dropping an
// unlisted built-in plugin — would violate spec.md's "no special-cased
// core/plugin distinction").
func (h *Host) ApplyManifest(m *Manifest) error {
	enabled := m.enabled()

	for name, on := range enabled {
		if on {
			continue
		}

		if _, ok := h.plugins[name]; !ok {
			return fmt.Errorf("pluginhost: manifest disables unknown plugin %q", name)
		}

		delete(h.plugins, name)
	}

	for name := range h.plugins {
		if deps, ok := m.dependencyOverride(name); ok {
			h.depOverrides[name] = deps
		}
	}

	return nil
}
