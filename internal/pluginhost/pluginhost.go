package pluginhost

import (
	"fmt"
	"sort"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/dirctl/ldapdm/internal/hooks"
)

// Plugin is the unit internal/pluginhost loads. OrgConsistency, Trash, and
// AuthzPerBranch each implement it directly (Name/Dependencies/Register are
// already their own methods).
type Plugin interface {
	Name() string
	Dependencies() []string
	Register(registry *hooks.Registry)
}

// Route is one HTTP route a plugin wants mounted under
// /api/v1/plugins/<name>/... .
type Route struct {
	Method  string
	Path    string
	Handler fiber.Handler
}

// RouteProvider is an optional Plugin capability for plugins that expose
// their own HTTP endpoints in addition to hook subscriptions.
type RouteProvider interface {
	Routes() []Route
}

// Host owns the set of plugins to load and the order they were resolved
// into, for diagnostics.
type Host struct {
	plugins      map[string]Plugin
	depOverrides map[string][]string
	loaded       []string
}

// NewHost returns an empty Host.
func NewHost() *Host {
	return &Host{plugins: make(map[string]Plugin), depOverrides: make(map[string][]string)}
}

func (h *Host) dependenciesOf(name string) []string {
	if deps, ok := h.depOverrides[name]; ok {
		return deps
	}

	return h.plugins[name].Dependencies()
}

// Add registers p as available to load. It is an error to Add two plugins
// with the same Name().
func (h *Host) Add(p Plugin) error {
	if _, dup := h.plugins[p.Name()]; dup {
		return fmt.Errorf("pluginhost: duplicate plugin %q", p.Name())
	}

	h.plugins[p.Name()] = p

	return nil
}

// Load topologically sorts every added plugin on its declared
// dependencies and registers each into registry in that order. It returns
// the resolved load order. Call before registry.Seal().
func (h *Host) Load(registry *hooks.Registry) ([]string, error) {
	order, err := topoSort(h.plugins, h.dependenciesOf)
	if err != nil {
		return nil, err
	}

	for _, name := range order {
		p := h.plugins[name]
		p.Register(registry)

		log.Info().Str("plugin", name).Msg("pluginhost: loaded")
	}

	h.loaded = order

	return order, nil
}

// Routes collects every mounted route from every loaded plugin
// implementing RouteProvider, in load order.
func (h *Host) Routes() []pluginRoute {
	var out []pluginRoute

	for _, name := range h.loaded {
		provider, ok := h.plugins[name].(RouteProvider)
		if !ok {
			continue
		}

		for _, route := range provider.Routes() {
			out = append(out, pluginRoute{Plugin: name, Route: route})
		}
	}

	return out
}

type pluginRoute struct {
	Plugin string
	Route  Route
}

// topoSort runs Kahn's algorithm over each plugin's dependencies (as
// reported by depsOf, so callers can layer manifest overrides on top of a
// plugin's compiled-in Dependencies()), breaking ties alphabetically by
// name for deterministic, reproducible load order across restarts.
func topoSort(plugins map[string]Plugin, depsOf func(name string) []string) ([]string, error) {
	names := make([]string, 0, len(plugins))
	for name := range plugins {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		for _, dep := range depsOf(name) {
			if _, ok := plugins[dep]; !ok {
				return nil, fmt.Errorf("pluginhost: plugin %q depends on unknown plugin %q", name, dep)
			}
		}
	}

	remaining := make(map[string][]string, len(plugins))
	for _, name := range names {
		deps := append([]string(nil), depsOf(name)...)
		sort.Strings(deps)
		remaining[name] = deps
	}

	var order []string

	for len(order) < len(names) {
		progressed := false

		for _, name := range names {
			if contains(order, name) {
				continue
			}

			if allSatisfied(remaining[name], order) {
				order = append(order, name)
				progressed = true
			}
		}

		if !progressed {
			return nil, fmt.Errorf("pluginhost: dependency cycle among plugins %v", pending(names, order))
		}
	}

	return order, nil
}

func allSatisfied(deps, resolved []string) bool {
	for _, dep := range deps {
		if !contains(resolved, dep) {
			return false
		}
	}

	return true
}

func contains(haystack []string, needle string) bool {
	for _, v := range haystack {
		if v == needle {
			return true
		}
	}

	return false
}

func pending(all, resolved []string) []string {
	var out []string

	for _, name := range all {
		if !contains(resolved, name) {
			out = append(out, name)
		}
	}

	return out
}
