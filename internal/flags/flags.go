// Package flags provides feature flag support for controlled feature rollout.
// Flags are read-only after initialization and provide safe defaults for unknown flags.
package flags

import (
	"maps"
	"slices"

	"github.com/zjrosen/structds/internal/log"
)

// Flag name constants for type-safe flag access.
const (
	// FlagStrictURIScheme rejects non-empty dataset URIs that carry no scheme
	// instead of falling back to the dataframe type's default protocol.
	FlagStrictURIScheme = "strict-uri-scheme"

	// FlagDispatchEvents mirrors dispatch events to stderr. Events are
	// published to subscribers either way.
	FlagDispatchEvents = "dispatch-events"

	// FlagStreamDecode makes bundled decoders return chunk streams instead of
	// a single materialized frame.
	FlagStreamDecode = "stream-decode"
)

// Known returns every flag name understood by this build, sorted.
func Known() []string {
	names := []string{FlagStrictURIScheme, FlagDispatchEvents, FlagStreamDecode}
	slices.Sort(names)
	return names
}

// Registry holds feature flag state loaded from configuration.
// Flags are read-only after initialization.
type Registry struct {
	flags map[string]bool
}

// New creates a Registry from a config map.
// If flags is nil, an empty registry is created (all flags disabled).
func New(flags map[string]bool) *Registry {
	r := &Registry{flags: make(map[string]bool, len(flags))}
	maps.Copy(r.flags, flags)
	log.Debug(log.CatConfig, "Feature flags initialized", "count", len(r.flags), "flags", r.All())
	return r
}

// Enabled returns true if the named flag is enabled.
// Returns false for unknown flags and on a nil registry.
func (r *Registry) Enabled(name string) bool {
	if r == nil || r.flags == nil {
		return false
	}
	value, exists := r.flags[name]
	if !exists {
		log.Debug(log.CatConfig, "Unknown flag accessed", "flag", name, "result", false)
		return false
	}
	return value
}

// All returns a copy of all flags (for debugging/logging).
// Returns an empty map if the registry is nil.
func (r *Registry) All() map[string]bool {
	if r == nil || r.flags == nil {
		return make(map[string]bool)
	}
	result := make(map[string]bool, len(r.flags))
	maps.Copy(result, r.flags)
	return result
}
