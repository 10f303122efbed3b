// Package api
// Author: momentics
//
// Probe registry contract used by the dispatcher to publish its internal
// counters (registered nodes, worker pool size) for diagnostics.

package api

// Debug collects named probes and evaluates them on demand.
type Debug interface {
	// DumpState evaluates every probe and returns the results by name.
	DumpState() map[string]any

	// RegisterProbe installs fn under name, replacing an existing probe.
	RegisterProbe(name string, fn func() any)
}
