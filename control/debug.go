// control/debug.go
// Author: momentics <momentics@gmail.com>
//
// In-memory api.Debug implementation. The dispatcher registers node and
// worker counts here; the echo example serves DumpState on /debug/state.

package control

import (
	"sync"

	"github.com/momentics/hioload-aio/api"
)

var _ api.Debug = (*DebugProbes)(nil)

// DebugProbes is a concurrency-safe map of probe name to evaluator.
type DebugProbes struct {
	mu     sync.RWMutex
	probes map[string]func() any
}

// NewDebugProbes returns an empty registry.
func NewDebugProbes() *DebugProbes {
	return &DebugProbes{
		probes: make(map[string]func() any),
	}
}

// RegisterProbe installs fn under name, replacing any previous probe.
func (dp *DebugProbes) RegisterProbe(name string, fn func() any) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.probes[name] = fn
}

// UnregisterProbe drops the probe registered under name.
func (dp *DebugProbes) UnregisterProbe(name string) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	delete(dp.probes, name)
}

// DumpState evaluates every probe and returns the results by name. Probes
// run outside the registry lock, so a probe may itself register probes.
func (dp *DebugProbes) DumpState() map[string]any {
	dp.mu.RLock()
	fns := make(map[string]func() any, len(dp.probes))
	for k, fn := range dp.probes {
		fns[k] = fn
	}
	dp.mu.RUnlock()

	out := make(map[string]any, len(fns))
	for k, fn := range fns {
		out[k] = fn()
	}
	return out
}
