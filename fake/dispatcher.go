// Package fake
// Author: momentics <momentics@gmail.com>
//
// Deterministic dispatcher double for driving pipe descriptors in tests.
// Readiness is delivered only when the test calls Fire.

package fake

import (
	"sync"

	"github.com/momentics/hioload-aio/api"
)

var _ api.Dispatcher = (*Dispatcher)(nil)

// Dispatcher records arm/cancel calls and delivers events on demand,
// honoring one-shot arming.
type Dispatcher struct {
	mu        sync.Mutex
	armed     map[*api.Node]api.Events
	canceled  map[*api.Node]bool
	submits   int
	cancels   int
	submitErr error
}

// NewDispatcher returns an empty fake dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		armed:    make(map[*api.Node]api.Events),
		canceled: make(map[*api.Node]bool),
	}
}

// Submit arms n with its current interest mask.
func (d *Dispatcher) Submit(n *api.Node) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.submits++
	if d.submitErr != nil {
		return d.submitErr
	}
	if d.canceled[n] {
		return api.ErrClosed
	}
	d.armed[n] = n.Events
	return nil
}

// Cancel disarms n permanently.
func (d *Dispatcher) Cancel(n *api.Node) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancels++
	d.canceled[n] = true
	delete(d.armed, n)
}

// SetSubmitErr makes subsequent Submit calls fail with err; nil restores
// normal behavior.
func (d *Dispatcher) SetSubmitErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.submitErr = err
}

// Armed returns the mask n is armed for.
func (d *Dispatcher) Armed(n *api.Node) (api.Events, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ev, ok := d.armed[n]
	return ev, ok
}

// Nodes returns every currently armed node.
func (d *Dispatcher) Nodes() []*api.Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*api.Node, 0, len(d.armed))
	for n := range d.armed {
		out = append(out, n)
	}
	return out
}

// Submits returns the number of Submit calls so far.
func (d *Dispatcher) Submits() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.submits
}

// Cancels returns the number of Cancel calls so far.
func (d *Dispatcher) Cancels() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cancels
}

// Fire disarms n and runs its callback with ev on the calling goroutine.
// It reports false, without calling back, if n is not armed.
func (d *Dispatcher) Fire(n *api.Node, ev api.Events) bool {
	d.mu.Lock()
	_, ok := d.armed[n]
	delete(d.armed, n)
	d.mu.Unlock()
	if !ok {
		return false
	}
	n.Callback(ev)
	return true
}

// FireAll fires every armed node with the mask it was armed for and
// returns how many callbacks ran.
func (d *Dispatcher) FireAll() int {
	d.mu.Lock()
	batch := make(map[*api.Node]api.Events, len(d.armed))
	for n, ev := range d.armed {
		batch[n] = ev
	}
	d.armed = make(map[*api.Node]api.Events)
	d.mu.Unlock()

	for n, ev := range batch {
		n.Callback(ev)
	}
	return len(batch)
}
