// File: api/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Readiness registration record and the dispatcher contract used by pipe
// descriptors. The dispatcher owns OS-level readiness notification; a
// descriptor only arms interest and reacts to delivered events.

package api

import "strings"

// Events is a bit set of readiness conditions.
type Events uint32

const (
	// EventRead indicates the descriptor may be readable.
	EventRead Events = 1 << iota
	// EventWrite indicates the descriptor may be writable.
	EventWrite
	// EventError indicates an error condition on the descriptor.
	EventError
	// EventHangup indicates the peer closed the connection.
	EventHangup
	// EventInvalid indicates the descriptor is not (or no longer) valid.
	EventInvalid
)

// EventTeardown groups the conditions after which no further I/O is
// attempted on a descriptor.
const EventTeardown = EventError | EventHangup | EventInvalid

func (e Events) String() string {
	if e == 0 {
		return "none"
	}
	var parts []string
	for _, f := range []struct {
		bit  Events
		name string
	}{
		{EventRead, "read"},
		{EventWrite, "write"},
		{EventError, "error"},
		{EventHangup, "hangup"},
		{EventInvalid, "invalid"},
	} {
		if e&f.bit != 0 {
			parts = append(parts, f.name)
		}
	}
	return strings.Join(parts, "|")
}

// Node binds a file descriptor to the events currently of interest.
//
// A Node is embedded in (owned by) the descriptor that registers it. Events
// and REvents are written only by the owner while it holds its own lock; the
// dispatcher reads Events synchronously inside Submit and reports observed
// readiness as the Callback argument.
type Node struct {
	FD       int
	Events   Events       // interest mask armed by the next Submit
	REvents  Events       // last observed readiness, valid inside Callback
	Callback func(Events) // invoked by the dispatcher when armed events fire
}

// Dispatcher multiplexes readiness notification for many nodes.
type Dispatcher interface {
	// Submit arms n for the events in n.Events. Arming is one-shot: after
	// the callback has been delivered, n must be submitted again.
	Submit(n *Node) error

	// Cancel removes n and blocks until any in-flight callback for n has
	// returned. No callback for n starts after Cancel returns.
	Cancel(n *Node)
}
