//go:build !linux

// File: reactor/dispatcher_other.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package reactor

import (
	"github.com/momentics/hioload-aio/api"
	"github.com/momentics/hioload-aio/control"
)

// Dispatcher is unavailable on this platform.
type Dispatcher struct{}

// New returns api.ErrNotSupported on platforms without epoll.
func New(cfg control.Config, opts ...Option) (*Dispatcher, error) {
	return nil, api.ErrNotSupported
}

func (d *Dispatcher) Submit(n *api.Node) error { return api.ErrNotSupported }
func (d *Dispatcher) Cancel(n *api.Node)       {}
func (d *Dispatcher) Alive() error             { return api.ErrNotSupported }
func (d *Dispatcher) Close() error             { return nil }
