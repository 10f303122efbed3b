// control/health.go
// Author: momentics <momentics@gmail.com>
//
// Liveness check for the dispatcher.

package control

import "github.com/heptiolabs/healthcheck"

// Pinger is implemented by components that can report their liveness.
type Pinger interface {
	Alive() error
}

// DispatcherCheck adapts p to a healthcheck.Check.
func DispatcherCheck(p Pinger) healthcheck.Check {
	return func() error {
		return p.Alive()
	}
}

// NewHealthHandler returns a health handler with the dispatcher registered
// as a liveness check under name.
func NewHealthHandler(name string, p Pinger) healthcheck.Handler {
	h := healthcheck.NewHandler()
	h.AddLivenessCheck(name, DispatcherCheck(p))
	return h
}
