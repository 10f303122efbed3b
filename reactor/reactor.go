// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral dispatcher options and the shared process-wide instance.

package reactor

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/momentics/hioload-aio/api"
	"github.com/momentics/hioload-aio/control"
)

var _ api.Dispatcher = (*Dispatcher)(nil)

// Option customizes dispatcher construction.
type Option func(*options)

type options struct {
	log     zerolog.Logger
	metrics *control.Metrics
	store   *control.ConfigStore
	probes  api.Debug
}

func defaultOptions() options {
	return options{log: zerolog.Nop()}
}

// WithLogger sets the dispatcher logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// WithMetrics enables Prometheus counters.
func WithMetrics(m *control.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithConfigStore subscribes the dispatcher to configuration reloads.
// Only Workers is applied at runtime.
func WithConfigStore(cs *control.ConfigStore) Option {
	return func(o *options) {
		o.store = cs
	}
}

// WithProbes registers dispatcher debug probes.
func WithProbes(dp api.Debug) Option {
	return func(o *options) {
		o.probes = dp
	}
}

var (
	defaultMu   sync.Mutex
	defaultDisp *Dispatcher
)

// Default returns the process-wide dispatcher, creating it on first use
// from DefaultConfig overlaid with the environment. A failed creation is
// not cached: the next call tries again, so fixing the environment is
// enough to recover.
func Default() (*Dispatcher, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultDisp != nil {
		return defaultDisp, nil
	}
	cfg, err := control.LoadEnv(control.DefaultConfig())
	if err != nil {
		return nil, err
	}
	d, err := New(cfg)
	if err != nil {
		return nil, err
	}
	defaultDisp = d
	return d, nil
}
