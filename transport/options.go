// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package transport

import (
	"github.com/rs/zerolog"

	"github.com/momentics/hioload-aio/api"
	"github.com/momentics/hioload-aio/control"
	"github.com/momentics/hioload-aio/pipedesc"
	"github.com/momentics/hioload-aio/reactor"
)

// Option configures connections created by this package.
type Option func(*options)

type options struct {
	disp    api.Dispatcher
	log     zerolog.Logger
	metrics *control.Metrics
}

// WithDispatcher binds connections to d instead of the shared dispatcher.
func WithDispatcher(d api.Dispatcher) Option {
	return func(o *options) { o.disp = d }
}

// WithLogger sets the logger handed to every connection.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithMetrics enables operation counters on every connection.
func WithMetrics(m *control.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func buildOptions(opts []Option) (options, error) {
	o := options{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.disp == nil {
		d, err := reactor.Default()
		if err != nil {
			return o, err
		}
		o.disp = d
	}
	return o, nil
}

func (o options) pipeOptions() []pipedesc.Option {
	return []pipedesc.Option{
		pipedesc.WithLogger(o.log),
		pipedesc.WithMetrics(o.metrics),
	}
}
