// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Prometheus counters for operation and dispatcher activity.
// All methods are safe on a nil *Metrics, which disables collection.

package control

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/momentics/hioload-aio/api"
)

// Direction labels.
const (
	DirRead  = "read"
	DirWrite = "write"
)

// Metrics holds the collectors registered by NewMetrics.
type Metrics struct {
	Submitted *prometheus.CounterVec // by direction
	Finished  *prometheus.CounterVec // by direction and result
	Bytes     *prometheus.CounterVec // by direction
	Callbacks prometheus.Counter
	ArmErrors prometheus.Counter
	Panics    prometheus.Counter
}

// NewMetrics creates the collectors under namespace and registers them
// with reg. A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	m := &Metrics{
		Submitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ops_submitted_total",
			Help:      "Operations submitted to pipe descriptors.",
		}, []string{"dir"}),
		Finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ops_finished_total",
			Help:      "Operations finalized by pipe descriptors.",
		}, []string{"dir", "result"}),
		Bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_total",
			Help:      "Bytes transferred by vectored reads and writes.",
		}, []string{"dir"}),
		Callbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatcher_callbacks_total",
			Help:      "Readiness callbacks delivered by the dispatcher.",
		}),
		ArmErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatcher_arm_errors_total",
			Help:      "Failures to arm a registration with the poller.",
		}),
		Panics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatcher_panics_total",
			Help:      "Panics recovered from readiness callbacks.",
		}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.Submitted, m.Finished, m.Bytes, m.Callbacks, m.ArmErrors, m.Panics} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ResultLabel classifies a completion error for the "result" label.
func ResultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, api.ErrClosed):
		return "closed"
	case errors.Is(err, api.ErrCanceled):
		return "canceled"
	case errors.Is(err, api.ErrTimeout):
		return "timeout"
	default:
		return "error"
	}
}

// OpSubmitted counts an operation accepted by a descriptor in direction dir.
func (m *Metrics) OpSubmitted(dir string) {
	if m == nil {
		return
	}
	m.Submitted.WithLabelValues(dir).Inc()
}

// OpFinished counts a finalized operation, labeled by ResultLabel(err).
func (m *Metrics) OpFinished(dir string, err error) {
	if m == nil {
		return
	}
	m.Finished.WithLabelValues(dir, ResultLabel(err)).Inc()
}

// Transferred adds n bytes moved by one readv or writev.
func (m *Metrics) Transferred(dir string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.Bytes.WithLabelValues(dir).Add(float64(n))
}

// Callback counts a readiness callback handed to a worker.
func (m *Metrics) Callback() {
	if m == nil {
		return
	}
	m.Callbacks.Inc()
}

// ArmError counts a failed epoll_ctl arm.
func (m *Metrics) ArmError() {
	if m == nil {
		return
	}
	m.ArmErrors.Inc()
}

// Panic counts a panic recovered from a readiness callback.
func (m *Metrics) Panic() {
	if m == nil {
		return
	}
	m.Panics.Inc()
}
