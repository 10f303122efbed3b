// File: pipedesc/pipedesc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pipedesc

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/momentics/hioload-aio/aio"
	"github.com/momentics/hioload-aio/api"
	"github.com/momentics/hioload-aio/control"
)

// Option customizes a PipeDesc.
type Option func(*PipeDesc)

// WithLogger sets the descriptor logger.
func WithLogger(l zerolog.Logger) Option {
	return func(pd *PipeDesc) {
		pd.log = l
	}
}

// WithMetrics enables operation counters.
func WithMetrics(m *control.Metrics) Option {
	return func(pd *PipeDesc) {
		pd.metrics = m
	}
}

// PipeDesc is the asynchronous I/O state of one connected descriptor.
type PipeDesc struct {
	mu      sync.Mutex // guards everything below, including node masks
	fd      int        // -1 once closed
	closing bool
	readq   *opQueue
	writeq  *opQueue
	node    api.Node
	disp    api.Dispatcher

	closeOnce sync.Once
	log       zerolog.Logger
	metrics   *control.Metrics
}

// New takes ownership of fd, which must be connected, switches it to
// non-blocking mode and binds it to d.
func New(fd int, d api.Dispatcher, opts ...Option) (*PipeDesc, error) {
	if fd < 0 {
		return nil, fmt.Errorf("%w: descriptor %d", api.ErrInvalidArgument, fd)
	}
	if d == nil {
		return nil, fmt.Errorf("%w: nil dispatcher", api.ErrInvalidArgument)
	}
	if err := setNonblock(fd); err != nil {
		return nil, err
	}

	pd := &PipeDesc{
		fd:     fd,
		readq:  newOpQueue(control.DirRead),
		writeq: newOpQueue(control.DirWrite),
		disp:   d,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(pd)
	}
	pd.log = pd.log.With().Int("fd", fd).Logger()
	pd.node = api.Node{FD: fd, Callback: pd.onEvents}
	return pd, nil
}

// FD returns the underlying descriptor, or -1 once closed.
func (pd *PipeDesc) FD() int {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	return pd.fd
}

// Interest returns the interest mask of the registration.
func (pd *PipeDesc) Interest() api.Events {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	return pd.node.Events
}

// Pending returns the number of queued reads and writes.
func (pd *PipeDesc) Pending() (reads, writes int) {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	return pd.readq.len(), pd.writeq.len()
}

// Recv queues op to be filled from the descriptor.
func (pd *PipeDesc) Recv(op *aio.Op) {
	pd.submit(pd.readq, api.EventRead, op)
}

// Send queues op to be written to the descriptor.
func (pd *PipeDesc) Send(op *aio.Op) {
	pd.submit(pd.writeq, api.EventWrite, op)
}

func (pd *PipeDesc) submit(q *opQueue, ev api.Events, op *aio.Op) {
	pd.mu.Lock()
	defer pd.mu.Unlock()

	if !op.Start(pd.cancel) {
		return
	}
	pd.metrics.OpSubmitted(q.dir)
	if pd.fd < 0 || pd.closing {
		pd.finalize(q, op, api.ErrClosed)
		return
	}

	q.push(op)
	if pd.node.Events&ev != 0 {
		return
	}
	pd.node.Events |= ev
	if err := pd.disp.Submit(&pd.node); err != nil {
		pd.log.Warn().Err(err).Stringer("events", pd.node.Events).Msg("arming registration failed")
		q.remove(op)
		if q.len() == 0 {
			pd.node.Events &^= ev
		}
		pd.finalize(q, op, err)
	}
}

// finalize must be called with pd.mu held and op already out of q.
func (pd *PipeDesc) finalize(q *opQueue, op *aio.Op, err error) {
	if op.Finish(err, op.Count()) {
		pd.metrics.OpFinished(q.dir, err)
	}
}

// cancel is installed on every queued op. It only drops queue membership;
// the canceler finalizes the op.
func (pd *PipeDesc) cancel(op *aio.Op) {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	if !pd.readq.remove(op) {
		pd.writeq.remove(op)
	}
}

// onEvents is the readiness callback run by the dispatcher.
func (pd *PipeDesc) onEvents(ev api.Events) {
	pd.mu.Lock()
	defer pd.mu.Unlock()

	if pd.fd < 0 {
		return
	}
	pd.node.REvents = ev
	pd.log.Debug().Stringer("revents", ev).Msg("readiness")

	if ev&api.EventRead != 0 {
		pd.doRead()
	}
	if ev&api.EventWrite != 0 {
		pd.doWrite()
	}
	if ev&api.EventTeardown != 0 {
		pd.doClose()
	}

	pd.node.REvents = 0
	pd.node.Events = 0
	if pd.writeq.len() > 0 {
		pd.node.Events |= api.EventWrite
	}
	if pd.readq.len() > 0 {
		pd.node.Events |= api.EventRead
	}
	if pd.node.Events == 0 || pd.closing {
		return
	}
	if err := pd.disp.Submit(&pd.node); err != nil {
		pd.log.Warn().Err(err).Stringer("events", pd.node.Events).Msg("re-arming registration failed")
		pd.failAll(err)
		pd.node.Events = 0
	}
}

// Close deregisters the descriptor, waiting for an in-flight callback,
// then shuts the connection down, finalizes every queued operation with
// api.ErrClosed and releases the descriptor. Close is idempotent.
func (pd *PipeDesc) Close() {
	pd.closeOnce.Do(func() {
		pd.mu.Lock()
		pd.closing = true
		valid := pd.fd >= 0
		pd.mu.Unlock()

		if valid {
			pd.disp.Cancel(&pd.node)
		}

		pd.mu.Lock()
		defer pd.mu.Unlock()
		pd.doClose()
		pd.node.Events = 0
		if pd.fd >= 0 {
			if err := closeFD(pd.fd); err != nil {
				pd.log.Debug().Err(err).Msg("close")
			}
			pd.fd = -1
		}
	})
}

// Destroy closes the descriptor and drops its dispatcher reference.
func (pd *PipeDesc) Destroy() {
	pd.Close()
	pd.mu.Lock()
	pd.disp = nil
	pd.mu.Unlock()
}

// doClose must be called with pd.mu held.
func (pd *PipeDesc) doClose() {
	if pd.fd >= 0 {
		// Best effort: let the peer know we are going away.
		_ = shutdown(pd.fd)
	}
	pd.failAll(api.ErrClosed)
}

// failAll must be called with pd.mu held.
func (pd *PipeDesc) failAll(err error) {
	for pd.readq.len() > 0 {
		pd.finalize(pd.readq, pd.readq.pop(), err)
	}
	for pd.writeq.len() > 0 {
		pd.finalize(pd.writeq, pd.writeq.pop(), err)
	}
}
