// File: aio/op.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Op is the cancellable unit of asynchronous I/O work: a list of buffer
// segments, a running byte count and a completion result.

package aio

import (
	"sync"
	"time"

	"github.com/momentics/hioload-aio/api"
)

// CancelFunc is installed by a provider while an Op is queued with it.
// It must remove the Op from the provider's bookkeeping and must not
// finalize it; finalization is done by the canceler.
type CancelFunc func(op *Op)

type opState uint8

const (
	stateIdle opState = iota
	statePending
	stateCanceling
	stateDone
)

// Op is a single asynchronous read or write.
//
// Lock order: a provider may call Start, Finish, AddCount and SetRemaining
// while holding its own lock. Op never calls into the provider while
// holding its own mutex.
type Op struct {
	mu       sync.Mutex
	iov      [][]byte
	count    int
	err      error
	state    opState
	stopped  bool
	gen      uint64
	cancelFn CancelFunc
	timeout  time.Duration
	timer    *time.Timer
	done     chan struct{}
	cb       func(*Op)
}

// New returns an idle Op. If cb is non-nil it is run on its own goroutine
// after every completion, so it may resubmit the Op.
func New(cb func(*Op)) *Op {
	done := make(chan struct{})
	close(done)
	return &Op{cb: cb, done: done}
}

// SetIov replaces the buffer segments of an idle Op and resets its count.
// The segment list is copied; the buffers themselves are not.
func (op *Op) SetIov(bufs ...[]byte) {
	op.mu.Lock()
	op.iov = append(op.iov[:0], bufs...)
	op.count = 0
	op.mu.Unlock()
}

// SetTimeout bounds the time the Op may stay pending after Start. Zero
// disables the timeout. Expiry cancels the Op with api.ErrTimeout.
func (op *Op) SetTimeout(d time.Duration) {
	op.mu.Lock()
	op.timeout = d
	op.mu.Unlock()
}

// Start moves the Op into the pending state and installs fn as its cancel
// handler. It returns false if the Op has been stopped; in that case the
// Op is already done with api.ErrCanceled, its completion callback is not
// run, and the provider must not queue it.
func (op *Op) Start(fn CancelFunc) bool {
	op.mu.Lock()
	switch op.state {
	case statePending, stateCanceling:
		op.mu.Unlock()
		panic("aio: operation started while in flight")
	}
	op.gen++
	op.state = statePending
	op.err = nil
	op.count = 0
	op.done = make(chan struct{})
	if op.stopped {
		// Stopped ops complete without running cb.
		op.state = stateDone
		op.err = api.ErrCanceled
		done := op.done
		op.mu.Unlock()
		close(done)
		return false
	}
	op.cancelFn = fn
	if op.timeout > 0 {
		gen := op.gen
		op.timer = time.AfterFunc(op.timeout, func() { op.abort(gen, api.ErrTimeout) })
	}
	op.mu.Unlock()
	return true
}

// Finish finalizes a pending Op with err and n transferred bytes and
// reports whether it did so. It is a no-op if the Op is no longer pending,
// for example because a concurrent Cancel won the race and will finalize it
// itself.
func (op *Op) Finish(err error, n int) bool {
	op.mu.Lock()
	if op.state != statePending {
		op.mu.Unlock()
		return false
	}
	op.finishLocked(err, n)
	return true
}

// Cancel aborts a pending Op with err. The provider's cancel handler runs
// first, then the Op is finalized with the bytes transferred so far.
func (op *Op) Cancel(err error) {
	op.mu.Lock()
	op.abortLocked(op.gen, err)
}

// Stop cancels the Op, prevents further Starts and waits for completion.
func (op *Op) Stop() {
	op.mu.Lock()
	op.stopped = true
	op.abortLocked(op.gen, api.ErrCanceled)
	op.Wait()
}

func (op *Op) abort(gen uint64, err error) {
	op.mu.Lock()
	op.abortLocked(gen, err)
}

// abortLocked is entered with op.mu held and releases it.
func (op *Op) abortLocked(gen uint64, err error) {
	if op.state != statePending || op.gen != gen {
		op.mu.Unlock()
		return
	}
	op.state = stateCanceling
	fn := op.cancelFn
	op.cancelFn = nil
	op.mu.Unlock()

	if fn != nil {
		fn(op)
	}

	op.mu.Lock()
	op.finishLocked(err, op.count)
}

// finishLocked is entered with op.mu held and releases it.
func (op *Op) finishLocked(err error, n int) {
	op.state = stateDone
	op.err = err
	op.count = n
	op.cancelFn = nil
	if op.timer != nil {
		op.timer.Stop()
		op.timer = nil
	}
	done, cb := op.done, op.cb
	op.mu.Unlock()

	close(done)
	if cb != nil {
		go cb(op)
	}
}

// Iov returns the segments that remain to be transferred. Only the provider
// holding the Op may use it between Start and finalization.
func (op *Op) Iov() [][]byte {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.iov
}

// SetRemaining records the segments left after partial progress.
func (op *Op) SetRemaining(iov [][]byte) {
	op.mu.Lock()
	op.iov = iov
	op.mu.Unlock()
}

// AddCount adds n to the progress counter.
func (op *Op) AddCount(n int) {
	op.mu.Lock()
	op.count += n
	op.mu.Unlock()
}

// Count returns the number of bytes transferred.
func (op *Op) Count() int {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.count
}

// Result returns the completion error of the last submission.
func (op *Op) Result() error {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.err
}

// Done is closed when the current submission completes.
func (op *Op) Done() <-chan struct{} {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.done
}

// Wait blocks until the current submission completes and returns its result.
func (op *Op) Wait() error {
	<-op.Done()
	return op.Result()
}

// Busy reports whether the Op is queued with a provider.
func (op *Op) Busy() bool {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.state == statePending || op.state == stateCanceling
}
