//go:build linux

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor - Linux epoll implementation.

package reactor

import (
	"encoding/binary"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-aio/affinity"
	"github.com/momentics/hioload-aio/api"
	"github.com/momentics/hioload-aio/control"
)

// entry is the dispatcher-side state of a registered node.
type entry struct {
	node    *api.Node
	added   bool       // present in the epoll set
	armed   bool       // one-shot armed, no event delivered yet
	busy    bool       // callback in flight
	removed bool       // Cancel in progress or done
	pending api.Events // arm request deferred while busy
}

// Dispatcher implements api.Dispatcher on top of epoll.
type Dispatcher struct {
	cfg     control.Config
	epfd    int
	wakefd  int
	entries cmap.ConcurrentMap[int32, *entry]
	pool    *ants.Pool
	log     zerolog.Logger
	metrics *control.Metrics

	mu     sync.Mutex // guards entry state, busy and closed
	idle   *sync.Cond // broadcast whenever a callback returns
	busy   int
	closed bool
	done   chan struct{}
}

// New creates a dispatcher and starts its poll loop.
func New(cfg control.Config, opts ...Option) (*Dispatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, os.NewSyscallError("epoll_create1", err)
	}
	wakefd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, os.NewSyscallError("eventfd", err)
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakefd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &ev); err != nil {
		_ = unix.Close(wakefd)
		_ = unix.Close(epfd)
		return nil, os.NewSyscallError("epoll_ctl", err)
	}

	poolLog := o.log.With().Str("subsystem", "workers").Logger()
	pool, err := ants.NewPool(cfg.Workers, ants.WithLogger(&poolLog))
	if err != nil {
		_ = unix.Close(wakefd)
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("worker pool: %w", err)
	}

	d := &Dispatcher{
		cfg:    cfg,
		epfd:   epfd,
		wakefd: wakefd,
		entries: cmap.NewWithCustomShardingFunction[int32, *entry](func(fd int32) uint32 {
			return uint32(fd)
		}),
		pool:    pool,
		log:     o.log,
		metrics: o.metrics,
		done:    make(chan struct{}),
	}
	d.idle = sync.NewCond(&d.mu)

	if o.store != nil {
		o.store.OnReload(func(c control.Config) {
			d.pool.Tune(c.Workers)
			d.log.Info().Int("workers", c.Workers).Msg("dispatcher workers retuned")
		})
	}
	if o.probes != nil {
		o.probes.RegisterProbe("dispatcher.nodes", func() any { return d.entries.Count() })
		o.probes.RegisterProbe("dispatcher.workers.running", func() any { return d.pool.Running() })
		o.probes.RegisterProbe("dispatcher.workers.cap", func() any { return d.pool.Cap() })
	}

	go d.loop()
	d.log.Debug().Int("workers", cfg.Workers).Int("max_events", cfg.MaxEvents).Msg("dispatcher started")
	return d, nil
}

// Submit arms n for n.Events. If a callback for n is running, arming is
// deferred until it returns.
func (d *Dispatcher) Submit(n *api.Node) error {
	ev := n.Events
	fd := int32(n.FD)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return api.ErrClosed
	}
	e, ok := d.entries.Get(fd)
	switch {
	case !ok:
		e = &entry{node: n}
		d.entries.Set(fd, e)
	case e.node != n:
		return fmt.Errorf("%w: fd %d is registered by another node", api.ErrInvalidArgument, n.FD)
	case e.removed:
		return api.ErrClosed
	}
	if e.busy {
		e.pending |= ev
		return nil
	}
	if err := d.arm(e, ev); err != nil {
		if !e.added {
			d.entries.Remove(fd)
		}
		return err
	}
	return nil
}

// arm must be called with d.mu held.
func (d *Dispatcher) arm(e *entry, ev api.Events) error {
	if ev == 0 {
		return nil
	}
	op := unix.EPOLL_CTL_MOD
	if !e.added {
		op = unix.EPOLL_CTL_ADD
	}
	ee := unix.EpollEvent{
		Events: eventsToEpoll(ev) | unix.EPOLLONESHOT,
		Fd:     int32(e.node.FD),
	}
	if err := unix.EpollCtl(d.epfd, op, e.node.FD, &ee); err != nil {
		d.metrics.ArmError()
		return os.NewSyscallError("epoll_ctl", err)
	}
	e.added = true
	e.armed = true
	return nil
}

// Cancel removes n from the poll set and waits for an in-flight callback.
func (d *Dispatcher) Cancel(n *api.Node) {
	fd := int32(n.FD)

	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.entries.Get(fd)
	if !ok || e.node != n {
		return
	}
	e.removed = true
	e.armed = false
	e.pending = 0
	if e.added && !d.closed {
		if err := unix.EpollCtl(d.epfd, unix.EPOLL_CTL_DEL, n.FD, nil); err != nil {
			d.log.Debug().Err(err).Int("fd", n.FD).Msg("epoll_ctl del")
		}
		e.added = false
	}
	for e.busy {
		d.idle.Wait()
	}
	if cur, ok := d.entries.Get(fd); ok && cur == e {
		d.entries.Remove(fd)
	}
}

// Alive reports whether the poll loop is running.
func (d *Dispatcher) Alive() error {
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return api.ErrClosed
	}
	select {
	case <-d.done:
		return fmt.Errorf("dispatcher: poll loop exited")
	default:
		return nil
	}
}

// Close stops the poll loop. Registrations that are still armed receive a
// final EventInvalid callback so their owners can fail pending work.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	d.wake()
	<-d.done

	var orphans []*entry
	d.mu.Lock()
	for d.busy > 0 {
		d.idle.Wait()
	}
	d.entries.IterCb(func(_ int32, e *entry) {
		if !e.removed && (e.armed || e.pending != 0) {
			e.armed = false
			e.pending = 0
			e.busy = true
			d.busy++
			orphans = append(orphans, e)
		}
	})
	d.mu.Unlock()

	for _, e := range orphans {
		d.invoke(e, api.EventInvalid)
	}
	d.pool.Release()

	err := unix.Close(d.epfd)
	if werr := unix.Close(d.wakefd); err == nil {
		err = werr
	}
	d.log.Debug().Int("orphans", len(orphans)).Msg("dispatcher closed")
	return err
}

func (d *Dispatcher) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (d *Dispatcher) wake() {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	if _, err := unix.Write(d.wakefd, buf[:]); err != nil && err != unix.EAGAIN {
		d.log.Warn().Err(err).Msg("dispatcher wakeup failed")
	}
}

func (d *Dispatcher) loop() {
	defer close(d.done)
	if d.cfg.PollCPU >= 0 {
		if err := affinity.Pin(d.cfg.PollCPU); err != nil {
			d.log.Warn().Err(err).Int("cpu", d.cfg.PollCPU).Msg("poll loop left unpinned")
		} else {
			defer runtime.UnlockOSThread()
		}
	}

	events := make([]unix.EpollEvent, d.cfg.MaxEvents)
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0
	bo.MaxInterval = time.Second

	for {
		n, err := unix.EpollWait(d.epfd, events, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			wait := bo.NextBackOff()
			d.log.Warn().Err(err).Dur("retry_in", wait).Msg("epoll_wait failed")
			time.Sleep(wait)
			if d.isClosed() {
				return
			}
			continue
		}
		bo.Reset()

		for i := 0; i < n; i++ {
			fd := events[i].Fd
			if int(fd) == d.wakefd {
				if d.isClosed() {
					return
				}
				var buf [8]byte
				_, _ = unix.Read(d.wakefd, buf[:])
				continue
			}
			d.deliver(fd, epollToEvents(events[i].Events))
		}
	}
}

func (d *Dispatcher) deliver(fd int32, ev api.Events) {
	e, ok := d.entries.Get(fd)
	if !ok {
		return
	}
	d.mu.Lock()
	if !e.armed || d.closed {
		d.mu.Unlock()
		return
	}
	e.armed = false
	e.busy = true
	d.busy++
	d.mu.Unlock()

	d.metrics.Callback()
	if err := d.pool.Submit(func() { d.invoke(e, ev) }); err != nil {
		d.log.Warn().Err(err).Int32("fd", fd).Msg("worker pool rejected callback, running inline")
		d.invoke(e, ev)
	}
}

func (d *Dispatcher) invoke(e *entry, ev api.Events) {
	defer d.settle(e)
	defer func() {
		if r := recover(); r != nil {
			d.metrics.Panic()
			d.log.Error().Interface("panic", r).Int("fd", e.node.FD).Msg("readiness callback panicked")
		}
	}()
	e.node.Callback(ev)
}

// settle marks the callback for e finished and applies a deferred arm.
func (d *Dispatcher) settle(e *entry) {
	d.mu.Lock()
	defer d.mu.Unlock()

	e.busy = false
	d.busy--
	pending := e.pending
	e.pending = 0
	if pending != 0 && !e.removed && !d.closed {
		if err := d.arm(e, pending); err != nil {
			d.log.Warn().Err(err).Int("fd", e.node.FD).Msg("deferred arm failed")
			// The owner would otherwise wait forever for readiness.
			e.busy = true
			d.busy++
			go d.invoke(e, api.EventError)
		}
	}
	d.idle.Broadcast()
}

func eventsToEpoll(ev api.Events) uint32 {
	var out uint32
	if ev&api.EventRead != 0 {
		out |= unix.EPOLLIN
	}
	if ev&api.EventWrite != 0 {
		out |= unix.EPOLLOUT
	}
	return out
}

func epollToEvents(ev uint32) api.Events {
	var out api.Events
	if ev&unix.EPOLLIN != 0 {
		out |= api.EventRead
	}
	if ev&unix.EPOLLOUT != 0 {
		out |= api.EventWrite
	}
	if ev&unix.EPOLLERR != 0 {
		out |= api.EventError
	}
	if ev&unix.EPOLLHUP != 0 {
		out |= api.EventHangup
	}
	return out
}
