//go:build linux

// Author: momentics <momentics@gmail.com>

package reactor

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-aio/api"
	"github.com/momentics/hioload-aio/control"
)

const (
	waitFor = 2 * time.Second
	quiet   = 100 * time.Millisecond
)

func newTestDispatcher(t *testing.T, opts ...Option) *Dispatcher {
	t.Helper()
	cfg := control.DefaultConfig()
	cfg.Workers = 4
	d, err := New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func socketpair(t *testing.T) (int, int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func chanNode(fd int, ev api.Events) (*api.Node, chan api.Events) {
	ch := make(chan api.Events, 16)
	return &api.Node{FD: fd, Events: ev, Callback: func(got api.Events) { ch <- got }}, ch
}

func expectEvent(t *testing.T, ch <-chan api.Events) api.Events {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(waitFor):
		t.Fatal("no readiness delivered")
		return 0
	}
}

func expectQuiet(t *testing.T, ch <-chan api.Events) {
	t.Helper()
	select {
	case ev := <-ch:
		t.Fatalf("unexpected delivery %v", ev)
	case <-time.After(quiet):
	}
}

func TestNew_ValidatesConfig(t *testing.T) {
	cfg := control.DefaultConfig()
	cfg.Workers = 0
	_, err := New(cfg)
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
}

func TestSubmit_DeliversRead(t *testing.T) {
	d := newTestDispatcher(t)
	a, b := socketpair(t)
	n, ch := chanNode(a, api.EventRead)
	require.NoError(t, d.Submit(n))

	_, err := unix.Write(b, []byte("x"))
	require.NoError(t, err)
	assert.NotZero(t, expectEvent(t, ch)&api.EventRead)
}

func TestSubmit_DeliversWrite(t *testing.T) {
	d := newTestDispatcher(t)
	a, _ := socketpair(t)
	n, ch := chanNode(a, api.EventWrite)
	require.NoError(t, d.Submit(n))
	assert.NotZero(t, expectEvent(t, ch)&api.EventWrite)
}

func TestSubmit_IsOneShot(t *testing.T) {
	d := newTestDispatcher(t)
	a, b := socketpair(t)
	n, ch := chanNode(a, api.EventRead)
	require.NoError(t, d.Submit(n))

	_, err := unix.Write(b, []byte("x"))
	require.NoError(t, err)
	expectEvent(t, ch)

	// Still readable, but not re-armed.
	expectQuiet(t, ch)

	require.NoError(t, d.Submit(n))
	expectEvent(t, ch)
}

func TestSubmit_FromCallbackIsSerialized(t *testing.T) {
	d := newTestDispatcher(t)
	a, b := socketpair(t)
	_, err := unix.Write(b, []byte("x"))
	require.NoError(t, err)

	var inflight, maxInflight, calls atomic.Int32
	done := make(chan struct{})
	n := &api.Node{FD: a, Events: api.EventRead}
	n.Callback = func(api.Events) {
		cur := inflight.Add(1)
		if cur > maxInflight.Load() {
			maxInflight.Store(cur)
		}
		// Re-arm while still inside the callback; delivery must wait.
		if calls.Add(1) < 5 {
			assert.NoError(t, d.Submit(n))
			time.Sleep(5 * time.Millisecond)
		} else {
			close(done)
		}
		inflight.Add(-1)
	}
	require.NoError(t, d.Submit(n))

	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("callbacks stalled")
	}
	assert.EqualValues(t, 1, maxInflight.Load())
}

func TestSubmit_RejectsSecondNodeForFD(t *testing.T) {
	d := newTestDispatcher(t)
	a, _ := socketpair(t)
	n1, _ := chanNode(a, api.EventRead)
	n2, _ := chanNode(a, api.EventRead)
	require.NoError(t, d.Submit(n1))
	assert.ErrorIs(t, d.Submit(n2), api.ErrInvalidArgument)
}

func TestSubmit_BadDescriptor(t *testing.T) {
	m, err := control.NewMetrics(prometheus.NewRegistry(), "t")
	require.NoError(t, err)
	d := newTestDispatcher(t, WithMetrics(m))
	n, _ := chanNode(1<<20, api.EventRead)
	err = d.Submit(n)
	assert.ErrorIs(t, err, unix.EBADF)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ArmErrors))
	assert.Zero(t, d.entries.Count(), "failed registration is not kept")
}

func TestCancel_StopsDelivery(t *testing.T) {
	d := newTestDispatcher(t)
	a, b := socketpair(t)
	n, ch := chanNode(a, api.EventRead)
	require.NoError(t, d.Submit(n))
	d.Cancel(n)

	_, err := unix.Write(b, []byte("x"))
	require.NoError(t, err)
	expectQuiet(t, ch)
	assert.Zero(t, d.entries.Count())
}

func TestCancel_WaitsForInflightCallback(t *testing.T) {
	d := newTestDispatcher(t)
	a, b := socketpair(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	n := &api.Node{FD: a, Events: api.EventRead, Callback: func(api.Events) {
		close(entered)
		<-release
	}}
	require.NoError(t, d.Submit(n))
	_, err := unix.Write(b, []byte("x"))
	require.NoError(t, err)
	<-entered

	canceled := make(chan struct{})
	go func() {
		d.Cancel(n)
		close(canceled)
	}()
	select {
	case <-canceled:
		t.Fatal("Cancel returned while the callback was running")
	case <-time.After(quiet):
	}
	close(release)
	select {
	case <-canceled:
	case <-time.After(waitFor):
		t.Fatal("Cancel did not return")
	}
}

func TestCancel_DropsDeferredArm(t *testing.T) {
	d := newTestDispatcher(t)
	a, b := socketpair(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	n := &api.Node{FD: a, Events: api.EventRead}
	n.Callback = func(api.Events) {
		if calls.Add(1) == 1 {
			assert.NoError(t, d.Submit(n))
			close(entered)
			<-release
		}
	}
	require.NoError(t, d.Submit(n))
	_, err := unix.Write(b, []byte("x"))
	require.NoError(t, err)
	<-entered

	go func() {
		time.Sleep(quiet / 2)
		close(release)
	}()
	d.Cancel(n)
	time.Sleep(quiet)
	assert.EqualValues(t, 1, calls.Load())
}

func TestClose_InvalidatesArmedNodes(t *testing.T) {
	d := newTestDispatcher(t)
	a, _ := socketpair(t)
	n, ch := chanNode(a, api.EventRead)
	require.NoError(t, d.Submit(n))

	require.NoError(t, d.Close())
	assert.Equal(t, api.EventInvalid, expectEvent(t, ch))
	assert.ErrorIs(t, d.Submit(n), api.ErrClosed)
	assert.ErrorIs(t, d.Alive(), api.ErrClosed)
	assert.NoError(t, d.Close())
}

func TestCallbackPanicIsRecovered(t *testing.T) {
	m, err := control.NewMetrics(prometheus.NewRegistry(), "t")
	require.NoError(t, err)
	d := newTestDispatcher(t, WithMetrics(m))
	a, _ := socketpair(t)
	c, _ := socketpair(t)

	bad := &api.Node{FD: a, Events: api.EventWrite, Callback: func(api.Events) { panic("boom") }}
	require.NoError(t, d.Submit(bad))
	require.Eventually(t, func() bool { return testutil.ToFloat64(m.Panics) == 1 }, waitFor, time.Millisecond)

	good, ch := chanNode(c, api.EventWrite)
	require.NoError(t, d.Submit(good))
	expectEvent(t, ch)
	assert.NoError(t, d.Alive())
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.Callbacks), 2.0)

	// The panicking node can be armed again.
	require.NoError(t, d.Submit(bad))
}

func TestConfigReloadTunesWorkers(t *testing.T) {
	store := control.NewConfigStore(control.DefaultConfig())
	d := newTestDispatcher(t, WithConfigStore(store))

	cfg := store.Get()
	cfg.Workers = 7
	require.NoError(t, store.Set(cfg))
	assert.Equal(t, 7, d.pool.Cap())
}

func TestProbes(t *testing.T) {
	probes := control.NewDebugProbes()
	d := newTestDispatcher(t, WithProbes(probes))
	a, _ := socketpair(t)
	n, _ := chanNode(a, api.EventRead)
	require.NoError(t, d.Submit(n))

	state := probes.DumpState()
	assert.Equal(t, 1, state["dispatcher.nodes"])
	assert.Equal(t, 4, state["dispatcher.workers.cap"])
}

func TestEventConversion(t *testing.T) {
	assert.Equal(t, uint32(unix.EPOLLIN|unix.EPOLLOUT), eventsToEpoll(api.EventRead|api.EventWrite))
	assert.Zero(t, eventsToEpoll(api.EventHangup))
	assert.Equal(t, api.EventRead|api.EventHangup, epollToEvents(unix.EPOLLIN|unix.EPOLLHUP))
	assert.Equal(t, api.EventError, epollToEvents(unix.EPOLLERR))
}

func TestPinnedPollLoop(t *testing.T) {
	cfg := control.DefaultConfig()
	cfg.PollCPU = 0
	d, err := New(cfg)
	require.NoError(t, err)
	defer d.Close()

	a, _ := socketpair(t)
	n, ch := chanNode(a, api.EventWrite)
	require.NoError(t, d.Submit(n))
	expectEvent(t, ch)
}

func TestDefault_RetriesAfterFailure(t *testing.T) {
	t.Setenv(control.EnvWorkers, "none")
	_, err := Default()
	require.Error(t, err)

	t.Setenv(control.EnvWorkers, "2")
	d, err := Default()
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.NoError(t, d.Alive())

	again, err := Default()
	require.NoError(t, err)
	assert.Same(t, d, again)
}
