//go:build linux

// Author: momentics <momentics@gmail.com>

package affinity_test

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-aio/affinity"
	"github.com/momentics/hioload-aio/api"
)

func TestPin(t *testing.T) {
	var current unix.CPUSet
	require.NoError(t, unix.SchedGetaffinity(0, &current))
	cpu := -1
	for i := 0; i < runtime.NumCPU(); i++ {
		if current.IsSet(i) {
			cpu = i
			break
		}
	}
	if cpu < 0 {
		t.Skip("no usable CPU in the current mask")
	}

	errc := make(chan error, 1)
	var got unix.CPUSet
	go func() {
		defer runtime.UnlockOSThread()
		if err := affinity.Pin(cpu); err != nil {
			errc <- err
			return
		}
		errc <- unix.SchedGetaffinity(0, &got)
	}()
	require.NoError(t, <-errc)
	assert.Equal(t, 1, got.Count())
	assert.True(t, got.IsSet(cpu))
}

func TestPin_RejectsNegativeCPU(t *testing.T) {
	assert.ErrorIs(t, affinity.Pin(-1), api.ErrInvalidArgument)
}
