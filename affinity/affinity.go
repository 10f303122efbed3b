// File: affinity/affinity.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral API for CPU affinity. Platform-specific implementations
// are located in separate files guarded by build tags.

package affinity

import (
	"fmt"
	"runtime"

	"github.com/momentics/hioload-aio/api"
)

// Pin locks the calling goroutine to its OS thread and binds that thread to
// the given logical CPU. On failure the goroutine is unlocked again.
func Pin(cpuID int) error {
	if cpuID < 0 {
		return fmt.Errorf("%w: cpu %d", api.ErrInvalidArgument, cpuID)
	}
	runtime.LockOSThread()
	if err := setAffinityPlatform(cpuID); err != nil {
		runtime.UnlockOSThread()
		return err
	}
	return nil
}
