//go:build !linux

// File: pipedesc/sys_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pipedesc

import "github.com/momentics/hioload-aio/api"

var (
	readv = func(fd int, iov [][]byte) (int, error) {
		return 0, api.ErrNotSupported
	}
	writev = func(fd int, iov [][]byte) (int, error) {
		return 0, api.ErrNotSupported
	}
	shutdown = func(fd int) error {
		return api.ErrNotSupported
	}
	closeFD = func(fd int) error {
		return api.ErrNotSupported
	}
)

func setNonblock(fd int) error {
	return api.ErrNotSupported
}
