//go:build !linux

// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package transport

import (
	"net"

	"github.com/momentics/hioload-aio/api"
)

func dupFD(nc net.Conn) (int, error) {
	return -1, api.ErrNotSupported
}

func socketpair() (int, int, error) {
	return -1, -1, api.ErrNotSupported
}

func closeFD(fd int) {}
