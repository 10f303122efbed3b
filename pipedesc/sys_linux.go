//go:build linux

// File: pipedesc/sys_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pipedesc

import (
	"os"

	"code.hybscloud.com/iox"
	"golang.org/x/sys/unix"
)

// System call hooks; tests replace them to inject failures.
var (
	readv = func(fd int, iov [][]byte) (int, error) {
		n, err := unix.Readv(fd, iov)
		if err != nil {
			return 0, ioError("readv", err)
		}
		return n, nil
	}
	writev = func(fd int, iov [][]byte) (int, error) {
		n, err := unix.Writev(fd, iov)
		if err != nil {
			return 0, ioError("writev", err)
		}
		return n, nil
	}
	shutdown = func(fd int) error {
		return unix.Shutdown(fd, unix.SHUT_RDWR)
	}
	closeFD = unix.Close
)

func setNonblock(fd int) error {
	if err := unix.SetNonblock(fd, true); err != nil {
		return os.NewSyscallError("fcntl", err)
	}
	return nil
}

// ioError maps EAGAIN and EINTR to iox.ErrWouldBlock and wraps everything
// else as a system call error.
func ioError(op string, err error) error {
	switch err {
	case unix.EAGAIN, unix.EINTR:
		return iox.ErrWouldBlock
	}
	return os.NewSyscallError(op, err)
}
