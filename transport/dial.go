// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package transport

import (
	"context"
	"net"
)

// FromNetConn moves the socket behind nc into a Conn. nc is closed; the
// Conn owns a duplicate of its descriptor.
func FromNetConn(nc net.Conn, opts ...Option) (*Conn, error) {
	o, err := buildOptions(opts)
	if err != nil {
		_ = nc.Close()
		return nil, err
	}
	fd, err := dupFD(nc)
	laddr, raddr := nc.LocalAddr(), nc.RemoteAddr()
	_ = nc.Close()
	if err != nil {
		return nil, err
	}
	return newConn(fd, laddr, raddr, o)
}

// Dial connects to address on the named network.
func Dial(ctx context.Context, network, address string, opts ...Option) (*Conn, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, network, address)
	if err != nil {
		return nil, err
	}
	return FromNetConn(nc, opts...)
}

type pipeAddr struct{}

func (pipeAddr) Network() string { return "pipe" }
func (pipeAddr) String() string  { return "pipe" }

// Pipe returns two connected in-process endpoints backed by a Unix
// socketpair.
func Pipe(opts ...Option) (*Conn, *Conn, error) {
	o, err := buildOptions(opts)
	if err != nil {
		return nil, nil, err
	}
	a, b, err := socketpair()
	if err != nil {
		return nil, nil, err
	}
	ca, err := newConn(a, pipeAddr{}, pipeAddr{}, o)
	if err != nil {
		closeFD(b)
		return nil, nil, err
	}
	cb, err := newConn(b, pipeAddr{}, pipeAddr{}, o)
	if err != nil {
		_ = ca.Close()
		return nil, nil, err
	}
	return ca, cb, nil
}
