// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package transport

import (
	"context"
	"net"
)

// Listener accepts stream connections and hands them out as Conns.
type Listener struct {
	ln   net.Listener
	opts []Option
}

// Listen announces on the local address.
func Listen(ctx context.Context, network, address string, opts ...Option) (*Listener, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, network, address)
	if err != nil {
		return nil, err
	}
	return NewListener(ln, opts...), nil
}

// NewListener wraps an existing listener.
func NewListener(ln net.Listener, opts ...Option) *Listener {
	return &Listener{ln: ln, opts: opts}
}

// Accept waits for the next connection.
func (l *Listener) Accept() (*Conn, error) {
	nc, err := l.ln.Accept()
	if err != nil {
		return nil, err
	}
	return FromNetConn(nc, l.opts...)
}

// Addr returns the listening address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Close stops accepting. Accepted connections stay open.
func (l *Listener) Close() error { return l.ln.Close() }
