// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/valyala/bytebufferpool"

	"github.com/momentics/hioload-aio/aio"
	"github.com/momentics/hioload-aio/api"
	"github.com/momentics/hioload-aio/pipedesc"
)

const readFromChunk = 32 << 10

// Conn is a connected stream socket driven by a pipe descriptor.
// One read and one write may be in flight at a time; concurrent readers
// (or writers) are serialized.
type Conn struct {
	pd    *pipedesc.PipeDesc
	laddr net.Addr
	raddr net.Addr

	rmu sync.Mutex
	rop *aio.Op
	wmu sync.Mutex
	wop *aio.Op

	dmu       sync.Mutex
	rdeadline time.Time
	wdeadline time.Time

	closed atomic.Bool
}

func newConn(fd int, laddr, raddr net.Addr, o options) (*Conn, error) {
	pd, err := pipedesc.New(fd, o.disp, o.pipeOptions()...)
	if err != nil {
		closeFD(fd)
		return nil, err
	}
	return &Conn{
		pd:    pd,
		laddr: laddr,
		raddr: raddr,
		rop:   aio.New(nil),
		wop:   aio.New(nil),
	}, nil
}

// Descriptor exposes the underlying pipe descriptor.
func (c *Conn) Descriptor() *pipedesc.PipeDesc { return c.pd }

// LocalAddr returns the local network address.
func (c *Conn) LocalAddr() net.Addr { return c.laddr }

// RemoteAddr returns the remote network address.
func (c *Conn) RemoteAddr() net.Addr { return c.raddr }

// ReadFull reads exactly len(p) bytes. It returns io.EOF if the peer
// closed before any byte arrived and io.ErrUnexpectedEOF if it closed
// mid-buffer.
func (c *Conn) ReadFull(p []byte) (int, error) {
	return c.ReadFullContext(context.Background(), p)
}

// ReadFullContext is ReadFull bounded by ctx. On expiry the pending
// operation is canceled and ctx.Err() is returned with the partial count.
func (c *Conn) ReadFullContext(ctx context.Context, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	c.rmu.Lock()
	defer c.rmu.Unlock()

	n, err := c.run(ctx, c.rop, c.pd.Recv, c.readDeadline(), p)
	if errors.Is(err, api.ErrClosed) && !c.closed.Load() {
		if n == 0 {
			return 0, io.EOF
		}
		return n, io.ErrUnexpectedEOF
	}
	return n, err
}

// Write writes all of p or fails.
func (c *Conn) Write(p []byte) (int, error) {
	return c.WritevContext(context.Background(), p)
}

// Writev writes the concatenation of bufs with gathered writes.
func (c *Conn) Writev(bufs ...[]byte) (int, error) {
	return c.WritevContext(context.Background(), bufs...)
}

// WritevContext is Writev bounded by ctx.
func (c *Conn) WritevContext(ctx context.Context, bufs ...[]byte) (int, error) {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.run(ctx, c.wop, c.pd.Send, c.writeDeadline(), bufs...)
}

// ReadFrom copies r to the connection until EOF through a pooled buffer.
func (c *Conn) ReadFrom(r io.Reader) (int64, error) {
	bb := bytebufferpool.Get()
	defer bytebufferpool.Put(bb)
	if cap(bb.B) < readFromChunk {
		bb.B = make([]byte, readFromChunk)
	}
	buf := bb.B[:readFromChunk]

	var total int64
	for {
		nr, rerr := r.Read(buf)
		if nr > 0 {
			nw, werr := c.Write(buf[:nr])
			total += int64(nw)
			if werr != nil {
				return total, werr
			}
		}
		if rerr == io.EOF {
			return total, nil
		}
		if rerr != nil {
			return total, rerr
		}
	}
}

func (c *Conn) run(ctx context.Context, op *aio.Op, submit func(*aio.Op), deadline time.Time, bufs ...[]byte) (int, error) {
	if c.closed.Load() {
		return 0, net.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var timeout time.Duration
	if !deadline.IsZero() {
		if timeout = time.Until(deadline); timeout <= 0 {
			return 0, api.ErrTimeout
		}
	}
	op.SetIov(bufs...)
	op.SetTimeout(timeout)
	submit(op)

	select {
	case <-op.Done():
	case <-ctx.Done():
		op.Cancel(ctx.Err())
		<-op.Done()
	}
	n, err := op.Count(), op.Result()
	if errors.Is(err, api.ErrClosed) && c.closed.Load() {
		err = net.ErrClosed
	}
	return n, err
}

// SetDeadline sets both deadlines. A deadline applies to calls started
// after it is set; expiry fails them with api.ErrTimeout. The zero value
// disables it.
func (c *Conn) SetDeadline(t time.Time) error {
	c.dmu.Lock()
	c.rdeadline, c.wdeadline = t, t
	c.dmu.Unlock()
	return nil
}

// SetReadDeadline sets the deadline for future reads.
func (c *Conn) SetReadDeadline(t time.Time) error {
	c.dmu.Lock()
	c.rdeadline = t
	c.dmu.Unlock()
	return nil
}

// SetWriteDeadline sets the deadline for future writes.
func (c *Conn) SetWriteDeadline(t time.Time) error {
	c.dmu.Lock()
	c.wdeadline = t
	c.dmu.Unlock()
	return nil
}

func (c *Conn) readDeadline() time.Time {
	c.dmu.Lock()
	defer c.dmu.Unlock()
	return c.rdeadline
}

func (c *Conn) writeDeadline() time.Time {
	c.dmu.Lock()
	defer c.dmu.Unlock()
	return c.wdeadline
}

// Close tears the connection down. Calls blocked in ReadFull or Write
// return net.ErrClosed.
func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.pd.Destroy()
	return nil
}
