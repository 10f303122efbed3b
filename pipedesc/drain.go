// File: pipedesc/drain.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Vectored read/write drain loops run from the readiness callback.

package pipedesc

import (
	"errors"

	"code.hybscloud.com/iox"

	"github.com/momentics/hioload-aio/api"
)

// MaxIov is the number of segments handed to a single readv/writev.
// Operations with more segments are transferred over several readiness
// rounds.
const MaxIov = 4

// transfer performs one vectored system call. Transient conditions are
// reported as iox.ErrWouldBlock.
type transfer func(fd int, iov [][]byte) (int, error)

// doRead must be called with pd.mu held.
func (pd *PipeDesc) doRead() {
	pd.drain(pd.readq, readv, true)
}

// doWrite must be called with pd.mu held.
func (pd *PipeDesc) doWrite() {
	pd.drain(pd.writeq, writev, false)
}

// drain services q from the head until it is empty, the descriptor would
// block, or an operation fails.
func (pd *PipeDesc) drain(q *opQueue, xfer transfer, zeroIsEOF bool) {
	for q.len() > 0 {
		op := q.head()

		// Leading empty segments carry no work; an op made only of them
		// completes without a system call.
		iov := consume(op.Iov(), 0)
		if len(iov) == 0 {
			op.SetRemaining(iov)
			pd.finalize(q, q.pop(), nil)
			continue
		}

		n, err := xfer(pd.fd, stage(iov))
		if err != nil {
			if errors.Is(err, iox.ErrWouldBlock) {
				op.SetRemaining(iov)
				return
			}
			pd.log.Debug().Err(err).Str("dir", q.dir).Msg("transfer failed")
			pd.finalize(q, q.pop(), err)
			return
		}
		if n == 0 && zeroIsEOF {
			pd.finalize(q, q.pop(), api.ErrClosed)
			return
		}

		op.AddCount(n)
		pd.metrics.Transferred(q.dir, n)
		iov = consume(iov, n)
		op.SetRemaining(iov)
		if len(iov) > 0 {
			// More I/O needed; wait for the next readiness signal.
			return
		}
		pd.finalize(q, q.pop(), nil)
	}
}

// stage returns the bounded prefix of iov used for one system call.
func stage(iov [][]byte) [][]byte {
	if len(iov) > MaxIov {
		return iov[:MaxIov]
	}
	return iov
}

// consume removes the first n bytes from iov in place: whole segments are
// dropped and the remaining ones shifted forward, a partially consumed
// segment is advanced. It returns the remaining segments.
func consume(iov [][]byte, n int) [][]byte {
	for len(iov) > 0 && len(iov[0]) <= n {
		n -= len(iov[0])
		copy(iov, iov[1:])
		iov[len(iov)-1] = nil
		iov = iov[:len(iov)-1]
	}
	if n > 0 && len(iov) > 0 {
		iov[0] = iov[0][n:]
	}
	return iov
}
