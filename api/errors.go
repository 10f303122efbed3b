// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error values shared by the descriptor, the dispatcher and the
// generic asynchronous operation.

package api

import "errors"

// Common errors used across the library.
var (
	// ErrClosed reports a peer shutdown, an explicit close, or an operation
	// submitted to a descriptor that has already been torn down.
	ErrClosed = errors.New("aio: object closed")

	// ErrCanceled is delivered to operations aborted by their owner.
	ErrCanceled = errors.New("aio: operation canceled")

	// ErrTimeout is delivered to operations whose timeout expired before
	// they completed.
	ErrTimeout = errors.New("aio: operation timed out")

	ErrInvalidArgument = errors.New("aio: invalid argument")
	ErrNotSupported    = errors.New("aio: operation not supported on this platform")
)
