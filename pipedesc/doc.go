// File: pipedesc/doc.go
// Package pipedesc
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Per-connection pipe descriptor: owns a connected, non-blocking file
// descriptor and multiplexes queued vectored reads and writes over it,
// driven by readiness callbacks from an api.Dispatcher.
//
// Operations are serviced in FIFO order per direction. Partial progress is
// recorded in the operation itself, so an operation stays queued until all
// of its segments have been transferred, it fails, it is canceled, or the
// descriptor is closed. Every submitted operation is finalized exactly once.
package pipedesc
