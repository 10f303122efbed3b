// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package transport adapts connected sockets to pipe descriptors and
// offers blocking, deadline- and context-aware calls on top of the
// asynchronous operations.
//
// ReadFull and Write complete only when the whole buffer has been
// transferred, the deadline or context expires, or the connection fails.
// Message framing is left to the caller.
package transport
