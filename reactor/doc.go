// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the poll-event dispatcher that arms pipe
// descriptor registrations with epoll in one-shot mode and delivers
// readiness callbacks on a bounded worker pool.
//
// A registration fires at most once per Submit, and the dispatcher never
// runs two callbacks for the same registration at the same time. Cancel
// removes a registration and waits for an in-flight callback to return.
package reactor
