// Package control
// Author: momentics <momentics@gmail.com>
//
// Configuration, metrics, logging and health plumbing shared by the
// dispatcher and pipe descriptors.
//
// Provides:
//   - a typed Config with defaults, validation and environment overlay
//   - a ConfigStore that publishes updates to reload listeners
//   - Prometheus counters for operation and dispatcher activity
//   - zerolog construction from configuration
//   - debug probes and a liveness check for the dispatcher
package control
