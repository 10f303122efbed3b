// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Typed dispatcher configuration and a thread-safe store with reload
// propagation.

package control

import (
	"fmt"
	"os"
	"runtime"
	"slices"
	"strconv"
	"sync"

	"github.com/momentics/hioload-aio/api"
)

// Config holds dispatcher tuning. Workers may change at runtime through a
// ConfigStore; the other fields are read once at construction.
type Config struct {
	Workers   int    // Callback worker goroutines
	MaxEvents int    // Events fetched per epoll_wait
	LogLevel  string // zerolog level name
	Namespace string // Prometheus metric namespace
	PollCPU   int    // CPU the poll loop thread is pinned to; -1 leaves it floating
}

// DefaultConfig returns defaults suitable for most deployments.
func DefaultConfig() Config {
	return Config{
		Workers:   runtime.GOMAXPROCS(0),
		MaxEvents: 256,
		LogLevel:  "info",
		Namespace: "hioload_aio",
		PollCPU:   -1,
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.Workers <= 0:
		return fmt.Errorf("%w: workers must be positive, got %d", api.ErrInvalidArgument, c.Workers)
	case c.MaxEvents <= 0:
		return fmt.Errorf("%w: max events must be positive, got %d", api.ErrInvalidArgument, c.MaxEvents)
	case c.PollCPU < -1:
		return fmt.Errorf("%w: poll cpu must be -1 or a cpu index, got %d", api.ErrInvalidArgument, c.PollCPU)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Environment variables read by LoadEnv.
const (
	EnvWorkers   = "HIOLOAD_AIO_WORKERS"
	EnvMaxEvents = "HIOLOAD_AIO_MAX_EVENTS"
	EnvLogLevel  = "HIOLOAD_AIO_LOG_LEVEL"
	EnvPollCPU   = "HIOLOAD_AIO_POLL_CPU"
)

// LoadEnv overlays values found in the environment onto c.
func LoadEnv(c Config) (Config, error) {
	if v, ok := os.LookupEnv(EnvWorkers); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return c, fmt.Errorf("%s: %w", EnvWorkers, err)
		}
		c.Workers = n
	}
	if v, ok := os.LookupEnv(EnvMaxEvents); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return c, fmt.Errorf("%s: %w", EnvMaxEvents, err)
		}
		c.MaxEvents = n
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok {
		c.LogLevel = v
	}
	if v, ok := os.LookupEnv(EnvPollCPU); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return c, fmt.Errorf("%s: %w", EnvPollCPU, err)
		}
		c.PollCPU = n
	}
	return c, c.Validate()
}

// ConfigStore holds the live Config and notifies listeners on change.
type ConfigStore struct {
	mu        sync.RWMutex
	config    Config
	listeners []func(Config)
}

// NewConfigStore initializes a store with cfg.
func NewConfigStore(cfg Config) *ConfigStore {
	return &ConfigStore{config: cfg}
}

// Get returns the current configuration.
func (cs *ConfigStore) Get() Config {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.config
}

// Set validates and installs cfg, then calls every listener synchronously
// with the new value.
func (cs *ConfigStore) Set(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	cs.mu.Lock()
	cs.config = cfg
	listeners := slices.Clone(cs.listeners)
	cs.mu.Unlock()

	for _, fn := range listeners {
		fn(cfg)
	}
	return nil
}

// OnReload registers a listener called after every successful Set.
func (cs *ConfigStore) OnReload(fn func(Config)) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.listeners = append(cs.listeners, fn)
}
