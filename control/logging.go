// control/logging.go
// Author: momentics <momentics@gmail.com>
//
// zerolog construction from configuration.

package control

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/momentics/hioload-aio/api"
)

// ParseLevel maps a level name to a zerolog level. The empty string is
// treated as "info".
func ParseLevel(name string) (zerolog.Level, error) {
	if name == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(name)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("%w: log level %q", api.ErrInvalidArgument, name)
	}
	return lvl, nil
}

// NewLogger returns a JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, cfg Config) zerolog.Logger {
	lvl, err := ParseLevel(cfg.LogLevel)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Str("component", "hioload-aio").Logger()
}
