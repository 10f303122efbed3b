// Author: momentics <momentics@gmail.com>

package control_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-aio/api"
	"github.com/momentics/hioload-aio/control"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := control.DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Positive(t, cfg.Workers)
	assert.Equal(t, 256, cfg.MaxEvents)
	assert.Equal(t, -1, cfg.PollCPU)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*control.Config)
	}{
		{"zero workers", func(c *control.Config) { c.Workers = 0 }},
		{"negative max events", func(c *control.Config) { c.MaxEvents = -1 }},
		{"unknown level", func(c *control.Config) { c.LogLevel = "loud" }},
		{"bad poll cpu", func(c *control.Config) { c.PollCPU = -2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := control.DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), api.ErrInvalidArgument)
		})
	}
}

func TestLoadEnv(t *testing.T) {
	t.Setenv(control.EnvWorkers, "3")
	t.Setenv(control.EnvMaxEvents, "64")
	t.Setenv(control.EnvLogLevel, "debug")
	t.Setenv(control.EnvPollCPU, "0")

	cfg, err := control.LoadEnv(control.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 64, cfg.MaxEvents)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "hioload_aio", cfg.Namespace)
	assert.Equal(t, 0, cfg.PollCPU)
}

func TestLoadEnv_Rejects(t *testing.T) {
	t.Setenv(control.EnvWorkers, "many")
	_, err := control.LoadEnv(control.DefaultConfig())
	assert.ErrorContains(t, err, control.EnvWorkers)

	t.Setenv(control.EnvWorkers, "-2")
	_, err = control.LoadEnv(control.DefaultConfig())
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
}

func TestConfigStore(t *testing.T) {
	cs := control.NewConfigStore(control.DefaultConfig())
	var seen []int
	cs.OnReload(func(c control.Config) { seen = append(seen, c.Workers) })

	cfg := cs.Get()
	cfg.Workers = 9
	require.NoError(t, cs.Set(cfg))
	assert.Equal(t, 9, cs.Get().Workers)

	cfg.Workers = 0
	assert.Error(t, cs.Set(cfg))
	assert.Equal(t, 9, cs.Get().Workers, "rejected config is not installed")
	assert.Equal(t, []int{9}, seen)
}

func TestConfigStore_ListenerAddedDuringReload(t *testing.T) {
	cs := control.NewConfigStore(control.DefaultConfig())
	var late int
	cs.OnReload(func(control.Config) {
		cs.OnReload(func(control.Config) { late++ })
	})

	cfg := cs.Get()
	require.NoError(t, cs.Set(cfg))
	assert.Zero(t, late, "listeners registered during Set run from the next Set")
	require.NoError(t, cs.Set(cfg))
	assert.Equal(t, 1, late)
}
