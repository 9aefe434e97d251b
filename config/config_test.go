package config

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rfielding/kripke-atlk/atlk"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{
		"ATLK_VARIANT", "ATLK_OBSERVABILITY", "ATLK_SEMANTICS", "ATLK_WORKERS",
		"ATLK_PARTIAL_FILTERING", "ATLK_PARTIAL_THRESHOLD", "ATLK_BDD_NODES", "ATLK_METRICS_ADDR",
	} {
		t.Setenv(k, "")
	}
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sf", cfg.Variant)
	assert.True(t, cfg.Filtering)
	assert.Equal(t, 0.5, cfg.Threshold)
	assert.Positive(t, cfg.Workers)
	assert.Empty(t, cfg.MetricsAddr)
	assert.Empty(t, cfg.BDDOptions())

	opts, err := cfg.Options(slog.Default())
	require.NoError(t, err)
	assert.Equal(t, atlk.SF, opts.Variant)
	assert.Equal(t, atlk.ObsPartial, opts.Observability)
	assert.Equal(t, atlk.Group, opts.Semantics)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ATLK_VARIANT", "partial")
	t.Setenv("ATLK_OBSERVABILITY", "full")
	t.Setenv("ATLK_SEMANTICS", "individual")
	t.Setenv("ATLK_WORKERS", "3")
	t.Setenv("ATLK_PARTIAL_FILTERING", "false")
	t.Setenv("ATLK_PARTIAL_SEPARATION", "reach")
	t.Setenv("ATLK_PARTIAL_EARLY", "threshold")
	t.Setenv("ATLK_PARTIAL_THRESHOLD", "0.25")
	t.Setenv("ATLK_PARTIAL_CACHING", "true")
	t.Setenv("ATLK_BDD_NODES", "100000")
	t.Setenv("ATLK_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Len(t, cfg.BDDOptions(), 1)

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	opts, err := cfg.Options(nil)
	require.NoError(t, err)
	assert.Equal(t, atlk.Partial, opts.Variant)
	assert.Equal(t, atlk.ObsFull, opts.Observability)
	assert.Equal(t, atlk.Individual, opts.Semantics)
	assert.Equal(t, 3, opts.Workers)
	assert.False(t, opts.Partial.Filtering)
	assert.Equal(t, atlk.SeparateReach, opts.Partial.Separation)
	assert.Equal(t, atlk.EarlyThreshold, opts.Partial.Early)
	assert.Equal(t, 0.25, opts.Partial.Threshold)
	assert.True(t, opts.Partial.Caching)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"ATLK_WORKERS", "many"},
		{"ATLK_PARTIAL_FILTERING", "maybe"},
		{"ATLK_PARTIAL_THRESHOLD", "half"},
		{"ATLK_BDD_CACHE", "big"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.ErrorContains(t, err, tt.key)
		})
	}
}

func TestOptionsRejectsUnknownNames(t *testing.T) {
	t.Setenv("ATLK_VARIANT", "magic")
	cfg, err := Load()
	require.NoError(t, err)
	_, err = cfg.Options(nil)
	assert.ErrorIs(t, err, atlk.ErrOption)

	cfg.LogLevel = "loud"
	_, err = cfg.Level()
	assert.Error(t, err)
}
