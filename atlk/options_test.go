package atlk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVariant(t *testing.T) {
	tests := []struct {
		in   string
		want Variant
	}{
		{"sf", SF},
		{"FS", FS},
		{" fsf ", FSF},
		{"partial", Partial},
		{"symbolic", Symbolic},
		{"symbolic-filtered", SymbolicFiltered},
	}
	for _, tt := range tests {
		got, err := ParseVariant(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, variantNames[got], got.String())
	}

	_, err := ParseVariant("sfs")
	assert.ErrorIs(t, err, ErrOption)
	assert.ErrorContains(t, err, "symbolic-filtered")
}

func TestParseEnums(t *testing.T) {
	obs, err := ParseObservability("full")
	require.NoError(t, err)
	assert.Equal(t, ObsFull, obs)

	sem, err := ParseSemantics("individual")
	require.NoError(t, err)
	assert.Equal(t, Individual, sem)

	sep, err := ParseSeparation("reach")
	require.NoError(t, err)
	assert.Equal(t, SeparateReach, sep)

	early, err := ParseEarly("threshold")
	require.NoError(t, err)
	assert.Equal(t, EarlyThreshold, early)

	for _, fn := range []func(string) error{
		func(s string) error { _, err := ParseObservability(s); return err },
		func(s string) error { _, err := ParseSemantics(s); return err },
		func(s string) error { _, err := ParseSeparation(s); return err },
		func(s string) error { _, err := ParseEarly(s); return err },
	} {
		assert.ErrorIs(t, fn("bogus"), ErrOption)
	}

	assert.Equal(t, "unknown", Variant(42).String())
}

func TestNormalize(t *testing.T) {
	o := Options{Partial: PartialOptions{Threshold: 3}}.normalize()
	assert.Equal(t, 1, o.Workers)
	assert.Equal(t, 0.99, o.Partial.Threshold)
	assert.Equal(t, 1024, o.Partial.CacheSize)
	assert.NotNil(t, o.Logger)

	o = Options{Partial: PartialOptions{Threshold: -1}}.normalize()
	assert.Equal(t, 0.0, o.Partial.Threshold)

	d := DefaultOptions()
	assert.Equal(t, SF, d.Variant)
	assert.Equal(t, ObsPartial, d.Observability)
	assert.Equal(t, Group, d.Semantics)
	assert.True(t, d.Partial.Filtering)
	assert.Positive(t, d.Workers)
}
