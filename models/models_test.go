package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNames(t *testing.T) {
	assert.Equal(t, []string{
		"cardgame",
		"freechoice",
		"transmission",
		"transmission-fair",
		"transmission-knowledge",
	}, Names())
}

func TestEveryModelLoads(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			sys, err := Load(name)
			require.NoError(t, err)
			assert.Equal(t, name, sys.Name)
			assert.False(t, sys.Init().IsFalse(), "Expected at least one initial state")
			assert.NotEmpty(t, sys.Specs(), "Expected the model to list properties")
		})
	}
}

func TestUnknownModel(t *testing.T) {
	_, err := Load("nope")
	assert.ErrorContains(t, err, "unknown model")
}
