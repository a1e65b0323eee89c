package provider

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/polittech/stratagem/internal/llm"
)

func TestRegistry_Get(t *testing.T) {
	registry := DefaultRegistry()

	for _, name := range []string{"ddg", "blackbox", "liaobots", "pollinations"} {
		p, err := registry.Get(name)
		require.NoError(t, err)
		require.Equal(t, name, p.Name())
	}
}

func TestRegistry_Get_Unknown(t *testing.T) {
	registry := DefaultRegistry()

	_, err := registry.Get("openrouter")
	require.ErrorIs(t, err, llm.ErrUnknownProvider)
}

func TestRegistry_Names(t *testing.T) {
	registry := DefaultRegistry()

	require.Equal(t, []string{"blackbox", "ddg", "liaobots", "pollinations"}, registry.Names())
}
