package chainspec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnknownChainFails(t *testing.T) {
	r := NewRegistry(Mainnet())
	_, err := r.Get(999)
	require.Error(t, err)
	_, ok := err.(ErrUnknownChain)
	assert.True(t, ok, "expected ErrUnknownChain, got %T", err)
}

func TestKnownChainResolves(t *testing.T) {
	r := NewRegistry(Mainnet())
	spec, err := r.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "WETH", spec.BaseSymbol)
	assert.NotEmpty(t, spec.Dexes, "expected at least one configured dex")
}
