package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTOML = `
[Agent]
MaxTurns = 6
MaxCallsPerTurn = 4
ForkTimeout = "30s"
RunnerBinary = "forge"

[Chains.1]
ChainID = 1
RPCURL = "https://mainnet.example/rpc"
ExplorerAPIKey = "abc123"
`

func TestLoadFromDecodesChainsAndAgent(t *testing.T) {
	cfg, err := loadFrom(strings.NewReader(sampleTOML))
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Agent.MaxTurns)
	assert.Equal(t, 30*time.Second, cfg.Agent.ForkTimeout)

	cc, ok := cfg.ChainByID(1)
	require.True(t, ok, "expected chain 1 to be present")
	assert.Equal(t, "https://mainnet.example/rpc", cc.RPCURL)
}

func TestLoadFromFillsAgentDefaultsWhenOmitted(t *testing.T) {
	cfg, err := loadFrom(strings.NewReader("[Agent]\n"))
	require.NoError(t, err)
	assert.Equal(t, defaultConfig().Agent.MaxTurns, cfg.Agent.MaxTurns)
	assert.Equal(t, "forge", cfg.Agent.RunnerBinary)
}

func TestApplyOverridesFlagsWinOverFileValues(t *testing.T) {
	cfg, err := loadFrom(strings.NewReader(sampleTOML))
	require.NoError(t, err)
	cfg.ApplyOverrides(1, Overrides{MaxTurns: 20, RPCURL: "https://override.example/rpc"})

	assert.Equal(t, 20, cfg.Agent.MaxTurns)
	cc, ok := cfg.ChainByID(1)
	require.True(t, ok)
	assert.Equal(t, "https://override.example/rpc", cc.RPCURL)
}

func TestApplyOverridesLeavesUnsetFieldsAlone(t *testing.T) {
	cfg, err := loadFrom(strings.NewReader(sampleTOML))
	require.NoError(t, err)
	cfg.ApplyOverrides(1, Overrides{})

	assert.Equal(t, 6, cfg.Agent.MaxTurns, "expected file value preserved when no override given")
}
