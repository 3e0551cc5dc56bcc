// Package config loads per-chain and agent tunables from a TOML file in
// the teacher's own config idiom (naoina/toml, case-insensitive field
// matching), with CLI flags layered on top as overrides.
package config

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/naoina/toml"
)

// ChainConfig holds the per-chain environment inputs spec.md §6 names:
// an RPC URL and an optional explorer API key.
type ChainConfig struct {
	ChainID         uint64 `toml:"ChainID"`
	RPCURL          string `toml:"RPCURL"`
	ExplorerAPIKey  string `toml:"ExplorerAPIKey"`
	ExplorerBaseURL string `toml:"ExplorerBaseURL"`
}

// AgentConfig holds the agent-loop tunables.
type AgentConfig struct {
	MaxTurns        int           `toml:"MaxTurns"`
	MaxCallsPerTurn int           `toml:"MaxCallsPerTurn"`
	ForkTimeout     time.Duration `toml:"ForkTimeout"`
	RunnerBinary    string        `toml:"RunnerBinary"`
	StoreDir        string        `toml:"StoreDir"`
}

// Config is the full file-backed configuration: one ChainConfig per chain
// id, plus the shared agent tunables.
type Config struct {
	Agent  AgentConfig            `toml:"Agent"`
	Chains map[string]ChainConfig `toml:"Chains"`
}

func defaultConfig() Config {
	return Config{
		Agent: AgentConfig{
			MaxTurns:        10,
			MaxCallsPerTurn: 8,
			ForkTimeout:     120 * time.Second,
			RunnerBinary:    "forge",
		},
		Chains: make(map[string]ChainConfig),
	}
}

// tomlSettings mirrors the teacher's cmd/geth config loader: field names
// are matched case-insensitively and with underscores stripped, since
// humans write TOML keys inconsistently.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return strings.ReplaceAll(strings.ToLower(key), "_", "")
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		return nil
	},
}

// Load reads and decodes a TOML config file at path, filling in defaults
// for any zero-valued Agent fields.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()
	return loadFrom(f)
}

func loadFrom(r io.Reader) (Config, error) {
	cfg := defaultConfig()
	if err := tomlSettings.NewDecoder(r).Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode toml: %w", err)
	}
	if cfg.Chains == nil {
		cfg.Chains = make(map[string]ChainConfig)
	}
	applyAgentDefaults(&cfg.Agent)
	return cfg, nil
}

func applyAgentDefaults(a *AgentConfig) {
	d := defaultConfig().Agent
	if a.MaxTurns == 0 {
		a.MaxTurns = d.MaxTurns
	}
	if a.MaxCallsPerTurn == 0 {
		a.MaxCallsPerTurn = d.MaxCallsPerTurn
	}
	if a.ForkTimeout == 0 {
		a.ForkTimeout = d.ForkTimeout
	}
	if a.RunnerBinary == "" {
		a.RunnerBinary = d.RunnerBinary
	}
}

// ChainByID returns the Chains entry whose ChainID field equals chainID.
// The table's keys are not consulted.
func (c Config) ChainByID(chainID uint64) (ChainConfig, bool) {
	for _, cc := range c.Chains {
		if cc.ChainID == chainID {
			return cc, true
		}
	}
	return ChainConfig{}, false
}

// Overrides are CLI-flag values that take precedence over file-loaded
// AgentConfig values when set (non-zero).
type Overrides struct {
	MaxTurns     int
	RPCURL       string
	RunnerBinary string
}

// ApplyOverrides layers any non-zero Overrides fields onto cfg, per the
// teacher's "file defaults, flags win" precedence.
func (c *Config) ApplyOverrides(chainID uint64, o Overrides) {
	if o.MaxTurns != 0 {
		c.Agent.MaxTurns = o.MaxTurns
	}
	if o.RunnerBinary != "" {
		c.Agent.RunnerBinary = o.RunnerBinary
	}
	if o.RPCURL != "" {
		key := fmt.Sprintf("%d", chainID)
		cc := c.Chains[key]
		cc.ChainID = chainID
		cc.RPCURL = o.RPCURL
		c.Chains[key] = cc
	}
}
