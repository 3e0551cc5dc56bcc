package main

import (
	"fmt"
	"os"

	"github.com/shoheigorila/a1agent/cache"
	"github.com/shoheigorila/a1agent/chainreader"
	"github.com/shoheigorila/a1agent/chainspec"
	"github.com/shoheigorila/a1agent/config"
	"github.com/shoheigorila/a1agent/constructor"
	"github.com/shoheigorila/a1agent/dex"
	"github.com/shoheigorila/a1agent/explorer"
	"github.com/shoheigorila/a1agent/forkexec"
	"github.com/shoheigorila/a1agent/llm"
	"github.com/shoheigorila/a1agent/llm/anthropic"
	"github.com/shoheigorila/a1agent/llm/openai"
	"github.com/shoheigorila/a1agent/llm/openrouter"
	"github.com/shoheigorila/a1agent/profit"
	"github.com/shoheigorila/a1agent/proxy"
	"github.com/shoheigorila/a1agent/tools"
	"github.com/urfave/cli/v2"
)

const defaultExplorerBaseURL = "https://api.etherscan.io/api"

// mustTempDir returns a freshly created temp directory for one
// controller's fork-test workspace.
func mustTempDir() string {
	dir, err := os.MkdirTemp("", "a1agent-fork-")
	if err != nil {
		panic(fmt.Sprintf("a1agent: create fork workspace: %v", err))
	}
	return dir
}

// chainEnv bundles every collaborator keyed off one chain configuration,
// shared across the fetch-source / read-state / resolve-proxy /
// extract-constructor / agent-run commands.
type chainEnv struct {
	chainID   uint64
	rpcURL    string
	chainSpec chainspec.ChainSpec
	cache     *cache.Cache
	chain     *chainreader.Reader
	explorer  *explorer.Reader
	proxy     *proxy.Resolver
	ctor      *constructor.Decoder
	dex       *dex.Quoter
	profit    *profit.Oracle
}

func chainSpecRegistry() *chainspec.Registry {
	return chainspec.NewRegistry(chainspec.Mainnet())
}

func loadChainConfig(c *cli.Context) (config.Config, error) {
	path := c.String("config")
	if path == "" {
		return config.Config{Chains: map[string]config.ChainConfig{}}, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.Config{Chains: map[string]config.ChainConfig{}}, nil
	}
	return config.Load(path)
}

// newChainEnv builds the chain-keyed collaborator bundle for chainID,
// resolving RPC URL and explorer settings from the loaded config with
// CLI flag overrides.
func newChainEnv(c *cli.Context, chainID uint64) (*chainEnv, error) {
	cfg, err := loadChainConfig(c)
	if err != nil {
		return nil, err
	}
	cfg.ApplyOverrides(chainID, config.Overrides{RPCURL: c.String("rpc")})

	registry := chainSpecRegistry()
	spec, err := registry.Get(chainID)
	if err != nil {
		return nil, fmt.Errorf("chain %d: %w", chainID, err)
	}

	cc, _ := cfg.ChainByID(chainID)
	if cc.RPCURL == "" {
		return nil, fmt.Errorf("no RPC URL configured for chain %d (set --rpc or a config file entry)", chainID)
	}

	explorerBaseURL := cc.ExplorerBaseURL
	if explorerBaseURL == "" {
		explorerBaseURL = defaultExplorerBaseURL
	}

	c1 := cache.New()
	chainReader := chainreader.New(cc.RPCURL)
	explorerReader := explorer.New(explorerBaseURL, cc.ExplorerAPIKey, chainID, c1)
	proxyResolver := proxy.New(chainReader)
	ctorDecoder := constructor.New(chainReader)
	dexQuoter := dex.New(chainReader, spec)
	profitOracle := profit.New(chainReader, dexQuoter, spec)

	return &chainEnv{
		chainID:   chainID,
		rpcURL:    cc.RPCURL,
		chainSpec: spec,
		cache:     c1,
		chain:     chainReader,
		explorer:  explorerReader,
		proxy:     proxyResolver,
		ctor:      ctorDecoder,
		dex:       dexQuoter,
		profit:    profitOracle,
	}, nil
}

// buildToolRegistry registers every builtin tool against env's
// collaborators plus the given ForkExecutor, which execute_strategy runs
// against rpcURL.
func buildToolRegistry(env *chainEnv, executor *forkexec.Executor, rpcURL string) *tools.Registry {
	registry := tools.NewRegistry()
	registry.Register(tools.NewFetchSourceTool(env.explorer))
	registry.Register(tools.NewReadStateTool(env.chain))
	registry.Register(tools.NewResolveProxyTool(env.proxy))
	registry.Register(tools.NewExtractConstructorTool(env.ctor))
	registry.Register(tools.NewAnalyzeCodeTool())
	registry.Register(tools.NewQuoteDexTool(env.dex))
	registry.Register(tools.NewEvaluateProfitTool(env.profit))
	registry.Register(tools.NewExecuteStrategyTool(executor, rpcURL))
	return registry
}

// buildReasoner constructs the Reasoner named by provider, reading its
// API key from the provider's conventional environment variable.
func buildReasoner(provider, model string) (llm.Reasoner, error) {
	switch provider {
	case "anthropic", "":
		key := os.Getenv("ANTHROPIC_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is not set")
		}
		if model == "" {
			model = "claude-sonnet-4-5"
		}
		return anthropic.New(key, model), nil
	case "openai":
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is not set")
		}
		if model == "" {
			model = "gpt-4o"
		}
		return openai.New(key, model), nil
	case "openrouter":
		key := os.Getenv("OPENROUTER_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("OPENROUTER_API_KEY is not set")
		}
		if model == "" {
			model = "anthropic/claude-sonnet-4.5"
		}
		return openrouter.New(key, model), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
}
