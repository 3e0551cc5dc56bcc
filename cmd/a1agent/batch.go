package main

import (
	"fmt"
	"time"

	"github.com/shoheigorila/a1agent/agent"
	"github.com/shoheigorila/a1agent/chainreader"
	"github.com/shoheigorila/a1agent/common"
	"github.com/shoheigorila/a1agent/config"
	"github.com/shoheigorila/a1agent/forkexec"
	"github.com/shoheigorila/a1agent/store"
	"github.com/shoheigorila/a1agent/tools"
	"github.com/urfave/cli/v2"
)

var batchCommand = &cli.Command{
	Name:      "batch",
	Usage:     "run the agent loop against many targets concurrently",
	ArgsUsage: "<target-address>...",
	Flags: []cli.Flag{
		&cli.Uint64Flag{Name: "chain", Value: 1},
		&cli.StringFlag{Name: "block", Value: chainreader.BlockLatest},
		&cli.StringFlag{Name: "model"},
		&cli.StringFlag{Name: "provider", Value: "anthropic"},
		&cli.IntFlag{Name: "max-turns"},
		&cli.IntFlag{Name: "parallel", Value: 4},
		&cli.StringFlag{Name: "output", Usage: "results store directory (default: ./a1agent-runs)"},
	},
	Action: batchAction,
}

func batchAction(c *cli.Context) error {
	if c.Args().Len() == 0 {
		return fmt.Errorf("batch requires at least one target address argument")
	}
	chainID := c.Uint64("chain")
	block := c.String("block")

	targets := make([]agent.BatchTarget, 0, c.Args().Len())
	for _, a := range c.Args().Slice() {
		if !common.IsHexAddress(a) {
			return fmt.Errorf("invalid target address: %q", a)
		}
		targets = append(targets, agent.BatchTarget{Target: common.HexToAddress(a), ChainID: chainID, Block: block})
	}

	env, err := newChainEnv(c, chainID)
	if err != nil {
		return err
	}
	cfg, err := loadChainConfig(c)
	if err != nil {
		return err
	}
	cfg.ApplyOverrides(chainID, config.Overrides{MaxTurns: c.Int("max-turns")})

	provider, model := c.String("provider"), c.String("model")
	reasoner, err := buildReasoner(provider, model)
	if err != nil {
		return err
	}

	newController := func() *agent.Controller {
		executor := forkexec.New(mustTempDir())
		registry := buildToolRegistry(env, executor, env.rpcURL)
		policy := tools.NewPolicy(registry, tools.ModeAgentChosen, cfg.Agent.MaxCallsPerTurn)
		return agent.New(reasoner, policy, executor, env.rpcURL, agent.Config{
			MaxTurns:        cfg.Agent.MaxTurns,
			MaxCallsPerTurn: cfg.Agent.MaxCallsPerTurn,
			RunnerBinary:    cfg.Agent.RunnerBinary,
			ForkTimeout:     cfg.Agent.ForkTimeout,
		})
	}

	results, err := agent.RunBatch(c.Context, newController, targets, c.Int("parallel"))
	if err != nil {
		return fmt.Errorf("batch: %w", err)
	}

	s, err := openResultsStore(c)
	if err != nil {
		return err
	}

	failures := 0
	now := time.Now()
	for _, br := range results {
		rec := store.RunRecord{
			RunID:           store.MakeRunID(br.Target.Target.Hex(), model, now),
			Target:          br.Target.Target.Hex(),
			ChainID:         br.Target.ChainID,
			Block:           br.Target.Block,
			ModelName:       model,
			OK:              br.Result.OK,
			BestProfit:      bigIntString(br.Result.BestProfit),
			Turns:           br.Result.Turns,
			TotalTokens:     br.Result.TotalTokens,
			TotalToolCalls:  br.Result.TotalToolCalls,
			DurationSeconds: br.Result.Duration.Seconds(),
			Error:           br.Result.Error,
			Timestamp:       now,
		}
		if err := s.Append(rec); err != nil {
			return fmt.Errorf("batch: persist record for %s: %w", br.Target.Target.Hex(), err)
		}
		status := "OK"
		if !br.Result.OK {
			status = "FAILED"
			failures++
		}
		fmt.Printf("%s: %s (turns=%d profit=%s)\n", br.Target.Target.Hex(), status, br.Result.Turns, bigIntString(br.Result.BestProfit))
	}

	if failures > 0 {
		return fmt.Errorf("batch: %d/%d targets failed", failures, len(results))
	}
	return nil
}

func openResultsStore(c *cli.Context) (*store.Store, error) {
	dir := c.String("output")
	if dir == "" {
		dir = "./a1agent-runs"
	}
	return store.Open(dir)
}
