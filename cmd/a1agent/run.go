package main

import (
	"fmt"
	"math/big"
	"os"
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

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "run the agent loop against one target contract",
	ArgsUsage: "<target-address>",
	Flags: []cli.Flag{
		&cli.Uint64Flag{Name: "chain", Value: 1},
		&cli.StringFlag{Name: "block", Value: chainreader.BlockLatest},
		&cli.StringFlag{Name: "model"},
		&cli.StringFlag{Name: "provider", Value: "anthropic"},
		&cli.IntFlag{Name: "max-turns"},
		&cli.StringFlag{Name: "output", Usage: "results store directory (default: ./a1agent-runs)"},
		&cli.StringFlag{Name: "rpc"},
		&cli.StringFlag{Name: "fork-workspace", Usage: "base directory for fork-test workspaces (default: a temp dir)"},
	},
	Action: runAction,
}

func runAction(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("run requires exactly one target address argument")
	}
	if !common.IsHexAddress(c.Args().First()) {
		return fmt.Errorf("invalid target address: %q", c.Args().First())
	}
	target := common.HexToAddress(c.Args().First())
	chainID := c.Uint64("chain")
	block := c.String("block")
	provider := c.String("provider")
	model := c.String("model")

	env, err := newChainEnv(c, chainID)
	if err != nil {
		return err
	}

	result, rec, err := runOnce(c, env, target, chainID, block, provider, model)
	if err != nil {
		return err
	}

	if err := persistRunRecord(c, rec); err != nil {
		return fmt.Errorf("run: persist record: %w", err)
	}

	printRunResult(result)
	if !result.OK {
		return fmt.Errorf("run did not converge on a profitable strategy: %s", result.Error)
	}
	return nil
}

// runOnce wires one Controller and executes Run, returning both the
// LoopResult and its store.RunRecord projection.
func runOnce(c *cli.Context, env *chainEnv, target common.Address, chainID uint64, block, provider, model string) (agent.LoopResult, store.RunRecord, error) {
	cfg, err := loadChainConfig(c)
	if err != nil {
		return agent.LoopResult{}, store.RunRecord{}, err
	}
	cfg.ApplyOverrides(chainID, config.Overrides{MaxTurns: c.Int("max-turns")})

	reasoner, err := buildReasoner(provider, model)
	if err != nil {
		return agent.LoopResult{}, store.RunRecord{}, err
	}

	workspace := c.String("fork-workspace")
	if workspace == "" {
		var err error
		workspace, err = os.MkdirTemp("", "a1agent-fork-")
		if err != nil {
			return agent.LoopResult{}, store.RunRecord{}, fmt.Errorf("run: create fork workspace: %w", err)
		}
	}
	executor := forkexec.New(workspace)
	registry := buildToolRegistry(env, executor, env.rpcURL)
	policy := tools.NewPolicy(registry, tools.ModeAgentChosen, cfg.Agent.MaxCallsPerTurn)

	controller := agent.New(reasoner, policy, executor, env.rpcURL, agent.Config{
		MaxTurns:        cfg.Agent.MaxTurns,
		MaxCallsPerTurn: cfg.Agent.MaxCallsPerTurn,
		RunnerBinary:    cfg.Agent.RunnerBinary,
		ForkTimeout:     cfg.Agent.ForkTimeout,
	})

	start := time.Now()
	result := controller.Run(c.Context, target, chainID, block)

	rec := store.RunRecord{
		RunID:           store.MakeRunID(target.Hex(), model, start),
		Target:          target.Hex(),
		ChainID:         chainID,
		Block:           block,
		ModelName:       model,
		OK:              result.OK,
		BestProfit:      bigIntString(result.BestProfit),
		Turns:           result.Turns,
		TotalTokens:     result.TotalTokens,
		TotalToolCalls:  result.TotalToolCalls,
		DurationSeconds: result.Duration.Seconds(),
		Error:           result.Error,
		Timestamp:       start,
	}
	return result, rec, nil
}

func bigIntString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func persistRunRecord(c *cli.Context, rec store.RunRecord) error {
	dir := c.String("output")
	if dir == "" {
		dir = "./a1agent-runs"
	}
	s, err := store.Open(dir)
	if err != nil {
		return err
	}
	return s.Append(rec)
}

func printRunResult(result agent.LoopResult) {
	status := "FAILED"
	if result.OK {
		status = "OK"
	}
	fmt.Printf("run: %s (turns=%d tokens=%d toolCalls=%d duration=%s)\n",
		status, result.Turns, result.TotalTokens, result.TotalToolCalls, result.Duration)
	if result.OK {
		fmt.Printf("best profit (wei): %s\n", bigIntString(result.BestProfit))
		fmt.Println(result.BestStrategy)
	} else if result.Error != "" {
		fmt.Println("error:", result.Error)
	}
}
