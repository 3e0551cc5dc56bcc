package main

import (
	"fmt"

	"github.com/shoheigorila/a1agent/chainreader"
	"github.com/shoheigorila/a1agent/common"
	"github.com/shoheigorila/a1agent/metrics"
	"github.com/shoheigorila/a1agent/store"
	"github.com/urfave/cli/v2"
)

// experimentCommand runs a single target through the agent loop
// repeatedly to gauge run-to-run variance, then prints a metrics.Summary
// over just those trials.
var experimentCommand = &cli.Command{
	Name:      "experiment",
	Usage:     "run the agent loop against one target repeatedly and summarize the trials",
	ArgsUsage: "<target-address>",
	Flags: []cli.Flag{
		&cli.Uint64Flag{Name: "chain", Value: 1},
		&cli.StringFlag{Name: "block", Value: chainreader.BlockLatest},
		&cli.StringFlag{Name: "model"},
		&cli.StringFlag{Name: "provider", Value: "anthropic"},
		&cli.IntFlag{Name: "max-turns"},
		&cli.IntFlag{Name: "trials", Value: 5},
		&cli.StringFlag{Name: "output", Usage: "results store directory (default: ./a1agent-runs)"},
	},
	Action: experimentAction,
}

func experimentAction(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("experiment requires exactly one target address argument")
	}
	if !common.IsHexAddress(c.Args().First()) {
		return fmt.Errorf("invalid target address: %q", c.Args().First())
	}
	target := common.HexToAddress(c.Args().First())
	chainID := c.Uint64("chain")
	block := c.String("block")
	provider, model := c.String("provider"), c.String("model")
	trials := c.Int("trials")
	if trials <= 0 {
		trials = 1
	}

	env, err := newChainEnv(c, chainID)
	if err != nil {
		return err
	}
	s, err := openResultsStore(c)
	if err != nil {
		return err
	}

	records := make([]store.RunRecord, 0, trials)
	for i := 0; i < trials; i++ {
		result, rec, err := runOnce(c, env, target, chainID, block, provider, model)
		if err != nil {
			return fmt.Errorf("experiment: trial %d/%d: %w", i+1, trials, err)
		}
		if err := s.Append(rec); err != nil {
			return fmt.Errorf("experiment: persist trial %d: %w", i+1, err)
		}
		records = append(records, rec)
		fmt.Printf("trial %d/%d: ok=%v turns=%d profit=%s\n", i+1, trials, result.OK, result.Turns, bigIntString(result.BestProfit))
	}

	summary := metrics.Aggregate(records)
	fmt.Printf("\n%d trial(s): successRate=%.2f meanTurns=%.2f medianTurns=%.2f meanTokens=%.2f\n",
		summary.TotalRuns, summary.SuccessRate, summary.MeanTurns, summary.MedianTurns, summary.MeanTokens)
	return nil
}
