package main

import (
	"fmt"

	"github.com/shoheigorila/a1agent/metrics"
	"github.com/shoheigorila/a1agent/store"
	"github.com/urfave/cli/v2"
)

var metricsCommand = &cli.Command{
	Name:  "metrics",
	Usage: "aggregate the results store into a summary",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "output", Usage: "results store directory (default: ./a1agent-runs)"},
		&cli.StringFlag{Name: "target", Usage: "restrict to one target address"},
		&cli.StringFlag{Name: "model", Usage: "restrict to one model name"},
		&cli.BoolFlag{Name: "ok-only", Usage: "restrict to successful runs"},
	},
	Action: func(c *cli.Context) error {
		s, err := openResultsStore(c)
		if err != nil {
			return err
		}
		records := s.List(store.Filter{
			Target:    c.String("target"),
			ModelName: c.String("model"),
			OKOnly:    c.Bool("ok-only"),
		})
		summary := metrics.Aggregate(records)
		fmt.Printf("totalRuns=%d successfulRuns=%d successRate=%.4f\n", summary.TotalRuns, summary.SuccessfulRuns, summary.SuccessRate)
		fmt.Printf("meanTurns=%.2f medianTurns=%.2f meanTokens=%.2f\n", summary.MeanTurns, summary.MedianTurns, summary.MeanTokens)
		for _, b := range summary.ProfitBuckets {
			upper := "inf"
			if b.Max != nil {
				upper = b.Max.String()
			}
			fmt.Printf("profit bucket [%s, %s) wei: %d runs\n", b.Min.String(), upper, b.Count)
		}
		return nil
	},
}
