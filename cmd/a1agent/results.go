package main

import (
	"fmt"

	"github.com/shoheigorila/a1agent/store"
	"github.com/urfave/cli/v2"
)

var resultsCommand = &cli.Command{
	Name:  "results",
	Usage: "inspect and manage the results store",
	Subcommands: []*cli.Command{
		resultsListCommand,
		resultsStatsCommand,
		resultsExportCommand,
		resultsImportCommand,
	},
}

func resultsFilterFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "output", Usage: "results store directory (default: ./a1agent-runs)"},
		&cli.StringFlag{Name: "target", Usage: "restrict to one target address"},
		&cli.StringFlag{Name: "model", Usage: "restrict to one model name"},
		&cli.BoolFlag{Name: "ok-only", Usage: "restrict to successful runs"},
	}
}

func resultsFilterFromFlags(c *cli.Context) store.Filter {
	return store.Filter{
		Target:    c.String("target"),
		ModelName: c.String("model"),
		OKOnly:    c.Bool("ok-only"),
	}
}

var resultsListCommand = &cli.Command{
	Name:  "list",
	Usage: "list matching run records, most recent first",
	Flags: resultsFilterFlags(),
	Action: func(c *cli.Context) error {
		s, err := openResultsStore(c)
		if err != nil {
			return err
		}
		records := s.List(resultsFilterFromFlags(c))
		for _, rec := range records {
			fmt.Printf("%s  %s  chain=%d  ok=%-5v  turns=%-3d  profit=%s  %s\n",
				rec.RunID, rec.Target, rec.ChainID, rec.OK, rec.Turns, rec.BestProfit, rec.Timestamp.Format("2006-01-02T15:04:05Z07:00"))
		}
		fmt.Printf("%d record(s)\n", len(records))
		return nil
	},
}

var resultsStatsCommand = &cli.Command{
	Name:  "stats",
	Usage: "alias for the top-level metrics command, scoped to the results store filters",
	Flags: resultsFilterFlags(),
	Action: metricsCommand.Action,
}

var resultsExportCommand = &cli.Command{
	Name:      "export",
	Usage:     "write matching run records as JSON-Lines to a file",
	ArgsUsage: "<dest-file>",
	Flags:     resultsFilterFlags(),
	Action: func(c *cli.Context) error {
		if c.Args().Len() != 1 {
			return fmt.Errorf("results export requires exactly one destination file argument")
		}
		s, err := openResultsStore(c)
		if err != nil {
			return err
		}
		if err := s.Export(c.Args().First(), resultsFilterFromFlags(c)); err != nil {
			return err
		}
		fmt.Println("exported to", c.Args().First())
		return nil
	},
}

var resultsImportCommand = &cli.Command{
	Name:      "import",
	Usage:     "append run records from a JSON-Lines file, skipping ones already present",
	ArgsUsage: "<src-file>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "output", Usage: "results store directory (default: ./a1agent-runs)"},
	},
	Action: func(c *cli.Context) error {
		if c.Args().Len() != 1 {
			return fmt.Errorf("results import requires exactly one source file argument")
		}
		s, err := openResultsStore(c)
		if err != nil {
			return err
		}
		n, err := s.Import(c.Args().First())
		if err != nil {
			return err
		}
		fmt.Printf("imported %d new record(s)\n", n)
		return nil
	},
}
