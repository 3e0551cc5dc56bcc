// Command a1agent is the CLI entrypoint for the autonomous exploit-
// synthesis agent: it wires chain/explorer/fork collaborators from a
// TOML config plus flags, and exposes one subcommand per spec.md §6's
// CLI surface.
package main

import (
	"fmt"
	"os"

	"github.com/shoheigorila/a1agent/log"
	"github.com/urfave/cli/v2"
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "a1agent",
		Usage: "synthesize and validate smart-contract exploit strategies against a forked EVM",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "path to a TOML config file"},
			&cli.StringFlag{Name: "rpc", Usage: "JSON-RPC URL override for the target chain"},
			&cli.Uint64Flag{Name: "chain", Value: 1, Usage: "chain id"},
		},
		Commands: []*cli.Command{
			runCommand,
			fetchSourceCommand,
			readStateCommand,
			resolveProxyCommand,
			extractConstructorCommand,
			analyzeCodeCommand,
			experimentCommand,
			batchCommand,
			metricsCommand,
			resultsCommand,
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.New("component", "cli").Error("a1agent failed", "err", err)
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
