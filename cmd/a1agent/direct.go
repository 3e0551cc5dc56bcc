package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/shoheigorila/a1agent/forkexec"
	"github.com/shoheigorila/a1agent/tools"
	"github.com/urfave/cli/v2"
)

// directRegistry builds a tool registry for the one-shot collaborator
// subcommands (fetch-source, read-state, ...), which never need a
// ForkExecutor or rpcURL wired to execute_strategy.
func directRegistry(c *cli.Context, chainID uint64) (*tools.Registry, error) {
	env, err := newChainEnv(c, chainID)
	if err != nil {
		return nil, err
	}
	executor := forkexec.New(os.TempDir())
	return buildToolRegistry(env, executor, env.rpcURL), nil
}

// runTool invokes the named tool against args and prints its Result as
// formatted JSON, returning an error (exit code 1) when the tool reports
// failure.
func runTool(c *cli.Context, name string, args map[string]interface{}) error {
	registry, err := directRegistry(c, c.Uint64("chain"))
	if err != nil {
		return err
	}
	tool, ok := registry.Get(name)
	if !ok {
		return fmt.Errorf("unknown tool %q", name)
	}
	result := tool.Execute(args)
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	fmt.Println(string(out))
	if !result.OK {
		return fmt.Errorf("%s: %s", name, result.Error)
	}
	return nil
}

var fetchSourceCommand = &cli.Command{
	Name:      "fetch-source",
	Usage:     "fetch verified source code, ABI, and constructor args for a contract",
	ArgsUsage: "<address>",
	Action: func(c *cli.Context) error {
		if c.Args().Len() != 1 {
			return fmt.Errorf("fetch-source requires exactly one address argument")
		}
		return runTool(c, "fetch_source", map[string]interface{}{"address": c.Args().First()})
	},
}

var readStateCommand = &cli.Command{
	Name:      "read-state",
	Usage:     "read on-chain state: storage, code, balance, or a raw call",
	ArgsUsage: "<address>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "kind", Value: "balance", Usage: "one of: storage, code, balance, call"},
		&cli.StringFlag{Name: "slot"},
		&cli.StringFlag{Name: "data"},
		&cli.StringFlag{Name: "block", Value: "latest"},
	},
	Action: func(c *cli.Context) error {
		if c.Args().Len() != 1 {
			return fmt.Errorf("read-state requires exactly one address argument")
		}
		return runTool(c, "read_state", map[string]interface{}{
			"kind":    c.String("kind"),
			"address": c.Args().First(),
			"slot":    c.String("slot"),
			"data":    c.String("data"),
			"block":   c.String("block"),
		})
	},
}

var resolveProxyCommand = &cli.Command{
	Name:      "resolve-proxy",
	Usage:     "determine whether an address is a proxy and resolve its implementation",
	ArgsUsage: "<address>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "block", Value: "latest"},
	},
	Action: func(c *cli.Context) error {
		if c.Args().Len() != 1 {
			return fmt.Errorf("resolve-proxy requires exactly one address argument")
		}
		return runTool(c, "resolve_proxy", map[string]interface{}{
			"address": c.Args().First(),
			"block":   c.String("block"),
		})
	},
}

var extractConstructorCommand = &cli.Command{
	Name:      "extract-constructor",
	Usage:     "decode constructor arguments from a contract's creation transaction",
	ArgsUsage: "<address> <creation-tx-hash>",
	Action: func(c *cli.Context) error {
		if c.Args().Len() != 2 {
			return fmt.Errorf("extract-constructor requires <address> <creation-tx-hash>")
		}
		return runTool(c, "extract_constructor", map[string]interface{}{
			"address":        c.Args().Get(0),
			"creationTxHash": c.Args().Get(1),
		})
	},
}

var analyzeCodeCommand = &cli.Command{
	Name:      "analyze-code",
	Usage:     "analyze Solidity source text read from a file (or stdin with -)",
	ArgsUsage: "<source-file>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "target", Usage: "contract name to extract a minimal dependency closure for"},
	},
	Action: func(c *cli.Context) error {
		if c.Args().Len() != 1 {
			return fmt.Errorf("analyze-code requires exactly one source-file argument")
		}
		source, err := readSourceArg(c.Args().First())
		if err != nil {
			return err
		}
		return runTool(c, "analyze_code", map[string]interface{}{
			"source": source,
			"target": c.String("target"),
		})
	},
}

func readSourceArg(path string) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(b), nil
}
