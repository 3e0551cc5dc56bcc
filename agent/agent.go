// Package agent implements AgentContext, TurnRecord, LoopResult, and the
// AgentController multi-turn loop: it drives a Reasoner against a Policy
// of Tools, parses a proposed Strategy out of the assistant's response,
// evaluates it via ForkExecutor, grades it via ProfitOracle, and tracks
// the best-known strategy across turns, per spec.md §4.13.
package agent

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/shoheigorila/a1agent/common"
	"github.com/shoheigorila/a1agent/forkexec"
	"github.com/shoheigorila/a1agent/llm"
	"github.com/shoheigorila/a1agent/log"
	"github.com/shoheigorila/a1agent/tools"
)

// AgentContext is the per-run mutable state the controller threads
// through every turn.
type AgentContext struct {
	Target          common.Address
	ChainID         uint64
	Block           string
	Transcript      []llm.Message
	ToolResults     map[string]tools.Result // keyed by cacheKey
	StrategiesTried int
	BestProfit      *big.Int
	BestStrategy    string
}

// TurnRecord is appended once per controller turn for observability and
// for the store's optional per-turn persistence.
type TurnRecord struct {
	TurnIndex    int
	ToolCalls    []llm.ToolCall
	StrategyCode string
	ExecOutcome  *forkexec.Outcome
	TokensUsed   int
	Timestamp    time.Time
}

// LoopResult is the controller's terminal report for one run.
type LoopResult struct {
	OK             bool
	BestStrategy   string
	BestProfit     *big.Int
	Turns          int
	TotalTokens    int
	TotalToolCalls int
	Duration       time.Duration
	Error          string
}

const defaultMaxTurns = 10
const maxTraceExcerptChars = 2000

// Config bounds one controller run.
type Config struct {
	MaxTurns        int
	MaxCallsPerTurn int
	InitialBalance  *big.Int
	RunnerBinary    string // overrides forkexec's default "forge" lookup, mainly for tests
	ForkTimeout     time.Duration
}

func defaultConfig() Config {
	return Config{MaxTurns: defaultMaxTurns, MaxCallsPerTurn: 8}
}

// Controller owns one agent run's collaborators: a Reasoner, a tool
// Policy, and a ForkExecutor.
type Controller struct {
	reasoner llm.Reasoner
	policy   *tools.Policy
	executor *forkexec.Executor
	rpcURL   string
	config   Config
	log      log.Logger
}

func New(reasoner llm.Reasoner, policy *tools.Policy, executor *forkexec.Executor, rpcURL string, config Config) *Controller {
	if config.MaxTurns == 0 {
		config.MaxTurns = defaultConfig().MaxTurns
	}
	if config.MaxCallsPerTurn == 0 {
		config.MaxCallsPerTurn = defaultConfig().MaxCallsPerTurn
	}
	return &Controller{
		reasoner: reasoner,
		policy:   policy,
		executor: executor,
		rpcURL:   rpcURL,
		config:   config,
		log:      log.New("component", "agent"),
	}
}

// Run drives one agent run against target at the given chain/block, per
// spec.md §4.13's nine-step procedure.
func (c *Controller) Run(ctx context.Context, target common.Address, chainID uint64, block string) LoopResult {
	start := time.Now()
	actx := &AgentContext{
		Target:      target,
		ChainID:     chainID,
		Block:       block,
		ToolResults: make(map[string]tools.Result),
		BestProfit:  big.NewInt(0),
	}
	actx.Transcript = []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt()},
		{Role: llm.RoleUser, Content: userPrompt(target, chainID, block)},
	}

	totalTokens := 0
	totalToolCalls := 0
	catalog := c.policy.Registry().LLMDefs()

	for turn := 0; turn < c.config.MaxTurns; turn++ {
		c.policy.ResetTurn()
		toolDefs := catalog
		if !c.policy.OffersTools() {
			toolDefs = nil
		}

		result, err := c.reasoner.Generate(ctx, actx.Transcript, toolDefs)
		if err != nil {
			return c.fatal(actx, start, turn, totalTokens, totalToolCalls, err)
		}
		actx.Transcript = append(actx.Transcript, result.Message)
		totalTokens += result.Usage.Total

		for len(result.Message.ToolCalls) > 0 {
			for _, call := range result.Message.ToolCalls {
				toolResult := c.policy.Execute(call.Name, call.Arguments)
				totalToolCalls++
				actx.Transcript = append(actx.Transcript, llm.Message{
					Role:       llm.RoleTool,
					Content:    toolResult.Summary,
					ToolCallID: call.ID,
				})
				if toolResult.CacheKey != "" {
					actx.ToolResults[toolResult.CacheKey] = toolResult
				}
			}

			result, err = c.reasoner.Generate(ctx, actx.Transcript, toolDefs)
			if err != nil {
				return c.fatal(actx, start, turn, totalTokens, totalToolCalls, err)
			}
			actx.Transcript = append(actx.Transcript, result.Message)
			totalTokens += result.Usage.Total
		}

		parsed, ok := ExtractStrategy(result.Message.Content)
		if !ok {
			actx.Transcript = append(actx.Transcript, llm.Message{
				Role:    llm.RoleUser,
				Content: "No fenced solidity code block was found. Please respond with a complete Strategy contract inside a ```solidity block.",
			})
			continue
		}
		actx.StrategiesTried++

		repaired := FixCommonIssues(parsed.Source)

		outcome, err := c.executor.Run(ctx, forkexec.Request{
			StrategySource: repaired,
			RPCURL:         c.rpcURL,
			ForkBlock:      blockToUint64(actx.Block),
			InitialBalance: c.config.InitialBalance,
			RunnerBinary:   c.config.RunnerBinary,
			Timeout:        c.config.ForkTimeout,
		})
		if err != nil {
			return c.fatal(actx, start, turn, totalTokens, totalToolCalls, err)
		}
		if outcome.Failure == forkexec.FailureToolchainMissing || outcome.Failure == forkexec.FailureLibMissing {
			return c.fatal(actx, start, turn, totalTokens, totalToolCalls, fmt.Errorf("forkexec: %s", outcome.Failure))
		}

		if outcome.Ran && outcome.ProfitRaw != nil && outcome.ProfitRaw.Cmp(actx.BestProfit) > 0 {
			actx.BestProfit = outcome.ProfitRaw
			actx.BestStrategy = repaired
			return LoopResult{
				OK:             true,
				BestStrategy:   actx.BestStrategy,
				BestProfit:     actx.BestProfit,
				Turns:          turn + 1,
				TotalTokens:    totalTokens,
				TotalToolCalls: totalToolCalls,
				Duration:       time.Since(start),
			}
		}

		actx.Transcript = append(actx.Transcript, llm.Message{
			Role:    llm.RoleUser,
			Content: followUpPrompt(outcome),
		})
	}

	return LoopResult{
		OK:             false,
		BestStrategy:   actx.BestStrategy,
		BestProfit:     actx.BestProfit,
		Turns:          c.config.MaxTurns,
		TotalTokens:    totalTokens,
		TotalToolCalls: totalToolCalls,
		Duration:       time.Since(start),
		Error:          "Max turns reached",
	}
}

func (c *Controller) fatal(actx *AgentContext, start time.Time, turn, totalTokens, totalToolCalls int, err error) LoopResult {
	c.log.Error("agent run failed", "target", actx.Target.Hex(), "turn", turn, "err", err)
	return LoopResult{
		OK:             false,
		BestStrategy:   actx.BestStrategy,
		BestProfit:     actx.BestProfit,
		Turns:          turn + 1,
		TotalTokens:    totalTokens,
		TotalToolCalls: totalToolCalls,
		Duration:       time.Since(start),
		Error:          err.Error(),
	}
}

func blockToUint64(block string) uint64 {
	n, err := strconv.ParseUint(block, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func systemPrompt() string {
	return strings.TrimSpace(`
You are an autonomous smart-contract security agent. Given a deployed
contract address, historical block, and a set of read-only analysis
tools, your job is to synthesize a single Solidity contract named
Strategy that implements:

    interface IStrategy { function run() external; }

Your Strategy will be deployed fresh and funded with 100 ETH of native
currency, then its run() function will be invoked exactly once inside a
forked simulation of the chain at the given block. Nothing you do is
ever broadcast to a real chain. A run is judged purely by the net change
in the base token's balance of your Strategy contract after run()
returns.

Use the available tools to inspect the target's source, storage,
proxied implementation, constructor arguments, and available swap
routes before proposing a Strategy. When you are ready, respond with
exactly one fenced code block tagged solidity containing the complete
Strategy source.
`)
}

func userPrompt(target common.Address, chainID uint64, block string) string {
	if block == "" {
		return fmt.Sprintf("Target contract: %s on chain %d. Use the latest available block.", target.Hex(), chainID)
	}
	return fmt.Sprintf("Target contract: %s on chain %d at block %s.", target.Hex(), chainID, block)
}

// followUpPrompt synthesizes the next user message from an ExecOutcome,
// per spec.md §4.13 step 8's three templates.
func followUpPrompt(outcome *forkexec.Outcome) string {
	if outcome.Failure == forkexec.FailureTimeout {
		return "Your Strategy's run() did not complete within the execution timeout. Simplify the approach (fewer external calls, no unbounded loops) and resubmit."
	}
	if outcome.Failure == forkexec.FailureCompile || !outcome.CompiledOk {
		return "Your Strategy failed to compile:\n\n" + outcome.RawStderr + "\n\nPlease fix the compile error and resubmit the complete Strategy."
	}

	if outcome.Ran {
		profit := "unknown"
		if outcome.ProfitRaw != nil {
			profit = outcome.ProfitRaw.String()
		}
		return fmt.Sprintf("Your Strategy ran successfully with a net profit of %s, which did not exceed the best profit found so far. Try a different approach to improve on it.", profit)
	}

	var sb strings.Builder
	sb.WriteString("Your Strategy reverted")
	if outcome.RevertReason != "" {
		fmt.Fprintf(&sb, " with reason: %s", outcome.RevertReason)
	}
	sb.WriteString(".\n\n")
	if outcome.TraceExcerpt != "" {
		trace := outcome.TraceExcerpt
		if len(trace) > maxTraceExcerptChars {
			trace = trace[:maxTraceExcerptChars]
		}
		sb.WriteString("Trace excerpt:\n")
		sb.WriteString(trace)
		sb.WriteString("\n\n")
	}
	if len(outcome.BalanceChanges) > 0 {
		sb.WriteString("Balance changes:\n")
		for addr, delta := range outcome.BalanceChanges {
			fmt.Fprintf(&sb, "- %s: %s\n", addr.Hex(), delta.String())
		}
	}
	sb.WriteString("\nPlease revise the Strategy and resubmit.")
	return sb.String()
}
