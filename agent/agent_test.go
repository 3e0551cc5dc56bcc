package agent

import (
	"context"
	"math/big"
	"strings"
	"testing"

	"github.com/shoheigorila/a1agent/common"
	"github.com/shoheigorila/a1agent/forkexec"
	"github.com/shoheigorila/a1agent/llm"
	"github.com/shoheigorila/a1agent/tools"
)

type scriptedReasoner struct {
	responses []llm.GenerateResult
	calls     int
}

func (f *scriptedReasoner) Generate(ctx context.Context, messages []llm.Message, defs []llm.ToolDef) (llm.GenerateResult, error) {
	if f.calls >= len(f.responses) {
		return f.responses[len(f.responses)-1], nil
	}
	r := f.responses[f.calls]
	f.calls++
	return r, nil
}

func assistantText(text string) llm.GenerateResult {
	return llm.GenerateResult{
		Message:      llm.Message{Role: llm.RoleAssistant, Content: text},
		FinishReason: llm.FinishStop,
		Usage:        llm.Usage{Total: 10},
	}
}

const validStrategySource = "```solidity\n" +
	"// SPDX-License-Identifier: MIT\npragma solidity ^0.8.20;\n\n" +
	"interface IStrategy { function run() external; }\n\n" +
	"contract Strategy is IStrategy { function run() external {} receive() external payable {} }\n" +
	"```\n"

func newTestController(t *testing.T, reasoner llm.Reasoner) *Controller {
	registry := tools.NewRegistry()
	policy := tools.NewPolicy(registry, tools.ModeAgentChosen, 8)
	executor := forkexec.New(t.TempDir())
	return New(reasoner, policy, executor, "http://unused-rpc", Config{
		MaxTurns:     3,
		RunnerBinary: "definitely-not-a-real-binary-xyz",
	})
}

func TestRunFailsFatalWhenToolchainMissing(t *testing.T) {
	reasoner := &scriptedReasoner{responses: []llm.GenerateResult{assistantText(validStrategySource)}}
	controller := newTestController(t, reasoner)

	result := controller.Run(context.Background(), common.HexToAddress("0x01"), 1, "18000000")
	if result.OK {
		t.Fatal("expected failure when the runner binary is missing")
	}
	if !strings.Contains(result.Error, "toolchain_missing") {
		t.Fatalf("expected toolchain_missing error, got %q", result.Error)
	}
}

func TestRunReachesMaxTurnsWhenNoStrategyEverProposed(t *testing.T) {
	reasoner := &scriptedReasoner{responses: []llm.GenerateResult{assistantText("still thinking, no code yet")}}
	controller := newTestController(t, reasoner)

	result := controller.Run(context.Background(), common.HexToAddress("0x01"), 1, "18000000")
	if result.OK {
		t.Fatal("expected failure when no strategy is ever proposed")
	}
	if result.Error != "Max turns reached" {
		t.Fatalf("expected max turns reached, got %q", result.Error)
	}
	if result.Turns != 3 {
		t.Fatalf("expected 3 turns consumed, got %d", result.Turns)
	}
}

func TestRunExecutesToolCallsBeforeExtractingStrategy(t *testing.T) {
	registry := tools.NewRegistry()
	called := false
	registry.Register(tools.Tool{
		Name:        "probe",
		Description: "test probe",
		Parameters:  tools.Schema{Type: "object"},
		Execute: func(args map[string]interface{}) tools.Result {
			called = true
			return tools.Result{OK: true, Summary: "probed"}
		},
	})
	policy := tools.NewPolicy(registry, tools.ModeAgentChosen, 8)
	executor := forkexec.New(t.TempDir())

	reasoner := &scriptedReasoner{responses: []llm.GenerateResult{
		{
			Message: llm.Message{
				Role:      llm.RoleAssistant,
				ToolCalls: []llm.ToolCall{{ID: "call_1", Name: "probe", Arguments: map[string]interface{}{}}},
			},
			FinishReason: llm.FinishToolCalls,
		},
		assistantText(validStrategySource),
	}}

	controller := New(reasoner, policy, executor, "http://unused-rpc", Config{
		MaxTurns:     2,
		RunnerBinary: "definitely-not-a-real-binary-xyz",
	})
	controller.Run(context.Background(), common.HexToAddress("0x01"), 1, "")

	if !called {
		t.Fatal("expected the tool call to have been executed")
	}
}

func TestFollowUpPromptTemplates(t *testing.T) {
	compile := &forkexec.Outcome{CompiledOk: false, Failure: forkexec.FailureCompile, RawStderr: "Error: expected ';'"}
	if !strings.Contains(followUpPrompt(compile), "failed to compile") {
		t.Fatal("expected compile-failure template")
	}

	success := &forkexec.Outcome{CompiledOk: true, Ran: true, ProfitRaw: big.NewInt(5)}
	if !strings.Contains(followUpPrompt(success), "ran successfully") {
		t.Fatal("expected success template")
	}

	revert := &forkexec.Outcome{CompiledOk: true, Ran: false, RevertReason: "ERC20: insufficient allowance"}
	if !strings.Contains(followUpPrompt(revert), "ERC20: insufficient allowance") {
		t.Fatal("expected revert reason in failure template")
	}

	timeout := &forkexec.Outcome{Failure: forkexec.FailureTimeout}
	if !strings.Contains(followUpPrompt(timeout), "timeout") {
		t.Fatal("expected timeout template")
	}
}
