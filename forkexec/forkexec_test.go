package forkexec

import (
	"math/big"
	"testing"

	"github.com/shoheigorila/a1agent/common"
)

func TestParseFailureScenario(t *testing.T) {
	stdout := "Execution: FAILED\n" +
		"Reason: ERC20: insufficient allowance\n" +
		"BalanceChange(0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA,  -1000)\n" +
		"BalanceChange(0xBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB,  +2000)\n" +
		"gas: 123456\n"

	o := Parse(stdout, "")
	if o.Ran {
		t.Fatal("expected ran=false")
	}
	if o.RevertReason != "ERC20: insufficient allowance" {
		t.Fatalf("unexpected revert reason: %q", o.RevertReason)
	}
	if o.GasUsed != 123456 {
		t.Fatalf("unexpected gas used: %d", o.GasUsed)
	}
	aaa := common.HexToAddress("0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
	bbb := common.HexToAddress("0xBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB")
	if o.BalanceChanges[aaa].Cmp(big.NewInt(-1000)) != 0 {
		t.Fatalf("unexpected delta for AAA: %v", o.BalanceChanges[aaa])
	}
	if o.BalanceChanges[bbb].Cmp(big.NewInt(2000)) != 0 {
		t.Fatalf("unexpected delta for BBB: %v", o.BalanceChanges[bbb])
	}
}

func TestParseSuccessScenario(t *testing.T) {
	stdout := "Execution: SUCCESS\nProfit: 500\ngas: 90000\n"
	o := Parse(stdout, "")
	if !o.Ran {
		t.Fatal("expected ran=true")
	}
	if o.ProfitRaw == nil || o.ProfitRaw.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("unexpected profit: %v", o.ProfitRaw)
	}
}

func TestParseCompileFailure(t *testing.T) {
	stdout := "Compiler run failed\nError: expected ';'\n"
	o := Parse(stdout, "")
	if o.CompiledOk {
		t.Fatal("expected compiledOk=false")
	}
	if o.Failure != FailureCompile {
		t.Fatalf("unexpected failure mode: %s", o.Failure)
	}
}

func TestExtractTraceExcerptCapped(t *testing.T) {
	lines := ""
	for i := 0; i < 150; i++ {
		lines += "trace line\n"
	}
	stdout := "Execution: SUCCESS\nProfit: 1\nTraces:\n" + lines + "Suite result: ok\n"
	excerpt := extractTraceExcerpt(stdout)
	n := 0
	for _, c := range excerpt {
		if c == '\n' {
			n++
		}
	}
	if n+1 > maxTraceLines {
		t.Fatalf("expected excerpt capped at %d lines, got %d", maxTraceLines, n+1)
	}
}

func TestSynthesizeHarnessContainsKeyElements(t *testing.T) {
	req := Request{
		InitialBalance: defaultInitialBalance(),
		TrackedTokens:  []common.Address{common.HexToAddress("0x01")},
	}
	harness := synthesizeHarness(req)
	for _, want := range []string{
		"contract ExecuteTest", "BalanceChange", "ExecutionResult", "strategy.run()",
		"forge-std/console.sol",
		"console.log(\"Execution: SUCCESS\")",
		"console.log(\"Execution: FAILED\")",
		"console.logInt(profit)",
	} {
		if !containsAll(harness, want) {
			t.Fatalf("expected harness to contain %q", want)
		}
	}
}

// TestSynthesizeHarnessStdoutSurvivesParse guards the synthesize->forge->Parse
// pipeline end to end: it feeds Parse the literal stdout lines
// synthesizeHarness's console.log/console.logInt calls would produce on a
// real successful run, proving Parse's regexes actually match what the
// harness emits rather than only matching hand-picked fixture strings.
func TestSynthesizeHarnessStdoutSurvivesParse(t *testing.T) {
	req := Request{
		InitialBalance: defaultInitialBalance(),
		TrackedTokens:  []common.Address{common.HexToAddress("0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")},
	}
	harness := synthesizeHarness(req)
	if !containsAll(harness, "console.log(\"Execution: SUCCESS\")") {
		t.Fatal("harness must emit the literal Parse expects on success")
	}

	stdout := "Execution: SUCCESS\n" +
		"Profit (base token):\n" +
		"42\n"
	o := Parse(stdout, "")
	if !o.Ran {
		t.Fatal("expected ran=true from harness-shaped stdout")
	}
	if o.ProfitRaw == nil || o.ProfitRaw.Cmp(big.NewInt(42)) != 0 {
		t.Fatalf("expected profit 42 parsed from harness-shaped stdout, got %v", o.ProfitRaw)
	}

	failStdout := "Execution: FAILED\n" +
		"Reason: revert\n" +
		"Profit (base token):\n" +
		"0\n"
	of := Parse(failStdout, "")
	if of.Ran {
		t.Fatal("expected ran=false from harness-shaped failure stdout")
	}
	if of.RevertReason != "revert" {
		t.Fatalf("unexpected revert reason: %q", of.RevertReason)
	}
}

func containsAll(haystack, needle string) bool {
	return len(haystack) >= len(needle) && (func() bool {
		for i := 0; i+len(needle) <= len(haystack); i++ {
			if haystack[i:i+len(needle)] == needle {
				return true
			}
		}
		return false
	})()
}
