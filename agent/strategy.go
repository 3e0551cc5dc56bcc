package agent

import (
	"regexp"
	"strings"
)

var fencedBlockRe = regexp.MustCompile("(?is)```\\s*(solidity|sol)\\b[ \\t]*\\r?\\n(.*?)```")

var contractNameRe = regexp.MustCompile(`\bcontract\s+(\w+)`)
var pragmaRe = regexp.MustCompile(`pragma\s+solidity`)
var receiveOrFallbackRe = regexp.MustCompile(`\b(receive|fallback)\s*\(\s*\)\s*external`)
var payableFunctionRe = regexp.MustCompile(`\bfunction\s+\w+\s*\([^)]*\)[^{;]*\bpayable\b`)
var iStrategyDeclRe = regexp.MustCompile(`\binterface\s+IStrategy\b`)
var iStrategyRefRe = regexp.MustCompile(`\bIStrategy\b`)

// ParsedStrategy is the result of extracting a Strategy contract from an
// assistant response, per spec.md §4.13 step 4.
type ParsedStrategy struct {
	Source       string
	ContractName string
	HasRun       bool
}

// ExtractStrategy finds all fenced solidity/sol code blocks in text, per
// spec.md §4.13 step 4: choose the longest, ties broken by last
// occurrence (T10), then identify a contract named "Strategy"
// preferentially, falling back to the last declared contract.
func ExtractStrategy(text string) (ParsedStrategy, bool) {
	matches := fencedBlockRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return ParsedStrategy{}, false
	}

	best := ""
	for _, m := range matches {
		candidate := strings.TrimRight(m[2], "\r\n")
		if len(candidate) >= len(best) {
			best = candidate
		}
	}

	names := contractNameRe.FindAllStringSubmatch(best, -1)
	contractName := ""
	for _, n := range names {
		if n[1] == "Strategy" {
			contractName = "Strategy"
			break
		}
		contractName = n[1]
	}

	hasRun := regexp.MustCompile(`function\s+run\s*\(\s*\)\s*external`).MatchString(best)

	return ParsedStrategy{Source: best, ContractName: contractName, HasRun: hasRun}, true
}

// FixCommonIssues applies the deterministic repairs of spec.md §4.13
// step 5: an SPDX + pragma header when missing, an injected IStrategy
// interface when referenced but undeclared, and an empty payable
// receive() when the contract has no payable entry point at all. Per S2,
// an inserted header preserves the remainder of the source byte-for-byte.
func FixCommonIssues(source string) string {
	out := source

	if !pragmaRe.MatchString(out) {
		out = "// SPDX-License-Identifier: MIT\npragma solidity ^0.8.20;\n\n" + out
	}

	if !receiveOrFallbackRe.MatchString(out) && !payableFunctionRe.MatchString(out) {
		idx := lastClosingBraceIndex(out)
		if idx >= 0 {
			out = out[:idx] + "\n    receive() external payable {}\n" + out[idx:]
		}
	}

	if iStrategyRefRe.MatchString(out) && !iStrategyDeclRe.MatchString(out) {
		out = out + "\n\ninterface IStrategy {\n    function run() external;\n}\n"
	}

	return out
}

// lastClosingBraceIndex finds the index of the final top-level closing
// brace in source, i.e. the end of the last contract/interface/library
// declaration, so a repair can be injected just inside it.
func lastClosingBraceIndex(source string) int {
	depth := 0
	lastTopLevelClose := -1
	for i, c := range source {
		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				lastTopLevelClose = i
			}
		}
	}
	return lastTopLevelClose
}
