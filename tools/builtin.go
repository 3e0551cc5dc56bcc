package tools

import (
	"context"
	"fmt"
	"math/big"

	"github.com/shoheigorila/a1agent/chainreader"
	"github.com/shoheigorila/a1agent/codeanalyzer"
	"github.com/shoheigorila/a1agent/common"
	"github.com/shoheigorila/a1agent/common/hexutil"
	"github.com/shoheigorila/a1agent/constructor"
	"github.com/shoheigorila/a1agent/dex"
	"github.com/shoheigorila/a1agent/explorer"
	"github.com/shoheigorila/a1agent/forkexec"
	"github.com/shoheigorila/a1agent/profit"
	"github.com/shoheigorila/a1agent/proxy"
)

func objectSchema(properties map[string]Schema, required ...string) Schema {
	return Schema{Type: "object", Properties: properties, Required: required}
}

func stringArg(args map[string]interface{}, name string) (string, error) {
	v, ok := args[name]
	if !ok {
		return "", fmt.Errorf("missing required argument %q", name)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string", name)
	}
	return s, nil
}

func optionalStringArg(args map[string]interface{}, name, def string) string {
	if v, ok := args[name]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return def
}

func optionalUint64Arg(args map[string]interface{}, name string) uint64 {
	v, ok := args[name]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return uint64(n)
	case int:
		return uint64(n)
	case string:
		bi, ok := new(big.Int).SetString(n, 10)
		if !ok {
			return 0
		}
		return bi.Uint64()
	default:
		return 0
	}
}

// NewFetchSourceTool wraps explorer.Reader.GetSourceCode.
func NewFetchSourceTool(r *explorer.Reader) Tool {
	return Tool{
		Name:        "fetch_source",
		Description: "Fetches verified source code, ABI, and constructor args for a contract address from the configured block explorer.",
		Parameters: objectSchema(map[string]Schema{
			"address": {Type: "string", Description: "contract address, 0x-prefixed"},
		}, "address"),
		Execute: func(args map[string]interface{}) Result {
			addrStr, err := stringArg(args, "address")
			if err != nil {
				return Result{OK: false, Error: err.Error()}
			}
			addr := common.HexToAddress(addrStr)
			src, err := r.GetSourceCode(context.Background(), addr)
			if err != nil {
				return Result{OK: false, Error: err.Error()}
			}
			if !src.Verified {
				return Result{OK: true, Summary: fmt.Sprintf("%s has no verified source", addrStr), Details: map[string]interface{}{"verified": false}}
			}
			return Result{
				OK:      true,
				Summary: fmt.Sprintf("fetched %d source file(s) for %s (%s)", len(src.SourceFiles), src.ContractName, addrStr),
				Details: map[string]interface{}{
					"verified":        true,
					"contractName":    src.ContractName,
					"compilerVersion": src.CompilerVersion,
					"sourceFiles":     src.SourceFiles,
					"proxy":           src.Proxy,
					"implementation":  src.Implementation.Hex(),
					"constructorArgs": src.ConstructorArgs,
				},
				CacheKey: "fetch_source:" + addrStr,
			}
		},
	}
}

// NewReadStateTool wraps chainreader.Reader's call/storage/balance/code
// reads behind one tool, dispatched by a "kind" argument.
func NewReadStateTool(chain *chainreader.Reader) Tool {
	return Tool{
		Name:        "read_state",
		Description: "Reads on-chain state at a given address: either raw storage at a slot, the deployed bytecode, the native balance, or the result of a raw eth_call.",
		Parameters: objectSchema(map[string]Schema{
			"kind":    {Type: "string", Description: "one of: storage, code, balance, call"},
			"address": {Type: "string"},
			"slot":    {Type: "string", Description: "required when kind=storage, a 0x-prefixed 32-byte hash"},
			"data":    {Type: "string", Description: "required when kind=call, 0x-prefixed calldata"},
			"block":   {Type: "string", Description: "block tag or number; defaults to latest"},
		}, "kind", "address"),
		Execute: func(args map[string]interface{}) Result {
			kind, err := stringArg(args, "kind")
			if err != nil {
				return Result{OK: false, Error: err.Error()}
			}
			addrStr, err := stringArg(args, "address")
			if err != nil {
				return Result{OK: false, Error: err.Error()}
			}
			addr := common.HexToAddress(addrStr)
			block := optionalStringArg(args, "block", chainreader.BlockLatest)
			ctx := context.Background()

			switch kind {
			case "storage":
				slotStr, err := stringArg(args, "slot")
				if err != nil {
					return Result{OK: false, Error: err.Error()}
				}
				val, err := chain.Storage(ctx, addr, common.HexToHash(slotStr), block)
				if err != nil {
					return Result{OK: false, Error: err.Error()}
				}
				return Result{OK: true, Summary: fmt.Sprintf("storage[%s] = %s", slotStr, val.Hex()), Details: map[string]interface{}{"value": val.Hex()}}
			case "code":
				code, err := chain.Code(ctx, addr, block)
				if err != nil {
					return Result{OK: false, Error: err.Error()}
				}
				return Result{OK: true, Summary: fmt.Sprintf("%d bytes of code at %s", len(code), addrStr), Details: map[string]interface{}{"codeLength": len(code), "code": hexutil.Encode(code)}}
			case "balance":
				bal, err := chain.Balance(ctx, addr, block)
				if err != nil {
					return Result{OK: false, Error: err.Error()}
				}
				return Result{OK: true, Summary: fmt.Sprintf("balance of %s = %s wei", addrStr, bal.String()), Details: map[string]interface{}{"balance": bal.String()}}
			case "call":
				dataStr, err := stringArg(args, "data")
				if err != nil {
					return Result{OK: false, Error: err.Error()}
				}
				out, err := chain.Call(ctx, addr, common.FromHex(dataStr), block)
				if err != nil {
					return Result{OK: false, Error: err.Error()}
				}
				return Result{OK: true, Summary: fmt.Sprintf("call returned %d bytes", len(out)), Details: map[string]interface{}{"result": hexutil.Encode(out)}}
			default:
				return Result{OK: false, Error: fmt.Sprintf("unknown read_state kind %q", kind)}
			}
		},
	}
}

// NewResolveProxyTool wraps proxy.Resolver.Resolve.
func NewResolveProxyTool(r *proxy.Resolver) Tool {
	return Tool{
		Name:        "resolve_proxy",
		Description: "Determines whether an address is a proxy (EIP-1967 transparent/beacon, EIP-1167 minimal, UUPS, or a custom storage slot) and follows it to its implementation, recursing through nested proxy chains.",
		Parameters: objectSchema(map[string]Schema{
			"address": {Type: "string"},
			"block":   {Type: "string"},
		}, "address"),
		Execute: func(args map[string]interface{}) Result {
			addrStr, err := stringArg(args, "address")
			if err != nil {
				return Result{OK: false, Error: err.Error()}
			}
			block := optionalStringArg(args, "block", "latest")
			info, err := r.Resolve(context.Background(), common.HexToAddress(addrStr), block, true)
			if err != nil {
				return Result{OK: false, Error: err.Error()}
			}
			return Result{
				OK:      true,
				Summary: fmt.Sprintf("%s is %s, implementation %s", addrStr, info.Kind, info.Impl.Hex()),
				Details: map[string]interface{}{
					"kind":           string(info.Kind),
					"implementation": info.Impl.Hex(),
					"admin":          info.Admin.Hex(),
					"method":         info.Method,
					"confidence":     info.Confidence,
				},
				CacheKey: "resolve_proxy:" + addrStr + ":" + block,
			}
		},
	}
}

// NewExtractConstructorTool wraps constructor.Decoder.Decode.
func NewExtractConstructorTool(d *constructor.Decoder) Tool {
	return Tool{
		Name:        "extract_constructor",
		Description: "Decodes the constructor arguments a contract was deployed with, given its creation transaction hash.",
		Parameters: objectSchema(map[string]Schema{
			"address":       {Type: "string"},
			"creationTxHash": {Type: "string"},
		}, "address", "creationTxHash"),
		Execute: func(args map[string]interface{}) Result {
			addrStr, err := stringArg(args, "address")
			if err != nil {
				return Result{OK: false, Error: err.Error()}
			}
			txStr, err := stringArg(args, "creationTxHash")
			if err != nil {
				return Result{OK: false, Error: err.Error()}
			}
			info, err := d.Decode(context.Background(), common.HexToAddress(addrStr), common.HexToHash(txStr), nil)
			if err != nil {
				return Result{OK: false, Error: err.Error()}
			}
			params := make([]map[string]interface{}, 0, len(info.Params))
			for _, p := range info.Params {
				params = append(params, map[string]interface{}{"name": p.Name, "type": p.Type, "value": fmt.Sprintf("%v", p.Value)})
			}
			return Result{
				OK:      true,
				Summary: fmt.Sprintf("decoded %d constructor argument(s) for %s", len(params), addrStr),
				Details: map[string]interface{}{"params": params, "decodedWithABI": info.DecodedWithABI},
			}
		},
	}
}

// NewAnalyzeCodeTool wraps codeanalyzer's Analyze/BuildGraph/ExtractMinimal.
func NewAnalyzeCodeTool() Tool {
	return Tool{
		Name:        "analyze_code",
		Description: "Analyzes Solidity source text: extracts pragma, imports, contract/interface entities with inheritance, and optionally returns a minimal source extraction for one target contract.",
		Parameters: objectSchema(map[string]Schema{
			"source": {Type: "string", Description: "full Solidity source, possibly multiple files concatenated"},
			"target": {Type: "string", Description: "optional contract name to extract a minimal dependency closure for"},
		}, "source"),
		Execute: func(args map[string]interface{}) Result {
			source, err := stringArg(args, "source")
			if err != nil {
				return Result{OK: false, Error: err.Error()}
			}
			analysis := codeanalyzer.Analyze(source)
			details := map[string]interface{}{
				"pragma":  analysis.Pragma,
				"order":   analysis.Order,
				"imports": len(analysis.Imports),
			}
			if target := optionalStringArg(args, "target", ""); target != "" {
				details["minimal"] = codeanalyzer.ExtractMinimal(source, target)
			}
			return Result{OK: true, Summary: fmt.Sprintf("found %d entities", len(analysis.Order)), Details: details}
		},
	}
}

// NewQuoteDexTool wraps dex.Quoter.Quote/QuoteExactOut.
func NewQuoteDexTool(q *dex.Quoter) Tool {
	return Tool{
		Name:        "quote_dex",
		Description: "Quotes a swap between two tokens over the chain's configured DEXes, either exact-in or exact-out, trying direct and two-hop routes.",
		Parameters: objectSchema(map[string]Schema{
			"tokenIn":  {Type: "string"},
			"tokenOut": {Type: "string"},
			"amount":   {Type: "string", Description: "amount in the token's smallest unit"},
			"exactOut": {Type: "boolean", Description: "if true, amount is the desired output and the quote solves for input"},
			"block":    {Type: "string"},
		}, "tokenIn", "tokenOut", "amount"),
		Execute: func(args map[string]interface{}) Result {
			tokenInStr, err := stringArg(args, "tokenIn")
			if err != nil {
				return Result{OK: false, Error: err.Error()}
			}
			tokenOutStr, err := stringArg(args, "tokenOut")
			if err != nil {
				return Result{OK: false, Error: err.Error()}
			}
			amountStr, err := stringArg(args, "amount")
			if err != nil {
				return Result{OK: false, Error: err.Error()}
			}
			amount, ok := new(big.Int).SetString(amountStr, 10)
			if !ok {
				return Result{OK: false, Error: "amount must be a base-10 integer string"}
			}
			block := optionalStringArg(args, "block", "latest")
			exactOut, _ := args["exactOut"].(bool)

			tokenIn := common.HexToAddress(tokenInStr)
			tokenOut := common.HexToAddress(tokenOutStr)

			var quote *dex.Quote
			if exactOut {
				quote, err = q.QuoteExactOut(context.Background(), tokenIn, tokenOut, amount, block)
			} else {
				quote, err = q.Quote(context.Background(), tokenIn, tokenOut, amount, block)
			}
			if err != nil {
				return Result{OK: false, Error: err.Error()}
			}
			return Result{
				OK:      true,
				Summary: fmt.Sprintf("%s -> %s via %s: in=%s out=%s", tokenInStr, tokenOutStr, quote.Dex, quote.AmountIn, quote.AmountOut),
				Details: map[string]interface{}{
					"amountIn":    quote.AmountIn.String(),
					"amountOut":   quote.AmountOut.String(),
					"dex":         quote.Dex,
					"priceImpact": quote.PriceImpact,
				},
			}
		},
	}
}

// NewEvaluateProfitTool wraps profit.Oracle.Evaluate.
func NewEvaluateProfitTool(o *profit.Oracle) Tool {
	return Tool{
		Name:        "evaluate_profit",
		Description: "Normalizes a set of per-token balance deltas into a single base-token net profit figure, pricing surpluses and deficits through the DEX quoter.",
		Parameters: objectSchema(map[string]Schema{
			"deltas": {Type: "object", Description: "map of token address -> signed integer delta string"},
			"block":  {Type: "string"},
		}, "deltas"),
		Execute: func(args map[string]interface{}) Result {
			raw, ok := args["deltas"].(map[string]interface{})
			if !ok {
				return Result{OK: false, Error: "deltas must be an object of address -> delta string"}
			}
			deltas := make(map[common.Address]*big.Int, len(raw))
			for addrStr, v := range raw {
				s, ok := v.(string)
				if !ok {
					return Result{OK: false, Error: fmt.Sprintf("delta for %s must be a string", addrStr)}
				}
				bi, ok := new(big.Int).SetString(s, 10)
				if !ok {
					return Result{OK: false, Error: fmt.Sprintf("delta for %s is not an integer", addrStr)}
				}
				deltas[common.HexToAddress(addrStr)] = bi
			}
			block := optionalStringArg(args, "block", "latest")
			report := o.Evaluate(context.Background(), deltas, block)
			return Result{
				OK:      true,
				Summary: fmt.Sprintf("net=%s profitable=%v confidence=%.2f", report.Net, report.IsProfitable, report.Confidence),
				Details: map[string]interface{}{
					"net":          report.Net.String(),
					"gross":        report.Gross.String(),
					"isProfitable": report.IsProfitable,
					"confidence":   report.Confidence,
				},
			}
		},
	}
}

// NewExecuteStrategyTool wraps forkexec.Executor.Run.
func NewExecuteStrategyTool(e *forkexec.Executor, rpcURL string) Tool {
	return Tool{
		Name:        "execute_strategy",
		Description: "Compiles and runs a Strategy contract against a fork of the chain at the given block inside an isolated sandbox, reporting compile/revert status, gas used, and per-token balance changes.",
		Parameters: objectSchema(map[string]Schema{
			"source":        {Type: "string", Description: "full Solidity source of the Strategy contract"},
			"block":         {Type: "string", Description: "fork block number, decimal"},
			"trackedTokens": {Type: "array", Items: &Schema{Type: "string"}},
		}, "source"),
		Execute: func(args map[string]interface{}) Result {
			source, err := stringArg(args, "source")
			if err != nil {
				return Result{OK: false, Error: err.Error()}
			}
			var tracked []common.Address
			if raw, ok := args["trackedTokens"].([]interface{}); ok {
				for _, v := range raw {
					if s, ok := v.(string); ok {
						tracked = append(tracked, common.HexToAddress(s))
					}
				}
			}
			req := forkexec.Request{
				StrategySource: source,
				RPCURL:         rpcURL,
				ForkBlock:      optionalUint64Arg(args, "block"),
				TrackedTokens:  tracked,
			}
			outcome, err := e.Run(context.Background(), req)
			if err != nil {
				return Result{OK: false, Error: err.Error()}
			}
			if outcome.Failure != forkexec.FailureNone {
				return Result{OK: true, Summary: fmt.Sprintf("execution failed: %s", outcome.Failure), Details: map[string]interface{}{"failure": string(outcome.Failure)}}
			}
			profitStr := "unknown"
			if outcome.ProfitRaw != nil {
				profitStr = outcome.ProfitRaw.String()
			}
			balanceChanges := make(map[string]string, len(outcome.BalanceChanges))
			for token, delta := range outcome.BalanceChanges {
				balanceChanges[token.Hex()] = delta.String()
			}
			return Result{
				OK:      true,
				Summary: fmt.Sprintf("compiledOk=%v ran=%v profit=%s", outcome.CompiledOk, outcome.Ran, profitStr),
				Details: map[string]interface{}{
					"compiledOk":   outcome.CompiledOk,
					"ran":          outcome.Ran,
					"revertReason": outcome.RevertReason,
					"gasUsed":      outcome.GasUsed,
					"profit":       profitStr,
					"balanceChanges": balanceChanges,
					"traceExcerpt": outcome.TraceExcerpt,
				},
			}
		},
	}
}
