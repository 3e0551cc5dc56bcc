// Package profit implements ProfitOracle: normalizing a multi-token
// balance-delta vector into a single base-token net profit, per spec.md
// §4.8.
package profit

import (
	"context"
	"math/big"

	"github.com/shoheigorila/a1agent/abi"
	"github.com/shoheigorila/a1agent/chainreader"
	"github.com/shoheigorila/a1agent/chainspec"
	"github.com/shoheigorila/a1agent/common"
	"github.com/shoheigorila/a1agent/dex"
)

// unpricedDeficitSentinel is the -2^128 penalty per spec.md §4.8 and §9;
// it is a marker, not a real magnitude.
var unpricedDeficitSentinel = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 128))

// TokenDelta is the per-token contribution computed for a ProfitReport.
type TokenDelta struct {
	Address     common.Address
	Symbol      string
	Decimals    int
	Delta       *big.Int
	ValueInBase *big.Int
	Unpriced    bool
}

// Report is the normalized result across all tokens in a balance-delta vector.
type Report struct {
	Deltas               []TokenDelta
	BaseDelta            *big.Int
	SurplusValue         *big.Int
	DeficitCost          *big.Int
	Raw                  *big.Int
	Gross                *big.Int
	Net                  *big.Int
	IsProfitable         bool
	AllBalancesPreserved bool
	Confidence           float64
}

// Oracle computes ProfitReports given a DexQuoter and ChainReader for
// symbol/decimals resolution.
type Oracle struct {
	chain *chainreader.Reader
	dex   *dex.Quoter
	spec  chainspec.ChainSpec
	codec *abi.Codec
}

func New(chain *chainreader.Reader, quoter *dex.Quoter, spec chainspec.ChainSpec) *Oracle {
	return &Oracle{chain: chain, dex: quoter, spec: spec, codec: abi.NewCodec()}
}

// Evaluate computes a Report from a map of token address to signed delta.
func (o *Oracle) Evaluate(ctx context.Context, deltas map[common.Address]*big.Int, block string) Report {
	tokens := make([]TokenDelta, 0, len(deltas))
	baseDelta := big.NewInt(0)
	surplus := big.NewInt(0)
	deficit := big.NewInt(0)
	unpriced := 0
	allPreserved := true

	for addr, delta := range deltas {
		symbol, decimals := o.resolveTokenMeta(ctx, addr, block)
		td := TokenDelta{Address: addr, Symbol: symbol, Decimals: decimals, Delta: delta}

		if delta.Sign() < 0 {
			allPreserved = false
		}

		switch {
		case addr.Equal(o.spec.BaseToken):
			td.ValueInBase = new(big.Int).Set(delta)
			baseDelta.Add(baseDelta, delta)
		case delta.Sign() > 0:
			q, err := o.dex.Quote(ctx, addr, o.spec.BaseToken, delta, block)
			if err != nil {
				td.ValueInBase = big.NewInt(0)
				td.Unpriced = true
				unpriced++
			} else {
				td.ValueInBase = q.AmountOut
			}
		case delta.Sign() < 0:
			absDelta := new(big.Int).Neg(delta)
			q, err := o.dex.QuoteExactOut(ctx, o.spec.BaseToken, addr, absDelta, block)
			if err != nil {
				td.ValueInBase = new(big.Int).Set(unpricedDeficitSentinel)
				td.Unpriced = true
				unpriced++
			} else {
				td.ValueInBase = new(big.Int).Neg(q.AmountIn)
			}
		default:
			td.ValueInBase = big.NewInt(0)
		}

		if td.ValueInBase.Sign() > 0 {
			surplus.Add(surplus, td.ValueInBase)
		} else if td.ValueInBase.Sign() < 0 && !addr.Equal(o.spec.BaseToken) {
			deficit.Add(deficit, new(big.Int).Neg(td.ValueInBase))
		}

		tokens = append(tokens, td)
	}

	gross := new(big.Int).Add(baseDelta, surplus)
	net := new(big.Int).Sub(gross, deficit)

	total := len(tokens)
	confidence := 1.0
	if total > 0 {
		confidence = 1 - float64(unpriced)/float64(total)
	}

	return Report{
		Deltas:               tokens,
		BaseDelta:            baseDelta,
		SurplusValue:         surplus,
		DeficitCost:          deficit,
		Raw:                  new(big.Int).Set(baseDelta),
		Gross:                gross,
		Net:                  net,
		IsProfitable:         net.Sign() > 0,
		AllBalancesPreserved: allPreserved,
		Confidence:           confidence,
	}
}

func (o *Oracle) resolveTokenMeta(ctx context.Context, addr common.Address, block string) (string, int) {
	symbolData, _ := abi.EncodeCall("symbol()")
	if out, err := o.chain.Call(ctx, addr, symbolData, block); err == nil {
		if s, ok := decodeString(out); ok && s != "" {
			decimals := o.resolveDecimals(ctx, addr, block)
			return s, decimals
		}
	}
	return common.Abbreviate(addr), 18
}

func (o *Oracle) resolveDecimals(ctx context.Context, addr common.Address, block string) int {
	decimalsData, _ := abi.EncodeCall("decimals()")
	out, err := o.chain.Call(ctx, addr, decimalsData, block)
	if err != nil || len(out) < 32 {
		return 18
	}
	uintType, _ := abi.NewType("uint8")
	decoded, err := abi.DecodeResult(out, []abi.Type{uintType})
	if err != nil {
		return 18
	}
	bi, ok := decoded[0].(*big.Int)
	if !ok {
		return 18
	}
	return int(bi.Int64())
}

// decodeString best-effort decodes a dynamic ABI string return value,
// tolerating non-standard (e.g. fixed bytes32) symbol() implementations.
func decodeString(out []byte) (string, bool) {
	stringType, _ := abi.NewType("string")
	decoded, err := abi.DecodeResult(out, []abi.Type{stringType})
	if err != nil {
		return "", false
	}
	s, ok := decoded[0].(string)
	return s, ok
}
