// Package dex implements DexQuoter: multi-DEX, multi-hop best-quote
// discovery for token swaps, per spec.md §4.7.
package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/shoheigorila/a1agent/abi"
	"github.com/shoheigorila/a1agent/chainreader"
	"github.com/shoheigorila/a1agent/chainspec"
	"github.com/shoheigorila/a1agent/common"
)

// Kind distinguishes exact-in from exact-out quoting.
type Kind int

const (
	ExactIn Kind = iota
	ExactOut
)

// Quote is the best-known swap quote along a concrete path.
type Quote struct {
	TokenIn        common.Address
	TokenOut       common.Address
	AmountIn       *big.Int
	AmountOut      *big.Int
	Path           []common.Address
	Dex            string
	PriceImpact    float64
	EffectivePrice float64
}

// NoQuoteError is returned when no configured DEX yields a usable quote.
type NoQuoteError struct {
	TokenIn, TokenOut common.Address
}

func (e *NoQuoteError) Error() string {
	return fmt.Sprintf("dex: no quote available for %s -> %s", e.TokenIn.Hex(), e.TokenOut.Hex())
}

// Reserves is the result of pairReserves.
type Reserves struct {
	ReserveA, ReserveB *big.Int
	BlockTimestamp     uint64
}

// Quoter discovers best-quote paths across a chain's configured DEXes.
type Quoter struct {
	chain *chainreader.Reader
	spec  chainspec.ChainSpec
}

func New(chain *chainreader.Reader, spec chainspec.ChainSpec) *Quoter {
	return &Quoter{chain: chain, spec: spec}
}

func (q *Quoter) candidatePaths(tokenIn, tokenOut common.Address) [][]common.Address {
	paths := [][]common.Address{{tokenIn, tokenOut}}
	for _, k := range q.spec.Intermediates {
		if k.Equal(tokenIn) || k.Equal(tokenOut) {
			continue
		}
		paths = append(paths, []common.Address{tokenIn, k, tokenOut})
	}
	return paths
}

// Quote finds the best exact-in quote (maximizing amountOut) across every
// configured DEX and candidate path.
func (q *Quoter) Quote(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int, block string) (*Quote, error) {
	return q.bestQuote(ctx, ExactIn, tokenIn, tokenOut, amountIn, block)
}

// QuoteExactOut finds the best exact-out quote (minimizing amountIn).
func (q *Quoter) QuoteExactOut(ctx context.Context, tokenIn, tokenOut common.Address, amountOut *big.Int, block string) (*Quote, error) {
	return q.bestQuote(ctx, ExactOut, tokenIn, tokenOut, amountOut, block)
}

func (q *Quoter) bestQuote(ctx context.Context, kind Kind, tokenIn, tokenOut common.Address, amount *big.Int, block string) (*Quote, error) {
	var best *Quote
	for _, d := range q.spec.Dexes {
		for _, path := range q.candidatePaths(tokenIn, tokenOut) {
			var amounts []*big.Int
			var err error
			if kind == ExactIn {
				amounts, err = q.getAmountsOut(ctx, d.Router, amount, path, block)
			} else {
				amounts, err = q.getAmountsIn(ctx, d.Router, amount, path, block)
			}
			if err != nil || len(amounts) != len(path) {
				continue
			}
			var candidate *Quote
			if kind == ExactIn {
				candidate = &Quote{
					TokenIn: tokenIn, TokenOut: tokenOut,
					AmountIn: amount, AmountOut: amounts[len(amounts)-1],
					Path: path, Dex: d.Name,
					PriceImpact: priceImpact(d.FeeBps, len(path)),
				}
			} else {
				candidate = &Quote{
					TokenIn: tokenIn, TokenOut: tokenOut,
					AmountIn: amounts[0], AmountOut: amount,
					Path: path, Dex: d.Name,
					PriceImpact: priceImpact(d.FeeBps, len(path)),
				}
			}
			if candidate.AmountIn.Sign() > 0 {
				ai, _ := new(big.Float).SetInt(candidate.AmountIn).Float64()
				ao, _ := new(big.Float).SetInt(candidate.AmountOut).Float64()
				candidate.EffectivePrice = ao / ai
			}
			if best == nil || better(kind, candidate, best) {
				best = candidate
			}
		}
	}
	if best == nil {
		return nil, &NoQuoteError{TokenIn: tokenIn, TokenOut: tokenOut}
	}
	return best, nil
}

func better(kind Kind, candidate, current *Quote) bool {
	if kind == ExactIn {
		return candidate.AmountOut.Cmp(current.AmountOut) > 0
	}
	return candidate.AmountIn.Cmp(current.AmountIn) < 0
}

// priceImpact approximates impact as feeBps/10000 * len(path), per spec.md §4.7.
func priceImpact(feeBps int, pathLen int) float64 {
	return float64(feeBps) / 10000 * float64(pathLen)
}

func (q *Quoter) getAmountsOut(ctx context.Context, router common.Address, amountIn *big.Int, path []common.Address, block string) ([]*big.Int, error) {
	return q.callAmounts(ctx, router, "getAmountsOut(uint256,address[])", amountIn, path, block)
}

func (q *Quoter) getAmountsIn(ctx context.Context, router common.Address, amountOut *big.Int, path []common.Address, block string) ([]*big.Int, error) {
	return q.callAmounts(ctx, router, "getAmountsIn(uint256,address[])", amountOut, path, block)
}

func (q *Quoter) callAmounts(ctx context.Context, router common.Address, sig string, amount *big.Int, path []common.Address, block string) ([]*big.Int, error) {
	pathArg := make([]interface{}, len(path))
	for i, p := range path {
		pathArg[i] = p
	}
	data, err := abi.EncodeCall(sig, amount, pathArg)
	if err != nil {
		return nil, err
	}
	out, err := q.chain.Call(ctx, router, data, block)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("dex: empty result from %s", sig)
	}
	sliceType, err := abi.NewType("uint256[]")
	if err != nil {
		return nil, err
	}
	decoded, err := abi.DecodeResult(out, []abi.Type{sliceType})
	if err != nil {
		return nil, err
	}
	rawAmounts, ok := decoded[0].([]interface{})
	if !ok {
		return nil, fmt.Errorf("dex: unexpected decode shape for %s", sig)
	}
	amounts := make([]*big.Int, len(rawAmounts))
	for i, a := range rawAmounts {
		bi, ok := a.(*big.Int)
		if !ok {
			return nil, fmt.Errorf("dex: unexpected element type in amounts array")
		}
		amounts[i] = bi
	}
	return amounts, nil
}

// PairReserves finds a pair through dexName's factory (or the first
// configured DEX if dexName is empty) and returns its reserves, oriented
// by token0() per spec.md §4.7.
func (q *Quoter) PairReserves(ctx context.Context, a, b common.Address, dexName string, block string) (*Reserves, error) {
	d, err := q.resolveDex(dexName)
	if err != nil {
		return nil, err
	}
	pairData, err := abi.EncodeCall("getPair(address,address)", a, b)
	if err != nil {
		return nil, err
	}
	out, err := q.chain.Call(ctx, d.Factory, pairData, block)
	if err != nil {
		return nil, err
	}
	addrType, _ := abi.NewType("address")
	decoded, err := abi.DecodeResult(out, []abi.Type{addrType})
	if err != nil {
		return nil, err
	}
	pair := decoded[0].(common.Address)
	if pair.IsZero() {
		return nil, fmt.Errorf("dex: no pair for %s/%s on %s", a.Hex(), b.Hex(), d.Name)
	}

	token0Data, err := abi.EncodeCall("token0()")
	if err != nil {
		return nil, err
	}
	t0Out, err := q.chain.Call(ctx, pair, token0Data, block)
	if err != nil {
		return nil, err
	}
	t0Decoded, err := abi.DecodeResult(t0Out, []abi.Type{addrType})
	if err != nil {
		return nil, err
	}
	token0 := t0Decoded[0].(common.Address)

	reservesData, err := abi.EncodeCall("getReserves()")
	if err != nil {
		return nil, err
	}
	reservesOut, err := q.chain.Call(ctx, pair, reservesData, block)
	if err != nil {
		return nil, err
	}
	u112, _ := abi.NewType("uint112")
	u32, _ := abi.NewType("uint32")
	reservesDecoded, err := abi.DecodeResult(reservesOut, []abi.Type{u112, u112, u32})
	if err != nil {
		return nil, err
	}
	reserve0 := reservesDecoded[0].(*big.Int)
	reserve1 := reservesDecoded[1].(*big.Int)
	ts := reservesDecoded[2].(*big.Int).Uint64()

	if token0.Equal(a) {
		return &Reserves{ReserveA: reserve0, ReserveB: reserve1, BlockTimestamp: ts}, nil
	}
	return &Reserves{ReserveA: reserve1, ReserveB: reserve0, BlockTimestamp: ts}, nil
}

func (q *Quoter) resolveDex(name string) (chainspec.Dex, error) {
	if name == "" {
		if len(q.spec.Dexes) == 0 {
			return chainspec.Dex{}, fmt.Errorf("dex: no configured dexes for chain %d", q.spec.ChainID)
		}
		return q.spec.Dexes[0], nil
	}
	for _, d := range q.spec.Dexes {
		if d.Name == name {
			return d, nil
		}
	}
	return chainspec.Dex{}, fmt.Errorf("dex: unknown dex %q", name)
}
