// Package chainspec holds the per-chain constants (base token, routing
// intermediates, known DEX routers) that DexQuoter and ProfitOracle need
// and that spec.md §6 requires a hard failure for on an unknown chain id.
package chainspec

import (
	"fmt"

	"github.com/shoheigorila/a1agent/common"
)

// Dex describes one configured router/factory pair on a chain.
type Dex struct {
	Name    string
	Router  common.Address
	Factory common.Address
	FeeBps  int
}

// ChainSpec is the process-lifetime, read-only configuration for one chain.
type ChainSpec struct {
	ChainID       uint64
	BaseToken     common.Address
	BaseSymbol    string
	Intermediates []common.Address
	Dexes         []Dex
}

// Registry is a read-only, concurrency-safe lookup table keyed by chain id.
type Registry struct {
	specs map[uint64]ChainSpec
}

func NewRegistry(specs ...ChainSpec) *Registry {
	r := &Registry{specs: make(map[uint64]ChainSpec, len(specs))}
	for _, s := range specs {
		r.specs[s.ChainID] = s
	}
	return r
}

// ErrUnknownChain is returned by Get for any chain id not registered.
type ErrUnknownChain uint64

func (e ErrUnknownChain) Error() string { return fmt.Sprintf("unknown chain id %d", uint64(e)) }

// Get returns the ChainSpec for id, or ErrUnknownChain if absent.
func (r *Registry) Get(id uint64) (ChainSpec, error) {
	s, ok := r.specs[id]
	if !ok {
		return ChainSpec{}, ErrUnknownChain(id)
	}
	return s, nil
}

// Mainnet is the default Ethereum mainnet chain spec: WETH base token, the
// usual stablecoin/WETH intermediates, and the two most liquid router
// families.
func Mainnet() ChainSpec {
	return ChainSpec{
		ChainID:    1,
		BaseToken:  common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"), // WETH
		BaseSymbol: "WETH",
		Intermediates: []common.Address{
			common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"), // WETH
			common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), // USDC
			common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7"), // USDT
			common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F"), // DAI
		},
		Dexes: []Dex{
			{
				Name:    "uniswap-v2",
				Router:  common.HexToAddress("0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D"),
				Factory: common.HexToAddress("0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f"),
				FeeBps:  30,
			},
			{
				Name:    "sushiswap",
				Router:  common.HexToAddress("0xd9e1cE17f2641f24aE83637ab66a2cca9C378B9F"),
				Factory: common.HexToAddress("0xC0AEe478e3658e2610c5F7A4A2E1777cE9e4f2Ac"),
				FeeBps:  30,
			},
		},
	}
}
