// Package proxy implements ProxyResolver: detecting a contract's proxy
// kind and following its implementation chain, per spec.md §4.5's ordered
// detection steps.
package proxy

import (
	"bytes"
	"context"
	"encoding/hex"

	"github.com/shoheigorila/a1agent/abi"
	"github.com/shoheigorila/a1agent/chainreader"
	"github.com/shoheigorila/a1agent/common"
)

// Kind classifies how (if at all) an address proxies to an implementation.
type Kind string

const (
	KindNone              Kind = "none"
	KindEIP1967Transparent Kind = "eip1967-transparent"
	KindEIP1967Beacon      Kind = "eip1967-beacon"
	KindEIP1167Minimal     Kind = "eip1167-minimal"
	KindUUPS              Kind = "uups"
	KindCustomSlot         Kind = "custom-slot"
	KindUnknown            Kind = "unknown"
)

// Info describes a detected proxy relationship.
type Info struct {
	Address     common.Address
	Kind        Kind
	Impl        common.Address
	Beacon      common.Address
	Admin       common.Address
	NestedChain []common.Address
	Method      string
	Confidence  float64
}

// EIP-1967 storage slots: keccak256("eip1967.proxy.implementation") - 1,
// keccak256("eip1967.proxy.admin") - 1, keccak256("eip1967.proxy.beacon") - 1.
var (
	eip1967ImplSlot   = common.HexToHash("0x360894a13ba1a3210667c828492db98dca3e2076cc3735a920a3ca505d382bbc")
	eip1967AdminSlot  = common.HexToHash("0xb53127684a568b3173ae13b9f8a6016e243e63b6e8ee1178d6a717850b5d6103")
	eip1967BeaconSlot = common.HexToHash("0xa3f0ad74e5423aebfd80d3ef4346578335a9a72aeaee59ff6cb3582b35133d50")
)

// customSlots lists other well-known protocol implementation slots
// (e.g. OpenZeppelin's legacy unstructured-storage slot).
var customSlots = []common.Hash{
	common.HexToHash("0x7050c9e0f4ca769c69bd3a8ef740bc37934f8e2c036e5a723fd8ee048ed3f8c3"), // legacy OZ implementation slot
}

var eip1167Prefix = mustHex("363d3d373d3d3d363d73")
var eip1167Suffix = mustHex("5af43d82803e903d91602b57fd5bf3")

func mustHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

var implGetterSignatures = []string{
	"implementation()",
	"getImplementation()",
	"masterCopy()",
	"childImplementation()",
}

// Resolver detects proxy chains over a ChainReader.
type Resolver struct {
	chain *chainreader.Reader
}

func New(chain *chainreader.Reader) *Resolver {
	return &Resolver{chain: chain}
}

const maxNestedDepth = 5

// Resolve detects addr's proxy kind at block, and if the caller requests
// nesting (nest=true), recurses into the implementation chain up to
// maxNestedDepth, per spec.md §4.5.
func (r *Resolver) Resolve(ctx context.Context, addr common.Address, block string, nest bool) (Info, error) {
	info, err := r.detectOnce(ctx, addr, block)
	if err != nil {
		return Info{}, err
	}
	info.Address = addr
	if info.Kind == KindNone || !nest {
		return info, nil
	}

	current := info.Impl
	chain := []common.Address{current}
	for depth := 1; depth < maxNestedDepth; depth++ {
		next, err := r.detectOnce(ctx, current, block)
		if err != nil || next.Kind == KindNone {
			break
		}
		current = next.Impl
		chain = append(chain, current)
	}
	info.NestedChain = chain
	info.Impl = current
	return info, nil
}

// detectOnce runs the ordered detection steps of spec.md §4.5 against a
// single address, stopping at the first positive match. Any RPC error on a
// step is treated as a fall-through, per the spec's fault-tolerance rule.
func (r *Resolver) detectOnce(ctx context.Context, addr common.Address, block string) (Info, error) {
	// Step 1: EIP-1967 transparent implementation slot.
	if impl, err := r.chain.Storage(ctx, addr, eip1967ImplSlot, block); err == nil && !impl.IsZero() {
		implAddr := common.BytesToAddress(impl[12:])
		info := Info{Kind: KindEIP1967Transparent, Impl: implAddr, Method: "EIP-1967 implementation slot", Confidence: 1.0}
		if admin, err := r.chain.Storage(ctx, addr, eip1967AdminSlot, block); err == nil && !admin.IsZero() {
			info.Admin = common.BytesToAddress(admin[12:])
		}
		return info, nil
	}

	// Step 2: EIP-1967 beacon slot.
	if beacon, err := r.chain.Storage(ctx, addr, eip1967BeaconSlot, block); err == nil && !beacon.IsZero() {
		beaconAddr := common.BytesToAddress(beacon[12:])
		info := Info{Kind: KindEIP1967Beacon, Beacon: beaconAddr, Method: "EIP-1967 beacon slot", Confidence: 1.0}
		if impl, err := r.callAddressGetter(ctx, beaconAddr, "implementation()", block); err == nil && !impl.IsZero() {
			info.Impl = impl
		}
		return info, nil
	}

	// Step 3: EIP-1167 minimal-proxy bytecode.
	if code, err := r.chain.Code(ctx, addr, block); err == nil {
		if impl, ok := matchMinimalProxy(code); ok {
			return Info{Kind: KindEIP1167Minimal, Impl: impl, Method: "EIP-1167 minimal proxy bytecode", Confidence: 1.0}, nil
		}
	}

	// Step 4: known custom slots.
	for _, slot := range customSlots {
		if impl, err := r.chain.Storage(ctx, addr, slot, block); err == nil && !impl.IsZero() {
			implAddr := common.BytesToAddress(impl[12:])
			return Info{Kind: KindCustomSlot, Impl: implAddr, Method: "custom implementation slot", Confidence: 0.8}, nil
		}
	}

	// Step 5: implementation getter functions.
	for _, sig := range implGetterSignatures {
		impl, err := r.callAddressGetter(ctx, addr, sig, block)
		if err != nil || impl.IsZero() {
			continue
		}
		code, err := r.chain.Code(ctx, impl, block)
		if err != nil || len(code) == 0 {
			continue
		}
		return Info{Kind: KindUUPS, Impl: impl, Method: sig, Confidence: 0.7}, nil
	}

	return Info{Kind: KindNone}, nil
}

func (r *Resolver) callAddressGetter(ctx context.Context, addr common.Address, sig string, block string) (common.Address, error) {
	data, err := abi.EncodeCall(sig)
	if err != nil {
		return common.Address{}, err
	}
	out, err := r.chain.Call(ctx, addr, data, block)
	if err != nil {
		return common.Address{}, err
	}
	if len(out) < 32 {
		return common.Address{}, nil
	}
	return common.BytesToAddress(out[12:32]), nil
}

// matchMinimalProxy checks code against the exact EIP-1167 prefix/suffix
// pattern (45 bytes total) and, on match, returns the embedded
// implementation address, per spec.md §4.5 step 3 and T7.
func matchMinimalProxy(code []byte) (common.Address, bool) {
	const total = 45 // len(prefix) + 20 + len(suffix) == 10 + 20 + 15
	if len(code) < total {
		return common.Address{}, false
	}
	if !bytes.Equal(code[:len(eip1167Prefix)], eip1167Prefix) {
		return common.Address{}, false
	}
	suffixStart := len(eip1167Prefix) + 20
	if !bytes.Equal(code[suffixStart:suffixStart+len(eip1167Suffix)], eip1167Suffix) {
		return common.Address{}, false
	}
	return common.BytesToAddress(code[len(eip1167Prefix):suffixStart]), true
}
