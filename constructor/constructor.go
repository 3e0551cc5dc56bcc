// Package constructor implements ConstructorDecoder: extracting and
// decoding constructor arguments from creation bytecode, per spec.md §4.6.
package constructor

import (
	"context"
	"math/big"

	"github.com/shoheigorila/a1agent/abi"
	"github.com/shoheigorila/a1agent/chainreader"
	"github.com/shoheigorila/a1agent/common"
)

const word = 32

// Param is one decoded constructor argument.
type Param struct {
	Name   string
	Type   string
	Value  interface{}
	RawHex string
}

// Info is the decoded result for one address.
type Info struct {
	Address        common.Address
	CreationTx     common.Hash
	Deployer       common.Address
	Block          string
	RawArgs        []byte
	Params         []Param
	DecodedWithABI bool
}

// Decoder extracts constructor arguments given a creation transaction and
// the currently deployed code.
type Decoder struct {
	chain *chainreader.Reader
}

func New(chain *chainreader.Reader) *Decoder {
	return &Decoder{chain: chain}
}

// Decode fetches addr's creation transaction, derives the raw constructor
// argument blob, and decodes it using abiCtor's input types if provided
// (an ABI constructor entry), falling back to the heuristic decoder
// otherwise. Decoding itself never fails: when ABI decoding errors, the
// heuristic decoder runs, rawArgs is preserved and DecodedWithABI is false.
// An error is returned only when the creation transaction cannot be fetched.
func (d *Decoder) Decode(ctx context.Context, addr common.Address, creationTxHash common.Hash, abiCtorInputTypes []abi.Type) (Info, error) {
	tx, err := d.chain.TransactionByHash(ctx, creationTxHash)
	if err != nil {
		return Info{Address: addr}, err
	}

	deployedCode, err := d.chain.Code(ctx, addr, chainreader.BlockLatest)
	if err != nil {
		deployedCode = nil
	}

	rawArgs := extractRawArgs(tx.Input, deployedCode)

	info := Info{
		Address:    addr,
		CreationTx: creationTxHash,
		Deployer:   tx.From,
		Block:      tx.Block,
		RawArgs:    rawArgs,
	}

	if len(abiCtorInputTypes) > 0 {
		if decoded, err := abi.DecodeResult(rawArgs, abiCtorInputTypes); err == nil {
			info.Params = paramsFromDecoded(abiCtorInputTypes, decoded, rawArgs)
			info.DecodedWithABI = true
			return info, nil
		}
	}

	info.Params = heuristicDecode(rawArgs)
	info.DecodedWithABI = false
	return info, nil
}

func paramsFromDecoded(types []abi.Type, decoded []interface{}, rawArgs []byte) []Param {
	out := make([]Param, len(types))
	for i, t := range types {
		rawHex := ""
		if (i+1)*word <= len(rawArgs) {
			rawHex = hexOf(rawArgs[i*word : (i+1)*word])
		}
		out[i] = Param{Type: t.String(), Value: decoded[i], RawHex: rawHex}
	}
	return out
}

// extractRawArgs implements spec.md §4.6's backward 32-byte-aligned scan:
// the creation transaction's input is the initcode followed by the
// constructor argument blob; scanning backward past the deployed code's
// length, in aligned 32-byte chunks, until the remaining tail is nonempty
// and 32-byte aligned isolates that blob.
func extractRawArgs(creationInput, deployedCode []byte) []byte {
	if len(creationInput) == 0 {
		return nil
	}
	// The deployed code's length lower-bounds how much of the input is
	// pure initcode; the first 32-byte-aligned boundary at-or-after that
	// point is where constructor argument data begins.
	minInitcodeLen := len(deployedCode)
	if minInitcodeLen > len(creationInput) {
		minInitcodeLen = len(creationInput)
	}
	cut := ((minInitcodeLen + word - 1) / word) * word
	for cut > len(creationInput) {
		cut -= word
	}
	tail := creationInput[cut:]
	if len(tail)%word != 0 {
		return nil
	}
	return tail
}

// heuristicDecode classifies each 32-byte word per spec.md §4.6's rules.
func heuristicDecode(blob []byte) []Param {
	var out []Param
	for off := 0; off+word <= len(blob); off += word {
		w := blob[off : off+word]
		out = append(out, classifyWord(w))
	}
	return out
}

func classifyWord(w []byte) Param {
	rawHex := hexOf(w)
	leadingZero24 := allZero(w[:12])
	tailNonzero := !allZero(w[12:])

	v := new(big.Int).SetBytes(w)
	switch {
	case v.Sign() == 0:
		return Param{Type: "uint256", Value: big.NewInt(0), RawHex: rawHex}
	case v.Cmp(big.NewInt(1)) == 0:
		return Param{Type: "bool", Value: true, RawHex: rawHex}
	case v.Cmp(big.NewInt(256)) < 0:
		return Param{Type: "uint8", Value: v, RawHex: rawHex}
	case v.Cmp(big.NewInt(10001)) < 0:
		return Param{Type: "uint256", Value: v, RawHex: rawHex}
	case leadingZero24 && tailNonzero:
		return Param{Type: "address", Value: common.BytesToAddress(w[12:]), RawHex: rawHex}
	default:
		return Param{Type: "uint256", Value: v, RawHex: rawHex}
	}
}

func allZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

func hexOf(b []byte) string {
	const hexdigits = "0123456789abcdef"
	out := make([]byte, 2+len(b)*2)
	out[0], out[1] = '0', 'x'
	for i, c := range b {
		out[2+i*2] = hexdigits[c>>4]
		out[2+i*2+1] = hexdigits[c&0xf]
	}
	return string(out)
}
