package constructor

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/shoheigorila/a1agent/common"
)

func word32Addr(addr common.Address) []byte {
	out := make([]byte, word)
	copy(out[12:], addr[:])
	return out
}

func word32Uint(v int64) []byte {
	out := make([]byte, word)
	big.NewInt(v).FillBytes(out)
	return out
}

func TestExtractRawArgsAligned(t *testing.T) {
	deployedCode := make([]byte, 50) // not word-aligned
	argBlob := append(word32Addr(common.HexToAddress("0x01")), word32Uint(42)...)

	// initcode padded to the next 32-byte boundary past deployedCode's length.
	initcodeLen := ((len(deployedCode) + word - 1) / word) * word
	creationInput := append(make([]byte, initcodeLen), argBlob...)

	got := extractRawArgs(creationInput, deployedCode)
	if !bytes.Equal(got, argBlob) {
		t.Fatalf("extractRawArgs mismatch: got %x want %x", got, argBlob)
	}
}

func TestHeuristicDecodeClassifiesWords(t *testing.T) {
	blob := append(append(append(
		word32Addr(common.HexToAddress("0x1111111111111111111111111111111111111111")),
		word32Uint(1)...), // bool(true)
		word32Uint(42)...), // uint8
		word32Uint(9999)...) // uint256 (< 10001)

	params := heuristicDecode(blob)
	if len(params) != 4 {
		t.Fatalf("expected 4 params, got %d", len(params))
	}
	if params[0].Type != "address" {
		t.Fatalf("expected address, got %s", params[0].Type)
	}
	if params[1].Type != "bool" {
		t.Fatalf("expected bool, got %s", params[1].Type)
	}
	if params[2].Type != "uint8" {
		t.Fatalf("expected uint8, got %s", params[2].Type)
	}
	if params[3].Type != "uint256" {
		t.Fatalf("expected uint256, got %s", params[3].Type)
	}
}

func TestHeuristicDecodeIdempotent(t *testing.T) {
	blob := append(word32Addr(common.HexToAddress("0x01")), word32Uint(7)...)
	p1 := heuristicDecode(blob)
	p2 := heuristicDecode(blob)
	if len(p1) != len(p2) {
		t.Fatalf("expected idempotent length, got %d vs %d", len(p1), len(p2))
	}
	for i := range p1 {
		if p1[i].RawHex != p2[i].RawHex || p1[i].Type != p2[i].Type {
			t.Fatalf("expected idempotent params at %d: %+v vs %+v", i, p1[i], p2[i])
		}
	}
}

func TestClassifyWordZeroIsUint256Zero(t *testing.T) {
	p := classifyWord(make([]byte, word))
	if p.Type != "uint256" {
		t.Fatalf("expected uint256, got %s", p.Type)
	}
}
