// Package common holds the value types shared across every layer of the
// agent: Address, Hash, and the byte-slice helpers ABI encoding and RPC
// decoding both lean on.
package common

import (
	"encoding/hex"
	"fmt"
	"reflect"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shoheigorila/a1agent/crypto"
)

const (
	AddressLength = 20
	HashLength    = 32
)

// Address is a 20-byte EVM account identifier. The zero Address is the
// native-currency pseudo-token used throughout the fork-executor balance
// tracking.
type Address [AddressLength]byte

// BytesToAddress sets Address to the value of b, left-padding a short b
// and keeping only the rightmost 20 bytes of a long one.
func BytesToAddress(b []byte) Address {
	var a Address
	a.SetBytes(b)
	return a
}

// HexToAddress returns Address with byte values of s, which may be prefixed
// with 0x and need not be checksummed.
func HexToAddress(s string) Address { return BytesToAddress(FromHex(s)) }

// IsHexAddress verifies whether s is a valid hex-encoded address, with or
// without the 0x prefix.
func IsHexAddress(s string) bool {
	if has0xPrefix(s) {
		s = s[2:]
	}
	return len(s) == 2*AddressLength && isHex(s)
}

func (a *Address) SetBytes(b []byte) {
	if len(b) > len(a) {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
}

// Bytes returns the raw 20-byte address value.
func (a Address) Bytes() []byte { return a[:] }

// Equal reports whether a and b denote the same account, independent of
// checksum casing (the comparison is always over the raw bytes).
func (a Address) Equal(b Address) bool { return a == b }

// IsZero reports whether a is the all-zero address (the native-currency
// pseudo-token sentinel).
func (a Address) IsZero() bool { return a == (Address{}) }

// Hex returns an EIP-55 checksummed hex string of the address.
func (a Address) Hex() string { return string(a.checksumHex()) }

// String implements fmt.Stringer, returning the checksummed address.
func (a Address) String() string { return a.Hex() }

func (a Address) checksumHex() []byte {
	buf := make([]byte, len(a)*2+2)
	copy(buf, "0x")
	hex.Encode(buf[2:], a[:])

	sha := crypto.Keccak256(buf[2:])
	for i := 2; i < len(buf); i++ {
		hashByte := sha[(i-2)/2]
		if i%2 == 0 {
			hashByte = hashByte >> 4
		} else {
			hashByte &= 0xf
		}
		if buf[i] > '9' && hashByte > 7 {
			buf[i] -= 32
		}
	}
	return buf
}

// Hash is a 32-byte value: storage slots, topics, creation tx hashes.
type Hash [HashLength]byte

func BytesToHash(b []byte) Hash {
	var h Hash
	h.SetBytes(b)
	return h
}

func HexToHash(s string) Hash { return BytesToHash(FromHex(s)) }

func (h *Hash) SetBytes(b []byte) {
	if len(b) > len(h) {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
}

func (h Hash) Bytes() []byte { return h[:] }

// Big interprets h's bytes as a big-endian 256-bit unsigned integer, the
// natural reading of a storage slot or topic as a numeric value.
func (h Hash) Big() *uint256.Int { return new(uint256.Int).SetBytes32(h[:]) }

func (h Hash) Hex() string { return Encode(h[:]) }

func (h Hash) String() string { return h.Hex() }

// IsZero reports whether h is the all-zero slot value, i.e. an unset proxy
// storage slot.
func (h Hash) IsZero() bool { return h == (Hash{}) }

func has0xPrefix(str string) bool {
	return len(str) >= 2 && str[0] == '0' && (str[1] == 'x' || str[1] == 'X')
}

func isHexCharacter(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

func isHex(str string) bool {
	if len(str)%2 != 0 {
		return false
	}
	for _, c := range []byte(str) {
		if !isHexCharacter(c) {
			return false
		}
	}
	return true
}

// FromHex returns the bytes represented by s, stripping a leading 0x/0X if
// present and zero-padding an odd-length remainder.
func FromHex(s string) []byte {
	if has0xPrefix(s) {
		s = s[2:]
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	return Hex2Bytes(s)
}

func Hex2Bytes(str string) []byte {
	h, _ := hex.DecodeString(str)
	return h
}

// Encode returns the 0x-prefixed hex representation of b.
func Encode(b []byte) string { return "0x" + hex.EncodeToString(b) }

// CopyBytes returns an exact copy of the provided byte slice.
func CopyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}

// LeftPadBytes zero-pads slice to the left up to length l.
func LeftPadBytes(slice []byte, l int) []byte {
	if l <= len(slice) {
		return slice
	}
	padded := make([]byte, l)
	copy(padded[l-len(slice):], slice)
	return padded
}

// RightPadBytes zero-pads slice to the right up to length l.
func RightPadBytes(slice []byte, l int) []byte {
	if l <= len(slice) {
		return slice
	}
	padded := make([]byte, l)
	copy(padded, slice)
	return padded
}

// TrimLeftZeroes returns a subslice of b without leading zero bytes.
func TrimLeftZeroes(b []byte) []byte {
	idx := 0
	for ; idx < len(b); idx++ {
		if b[idx] != 0 {
			break
		}
	}
	return b[idx:]
}

// ParseHexOrDecimal64 parses s as a hex (0x-prefixed) or decimal uint64.
func ParseHexOrDecimal64(s string) (uint64, error) {
	if has0xPrefix(s) {
		var v uint64
		if _, err := fmt.Sscanf(s, "0x%x", &v); err != nil {
			return 0, err
		}
		return v, nil
	}
	var v uint64
	if _, err := fmt.Sscanf(s, "%d", &v); err != nil {
		return 0, err
	}
	return v, nil
}

// IsZeroValue reports whether v is the zero value of its type; used when
// normalizing absent ABI outputs.
func IsZeroValue(v interface{}) bool {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return true
	}
	return rv.IsZero()
}

// Abbreviate returns an 8-character uppercase abbreviation of an address,
// used as a fallback token symbol when symbol() reverts.
func Abbreviate(a Address) string {
	h := a.Hex()
	h = strings.TrimPrefix(h, "0x")
	if len(h) < 8 {
		return strings.ToUpper(h)
	}
	return strings.ToUpper(h[:8])
}
