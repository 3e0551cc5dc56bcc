// Package crypto provides the hash primitives the rest of the agent needs:
// Keccak-256 for ABI selectors and EIP-55 address checksums.
package crypto

import (
	"golang.org/x/crypto/sha3"
)

// Keccak256 returns the Keccak-256 digest of the concatenation of data.
func Keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, b := range data {
		h.Write(b)
	}
	return h.Sum(nil)
}

// Keccak256Hash is like Keccak256 but returns a fixed 32-byte array.
func Keccak256Hash(data ...[]byte) (h [32]byte) {
	d := sha3.NewLegacyKeccak256()
	for _, b := range data {
		d.Write(b)
	}
	d.Sum(h[:0])
	return h
}
