package crypto

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeccak256Empty(t *testing.T) {
	got := Keccak256()
	want, _ := hex.DecodeString("c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a47")
	assert.Equal(t, hex.EncodeToString(want), hex.EncodeToString(got))
}

func TestKeccak256Hello(t *testing.T) {
	got := Keccak256([]byte("hello"))
	want, _ := hex.DecodeString("1c8aff950685c2ed4bc3174f3472287b56d9517b9c948127319a09a7a36deac")
	assert.Equal(t, hex.EncodeToString(want), hex.EncodeToString(got))
}

func TestKeccak256HashMatchesKeccak256(t *testing.T) {
	h := Keccak256Hash([]byte("a"), []byte("b"))
	flat := Keccak256([]byte("a"), []byte("b"))
	assert.Equal(t, hex.EncodeToString(flat), hex.EncodeToString(h[:]))
}
