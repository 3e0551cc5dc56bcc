// Package abi implements ABICodec: function-selector computation, a
// minimal ABI type/argument system sufficient for this domain's needs,
// and a per-address cache of selector-to-signature mappings.
package abi

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/shoheigorila/a1agent/common"
	"github.com/shoheigorila/a1agent/crypto"
)

// Kind enumerates the base ABI types this codec understands. Grounded on
// the teacher's accounts/abi.Type shape, trimmed to the subset this domain
// needs: address, bool, fixed-width (u)int, bytesN, dynamic bytes/string,
// and arrays/slices of the above.
type Kind int

const (
	AddressKind Kind = iota
	BoolKind
	UintKind
	IntKind
	FixedBytesKind
	BytesKind
	StringKind
	SliceKind
	ArrayKind
)

// Type describes one ABI parameter type.
type Type struct {
	Kind  Kind
	Size  int   // bit-width for (u)int, byte-width for fixedBytes, array length for Array
	Elem  *Type // element type for Slice/Array
	raw   string
}

func (t Type) String() string { return t.raw }

var arrayTypeRe = regexp.MustCompile(`^(.*)\[(\d*)\]$`)

// NewType parses a Solidity type string such as "uint256", "address[]",
// or "bytes32[4]".
func NewType(s string) (Type, error) {
	if m := arrayTypeRe.FindStringSubmatch(s); m != nil {
		elem, err := NewType(m[1])
		if err != nil {
			return Type{}, err
		}
		if m[2] == "" {
			return Type{Kind: SliceKind, Elem: &elem, raw: s}, nil
		}
		n, err := strconv.Atoi(m[2])
		if err != nil {
			return Type{}, fmt.Errorf("abi: bad array size in %q: %w", s, err)
		}
		return Type{Kind: ArrayKind, Size: n, Elem: &elem, raw: s}, nil
	}

	switch {
	case s == "address":
		return Type{Kind: AddressKind, Size: 20, raw: s}, nil
	case s == "bool":
		return Type{Kind: BoolKind, raw: s}, nil
	case s == "string":
		return Type{Kind: StringKind, raw: s}, nil
	case s == "bytes":
		return Type{Kind: BytesKind, raw: s}, nil
	case strings.HasPrefix(s, "uint"):
		size := 256
		if s != "uint" {
			n, err := strconv.Atoi(s[4:])
			if err != nil {
				return Type{}, fmt.Errorf("abi: bad uint size in %q: %w", s, err)
			}
			size = n
		}
		return Type{Kind: UintKind, Size: size, raw: s}, nil
	case strings.HasPrefix(s, "int"):
		size := 256
		if s != "int" {
			n, err := strconv.Atoi(s[3:])
			if err != nil {
				return Type{}, fmt.Errorf("abi: bad int size in %q: %w", s, err)
			}
			size = n
		}
		return Type{Kind: IntKind, Size: size, raw: s}, nil
	case strings.HasPrefix(s, "bytes"):
		n, err := strconv.Atoi(s[5:])
		if err != nil {
			return Type{}, fmt.Errorf("abi: bad bytesN size in %q: %w", s, err)
		}
		return Type{Kind: FixedBytesKind, Size: n, raw: s}, nil
	}
	return Type{}, fmt.Errorf("abi: unsupported type %q", s)
}

// Selector returns the 4-byte function selector for sig, e.g. "transfer(address,uint256)".
func Selector(sig string) [4]byte {
	h := crypto.Keccak256([]byte(sig))
	var out [4]byte
	copy(out[:], h[:4])
	return out
}

// builtinSelectors lists well-known selectors; init checks each one against
// Selector's keccak-256 result. Selector does not consult this table: every
// call hashes its signature.
var builtinSelectors = map[string]string{
	"name()":                   "06fdde03",
	"symbol()":                 "95d89b41",
	"decimals()":                "313ce567",
	"totalSupply()":            "18160ddd",
	"balanceOf(address)":       "70a08231",
	"getReserves()":            "0902f1ac",
	"token0()":                 "0dfe1681",
	"token1()":                 "d21220a7",
	"factory()":                "c45a0155",
	"WETH()":                   "ad5c4648",
	"getAmountsOut(uint256,address[])": "d06ca61f",
	"getAmountsIn(uint256,address[])":  "1f00ca74",
	"getPair(address,address)":         "e6a43905",
	"implementation()":         "5c60da1b",
	"getImplementation()":      "aaf10f42",
	"masterCopy()":             "a619486e",
	"childImplementation()":    "8f283970",
}

func init() {
	for sig, wantHex := range builtinSelectors {
		got := Selector(sig)
		if fmt.Sprintf("%x", got) != wantHex {
			panic(fmt.Sprintf("abi: builtin selector mismatch for %s: got %x want %s", sig, got, wantHex))
		}
	}
}

// signatureRe splits "name(t1,t2,...)" into name and the comma-joined type list.
var signatureRe = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\((.*)\)$`)

// ParseSignature splits a signature string into its function name and
// argument types.
func ParseSignature(sig string) (name string, types []Type, err error) {
	m := signatureRe.FindStringSubmatch(strings.TrimSpace(sig))
	if m == nil {
		return "", nil, fmt.Errorf("abi: malformed signature %q", sig)
	}
	name = m[1]
	typeList := splitTopLevelCommas(m[2])
	types = make([]Type, 0, len(typeList))
	for _, ts := range typeList {
		if ts == "" {
			continue
		}
		t, err := NewType(ts)
		if err != nil {
			return "", nil, err
		}
		types = append(types, t)
	}
	return name, types, nil
}

func splitTopLevelCommas(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, s[start:])
	return out
}

const word = 32

// EncodeCall ABI-encodes sig's selector followed by args packed against the
// signature's parsed argument types. Dynamic types (string, bytes, slices)
// are supported with the standard head/tail encoding; arguments are
// supplied as args in order.
func EncodeCall(sig string, args ...interface{}) ([]byte, error) {
	_, types, err := ParseSignature(sig)
	if err != nil {
		return nil, err
	}
	if len(types) != len(args) {
		return nil, fmt.Errorf("abi: encodeCall %q expects %d args, got %d", sig, len(types), len(args))
	}
	sel := Selector(sig)
	packed, err := packArgs(types, args)
	if err != nil {
		return nil, err
	}
	return append(sel[:], packed...), nil
}

func packArgs(types []Type, args []interface{}) ([]byte, error) {
	heads := make([][]byte, len(types))
	tails := make([][]byte, len(types))
	headSize := 0
	for i, t := range types {
		if isDynamic(t) {
			headSize += word
		} else {
			enc, err := encodeStatic(t, args[i])
			if err != nil {
				return nil, err
			}
			heads[i] = enc
			headSize += len(enc)
		}
	}
	var out []byte
	tailOffset := headSize
	for i, t := range types {
		if isDynamic(t) {
			tail, err := encodeDynamic(t, args[i])
			if err != nil {
				return nil, err
			}
			tails[i] = tail
			heads[i] = encodeUint(big.NewInt(int64(tailOffset)))
			tailOffset += len(tail)
		}
	}
	for _, h := range heads {
		out = append(out, h...)
	}
	for _, tl := range tails {
		out = append(out, tl...)
	}
	return out, nil
}

func isDynamic(t Type) bool {
	switch t.Kind {
	case BytesKind, StringKind, SliceKind:
		return true
	case ArrayKind:
		return isDynamic(*t.Elem)
	default:
		return false
	}
}

func encodeUint(v *big.Int) []byte {
	out := make([]byte, word)
	b := v.Bytes()
	copy(out[word-len(b):], b)
	return out
}

func encodeStatic(t Type, v interface{}) ([]byte, error) {
	switch t.Kind {
	case AddressKind:
		addr, ok := v.(common.Address)
		if !ok {
			return nil, fmt.Errorf("abi: expected common.Address, got %T", v)
		}
		out := make([]byte, word)
		copy(out[word-20:], addr[:])
		return out, nil
	case BoolKind:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("abi: expected bool, got %T", v)
		}
		out := make([]byte, word)
		if b {
			out[word-1] = 1
		}
		return out, nil
	case UintKind, IntKind:
		bi, err := toBigInt(v)
		if err != nil {
			return nil, err
		}
		if t.Kind == IntKind && bi.Sign() < 0 {
			two := new(big.Int).Lsh(big.NewInt(1), 256)
			bi = new(big.Int).Add(two, bi)
		}
		return encodeUint(bi), nil
	case FixedBytesKind:
		b, ok := v.([]byte)
		if !ok {
			return nil, fmt.Errorf("abi: expected []byte, got %T", v)
		}
		out := make([]byte, word)
		copy(out, b)
		return out, nil
	case ArrayKind:
		var out []byte
		elems, ok := v.([]interface{})
		if !ok {
			return nil, fmt.Errorf("abi: expected []interface{} for array, got %T", v)
		}
		for _, e := range elems {
			enc, err := encodeStatic(*t.Elem, e)
			if err != nil {
				return nil, err
			}
			out = append(out, enc...)
		}
		return out, nil
	}
	return nil, fmt.Errorf("abi: cannot statically encode %s", t.raw)
}

func encodeDynamic(t Type, v interface{}) ([]byte, error) {
	switch t.Kind {
	case BytesKind:
		b, ok := v.([]byte)
		if !ok {
			return nil, fmt.Errorf("abi: expected []byte, got %T", v)
		}
		return append(encodeUint(big.NewInt(int64(len(b)))), padRight(b)...), nil
	case StringKind:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("abi: expected string, got %T", v)
		}
		b := []byte(s)
		return append(encodeUint(big.NewInt(int64(len(b)))), padRight(b)...), nil
	case SliceKind:
		elems, ok := v.([]interface{})
		if !ok {
			return nil, fmt.Errorf("abi: expected []interface{} for slice, got %T", v)
		}
		out := encodeUint(big.NewInt(int64(len(elems))))
		packed, err := packArgs(repeat(*t.Elem, len(elems)), elems)
		if err != nil {
			return nil, err
		}
		return append(out, packed...), nil
	}
	return nil, fmt.Errorf("abi: cannot dynamically encode %s", t.raw)
}

func repeat(t Type, n int) []Type {
	out := make([]Type, n)
	for i := range out {
		out[i] = t
	}
	return out
}

func padRight(b []byte) []byte {
	n := (len(b) + word - 1) / word * word
	out := make([]byte, n)
	copy(out, b)
	return out
}

func toBigInt(v interface{}) (*big.Int, error) {
	switch n := v.(type) {
	case *big.Int:
		return n, nil
	case int:
		return big.NewInt(int64(n)), nil
	case int64:
		return big.NewInt(n), nil
	case uint64:
		return new(big.Int).SetUint64(n), nil
	default:
		return nil, fmt.Errorf("abi: cannot interpret %T as integer", v)
	}
}

// DecodeResult decodes data against outputTypes in order, returning each
// decoded value as a Go-native representation (common.Address, bool,
// *big.Int, []byte, string, []interface{}).
func DecodeResult(data []byte, outputTypes []Type) ([]interface{}, error) {
	out := make([]interface{}, len(outputTypes))
	for i, t := range outputTypes {
		headOff := i * word
		if headOff+word > len(data) {
			return nil, fmt.Errorf("abi: decode out of bounds for type %s", t.raw)
		}
		if isDynamic(t) {
			off := new(big.Int).SetBytes(data[headOff : headOff+word]).Int64()
			v, err := decodeDynamicAt(t, data, int(off))
			if err != nil {
				return nil, err
			}
			out[i] = v
		} else {
			v, err := decodeStatic(t, data[headOff:headOff+word])
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
	}
	return out, nil
}

func decodeStatic(t Type, word32 []byte) (interface{}, error) {
	switch t.Kind {
	case AddressKind:
		return common.BytesToAddress(word32[12:]), nil
	case BoolKind:
		return word32[len(word32)-1] != 0, nil
	case UintKind:
		return new(big.Int).SetBytes(word32), nil
	case IntKind:
		v := new(big.Int).SetBytes(word32)
		if word32[0]&0x80 != 0 {
			mod := new(big.Int).Lsh(big.NewInt(1), 256)
			v.Sub(v, mod)
		}
		return v, nil
	case FixedBytesKind:
		return append([]byte{}, word32[:t.Size]...), nil
	default:
		return nil, fmt.Errorf("abi: cannot statically decode %s", t.raw)
	}
}

func decodeDynamicAt(t Type, data []byte, off int) (interface{}, error) {
	if off+word > len(data) {
		return nil, fmt.Errorf("abi: dynamic offset out of bounds")
	}
	length := int(new(big.Int).SetBytes(data[off : off+word]).Int64())
	contentOff := off + word
	switch t.Kind {
	case BytesKind:
		if contentOff+length > len(data) {
			return nil, fmt.Errorf("abi: bytes out of bounds")
		}
		return append([]byte{}, data[contentOff:contentOff+length]...), nil
	case StringKind:
		if contentOff+length > len(data) {
			return nil, fmt.Errorf("abi: string out of bounds")
		}
		return string(data[contentOff : contentOff+length]), nil
	case SliceKind:
		out := make([]interface{}, length)
		for i := 0; i < length; i++ {
			elemOff := contentOff + i*word
			if isDynamic(*t.Elem) {
				relOff := int(new(big.Int).SetBytes(data[elemOff : elemOff+word]).Int64())
				v, err := decodeDynamicAt(*t.Elem, data[contentOff:], relOff)
				if err != nil {
					return nil, err
				}
				out[i] = v
			} else {
				v, err := decodeStatic(*t.Elem, data[elemOff:elemOff+word])
				if err != nil {
					return nil, err
				}
				out[i] = v
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("abi: cannot dynamically decode %s", t.raw)
	}
}

// maxCachedABIs bounds the number of distinct addresses whose selector
// tables are retained; a long batch run touches far more contracts than
// it needs to keep ABIs warm for, so the cache evicts least-recently-used.
const maxCachedABIs = 4096

// Codec caches, per address, the selector-to-signature table derived from
// a registered ABI. The ABI entries themselves are not retained.
type Codec struct {
	mu     sync.RWMutex
	tables *lru.Cache[common.Address, map[[4]byte]string] // addr -> selector -> signature
}

func NewCodec() *Codec {
	tables, err := lru.New[common.Address, map[[4]byte]string](maxCachedABIs)
	if err != nil {
		panic(err) // only returns an error for a non-positive size
	}
	return &Codec{tables: tables}
}

// RegisterABI records each function entry's selector under addr, deriving
// signatures from the ABI JSON entries' name/inputs fields.
func (c *Codec) RegisterABI(addr common.Address, entries []map[string]interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	table, ok := c.tables.Get(addr)
	if !ok {
		table = make(map[[4]byte]string)
	}
	for _, entry := range entries {
		if entry["type"] != "function" && entry["type"] != nil && entry["type"] != "" {
			if t, ok := entry["type"].(string); ok && t != "function" {
				continue
			}
		}
		name, _ := entry["name"].(string)
		if name == "" {
			continue
		}
		inputs, _ := entry["inputs"].([]interface{})
		typeStrs := make([]string, 0, len(inputs))
		for _, in := range inputs {
			m, ok := in.(map[string]interface{})
			if !ok {
				continue
			}
			ts, _ := m["type"].(string)
			typeStrs = append(typeStrs, ts)
		}
		sig := fmt.Sprintf("%s(%s)", name, strings.Join(typeStrs, ","))
		table[Selector(sig)] = sig
	}
	c.tables.Add(addr, table)
}

// DecodeInput looks up calldata's leading 4-byte selector against addr's
// registered ABI and returns the matched signature and its decoded
// arguments in positional order. Parameter names from the ABI are not
// carried into the result.
func (c *Codec) DecodeInput(addr common.Address, calldata []byte) (string, []interface{}, bool) {
	if len(calldata) < 4 {
		return "", nil, false
	}
	var sel [4]byte
	copy(sel[:], calldata[:4])
	c.mu.RLock()
	table, ok := c.tables.Get(addr)
	c.mu.RUnlock()
	if !ok {
		return "", nil, false
	}
	sig, ok := table[sel]
	if !ok {
		return "", nil, false
	}
	_, types, err := ParseSignature(sig)
	if err != nil {
		return sig, nil, false
	}
	decoded, err := DecodeResult(calldata[4:], types)
	if err != nil {
		return sig, nil, false
	}
	return sig, decoded, true
}

// selectorHex formats a selector as eight lowercase hex digits.
func selectorHex(sel [4]byte) string {
	return fmt.Sprintf("%08x", binary.BigEndian.Uint32(sel[:]))
}
