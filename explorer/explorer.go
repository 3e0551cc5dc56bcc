// Package explorer implements the Etherscan-compatible ExplorerReader:
// verified source retrieval (with the three historical SourceCode shapes
// normalized into one) and creation-transaction lookup, both cached.
package explorer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shoheigorila/a1agent/cache"
	"github.com/shoheigorila/a1agent/common"
	"github.com/shoheigorila/a1agent/log"
)

// Error kinds per spec.md §7: Transport for network failures, Protocol for
// a non-success explorer response or an unverified contract.
type Kind int

const (
	KindTransport Kind = iota
	KindProtocol
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("explorer: %s: %v", e.Msg, e.Err)
	}
	return fmt.Sprintf("explorer: %s", e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// ABIEntry is one element of a contract's ABI, kept untyped beyond the
// fields ABICodec needs to build a selector table.
type ABIEntry = map[string]interface{}

// SourceResult is the normalized verified-source response.
type SourceResult struct {
	Verified         bool
	ContractName     string
	CompilerVersion  string
	Optimization     bool
	Runs             int
	SourceFiles      map[string]string
	ABI              []ABIEntry
	Proxy            bool
	Implementation   common.Address
	ConstructorArgs  string
}

// CreationInfo is the result of a creation-transaction lookup.
type CreationInfo struct {
	Creator common.Address
	TxHash  common.Hash
}

// Reader fetches verified source and creation info from an
// Etherscan-compatible API.
type Reader struct {
	baseURL    string
	apiKey     string
	chainID    uint64
	httpClient *http.Client
	cache      *cache.Cache
	log        log.Logger
}

func New(baseURL, apiKey string, chainID uint64, c *cache.Cache) *Reader {
	return &Reader{
		baseURL:    baseURL,
		apiKey:     apiKey,
		chainID:    chainID,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cache:      c,
		log:        log.New("component", "explorer"),
	}
}

type etherscanEnvelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

func (r *Reader) get(ctx context.Context, params map[string]string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL, nil)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Msg: "build request", Err: err}
	}
	q := req.URL.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	if r.apiKey != "" {
		q.Set("apikey", r.apiKey)
	}
	req.URL.RawQuery = q.Encode()

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Msg: "do request", Err: err}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Msg: "read response", Err: err}
	}

	var env etherscanEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &Error{Kind: KindTransport, Msg: "decode envelope", Err: err}
	}
	if env.Status != "1" {
		return nil, &Error{Kind: KindProtocol, Msg: fmt.Sprintf("explorer returned non-success status: %s", env.Message)}
	}
	return env.Result, nil
}

type getSourceCodeResult struct {
	SourceCode           string `json:"SourceCode"`
	ABI                  string `json:"ABI"`
	ContractName         string `json:"ContractName"`
	CompilerVersion      string `json:"CompilerVersion"`
	OptimizationUsed     string `json:"OptimizationUsed"`
	Runs                 string `json:"Runs"`
	Proxy                string `json:"Proxy"`
	Implementation       string `json:"Implementation"`
	ConstructorArguments string `json:"ConstructorArguments"`
}

// GetSourceCode fetches and normalizes the verified source for addr,
// caching the result by (chainId, address).
func (r *Reader) GetSourceCode(ctx context.Context, addr common.Address) (*SourceResult, error) {
	key := cache.MakeKey("source", r.chainID, addr.Hex())
	if r.cache != nil {
		if v, ok := r.cache.Get(key); ok {
			return v.(*SourceResult), nil
		}
	}

	raw, err := r.get(ctx, map[string]string{
		"module":  "contract",
		"action":  "getsourcecode",
		"address": addr.Hex(),
	})
	if err != nil {
		return nil, err
	}

	var results []getSourceCodeResult
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, &Error{Kind: KindProtocol, Msg: "decode getsourcecode result", Err: err}
	}
	if len(results) == 0 || results[0].SourceCode == "" {
		return &SourceResult{Verified: false}, nil
	}
	rawResult := results[0]

	files, err := normalizeSourceCode(rawResult.SourceCode)
	if err != nil {
		// Protocol-level decode trouble is non-fatal: return what we have,
		// still marked verified, with the raw blob preserved as one file.
		files = map[string]string{rawResult.ContractName + ".sol": rawResult.SourceCode}
	}

	var abiEntries []ABIEntry
	_ = json.Unmarshal([]byte(rawResult.ABI), &abiEntries)

	result := &SourceResult{
		Verified:        true,
		ContractName:    rawResult.ContractName,
		CompilerVersion: rawResult.CompilerVersion,
		Optimization:    rawResult.OptimizationUsed == "1",
		Runs:            atoiOr(rawResult.Runs, 0),
		SourceFiles:     files,
		ABI:             abiEntries,
		Proxy:           rawResult.Proxy == "1",
		ConstructorArgs: rawResult.ConstructorArguments,
	}
	if rawResult.Implementation != "" {
		result.Implementation = common.HexToAddress(rawResult.Implementation)
	}

	if r.cache != nil {
		r.cache.Set(key, result, cache.DefaultTTL)
	}
	return result, nil
}

func atoiOr(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// normalizeSourceCode implements spec.md §4.3's three-format unwrap:
// double-brace multi-file JSON, a single JSON object with a "sources"
// sub-map, or a plain source string. Per the Open Question in spec.md §9,
// this strips a matching pair of outer braces defensively rather than
// trimming exactly one character on each side, and fails soft to treating
// the blob as plain source on any other shape.
func normalizeSourceCode(raw string) (map[string]string, error) {
	trimmed := strings.TrimSpace(raw)

	if strings.HasPrefix(trimmed, "{{") && strings.HasSuffix(trimmed, "}}") {
		inner := trimmed[1 : len(trimmed)-1]
		return decodeMultiFile(inner)
	}

	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		var withSources struct {
			Sources map[string]struct {
				Content string `json:"content"`
			} `json:"sources"`
		}
		if err := json.Unmarshal([]byte(trimmed), &withSources); err == nil && len(withSources.Sources) > 0 {
			out := make(map[string]string, len(withSources.Sources))
			for path, src := range withSources.Sources {
				out[path] = src.Content
			}
			return out, nil
		}
		// Maybe it's already the flat {path: {content}} shape without a
		// "sources" wrapper.
		if files, err := decodeMultiFile(trimmed); err == nil {
			return files, nil
		}
	}

	return map[string]string{"Contract.sol": raw}, nil
}

func decodeMultiFile(blob string) (map[string]string, error) {
	var files map[string]struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal([]byte(blob), &files); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(files))
	for path, f := range files {
		out[path] = f.Content
	}
	return out, nil
}

type getContractCreationResult struct {
	ContractAddress string `json:"contractAddress"`
	ContractCreator string `json:"contractCreator"`
	TxHash          string `json:"txHash"`
}

// GetCreationTx fetches the creator address and creation tx hash of addr.
func (r *Reader) GetCreationTx(ctx context.Context, addr common.Address) (*CreationInfo, error) {
	key := cache.MakeKey("creation", r.chainID, addr.Hex())
	if r.cache != nil {
		if v, ok := r.cache.Get(key); ok {
			return v.(*CreationInfo), nil
		}
	}

	raw, err := r.get(ctx, map[string]string{
		"module":           "contract",
		"action":           "getcontractcreation",
		"contractaddresses": addr.Hex(),
	})
	if err != nil {
		return nil, err
	}
	var results []getContractCreationResult
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, &Error{Kind: KindProtocol, Msg: "decode getcontractcreation result", Err: err}
	}
	if len(results) == 0 {
		return nil, &Error{Kind: KindProtocol, Msg: "no creation transaction found"}
	}
	info := &CreationInfo{
		Creator: common.HexToAddress(results[0].ContractCreator),
		TxHash:  common.HexToHash(results[0].TxHash),
	}
	if r.cache != nil {
		r.cache.Set(key, info, cache.DefaultTTL)
	}
	return info, nil
}
