// Package chainreader implements the read-only JSON-RPC façade over an EVM
// chain at a given block height: call, code, storage, balance, block
// number, and batched eth_call.
package chainreader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/shoheigorila/a1agent/common"
	"github.com/shoheigorila/a1agent/common/hexutil"
	"github.com/shoheigorila/a1agent/log"
)

// Kind classifies a ChainReader failure per spec.md §7.
type Kind int

const (
	KindTransport Kind = iota
	KindRPC
	KindDecode
)

// Error wraps a ChainReader failure with its taxonomy Kind.
type Error struct {
	Kind Kind
	Code int
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("chainreader: %s: %v", e.Msg, e.Err)
	}
	return fmt.Sprintf("chainreader: %s (code %d)", e.Msg, e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// BlockLatest denotes the chain tip in call/code/storage/balance requests.
const BlockLatest = "latest"

// Reader is a read-only JSON-RPC façade. It is safe for concurrent use.
type Reader struct {
	url        string
	httpClient *http.Client
	idSeq      atomic.Uint64
	log        log.Logger
}

// New creates a Reader against the given JSON-RPC HTTP endpoint.
func New(rpcURL string) *Reader {
	return &Reader{
		url:        rpcURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log.New("component", "chainreader"),
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func blockParam(block string) string {
	if block == "" {
		return BlockLatest
	}
	return block
}

func (r *Reader) nextID() uint64 { return r.idSeq.Add(1) }

func (r *Reader) do(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	req := rpcRequest{JSONRPC: "2.0", ID: r.nextID(), Method: method, Params: params}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &Error{Kind: KindDecode, Msg: "marshal request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Kind: KindTransport, Msg: "build request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Msg: "do request", Err: errors.WithStack(err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Msg: "read response", Err: err}
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(raw, &rpcResp); err != nil {
		return nil, &Error{Kind: KindDecode, Msg: "unmarshal response", Err: err}
	}
	if rpcResp.Error != nil {
		return nil, &Error{Kind: KindRPC, Code: rpcResp.Error.Code, Msg: rpcResp.Error.Message}
	}
	return rpcResp.Result, nil
}

// Call performs eth_call against to with data at block, returning the raw
// return bytes (empty on revert-with-no-data).
func (r *Reader) Call(ctx context.Context, to common.Address, data []byte, block string) ([]byte, error) {
	callObj := map[string]interface{}{
		"to":   to.Hex(),
		"data": hexutil.Encode(data),
	}
	raw, err := r.do(ctx, "eth_call", []interface{}{callObj, blockParam(block)})
	if err != nil {
		return nil, err
	}
	return decodeHexResult(raw)
}

// Code returns the deployed bytecode at addr at block.
func (r *Reader) Code(ctx context.Context, addr common.Address, block string) ([]byte, error) {
	raw, err := r.do(ctx, "eth_getCode", []interface{}{addr.Hex(), blockParam(block)})
	if err != nil {
		return nil, err
	}
	return decodeHexResult(raw)
}

// Storage returns the 32-byte value of addr's storage at slot at block.
func (r *Reader) Storage(ctx context.Context, addr common.Address, slot common.Hash, block string) (common.Hash, error) {
	raw, err := r.do(ctx, "eth_getStorageAt", []interface{}{addr.Hex(), slot.Hex(), blockParam(block)})
	if err != nil {
		return common.Hash{}, err
	}
	b, err := decodeHexResult(raw)
	if err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(b), nil
}

// BlockNumber returns the chain's current tip.
func (r *Reader) BlockNumber(ctx context.Context) (uint64, error) {
	raw, err := r.do(ctx, "eth_blockNumber", nil)
	if err != nil {
		return 0, err
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, &Error{Kind: KindDecode, Msg: "decode blockNumber", Err: err}
	}
	n, err := hexutil.DecodeUint64(s)
	if err != nil {
		return 0, &Error{Kind: KindDecode, Msg: "decode blockNumber", Err: err}
	}
	return n, nil
}

// Balance returns the native-currency balance of addr at block.
func (r *Reader) Balance(ctx context.Context, addr common.Address, block string) (*big.Int, error) {
	raw, err := r.do(ctx, "eth_getBalance", []interface{}{addr.Hex(), blockParam(block)})
	if err != nil {
		return nil, err
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, &Error{Kind: KindDecode, Msg: "decode balance", Err: err}
	}
	v, err := hexutil.DecodeBig(s)
	if err != nil {
		return nil, &Error{Kind: KindDecode, Msg: "decode balance", Err: err}
	}
	return v, nil
}

// CreationTx is returned by TransactionByHash for a creation transaction
// lookup; it exposes only the fields ConstructorDecoder needs.
type CreationTx struct {
	Hash  common.Hash
	From  common.Address
	Input []byte
	Block string
}

// TransactionByHash fetches a transaction's sender and calldata.
func (r *Reader) TransactionByHash(ctx context.Context, hash common.Hash) (*CreationTx, error) {
	raw, err := r.do(ctx, "eth_getTransactionByHash", []interface{}{hash.Hex()})
	if err != nil {
		return nil, err
	}
	var tx struct {
		From        string `json:"from"`
		Input       string `json:"input"`
		BlockNumber string `json:"blockNumber"`
	}
	if err := json.Unmarshal(raw, &tx); err != nil {
		return nil, &Error{Kind: KindDecode, Msg: "decode transaction", Err: err}
	}
	var input []byte
	if tx.Input != "" && tx.Input != "0x" {
		input, err = hexutil.Decode(tx.Input)
		if err != nil {
			return nil, &Error{Kind: KindDecode, Msg: "decode transaction input", Err: err}
		}
	}
	return &CreationTx{
		Hash:  hash,
		From:  common.HexToAddress(tx.From),
		Input: input,
		Block: tx.BlockNumber,
	}, nil
}

// BatchCallItem is one element of a batched eth_call.
type BatchCallItem struct {
	To   common.Address
	Data []byte
}

// BatchCall issues a single JSON array POST of eth_call requests and
// returns results in the same order as calls; a failed individual call
// yields empty bytes for that entry rather than aborting the batch.
func (r *Reader) BatchCall(ctx context.Context, calls []BatchCallItem, block string) ([][]byte, error) {
	if len(calls) == 0 {
		return nil, nil
	}
	reqs := make([]rpcRequest, len(calls))
	for i, c := range calls {
		reqs[i] = rpcRequest{
			JSONRPC: "2.0",
			ID:      r.nextID(),
			Method:  "eth_call",
			Params: []interface{}{
				map[string]interface{}{"to": c.To.Hex(), "data": hexutil.Encode(c.Data)},
				blockParam(block),
			},
		}
	}
	body, err := json.Marshal(reqs)
	if err != nil {
		return nil, &Error{Kind: KindDecode, Msg: "marshal batch", Err: err}
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Kind: KindTransport, Msg: "build batch request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Msg: "do batch request", Err: errors.WithStack(err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Msg: "read batch response", Err: err}
	}
	var responses []rpcResponse
	if err := json.Unmarshal(raw, &responses); err != nil {
		return nil, &Error{Kind: KindDecode, Msg: "unmarshal batch response", Err: err}
	}

	byID := make(map[uint64]rpcResponse, len(responses))
	for _, resp := range responses {
		byID[resp.ID] = resp
	}

	out := make([][]byte, len(calls))
	for i, req := range reqs {
		resp, ok := byID[req.ID]
		if !ok || resp.Error != nil {
			out[i] = []byte{}
			continue
		}
		b, err := decodeHexResult(resp.Result)
		if err != nil {
			out[i] = []byte{}
			continue
		}
		out[i] = b
	}
	return out, nil
}

func decodeHexResult(raw json.RawMessage) ([]byte, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, &Error{Kind: KindDecode, Msg: "decode hex result", Err: err}
	}
	if s == "" || s == "0x" {
		return []byte{}, nil
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, &Error{Kind: KindDecode, Msg: "decode hex result", Err: err}
	}
	return b, nil
}
