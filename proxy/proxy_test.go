package proxy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shoheigorila/a1agent/chainreader"
	"github.com/shoheigorila/a1agent/common"
)

func storageServer(t *testing.T, storage map[string]string, code string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		var r struct {
			Method string        `json:"method"`
			ID     uint64        `json:"id"`
			Params []interface{} `json:"params"`
		}
		json.NewDecoder(req.Body).Decode(&r)
		var result string
		switch r.Method {
		case "eth_getStorageAt":
			slot := r.Params[1].(string)
			result = storage[slot]
			if result == "" {
				result = common.Hash{}.Hex()
			}
		case "eth_getCode":
			result = code
			if result == "" {
				result = "0x"
			}
		case "eth_call":
			result = common.Hash{}.Hex()
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"id": r.ID, "result": result})
	}))
}

func TestResolveEIP1967Transparent(t *testing.T) {
	implSlot := eip1967ImplSlot.Hex()
	adminSlot := eip1967AdminSlot.Hex()
	impl := common.BytesToHash(common.HexToAddress("0x0000000000000000000000000000000000000ABC").Bytes()).Hex()
	admin := common.BytesToHash(common.HexToAddress("0x0000000000000000000000000000000000000DEF").Bytes()).Hex()

	srv := storageServer(t, map[string]string{
		implSlot:  impl,
		adminSlot: admin,
	}, "")
	defer srv.Close()

	r := New(chainreader.New(srv.URL))
	info, err := r.Resolve(context.Background(), common.Address{}, "latest", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Kind != KindEIP1967Transparent {
		t.Fatalf("expected transparent proxy, got %s", info.Kind)
	}
	if info.Confidence != 1.0 {
		t.Fatalf("expected confidence 1.0, got %f", info.Confidence)
	}
}

func TestResolveNoneWhenAllSlotsZero(t *testing.T) {
	srv := storageServer(t, map[string]string{}, "")
	defer srv.Close()

	r := New(chainreader.New(srv.URL))
	info, err := r.Resolve(context.Background(), common.Address{}, "latest", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Kind != KindNone {
		t.Fatalf("expected none, got %s", info.Kind)
	}
}

func TestMatchMinimalProxyExactBytes(t *testing.T) {
	implHex := "1111111111111111111111111111111111111111"
	codeHex := "363d3d373d3d3d363d73" + implHex + "5af43d82803e903d91602b57fd5bf3"
	code := mustHex(codeHex)

	impl, ok := matchMinimalProxy(code)
	if !ok {
		t.Fatal("expected minimal proxy match")
	}
	if impl.Hex() != common.HexToAddress("0x"+implHex).Hex() {
		t.Fatalf("unexpected impl: %s", impl.Hex())
	}
}

func TestMatchMinimalProxyRejectsWrongSuffix(t *testing.T) {
	implHex := "1111111111111111111111111111111111111111"
	code := mustHex("363d3d373d3d3d363d73" + implHex + "000000000000000000000000000000000000000000000000000000000000")
	if _, ok := matchMinimalProxy(code); ok {
		t.Fatal("expected no match for wrong suffix")
	}
}
