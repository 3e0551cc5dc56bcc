package explorer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shoheigorila/a1agent/cache"
	"github.com/shoheigorila/a1agent/common"
)

func TestNormalizeSourceCodeDoubleBrace(t *testing.T) {
	raw := `{{"A.sol":{"content":"contract A {}"},"B.sol":{"content":"contract B {}"}}}`
	files, err := normalizeSourceCode(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if files["A.sol"] != "contract A {}" || files["B.sol"] != "contract B {}" {
		t.Fatalf("unexpected files: %+v", files)
	}
}

func TestNormalizeSourceCodeSourcesWrapper(t *testing.T) {
	raw := `{"language":"Solidity","sources":{"A.sol":{"content":"contract A {}"}}}`
	files, err := normalizeSourceCode(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if files["A.sol"] != "contract A {}" {
		t.Fatalf("unexpected files: %+v", files)
	}
}

func TestNormalizeSourceCodePlainString(t *testing.T) {
	raw := "contract A { function f() public {} }"
	files, err := normalizeSourceCode(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected single plain file, got %+v", files)
	}
	for _, v := range files {
		if v != raw {
			t.Fatalf("expected raw content preserved, got %s", v)
		}
	}
}

func newExplorerServer(t *testing.T, action string, result interface{}) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if got := req.URL.Query().Get("action"); got != action {
			t.Fatalf("expected action %s, got %s", action, got)
		}
		raw, _ := json.Marshal(result)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "1",
			"message": "OK",
			"result":  json.RawMessage(raw),
		})
	}))
}

func TestGetSourceCodeCachesResult(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		calls++
		result := []getSourceCodeResult{{
			SourceCode:       "contract A {}",
			ContractName:     "A",
			CompilerVersion:  "v0.8.20",
			OptimizationUsed: "1",
			Runs:             "200",
			ABI:              "[]",
		}}
		raw, _ := json.Marshal(result)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "1", "message": "OK", "result": json.RawMessage(raw),
		})
	}))
	defer srv.Close()

	r := New(srv.URL, "", 1, cache.New())
	addr := common.HexToAddress("0x0000000000000000000000000000000000000001")

	res, err := r.GetSourceCode(context.Background(), addr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Verified || res.ContractName != "A" || res.Runs != 200 {
		t.Fatalf("unexpected result: %+v", res)
	}

	if _, err := r.GetSourceCode(context.Background(), addr); err != nil {
		t.Fatalf("unexpected error on cached fetch: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected cache to prevent a second HTTP call, got %d calls", calls)
	}
}

func TestGetSourceCodeUnverified(t *testing.T) {
	srv := newExplorerServer(t, "getsourcecode", []getSourceCodeResult{{SourceCode: ""}})
	defer srv.Close()

	r := New(srv.URL, "", 1, cache.New())
	res, err := r.GetSourceCode(context.Background(), common.Address{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Verified {
		t.Fatal("expected unverified result")
	}
}

func TestGetCreationTx(t *testing.T) {
	srv := newExplorerServer(t, "getcontractcreation", []getContractCreationResult{{
		ContractCreator: "0x0000000000000000000000000000000000000002",
		TxHash:          "0x" + "11" + "00000000000000000000000000000000000000000000000000000000000",
	}})
	defer srv.Close()

	r := New(srv.URL, "", 1, cache.New())
	info, err := r.GetCreationTx(context.Background(), common.Address{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Creator.Hex() != common.HexToAddress("0x0000000000000000000000000000000000000002").Hex() {
		t.Fatalf("unexpected creator: %s", info.Creator.Hex())
	}
}

func TestGetSourceCodeProtocolError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "0", "message": "NOTOK", "result": "rate limit",
		})
	}))
	defer srv.Close()

	r := New(srv.URL, "", 1, cache.New())
	_, err := r.GetSourceCode(context.Background(), common.Address{})
	if err == nil {
		t.Fatal("expected error")
	}
	eerr, ok := err.(*Error)
	if !ok || eerr.Kind != KindProtocol {
		t.Fatalf("expected protocol-kind error, got %v", err)
	}
}
