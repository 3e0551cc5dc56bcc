package tools

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shoheigorila/a1agent/chainreader"
	"github.com/shoheigorila/a1agent/common"
	"github.com/shoheigorila/a1agent/proxy"
)

func rpcServer(t *testing.T, handler func(method string, params []interface{}) string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		var r struct {
			Method string        `json:"method"`
			ID     uint64        `json:"id"`
			Params []interface{} `json:"params"`
		}
		json.NewDecoder(req.Body).Decode(&r)
		result := handler(r.Method, r.Params)
		json.NewEncoder(w).Encode(map[string]interface{}{"id": r.ID, "result": result})
	}))
}

func TestReadStateToolBalance(t *testing.T) {
	server := rpcServer(t, func(method string, params []interface{}) string {
		if method == "eth_getBalance" {
			return "0x64"
		}
		return "0x"
	})
	defer server.Close()

	chain := chainreader.New(server.URL)
	tool := NewReadStateTool(chain)
	result := tool.Execute(map[string]interface{}{"kind": "balance", "address": "0x0000000000000000000000000000000000000001"})
	if !result.OK {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.Details["balance"] != "100" {
		t.Fatalf("unexpected balance: %+v", result.Details)
	}
}

func TestReadStateToolMissingAddressFails(t *testing.T) {
	tool := NewReadStateTool(chainreader.New("http://unused"))
	result := tool.Execute(map[string]interface{}{"kind": "balance"})
	if result.OK {
		t.Fatal("expected missing address to fail")
	}
}

func TestReadStateToolUnknownKind(t *testing.T) {
	tool := NewReadStateTool(chainreader.New("http://unused"))
	result := tool.Execute(map[string]interface{}{"kind": "bogus", "address": "0x01"})
	if result.OK {
		t.Fatal("expected unknown kind to fail")
	}
}

func TestResolveProxyToolDetectsEIP1967(t *testing.T) {
	impl := common.HexToAddress("0x00000000000000000000000000000000001234")
	implSlotValue := common.BytesToHash(impl.Bytes()).Hex()
	server := rpcServer(t, func(method string, params []interface{}) string {
		switch method {
		case "eth_getStorageAt":
			slot := params[1].(string)
			if slot == common.HexToHash("0x360894a13ba1a3210667c828492db98dca3e2076cc3735a920a3ca505d382bbc").Hex() {
				return implSlotValue
			}
			return common.Hash{}.Hex()
		case "eth_getCode":
			return "0x6080"
		default:
			return common.Hash{}.Hex()
		}
	})
	defer server.Close()

	chain := chainreader.New(server.URL)
	resolver := proxy.New(chain)
	tool := NewResolveProxyTool(resolver)
	result := tool.Execute(map[string]interface{}{"address": "0x0000000000000000000000000000000000000002"})
	if !result.OK {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.Details["kind"] != string(proxy.KindEIP1967Transparent) {
		t.Fatalf("expected eip1967-transparent, got %+v", result.Details)
	}
}

func TestAnalyzeCodeToolExtractsEntities(t *testing.T) {
	tool := NewAnalyzeCodeTool()
	result := tool.Execute(map[string]interface{}{
		"source": "pragma solidity ^0.8.20;\ncontract A {}\ncontract B {}\n",
	})
	if !result.OK {
		t.Fatalf("expected success, got %+v", result)
	}
	order, ok := result.Details["order"].([]string)
	if !ok || len(order) != 2 {
		t.Fatalf("expected 2 entities, got %+v", result.Details["order"])
	}
}

func TestAnalyzeCodeToolReturnsMinimalWhenTargetGiven(t *testing.T) {
	tool := NewAnalyzeCodeTool()
	source := "pragma solidity ^0.8.20;\ncontract Base {}\ncontract Strategy is Base {}\n"
	result := tool.Execute(map[string]interface{}{"source": source, "target": "Strategy"})
	if !result.OK {
		t.Fatalf("expected success, got %+v", result)
	}
	minimal, ok := result.Details["minimal"].(string)
	if !ok || minimal == "" {
		t.Fatalf("expected non-empty minimal extraction, got %+v", result.Details)
	}
}
