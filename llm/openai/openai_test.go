package openai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shoheigorila/a1agent/llm"
)

func TestGenerateParsesToolCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"choices": [{
				"message": {
					"role": "assistant",
					"content": "",
					"tool_calls": [{"id": "call_1", "type": "function", "function": {"name": "read_state", "arguments": "{\"slot\": 0}"}}]
				},
				"finish_reason": "tool_calls"
			}],
			"usage": {"prompt_tokens": 50, "completion_tokens": 10, "total_tokens": 60}
		}`))
	}))
	defer server.Close()

	c := New("test-key", "gpt-test")
	c.baseURL = server.URL

	result, err := c.Generate(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.FinishReason != llm.FinishToolCalls {
		t.Fatalf("unexpected finish reason: %s", result.FinishReason)
	}
	if len(result.Message.ToolCalls) != 1 || result.Message.ToolCalls[0].Name != "read_state" {
		t.Fatalf("unexpected tool calls: %+v", result.Message.ToolCalls)
	}
	if result.Message.ToolCalls[0].Arguments["slot"].(float64) != 0 {
		t.Fatalf("unexpected args: %+v", result.Message.ToolCalls[0].Arguments)
	}
	if result.Usage.Total != 60 {
		t.Fatalf("unexpected usage: %+v", result.Usage)
	}
}

func TestGenerateNoChoicesIsProtocolError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices": []}`))
	}))
	defer server.Close()

	c := New("test-key", "gpt-test")
	c.baseURL = server.URL

	_, err := c.Generate(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}}, nil)
	if err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestToolRoleMessageCarriesToolCallID(t *testing.T) {
	req := toWireRequest("gpt-test", []llm.Message{
		{Role: llm.RoleTool, Content: "result", ToolCallID: "call_1"},
	}, nil)
	if req.Messages[0].ToolCallID != "call_1" {
		t.Fatalf("expected tool_call_id preserved, got %+v", req.Messages[0])
	}
}
