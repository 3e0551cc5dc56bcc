package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shoheigorila/a1agent/llm"
)

func TestGenerateParsesTextAndToolUse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"content": [
				{"type": "text", "text": "let's check the code"},
				{"type": "tool_use", "id": "call_1", "name": "fetch_source", "input": {"address": "0xabc"}}
			],
			"stop_reason": "tool_use",
			"usage": {"input_tokens": 100, "output_tokens": 20}
		}`))
	}))
	defer server.Close()

	c := New("test-key", "claude-test")
	c.baseURL = server.URL

	result, err := c.Generate(context.Background(), []llm.Message{
		{Role: llm.RoleSystem, Content: "you are an agent"},
		{Role: llm.RoleUser, Content: "exploit 0xabc"},
	}, []llm.ToolDef{{Name: "fetch_source", Description: "fetch", Parameters: json.RawMessage(`{"type":"object"}`)}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.FinishReason != llm.FinishToolCalls {
		t.Fatalf("expected tool_calls finish reason, got %s", result.FinishReason)
	}
	if result.Message.Content != "let's check the code" {
		t.Fatalf("unexpected content: %q", result.Message.Content)
	}
	if len(result.Message.ToolCalls) != 1 || result.Message.ToolCalls[0].Name != "fetch_source" {
		t.Fatalf("unexpected tool calls: %+v", result.Message.ToolCalls)
	}
	if result.Message.ToolCalls[0].Arguments["address"] != "0xabc" {
		t.Fatalf("unexpected tool call args: %+v", result.Message.ToolCalls[0].Arguments)
	}
	if result.Usage.Total != 120 {
		t.Fatalf("unexpected usage total: %d", result.Usage.Total)
	}
}

func TestGenerateSurfacesProtocolError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"error": {"type": "invalid_request_error", "message": "bad model"}}`))
	}))
	defer server.Close()

	c := New("test-key", "bogus-model")
	c.baseURL = server.URL

	_, err := c.Generate(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}}, nil)
	if err == nil {
		t.Fatal("expected protocol error")
	}
	llmErr, ok := err.(*llm.Error)
	if !ok || llmErr.Kind != llm.KindProtocol {
		t.Fatalf("expected KindProtocol error, got %+v", err)
	}
}

func TestToolResultMessageTranslatesToUserRole(t *testing.T) {
	req := toWireRequest("claude-test", []llm.Message{
		{Role: llm.RoleTool, Content: "42", ToolCallID: "call_1"},
	}, nil)
	if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
		t.Fatalf("expected tool message translated to user role: %+v", req.Messages)
	}
	if req.Messages[0].Content[0].Type != "tool_result" || req.Messages[0].Content[0].ToolUseID != "call_1" {
		t.Fatalf("unexpected tool_result block: %+v", req.Messages[0].Content[0])
	}
}
