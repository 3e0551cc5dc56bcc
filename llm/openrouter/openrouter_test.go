package openrouter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shoheigorila/a1agent/llm"
)

func TestGenerateSetsAttributionHeaders(t *testing.T) {
	var gotReferer, gotTitle string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReferer = r.Header.Get("HTTP-Referer")
		gotTitle = r.Header.Get("X-Title")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "ok"}, "finish_reason": "stop"}], "usage": {"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2}}`))
	}))
	defer server.Close()

	c := New("test-key", "meta-llama/llama-3")
	c.baseURL = server.URL
	c.Referer = "https://example.com"
	c.Title = "a1agent"

	result, err := c.Generate(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Message.Content != "ok" {
		t.Fatalf("unexpected content: %q", result.Message.Content)
	}
	if gotReferer != "https://example.com" || gotTitle != "a1agent" {
		t.Fatalf("expected attribution headers set, got referer=%q title=%q", gotReferer, gotTitle)
	}
}

func TestGenerateProtocolErrorFromErrorField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"error": {"message": "model not found"}}`))
	}))
	defer server.Close()

	c := New("test-key", "bogus")
	c.baseURL = server.URL

	_, err := c.Generate(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
}
