// Package anthropic adapts llm.Reasoner to Anthropic's Messages API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shoheigorila/a1agent/common/backoff"
	"github.com/shoheigorila/a1agent/llm"
	"github.com/shoheigorila/a1agent/log"
)

const defaultBaseURL = "https://api.anthropic.com/v1/messages"
const defaultTimeout = 120 * time.Second
const maxRetries = 3

// Client is a thin net/http + encoding/json Reasoner over Anthropic's wire
// schema, retrying transient failures with the teacher's common/backoff.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	log        log.Logger
}

func New(apiKey, model string) *Client {
	return &Client{
		apiKey:     apiKey,
		model:      model,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		log:        log.New("component", "llm/anthropic"),
	}
}

type wireTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

type wireContentBlock struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
}

type wireMessage struct {
	Role    string             `json:"role"`
	Content []wireContentBlock `json:"content"`
}

type wireRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	System    string        `json:"system,omitempty"`
	Messages  []wireMessage `json:"messages"`
	Tools     []wireTool    `json:"tools,omitempty"`
}

type wireUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type wireResponse struct {
	Content    []wireContentBlock `json:"content"`
	StopReason string             `json:"stop_reason"`
	Usage      wireUsage          `json:"usage"`
	Error      *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Generate implements llm.Reasoner.
func (c *Client) Generate(ctx context.Context, messages []llm.Message, tools []llm.ToolDef) (llm.GenerateResult, error) {
	req := toWireRequest(c.model, messages, tools)

	var resp wireResponse
	b := backoff.NewExponential(250*time.Millisecond, 8*time.Second, 250*time.Millisecond)
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		var status int
		var err error
		status, err = c.doRequest(ctx, req, &resp)
		if err == nil && status < 500 && status != 429 {
			break
		}
		lastErr = err
		if status == 429 || status >= 500 {
			lastErr = &llm.Error{Kind: llm.KindRateLimit, Msg: fmt.Sprintf("http %d", status)}
		}
		select {
		case <-ctx.Done():
			return llm.GenerateResult{}, &llm.Error{Kind: llm.KindTimeout, Msg: "context done", Err: ctx.Err()}
		case <-time.After(b.NextDuration()):
		}
	}
	if resp.Error != nil {
		return llm.GenerateResult{}, &llm.Error{Kind: llm.KindProtocol, Msg: resp.Error.Message}
	}
	if lastErr != nil && resp.StopReason == "" {
		return llm.GenerateResult{}, lastErr
	}

	return fromWireResponse(resp), nil
}

func (c *Client) doRequest(ctx context.Context, req wireRequest, out *wireResponse) (int, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return 0, &llm.Error{Kind: llm.KindProtocol, Msg: "marshal request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return 0, &llm.Error{Kind: llm.KindTransport, Msg: "build request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, &llm.Error{Kind: llm.KindTransport, Msg: "do request", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, &llm.Error{Kind: llm.KindTransport, Msg: "read body", Err: err}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return resp.StatusCode, &llm.Error{Kind: llm.KindProtocol, Msg: "decode response", Err: err}
	}
	return resp.StatusCode, nil
}

func toWireRequest(model string, messages []llm.Message, tools []llm.ToolDef) wireRequest {
	req := wireRequest{Model: model, MaxTokens: 4096}

	for _, m := range messages {
		switch m.Role {
		case llm.RoleSystem:
			req.System = m.Content
		case llm.RoleTool:
			req.Messages = append(req.Messages, wireMessage{
				Role: "user",
				Content: []wireContentBlock{{
					Type:      "tool_result",
					ToolUseID: m.ToolCallID,
					Content:   m.Content,
				}},
			})
		default:
			blocks := []wireContentBlock{}
			if m.Content != "" {
				blocks = append(blocks, wireContentBlock{Type: "text", Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				input, _ := json.Marshal(tc.Arguments)
				blocks = append(blocks, wireContentBlock{Type: "tool_use", ID: tc.ID, Name: tc.Name, Input: input})
			}
			req.Messages = append(req.Messages, wireMessage{Role: string(m.Role), Content: blocks})
		}
	}

	for _, t := range tools {
		req.Tools = append(req.Tools, wireTool{Name: t.Name, Description: t.Description, InputSchema: t.Parameters})
	}
	return req
}

func fromWireResponse(resp wireResponse) llm.GenerateResult {
	msg := llm.Message{Role: llm.RoleAssistant}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			msg.Content += block.Text
		case "tool_use":
			var args map[string]interface{}
			json.Unmarshal(block.Input, &args)
			msg.ToolCalls = append(msg.ToolCalls, llm.ToolCall{ID: block.ID, Name: block.Name, Arguments: args})
		}
	}

	finish := llm.FinishStop
	switch resp.StopReason {
	case "tool_use":
		finish = llm.FinishToolCalls
	case "max_tokens":
		finish = llm.FinishLength
	}

	return llm.GenerateResult{
		Message:      msg,
		FinishReason: finish,
		Usage: llm.Usage{
			Prompt:     resp.Usage.InputTokens,
			Completion: resp.Usage.OutputTokens,
			Total:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}
}
