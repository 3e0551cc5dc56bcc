// Package openai adapts llm.Reasoner to OpenAI's Chat Completions API.
package openai

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

const defaultBaseURL = "https://api.openai.com/v1/chat/completions"
const defaultTimeout = 120 * time.Second
const maxRetries = 3

// Client is a thin net/http + encoding/json Reasoner over OpenAI's wire
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
		log:        log.New("component", "llm/openai"),
	}
}

type wireFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type wireToolDef struct {
	Type     string       `json:"type"`
	Function wireFunction `json:"function"`
}

type wireFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type wireToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function wireFunctionCall `json:"function"`
}

type wireMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content,omitempty"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type wireRequest struct {
	Model    string        `json:"model"`
	Messages []wireMessage `json:"messages"`
	Tools    []wireToolDef `json:"tools,omitempty"`
}

type wireChoice struct {
	Message      wireMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type wireUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type wireResponse struct {
	Choices []wireChoice `json:"choices"`
	Usage   wireUsage    `json:"usage"`
	Error   *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Generate implements llm.Reasoner.
func (c *Client) Generate(ctx context.Context, messages []llm.Message, tools []llm.ToolDef) (llm.GenerateResult, error) {
	req := toWireRequest(c.model, messages, tools)

	var resp wireResponse
	b := backoff.NewExponential(250*time.Millisecond, 8*time.Second, 250*time.Millisecond)
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		status, err := c.doRequest(ctx, req, &resp)
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
	if len(resp.Choices) == 0 {
		if lastErr != nil {
			return llm.GenerateResult{}, lastErr
		}
		return llm.GenerateResult{}, &llm.Error{Kind: llm.KindProtocol, Msg: "no choices returned"}
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
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

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
	req := wireRequest{Model: model}

	for _, m := range messages {
		wm := wireMessage{Role: string(m.Role), Content: m.Content}
		if m.Role == llm.RoleTool {
			wm.ToolCallID = m.ToolCallID
		}
		for _, tc := range m.ToolCalls {
			args, _ := json.Marshal(tc.Arguments)
			wm.ToolCalls = append(wm.ToolCalls, wireToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: wireFunctionCall{
					Name:      tc.Name,
					Arguments: string(args),
				},
			})
		}
		req.Messages = append(req.Messages, wm)
	}

	for _, t := range tools {
		req.Tools = append(req.Tools, wireToolDef{
			Type: "function",
			Function: wireFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return req
}

func fromWireResponse(resp wireResponse) llm.GenerateResult {
	choice := resp.Choices[0]
	msg := llm.Message{Role: llm.RoleAssistant, Content: choice.Message.Content}
	for _, tc := range choice.Message.ToolCalls {
		var args map[string]interface{}
		json.Unmarshal([]byte(tc.Function.Arguments), &args)
		msg.ToolCalls = append(msg.ToolCalls, llm.ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: args})
	}

	finish := llm.FinishStop
	switch choice.FinishReason {
	case "tool_calls":
		finish = llm.FinishToolCalls
	case "length":
		finish = llm.FinishLength
	}

	return llm.GenerateResult{
		Message:      msg,
		FinishReason: finish,
		Usage: llm.Usage{
			Prompt:     resp.Usage.PromptTokens,
			Completion: resp.Usage.CompletionTokens,
			Total:      resp.Usage.TotalTokens,
		},
	}
}
