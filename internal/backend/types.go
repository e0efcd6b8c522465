package backend

import (
	"net/http"
	"strconv"
	"time"
)

// Message is a chat message on the wire.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// FunctionDef describes one callable function offered to the model.
type FunctionDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ChatRequest is the request body for the chat completion endpoint.
type ChatRequest struct {
	Model     string        `json:"model"`
	Messages  []Message     `json:"messages"`
	Functions []FunctionDef `json:"functions,omitempty"`
	Stream    bool          `json:"stream,omitempty"`
}

// FunctionCall is the legacy single-call field on a response message.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCall is one entry of the tool_calls list on a response message.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// ResponseMessage is the assistant message inside a choice.
type ResponseMessage struct {
	Role         string        `json:"role"`
	Content      string        `json:"content"`
	FunctionCall *FunctionCall `json:"function_call,omitempty"`
	ToolCalls    []ToolCall    `json:"tool_calls,omitempty"`
}

// Choice is one completion alternative.
type Choice struct {
	Index        int             `json:"index"`
	Message      ResponseMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

// ChatResponse is the response body from the chat completion endpoint.
type ChatResponse struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Created int64          `json:"created"`
	Model   string         `json:"model"`
	Choices []Choice       `json:"choices"`
	Usage   map[string]any `json:"usage"`
}

// Call returns the first function invocation on the response, preferring the
// legacy function_call field over the tool_calls list.
func (r *ChatResponse) Call() (name, args string, ok bool) {
	if len(r.Choices) == 0 {
		return "", "", false
	}
	msg := r.Choices[0].Message
	if msg.FunctionCall != nil {
		return msg.FunctionCall.Name, msg.FunctionCall.Arguments, true
	}
	if len(msg.ToolCalls) > 0 {
		return msg.ToolCalls[0].Function.Name, msg.ToolCalls[0].Function.Arguments, true
	}
	return "", "", false
}

// Text returns the plain text content of the first choice.
func (r *ChatResponse) Text() string {
	if len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// StreamChunk is one incremental event of a streaming response.
type StreamChunk struct {
	ID      string `json:"id"`
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// RateLimitInfo is the quota metadata returned alongside responses.
type RateLimitInfo struct {
	Remaining int
	Limit     int
	ResetAt   time.Time
}

// parseRateLimit reads quota metadata from response headers. Reset is a unix
// timestamp in seconds.
func parseRateLimit(h http.Header) (*RateLimitInfo, bool) {
	remainingStr := h.Get("X-RateLimit-Remaining")
	limitStr := h.Get("X-RateLimit-Limit")
	resetStr := h.Get("X-RateLimit-Reset")
	if remainingStr == "" || limitStr == "" || resetStr == "" {
		return nil, false
	}

	remaining, err := strconv.Atoi(remainingStr)
	if err != nil {
		return nil, false
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		return nil, false
	}
	resetUnix, err := strconv.ParseInt(resetStr, 10, 64)
	if err != nil {
		return nil, false
	}

	return &RateLimitInfo{
		Remaining: remaining,
		Limit:     limit,
		ResetAt:   time.Unix(resetUnix, 0),
	}, true
}
