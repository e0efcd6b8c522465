package backend

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Client talks to the remote chat completion endpoint.
type Client struct {
	baseURL      string
	apiKey       string
	model        string
	httpClient   *http.Client
	streamClient *http.Client
	logger       *slog.Logger
}

// NewClient creates a chat client.
func NewClient(baseURL, apiKey, model string, logger *slog.Logger) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		model:        model,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		streamClient: &http.Client{Timeout: 0}, // no timeout for SSE streams
		logger:       logger,
	}
}

// Complete sends the conversation and returns the full response plus any
// rate-limit metadata the server attached.
func (c *Client) Complete(ctx context.Context, messages []Message, functions []FunctionDef) (*ChatResponse, *RateLimitInfo, error) {
	reqBody := ChatRequest{
		Model:     c.model,
		Messages:  messages,
		Functions: functions,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("content-type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	rl, _ := parseRateLimit(resp.Header)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, rl, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, rl, fmt.Errorf("API error: %s - %s", resp.Status, string(body))
	}

	var apiResp ChatResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, rl, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return &apiResp, rl, nil
}

// Stream sends the conversation in streaming mode and invokes onChunk for
// each incremental content delta until the source signals completion. A
// non-nil error from onChunk stops consumption and is returned.
func (c *Client) Stream(ctx context.Context, messages []Message, functions []FunctionDef, onChunk func(string) error) (*RateLimitInfo, error) {
	reqBody := ChatRequest{
		Model:     c.model,
		Messages:  messages,
		Functions: functions,
		Stream:    true,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("content-type", "application/json")
	req.Header.Set("accept", "text/event-stream")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	rl, _ := parseRateLimit(resp.Header)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return rl, fmt.Errorf("API error: %s - %s", resp.Status, string(body))
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}

		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			return rl, nil
		}

		var chunk StreamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			c.logger.Warn("skipping malformed stream chunk", "error", err)
			continue
		}

		for _, choice := range chunk.Choices {
			if choice.Delta.Content == "" {
				continue
			}
			if err := onChunk(choice.Delta.Content); err != nil {
				return rl, err
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return rl, fmt.Errorf("stream read failed: %w", err)
	}

	return rl, nil
}
