package backend_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"planwise/internal/backend"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCompleteParsesTextResponse(t *testing.T) {
	resetAt := time.Now().Add(time.Minute).Unix()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req backend.ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "planwise-chat-1", req.Model)
		assert.Len(t, req.Functions, 4)

		w.Header().Set("X-RateLimit-Remaining", "41")
		w.Header().Set("X-RateLimit-Limit", "50")
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt, 10))
		fmt.Fprint(w, `{
			"id": "chat_1",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "Hello!"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 3}
		}`)
	}))
	defer server.Close()

	client := backend.NewClient(server.URL, "test-key", "planwise-chat-1", testLogger())
	resp, rl, err := client.Complete(context.Background(),
		[]backend.Message{{Role: "user", Content: "hi"}}, backend.Catalog())
	require.NoError(t, err)

	assert.Equal(t, "Hello!", resp.Text())
	_, _, ok := resp.Call()
	assert.False(t, ok)

	require.NotNil(t, rl)
	assert.Equal(t, 41, rl.Remaining)
	assert.Equal(t, 50, rl.Limit)
	assert.Equal(t, time.Unix(resetAt, 0), rl.ResetAt)
}

func TestCompleteParsesFunctionCalls(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "legacy function_call field",
			body: `{"choices": [{"message": {
				"role": "assistant",
				"function_call": {"name": "manage_tasks", "arguments": "{\"action\": \"create\", \"parameters\": {}}"}
			}}]}`,
		},
		{
			name: "tool_calls list",
			body: `{"choices": [{"message": {
				"role": "assistant",
				"tool_calls": [
					{"id": "t1", "type": "function", "function": {"name": "manage_tasks", "arguments": "{\"action\": \"create\", \"parameters\": {}}"}},
					{"id": "t2", "type": "function", "function": {"name": "manage_goals", "arguments": "{}"}}
				]
			}}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			client := backend.NewClient(server.URL, "test-key", "planwise-chat-1", testLogger())
			resp, _, err := client.Complete(context.Background(),
				[]backend.Message{{Role: "user", Content: "add a task"}}, backend.Catalog())
			require.NoError(t, err)

			name, args, ok := resp.Call()
			require.True(t, ok)
			assert.Equal(t, "manage_tasks", name)
			assert.JSONEq(t, `{"action": "create", "parameters": {}}`, args)
		})
	}
}

func TestCompleteSurfacesServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer server.Close()

	client := backend.NewClient(server.URL, "test-key", "planwise-chat-1", testLogger())
	_, _, err := client.Complete(context.Background(),
		[]backend.Message{{Role: "user", Content: "hi"}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestStreamDeliversChunksInOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req backend.ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("X-RateLimit-Remaining", "9")
		w.Header().Set("X-RateLimit-Limit", "50")
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Minute).Unix(), 10))

		fmt.Fprint(w, "data: {\"choices\": [{\"delta\": {\"content\": \"Hel\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\": [{\"delta\": {\"content\": \"lo\"}}]}\n\n")
		fmt.Fprint(w, "data: not-json\n\n") // malformed chunks are skipped
		fmt.Fprint(w, "data: {\"choices\": [{\"delta\": {\"content\": \"!\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	client := backend.NewClient(server.URL, "test-key", "planwise-chat-1", testLogger())

	var chunks []string
	rl, err := client.Stream(context.Background(),
		[]backend.Message{{Role: "user", Content: "hi"}}, nil,
		func(chunk string) error {
			chunks = append(chunks, chunk)
			return nil
		})
	require.NoError(t, err)

	assert.Equal(t, []string{"Hel", "lo", "!"}, chunks)
	require.NotNil(t, rl)
	assert.Equal(t, 9, rl.Remaining)
}

func TestStreamStopsOnCallbackError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for i := 0; i < 10; i++ {
			fmt.Fprintf(w, "data: {\"choices\": [{\"delta\": {\"content\": \"c%d\"}}]}\n\n", i)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	client := backend.NewClient(server.URL, "test-key", "planwise-chat-1", testLogger())

	stop := fmt.Errorf("stop here")
	var count int
	_, err := client.Stream(context.Background(),
		[]backend.Message{{Role: "user", Content: "hi"}}, nil,
		func(chunk string) error {
			count++
			if count == 2 {
				return stop
			}
			return nil
		})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 2, count)
}
