package remote_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"planwise/internal/remote"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// rpcServer answers initialize and planner/execute over HTTP JSON-RPC.
func rpcServer(t *testing.T, execute func(remote.ExecuteParams) remote.ExecuteResult) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rpc", r.URL.Path)

		var req remote.JSONRPCRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "2.0", req.JSONRPC)

		resp := remote.JSONRPCResponse{JSONRPC: "2.0", ID: req.ID}
		switch req.Method {
		case remote.MethodInitialize:
			resp.Result = remote.InitializeResult{
				ServerInfo: remote.ServerInfo{Name: "test-planner", Version: "0.1.0"},
			}
		case remote.MethodExecute:
			raw, err := json.Marshal(req.Params)
			require.NoError(t, err)
			var params remote.ExecuteParams
			require.NoError(t, json.Unmarshal(raw, &params))
			resp.Result = execute(params)
		default:
			resp.Error = &remote.RPCError{Code: -32601, Message: "method not found"}
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestNewInitializesHTTPManager(t *testing.T) {
	server := rpcServer(t, nil)
	defer server.Close()

	m, err := remote.New(context.Background(), "manage_goals", server.URL, testLogger())
	require.NoError(t, err)
	defer m.Close()

	assert.Contains(t, m.Name(), "manage_goals")
}

func TestHTTPManagerExecute(t *testing.T) {
	server := rpcServer(t, func(params remote.ExecuteParams) remote.ExecuteResult {
		assert.Equal(t, "manage_goals", params.Function)
		assert.Equal(t, "update", params.Action)
		assert.Equal(t, "Run a marathon", params.Parameters["title"])
		return remote.ExecuteResult{
			Success: true,
			Message: "Updated goal",
			Details: map[string]any{"id": "g1"},
		}
	})
	defer server.Close()

	m, err := remote.New(context.Background(), "manage_goals", server.URL, testLogger())
	require.NoError(t, err)
	defer m.Close()

	result, err := m.Execute(context.Background(), "update", map[string]any{
		"title":    "Run a marathon",
		"progress": 0.4,
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "Updated goal", result.Message)
	assert.Equal(t, "g1", result.Details["id"])
}

func TestHTTPManagerSurfacesRPCError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req remote.JSONRPCRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		resp := remote.JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &remote.RPCError{Code: -32000, Message: "store unavailable"},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	_, err := remote.New(context.Background(), "manage_goals", server.URL, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store unavailable")
}
