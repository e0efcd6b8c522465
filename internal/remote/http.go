package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"

	"planwise/internal/dispatch"
)

// HTTPManager is a planner manager served by a remote process over HTTP.
type HTTPManager struct {
	name       string
	function   string
	baseURL    string
	httpClient *http.Client
	reqID      int32
	logger     *slog.Logger
}

// NewHTTPManager creates an HTTP-based remote manager for one function name.
func NewHTTPManager(function, baseURL string, logger *slog.Logger) (*HTTPManager, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	m := &HTTPManager{
		name:       function + "@" + baseURL,
		function:   function,
		baseURL:    baseURL,
		httpClient: &http.Client{},
		logger:     logger,
	}

	logger.Info("created remote HTTP manager", "function", function, "url", baseURL)
	return m, nil
}

// Name returns the manager identifier
func (m *HTTPManager) Name() string {
	return m.name
}

// Initialize performs the JSON-RPC handshake with the remote manager.
func (m *HTTPManager) Initialize(ctx context.Context) error {
	params := InitializeParams{
		ClientInfo: ClientInfo{
			Name:    "planwise",
			Version: "1.0.0",
		},
	}

	var result InitializeResult
	if err := m.sendRequest(ctx, MethodInitialize, params, &result); err != nil {
		return fmt.Errorf("initialize failed: %w", err)
	}

	m.logger.Info("remote manager initialized", "server", result.ServerInfo.Name, "version", result.ServerInfo.Version)
	return nil
}

// Execute forwards one planner action to the remote manager.
func (m *HTTPManager) Execute(ctx context.Context, action string, params map[string]any) (dispatch.Result, error) {
	req := ExecuteParams{
		Function:   m.function,
		Action:     action,
		Parameters: params,
	}

	var result ExecuteResult
	if err := m.sendRequest(ctx, MethodExecute, req, &result); err != nil {
		return dispatch.Result{}, fmt.Errorf("remote execute failed: %w", err)
	}

	m.logger.Info("executed remote action", "manager", m.name, "action", action, "success", result.Success)
	return dispatch.Result{
		Success: result.Success,
		Message: result.Message,
		Details: result.Details,
	}, nil
}

// Close disconnects from the remote manager.
func (m *HTTPManager) Close() error {
	m.logger.Info("closed remote HTTP manager", "name", m.name)
	return nil
}

// sendRequest sends an HTTP JSON-RPC request
func (m *HTTPManager) sendRequest(ctx context.Context, method string, params any, result any) error {
	reqID := int(atomic.AddInt32(&m.reqID, 1))

	request := JSONRPCRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	}

	requestJSON, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", m.baseURL+"/rpc", bytes.NewBuffer(requestJSON))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := m.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send HTTP request: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(httpResp.Body)
		return fmt.Errorf("HTTP error %d: %s", httpResp.StatusCode, string(body))
	}

	responseJSON, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var response JSONRPCResponse
	if err := json.Unmarshal(responseJSON, &response); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if response.Error != nil {
		return fmt.Errorf("RPC error %d: %s", response.Error.Code, response.Error.Message)
	}

	if result != nil {
		resultJSON, err := json.Marshal(response.Result)
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		if err := json.Unmarshal(resultJSON, result); err != nil {
			return fmt.Errorf("failed to unmarshal result: %w", err)
		}
	}

	return nil
}
