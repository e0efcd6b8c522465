package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"planwise/internal/dispatch"

	"github.com/gorilla/websocket"
)

// WebSocketManager is a planner manager served by a remote process over a
// WebSocket connection.
type WebSocketManager struct {
	name     string
	function string
	url      string
	conn     *websocket.Conn
	reqID    int32
	logger   *slog.Logger
	mu       sync.Mutex
	closed   bool
}

// NewWebSocketManager dials the endpoint and creates a remote manager for
// one function name.
func NewWebSocketManager(function, url string, logger *slog.Logger) (*WebSocketManager, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to WebSocket: %w", err)
	}

	m := &WebSocketManager{
		name:     function + "@" + url,
		function: function,
		url:      url,
		conn:     conn,
		logger:   logger,
	}

	logger.Info("created remote WebSocket manager", "function", function, "url", url)
	return m, nil
}

// Name returns the manager identifier
func (m *WebSocketManager) Name() string {
	return m.name
}

// Initialize performs the JSON-RPC handshake with the remote manager.
func (m *WebSocketManager) Initialize(ctx context.Context) error {
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
func (m *WebSocketManager) Execute(ctx context.Context, action string, params map[string]any) (dispatch.Result, error) {
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
func (m *WebSocketManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	if m.conn != nil {
		m.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		m.conn.Close()
	}

	m.logger.Info("closed remote WebSocket manager", "name", m.name)
	return nil
}

// sendRequest sends a JSON-RPC request over the WebSocket
func (m *WebSocketManager) sendRequest(ctx context.Context, method string, params any, result any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("manager is closed")
	}

	reqID := int(atomic.AddInt32(&m.reqID, 1))

	request := JSONRPCRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	}

	if err := m.conn.WriteJSON(request); err != nil {
		return fmt.Errorf("failed to write request: %w", err)
	}

	var response JSONRPCResponse
	if err := m.conn.ReadJSON(&response); err != nil {
		return fmt.Errorf("failed to read response: %w", err)
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
