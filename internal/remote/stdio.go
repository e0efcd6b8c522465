package remote

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"sync/atomic"

	"planwise/internal/dispatch"
)

// StdioManager is a planner manager served by a local helper process spoken
// to over stdin/stdout, one JSON-RPC message per line.
type StdioManager struct {
	name     string
	function string
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	stdout   io.ReadCloser
	stderr   io.ReadCloser
	scanner  *bufio.Scanner
	reqID    int32
	logger   *slog.Logger
	mu       sync.Mutex
	closed   bool
}

// NewStdioManager starts the helper process and creates a remote manager for
// one function name.
func NewStdioManager(function, command string, logger *slog.Logger) (*StdioManager, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	cmd := exec.Command(command)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdin.Close()
		stdout.Close()
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		stderr.Close()
		return nil, fmt.Errorf("failed to start helper process: %w", err)
	}

	m := &StdioManager{
		name:     function + "@" + command,
		function: function,
		cmd:      cmd,
		stdin:    stdin,
		stdout:   stdout,
		stderr:   stderr,
		scanner:  bufio.NewScanner(stdout),
		logger:   logger,
	}

	go m.logStderr()

	logger.Info("started remote stdio manager", "function", function, "command", command)
	return m, nil
}

// Name returns the manager identifier
func (m *StdioManager) Name() string {
	return m.name
}

// Initialize performs the JSON-RPC handshake with the helper process.
func (m *StdioManager) Initialize(ctx context.Context) error {
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

// Execute forwards one planner action to the helper process.
func (m *StdioManager) Execute(ctx context.Context, action string, params map[string]any) (dispatch.Result, error) {
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

// Close shuts down the helper process.
func (m *StdioManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	if m.stdin != nil {
		m.stdin.Close()
	}
	if m.stdout != nil {
		m.stdout.Close()
	}
	if m.stderr != nil {
		m.stderr.Close()
	}

	if m.cmd != nil && m.cmd.Process != nil {
		if err := m.cmd.Process.Kill(); err != nil {
			m.logger.Warn("failed to kill helper process", "error", err)
		}
		m.cmd.Wait() // Clean up zombie process
	}

	m.logger.Info("closed remote stdio manager", "name", m.name)
	return nil
}

// sendRequest sends a JSON-RPC request and waits for the response line.
func (m *StdioManager) sendRequest(ctx context.Context, method string, params any, result any) error {
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

	requestJSON, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	if _, err := m.stdin.Write(append(requestJSON, '\n')); err != nil {
		return fmt.Errorf("failed to write request: %w", err)
	}

	if !m.scanner.Scan() {
		if err := m.scanner.Err(); err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}
		return fmt.Errorf("EOF from helper process")
	}

	var response JSONRPCResponse
	if err := json.Unmarshal(m.scanner.Bytes(), &response); err != nil {
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

// logStderr logs stderr output from the helper process.
func (m *StdioManager) logStderr() {
	scanner := bufio.NewScanner(m.stderr)
	for scanner.Scan() {
		m.logger.Warn("helper process stderr", "manager", m.name, "message", scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		m.logger.Error("error reading stderr", "manager", m.name, "error", err)
	}
}
