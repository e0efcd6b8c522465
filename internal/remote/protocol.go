package remote

// JSON-RPC 2.0 protocol types for remote planner managers.

// JSONRPCRequest represents a JSON-RPC 2.0 request
type JSONRPCRequest struct {
	JSONRPC string `json:"jsonrpc"` // Always "2.0"
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// JSONRPCResponse represents a JSON-RPC 2.0 response
type JSONRPCResponse struct {
	JSONRPC string    `json:"jsonrpc"` // Always "2.0"
	ID      int       `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *RPCError `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC 2.0 error
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Methods spoken by remote planner managers.
const (
	MethodInitialize = "initialize"
	MethodExecute    = "planner/execute"
)

// InitializeParams represents parameters for the initialize request
type InitializeParams struct {
	ClientInfo ClientInfo `json:"clientInfo"`
}

// ClientInfo contains client identification
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeResult represents the result of the initialize request
type InitializeResult struct {
	ServerInfo ServerInfo `json:"serverInfo"`
}

// ServerInfo contains server identification
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ExecuteParams carries one planner action to a remote manager.
type ExecuteParams struct {
	Function   string         `json:"function"`
	Action     string         `json:"action"`
	Parameters map[string]any `json:"parameters"`
}

// ExecuteResult is the remote manager's outcome for one action.
type ExecuteResult struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}
