// Package remote lets a planner function be served by an out-of-process
// manager. Endpoints speak JSON-RPC 2.0 over HTTP, WebSocket, or stdio.
package remote

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"planwise/internal/dispatch"
)

// initializer is satisfied by all transports in this package.
type initializer interface {
	dispatch.Manager
	Initialize(ctx context.Context) error
}

// New creates and initializes a remote manager for a function name. The
// transport is chosen from the endpoint: ws:// or wss:// for WebSocket,
// http:// or https:// for HTTP, anything else is run as a helper process.
func New(ctx context.Context, function, endpoint string, logger *slog.Logger) (dispatch.Manager, error) {
	var m initializer
	var err error

	switch {
	case strings.HasPrefix(endpoint, "ws://"), strings.HasPrefix(endpoint, "wss://"):
		m, err = NewWebSocketManager(function, endpoint, logger)
	case strings.HasPrefix(endpoint, "http://"), strings.HasPrefix(endpoint, "https://"):
		m, err = NewHTTPManager(function, endpoint, logger)
	default:
		m, err = NewStdioManager(function, endpoint, logger)
	}
	if err != nil {
		return nil, err
	}

	if err := m.Initialize(ctx); err != nil {
		m.Close()
		return nil, fmt.Errorf("failed to initialize remote manager for %s: %w", function, err)
	}

	return m, nil
}
