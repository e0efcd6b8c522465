package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// Call is a parsed function-call request: the function name, the raw JSON
// argument string it came from, and the required action/parameters pair.
type Call struct {
	Function   string
	RawArgs    string
	Action     string
	Parameters map[string]any
}

// ParseCall validates a function name and parses its JSON argument string.
// Arguments must carry an "action" string and a "parameters" object; missing
// or mistyped keys fail with ErrMalformedArguments.
func ParseCall(function, rawArgs string) (Call, error) {
	call := Call{Function: function, RawArgs: rawArgs}

	switch function {
	case FunctionManageEvents, FunctionManageTasks, FunctionManageHabits, FunctionManageGoals:
	default:
		return call, fmt.Errorf("%w: %s", ErrUnknownFunction, function)
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return call, fmt.Errorf("%w: %v", ErrMalformedArguments, err)
	}

	action, ok := args["action"].(string)
	if !ok || action == "" {
		return call, fmt.Errorf("%w: missing or mistyped action", ErrMalformedArguments)
	}

	params, ok := args["parameters"].(map[string]any)
	if !ok {
		return call, fmt.Errorf("%w: missing or mistyped parameters", ErrMalformedArguments)
	}

	call.Action = action
	call.Parameters = params
	return call, nil
}

// Router parses function-call requests and dispatches them to the manager
// registered for the named function.
type Router struct {
	registry *Registry
	logger   *slog.Logger
}

// NewRouter creates a router over a registry.
func NewRouter(registry *Registry, logger *slog.Logger) *Router {
	return &Router{registry: registry, logger: logger}
}

// Dispatch parses the argument string and routes the call to exactly one
// manager. Parse failures and unknown functions are returned as typed
// recoverable errors after logging; the call is dropped.
func (r *Router) Dispatch(ctx context.Context, function, rawArgs string) (Result, error) {
	call, err := ParseCall(function, rawArgs)
	if err != nil {
		r.logger.Warn("dropping function call", "function", function, "error", err)
		return Result{Function: function}, err
	}

	m, ok := r.registry.Get(call.Function)
	if !ok {
		r.logger.Warn("no manager registered", "function", call.Function)
		return Result{Function: function}, fmt.Errorf("%w: %s", ErrUnknownFunction, call.Function)
	}

	result, err := m.Execute(ctx, call.Action, call.Parameters)
	if err != nil {
		return Result{Function: function}, fmt.Errorf("manager %s failed: %w", m.Name(), err)
	}

	result.Function = call.Function
	r.logger.Info("dispatched function call",
		"function", call.Function,
		"action", call.Action,
		"success", result.Success)
	return result, nil
}
