package dispatch_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"planwise/internal/dispatch"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeManager records every action it receives.
type fakeManager struct {
	name string
	mu   sync.Mutex
	got  []string
}

func (f *fakeManager) Execute(_ context.Context, action string, _ map[string]any) (dispatch.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, action)
	return dispatch.Result{Success: true, Message: "ok"}, nil
}

func (f *fakeManager) Close() error { return nil }

func (f *fakeManager) Name() string { return f.name }

func (f *fakeManager) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.got...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseCall(t *testing.T) {
	tests := []struct {
		name     string
		function string
		rawArgs  string
		wantErr  error
	}{
		{
			name:     "valid",
			function: dispatch.FunctionManageTasks,
			rawArgs:  `{"action": "complete", "parameters": {"title": "Buy milk"}}`,
		},
		{
			name:     "malformed JSON",
			function: dispatch.FunctionManageTasks,
			rawArgs:  `{"action": "complete",`,
			wantErr:  dispatch.ErrMalformedArguments,
		},
		{
			name:     "missing action",
			function: dispatch.FunctionManageTasks,
			rawArgs:  `{"parameters": {}}`,
			wantErr:  dispatch.ErrMalformedArguments,
		},
		{
			name:     "mistyped action",
			function: dispatch.FunctionManageTasks,
			rawArgs:  `{"action": 7, "parameters": {}}`,
			wantErr:  dispatch.ErrMalformedArguments,
		},
		{
			name:     "missing parameters",
			function: dispatch.FunctionManageTasks,
			rawArgs:  `{"action": "complete"}`,
			wantErr:  dispatch.ErrMalformedArguments,
		},
		{
			name:     "mistyped parameters",
			function: dispatch.FunctionManageTasks,
			rawArgs:  `{"action": "complete", "parameters": "yes"}`,
			wantErr:  dispatch.ErrMalformedArguments,
		},
		{
			name:     "unknown function",
			function: "manage_everything",
			rawArgs:  `{"action": "create", "parameters": {}}`,
			wantErr:  dispatch.ErrUnknownFunction,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call, err := dispatch.ParseCall(tt.function, tt.rawArgs)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "complete", call.Action)
			assert.Equal(t, "Buy milk", call.Parameters["title"])
		})
	}
}

func TestDispatchRoutesToExactlyOneManager(t *testing.T) {
	registry := dispatch.NewRegistry()
	managers := map[string]*fakeManager{}
	for _, fn := range []string{
		dispatch.FunctionManageEvents,
		dispatch.FunctionManageTasks,
		dispatch.FunctionManageHabits,
		dispatch.FunctionManageGoals,
	} {
		m := &fakeManager{name: fn}
		managers[fn] = m
		registry.Register(fn, m)
	}

	router := dispatch.NewRouter(registry, testLogger())
	result, err := router.Dispatch(context.Background(),
		dispatch.FunctionManageTasks,
		`{"action": "complete", "parameters": {"title": "Buy milk"}}`)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, dispatch.FunctionManageTasks, result.Function)
	assert.Equal(t, []string{"complete"}, managers[dispatch.FunctionManageTasks].actions())
	for _, fn := range []string{dispatch.FunctionManageEvents, dispatch.FunctionManageHabits, dispatch.FunctionManageGoals} {
		assert.Empty(t, managers[fn].actions(), "%s must not be invoked", fn)
	}
}

func TestDispatchDropsMalformedCall(t *testing.T) {
	registry := dispatch.NewRegistry()
	m := &fakeManager{name: "tasks"}
	registry.Register(dispatch.FunctionManageTasks, m)

	router := dispatch.NewRouter(registry, testLogger())
	_, err := router.Dispatch(context.Background(), dispatch.FunctionManageTasks, `{"action":`)

	assert.ErrorIs(t, err, dispatch.ErrMalformedArguments)
	assert.Empty(t, m.actions())
}

func TestDispatchUnknownFunction(t *testing.T) {
	registry := dispatch.NewRegistry()
	router := dispatch.NewRouter(registry, testLogger())

	_, err := router.Dispatch(context.Background(), "manage_weather",
		`{"action": "create", "parameters": {}}`)
	assert.ErrorIs(t, err, dispatch.ErrUnknownFunction)
}

func TestDispatchUnregisteredFunction(t *testing.T) {
	// Known name but nothing bound to it.
	registry := dispatch.NewRegistry()
	router := dispatch.NewRouter(registry, testLogger())

	_, err := router.Dispatch(context.Background(), dispatch.FunctionManageGoals,
		`{"action": "create", "parameters": {}}`)
	assert.ErrorIs(t, err, dispatch.ErrUnknownFunction)
}
