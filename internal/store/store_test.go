package store_test

import (
	"path/filepath"
	"testing"
	"time"

	"planwise/internal/session"
	"planwise/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "planwise.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestSaveAndLoadSession(t *testing.T) {
	st := openTestStore(t)

	start := time.Now().Truncate(time.Second)
	sess := &session.Session{
		ID:        "sess-1",
		StartTime: start,
		Model:     "planwise-chat-1",
		Messages: []session.Message{
			{
				ID:        "msg-1",
				Role:      session.RoleUser,
				Content:   "add a task to buy milk",
				Timestamp: start.Add(time.Second),
			},
			{
				ID:        "msg-2",
				Role:      session.RoleAssistant,
				Content:   `Created task "Buy milk"`,
				Timestamp: start.Add(2 * time.Second),
				Call: &session.FunctionCall{
					Name:      "manage_tasks",
					Arguments: `{"action": "create", "parameters": {"title": "Buy milk"}}`,
				},
				Result: &session.FunctionResult{
					Function: "manage_tasks",
					Success:  true,
					Message:  `Created task "Buy milk"`,
					Details:  map[string]any{"title": "Buy milk"},
				},
			},
		},
	}
	require.NoError(t, st.SaveSession(sess))

	loaded, err := st.LoadSession("sess-1")
	require.NoError(t, err)

	assert.Equal(t, sess.ID, loaded.ID)
	assert.Equal(t, sess.Model, loaded.Model)
	require.Len(t, loaded.Messages, 2)

	assert.Equal(t, "msg-1", loaded.Messages[0].ID)
	assert.Nil(t, loaded.Messages[0].Call)

	got := loaded.Messages[1]
	require.NotNil(t, got.Call)
	assert.Equal(t, "manage_tasks", got.Call.Name)
	require.NotNil(t, got.Result)
	assert.True(t, got.Result.Success)
	assert.Equal(t, "Buy milk", got.Result.Details["title"])
}

func TestSaveSessionIsIdempotent(t *testing.T) {
	st := openTestStore(t)

	sess := &session.Session{
		ID:        "sess-2",
		StartTime: time.Now(),
		Model:     "planwise-chat-1",
		Messages: []session.Message{
			{ID: "msg-1", Role: session.RoleUser, Content: "hello", Timestamp: time.Now()},
		},
	}
	require.NoError(t, st.SaveSession(sess))

	sess.Messages = append(sess.Messages, session.Message{
		ID: "msg-2", Role: session.RoleAssistant, Content: "hi", Timestamp: time.Now(),
	})
	require.NoError(t, st.SaveSession(sess))

	loaded, err := st.LoadSession("sess-2")
	require.NoError(t, err)
	assert.Len(t, loaded.Messages, 2)
}

func TestLoadMissingSession(t *testing.T) {
	st := openTestStore(t)

	_, err := st.LoadSession("nope")
	assert.Error(t, err)
}
