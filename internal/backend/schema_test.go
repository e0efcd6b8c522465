package backend_test

import (
	"testing"

	"planwise/internal/backend"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The model is prompted against these exact schemas; the contract must hold.
func TestCatalogShape(t *testing.T) {
	catalog := backend.Catalog()
	require.Len(t, catalog, 4)

	wantActions := map[string][]string{
		"manage_events": {"create", "delete"},
		"manage_tasks":  {"create", "update", "complete", "delete"},
		"manage_habits": {"create", "update", "log", "delete"},
		"manage_goals":  {"create", "update", "delete"},
	}

	for _, def := range catalog {
		actions, ok := wantActions[def.Name]
		require.True(t, ok, "unexpected function %s", def.Name)
		assert.NotEmpty(t, def.Description)

		props, ok := def.Parameters["properties"].(map[string]any)
		require.True(t, ok)
		action, ok := props["action"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, actions, action["enum"])

		_, ok = props["parameters"].(map[string]any)
		assert.True(t, ok)
		assert.Equal(t, []string{"action", "parameters"}, def.Parameters["required"])
	}
}
