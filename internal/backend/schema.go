package backend

// The four planner functions exposed to the model. The model is prompted
// against these exact names and shapes, so they must not drift: every
// function takes an "action" verb plus a free-form "parameters" object.

func functionDef(name, description string, actions []string) FunctionDef {
	return FunctionDef{
		Name:        name,
		Description: description,
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"action": map[string]any{
					"type": "string",
					"enum": actions,
				},
				"parameters": map[string]any{
					"type":        "object",
					"description": "Action-specific parameters",
				},
			},
			"required": []string{"action", "parameters"},
		},
	}
}

// Catalog returns the fixed function schemas attached to every request.
func Catalog() []FunctionDef {
	return []FunctionDef{
		functionDef(
			"manage_events",
			"Create or delete calendar events in the user's schedule",
			[]string{"create", "delete"},
		),
		functionDef(
			"manage_tasks",
			"Create, update, complete, or delete tasks on the user's task list",
			[]string{"create", "update", "complete", "delete"},
		),
		functionDef(
			"manage_habits",
			"Create, update, log, or delete the user's habits",
			[]string{"create", "update", "log", "delete"},
		),
		functionDef(
			"manage_goals",
			"Create, update, or delete the user's goals",
			[]string{"create", "update", "delete"},
		),
	}
}
