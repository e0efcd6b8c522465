// Package planner implements the four domain managers the AI gateway
// dispatches to: schedule (events), tasks, habits, and goals. Each manager
// is a CRUD facade over the SQLite store and implements dispatch.Manager.
package planner

import (
	"fmt"
	"time"
)

// Event is a calendar entry.
type Event struct {
	ID       string
	Title    string
	StartsAt time.Time
	EndsAt   time.Time
	Location string
	Notes    string
}

// Task is a to-do item.
type Task struct {
	ID          string
	Title       string
	Due         time.Time
	Priority    int
	Completed   bool
	CompletedAt time.Time
	Notes       string
}

// Habit is a recurring practice the user logs against.
type Habit struct {
	ID        string
	Name      string
	Frequency string
	CreatedAt time.Time
}

// Goal is a long-running objective with a progress fraction.
type Goal struct {
	ID         string
	Title      string
	TargetDate time.Time
	Progress   float64
	Notes      string
}

// Parameter extraction helpers. The parameter bag comes from model output,
// so every value is optional and loosely typed.

func stringParam(params map[string]any, key string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return ""
}

func requireString(params map[string]any, key string) (string, error) {
	v := stringParam(params, key)
	if v == "" {
		return "", fmt.Errorf("missing required parameter %q", key)
	}
	return v, nil
}

func timeParam(params map[string]any, key string) (time.Time, bool) {
	raw, ok := params[key].(string)
	if !ok || raw == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func intParam(params map[string]any, key string) (int, bool) {
	switch v := params[key].(type) {
	case float64: // JSON numbers decode as float64
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}

func floatParam(params map[string]any, key string) (float64, bool) {
	switch v := params[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}
