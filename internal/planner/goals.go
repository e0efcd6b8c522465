package planner

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"planwise/internal/dispatch"

	"github.com/google/uuid"
)

// GoalManager handles manage_goals calls.
type GoalManager struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewGoalManager creates the goals manager.
func NewGoalManager(db *sql.DB, logger *slog.Logger) *GoalManager {
	return &GoalManager{db: db, logger: logger}
}

// Name returns the manager identifier
func (m *GoalManager) Name() string { return "goals" }

// Close implements dispatch.Manager; the store owns the database handle.
func (m *GoalManager) Close() error { return nil }

// Execute runs a single goals action.
func (m *GoalManager) Execute(ctx context.Context, action string, params map[string]any) (dispatch.Result, error) {
	switch action {
	case "create":
		return m.CreateGoal(ctx, params)
	case "update":
		return m.UpdateGoal(ctx, params)
	case "delete":
		return m.DeleteGoal(ctx, params)
	default:
		return dispatch.Result{Message: fmt.Sprintf("unsupported goals action %q", action)}, nil
	}
}

// CreateGoal inserts a new goal.
func (m *GoalManager) CreateGoal(ctx context.Context, params map[string]any) (dispatch.Result, error) {
	title, err := requireString(params, "title")
	if err != nil {
		return dispatch.Result{Message: err.Error()}, nil
	}

	goal := Goal{
		ID:    uuid.NewString(),
		Title: title,
		Notes: stringParam(params, "notes"),
	}
	if t, ok := timeParam(params, "target_date"); ok {
		goal.TargetDate = t
	}

	_, err = m.db.ExecContext(ctx,
		"INSERT INTO goals (id, title, target_date, progress, notes) VALUES (?, ?, ?, ?, ?)",
		goal.ID, goal.Title, goal.TargetDate, goal.Progress, goal.Notes,
	)
	if err != nil {
		return dispatch.Result{}, fmt.Errorf("failed to create goal: %w", err)
	}

	m.logger.Info("created goal", "id", goal.ID, "title", goal.Title)
	return dispatch.Result{
		Success: true,
		Message: fmt.Sprintf("Created goal %q", goal.Title),
		Details: map[string]any{"id": goal.ID, "title": goal.Title},
	}, nil
}

// UpdateGoal changes fields of an existing goal. Progress is clamped to
// the [0, 1] range.
func (m *GoalManager) UpdateGoal(ctx context.Context, params map[string]any) (dispatch.Result, error) {
	id, err := m.resolveGoal(ctx, params)
	if err != nil {
		return dispatch.Result{Message: err.Error()}, nil
	}

	sets := []string{}
	args := []any{}
	if title := stringParam(params, "new_title"); title != "" {
		sets = append(sets, "title = ?")
		args = append(args, title)
	}
	if t, ok := timeParam(params, "target_date"); ok {
		sets = append(sets, "target_date = ?")
		args = append(args, t)
	}
	if p, ok := floatParam(params, "progress"); ok {
		if p < 0 {
			p = 0
		}
		if p > 1 {
			p = 1
		}
		sets = append(sets, "progress = ?")
		args = append(args, p)
	}
	if notes := stringParam(params, "notes"); notes != "" {
		sets = append(sets, "notes = ?")
		args = append(args, notes)
	}
	if len(sets) == 0 {
		return dispatch.Result{Message: "nothing to update"}, nil
	}

	args = append(args, id)
	_, err = m.db.ExecContext(ctx,
		"UPDATE goals SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return dispatch.Result{}, fmt.Errorf("failed to update goal: %w", err)
	}

	m.logger.Info("updated goal", "id", id)
	return dispatch.Result{Success: true, Message: "Updated goal", Details: map[string]any{"id": id}}, nil
}

// DeleteGoal removes a goal.
func (m *GoalManager) DeleteGoal(ctx context.Context, params map[string]any) (dispatch.Result, error) {
	id, err := m.resolveGoal(ctx, params)
	if err != nil {
		return dispatch.Result{Message: err.Error()}, nil
	}

	if _, err := m.db.ExecContext(ctx, "DELETE FROM goals WHERE id = ?", id); err != nil {
		return dispatch.Result{}, fmt.Errorf("failed to delete goal: %w", err)
	}

	m.logger.Info("deleted goal", "id", id)
	return dispatch.Result{Success: true, Message: "Deleted goal"}, nil
}

// ListGoals returns all goals ordered by target date.
func (m *GoalManager) ListGoals(ctx context.Context) ([]Goal, error) {
	rows, err := m.db.QueryContext(ctx,
		"SELECT id, title, target_date, progress, notes FROM goals ORDER BY target_date")
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}
	defer rows.Close()

	var goals []Goal
	for rows.Next() {
		var g Goal
		if err := rows.Scan(&g.ID, &g.Title, &g.TargetDate, &g.Progress, &g.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan goal: %w", err)
		}
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

// resolveGoal finds a goal ID from an "id" or "title" parameter.
func (m *GoalManager) resolveGoal(ctx context.Context, params map[string]any) (string, error) {
	if id := stringParam(params, "id"); id != "" {
		return id, nil
	}
	title := stringParam(params, "title")
	if title == "" {
		return "", fmt.Errorf("missing required parameter %q or %q", "id", "title")
	}

	var id string
	err := m.db.QueryRowContext(ctx, "SELECT id FROM goals WHERE title = ?", title).Scan(&id)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("goal %q not found", title)
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up goal: %w", err)
	}
	return id, nil
}
