package planner

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"planwise/internal/dispatch"

	"github.com/google/uuid"
)

// TaskManager handles manage_tasks calls.
type TaskManager struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewTaskManager creates the tasks manager.
func NewTaskManager(db *sql.DB, logger *slog.Logger) *TaskManager {
	return &TaskManager{db: db, logger: logger}
}

// Name returns the manager identifier
func (m *TaskManager) Name() string { return "tasks" }

// Close implements dispatch.Manager; the store owns the database handle.
func (m *TaskManager) Close() error { return nil }

// Execute runs a single tasks action.
func (m *TaskManager) Execute(ctx context.Context, action string, params map[string]any) (dispatch.Result, error) {
	switch action {
	case "create":
		return m.CreateTask(ctx, params)
	case "update":
		return m.UpdateTask(ctx, params)
	case "complete":
		return m.CompleteTask(ctx, params)
	case "delete":
		return m.DeleteTask(ctx, params)
	default:
		return dispatch.Result{Message: fmt.Sprintf("unsupported tasks action %q", action)}, nil
	}
}

// CreateTask inserts a new task.
func (m *TaskManager) CreateTask(ctx context.Context, params map[string]any) (dispatch.Result, error) {
	title, err := requireString(params, "title")
	if err != nil {
		return dispatch.Result{Message: err.Error()}, nil
	}

	task := Task{
		ID:    uuid.NewString(),
		Title: title,
		Notes: stringParam(params, "notes"),
	}
	if t, ok := timeParam(params, "due"); ok {
		task.Due = t
	}
	if p, ok := intParam(params, "priority"); ok {
		task.Priority = p
	}

	_, err = m.db.ExecContext(ctx,
		"INSERT INTO tasks (id, title, due, priority, notes) VALUES (?, ?, ?, ?, ?)",
		task.ID, task.Title, task.Due, task.Priority, task.Notes,
	)
	if err != nil {
		return dispatch.Result{}, fmt.Errorf("failed to create task: %w", err)
	}

	m.logger.Info("created task", "id", task.ID, "title", task.Title)
	return dispatch.Result{
		Success: true,
		Message: fmt.Sprintf("Created task %q", task.Title),
		Details: map[string]any{"id": task.ID, "title": task.Title},
	}, nil
}

// UpdateTask changes fields of an existing task. Only parameters that are
// present are written.
func (m *TaskManager) UpdateTask(ctx context.Context, params map[string]any) (dispatch.Result, error) {
	id, err := m.resolveTask(ctx, params)
	if err != nil {
		return dispatch.Result{Message: err.Error()}, nil
	}

	sets := []string{}
	args := []any{}
	if title := stringParam(params, "title"); title != "" {
		sets = append(sets, "title = ?")
		args = append(args, title)
	}
	if t, ok := timeParam(params, "due"); ok {
		sets = append(sets, "due = ?")
		args = append(args, t)
	}
	if p, ok := intParam(params, "priority"); ok {
		sets = append(sets, "priority = ?")
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
		"UPDATE tasks SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return dispatch.Result{}, fmt.Errorf("failed to update task: %w", err)
	}

	m.logger.Info("updated task", "id", id)
	return dispatch.Result{Success: true, Message: "Updated task", Details: map[string]any{"id": id}}, nil
}

// CompleteTask marks a task done.
func (m *TaskManager) CompleteTask(ctx context.Context, params map[string]any) (dispatch.Result, error) {
	id, err := m.resolveTask(ctx, params)
	if err != nil {
		return dispatch.Result{Message: err.Error()}, nil
	}

	_, err = m.db.ExecContext(ctx,
		"UPDATE tasks SET completed = 1, completed_at = ? WHERE id = ?",
		time.Now(), id,
	)
	if err != nil {
		return dispatch.Result{}, fmt.Errorf("failed to complete task: %w", err)
	}

	m.logger.Info("completed task", "id", id)
	return dispatch.Result{Success: true, Message: "Completed task", Details: map[string]any{"id": id}}, nil
}

// DeleteTask removes a task.
func (m *TaskManager) DeleteTask(ctx context.Context, params map[string]any) (dispatch.Result, error) {
	id, err := m.resolveTask(ctx, params)
	if err != nil {
		return dispatch.Result{Message: err.Error()}, nil
	}

	if _, err := m.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id); err != nil {
		return dispatch.Result{}, fmt.Errorf("failed to delete task: %w", err)
	}

	m.logger.Info("deleted task", "id", id)
	return dispatch.Result{Success: true, Message: "Deleted task"}, nil
}

// ListTasks returns all tasks, pending first, then by due date.
func (m *TaskManager) ListTasks(ctx context.Context) ([]Task, error) {
	rows, err := m.db.QueryContext(ctx,
		"SELECT id, title, due, priority, completed, notes FROM tasks ORDER BY completed, due")
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.Title, &t.Due, &t.Priority, &t.Completed, &t.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// resolveTask finds a task ID from an "id" or "title" parameter.
func (m *TaskManager) resolveTask(ctx context.Context, params map[string]any) (string, error) {
	if id := stringParam(params, "id"); id != "" {
		return id, nil
	}
	title := stringParam(params, "title")
	if title == "" {
		return "", fmt.Errorf("missing required parameter %q or %q", "id", "title")
	}

	var id string
	err := m.db.QueryRowContext(ctx, "SELECT id FROM tasks WHERE title = ?", title).Scan(&id)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("task %q not found", title)
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up task: %w", err)
	}
	return id, nil
}
