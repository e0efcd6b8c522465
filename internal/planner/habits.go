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

// HabitManager handles manage_habits calls.
type HabitManager struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewHabitManager creates the habits manager.
func NewHabitManager(db *sql.DB, logger *slog.Logger) *HabitManager {
	return &HabitManager{db: db, logger: logger}
}

// Name returns the manager identifier
func (m *HabitManager) Name() string { return "habits" }

// Close implements dispatch.Manager; the store owns the database handle.
func (m *HabitManager) Close() error { return nil }

// Execute runs a single habits action.
func (m *HabitManager) Execute(ctx context.Context, action string, params map[string]any) (dispatch.Result, error) {
	switch action {
	case "create":
		return m.CreateHabit(ctx, params)
	case "update":
		return m.UpdateHabit(ctx, params)
	case "log":
		return m.LogHabit(ctx, params)
	case "delete":
		return m.DeleteHabit(ctx, params)
	default:
		return dispatch.Result{Message: fmt.Sprintf("unsupported habits action %q", action)}, nil
	}
}

// CreateHabit inserts a new habit.
func (m *HabitManager) CreateHabit(ctx context.Context, params map[string]any) (dispatch.Result, error) {
	name, err := requireString(params, "name")
	if err != nil {
		return dispatch.Result{Message: err.Error()}, nil
	}

	habit := Habit{
		ID:        uuid.NewString(),
		Name:      name,
		Frequency: stringParam(params, "frequency"),
		CreatedAt: time.Now(),
	}
	if habit.Frequency == "" {
		habit.Frequency = "daily"
	}

	_, err = m.db.ExecContext(ctx,
		"INSERT INTO habits (id, name, frequency, created_at) VALUES (?, ?, ?, ?)",
		habit.ID, habit.Name, habit.Frequency, habit.CreatedAt,
	)
	if err != nil {
		return dispatch.Result{}, fmt.Errorf("failed to create habit: %w", err)
	}

	m.logger.Info("created habit", "id", habit.ID, "name", habit.Name)
	return dispatch.Result{
		Success: true,
		Message: fmt.Sprintf("Created habit %q", habit.Name),
		Details: map[string]any{"id": habit.ID, "name": habit.Name},
	}, nil
}

// UpdateHabit changes fields of an existing habit.
func (m *HabitManager) UpdateHabit(ctx context.Context, params map[string]any) (dispatch.Result, error) {
	id, err := m.resolveHabit(ctx, params)
	if err != nil {
		return dispatch.Result{Message: err.Error()}, nil
	}

	sets := []string{}
	args := []any{}
	if name := stringParam(params, "new_name"); name != "" {
		sets = append(sets, "name = ?")
		args = append(args, name)
	}
	if freq := stringParam(params, "frequency"); freq != "" {
		sets = append(sets, "frequency = ?")
		args = append(args, freq)
	}
	if len(sets) == 0 {
		return dispatch.Result{Message: "nothing to update"}, nil
	}

	args = append(args, id)
	_, err = m.db.ExecContext(ctx,
		"UPDATE habits SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return dispatch.Result{}, fmt.Errorf("failed to update habit: %w", err)
	}

	m.logger.Info("updated habit", "id", id)
	return dispatch.Result{Success: true, Message: "Updated habit", Details: map[string]any{"id": id}}, nil
}

// LogHabit records one completion of a habit.
func (m *HabitManager) LogHabit(ctx context.Context, params map[string]any) (dispatch.Result, error) {
	id, err := m.resolveHabit(ctx, params)
	if err != nil {
		return dispatch.Result{Message: err.Error()}, nil
	}

	loggedAt := time.Now()
	if t, ok := timeParam(params, "date"); ok {
		loggedAt = t
	}

	_, err = m.db.ExecContext(ctx,
		"INSERT INTO habit_logs (habit_id, logged_at) VALUES (?, ?)", id, loggedAt)
	if err != nil {
		return dispatch.Result{}, fmt.Errorf("failed to log habit: %w", err)
	}

	m.logger.Info("logged habit", "id", id, "logged_at", loggedAt)
	return dispatch.Result{Success: true, Message: "Logged habit", Details: map[string]any{"id": id}}, nil
}

// DeleteHabit removes a habit and its logs.
func (m *HabitManager) DeleteHabit(ctx context.Context, params map[string]any) (dispatch.Result, error) {
	id, err := m.resolveHabit(ctx, params)
	if err != nil {
		return dispatch.Result{Message: err.Error()}, nil
	}

	if _, err := m.db.ExecContext(ctx, "DELETE FROM habit_logs WHERE habit_id = ?", id); err != nil {
		return dispatch.Result{}, fmt.Errorf("failed to delete habit logs: %w", err)
	}
	if _, err := m.db.ExecContext(ctx, "DELETE FROM habits WHERE id = ?", id); err != nil {
		return dispatch.Result{}, fmt.Errorf("failed to delete habit: %w", err)
	}

	m.logger.Info("deleted habit", "id", id)
	return dispatch.Result{Success: true, Message: "Deleted habit"}, nil
}

// ListHabits returns all habits with their log counts.
func (m *HabitManager) ListHabits(ctx context.Context) ([]Habit, error) {
	rows, err := m.db.QueryContext(ctx,
		"SELECT id, name, frequency, created_at FROM habits ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("failed to list habits: %w", err)
	}
	defer rows.Close()

	var habits []Habit
	for rows.Next() {
		var h Habit
		if err := rows.Scan(&h.ID, &h.Name, &h.Frequency, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan habit: %w", err)
		}
		habits = append(habits, h)
	}
	return habits, rows.Err()
}

// LogCount returns the number of recorded completions for a habit.
func (m *HabitManager) LogCount(ctx context.Context, habitID string) (int, error) {
	var count int
	err := m.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM habit_logs WHERE habit_id = ?", habitID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count habit logs: %w", err)
	}
	return count, nil
}

// resolveHabit finds a habit ID from an "id" or "name" parameter.
func (m *HabitManager) resolveHabit(ctx context.Context, params map[string]any) (string, error) {
	if id := stringParam(params, "id"); id != "" {
		return id, nil
	}
	name := stringParam(params, "name")
	if name == "" {
		return "", fmt.Errorf("missing required parameter %q or %q", "id", "name")
	}

	var id string
	err := m.db.QueryRowContext(ctx, "SELECT id FROM habits WHERE name = ?", name).Scan(&id)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("habit %q not found", name)
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up habit: %w", err)
	}
	return id, nil
}
