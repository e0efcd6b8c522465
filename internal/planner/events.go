package planner

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"planwise/internal/dispatch"

	"github.com/google/uuid"
)

// ScheduleManager handles manage_events calls.
type ScheduleManager struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewScheduleManager creates the events manager.
func NewScheduleManager(db *sql.DB, logger *slog.Logger) *ScheduleManager {
	return &ScheduleManager{db: db, logger: logger}
}

// Name returns the manager identifier
func (m *ScheduleManager) Name() string { return "schedule" }

// Close implements dispatch.Manager; the store owns the database handle.
func (m *ScheduleManager) Close() error { return nil }

// Execute runs a single events action.
func (m *ScheduleManager) Execute(ctx context.Context, action string, params map[string]any) (dispatch.Result, error) {
	switch action {
	case "create":
		return m.CreateEvent(ctx, params)
	case "delete":
		return m.DeleteEvent(ctx, params)
	default:
		return dispatch.Result{Message: fmt.Sprintf("unsupported events action %q", action)}, nil
	}
}

// CreateEvent inserts a new calendar event.
func (m *ScheduleManager) CreateEvent(ctx context.Context, params map[string]any) (dispatch.Result, error) {
	title, err := requireString(params, "title")
	if err != nil {
		return dispatch.Result{Message: err.Error()}, nil
	}

	event := Event{
		ID:       uuid.NewString(),
		Title:    title,
		Location: stringParam(params, "location"),
		Notes:    stringParam(params, "notes"),
	}
	if t, ok := timeParam(params, "start"); ok {
		event.StartsAt = t
	}
	if t, ok := timeParam(params, "end"); ok {
		event.EndsAt = t
	} else if !event.StartsAt.IsZero() {
		event.EndsAt = event.StartsAt.Add(time.Hour)
	}

	_, err = m.db.ExecContext(ctx,
		"INSERT INTO events (id, title, starts_at, ends_at, location, notes) VALUES (?, ?, ?, ?, ?, ?)",
		event.ID, event.Title, event.StartsAt, event.EndsAt, event.Location, event.Notes,
	)
	if err != nil {
		return dispatch.Result{}, fmt.Errorf("failed to create event: %w", err)
	}

	m.logger.Info("created event", "id", event.ID, "title", event.Title)
	return dispatch.Result{
		Success: true,
		Message: fmt.Sprintf("Created event %q", event.Title),
		Details: map[string]any{"id": event.ID, "title": event.Title},
	}, nil
}

// DeleteEvent removes an event by id or title.
func (m *ScheduleManager) DeleteEvent(ctx context.Context, params map[string]any) (dispatch.Result, error) {
	var res sql.Result
	var err error

	if id := stringParam(params, "id"); id != "" {
		res, err = m.db.ExecContext(ctx, "DELETE FROM events WHERE id = ?", id)
	} else if title := stringParam(params, "title"); title != "" {
		res, err = m.db.ExecContext(ctx, "DELETE FROM events WHERE title = ?", title)
	} else {
		return dispatch.Result{Message: "missing required parameter \"id\" or \"title\""}, nil
	}
	if err != nil {
		return dispatch.Result{}, fmt.Errorf("failed to delete event: %w", err)
	}

	affected, _ := res.RowsAffected()
	if affected == 0 {
		return dispatch.Result{Message: "event not found"}, nil
	}

	m.logger.Info("deleted event", "count", affected)
	return dispatch.Result{Success: true, Message: "Deleted event"}, nil
}

// ListEvents returns all events ordered by start time.
func (m *ScheduleManager) ListEvents(ctx context.Context) ([]Event, error) {
	rows, err := m.db.QueryContext(ctx,
		"SELECT id, title, starts_at, ends_at, location, notes FROM events ORDER BY starts_at")
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Title, &e.StartsAt, &e.EndsAt, &e.Location, &e.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
