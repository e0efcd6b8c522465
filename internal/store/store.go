package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"planwise/internal/session"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps the SQLite database holding planner entities and chat sessions.
type Store struct {
	db *sql.DB
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		start_time DATETIME,
		model TEXT
	);`,
	`CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		session_id TEXT,
		role TEXT,
		content TEXT,
		timestamp DATETIME,
		call_json TEXT,
		result_json TEXT,
		FOREIGN KEY(session_id) REFERENCES sessions(id)
	);`,
	`CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		starts_at DATETIME,
		ends_at DATETIME,
		location TEXT,
		notes TEXT
	);`,
	`CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		due DATETIME,
		priority INTEGER,
		completed INTEGER DEFAULT 0,
		completed_at DATETIME,
		notes TEXT
	);`,
	`CREATE TABLE IF NOT EXISTS habits (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		frequency TEXT,
		created_at DATETIME
	);`,
	`CREATE TABLE IF NOT EXISTS habit_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		habit_id TEXT,
		logged_at DATETIME,
		FOREIGN KEY(habit_id) REFERENCES habits(id)
	);`,
	`CREATE TABLE IF NOT EXISTS goals (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		target_date DATETIME,
		progress REAL DEFAULT 0,
		notes TEXT
	);`,
}

// Open opens the SQLite database at path and creates missing tables.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &Store{db: db}, nil
}

// DB exposes the underlying handle for the planner managers.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveSession persists the session and all of its messages.
func (s *Store) SaveSession(sess *session.Session) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		"INSERT OR REPLACE INTO sessions (id, start_time, model) VALUES (?, ?, ?)",
		sess.ID, sess.StartTime, sess.Model,
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	for _, msg := range sess.Messages {
		callJSON, resultJSON, err := encodePayloads(msg)
		if err != nil {
			return err
		}
		_, err = tx.Exec(
			`INSERT OR REPLACE INTO messages (id, session_id, role, content, timestamp, call_json, result_json)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			msg.ID, sess.ID, msg.Role, msg.Content, msg.Timestamp, callJSON, resultJSON,
		)
		if err != nil {
			return fmt.Errorf("failed to save message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// LoadSession loads a session and its messages by ID.
func (s *Store) LoadSession(id string) (*session.Session, error) {
	sess := &session.Session{ID: id}

	err := s.db.QueryRow("SELECT model, start_time FROM sessions WHERE id = ?", id).
		Scan(&sess.Model, &sess.StartTime)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}

	rows, err := s.db.Query(
		"SELECT id, role, content, timestamp, call_json, result_json FROM messages WHERE session_id = ? ORDER BY timestamp",
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var msg session.Message
		var callJSON, resultJSON sql.NullString
		if err := rows.Scan(&msg.ID, &msg.Role, &msg.Content, &msg.Timestamp, &callJSON, &resultJSON); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		if err := decodePayloads(&msg, callJSON, resultJSON); err != nil {
			return nil, err
		}
		sess.Messages = append(sess.Messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}

	return sess, nil
}

func encodePayloads(msg session.Message) (sql.NullString, sql.NullString, error) {
	var callJSON, resultJSON sql.NullString
	if msg.Call != nil {
		raw, err := json.Marshal(msg.Call)
		if err != nil {
			return callJSON, resultJSON, fmt.Errorf("failed to encode function call: %w", err)
		}
		callJSON = sql.NullString{String: string(raw), Valid: true}
	}
	if msg.Result != nil {
		raw, err := json.Marshal(msg.Result)
		if err != nil {
			return callJSON, resultJSON, fmt.Errorf("failed to encode function result: %w", err)
		}
		resultJSON = sql.NullString{String: string(raw), Valid: true}
	}
	return callJSON, resultJSON, nil
}

func decodePayloads(msg *session.Message, callJSON, resultJSON sql.NullString) error {
	if callJSON.Valid {
		msg.Call = &session.FunctionCall{}
		if err := json.Unmarshal([]byte(callJSON.String), msg.Call); err != nil {
			return fmt.Errorf("failed to decode function call: %w", err)
		}
	}
	if resultJSON.Valid {
		msg.Result = &session.FunctionResult{}
		if err := json.Unmarshal([]byte(resultJSON.String), msg.Result); err != nil {
			return fmt.Errorf("failed to decode function result: %w", err)
		}
	}
	return nil
}
