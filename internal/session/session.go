package session

import "time"

// Roles for conversation messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// FunctionCall is the structured payload attached to an assistant message
// when the model asked for a planner operation instead of replying with text.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// FunctionResult records the outcome of a dispatched function call so the
// conversation can render it alongside the originating message.
type FunctionResult struct {
	Function string         `json:"function"`
	Success  bool           `json:"success"`
	Message  string         `json:"message"`
	Details  map[string]any `json:"details,omitempty"`
}

// Message represents a single chat message
type Message struct {
	ID        string          `json:"id"`
	Role      string          `json:"role"`
	Content   string          `json:"content"`
	Timestamp time.Time       `json:"timestamp"`
	Call      *FunctionCall   `json:"call,omitempty"`
	Result    *FunctionResult `json:"result,omitempty"`
}

// Session represents a chat session
type Session struct {
	ID        string    `json:"id"`
	StartTime time.Time `json:"start_time"`
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
}
