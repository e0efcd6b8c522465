package ratelimit

import (
	"log/slog"
	"sync"
	"time"
)

// State of the gate. Requests may only be sent while Open.
type State int

const (
	Open State = iota
	Limited
)

// String returns the state name.
func (s State) String() string {
	if s == Limited {
		return "limited"
	}
	return "open"
}

// Snapshot is the server-declared quota as of the last response.
type Snapshot struct {
	State     State
	Remaining int
	Limit     int
	ResetAt   time.Time
}

// Gate tracks the server-declared rate limit. It transitions to Limited when
// a response reports zero remaining quota and arms a single-shot timer for
// the reported reset time; at most one timer is active at a time. State
// transitions are published to subscribers.
type Gate struct {
	mu        sync.Mutex
	state     State
	remaining int
	limit     int
	resetAt   time.Time
	timer     *time.Timer
	subs      []chan State
	logger    *slog.Logger
}

// NewGate creates an open gate.
func NewGate(logger *slog.Logger) *Gate {
	return &Gate{state: Open, logger: logger}
}

// Allow reports whether a request may be sent right now.
func (g *Gate) Allow() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state == Open
}

// Snapshot returns the current quota state.
func (g *Gate) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Snapshot{
		State:     g.state,
		Remaining: g.remaining,
		Limit:     g.limit,
		ResetAt:   g.resetAt,
	}
}

// Update records quota metadata from a response. remaining == 0 transitions
// the gate to Limited until resetAt; re-arming replaces the previous timer.
func (g *Gate) Update(remaining, limit int, resetAt time.Time) {
	g.mu.Lock()

	g.remaining = remaining
	g.limit = limit
	g.resetAt = resetAt

	if remaining > 0 {
		changed := g.state != Open
		g.state = Open
		g.stopTimerLocked()
		g.mu.Unlock()
		if changed {
			g.publish(Open)
		}
		return
	}

	changed := g.state != Limited
	g.state = Limited
	g.stopTimerLocked()
	g.timer = time.AfterFunc(time.Until(resetAt), g.reset)
	g.mu.Unlock()

	g.logger.Info("rate limit reached", "limit", limit, "reset_at", resetAt)
	if changed {
		g.publish(Limited)
	}
}

// reset reopens the gate when the reset time elapses.
func (g *Gate) reset() {
	g.mu.Lock()
	if g.state != Limited {
		g.mu.Unlock()
		return
	}
	g.state = Open
	g.timer = nil
	g.mu.Unlock()

	g.logger.Info("rate limit reset")
	g.publish(Open)
}

// Subscribe returns a channel receiving state transitions. Slow subscribers
// miss intermediate transitions rather than block the gate.
func (g *Gate) Subscribe() <-chan State {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch := make(chan State, 4)
	g.subs = append(g.subs, ch)
	return ch
}

// Close stops the timer. Subscribers receive no further transitions.
func (g *Gate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stopTimerLocked()
}

func (g *Gate) stopTimerLocked() {
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
}

func (g *Gate) publish(s State) {
	g.mu.Lock()
	subs := make([]chan State, len(g.subs))
	copy(subs, g.subs)
	g.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- s:
		default:
		}
	}
}
