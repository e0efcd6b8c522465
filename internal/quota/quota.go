package quota

import (
	"sync"
	"time"
)

// Gate tracks the daily message allowance for free-tier users. The count
// resets at local midnight. A zero or negative limit means unlimited.
type Gate struct {
	mu    sync.Mutex
	limit int
	used  int
	day   time.Time
	now   func() time.Time
}

// NewGate creates a gate with the given daily limit.
func NewGate(limit int) *Gate {
	return &Gate{limit: limit, now: time.Now}
}

// Allow reports whether another message may be sent today.
func (q *Gate) Allow() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.rollLocked()
	return q.limit <= 0 || q.used < q.limit
}

// Record counts one sent message against today's allowance.
func (q *Gate) Record() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.rollLocked()
	q.used++
}

// Remaining returns how many messages are left today. Only meaningful for
// limited gates; unlimited gates report zero.
func (q *Gate) Remaining() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.rollLocked()
	if q.limit <= 0 || q.used >= q.limit {
		return 0
	}
	return q.limit - q.used
}

// rollLocked resets the count when the local date changes.
func (q *Gate) rollLocked() {
	y, m, d := q.now().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.Local)
	if !today.Equal(q.day) {
		q.day = today
		q.used = 0
	}
}
