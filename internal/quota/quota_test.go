package quota

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFreeTierExhaustsDailyAllowance(t *testing.T) {
	q := NewGate(2)

	assert.True(t, q.Allow())
	assert.Equal(t, 2, q.Remaining())

	q.Record()
	assert.True(t, q.Allow())
	assert.Equal(t, 1, q.Remaining())

	q.Record()
	assert.False(t, q.Allow())
	assert.Equal(t, 0, q.Remaining())
}

func TestCountResetsAtMidnight(t *testing.T) {
	now := time.Date(2026, 8, 24, 23, 0, 0, 0, time.Local)
	q := NewGate(1)
	q.now = func() time.Time { return now }

	q.Record()
	assert.False(t, q.Allow())

	now = now.Add(2 * time.Hour) // past midnight
	assert.True(t, q.Allow())
	assert.Equal(t, 1, q.Remaining())
}

func TestUnlimitedGateAlwaysAllows(t *testing.T) {
	q := NewGate(0)

	for i := 0; i < 100; i++ {
		q.Record()
	}
	assert.True(t, q.Allow())
}
