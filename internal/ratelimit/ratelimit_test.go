package ratelimit_test

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"planwise/internal/ratelimit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGateOpensByDefault(t *testing.T) {
	g := ratelimit.NewGate(testLogger())
	defer g.Close()

	assert.True(t, g.Allow())
	assert.Equal(t, ratelimit.Open, g.Snapshot().State)
}

func TestZeroRemainingLimitsUntilReset(t *testing.T) {
	g := ratelimit.NewGate(testLogger())
	defer g.Close()

	sub := g.Subscribe()
	resetAt := time.Now().Add(60 * time.Millisecond)
	g.Update(0, 50, resetAt)

	require.False(t, g.Allow())
	snap := g.Snapshot()
	assert.Equal(t, ratelimit.Limited, snap.State)
	assert.Equal(t, 0, snap.Remaining)
	assert.Equal(t, 50, snap.Limit)
	assert.Equal(t, resetAt, snap.ResetAt)

	select {
	case state := <-sub:
		assert.Equal(t, ratelimit.Limited, state)
	case <-time.After(time.Second):
		t.Fatal("no Limited transition published")
	}

	// The single-shot timer reopens the gate at the reset time.
	select {
	case state := <-sub:
		assert.Equal(t, ratelimit.Open, state)
	case <-time.After(time.Second):
		t.Fatal("no Open transition published after reset")
	}
	assert.True(t, g.Allow())
}

func TestPositiveRemainingReopens(t *testing.T) {
	g := ratelimit.NewGate(testLogger())
	defer g.Close()

	g.Update(0, 50, time.Now().Add(time.Hour))
	require.False(t, g.Allow())

	g.Update(5, 50, time.Now().Add(time.Hour))
	assert.True(t, g.Allow())
}

func TestReArmReplacesTimer(t *testing.T) {
	g := ratelimit.NewGate(testLogger())
	defer g.Close()

	// Second update pushes the reset out; the first timer must not fire.
	g.Update(0, 50, time.Now().Add(40*time.Millisecond))
	g.Update(0, 50, time.Now().Add(200*time.Millisecond))

	time.Sleep(100 * time.Millisecond)
	assert.False(t, g.Allow(), "first timer should have been replaced")

	time.Sleep(150 * time.Millisecond)
	assert.True(t, g.Allow())
}
