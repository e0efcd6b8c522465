package gateway

import (
	"context"
	"strings"

	"planwise/internal/session"
)

// StreamFunc receives incremental text chunks. It is always invoked serially
// from a single delivery goroutine, never concurrently.
type StreamFunc func(chunk string)

// streamHandle tracks one in-flight stream so a newer one can cancel it and
// wait for it to stop emitting.
type streamHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// StreamMessage sends the conversation in streaming mode, delivering chunks
// to fn as they arrive. Any prior in-flight stream is cancelled before this
// one begins emitting; at most one stream is active at a time. The full
// accumulated reply is appended to the session and returned.
func (g *Gateway) StreamMessage(ctx context.Context, userText string, fn StreamFunc) (session.Message, error) {
	if err := g.checkGates(); err != nil {
		return session.Message{}, err
	}

	sctx, cancel := context.WithCancel(ctx)
	defer cancel()
	handle := &streamHandle{cancel: cancel, done: make(chan struct{})}

	g.streamMu.Lock()
	if prev := g.stream; prev != nil {
		prev.cancel()
		<-prev.done
	}
	g.stream = handle
	g.streamMu.Unlock()
	defer close(handle.done)

	g.processing.Store(true)
	defer g.processing.Store(false)

	messages := g.appendUser(userText)

	// Chunks are handed to a single delivery goroutine so fn observes them
	// in order without concurrent invocations.
	chunks := make(chan string, 16)
	deliveryDone := make(chan struct{})
	go func() {
		defer close(deliveryDone)
		for chunk := range chunks {
			fn(chunk)
		}
	}()

	var full strings.Builder
	rl, err := g.client.Stream(sctx, wireMessages(messages), nil, func(chunk string) error {
		full.WriteString(chunk)
		select {
		case chunks <- chunk:
			return nil
		case <-sctx.Done():
			return sctx.Err()
		}
	})
	close(chunks)
	<-deliveryDone

	if rl != nil {
		g.limiter.Update(rl.Remaining, rl.Limit, rl.ResetAt)
	}
	if err != nil {
		g.logger.Error("stream failed", "error", err)
		return session.Message{}, err
	}

	g.quota.Record()
	msg := g.appendAssistant(full.String(), nil, nil)
	g.persistAsync()
	return msg, nil
}
