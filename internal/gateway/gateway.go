// Package gateway orchestrates the AI assistant: it sends conversations to
// the chat completion endpoint with retry, honors the rate-limit and quota
// gates before any network call, and routes function-call responses to the
// planner managers.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"planwise/internal/backend"
	"planwise/internal/cache"
	"planwise/internal/config"
	"planwise/internal/dispatch"
	"planwise/internal/quota"
	"planwise/internal/ratelimit"
	"planwise/internal/session"
	"planwise/internal/store"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Gate rejections. Both block a send before any network call; the CLI shows
// an upgrade prompt for ErrUpgradeRequired and a rate-limit banner for
// ErrRateLimited.
var (
	ErrRateLimited     = errors.New("rate limited until reset")
	ErrUpgradeRequired = errors.New("message limit reached, upgrade required")
)

// Completer is the slice of the chat client the gateway depends on.
type Completer interface {
	Complete(ctx context.Context, messages []backend.Message, functions []backend.FunctionDef) (*backend.ChatResponse, *backend.RateLimitInfo, error)
	Stream(ctx context.Context, messages []backend.Message, functions []backend.FunctionDef, onChunk func(string) error) (*backend.RateLimitInfo, error)
}

// Gateway is the AI function-dispatch gateway.
type Gateway struct {
	cfg     config.Config
	client  Completer
	router  *dispatch.Router
	limiter *ratelimit.Gate
	quota   *quota.Gate
	store   *store.Store // nil disables persistence
	cache   sync.Map
	logger  *slog.Logger
	tracer  trace.Tracer
	meter   metric.Meter

	mu   sync.Mutex
	sess *session.Session

	processing atomic.Bool

	streamMu sync.Mutex
	stream   *streamHandle
}

// New creates a gateway. If cfg.SessionID names a stored session it is
// resumed; otherwise a fresh session is started.
func New(cfg config.Config, client Completer, registry *dispatch.Registry, st *store.Store, logger *slog.Logger, tracer trace.Tracer, meter metric.Meter) *Gateway {
	g := &Gateway{
		cfg:     cfg,
		client:  client,
		router:  dispatch.NewRouter(registry, logger),
		limiter: ratelimit.NewGate(logger),
		quota:   quota.NewGate(cfg.FreeDailyLimit),
		store:   st,
		logger:  logger,
		tracer:  tracer,
		meter:   meter,
	}

	if cfg.SessionID != "" && st != nil {
		sess, err := st.LoadSession(cfg.SessionID)
		if err != nil {
			logger.Warn("failed to load session, creating new one", "error", err)
			g.sess = g.newSession()
		} else {
			g.sess = sess
			logger.Info("loaded existing session", "session_id", sess.ID)
		}
	} else {
		g.sess = g.newSession()
	}

	return g
}

// newSession creates a new session
func (g *Gateway) newSession() *session.Session {
	sess := &session.Session{
		ID:        uuid.NewString(),
		StartTime: time.Now(),
		Model:     g.cfg.Model,
	}
	g.logger.Info("created new session", "session_id", sess.ID, "model", sess.Model)
	return sess
}

// NewSession saves the current session and starts a fresh one.
func (g *Gateway) NewSession() string {
	if err := g.SaveSession(); err != nil {
		g.logger.Error("failed to save current session", "error", err)
	}
	g.mu.Lock()
	g.sess = g.newSession()
	id := g.sess.ID
	g.mu.Unlock()
	return id
}

// SessionID returns the active session's ID.
func (g *Gateway) SessionID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sess.ID
}

// Messages returns a copy of the conversation so far.
func (g *Gateway) Messages() []session.Message {
	g.mu.Lock()
	defer g.mu.Unlock()
	msgs := make([]session.Message, len(g.sess.Messages))
	copy(msgs, g.sess.Messages)
	return msgs
}

// Limiter exposes the rate-limit gate for display and subscriptions.
func (g *Gateway) Limiter() *ratelimit.Gate {
	return g.limiter
}

// Quota exposes the message-quota gate.
func (g *Gateway) Quota() *quota.Gate {
	return g.quota
}

// Processing reports whether a request is in flight.
func (g *Gateway) Processing() bool {
	return g.processing.Load()
}

// SendMessage appends the user message, sends the conversation with the
// function catalog attached, and either returns the assistant's text reply
// or dispatches the returned function call and returns its rendered result.
func (g *Gateway) SendMessage(ctx context.Context, userText string) (session.Message, error) {
	if err := g.checkGates(); err != nil {
		return session.Message{}, err
	}

	g.processing.Store(true)
	defer g.processing.Store(false)

	messages := g.appendUser(userText)

	cacheKey := cache.Key(messages)
	if cached, ok := g.checkCache(cacheKey); ok {
		msg := g.appendAssistant(cached, nil, nil)
		return msg, nil
	}

	resp, rl, err := g.complete(ctx, wireMessages(messages))
	if rl != nil {
		g.limiter.Update(rl.Remaining, rl.Limit, rl.ResetAt)
	}
	if err != nil {
		return session.Message{}, err
	}

	g.quota.Record()
	g.recordMetrics(ctx, resp.Usage)

	if name, args, ok := resp.Call(); ok {
		result, err := g.router.Dispatch(ctx, name, args)
		if err != nil {
			// Recoverable dispatch failure: the call is dropped and the
			// conversation keeps only the user message.
			return session.Message{}, err
		}
		msg := g.appendAssistant(result.Message,
			&session.FunctionCall{Name: name, Arguments: args},
			&session.FunctionResult{
				Function: result.Function,
				Success:  result.Success,
				Message:  result.Message,
				Details:  result.Details,
			})
		g.persistAsync()
		return msg, nil
	}

	text := resp.Text()
	g.storeCache(cacheKey, text)
	msg := g.appendAssistant(text, nil, nil)
	g.persistAsync()
	return msg, nil
}

// checkGates rejects a send before any network call when blocked. The two
// tiers get different treatments of the same underlying state.
func (g *Gateway) checkGates() error {
	if !g.limiter.Allow() {
		if g.cfg.Tier == config.TierPremium {
			return ErrRateLimited
		}
		return ErrUpgradeRequired
	}
	if g.cfg.Tier == config.TierFree && !g.quota.Allow() {
		return ErrUpgradeRequired
	}
	return nil
}

// complete sends the request, retrying transport and server failures up to
// the configured bound with a fixed delay between attempts. The last error
// is surfaced on exhaustion.
func (g *Gateway) complete(ctx context.Context, msgs []backend.Message) (*backend.ChatResponse, *backend.RateLimitInfo, error) {
	ctx, span := g.tracer.Start(ctx, "chat_completion")
	defer span.End()

	start := time.Now()

	var lastErr error
	var rl *backend.RateLimitInfo
	for attempt := 1; attempt <= g.cfg.MaxAttempts; attempt++ {
		resp, attemptRL, err := g.client.Complete(ctx, msgs, backend.Catalog())
		if attemptRL != nil {
			rl = attemptRL
		}
		if err == nil {
			g.recordDuration(ctx, time.Since(start))
			return resp, rl, nil
		}

		lastErr = err
		g.logger.Warn("chat request failed", "attempt", attempt, "error", err)

		if attempt < g.cfg.MaxAttempts {
			select {
			case <-time.After(g.cfg.RetryDelay.Std()):
			case <-ctx.Done():
				return nil, rl, ctx.Err()
			}
		}
	}

	return nil, rl, fmt.Errorf("chat request failed after %d attempts: %w", g.cfg.MaxAttempts, lastErr)
}

// appendUser appends the user message and returns a copy of the conversation.
func (g *Gateway) appendUser(userText string) []session.Message {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sess.Messages = append(g.sess.Messages, session.Message{
		ID:        uuid.NewString(),
		Role:      session.RoleUser,
		Content:   userText,
		Timestamp: time.Now(),
	})
	messages := make([]session.Message, len(g.sess.Messages))
	copy(messages, g.sess.Messages)
	return messages
}

// appendAssistant appends an assistant message with optional call payloads.
func (g *Gateway) appendAssistant(content string, call *session.FunctionCall, result *session.FunctionResult) session.Message {
	msg := session.Message{
		ID:        uuid.NewString(),
		Role:      session.RoleAssistant,
		Content:   content,
		Timestamp: time.Now(),
		Call:      call,
		Result:    result,
	}
	g.mu.Lock()
	g.sess.Messages = append(g.sess.Messages, msg)
	g.mu.Unlock()
	return msg
}

// wireMessages converts conversation messages to the wire format.
func wireMessages(messages []session.Message) []backend.Message {
	wire := make([]backend.Message, len(messages))
	for i, msg := range messages {
		wire[i] = backend.Message{Role: msg.Role, Content: msg.Content}
	}
	return wire
}

// checkCache checks if a response is cached
func (g *Gateway) checkCache(cacheKey string) (string, bool) {
	if val, ok := g.cache.Load(cacheKey); ok {
		cached := val.(cache.CachedResponse)
		g.logger.Info("cache hit", "key", cacheKey[:16])
		return cached.Response, true
	}
	return "", false
}

// storeCache stores a response in cache
func (g *Gateway) storeCache(cacheKey, response string) {
	g.cache.Store(cacheKey, cache.CachedResponse{
		Response:  response,
		Timestamp: time.Now(),
	})
	g.logger.Info("cached response", "key", cacheKey[:16])
}

// recordMetrics records OpenTelemetry counters from usage data
func (g *Gateway) recordMetrics(ctx context.Context, usage map[string]any) {
	if usage == nil {
		return
	}

	for key, value := range usage {
		if floatVal, ok := value.(float64); ok {
			counter, err := g.meter.Int64Counter(
				fmt.Sprintf("chat.usage.%s", key),
				metric.WithDescription(fmt.Sprintf("Chat usage metric: %s", key)),
			)
			if err != nil {
				g.logger.Warn("failed to create counter", "key", key, "error", err)
				continue
			}
			counter.Add(ctx, int64(floatVal))
		}
	}
}

// recordDuration records the request duration histogram.
func (g *Gateway) recordDuration(ctx context.Context, d time.Duration) {
	histogram, err := g.meter.Float64Histogram(
		"http.client.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
	)
	if err == nil {
		histogram.Record(ctx, float64(d.Milliseconds()))
	}
}

// persistAsync saves the session in the background.
func (g *Gateway) persistAsync() {
	if g.store == nil {
		return
	}
	go func() {
		if err := g.SaveSession(); err != nil {
			g.logger.Error("failed to save session", "error", err)
		}
	}()
}

// SaveSession persists the current session.
func (g *Gateway) SaveSession() error {
	if g.store == nil {
		return nil
	}
	g.mu.Lock()
	sess := &session.Session{
		ID:        g.sess.ID,
		StartTime: g.sess.StartTime,
		Model:     g.sess.Model,
		Messages:  make([]session.Message, len(g.sess.Messages)),
	}
	copy(sess.Messages, g.sess.Messages)
	g.mu.Unlock()

	if err := g.store.SaveSession(sess); err != nil {
		return err
	}
	g.logger.Info("session saved", "session_id", sess.ID, "message_count", len(sess.Messages))
	return nil
}

// Close stops the rate-limit timer.
func (g *Gateway) Close() {
	g.limiter.Close()
}
