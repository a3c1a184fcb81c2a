// Package messaging fans out user-visible notifications to subscribers:
// structured logs, the in-memory feed polled by HTTP clients, and Redis Pub/Sub.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/music-school-hub/student-registry/internal/domain/notification"
	"github.com/music-school-hub/student-registry/pkg/logger"
)

// ErrBusClosed is returned when subscribing to a closed bus.
var ErrBusClosed = errors.New("notification bus is closed")

// Handler processes a published notification.
type Handler func(ctx context.Context, n notification.Notification) error

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION BUS
// ══════════════════════════════════════════════════════════════════════════════

// BusConfig contains configuration for Bus.
type BusConfig struct {
	// Logger for structured logging.
	Logger *logger.Logger
}

// DefaultBusConfig returns sensible defaults.
func DefaultBusConfig() BusConfig {
	return BusConfig{}
}

// Bus is an in-memory notification bus. It satisfies registry.Notifier.
//
// Notifications are numbered and delivered under one dispatch lock, so every
// subscriber sees them in Seq order.
type Bus struct {
	mu          sync.RWMutex
	handlers    map[notification.Kind][]Handler
	allHandlers []Handler
	logger      *logger.Logger
	closed      bool

	dispatchMu sync.Mutex
	seq        uint64
}

// NewBus creates a new notification bus.
func NewBus(config BusConfig) *Bus {
	if config.Logger == nil {
		config.Logger = logger.Nop()
	}

	return &Bus{
		handlers: make(map[notification.Kind][]Handler),
		logger:   config.Logger.With(logger.Component("notification_bus")),
	}
}

// Subscribe registers a handler for a specific notification kind.
func (b *Bus) Subscribe(kind notification.Kind, handler Handler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}

	b.handlers[kind] = append(b.handlers[kind], handler)
	return nil
}

// SubscribeAll registers a handler for every notification.
func (b *Bus) SubscribeAll(handler Handler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}

	b.allHandlers = append(b.allHandlers, handler)
	return nil
}

// Notify assigns a sequence number and dispatches n to subscribers.
// Handlers must not call Notify. Handler errors are logged, never returned.
func (b *Bus) Notify(ctx context.Context, n notification.Notification) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		b.logger.Warn("notification dropped, bus closed", logger.Notification(n.Kind.String()))
		return
	}
	handlers := make([]Handler, 0, len(b.handlers[n.Kind])+len(b.allHandlers))
	handlers = append(handlers, b.handlers[n.Kind]...)
	handlers = append(handlers, b.allHandlers...)
	b.mu.RUnlock()

	b.dispatchMu.Lock()
	defer b.dispatchMu.Unlock()

	b.seq++
	n.Seq = b.seq
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	for _, h := range handlers {
		start := time.Now()
		if err := h(ctx, n); err != nil {
			b.logger.Error("handler error",
				logger.Notification(n.Kind.String()),
				logger.Latency(time.Since(start)),
				logger.Err(err),
			)
		}
	}
}

// Close stops accepting notifications and waits for an in-flight dispatch.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.dispatchMu.Lock()
	defer b.dispatchMu.Unlock()

	b.logger.Info("notification bus closed")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SUBSCRIBERS
// ══════════════════════════════════════════════════════════════════════════════

// LogHandler writes every notification to the structured log.
// Failures are logged at warn level, successes at info.
func LogHandler(l *logger.Logger) Handler {
	l = l.With(logger.Component("notifications"))
	return func(_ context.Context, n notification.Notification) error {
		fields := []logger.Field{
			logger.Notification(n.Kind.String()),
			logger.String("title", n.Title),
			logger.String("description", n.Description),
		}
		if n.StudentID != "" {
			fields = append(fields, logger.StudentID(n.StudentID))
		}
		if n.Kind.IsFailure() {
			l.Warn("user notification", fields...)
		} else {
			l.Info("user notification", fields...)
		}
		return nil
	}
}

// Publisher publishes a message on a named channel.
// Implemented by the Redis cache client.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) error
}

// PublishHandler forwards notifications as JSON to a Pub/Sub channel.
func PublishHandler(p Publisher, channel string) Handler {
	return func(ctx context.Context, n notification.Notification) error {
		data, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("marshal notification: %w", err)
		}
		if err := p.Publish(ctx, channel, json.RawMessage(data)); err != nil {
			return fmt.Errorf("publish notification: %w", err)
		}
		return nil
	}
}
