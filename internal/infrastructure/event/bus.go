package event

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/shipbox/billing/internal/domain/shared"
	"go.uber.org/zap"
)

// InMemoryEventBus delivers events synchronously to in-process handlers.
//
// Publishing happens after the ledger commit, so handler failures are logged
// and never reach the publisher: the commit already stands. Once stopped, the
// bus drops events instead of handing them to handlers whose dependencies
// may already be closed.
type InMemoryEventBus struct {
	registry *HandlerRegistry
	logger   *zap.Logger
	stopped  atomic.Bool
	failures atomic.Int64
	dropped  atomic.Int64
}

func NewInMemoryEventBus(logger *zap.Logger) *InMemoryEventBus {
	return &InMemoryEventBus{
		registry: NewHandlerRegistry(),
		logger:   logger,
	}
}

// Publish hands each event to every handler subscribed to its type.
// It never fails.
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	if b.stopped.Load() {
		b.dropped.Add(int64(len(events)))
		b.logger.Warn("Event bus stopped, dropping events", zap.Int("count", len(events)))
		return nil
	}
	for _, e := range events {
		b.deliver(ctx, e)
	}
	return nil
}

func (b *InMemoryEventBus) deliver(ctx context.Context, e shared.DomainEvent) {
	for _, h := range b.registry.GetHandlers(e.EventType()) {
		if err := invoke(ctx, h, e); err != nil {
			b.failures.Add(1)
			b.logger.Error("Event handler failed",
				zap.String("event_type", e.EventType()),
				zap.String("event_id", e.EventID().String()),
				zap.String("aggregate_id", e.AggregateID()),
				zap.Error(err),
			)
		}
	}
}

func invoke(ctx context.Context, h shared.EventHandler, e shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return h.Handle(ctx, e)
}

// Subscribe registers a handler. Without explicit types the handler's own EventTypes are used.
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}
	b.registry.Register(handler, eventTypes...)
	b.logger.Debug("Event handler subscribed", zap.Strings("event_types", eventTypes))
}

func (b *InMemoryEventBus) Unsubscribe(handler shared.EventHandler) {
	b.registry.Unregister(handler)
}

// Start (re)opens the bus for delivery.
func (b *InMemoryEventBus) Start(_ context.Context) error {
	b.stopped.Store(false)
	b.logger.Info("Event bus started")
	return nil
}

// Stop closes the bus. Delivery is synchronous, so nothing is in flight
// once the last Publish has returned.
func (b *InMemoryEventBus) Stop(_ context.Context) error {
	b.stopped.Store(true)
	b.logger.Info("Event bus stopped",
		zap.Int64("handler_failures", b.failures.Load()),
		zap.Int64("dropped", b.dropped.Load()),
	)
	return nil
}

// Failures counts handler invocations that returned an error or panicked.
func (b *InMemoryEventBus) Failures() int64 {
	return b.failures.Load()
}

// Dropped counts events published after Stop.
func (b *InMemoryEventBus) Dropped() int64 {
	return b.dropped.Load()
}

var _ shared.EventBus = (*InMemoryEventBus)(nil)
