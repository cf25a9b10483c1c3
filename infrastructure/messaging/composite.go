// Package messaging composes the event sinks a mutation fans out to.
package messaging

import (
	"context"

	"go.uber.org/zap"

	"taskdeps/application/ports"
	"taskdeps/domain/events"
)

// CompositeBus delivers every event to all sinks. Delivery is
// best-effort per sink: one sink failing does not stop the others, and
// the first error is returned after all sinks have been tried.
type CompositeBus struct {
	sinks  []ports.EventBus
	logger *zap.Logger
}

func NewCompositeBus(logger *zap.Logger, sinks ...ports.EventBus) *CompositeBus {
	return &CompositeBus{sinks: sinks, logger: logger}
}

func (b *CompositeBus) Publish(ctx context.Context, event events.DomainEvent) error {
	return b.PublishBatch(ctx, []events.DomainEvent{event})
}

func (b *CompositeBus) PublishBatch(ctx context.Context, batch []events.DomainEvent) error {
	var firstErr error
	for _, sink := range b.sinks {
		if err := sink.PublishBatch(ctx, batch); err != nil {
			b.logger.Warn("Event sink failed", zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// NopBus discards events. Used when no external bus is configured.
type NopBus struct{}

func (NopBus) Publish(ctx context.Context, event events.DomainEvent) error { return nil }

func (NopBus) PublishBatch(ctx context.Context, batch []events.DomainEvent) error { return nil }
