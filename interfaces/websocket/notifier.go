package websocket

import (
	"context"

	"taskdeps/domain/events"
)

// Notifier adapts the hub to the EventBus port. It forwards only the
// project-scoped invalidation hint: the mutation events in the same
// batch carry edge-level payloads for EventBridge consumers, and
// real-time subscribers must re-query instead of relying on a diff
// stream.
type Notifier struct {
	hub *Hub
}

func NewNotifier(hub *Hub) *Notifier {
	return &Notifier{hub: hub}
}

func (n *Notifier) Publish(ctx context.Context, event events.DomainEvent) error {
	if event.GetEventType() != events.GraphChangedType {
		return nil
	}
	return n.hub.SendToProject(event.GetAggregateID(), event.GetEventType(), event)
}

func (n *Notifier) PublishBatch(ctx context.Context, batch []events.DomainEvent) error {
	for _, event := range batch {
		if err := n.Publish(ctx, event); err != nil {
			return err
		}
	}
	return nil
}
