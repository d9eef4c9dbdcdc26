package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

const (
	// StreamName is the JetStream stream holding pool events.
	StreamName = "POOL_EVENTS"

	subjectPrefix = "pool.events"
)

// Subject returns the NATS subject for an event type: pool.events.{type}.
func Subject(eventType string) string {
	return fmt.Sprintf("%s.%s", subjectPrefix, eventType)
}

// NATSPublisher publishes ledger events to JetStream for downstream
// consumers. Events are queued by Notify and published by Run.
type NATSPublisher struct {
	js     jetstream.JetStream
	events chan Event
}

// NewNATSPublisher creates a publisher with a queue of the given size.
func NewNATSPublisher(js jetstream.JetStream, buffer int) *NATSPublisher {
	if buffer <= 0 {
		buffer = 256
	}
	return &NATSPublisher{
		js:     js,
		events: make(chan Event, buffer),
	}
}

// Notify queues an event for publishing. Implements Notifier. Events are
// dropped when the queue is full.
func (p *NATSPublisher) Notify(evt Event) {
	select {
	case p.events <- evt:
	default:
		slog.Warn("nats publish queue full, dropping event", "type", evt.Type, "id", evt.ID)
	}
}

// Run publishes queued events until ctx is cancelled.
func (p *NATSPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case evt := <-p.events:
			if err := p.publish(ctx, evt); err != nil {
				// Non-fatal: consumers can rebuild from the ledger API.
				slog.Warn("nats publish failed", "type", evt.Type, "id", evt.ID, "err", err)
			}
		}
	}
}

func (p *NATSPublisher) publish(ctx context.Context, evt Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	_, err = p.js.Publish(ctx, Subject(evt.Type), data)
	return err
}

// EnsureStream creates or updates the pool events stream.
func EnsureStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{subjectPrefix + ".>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create stream %s: %w", StreamName, err)
	}
	slog.Info("ensured nats stream", "stream", StreamName)
	return nil
}
