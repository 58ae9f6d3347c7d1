package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Event types published after a state change has been persisted.
const (
	EventBookingStatusChanged = "booking.status_changed"
	EventUserBanned           = "user.banned"
	EventUserUnbanned         = "user.unbanned"
	EventUserRoleChanged      = "user.role_changed"
	EventUserDeleted          = "user.deleted"
)

// Event is a domain notification for downstream consumers (mailers,
// audit sinks). Payload is event specific.
type Event struct {
	Type       string         `json:"type"`
	ActorID    string         `json:"actorId,omitempty"`
	SubjectID  string         `json:"subjectId"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
}

// EventPublisher publishes domain events on a single channel.
type EventPublisher struct {
	mq      *MQ
	channel string
}

// NewEventPublisher constructs a publisher writing to channel.
func NewEventPublisher(m *MQ, channel string) *EventPublisher {
	return &EventPublisher{mq: m, channel: channel}
}

// PublishEvent serializes event as JSON and publishes it with its type as
// the "type" attribute.
func (p *EventPublisher) PublishEvent(ctx context.Context, event Event) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("mq: encode event: %w", err)
	}
	if _, err := p.mq.Publish(ctx, p.channel, data, map[string]string{"type": event.Type}); err != nil {
		return fmt.Errorf("mq: publish %s: %w", event.Type, err)
	}
	return nil
}

// Close closes the underlying broker connection.
func (p *EventPublisher) Close() error {
	return p.mq.Close()
}

// DecodeEvent parses a message produced by PublishEvent.
func DecodeEvent(msg Message) (Event, error) {
	var event Event
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		return Event{}, fmt.Errorf("mq: decode event: %w", err)
	}
	return event, nil
}
