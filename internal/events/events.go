package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mzaid0/Nestora/internal/mq"
	"github.com/mzaid0/Nestora/types"
)

// Type names a user lifecycle event. It is also sent as the "type" message
// attribute so consumers can filter without decoding the body.
type Type string

const (
	UserSignedUp    Type = "user.signed_up"
	UserProvisioned Type = "user.provisioned"
	UserUpdated     Type = "user.updated"
)

const typeAttribute = "type"

// UserEvent is the payload published for user lifecycle changes.
type UserEvent struct {
	Type       Type      `json:"type"`
	UserID     string    `json:"user_id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewUserEvent builds an event for user stamped with the current time.
func NewUserEvent(eventType Type, user types.User) UserEvent {
	return UserEvent{
		Type:       eventType,
		UserID:     user.ID,
		Username:   user.Username,
		Email:      user.Email,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher emits user events.
type Publisher interface {
	Publish(ctx context.Context, event UserEvent) error
}

// MQPublisher publishes JSON encoded events to one channel of a broker.
type MQPublisher struct {
	backend mq.Backend
	channel string
}

func NewMQPublisher(backend mq.Backend, channel string) *MQPublisher {
	return &MQPublisher{backend: backend, channel: channel}
}

func (p *MQPublisher) Publish(ctx context.Context, event UserEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event.Type, err)
	}
	if _, err := p.backend.Publish(ctx, p.channel, data, map[string]string{typeAttribute: string(event.Type)}); err != nil {
		return fmt.Errorf("publish %s event: %w", event.Type, err)
	}
	return nil
}

// Nop discards events. It is used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, UserEvent) error { return nil }

// Decode parses a delivered message into a UserEvent.
func Decode(msg mq.Message) (UserEvent, error) {
	var event UserEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		return UserEvent{}, fmt.Errorf("decode event %s: %w", msg.ID, err)
	}
	if event.Type == "" {
		if attr := msg.Attributes[typeAttribute]; attr != "" {
			event.Type = Type(attr)
		} else {
			return UserEvent{}, errors.New("event type is missing")
		}
	}
	return event, nil
}
