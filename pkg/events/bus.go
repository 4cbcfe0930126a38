package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Envelope is the wire form of an event on the in-process bus.
type Envelope struct {
	Type       string                 `json:"type"`
	Data       map[string]interface{} `json:"data"`
	OccurredAt string                 `json:"occurred_at"`
}

// WatermillPublisher publishes events onto a single watermill topic.
type WatermillPublisher struct {
	topic     string
	publisher message.Publisher
}

func NewWatermillPublisher(topic string, publisher message.Publisher) *WatermillPublisher {
	return &WatermillPublisher{topic: topic, publisher: publisher}
}

func (p *WatermillPublisher) Publish(_ context.Context, event Event) error {
	payload, err := json.Marshal(Envelope{
		Type:       event.EventType(),
		Data:       event.Payload(),
		OccurredAt: event.Timestamp().Format("2006-01-02T15:04:05.000Z07:00"),
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	return p.publisher.Publish(p.topic, msg)
}

// Bus fans an event out to every configured publisher. Nil publishers are
// skipped so an unreachable NATS server does not break the local bus.
type Bus struct {
	publishers []Publisher
}

func NewBus(publishers ...Publisher) *Bus {
	b := &Bus{}
	for _, p := range publishers {
		if p != nil {
			b.publishers = append(b.publishers, p)
		}
	}
	return b
}

func (b *Bus) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range b.publishers {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
