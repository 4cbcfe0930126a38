package service

import (
	"context"
	"encoding/json"

	"nexus-ai-be/internal/pkg/logger"
	"nexus-ai-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
)

const consumerModule = "AdapterEventConsumer"

// Broadcaster pushes an event to connected admin clients.
type Broadcaster interface {
	Broadcast(eventType string, data interface{})
}

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	subscriber  message.Subscriber
	topicName   string
	broadcaster Broadcaster
	eventLog    logger.ILogger
}

// NewConsumerService consumes adapter lifecycle events from the in-process
// bus, records them in the dedicated event log and relays them to admins.
func NewConsumerService(
	subscriber message.Subscriber,
	topicName string,
	broadcaster Broadcaster,
	eventLog logger.ILogger,
) IConsumerService {
	return &consumerService{
		subscriber:  subscriber,
		topicName:   topicName,
		broadcaster: broadcaster,
		eventLog:    eventLog,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(msg *message.Message) {
	var envelope events.Envelope
	if err := json.Unmarshal(msg.Payload, &envelope); err != nil {
		cs.eventLog.Error(consumerModule, "Failed to unmarshal event", map[string]interface{}{
			"message_id": msg.UUID,
			"error":      err.Error(),
		})
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	cs.eventLog.Info(consumerModule, envelope.Type, map[string]interface{}{
		"data":        envelope.Data,
		"occurred_at": envelope.OccurredAt,
	})

	if cs.broadcaster != nil {
		cs.broadcaster.Broadcast(envelope.Type, envelope.Data)
	}
	msg.Ack()
}
