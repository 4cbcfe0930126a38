package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"nexus-ai-be/internal/pkg/logger"
	"nexus-ai-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []string
}

func (b *recordingBroadcaster) Broadcast(eventType string, _ interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, eventType)
}

func (b *recordingBroadcaster) seen() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.events...)
}

func TestConsumerRelaysAdapterEvents(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	broadcaster := &recordingBroadcaster{}
	consumer := NewConsumerService(pubSub, "adapter_events", broadcaster, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, consumer.Consume(ctx))

	publisher := events.NewWatermillPublisher("adapter_events", pubSub)
	require.NoError(t, publisher.Publish(ctx, events.NewAdapterEvent(events.AdapterLoaded, "lora_sales-v2", nil)))

	// malformed payloads are acked and skipped
	require.NoError(t, pubSub.Publish("adapter_events", message.NewMessage(watermill.NewUUID(), []byte("{"))))

	require.NoError(t, publisher.Publish(ctx, events.NewAdapterEvent(events.AdapterUnloaded, "lora_sales-v2", nil)))

	require.Eventually(t, func() bool { return len(broadcaster.seen()) == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []string{events.AdapterLoaded, events.AdapterUnloaded}, broadcaster.seen())
}
