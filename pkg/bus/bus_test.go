package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishConsumeInbound(t *testing.T) {
	b := NewMessageBus()
	b.PublishInbound(InboundMessage{Channel: "telegram", ChatID: "1", Content: "hi"})

	msg, ok := b.ConsumeInbound(context.Background())
	require.True(t, ok)
	assert.Equal(t, "hi", msg.Content)
}

func TestConsumeInboundObservesCancellation(t *testing.T) {
	b := NewMessageBus()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := b.ConsumeInbound(ctx)
	assert.False(t, ok)
}

func TestDispatchOutboundRoutesByChannel(t *testing.T) {
	b := NewMessageBus()

	got := make(chan OutboundMessage, 1)
	b.SubscribeOutbound("telegram", func(msg OutboundMessage) {
		got <- msg
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.DispatchOutbound(ctx)

	b.PublishOutbound(OutboundMessage{Channel: "feishu", ChatID: "x", Content: "ignored"})
	b.PublishOutbound(OutboundMessage{Channel: "telegram", ChatID: "42", Content: "hello"})

	select {
	case msg := <-got:
		assert.Equal(t, "42", msg.ChatID)
		assert.Equal(t, "hello", msg.Content)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber never received message")
	}
}
