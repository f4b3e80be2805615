package bus

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
)

// MessageBus decouples chat channels from the agent core. Inbound messages
// flow from channels (and internal producers) to the single agent consumer;
// outbound messages flow from the agent to per-channel subscribers.
type MessageBus struct {
	inbound             chan InboundMessage
	outbound            chan OutboundMessage
	outboundSubscribers map[string][]func(OutboundMessage)
	subscribersMu       sync.RWMutex
}

// NewMessageBus creates a new MessageBus.
func NewMessageBus() *MessageBus {
	return &MessageBus{
		inbound:             make(chan InboundMessage, 100),
		outbound:            make(chan OutboundMessage, 100),
		outboundSubscribers: make(map[string][]func(OutboundMessage)),
	}
}

// PublishInbound publishes a message from a channel to the agent.
func (b *MessageBus) PublishInbound(msg InboundMessage) {
	b.inbound <- msg
}

// ConsumeInbound blocks until a message is available or ctx is cancelled.
// The boolean is false when the wait was cancelled.
func (b *MessageBus) ConsumeInbound(ctx context.Context) (InboundMessage, bool) {
	select {
	case msg := <-b.inbound:
		return msg, true
	case <-ctx.Done():
		return InboundMessage{}, false
	}
}

// PublishOutbound publishes a response from the agent to channels.
func (b *MessageBus) PublishOutbound(msg OutboundMessage) {
	b.outbound <- msg
}

// SubscribeOutbound subscribes to outbound messages for a specific channel.
func (b *MessageBus) SubscribeOutbound(channel string, callback func(OutboundMessage)) {
	b.subscribersMu.Lock()
	defer b.subscribersMu.Unlock()
	b.outboundSubscribers[channel] = append(b.outboundSubscribers[channel], callback)
}

// DispatchOutbound delivers outbound messages to subscribers until ctx is
// cancelled. Run it in its own goroutine.
func (b *MessageBus) DispatchOutbound(ctx context.Context) {
	for {
		select {
		case msg := <-b.outbound:
			b.subscribersMu.RLock()
			subscribers := b.outboundSubscribers[msg.Channel]
			b.subscribersMu.RUnlock()

			for _, cb := range subscribers {
				go func(callback func(OutboundMessage), message OutboundMessage) {
					defer func() {
						if r := recover(); r != nil {
							log.Error("outbound subscriber panicked", "channel", message.Channel, "panic", r)
						}
					}()
					callback(message)
				}(cb, msg)
			}
		case <-ctx.Done():
			return
		}
	}
}
