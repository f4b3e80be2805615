package channels

import (
	"strings"

	"github.com/microclaw/microclaw/pkg/bus"
)

// Channel is a user-facing chat transport. Start begins receiving, Send
// delivers one outbound message.
type Channel interface {
	Start() error
	Stop() error
	Send(msg bus.OutboundMessage) error
	Name() string
}

// BaseChannel provides sender filtering and inbound publishing shared by all
// channel implementations.
type BaseChannel struct {
	Bus       *bus.MessageBus
	AllowFrom []string
}

// IsAllowed reports whether a sender passes the allow list. An empty list
// allows everyone.
func (c *BaseChannel) IsAllowed(senderID string) bool {
	if len(c.AllowFrom) == 0 {
		return true
	}

	for _, allowed := range c.AllowFrom {
		if allowed == senderID {
			return true
		}
		// Composite IDs like "id|username" match on either part.
		if strings.Contains(senderID, "|") {
			for _, part := range strings.Split(senderID, "|") {
				if part == allowed {
					return true
				}
			}
		}
	}
	return false
}

// HandleMessage publishes an incoming platform message onto the bus, dropping
// messages from disallowed senders.
func (c *BaseChannel) HandleMessage(
	channelName string,
	senderID string,
	chatID string,
	content string,
	media []string,
	metadata map[string]interface{},
) {
	if !c.IsAllowed(senderID) {
		return
	}

	c.Bus.PublishInbound(bus.InboundMessage{
		Channel:  channelName,
		SenderID: senderID,
		ChatID:   chatID,
		Content:  content,
		Media:    media,
		Metadata: metadata,
	})
}
