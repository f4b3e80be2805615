package bus

import (
	"strings"
	"time"
)

// SystemChannel is the reserved channel used for subagent and scheduler
// result delivery. Messages on it are routed back to their origin session.
const SystemChannel = "system"

// DefaultOriginChannel is assumed when a system message carries no usable
// return address.
const DefaultOriginChannel = "cli"

// Address identifies a conversation destination on a chat channel.
type Address struct {
	Channel string `json:"channel"`
	ChatID  string `json:"chat_id"`
}

// SessionKey returns the stable session identifier for this address.
func (a Address) SessionKey() string {
	return a.Channel + ":" + a.ChatID
}

// Composite encodes the address into the legacy "channel:chat_id" form used
// when the return address must travel inside a single identifier field.
func (a Address) Composite() string {
	return a.Channel + ":" + a.ChatID
}

// ParseComposite decodes a legacy composite address. The split happens on the
// first colon only; a chat id may itself contain colons. Without a colon the
// whole value is treated as a chat id on the default origin channel. A chat
// id that begins with "<prefix>:" is indistinguishable from a channel prefix;
// producers inside this process carry the structured Origin field instead and
// never hit this path.
func ParseComposite(value string) Address {
	if idx := strings.Index(value, ":"); idx >= 0 {
		return Address{Channel: value[:idx], ChatID: value[idx+1:]}
	}
	return Address{Channel: DefaultOriginChannel, ChatID: value}
}

// InboundMessage is a message received from a chat channel or injected by an
// internal producer (subagent announce, scheduled job).
type InboundMessage struct {
	Channel   string                 `json:"channel"`
	SenderID  string                 `json:"sender_id"`
	ChatID    string                 `json:"chat_id"`
	Content   string                 `json:"content"`
	Timestamp time.Time              `json:"timestamp"`
	Media     []string               `json:"media,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`

	// Origin is the structured return address for system-channel messages.
	// When nil, the legacy composite encoding in ChatID is decoded instead.
	Origin *Address `json:"origin,omitempty"`
}

// SessionKey returns the session identifier for this message's conversation.
func (m *InboundMessage) SessionKey() string {
	return m.Channel + ":" + m.ChatID
}

// ResolveOrigin returns the conversation this message belongs to. For system
// messages the return address wins over the literal sender; for everything
// else the message's own channel/chat identify the conversation.
func (m *InboundMessage) ResolveOrigin() Address {
	if m.Channel != SystemChannel {
		return Address{Channel: m.Channel, ChatID: m.ChatID}
	}
	if m.Origin != nil {
		return *m.Origin
	}
	return ParseComposite(m.ChatID)
}

// OutboundMessage is a reply to deliver on a chat channel.
type OutboundMessage struct {
	Channel  string                 `json:"channel"`
	ChatID   string                 `json:"chat_id"`
	Content  string                 `json:"content"`
	ReplyTo  string                 `json:"reply_to,omitempty"`
	Media    []string               `json:"media,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}
