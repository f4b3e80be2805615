package tools

import (
	"fmt"

	"github.com/microclaw/microclaw/pkg/bus"
)

// MessageTool lets the agent push a message to a chat channel directly,
// outside the normal reply flow.
type MessageTool struct {
	BaseTool
	Bus            *bus.MessageBus
	defaultChannel string
	defaultChatID  string
}

// NewMessageTool creates a MessageTool publishing to the given bus.
func NewMessageTool(messageBus *bus.MessageBus) *MessageTool {
	return &MessageTool{Bus: messageBus}
}

// SetDestination binds the current conversation as the default target.
func (t *MessageTool) SetDestination(channel, chatID string) {
	t.defaultChannel = channel
	t.defaultChatID = chatID
}

func (t *MessageTool) Name() string {
	return "message"
}

func (t *MessageTool) Description() string {
	return "Send a message to a chat channel. Use this to proactively notify the user; for normal conversation just reply with text."
}

func (t *MessageTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"content": map[string]interface{}{
				"type":        "string",
				"description": "The message content",
			},
			"channel": map[string]interface{}{
				"type":        "string",
				"description": "Optional: target channel (telegram, feishu, dingtalk, ...)",
			},
			"chat_id": map[string]interface{}{
				"type":        "string",
				"description": "Optional: target chat/user ID",
			},
			"media": map[string]interface{}{
				"type":        "string",
				"description": "Optional: path or URL of a media attachment",
			},
		},
		"required": []string{"content"},
	}
}

func (t *MessageTool) Execute(args map[string]interface{}) (string, error) {
	content, _ := args["content"].(string)
	if content == "" {
		return "Error: content is required", nil
	}

	channel := t.defaultChannel
	if c, ok := args["channel"].(string); ok && c != "" {
		channel = c
	}
	chatID := t.defaultChatID
	if c, ok := args["chat_id"].(string); ok && c != "" {
		chatID = c
	}

	if channel == "" || chatID == "" {
		return "Error: no target channel/chat specified", nil
	}
	if t.Bus == nil {
		return "Error: message bus not configured", nil
	}

	msg := bus.OutboundMessage{
		Channel: channel,
		ChatID:  chatID,
		Content: content,
	}
	if media, ok := args["media"].(string); ok && media != "" {
		msg.Media = []string{media}
	}

	t.Bus.PublishOutbound(msg)

	return fmt.Sprintf("Message sent to %s:%s", channel, chatID), nil
}
