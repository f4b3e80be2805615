package providers

import (
	"context"
)

// ToolCallRequest is a tool invocation requested by the model. Arguments are
// structured; they are re-serialized to JSON text when recorded in the
// message history.
type ToolCallRequest struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// Response is one model turn: text content and zero or more tool calls.
type Response struct {
	Content      string            `json:"content,omitempty"`
	ToolCalls    []ToolCallRequest `json:"tool_calls,omitempty"`
	FinishReason string            `json:"finish_reason,omitempty"`
	Usage        map[string]int    `json:"usage,omitempty"`
}

// HasToolCalls reports whether the response requests tool execution.
func (r *Response) HasToolCalls() bool {
	return len(r.ToolCalls) > 0
}

// Provider is the model backend contract consumed by the agent loop.
// Messages and tool definitions use the OpenAI wire shapes as plain maps so
// the core stays backend-agnostic; each provider adapts them.
type Provider interface {
	Chat(ctx context.Context, messages []interface{}, tools []interface{}, model string) (*Response, error)
	DefaultModel() string
}
