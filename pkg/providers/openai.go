package providers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIProvider talks to OpenAI and OpenAI-compatible endpoints (OpenRouter,
// DeepSeek, Groq, vLLM, ...) through the official SDK.
type OpenAIProvider struct {
	client      openai.Client
	model       string
	maxTokens   int64
	temperature float64
}

// NewOpenAIProvider creates a provider for the given endpoint. An empty
// apiBase targets the official OpenAI API.
func NewOpenAIProvider(apiKey, apiBase, defaultModel string) *OpenAIProvider {
	if defaultModel == "" {
		defaultModel = "gpt-4o"
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if apiBase != "" {
		opts = append(opts, option.WithBaseURL(apiBase))
	}

	return &OpenAIProvider{
		client:      openai.NewClient(opts...),
		model:       defaultModel,
		maxTokens:   8192,
		temperature: 0.7,
	}
}

// WithLimits overrides token and temperature defaults.
func (p *OpenAIProvider) WithLimits(maxTokens int, temperature float64) *OpenAIProvider {
	if maxTokens > 0 {
		p.maxTokens = int64(maxTokens)
	}
	p.temperature = temperature
	return p
}

// DefaultModel returns the configured default model.
func (p *OpenAIProvider) DefaultModel() string {
	return p.model
}

// Chat sends one chat-completion request and normalizes the response.
func (p *OpenAIProvider) Chat(ctx context.Context, messages []interface{}, tools []interface{}, model string) (*Response, error) {
	if model == "" {
		model = p.model
	}

	params := openai.ChatCompletionNewParams{
		Model:               model,
		Messages:            convertMessages(messages),
		MaxCompletionTokens: openai.Int(p.maxTokens),
		Temperature:         openai.Float(p.temperature),
	}
	if len(tools) > 0 {
		params.Tools = convertTools(tools)
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("chat completion: empty choices")
	}

	choice := completion.Choices[0]
	resp := &Response{
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Usage: map[string]int{
			"prompt_tokens":     int(completion.Usage.PromptTokens),
			"completion_tokens": int(completion.Usage.CompletionTokens),
			"total_tokens":      int(completion.Usage.TotalTokens),
		},
	}

	for _, tc := range choice.Message.ToolCalls {
		args := make(map[string]interface{})
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				args = map[string]interface{}{"_raw": tc.Function.Arguments}
			}
		}
		resp.ToolCalls = append(resp.ToolCalls, ToolCallRequest{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}

	return resp, nil
}

// convertMessages adapts the core's map-shaped message list to SDK params.
func convertMessages(messages []interface{}) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))

	for _, raw := range messages {
		msg, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		role, _ := msg["role"].(string)

		switch role {
		case "system":
			text, _ := msg["content"].(string)
			out = append(out, openai.SystemMessage(text))
		case "user":
			out = append(out, convertUserMessage(msg["content"]))
		case "assistant":
			text, _ := msg["content"].(string)
			calls := extractToolCallParams(msg["tool_calls"])
			if len(calls) == 0 {
				out = append(out, openai.AssistantMessage(text))
				continue
			}
			assistant := openai.ChatCompletionAssistantMessageParam{ToolCalls: calls}
			if text != "" {
				assistant.Content.OfString = openai.String(text)
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		case "tool":
			text, _ := msg["content"].(string)
			callID, _ := msg["tool_call_id"].(string)
			out = append(out, openai.ToolMessage(text, callID))
		}
	}

	return out
}

// convertUserMessage handles plain text and multipart (text + image) content.
func convertUserMessage(content interface{}) openai.ChatCompletionMessageParamUnion {
	switch c := content.(type) {
	case string:
		return openai.UserMessage(c)
	case []map[string]interface{}:
		var parts []openai.ChatCompletionContentPartUnionParam
		for _, part := range c {
			switch part["type"] {
			case "text":
				if text, ok := part["text"].(string); ok {
					parts = append(parts, openai.TextContentPart(text))
				}
			case "image_url":
				if img, ok := part["image_url"].(map[string]interface{}); ok {
					if url, ok := img["url"].(string); ok {
						parts = append(parts, openai.ImageContentPart(
							openai.ChatCompletionContentPartImageImageURLParam{URL: url},
						))
					}
				}
			}
		}
		if len(parts) > 0 {
			return openai.UserMessage(parts)
		}
	}
	return openai.UserMessage("")
}

func extractToolCallParams(raw interface{}) []openai.ChatCompletionMessageToolCallParam {
	items, ok := raw.([]interface{})
	if !ok {
		return nil
	}

	var calls []openai.ChatCompletionMessageToolCallParam
	for _, item := range items {
		call, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		id, _ := call["id"].(string)
		fn, _ := call["function"].(map[string]interface{})
		name, _ := fn["name"].(string)
		args, _ := fn["arguments"].(string)

		calls = append(calls, openai.ChatCompletionMessageToolCallParam{
			ID: id,
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      name,
				Arguments: args,
			},
		})
	}
	return calls
}

func convertTools(tools []interface{}) []openai.ChatCompletionToolParam {
	var out []openai.ChatCompletionToolParam
	for _, raw := range tools {
		def, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		fn, ok := def["function"].(map[string]interface{})
		if !ok {
			continue
		}
		name, _ := fn["name"].(string)
		desc, _ := fn["description"].(string)
		params, _ := fn["parameters"].(map[string]interface{})

		out = append(out, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        name,
				Description: openai.String(desc),
				Parameters:  openai.FunctionParameters(params),
			},
		})
	}
	return out
}
