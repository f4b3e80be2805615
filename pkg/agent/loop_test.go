package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microclaw/microclaw/pkg/bus"
	"github.com/microclaw/microclaw/pkg/config"
	"github.com/microclaw/microclaw/pkg/providers"
)

// fakeProvider returns scripted responses in order, repeating the last one
// when the script runs out.
type fakeProvider struct {
	responses []*providers.Response
	calls     int
}

func (f *fakeProvider) Chat(ctx context.Context, messages []interface{}, tools []interface{}, model string) (*providers.Response, error) {
	f.calls++
	if len(f.responses) == 0 {
		return &providers.Response{Content: "done"}, nil
	}
	r := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return r, nil
}

func (f *fakeProvider) DefaultModel() string { return "fake-model" }

func toolCallResponse(name string) *providers.Response {
	return &providers.Response{
		ToolCalls: []providers.ToolCallRequest{
			{ID: "call_1", Name: name, Arguments: map[string]interface{}{}},
		},
	}
}

func newTestLoop(t *testing.T, provider providers.Provider, maxIterations int) *AgentLoop {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Agents.Defaults.Workspace = t.TempDir()
	cfg.Agents.Defaults.MaxToolIterations = maxIterations
	return NewAgentLoop(bus.NewMessageBus(), provider, cfg.Agents.Defaults.Workspace, cfg, nil)
}

func TestTurnStopsAtFinalAnswer(t *testing.T) {
	provider := &fakeProvider{responses: []*providers.Response{
		toolCallResponse("list_dir"),
		{Content: "the answer"},
	}}
	loop := newTestLoop(t, provider, 20)

	reply, err := loop.processMessage(context.Background(), bus.InboundMessage{
		Channel: "telegram", SenderID: "7", ChatID: "42", Content: "hello",
	})
	require.NoError(t, err)
	require.NotNil(t, reply)
	assert.Equal(t, "the answer", reply.Content)
	assert.Equal(t, "telegram", reply.Channel)
	assert.Equal(t, "42", reply.ChatID)
	assert.Equal(t, 2, provider.calls)
}

func TestIterationBudgetProducesFallback(t *testing.T) {
	// The provider never stops requesting tools.
	provider := &fakeProvider{responses: []*providers.Response{
		toolCallResponse("list_dir"),
	}}
	loop := newTestLoop(t, provider, 3)

	reply, err := loop.processMessage(context.Background(), bus.InboundMessage{
		Channel: "telegram", SenderID: "7", ChatID: "42", Content: "loop forever",
	})
	require.NoError(t, err)
	require.NotNil(t, reply)
	assert.Equal(t, FallbackNoAnswer, reply.Content)
	assert.Equal(t, 3, provider.calls)
}

func TestHistoryGrowsByExactlyTwoEntriesPerTurn(t *testing.T) {
	provider := &fakeProvider{responses: []*providers.Response{
		toolCallResponse("list_dir"),
		toolCallResponse("no_such_tool"),
		{Content: "final"},
	}}
	loop := newTestLoop(t, provider, 20)

	_, err := loop.processMessage(context.Background(), bus.InboundMessage{
		Channel: "telegram", SenderID: "7", ChatID: "42", Content: "question",
	})
	require.NoError(t, err)

	sess := loop.Sessions.GetOrCreate("telegram:42")
	require.Len(t, sess.Messages, 2)
	assert.Equal(t, "user", sess.Messages[0]["role"])
	assert.Equal(t, "question", sess.Messages[0]["content"])
	assert.Equal(t, "assistant", sess.Messages[1]["role"])
	assert.Equal(t, "final", sess.Messages[1]["content"])
}

func TestSystemMessageRoutedToOriginSession(t *testing.T) {
	provider := &fakeProvider{responses: []*providers.Response{
		{Content: "summary for the user"},
	}}
	loop := newTestLoop(t, provider, 20)

	reply, err := loop.processMessage(context.Background(), bus.InboundMessage{
		Channel:  bus.SystemChannel,
		SenderID: "subagent",
		ChatID:   "telegram:42",
		Content:  "task finished",
	})
	require.NoError(t, err)
	require.NotNil(t, reply)
	assert.Equal(t, "telegram", reply.Channel)
	assert.Equal(t, "42", reply.ChatID)

	sess := loop.Sessions.GetOrCreate("telegram:42")
	require.Len(t, sess.Messages, 2)
	assert.Equal(t, "[System: subagent] task finished", sess.Messages[0]["content"])
}

func TestSystemMessageStructuredOriginWins(t *testing.T) {
	provider := &fakeProvider{responses: []*providers.Response{
		{Content: "ok"},
	}}
	loop := newTestLoop(t, provider, 20)

	reply, err := loop.processMessage(context.Background(), bus.InboundMessage{
		Channel:  bus.SystemChannel,
		SenderID: "subagent",
		ChatID:   "stale:encoding",
		Content:  "done",
		Origin:   &bus.Address{Channel: "feishu", ChatID: "oc_x:y"},
	})
	require.NoError(t, err)
	require.NotNil(t, reply)
	assert.Equal(t, "feishu", reply.Channel)
	assert.Equal(t, "oc_x:y", reply.ChatID)
}

func TestProcessDirectReturnsAnswer(t *testing.T) {
	provider := &fakeProvider{responses: []*providers.Response{
		{Content: "direct answer"},
	}}
	loop := newTestLoop(t, provider, 20)

	answer, err := loop.ProcessDirect(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "direct answer", answer)

	sess := loop.Sessions.GetOrCreate("cli:direct")
	assert.Len(t, sess.Messages, 2)
}
