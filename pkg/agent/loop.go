package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/microclaw/microclaw/pkg/bus"
	"github.com/microclaw/microclaw/pkg/config"
	"github.com/microclaw/microclaw/pkg/cron"
	"github.com/microclaw/microclaw/pkg/providers"
	"github.com/microclaw/microclaw/pkg/session"
	"github.com/microclaw/microclaw/pkg/tools"
)

// FallbackNoAnswer is returned verbatim when the tool-calling loop exhausts
// its iteration budget without the model producing a final answer.
const FallbackNoAnswer = "processing incomplete, no answer produced"

// AgentLoop is the turn processor: one inbound message in, at most one
// outbound reply out. Turns run strictly one at a time; subagent computation
// is the only concurrency, and its results re-enter through the bus.
type AgentLoop struct {
	Bus           *bus.MessageBus
	Provider      providers.Provider
	Workspace     string
	Model         string
	MaxIterations int
	Config        *config.Config
	CronService   *cron.Service

	Context   *ContextBuilder
	Sessions  *session.Manager
	Tools     *tools.Registry
	Subagents *SubagentManager
	Memory    *MemoryFlow
}

// NewAgentLoop creates an AgentLoop with the default tool set registered.
func NewAgentLoop(
	messageBus *bus.MessageBus,
	provider providers.Provider,
	workspace string,
	cfg *config.Config,
	cronService *cron.Service,
) *AgentLoop {
	model := cfg.Agents.Defaults.Model
	if model == "" {
		model = provider.DefaultModel()
	}
	maxIterations := cfg.Agents.Defaults.MaxToolIterations
	if maxIterations <= 0 {
		maxIterations = 20
	}

	ctxBuilder := NewContextBuilder(workspace)
	sessions := session.NewManager(workspace)

	loop := &AgentLoop{
		Bus:           messageBus,
		Provider:      provider,
		Workspace:     workspace,
		Model:         model,
		MaxIterations: maxIterations,
		Config:        cfg,
		CronService:   cronService,
		Context:       ctxBuilder,
		Sessions:      sessions,
		Tools:         tools.NewRegistry(),
		Subagents:     NewSubagentManager(provider, workspace, messageBus, model, cfg.Tools.Web.Search.APIKey, &cfg.Tools.Exec),
		Memory:        NewMemoryFlow(provider, model, ctxBuilder.Memory, sessions),
	}

	loop.registerDefaultTools()
	return loop
}

func (l *AgentLoop) registerDefaultTools() {
	l.Tools.Register(&tools.ReadFileTool{})
	l.Tools.Register(&tools.WriteFileTool{})
	l.Tools.Register(&tools.AppendFileTool{})
	l.Tools.Register(&tools.EditFileTool{})
	l.Tools.Register(&tools.ListDirTool{})

	l.Tools.Register(tools.NewExecTool(l.Config.Tools.Exec.Timeout, l.Workspace, l.Config.Tools.Exec.RestrictToWorkspace))

	l.Tools.Register(tools.NewWebSearchTool(l.Config.Tools.Web.Search.APIKey, l.Config.Tools.Web.Search.MaxResults))
	l.Tools.Register(tools.NewWebFetchTool(50000))

	l.Tools.Register(tools.NewSpawnTool(l.Subagents))

	if l.CronService != nil {
		l.Tools.Register(tools.NewCronTool(l.CronService))
	}

	l.Tools.Register(tools.NewMessageTool(l.Bus))
}

// Run consumes inbound messages until ctx is cancelled. Each message is
// processed to completion before the next is dequeued; turn errors become a
// short apologetic reply on the originating chat and never stop the loop.
func (l *AgentLoop) Run(ctx context.Context) {
	log.Info("Agent loop started")

	for {
		msg, ok := l.Bus.ConsumeInbound(ctx)
		if !ok {
			log.Info("Agent loop stopping")
			return
		}

		reply, err := l.processMessage(ctx, msg)
		if err != nil {
			origin := msg.ResolveOrigin()
			log.Error("Turn failed", "channel", origin.Channel, "chat_id", origin.ChatID, "error", err)
			l.Bus.PublishOutbound(bus.OutboundMessage{
				Channel: origin.Channel,
				ChatID:  origin.ChatID,
				Content: fmt.Sprintf("Sorry, I encountered an error: %v", err),
			})
			continue
		}
		if reply != nil {
			l.Bus.PublishOutbound(*reply)
		}
	}
}

// ProcessDirect runs one turn for a direct CLI input and returns the answer
// without a bus round-trip.
func (l *AgentLoop) ProcessDirect(ctx context.Context, content string) (string, error) {
	reply, err := l.processMessage(ctx, bus.InboundMessage{
		Channel:  bus.DefaultOriginChannel,
		SenderID: "user",
		ChatID:   "direct",
		Content:  content,
	})
	if err != nil {
		return "", err
	}
	if reply == nil {
		return "", nil
	}
	return reply.Content, nil
}

// processMessage runs one full turn. System messages are resolved to their
// origin conversation first; the memory-confirmation flow may consume the
// turn before the tool-calling loop runs.
func (l *AgentLoop) processMessage(ctx context.Context, msg bus.InboundMessage) (*bus.OutboundMessage, error) {
	origin := msg.ResolveOrigin()
	log.Info("Processing message", "channel", msg.Channel, "sender", msg.SenderID, "session", origin.SessionKey())

	// "New topic" command resets the conversation.
	if strings.TrimSpace(msg.Content) == "新话题" {
		if err := l.Sessions.Clear(origin.SessionKey()); err != nil {
			log.Error("Failed to clear session", "error", err)
		}
		return &bus.OutboundMessage{
			Channel: origin.Channel,
			ChatID:  origin.ChatID,
			Content: "已为您开启新话题，之前的对话记录已被清除。",
		}, nil
	}

	sess := l.Sessions.GetOrCreate(origin.SessionKey())
	l.Tools.BindDestination(origin.Channel, origin.ChatID)

	if reply, handled, err := l.Memory.Handle(ctx, sess, msg.Content); handled {
		if err != nil {
			return nil, err
		}
		if reply == "" {
			return nil, nil
		}
		return &bus.OutboundMessage{
			Channel: origin.Channel,
			ChatID:  origin.ChatID,
			Content: reply,
		}, nil
	}

	history := sess.GetHistory(50)
	messages := l.Context.BuildMessages(history, msg.Content, msg.Media, origin.Channel, origin.ChatID)

	finalContent, err := l.runToolLoop(ctx, messages, l.Tools)
	if err != nil {
		return nil, err
	}

	// Only the conversational turns are persisted; the tool exchanges above
	// lived solely in the transient message list.
	userEntry := msg.Content
	if msg.Channel == bus.SystemChannel {
		userEntry = fmt.Sprintf("[System: %s] %s", msg.SenderID, msg.Content)
	}
	sess.AddMessage("user", userEntry)
	sess.AddMessage("assistant", finalContent)
	if err := l.Sessions.Save(sess); err != nil {
		log.Error("Failed to persist session", "key", sess.Key, "error", err)
	}

	return &bus.OutboundMessage{
		Channel: origin.Channel,
		ChatID:  origin.ChatID,
		Content: finalContent,
	}, nil
}

// runToolLoop alternates model calls and sequential tool execution until the
// model answers without tool calls or the iteration budget runs out.
func (l *AgentLoop) runToolLoop(ctx context.Context, messages []interface{}, registry *tools.Registry) (string, error) {
	definitions := registry.Definitions()

	for iteration := 0; iteration < l.MaxIterations; iteration++ {
		response, err := l.Provider.Chat(ctx, messages, definitions, l.Model)
		if err != nil {
			return "", fmt.Errorf("model backend: %w", err)
		}

		if !response.HasToolCalls() {
			return response.Content, nil
		}

		messages = l.Context.AddAssistantMessage(messages, response.Content, rawToolCalls(response.ToolCalls))

		for _, tc := range response.ToolCalls {
			log.Debug("Executing tool", "name", tc.Name)
			result := registry.Execute(tc.Name, tc.Arguments)
			messages = l.Context.AddToolResult(messages, tc.ID, tc.Name, result)
		}
	}

	return FallbackNoAnswer, nil
}

// rawToolCalls serializes tool calls back into the wire shape recorded in the
// assistant turn.
func rawToolCalls(calls []providers.ToolCallRequest) []interface{} {
	raw := make([]interface{}, len(calls))
	for i, tc := range calls {
		argsJSON, _ := json.Marshal(tc.Arguments)
		raw[i] = map[string]interface{}{
			"id":   tc.ID,
			"type": "function",
			"function": map[string]interface{}{
				"name":      tc.Name,
				"arguments": string(argsJSON),
			},
		}
	}
	return raw
}
