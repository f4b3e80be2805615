package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/microclaw/microclaw/pkg/bus"
	"github.com/microclaw/microclaw/pkg/config"
	"github.com/microclaw/microclaw/pkg/providers"
	"github.com/microclaw/microclaw/pkg/tools"
)

const subagentMaxIterations = 15

// SubagentManager runs background tasks in independent tool-calling loops.
// A subagent never replies to the user directly; its final answer is
// published as a system-channel inbound message addressed back to the
// conversation that spawned it, and re-enters the normal turn machinery.
type SubagentManager struct {
	Provider    providers.Provider
	Workspace   string
	Bus         *bus.MessageBus
	Model       string
	BraveAPIKey string
	ExecConfig  *config.ExecToolConfig

	mu      sync.Mutex
	running map[string]string // task id -> label
}

// NewSubagentManager creates a SubagentManager.
func NewSubagentManager(
	provider providers.Provider,
	workspace string,
	messageBus *bus.MessageBus,
	model string,
	braveAPIKey string,
	execConfig *config.ExecToolConfig,
) *SubagentManager {
	if model == "" {
		model = provider.DefaultModel()
	}
	if execConfig == nil {
		execConfig = &config.ExecToolConfig{Timeout: 60, RestrictToWorkspace: true}
	}
	return &SubagentManager{
		Provider:    provider,
		Workspace:   workspace,
		Bus:         messageBus,
		Model:       model,
		BraveAPIKey: braveAPIKey,
		ExecConfig:  execConfig,
		running:     make(map[string]string),
	}
}

// Spawn starts a background subagent for the task and returns immediately
// with a confirmation string for the model.
func (m *SubagentManager) Spawn(task, label, originChannel, originChatID string) string {
	taskID := uuid.New().String()[:8]
	if label == "" {
		label = task
		if len(label) > 30 {
			label = label[:30] + "..."
		}
	}

	m.mu.Lock()
	m.running[taskID] = label
	m.mu.Unlock()

	origin := bus.Address{Channel: originChannel, ChatID: originChatID}
	go m.runSubagent(taskID, task, label, origin)

	log.Info("Spawned subagent", "id", taskID, "label", label)
	return fmt.Sprintf("Subagent [%s] started (id: %s). I'll notify you when it completes.", label, taskID)
}

// RunningTasks returns the ids of currently running subagents.
func (m *SubagentManager) RunningTasks() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.running))
	for id := range m.running {
		ids = append(ids, id)
	}
	return ids
}

func (m *SubagentManager) runSubagent(taskID, task, label string, origin bus.Address) {
	defer func() {
		m.mu.Lock()
		delete(m.running, taskID)
		m.mu.Unlock()
	}()

	log.Info("Subagent starting", "id", taskID, "label", label)

	registry := m.buildRegistry()
	messages := []interface{}{
		map[string]interface{}{"role": "system", "content": m.buildSubagentPrompt(task)},
		map[string]interface{}{"role": "user", "content": task},
	}
	definitions := registry.Definitions()

	var finalResult string
	for iteration := 0; iteration < subagentMaxIterations; iteration++ {
		response, err := m.Provider.Chat(context.Background(), messages, definitions, m.Model)
		if err != nil {
			log.Error("Subagent model call failed", "id", taskID, "error", err)
			m.announceResult(label, task, fmt.Sprintf("Error: %v", err), origin, "error")
			return
		}

		if !response.HasToolCalls() {
			finalResult = response.Content
			break
		}

		toolCallsRaw := make([]interface{}, len(response.ToolCalls))
		for i, tc := range response.ToolCalls {
			argsJSON, _ := json.Marshal(tc.Arguments)
			toolCallsRaw[i] = map[string]interface{}{
				"id":   tc.ID,
				"type": "function",
				"function": map[string]interface{}{
					"name":      tc.Name,
					"arguments": string(argsJSON),
				},
			}
		}
		messages = append(messages, map[string]interface{}{
			"role":       "assistant",
			"content":    response.Content,
			"tool_calls": toolCallsRaw,
		})

		for _, tc := range response.ToolCalls {
			log.Debug("Subagent executing tool", "id", taskID, "name", tc.Name)
			result := registry.Execute(tc.Name, tc.Arguments)
			messages = append(messages, map[string]interface{}{
				"role":         "tool",
				"tool_call_id": tc.ID,
				"name":         tc.Name,
				"content":      result,
			})
		}
	}

	if finalResult == "" {
		finalResult = "Task completed but no final response was generated."
	}

	log.Info("Subagent completed", "id", taskID)
	m.announceResult(label, task, finalResult, origin, "ok")
}

// buildRegistry assembles the subagent tool set: files, shell, and web only.
// No message tool (subagents never talk to users) and no spawn tool (no
// recursive spawning).
func (m *SubagentManager) buildRegistry() *tools.Registry {
	registry := tools.NewRegistry()
	registry.Register(&tools.ReadFileTool{})
	registry.Register(&tools.WriteFileTool{})
	registry.Register(&tools.AppendFileTool{})
	registry.Register(&tools.EditFileTool{})
	registry.Register(&tools.ListDirTool{})
	registry.Register(tools.NewExecTool(m.ExecConfig.Timeout, m.Workspace, m.ExecConfig.RestrictToWorkspace))
	registry.Register(tools.NewWebSearchTool(m.BraveAPIKey, 5))
	registry.Register(tools.NewWebFetchTool(50000))
	return registry
}

// announceResult re-injects the subagent outcome as a system message. The
// structured Origin field carries the return address; ChatID keeps the
// composite encoding for consumers of the legacy decode path.
func (m *SubagentManager) announceResult(label, task, result string, origin bus.Address, status string) {
	statusText := "completed successfully"
	if status != "ok" {
		statusText = "failed"
	}

	content := fmt.Sprintf(`[Subagent '%s' %s]

Task: %s

Result:
%s

Summarize this naturally for the user. Keep it brief (1-2 sentences). Do not mention technical details like "subagent" or task IDs.`, label, statusText, task, result)

	m.Bus.PublishInbound(bus.InboundMessage{
		Channel:  bus.SystemChannel,
		SenderID: "subagent",
		ChatID:   origin.Composite(),
		Content:  content,
		Origin:   &origin,
	})
}

func (m *SubagentManager) buildSubagentPrompt(task string) string {
	return fmt.Sprintf(`# Subagent

You are a subagent spawned by the main agent to complete a specific task.

## Your Task
%s

## Rules
1. Stay focused - complete only the assigned task, nothing else
2. Your final response will be reported back to the main agent
3. Do not initiate conversations or take on side tasks
4. Be concise but informative in your findings

## What You Can Do
- Read and write files in the workspace
- Execute shell commands
- Search the web and fetch web pages

## What You Cannot Do
- Send messages directly to users (no message tool available)
- Spawn other subagents
- Access the main agent's conversation history

## Workspace
Your workspace is at: %s

When you have completed the task, provide a clear summary of your findings or actions.`, task, m.Workspace)
}
