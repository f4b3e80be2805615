package tools

import (
	"fmt"
)

// Spawner starts a background subagent reporting back to the given origin.
type Spawner interface {
	Spawn(task, label, originChannel, originChatID string) string
}

// SpawnTool hands a task to a background subagent. The subagent reports its
// result asynchronously to the conversation that spawned it.
type SpawnTool struct {
	BaseTool
	Manager       Spawner
	originChannel string
	originChatID  string
}

// NewSpawnTool creates a SpawnTool backed by the given spawner.
func NewSpawnTool(manager Spawner) *SpawnTool {
	return &SpawnTool{
		Manager:       manager,
		originChannel: "cli",
		originChatID:  "direct",
	}
}

// SetDestination binds the conversation subagent results report back to.
func (t *SpawnTool) SetDestination(channel, chatID string) {
	t.originChannel = channel
	t.originChatID = chatID
}

func (t *SpawnTool) Name() string {
	return "spawn"
}

func (t *SpawnTool) Description() string {
	return "Spawn a subagent to handle a task in the background. Use this for complex or time-consuming tasks that can run independently. The subagent will complete the task and report back when done."
}

func (t *SpawnTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"task": map[string]interface{}{
				"type":        "string",
				"description": "The task for the subagent to complete",
			},
			"label": map[string]interface{}{
				"type":        "string",
				"description": "Optional short label for the task (for display)",
			},
		},
		"required": []string{"task"},
	}
}

func (t *SpawnTool) Execute(args map[string]interface{}) (string, error) {
	task, ok := args["task"].(string)
	if !ok || task == "" {
		return "", fmt.Errorf("task must be a non-empty string")
	}
	label, _ := args["label"].(string)

	return t.Manager.Spawn(task, label, t.originChannel, t.originChatID), nil
}
