package agent

import (
	"encoding/base64"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/microclaw/microclaw/pkg/memory"
	"github.com/microclaw/microclaw/pkg/skills"
)

// ContextBuilder assembles the model-input message list from session history,
// the current input, and workspace context (memory, skills, bootstrap files).
type ContextBuilder struct {
	Workspace string
	Memory    *memory.Store
	Skills    *skills.Loader
}

// NewContextBuilder creates a ContextBuilder rooted at the workspace.
func NewContextBuilder(workspace string) *ContextBuilder {
	return &ContextBuilder{
		Workspace: workspace,
		Memory:    memory.NewStore(workspace),
		Skills:    skills.NewLoader(workspace),
	}
}

// BootstrapFiles are workspace files injected into the system prompt when
// present, in this order.
var BootstrapFiles = []string{"AGENTS.md", "SOUL.md", "USER.md", "TOOLS.md", "IDENTITY.md"}

// BuildSystemPrompt builds the system prompt from identity, bootstrap files,
// memory, and skills.
func (c *ContextBuilder) BuildSystemPrompt() string {
	var parts []string

	parts = append(parts, c.getIdentity())

	if bootstrap := c.loadBootstrapFiles(); bootstrap != "" {
		parts = append(parts, bootstrap)
	}

	if mem := c.Memory.GetMemoryContext(); mem != "" {
		parts = append(parts, fmt.Sprintf("# Memory\n\n%s", mem))
	}

	alwaysSkills := c.Skills.GetAlwaysSkills()
	if len(alwaysSkills) > 0 {
		if alwaysContent := c.Skills.LoadSkillsForContext(alwaysSkills); alwaysContent != "" {
			parts = append(parts, fmt.Sprintf("# Active Skills\n\n%s", alwaysContent))
		}
	}

	if skillsSummary := c.Skills.BuildSkillsSummary(); skillsSummary != "" {
		parts = append(parts, fmt.Sprintf(`# Skills

The following skills extend your capabilities.
IMPORTANT: These are NOT native tools. You cannot call them directly.
To use a skill, you MUST first read its instruction file using the 'read_file' tool.
Then, follow the instructions in the file to execute the task (usually via 'exec' or 'web_search').

**Guideline**:
1. If a user request matches a skill (e.g., "weather", "summarize"), you **MUST** use the skill.
2. **Do NOT** hallucinate answers or use general knowledge for things like weather, news, or summaries if a skill is available.
3. **Actively execute** the skill instructions (e.g., run the curl command). Do not just tell the user how to do it.

%s`, skillsSummary))
	}

	return strings.Join(parts, "\n\n---\n\n")
}

func (c *ContextBuilder) getIdentity() string {
	now := time.Now().Format("2006-01-02 15:04 (Monday)")
	absWorkspace, _ := filepath.Abs(c.Workspace)
	sysInfo := fmt.Sprintf("%s %s, Go %s", runtime.GOOS, runtime.GOARCH, runtime.Version())

	return fmt.Sprintf(`# microclaw

You are microclaw, a helpful AI assistant. You have access to tools that allow you to:
- Read, write, append, and edit files
- Execute shell commands
- Search the web and fetch web pages
- Send messages to users on chat channels
- Schedule reminders and recurring tasks
- Spawn subagents for complex background tasks

## Current Time
%s

## Runtime
%s

## Workspace
Your workspace is at: %s
- Memory files: %s/memory/MEMORY.md
- Daily notes: %s/memory/YYYY-MM-DD.md
- Custom skills: %s/skills/{skill-name}/SKILL.md

IMPORTANT: When responding to direct questions or conversations, reply directly with your text response.
Only use the 'message' tool when you need to proactively push a message to a specific chat channel.
For normal conversation, just respond with text - do not call the message tool.
Do NOT write content to files unless explicitly requested by the user. If the user asks for long-form content (like an essay, code explanation, or story), put it directly in your response.

Always be helpful, accurate, and concise. When using tools, explain what you're doing.

## Memory Management
You have a long-term memory file at %s/memory/MEMORY.md.
When the user provides important personal information (e.g., name, location, preferences) or explicitly asks you to remember something, you **MUST** immediately use the 'append_file' tool to save it to this file.
Do not just say "I will remember that" - you must physically write it to the file using the 'append_file' tool.

## Conversation Handling
In group chats, user messages may be prefixed with '[Name]:' (e.g., '[Alice]: Hello').
- This indicates the sender's name.
- When replying, address the user by this name to be more personal.
- If you need to remember facts about this specific user, associate them with this name in your memory.`, now, sysInfo, absWorkspace, absWorkspace, absWorkspace, absWorkspace, absWorkspace)
}

func (c *ContextBuilder) loadBootstrapFiles() string {
	var parts []string
	for _, filename := range BootstrapFiles {
		path := filepath.Join(c.Workspace, filename)
		content, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		parts = append(parts, fmt.Sprintf("## %s\n\n%s", filename, string(content)))
	}
	return strings.Join(parts, "\n\n")
}

// BuildMessages builds the complete message list for a model call.
func (c *ContextBuilder) BuildMessages(
	history []map[string]interface{},
	currentMessage string,
	media []string,
	channel string,
	chatID string,
) []interface{} {
	var messages []interface{}

	systemPrompt := c.BuildSystemPrompt()
	if channel != "" && chatID != "" {
		systemPrompt += fmt.Sprintf("\n\n## Current Session\nChannel: %s\nChat ID: %s", channel, chatID)
	}
	messages = append(messages, map[string]interface{}{
		"role":    "system",
		"content": systemPrompt,
	})

	for _, msg := range history {
		messages = append(messages, msg)
	}

	messages = append(messages, map[string]interface{}{
		"role":    "user",
		"content": c.buildUserContent(currentMessage, media),
	})

	return messages
}

// buildUserContent returns plain text, or the multipart shape when image
// attachments are present.
func (c *ContextBuilder) buildUserContent(text string, media []string) interface{} {
	if len(media) == 0 {
		return text
	}

	var content []map[string]interface{}
	for _, path := range media {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		mimeType := mime.TypeByExtension(filepath.Ext(path))
		if !strings.HasPrefix(mimeType, "image/") {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		b64 := base64.StdEncoding.EncodeToString(data)
		content = append(content, map[string]interface{}{
			"type": "image_url",
			"image_url": map[string]interface{}{
				"url": fmt.Sprintf("data:%s;base64,%s", mimeType, b64),
			},
		})
	}

	if len(content) == 0 {
		return text
	}

	content = append(content, map[string]interface{}{
		"type": "text",
		"text": text,
	})
	return content
}

// AddAssistantMessage appends an assistant turn, including any tool calls it
// made, to the message list.
func (c *ContextBuilder) AddAssistantMessage(
	messages []interface{},
	content string,
	toolCalls []interface{},
) []interface{} {
	msg := map[string]interface{}{
		"role":    "assistant",
		"content": content,
	}
	if len(toolCalls) > 0 {
		msg["tool_calls"] = toolCalls
	}
	return append(messages, msg)
}

// AddToolResult appends a tool-result turn keyed by the originating call id.
func (c *ContextBuilder) AddToolResult(
	messages []interface{},
	toolCallID string,
	toolName string,
	result string,
) []interface{} {
	return append(messages, map[string]interface{}{
		"role":         "tool",
		"tool_call_id": toolCallID,
		"name":         toolName,
		"content":      result,
	})
}
