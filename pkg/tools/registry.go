package tools

import "fmt"

// Tool is a named capability the model can invoke with structured arguments.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]interface{}
	Execute(args map[string]interface{}) (string, error)
}

// DestinationAware is implemented by tools that deliver somewhere (messages,
// spawned subagents, scheduled jobs) and need the current conversation bound
// before execution.
type DestinationAware interface {
	SetDestination(channel, chatID string)
}

// BaseTool provides common functionality for tools.
type BaseTool struct{}

// GenerateSchema converts a tool to the OpenAI function schema shape.
func GenerateSchema(tool Tool) map[string]interface{} {
	return map[string]interface{}{
		"type": "function",
		"function": map[string]interface{}{
			"name":        tool.Name(),
			"description": tool.Description(),
			"parameters":  tool.Parameters(),
		},
	}
}

// Registry maps tool names to implementations.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool, replacing any previous tool with the same name.
func (r *Registry) Register(tool Tool) {
	if _, exists := r.tools[tool.Name()]; !exists {
		r.order = append(r.order, tool.Name())
	}
	r.tools[tool.Name()] = tool
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// BindDestination updates every destination-aware tool with the conversation
// the current turn belongs to.
func (r *Registry) BindDestination(channel, chatID string) {
	for _, tool := range r.tools {
		if aware, ok := tool.(DestinationAware); ok {
			aware.SetDestination(channel, chatID)
		}
	}
}

// Execute runs a tool by name. It never fails from the caller's perspective:
// unknown tools and execution errors come back as result text so the model
// can react to them.
func (r *Registry) Execute(name string, args map[string]interface{}) string {
	tool, ok := r.tools[name]
	if !ok {
		return fmt.Sprintf("Error: tool not found: %s", name)
	}
	result, err := tool.Execute(args)
	if err != nil {
		return fmt.Sprintf("Error executing %s: %v", name, err)
	}
	return result
}

// Definitions returns the schema definitions for all registered tools in
// registration order.
func (r *Registry) Definitions() []interface{} {
	defs := make([]interface{}, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, GenerateSchema(r.tools[name]))
	}
	return defs
}
