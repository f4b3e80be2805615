package tools

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTool struct {
	BaseTool
	name    string
	result  string
	err     error
	channel string
	chatID  string
}

func (t *stubTool) Name() string        { return t.name }
func (t *stubTool) Description() string { return "stub" }
func (t *stubTool) Parameters() map[string]interface{} {
	return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
}
func (t *stubTool) Execute(args map[string]interface{}) (string, error) {
	return t.result, t.err
}
func (t *stubTool) SetDestination(channel, chatID string) {
	t.channel = channel
	t.chatID = chatID
}

func TestExecuteReturnsResultText(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubTool{name: "echo", result: "hello"})

	assert.Equal(t, "hello", reg.Execute("echo", nil))
}

func TestExecuteNeverRaises(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubTool{name: "boom", err: fmt.Errorf("kaput")})

	result := reg.Execute("boom", nil)
	assert.Contains(t, result, "Error executing boom")
	assert.Contains(t, result, "kaput")
}

func TestExecuteUnknownToolReturnsErrorText(t *testing.T) {
	reg := NewRegistry()
	result := reg.Execute("missing", nil)
	assert.Contains(t, result, "tool not found")
}

func TestBindDestinationReachesAwareToolsOnly(t *testing.T) {
	reg := NewRegistry()
	aware := &stubTool{name: "aware"}
	reg.Register(aware)
	reg.Register(&ListDirTool{})

	reg.BindDestination("telegram", "42")

	assert.Equal(t, "telegram", aware.channel)
	assert.Equal(t, "42", aware.chatID)
}

func TestDefinitionsPreserveRegistrationOrder(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubTool{name: "first"})
	reg.Register(&stubTool{name: "second"})
	reg.Register(&stubTool{name: "third"})

	defs := reg.Definitions()
	require.Len(t, defs, 3)

	names := make([]string, 0, 3)
	for _, d := range defs {
		schema := d.(map[string]interface{})
		fn := schema["function"].(map[string]interface{})
		names = append(names, fn["name"].(string))
	}
	assert.Equal(t, []string{"first", "second", "third"}, names)
}

func TestGenerateSchemaShape(t *testing.T) {
	schema := GenerateSchema(&stubTool{name: "echo"})
	assert.Equal(t, "function", schema["type"])
	fn := schema["function"].(map[string]interface{})
	assert.Equal(t, "echo", fn["name"])
	assert.NotNil(t, fn["parameters"])
}
