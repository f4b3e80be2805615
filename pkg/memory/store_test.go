package memory

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureLongTermCreatesTemplate(t *testing.T) {
	store := NewStore(t.TempDir())
	require.NoError(t, store.EnsureLongTerm())

	data, err := os.ReadFile(store.LongTermPath())
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Long-term Memory")
}

func TestEnsureLongTermDoesNotOverwrite(t *testing.T) {
	store := NewStore(t.TempDir())
	require.NoError(t, os.WriteFile(store.LongTermPath(), []byte("custom"), 0644))
	require.NoError(t, store.EnsureLongTerm())

	data, err := os.ReadFile(store.LongTermPath())
	require.NoError(t, err)
	assert.Equal(t, "custom", string(data))
}

func TestAppendLongTermCreatesTemplateAndSeparates(t *testing.T) {
	store := NewStore(t.TempDir())
	require.NoError(t, store.AppendLongTerm("first entry"))
	require.NoError(t, store.AppendLongTerm("second entry"))

	data, err := os.ReadFile(store.LongTermPath())
	require.NoError(t, err)
	content := string(data)

	assert.Contains(t, content, "# Long-term Memory")
	assert.Contains(t, content, "first entry")
	assert.Contains(t, content, "second entry")
	assert.Equal(t, 2, strings.Count(content, "\n\n---\n\n"))
}

func TestAppendLongTermIgnoresBlank(t *testing.T) {
	store := NewStore(t.TempDir())
	require.NoError(t, store.AppendLongTerm("   \n  "))

	_, err := os.Stat(store.LongTermPath())
	assert.True(t, os.IsNotExist(err))
}

func TestAppendTodayAddsHeaderOnce(t *testing.T) {
	store := NewStore(t.TempDir())
	require.NoError(t, store.AppendToday("morning note"))
	require.NoError(t, store.AppendToday("evening note"))

	content, err := store.ReadToday()
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(content, "# "))
	assert.Contains(t, content, "morning note")
	assert.Contains(t, content, "evening note")
}

func TestGetMemoryContextCombinesSources(t *testing.T) {
	store := NewStore(t.TempDir())
	require.NoError(t, store.AppendLongTerm("long fact"))
	require.NoError(t, store.AppendToday("today fact"))

	ctx := store.GetMemoryContext()
	assert.Contains(t, ctx, "long fact")
	assert.Contains(t, ctx, "today fact")
}
