package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateIsLazyAndStable(t *testing.T) {
	m := NewManager(t.TempDir())

	a := m.GetOrCreate("telegram:42")
	b := m.GetOrCreate("telegram:42")
	assert.Same(t, a, b)
}

func TestSaveAndReloadRoundTrip(t *testing.T) {
	workspace := t.TempDir()
	m := NewManager(workspace)

	sess := m.GetOrCreate("telegram:42")
	sess.AddMessage("user", "hello")
	sess.AddMessage("assistant", "hi there")
	sess.Metadata["lang"] = "en"
	require.NoError(t, m.Save(sess))

	// Fresh manager forces a reload from disk.
	reloaded := NewManager(workspace).GetOrCreate("telegram:42")
	require.Len(t, reloaded.Messages, 2)
	assert.Equal(t, "hello", reloaded.Messages[0]["content"])
	assert.Equal(t, "hi there", reloaded.Messages[1]["content"])
	assert.Equal(t, "en", reloaded.Metadata["lang"])
}

func TestDraftSurvivesReload(t *testing.T) {
	workspace := t.TempDir()
	m := NewManager(workspace)

	sess := m.GetOrCreate("feishu:oc_1")
	sess.Draft = &Draft{Text: "pending note"}
	require.NoError(t, m.Save(sess))

	reloaded := NewManager(workspace).GetOrCreate("feishu:oc_1")
	require.NotNil(t, reloaded.Draft)
	assert.Equal(t, "pending note", reloaded.Draft.Text)
}

func TestClearRemovesSession(t *testing.T) {
	workspace := t.TempDir()
	m := NewManager(workspace)

	sess := m.GetOrCreate("telegram:42")
	sess.AddMessage("user", "hello")
	require.NoError(t, m.Save(sess))
	require.NoError(t, m.Clear("telegram:42"))

	fresh := m.GetOrCreate("telegram:42")
	assert.Empty(t, fresh.Messages)
}

func TestClearMissingSessionIsNoError(t *testing.T) {
	m := NewManager(t.TempDir())
	assert.NoError(t, m.Clear("never:existed"))
}

func TestGetHistoryLimitsAndReduces(t *testing.T) {
	sess := NewSession("k")
	for i := 0; i < 10; i++ {
		sess.AddMessage("user", "msg")
	}

	history := sess.GetHistory(3)
	require.Len(t, history, 3)
	// Reduced shape: role and content only.
	assert.Len(t, history[0], 2)
}
