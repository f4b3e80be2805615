package agent

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microclaw/microclaw/pkg/memory"
	"github.com/microclaw/microclaw/pkg/providers"
	"github.com/microclaw/microclaw/pkg/session"
)

func newTestFlow(t *testing.T, provider providers.Provider) (*MemoryFlow, *session.Session) {
	t.Helper()
	workspace := t.TempDir()
	sessions := session.NewManager(workspace)
	store := memory.NewStore(workspace)
	flow := NewMemoryFlow(provider, "fake-model", store, sessions)
	return flow, sessions.GetOrCreate("telegram:42")
}

func TestSaveRequestDraftsFromHistory(t *testing.T) {
	provider := &fakeProvider{responses: []*providers.Response{
		{Content: "User likes green tea."},
	}}
	flow, sess := newTestFlow(t, provider)
	sess.AddMessage("user", "I like green tea")
	sess.AddMessage("assistant", "Noted!")

	reply, handled, err := flow.Handle(context.Background(), sess, "save to memory")
	require.NoError(t, err)
	require.True(t, handled)
	assert.Contains(t, reply, "User likes green tea.")
	require.NotNil(t, sess.Draft)
	assert.Equal(t, "User likes green tea.", sess.Draft.Text)
	assert.Equal(t, 1, provider.calls)
}

func TestSaveRequestOnEmptyHistoryMakesNoModelCall(t *testing.T) {
	provider := &fakeProvider{}
	flow, sess := newTestFlow(t, provider)

	reply, handled, err := flow.Handle(context.Background(), sess, "save to memory")
	require.NoError(t, err)
	require.True(t, handled)
	assert.Contains(t, reply, "nothing")
	assert.Nil(t, sess.Draft)
	assert.Equal(t, 0, provider.calls)
}

func TestConfirmWritesDraftToLongTermMemory(t *testing.T) {
	provider := &fakeProvider{}
	flow, sess := newTestFlow(t, provider)
	sess.Draft = &session.Draft{Text: "User prefers tabs."}

	reply, handled, err := flow.Handle(context.Background(), sess, "save")
	require.NoError(t, err)
	require.True(t, handled)
	assert.Contains(t, reply, "Saved")
	assert.Nil(t, sess.Draft)

	data, err := os.ReadFile(flow.Store.LongTermPath())
	require.NoError(t, err)
	assert.Contains(t, string(data), "User prefers tabs.")
	assert.Contains(t, string(data), "---")
}

func TestCancelDiscardsDraftWithoutWriting(t *testing.T) {
	provider := &fakeProvider{}
	flow, sess := newTestFlow(t, provider)
	sess.Draft = &session.Draft{Text: "secret"}

	reply, handled, err := flow.Handle(context.Background(), sess, "cancel")
	require.NoError(t, err)
	require.True(t, handled)
	assert.Contains(t, reply, "discarded")
	assert.Nil(t, sess.Draft)

	_, err = os.Stat(flow.Store.LongTermPath())
	assert.True(t, os.IsNotExist(err))
}

func TestArbitraryTextOverwritesDraft(t *testing.T) {
	provider := &fakeProvider{}
	flow, sess := newTestFlow(t, provider)
	sess.Draft = &session.Draft{Text: "original"}

	reply, handled, err := flow.Handle(context.Background(), sess, "remember the deploy runs on Fridays")
	require.NoError(t, err)
	require.True(t, handled)
	assert.Contains(t, reply, "remember the deploy runs on Fridays")
	require.NotNil(t, sess.Draft)
	assert.Equal(t, "remember the deploy runs on Fridays", sess.Draft.Text)
}

func TestEmptyTextWhileDraftingIsNoOp(t *testing.T) {
	provider := &fakeProvider{}
	flow, sess := newTestFlow(t, provider)
	sess.Draft = &session.Draft{Text: "keep me"}

	reply, handled, err := flow.Handle(context.Background(), sess, "   ")
	require.NoError(t, err)
	require.True(t, handled)
	assert.Empty(t, reply)
	require.NotNil(t, sess.Draft)
	assert.Equal(t, "keep me", sess.Draft.Text)
}

func TestConfirmWithEmptyDraftRepliesNoDraft(t *testing.T) {
	provider := &fakeProvider{}
	flow, sess := newTestFlow(t, provider)
	sess.Draft = &session.Draft{Text: ""}

	reply, handled, err := flow.Handle(context.Background(), sess, "save")
	require.NoError(t, err)
	require.True(t, handled)
	assert.Contains(t, reply, "no draft")
	assert.Nil(t, sess.Draft)

	_, err = os.Stat(flow.Store.LongTermPath())
	assert.True(t, os.IsNotExist(err))
}

func TestConfirmWithoutDraftFallsThroughToNormalProcessing(t *testing.T) {
	provider := &fakeProvider{}
	flow, sess := newTestFlow(t, provider)

	_, handled, err := flow.Handle(context.Background(), sess, "save")
	require.NoError(t, err)
	assert.False(t, handled)
}

func TestRussianTriggersWork(t *testing.T) {
	provider := &fakeProvider{responses: []*providers.Response{
		{Content: "черновик"},
	}}
	flow, sess := newTestFlow(t, provider)
	sess.AddMessage("user", "привет")
	sess.AddMessage("assistant", "привет!")

	_, handled, err := flow.Handle(context.Background(), sess, "Сохранить в памяти")
	require.NoError(t, err)
	require.True(t, handled)
	require.NotNil(t, sess.Draft)

	reply, handled, err := flow.Handle(context.Background(), sess, "сохранить")
	require.NoError(t, err)
	require.True(t, handled)
	assert.Contains(t, reply, "Saved")
	assert.Nil(t, sess.Draft)
}
