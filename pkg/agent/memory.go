package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/microclaw/microclaw/pkg/memory"
	"github.com/microclaw/microclaw/pkg/providers"
	"github.com/microclaw/microclaw/pkg/session"
)

// Trigger phrases for the memory-save confirmation flow, matched against the
// trimmed, lowercased input. English and Russian synonyms.
var (
	saveRequestTriggers = []string{"save to memory", "сохранить в памяти"}
	confirmTriggers     = []string{"save", "сохранить"}
	cancelTriggers      = []string{"cancel", "отмена"}
)

const draftPromptSuffix = "Reply 'save' to store it in long-term memory, 'cancel' to discard, or send replacement text to edit the draft."

// MemoryFlow is the save-to-memory confirmation state machine. It intercepts
// a turn before the tool-calling loop: a save request summarizes the session
// into a draft, which the user then confirms, cancels, or edits. A session
// with a nil Draft is idle; a non-nil Draft means a confirmation is pending.
type MemoryFlow struct {
	Provider providers.Provider
	Model    string
	Store    *memory.Store
	Sessions *session.Manager
}

// NewMemoryFlow creates the confirmation flow.
func NewMemoryFlow(provider providers.Provider, model string, store *memory.Store, sessions *session.Manager) *MemoryFlow {
	return &MemoryFlow{
		Provider: provider,
		Model:    model,
		Store:    store,
		Sessions: sessions,
	}
}

// Handle runs the state machine for one input. It returns the reply text and
// whether the turn was consumed; when handled is false the caller proceeds
// with normal processing. A handled turn with an empty reply means no message
// should be sent.
func (f *MemoryFlow) Handle(ctx context.Context, sess *session.Session, input string) (reply string, handled bool, err error) {
	trimmed := strings.TrimSpace(input)
	normalized := strings.ToLower(trimmed)

	if sess.Draft == nil {
		if !matchesTrigger(saveRequestTriggers, normalized) {
			return "", false, nil
		}
		return f.startDraft(ctx, sess)
	}

	// A draft is pending confirmation.
	if trimmed == "" {
		return "", true, nil
	}

	switch {
	case matchesTrigger(cancelTriggers, normalized):
		sess.Draft = nil
		if err := f.Sessions.Save(sess); err != nil {
			return "", true, err
		}
		return "Draft discarded, nothing was saved.", true, nil

	case matchesTrigger(confirmTriggers, normalized) || matchesTrigger(saveRequestTriggers, normalized):
		draft := sess.Draft.Text
		sess.Draft = nil
		if draft == "" {
			if err := f.Sessions.Save(sess); err != nil {
				return "", true, err
			}
			return "There is no draft to save.", true, nil
		}
		if err := f.Store.AppendLongTerm(draft); err != nil {
			return "", true, fmt.Errorf("writing long-term memory: %w", err)
		}
		if err := f.Sessions.Save(sess); err != nil {
			return "", true, err
		}
		return "Saved to long-term memory.", true, nil

	default:
		// Any other text replaces the draft.
		sess.Draft.Text = trimmed
		if err := f.Sessions.Save(sess); err != nil {
			return "", true, err
		}
		return fmt.Sprintf("Updated draft:\n\n%s\n\n%s", trimmed, draftPromptSuffix), true, nil
	}
}

// startDraft summarizes the conversation into a draft and asks the user to
// confirm. An empty transcript short-circuits without calling the model.
func (f *MemoryFlow) startDraft(ctx context.Context, sess *session.Session) (string, bool, error) {
	transcript := buildTranscript(sess)
	if transcript == "" {
		return "There is nothing in this conversation to save yet.", true, nil
	}

	messages := []interface{}{
		map[string]interface{}{
			"role": "system",
			"content": "Summarize the conversation below into a short note worth keeping in long-term memory. " +
				"Capture durable facts, decisions, and preferences; skip small talk. Reply with the note text only.",
		},
		map[string]interface{}{
			"role":    "user",
			"content": transcript,
		},
	}

	response, err := f.Provider.Chat(ctx, messages, nil, f.Model)
	if err != nil {
		return "", true, fmt.Errorf("drafting memory summary: %w", err)
	}

	draft := strings.TrimSpace(response.Content)
	sess.Draft = &session.Draft{Text: draft}
	if err := f.Sessions.Save(sess); err != nil {
		return "", true, err
	}

	return fmt.Sprintf("Draft memory entry:\n\n%s\n\n%s", draft, draftPromptSuffix), true, nil
}

func buildTranscript(sess *session.Session) string {
	var lines []string
	for _, msg := range sess.Messages {
		role, _ := msg["role"].(string)
		content, _ := msg["content"].(string)
		if content == "" {
			continue
		}
		switch role {
		case "user":
			lines = append(lines, "User: "+content)
		case "assistant":
			lines = append(lines, "Assistant: "+content)
		}
	}
	return strings.Join(lines, "\n")
}

func matchesTrigger(triggers []string, normalized string) bool {
	for _, t := range triggers {
		if normalized == t {
			return true
		}
	}
	return false
}
