package session

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Draft is an unconfirmed long-term-memory summary awaiting user
// confirmation. A session either has no draft (nil) or is drafting; there is
// no separate "awaiting" flag to fall out of sync.
type Draft struct {
	Text string `json:"text"`
}

// Session holds one conversation: ordered user/assistant turns plus free-form
// metadata. History is append-only; only the turn currently processing the
// session mutates it.
type Session struct {
	Key       string                   `json:"key"`
	Messages  []map[string]interface{} `json:"messages"`
	CreatedAt time.Time                `json:"created_at"`
	UpdatedAt time.Time                `json:"updated_at"`
	Metadata  map[string]interface{}   `json:"metadata"`
	Draft     *Draft                   `json:"draft,omitempty"`
}

// NewSession creates an empty session for the given key.
func NewSession(key string) *Session {
	return &Session{
		Key:       key,
		Messages:  make([]map[string]interface{}, 0),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
		Metadata:  make(map[string]interface{}),
	}
}

// AddMessage appends a conversational turn to the session.
func (s *Session) AddMessage(role string, content string) {
	s.Messages = append(s.Messages, map[string]interface{}{
		"role":      role,
		"content":   content,
		"timestamp": time.Now().Format(time.RFC3339),
	})
	s.UpdatedAt = time.Now()
}

// GetHistory returns up to maxMessages of the most recent turns, reduced to
// the role/content shape the model context needs.
func (s *Session) GetHistory(maxMessages int) []map[string]interface{} {
	msgs := s.Messages
	if maxMessages > 0 && len(msgs) > maxMessages {
		msgs = msgs[len(msgs)-maxMessages:]
	}

	history := make([]map[string]interface{}, 0, len(msgs))
	for _, m := range msgs {
		role, _ := m["role"].(string)
		content, _ := m["content"].(string)
		history = append(history, map[string]interface{}{
			"role":    role,
			"content": content,
		})
	}
	return history
}

// Manager owns all sessions, keyed by "channel:chat_id". Sessions are created
// lazily and cached for the process lifetime; each is also persisted as a
// JSONL file under <workspace>/sessions.
type Manager struct {
	Workspace   string
	SessionsDir string
	cache       map[string]*Session
	mu          sync.RWMutex
}

// NewManager creates a session manager rooted at the workspace.
func NewManager(workspace string) *Manager {
	sessionsDir := filepath.Join(workspace, "sessions")
	os.MkdirAll(sessionsDir, 0755)

	return &Manager{
		Workspace:   workspace,
		SessionsDir: sessionsDir,
		cache:       make(map[string]*Session),
	}
}

func (m *Manager) sessionPath(key string) string {
	safeKey := strings.ReplaceAll(key, ":", "_")
	safeKey = strings.ReplaceAll(safeKey, string(os.PathSeparator), "_")
	return filepath.Join(m.SessionsDir, safeKey+".jsonl")
}

// GetOrCreate returns the session for key, loading or creating it on first
// reference.
func (m *Manager) GetOrCreate(key string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sess, ok := m.cache[key]; ok {
		return sess
	}

	sess := m.load(key)
	if sess == nil {
		sess = NewSession(key)
	}

	m.cache[key] = sess
	return sess
}

func (m *Manager) load(key string) *Session {
	file, err := os.Open(m.sessionPath(key))
	if err != nil {
		return nil
	}
	defer file.Close()

	sess := NewSession(key)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		var data map[string]interface{}
		if err := json.Unmarshal([]byte(line), &data); err != nil {
			continue
		}

		if typeVal, ok := data["_type"]; ok && typeVal == "meta" {
			if meta, ok := data["metadata"].(map[string]interface{}); ok {
				sess.Metadata = meta
			}
			if created, ok := data["created_at"].(string); ok {
				if t, err := time.Parse(time.RFC3339, created); err == nil {
					sess.CreatedAt = t
				}
			}
			if draft, ok := data["draft"].(map[string]interface{}); ok {
				if text, ok := draft["text"].(string); ok {
					sess.Draft = &Draft{Text: text}
				}
			}
		} else {
			sess.Messages = append(sess.Messages, data)
		}
	}

	return sess
}

// Save persists the session to disk and refreshes the cache.
func (m *Manager) Save(sess *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cache[sess.Key] = sess

	file, err := os.Create(m.sessionPath(sess.Key))
	if err != nil {
		return err
	}
	defer file.Close()

	metaLine := map[string]interface{}{
		"_type":      "meta",
		"created_at": sess.CreatedAt.Format(time.RFC3339),
		"updated_at": sess.UpdatedAt.Format(time.RFC3339),
		"metadata":   sess.Metadata,
	}
	if sess.Draft != nil {
		metaLine["draft"] = sess.Draft
	}

	metaJSON, err := json.Marshal(metaLine)
	if err != nil {
		return err
	}
	if _, err := file.WriteString(string(metaJSON) + "\n"); err != nil {
		return err
	}

	for _, msg := range sess.Messages {
		msgJSON, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		if _, err := file.WriteString(string(msgJSON) + "\n"); err != nil {
			return err
		}
	}

	return nil
}

// Clear drops the session from the cache and removes its file.
func (m *Manager) Clear(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.cache, key)
	err := os.Remove(m.sessionPath(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
