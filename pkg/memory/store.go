package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const longTermTemplate = `# Long-term Memory

This file stores important information that should persist across sessions.

## User Information

(Important facts about the user)

## Preferences

(User preferences learned over time)

## Project Context

(Information about ongoing projects)

## Important Notes

(Things to remember)
`

// Store manages persistent agent memory: daily notes under
// <workspace>/memory/YYYY-MM-DD.md and long-term memory in MEMORY.md.
type Store struct {
	Workspace string
	MemoryDir string
}

// NewStore creates a memory store rooted at the workspace.
func NewStore(workspace string) *Store {
	memoryDir := filepath.Join(workspace, "memory")
	os.MkdirAll(memoryDir, 0755)
	return &Store{
		Workspace: workspace,
		MemoryDir: memoryDir,
	}
}

// LongTermPath returns the path to the long-term memory file.
func (s *Store) LongTermPath() string {
	return filepath.Join(s.MemoryDir, "MEMORY.md")
}

// TodayPath returns the path to today's memory file.
func (s *Store) TodayPath() string {
	today := time.Now().Format("2006-01-02")
	return filepath.Join(s.MemoryDir, today+".md")
}

// ReadToday reads today's notes, empty if none exist yet.
func (s *Store) ReadToday() (string, error) {
	data, err := os.ReadFile(s.TodayPath())
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return string(data), nil
}

// AppendToday appends content to today's notes, adding a date header on
// first write of the day.
func (s *Store) AppendToday(content string) error {
	path := s.TodayPath()

	if existing, err := os.ReadFile(path); err == nil {
		content = string(existing) + "\n" + content
	} else {
		header := fmt.Sprintf("# %s\n\n", time.Now().Format("2006-01-02"))
		content = header + content
	}

	return os.WriteFile(path, []byte(content), 0644)
}

// ReadLongTerm reads the long-term memory file, empty if absent.
func (s *Store) ReadLongTerm() (string, error) {
	data, err := os.ReadFile(s.LongTermPath())
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return string(data), nil
}

// EnsureLongTerm creates the long-term memory file with a default template
// if it does not exist yet.
func (s *Store) EnsureLongTerm() error {
	if err := os.MkdirAll(s.MemoryDir, 0755); err != nil {
		return err
	}
	if _, err := os.Stat(s.LongTermPath()); err == nil {
		return nil
	}
	return os.WriteFile(s.LongTermPath(), []byte(longTermTemplate), 0644)
}

// AppendLongTerm appends a new entry to long-term memory without overwriting
// previous entries. Blank input is ignored; entries are separated visibly.
func (s *Store) AppendLongTerm(content string) error {
	entry := strings.TrimSpace(content)
	if entry == "" {
		return nil
	}

	if err := s.EnsureLongTerm(); err != nil {
		return err
	}

	f, err := os.OpenFile(s.LongTermPath(), os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.WriteString("\n\n---\n\n" + entry + "\n")
	return err
}

// GetRecentMemories returns daily notes from the last N days, newest first.
func (s *Store) GetRecentMemories(days int) (string, error) {
	var memories []string
	today := time.Now()

	for i := 0; i < days; i++ {
		date := today.AddDate(0, 0, -i)
		path := filepath.Join(s.MemoryDir, date.Format("2006-01-02")+".md")
		if data, err := os.ReadFile(path); err == nil {
			memories = append(memories, string(data))
		}
	}

	return strings.Join(memories, "\n\n---\n\n"), nil
}

// GetMemoryContext returns the formatted memory block for the system prompt.
func (s *Store) GetMemoryContext() string {
	var parts []string

	longTerm, _ := s.ReadLongTerm()
	if longTerm != "" {
		parts = append(parts, "## Long-term Memory\n"+longTerm)
	}

	today, _ := s.ReadToday()
	if today != "" {
		parts = append(parts, "## Today's Notes\n"+today)
	}

	return strings.Join(parts, "\n\n")
}
