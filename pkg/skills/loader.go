package skills

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Metadata is the YAML frontmatter of a SKILL.md file.
type Metadata struct {
	Description string `yaml:"description"`
	Microclaw   struct {
		Always   bool `yaml:"always"`
		Requires struct {
			Bins []string `yaml:"bins"`
			Env  []string `yaml:"env"`
		} `yaml:"requires"`
	} `yaml:"microclaw"`
}

// Skill is a loaded skill directory.
type Skill struct {
	Name        string
	Path        string
	Description string
	Available   bool
	Missing     []string
	Content     string
	Always      bool
}

// Loader discovers and loads skills from the workspace.
type Loader struct {
	Workspace string
	SkillsDir string
}

// NewLoader creates a skills loader rooted at the workspace.
func NewLoader(workspace string) *Loader {
	return &Loader{
		Workspace: workspace,
		SkillsDir: filepath.Join(workspace, "skills"),
	}
}

// ListSkills returns all skills found under the workspace skills directory.
func (l *Loader) ListSkills() ([]Skill, error) {
	entries, err := os.ReadDir(l.SkillsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var skills []Skill
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		skillPath := filepath.Join(l.SkillsDir, name, "SKILL.md")
		if _, err := os.Stat(skillPath); err != nil {
			continue
		}
		skill, err := l.loadSkill(name, skillPath)
		if err != nil {
			continue
		}
		skills = append(skills, skill)
	}
	return skills, nil
}

func (l *Loader) loadSkill(name, path string) (Skill, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Skill{}, err
	}

	meta, _ := parseFrontmatter(content)
	missing := checkRequirements(meta.Microclaw.Requires.Bins, meta.Microclaw.Requires.Env)

	desc := meta.Description
	if desc == "" {
		desc = name
	}

	return Skill{
		Name:        name,
		Path:        path,
		Description: desc,
		Available:   len(missing) == 0,
		Missing:     missing,
		Content:     string(content),
		Always:      meta.Microclaw.Always,
	}, nil
}

// LoadSkillsForContext returns the joined bodies of the named skills, with
// frontmatter stripped and {baseDir} expanded.
func (l *Loader) LoadSkillsForContext(names []string) string {
	var parts []string
	for _, name := range names {
		path := filepath.Join(l.SkillsDir, name, "SKILL.md")
		content, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		body := stripFrontmatter(content)
		absDir, _ := filepath.Abs(filepath.Join(l.SkillsDir, name))
		body = strings.ReplaceAll(body, "{baseDir}", absDir)
		parts = append(parts, fmt.Sprintf("### Skill: %s\n\n%s", name, body))
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, "\n\n---\n\n")
}

// BuildSkillsSummary lists every skill with availability, so the model can
// decide what to read on demand.
func (l *Loader) BuildSkillsSummary() string {
	skills, err := l.ListSkills()
	if err != nil {
		return ""
	}

	var sb strings.Builder
	for _, s := range skills {
		status := "Available"
		if !s.Available {
			status = fmt.Sprintf("Unavailable (Missing: %s)", strings.Join(s.Missing, ", "))
		}
		sb.WriteString(fmt.Sprintf("- **%s** (%s)\n", s.Name, status))
		sb.WriteString(fmt.Sprintf("  Description: %s\n", s.Description))
		sb.WriteString(fmt.Sprintf("  Instruction File: %s\n", s.Path))
		sb.WriteString("\n")
	}
	return sb.String()
}

// GetAlwaysSkills returns the names of available skills marked always-load.
func (l *Loader) GetAlwaysSkills() []string {
	skills, _ := l.ListSkills()
	var names []string
	for _, s := range skills {
		if s.Always && s.Available {
			names = append(names, s.Name)
		}
	}
	return names
}

func parseFrontmatter(content []byte) (Metadata, error) {
	var meta Metadata
	s := string(content)
	if strings.HasPrefix(s, "---") {
		parts := strings.SplitN(s, "---", 3)
		if len(parts) >= 3 {
			err := yaml.Unmarshal([]byte(parts[1]), &meta)
			return meta, err
		}
	}
	return meta, nil
}

func stripFrontmatter(content []byte) string {
	s := string(content)
	if strings.HasPrefix(s, "---") {
		parts := strings.SplitN(s, "---", 3)
		if len(parts) >= 3 {
			return strings.TrimSpace(parts[2])
		}
	}
	return s
}

func checkRequirements(bins, envs []string) []string {
	var missing []string
	for _, bin := range bins {
		if _, err := exec.LookPath(bin); err != nil {
			missing = append(missing, fmt.Sprintf("CLI: %s", bin))
		}
	}
	for _, env := range envs {
		if os.Getenv(env) == "" {
			missing = append(missing, fmt.Sprintf("ENV: %s", env))
		}
	}
	return missing
}
