package skills

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSkill(t *testing.T, workspace, name, content string) {
	t.Helper()
	dir := filepath.Join(workspace, "skills", name)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "SKILL.md"), []byte(content), 0644))
}

const weatherSkill = `---
description: Get the weather
microclaw:
  always: true
---

# Weather

Run the command in {baseDir}.
`

func TestListSkillsReadsFrontmatter(t *testing.T) {
	workspace := t.TempDir()
	writeSkill(t, workspace, "weather", weatherSkill)

	skills, err := NewLoader(workspace).ListSkills()
	require.NoError(t, err)
	require.Len(t, skills, 1)
	assert.Equal(t, "weather", skills[0].Name)
	assert.Equal(t, "Get the weather", skills[0].Description)
	assert.True(t, skills[0].Always)
	assert.True(t, skills[0].Available)
}

func TestListSkillsEmptyWorkspace(t *testing.T) {
	skills, err := NewLoader(t.TempDir()).ListSkills()
	require.NoError(t, err)
	assert.Empty(t, skills)
}

func TestMissingRequirementMarksUnavailable(t *testing.T) {
	workspace := t.TempDir()
	writeSkill(t, workspace, "gated", `---
description: Needs a key
microclaw:
  requires:
    env: [DEFINITELY_NOT_SET_ANYWHERE_12345]
---
body
`)

	skills, err := NewLoader(workspace).ListSkills()
	require.NoError(t, err)
	require.Len(t, skills, 1)
	assert.False(t, skills[0].Available)
	assert.Contains(t, skills[0].Missing[0], "DEFINITELY_NOT_SET_ANYWHERE_12345")
}

func TestLoadSkillsForContextStripsFrontmatterAndExpandsBaseDir(t *testing.T) {
	workspace := t.TempDir()
	writeSkill(t, workspace, "weather", weatherSkill)

	loader := NewLoader(workspace)
	content := loader.LoadSkillsForContext([]string{"weather"})

	assert.NotContains(t, content, "description:")
	assert.NotContains(t, content, "{baseDir}")
	assert.Contains(t, content, filepath.Join(loader.SkillsDir, "weather"))
	assert.Contains(t, content, "### Skill: weather")
}

func TestGetAlwaysSkills(t *testing.T) {
	workspace := t.TempDir()
	writeSkill(t, workspace, "weather", weatherSkill)
	writeSkill(t, workspace, "optional", `---
description: On demand only
---
body
`)

	names := NewLoader(workspace).GetAlwaysSkills()
	assert.Equal(t, []string{"weather"}, names)
}
