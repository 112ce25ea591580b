// ABOUTME: Tests for skill discovery, creation, and deletion
// ABOUTME: Verifies YAML frontmatter parsing and both skill source dirs

package workspace

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSkill(t *testing.T, root, sourceDir, dirName, frontmatter string) {
	t.Helper()
	skillDir := filepath.Join(root, sourceDir, dirName)
	require.NoError(t, os.MkdirAll(skillDir, 0o755))
	content := fmt.Sprintf("---\n%s\n---\n\n# Body\n", frontmatter)
	require.NoError(t, os.WriteFile(filepath.Join(skillDir, "SKILL.md"), []byte(content), 0o644))
}

func TestSkills_ScansBothSourceDirs(t *testing.T) {
	m := createTestManager(t)
	writeSkill(t, m.Root(), ".claude/skills", "refactor", "name: refactor\ndescription: Refactors code safely")
	writeSkill(t, m.Root(), ".agent/skills", "review", "name: review\ndescription: Reviews diffs")

	skills := m.Skills()
	require.Len(t, skills, 2)

	byName := map[string]Skill{}
	for _, s := range skills {
		byName[s.Name] = s
	}
	assert.Equal(t, "Refactors code safely", byName["refactor"].Description)
	assert.Equal(t, "Reviews diffs", byName["review"].Description)
}

func TestSkills_FallsBackToDirectoryName(t *testing.T) {
	m := createTestManager(t)
	skillDir := filepath.Join(m.Root(), ".claude", "skills", "bare")
	require.NoError(t, os.MkdirAll(skillDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(skillDir, "SKILL.md"), []byte("no frontmatter here"), 0o644))

	skills := m.Skills()
	require.Len(t, skills, 1)
	assert.Equal(t, "bare", skills[0].Name)
	assert.Equal(t, "No description", skills[0].Description)
}

func TestSkills_EmptyWorkspace(t *testing.T) {
	m := createTestManager(t)
	assert.Empty(t, m.Skills())
}

func TestCreateSkill(t *testing.T) {
	m := createTestManager(t)

	skill, err := m.CreateSkill("deploy helper")
	require.NoError(t, err)
	assert.Equal(t, "deployhelper", skill.Name)
	assert.FileExists(t, skill.Path)

	// Duplicate names are rejected
	_, err = m.CreateSkill("deployhelper")
	assert.Error(t, err)

	skills := m.Skills()
	require.Len(t, skills, 1)
	assert.Equal(t, "deployhelper", skills[0].Name)
}

func TestDeleteSkill(t *testing.T) {
	m := createTestManager(t)
	writeSkill(t, m.Root(), ".agent/skills", "old", "name: old")

	require.NoError(t, m.DeleteSkill("old"))
	assert.Empty(t, m.Skills())

	err := m.DeleteSkill("old")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestImportSkill(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "---\nname: fetched\ndescription: From the network\n---\n\n# Fetched\n")
	}))
	defer server.Close()

	m := createTestManager(t)
	skill, err := m.ImportSkill(server.URL + "/skills/fetched/SKILL.md")
	require.NoError(t, err)
	assert.Equal(t, "fetched", skill.Name)
	assert.Equal(t, "From the network", skill.Description)
	assert.FileExists(t, filepath.Join(m.Root(), ".claude", "skills", "fetched", "SKILL.md"))
}

func TestImportSkill_RejectsNonSkillContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>not a skill</html>")
	}))
	defer server.Close()

	m := createTestManager(t)
	_, err := m.ImportSkill(server.URL + "/skills/bogus/SKILL.md")
	assert.Error(t, err)
	assert.NoDirExists(t, filepath.Join(m.Root(), ".claude", "skills", "bogus"))
}

func TestImportSkill_RequiresHTTPURL(t *testing.T) {
	m := createTestManager(t)
	_, err := m.ImportSkill("ftp://example.com/SKILL.md")
	assert.Error(t, err)
}

func TestSkillDirectories(t *testing.T) {
	m := createTestManager(t)
	assert.Empty(t, m.SkillDirectories(""))

	writeSkill(t, m.Root(), ".claude/skills", "a", "name: a")
	dirs := m.SkillDirectories("")
	assert.Equal(t, []string{filepath.Join(".claude", "skills")}, dirs)
}
