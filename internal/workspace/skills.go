// ABOUTME: Skill discovery and management for agent sessions
// ABOUTME: Scans SKILL.md files with YAML frontmatter under the skill dirs

package workspace

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// skillSourceDirs are the workspace-relative directories scanned for skills.
var skillSourceDirs = []string{
	filepath.Join(".claude", "skills"),
	filepath.Join(".agent", "skills"),
}

var skillNamePattern = regexp.MustCompile(`[^a-zA-Z0-9_\-]`)

// Skill describes one SKILL.md discovered in the current workspace.
type Skill struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Path        string `json:"path"`
}

type skillFrontmatter struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// parseSkillFile extracts the frontmatter from a SKILL.md, falling back to
// the directory name when fields are missing.
func parseSkillFile(path, fallbackName string) (Skill, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Skill{}, err
	}

	skill := Skill{Name: fallbackName, Description: "No description", Path: path}
	content := string(data)
	if !strings.HasPrefix(content, "---\n") {
		return skill, nil
	}
	rest := content[len("---\n"):]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return skill, nil
	}

	var fm skillFrontmatter
	if err := yaml.Unmarshal([]byte(rest[:end]), &fm); err != nil {
		return skill, nil
	}
	if fm.Name != "" {
		skill.Name = fm.Name
	}
	if fm.Description != "" {
		skill.Description = fm.Description
	}
	return skill, nil
}

// Skills returns every skill found in the current workspace.
func (m *Manager) Skills() []Skill {
	skills := []Skill{}
	current := m.Current()

	for _, dir := range skillSourceDirs {
		entries, err := os.ReadDir(filepath.Join(current, dir))
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			skillPath := filepath.Join(current, dir, entry.Name(), "SKILL.md")
			skill, err := parseSkillFile(skillPath, entry.Name())
			if err != nil {
				continue
			}
			skills = append(skills, skill)
		}
	}
	return skills
}

const skillTemplate = `---
name: %s
description: A custom skill for specialized tasks. Update this description.
---

# %s

## Overview

Describe what this skill does and when it should be used.

## Usage

Provide examples and instructions for using this skill.

## Commands

List any commands or workflows this skill supports.
`

// CreateSkill scaffolds a new skill under .claude/skills.
func (m *Manager) CreateSkill(name string) (*Skill, error) {
	safeName := skillNamePattern.ReplaceAllString(name, "")
	if safeName == "" {
		return nil, fmt.Errorf("skill name %q: %w", name, ErrInvalidName)
	}

	skillDir := filepath.Join(m.Current(), ".claude", "skills", safeName)
	if _, err := os.Stat(skillDir); err == nil {
		return nil, fmt.Errorf("skill %q already exists", safeName)
	}
	if err := os.MkdirAll(skillDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating skill directory: %w", err)
	}

	skillPath := filepath.Join(skillDir, "SKILL.md")
	content := fmt.Sprintf(skillTemplate, safeName, safeName)
	if err := os.WriteFile(skillPath, []byte(content), 0o644); err != nil {
		return nil, fmt.Errorf("writing skill file: %w", err)
	}

	m.logger.Info("skill created", "skill", safeName)
	return &Skill{
		Name:        safeName,
		Description: "A custom skill for specialized tasks. Update this description.",
		Path:        skillPath,
	}, nil
}

// DeleteSkill removes a skill by name from either skill directory.
func (m *Manager) DeleteSkill(name string) error {
	safeName := skillNamePattern.ReplaceAllString(name, "")
	if safeName == "" {
		return fmt.Errorf("skill name %q: %w", name, ErrInvalidName)
	}

	deleted := false
	for _, dir := range skillSourceDirs {
		skillDir := filepath.Join(m.Current(), dir, safeName)
		stat, err := os.Stat(skillDir)
		if err != nil || !stat.IsDir() {
			continue
		}
		if err := os.RemoveAll(skillDir); err != nil {
			return fmt.Errorf("deleting skill %q: %w", safeName, err)
		}
		deleted = true
	}
	if !deleted {
		return fmt.Errorf("skill %q: %w", name, ErrNotFound)
	}
	m.logger.Info("skill deleted", "skill", safeName)
	return nil
}

// ImportSkill fetches a SKILL.md from a URL and installs it under
// .claude/skills. GitHub blob URLs are rewritten to raw URLs.
func (m *Manager) ImportSkill(rawURL string) (*Skill, error) {
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return nil, fmt.Errorf("skill url must start with http:// or https://")
	}
	if decoded, err := url.QueryUnescape(rawURL); err == nil {
		rawURL = decoded
	}
	if strings.Contains(rawURL, "github.com") && strings.Contains(rawURL, "/blob/") {
		rawURL = strings.Replace(rawURL, "github.com", "raw.githubusercontent.com", 1)
		rawURL = strings.Replace(rawURL, "/blob/", "/", 1)
	}

	skillName := skillNameFromURL(rawURL)
	safeName := skillNamePattern.ReplaceAllString(skillName, "")
	if safeName == "" {
		safeName = "imported-skill"
	}

	skillDir := filepath.Join(m.Current(), ".claude", "skills", safeName)
	if _, err := os.Stat(skillDir); err == nil {
		return nil, fmt.Errorf("skill %q already exists", safeName)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building skill request: %w", err)
	}
	req.Header.Set("User-Agent", "CopilotSDK/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching skill: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching skill: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading skill body: %w", err)
	}
	content := string(body)
	if !strings.HasPrefix(strings.TrimSpace(content), "---") {
		return nil, fmt.Errorf("url does not contain a valid SKILL.md file")
	}

	if err := os.MkdirAll(skillDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating skill directory: %w", err)
	}
	skillPath := filepath.Join(skillDir, "SKILL.md")
	if err := os.WriteFile(skillPath, body, 0o644); err != nil {
		os.RemoveAll(skillDir)
		return nil, fmt.Errorf("writing skill file: %w", err)
	}

	skill, err := parseSkillFile(skillPath, safeName)
	if err != nil {
		os.RemoveAll(skillDir)
		return nil, fmt.Errorf("parsing imported skill: %w", err)
	}
	if skill.Description == "No description" {
		skill.Description = "Imported skill"
	}
	m.logger.Info("skill imported", "skill", skill.Name, "url", rawURL)
	return &skill, nil
}

func skillNameFromURL(rawURL string) string {
	parts := strings.Split(strings.TrimRight(rawURL, "/"), "/")
	if len(parts) == 0 {
		return "imported-skill"
	}
	last := parts[len(parts)-1]
	if strings.Contains(last, "SKILL.md") && len(parts) >= 2 {
		return parts[len(parts)-2]
	}
	return strings.TrimSuffix(last, ".md")
}

// SkillDirectories returns the workspace-relative skill directories that
// exist in the given workspace, for agent session configuration.
func (m *Manager) SkillDirectories(workspacePath string) []string {
	if workspacePath == "" {
		workspacePath = m.Current()
	}
	var dirs []string
	for _, dir := range skillSourceDirs {
		stat, err := os.Stat(filepath.Join(workspacePath, dir))
		if err == nil && stat.IsDir() {
			dirs = append(dirs, dir)
		}
	}
	return dirs
}
