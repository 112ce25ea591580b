// ABOUTME: Workspace manager for the directories agent sessions operate in
// ABOUTME: Handles root resolution, workspace CRUD, files, and instructions

package workspace

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
)

var (
	// ErrNotFound is returned for missing workspaces, files, or skills.
	ErrNotFound = errors.New("not found")
	// ErrInvalidName is returned when a name sanitizes to nothing.
	ErrInvalidName = errors.New("invalid name")
)

const envWorkspacesRoot = "COPILOT_WORKSPACES_ROOT"

const defaultInstructions = `# Copilot Instructions

You are an AI assistant helping with software development in this workspace.

## Guidelines
- Be concise and helpful.
- Follow the coding standards of the project.
- When generating code, include brief explanations.
`

var workspaceNamePattern = regexp.MustCompile(`[^a-zA-Z0-9_\-.]`)

// Info describes the workspace root and the current selection.
type Info struct {
	Workspace      string   `json:"workspace"`
	Root           string   `json:"root"`
	Subdirectories []string `json:"subdirectories"`
}

// FileEntry is one directory listing entry.
type FileEntry struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Path string `json:"path"`
}

// Instructions is the content of a workspace's instructions file.
type Instructions struct {
	Content string `json:"content"`
	Path    string `json:"path"`
}

// Manager tracks the workspaces root and the currently selected workspace.
type Manager struct {
	root   string
	logger *slog.Logger

	mu      sync.Mutex
	current string
}

// ResolveRoot picks the workspaces root directory. An explicit configured
// path wins, then the environment variable, then a per-user documents
// directory. If the chosen directory cannot be created the process's
// working directory is used instead.
func ResolveRoot(configured string) string {
	root := configured
	if root == "" {
		root = os.Getenv(envWorkspacesRoot)
	}
	if root == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			root = filepath.Join(home, "Documents", "CopilotWorkspaces")
		}
	}
	if root == "" {
		root, _ = os.Getwd()
		return root
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		cwd, _ := os.Getwd()
		return cwd
	}
	return root
}

// NewManager creates a manager rooted at the given directory. The current
// workspace starts at the root itself.
func NewManager(root string, logger *slog.Logger) *Manager {
	return &Manager{
		root:    root,
		current: root,
		logger:  logger.With("component", "workspace"),
	}
}

// Root returns the workspaces root directory.
func (m *Manager) Root() string {
	return m.root
}

// Current returns the currently selected workspace path.
func (m *Manager) Current() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// SetCurrent switches the selected workspace. Relative paths resolve
// against the root. The target must be an existing directory.
func (m *Manager) SetCurrent(path string) (*Info, error) {
	target := path
	if !filepath.IsAbs(target) {
		target = filepath.Join(m.root, path)
	}
	stat, err := os.Stat(target)
	if err != nil || !stat.IsDir() {
		return nil, fmt.Errorf("workspace %q: %w", path, ErrNotFound)
	}

	resolved, err := filepath.Abs(target)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace path: %w", err)
	}
	m.mu.Lock()
	m.current = resolved
	m.mu.Unlock()
	m.logger.Info("workspace switched", "workspace", resolved)
	return m.Info()
}

// Info returns the current selection plus the root's non-hidden
// subdirectories, sorted by name.
func (m *Manager) Info() (*Info, error) {
	var subdirs []string
	entries, err := os.ReadDir(m.root)
	if err == nil {
		for _, entry := range entries {
			if entry.IsDir() && entry.Name()[0] != '.' {
				subdirs = append(subdirs, entry.Name())
			}
		}
	}
	sort.Strings(subdirs)
	if subdirs == nil {
		subdirs = []string{}
	}

	return &Info{
		Workspace:      m.Current(),
		Root:           m.root,
		Subdirectories: subdirs,
	}, nil
}

// Create makes a new workspace under the root, seeds its instructions
// file, and selects it.
func (m *Manager) Create(name string) (*Info, error) {
	safeName := workspaceNamePattern.ReplaceAllString(name, "")
	if safeName == "" {
		return nil, fmt.Errorf("workspace name %q: %w", name, ErrInvalidName)
	}

	path := filepath.Join(m.root, safeName)
	githubDir := filepath.Join(path, ".github")
	if err := os.MkdirAll(githubDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating workspace %q: %w", safeName, err)
	}

	instructionsPath := filepath.Join(githubDir, "copilot-instructions.md")
	if _, err := os.Stat(instructionsPath); os.IsNotExist(err) {
		if err := os.WriteFile(instructionsPath, []byte(defaultInstructions), 0o644); err != nil {
			return nil, fmt.Errorf("seeding instructions: %w", err)
		}
	}

	m.mu.Lock()
	m.current = path
	m.mu.Unlock()
	m.logger.Info("workspace created", "workspace", path)
	return m.Info()
}

// ListFiles lists the entries of a directory, defaulting to the current
// workspace when path is empty.
func (m *Manager) ListFiles(path string) ([]FileEntry, error) {
	dir := path
	if dir == "" {
		dir = m.Current()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("directory %q: %w", dir, ErrNotFound)
	}

	files := make([]FileEntry, 0, len(entries))
	for _, entry := range entries {
		kind := "file"
		if entry.IsDir() {
			kind = "directory"
		}
		files = append(files, FileEntry{
			Name: entry.Name(),
			Type: kind,
			Path: filepath.Join(dir, entry.Name()),
		})
	}
	return files, nil
}

// ReadFile returns the contents of a file.
func (m *Manager) ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("file %q: %w", path, ErrNotFound)
		}
		return "", fmt.Errorf("reading %q: %w", path, err)
	}
	return string(data), nil
}

// WriteFile writes content to a file, creating parent directories.
func (m *Manager) WriteFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating parent directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing %q: %w", path, err)
	}
	return nil
}

func (m *Manager) instructionsPath() string {
	return filepath.Join(m.Current(), ".github", "copilot-instructions.md")
}

// InstructionsContent reads the instructions file for an arbitrary
// workspace path, returning empty content when the file is absent.
func InstructionsContent(workspacePath string) string {
	data, err := os.ReadFile(filepath.Join(workspacePath, ".github", "copilot-instructions.md"))
	if err != nil {
		return ""
	}
	return string(data)
}

// Instructions reads the current workspace's instructions file. A missing
// file yields empty content, not an error.
func (m *Manager) Instructions() *Instructions {
	path := m.instructionsPath()
	content := ""
	if data, err := os.ReadFile(path); err == nil {
		content = string(data)
	}
	return &Instructions{Content: content, Path: path}
}

// SaveInstructions writes the current workspace's instructions file.
func (m *Manager) SaveInstructions(content string) (*Instructions, error) {
	path := m.instructionsPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating .github directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return nil, fmt.Errorf("saving instructions: %w", err)
	}
	return &Instructions{Content: content, Path: path}, nil
}
