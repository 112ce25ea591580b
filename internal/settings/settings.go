// ABOUTME: Application settings persisted to a TOML file
// ABOUTME: Supports partial updates with enum validation on theme and level

package settings

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
)

// Permissions controls what the agent may do without asking.
type Permissions struct {
	AllowAllTools        bool `json:"allow_all_tools" toml:"allow_all_tools"`
	AllowAllPaths        bool `json:"allow_all_paths" toml:"allow_all_paths"`
	AllowAllURLs         bool `json:"allow_all_urls" toml:"allow_all_urls"`
	NoAskUser            bool `json:"no_ask_user" toml:"no_ask_user"`
	DisableParallelTools bool `json:"disable_parallel_tools" toml:"disable_parallel_tools"`
}

// AppSettings holds user-facing configuration for the UI and agent.
type AppSettings struct {
	Theme       string      `json:"theme" toml:"theme"`
	Streaming   bool        `json:"streaming" toml:"streaming"`
	LogLevel    string      `json:"log_level" toml:"log_level"`
	Permissions Permissions `json:"permissions" toml:"permissions"`
}

// Update carries a partial settings change. Nil fields are left untouched.
type Update struct {
	Theme       *string      `json:"theme"`
	Streaming   *bool        `json:"streaming"`
	LogLevel    *string      `json:"log_level"`
	Permissions *Permissions `json:"permissions"`
}

var validThemes = map[string]bool{"auto": true, "dark": true, "light": true}
var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

func defaults() AppSettings {
	return AppSettings{Theme: "dark", Streaming: true, LogLevel: "info"}
}

// Service loads and persists settings at a fixed TOML path.
type Service struct {
	path   string
	logger *slog.Logger

	mu       sync.Mutex
	settings AppSettings
}

// NewService loads settings from the given file, or starts from defaults
// when the file does not exist yet.
func NewService(path string, logger *slog.Logger) (*Service, error) {
	s := &Service{
		path:     path,
		logger:   logger.With("component", "settings"),
		settings: defaults(),
	}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &s.settings); err != nil {
			return nil, fmt.Errorf("parsing settings file %s: %w", path, err)
		}
	}
	return s, nil
}

// Get returns a copy of the current settings.
func (s *Service) Get() AppSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Update applies a partial change, validates it, and persists the result.
func (s *Service) Update(update Update) (AppSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.settings
	if update.Theme != nil {
		if !validThemes[*update.Theme] {
			return s.settings, fmt.Errorf("invalid theme %q", *update.Theme)
		}
		next.Theme = *update.Theme
	}
	if update.Streaming != nil {
		next.Streaming = *update.Streaming
	}
	if update.LogLevel != nil {
		if !validLogLevels[*update.LogLevel] {
			return s.settings, fmt.Errorf("invalid log level %q", *update.LogLevel)
		}
		next.LogLevel = *update.LogLevel
	}
	if update.Permissions != nil {
		next.Permissions = *update.Permissions
	}

	if err := s.persist(next); err != nil {
		return s.settings, err
	}
	s.settings = next
	s.logger.Info("settings updated", "theme", next.Theme, "log_level", next.LogLevel)
	return next, nil
}

func (s *Service) persist(settings AppSettings) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating settings directory: %w", err)
	}
	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("writing settings file: %w", err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(settings); err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	return nil
}
