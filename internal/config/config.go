// Package config handles pigs configuration loading.
//
// Configuration comes from three places, all resolved once per command in
// main and passed down explicitly:
//   - Env: environment overrides (config dir, session archives, seed, modes)
//   - Config: the yaml tool config in the config dir
//   - RepoConfig: optional per-repository settings
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for pigs.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Timeouts  TimeoutsConfig  `yaml:"timeouts"`
	Sessions  SessionsConfig  `yaml:"sessions"`
	Worktrees WorktreesConfig `yaml:"worktrees"`

	// Env is not read from the file.
	Env Env `yaml:"-"`
}

// LoggingConfig controls diagnostics output.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	File      string `yaml:"file"` // empty = stderr
	SentryDSN string `yaml:"sentry_dsn"`
	Env       string `yaml:"env"`
}

// TimeoutsConfig bounds external tool calls. Zero disables the bound.
type TimeoutsConfig struct {
	Git    time.Duration `yaml:"git"`
	Fetch  time.Duration `yaml:"fetch"`
	GitHub time.Duration `yaml:"github"`
}

// SessionsConfig locates agent session archives.
type SessionsConfig struct {
	ClaudeProjectsDir string `yaml:"claude_projects_dir"`
	CodexSessionsDir  string `yaml:"codex_sessions_dir"`
	Limit             int    `yaml:"limit"`
	PreviewChars      int    `yaml:"preview_chars"`
}

// WorktreesConfig tunes worktree creation.
type WorktreesConfig struct {
	BaseBranches []string `yaml:"base_branches"` // in addition to main/master/develop and the remote default
	NotesFile    string   `yaml:"notes_file"`
}

// DefaultConfig returns a config with sensible defaults for env.
func DefaultConfig(env Env) *Config {
	homeDir, _ := os.UserHomeDir()

	codexSessions := filepath.Join(homeDir, ".codex", "sessions")
	if env.CodexHome != "" {
		codexSessions = filepath.Join(env.CodexHome, "sessions")
	}

	return &Config{
		Logging: LoggingConfig{
			Level: "warn",
			Env:   "production",
		},
		Timeouts: TimeoutsConfig{
			Git:    2 * time.Minute,
			Fetch:  5 * time.Minute,
			GitHub: 30 * time.Second,
		},
		Sessions: SessionsConfig{
			ClaudeProjectsDir: filepath.Join(homeDir, ".claude", "projects"),
			CodexSessionsDir:  codexSessions,
			Limit:             3,
			PreviewChars:      120,
		},
		Worktrees: WorktreesConfig{
			NotesFile: "CLAUDE.local.md",
		},
		Env: env,
	}
}

// Load reads <config dir>/config.yaml on top of the defaults. A missing file is not an error.
func Load(env Env) (*Config, error) {
	cfg := DefaultConfig(env)

	path := cfg.FilePath()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.expandPaths()
	cfg.applyEnv()
	return cfg, nil
}

// Dir returns the directory holding the state file, journal, and config.
func (c *Config) Dir() string {
	if c.Env.ConfigDir != "" {
		return c.Env.ConfigDir
	}
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".pigs")
}

// FilePath returns the yaml config path.
func (c *Config) FilePath() string {
	return filepath.Join(c.Dir(), "config.yaml")
}

// StatePath returns the JSON state document path.
func (c *Config) StatePath() string {
	return filepath.Join(c.Dir(), "settings.json")
}

// JournalPath returns the lifecycle journal database path.
func (c *Config) JournalPath() string {
	return filepath.Join(c.Dir(), "journal.db")
}

func (c *Config) expandPaths() {
	c.Logging.SentryDSN = os.ExpandEnv(c.Logging.SentryDSN)
	c.Logging.File = expandPath(c.Logging.File)
	c.Sessions.ClaudeProjectsDir = expandPath(c.Sessions.ClaudeProjectsDir)
	c.Sessions.CodexSessionsDir = expandPath(c.Sessions.CodexSessionsDir)
}

// applyEnv lets environment overrides win over the file.
func (c *Config) applyEnv() {
	if c.Env.ClaudeProjectsDir != "" {
		c.Sessions.ClaudeProjectsDir = c.Env.ClaudeProjectsDir
	}
	if c.Env.CodexSessionsDir != "" {
		c.Sessions.CodexSessionsDir = c.Env.CodexSessionsDir
	}
	if c.Sessions.Limit <= 0 {
		c.Sessions.Limit = 3
	}
	if c.Sessions.PreviewChars <= 0 {
		c.Sessions.PreviewChars = 120
	}
}

func expandPath(path string) string {
	path = os.ExpandEnv(path)
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}
