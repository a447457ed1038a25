package config

import (
	"os"
	"strconv"
	"strings"
)

// Environment variable names understood by pigs.
const (
	EnvConfigDir         = "PIGS_CONFIG_DIR"
	EnvCodexSessionsDir  = "PIGS_CODEX_SESSIONS_DIR"
	EnvClaudeProjectsDir = "PIGS_CLAUDE_PROJECTS_DIR"
	EnvTestSeed          = "PIGS_TEST_SEED"
	EnvNonInteractive    = "PIGS_NON_INTERACTIVE"
	EnvNoAutoOpen        = "PIGS_NO_AUTO_OPEN"
	EnvCodexHome         = "CODEX_HOME"
)

// Env is the snapshot of environment overrides for one invocation.
type Env struct {
	ConfigDir         string
	CodexSessionsDir  string
	ClaudeProjectsDir string
	CodexHome         string

	// Seed makes generated worktree names reproducible. Nil means random.
	Seed *uint64

	// NonInteractive auto-confirms every question; each such answer is reported.
	NonInteractive bool
	NoAutoOpen     bool
}

// EnvFromOS reads the process environment.
func EnvFromOS() Env {
	return EnvFromLookup(os.LookupEnv)
}

// EnvFromLookup builds an Env from an arbitrary lookup function.
func EnvFromLookup(lookup func(string) (string, bool)) Env {
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}
	isSet := func(key string) bool {
		_, ok := lookup(key)
		return ok
	}

	env := Env{
		ConfigDir:         get(EnvConfigDir),
		CodexSessionsDir:  get(EnvCodexSessionsDir),
		ClaudeProjectsDir: get(EnvClaudeProjectsDir),
		CodexHome:         get(EnvCodexHome),
		NonInteractive:    isSet(EnvNonInteractive),
		NoAutoOpen:        isSet(EnvNoAutoOpen),
	}

	if raw := get(EnvTestSeed); raw != "" {
		seed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			seed = 42
		}
		env.Seed = &seed
	}
	return env
}
