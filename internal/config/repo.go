package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// RepoConfigFile is the per-repository settings file, relative to the repo root.
const RepoConfigFile = ".pigs/settings.json"

// RepoConfig holds per-repository settings. The file is JSON in practice;
// it is decoded with yaml.v3, which accepts JSON as well.
type RepoConfig struct {
	CopyFiles []string `yaml:"copy_files"`
	// Agent is a command line, or the first command of a list of named options.
	Agent string `yaml:"agent"`
}

type agentOption struct {
	Name    string `yaml:"name"`
	Command string `yaml:"command"`
}

// UnmarshalYAML accepts agent as a string or as [{name, command}, ...].
func (rc *RepoConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		CopyFiles []string  `yaml:"copy_files"`
		Agent     yaml.Node `yaml:"agent"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	rc.CopyFiles = raw.CopyFiles
	rc.Agent = ""

	switch raw.Agent.Kind {
	case 0:
	case yaml.ScalarNode:
		if raw.Agent.Tag == "!!null" {
			break
		}
		if err := raw.Agent.Decode(&rc.Agent); err != nil {
			return fmt.Errorf("agent: %w", err)
		}
	case yaml.SequenceNode:
		var opts []agentOption
		if err := raw.Agent.Decode(&opts); err != nil {
			return fmt.Errorf("agent: %w", err)
		}
		if len(opts) > 0 {
			rc.Agent = opts[0].Command
		}
	default:
		return fmt.Errorf("agent: line %d: expected a command or a list of options", raw.Agent.Line)
	}
	rc.Agent = strings.TrimSpace(rc.Agent)
	return nil
}

// LoadRepoConfig reads RepoConfigFile under repoRoot. A missing file yields an empty config.
func LoadRepoConfig(repoRoot string) (*RepoConfig, error) {
	path := filepath.Join(repoRoot, RepoConfigFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &RepoConfig{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var rc RepoConfig
	if err := yaml.Unmarshal(data, &rc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &rc, nil
}
