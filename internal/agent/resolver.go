// Package agent decides how to launch the coding agent for a worktree and
// runs it attached to the terminal.
package agent

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mattn/go-shellwords"

	"github.com/drewfead/pigs/internal/session"
	"github.com/drewfead/pigs/internal/store"
)

// ErrEmptyCommand is returned for an agent command line with no program.
var ErrEmptyCommand = errors.New("agent command is empty")

// Command is a resolved agent invocation.
type Command struct {
	Program string
	Args    []string
	Dir     string
	// ResumeSession is the session id appended as a resume directive, if any.
	ResumeSession string
}

// String renders the command for display, quoting arguments that need it.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, quote(c.Program))
	for _, a := range c.Args {
		parts = append(parts, quote(a))
	}
	return strings.Join(parts, " ")
}

func quote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n'\"\\$`|&;<>()*?[]#~") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// SessionFinder locates the newest resumable session for a directory.
type SessionFinder interface {
	LatestResumable(path string) (session.Summary, bool)
}

// Resolver builds launch commands.
type Resolver struct {
	sessions SessionFinder
}

// NewResolver returns a Resolver that looks up resumable sessions in sessions.
func NewResolver(sessions SessionFinder) *Resolver {
	return &Resolver{sessions: sessions}
}

// Split tokenizes an agent command line with shell quoting rules.
func Split(cmdline string) ([]string, error) {
	parts, err := shellwords.Parse(cmdline)
	if err != nil {
		return nil, fmt.Errorf("invalid agent command %q: %w", cmdline, err)
	}
	if len(parts) == 0 {
		return nil, ErrEmptyCommand
	}
	return parts, nil
}

// Choose picks the agent command line: an explicit choice wins over the
// repository setting, which wins over the state document default.
func Choose(explicit, repo, document string) string {
	for _, c := range []string{explicit, repo, document} {
		if strings.TrimSpace(c) != "" {
			return c
		}
	}
	return store.DefaultAgent
}

// Resolve builds the command that opens rec with cmdline plus extraArgs. For
// codex, when no positional argument is present, the newest session that ran
// in rec.Path is resumed. Finding no session is not an error.
func (r *Resolver) Resolve(rec *store.Record, cmdline string, extraArgs []string) (Command, error) {
	parts, err := Split(cmdline)
	if err != nil {
		return Command{}, err
	}

	cmd := Command{
		Program: parts[0],
		Args:    append(append([]string{}, parts[1:]...), extraArgs...),
		Dir:     rec.Path,
	}

	if !isCodex(cmd.Program) || hasCodexPositional(cmd.Args) || r.sessions == nil {
		return cmd, nil
	}

	s, ok := r.sessions.LatestResumable(rec.Path)
	if !ok || s.SessionID == "" {
		return cmd, nil
	}
	cmd.Args = append(cmd.Args, "resume", s.SessionID)
	cmd.ResumeSession = s.SessionID
	return cmd, nil
}

func isCodex(program string) bool {
	return strings.EqualFold(filepath.Base(program), "codex")
}

// codex flags that consume the following argument.
var codexOptionsWithValues = map[string]bool{
	"-c": true, "--config": true,
	"--enable": true, "--disable": true,
	"-i": true, "--image": true,
	"-m": true, "--model": true,
	"-p": true, "--profile": true,
	"-s": true, "--sandbox": true,
	"-a": true, "--ask-for-approval": true,
	"--add-dir": true,
	"-C": true, "--cd": true,
}

// hasCodexPositional reports whether args already carry a prompt or subcommand.
func hasCodexPositional(args []string) bool {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return i+1 < len(args)
		}

		name, value, hasEq := strings.Cut(arg, "=")
		if codexOptionsWithValues[name] {
			if !hasEq || value == "" {
				i++
			}
			continue
		}
		if strings.HasPrefix(arg, "-") {
			continue
		}
		return true
	}
	return false
}
