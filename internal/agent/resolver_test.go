package agent

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"reflect"
	"testing"

	"github.com/drewfead/pigs/internal/executil"
	"github.com/drewfead/pigs/internal/session"
	"github.com/drewfead/pigs/internal/store"
)

type fakeSessions map[string]string

func (f fakeSessions) LatestResumable(path string) (session.Summary, bool) {
	id, ok := f[path]
	if !ok {
		return session.Summary{}, false
	}
	return session.Summary{Agent: session.AgentCodex, SessionID: id}, true
}

func TestResolve(t *testing.T) {
	rec := &store.Record{Name: "demo", RepoName: "repo", Path: "/w/repo-demo"}
	r := NewResolver(fakeSessions{"/w/repo-demo": "session-123"})

	tests := []struct {
		name     string
		cmdline  string
		extra    []string
		wantProg string
		wantArgs []string
	}{
		{"ClaudeUnchanged", "claude --dangerously-skip-permissions", nil, "claude", []string{"--dangerously-skip-permissions"}},
		{"CodexResumes", "codex", nil, "codex", []string{"resume", "session-123"}},
		{"CodexCaseInsensitive", "CODEX --full-auto", nil, "CODEX", []string{"--full-auto", "resume", "session-123"}},
		{"CodexOptionValueIsNotPositional", "codex -m o3 --sandbox=workspace-write", nil, "codex", []string{"-m", "o3", "--sandbox=workspace-write", "resume", "session-123"}},
		{"CodexEmptyInlineValueConsumesNext", "codex --model= o3", nil, "codex", []string{"--model=", "o3", "resume", "session-123"}},
		{"CodexConfiguredPrompt", "codex 'fix the tests'", nil, "codex", []string{"fix the tests"}},
		{"CodexCallerPrompt", "codex", []string{"explain"}, "codex", []string{"explain"}},
		{"CodexDoubleDashWithPrompt", "codex -- hello", nil, "codex", []string{"--", "hello"}},
		{"CodexTrailingDoubleDash", "codex --", nil, "codex", []string{"--", "resume", "session-123"}},
		{"CodexByPath", "/usr/local/bin/codex", nil, "/usr/local/bin/codex", []string{"resume", "session-123"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := r.Resolve(rec, tt.cmdline, tt.extra)
			if err != nil {
				t.Fatalf("Resolve failed: %v", err)
			}
			if cmd.Program != tt.wantProg {
				t.Errorf("expected program %q, got %q", tt.wantProg, cmd.Program)
			}
			if !reflect.DeepEqual(cmd.Args, tt.wantArgs) {
				t.Errorf("expected args %q, got %q", tt.wantArgs, cmd.Args)
			}
			if cmd.Dir != rec.Path {
				t.Errorf("expected dir %s, got %s", rec.Path, cmd.Dir)
			}
		})
	}

	t.Run("NoSessionLaunchesBase", func(t *testing.T) {
		other := &store.Record{Name: "x", RepoName: "repo", Path: "/w/repo-x"}
		cmd, err := r.Resolve(other, "codex", nil)
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if len(cmd.Args) != 0 || cmd.ResumeSession != "" {
			t.Errorf("expected base command, got %+v", cmd)
		}
	})

	t.Run("EmptyCommand", func(t *testing.T) {
		if _, err := r.Resolve(rec, "   ", nil); !errors.Is(err, ErrEmptyCommand) {
			t.Errorf("expected ErrEmptyCommand, got %v", err)
		}
	})

	t.Run("UnbalancedQuote", func(t *testing.T) {
		if _, err := r.Resolve(rec, `codex "unterminated`, nil); err == nil {
			t.Error("expected tokenization error")
		}
	})
}

func TestChoose(t *testing.T) {
	if got := Choose("", "", ""); got != store.DefaultAgent {
		t.Errorf("expected default agent, got %q", got)
	}
	if got := Choose("", "codex", "claude"); got != "codex" {
		t.Errorf("repository agent should win over the document, got %q", got)
	}
	if got := Choose("aider", "codex", "claude"); got != "aider" {
		t.Errorf("explicit agent should win, got %q", got)
	}
}

func TestCommandString(t *testing.T) {
	cmd := Command{Program: "codex", Args: []string{"fix it", "it's", "-m", "o3"}}
	want := `codex 'fix it' 'it'\''s' -m o3`
	if got := cmd.String(); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestLaunch(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	var out bytes.Buffer
	l := &Launcher{Stdout: &out, Stderr: &out}

	err := l.Launch(context.Background(), Command{Program: "sh", Args: []string{"-c", "pwd; exit 3"}, Dir: t.TempDir()})
	if executil.ExitCode(err) != 3 {
		t.Errorf("expected exit 3, got %v", err)
	}
	if out.Len() == 0 {
		t.Error("expected agent output on the attached stream")
	}

	err = l.Launch(context.Background(), Command{Program: "definitely-not-an-agent-xyz"})
	if !executil.IsMissing(err) {
		t.Errorf("expected missing tool error, got %v", err)
	}
}
