package worktree

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/drewfead/pigs/internal/agent"
	"github.com/drewfead/pigs/internal/config"
	"github.com/drewfead/pigs/internal/executil"
	"github.com/drewfead/pigs/internal/git"
	"github.com/drewfead/pigs/internal/github"
	"github.com/drewfead/pigs/internal/prompt"
	"github.com/drewfead/pigs/internal/store"
)

var ctx = context.Background()

var testNow = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
}

func runGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=Test User", "GIT_AUTHOR_EMAIL=test@example.com",
		"GIT_COMMITTER_NAME=Test User", "GIT_COMMITTER_EMAIL=test@example.com",
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v failed: %v\n%s", args, err, out)
	}
	return string(out)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func commitFile(t *testing.T, dir, name, content string) {
	t.Helper()
	writeFile(t, filepath.Join(dir, name), content)
	runGit(t, dir, "add", name)
	runGit(t, dir, "commit", "-q", "-m", "add "+name)
}

// createTestRepo creates <tmp>/repo on main with one commit and returns its
// canonical path.
func createTestRepo(t *testing.T) string {
	t.Helper()
	requireGit(t)

	dir := filepath.Join(t.TempDir(), "repo")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	runGit(t, dir, "init", "-q")
	runGit(t, dir, "checkout", "-q", "-b", "main")
	commitFile(t, dir, "README.md", "hello\n")

	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		t.Fatal(err)
	}
	return resolved
}

type fakeLauncher struct {
	launched []agent.Command
}

func (f *fakeLauncher) Launch(_ context.Context, cmd agent.Command) error {
	f.launched = append(f.launched, cmd)
	return nil
}

type fakePRs struct {
	branches map[int]string
	err      error
	merged   map[string]bool
}

func (f *fakePRs) ResolvePR(_ context.Context, _ string, n int) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	b, ok := f.branches[n]
	if !ok {
		return "", github.ErrNotFound
	}
	return b, nil
}

func (f *fakePRs) PRMergeState(_ context.Context, _, branch string) github.MergeState {
	if f.merged == nil {
		return github.MergeUnknown
	}
	if f.merged[branch] {
		return github.Merged
	}
	return github.NotMerged
}

type testEnv struct {
	repo     string
	cwd      string
	store    *store.Store
	journal  *store.Journal
	launcher *fakeLauncher
	notices  []Notice
	mgr      *Manager
}

// setupManager creates a repository and a Manager whose working directory is
// the repository root. Extra options are applied last.
func setupManager(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	repo := createTestRepo(t)
	return newTestEnv(t, repo, opts...)
}

func newTestEnv(t *testing.T, repo string, opts ...Option) *testEnv {
	t.Helper()
	home := t.TempDir()
	seed := uint64(7)
	cfg := config.DefaultConfig(config.Env{
		ConfigDir:         filepath.Join(home, ".pigs"),
		ClaudeProjectsDir: filepath.Join(home, "claude"),
		CodexSessionsDir:  filepath.Join(home, "codex"),
		Seed:              &seed,
	})
	cfg.Sessions.ClaudeProjectsDir = cfg.Env.ClaudeProjectsDir
	cfg.Sessions.CodexSessionsDir = cfg.Env.CodexSessionsDir

	j, err := store.OpenJournal(cfg.JournalPath())
	if err != nil {
		t.Fatalf("failed to open journal: %v", err)
	}
	t.Cleanup(func() { j.Close() })

	e := &testEnv{
		repo:     repo,
		cwd:      repo,
		store:    store.New(cfg.StatePath()),
		journal:  j,
		launcher: &fakeLauncher{},
	}
	base := []Option{
		WithJournal(j),
		WithLauncher(e.launcher),
		WithClock(func() time.Time { return testNow }),
		WithNotifier(func(n Notice) { e.notices = append(e.notices, n) }),
		WithWorkdir(
			func() (string, error) { return e.cwd, nil },
			func(dir string) error { e.cwd = dir; return nil },
		),
	}
	e.mgr = NewManager(cfg, git.New(executil.NewExec(0)), e.store, append(base, opts...)...)
	return e
}

func (e *testEnv) load(t *testing.T) *store.Document {
	t.Helper()
	doc, err := e.store.Load()
	if err != nil {
		t.Fatalf("failed to load state: %v", err)
	}
	return doc
}

func (e *testEnv) create(t *testing.T, name string) *store.Record {
	t.Helper()
	res, err := e.mgr.Create(ctx, CreateOptions{Name: name})
	if err != nil {
		t.Fatalf("Create(%s) failed: %v", name, err)
	}
	return res.Record
}

func answers(m map[string]bool) Option {
	return WithDecider(prompt.Chain{&prompt.Script{Answers: m}})
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateRequested, StateCreated, true},
		{StateCreated, StateActive, true},
		{StateActive, StatePendingDelete, true},
		{StatePendingDelete, StateActive, true},
		{StatePendingDelete, StateDeleted, true},
		{StateRequested, StateActive, false},
		{StateDeleted, StateActive, false},
		{StateDeleted, StateRequested, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestNameGenerator(t *testing.T) {
	seed := uint64(42)
	a, b := NewNameGenerator(&seed), NewNameGenerator(&seed)
	for i := 0; i < 5; i++ {
		x, err := a.Next()
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		y, _ := b.Next()
		if x != y {
			t.Fatalf("same seed produced %q and %q", x, y)
		}
		if x == "" || Sanitize(x) != x {
			t.Errorf("expected a plain word, got %q", x)
		}
	}
}

func TestSanitize(t *testing.T) {
	if got := Sanitize(" feature/login\\fix "); got != "feature-login-fix" {
		t.Errorf("unexpected sanitized name %q", got)
	}
}
