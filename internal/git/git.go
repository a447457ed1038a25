// Package git wraps the git operations pigs needs as synchronous calls with
// structured results. Every call goes through an executil.Runner so tests can
// substitute canned responses.
package git

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/drewfead/pigs/internal/executil"
)

// Git runs git commands for one invocation.
type Git struct {
	runner       executil.Runner
	fetcher      executil.Runner
	baseBranches []string
}

// Option configures a Git.
type Option func(*Git)

// WithFetchRunner uses r for network operations, which usually need a longer bound.
func WithFetchRunner(r executil.Runner) Option {
	return func(g *Git) { g.fetcher = r }
}

// WithBaseBranches adds names treated as base branches besides main, master and develop.
func WithBaseBranches(names ...string) Option {
	return func(g *Git) { g.baseBranches = append(g.baseBranches, names...) }
}

// New returns a Git that runs commands through runner.
func New(runner executil.Runner, opts ...Option) *Git {
	g := &Git{runner: runner, fetcher: runner}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Git) run(ctx context.Context, dir string, args ...string) (string, error) {
	res, err := g.runner.Run(ctx, dir, "git", args...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}

// probe runs a command whose exit status 1 means "no" rather than failure.
func (g *Git) probe(ctx context.Context, dir string, args ...string) (bool, error) {
	_, err := g.runner.Run(ctx, dir, "git", args...)
	if err == nil {
		return true, nil
	}
	if executil.ExitCode(err) == 1 {
		return false, nil
	}
	return false, err
}

// RepoRoot returns the primary working directory of the repository containing
// dir, resolved through the shared git directory so it is the same from any
// linked worktree.
func (g *Git) RepoRoot(ctx context.Context, dir string) (string, error) {
	common, err := g.run(ctx, dir, "rev-parse", "--git-common-dir")
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(common) {
		common = filepath.Join(dir, common)
	}
	common = filepath.Clean(common)
	if filepath.Base(common) == ".git" {
		return canonical(filepath.Dir(common)), nil
	}
	// Bare repository: the git directory is the repository.
	return canonical(common), nil
}

// Toplevel returns the root of the working tree containing dir.
func (g *Git) Toplevel(ctx context.Context, dir string) (string, error) {
	top, err := g.run(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", err
	}
	return canonical(top), nil
}

// CurrentBranch returns the branch checked out in dir, or "" when HEAD is detached.
func (g *Git) CurrentBranch(ctx context.Context, dir string) (string, error) {
	return g.run(ctx, dir, "branch", "--show-current")
}

// RemoteDefaultBranch returns the branch origin/HEAD points at, or "" when unknown.
func (g *Git) RemoteDefaultBranch(ctx context.Context, repo string) string {
	out, err := g.run(ctx, repo, "symbolic-ref", "--short", "refs/remotes/origin/HEAD")
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(out, "origin/")
}

// DefaultBranch determines the trunk of repo: the remote default when known,
// then the first of main and master that exists locally, else "main".
func (g *Git) DefaultBranch(ctx context.Context, repo string) string {
	if b := g.RemoteDefaultBranch(ctx, repo); b != "" {
		return b
	}
	for _, b := range []string{"main", "master"} {
		if ok, _ := g.BranchExists(ctx, repo, b); ok {
			return b
		}
	}
	return "main"
}

// IsBaseBranch reports whether name is a trunk branch of repo.
func (g *Git) IsBaseBranch(ctx context.Context, repo, name string) bool {
	if name == "" {
		return false
	}
	switch name {
	case "main", "master", "develop":
		return true
	}
	for _, b := range g.baseBranches {
		if b == name {
			return true
		}
	}
	return g.RemoteDefaultBranch(ctx, repo) == name
}

// HasRemote reports whether repo has a remote called name.
func (g *Git) HasRemote(ctx context.Context, repo, name string) (bool, error) {
	_, err := g.runner.Run(ctx, repo, "git", "remote", "get-url", name)
	if err == nil {
		return true, nil
	}
	if executil.IsMissing(err) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false, err
	}
	return false, nil
}

// Fetch runs "git fetch remote refspec" with the fetch runner.
func (g *Git) Fetch(ctx context.Context, repo, remote, refspec string) error {
	args := []string{"fetch", remote}
	if refspec != "" {
		args = append(args, refspec)
	}
	_, err := g.fetcher.Run(ctx, repo, "git", args...)
	return classify("fetch", err, ReasonMissingBranch)
}

// MainRepoFromGitFile reads the ".git" file of a linked worktree and returns
// the primary working directory it belongs to. It returns "" when path is not
// a linked worktree or the file cannot be read.
func MainRepoFromGitFile(path string) string {
	data, err := os.ReadFile(filepath.Join(path, ".git"))
	if err != nil {
		return ""
	}

	// Format: "gitdir: /path/to/main/.git/worktrees/name"
	content := strings.TrimSpace(string(data))
	gitDir, ok := strings.CutPrefix(content, "gitdir: ")
	if !ok {
		return ""
	}
	if !filepath.IsAbs(gitDir) {
		gitDir = filepath.Join(path, gitDir)
	}
	gitDir = filepath.Clean(gitDir)

	for dir := gitDir; dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
		if filepath.Base(dir) == ".git" {
			return filepath.Dir(dir)
		}
	}
	return ""
}

func canonical(p string) string {
	p = filepath.Clean(p)
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		return resolved
	}
	return p
}
