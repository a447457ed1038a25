package worktree

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/drewfead/pigs/internal/config"
	"github.com/drewfead/pigs/internal/git"
	"github.com/drewfead/pigs/internal/github"
	"github.com/drewfead/pigs/internal/logging"
	"github.com/drewfead/pigs/internal/store"
)

// CreateOptions describes a new worktree.
type CreateOptions struct {
	// Name is the branch name; a random word when empty.
	Name string
	// From is a tracked worktree name or a branch to start from. When empty
	// the current branch must be a base branch.
	From string
}

// Result is the outcome of create, checkout or add.
type Result struct {
	Record *store.Record
	// Existing is set when checkout found a worktree already tracking the branch.
	Existing bool
	// Copied lists files copied into the new worktree.
	Copied []string
	// Warnings are best-effort steps that failed.
	Warnings []error
}

// Create makes a new worktree next to the current repository.
func (m *Manager) Create(ctx context.Context, opts CreateOptions) (*Result, error) {
	rc, err := m.currentRepo(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := m.load()
	if err != nil {
		return nil, err
	}

	var source string
	if from := strings.TrimSpace(opts.From); from != "" {
		source, err = m.resolveFrom(ctx, doc, rc, from)
		if err != nil {
			return nil, err
		}
	} else {
		current, err := m.git.CurrentBranch(ctx, rc.Dir)
		if err != nil {
			return nil, err
		}
		if !m.git.IsBaseBranch(ctx, rc.Root, current) {
			if current == "" {
				current = "detached HEAD"
			}
			return nil, fmt.Errorf("%w: must be on a base branch to create a worktree (current: %s); use --from to start elsewhere", ErrPrecondition, current)
		}
	}

	branch := strings.TrimSpace(opts.Name)
	if branch == "" {
		branch, err = m.names.Next()
		if err != nil {
			return nil, err
		}
	}
	return m.provision(ctx, doc, rc, branch, source)
}

// resolveFrom turns a --from target into a start point: a tracked worktree of
// this repo (exact, then sanitized), a local branch, or origin/<target>.
func (m *Manager) resolveFrom(ctx context.Context, doc *store.Document, rc *repoContext, from string) (string, error) {
	for _, name := range []string{from, Sanitize(from)} {
		if rec, ok := doc.Get(store.Key(rc.Name, name)); ok {
			return rec.Branch, nil
		}
	}

	if ok, err := m.git.BranchExists(ctx, rc.Root, from); err != nil {
		return "", err
	} else if ok {
		return from, nil
	}
	if ok, err := m.git.RemoteBranchExists(ctx, rc.Root, "origin", from); err != nil {
		return "", err
	} else if ok {
		return "origin/" + from, nil
	}
	return "", fmt.Errorf("%w: cannot resolve --from %q: not a worktree, local branch or remote branch in %s", ErrNotFound, from, rc.Name)
}

// Checkout makes a worktree for an existing branch or pull request. A record
// already tracking the branch is returned with Existing set.
func (m *Manager) Checkout(ctx context.Context, target string) (*Result, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, fmt.Errorf("%w: a branch name or pull request number is required", ErrPrecondition)
	}
	rc, err := m.currentRepo(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := m.load()
	if err != nil {
		return nil, err
	}

	branch := target
	pr, isPR := github.ParsePRRef(target)
	fallback := false
	if isPR {
		branch, fallback, err = m.resolvePRBranch(ctx, rc, pr)
		if err != nil {
			return nil, err
		}
	}

	if rec, ok := doc.FindByBranch(rc.Name, branch); ok {
		return &Result{Record: rec, Existing: true}, nil
	}

	if fallback {
		err = m.fetchPullRequest(ctx, rc, pr, branch)
	} else {
		err = m.ensureBranch(ctx, rc, branch)
	}
	if err != nil {
		return nil, err
	}
	return m.provision(ctx, doc, rc, branch, "")
}

func (m *Manager) resolvePRBranch(ctx context.Context, rc *repoContext, pr int) (string, bool, error) {
	fallback := "pr/" + strconv.Itoa(pr)
	if m.prs == nil {
		return fallback, true, nil
	}
	branch, err := m.prs.ResolvePR(ctx, rc.Root, pr)
	switch {
	case err == nil:
		return branch, false, nil
	case errors.Is(err, github.ErrNotFound):
		return "", false, fmt.Errorf("%w: pull request #%d", ErrNotFound, pr)
	default:
		logging.Info("pull request lookup unavailable, using fallback branch", "pr", pr, "branch", fallback, "error", err)
		return fallback, true, nil
	}
}

func (m *Manager) requireOrigin(ctx context.Context, rc *repoContext) error {
	ok, err := m.git.HasRemote(ctx, rc.Root, "origin")
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: remote 'origin' is not configured", ErrPrecondition)
	}
	return nil
}

// ensureBranch fetches branch from origin under the same name when it is not local.
func (m *Manager) ensureBranch(ctx context.Context, rc *repoContext, branch string) error {
	if ok, err := m.git.BranchExists(ctx, rc.Root, branch); err != nil || ok {
		return err
	}
	if err := m.requireOrigin(ctx, rc); err != nil {
		return fmt.Errorf("branch %s is not local: %w", branch, err)
	}
	logging.Info("fetching branch from origin", "branch", branch)
	if err := m.git.Fetch(ctx, rc.Root, "origin", branch+":"+branch); err != nil {
		return fmt.Errorf("fetch %s: %w", branch, gitErr(err))
	}
	ok, err := m.git.BranchExists(ctx, rc.Root, branch)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: branch %s exists neither locally nor on origin", ErrNotFound, branch)
	}
	return nil
}

func (m *Manager) fetchPullRequest(ctx context.Context, rc *repoContext, pr int, branch string) error {
	if ok, err := m.git.BranchExists(ctx, rc.Root, branch); err != nil || ok {
		return err
	}
	if err := m.requireOrigin(ctx, rc); err != nil {
		return err
	}
	logging.Info("fetching pull request from origin", "pr", pr)
	refspec := fmt.Sprintf("pull/%d/head:refs/heads/%s", pr, branch)
	if err := m.git.Fetch(ctx, rc.Root, "origin", refspec); err != nil {
		return fmt.Errorf("fetch pull request #%d: %w", pr, gitErr(err))
	}
	return nil
}

// provision runs the shared tail of create and checkout: conflict checks,
// worktree add, best-effort setup, then the record.
func (m *Manager) provision(ctx context.Context, doc *store.Document, rc *repoContext, branch, source string) (*Result, error) {
	name := Sanitize(branch)
	if name == "" || name == "." || name == ".." {
		return nil, fmt.Errorf("%w: invalid worktree name %q", ErrPrecondition, branch)
	}
	key := store.Key(rc.Name, name)
	path := worktreePath(rc, name)

	if _, ok := doc.Get(key); ok {
		return nil, fmt.Errorf("%w: a worktree named %s is already tracked for %s", ErrConflict, name, rc.Name)
	}
	if other, _, ok := doc.FindByPath(path); ok {
		return nil, fmt.Errorf("%w: %s is already tracked as %s", ErrConflict, path, other)
	}
	if exists(path) {
		return nil, fmt.Errorf("%w: directory %s already exists", ErrConflict, path)
	}
	listed, err := m.git.ListWorktrees(ctx, rc.Root)
	if err != nil {
		return nil, err
	}
	for _, wt := range listed {
		if store.SamePath(wt.Path, path) {
			return nil, fmt.Errorf("%w: git already has a worktree at %s", ErrConflict, path)
		}
	}

	branchExists, err := m.git.BranchExists(ctx, rc.Root, branch)
	if err != nil {
		return nil, err
	}

	lc := m.request(key, "create "+path)
	add := git.AddOptions{Path: path, Branch: branch}
	if !branchExists {
		add.Create = true
		add.StartPoint = source
	}
	if err := m.git.WorktreeAdd(ctx, rc.Dir, add); err != nil {
		_ = lc.to(StateDeleted, "worktree add failed")
		return nil, fmt.Errorf("create worktree %s: %w", key, gitErr(err))
	}
	_ = lc.to(StateCreated, path)

	res := &Result{}
	if err := m.git.UpdateSubmodules(ctx, path); err != nil {
		lc.warn("update submodules", err)
		res.Warnings = append(res.Warnings, fmt.Errorf("update submodules: %w", err))
	}
	res.Copied, err = m.copyFiles(rc.Root, path)
	if err != nil {
		lc.warn("copy files", err)
		res.Warnings = append(res.Warnings, err)
	}

	rec := &store.Record{
		Name:      name,
		Branch:    branch,
		Path:      store.CanonicalPath(path),
		RepoName:  rc.Name,
		RepoPath:  rc.Root,
		CreatedAt: m.now().UTC(),
	}
	if err := doc.Put(rec); err != nil {
		return nil, storeErr(err)
	}
	if err := m.save(doc); err != nil {
		return nil, err
	}
	_ = lc.to(StateActive, "tracked")

	res.Record = rec
	return res, nil
}

// copyFiles copies the notes file and the repo's copy_files into a new worktree.
func (m *Manager) copyFiles(repoRoot, path string) ([]string, error) {
	files := []string{m.cfg.Worktrees.NotesFile}
	rc, err := config.LoadRepoConfig(repoRoot)
	if err != nil {
		copied, cerr := copyIntoWorktree(repoRoot, path, files)
		return copied, errors.Join(err, cerr)
	}
	files = append(files, rc.CopyFiles...)
	return copyIntoWorktree(repoRoot, path, files)
}

// Add adopts the worktree containing the working directory. name defaults to
// the branch checked out there.
func (m *Manager) Add(ctx context.Context, name string) (*Result, error) {
	rc, err := m.currentRepo(ctx)
	if err != nil {
		return nil, err
	}
	if store.SamePath(rc.Dir, rc.Root) {
		return nil, fmt.Errorf("%w: %s is the primary working tree, not a linked worktree", ErrPrecondition, rc.Dir)
	}
	doc, err := m.load()
	if err != nil {
		return nil, err
	}
	if other, _, ok := doc.FindByPath(rc.Dir); ok {
		return nil, fmt.Errorf("%w: %s is already tracked as %s", ErrConflict, rc.Dir, other)
	}

	branch, err := m.git.CurrentBranch(ctx, rc.Dir)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = branch
	}
	if name == "" {
		name = strings.TrimPrefix(filepath.Base(rc.Dir), rc.Name+"-")
	}
	name = Sanitize(name)

	key := store.Key(rc.Name, name)
	if _, ok := doc.Get(key); ok {
		return nil, fmt.Errorf("%w: a worktree named %s is already tracked for %s", ErrConflict, name, rc.Name)
	}

	lc := m.request(key, "adopt "+rc.Dir)
	_ = lc.to(StateCreated, "existing worktree")

	rec := &store.Record{
		Name:      name,
		Branch:    branch,
		Path:      rc.Dir,
		RepoName:  rc.Name,
		RepoPath:  rc.Root,
		CreatedAt: m.now().UTC(),
	}
	if err := doc.Put(rec); err != nil {
		return nil, storeErr(err)
	}
	if err := m.save(doc); err != nil {
		return nil, err
	}
	_ = lc.to(StateActive, "tracked")
	return &Result{Record: rec}, nil
}
