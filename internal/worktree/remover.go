package worktree

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/drewfead/pigs/internal/git"
	"github.com/drewfead/pigs/internal/github"
	"github.com/drewfead/pigs/internal/logging"
	"github.com/drewfead/pigs/internal/prompt"
	"github.com/drewfead/pigs/internal/store"
)

// Safety gate question IDs. Flags can answer them individually.
const (
	GateUncommitted = "delete.uncommitted"
	GateUnpushed    = "delete.unpushed"
	GateUnmerged    = "delete.unmerged"
	GateForceBranch = "delete.force_branch"
)

// DeleteOptions tunes Delete.
type DeleteOptions struct {
	// KeepBranch leaves the branch in place. Its commits stay reachable, so
	// the unpushed and unmerged gates are skipped.
	KeepBranch bool
}

// Deletion reports what Delete did to one worktree.
type Deletion struct {
	Record        *store.Record
	Pruned        bool // the directory was already gone
	BranchDeleted bool
	// BranchKept explains why the branch survived, when it did.
	BranchKept string
	Warnings   []error
}

// Delete removes the worktree called name after its safety gates pass.
func (m *Manager) Delete(ctx context.Context, name string, opts DeleteOptions) (*Deletion, error) {
	doc, err := m.load()
	if err != nil {
		return nil, err
	}
	rec, err := m.find(ctx, doc, name)
	if err != nil {
		return nil, err
	}
	return m.deleteRecord(ctx, doc, rec, opts)
}

// DeleteAll deletes every worktree of the current repository, or every
// tracked worktree when not inside one. Declined gates skip that worktree;
// the remaining failures are joined.
func (m *Manager) DeleteAll(ctx context.Context, opts DeleteOptions) ([]*Deletion, error) {
	doc, err := m.load()
	if err != nil {
		return nil, err
	}
	repo := m.currentRepoName(ctx)

	var done []*Deletion
	var errs []error
	for _, rec := range doc.Records() {
		if repo != "" && rec.RepoName != repo {
			continue
		}
		d, err := m.deleteRecord(ctx, doc, rec, opts)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", rec.Key(), err))
			continue
		}
		done = append(done, d)
	}
	return done, errors.Join(errs...)
}

func (m *Manager) deleteRecord(ctx context.Context, doc *store.Document, rec *store.Record, opts DeleteOptions) (*Deletion, error) {
	key := rec.Key()
	repo := rec.RepoPath
	if repo == "" {
		repo = git.MainRepoFromGitFile(rec.Path)
	}
	if repo == "" {
		return nil, fmt.Errorf("%w: cannot tell which repository %s belongs to; run clean", ErrPrecondition, key)
	}
	if store.SamePath(rec.Path, repo) {
		return nil, fmt.Errorf("%w: %s is the primary working tree", ErrPrecondition, rec.Path)
	}

	lc := m.track(key, StateActive)
	if err := lc.to(StatePendingDelete, "delete requested"); err != nil {
		return nil, err
	}

	force, err := m.runGates(ctx, lc, rec, repo, opts)
	if err != nil {
		_ = lc.to(StateActive, err.Error())
		return nil, err
	}

	if err := m.leave(rec.Path, repo); err != nil {
		_ = lc.to(StateActive, "could not leave worktree")
		return nil, err
	}

	out := &Deletion{Record: rec}
	info, statErr := os.Stat(rec.Path)
	switch {
	case statErr != nil && isNotExist(statErr):
		if err := m.git.WorktreePrune(ctx, repo); err != nil {
			_ = lc.to(StateActive, "prune failed")
			return nil, fmt.Errorf("prune worktrees of %s: %w", repo, err)
		}
		out.Pruned = true
	case statErr != nil:
		_ = lc.to(StateActive, "stat failed")
		return nil, fmt.Errorf("inspect %s: %w", rec.Path, statErr)
	default:
		partial := !info.IsDir() || !exists(filepath.Join(rec.Path, ".git"))
		if err := m.git.WorktreeRemove(ctx, repo, rec.Path, force || partial); err != nil {
			if !partial {
				_ = lc.to(StateActive, "worktree remove failed")
				return nil, fmt.Errorf("remove worktree %s: %w", key, gitErr(err))
			}
			// git refuses a worktree whose .git file is gone.
			logging.Debug("worktree remove refused partial directory", "key", key, "error", err)
			if err := m.removePartial(ctx, repo, rec.Path); err != nil {
				_ = lc.to(StateActive, "worktree remove failed")
				return nil, fmt.Errorf("remove worktree %s: %w", key, err)
			}
			out.Pruned = true
		}
	}

	if !opts.KeepBranch {
		if err := m.deleteBranch(ctx, lc, rec, repo, out); err != nil {
			// The worktree is already gone, so the record goes too.
			out.Warnings = append(out.Warnings, err)
			lc.warn("delete branch", err)
		}
	} else {
		out.BranchKept = "kept on request"
	}

	doc.Delete(key)
	if err := m.save(doc); err != nil {
		return nil, err
	}
	_ = lc.to(StateDeleted, "removed")
	return out, nil
}

// runGates asks about uncommitted, unpushed and unmerged work in that order.
// It returns whether the worktree must be force-removed.
func (m *Manager) runGates(ctx context.Context, lc *lifecycle, rec *store.Record, repo string, opts DeleteOptions) (bool, error) {
	force := false
	dirPresent := exists(filepath.Join(rec.Path, ".git"))

	if dirPresent {
		dirty, err := m.git.HasUncommittedChanges(ctx, rec.Path)
		if err != nil {
			return false, fmt.Errorf("check uncommitted changes: %w", err)
		}
		if dirty {
			if err := m.gate(ctx, lc, prompt.Question{
				ID:          GateUncommitted,
				Text:        fmt.Sprintf("%s has uncommitted changes. Delete anyway?", rec.Key()),
				Destructive: true,
			}); err != nil {
				return false, err
			}
			force = true
		}
	}

	if opts.KeepBranch || rec.Branch == "" {
		return force, nil
	}
	branchExists, err := m.git.BranchExists(ctx, repo, rec.Branch)
	if err != nil {
		return false, err
	}
	if !branchExists {
		return force, nil
	}

	dir := repo
	if dirPresent {
		dir = rec.Path
	}
	unpushed, err := m.git.HasUnpushedCommits(ctx, dir, rec.Branch)
	if err != nil {
		return false, fmt.Errorf("check unpushed commits: %w", err)
	}
	if unpushed {
		if err := m.gate(ctx, lc, prompt.Question{
			ID:          GateUnpushed,
			Text:        fmt.Sprintf("Branch %s has commits that are not pushed. Delete anyway?", rec.Branch),
			Destructive: true,
		}); err != nil {
			return false, err
		}
	}

	merged, err := m.merged(ctx, repo, rec.Branch)
	if err != nil {
		return false, err
	}
	if !merged {
		if err := m.gate(ctx, lc, prompt.Question{
			ID:          GateUnmerged,
			Text:        fmt.Sprintf("Branch %s is not merged. Delete anyway?", rec.Branch),
			Destructive: true,
		}); err != nil {
			return false, err
		}
	}
	return force, nil
}

// merged checks local history first, then a merged pull request for
// squash merges. An unknown remote answer counts as not merged.
func (m *Manager) merged(ctx context.Context, repo, branch string) (bool, error) {
	if m.git.IsBaseBranch(ctx, repo, branch) {
		return true, nil
	}
	ok, err := m.git.IsBranchMerged(ctx, repo, branch)
	if err != nil {
		return false, fmt.Errorf("check merge status: %w", err)
	}
	if ok || m.prs == nil {
		return ok, nil
	}
	state := m.prs.PRMergeState(ctx, repo, branch)
	logging.Debug("pull request merge state", "branch", branch, "state", state.String())
	return state == github.Merged, nil
}

func (m *Manager) gate(ctx context.Context, lc *lifecycle, q prompt.Question) error {
	d, err := m.decide(ctx, q)
	if err != nil {
		return err
	}
	if !d.Yes {
		return fmt.Errorf("%w: %s", ErrGateDeclined, strings.TrimSuffix(q.Text, " Delete anyway?"))
	}
	lc.override(q.ID, d)
	return nil
}

// leave moves the process out of path before it is removed.
// removePartial deletes what is left of a worktree directory and prunes git's
// bookkeeping for it.
func (m *Manager) removePartial(ctx context.Context, repo, path string) error {
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	if err := m.git.WorktreePrune(ctx, repo); err != nil {
		return fmt.Errorf("prune worktrees of %s: %w", repo, err)
	}
	return nil
}

func (m *Manager) leave(path, repo string) error {
	cwd, err := m.getwd()
	if err != nil {
		return nil
	}
	if !within(cwd, path) {
		return nil
	}
	logging.Info("leaving worktree before removal", "from", cwd, "to", repo)
	if err := m.chdir(repo); err != nil {
		return fmt.Errorf("change directory to %s: %w", repo, err)
	}
	return nil
}

// within reports whether p is root or below it.
func within(p, root string) bool {
	p, root = store.CanonicalPath(p), store.CanonicalPath(root)
	if p == root {
		return true
	}
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// deleteBranch removes the branch after the worktree is gone. An unmerged
// branch needs its own confirmation before it is force-deleted.
func (m *Manager) deleteBranch(ctx context.Context, lc *lifecycle, rec *store.Record, repo string, out *Deletion) error {
	if rec.Branch == "" {
		return nil
	}
	if m.git.IsBaseBranch(ctx, repo, rec.Branch) {
		out.BranchKept = "base branch"
		return nil
	}
	ok, err := m.git.BranchExists(ctx, repo, rec.Branch)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	err = m.git.DeleteBranch(ctx, repo, rec.Branch, false)
	if err == nil {
		out.BranchDeleted = true
		return nil
	}
	if !git.IsReason(err, git.ReasonNotMerged) {
		return fmt.Errorf("delete branch %s: %w", rec.Branch, err)
	}

	d, derr := m.decide(ctx, prompt.Question{
		ID:          GateForceBranch,
		Text:        fmt.Sprintf("Branch %s is not fully merged. Force-delete it?", rec.Branch),
		Destructive: true,
	})
	if derr != nil {
		return derr
	}
	if !d.Yes {
		out.BranchKept = "not fully merged"
		return nil
	}
	lc.override(GateForceBranch, d)
	if err := m.git.DeleteBranch(ctx, repo, rec.Branch, true); err != nil {
		return fmt.Errorf("force-delete branch %s: %w", rec.Branch, err)
	}
	out.BranchDeleted = true
	return nil
}
