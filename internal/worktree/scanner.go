package worktree

import (
	"context"
	"fmt"
	"sort"

	"github.com/drewfead/pigs/internal/git"
	"github.com/drewfead/pigs/internal/logging"
	"github.com/drewfead/pigs/internal/store"
)

// Lister is the part of git reconciliation needs.
type Lister interface {
	ListWorktrees(ctx context.Context, repo string) ([]git.Worktree, error)
}

// SkippedRepo is a repository whose records were left alone.
type SkippedRepo struct {
	Path string
	Keys []string
	Err  error
}

// Report is the outcome of one reconciliation pass.
type Report struct {
	Removed []*store.Record
	Skipped []SkippedRepo
	Checked int
}

// Changed reports whether the pass removed anything.
func (r *Report) Changed() bool { return len(r.Removed) > 0 }

// Reconcile drops every record whose worktree git no longer reports as live.
// A worktree is live when git lists it, does not mark it prunable, and its
// directory exists. Git itself is never modified. Repositories that cannot be
// listed are skipped and reported; their records are kept.
func Reconcile(ctx context.Context, doc *store.Document, lister Lister) *Report {
	report := &Report{}

	byRepo := make(map[string][]*store.Record)
	var orphans []*store.Record
	for _, rec := range doc.Records() {
		report.Checked++
		repo := rec.RepoPath
		if repo == "" {
			repo = git.MainRepoFromGitFile(rec.Path)
		}
		if repo == "" {
			orphans = append(orphans, rec)
			continue
		}
		byRepo[store.CanonicalPath(repo)] = append(byRepo[store.CanonicalPath(repo)], rec)
	}

	// Without a repository to ask, only the directory itself can be checked.
	for _, rec := range orphans {
		if !exists(rec.Path) {
			report.Removed = append(report.Removed, rec)
		}
	}

	repos := make([]string, 0, len(byRepo))
	for repo := range byRepo {
		repos = append(repos, repo)
	}
	sort.Strings(repos)

	for _, repo := range repos {
		recs := byRepo[repo]
		live, err := liveWorktrees(ctx, lister, repo)
		if err != nil {
			keys := make([]string, len(recs))
			for i, rec := range recs {
				keys[i] = rec.Key()
			}
			logging.Warn("skipping repository during reconciliation", "repo", repo, "records", len(recs), "error", err)
			report.Skipped = append(report.Skipped, SkippedRepo{Path: repo, Keys: keys, Err: err})
			continue
		}
		for _, rec := range recs {
			if !live[store.CanonicalPath(rec.Path)] {
				report.Removed = append(report.Removed, rec)
			}
		}
	}

	for _, rec := range report.Removed {
		doc.Delete(rec.Key())
	}
	return report
}

func liveWorktrees(ctx context.Context, lister Lister, repo string) (map[string]bool, error) {
	if !exists(repo) {
		return nil, fmt.Errorf("repository %s does not exist", repo)
	}
	listed, err := lister.ListWorktrees(ctx, repo)
	if err != nil {
		return nil, err
	}
	live := make(map[string]bool, len(listed))
	for _, wt := range listed {
		if wt.Prunable || !exists(wt.Path) {
			continue
		}
		live[store.CanonicalPath(wt.Path)] = true
	}
	return live, nil
}

// Clean reconciles every tracked repository and persists the result.
func (m *Manager) Clean(ctx context.Context) (*Report, error) {
	doc, err := m.load()
	if err != nil {
		return nil, err
	}
	report := Reconcile(ctx, doc, m.git)
	for _, rec := range report.Removed {
		_ = m.track(rec.Key(), StateActive).to(StateDeleted, "orphaned: "+rec.Path)
	}
	if err := m.save(doc); err != nil {
		return nil, err
	}
	return report, nil
}
