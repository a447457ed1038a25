package worktree

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/drewfead/pigs/internal/git"
	"github.com/drewfead/pigs/internal/store"
)

type fakeLister struct {
	worktrees map[string][]git.Worktree
	errs      map[string]error
	calls     int
}

func (f *fakeLister) ListWorktrees(_ context.Context, repo string) ([]git.Worktree, error) {
	f.calls++
	if err := f.errs[repo]; err != nil {
		return nil, err
	}
	return f.worktrees[repo], nil
}

func mkdirs(t *testing.T, paths ...string) {
	t.Helper()
	for _, p := range paths {
		if err := os.MkdirAll(p, 0o755); err != nil {
			t.Fatal(err)
		}
	}
}

func newDoc(t *testing.T, recs ...*store.Record) *store.Document {
	t.Helper()
	doc := store.NewDocument()
	for _, rec := range recs {
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = time.Unix(0, 0).UTC()
		}
		if err := doc.Put(rec); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}
	return doc
}

func TestReconcile(t *testing.T) {
	root, _ := filepath.EvalSymlinks(t.TempDir())
	repo := filepath.Join(root, "proj")
	live := filepath.Join(root, "proj-live")
	deleted := filepath.Join(root, "proj-deleted")
	prunable := filepath.Join(root, "proj-prunable")
	untracked := filepath.Join(root, "proj-unknown")
	mkdirs(t, repo, live, prunable, untracked)

	lister := &fakeLister{worktrees: map[string][]git.Worktree{
		repo: {
			{Path: repo, Branch: "main"},
			{Path: live, Branch: "live"},
			{Path: deleted, Branch: "deleted", Prunable: true},
			{Path: prunable, Branch: "prunable", Prunable: true},
		},
	}}

	doc := newDoc(t,
		&store.Record{Name: "live", RepoName: "proj", Branch: "live", Path: live, RepoPath: repo},
		&store.Record{Name: "deleted", RepoName: "proj", Branch: "deleted", Path: deleted, RepoPath: repo},
		&store.Record{Name: "prunable", RepoName: "proj", Branch: "prunable", Path: prunable, RepoPath: repo},
		&store.Record{Name: "unknown", RepoName: "proj", Branch: "unknown", Path: untracked, RepoPath: repo},
	)

	report := Reconcile(ctx, doc, lister)
	if report.Checked != 4 || len(report.Removed) != 3 {
		t.Fatalf("expected 3 of 4 removed, got %+v", report)
	}
	if _, ok := doc.Get("proj/live"); !ok || len(doc.Worktrees) != 1 {
		t.Errorf("expected only proj/live left, got %v", doc.Worktrees)
	}

	t.Run("Fixpoint", func(t *testing.T) {
		again := Reconcile(ctx, doc, lister)
		if again.Changed() || len(doc.Worktrees) != 1 {
			t.Errorf("second pass changed state: %+v", again)
		}
	})
}

func TestReconcileSkipsUnreachableRepo(t *testing.T) {
	root, _ := filepath.EvalSymlinks(t.TempDir())
	good := filepath.Join(root, "good")
	bad := filepath.Join(root, "bad")
	gone := filepath.Join(root, "gone-repo")
	mkdirs(t, good, bad)

	lister := &fakeLister{
		worktrees: map[string][]git.Worktree{good: {{Path: good}}},
		errs:      map[string]error{bad: errors.New("fatal: not a git repository")},
	}
	doc := newDoc(t,
		&store.Record{Name: "a", RepoName: "good", Path: filepath.Join(root, "good-a"), RepoPath: good},
		&store.Record{Name: "b", RepoName: "bad", Path: filepath.Join(root, "bad-b"), RepoPath: bad},
		&store.Record{Name: "c", RepoName: "gone", Path: filepath.Join(root, "gone-c"), RepoPath: gone},
	)

	report := Reconcile(ctx, doc, lister)
	if len(report.Removed) != 1 || report.Removed[0].Key() != "good/a" {
		t.Errorf("expected good/a removed, got %+v", report.Removed)
	}
	if len(report.Skipped) != 2 {
		t.Fatalf("expected two skipped repos, got %+v", report.Skipped)
	}
	for _, key := range []string{"bad/b", "gone/c"} {
		if _, ok := doc.Get(key); !ok {
			t.Errorf("records of skipped repos must be kept, missing %s", key)
		}
	}
}

func TestReconcileWithoutRepoPath(t *testing.T) {
	root, _ := filepath.EvalSymlinks(t.TempDir())
	present := filepath.Join(root, "proj-present")
	mkdirs(t, present)

	lister := &fakeLister{}
	doc := newDoc(t,
		&store.Record{Name: "a", RepoName: "proj", Path: filepath.Join(root, "proj-a")},
		&store.Record{Name: "present", RepoName: "proj", Path: present},
	)

	report := Reconcile(ctx, doc, lister)
	if len(report.Removed) != 1 || report.Removed[0].Key() != "proj/a" {
		t.Errorf("expected proj/a removed by directory check, got %+v", report.Removed)
	}
	if lister.calls != 0 {
		t.Errorf("no repository to list, got %d calls", lister.calls)
	}
}

func TestClean(t *testing.T) {
	e := setupManager(t)
	a := e.create(t, "a")
	e.create(t, "b")
	if err := os.RemoveAll(a.Path); err != nil {
		t.Fatal(err)
	}

	report, err := e.mgr.Clean(ctx)
	if err != nil {
		t.Fatalf("Clean failed: %v", err)
	}
	if len(report.Removed) != 1 || report.Removed[0].Key() != "repo/a" {
		t.Fatalf("expected repo/a removed, got %+v", report.Removed)
	}
	doc := e.load(t)
	if _, ok := doc.Get("repo/b"); !ok || len(doc.Worktrees) != 1 {
		t.Errorf("expected only repo/b left, got %v", doc.Worktrees)
	}

	again, err := e.mgr.Clean(ctx)
	if err != nil {
		t.Fatalf("second Clean failed: %v", err)
	}
	if again.Changed() {
		t.Errorf("second clean should be a no-op, removed %v", again.Removed)
	}
}
