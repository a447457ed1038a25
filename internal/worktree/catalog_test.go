package worktree

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRename(t *testing.T) {
	e := setupManager(t)
	rec := e.create(t, "old")
	e.create(t, "taken")

	renamed, err := e.mgr.Rename(ctx, "old", "new")
	if err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	if renamed.Key() != "repo/new" {
		t.Errorf("expected repo/new, got %s", renamed.Key())
	}
	if renamed.Path != rec.Path || renamed.Branch != rec.Branch || !renamed.CreatedAt.Equal(rec.CreatedAt) {
		t.Errorf("rename must keep path, branch and created_at: %+v", renamed)
	}
	doc := e.load(t)
	if _, ok := doc.Get("repo/old"); ok {
		t.Error("old key must be gone")
	}
	if _, ok := doc.Get("repo/new"); !ok {
		t.Error("new key must be persisted")
	}

	t.Run("MissingOld", func(t *testing.T) {
		_, err := e.mgr.Rename(ctx, "old", "other")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("ExistingNew", func(t *testing.T) {
		_, err := e.mgr.Rename(ctx, "new", "taken")
		if !errors.Is(err, ErrConflict) {
			t.Errorf("expected ErrConflict, got %v", err)
		}
	})
}

func TestList(t *testing.T) {
	e := setupManager(t)
	a := e.create(t, "a")
	e.create(t, "b")
	if err := os.RemoveAll(a.Path); err != nil {
		t.Fatal(err)
	}

	entries, err := e.mgr.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 2 || entries[0].Key != "repo/a" || entries[1].Key != "repo/b" {
		t.Fatalf("unexpected entries %+v", entries)
	}
	if !entries[0].Missing || entries[1].Missing {
		t.Errorf("expected only a missing, got %v %v", entries[0].Missing, entries[1].Missing)
	}

	data, err := json.Marshal(entries)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	for _, field := range []string{`"key":"repo/a"`, `"missing":true`, `"sessions":[]`, `"branch":"b"`} {
		if !strings.Contains(string(data), field) {
			t.Errorf("expected %s in %s", field, data)
		}
	}

	names, err := e.mgr.Names(ctx)
	if err != nil {
		t.Fatalf("Names failed: %v", err)
	}
	if strings.Join(names, ",") != "a,b" {
		t.Errorf("expected bare names in the current repo, got %v", names)
	}
}

func TestOpen(t *testing.T) {
	e := setupManager(t)
	rec := e.create(t, "demo")

	if err := e.mgr.SetAgent(ctx, "aider --yes"); err != nil {
		t.Fatalf("SetAgent failed: %v", err)
	}
	got, err := e.mgr.Agent(ctx)
	if err != nil || got != "aider --yes" {
		t.Fatalf("expected stored agent, got %q %v", got, err)
	}

	cmd, err := e.mgr.Open(ctx, "demo", OpenOptions{Args: []string{"--model", "x"}})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if len(e.launcher.launched) != 1 {
		t.Fatalf("expected one launch, got %d", len(e.launcher.launched))
	}
	if cmd.Program != "aider" || strings.Join(cmd.Args, " ") != "--yes --model x" || cmd.Dir != rec.Path {
		t.Errorf("unexpected command %+v", cmd)
	}

	t.Run("RepoConfigOverridesDocument", func(t *testing.T) {
		writeFile(t, filepath.Join(e.repo, ".pigs", "settings.json"), `{"agent": "claude"}`)
		defer os.RemoveAll(filepath.Join(e.repo, ".pigs"))
		cmd, _, err := e.mgr.Resolve(ctx, "demo", OpenOptions{})
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if cmd.Program != "claude" {
			t.Errorf("expected repo agent, got %s", cmd.Program)
		}
	})

	t.Run("ExplicitAgentWins", func(t *testing.T) {
		cmd, _, err := e.mgr.Resolve(ctx, "demo", OpenOptions{Agent: "codex"})
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if cmd.Program != "codex" || cmd.ResumeSession != "" {
			t.Errorf("expected plain codex without sessions, got %+v", cmd)
		}
	})

	t.Run("InvalidAgent", func(t *testing.T) {
		if err := e.mgr.SetAgent(ctx, `codex "unterminated`); !errors.Is(err, ErrPrecondition) {
			t.Errorf("expected ErrPrecondition, got %v", err)
		}
	})

	t.Run("MissingDirectory", func(t *testing.T) {
		if err := os.RemoveAll(rec.Path); err != nil {
			t.Fatal(err)
		}
		if _, err := e.mgr.Open(ctx, "demo", OpenOptions{}); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestInspectAndHistory(t *testing.T) {
	e := setupManager(t)
	rec := e.create(t, "info")
	commitFile(t, rec.Path, "i.txt", "i\n")
	writeFile(t, filepath.Join(rec.Path, "wip.txt"), "wip\n")

	d, err := e.mgr.Inspect(ctx, "info", 10)
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if !d.Uncommitted || !d.Unpushed || d.Merged {
		t.Errorf("unexpected status %+v", d)
	}
	if len(d.Events) != 3 || len(d.Problems) != 0 {
		t.Errorf("expected three events and no problems, got %d %v", len(d.Events), d.Problems)
	}

	all, err := e.mgr.History(ctx, "", 0)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected three events overall, got %d", len(all))
	}
	byName, err := e.mgr.History(ctx, "info", 0)
	if err != nil || len(byName) != 3 || byName[0].Key != "repo/info" {
		t.Errorf("expected history by bare name, got %v %v", byName, err)
	}
}
