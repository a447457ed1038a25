package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setupTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")
	return New(path), path
}

func writeState(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write state: %v", err)
	}
}

func TestLoad(t *testing.T) {
	t.Run("AbsentFileYieldsDefaults", func(t *testing.T) {
		st, _ := setupTestStore(t)
		doc, err := st.Load()
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if doc.Agent != DefaultAgent {
			t.Errorf("expected default agent, got %q", doc.Agent)
		}
		if len(doc.Worktrees) != 0 {
			t.Errorf("expected no worktrees, got %d", len(doc.Worktrees))
		}
	})

	t.Run("InvalidJSONIsParseError", func(t *testing.T) {
		st, path := setupTestStore(t)
		writeState(t, path, `{"worktrees": {`)
		_, err := st.Load()
		var perr *ParseError
		if !errors.As(err, &perr) {
			t.Fatalf("expected ParseError, got %v", err)
		}
	})

	t.Run("EmptyFileIsParseError", func(t *testing.T) {
		st, path := setupTestStore(t)
		writeState(t, path, "  \n")
		var perr *ParseError
		if _, err := st.Load(); !errors.As(err, &perr) {
			t.Fatalf("expected ParseError, got %v", err)
		}
	})

	t.Run("UnreadableIsIOError", func(t *testing.T) {
		dir := t.TempDir()
		// A directory where the file should be cannot be read as a file.
		path := filepath.Join(dir, "settings.json")
		if err := os.Mkdir(path, 0o755); err != nil {
			t.Fatal(err)
		}
		var ioErr *IOError
		if _, err := New(path).Load(); !errors.As(err, &ioErr) {
			t.Fatalf("expected IOError, got %v", err)
		}
	})

	t.Run("AgentListForm", func(t *testing.T) {
		st, path := setupTestStore(t)
		writeState(t, path, `{"agent": [{"name": "codex", "command": "codex --full-auto"}], "worktrees": {}}`)
		doc, err := st.Load()
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if doc.Agent != "codex --full-auto" {
			t.Errorf("expected first agent option, got %q", doc.Agent)
		}
		if err := st.Save(doc); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		data, _ := os.ReadFile(path)
		if !strings.Contains(string(data), `"name": "codex"`) {
			t.Errorf("list form should survive a rewrite, got %s", data)
		}
	})

	t.Run("SetAgentKeepsListOptions", func(t *testing.T) {
		st, path := setupTestStore(t)
		writeState(t, path, `{"agent": [{"name": "codex", "command": "codex"}, {"name": "claude", "command": "claude"}], "worktrees": {}}`)
		doc, err := st.Load()
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		doc.SetAgent("codex --full-auto")
		if err := st.Save(doc); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		data, _ := os.ReadFile(path)
		var saved struct {
			Agent []agentOption `json:"agent"`
		}
		if err := json.Unmarshal(data, &saved); err != nil {
			t.Fatalf("agent should stay a list, got %s: %v", data, err)
		}
		if len(saved.Agent) != 2 || saved.Agent[0].Name != "codex" || saved.Agent[0].Command != "codex --full-auto" || saved.Agent[1].Command != "claude" {
			t.Errorf("unexpected options %+v", saved.Agent)
		}

		reloaded, err := st.Load()
		if err != nil {
			t.Fatalf("reload failed: %v", err)
		}
		if reloaded.Agent != "codex --full-auto" {
			t.Errorf("expected rewritten command, got %q", reloaded.Agent)
		}
	})
}

func TestSaveRoundTrip(t *testing.T) {
	st, path := setupTestStore(t)
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	writeState(t, path, `{
  "agent": "codex",
  "editor": "nvim",
  "shell": {"cmd": "zsh"},
  "worktrees": {
    "proj/a": {
      "name": "a",
      "branch": "feat/a",
      "path": "/tmp/proj-a",
      "repo_name": "proj",
      "repo_path": "/tmp/proj",
      "created_at": "2024-05-01T12:00:00Z",
      "pinned": true
    }
  }
}`)

	doc, err := st.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if doc.Dirty() {
		t.Error("a current-format document should not be dirty")
	}

	rec, ok := doc.Get("proj/a")
	if !ok {
		t.Fatal("expected record proj/a")
	}
	if !rec.CreatedAt.Equal(created) {
		t.Errorf("unexpected created_at %v", rec.CreatedAt)
	}

	if err := st.Save(doc); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("saved document is not JSON: %v", err)
	}
	if string(raw["editor"]) != `"nvim"` {
		t.Errorf("unknown top-level field lost, got %s", raw["editor"])
	}
	if _, ok := raw["shell"]; !ok {
		t.Error("unknown object field lost")
	}
	if !strings.Contains(string(data), `"pinned": true`) {
		t.Errorf("unknown record field lost: %s", data)
	}

	reloaded, err := st.Load()
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded.Agent != "codex" {
		t.Errorf("expected agent codex, got %q", reloaded.Agent)
	}
	again, _ := reloaded.Get("proj/a")
	if again.Branch != "feat/a" || again.RepoPath != "/tmp/proj" {
		t.Errorf("record changed across round trip: %+v", again)
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	st, path := setupTestStore(t)
	doc := NewDocument()
	if err := doc.Put(&Record{Name: "x", RepoName: "r", Path: "/tmp/r-x", Branch: "x"}); err != nil {
		t.Fatal(err)
	}
	if err := st.Save(doc); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if doc.Dirty() {
		t.Error("Save should clear the dirty flag")
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "settings.json" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("expected only settings.json, got %v", names)
	}
}

func TestSaveFailureKeepsOriginal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")
	writeState(t, path, `{"agent": "keep", "worktrees": {}}`)

	if err := os.Chmod(dir, 0o555); err != nil {
		t.Fatal(err)
	}
	defer os.Chmod(dir, 0o755)
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}

	doc := NewDocument()
	doc.SetAgent("replaced")
	var ioErr *IOError
	if err := New(path).Save(doc); !errors.As(err, &ioErr) {
		t.Fatalf("expected IOError, got %v", err)
	}

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), `"keep"`) {
		t.Errorf("original document should be untouched, got %s", data)
	}
}

func TestMigration(t *testing.T) {
	t.Run("LegacyKeysBecomeComposite", func(t *testing.T) {
		st, path := setupTestStore(t)
		writeState(t, path, `{
  "worktrees": {
    "a": {"name": "a", "branch": "a", "path": "/w/proj-a", "repo_name": "proj", "created_at": "2024-01-01T00:00:00Z"},
    "b": {"name": "b", "branch": "b", "path": "/w/other-b", "created_at": "2024-01-01T00:00:00Z"},
    "c": {"name": "c", "branch": "c", "path": "/w/elsewhere", "repo_path": "/src/third", "created_at": "2024-01-01T00:00:00Z"},
    "proj/d": {"name": "d", "branch": "d", "path": "/w/proj-d", "repo_name": "proj", "created_at": "2024-01-01T00:00:00Z"}
  }
}`)

		doc, err := st.Load()
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if !doc.Dirty() {
			t.Error("migrated document should be dirty")
		}
		for _, key := range []string{"proj/a", "other/b", "third/c", "proj/d"} {
			if _, ok := doc.Get(key); !ok {
				t.Errorf("expected key %s after migration, have %v", key, keys(doc))
			}
		}
		for key := range doc.Worktrees {
			if !strings.Contains(key, "/") {
				t.Errorf("legacy key %q survived migration", key)
			}
		}
		if len(doc.Migrations()) != 3 {
			t.Errorf("expected 3 migrations, got %d", len(doc.Migrations()))
		}

		if err := st.Save(doc); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		again, err := st.Load()
		if err != nil {
			t.Fatalf("reload failed: %v", err)
		}
		if again.Dirty() || len(again.Migrations()) != 0 {
			t.Error("re-migrating should change nothing")
		}
		if len(again.Worktrees) != 4 {
			t.Errorf("expected 4 records, got %d", len(again.Worktrees))
		}
	})

	t.Run("CollisionIsLossless", func(t *testing.T) {
		st, path := setupTestStore(t)
		writeState(t, path, `{
  "worktrees": {
    "a": {"name": "a", "branch": "old-a", "path": "/w/old-a", "repo_name": "proj", "created_at": "2024-01-01T00:00:00Z"},
    "proj/a": {"name": "a", "branch": "a", "path": "/w/proj-a", "repo_name": "proj", "created_at": "2024-01-01T00:00:00Z"}
  }
}`)
		doc, err := st.Load()
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if len(doc.Worktrees) != 2 {
			t.Fatalf("expected both records kept, got %v", keys(doc))
		}
		legacy, ok := doc.Get("proj/a-legacy")
		if !ok {
			t.Fatalf("expected proj/a-legacy, got %v", keys(doc))
		}
		if legacy.Branch != "old-a" || legacy.Name != "a-legacy" {
			t.Errorf("unexpected legacy record %+v", legacy)
		}
	})

	t.Run("SamePathDuplicateIsDropped", func(t *testing.T) {
		st, path := setupTestStore(t)
		writeState(t, path, `{
  "worktrees": {
    "a": {"name": "a", "branch": "a", "path": "/w/proj-a", "repo_name": "proj", "created_at": "2024-01-01T00:00:00Z"},
    "proj/a": {"name": "a", "branch": "a", "path": "/w/proj-a/", "repo_name": "proj", "created_at": "2024-01-01T00:00:00Z"}
  }
}`)
		doc, err := st.Load()
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if len(doc.Worktrees) != 1 {
			t.Fatalf("expected duplicate dropped, got %v", keys(doc))
		}
		if m := doc.Migrations(); len(m) != 1 || !m[0].Dropped {
			t.Errorf("expected one dropped migration, got %+v", m)
		}
	})
}

func keys(doc *Document) []string {
	var out []string
	for _, rec := range doc.Records() {
		out = append(out, rec.Key())
	}
	return out
}
