package executil

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestWithPath(t *testing.T) {
	env := []string{"HOME=/home/u", "PATH=/evil", "TERM=xterm", "PATH=/worse"}
	out := withPath(env, []string{"/usr/bin", "/bin"})

	var paths []string
	for _, e := range out {
		if strings.HasPrefix(e, "PATH=") {
			paths = append(paths, e)
		}
	}
	want := "PATH=/usr/bin" + string(os.PathListSeparator) + "/bin"
	if len(paths) != 1 || paths[0] != want {
		t.Errorf("expected single sanitized PATH, got %v", paths)
	}
	if len(out) != 3 {
		t.Errorf("expected 3 entries, got %d", len(out))
	}
}

func TestLocateMissing(t *testing.T) {
	_, err := locate("definitely-not-a-real-tool-xyz", []string{t.TempDir()})
	if !errors.Is(err, ErrToolMissing) {
		t.Fatalf("expected ErrToolMissing, got %v", err)
	}
}

func TestResolve(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses unix permission bits")
	}
	root := t.TempDir()
	safe := filepath.Join(root, "safe")
	open := filepath.Join(root, "open")
	for _, dir := range []string{safe, open} {
		if err := os.Mkdir(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Chmod(open, 0o777); err != nil {
		t.Fatal(err)
	}
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(filepath.Join(safe, "pigs-tool-a"), script, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(open, "pigs-tool-b"), script, 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", open+string(os.PathListSeparator)+safe)

	t.Run("UserPathFirst", func(t *testing.T) {
		tool, err := Resolve("pigs-tool-a")
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if tool.Path != filepath.Join(safe, "pigs-tool-a") {
			t.Errorf("unexpected path %s", tool.Path)
		}
		var path string
		for _, kv := range tool.Env {
			if v, ok := strings.CutPrefix(kv, "PATH="); ok {
				path = v
			}
		}
		if !strings.HasPrefix(path, safe) || strings.Contains(path, open) {
			t.Errorf("expected sanitized PATH starting with %s, got %s", safe, path)
		}
	})

	t.Run("WritableDirSkipped", func(t *testing.T) {
		_, err := Resolve("pigs-tool-b")
		var te *ToolError
		if !errors.As(err, &te) || !te.Missing || te.Tool != "pigs-tool-b" {
			t.Fatalf("expected missing ToolError, got %v", err)
		}
		if !IsMissing(err) || !errors.Is(err, ErrToolMissing) {
			t.Errorf("expected missing classification, got %v", err)
		}
	})
}

func TestExecMissingTool(t *testing.T) {
	_, err := NewExec(0).Run(context.Background(), t.TempDir(), "definitely-not-a-real-tool-xyz")
	if err == nil {
		t.Fatal("expected error for missing tool")
	}
	if !IsMissing(err) {
		t.Errorf("expected IsMissing, got %v", err)
	}
}

func TestExecExitCode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	if _, err := Resolve("sh"); err != nil {
		t.Skip("sh not available")
	}

	t.Run("Success", func(t *testing.T) {
		res, err := NewExec(0).Run(context.Background(), t.TempDir(), "sh", "-c", "echo hello")
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if strings.TrimSpace(res.Stdout) != "hello" {
			t.Errorf("expected 'hello', got %q", res.Stdout)
		}
	})

	t.Run("NonZero", func(t *testing.T) {
		res, err := NewExec(0).Run(context.Background(), t.TempDir(), "sh", "-c", "echo oops >&2; exit 3")
		if err == nil {
			t.Fatal("expected error")
		}
		if ExitCode(err) != 3 || res.ExitCode != 3 {
			t.Errorf("expected exit code 3, got %d / %d", ExitCode(err), res.ExitCode)
		}
		if IsMissing(err) {
			t.Error("non-zero exit must not be reported as missing")
		}
		if !strings.Contains(err.Error(), "oops") {
			t.Errorf("expected stderr in message, got %q", err.Error())
		}
	})

	t.Run("Timeout", func(t *testing.T) {
		_, err := NewExec(50*time.Millisecond).Run(context.Background(), t.TempDir(), "sh", "-c", "sleep 5")
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
	})
}

func TestSafeDirRejectsWorldWritable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits not meaningful")
	}
	dir := filepath.Join(t.TempDir(), "ww")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(dir, 0o777); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		t.Fatal(err)
	}
	if safeDir(info) {
		t.Error("expected world-writable dir to be unsafe")
	}
}
