// Package executil runs external tools (git, gh, agents) with a sanitized PATH
// and reports their failures as *ToolError.
package executil

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// fallbackDirs are searched after the user's PATH, and alone when no PATH
// entry survives sanitizing.
var fallbackDirs = []string{
	"/usr/local/bin",
	"/opt/homebrew/bin",
	"/usr/bin",
	"/bin",
}

// Tool is a resolved executable together with the environment it runs in.
type Tool struct {
	Name string
	Path string
	Env  []string
}

// Resolve finds name on the sanitized search path. An executable that cannot
// be found is reported as a *ToolError with Missing set.
func Resolve(name string) (*Tool, error) {
	dirs := searchDirs(filepath.SplitList(os.Getenv("PATH")))
	path, err := locate(name, dirs)
	if err != nil {
		return nil, &ToolError{Tool: name, ExitCode: -1, Missing: true, Err: err}
	}
	return &Tool{
		Name: name,
		Path: path,
		Env:  withPath(os.Environ(), dirs),
	}, nil
}

// Command builds a command for t bound to ctx and running in dir.
func (t *Tool) Command(ctx context.Context, dir string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, t.Path, args...)
	cmd.Dir = dir
	cmd.Env = t.Env
	return cmd
}

// Failure classifies err, returned by running t with args, as a *ToolError.
// Cancellation by ctx is kept in the error chain.
func (t *Tool) Failure(ctx context.Context, dir string, args []string, stderr string, err error) *ToolError {
	te := &ToolError{Tool: t.Name, Args: args, Dir: dir, ExitCode: -1, Stderr: stderr, Err: err}
	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr):
		te.ExitCode = exitErr.ExitCode()
	case errors.Is(err, exec.ErrNotFound):
		te.Missing = true
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		te.Err = fmt.Errorf("%w: %w", ctxErr, err)
	}
	return te
}

// searchDirs keeps the absolute PATH entries that exist and are not writable
// by group or others, followed by the fallback dirs. Duplicates are dropped.
func searchDirs(pathList []string) []string {
	var dirs []string
	seen := make(map[string]bool)
	add := func(dir string, checked bool) {
		dir = filepath.Clean(dir)
		if dir == "" || !filepath.IsAbs(dir) || seen[dir] {
			return
		}
		if checked {
			info, err := os.Stat(dir)
			if err != nil || !info.IsDir() || !safeDir(info) {
				return
			}
		}
		seen[dir] = true
		dirs = append(dirs, dir)
	}

	for _, dir := range pathList {
		add(dir, true)
	}
	for _, dir := range fallbackDirs {
		add(dir, true)
	}
	if len(dirs) == 0 {
		for _, dir := range fallbackDirs {
			add(dir, false)
		}
	}
	return dirs
}

func safeDir(info os.FileInfo) bool {
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o022 == 0
}

// locate returns the executable for name. Names containing a path separator
// are used as given; bare names are looked up in dirs in order.
func locate(name string, dirs []string) (string, error) {
	if strings.ContainsRune(name, os.PathSeparator) {
		path := filepath.Clean(name)
		if executable(path) {
			return path, nil
		}
		return "", fmt.Errorf("%w: %s", ErrToolMissing, name)
	}

	for _, dir := range dirs {
		path := filepath.Join(dir, name)
		if runtime.GOOS == "windows" && filepath.Ext(name) == "" {
			path += ".exe"
		}
		if executable(path) {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %s not found in %s", ErrToolMissing, name,
		strings.Join(dirs, string(os.PathListSeparator)))
}

func executable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return runtime.GOOS == "windows" || info.Mode().Perm()&0o111 != 0
}

// withPath returns env with every PATH entry replaced by dirs.
func withPath(env []string, dirs []string) []string {
	out := make([]string, 0, len(env)+1)
	for _, kv := range env {
		if !strings.HasPrefix(kv, "PATH=") {
			out = append(out, kv)
		}
	}
	return append(out, "PATH="+strings.Join(dirs, string(os.PathListSeparator)))
}
