package git

import (
	"context"
	"errors"
	"os"
	"path/filepath"
)

// HasUncommittedChanges reports whether the worktree at path has staged,
// unstaged, or untracked changes.
func (g *Git) HasUncommittedChanges(ctx context.Context, path string) (bool, error) {
	out, err := g.run(ctx, path, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return out != "", nil
}

// UpdateSubmodules initializes and updates submodules of the worktree at path.
// A worktree without .gitmodules is left alone.
func (g *Git) UpdateSubmodules(ctx context.Context, path string) error {
	if _, err := os.Stat(filepath.Join(path, ".gitmodules")); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	_, err := g.fetcher.Run(ctx, path, "git", "submodule", "update", "--init", "--recursive")
	return err
}
