package git

import (
	"context"
	"strings"
)

// Worktree is one entry of "git worktree list --porcelain".
type Worktree struct {
	Path     string
	Head     string
	Branch   string
	Bare     bool
	Detached bool
	Locked   bool
	// Prunable is set when git knows the directory is gone.
	Prunable bool
}

// AddOptions describes a new worktree.
type AddOptions struct {
	Path   string
	Branch string
	// Create makes a new branch starting at StartPoint (HEAD when empty).
	Create     bool
	StartPoint string
}

// WorktreeAdd creates a linked worktree of repo.
func (g *Git) WorktreeAdd(ctx context.Context, repo string, opts AddOptions) error {
	args := []string{"worktree", "add"}
	if opts.Create {
		args = append(args, "-b", opts.Branch, opts.Path)
		if opts.StartPoint != "" {
			args = append(args, opts.StartPoint)
		}
	} else {
		args = append(args, opts.Path, opts.Branch)
	}
	_, err := g.run(ctx, repo, args...)
	return classify("worktree add", err, ReasonBranchInUse, ReasonNameCollision, ReasonMissingBranch)
}

// WorktreeRemove removes the worktree at path. A dirty worktree without force
// fails with ReasonDirty.
func (g *Git) WorktreeRemove(ctx context.Context, repo, path string, force bool) error {
	args := []string{"worktree", "remove"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, path)
	_, err := g.run(ctx, repo, args...)
	return classify("worktree remove", err, ReasonDirty)
}

// WorktreePrune drops git's bookkeeping for worktrees whose directories are gone.
func (g *Git) WorktreePrune(ctx context.Context, repo string) error {
	_, err := g.run(ctx, repo, "worktree", "prune")
	return err
}

// ListWorktrees returns git's own view of the worktrees of repo, primary first.
func (g *Git) ListWorktrees(ctx context.Context, repo string) ([]Worktree, error) {
	out, err := g.run(ctx, repo, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, err
	}
	return parseWorktreeList(out), nil
}

func parseWorktreeList(output string) []Worktree {
	var worktrees []Worktree
	var cur *Worktree

	flush := func() {
		if cur != nil && cur.Path != "" {
			worktrees = append(worktrees, *cur)
		}
		cur = nil
	}

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			flush()
			continue
		}
		key, value, _ := strings.Cut(line, " ")
		if key == "worktree" {
			flush()
			cur = &Worktree{Path: value}
			continue
		}
		if cur == nil {
			continue
		}
		switch key {
		case "HEAD":
			cur.Head = value
		case "branch":
			cur.Branch = strings.TrimPrefix(value, "refs/heads/")
		case "bare":
			cur.Bare = true
		case "detached":
			cur.Detached = true
		case "locked":
			cur.Locked = true
		case "prunable":
			cur.Prunable = true
		}
	}
	flush()
	return worktrees
}
