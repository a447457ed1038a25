package git

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// BranchExists reports whether a local branch exists in repo.
func (g *Git) BranchExists(ctx context.Context, repo, branch string) (bool, error) {
	if branch == "" {
		return false, nil
	}
	return g.probe(ctx, repo, "show-ref", "--verify", "--quiet", "refs/heads/"+branch)
}

// RemoteBranchExists reports whether a remote-tracking branch exists in repo.
func (g *Git) RemoteBranchExists(ctx context.Context, repo, remote, branch string) (bool, error) {
	if branch == "" {
		return false, nil
	}
	return g.probe(ctx, repo, "show-ref", "--verify", "--quiet", fmt.Sprintf("refs/remotes/%s/%s", remote, branch))
}

// DeleteBranch deletes a local branch. Without force an unmerged branch fails
// with ReasonNotMerged.
func (g *Git) DeleteBranch(ctx context.Context, repo, branch string, force bool) error {
	flag := "-d"
	if force {
		flag = "-D"
	}
	_, err := g.run(ctx, repo, "branch", flag, branch)
	return classify("branch delete", err, ReasonNotMerged, ReasonBranchInUse, ReasonMissingBranch)
}

// IsBranchMerged reports whether branch is reachable from the default branch of repo.
func (g *Git) IsBranchMerged(ctx context.Context, repo, branch string) (bool, error) {
	base := g.DefaultBranch(ctx, repo)
	if base == branch {
		return true, nil
	}
	if ok, err := g.BranchExists(ctx, repo, base); err != nil {
		return false, err
	} else if !ok {
		if ok, _ := g.RemoteBranchExists(ctx, repo, "origin", base); !ok {
			return false, nil
		}
		base = "origin/" + base
	}
	return g.probe(ctx, repo, "merge-base", "--is-ancestor", branch, base)
}

// Upstream returns the upstream ref of branch, or "" when none is configured.
func (g *Git) Upstream(ctx context.Context, dir, branch string) string {
	out, err := g.run(ctx, dir, "rev-parse", "--abbrev-ref", "--symbolic-full-name", branch+"@{upstream}")
	if err != nil {
		return ""
	}
	return out
}

// HasUnpushedCommits reports whether branch has commits that exist nowhere
// else. With an upstream that is "ahead of upstream"; without one it is
// "reachable from neither the default branch nor any remote-tracking branch".
func (g *Git) HasUnpushedCommits(ctx context.Context, dir, branch string) (bool, error) {
	if branch == "" {
		return false, nil
	}

	var out string
	var err error
	if upstream := g.Upstream(ctx, dir, branch); upstream != "" {
		out, err = g.run(ctx, dir, "rev-list", "--count", upstream+".."+branch)
	} else {
		args := []string{"rev-list", "--count", branch, "--not", "--remotes"}
		base := g.DefaultBranch(ctx, dir)
		if ok, _ := g.BranchExists(ctx, dir, base); ok && base != branch {
			args = append(args, base)
		}
		out, err = g.run(ctx, dir, args...)
	}
	if err != nil {
		return false, err
	}

	n, err := strconv.Atoi(strings.TrimSpace(out))
	if err != nil {
		return false, fmt.Errorf("parse rev-list count %q: %w", out, err)
	}
	return n > 0, nil
}
