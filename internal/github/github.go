// Package github resolves pull requests through the gh CLI.
//
// gh is optional. Its availability is probed once per command and every
// lookup degrades to a "not available" or "unknown" answer when it is absent
// or failing, so callers can fall back to plain git.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/drewfead/pigs/internal/executil"
	"github.com/drewfead/pigs/internal/logging"
)

var (
	// ErrNotAvailable means gh is not installed or cannot answer.
	ErrNotAvailable = errors.New("gh is not available")
	// ErrNotFound means the pull request does not exist.
	ErrNotFound = errors.New("pull request not found")
)

// Capability is the outcome of probing for gh.
type Capability int

const (
	CapabilityUnknown Capability = iota
	CapabilityPresent
	CapabilityAbsent
)

func (c Capability) String() string {
	switch c {
	case CapabilityPresent:
		return "present"
	case CapabilityAbsent:
		return "absent"
	default:
		return "unknown"
	}
}

// MergeState is the remote view of whether a branch was merged.
type MergeState int

const (
	// MergeUnknown must never be read as merged.
	MergeUnknown MergeState = iota
	Merged
	NotMerged
)

func (m MergeState) String() string {
	switch m {
	case Merged:
		return "merged"
	case NotMerged:
		return "not merged"
	default:
		return "unknown"
	}
}

// Resolver answers pull request questions for one command.
type Resolver struct {
	runner executil.Runner

	once       sync.Once
	capability Capability
}

// New returns a Resolver running gh through runner.
func New(runner executil.Runner) *Resolver {
	return &Resolver{runner: runner}
}

// Probe checks once whether gh can be run.
func (r *Resolver) Probe(ctx context.Context) Capability {
	r.once.Do(func() {
		_, err := r.runner.Run(ctx, "", "gh", "--version")
		switch {
		case err == nil:
			r.capability = CapabilityPresent
		case executil.IsMissing(err):
			r.capability = CapabilityAbsent
		default:
			logging.Debug("gh probe failed", "error", err)
			r.capability = CapabilityUnknown
		}
	})
	return r.capability
}

// ResolvePR returns the head branch of pull request number in repo.
func (r *Resolver) ResolvePR(ctx context.Context, repo string, number int) (string, error) {
	if r.Probe(ctx) != CapabilityPresent {
		return "", ErrNotAvailable
	}

	res, err := r.runner.Run(ctx, repo, "gh", "pr", "view", strconv.Itoa(number),
		"--json", "headRefName", "-q", ".headRefName")
	if err != nil {
		var te *executil.ToolError
		if errors.As(err, &te) && isNotFound(te.Stderr) {
			return "", fmt.Errorf("%w: #%d", ErrNotFound, number)
		}
		return "", fmt.Errorf("%w: %w", ErrNotAvailable, err)
	}

	branch := strings.TrimSpace(res.Stdout)
	if branch == "" {
		return "", fmt.Errorf("%w: #%d has no head branch", ErrNotFound, number)
	}
	return branch, nil
}

// PRMergeState reports whether a merged pull request exists for branch.
// Squash merges leave the branch unreachable from the base, so this is the
// only way to see them.
func (r *Resolver) PRMergeState(ctx context.Context, repo, branch string) MergeState {
	if branch == "" || r.Probe(ctx) != CapabilityPresent {
		return MergeUnknown
	}

	res, err := r.runner.Run(ctx, repo, "gh", "pr", "list",
		"--head", branch,
		"--state", "merged",
		"--json", "number,state",
		"--limit", "1",
	)
	if err != nil {
		logging.Warn("gh merge lookup failed", "branch", branch, "error", err)
		return MergeUnknown
	}

	var prs []struct {
		Number int    `json:"number"`
		State  string `json:"state"`
	}
	if err := json.Unmarshal([]byte(res.Stdout), &prs); err != nil {
		logging.Warn("gh merge lookup returned unexpected output", "branch", branch, "error", err)
		return MergeUnknown
	}
	for _, pr := range prs {
		if strings.EqualFold(pr.State, "MERGED") {
			return Merged
		}
	}
	return NotMerged
}

func isNotFound(stderr string) bool {
	msg := strings.ToLower(stderr)
	return strings.Contains(msg, "could not resolve to a pullrequest") ||
		strings.Contains(msg, "no pull requests found") ||
		strings.Contains(msg, "not found")
}

// ParsePRRef parses "#123" or "123" into a pull request number.
func ParsePRRef(s string) (int, bool) {
	digits := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if digits == "" {
		return 0, false
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
