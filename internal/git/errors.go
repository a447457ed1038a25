package git

import (
	"errors"
	"fmt"
	"strings"

	"github.com/drewfead/pigs/internal/executil"
)

// Reason classifies git failures callers can act on.
type Reason string

const (
	ReasonNameCollision Reason = "name collision"
	ReasonBranchInUse   Reason = "branch in use"
	ReasonMissingBranch Reason = "missing branch"
	ReasonDirty         Reason = "dirty worktree"
	ReasonNotMerged     Reason = "branch not merged"
)

// Error is a recognized git failure.
type Error struct {
	Reason Reason
	Op     string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("git %s: %s: %s", e.Op, e.Reason, e.Detail)
	}
	return fmt.Sprintf("git %s: %s", e.Op, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// IsReason reports whether err is a git Error with the given reason.
func IsReason(err error, reason Reason) bool {
	var ge *Error
	return errors.As(err, &ge) && ge.Reason == reason
}

// stderr patterns, matched case-insensitively.
var reasonPatterns = []struct {
	reason   Reason
	patterns []string
}{
	{ReasonBranchInUse, []string{"is already checked out", "is already used by worktree", "already checked out at"}},
	{ReasonNameCollision, []string{"already exists"}},
	{ReasonMissingBranch, []string{"invalid reference", "not a valid object name", "not a valid branch name", "unknown revision", "couldn't find remote ref", "is not a commit"}},
	{ReasonDirty, []string{"contains modified or untracked files", "use --force to delete it"}},
	{ReasonNotMerged, []string{"is not fully merged"}},
}

// classify turns a tool failure into an *Error when stderr matches one of
// allowed; otherwise err is returned unchanged.
func classify(op string, err error, allowed ...Reason) error {
	var te *executil.ToolError
	if !errors.As(err, &te) || te.Missing {
		return err
	}
	msg := strings.ToLower(te.Stderr)
	for _, rp := range reasonPatterns {
		if !allowedReason(rp.reason, allowed) {
			continue
		}
		for _, p := range rp.patterns {
			if strings.Contains(msg, p) {
				return &Error{Reason: rp.reason, Op: op, Detail: firstLine(te.Stderr), Err: err}
			}
		}
	}
	return err
}

func allowedReason(r Reason, allowed []Reason) bool {
	for _, a := range allowed {
		if a == r {
			return true
		}
	}
	return false
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
