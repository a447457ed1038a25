package worktree

import (
	"errors"
	"fmt"

	"github.com/drewfead/pigs/internal/git"
	"github.com/drewfead/pigs/internal/store"
)

var (
	// ErrConflict means a key or path is already taken.
	ErrConflict = errors.New("conflict")
	// ErrNotFound means a worktree, branch or pull request does not exist.
	ErrNotFound = errors.New("not found")
	// ErrPrecondition means the operation cannot run in the current state.
	ErrPrecondition = errors.New("precondition failed")
	// ErrGateDeclined means a safety gate was answered "no".
	ErrGateDeclined = fmt.Errorf("%w: declined", ErrPrecondition)
)

// storeErr maps store lookup errors onto the lifecycle taxonomy.
func storeErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNoRecord):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, store.ErrKeyExists), errors.Is(err, store.ErrPathTracked):
		return fmt.Errorf("%w: %w", ErrConflict, err)
	case errors.Is(err, store.ErrAmbiguous):
		return fmt.Errorf("%w: %w", ErrPrecondition, err)
	}
	return err
}

// gitErr maps recognized git failures onto the lifecycle taxonomy. Other
// errors, including tool errors, pass through unchanged.
func gitErr(err error) error {
	var ge *git.Error
	if !errors.As(err, &ge) {
		return err
	}
	switch ge.Reason {
	case git.ReasonNameCollision, git.ReasonBranchInUse:
		return fmt.Errorf("%w: %w", ErrConflict, err)
	case git.ReasonMissingBranch:
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case git.ReasonDirty, git.ReasonNotMerged:
		return fmt.Errorf("%w: %w", ErrPrecondition, err)
	}
	return err
}
