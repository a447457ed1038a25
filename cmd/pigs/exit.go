package main

import (
	"errors"

	"github.com/drewfead/pigs/internal/executil"
	"github.com/drewfead/pigs/internal/git"
	"github.com/drewfead/pigs/internal/store"
	"github.com/drewfead/pigs/internal/worktree"
)

// Process exit codes.
const (
	exitOK           = 0
	exitFailure      = 1
	exitConflict     = 3
	exitNotFound     = 4
	exitPrecondition = 5
	exitTool         = 6
	exitState        = 7
)

// exitCode maps an error onto the process exit code. Lifecycle sentinels win
// over the tool and state errors they may wrap.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}

	switch {
	case errors.Is(err, worktree.ErrConflict):
		return exitConflict
	case errors.Is(err, worktree.ErrNotFound):
		return exitNotFound
	case errors.Is(err, worktree.ErrPrecondition):
		return exitPrecondition
	}

	var ioErr *store.IOError
	var parseErr *store.ParseError
	if errors.As(err, &ioErr) || errors.As(err, &parseErr) {
		return exitState
	}

	var toolErr *executil.ToolError
	var gitErr *git.Error
	if errors.As(err, &toolErr) || errors.As(err, &gitErr) {
		return exitTool
	}
	return exitFailure
}
