package executil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrToolMissing is wrapped by errors for executables that cannot be resolved.
var ErrToolMissing = errors.New("executable not found")

// Result holds the captured output of a finished command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes a command in dir and waits for it to finish.
// Production code uses Exec; tests substitute a fake.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) (Result, error)
}

// ToolError describes an external tool that is absent or exited unsuccessfully.
type ToolError struct {
	Tool     string
	Args     []string
	Dir      string
	ExitCode int
	Stderr   string
	Missing  bool
	Err      error
}

func (e *ToolError) Error() string {
	cmdline := strings.TrimSpace(e.Tool + " " + strings.Join(e.Args, " "))
	if e.Missing {
		return fmt.Sprintf("%s: %s is not installed", cmdline, e.Tool)
	}
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.ExitCode != 0 {
		return fmt.Sprintf("%s (exit %d): %s", cmdline, e.ExitCode, msg)
	}
	return fmt.Sprintf("%s: %s", cmdline, msg)
}

func (e *ToolError) Unwrap() error { return e.Err }

// IsMissing reports whether err was caused by an absent executable.
func IsMissing(err error) bool {
	var te *ToolError
	if errors.As(err, &te) && te.Missing {
		return true
	}
	return errors.Is(err, ErrToolMissing)
}

// ExitCode returns the exit status carried by err, or -1 when err is not a ToolError.
func ExitCode(err error) int {
	var te *ToolError
	if errors.As(err, &te) {
		return te.ExitCode
	}
	return -1
}

// Exec runs commands through the sanitized PATH. Each call is bounded by
// Timeout when it is positive.
type Exec struct {
	Timeout time.Duration
}

// NewExec returns a Runner that bounds every call by timeout (0 = unbounded).
func NewExec(timeout time.Duration) *Exec {
	return &Exec{Timeout: timeout}
}

// Run executes name with args in dir and captures stdout and stderr.
// A non-zero exit is returned as *ToolError alongside the captured Result.
func (e *Exec) Run(ctx context.Context, dir, name string, args ...string) (Result, error) {
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	tool, err := Resolve(name)
	if err != nil {
		var te *ToolError
		if errors.As(err, &te) {
			te.Args, te.Dir = args, dir
		}
		return Result{ExitCode: -1}, err
	}
	cmd := tool.Command(ctx, dir, args...)
	cmd.WaitDelay = 2 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return res, nil
	}
	te := tool.Failure(ctx, dir, args, res.Stderr, err)
	res.ExitCode = te.ExitCode
	return res, te
}
