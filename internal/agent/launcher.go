package agent

import (
	"context"
	"io"
	"os"

	"github.com/drewfead/pigs/internal/executil"
)

// Launcher runs an agent attached to the caller's terminal. The agent is
// interactive, so no timeout applies.
type Launcher struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Env    []string
}

// NewLauncher returns a Launcher wired to the process's standard streams.
func NewLauncher() *Launcher {
	return &Launcher{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
}

// Launch runs cmd in cmd.Dir and waits for it to exit.
func (l *Launcher) Launch(ctx context.Context, cmd Command) error {
	tool, err := executil.Resolve(cmd.Program)
	if err != nil {
		return err
	}
	c := tool.Command(ctx, cmd.Dir, cmd.Args...)
	c.Stdin = l.Stdin
	c.Stdout = l.Stdout
	c.Stderr = l.Stderr
	if l.Env != nil {
		c.Env = l.Env
	}

	if err := c.Run(); err != nil {
		return tool.Failure(ctx, cmd.Dir, cmd.Args, "", err)
	}
	return nil
}
