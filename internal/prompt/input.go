package prompt

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Input is the process's stdin, read line by line when it is not a terminal.
type Input struct {
	reader *bufio.Reader
	file   *os.File
	tty    bool
	eof    bool
}

// NewInput wraps r. A terminal is detected when r is an *os.File.
func NewInput(r io.Reader) *Input {
	in := &Input{reader: bufio.NewReader(r)}
	if f, ok := r.(*os.File); ok {
		in.file = f
		in.tty = term.IsTerminal(int(f.Fd()))
	}
	return in
}

// IsTerminal reports whether stdin is an interactive terminal.
func (in *Input) IsTerminal() bool { return in.tty }

// File returns the underlying file, if any.
func (in *Input) File() *os.File { return in.file }

// Line returns the next trimmed line of piped input. ok is false on a
// terminal or once the input is exhausted.
func (in *Input) Line() (string, bool) {
	if in.tty || in.eof || in.reader == nil {
		return "", false
	}
	line, err := in.reader.ReadString('\n')
	if err != nil {
		in.eof = true
		if !errors.Is(err, io.EOF) || line == "" {
			return "", false
		}
	}
	return strings.TrimSpace(line), true
}

// Value returns explicit when set, else the next non-empty piped line.
func (in *Input) Value(explicit string) (string, Source, bool) {
	if v := strings.TrimSpace(explicit); v != "" {
		return v, SourceFlag, true
	}
	for {
		line, ok := in.Line()
		if !ok {
			return "", "", false
		}
		if line != "" {
			return line, SourcePipe, true
		}
	}
}

// Piped answers questions from lines of non-terminal stdin.
type Piped struct {
	Input *Input
}

// Decide implements Resolver. Unrecognized or empty lines fall through.
func (p Piped) Decide(_ context.Context, _ Question) (Decision, bool, error) {
	if p.Input == nil {
		return Decision{}, false, nil
	}
	line, ok := p.Input.Line()
	if !ok {
		return Decision{}, false, nil
	}
	switch strings.ToLower(line) {
	case "y", "yes", "true", "1":
		return Decision{Yes: true, Source: SourcePipe}, true, nil
	case "n", "no", "false", "0":
		return Decision{Yes: false, Source: SourcePipe}, true, nil
	}
	return Decision{}, false, nil
}
