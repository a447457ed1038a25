package executil

import (
	"context"
	"strings"
	"sync"
)

// Call records one command seen by a Fake.
type Call struct {
	Dir  string
	Name string
	Args []string
}

// String renders the call as a command line.
func (c Call) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Response is the canned outcome of a matched command. A non-zero ExitCode
// produces a *ToolError; Missing simulates an absent executable.
type Response struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Missing  bool
	Err      error
}

type fakeRule struct {
	name   string
	prefix []string
	resp   Response
}

// Fake is a Runner returning canned responses, matched by command name and
// argument prefix in registration order. Unmatched commands succeed with no
// output unless a fallback Runner is set.
type Fake struct {
	mu       sync.Mutex
	rules    []fakeRule
	calls    []Call
	fallback Runner
}

// NewFake returns a Fake delegating unmatched commands to fallback (may be nil).
func NewFake(fallback Runner) *Fake {
	return &Fake{fallback: fallback}
}

// On registers resp for commands named name whose arguments start with prefix.
func (f *Fake) On(name string, prefix []string, resp Response) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, fakeRule{name: name, prefix: prefix, resp: resp})
	return f
}

// Calls returns the commands seen so far.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Called reports whether a command with the given name and argument prefix ran.
func (f *Fake) Called(name string, prefix ...string) bool {
	for _, c := range f.Calls() {
		if c.Name == name && hasPrefix(c.Args, prefix) {
			return true
		}
	}
	return false
}

// Run implements Runner.
func (f *Fake) Run(ctx context.Context, dir, name string, args ...string) (Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Dir: dir, Name: name, Args: append([]string(nil), args...)})
	var matched *Response
	for i := range f.rules {
		r := f.rules[i]
		if r.name == name && hasPrefix(args, r.prefix) {
			matched = &r.resp
			break
		}
	}
	f.mu.Unlock()

	if matched == nil {
		if f.fallback != nil {
			return f.fallback.Run(ctx, dir, name, args...)
		}
		return Result{}, nil
	}

	resp := *matched
	res := Result{Stdout: resp.Stdout, Stderr: resp.Stderr, ExitCode: resp.ExitCode}
	switch {
	case resp.Missing:
		res.ExitCode = -1
		return res, &ToolError{Tool: name, Args: args, Dir: dir, ExitCode: -1, Missing: true, Err: ErrToolMissing}
	case resp.ExitCode != 0 || resp.Err != nil:
		return res, &ToolError{Tool: name, Args: args, Dir: dir, ExitCode: resp.ExitCode, Stderr: resp.Stderr, Err: resp.Err}
	}
	return res, nil
}

func hasPrefix(args, prefix []string) bool {
	if len(args) < len(prefix) {
		return false
	}
	for i, p := range prefix {
		if args[i] != p {
			return false
		}
	}
	return true
}
