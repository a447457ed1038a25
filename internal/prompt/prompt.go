// Package prompt answers yes/no questions from an ordered chain of sources:
// explicit flags, auto-confirm mode, piped stdin, an interactive terminal
// prompt, and finally the question's default. The first source with an
// answer wins, and every Decision records which source produced it.
package prompt

import (
	"context"
	"fmt"
)

// Source identifies what produced a Decision.
type Source string

const (
	SourceFlag        Source = "flag"
	SourceAuto        Source = "auto-confirm"
	SourcePipe        Source = "pipe"
	SourceInteractive Source = "interactive"
	SourceDefault     Source = "default"
)

// Question is a yes/no question.
type Question struct {
	// ID names the question so flags can answer it, e.g. "delete.unpushed".
	ID   string
	Text string
	// Default is used when nothing else answers.
	Default bool
	// Destructive questions are rendered as warnings.
	Destructive bool
}

// Decision is an answer and where it came from.
type Decision struct {
	Yes    bool
	Source Source
}

// Override reports whether the answer was a yes that nobody typed.
func (d Decision) Override() bool {
	return d.Yes && d.Source != SourceInteractive
}

func (d Decision) String() string {
	answer := "no"
	if d.Yes {
		answer = "yes"
	}
	return fmt.Sprintf("%s (%s)", answer, d.Source)
}

// Resolver is one link of a Chain. ok is false when it has no answer.
type Resolver interface {
	Decide(ctx context.Context, q Question) (d Decision, ok bool, err error)
}

// Decider answers questions.
type Decider interface {
	Decide(ctx context.Context, q Question) (Decision, error)
}

// Chain asks each resolver in order and falls back to the question's default.
type Chain []Resolver

// Decide implements Decider.
func (c Chain) Decide(ctx context.Context, q Question) (Decision, error) {
	for _, r := range c {
		if r == nil {
			continue
		}
		d, ok, err := r.Decide(ctx, q)
		if err != nil {
			return Decision{}, fmt.Errorf("prompt %s: %w", q.ID, err)
		}
		if ok {
			return d, nil
		}
	}
	return Decision{Yes: q.Default, Source: SourceDefault}, nil
}

// Flag answers from command-line flags. Yes answers every question; Answers
// answers individual questions by ID and takes precedence over Yes.
type Flag struct {
	Yes     bool
	Answers map[string]bool
}

// Decide implements Resolver.
func (f Flag) Decide(_ context.Context, q Question) (Decision, bool, error) {
	if v, ok := f.Answers[q.ID]; ok {
		return Decision{Yes: v, Source: SourceFlag}, true, nil
	}
	if f.Yes {
		return Decision{Yes: true, Source: SourceFlag}, true, nil
	}
	return Decision{}, false, nil
}

// Auto answers yes to everything when enabled (non-interactive mode).
type Auto struct {
	Enabled bool
}

// Decide implements Resolver.
func (a Auto) Decide(_ context.Context, q Question) (Decision, bool, error) {
	if !a.Enabled {
		return Decision{}, false, nil
	}
	return Decision{Yes: true, Source: SourceAuto}, true, nil
}

// Fixed answers every question the same way. Tests use it in place of a terminal.
type Fixed struct {
	Yes    bool
	Source Source
}

// Decide implements Resolver.
func (f Fixed) Decide(_ context.Context, _ Question) (Decision, bool, error) {
	src := f.Source
	if src == "" {
		src = SourceInteractive
	}
	return Decision{Yes: f.Yes, Source: src}, true, nil
}

// Script answers questions by ID and records what was asked. Unknown
// questions fall through to the next resolver.
type Script struct {
	Answers map[string]bool
	Asked   []string
}

// Decide implements Resolver.
func (s *Script) Decide(_ context.Context, q Question) (Decision, bool, error) {
	s.Asked = append(s.Asked, q.ID)
	v, ok := s.Answers[q.ID]
	if !ok {
		return Decision{}, false, nil
	}
	return Decision{Yes: v, Source: SourceInteractive}, true, nil
}
