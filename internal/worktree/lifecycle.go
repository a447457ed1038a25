package worktree

import (
	"fmt"

	"github.com/drewfead/pigs/internal/logging"
	"github.com/drewfead/pigs/internal/prompt"
	"github.com/drewfead/pigs/internal/store"
)

// State is a worktree's lifecycle state.
type State string

const (
	StateRequested     State = "requested"
	StateCreated       State = "created"
	StateActive        State = "active"
	StatePendingDelete State = "pending_delete"
	StateDeleted       State = "deleted"
)

// transitions lists the legal moves. Nothing leaves StateDeleted.
var transitions = map[State][]State{
	StateRequested:     {StateCreated, StateDeleted},
	StateCreated:       {StateActive, StateDeleted},
	StateActive:        {StatePendingDelete, StateActive, StateDeleted},
	StatePendingDelete: {StateActive, StateDeleted},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// lifecycle tracks one worktree through an operation and journals every move.
type lifecycle struct {
	m     *Manager
	key   string
	state State
}

func (m *Manager) track(key string, initial State) *lifecycle {
	return &lifecycle{m: m, key: key, state: initial}
}

// request starts tracking a worktree that does not exist yet.
func (m *Manager) request(key, detail string) *lifecycle {
	m.journal(&store.Event{Key: key, Kind: store.EventTransition, ToState: string(StateRequested), Detail: detail})
	return m.track(key, StateRequested)
}

// to moves the worktree to next. An illegal move is a programming error and
// is returned rather than journaled.
func (l *lifecycle) to(next State, detail string) error {
	if !CanTransition(l.state, next) {
		return fmt.Errorf("illegal transition %s -> %s for %s", l.state, next, l.key)
	}
	l.m.journal(&store.Event{
		Key:       l.key,
		Kind:      store.EventTransition,
		FromState: string(l.state),
		ToState:   string(next),
		Detail:    detail,
	})
	logging.Debug("worktree transition", "key", l.key, "from", l.state, "to", next, "detail", detail)
	l.state = next
	return nil
}

// override records a safety gate that was answered yes.
func (l *lifecycle) override(gate string, d prompt.Decision) {
	logging.Warn("safety gate overridden", "gate", gate, "key", l.key, "source", string(d.Source))
	l.m.journal(&store.Event{
		Key:       l.key,
		Kind:      store.EventOverride,
		FromState: string(l.state),
		ToState:   string(l.state),
		Detail:    fmt.Sprintf("%s overridden (%s)", gate, d.Source),
	})
	l.m.report(Notice{Key: l.key, Gate: gate, Source: d.Source})
}

// warn records a best-effort step that failed.
func (l *lifecycle) warn(step string, err error) {
	logging.Warn("best-effort step failed", "step", step, "key", l.key, "error", err)
	l.m.journal(&store.Event{
		Key:       l.key,
		Kind:      store.EventWarning,
		FromState: string(l.state),
		ToState:   string(l.state),
		Detail:    fmt.Sprintf("%s: %v", step, err),
	})
}
