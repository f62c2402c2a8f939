package workflow

import (
	"errors"
	"fmt"
)

// State is a step of a single workflow run.
type State string

const (
	StateStart      State = "START"
	StateResolving  State = "RESOLVING"
	StateDeciding   State = "DECIDING"
	StatePublishing State = "PUBLISHING"
	StateSkipped    State = "SKIPPED"
	StateDone       State = "DONE"
	StateFailed     State = "FAILED"
)

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Signal is the outcome of the work done in a state.
type Signal string

const (
	SignalAccepted      Signal = "accepted"
	SignalRejected      Signal = "rejected"
	SignalResolved      Signal = "resolved"
	SignalResolveFailed Signal = "resolve_failed"
	SignalMatched       Signal = "matched"
	SignalNotMatched    Signal = "not_matched"
	SignalPublished     Signal = "published"
	SignalPublishFailed Signal = "publish_failed"
	SignalFinished      Signal = "finished"
)

var ErrInvalidTransition = errors.New("workflow: invalid transition")

var transitions = map[State]map[Signal]State{
	StateStart: {
		SignalAccepted: StateResolving,
		SignalRejected: StateFailed,
	},
	StateResolving: {
		SignalResolved:      StateDeciding,
		SignalResolveFailed: StateFailed,
	},
	StateDeciding: {
		SignalMatched:    StatePublishing,
		SignalNotMatched: StateSkipped,
	},
	StatePublishing: {
		SignalPublished:     StateDone,
		SignalPublishFailed: StateFailed,
	},
	StateSkipped: {
		SignalFinished: StateDone,
	},
}

// Transition returns the state reached from "from" on signal.
func Transition(from State, signal Signal) (State, error) {
	to, ok := transitions[from][signal]
	if !ok {
		return from, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, from, signal)
	}
	return to, nil
}
