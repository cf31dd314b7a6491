package core

import (
	"fmt"
	"slices"
	"sync/atomic"
)

// State is the lifecycle state of a Server.
type State int32

const (
	StateUnstarted State = iota
	StateStarting
	StateReady
	StateRunning
	StateStopping
	StateStopped
	// StateFailed is terminal and only reachable from StateStarting.
	StateFailed
)

// String returns the lower-case name of the state.
func (s State) String() string {
	switch s {
	case StateUnstarted:
		return "unstarted"
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// validTransitions lists, for each state, the states it may move to.
var validTransitions = map[State][]State{
	StateUnstarted: {StateStarting},
	StateStarting:  {StateReady, StateFailed},
	StateReady:     {StateRunning},
	StateRunning:   {StateStopping},
	StateStopping:  {StateStopped},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to State) bool {
	return slices.Contains(validTransitions[from], to)
}

// stateMachine holds a State that only changes along validTransitions.
type stateMachine struct {
	v atomic.Int32
}

func (m *stateMachine) load() State {
	return State(m.v.Load())
}

// transition moves from one state to another. An illegal transition or a
// concurrent change of the current state is a programmer error and panics.
func (m *stateMachine) transition(from, to State) {
	if !CanTransition(from, to) {
		panic(fmt.Sprintf("ldapenv: illegal state transition %s -> %s", from, to))
	}
	if !m.v.CompareAndSwap(int32(from), int32(to)) {
		panic(fmt.Sprintf("ldapenv: state transition %s -> %s from state %s", from, to, m.load()))
	}
}
