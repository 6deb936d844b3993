package environment

import (
	"fmt"
	"sync/atomic"
)

// State is the lifecycle phase of an environment.
type State int32

const (
	// Initialization means the environment was created but not started.
	Initialization State = iota
	// Running means the worker is active and unblocked.
	Running
	// Paused means the worker is active but blocked on its PauseSignal.
	Paused
	// Stopped is terminal; the worker has exited or is exiting.
	Stopped
)

func (s State) String() string {
	switch s {
	case Initialization:
		return "initialization"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// AtomicState is the lifecycle cell shared between the manager and the
// worker goroutine. State is the only coordination variable, so plain
// loads and stores are enough.
type AtomicState struct {
	v atomic.Int32
}

// NewAtomicState returns a cell holding s.
func NewAtomicState(s State) *AtomicState {
	a := &AtomicState{}
	a.v.Store(int32(s))
	return a
}

func (a *AtomicState) Load() State {
	return State(a.v.Load())
}

func (a *AtomicState) Store(s State) {
	a.v.Store(int32(s))
}

// CompareAndSwap stores next only if the cell still holds prev.
func (a *AtomicState) CompareAndSwap(prev, next State) bool {
	return a.v.CompareAndSwap(int32(prev), int32(next))
}
