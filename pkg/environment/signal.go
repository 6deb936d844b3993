package environment

import (
	"sync"
	"time"
)

// PauseSignal blocks a paused worker and wakes it again. The mutex guards no
// data of its own; it only exists so Notify and Wait cannot interleave
// between the worker's state check and its call to cond.Wait.
type PauseSignal struct {
	mu      sync.Mutex
	cond    *sync.Cond
	changed chan struct{}
}

// NewPauseSignal returns a ready to use signal.
func NewPauseSignal() *PauseSignal {
	s := &PauseSignal{changed: make(chan struct{})}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Wait blocks while state is Paused and returns the first non-paused state
// it observes. The predicate is re-checked after every wake.
func (s *PauseSignal) Wait(state *AtomicState) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		cur := state.Load()
		if cur != Paused {
			return cur
		}
		s.cond.Wait()
	}
}

// Notify wakes every goroutine blocked in Wait or Sleep. Callers store the
// new state before notifying.
func (s *PauseSignal) Notify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cond.Broadcast()
	close(s.changed)
	s.changed = make(chan struct{})
}

// Sleep waits for d. Only a transition to Stopped cuts the wait short; a
// pause and resume in the middle of the gap leaves the sampled delay intact.
func (s *PauseSignal) Sleep(d time.Duration, state *AtomicState) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	for {
		s.mu.Lock()
		changed := s.changed
		s.mu.Unlock()

		// Checked after grabbing the channel so a Notify in between is not lost.
		if state.Load() == Stopped {
			return
		}
		select {
		case <-timer.C:
			return
		case <-changed:
		}
	}
}
