package environment

import "context"

// Handle joins a started worker goroutine.
type Handle struct {
	done   chan struct{}
	cancel context.CancelFunc
}

// Join blocks until the worker has returned. There is no timeout: a worker
// that never observes Stopped blocks Join forever.
func (h *Handle) Join() {
	<-h.done
}

// Done is closed once the worker has returned.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Cancel aborts whatever the worker's agents are blocked on in the current
// block. It does not stop the worker; only the Stopped state does that.
func (h *Handle) Cancel() {
	h.cancel()
}
