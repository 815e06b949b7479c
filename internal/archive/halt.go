package archive

import "sync"

// Halt is the process-wide stop request. It starts lowered and can only be
// raised, once; every position polls it between segments.
type Halt struct {
	once sync.Once
	done chan struct{}
}

// NewHalt returns a lowered Halt.
func NewHalt() *Halt {
	return &Halt{done: make(chan struct{})}
}

// Raise sets the halt flag. Calls after the first have no effect.
func (h *Halt) Raise() {
	h.once.Do(func() { close(h.done) })
}

// Raised reports whether Raise has been called.
func (h *Halt) Raised() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Done returns a channel closed when the flag is raised.
func (h *Halt) Done() <-chan struct{} {
	return h.done
}
