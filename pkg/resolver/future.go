package resolver

import (
	"sync"

	"github.com/cuemby/resolvd/pkg/types"
)

// Future is a one-shot completion handle for a resolution in flight.
// It is fulfilled exactly once; dropping the handle does not cancel the
// underlying query.
type Future struct {
	once    sync.Once
	done    chan struct{}
	outcome types.Outcome
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// resolvedFuture returns an already-completed future.
func resolvedFuture(outcome types.Outcome) *Future {
	f := newFuture()
	f.complete(outcome)
	return f
}

// complete fulfils the future. Later calls are no-ops.
func (f *Future) complete(outcome types.Outcome) {
	f.once.Do(func() {
		f.outcome = outcome
		close(f.done)
	})
}

// Done returns a channel closed when the outcome is available.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the outcome is available and returns it.
func (f *Future) Wait() types.Outcome {
	<-f.done
	return f.outcome
}

// Outcome returns the outcome without blocking. ok is false while the
// query is still in flight.
func (f *Future) Outcome() (outcome types.Outcome, ok bool) {
	select {
	case <-f.done:
		return f.outcome, true
	default:
		return types.Outcome{}, false
	}
}
