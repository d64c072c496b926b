package batch

import (
	"context"
	"sync/atomic"
)

// Dispatcher ties the pending descriptors of one view to a single dispatch.
// Trigger may be called any number of times, from any goroutine; the batch is
// dispatched at most once.
type Dispatcher struct {
	pending *Pending
	orch    *Orchestrator
	guard   Guard
	batch   atomic.Pointer[Batch]
}

// NewDispatcher creates a dispatcher draining pending into orch.
func NewDispatcher(pending *Pending, orch *Orchestrator) *Dispatcher {
	return &Dispatcher{pending: pending, orch: orch}
}

// Trigger dispatches the pending descriptors if no dispatch happened yet.
// It reports true only for the call that dispatched. Later calls return the
// existing batch, which may still be nil while the winning call is
// dispatching. With nothing pending Trigger does nothing and leaves the latch
// unset.
func (d *Dispatcher) Trigger(ctx context.Context) (*Batch, bool) {
	if d.pending.Len() == 0 && !d.guard.Latched() {
		return nil, false
	}
	if !d.guard.Acquire() {
		return d.batch.Load(), false
	}

	// Clearing pending before dispatch keeps the same descriptors from
	// reaching a second, unrelated trigger.
	descriptors := d.pending.Drain()
	b := d.orch.Dispatch(ctx, descriptors)
	d.batch.Store(b)
	return b, true
}

// Batch returns the dispatched batch, or nil before the first Trigger.
func (d *Dispatcher) Batch() *Batch { return d.batch.Load() }
