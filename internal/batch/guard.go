package batch

import (
	"sync"
	"sync/atomic"

	"github.com/ahrav/go-wuieval/internal/domain"
)

// Guard is a one-shot latch owned by a batch-lifetime object. The first
// Acquire wins; every later or concurrent Acquire is a silent no-op. The latch
// is never reset.
type Guard struct {
	latched atomic.Bool
}

// Acquire sets the latch and reports whether this call set it.
// The check and the set happen in one atomic step.
func (g *Guard) Acquire() bool { return g.latched.CompareAndSwap(false, true) }

// Latched reports whether the latch has been set.
func (g *Guard) Latched() bool { return g.latched.Load() }

// Pending holds the descriptors selected upstream that have not been
// dispatched yet. It is safe for concurrent use.
type Pending struct {
	mu    sync.Mutex
	items []domain.RequestDescriptor
}

// NewPending creates a queue holding descriptors.
func NewPending(descriptors ...domain.RequestDescriptor) *Pending {
	p := &Pending{}
	p.Add(descriptors...)
	return p
}

// Add queues descriptors in order.
func (p *Pending) Add(descriptors ...domain.RequestDescriptor) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.items = append(p.items, descriptors...)
}

// Len returns the number of queued descriptors.
func (p *Pending) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}

// Drain removes and returns every queued descriptor.
func (p *Pending) Drain() []domain.RequestDescriptor {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.items
	p.items = nil
	return out
}
