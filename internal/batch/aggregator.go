package batch

import (
	"sync"

	"github.com/ahrav/go-wuieval/internal/domain"
)

// Progress is a point-in-time view of a batch.
type Progress struct {
	Total     int                   `json:"total"`
	Completed []domain.ResultHandle `json:"completed"`
	Failed    int                   `json:"failed"`
	Fraction  float64               `json:"fraction"`
	Settled   bool                  `json:"settled"`
}

// Pending returns how many jobs have not settled yet.
func (p Progress) Pending() int { return p.Total - len(p.Completed) - p.Failed }

// Aggregator accumulates settlements of one batch. Completed handles are kept
// in settlement order, which is not the submission order: jobs race.
//
// Observers poll Snapshot, or wait on Changed for the next mutation and on
// Done for full settlement.
type Aggregator struct {
	mu      sync.Mutex
	state   *domain.BatchState
	changed chan struct{}
	done    chan struct{}
}

// NewAggregator creates an aggregator for a batch of total jobs.
func NewAggregator(total int) *Aggregator {
	a := &Aggregator{
		state:   domain.NewBatchState(total),
		changed: make(chan struct{}),
		done:    make(chan struct{}),
	}
	if a.state.Settled() {
		close(a.done)
	}
	return a
}

// Succeed appends the handle of a successful job. It returns false if a
// handle with the same result id was already recorded.
func (a *Aggregator) Succeed(h domain.ResultHandle) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	added, err := a.state.RecordSuccess(h)
	if err != nil || !added {
		return false, err
	}
	a.notifyLocked()
	return true, nil
}

// Fail counts one failed job.
func (a *Aggregator) Fail() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.state.RecordFailure(); err != nil {
		return err
	}
	a.notifyLocked()
	return nil
}

// Snapshot returns the current progress. It is valid before any job settles.
func (a *Aggregator) Snapshot() Progress {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

// Changed returns a channel closed at the next mutation.
func (a *Aggregator) Changed() <-chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.changed
}

// Done returns a channel closed once every job has settled.
func (a *Aggregator) Done() <-chan struct{} { return a.done }

func (a *Aggregator) snapshotLocked() Progress {
	return Progress{
		Total:     a.state.Total(),
		Completed: a.state.Completed(),
		Failed:    a.state.Failed(),
		Fraction:  a.state.Progress(),
		Settled:   a.state.Settled(),
	}
}

func (a *Aggregator) notifyLocked() {
	close(a.changed)
	a.changed = make(chan struct{})
	if a.state.Settled() {
		close(a.done)
	}
}
