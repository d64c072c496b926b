package domain

// BatchState is the bookkeeping of one batch: the fixed number of jobs, the
// handles of successful jobs in settlement order and the failure count.
//
// BatchState holds no lock. The in-process aggregator guards it with a mutex;
// workflow code mutates it from a single coroutine at a time.
type BatchState struct {
	total     int
	completed []ResultHandle
	seen      map[string]struct{}
	failed    int
}

// NewBatchState creates the state for a batch of total jobs.
// The total is fixed for the lifetime of the batch.
func NewBatchState(total int) *BatchState {
	if total < 0 {
		total = 0
	}
	return &BatchState{total: total, seen: make(map[string]struct{}, total)}
}

// Total returns the number of jobs in the batch.
func (b *BatchState) Total() int { return b.total }

// Failed returns the number of failed jobs so far.
func (b *BatchState) Failed() int { return b.failed }

// CompletedCount returns the number of successful jobs so far.
func (b *BatchState) CompletedCount() int { return len(b.completed) }

// Completed returns a copy of the handles in settlement order.
func (b *BatchState) Completed() []ResultHandle {
	out := make([]ResultHandle, len(b.completed))
	copy(out, b.completed)
	return out
}

// RecordSuccess appends the handle of a job that settled successfully.
// It returns false without changing state when a handle with the same result
// id was already recorded. ErrBatchOverflow is returned if every job of the
// batch has already settled.
func (b *BatchState) RecordSuccess(h ResultHandle) (bool, error) {
	if _, dup := b.seen[h.ResultID]; dup {
		return false, nil
	}
	if b.settledCount() >= b.total {
		return false, ErrBatchOverflow
	}
	b.seen[h.ResultID] = struct{}{}
	b.completed = append(b.completed, h)
	return true, nil
}

// RecordFailure counts one failed job.
func (b *BatchState) RecordFailure() error {
	if b.settledCount() >= b.total {
		return ErrBatchOverflow
	}
	b.failed++
	return nil
}

// Progress returns completed/total. An empty batch reports 0.
func (b *BatchState) Progress() float64 {
	if b.total == 0 {
		return 0
	}
	return float64(len(b.completed)) / float64(b.total)
}

// Settled reports whether every job has either succeeded or failed.
func (b *BatchState) Settled() bool { return b.settledCount() == b.total }

func (b *BatchState) settledCount() int { return len(b.completed) + b.failed }
