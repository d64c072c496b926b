package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-wuieval/internal/domain"
)

func handle(id string) domain.ResultHandle {
	return domain.ResultHandle{ResultID: id, DisplayName: id, Kind: domain.InputURL}
}

func TestAggregator_SnapshotBeforeSettlement(t *testing.T) {
	a := NewAggregator(2)
	p := a.Snapshot()
	assert.Equal(t, 2, p.Total)
	assert.Empty(t, p.Completed)
	assert.Equal(t, 0, p.Failed)
	assert.Equal(t, 0.0, p.Fraction)
	assert.False(t, p.Settled)
	assert.Equal(t, 2, p.Pending())
}

func TestAggregator_ChangedFiresPerMutation(t *testing.T) {
	a := NewAggregator(2)

	ch := a.Changed()
	added, err := a.Succeed(handle("r1"))
	require.NoError(t, err)
	require.True(t, added)

	select {
	case <-ch:
	default:
		t.Fatal("changed channel should be closed after a success")
	}

	next := a.Changed()
	select {
	case <-next:
		t.Fatal("a fresh changed channel must stay open until the next mutation")
	default:
	}

	require.NoError(t, a.Fail())
	<-next
	<-a.Done()

	p := a.Snapshot()
	assert.True(t, p.Settled)
	assert.Equal(t, 0.5, p.Fraction)
}

func TestAggregator_DuplicateDoesNotNotify(t *testing.T) {
	a := NewAggregator(3)
	_, err := a.Succeed(handle("r1"))
	require.NoError(t, err)

	ch := a.Changed()
	added, err := a.Succeed(handle("r1"))
	require.NoError(t, err)
	assert.False(t, added)

	select {
	case <-ch:
		t.Fatal("duplicate must not count as a mutation")
	default:
	}
	assert.Len(t, a.Snapshot().Completed, 1)
}

func TestAggregator_RejectsOverflow(t *testing.T) {
	a := NewAggregator(1)
	require.NoError(t, a.Fail())

	_, err := a.Succeed(handle("late"))
	assert.ErrorIs(t, err, domain.ErrBatchOverflow)
	assert.ErrorIs(t, a.Fail(), domain.ErrBatchOverflow)

	p := a.Snapshot()
	assert.Equal(t, 1, len(p.Completed)+p.Failed)
}

func TestAggregator_EmptyIsDone(t *testing.T) {
	a := NewAggregator(0)
	select {
	case <-a.Done():
	default:
		t.Fatal("empty aggregator should be done")
	}
	assert.Equal(t, 0.0, a.Snapshot().Fraction)
}
