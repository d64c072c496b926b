package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-wuieval/internal/domain"
	"github.com/ahrav/go-wuieval/pkg/events"
)

var errStoreDown = errors.New("store unavailable")

type fetchResponse struct {
	results []domain.MetricResult
	err     error
}

// scriptedStore replays one response per FetchResults call. Once the script
// runs out the last response repeats.
type scriptedStore struct {
	mu        sync.Mutex
	meta      domain.InputMetadata
	metaErr   error
	script    []fetchResponse
	calls     int
	callTimes []time.Time
}

func (s *scriptedStore) FetchInputMetadata(_ context.Context, _ string) (domain.InputMetadata, error) {
	return s.meta, s.metaErr
}

func (s *scriptedStore) FetchResults(_ context.Context, _ string) ([]domain.MetricResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callTimes = append(s.callTimes, time.Now())
	i := s.calls
	s.calls++
	if len(s.script) == 0 {
		return nil, nil
	}
	if i >= len(s.script) {
		i = len(s.script) - 1
	}
	r := s.script[i]
	return r.results, r.err
}

func (s *scriptedStore) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *scriptedStore) CallTimes() []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Time(nil), s.callTimes...)
}

func results(ids ...string) []domain.MetricResult {
	out := make([]domain.MetricResult, len(ids))
	for i, id := range ids {
		out[i] = domain.MetricResult{MetricID: id, Results: []string{"ok"}}
	}
	return out
}

func metadata(ids ...string) domain.InputMetadata {
	return domain.InputMetadata{ID: "input-1", Name: "site", MetricsRequested: ids}
}

func TestSession_ConvergesOnThirdTick(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		store := &scriptedStore{
			meta: metadata("m1", "m2", "m3"),
			script: []fetchResponse{
				{results: nil},
				{results: results("m1")},
				{results: results("m1", "m2")},
				{results: results("m1", "m2", "m3")},
			},
		}
		sink := events.NewMemorySink()
		p := New(store, DefaultConfig(), WithEventSink(sink))
		start := time.Now()

		s, err := p.Open(t.Context(), "input-1")
		require.NoError(t, err)
		defer s.Close()
		assert.Equal(t, StatePolling, s.State())
		assert.Equal(t, 0, s.Observed())

		for tick, want := range []int{1, 2} {
			time.Sleep(DefaultInterval)
			synctest.Wait()
			assert.Equal(t, StatePolling, s.State(), "tick %d", tick+1)
			assert.Equal(t, want, s.Observed(), "tick %d", tick+1)
		}

		time.Sleep(DefaultInterval)
		synctest.Wait()
		assert.Equal(t, StateConverged, s.State())
		assert.Equal(t, 3, s.Ticks())
		<-s.Done()

		// Nothing is queried after convergence.
		time.Sleep(10 * DefaultInterval)
		synctest.Wait()
		assert.Equal(t, 4, store.Calls())

		times := store.CallTimes()
		require.Len(t, times, 4)
		for i, at := range times {
			assert.Equal(t, time.Duration(i)*DefaultInterval, at.Sub(start))
		}

		converged := sink.OfType(string(domain.EventTypePollConverged))
		require.Len(t, converged, 1)
		assert.JSONEq(t, `{"input_id":"input-1","expected_count":3,"ticks":3}`, string(converged[0].Payload))
	})
}

func TestOpen_ZeroExpectedNeverPolls(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		store := &scriptedStore{meta: metadata()}
		s, err := New(store, DefaultConfig()).Open(t.Context(), "input-1")
		require.NoError(t, err)

		assert.Equal(t, StateIdle, s.State())
		<-s.Done()

		time.Sleep(5 * DefaultInterval)
		synctest.Wait()
		assert.Equal(t, 0, store.Calls())
		assert.Equal(t, 0, s.Ticks())
		s.Close()
		assert.Equal(t, StateIdle, s.State())
	})
}

func TestOpen_AlreadyComplete(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		store := &scriptedStore{
			meta:   metadata("m1", "m2"),
			script: []fetchResponse{{results: results("m2", "m1")}},
		}
		s, err := New(store, DefaultConfig()).Open(t.Context(), "input-1")
		require.NoError(t, err)

		assert.Equal(t, StateConverged, s.State())
		time.Sleep(5 * DefaultInterval)
		synctest.Wait()
		assert.Equal(t, 1, store.Calls())
	})
}

func TestOpen_MetadataFailure(t *testing.T) {
	store := &scriptedStore{metaErr: errStoreDown}
	s, err := New(store, DefaultConfig()).Open(context.Background(), "input-1")
	assert.Nil(t, s)
	assert.ErrorIs(t, err, errStoreDown)

	store = &scriptedStore{meta: domain.InputMetadata{MetricsRequested: []string{"m1"}}}
	_, err = New(store, DefaultConfig()).Open(context.Background(), "input-1")
	assert.ErrorIs(t, err, domain.ErrMissingInputID)
}

func TestSession_FailedTicksAreNoOps(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		store := &scriptedStore{
			meta: metadata("m1", "m2"),
			script: []fetchResponse{
				{err: errStoreDown},
				{err: errStoreDown},
				{results: results("m1")},
				{err: errStoreDown},
				{results: results("m1", "m2")},
			},
		}
		s, err := New(store, DefaultConfig()).Open(t.Context(), "input-1")
		require.NoError(t, err)
		defer s.Close()
		assert.Equal(t, StatePolling, s.State(), "a failed initial query counts as zero observed")

		time.Sleep(DefaultInterval)
		synctest.Wait()
		assert.Equal(t, 0, s.Observed())
		assert.Equal(t, StatePolling, s.State())

		time.Sleep(DefaultInterval)
		synctest.Wait()
		assert.Equal(t, 1, s.Observed())

		time.Sleep(DefaultInterval)
		synctest.Wait()
		assert.Equal(t, 1, s.Observed(), "a failed tick keeps the previous results")
		assert.Equal(t, StatePolling, s.State())

		time.Sleep(DefaultInterval)
		synctest.Wait()
		assert.Equal(t, StateConverged, s.State())
		assert.Equal(t, 4, s.Ticks())
	})
}

func TestSession_CloseStopsTimer(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		store := &scriptedStore{
			meta:   metadata("m1", "m2"),
			script: []fetchResponse{{results: results("m1")}},
		}
		var (
			mu      sync.Mutex
			updates int
		)
		p := New(store, DefaultConfig(), WithOnUpdate(func(string, []domain.MetricResult) {
			mu.Lock()
			updates++
			mu.Unlock()
		}))
		s, err := p.Open(t.Context(), "input-1")
		require.NoError(t, err)

		time.Sleep(2 * DefaultInterval)
		synctest.Wait()
		require.Equal(t, 2, s.Ticks())

		s.Close()
		assert.Equal(t, StateStopped, s.State())
		<-s.Done()

		time.Sleep(10 * DefaultInterval)
		synctest.Wait()
		assert.Equal(t, 3, store.Calls())
		assert.Equal(t, 2, s.Ticks())

		mu.Lock()
		assert.Equal(t, 3, updates)
		mu.Unlock()

		s.Close()
		assert.Equal(t, StateStopped, s.State())
	})
}

func TestSession_CloseFromUpdateCallback(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		store := &scriptedStore{
			meta:   metadata("m1", "m2"),
			script: []fetchResponse{{results: results("m1")}},
		}
		var (
			session atomic.Pointer[Session]
			updates atomic.Int32
		)
		p := New(store, DefaultConfig(), WithOnUpdate(func(string, []domain.MetricResult) {
			updates.Add(1)
			if s := session.Load(); s != nil {
				s.Close()
			}
		}))
		s, err := p.Open(t.Context(), "input-1")
		require.NoError(t, err)
		session.Store(s)

		time.Sleep(DefaultInterval)
		<-s.Done()
		assert.Equal(t, StateStopped, s.State())
		assert.Equal(t, 1, s.Ticks())

		time.Sleep(5 * DefaultInterval)
		synctest.Wait()
		assert.Equal(t, 2, store.Calls())
		assert.Equal(t, int32(2), updates.Load())

		s.Close()
		assert.Equal(t, StateStopped, s.State())
	})
}

func TestSession_ContextCancellationIsTeardown(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		store := &scriptedStore{meta: metadata("m1")}
		ctx, cancel := context.WithCancel(t.Context())
		s, err := New(store, DefaultConfig()).Open(ctx, "input-1")
		require.NoError(t, err)

		cancel()
		<-s.Done()
		assert.Equal(t, StateStopped, s.State())
	})
}

func TestSession_MaxAttempts(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		store := &scriptedStore{meta: metadata("m1", "m2")}
		cfg := Config{Interval: time.Second, MaxAttempts: 4}
		s, err := New(store, cfg).Open(t.Context(), "input-1")
		require.NoError(t, err)
		defer s.Close()

		<-s.Done()
		assert.Equal(t, StateExhausted, s.State())
		assert.Equal(t, 4, s.Ticks())
		assert.Equal(t, 5, store.Calls())
	})
}

func TestSession_StatusesAndForeignMetrics(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		store := &scriptedStore{
			meta: metadata("m1", "m2"),
			script: []fetchResponse{
				{results: results("m1", "other", "m1")},
			},
		}
		s, err := New(store, DefaultConfig()).Open(t.Context(), "input-1")
		require.NoError(t, err)
		defer s.Close()

		assert.Equal(t, 1, s.Observed(), "duplicates and unrequested metrics are not counted")
		assert.Equal(t, []domain.MetricStatus{
			{MetricID: "m1", Ready: true},
			{MetricID: "m2", Ready: false},
		}, s.Statuses())
		assert.Equal(t, StatePolling, s.State())
	})
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "polling", StatePolling.String())
	assert.Equal(t, "converged", StateConverged.String())
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "exhausted", StateExhausted.String())
	assert.Equal(t, "unknown", State(42).String())
}
