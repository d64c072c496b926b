package batch

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-wuieval/internal/domain"
)

// fakeSubmitter answers submissions from fixed tables. Inputs are keyed by
// URL or file name. The tables must not be changed once jobs are running.
type fakeSubmitter struct {
	urlCalls  atomic.Int32
	fileCalls atomic.Int32

	gates   map[string]chan struct{}
	fail    map[string]error
	panicOn string
	handles map[string]domain.ResultHandle
}

func newFakeSubmitter() *fakeSubmitter {
	return &fakeSubmitter{
		gates:   make(map[string]chan struct{}),
		fail:    make(map[string]error),
		handles: make(map[string]domain.ResultHandle),
	}
}

// gate makes the submission for key block until the returned func is called.
func (f *fakeSubmitter) gate(key string) func() {
	ch := make(chan struct{})
	f.gates[key] = ch
	return func() { close(ch) }
}

func (f *fakeSubmitter) SubmitURLEvaluation(ctx context.Context, url string, metricIDs []string) (domain.ResultHandle, error) {
	f.urlCalls.Add(1)
	return f.answer(ctx, url, domain.InputURL)
}

func (f *fakeSubmitter) SubmitFileEvaluation(ctx context.Context, file domain.FilePayload, metricIDs []string) (domain.ResultHandle, error) {
	f.fileCalls.Add(1)
	return f.answer(ctx, file.Name, file.InputKind())
}

func (f *fakeSubmitter) calls() int { return int(f.urlCalls.Load() + f.fileCalls.Load()) }

func (f *fakeSubmitter) answer(ctx context.Context, key string, kind domain.InputKind) (domain.ResultHandle, error) {
	if key == f.panicOn {
		panic("submitter exploded")
	}
	if ch, ok := f.gates[key]; ok {
		select {
		case <-ch:
		case <-ctx.Done():
			return domain.ResultHandle{}, ctx.Err()
		}
	}
	if err, ok := f.fail[key]; ok {
		return domain.ResultHandle{}, err
	}
	if h, ok := f.handles[key]; ok {
		return h, nil
	}
	return domain.ResultHandle{ResultID: "res-" + key, DisplayName: key, Kind: kind}, nil
}

func urlDescriptor(t *testing.T, url string, metrics ...string) domain.RequestDescriptor {
	t.Helper()
	if len(metrics) == 0 {
		metrics = []string{"m1", "m2"}
	}
	d, err := domain.NewURLDescriptor(url, metrics)
	require.NoError(t, err)
	return d
}

func fileDescriptor(t *testing.T, name string, metrics ...string) domain.RequestDescriptor {
	t.Helper()
	if len(metrics) == 0 {
		metrics = []string{"m1"}
	}
	d, err := domain.NewFileDescriptor(name, "image/png", []byte{0x89, 'P', 'N', 'G'}, metrics)
	require.NoError(t, err)
	return d
}

func urlDescriptors(t *testing.T, n int) []domain.RequestDescriptor {
	t.Helper()
	out := make([]domain.RequestDescriptor, n)
	for i := range out {
		out[i] = urlDescriptor(t, fmt.Sprintf("https://site%d.example.com", i))
	}
	return out
}

func resultIDs(handles []domain.ResultHandle) []string {
	out := make([]string, len(handles))
	for i, h := range handles {
		out[i] = h.ResultID
	}
	return out
}

func waitBatch(t *testing.T, b *Batch) Progress {
	t.Helper()
	p, err := b.Wait(context.Background())
	require.NoError(t, err)
	return p
}
