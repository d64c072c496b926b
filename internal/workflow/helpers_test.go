package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"github.com/ahrav/go-wuieval/internal/activity"
	"github.com/ahrav/go-wuieval/internal/domain"
	pkgactivity "github.com/ahrav/go-wuieval/pkg/activity"
)

var errUnavailable = errors.New("service unavailable")

// scriptedService is an activity.EvaluationService driven by fixed tables.
// FetchResults replays script, repeating the last entry.
type scriptedService struct {
	mu sync.Mutex

	failSubmit map[string]bool
	submits    int

	meta         domain.InputMetadata
	metaErr      error
	script       []fetchStep
	resultsCalls int
}

type fetchStep struct {
	results []domain.MetricResult
	err     error
}

func (s *scriptedService) SubmitURLEvaluation(_ context.Context, url string, _ []string) (domain.ResultHandle, error) {
	return s.submit(url, domain.InputURL)
}

func (s *scriptedService) SubmitFileEvaluation(_ context.Context, f domain.FilePayload, _ []string) (domain.ResultHandle, error) {
	return s.submit(f.Name, f.InputKind())
}

func (s *scriptedService) submit(name string, kind domain.InputKind) (domain.ResultHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submits++
	if s.failSubmit[name] {
		return domain.ResultHandle{}, errUnavailable
	}
	return domain.ResultHandle{ResultID: "res-" + name, DisplayName: name, Kind: kind}, nil
}

func (s *scriptedService) FetchResults(context.Context, string) ([]domain.MetricResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.resultsCalls
	s.resultsCalls++
	if len(s.script) == 0 {
		return nil, nil
	}
	if i >= len(s.script) {
		i = len(s.script) - 1
	}
	return s.script[i].results, s.script[i].err
}

func (s *scriptedService) FetchInputMetadata(context.Context, string) (domain.InputMetadata, error) {
	return s.meta, s.metaErr
}

func (s *scriptedService) counts() (submits, results int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submits, s.resultsCalls
}

func newEnv(t *testing.T, svc activity.EvaluationService) (*testsuite.TestWorkflowEnvironment, *activity.Activities) {
	t.Helper()
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	a := activity.NewActivities(pkgactivity.NewBaseActivities(nil), svc)
	env.RegisterActivity(a.SubmitURLEvaluation)
	env.RegisterActivity(a.SubmitFileEvaluation)
	env.RegisterActivity(a.FetchResults)
	env.RegisterActivity(a.FetchInputMetadata)
	env.RegisterWorkflow(BatchEvaluationWorkflow)
	env.RegisterWorkflow(ConvergenceWorkflow)
	return env, a
}

func urlDescriptor(t *testing.T, url string) domain.RequestDescriptor {
	t.Helper()
	d, err := domain.NewURLDescriptor(url, []string{"m1", "m2"})
	require.NoError(t, err)
	return d
}

func fileDescriptor(t *testing.T, name string) domain.RequestDescriptor {
	t.Helper()
	d, err := domain.NewFileDescriptor(name, "image/png", []byte("\x89PNG"), []string{"m1"})
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

func results(ids ...string) []domain.MetricResult {
	out := make([]domain.MetricResult, len(ids))
	for i, id := range ids {
		out[i] = domain.MetricResult{MetricID: id, Results: []string{"ok"}}
	}
	return out
}
