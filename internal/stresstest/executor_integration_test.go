package stresstest

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/studiowebux/checkoutload/internal/catalog"
	"github.com/studiowebux/checkoutload/internal/checkout"
	"github.com/studiowebux/checkoutload/internal/checkout/checkouttest"
)

// createTestManager creates a new Manager with in-memory SQLite database for testing
func createTestManager(t *testing.T) *Manager {
	manager, err := NewManager(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })
	return manager
}

func newTestRunner(t *testing.T, baseURL, shape string, thinkTime time.Duration) *checkout.Runner {
	t.Helper()
	cat, err := catalog.New(catalog.DefaultCodes)
	require.NoError(t, err)
	s, err := checkout.ShapeFor(shape, checkout.ShapeOptions{})
	require.NoError(t, err)
	client, err := NewHTTPClient(4, 5*time.Second, nil)
	require.NoError(t, err)

	runner, err := checkout.NewRunner(checkout.RunnerOptions{
		BaseURL:   baseURL,
		Catalog:   cat,
		Shape:     s,
		Customer:  checkout.DefaultCustomerTemplate(),
		Client:    client,
		ThinkTime: thinkTime,
	})
	require.NoError(t, err)
	return runner
}

type countingObserver struct {
	started atomic.Int32
	stopped atomic.Int32
}

func (o *countingObserver) VUStarted() { o.started.Add(1) }
func (o *countingObserver) VUStopped() { o.stopped.Add(1) }

func TestExecutor_IterationBudget(t *testing.T) {
	server := checkouttest.NewServer(checkouttest.Options{})
	defer server.Close()

	manager := createTestManager(t)
	observer := &countingObserver{}
	executor, err := NewExecutor(&ExecutionConfig{
		Runner:   newTestRunner(t, server.URL, checkout.ShapeForm, -1),
		Config:   &Config{Name: "budget", VUs: 4, Iterations: 25, Seed: 7},
		Observer: observer,
	}, manager, nil)
	require.NoError(t, err)

	executor.Start(context.Background())
	require.NoError(t, executor.Wait())

	stats := executor.GetStats()
	require.Equal(t, 25, stats.Iterations)
	require.Equal(t, 25, stats.Successes())
	require.Equal(t, 25, server.OrderCalls())
	require.Equal(t, 25, server.CartCalls())
	require.Equal(t, 0, stats.ActiveVUs)
	require.Equal(t, int32(4), observer.started.Load())
	require.Equal(t, int32(4), observer.stopped.Load())

	run, err := manager.GetRun(executor.GetRun().ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, run.Status)
	require.Equal(t, "form", run.Shape)
	require.Equal(t, server.URL, run.BaseURL)
	require.Equal(t, 25, run.IterationsTotal)
	require.Equal(t, 25, run.IterationsSuccess)
	require.Equal(t, 25, run.OrderCalls)
	require.Equal(t, 75, run.ChecksPassed)
	require.Equal(t, 0, run.ChecksFailed)
	require.NotNil(t, run.CompletedAt)

	iterations, err := manager.GetIterations(run.ID)
	require.NoError(t, err)
	require.Len(t, iterations, 25)
	for _, it := range iterations {
		require.Equal(t, string(checkout.OutcomeSuccess), it.Outcome)
		require.NotEmpty(t, it.OrderNumber)
		require.True(t, it.VU >= 1 && it.VU <= 4)
	}

	checks, err := manager.GetCheckResults(run.ID)
	require.NoError(t, err)
	require.Equal(t, []CheckSummary{
		{Name: "add to cart redirects to /cart", Passes: 25},
		{Name: "order created successfully", Passes: 25},
		{Name: "redirects to order details", Passes: 25},
	}, checks)
}

func TestExecutor_NoSessionNeverOrders(t *testing.T) {
	server := checkouttest.NewServer(checkouttest.Options{OmitSession: true})
	defer server.Close()

	executor, err := NewExecutor(&ExecutionConfig{
		Runner: newTestRunner(t, server.URL, checkout.ShapeREST, -1),
		Config: &Config{Name: "no-session", VUs: 3, Iterations: 12},
	}, nil, nil)
	require.NoError(t, err)

	executor.Start(context.Background())
	require.NoError(t, executor.Wait())

	stats := executor.GetStats()
	require.Equal(t, 12, stats.Iterations)
	require.Equal(t, 12, stats.Outcomes[checkout.OutcomeNoSession])
	require.Equal(t, 0, stats.OrderCalls)
	require.Equal(t, 0, server.OrderCalls())
	require.Equal(t, 12, server.CartCalls())
	require.Equal(t, int64(0), executor.GetRun().ID)
}

func TestExecutor_DurationBound(t *testing.T) {
	server := checkouttest.NewServer(checkouttest.Options{})
	defer server.Close()

	executor, err := NewExecutor(&ExecutionConfig{
		Runner: newTestRunner(t, server.URL, checkout.ShapeREST, 20*time.Millisecond),
		Config: &Config{Name: "duration", VUs: 2, Duration: 300 * time.Millisecond},
	}, createTestManager(t), nil)
	require.NoError(t, err)

	start := time.Now()
	executor.Start(context.Background())
	require.NoError(t, executor.Wait())

	require.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond)
	require.Less(t, time.Since(start), 5*time.Second)
	require.Equal(t, StatusCompleted, executor.GetRun().Status)
	require.Positive(t, executor.GetStats().Iterations)
	require.Equal(t, executor.GetStats().Iterations, server.CartCalls())
}

func TestExecutor_StopCancels(t *testing.T) {
	server := checkouttest.NewServer(checkouttest.Options{})
	defer server.Close()

	manager := createTestManager(t)
	executor, err := NewExecutor(&ExecutionConfig{
		Runner: newTestRunner(t, server.URL, checkout.ShapeForm, 10*time.Millisecond),
		Config: &Config{Name: "stop", VUs: 2, Iterations: maxIterations},
	}, manager, nil)
	require.NoError(t, err)

	executor.Start(context.Background())
	time.Sleep(100 * time.Millisecond)
	executor.Stop()
	require.NoError(t, executor.Wait())

	run, err := manager.GetRun(executor.GetRun().ID)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, run.Status)
	require.Less(t, run.IterationsTotal, maxIterations)

	// Every started iteration was counted, so orders never outnumber iterations
	require.LessOrEqual(t, server.OrderCalls(), run.IterationsTotal)
}

func TestExecutor_ParentContextCancel(t *testing.T) {
	server := checkouttest.NewServer(checkouttest.Options{})
	defer server.Close()

	executor, err := NewExecutor(&ExecutionConfig{
		Runner: newTestRunner(t, server.URL, checkout.ShapeREST, time.Hour),
		Config: &Config{Name: "parent", VUs: 3, Iterations: 100},
	}, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	executor.Start(ctx)
	time.Sleep(200 * time.Millisecond)
	cancel()

	done := make(chan error, 1)
	go func() { done <- executor.Wait() }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("executor did not stop after context cancellation")
	}
	require.Equal(t, 3, executor.GetStats().Iterations)
}

func TestExecutor_WaitBeforeStart(t *testing.T) {
	executor, err := NewExecutor(&ExecutionConfig{
		Runner: newTestRunner(t, "http://127.0.0.1:1", checkout.ShapeForm, -1),
		Config: &Config{Name: "idle", VUs: 1, Iterations: 1},
	}, nil, nil)
	require.NoError(t, err)
	require.Error(t, executor.Wait())
}

func TestNewExecutor_Validation(t *testing.T) {
	runner := newTestRunner(t, "http://127.0.0.1:1", checkout.ShapeForm, -1)

	_, err := NewExecutor(nil, nil, nil)
	require.Error(t, err)
	_, err = NewExecutor(&ExecutionConfig{Config: &Config{Name: "x", VUs: 1, Iterations: 1}}, nil, nil)
	require.Error(t, err)
	_, err = NewExecutor(&ExecutionConfig{Runner: runner, Config: &Config{Name: "x", VUs: 0, Iterations: 1}}, nil, nil)
	require.Error(t, err)
}
