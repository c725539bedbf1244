package stresstest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pingcap/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/studiowebux/checkoutload/internal/checkout"
)

// Executor drives virtual users against a checkout runner until the
// duration elapses, the iteration budget is spent or Stop is called.
type Executor struct {
	config  *ExecutionConfig
	manager *Manager
	logger  *zap.Logger
	run     *Run
	seed    uint64

	ctx        context.Context
	cancelFunc context.CancelFunc
	group      *errgroup.Group
	resultChan chan checkout.IterationResult
	collected  chan struct{}

	statsMu   sync.Mutex
	stats     *Stats
	testStart time.Time

	budget        atomic.Int64
	activeVUs     atomic.Int32
	stopped       atomic.Bool
	startOnce     sync.Once
	finalizeOnce  sync.Once
	metricsBuf    []*IterationMetric
	bufferSize    int
	persistFailed bool
}

// NewExecutor creates a new executor. manager may be nil, in which case
// nothing is persisted.
func NewExecutor(config *ExecutionConfig, manager *Manager, logger *zap.Logger) (*Executor, error) {
	if config == nil || config.Config == nil {
		return nil, errors.New("execution config is required")
	}
	if config.Runner == nil {
		return nil, errors.New("checkout runner is required")
	}
	if err := config.Config.Validate(); err != nil {
		return nil, errors.Annotate(err, "invalid config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	seed := config.Config.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	run := &Run{
		UUID:            uuid.NewString(),
		Name:            config.Config.Name,
		Shape:           config.Runner.Shape().Name(),
		BaseURL:         config.Runner.BaseURL(),
		VUs:             config.Config.VUs,
		Duration:        config.Config.Duration,
		IterationsLimit: config.Config.Iterations,
		StartedAt:       time.Now(),
		Status:          StatusRunning,
	}
	if manager != nil {
		if err := manager.CreateRun(run); err != nil {
			return nil, errors.Annotate(err, "failed to create run record")
		}
	}

	e := &Executor{
		config:     config,
		manager:    manager,
		logger:     logger.With(zap.String("run", run.UUID)),
		run:        run,
		seed:       seed,
		resultChan: make(chan checkout.IterationResult, config.Config.VUs*2),
		collected:  make(chan struct{}),
		stats:      NewStats(),
		metricsBuf: make([]*IterationMetric, 0, 100),
		bufferSize: 100,
	}
	e.budget.Store(int64(config.Config.Iterations))
	return e, nil
}

// Start launches the virtual users. It returns immediately.
func (e *Executor) Start(ctx context.Context) {
	e.startOnce.Do(func() {
		e.testStart = time.Now()

		if d := e.config.Config.Duration; d > 0 {
			e.ctx, e.cancelFunc = context.WithTimeout(ctx, d)
		} else {
			e.ctx, e.cancelFunc = context.WithCancel(ctx)
		}

		e.logger.Info("Load test started",
			zap.String("shape", e.run.Shape),
			zap.String("base_url", e.run.BaseURL),
			zap.Int("vus", e.config.Config.VUs),
			zap.Duration("duration", e.config.Config.Duration),
			zap.Int("iterations", e.config.Config.Iterations),
			zap.Uint64("seed", e.seed))

		go e.collectResults()

		e.group = &errgroup.Group{}
		for vu := 1; vu <= e.config.Config.VUs; vu++ {
			e.group.Go(e.worker(vu))
		}
		go func() {
			_ = e.group.Wait()
			close(e.resultChan)
		}()
	})
}

// Stop cancels the run. In-flight iterations finish their requests;
// Wait must still be called to collect the final record.
func (e *Executor) Stop() {
	e.stopped.Store(true)
	if e.cancelFunc != nil {
		e.cancelFunc()
	}
}

// Wait blocks until every virtual user has exited and the run is finalized
func (e *Executor) Wait() error {
	if e.ctx == nil {
		return errors.New("executor was not started")
	}
	<-e.collected
	e.cancelFunc()

	status := StatusCompleted
	if e.stopped.Load() {
		status = StatusCancelled
	}
	e.finalize(status)

	if e.persistFailed {
		return errors.New("some load test results could not be saved")
	}
	return nil
}

// GetStats returns a snapshot of the current statistics
func (e *Executor) GetStats() *Stats {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()

	s := e.stats.Copy()
	s.ActiveVUs = int(e.activeVUs.Load())
	return s
}

// GetRun returns the current run record
func (e *Executor) GetRun() *Run {
	return e.run
}

// Seed returns the seed the virtual users were derived from
func (e *Executor) Seed() uint64 {
	return e.seed
}

// Elapsed returns the time since Start
func (e *Executor) Elapsed() time.Duration {
	if e.testStart.IsZero() {
		return 0
	}
	return time.Since(e.testStart)
}

func (e *Executor) worker(id int) func() error {
	return func() error {
		if delay := e.config.Config.StartDelay(id); delay > 0 {
			t := time.NewTimer(delay)
			select {
			case <-e.ctx.Done():
				t.Stop()
				return nil
			case <-t.C:
			}
		}

		e.activeVUs.Add(1)
		if e.config.Observer != nil {
			e.config.Observer.VUStarted()
		}
		defer func() {
			e.activeVUs.Add(-1)
			if e.config.Observer != nil {
				e.config.Observer.VUStopped()
			}
		}()

		vu := checkout.NewVirtualUser(id, e.seed)
		for e.ctx.Err() == nil && e.takeIteration() {
			e.resultChan <- e.config.Runner.RunIteration(e.ctx, vu)
		}
		return nil
	}
}

// takeIteration claims one iteration from the shared budget
func (e *Executor) takeIteration() bool {
	if e.config.Config.Iterations == 0 {
		return true
	}
	return e.budget.Add(-1) >= 0
}

// collectResults aggregates results and persists them in batches
func (e *Executor) collectResults() {
	defer close(e.collected)

	for res := range e.resultChan {
		e.statsMu.Lock()
		e.stats.AddIteration(res)
		e.statsMu.Unlock()

		if e.manager == nil {
			continue
		}

		metric := &IterationMetric{
			RunID:       e.run.ID,
			Timestamp:   time.Now(),
			ElapsedMs:   time.Since(e.testStart).Milliseconds(),
			VU:          res.VU,
			Iteration:   res.Iteration,
			ProductCode: string(res.ProductCode),
			Outcome:     string(res.Outcome),
			CartStatus:  res.CartStatus,
			OrderStatus: res.OrderStatus,
			OrderNumber: res.OrderNumber,
			DurationMs:  res.Duration.Milliseconds(),
		}
		if res.Err != nil {
			metric.ErrorMessage = res.Err.Error()
		}

		e.metricsBuf = append(e.metricsBuf, metric)
		if len(e.metricsBuf) >= e.bufferSize {
			e.flushMetrics()
		}
	}

	e.flushMetrics()
}

// flushMetrics writes buffered metrics to the database
func (e *Executor) flushMetrics() {
	if len(e.metricsBuf) == 0 {
		return
	}

	if err := e.manager.SaveIterationsBatch(e.metricsBuf); err != nil {
		// Keep running, the in-memory stats are still complete
		e.logger.Warn("Failed to save iteration metrics", zap.Int("count", len(e.metricsBuf)), zap.Error(err))
		e.persistFailed = true
	}

	e.metricsBuf = e.metricsBuf[:0]
}

// finalize completes the run record with final statistics
func (e *Executor) finalize(status string) {
	e.finalizeOnce.Do(func() {
		e.statsMu.Lock()
		defer e.statsMu.Unlock()

		now := time.Now()
		e.run.CompletedAt = &now
		e.run.Status = status
		e.run.IterationsTotal = e.stats.Iterations
		e.run.IterationsSuccess = e.stats.Successes()
		e.run.OrderCalls = e.stats.OrderCalls
		e.run.ChecksPassed = e.stats.ChecksPassed()
		e.run.ChecksFailed = e.stats.ChecksFailed()
		e.run.AvgDurationMs = e.stats.AvgDurationMs()
		e.run.MinDurationMs = e.stats.Min()
		e.run.MaxDurationMs = e.stats.Max()
		e.run.P50DurationMs = e.stats.P50()
		e.run.P95DurationMs = e.stats.P95()
		e.run.P99DurationMs = e.stats.P99()

		e.logger.Info("Load test finished",
			zap.String("status", status),
			zap.Int("iterations", e.run.IterationsTotal),
			zap.Int("successful", e.run.IterationsSuccess),
			zap.Duration("elapsed", time.Since(e.testStart)))

		if e.manager == nil {
			return
		}
		if err := e.manager.UpdateRun(e.run); err != nil {
			e.logger.Warn("Failed to update run record", zap.Error(err))
			e.persistFailed = true
		}
		if err := e.manager.SaveCheckResults(e.run.ID, e.stats.Checks()); err != nil {
			e.logger.Warn("Failed to save check results", zap.Error(err))
			e.persistFailed = true
		}
	})
}
