package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/pingcap/errors"
	"go.uber.org/zap"

	"github.com/studiowebux/checkoutload/internal/catalog"
	"github.com/studiowebux/checkoutload/internal/checkout"
	"github.com/studiowebux/checkoutload/internal/config"
	"github.com/studiowebux/checkoutload/internal/metrics"
	"github.com/studiowebux/checkoutload/internal/report"
	"github.com/studiowebux/checkoutload/internal/stresstest"
)

// ErrThresholdNotMet is returned when the checks pass rate is below the configured threshold
var ErrThresholdNotMet = errors.New("checks pass rate threshold not met")

// ProgressInterval is how often a live status line is printed
var ProgressInterval = 5 * time.Second

// RunOptions contains options for running a load test.
// Nil override fields leave the scenario value untouched.
type RunOptions struct {
	ConfigPath string

	BaseURL    *string
	Shape      *string
	VUs        *int
	Duration   *time.Duration
	Iterations *int
	Seed       *uint64

	DBPath      string
	NoStore     bool
	MetricsAddr string
	Quiet       bool

	Logger *zap.Logger
	Out    io.Writer // summary, defaults to stdout
	Err    io.Writer // progress, defaults to stderr
}

// LoadScenario resolves the scenario with precedence defaults < file < environment < options
func LoadScenario(opts RunOptions) (*config.Scenario, error) {
	scenario := config.Default()
	if opts.ConfigPath != "" {
		var err error
		if scenario, err = config.Load(opts.ConfigPath); err != nil {
			return nil, err
		}
	}
	if err := scenario.ApplyEnv(); err != nil {
		return nil, err
	}

	if opts.BaseURL != nil {
		scenario.BaseURL = *opts.BaseURL
	}
	if opts.Shape != nil {
		scenario.Shape = *opts.Shape
	}
	if opts.VUs != nil {
		scenario.VUs = *opts.VUs
	}
	if opts.Duration != nil {
		scenario.Duration = config.Duration{Duration: *opts.Duration}
	}
	if opts.Iterations != nil {
		scenario.Iterations = *opts.Iterations
	}
	if opts.Seed != nil {
		scenario.Seed = *opts.Seed
	}

	if err := scenario.Validate(); err != nil {
		return nil, err
	}
	return scenario, nil
}

// Run executes a load test and prints its summary. The returned run is
// non-nil whenever the test started, even when the threshold fails.
func Run(ctx context.Context, opts RunOptions) (*stresstest.Run, error) {
	out, errOut := writers(opts)
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	scenario, err := LoadScenario(opts)
	if err != nil {
		return nil, err
	}

	cat, err := catalog.New(scenario.Products)
	if err != nil {
		return nil, err
	}
	shape, err := checkout.ShapeFor(scenario.Shape, scenario.ShapeOptions())
	if err != nil {
		return nil, err
	}
	loadConfig := scenario.LoadConfig()
	client, err := stresstest.NewHTTPClient(scenario.VUs, loadConfig.GetRequestTimeout(), scenario.TLS)
	if err != nil {
		return nil, errors.Annotate(err, "failed to build HTTP client")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	collector := metrics.NewCollector()
	if opts.MetricsAddr != "" {
		if err := collector.Serve(ctx, opts.MetricsAddr, logger); err != nil {
			return nil, errors.Annotatef(err, "failed to serve metrics on %s", opts.MetricsAddr)
		}
	}

	runner, err := checkout.NewRunner(checkout.RunnerOptions{
		BaseURL:       scenario.BaseURL,
		Catalog:       cat,
		Shape:         shape,
		Customer:      scenario.Customer,
		Client:        client,
		Reporter:      collector,
		Logger:        logger,
		ThinkTime:     scenario.RunnerThinkTime(),
		LogIterations: scenario.LogIterations,
	})
	if err != nil {
		return nil, err
	}

	var manager *stresstest.Manager
	if !opts.NoStore {
		if manager, err = openManager(opts.DBPath); err != nil {
			return nil, err
		}
		defer manager.Close()
	}

	executor, err := stresstest.NewExecutor(&stresstest.ExecutionConfig{
		Runner:   runner,
		Config:   loadConfig,
		Observer: collector,
	}, manager, logger)
	if err != nil {
		return nil, err
	}

	executor.Start(ctx)

	// Handle Ctrl+C
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	defer signal.Stop(sigChan)
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-sigChan:
			fmt.Fprintln(errOut, "\nLoad test cancelled by user, waiting for in-flight iterations")
			executor.Stop()
		case <-done:
		}
	}()

	stopProgress := make(chan struct{})
	progressDone := make(chan struct{})
	if opts.Quiet {
		close(progressDone)
	} else {
		go func() {
			defer close(progressDone)
			printProgress(executor, errOut, stopProgress)
		}()
	}
	waitErr := executor.Wait()
	close(stopProgress)
	<-progressDone

	run := executor.GetRun()
	stats := executor.GetStats()
	fmt.Fprintln(out)
	fmt.Fprint(out, report.Summary(run, stats.Checks(), report.Outcomes(stats)))

	if waitErr != nil {
		return run, waitErr
	}
	if !scenario.ThresholdMet(run.ChecksPassRate()) {
		return run, errors.Annotatef(ErrThresholdNotMet, "%.2f%% < %.2f%%",
			run.ChecksPassRate(), *scenario.Thresholds.ChecksPassRate)
	}
	return run, nil
}

func printProgress(executor *stresstest.Executor, w io.Writer, done <-chan struct{}) {
	ticker := time.NewTicker(ProgressInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			fmt.Fprintln(w, report.Progress(executor.GetStats(), executor.Elapsed()))
		}
	}
}

// ListOptions contains options for listing persisted runs
type ListOptions struct {
	DBPath string
	Limit  int
	Out    io.Writer
}

// ListRuns prints the most recent runs
func ListRuns(opts ListOptions) error {
	manager, err := openManager(opts.DBPath)
	if err != nil {
		return err
	}
	defer manager.Close()

	runs, err := manager.ListRuns(opts.Limit)
	if err != nil {
		return errors.Annotate(err, "failed to list runs")
	}
	out, _ := writers(RunOptions{Out: opts.Out})
	fmt.Fprint(out, report.RunList(runs))
	return nil
}

// ShowOptions contains options for showing a persisted run
type ShowOptions struct {
	DBPath string
	ID     int64
	Out    io.Writer
}

// ShowRun prints the summary of a persisted run
func ShowRun(opts ShowOptions) error {
	manager, err := openManager(opts.DBPath)
	if err != nil {
		return err
	}
	defer manager.Close()

	run, err := manager.GetRun(opts.ID)
	if err != nil {
		return err
	}
	checks, err := manager.GetCheckResults(run.ID)
	if err != nil {
		return errors.Annotate(err, "failed to load check results")
	}
	iterations, err := manager.GetIterations(run.ID)
	if err != nil {
		return errors.Annotate(err, "failed to load iterations")
	}

	out, _ := writers(RunOptions{Out: opts.Out})
	fmt.Fprint(out, report.Summary(run, checks, report.OutcomesFromIterations(iterations)))
	return nil
}

func openManager(dbPath string) (*stresstest.Manager, error) {
	if dbPath == "" {
		if err := config.Initialize(); err != nil {
			return nil, errors.Annotate(err, "failed to initialize data directory")
		}
		dbPath = config.DatabasePath
	}
	manager, err := stresstest.NewManager(dbPath)
	if err != nil {
		return nil, errors.Annotatef(err, "failed to open %s", dbPath)
	}
	return manager, nil
}

func writers(opts RunOptions) (io.Writer, io.Writer) {
	out, errOut := opts.Out, opts.Err
	if out == nil {
		out = os.Stdout
	}
	if errOut == nil {
		errOut = os.Stderr
	}
	return out, errOut
}
