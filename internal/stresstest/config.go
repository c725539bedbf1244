package stresstest

import (
	"time"

	"github.com/pingcap/errors"

	"github.com/studiowebux/checkoutload/internal/checkout"
)

// Run statuses
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
)

const (
	maxVUs        = 1000
	maxIterations = 1000000
)

// Config represents a load test configuration
type Config struct {
	Name           string
	VUs            int
	Duration       time.Duration // 0 = bounded by Iterations only
	Iterations     int           // 0 = bounded by Duration only
	RampUp         time.Duration
	RequestTimeout time.Duration // Timeout for individual requests (default: 10s)
	Seed           uint64
}

// Run represents a load test run record
type Run struct {
	ID                int64
	UUID              string
	Name              string
	Shape             string
	BaseURL           string
	VUs               int
	Duration          time.Duration
	IterationsLimit   int
	StartedAt         time.Time
	CompletedAt       *time.Time
	Status            string
	IterationsTotal   int
	IterationsSuccess int
	OrderCalls        int
	ChecksPassed      int
	ChecksFailed      int
	AvgDurationMs     float64
	MinDurationMs     int64
	MaxDurationMs     int64
	P50DurationMs     int64
	P95DurationMs     int64
	P99DurationMs     int64
}

// IterationMetric represents a single iteration in a load test
type IterationMetric struct {
	ID           int64
	RunID        int64
	Timestamp    time.Time
	ElapsedMs    int64
	VU           int
	Iteration    int
	ProductCode  string
	Outcome      string
	CartStatus   int
	OrderStatus  int
	OrderNumber  string
	DurationMs   int64
	ErrorMessage string
}

// CheckSummary aggregates one named check over a run
type CheckSummary struct {
	Name   string
	Passes int
	Fails  int
}

// PassRate returns the pass rate as a percentage
func (c CheckSummary) PassRate() float64 {
	total := c.Passes + c.Fails
	if total == 0 {
		return 0
	}
	return float64(c.Passes) / float64(total) * 100
}

// VUObserver is notified when virtual users start and stop
type VUObserver interface {
	VUStarted()
	VUStopped()
}

// ExecutionConfig contains the runtime configuration for executing a load test
type ExecutionConfig struct {
	Runner   *checkout.Runner
	Config   *Config
	Observer VUObserver
}

// Validate validates the load test configuration
func (c *Config) Validate() error {
	if c.Name == "" {
		return errors.New("config name is required")
	}
	if c.VUs <= 0 {
		return errors.New("virtual users must be greater than 0")
	}
	if c.VUs > maxVUs {
		return errors.Errorf("virtual users cannot exceed %d", maxVUs)
	}
	if c.Iterations < 0 {
		return errors.New("iterations cannot be negative")
	}
	if c.Iterations > maxIterations {
		return errors.New("iterations cannot exceed 1,000,000")
	}
	if c.Duration < 0 {
		return errors.New("duration cannot be negative")
	}
	if c.Duration == 0 && c.Iterations == 0 {
		return errors.New("either duration or iterations must be set")
	}
	if c.RampUp < 0 {
		return errors.New("ramp-up duration cannot be negative")
	}
	if c.RequestTimeout < 0 {
		return errors.New("request timeout cannot be negative")
	}
	return nil
}

// GetRequestTimeout returns the request timeout
func (c *Config) GetRequestTimeout() time.Duration {
	if c.RequestTimeout == 0 {
		return checkout.DefaultRequestTimeout
	}
	return c.RequestTimeout
}

// StartDelay returns when virtual user vu (1-based) starts during ramp-up
func (c *Config) StartDelay(vu int) time.Duration {
	if c.RampUp <= 0 || c.VUs <= 1 {
		return 0
	}
	return time.Duration(vu-1) * (c.RampUp / time.Duration(c.VUs))
}

// IsRunning returns true if the run is currently in progress
func (r *Run) IsRunning() bool {
	return r.Status == StatusRunning
}

// IsCompleted returns true if the run has finished
func (r *Run) IsCompleted() bool {
	return r.Status == StatusCompleted || r.Status == StatusCancelled || r.Status == StatusFailed
}

// ChecksPassRate returns the overall check pass rate as a percentage
func (r *Run) ChecksPassRate() float64 {
	total := r.ChecksPassed + r.ChecksFailed
	if total == 0 {
		return 0
	}
	return float64(r.ChecksPassed) / float64(total) * 100
}

func secondsToDuration(sec float64) time.Duration {
	return time.Duration(sec * float64(time.Second))
}
