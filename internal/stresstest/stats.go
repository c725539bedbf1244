package stresstest

import (
	"sort"

	"github.com/studiowebux/checkoutload/internal/checkout"
)

// Stats holds runtime statistics for a load test
type Stats struct {
	Iterations      int
	Outcomes        map[checkout.Outcome]int
	OrderCalls      int
	ActiveVUs       int
	Durations       []int64 // For percentile calculation
	TotalDurationMs int64
	MinDurationMs   int64
	MaxDurationMs   int64

	checks     map[string]*CheckSummary
	checkOrder []string
}

// NewStats creates a new Stats instance
func NewStats() *Stats {
	return &Stats{
		Outcomes:      make(map[checkout.Outcome]int),
		Durations:     make([]int64, 0, 1000),
		MinDurationMs: -1,
		MaxDurationMs: -1,
		checks:        make(map[string]*CheckSummary),
	}
}

// AddIteration adds an iteration result to the statistics
func (s *Stats) AddIteration(res checkout.IterationResult) {
	durationMs := res.Duration.Milliseconds()

	s.Iterations++
	s.Outcomes[res.Outcome]++
	if res.OrderCalled {
		s.OrderCalls++
	}
	s.TotalDurationMs += durationMs
	s.Durations = append(s.Durations, durationMs)

	for _, c := range res.Checks {
		summary, ok := s.checks[c.Name]
		if !ok {
			summary = &CheckSummary{Name: c.Name}
			s.checks[c.Name] = summary
			s.checkOrder = append(s.checkOrder, c.Name)
		}
		if c.OK {
			summary.Passes++
		} else {
			summary.Fails++
		}
	}

	// Update min/max
	if s.MinDurationMs == -1 || durationMs < s.MinDurationMs {
		s.MinDurationMs = durationMs
	}
	if s.MaxDurationMs == -1 || durationMs > s.MaxDurationMs {
		s.MaxDurationMs = durationMs
	}
}

// Checks returns the check summaries in first-seen order
func (s *Stats) Checks() []CheckSummary {
	out := make([]CheckSummary, 0, len(s.checkOrder))
	for _, name := range s.checkOrder {
		out = append(out, *s.checks[name])
	}
	return out
}

// ChecksPassed returns the number of passed checks
func (s *Stats) ChecksPassed() int {
	n := 0
	for _, c := range s.checks {
		n += c.Passes
	}
	return n
}

// ChecksFailed returns the number of failed checks
func (s *Stats) ChecksFailed() int {
	n := 0
	for _, c := range s.checks {
		n += c.Fails
	}
	return n
}

// ChecksPassRate returns the overall check pass rate as a percentage
func (s *Stats) ChecksPassRate() float64 {
	passed, failed := s.ChecksPassed(), s.ChecksFailed()
	if passed+failed == 0 {
		return 0
	}
	return float64(passed) / float64(passed+failed) * 100
}

// Successes returns the number of successful iterations
func (s *Stats) Successes() int {
	return s.Outcomes[checkout.OutcomeSuccess]
}

// SuccessRate returns the iteration success rate as a percentage
func (s *Stats) SuccessRate() float64 {
	if s.Iterations == 0 {
		return 0
	}
	return float64(s.Successes()) / float64(s.Iterations) * 100
}

// AvgDurationMs returns the average duration in milliseconds
func (s *Stats) AvgDurationMs() float64 {
	if s.Iterations == 0 {
		return 0
	}
	return float64(s.TotalDurationMs) / float64(s.Iterations)
}

// Min returns the minimum duration, or 0 if no results
func (s *Stats) Min() int64 {
	if s.MinDurationMs == -1 {
		return 0
	}
	return s.MinDurationMs
}

// Max returns the maximum duration, or 0 if no results
func (s *Stats) Max() int64 {
	if s.MaxDurationMs == -1 {
		return 0
	}
	return s.MaxDurationMs
}

// Percentile calculates the percentile value (p should be between 0 and 100)
func (s *Stats) Percentile(p float64) int64 {
	if len(s.Durations) == 0 {
		return 0
	}

	sorted := make([]int64, len(s.Durations))
	copy(sorted, s.Durations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	index := (p / 100.0) * float64(len(sorted)-1)
	lower := int(index)
	upper := lower + 1

	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	// Linear interpolation between lower and upper
	weight := index - float64(lower)
	return int64(float64(sorted[lower])*(1-weight) + float64(sorted[upper])*weight)
}

// P50 returns the 50th percentile (median)
func (s *Stats) P50() int64 {
	return s.Percentile(50)
}

// P95 returns the 95th percentile
func (s *Stats) P95() int64 {
	return s.Percentile(95)
}

// P99 returns the 99th percentile
func (s *Stats) P99() int64 {
	return s.Percentile(99)
}

// Copy returns a deep copy
func (s *Stats) Copy() *Stats {
	out := &Stats{
		Iterations:      s.Iterations,
		Outcomes:        make(map[checkout.Outcome]int, len(s.Outcomes)),
		OrderCalls:      s.OrderCalls,
		ActiveVUs:       s.ActiveVUs,
		Durations:       make([]int64, len(s.Durations)),
		TotalDurationMs: s.TotalDurationMs,
		MinDurationMs:   s.MinDurationMs,
		MaxDurationMs:   s.MaxDurationMs,
		checks:          make(map[string]*CheckSummary, len(s.checks)),
		checkOrder:      append([]string(nil), s.checkOrder...),
	}
	copy(out.Durations, s.Durations)
	for k, v := range s.Outcomes {
		out.Outcomes[k] = v
	}
	for k, v := range s.checks {
		c := *v
		out.checks[k] = &c
	}
	return out
}
