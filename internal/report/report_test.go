package report

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/studiowebux/checkoutload/internal/checkout"
	"github.com/studiowebux/checkoutload/internal/stresstest"
)

func sampleRun() *stresstest.Run {
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	completed := started.Add(31500 * time.Millisecond)
	return &stresstest.Run{
		ID:                3,
		UUID:              "0b7d9c1e-3f0a-4c55-9a53-1d2b0f6c9e11",
		Name:              "bookstore",
		Shape:             "rest",
		BaseURL:           "http://localhost:8080",
		VUs:               10,
		Duration:          30 * time.Second,
		StartedAt:         started,
		CompletedAt:       &completed,
		Status:            stresstest.StatusCompleted,
		IterationsTotal:   20,
		IterationsSuccess: 19,
		OrderCalls:        20,
		ChecksPassed:      39,
		ChecksFailed:      1,
		AvgDurationMs:     41.6,
		MinDurationMs:     12,
		MaxDurationMs:     180,
		P50DurationMs:     35,
		P95DurationMs:     120,
		P99DurationMs:     170,
	}
}

func TestSummary(t *testing.T) {
	checks := []stresstest.CheckSummary{
		{Name: "add to cart returns 201", Passes: 20},
		{Name: "order created successfully", Passes: 19, Fails: 1},
	}
	out := Summary(sampleRun(), checks, map[string]int{"success": 19, "order_failed": 1})

	for _, want := range []string{
		"bookstore",
		"Base URL:   http://localhost:8080",
		"Shape:      rest",
		"Elapsed:    31.5s",
		"✓ add to cart returns 201",
		"✗ order created successfully",
		"95.0% (19/20)",
		"checks.....: 97.50% (39 of 40)",
		"Total:       20",
		"P95:        120ms",
	} {
		require.Contains(t, out, want)
	}

	// Outcomes follow the declared order
	require.Less(t, strings.Index(out, "success "), strings.Index(out, "order_failed"))
	require.NotContains(t, out, "no_session")
}

func TestSummary_NoChecks(t *testing.T) {
	run := sampleRun()
	run.ChecksPassed, run.ChecksFailed = 0, 0
	out := Summary(run, nil, nil)
	require.Contains(t, out, "no checks recorded")
	require.NotContains(t, out, "checks.....")
}

func TestRunList(t *testing.T) {
	require.Equal(t, "No load test runs found.\n", RunList(nil))

	out := RunList([]*stresstest.Run{sampleRun()})
	require.Contains(t, out, "2026-03-01 10:00:00")
	require.Contains(t, out, "97.5%")
	require.Contains(t, out, "bookstore")
	require.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 2)
}

func TestOutcomes(t *testing.T) {
	stats := stresstest.NewStats()
	stats.AddIteration(checkout.IterationResult{Outcome: checkout.OutcomeNoSession})
	stats.AddIteration(checkout.IterationResult{Outcome: checkout.OutcomeNoSession})
	require.Equal(t, map[string]int{"no_session": 2}, Outcomes(stats))

	persisted := OutcomesFromIterations([]*stresstest.IterationMetric{
		{Outcome: "success"}, {Outcome: "success"}, {Outcome: "cart_failed"},
	})
	require.Equal(t, map[string]int{"success": 2, "cart_failed": 1}, persisted)

	require.Contains(t, Progress(stats, 2*time.Second), "iterations=2 success=0")
}

func TestFormatDuration(t *testing.T) {
	require.Equal(t, "0.5s", FormatDuration(500*time.Millisecond))
	require.Equal(t, "1m 30s", FormatDuration(90*time.Second))
}
