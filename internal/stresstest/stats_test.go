package stresstest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/studiowebux/checkoutload/internal/checkout"
)

func iteration(outcome checkout.Outcome, d time.Duration, checks ...checkout.CheckResult) checkout.IterationResult {
	return checkout.IterationResult{
		Outcome:     outcome,
		Duration:    d,
		OrderCalled: outcome == checkout.OutcomeSuccess || outcome == checkout.OutcomeOrderFailed,
		Checks:      checks,
	}
}

func TestStats_Empty(t *testing.T) {
	s := NewStats()
	require.Zero(t, s.Min())
	require.Zero(t, s.Max())
	require.Zero(t, s.P95())
	require.Zero(t, s.AvgDurationMs())
	require.Zero(t, s.SuccessRate())
	require.Zero(t, s.ChecksPassRate())
	require.Empty(t, s.Checks())
}

func TestStats_AddIteration(t *testing.T) {
	s := NewStats()
	cart := "add to cart returns 201"
	order := "order created successfully"

	s.AddIteration(iteration(checkout.OutcomeSuccess, 40*time.Millisecond,
		checkout.CheckResult{Name: cart, OK: true}, checkout.CheckResult{Name: order, OK: true}))
	s.AddIteration(iteration(checkout.OutcomeOrderFailed, 20*time.Millisecond,
		checkout.CheckResult{Name: cart, OK: true}, checkout.CheckResult{Name: order, OK: false}))
	s.AddIteration(iteration(checkout.OutcomeCartFailed, 10*time.Millisecond,
		checkout.CheckResult{Name: cart, OK: false}))
	s.AddIteration(iteration(checkout.OutcomeSuccess, 30*time.Millisecond,
		checkout.CheckResult{Name: cart, OK: true}, checkout.CheckResult{Name: order, OK: true}))

	require.Equal(t, 4, s.Iterations)
	require.Equal(t, 2, s.Successes())
	require.Equal(t, 3, s.OrderCalls)
	require.InDelta(t, 50.0, s.SuccessRate(), 0.001)
	require.Equal(t, int64(10), s.Min())
	require.Equal(t, int64(40), s.Max())
	require.InDelta(t, 25.0, s.AvgDurationMs(), 0.001)
	require.Equal(t, int64(25), s.P50())

	require.Equal(t, []CheckSummary{
		{Name: cart, Passes: 3, Fails: 1},
		{Name: order, Passes: 2, Fails: 1},
	}, s.Checks())
	require.Equal(t, 5, s.ChecksPassed())
	require.Equal(t, 2, s.ChecksFailed())
	require.InDelta(t, 500.0/7.0, s.ChecksPassRate(), 0.001)
}

func TestStats_Percentile(t *testing.T) {
	s := NewStats()
	for i := 1; i <= 100; i++ {
		s.AddIteration(iteration(checkout.OutcomeSuccess, time.Duration(i)*time.Millisecond))
	}

	tests := []struct {
		p    float64
		want int64
	}{
		{0, 1},
		{50, 50},
		{95, 95},
		{99, 99},
		{100, 100},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, s.Percentile(tt.p), "p%v", tt.p)
	}
}

func TestStats_CopyIsIndependent(t *testing.T) {
	s := NewStats()
	s.AddIteration(iteration(checkout.OutcomeSuccess, time.Millisecond,
		checkout.CheckResult{Name: "a", OK: true}))

	c := s.Copy()
	s.AddIteration(iteration(checkout.OutcomeNoSession, time.Millisecond,
		checkout.CheckResult{Name: "a", OK: false}))

	require.Equal(t, 1, c.Iterations)
	require.Len(t, c.Durations, 1)
	require.Zero(t, c.Outcomes[checkout.OutcomeNoSession])
	require.Equal(t, []CheckSummary{{Name: "a", Passes: 1}}, c.Checks())
}
