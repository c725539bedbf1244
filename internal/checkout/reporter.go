package checkout

import "time"

// Reporter receives structured measurements as an iteration runs.
// Implementations must be safe for concurrent use by many virtual users.
type Reporter interface {
	Check(name string, ok bool)
	Request(step Step, status int, d time.Duration)
	Iteration(res IterationResult)
}

// NopReporter discards everything
type NopReporter struct{}

func (NopReporter) Check(string, bool) {}
func (NopReporter) Request(Step, int, time.Duration) {}
func (NopReporter) Iteration(IterationResult) {}

// MultiReporter fans out to several reporters
type MultiReporter []Reporter

func (m MultiReporter) Check(name string, ok bool) {
	for _, r := range m {
		r.Check(name, ok)
	}
}

func (m MultiReporter) Request(step Step, status int, d time.Duration) {
	for _, r := range m {
		r.Request(step, status, d)
	}
}

func (m MultiReporter) Iteration(res IterationResult) {
	for _, r := range m {
		r.Iteration(res)
	}
}
