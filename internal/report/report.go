// Package report renders load test results for the terminal.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/studiowebux/checkoutload/internal/checkout"
	"github.com/studiowebux/checkoutload/internal/stresstest"
)

var (
	colorGreen  = lipgloss.AdaptiveColor{Light: "#006400", Dark: "#00ff00"}
	colorRed    = lipgloss.AdaptiveColor{Light: "#8b0000", Dark: "#ff0000"}
	colorYellow = lipgloss.AdaptiveColor{Light: "#b8860b", Dark: "#ffff00"}
	colorGray   = lipgloss.AdaptiveColor{Light: "#555555", Dark: "#888888"}
	colorCyan   = lipgloss.AdaptiveColor{Light: "#008b8b", Dark: "#00ffff"}

	styleTitle  = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	styleSubtle = lipgloss.NewStyle().Foreground(colorGray)
	stylePass   = lipgloss.NewStyle().Foreground(colorGreen)
	styleFail   = lipgloss.NewStyle().Foreground(colorRed)
	styleWarn   = lipgloss.NewStyle().Foreground(colorYellow)
)

const timeLayout = "2006-01-02 15:04:05"

// Summary renders one run with its checks and outcome breakdown.
// outcomes may be nil.
func Summary(run *stresstest.Run, checks []stresstest.CheckSummary, outcomes map[string]int) string {
	var b strings.Builder

	b.WriteString(styleTitle.Render(run.Name) + " " + styleSubtle.Render(run.UUID) + "\n\n")

	b.WriteString(styleTitle.Render("Target") + "\n")
	b.WriteString(fmt.Sprintf("Base URL:   %s\n", run.BaseURL))
	b.WriteString(fmt.Sprintf("Shape:      %s\n", run.Shape))
	b.WriteString(fmt.Sprintf("VUs:        %d\n", run.VUs))
	if run.Duration > 0 {
		b.WriteString(fmt.Sprintf("Duration:   %s\n", run.Duration))
	}
	if run.IterationsLimit > 0 {
		b.WriteString(fmt.Sprintf("Limit:      %d iterations\n", run.IterationsLimit))
	}
	b.WriteString("\n")

	b.WriteString(styleTitle.Render("Status") + "\n")
	b.WriteString(fmt.Sprintf("Status:     %s\n", statusStyle(run.Status).Render(run.Status)))
	b.WriteString(fmt.Sprintf("Started:    %s\n", run.StartedAt.Format(timeLayout)))
	if run.CompletedAt != nil {
		b.WriteString(fmt.Sprintf("Completed:  %s\n", run.CompletedAt.Format(timeLayout)))
		b.WriteString(fmt.Sprintf("Elapsed:    %s\n", FormatDuration(run.CompletedAt.Sub(run.StartedAt))))
	}
	b.WriteString("\n")

	b.WriteString(styleTitle.Render("Checks") + "\n")
	if len(checks) == 0 {
		b.WriteString(styleSubtle.Render("no checks recorded") + "\n")
	}
	for _, c := range checks {
		b.WriteString(CheckLine(c) + "\n")
	}
	if total := run.ChecksPassed + run.ChecksFailed; total > 0 {
		b.WriteString(fmt.Sprintf("checks.....: %.2f%% (%d of %d)\n", run.ChecksPassRate(), run.ChecksPassed, total))
	}
	b.WriteString("\n")

	b.WriteString(styleTitle.Render("Iterations") + "\n")
	b.WriteString(fmt.Sprintf("Total:       %d\n", run.IterationsTotal))
	b.WriteString(fmt.Sprintf("Successful:  %d\n", run.IterationsSuccess))
	b.WriteString(fmt.Sprintf("Orders sent: %d\n", run.OrderCalls))
	for _, name := range sortedOutcomes(outcomes) {
		b.WriteString(fmt.Sprintf("  %-16s %d\n", name, outcomes[name]))
	}
	b.WriteString("\n")

	b.WriteString(styleTitle.Render("Iteration Duration") + "\n")
	b.WriteString(fmt.Sprintf("Average:    %.0fms\n", run.AvgDurationMs))
	b.WriteString(fmt.Sprintf("Min:        %dms\n", run.MinDurationMs))
	b.WriteString(fmt.Sprintf("Max:        %dms\n", run.MaxDurationMs))
	b.WriteString(fmt.Sprintf("P50:        %dms\n", run.P50DurationMs))
	b.WriteString(fmt.Sprintf("P95:        %dms\n", run.P95DurationMs))
	b.WriteString(fmt.Sprintf("P99:        %dms\n", run.P99DurationMs))

	return b.String()
}

// CheckLine renders a single check as "✓ name" or "✗ name 95.0% (19/20)"
func CheckLine(c stresstest.CheckSummary) string {
	if c.Fails == 0 {
		return stylePass.Render("✓ " + c.Name)
	}
	return styleFail.Render("✗ "+c.Name) +
		styleSubtle.Render(fmt.Sprintf("  %.1f%% (%d/%d)", c.PassRate(), c.Passes, c.Passes+c.Fails))
}

// RunList renders persisted runs, one per line
func RunList(runs []*stresstest.Run) string {
	if len(runs) == 0 {
		return "No load test runs found.\n"
	}

	var b strings.Builder
	b.WriteString(styleSubtle.Render(fmt.Sprintf("%-5s %-19s %-10s %-5s %4s %10s %8s  %s",
		"ID", "STARTED", "STATUS", "SHAPE", "VUS", "ITERATIONS", "CHECKS", "NAME")) + "\n")
	for _, run := range runs {
		checks := "-"
		if run.ChecksPassed+run.ChecksFailed > 0 {
			checks = fmt.Sprintf("%.1f%%", run.ChecksPassRate())
		}
		b.WriteString(fmt.Sprintf("%-5d %-19s %s %-5s %4d %10d %8s  %s\n",
			run.ID,
			run.StartedAt.Format(timeLayout),
			statusStyle(run.Status).Render(fmt.Sprintf("%-10s", run.Status)),
			run.Shape,
			run.VUs,
			run.IterationsTotal,
			checks,
			run.Name))
	}
	return b.String()
}

// Progress renders a one-line live status
func Progress(stats *stresstest.Stats, elapsed time.Duration) string {
	return fmt.Sprintf("%s  vus=%d iterations=%d success=%d checks=%.1f%% p95=%dms",
		FormatDuration(elapsed), stats.ActiveVUs, stats.Iterations, stats.Successes(),
		stats.ChecksPassRate(), stats.P95())
}

// Outcomes converts live stats outcomes to the string keyed form used by Summary
func Outcomes(stats *stresstest.Stats) map[string]int {
	out := make(map[string]int, len(stats.Outcomes))
	for k, v := range stats.Outcomes {
		out[string(k)] = v
	}
	return out
}

// OutcomesFromIterations counts persisted iteration outcomes
func OutcomesFromIterations(iterations []*stresstest.IterationMetric) map[string]int {
	out := make(map[string]int)
	for _, it := range iterations {
		out[it.Outcome]++
	}
	return out
}

// FormatDuration formats a duration for display
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}

func statusStyle(status string) lipgloss.Style {
	switch status {
	case stresstest.StatusCompleted:
		return stylePass
	case stresstest.StatusCancelled:
		return styleWarn
	case stresstest.StatusFailed:
		return styleFail
	default:
		return lipgloss.NewStyle()
	}
}

// sortedOutcomes lists known outcomes first in their declared order
func sortedOutcomes(outcomes map[string]int) []string {
	var names []string
	known := make(map[string]bool, len(checkout.Outcomes))
	for _, o := range checkout.Outcomes {
		known[string(o)] = true
		if outcomes[string(o)] > 0 {
			names = append(names, string(o))
		}
	}
	var extra []string
	for name, n := range outcomes {
		if !known[name] && n > 0 {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append(names, extra...)
}
