// Package probe runs the startup and /health checks: content service
// reachability, speech voices, and LLM provider health.
package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultTimeout bounds a single check when the caller sets none.
const DefaultTimeout = 5 * time.Second

// CheckFunc is a function that performs a health check.
// It returns nil if the check passes, or an error if it fails.
type CheckFunc func(ctx context.Context) error

// Probe represents a single check.
type Probe struct {
	Name     string
	Check    CheckFunc
	Critical bool // If true, a failure here should prevent application startup.
}

// Result holds the outcome of a single probe.
type Result struct {
	Probe    Probe
	Error    error
	Duration time.Duration
}

// Run executes the probes concurrently and returns their results in input order.
// Each check gets its own timeout on top of ctx.
func Run(ctx context.Context, probes []Probe, timeout time.Duration) []Result {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	results := make([]Result, len(probes))

	var wg sync.WaitGroup
	for i, p := range probes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			checkCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			err := p.Check(checkCtx)
			results[i] = Result{
				Probe:    p,
				Error:    err,
				Duration: time.Since(start),
			}
		}()
	}
	wg.Wait()

	return results
}

// AnalyzeResults aggregates the results and returns a combined error if critical probes failed.
func AnalyzeResults(results []Result) error {
	var criticalErrors []error

	slog.Info("Startup Checks Summary")

	for _, r := range results {
		status := "PASS"
		if r.Error != nil {
			status = "FAIL"
		}

		msg := fmt.Sprintf("[%s] %-20s (%v)", status, r.Probe.Name, r.Duration.Round(time.Millisecond))

		if r.Error != nil {
			slog.Error(msg, "error", r.Error)
			if r.Probe.Critical {
				criticalErrors = append(criticalErrors, fmt.Errorf("%s: %w", r.Probe.Name, r.Error))
			}
		} else {
			slog.Info(msg)
		}
	}

	if len(criticalErrors) > 0 {
		return errors.Join(criticalErrors...)
	}

	return nil
}

// CheckStatus is the JSON form of one Result.
type CheckStatus struct {
	Name       string `json:"name"`
	OK         bool   `json:"ok"`
	Critical   bool   `json:"critical"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"durationMs"`
}

// Report is the /health body. Healthy is false only when a critical check failed.
type Report struct {
	Healthy bool          `json:"healthy"`
	Checks  []CheckStatus `json:"checks"`
}

// NewReport summarises results without logging.
func NewReport(results []Result) Report {
	rep := Report{Healthy: true, Checks: make([]CheckStatus, 0, len(results))}
	for _, r := range results {
		cs := CheckStatus{
			Name:       r.Probe.Name,
			OK:         r.Error == nil,
			Critical:   r.Probe.Critical,
			DurationMS: r.Duration.Milliseconds(),
		}
		if r.Error != nil {
			cs.Error = r.Error.Error()
			if r.Probe.Critical {
				rep.Healthy = false
			}
		}
		rep.Checks = append(rep.Checks, cs)
	}
	return rep
}
