// Package conformance runs YAML test corpora through the full pipeline.
package conformance

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"

	"sable/internal/config"
	"sable/internal/driver"
	"sable/internal/ir"
	"sable/internal/runtime"
	"sable/internal/vm"
)

var (
	log   = commonlog.GetLogger("sable.conformance")
	vmLog = commonlog.GetLogger("sable.vm")
)

// DefaultStepBudget keeps a runaway test from hanging the suite when the
// configuration sets no budget.
const DefaultStepBudget = 10_000_000

// TestResult represents the outcome of running a single test
type TestResult struct {
	Test       LoadedTest
	Passed     bool
	Skipped    bool
	SkipReason string
	Error      error
	Duration   time.Duration
}

// Report is the outcome of one RunAll call.
type Report struct {
	RunID   string
	Results []TestResult
	Stats   SummaryStats
}

// SummaryStats counts results by outcome.
type SummaryStats struct {
	Total   int
	Passed  int
	Failed  int
	Skipped int
}

// Runner executes conformance tests
type Runner struct {
	cfg         *config.Config
	parallelism int
}

// NewRunner creates a runner. cfg supplies VM limits and may be nil;
// parallelism <= 0 means one worker per test.
func NewRunner(cfg *config.Config, parallelism int) *Runner {
	if cfg == nil {
		cfg = config.Default()
	}
	c := *cfg
	if c.VM.StepBudget == 0 {
		c.VM.StepBudget = DefaultStepBudget
	}
	return &Runner{cfg: &c, parallelism: parallelism}
}

// RunAll runs every test concurrently, each in its own VM. Results keep the
// order of tests. The error is non-nil only if ctx ended the run early.
func (r *Runner) RunAll(ctx context.Context, tests []LoadedTest) (*Report, error) {
	report := &Report{
		RunID:   uuid.New().String(),
		Results: make([]TestResult, len(tests)),
	}
	log.Infof("run %s: %d tests", report.RunID, len(tests))

	g, gctx := errgroup.WithContext(ctx)
	if r.parallelism > 0 {
		g.SetLimit(r.parallelism)
	}
	for i := range tests {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			report.Results[i] = r.run(gctx, report.RunID, tests[i])
			return nil
		})
	}
	err := g.Wait()

	report.Stats = ComputeStats(report.Results)
	log.Infof("run %s: %s", report.RunID, FormatStats(report.Stats))
	return report, err
}

// Run executes a single test.
func (r *Runner) Run(ctx context.Context, test LoadedTest) TestResult {
	return r.run(ctx, "", test)
}

func (r *Runner) run(ctx context.Context, runID string, test LoadedTest) TestResult {
	result := TestResult{Test: test}
	if skip, reason := test.Test.IsSkipped(); skip {
		result.Skipped = true
		result.SkipReason = reason
		return result
	}

	start := time.Now()
	logger := commonlog.NewKeyValueLogger(vmLog, "run", runID, "test", test.Name())
	result.Error = r.check(ctx, test.Test, logger)
	result.Duration = time.Since(start)
	result.Passed = result.Error == nil
	if !result.Passed {
		log.Debugf("%s: %s", test.Name(), result.Error)
	}
	return result
}

func (r *Runner) check(ctx context.Context, test TestCase, logger commonlog.Logger) error {
	expect := test.Expect

	bc, err := driver.Compile(test.Source)
	var parseErr *driver.ParseError
	switch {
	case errors.As(err, &parseErr):
		if expect.ParseError {
			return nil
		}
		return fmt.Errorf("unexpected parse error: %w", err)
	case err != nil:
		if expect.CompileError != "" {
			if errors.Is(err, ir.ErrorKind(expect.CompileError)) {
				return nil
			}
			return fmt.Errorf("expected compile error %s, got: %w", expect.CompileError, err)
		}
		return fmt.Errorf("unexpected compile error: %w", err)
	case expect.ParseError:
		return fmt.Errorf("expected a parse error, source parsed")
	case expect.CompileError != "":
		return fmt.Errorf("expected compile error %s, source compiled", expect.CompileError)
	}

	var out bytes.Buffer
	val, err := driver.Run(ctx, bc, runtime.NewWriterEnv(&out), r.cfg, vm.WithLogger(logger))
	if err != nil {
		if expect.Fault != "" {
			if errors.Is(err, vm.FaultKind(expect.Fault)) {
				return nil
			}
			return fmt.Errorf("expected fault %s, got: %w", expect.Fault, err)
		}
		return fmt.Errorf("unexpected fault: %w", err)
	}
	if expect.Fault != "" {
		return fmt.Errorf("expected fault %s, run returned %s", expect.Fault, val.Inspect())
	}

	if expect.Value != nil && val.Inspect() != *expect.Value {
		return fmt.Errorf("value: expected %s, got %s", *expect.Value, val.Inspect())
	}
	if expect.Output != nil && out.String() != *expect.Output {
		return fmt.Errorf("output: expected %q, got %q", *expect.Output, out.String())
	}
	return nil
}

// ComputeStats counts results by outcome.
func ComputeStats(results []TestResult) SummaryStats {
	stats := SummaryStats{Total: len(results)}
	for _, r := range results {
		if r.Skipped {
			stats.Skipped++
		} else if r.Passed {
			stats.Passed++
		} else {
			stats.Failed++
		}
	}
	return stats
}

// FormatStats returns a human-readable summary
func FormatStats(stats SummaryStats) string {
	return fmt.Sprintf("%d passed, %d failed, %d skipped (%d total)",
		stats.Passed, stats.Failed, stats.Skipped, stats.Total)
}
