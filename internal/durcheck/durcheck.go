// Package durcheck reconciles the probed durations of extract inputs
// against the expected durations declared in the pipeline document.
package durcheck

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"tracksplit/internal/logging"
	"tracksplit/internal/pipeline"
	"tracksplit/internal/timecode"
)

// Prober resolves media durations, normally an ffprobe client or a caching
// wrapper around one.
type Prober interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// CheckInfo records the outcome of reconciling one extract input.
type CheckInfo struct {
	StepIndex         int
	InputFile         string
	ExpectedDuration  string
	ExpectedSeconds   float64
	ActualSeconds     float64
	DifferenceSeconds float64
	Valid             bool
}

// Result aggregates the reconciliation across every checked step.
type Result struct {
	Valid  bool
	Errors []string
	Checks []CheckInfo
}

// Check probes every extract input that declares an expected duration and
// compares the two within tolerance. A missing input file is recorded as a
// failed check so a later repair pass can suggest a substitute; any other
// probe failure is a hard error for that step.
func Check(ctx context.Context, steps []pipeline.Step, workingDir string, tolerance float64, prober Prober, logger *slog.Logger) Result {
	if logger == nil {
		logger = logging.NewNop()
	}
	result := Result{Valid: true}

	for i, step := range steps {
		extract, ok := step.(pipeline.ExtractStep)
		if !ok || extract.ExpectedDuration == "" {
			continue
		}

		expected, err := timecode.ParseClock(extract.ExpectedDuration)
		if err != nil {
			result.Valid = false
			result.Errors = append(result.Errors,
				fmt.Sprintf("step %d: invalid expected_duration %q: %v", i+1, extract.ExpectedDuration, err))
			continue
		}

		path := extract.Input
		if !filepath.IsAbs(path) {
			path = filepath.Join(workingDir, path)
		}

		info := CheckInfo{
			StepIndex:        i,
			InputFile:        extract.Input,
			ExpectedDuration: extract.ExpectedDuration,
			ExpectedSeconds:  expected,
		}

		if _, err := os.Stat(path); err != nil {
			// A missing input is recoverable: record the check with a zero
			// actual so the suggestion pass can target this step.
			info.ActualSeconds = 0
			info.DifferenceSeconds = expected
			info.Valid = false
			result.Checks = append(result.Checks, info)
			result.Valid = false
			result.Errors = append(result.Errors,
				fmt.Sprintf("step %d: input %s does not exist", i+1, extract.Input))
			logger.Warn("input missing",
				logging.Int("step", i+1),
				logging.String("input", extract.Input),
				logging.Error(err))
			continue
		}

		actual, err := prober.Duration(ctx, path)
		if err != nil {
			// The file is present but unprobeable. No substitute can repair
			// that, so no check entry is recorded for the suggestion pass.
			result.Valid = false
			result.Errors = append(result.Errors,
				fmt.Sprintf("step %d: cannot determine duration of %s: %v", i+1, extract.Input, err))
			logger.Warn("duration probe failed",
				logging.Int("step", i+1),
				logging.String("input", extract.Input),
				logging.Error(err))
			continue
		}

		info.ActualSeconds = actual
		info.DifferenceSeconds = math.Abs(actual - expected)
		info.Valid = info.DifferenceSeconds < tolerance
		result.Checks = append(result.Checks, info)

		if !info.Valid {
			result.Valid = false
			result.Errors = append(result.Errors,
				fmt.Sprintf("step %d: %s runs %s but expected %s (off by %.1fs)",
					i+1, extract.Input,
					timecode.Format(actual, 3),
					extract.ExpectedDuration,
					info.DifferenceSeconds))
		}
		logger.Debug("duration check",
			logging.Int("step", i+1),
			logging.String("input", extract.Input),
			logging.Float64("expected", expected),
			logging.Float64("actual", actual),
			logging.Bool("valid", info.Valid))
	}

	return result
}
