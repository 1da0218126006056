// Package runner executes a validated pipeline step by step. Steps run
// strictly sequentially; the first failure aborts the remainder and partial
// outputs from the failed step are left in place.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"tracksplit/internal/deps"
	"tracksplit/internal/durcheck"
	"tracksplit/internal/logging"
	"tracksplit/internal/pipeline"
)

const lockFileName = ".tracksplit.lock"

// Env carries the shared state every step executes against.
type Env struct {
	WorkingDir string
	FFmpeg     string
	Encoders   deps.Encoders
	Prober     durcheck.Prober
	Logger     *slog.Logger
	// Progress enables the interactive progress bar for long external
	// invocations; off for non-terminal output.
	Progress bool
}

// Resolve joins a pipeline-relative path with the working directory.
// Absolute paths pass through.
func (e *Env) Resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(e.WorkingDir, path)
}

// Step is one executable unit of the pipeline.
type Step interface {
	Name() string
	Execute(ctx context.Context, env *Env) error
}

// Build converts the parsed document steps into executable steps, binding
// the selected format into every transcode.
func Build(doc *pipeline.Document, format pipeline.SelectedFormat) []Step {
	steps := make([]Step, 0, len(doc.Steps))
	for _, step := range doc.Steps {
		switch s := step.(type) {
		case pipeline.ExtractStep:
			steps = append(steps, &extractStep{step: s})
		case pipeline.SplitStep:
			steps = append(steps, &splitStep{step: s})
		case pipeline.TranscodeStep:
			steps = append(steps, &transcodeStep{step: s, format: format})
		case pipeline.TagStep:
			steps = append(steps, &tagStep{step: s})
		case pipeline.CleanupStep:
			steps = append(steps, &cleanupStep{step: s})
		}
	}
	return steps
}

// Runner drives one pipeline execution under a working-directory lock.
type Runner struct {
	Env *Env
}

// Run executes the steps in order. A second run against the same working
// directory fails fast instead of corrupting in-flight outputs.
func (r *Runner) Run(ctx context.Context, steps []Step) error {
	env := r.Env
	logger := env.Logger
	if logger == nil {
		logger = logging.NewNop()
		env.Logger = logger
	}

	if err := os.MkdirAll(env.WorkingDir, 0o755); err != nil {
		return Wrap(ErrConfiguration, "run", "prepare", "create working directory", err)
	}

	lock := flock.New(filepath.Join(env.WorkingDir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return Wrap(ErrConfiguration, "run", "lock", "acquire working directory lock", err)
	}
	if !locked {
		return Wrap(ErrConfiguration, "run", "lock", fmt.Sprintf("another run holds %s", lockFileName), nil)
	}
	defer func() {
		_ = lock.Unlock()
		_ = os.Remove(lock.Path())
	}()

	runID := uuid.NewString()
	logger = logger.With(logging.String("run_id", runID))
	env.Logger = logger

	logger.Info("pipeline started", logging.Int("steps", len(steps)))
	for i, step := range steps {
		stepLogger := logging.WithComponent(logger, step.Name())
		stepEnv := *env
		stepEnv.Logger = stepLogger

		stepLogger.Info("step started", logging.Int("position", i+1))
		if err := step.Execute(ctx, &stepEnv); err != nil {
			stepLogger.Error("step failed", logging.Error(err))
			return err
		}
		stepLogger.Info("step finished", logging.Int("position", i+1))
	}
	logger.Info("pipeline finished")
	return nil
}
