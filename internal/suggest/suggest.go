// Package suggest repairs failed duration checks by scanning the working
// directory for files whose probed duration matches the expectation, ranking
// them by closeness, and asking the operator to confirm the substitution.
package suggest

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"tracksplit/internal/durcheck"
	"tracksplit/internal/logging"
	"tracksplit/internal/timecode"
)

// Confirmer answers yes/no prompts. The default implementation reads the
// terminal; tests inject canned answers.
type Confirmer interface {
	Confirm(prompt string, def bool) (bool, error)
}

// Candidate is one scanned file with its probed duration.
type Candidate struct {
	Path     string
	Duration float64
}

// Suggestion is a confirmed substitution for a failed check.
type Suggestion struct {
	StepIndex int
	OldInput  string
	NewInput  string
	Duration  float64
}

// Suggester scans for and confirms replacement input files.
type Suggester struct {
	Prober    durcheck.Prober
	Confirmer Confirmer
	Pattern   string
	Tolerance float64
	Logger    *slog.Logger
}

// ScanCandidates probes every file in dir whose base name matches the scan
// pattern. The scan is not recursive. Files that fail to probe are logged
// and skipped rather than aborting the scan.
func (s *Suggester) ScanCandidates(ctx context.Context, dir string) ([]Candidate, error) {
	logger := s.logger()

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		matched, err := doublestar.Match(s.Pattern, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("scan pattern %q: %w", s.Pattern, err)
		}
		if matched {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	candidates := make([]Candidate, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		duration, err := s.Prober.Duration(ctx, path)
		if err != nil {
			logger.Warn("skipping unprobeable candidate", logging.String("path", path), logging.Error(err))
			continue
		}
		candidates = append(candidates, Candidate{Path: path, Duration: duration})
	}
	return candidates, nil
}

// FindBestMatch picks the candidate whose duration is closest to expected,
// requiring the difference to be strictly under tolerance. Ties keep the
// first candidate encountered. The second return reports whether any
// candidate qualified.
func FindBestMatch(candidates []Candidate, expected float64, tolerance float64) (Candidate, bool) {
	var best Candidate
	bestDiff := math.Inf(1)
	found := false
	for _, candidate := range candidates {
		diff := math.Abs(candidate.Duration - expected)
		if diff >= tolerance {
			continue
		}
		if diff < bestDiff {
			best = candidate
			bestDiff = diff
			found = true
		}
	}
	return best, found
}

// Suggest attempts to repair one failed check. It scans the directory of the
// failing input (or the working directory for bare names), ranks candidates,
// and asks the operator to confirm the best one. It returns ok=false when no
// candidate qualifies or the operator declines.
func (s *Suggester) Suggest(ctx context.Context, workingDir string, check durcheck.CheckInfo) (Suggestion, bool, error) {
	logger := s.logger()

	scanDir := workingDir
	inputPath := check.InputFile
	if !filepath.IsAbs(inputPath) {
		inputPath = filepath.Join(workingDir, inputPath)
	}
	if dir := filepath.Dir(inputPath); dir != "" {
		scanDir = dir
	}

	candidates, err := s.ScanCandidates(ctx, scanDir)
	if err != nil {
		return Suggestion{}, false, err
	}

	// Never re-suggest the file that already failed.
	filtered := candidates[:0]
	for _, candidate := range candidates {
		if candidate.Path != inputPath {
			filtered = append(filtered, candidate)
		}
	}

	best, found := FindBestMatch(filtered, check.ExpectedSeconds, s.Tolerance)
	if !found {
		logger.Info("no matching file found",
			logging.String("input", check.InputFile),
			logging.Int("candidates", len(filtered)))
		return Suggestion{}, false, nil
	}

	diff := math.Abs(best.Duration - check.ExpectedSeconds)
	var prompt string
	if check.ActualSeconds == 0 {
		prompt = fmt.Sprintf("%s is missing. Use %s instead? (runs %s, expected %s, off by %.1fs)",
			check.InputFile, filepath.Base(best.Path),
			timecode.Format(best.Duration, 3), check.ExpectedDuration, diff)
	} else {
		prompt = fmt.Sprintf("%s runs %s but %s was expected. Use %s instead? (runs %s, off by %.1fs)",
			check.InputFile, timecode.Format(check.ActualSeconds, 3), check.ExpectedDuration,
			filepath.Base(best.Path), timecode.Format(best.Duration, 3), diff)
	}

	accepted, err := s.Confirmer.Confirm(prompt, true)
	if err != nil {
		return Suggestion{}, false, fmt.Errorf("confirm substitution: %w", err)
	}
	if !accepted {
		logger.Info("substitution declined", logging.String("candidate", best.Path))
		return Suggestion{}, false, nil
	}

	newInput := best.Path
	if !filepath.IsAbs(check.InputFile) {
		if rel, err := filepath.Rel(workingDir, best.Path); err == nil {
			newInput = rel
		}
	}

	logger.Info("input substituted",
		logging.String("old", check.InputFile),
		logging.String("new", newInput))
	return Suggestion{
		StepIndex: check.StepIndex,
		OldInput:  check.InputFile,
		NewInput:  newInput,
		Duration:  best.Duration,
	}, true, nil
}

func (s *Suggester) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return logging.NewNop()
}
