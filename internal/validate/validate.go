// Package validate simulates a pipeline against a virtual copy of the
// working directory before anything expensive runs. Every step's inputs are
// checked and its outputs registered in the simulated tree, so a missing
// dependency halfway through the pipeline surfaces before the first ffmpeg
// invocation.
package validate

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"tracksplit/internal/logging"
	"tracksplit/internal/pipeline"
	"tracksplit/internal/timecode"
	"tracksplit/internal/vfs"
)

// Result accumulates validation errors and warnings. Valid flips to false
// the moment any error is added; warnings never flip it.
type Result struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// AddError records an error and marks the result invalid.
func (r *Result) AddError(format string, args ...any) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// AddWarning records a non-fatal warning.
func (r *Result) AddWarning(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Validate simulates every step in order against a tree seeded from the
// real working directory.
func Validate(steps []pipeline.Step, format pipeline.SelectedFormat, workingDir string, logger *slog.Logger) Result {
	if logger == nil {
		logger = logging.NewNop()
	}
	result := Result{Valid: true}
	tree := seedTree(workingDir, logger)

	for i, step := range steps {
		switch s := step.(type) {
		case pipeline.ExtractStep:
			validateExtract(tree, workingDir, i, s, &result)
		case pipeline.SplitStep:
			validateSplit(tree, workingDir, i, s, &result)
		case pipeline.TranscodeStep:
			validateTranscode(tree, workingDir, i, s, format, &result)
		case pipeline.TagStep:
			validateTag(tree, i, s, &result)
		case pipeline.CleanupStep:
			validateCleanup(tree, i, s, &result)
		}
	}

	if !trivialFormat(format) && !hasTranscode(steps) {
		result.AddWarning("format %s selected but the pipeline has no transcode step", format.Format)
	}

	logger.Debug("validation finished",
		logging.Bool("valid", result.Valid),
		logging.Int("errors", len(result.Errors)),
		logging.Int("warnings", len(result.Warnings)))
	return result
}

// seedTree walks the real working directory so pre-existing files count as
// already available. An unreadable directory seeds an empty tree; the
// per-step disk fallback still applies.
func seedTree(workingDir string, logger *slog.Logger) *vfs.Tree {
	tree := vfs.New()
	err := filepath.WalkDir(workingDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(workingDir, path)
		if relErr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			tree.AddDir(rel)
		} else {
			tree.AddFile(rel)
		}
		return nil
	})
	if err != nil {
		logger.Warn("working directory scan failed", logging.Error(err), logging.String("dir", workingDir))
	}
	return tree
}

// available reports whether path exists in the simulated tree or, as a
// fallback, on the real disk (covering absolute paths outside the seeded
// working directory).
func available(tree *vfs.Tree, workingDir, path string) bool {
	if tree.Exists(path) {
		return true
	}
	real := path
	if !filepath.IsAbs(real) {
		real = filepath.Join(workingDir, real)
	}
	_, err := os.Stat(real)
	return err == nil
}

func validateExtract(tree *vfs.Tree, workingDir string, index int, step pipeline.ExtractStep, result *Result) {
	if !available(tree, workingDir, step.Input) {
		result.AddError("step %d (extract): input %s does not exist", index+1, step.Input)
	}
	tree.AddFile(step.Output)
}

func validateSplit(tree *vfs.Tree, workingDir string, index int, step pipeline.SplitStep, result *Result) {
	if !available(tree, workingDir, step.Input) {
		result.AddError("step %d (split): input %s does not exist", index+1, step.Input)
	}
	for _, seg := range step.Segments {
		if !timecode.Valid(seg.Start) {
			result.AddError("step %d (split): segment %s: malformed start timestamp %q", index+1, seg.File, seg.Start)
		}
		if !timecode.Valid(seg.End) {
			result.AddError("step %d (split): segment %s: malformed end timestamp %q", index+1, seg.File, seg.End)
		}
		if seg.File == "" {
			result.AddError("step %d (split): segment %s..%s has no output filename", index+1, seg.Start, seg.End)
			continue
		}
		out := seg.File
		if step.OutputDir != "" {
			out = step.OutputDir + "/" + seg.File
		}
		tree.AddFile(out)
	}
}

func validateTranscode(tree *vfs.Tree, workingDir string, index int, step pipeline.TranscodeStep, format pipeline.SelectedFormat, result *Result) {
	for _, file := range step.Files {
		matches := tree.FindInDirectory(step.InputDir, file)
		if len(matches) == 0 && !isGlob(file) {
			// Literal names can point outside the seeded working directory
			// (absolute paths included); fall back to the real disk.
			literal := file
			if step.InputDir != "" && !filepath.IsAbs(file) {
				literal = step.InputDir + "/" + file
			}
			if available(tree, workingDir, literal) {
				matches = []string{literal}
			}
		}
		if len(matches) == 0 {
			result.AddError("step %d (transcode): %s matches nothing in %s", index+1, file, displayDir(step.InputDir))
			continue
		}
		for _, match := range matches {
			out := transcodeOutputName(filepath.Base(match), format)
			if step.OutputDir != "" {
				out = step.OutputDir + "/" + out
			}
			tree.AddFile(out)
		}
	}
}

// transcodeOutputName derives the encoded file name: the .wav suffix is
// stripped from the stem before the format extension is appended.
func transcodeOutputName(name string, format pipeline.SelectedFormat) string {
	return strings.TrimSuffix(name, ".wav") + "." + format.Extension()
}

func validateTag(tree *vfs.Tree, index int, step pipeline.TagStep, result *Result) {
	for _, spec := range step.Files {
		matches := tree.FindInDirectory(step.InputDir, spec.File)
		if len(matches) == 0 {
			result.AddError("step %d (tag): %s matches nothing in %s", index+1, spec.File, displayDir(step.InputDir))
		}
		if spec.AlbumArt != "" && !tree.Exists(spec.AlbumArt) {
			result.AddWarning("step %d (tag): album art %s does not exist", index+1, spec.AlbumArt)
		}
	}
}

func validateCleanup(tree *vfs.Tree, index int, step pipeline.CleanupStep, result *Result) {
	for _, target := range step.Targets {
		if isGlob(target) {
			if len(tree.FindMatching(target)) == 0 {
				result.AddWarning("step %d (cleanup): %s matches nothing", index+1, target)
			}
			for _, match := range tree.FindMatching(target) {
				tree.Remove(match)
			}
			continue
		}
		if !tree.Exists(target) {
			result.AddWarning("step %d (cleanup): %s does not exist", index+1, target)
		}
		// Removal is simulated regardless so later steps never see an
		// already-cleaned path as available.
		tree.Remove(target)
	}
}

func hasTranscode(steps []pipeline.Step) bool {
	for _, step := range steps {
		if step.Kind() == pipeline.KindTranscode {
			return true
		}
	}
	return false
}

func trivialFormat(format pipeline.SelectedFormat) bool {
	return format.Format == "" || format.Format == "wav"
}

func isGlob(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}

func displayDir(dir string) string {
	if dir == "" {
		return "."
	}
	return dir
}
