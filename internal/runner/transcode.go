package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"tracksplit/internal/deps"
	"tracksplit/internal/logging"
	"tracksplit/internal/pipeline"
)

type transcodeStep struct {
	step   pipeline.TranscodeStep
	format pipeline.SelectedFormat
}

func (s *transcodeStep) Name() string { return "transcode" }

func (s *transcodeStep) Execute(ctx context.Context, env *Env) error {
	inputDir := env.Resolve(s.step.InputDir)
	if s.step.InputDir == "" {
		inputDir = env.WorkingDir
	}
	outputDir := env.Resolve(s.step.OutputDir)
	if s.step.OutputDir == "" {
		outputDir = inputDir
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return Wrap(ErrConfiguration, s.Name(), "prepare", "create output directory", err)
	}

	for _, pattern := range s.step.Files {
		inputs, err := expandPattern(inputDir, pattern)
		if err != nil {
			return Wrap(ErrConfiguration, s.Name(), "glob", pattern, err)
		}
		if len(inputs) == 0 {
			env.Logger.Warn("no files match pattern, skipping", logging.String("pattern", pattern))
			continue
		}
		for _, input := range inputs {
			output := filepath.Join(outputDir, transcodeOutputName(filepath.Base(input), s.format))
			if err := s.encode(ctx, env, input, output); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *transcodeStep) encode(ctx context.Context, env *Env, input, output string) error {
	codecArgs, err := codecArguments(s.format, env.Encoders)
	if err != nil {
		return Wrap(ErrConfiguration, s.Name(), "codec", s.format.Format, err)
	}

	args := []string{"-y", "-i", input}
	args = append(args, codecArgs...)
	args = append(args, "-progress", "pipe:1", "-nostats", output)

	var total float64
	if env.Prober != nil {
		if seconds, probeErr := env.Prober.Duration(ctx, input); probeErr == nil {
			total = seconds
		}
	}

	env.Logger.Info("encoding",
		logging.String("input", filepath.Base(input)),
		logging.String("output", filepath.Base(output)))
	if err := runFFmpeg(ctx, env, args, total, filepath.Base(output)); err != nil {
		return Wrap(ErrExternalTool, s.Name(), "ffmpeg", filepath.Base(input), err)
	}
	if _, err := os.Stat(output); err != nil {
		return Wrap(ErrExternalTool, s.Name(), "verify", fmt.Sprintf("output %s missing after encoding", filepath.Base(output)), err)
	}
	return nil
}

// expandPattern resolves one file entry, treating entries with glob
// metacharacters as patterns and everything else as literal names.
func expandPattern(dir, pattern string) ([]string, error) {
	if !strings.ContainsAny(pattern, "*?[{") {
		path := filepath.Join(dir, pattern)
		if _, err := os.Stat(path); err != nil {
			return nil, nil
		}
		return []string{path}, nil
	}
	matches, err := doublestar.FilepathGlob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// transcodeOutputName derives the encoded name: strip a .wav suffix from
// the stem, then append the container extension for the selected format.
func transcodeOutputName(name string, format pipeline.SelectedFormat) string {
	return strings.TrimSuffix(name, ".wav") + "." + format.Extension()
}

// codecArguments maps the selected format onto ffmpeg encoder arguments.
func codecArguments(format pipeline.SelectedFormat, encoders deps.Encoders) ([]string, error) {
	switch format.Format {
	case "mp3":
		args := []string{"-codec:a", "libmp3lame"}
		if format.Bitrate != "" {
			args = append(args, "-b:a", format.Bitrate)
		}
		return args, nil
	case "aac":
		args := []string{"-codec:a", encoders.AACEncoder()}
		if format.Bitrate != "" {
			args = append(args, "-b:a", format.Bitrate)
		}
		return args, nil
	case "flac":
		args := []string{"-codec:a", "flac"}
		if format.BitDepth > 0 {
			args = append(args, "-sample_fmt", sampleFormat(format.BitDepth))
		}
		return args, nil
	case "alac":
		args := []string{"-codec:a", "alac"}
		if format.BitDepth > 0 {
			args = append(args, "-sample_fmt", sampleFormat(format.BitDepth))
		}
		return args, nil
	case "":
		return nil, fmt.Errorf("no format selected")
	default:
		return nil, fmt.Errorf("unsupported format %q", format.Format)
	}
}

// sampleFormat maps a bit depth to the ffmpeg sample format name. Depths
// above 16 use the 32-bit planar format; lossless encoders downshift to
// their closest supported width.
func sampleFormat(bitDepth int) string {
	if bitDepth <= 16 {
		return "s16"
	}
	return "s32"
}
