package runner

import (
	"context"
	"fmt"

	"tracksplit/internal/pipeline"
	"tracksplit/internal/splitter"
	"tracksplit/internal/timecode"
)

type splitStep struct {
	step pipeline.SplitStep
}

func (s *splitStep) Name() string { return "split" }

func (s *splitStep) Execute(ctx context.Context, env *Env) error {
	segments, err := resolveSegments(s.step.Segments)
	if err != nil {
		return Wrap(ErrConfiguration, s.Name(), "parse", "segment timestamps", err)
	}

	input := env.Resolve(s.step.Input)
	outputDir := env.Resolve(s.step.OutputDir)
	if s.step.OutputDir == "" {
		outputDir = env.WorkingDir
	}

	if err := splitter.Split(input, outputDir, segments, env.Logger); err != nil {
		return Wrap(ErrExternalTool, s.Name(), "split", s.step.Input, err)
	}
	return nil
}

// resolveSegments converts the document's timestamp strings to seconds,
// enforcing the strict timecode grammar.
func resolveSegments(raw []pipeline.SplitSegment) ([]splitter.Segment, error) {
	segments := make([]splitter.Segment, 0, len(raw))
	for _, seg := range raw {
		start, err := timecode.Parse(seg.Start)
		if err != nil {
			return nil, fmt.Errorf("segment %s: start: %w", seg.File, err)
		}
		end, err := timecode.Parse(seg.End)
		if err != nil {
			return nil, fmt.Errorf("segment %s: end: %w", seg.File, err)
		}
		segments = append(segments, splitter.Segment{File: seg.File, Start: start, End: end})
	}
	return segments, nil
}
