package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"tracksplit/internal/pipeline"
)

type recordingStep struct {
	name string
	log  *[]string
	err  error
}

func (s *recordingStep) Name() string { return s.name }

func (s *recordingStep) Execute(_ context.Context, _ *Env) error {
	*s.log = append(*s.log, s.name)
	return s.err
}

func TestRunExecutesStepsInOrder(t *testing.T) {
	dir := t.TempDir()
	var log []string
	steps := []Step{
		&recordingStep{name: "first", log: &log},
		&recordingStep{name: "second", log: &log},
	}

	r := &Runner{Env: &Env{WorkingDir: dir}}
	if err := r.Run(context.Background(), steps); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(log) != 2 || log[0] != "first" || log[1] != "second" {
		t.Fatalf("execution order = %v", log)
	}
}

func TestRunAbortsOnFirstError(t *testing.T) {
	dir := t.TempDir()
	var log []string
	boom := errors.New("boom")
	steps := []Step{
		&recordingStep{name: "first", log: &log, err: boom},
		&recordingStep{name: "second", log: &log},
	}

	r := &Runner{Env: &Env{WorkingDir: dir}}
	err := r.Run(context.Background(), steps)
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if len(log) != 1 {
		t.Fatalf("later steps must not run after a failure: %v", log)
	}
}

func TestRunReleasesLock(t *testing.T) {
	dir := t.TempDir()
	r := &Runner{Env: &Env{WorkingDir: dir}}
	if err := r.Run(context.Background(), nil); err != nil {
		t.Fatalf("first run: %v", err)
	}
	// The lock file is removed and a second run can acquire it again.
	if _, err := os.Stat(filepath.Join(dir, lockFileName)); !os.IsNotExist(err) {
		t.Fatalf("lock file should be removed, stat err = %v", err)
	}
	if err := r.Run(context.Background(), nil); err != nil {
		t.Fatalf("second run: %v", err)
	}
}

func TestBuildDispatchesStepTypes(t *testing.T) {
	doc := &pipeline.Document{
		Steps: []pipeline.Step{
			pipeline.ExtractStep{Input: "a.mkv", Output: "a.wav"},
			pipeline.SplitStep{Input: "a.wav", Segments: []pipeline.SplitSegment{{File: "t.wav", Start: "0:00:00.000", End: "0:01:00.000"}}},
			pipeline.TranscodeStep{Files: []string{"*.wav"}},
			pipeline.TagStep{Files: []pipeline.TagSpec{{File: "*.mp3"}}},
			pipeline.CleanupStep{Targets: []string{"a.wav"}},
		},
	}
	steps := Build(doc, pipeline.SelectedFormat{Format: "mp3"})
	if len(steps) != 5 {
		t.Fatalf("expected 5 steps, got %d", len(steps))
	}
	wantNames := []string{"extract", "split", "transcode", "tag", "cleanup"}
	for i, step := range steps {
		if step.Name() != wantNames[i] {
			t.Errorf("step %d name = %q, want %q", i, step.Name(), wantNames[i])
		}
	}
}

func TestWrapTagsSentinel(t *testing.T) {
	err := Wrap(ErrValidation, "split", "parse", "bad timestamp", errors.New("underlying"))
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if got := err.Error(); got == "" || !errors.Is(err, ErrValidation) {
		t.Fatalf("unexpected message %q", got)
	}

	err = Wrap(nil, "", "", "", nil)
	if !errors.Is(err, ErrExternalTool) {
		t.Fatalf("nil marker should default to ErrExternalTool, got %v", err)
	}
}
