package validate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tracksplit/internal/pipeline"
)

func mp3Format() pipeline.SelectedFormat {
	return pipeline.SelectedFormat{Format: "mp3", Bitrate: "320k"}
}

func concertSteps() []pipeline.Step {
	return []pipeline.Step{
		pipeline.ExtractStep{Input: "in.mkv", Output: "audio.wav"},
		pipeline.SplitStep{
			Input: "audio.wav",
			Segments: []pipeline.SplitSegment{
				{File: "t1.wav", Start: "0:00:00.000", End: "0:03:00.000"},
			},
		},
		pipeline.TranscodeStep{Files: []string{"t1.wav"}},
	}
}

func TestValidatePassesWithInputPresent(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "in.mkv"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	result := Validate(concertSteps(), mp3Format(), dir, nil)
	if !result.Valid {
		t.Fatalf("expected valid, errors: %v", result.Errors)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("expected zero errors, got %v", result.Errors)
	}
}

func TestValidateMissingInputProducesOneError(t *testing.T) {
	dir := t.TempDir()

	result := Validate(concertSteps(), mp3Format(), dir, nil)
	if result.Valid {
		t.Fatal("expected invalid result")
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected exactly one error, got %v", result.Errors)
	}
	if !strings.Contains(result.Errors[0], "in.mkv") {
		t.Errorf("error should name in.mkv: %q", result.Errors[0])
	}
}

func TestValidateRegistersIntermediateOutputs(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "in.mkv"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	steps := []pipeline.Step{
		pipeline.ExtractStep{Input: "in.mkv", Output: "audio.wav"},
		pipeline.SplitStep{
			Input:     "audio.wav",
			OutputDir: "tracks",
			Segments: []pipeline.SplitSegment{
				{File: "one.wav", Start: "0:00:00.000", End: "0:01:00.000"},
				{File: "two.wav", Start: "0:01:00.000", End: "0:02:00.000"},
			},
		},
		pipeline.TranscodeStep{InputDir: "tracks", OutputDir: "encoded", Files: []string{"*.wav"}},
		pipeline.TagStep{InputDir: "encoded", Files: []pipeline.TagSpec{{File: "*.mp3", Title: "Song"}}},
		pipeline.CleanupStep{Targets: []string{"audio.wav", "tracks"}},
	}

	result := Validate(steps, mp3Format(), dir, nil)
	if !result.Valid {
		t.Fatalf("pipeline should validate cleanly, errors: %v", result.Errors)
	}
}

func TestValidateMalformedTimestamps(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "audio.wav"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	steps := []pipeline.Step{
		pipeline.SplitStep{
			Input: "audio.wav",
			Segments: []pipeline.SplitSegment{
				{File: "a.wav", Start: "0:00:00.00", End: "0:61:00.000"},
			},
		},
	}
	result := Validate(steps, pipeline.SelectedFormat{}, dir, nil)
	if result.Valid {
		t.Fatal("malformed timestamps must fail validation")
	}
	if len(result.Errors) != 2 {
		t.Fatalf("expected errors for both boundaries, got %v", result.Errors)
	}
}

func TestValidateTranscodeExtensionDerivation(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "track.wav"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	steps := []pipeline.Step{
		pipeline.TranscodeStep{Files: []string{"track.wav"}},
		// The tag step only matches if the transcode registered track.mp3.
		pipeline.TagStep{Files: []pipeline.TagSpec{{File: "track.mp3"}}},
	}
	result := Validate(steps, mp3Format(), dir, nil)
	if !result.Valid {
		t.Fatalf("expected valid, errors: %v", result.Errors)
	}
}

func TestTranscodeOutputName(t *testing.T) {
	cases := []struct {
		name   string
		format pipeline.SelectedFormat
		want   string
	}{
		{"track.wav", pipeline.SelectedFormat{Format: "mp3"}, "track.mp3"},
		{"track.wav", pipeline.SelectedFormat{Format: "flac"}, "track.flac"},
		{"track.wav", pipeline.SelectedFormat{Format: "aac"}, "track.m4a"},
		{"already.flac", pipeline.SelectedFormat{Format: "mp3"}, "already.flac.mp3"},
	}
	for _, tc := range cases {
		if got := transcodeOutputName(tc.name, tc.format); got != tc.want {
			t.Errorf("transcodeOutputName(%q, %s) = %q, want %q", tc.name, tc.format.Format, got, tc.want)
		}
	}
}

func TestValidateTranscodeLiteralOutsideWorkingDir(t *testing.T) {
	dir := t.TempDir()
	outside := t.TempDir()
	source := filepath.Join(outside, "elsewhere.wav")
	if err := os.WriteFile(source, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	steps := []pipeline.Step{
		pipeline.TranscodeStep{Files: []string{source}},
	}
	result := Validate(steps, mp3Format(), dir, nil)
	if !result.Valid {
		t.Fatalf("absolute literal inputs should fall back to the disk, errors: %v", result.Errors)
	}

	// Globs get no disk fallback; the simulated tree is authoritative.
	steps = []pipeline.Step{
		pipeline.TranscodeStep{InputDir: outside, Files: []string{"*.wav"}},
	}
	result = Validate(steps, mp3Format(), dir, nil)
	if result.Valid {
		t.Fatal("glob outside the seeded tree must still be an error")
	}
}

func TestValidateSplitEmptySegmentFilename(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "audio.wav"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	steps := []pipeline.Step{
		pipeline.SplitStep{
			Input: "audio.wav",
			Segments: []pipeline.SplitSegment{
				{File: "", Start: "0:00:00.000", End: "0:01:00.000"},
			},
		},
	}
	result := Validate(steps, pipeline.SelectedFormat{}, dir, nil)
	if result.Valid {
		t.Fatal("segment without an output filename must fail validation")
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "filename") {
		t.Fatalf("expected one filename error, got %v", result.Errors)
	}
}

func TestValidateTagEmptyMatchIsError(t *testing.T) {
	dir := t.TempDir()
	steps := []pipeline.Step{
		pipeline.TagStep{Files: []pipeline.TagSpec{{File: "*.mp3"}}},
	}
	result := Validate(steps, pipeline.SelectedFormat{}, dir, nil)
	if result.Valid {
		t.Fatal("tag step with zero matches must be an error")
	}
}

func TestValidateMissingAlbumArtIsWarning(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "track.mp3"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	steps := []pipeline.Step{
		pipeline.TagStep{Files: []pipeline.TagSpec{{File: "track.mp3", AlbumArt: "cover.jpg"}}},
	}
	result := Validate(steps, pipeline.SelectedFormat{}, dir, nil)
	if !result.Valid {
		t.Fatalf("missing art must not fail validation, errors: %v", result.Errors)
	}
	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0], "cover.jpg") {
		t.Fatalf("expected one art warning, got %v", result.Warnings)
	}
}

func TestValidateCleanupWarnsButStaysValid(t *testing.T) {
	dir := t.TempDir()
	steps := []pipeline.Step{
		pipeline.CleanupStep{Targets: []string{"never-existed.wav"}},
	}
	result := Validate(steps, pipeline.SelectedFormat{}, dir, nil)
	if !result.Valid {
		t.Fatalf("cleanup warnings must not invalidate, errors: %v", result.Errors)
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("expected one warning, got %v", result.Warnings)
	}
}

func TestValidateCleanupRemovalAffectsLaterSteps(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "audio.wav"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	steps := []pipeline.Step{
		pipeline.CleanupStep{Targets: []string{"audio.wav"}},
		pipeline.SplitStep{
			Input: "audio.wav",
			Segments: []pipeline.SplitSegment{
				{File: "a.wav", Start: "0:00:00.000", End: "0:01:00.000"},
			},
		},
	}
	result := Validate(steps, pipeline.SelectedFormat{}, dir, nil)
	// The file is on disk, so the disk fallback still sees it; remove it to
	// prove the simulated removal wins when the disk copy is gone too.
	if !result.Valid {
		t.Fatalf("disk fallback should keep this valid, errors: %v", result.Errors)
	}

	if err := os.Remove(filepath.Join(dir, "audio.wav")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	steps2 := []pipeline.Step{
		pipeline.ExtractStep{Input: "source.mkv", Output: "audio.wav"},
		pipeline.CleanupStep{Targets: []string{"audio.wav"}},
		pipeline.SplitStep{
			Input: "audio.wav",
			Segments: []pipeline.SplitSegment{
				{File: "a.wav", Start: "0:00:00.000", End: "0:01:00.000"},
			},
		},
	}
	if err := os.WriteFile(filepath.Join(dir, "source.mkv"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	result = Validate(steps2, pipeline.SelectedFormat{}, dir, nil)
	if result.Valid {
		t.Fatal("split after cleanup of its input must fail")
	}
}

func TestValidateFormatWithoutTranscodeWarns(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "in.mkv"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	steps := []pipeline.Step{
		pipeline.ExtractStep{Input: "in.mkv", Output: "audio.wav"},
	}
	result := Validate(steps, mp3Format(), dir, nil)
	if !result.Valid {
		t.Fatalf("warning only, errors: %v", result.Errors)
	}
	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0], "transcode") {
		t.Fatalf("expected format warning, got %v", result.Warnings)
	}

	// No warning for the pass-through format or an empty selection.
	for _, format := range []pipeline.SelectedFormat{{}, {Format: "wav"}} {
		result = Validate(steps, format, dir, nil)
		if len(result.Warnings) != 0 {
			t.Errorf("format %q should not warn: %v", format.Format, result.Warnings)
		}
	}
}
