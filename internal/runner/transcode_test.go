package runner

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tracksplit/internal/deps"
	"tracksplit/internal/pipeline"
)

func TestTranscodeOutputName(t *testing.T) {
	cases := []struct {
		name   string
		format pipeline.SelectedFormat
		want   string
	}{
		{"track.wav", pipeline.SelectedFormat{Format: "mp3"}, "track.mp3"},
		{"track.wav", pipeline.SelectedFormat{Format: "aac"}, "track.m4a"},
		{"track.wav", pipeline.SelectedFormat{Format: "alac"}, "track.m4a"},
		{"track.wav", pipeline.SelectedFormat{Format: "flac"}, "track.flac"},
		{"noext", pipeline.SelectedFormat{Format: "mp3"}, "noext.mp3"},
	}
	for _, tc := range cases {
		if got := transcodeOutputName(tc.name, tc.format); got != tc.want {
			t.Errorf("transcodeOutputName(%q, %s) = %q, want %q", tc.name, tc.format.Format, got, tc.want)
		}
	}
}

func TestCodecArguments(t *testing.T) {
	cases := []struct {
		format  pipeline.SelectedFormat
		enc     deps.Encoders
		want    []string
		wantErr bool
	}{
		{
			format: pipeline.SelectedFormat{Format: "mp3", Bitrate: "320k"},
			want:   []string{"-codec:a", "libmp3lame", "-b:a", "320k"},
		},
		{
			format: pipeline.SelectedFormat{Format: "aac", Bitrate: "256k"},
			want:   []string{"-codec:a", "aac", "-b:a", "256k"},
		},
		{
			format: pipeline.SelectedFormat{Format: "aac", Bitrate: "256k"},
			enc:    deps.Encoders{AACAT: true},
			want:   []string{"-codec:a", "aac_at", "-b:a", "256k"},
		},
		{
			format: pipeline.SelectedFormat{Format: "flac", BitDepth: 16},
			want:   []string{"-codec:a", "flac", "-sample_fmt", "s16"},
		},
		{
			format: pipeline.SelectedFormat{Format: "alac", BitDepth: 24},
			want:   []string{"-codec:a", "alac", "-sample_fmt", "s32"},
		},
		{format: pipeline.SelectedFormat{Format: "ogg"}, wantErr: true},
		{format: pipeline.SelectedFormat{}, wantErr: true},
	}

	for _, tc := range cases {
		got, err := codecArguments(tc.format, tc.enc)
		if tc.wantErr {
			if err == nil {
				t.Errorf("codecArguments(%+v): expected error", tc.format)
			}
			continue
		}
		if err != nil {
			t.Errorf("codecArguments(%+v): %v", tc.format, err)
			continue
		}
		if strings.Join(got, " ") != strings.Join(tc.want, " ") {
			t.Errorf("codecArguments(%+v) = %v, want %v", tc.format, got, tc.want)
		}
	}
}

func TestExpandPattern(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.wav", "b.wav", "c.flac"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	matches, err := expandPattern(dir, "*.wav")
	if err != nil {
		t.Fatalf("expandPattern: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %v", matches)
	}

	matches, err = expandPattern(dir, "c.flac")
	if err != nil {
		t.Fatalf("expandPattern literal: %v", err)
	}
	if len(matches) != 1 || filepath.Base(matches[0]) != "c.flac" {
		t.Fatalf("literal match = %v", matches)
	}

	matches, err = expandPattern(dir, "missing.wav")
	if err != nil {
		t.Fatalf("expandPattern missing: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("missing literal should match nothing, got %v", matches)
	}
}
