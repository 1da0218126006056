package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testPipeline = `
syntax = "tracksplit"
syntax_version = 1

[formats]
default = "mp3"

[[formats.available]]
format = "mp3"
default_bitrate = "320k"

[[steps]]
type = "extract"
input = "in.mkv"
output = "audio.wav"

[[steps]]
type = "split"
input = "audio.wav"
output_dir = "tracks"

[[steps.segments]]
file = "one.wav"
start = "0:00:00.000"
end = "0:01:00.000"

[[steps]]
type = "transcode"
input_dir = "tracks"
files = ["*.wav"]
`

func writeTestWorkspace(t *testing.T, withInput bool) (string, string) {
	t.Helper()
	dir := t.TempDir()
	pipelinePath := filepath.Join(dir, "pipeline.toml")
	if err := os.WriteFile(pipelinePath, []byte(testPipeline), 0o644); err != nil {
		t.Fatalf("write pipeline: %v", err)
	}
	if withInput {
		if err := os.WriteFile(filepath.Join(dir, "in.mkv"), []byte("x"), 0o644); err != nil {
			t.Fatalf("write input: %v", err)
		}
	}

	configPath := filepath.Join(dir, "config.toml")
	configBody := "[logging]\nformat = \"json\"\nlevel = \"error\"\n"
	if err := os.WriteFile(configPath, []byte(configBody), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return pipelinePath, configPath
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestValidateCommandPasses(t *testing.T) {
	pipelinePath, configPath := writeTestWorkspace(t, true)

	stdout, _, err := runCLI(t, "--config", configPath, "validate", pipelinePath)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(stdout, "pipeline is valid") {
		t.Errorf("missing success message in output:\n%s", stdout)
	}
	if !strings.Contains(stdout, "extract") || !strings.Contains(stdout, "transcode") {
		t.Errorf("step table missing from output:\n%s", stdout)
	}
}

func TestValidateCommandReportsMissingInput(t *testing.T) {
	pipelinePath, configPath := writeTestWorkspace(t, false)

	_, stderr, err := runCLI(t, "--config", configPath, "validate", pipelinePath)
	if err == nil {
		t.Fatal("expected validation failure")
	}
	if !strings.Contains(stderr, "in.mkv") {
		t.Errorf("error output should name in.mkv:\n%s", stderr)
	}
}

func TestValidateCommandRejectsBadSyntax(t *testing.T) {
	dir := t.TempDir()
	pipelinePath := filepath.Join(dir, "pipeline.toml")
	if err := os.WriteFile(pipelinePath, []byte("syntax = \"other\"\nsyntax_version = 1\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	configPath := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(configPath, []byte(""), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, _, err := runCLI(t, "--config", configPath, "validate", pipelinePath)
	if err == nil || !strings.Contains(err.Error(), "syntax") {
		t.Fatalf("expected syntax gate error, got %v", err)
	}
}

func TestConfigPathCommand(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(configPath, []byte("[logging]\nlevel = \"info\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	stdout, _, err := runCLI(t, "--config", configPath, "config", "path")
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	if !strings.Contains(stdout, configPath) {
		t.Errorf("output %q should contain %q", stdout, configPath)
	}
}

func TestConfigInitCommand(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "fresh", "config.toml")

	stdout, _, err := runCLI(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(stdout, target) {
		t.Errorf("output should mention target path: %q", stdout)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config not written: %v", err)
	}

	// A second init without --overwrite refuses.
	if _, _, err := runCLI(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected refusal to overwrite existing config")
	}
}

func TestRenderTable(t *testing.T) {
	out := renderTable(
		[]string{"Name", "Count"},
		[][]string{{"alpha", "1"}, {"beta", "22"}},
		1,
	)
	if !strings.Contains(out, "alpha") || !strings.Contains(out, "22") {
		t.Errorf("table missing content:\n%s", out)
	}
	// Out-of-range alignment indexes and short rows are tolerated.
	if out := renderTable([]string{"A", "B"}, [][]string{{"only"}}, 5); !strings.Contains(out, "only") {
		t.Errorf("short row should be padded:\n%s", out)
	}
	if renderTable(nil, nil) != "" {
		t.Error("empty headers should render nothing")
	}
}
