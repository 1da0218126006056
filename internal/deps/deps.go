// Package deps resolves the external binaries a run depends on and probes
// ffmpeg for the encoders it was built with.
package deps

import (
	"errors"
	"os/exec"
	"strings"
)

// Status reports how one external tool resolved from the configuration.
type Status struct {
	Name    string
	Command string
	// Path is the resolved executable, empty when resolution failed.
	Path string
	Err  error
}

// Available reports whether the tool resolved to an executable.
func (s Status) Available() bool { return s.Err == nil }

// Check resolves the configured ffmpeg and ffprobe binaries. Every pipeline
// needs both; encoder capabilities are probed separately.
func Check(ffmpeg, ffprobe string) []Status {
	return []Status{
		resolveTool("ffmpeg", ffmpeg),
		resolveTool("ffprobe", ffprobe),
	}
}

func resolveTool(name, command string) Status {
	status := Status{Name: name, Command: strings.TrimSpace(command)}
	if status.Command == "" {
		status.Err = errors.New("command not configured")
		return status
	}
	path, err := exec.LookPath(status.Command)
	if err != nil {
		status.Err = err
		return status
	}
	status.Path = path
	return status
}

// Missing returns the names of tools that did not resolve.
func Missing(statuses []Status) []string {
	var missing []string
	for _, status := range statuses {
		if !status.Available() {
			missing = append(missing, status.Name)
		}
	}
	return missing
}
