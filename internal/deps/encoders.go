package deps

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Encoders records which optional audio encoders the local ffmpeg build
// offers.
type Encoders struct {
	// AACAT is the Apple AudioToolbox AAC encoder, present on macOS builds
	// and preferred over the native encoder when available.
	AACAT bool
}

// DetectEncoders asks ffmpeg for its encoder list. A failed invocation
// degrades to the zero value rather than failing the run; the native
// encoders are always assumed present.
func DetectEncoders(ctx context.Context, ffmpeg string) (Encoders, error) {
	binary := strings.TrimSpace(ffmpeg)
	if binary == "" {
		binary = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, binary, "-hide_banner", "-encoders")
	output, err := cmd.Output()
	if err != nil {
		return Encoders{}, fmt.Errorf("detect encoders: %w", err)
	}
	return parseEncoders(string(output)), nil
}

func parseEncoders(output string) Encoders {
	var encoders Encoders
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		switch fields[1] {
		case "aac_at":
			encoders.AACAT = true
		}
	}
	return encoders
}

// AACEncoder names the AAC encoder to pass to ffmpeg.
func (e Encoders) AACEncoder() string {
	if e.AACAT {
		return "aac_at"
	}
	return "aac"
}
