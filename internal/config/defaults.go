package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	defaultDurationTolerance = 3.0
	defaultScanPattern       = "*.mkv"
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Reconcile: Reconcile{
			DurationTolerance: defaultDurationTolerance,
			ScanPattern:       defaultScanPattern,
		},
		ProbeCache: ProbeCache{
			Enabled: true,
			Path:    defaultProbeCachePath(),
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

func defaultProbeCachePath() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "tracksplit", "probes.db")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "~/.cache/tracksplit/probes.db"
	}
	return filepath.Join(home, ".cache", "tracksplit", "probes.db")
}
