package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if c.Reconcile.DurationTolerance <= 0 {
		return errors.New("reconcile.duration_tolerance must be positive (seconds)")
	}
	if c.Reconcile.ScanPattern == "" {
		return errors.New("reconcile.scan_pattern must be set")
	}
	if !doublestar.ValidatePattern(c.Reconcile.ScanPattern) {
		return fmt.Errorf("reconcile.scan_pattern %q is not a valid glob", c.Reconcile.ScanPattern)
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if c.ProbeCache.Enabled && strings.TrimSpace(c.ProbeCache.Path) == "" {
		return errors.New("probe_cache.path must be set when probe_cache.enabled is true")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Level)) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
