package main

import (
	"log/slog"
	"os"
	"strings"
	"sync"

	"tracksplit/internal/config"
	"tracksplit/internal/durcheck"
	"tracksplit/internal/logging"
	"tracksplit/internal/media/ffprobe"
	"tracksplit/internal/probecache"
)

type prober = durcheck.Prober

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

func (c *commandContext) newLogger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Writer: os.Stderr,
	})
}

// newProber builds the duration prober, wrapping ffprobe with the SQLite
// cache when enabled. The returned closer is nil when no cache is open.
func (c *commandContext) newProber(logger *slog.Logger) (prober, func() error, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}

	client := ffprobe.NewClient(cfg.FFprobeBinary())
	if !cfg.ProbeCache.Enabled {
		return client, nil, nil
	}

	cachePath, err := config.ExpandPath(cfg.ProbeCache.Path)
	if err != nil {
		return nil, nil, err
	}
	store, err := probecache.Open(cachePath)
	if err != nil {
		// A broken cache should not block a run.
		logger.Warn("probe cache unavailable, probing directly", logging.Error(err))
		return client, nil, nil
	}
	return probecache.NewCachingProber(store, client, logger), store.Close, nil
}
