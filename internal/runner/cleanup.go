package runner

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"tracksplit/internal/logging"
	"tracksplit/internal/pipeline"
)

type cleanupStep struct {
	step pipeline.CleanupStep
}

func (s *cleanupStep) Name() string { return "cleanup" }

func (s *cleanupStep) Execute(ctx context.Context, env *Env) error {
	var firstErr error
	removed := 0

	for _, target := range s.step.Targets {
		paths, err := s.resolveTarget(env, target)
		if err != nil {
			return Wrap(ErrConfiguration, s.Name(), "glob", target, err)
		}
		if len(paths) == 0 {
			env.Logger.Warn("cleanup target matches nothing", logging.String("target", target))
			continue
		}
		for _, path := range paths {
			if err := os.RemoveAll(path); err != nil {
				env.Logger.Warn("cleanup failed", logging.String("path", path), logging.Error(err))
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			removed++
			env.Logger.Info("removed", logging.String("path", path))
		}
	}

	// Only a total failure aborts the pipeline; cleanup that removed at
	// least something is treated as best effort.
	if firstErr != nil && removed == 0 {
		return Wrap(ErrExternalTool, s.Name(), "remove", "no targets could be removed", firstErr)
	}
	return nil
}

func (s *cleanupStep) resolveTarget(env *Env, target string) ([]string, error) {
	if strings.ContainsAny(target, "*?[{") {
		return doublestar.FilepathGlob(filepath.Join(env.WorkingDir, target))
	}
	path := env.Resolve(target)
	if _, err := os.Stat(path); err != nil {
		return nil, nil
	}
	return []string{path}, nil
}
