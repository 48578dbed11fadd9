package shutdown

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"aesthetisim/logging"
)

// CleanupTempArtifacts returns a shutdown function that removes staged
// upload files ("temp_*") from the artifact directory. Completed artifacts
// are untouched.
//
// Errors are logged, not returned, so cleanup never blocks the rest of the
// shutdown sequence.
func CleanupTempArtifacts(logger *logging.Logger, artifactDir string) Func {
	return func(ctx context.Context) error {
		pattern := filepath.Join(artifactDir, "temp_*")
		matches, err := filepath.Glob(pattern)
		if err != nil {
			logger.Error("failed to list temp artifacts",
				zap.String("pattern", pattern),
				zap.Error(err),
			)
			return nil
		}

		removed := 0
		for _, path := range matches {
			select {
			case <-ctx.Done():
				logger.Warn("shutdown budget exhausted, stopping temp artifact cleanup",
					zap.Int("removed", removed),
					zap.Int("remaining", len(matches)-removed),
				)
				return nil
			default:
			}

			if err := os.Remove(path); err != nil {
				logger.Warn("failed to remove temp artifact",
					zap.String("path", path),
					zap.Error(err),
				)
				continue
			}
			removed++
		}

		if removed > 0 {
			logger.Info("removed temp artifacts", zap.Int("count", removed))
		}
		return nil
	}
}
