package tasks

import (
	"context"
	"fmt"
	"time"
)

// newStagingSweepTask removes staged media that outlived every job that could
// still own it, e.g. files left behind by a crash.
func newStagingSweepTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", StagingSweepTask)

	return func(ctx context.Context) error {
		maxAge := deps.Config.Media.OrphanMaxAge

		var inUse func(string) bool
		if deps.Jobs != nil {
			inUse = deps.Jobs.Owns
		}

		removed, err := deps.Staging.Sweep(maxAge, time.Now(), inUse)
		if err != nil {
			log.ErrorContext(ctx, "Staging sweep failed", "error", err, "removed", removed)
			return fmt.Errorf("staging sweep failed: %w", err)
		}

		if removed > 0 {
			log.InfoContext(ctx, "Removed orphaned staged files", "removed", removed, "max_age", maxAge)
		} else {
			log.DebugContext(ctx, "No orphaned staged files")
		}
		return nil
	}
}
