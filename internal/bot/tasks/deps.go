// Package tasks implements the archiver's scheduled maintenance tasks.
package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/edgard/tgarchive/internal/config"
)

// Maintainer runs storage maintenance.
type Maintainer interface {
	RunSQLMaintenance(ctx context.Context) error
}

// Sweeper removes staged files older than maxAge that inUse does not claim.
type Sweeper interface {
	Sweep(maxAge time.Duration, now time.Time, inUse func(path string) bool) (int, error)
}

// FileOwner reports whether a staged file still belongs to a live job.
type FileOwner interface {
	Owns(path string) bool
}

// TaskDeps contains the dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger  *slog.Logger
	Store   Maintainer
	Staging Sweeper
	// Jobs claims staged files of queued and running transcriptions.
	Jobs    FileOwner
	Config  *config.Config
}
