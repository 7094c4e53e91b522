// Package media manages transient local copies of Telegram attachments:
// the staging directory they live in and the downloader that fills it.
package media

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/edgard/tgarchive/internal/database"
)

// partSuffix marks files that are still being written.
const partSuffix = ".part"

// Staging is the directory holding staged attachments. Each file is named
// after the natural key of its message, so concurrent jobs never share a path.
type Staging struct {
	dir    string
	logger *slog.Logger
}

// NewStaging creates dir if needed and returns a Staging rooted at it.
func NewStaging(dir string, logger *slog.Logger) (*Staging, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve staging dir %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create staging dir %s: %w", abs, err)
	}
	return &Staging{dir: abs, logger: logger.With("component", "staging")}, nil
}

// Dir returns the absolute staging directory.
func (s *Staging) Dir() string {
	return s.dir
}

// Path returns the staging path for the attachment of the message identified
// by key. ext includes the leading dot.
func (s *Staging) Path(key database.MessageKey, ext string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%d_%d%s", key.ChatID, key.MessageID, ext))
}

// Remove deletes a staged file. Removing a file that does not exist is not
// an error.
func (s *Staging) Remove(path string) error {
	if !s.owns(path) {
		return fmt.Errorf("refusing to remove %s outside staging dir %s", path, s.dir)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove staged file %s: %w", path, err)
	}
	return nil
}

// Sweep removes staged and partial files last modified before now-maxAge.
// These are left behind only when the process dies mid-job. Files for which
// inUse reports true still belong to a live job and are kept; inUse may be nil.
func (s *Staging) Sweep(maxAge time.Duration, now time.Time, inUse func(path string) bool) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to list staging dir %s: %w", s.dir, err)
	}

	cutoff := now.Add(-maxAge)
	removed := 0
	var errs []error
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				errs = append(errs, err)
			}
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		if inUse != nil && inUse(path) {
			continue
		}
		if err := s.Remove(path); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
		s.logger.Debug("Removed orphaned staged file", "path", path, "age", now.Sub(info.ModTime()))
	}

	return removed, errors.Join(errs...)
}

func (s *Staging) owns(path string) bool {
	rel, err := filepath.Rel(s.dir, path)
	if err != nil {
		return false
	}
	return rel != "." && !strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel)
}
