package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	errs "github.com/edgard/tgarchive/internal/errors"
	"github.com/edgard/tgarchive/internal/resilience"
)

// ErrFileTooLarge is returned when an attachment exceeds the configured cap.
var ErrFileTooLarge = errors.New("file exceeds download size limit")

// FileLocator resolves a Telegram file id to a downloadable path.
// *bot.Bot satisfies it.
type FileLocator interface {
	GetFile(ctx context.Context, params *bot.GetFileParams) (*models.File, error)
}

// DownloaderConfig configures a Downloader.
type DownloaderConfig struct {
	Token       string
	FileBaseURL string
	// Timeout bounds every attempt, including the getFile lookup.
	Timeout  time.Duration
	MaxBytes int64
	Retry    resilience.RetryConfig
}

// Downloader fetches attachments from the Bot API file endpoint into the
// staging area.
type Downloader struct {
	locator FileLocator
	cfg     DownloaderConfig
	client  *http.Client
	logger  *slog.Logger
}

// NewDownloader creates a Downloader. client may be nil to use http.DefaultClient.
func NewDownloader(locator FileLocator, cfg DownloaderConfig, client *http.Client, logger *slog.Logger) *Downloader {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	cfg.FileBaseURL = strings.TrimRight(cfg.FileBaseURL, "/")
	return &Downloader{
		locator: locator,
		cfg:     cfg,
		client:  client,
		logger:  logger.With("component", "downloader"),
	}
}

// Download fetches the file identified by fileID to dest and returns the
// number of bytes written. Transient failures are retried with backoff.
// On failure no file is left at dest and the error is a *errs.DownloadError.
func (d *Downloader) Download(ctx context.Context, fileID, dest string) (int64, error) {
	if fileID == "" {
		return 0, errs.NewDownloadError("empty file id", nil)
	}

	var written int64
	attempt := 0
	err := resilience.WithRetry(ctx, func(ctx context.Context) error {
		attempt++
		n, err := d.fetch(ctx, fileID, dest)
		if err != nil {
			d.logger.WarnContext(ctx, "Download attempt failed",
				"file_id", fileID, "attempt", attempt, "error", err)
			return err
		}
		written = n
		return nil
	}, d.cfg.Retry)
	if err != nil {
		return 0, errs.NewDownloadError(fmt.Sprintf("failed to download file %s", fileID), err)
	}

	d.logger.DebugContext(ctx, "File downloaded", "file_id", fileID, "path", dest, "bytes", written, "attempts", attempt)
	return written, nil
}

func (d *Downloader) fetch(ctx context.Context, fileID, dest string) (n int64, err error) {
	if d.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
	}

	file, err := d.locator.GetFile(ctx, &bot.GetFileParams{FileID: fileID})
	if err != nil {
		return 0, fmt.Errorf("failed to get file info from Telegram: %w", err)
	}
	if file == nil || file.FilePath == "" {
		return 0, resilience.Permanent(fmt.Errorf("empty file path returned from Telegram for file ID %s", fileID))
	}
	if d.cfg.MaxBytes > 0 && int64(file.FileSize) > d.cfg.MaxBytes {
		return 0, resilience.Permanent(fmt.Errorf("%w: %d bytes", ErrFileTooLarge, int64(file.FileSize)))
	}

	// The URL embeds the bot token, so errors refer to the file path only.
	fileURL := fmt.Sprintf("%s/file/bot%s/%s", d.cfg.FileBaseURL, d.cfg.Token, file.FilePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return 0, resilience.Permanent(fmt.Errorf("failed to create HTTP request for %s: %w", file.FilePath, err))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to download %s: %w", file.FilePath, redactURLError(err))
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close response body for %s: %w", file.FilePath, closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		statusErr := fmt.Errorf("unexpected status code %d for %s: %s", resp.StatusCode, file.FilePath, strings.TrimSpace(string(body)))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return 0, resilience.Permanent(statusErr)
		}
		return 0, statusErr
	}

	return d.writeFile(resp.Body, dest)
}

// writeFile streams r into dest through a temporary .part file so that dest
// only ever holds a complete download.
func (d *Downloader) writeFile(r io.Reader, dest string) (int64, error) {
	tmp := dest + partSuffix
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return 0, resilience.Permanent(fmt.Errorf("failed to create %s: %w", tmp, err))
	}

	limit := d.cfg.MaxBytes
	if limit <= 0 {
		limit = 1<<63 - 1
	} else {
		limit++
	}

	n, copyErr := io.Copy(f, io.LimitReader(r, limit))
	closeErr := f.Close()

	var failure error
	switch {
	case copyErr != nil:
		failure = fmt.Errorf("failed to read file data: %w", copyErr)
	case closeErr != nil:
		failure = fmt.Errorf("failed to flush %s: %w", tmp, closeErr)
	case d.cfg.MaxBytes > 0 && n > d.cfg.MaxBytes:
		failure = resilience.Permanent(fmt.Errorf("%w: more than %d bytes", ErrFileTooLarge, d.cfg.MaxBytes))
	case n == 0:
		failure = errors.New("received empty file data")
	}
	if failure != nil {
		_ = os.Remove(tmp)
		return 0, failure
	}

	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return 0, resilience.Permanent(fmt.Errorf("failed to move %s into place: %w", tmp, err))
	}
	return n, nil
}

// redactURLError drops the request URL, which carries the bot token, from
// transport errors.
func redactURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return fmt.Errorf("%s: %w", urlErr.Op, urlErr.Err)
	}
	return err
}
