// Package transcription runs speech-to-text over staged media on a bounded
// worker pool and writes the transcripts back to the archive.
package transcription

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/edgard/tgarchive/internal/config"
	errs "github.com/edgard/tgarchive/internal/errors"
)

// Engine converts a local media file into plain text. Implementations are
// constructed once at startup and shared by all workers, so Transcribe must be
// safe for concurrent use.
type Engine interface {
	// Name identifies the engine in logs.
	Name() string
	// Transcribe returns the speech contained in the file at path. An empty
	// string means the recording holds no speech.
	Transcribe(ctx context.Context, path, mimeType string) (string, error)
	// Close releases resources held by the engine.
	Close() error
}

// NewEngine builds the engine selected by cfg.Engine.
func NewEngine(ctx context.Context, cfg config.TranscriptionConfig, logger *slog.Logger) (Engine, error) {
	switch cfg.Engine {
	case "gemini":
		return NewGeminiEngine(ctx, cfg.Gemini, logger)
	case "openai":
		return NewOpenAIEngine(cfg.OpenAI, cfg.Language, nil, logger)
	case "whispercpp":
		return NewWhisperCppEngine(cfg.WhisperCpp, cfg.Language, logger)
	default:
		return nil, errs.NewConfigError(fmt.Sprintf("unknown transcription engine %q", cfg.Engine), nil)
	}
}
