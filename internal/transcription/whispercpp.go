package transcription

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/edgard/tgarchive/internal/config"
)

type whisperCppEngine struct {
	binary   string
	model    string
	ffmpeg   string
	threads  int
	language string
	log      *slog.Logger
}

// NewWhisperCppEngine creates an engine that runs a local whisper.cpp CLI
// binary on the CPU. When an ffmpeg path is configured, input is first
// converted to the 16 kHz mono WAV the CLI expects.
func NewWhisperCppEngine(cfg config.WhisperCppConfig, language string, log *slog.Logger) (Engine, error) {
	binary, err := exec.LookPath(cfg.BinaryPath)
	if err != nil {
		return nil, fmt.Errorf("whisper.cpp binary %q not found: %w", cfg.BinaryPath, err)
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("whisper.cpp model %q: %w", cfg.ModelPath, err)
	}

	var ffmpeg string
	if cfg.FFmpegPath != "" {
		if ffmpeg, err = exec.LookPath(cfg.FFmpegPath); err != nil {
			return nil, fmt.Errorf("ffmpeg binary %q not found: %w", cfg.FFmpegPath, err)
		}
	}

	threads := cfg.Threads
	if threads < 1 {
		threads = 1
	}

	logger := log.With("component", "whispercpp_engine")
	logger.Info("whisper.cpp transcription engine initialized", "binary", binary, "model", cfg.ModelPath, "threads", threads)
	return &whisperCppEngine{
		binary:   binary,
		model:    cfg.ModelPath,
		ffmpeg:   ffmpeg,
		threads:  threads,
		language: language,
		log:      logger,
	}, nil
}

func (e *whisperCppEngine) Name() string { return "whispercpp" }

func (e *whisperCppEngine) Transcribe(ctx context.Context, path, _ string) (string, error) {
	input := path
	if e.ffmpeg != "" {
		wav := path + ".wav"
		defer os.Remove(wav)
		if _, err := e.run(ctx, e.ffmpeg, "-nostdin", "-y", "-loglevel", "error", "-i", path, "-ar", "16000", "-ac", "1", "-c:a", "pcm_s16le", wav); err != nil {
			return "", fmt.Errorf("audio conversion failed: %w", err)
		}
		input = wav
	}

	args := []string{"-m", e.model, "-f", input, "-t", strconv.Itoa(e.threads), "-nt", "-np"}
	if e.language != "" {
		args = append(args, "-l", e.language)
	}
	out, err := e.run(ctx, e.binary, args...)
	if err != nil {
		return "", fmt.Errorf("whisper.cpp failed: %w", err)
	}
	return joinLines(out), nil
}

func (e *whisperCppEngine) Close() error { return nil }

func (e *whisperCppEngine) run(ctx context.Context, name string, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %s", err, strings.TrimSpace(lastLine(stderr.String())))
	}
	return stdout.String(), nil
}

// joinLines folds the CLI's segment-per-line output into one paragraph.
func joinLines(s string) string {
	var parts []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, " ")
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
