package transcription

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/edgard/tgarchive/internal/config"
)

type openAIEngine struct {
	client   *openai.Client
	model    string
	language string
	log      *slog.Logger
}

// NewOpenAIEngine creates an engine backed by an OpenAI-compatible
// /audio/transcriptions endpoint. httpClient may be nil.
func NewOpenAIEngine(cfg config.OpenAIConfig, language string, httpClient *http.Client, log *slog.Logger) (Engine, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if httpClient != nil {
		clientCfg.HTTPClient = httpClient
	}

	model := cfg.Model
	if model == "" {
		model = openai.Whisper1
	}

	logger := log.With("component", "openai_engine")
	logger.Info("OpenAI transcription engine initialized", "model", model, "base_url", clientCfg.BaseURL)
	return &openAIEngine{
		client:   openai.NewClientWithConfig(clientCfg),
		model:    model,
		language: language,
		log:      logger,
	}, nil
}

func (e *openAIEngine) Name() string { return "openai" }

func (e *openAIEngine) Transcribe(ctx context.Context, path, _ string) (string, error) {
	resp, err := e.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    e.model,
		FilePath: path,
		Language: e.language,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", fmt.Errorf("openai transcription failed: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

func (e *openAIEngine) Close() error { return nil }
