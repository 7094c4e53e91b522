package transcription

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"google.golang.org/genai"

	"github.com/edgard/tgarchive/internal/config"
)

// maxInlineBytes is the Gemini API limit for inline request data.
const maxInlineBytes = 20 << 20

type geminiEngine struct {
	client        *genai.Client
	modelName     string
	prompt        string
	contentConfig *genai.GenerateContentConfig
	log           *slog.Logger
}

// NewGeminiEngine creates an engine that sends the recording inline to a
// Gemini model together with a transcription prompt.
func NewGeminiEngine(ctx context.Context, cfg config.GeminiConfig, log *slog.Logger) (Engine, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	gi, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	temperature := cfg.Temperature
	logger := log.With("component", "gemini_engine")
	logger.Info("Gemini transcription engine initialized", "model", cfg.ModelName)
	return &geminiEngine{
		client:    gi,
		modelName: cfg.ModelName,
		prompt:    cfg.Prompt,
		contentConfig: &genai.GenerateContentConfig{
			Temperature: &temperature,
			SafetySettings: []*genai.SafetySetting{
				{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockNone},
				{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockNone},
				{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockNone},
				{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockNone},
			},
		},
		log: logger,
	}, nil
}

func (e *geminiEngine) Name() string { return "gemini" }

func (e *geminiEngine) Transcribe(ctx context.Context, path, mimeType string) (string, error) {
	data, err := readLimited(path, maxInlineBytes)
	if err != nil {
		return "", err
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(e.prompt),
			genai.NewPartFromBytes(data, mimeType),
		}, genai.RoleUser),
	}

	resp, err := e.client.Models.GenerateContent(ctx, e.modelName, contents, e.contentConfig)
	if err != nil {
		return "", fmt.Errorf("gemini API call failed: %w", err)
	}
	return extractTranscript(resp)
}

func (e *geminiEngine) Close() error { return nil }

// extractTranscript pulls the text out of a response. A response that
// finished normally without any parts means the recording had no speech.
func extractTranscript(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", errors.New("gemini returned a nil response")
	}
	if blocked(resp.PromptFeedback) {
		reason := fmt.Sprintf("%v", resp.PromptFeedback.BlockReason)
		if resp.PromptFeedback.BlockReasonMessage != "" {
			reason = resp.PromptFeedback.BlockReasonMessage
		}
		return "", fmt.Errorf("transcription blocked by safety filter: %s", reason)
	}
	if len(resp.Candidates) == 0 {
		return "", errors.New("gemini returned no candidates")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		if candidate.FinishReason == genai.FinishReasonStop {
			return "", nil
		}
		return "", fmt.Errorf("gemini returned no content, finish reason: %v", candidate.FinishReason)
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

func blocked(feedback *genai.GenerateContentResponsePromptFeedback) bool {
	return feedback != nil && feedback.BlockReason != "" && feedback.BlockReason != genai.BlockedReasonUnspecified
}

func readLimited(path string, limit int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%s exceeds %d bytes", path, limit)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s is empty", path)
	}
	return data, nil
}
