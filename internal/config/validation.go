package config

import (
	"fmt"

	errs "github.com/edgard/tgarchive/internal/errors"
)

// validateCrossField checks settings whose validity depends on other
// settings: the storage target of the selected driver and the credentials
// of the selected transcription engine.
func validateCrossField(cfg *Config) error {
	switch cfg.Database.Driver {
	case "sqlite":
		if cfg.Database.Path == "" {
			return errs.NewConfigError("database.path is required for the sqlite driver", nil)
		}
	case "postgres":
		if cfg.Database.DSN == "" {
			return errs.NewConfigError("database.dsn is required for the postgres driver", nil)
		}
	}

	if !cfg.Transcription.Enabled {
		return nil
	}

	switch cfg.Transcription.Engine {
	case "gemini":
		if cfg.Transcription.Gemini.APIKey == "" {
			return missingEngineSetting("gemini", "api_key")
		}
		if cfg.Transcription.Gemini.ModelName == "" {
			return missingEngineSetting("gemini", "model_name")
		}
	case "openai":
		if cfg.Transcription.OpenAI.APIKey == "" {
			return missingEngineSetting("openai", "api_key")
		}
	case "whispercpp":
		if cfg.Transcription.WhisperCpp.ModelPath == "" {
			return missingEngineSetting("whispercpp", "model_path")
		}
	}

	return nil
}

func missingEngineSetting(engine, key string) error {
	return errs.NewConfigError(fmt.Sprintf("transcription.%s.%s is required when transcription.engine is %q", engine, key, engine), nil)
}
