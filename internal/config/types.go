// Package config manages application configuration from environment variables,
// config files, and default values.
package config

import "time"

// Config defines the application configuration. Values can be set via environment
// variables prefixed with ARCHIVER_ (e.g., ARCHIVER_TELEGRAM_TOKEN) or through config.yaml.
type Config struct {
	Logger        LoggerConfig        `mapstructure:"logger"`
	Telegram      TelegramConfig      `mapstructure:"telegram"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Archive       ArchiveConfig       `mapstructure:"archive"`
	Media         MediaConfig         `mapstructure:"media"`
	Transcription TranscriptionConfig `mapstructure:"transcription"`
	Scheduler     SchedulerConfig     `mapstructure:"scheduler"`
}

type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

type TelegramConfig struct {
	Token       string `mapstructure:"token"         validate:"required"`
	FileBaseURL string `mapstructure:"file_base_url" validate:"required,url"`
	// Workers is the number of go-telegram/bot handler goroutines. The
	// ingestion path expects one message to be fully archived before the
	// next is accepted, so anything above 1 gives up that ordering.
	Workers int `mapstructure:"workers" validate:"min=1,max=64"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"            validate:"required,oneof=sqlite postgres"`
	Path            string        `mapstructure:"path"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"    validate:"min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    validate:"min=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"min=0"`
	OpTimeout       time.Duration `mapstructure:"op_timeout"        validate:"min=100ms"`
}

type ArchiveConfig struct {
	// ChatTypes lists the chat types whose messages are archived.
	ChatTypes []string `mapstructure:"chat_types" validate:"min=1,dive,oneof=private group supergroup channel"`
	// LegacyTopicDefault reproduces the historical forum-topic behavior that
	// forces is_topic_message=true on every non-reply message.
	LegacyTopicDefault bool `mapstructure:"legacy_topic_default"`
}

type MediaConfig struct {
	StagingDir       string        `mapstructure:"staging_dir"        validate:"required"`
	DownloadTimeout  time.Duration `mapstructure:"download_timeout"   validate:"min=1s,max=30m"`
	MaxDownloadBytes int64         `mapstructure:"max_download_bytes" validate:"min=1"`
	OrphanMaxAge     time.Duration `mapstructure:"orphan_max_age"     validate:"min=1m"`
	Retry            RetryConfig   `mapstructure:"retry"`
}

type RetryConfig struct {
	MaxAttempts  int           `mapstructure:"max_attempts"  validate:"min=1,max=10"`
	InitialDelay time.Duration `mapstructure:"initial_delay" validate:"min=0"`
	MaxDelay     time.Duration `mapstructure:"max_delay"     validate:"min=0"`
}

type TranscriptionConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Engine     string        `mapstructure:"engine"      validate:"required,oneof=gemini openai whispercpp"`
	Workers    int           `mapstructure:"workers"     validate:"min=1,max=32"`
	JobTimeout time.Duration `mapstructure:"job_timeout" validate:"min=1s,max=1h"`
	Language   string        `mapstructure:"language"`
	Breaker    BreakerConfig `mapstructure:"breaker"`

	Gemini     GeminiConfig     `mapstructure:"gemini"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	WhisperCpp WhisperCppConfig `mapstructure:"whispercpp"`
}

type BreakerConfig struct {
	MaxFailures uint32        `mapstructure:"max_failures" validate:"min=1"`
	OpenTimeout time.Duration `mapstructure:"open_timeout" validate:"min=1s"`
}

type GeminiConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	ModelName   string  `mapstructure:"model_name"`
	Temperature float32 `mapstructure:"temperature" validate:"min=0,max=2"`
	Prompt      string  `mapstructure:"prompt"`
}

type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url" validate:"omitempty,url"`
	Model   string `mapstructure:"model"`
}

type WhisperCppConfig struct {
	BinaryPath string `mapstructure:"binary_path"`
	ModelPath  string `mapstructure:"model_path"`
	// FFmpegPath converts input to 16 kHz WAV before transcription. Empty
	// passes files to whisper.cpp unchanged.
	FFmpegPath string `mapstructure:"ffmpeg_path"`
	Threads    int    `mapstructure:"threads" validate:"min=1"`
}

type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks" validate:"dive"`
}

type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule" validate:"required_if=Enabled true"`
}
