package config

import (
	"time"

	"github.com/spf13/viper"
)

// Default values for configuration
const (
	DefaultLogLevel = "info"
	DefaultLogJSON  = false

	DefaultTelegramFileBaseURL = "https://api.telegram.org"
	DefaultTelegramWorkers     = 1

	DefaultDBDriver          = "sqlite"
	DefaultDBPath            = "archive.db"
	DefaultDBMaxOpenConns    = 10
	DefaultDBMaxIdleConns    = 5
	DefaultDBConnMaxLifetime = time.Hour
	DefaultDBOpTimeout       = 15 * time.Second

	DefaultStagingDir        = "./media"
	DefaultDownloadTimeout   = 2 * time.Minute
	DefaultMaxDownloadBytes  = 20 << 20 // Bot API getFile limit
	DefaultOrphanMaxAge      = 6 * time.Hour
	DefaultRetryMaxAttempts  = 3
	DefaultRetryInitialDelay = 500 * time.Millisecond
	DefaultRetryMaxDelay     = 10 * time.Second

	DefaultTranscriptionEnabled    = true
	DefaultTranscriptionEngine     = "gemini"
	DefaultTranscriptionWorkers    = 2
	DefaultTranscriptionJobTimeout = 10 * time.Minute
	DefaultTranscriptionLanguage   = "ru"
	DefaultBreakerMaxFailures      = 5
	DefaultBreakerOpenTimeout      = time.Minute

	DefaultGeminiModel       = "gemini-2.0-flash"
	DefaultGeminiTemperature = 0.0
	DefaultGeminiPrompt      = "Transcribe the speech in this recording verbatim. Return only the transcript text, without timestamps, speaker labels or commentary. If there is no speech, return an empty response."

	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOpenAIModel   = "whisper-1"

	DefaultWhisperCppBinary  = "whisper-cli"
	DefaultWhisperCppFFmpeg  = "ffmpeg"
	DefaultWhisperCppThreads = 4
)

// DefaultChatTypes are the chat types archived when none are configured.
var DefaultChatTypes = []string{"group", "supergroup", "channel"}

// setDefaults registers default values for every optional parameter on v.
func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", DefaultLogLevel)
	v.SetDefault("logger.json", DefaultLogJSON)

	v.SetDefault("telegram.file_base_url", DefaultTelegramFileBaseURL)
	v.SetDefault("telegram.workers", DefaultTelegramWorkers)

	v.SetDefault("database.driver", DefaultDBDriver)
	v.SetDefault("database.path", DefaultDBPath)
	v.SetDefault("database.max_open_conns", DefaultDBMaxOpenConns)
	v.SetDefault("database.max_idle_conns", DefaultDBMaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", DefaultDBConnMaxLifetime)
	v.SetDefault("database.op_timeout", DefaultDBOpTimeout)

	v.SetDefault("archive.chat_types", DefaultChatTypes)
	v.SetDefault("archive.legacy_topic_default", false)

	v.SetDefault("media.staging_dir", DefaultStagingDir)
	v.SetDefault("media.download_timeout", DefaultDownloadTimeout)
	v.SetDefault("media.max_download_bytes", DefaultMaxDownloadBytes)
	v.SetDefault("media.orphan_max_age", DefaultOrphanMaxAge)
	v.SetDefault("media.retry.max_attempts", DefaultRetryMaxAttempts)
	v.SetDefault("media.retry.initial_delay", DefaultRetryInitialDelay)
	v.SetDefault("media.retry.max_delay", DefaultRetryMaxDelay)

	v.SetDefault("transcription.enabled", DefaultTranscriptionEnabled)
	v.SetDefault("transcription.engine", DefaultTranscriptionEngine)
	v.SetDefault("transcription.workers", DefaultTranscriptionWorkers)
	v.SetDefault("transcription.job_timeout", DefaultTranscriptionJobTimeout)
	v.SetDefault("transcription.language", DefaultTranscriptionLanguage)
	v.SetDefault("transcription.breaker.max_failures", DefaultBreakerMaxFailures)
	v.SetDefault("transcription.breaker.open_timeout", DefaultBreakerOpenTimeout)
	v.SetDefault("transcription.gemini.api_key", "")
	v.SetDefault("transcription.gemini.model_name", DefaultGeminiModel)
	v.SetDefault("transcription.gemini.temperature", DefaultGeminiTemperature)
	v.SetDefault("transcription.gemini.prompt", DefaultGeminiPrompt)
	v.SetDefault("transcription.openai.api_key", "")
	v.SetDefault("transcription.openai.base_url", DefaultOpenAIBaseURL)
	v.SetDefault("transcription.openai.model", DefaultOpenAIModel)
	v.SetDefault("transcription.whispercpp.binary_path", DefaultWhisperCppBinary)
	v.SetDefault("transcription.whispercpp.model_path", "")
	v.SetDefault("transcription.whispercpp.ffmpeg_path", DefaultWhisperCppFFmpeg)
	v.SetDefault("transcription.whispercpp.threads", DefaultWhisperCppThreads)

	// Registered explicitly so AutomaticEnv can resolve them.
	v.SetDefault("telegram.token", "")
	v.SetDefault("database.dsn", "")

	v.SetDefault("scheduler.tasks.sql_maintenance.enabled", true)
	v.SetDefault("scheduler.tasks.sql_maintenance.schedule", "0 4 * * 0")
	v.SetDefault("scheduler.tasks.staging_sweep.enabled", true)
	v.SetDefault("scheduler.tasks.staging_sweep.schedule", "*/30 * * * *")
}
