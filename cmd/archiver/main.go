// Package main contains the entrypoint for the Telegram group archiver.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edgard/tgarchive/internal/archiver"
	"github.com/edgard/tgarchive/internal/bot"
	"github.com/edgard/tgarchive/internal/bot/handlers"
	"github.com/edgard/tgarchive/internal/bot/tasks"
	"github.com/edgard/tgarchive/internal/config"
	"github.com/edgard/tgarchive/internal/database"
	"github.com/edgard/tgarchive/internal/logger"
	"github.com/edgard/tgarchive/internal/media"
	"github.com/edgard/tgarchive/internal/resilience"
	"github.com/edgard/tgarchive/internal/telegram"
	"github.com/edgard/tgarchive/internal/transcription"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run wires every component, blocks until shutdown and returns the process
// exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	db, err := database.NewDB(ctx, cfg.Database)
	if err != nil {
		log.Error("Failed to connect to database", "driver", cfg.Database.Driver, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)
	if err := store.Ping(ctx); err != nil {
		log.Error("Database is not reachable", "error", err)
		return 1
	}

	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log,
		handlers.BotOptions(log, cfg.Telegram.Workers, logger.Middleware(log))...)
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return 1
	}
	if err := telegram.Identify(ctx, tg, log); err != nil {
		log.Error("Failed to identify Telegram bot", "error", err)
		return 1
	}

	var (
		downloader archiver.Downloader
		staging    archiver.Staging
		submitter  archiver.Submitter
		poolCloser bot.Closer
		sweeper    tasks.Sweeper
		jobs       tasks.FileOwner
	)
	if cfg.Transcription.Enabled {
		area, err := media.NewStaging(cfg.Media.StagingDir, log)
		if err != nil {
			log.Error("Failed to prepare staging directory", "dir", cfg.Media.StagingDir, "error", err)
			return 1
		}
		staging, sweeper = area, area

		downloader = media.NewDownloader(tg, media.DownloaderConfig{
			Token:       cfg.Telegram.Token,
			FileBaseURL: cfg.Telegram.FileBaseURL,
			Timeout:     cfg.Media.DownloadTimeout,
			MaxBytes:    cfg.Media.MaxDownloadBytes,
			Retry:       downloadRetry(cfg.Media.Retry),
		}, &http.Client{}, log)

		engine, err := transcription.NewEngine(ctx, cfg.Transcription, log)
		if err != nil {
			log.Error("Failed to initialize transcription engine", "engine", cfg.Transcription.Engine, "error", err)
			return 1
		}

		pool := transcription.NewPool(engine, store, area, transcription.PoolConfig{
			Workers:      cfg.Transcription.Workers,
			JobTimeout:   cfg.Transcription.JobTimeout,
			StoreTimeout: cfg.Database.OpTimeout,
			Breaker: resilience.CircuitBreakerConfig{
				MaxFailures: cfg.Transcription.Breaker.MaxFailures,
				OpenTimeout: cfg.Transcription.Breaker.OpenTimeout,
				IgnoreErr:   resilience.IsPermanent,
				OnStateChange: func(name string, from, to resilience.CircuitState) {
					log.Warn("Transcription circuit breaker changed state", "breaker", name, "from", from.String(), "to", to.String())
				},
			},
		}, log)
		submitter, poolCloser, jobs = pool, pool, pool
		log.Info("Transcription enabled", "engine", engine.Name(), "workers", cfg.Transcription.Workers)
	} else {
		log.Info("Transcription disabled, archiving text and metadata only")
	}

	archiveCfg := archiver.Config{
		ChatTypes:          cfg.Archive.ChatTypes,
		LegacyTopicDefault: cfg.Archive.LegacyTopicDefault,
		StoreTimeout:       cfg.Database.OpTimeout,
	}
	log.Info("Archive pipeline configured", "config", archiveCfg.String())

	handlers.RegisterArchiveHandler(tg, handlers.HandlerDeps{
		Logger:   log,
		Archiver: archiver.New(store, downloader, staging, submitter, archiveCfg, log),
	})

	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tasks.TaskDeps{
		Logger:  log,
		Store:   store,
		Staging: sweeper,
		Jobs:    jobs,
		Config:  cfg,
	}))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	app := bot.NewBot(log, tg, sched, poolCloser)

	log.Info("Starting archiver...")
	runErr := app.Run(ctx)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Archiver stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Archiver stopped gracefully.")
	return 0
}

func downloadRetry(cfg config.RetryConfig) resilience.RetryConfig {
	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = cfg.MaxAttempts
	if cfg.InitialDelay > 0 {
		retry.InitialInterval = cfg.InitialDelay
	}
	if cfg.MaxDelay > 0 {
		retry.MaxInterval = cfg.MaxDelay
	}
	return retry
}
