package transcription

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/google/uuid"

	"github.com/edgard/tgarchive/internal/database"
	errs "github.com/edgard/tgarchive/internal/errors"
	"github.com/edgard/tgarchive/internal/resilience"
)

// ErrPoolClosed is returned by Submit after Close.
var ErrPoolClosed = errors.New("transcription pool is closed")

// Job is one staged media file awaiting transcription. The pool owns Path
// from the moment Submit is called.
type Job struct {
	ID       string
	Key      database.MessageKey
	Path     string
	Kind     database.MessageKind
	MimeType string
}

// Result reports the terminal outcome of a job. Err is nil when the job
// reached StateDone.
type Result struct {
	Job      Job
	State    State
	Text     string
	Err      error
	Duration time.Duration
}

// TranscriptStore is the archive write the pool needs.
type TranscriptStore interface {
	UpdateTranscript(ctx context.Context, key database.MessageKey, text string) (database.StoreResult, error)
}

// FileRemover deletes staged files.
type FileRemover interface {
	Remove(path string) error
}

// PoolConfig configures a Pool.
type PoolConfig struct {
	Workers int
	// JobTimeout bounds a single transcription. Zero means no limit.
	JobTimeout time.Duration
	// StoreTimeout bounds the transcript write-back.
	StoreTimeout time.Duration
	Breaker      resilience.CircuitBreakerConfig
	// OnComplete, if set, is called from the worker after every job, once
	// the staged file has been removed.
	OnComplete func(Result)
}

// Pool runs transcription jobs on a fixed number of workers, independent of
// message ingestion. Jobs are served in submission order.
type Pool struct {
	wp         *workerpool.WorkerPool
	engine     Engine
	store      TranscriptStore
	files      FileRemover
	breaker    *resilience.CircuitBreaker
	cfg        PoolConfig
	logger     *slog.Logger
	mu         sync.RWMutex
	stopped    bool
	liveMu     sync.Mutex
	live       map[string]struct{}
	closeOnce  sync.Once
	closeError error
}

// NewPool starts the workers. The pool takes ownership of engine and closes
// it in Close.
func NewPool(engine Engine, store TranscriptStore, files FileRemover, cfg PoolConfig, logger *slog.Logger) *Pool {
	if cfg.Workers < 1 {
		cfg.Workers = 2
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 15 * time.Second
	}
	if cfg.Breaker.Name == "" {
		cfg.Breaker.Name = "transcription-" + engine.Name()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Pool{
		wp:      workerpool.New(cfg.Workers),
		live:    make(map[string]struct{}),
		engine:  engine,
		store:   store,
		files:   files,
		breaker: resilience.NewCircuitBreaker(cfg.Breaker),
		cfg:     cfg,
		logger:  logger.With("component", "transcription_pool", "engine", engine.Name()),
	}
}

// Submit queues job without blocking. If the pool is closed the staged file
// is removed and ErrPoolClosed is returned.
func (p *Pool) Submit(job Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		p.cleanup(job)
		return ErrPoolClosed
	}

	p.track(job.Path)
	p.wp.Submit(func() { p.run(job) })
	p.logger.Debug("Transcription job queued",
		"job_id", job.ID, "message_id", job.Key.MessageID, "chat_id", job.Key.ChatID,
		"queued", p.wp.WaitingQueueSize())
	return nil
}

// Pending returns the number of queued jobs not yet picked up by a worker.
func (p *Pool) Pending() int {
	return p.wp.WaitingQueueSize()
}

// Owns reports whether path is staged for a job that is queued or running.
// Such files belong to the pool until the job's cleanup has run.
func (p *Pool) Owns(path string) bool {
	p.liveMu.Lock()
	defer p.liveMu.Unlock()
	_, ok := p.live[path]
	return ok
}

func (p *Pool) track(path string) {
	if path == "" {
		return
	}
	p.liveMu.Lock()
	p.live[path] = struct{}{}
	p.liveMu.Unlock()
}

func (p *Pool) untrack(path string) {
	p.liveMu.Lock()
	delete(p.live, path)
	p.liveMu.Unlock()
}

// Close stops accepting jobs, waits for queued and running jobs to finish
// and closes the engine.
func (p *Pool) Close() error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		p.mu.Unlock()

		p.logger.Info("Draining transcription pool", "queued", p.Pending())
		p.wp.StopWait()

		if err := p.engine.Close(); err != nil {
			p.closeError = fmt.Errorf("failed to close %s engine: %w", p.engine.Name(), err)
		}
		p.logger.Info("Transcription pool stopped")
	})
	return p.closeError
}

func (p *Pool) run(job Job) {
	start := time.Now()
	log := p.logger.With("job_id", job.ID, "message_id", job.Key.MessageID, "chat_id", job.Key.ChatID, "media_type", job.Kind)
	result := Result{Job: job, State: StateFailed}

	defer func() {
		if r := recover(); r != nil {
			result.State = StateFailed
			result.Err = errs.NewTranscriptionError(fmt.Sprintf("transcription panicked: %v", r), nil)
			log.Error("Transcription job panicked", "state", StateFailed, "panic", r)
		}
		p.cleanup(job)
		if !result.State.Terminal() {
			result.State = StateFailed
		}
		result.Duration = time.Since(start)
		if p.cfg.OnComplete != nil {
			p.cfg.OnComplete(result)
		}
	}()

	log.Info("Transcribing media", "state", StateTranscribing)

	text, err := p.transcribe(job)
	if err != nil {
		result.Err = err
		log.Error("Transcription failed", "state", StateFailed, "error", err, "duration", time.Since(start))
		return
	}

	text = strings.TrimSpace(text)
	if text == "" {
		result.State = StateDone
		log.Info("No speech detected, stored text left unchanged", "state", StateDone, "duration", time.Since(start))
		return
	}

	storeCtx, cancel := context.WithTimeout(context.Background(), p.cfg.StoreTimeout)
	defer cancel()
	if _, err := p.store.UpdateTranscript(storeCtx, job.Key, text); err != nil {
		result.Err = err
		log.Error("Failed to store transcript", "state", StateFailed, "error", err)
		return
	}

	result.State = StateDone
	result.Text = text
	log.Info("Transcript stored", "state", StateDone, "text_length", len(text), "duration", time.Since(start))
}

func (p *Pool) transcribe(job Job) (string, error) {
	ctx := context.Background()
	if p.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.JobTimeout)
		defer cancel()
	}

	var text string
	err := p.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		text, err = p.engine.Transcribe(ctx, job.Path, job.MimeType)
		return err
	})
	if err != nil {
		return "", errs.NewTranscriptionError(fmt.Sprintf("%s engine failed on %s", p.engine.Name(), job.Kind), err)
	}
	return text, nil
}

// cleanup removes the staged file. It runs on every exit path of a job.
func (p *Pool) cleanup(job Job) {
	if job.Path == "" {
		return
	}
	if err := p.files.Remove(job.Path); err != nil {
		p.logger.Error("Failed to remove staged file", "job_id", job.ID, "path", job.Path, "error", err)
	}
	p.untrack(job.Path)
}
