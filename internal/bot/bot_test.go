package bot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/tgarchive/internal/bot/tasks"
	"github.com/edgard/tgarchive/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type blockingListener struct {
	started atomic.Bool
}

func (l *blockingListener) Start(ctx context.Context) {
	l.started.Store(true)
	<-ctx.Done()
}

type returningListener struct{}

func (returningListener) Start(context.Context) {}

type fakePool struct {
	closed atomic.Int32
	err    error
}

func (p *fakePool) Close() error {
	p.closed.Add(1)
	return p.err
}

func noopTask(context.Context) error { return nil }

func newTestScheduler(t *testing.T, cfg *config.SchedulerConfig) *Scheduler {
	t.Helper()
	s, err := NewScheduler(discardLogger(), cfg, map[string]tasks.ScheduledTaskFunc{
		tasks.SQLMaintenanceTask: noopTask,
		tasks.StagingSweepTask:   noopTask,
	})
	require.NoError(t, err)
	return s
}

func TestSchedulerStart(t *testing.T) {
	t.Parallel()

	cfg := &config.SchedulerConfig{Tasks: map[string]config.TaskConfig{
		tasks.SQLMaintenanceTask: {Enabled: true, Schedule: "0 4 * * 0"},
		tasks.StagingSweepTask:   {Enabled: false, Schedule: "*/30 * * * *"},
		"unknown_task":           {Enabled: true, Schedule: "* * * * *"},
	}}
	s := newTestScheduler(t, cfg)

	require.NoError(t, s.Start())
	assert.Equal(t, 1, s.Scheduled())
	assert.Error(t, s.Start(), "second start must fail")

	require.NoError(t, s.Stop())
	assert.NoError(t, s.Stop(), "stopping a stopped scheduler is a no-op")
}

func TestSchedulerSkipsInvalidSchedule(t *testing.T) {
	t.Parallel()

	cfg := &config.SchedulerConfig{Tasks: map[string]config.TaskConfig{
		tasks.SQLMaintenanceTask: {Enabled: true, Schedule: "not a cron line"},
		tasks.StagingSweepTask:   {Enabled: true, Schedule: ""},
	}}
	s := newTestScheduler(t, cfg)

	require.NoError(t, s.Start())
	assert.Equal(t, 0, s.Scheduled())
	require.NoError(t, s.Stop())
}

func TestRunStopsOnCancelAndClosesPool(t *testing.T) {
	t.Parallel()

	listener := &blockingListener{}
	pool := &fakePool{}
	b := NewBot(discardLogger(), listener, newTestScheduler(t, nil), pool)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	require.Eventually(t, listener.started.Load, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	assert.Equal(t, int32(1), pool.closed.Load())
}

func TestRunReportsUnexpectedListenerExit(t *testing.T) {
	t.Parallel()

	pool := &fakePool{err: errors.New("engine close failed")}
	b := NewBot(discardLogger(), returningListener{}, newTestScheduler(t, nil), pool)

	err := b.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stopped unexpectedly")
	assert.Equal(t, int32(1), pool.closed.Load(), "pool is closed even when the listener fails")
}

func TestRunWithoutPool(t *testing.T) {
	t.Parallel()

	b := NewBot(discardLogger(), &blockingListener{}, newTestScheduler(t, nil), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.NoError(t, b.Run(ctx))
}
