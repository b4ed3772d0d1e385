// Package sync turns bus events into automatic upload attempts and keeps
// a journal of how the last cycles ended.
package sync

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/camlog/internal/bus"
	"github.com/matheus3301/camlog/internal/queue"
	"github.com/matheus3301/camlog/internal/uploader"
)

// StartupDelay is how long after Start the first automatic check runs.
const StartupDelay = 400 * time.Millisecond

// AutoUploader is the part of the synchronizer the engine drives.
type AutoUploader interface {
	TryAuto(ctx context.Context, reason string) (uploader.Result, error)
	Schedule(ctx context.Context, reason string)
}

// Engine reacts to connectivity and queue events. Attempts start on the
// engine goroutine and on the uploader's retry timers; the queue's sync lock
// keeps them from overlapping.
type Engine struct {
	up      AutoUploader
	journal *Journal
	bus     *bus.Bus
	logger  *zap.Logger
	delay   time.Duration
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewEngine creates a new sync engine. journal may be nil.
func NewEngine(up AutoUploader, journal *Journal, b *bus.Bus, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		up:      up,
		journal: journal,
		bus:     b,
		logger:  logger,
		delay:   StartupDelay,
	}
}

// Start subscribes to the bus and schedules the startup check.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})
	netCh, unsubNet := e.bus.Subscribe(bus.NetOnline, 16)
	commitCh, unsubCommit := e.bus.Subscribe(bus.ItemCommitted, 16)
	upCh, unsubUp := e.bus.Subscribe("upload.", 64)

	go func() {
		defer close(e.done)
		defer unsubNet()
		defer unsubCommit()
		defer unsubUp()

		startup := time.NewTimer(e.delay)
		defer startup.Stop()

		for {
			select {
			case <-startup.C:
				e.try(ctx, "startup")
			case <-netCh:
				e.try(ctx, "online")
			case evt := <-commitCh:
				e.handleCommit(ctx, evt)
			case evt := <-upCh:
				e.record(ctx, evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the engine and waits for the loop to exit.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
		<-e.done
	}
}

func (e *Engine) try(ctx context.Context, reason string) {
	res, err := e.up.TryAuto(ctx, reason)
	switch {
	case err != nil:
		e.logger.Info("automatic upload stopped", zap.String("reason", reason), zap.Error(err))
	case res.Completed:
		e.logger.Info("automatic upload completed", zap.String("reason", reason), zap.Int("delivered", res.Delivered))
	}
}

func (e *Engine) handleCommit(ctx context.Context, evt bus.Event) {
	ce, ok := evt.Payload.(queue.CommitEvent)
	if !ok || !ce.Armed {
		return
	}
	e.up.Schedule(ctx, "after_save")
}

func (e *Engine) record(ctx context.Context, evt bus.Event) {
	if e.journal == nil {
		return
	}
	var err error
	switch p := evt.Payload.(type) {
	case uploader.CompletedEvent:
		err = e.journal.RecordSuccess(ctx, evt.Timestamp, p.Delivered)
	case uploader.FailedEvent:
		err = e.journal.RecordFailure(ctx, evt.Timestamp, p.UploadID, p.Err)
	default:
		return
	}
	if err != nil {
		e.logger.Warn("failed to update sync journal", zap.Error(err))
	}
}
