// Package uploader drains committed queue items to the remote endpoint,
// one item at a time, each tagged with its upload id so a replayed
// delivery is confirmed rather than duplicated.
package uploader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/camlog/internal/bus"
	"github.com/matheus3301/camlog/internal/compress"
	"github.com/matheus3301/camlog/internal/queue"
	"github.com/matheus3301/camlog/internal/remote"
	"github.com/matheus3301/camlog/internal/status"
)

// RetryDelay is the pause before an automatic cycle retries after a failure.
const RetryDelay = 2500 * time.Millisecond

var (
	ErrBusy          = errors.New("an upload is already in progress")
	ErrDraftPending  = errors.New("draft has photos that are not committed yet")
	ErrQueueEmpty    = errors.New("queue is empty")
	ErrNothingToSend = errors.New("every queued item is already uploaded")
	ErrOffline       = errors.New("no network connection")
	ErrNotConfigured = errors.New("remote endpoint or api key not configured")
	ErrStopped       = errors.New("uploader is shutting down")
)

// ItemError reports the item that stopped a cycle.
type ItemError struct {
	Index    int
	UploadID string
	PO       string
	Err      error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("upload %s (po %q): %v", e.UploadID, e.PO, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

// Remote delivers one record.
type Remote interface {
	Configured() bool
	SaveRecord(ctx context.Context, rec remote.Record) (remote.SaveResponse, error)
}

// Connectivity reports whether the network is reachable.
type Connectivity interface {
	Online() bool
}

// Blobs is the part of the photo store a cycle reads and prunes.
type Blobs interface {
	GetMany(ctx context.Context, ids []string) ([][]byte, error)
	DeleteMany(ctx context.Context, ids []string) error
}

// Result summarizes one cycle.
type Result struct {
	Reason    string
	Delivered int
	Replayed  int
	// Cleared is set when a manual upload found nothing pending and
	// emptied the queue instead.
	Cleared   bool
	Completed bool
}

// Synchronizer runs upload cycles against the shared queue.
type Synchronizer struct {
	q       *queue.Queue
	blobs   Blobs
	remote  Remote
	net     Connectivity
	saver   queue.Saver
	machine *status.Machine
	bus     *bus.Bus
	logger  *zap.Logger

	retryDelay time.Duration
	mu         sync.Mutex
	retry      *time.Timer
	stopped    bool
	cycles     sync.WaitGroup
}

// New creates a synchronizer. The saver must be the one the queue uses.
func New(q *queue.Queue, blobs Blobs, r Remote, net Connectivity, saver queue.Saver, m *status.Machine, b *bus.Bus, logger *zap.Logger) *Synchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = status.NewMachine(b)
	}
	return &Synchronizer{
		q:          q,
		blobs:      blobs,
		remote:     r,
		net:        net,
		saver:      saver,
		machine:    m,
		bus:        b,
		logger:     logger,
		retryDelay: RetryDelay,
	}
}

// Machine returns the status machine the synchronizer drives.
func (s *Synchronizer) Machine() *status.Machine { return s.machine }

// Upload runs a user-triggered cycle. It arms automatic retries first, so
// a cycle refused for being offline still resumes once the network returns.
func (s *Synchronizer) Upload(ctx context.Context) (Result, error) {
	if !s.q.Armed() {
		s.q.SetArmed(true)
		if err := s.saver.PersistNow(ctx); err != nil {
			s.logger.Warn("persist armed flag failed", zap.Error(err))
		}
	}
	return s.run(ctx, false, "manual")
}

// TryAuto runs an automatic cycle when the queue is armed, idle and the
// network is up. Otherwise it does nothing and returns a zero Result.
func (s *Synchronizer) TryAuto(ctx context.Context, reason string) (Result, error) {
	if !s.q.Armed() || s.q.Locked() || !s.net.Online() {
		return Result{Reason: reason}, nil
	}
	return s.run(ctx, true, reason)
}

// Stop cancels a scheduled retry, refuses new cycles and waits for a
// running one. A running cycle finishes the item it is sending and stops
// before the next.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	s.stopped = true
	if s.retry != nil {
		s.retry.Stop()
		s.retry = nil
	}
	s.mu.Unlock()
	s.cycles.Wait()
}

// enter registers a cycle so Stop can wait for it.
func (s *Synchronizer) enter() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.cycles.Add(1)
	return true
}

func (s *Synchronizer) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// RetryPending reports whether a scheduled automatic cycle is waiting.
func (s *Synchronizer) RetryPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retry != nil
}

// Schedule runs TryAuto after RetryDelay. A later call replaces an earlier
// one that has not fired yet.
func (s *Synchronizer) Schedule(ctx context.Context, reason string) {
	ctx = context.WithoutCancel(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if s.retry != nil {
		s.retry.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(s.retryDelay, func() {
		s.mu.Lock()
		if s.retry != t {
			s.mu.Unlock()
			return
		}
		s.retry = nil
		s.mu.Unlock()
		if _, err := s.TryAuto(ctx, reason); err != nil {
			s.logger.Debug("scheduled upload did not complete", zap.String("reason", reason), zap.Error(err))
		}
	})
	s.retry = t
}

func (s *Synchronizer) cancelRetry() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.retry != nil {
		s.retry.Stop()
		s.retry = nil
	}
}

func (s *Synchronizer) persist(ctx context.Context) {
	if err := s.saver.PersistNow(ctx); err != nil {
		s.logger.Warn("persist snapshot failed", zap.Error(err))
	}
}

func (s *Synchronizer) run(ctx context.Context, auto bool, reason string) (Result, error) {
	res := Result{Reason: reason}
	if !s.enter() {
		return res, ErrStopped
	}
	defer s.cycles.Done()

	sess, err := s.q.BeginSync()
	if err != nil {
		// A mutation still deleting blobs ends shortly; an automatic
		// cycle comes back for it.
		if auto && errors.Is(err, queue.ErrMutating) {
			s.Schedule(ctx, reason)
		}
		return res, ErrBusy
	}
	defer sess.Release()

	st := sess.State()
	switch {
	case len(st.Draft.Photos) > 0:
		return res, ErrDraftPending
	case len(st.Items) == 0:
		return res, ErrQueueEmpty
	}

	if sess.EnsureUploadIDs() {
		s.persist(ctx)
		st = sess.State()
	}

	if !st.Pending() {
		if auto {
			sess.SetArmed(false)
			s.persist(ctx)
			s.logger.Info("nothing pending, auto upload disarmed", zap.String("reason", reason))
			return res, ErrNothingToSend
		}
		sess.Reset()
		if err := s.saver.Clear(ctx); err != nil {
			s.logger.Warn("clear snapshot failed", zap.Error(err))
		}
		res.Cleared = true
		return res, nil
	}

	if !s.net.Online() {
		return res, ErrOffline
	}
	if !s.remote.Configured() {
		return res, ErrNotConfigured
	}

	s.cancelRetry()
	if err := s.machine.Transition(status.Uploading); err != nil {
		s.logger.Warn("status transition", zap.Error(err))
	}
	pending := 0
	for _, it := range st.Items {
		if !it.Uploaded {
			pending++
		}
	}
	s.bus.Emit(bus.UploadStarted, StartedEvent{Reason: reason, Auto: auto, Pending: pending})
	s.logger.Info("upload cycle started", zap.String("reason", reason), zap.Int("pending", pending))

	done := 0
	for i, it := range st.Items {
		if it.Uploaded {
			continue
		}
		if s.isStopped() {
			s.persist(ctx)
			_ = s.machine.Fail(ErrStopped)
			_ = s.machine.Transition(status.Idle)
			s.logger.Info("upload cycle interrupted by shutdown",
				zap.String("reason", reason), zap.Int("delivered", res.Delivered))
			return res, ErrStopped
		}
		s.bus.Emit(bus.UploadProgress, ProgressEvent{Index: i, Done: done, Total: pending, UploadID: it.UploadID})

		replayed, err := s.deliver(ctx, it)
		if err != nil {
			s.persist(ctx)
			ierr := &ItemError{Index: i, UploadID: it.UploadID, PO: it.PO, Err: err}
			s.logger.Error("upload failed",
				zap.String("upload_id", it.UploadID),
				zap.String("po", it.PO),
				zap.Bool("auto", auto),
				zap.Error(err))
			_ = s.machine.Fail(ierr)
			_ = s.machine.Transition(status.Idle)
			s.bus.Emit(bus.UploadFailed, FailedEvent{Index: i, UploadID: it.UploadID, Err: err.Error(), Auto: auto})
			if auto {
				s.Schedule(ctx, "retry")
			}
			return res, ierr
		}

		if err := s.blobs.DeleteMany(ctx, it.PhotoIDs); err != nil {
			s.logger.Warn("delete uploaded photos", zap.String("upload_id", it.UploadID), zap.Error(err))
		}
		sess.MarkUploaded(it.UploadID)
		s.persist(ctx)

		done++
		res.Delivered++
		if replayed {
			res.Replayed++
		}
		s.logger.Info("item uploaded",
			zap.String("upload_id", it.UploadID),
			zap.String("po", it.PO),
			zap.Bool("already", replayed))
		s.bus.Emit(bus.UploadItemOK, ItemEvent{Index: i, UploadID: it.UploadID, Already: replayed})
	}

	if err := s.blobs.DeleteMany(ctx, st.QueuedPhotoIDs()); err != nil {
		s.logger.Warn("delete queue photos", zap.Error(err))
	}
	sess.Reset()
	if err := s.saver.Clear(ctx); err != nil {
		s.logger.Warn("clear snapshot failed", zap.Error(err))
	}
	_ = s.machine.Transition(status.Succeeded)
	_ = s.machine.Transition(status.Idle)
	res.Completed = true
	s.bus.Emit(bus.UploadCompleted, CompletedEvent{Delivered: res.Delivered, Replayed: res.Replayed})
	s.logger.Info("upload cycle completed", zap.Int("delivered", res.Delivered), zap.Int("replayed", res.Replayed))
	return res, nil
}

// deliver posts one item. Missing photo payloads are skipped.
func (s *Synchronizer) deliver(ctx context.Context, it queue.Item) (replayed bool, err error) {
	payloads, err := s.blobs.GetMany(ctx, it.PhotoIDs)
	if err != nil {
		return false, fmt.Errorf("read photos: %w", err)
	}
	images := make([]string, 0, len(payloads))
	for i, p := range payloads {
		if len(p) == 0 {
			s.logger.Warn("photo missing from store",
				zap.String("upload_id", it.UploadID),
				zap.String("photo_id", it.PhotoIDs[i]))
			continue
		}
		images = append(images, compress.DataURL(p))
	}

	rec := remote.NewRecord(it, images)
	resp, err := s.remote.SaveRecord(ctx, rec)
	if err != nil {
		return false, err
	}
	return resp.Already && resp.Status != "success", nil
}
