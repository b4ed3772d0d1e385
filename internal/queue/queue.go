package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/matheus3301/camlog/internal/bus"
	"github.com/matheus3301/camlog/internal/compress"
	"github.com/matheus3301/camlog/internal/ident"
	"github.com/matheus3301/camlog/internal/ponum"
)

var (
	ErrDraftFull     = errors.New("draft already holds the maximum of 10 photos")
	ErrNoPhotos      = errors.New("take at least one photo first")
	ErrTooManyPhotos = errors.New("a record holds at most 10 photos")
	ErrPORequired    = errors.New("po number is required")
	ErrEmptyPO       = errors.New("po number is empty; confirm to save without one")
	ErrLocked        = errors.New("queue is locked by an upload in progress")
	ErrMutating      = errors.New("queue is being changed, try again")
	ErrIndex         = errors.New("no queue item at that position")
	ErrPhotoIndex    = errors.New("no draft photo at that position")
	ErrUnknownPIC    = errors.New("unknown pic")
)

// Blobs is the subset of the Blob Store the queue writes to.
type Blobs interface {
	Put(ctx context.Context, id string, data []byte) error
	Delete(ctx context.Context, id string) error
	DeleteMany(ctx context.Context, ids []string) error
}

// Saver persists the queue state.
type Saver interface {
	SaveDebounced()
	PersistNow(ctx context.Context) error
	Clear(ctx context.Context) error
}

type nopSaver struct{}

func (nopSaver) SaveDebounced()                   {}
func (nopSaver) PersistNow(context.Context) error { return nil }
func (nopSaver) Clear(context.Context) error      { return nil }

// Queue owns the draft and the committed items. Every exported mutation is
// rejected with ErrLocked while an upload cycle holds the queue, and a cycle
// cannot start while a mutation still has blob work in flight.
type Queue struct {
	mu       sync.Mutex
	st       State
	locked   bool
	reserved int // captures compressing outside the mutex
	pending  int // mutations deleting blobs outside the mutex

	blobs  Blobs
	ids    ident.Generator
	clock  ident.Clock
	opts   compress.Options
	saver  Saver
	bus    *bus.Bus
	logger *zap.Logger
}

// New creates an empty queue.
func New(blobs Blobs, ids ident.Generator, clock ident.Clock, opts compress.Options, b *bus.Bus, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = ident.RealClock{}
	}
	return &Queue{
		st:     State{Draft: Draft{Mode: ponum.Std}},
		blobs:  blobs,
		ids:    ids,
		clock:  clock,
		opts:   opts,
		saver:  nopSaver{},
		bus:    b,
		logger: logger,
	}
}

// SetSaver attaches the snapshot persister. The persister reads the queue,
// so it is attached after both exist.
func (q *Queue) SetSaver(s Saver) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if s == nil {
		s = nopSaver{}
	}
	q.saver = s
}

// State returns a deep copy of the current state.
func (q *Queue) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.st.Clone()
}

// Replace swaps in a restored state.
func (q *Queue) Replace(st State) {
	q.mu.Lock()
	q.st = st.Clone()
	if q.st.Draft.Mode == "" {
		q.st.Draft.Mode = ponum.Std
	}
	q.mu.Unlock()
	q.bus.Emit(bus.QueueChanged, "restore")
}

// Locked reports whether an upload cycle holds the queue.
func (q *Queue) Locked() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.locked
}

// Armed reports whether automatic uploads are enabled.
func (q *Queue) Armed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.st.Armed
}

// SetArmed changes the armed flag and schedules a save.
func (q *Queue) SetArmed(armed bool) {
	q.mu.Lock()
	changed := q.st.Armed != armed
	q.st.Armed = armed
	saver := q.saver
	q.mu.Unlock()
	if changed {
		saver.SaveDebounced()
	}
}

// Stats returns queue counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.st.Stats()
}

// Capture compresses raw, stores it and appends it to the draft.
// A full draft is rejected before any blob is written.
func (q *Queue) Capture(ctx context.Context, raw []byte, kind Kind) (PhotoRef, error) {
	if kind == "" {
		kind = KindMaterial
	}

	q.mu.Lock()
	if q.locked {
		q.mu.Unlock()
		return PhotoRef{}, ErrLocked
	}
	if len(q.st.Draft.Photos)+q.reserved >= MaxPhotos {
		q.mu.Unlock()
		return PhotoRef{}, ErrDraftFull
	}
	q.reserved++
	q.mu.Unlock()

	ref, err := q.store(ctx, raw, kind)

	q.mu.Lock()
	q.reserved--
	if err == nil {
		q.st.Draft.Photos = append(q.st.Draft.Photos, ref)
	}
	saver := q.saver
	q.mu.Unlock()

	if err != nil {
		return PhotoRef{}, err
	}
	q.logger.Debug("photo captured",
		zap.String("photo_id", ref.ID), zap.Int("size_kb", ref.SizeKB), zap.String("kind", string(kind)))
	q.bus.Emit(bus.DraftChanged, "capture")
	saver.SaveDebounced()
	return ref, nil
}

func (q *Queue) store(ctx context.Context, raw []byte, kind Kind) (PhotoRef, error) {
	res, err := compress.Compress(raw, q.opts)
	if err != nil {
		return PhotoRef{}, err
	}
	id := q.ids.PhotoID()
	if err := q.blobs.Put(ctx, id, res.Data); err != nil {
		return PhotoRef{}, fmt.Errorf("store photo: %w", err)
	}
	return PhotoRef{ID: id, SizeKB: res.SizeKB, Kind: kind}, nil
}

// CaptureResult reports a multi-photo capture.
type CaptureResult struct {
	Added   []PhotoRef
	Skipped int // inputs beyond the free slots
}

// CaptureMany captures as many of raws as fit in the draft, in order.
// It stops at the first failure, returning what was added so far.
func (q *Queue) CaptureMany(ctx context.Context, raws [][]byte, kind Kind) (CaptureResult, error) {
	q.mu.Lock()
	if q.locked {
		q.mu.Unlock()
		return CaptureResult{}, ErrLocked
	}
	free := MaxPhotos - len(q.st.Draft.Photos) - q.reserved
	q.mu.Unlock()

	if free <= 0 {
		return CaptureResult{Skipped: len(raws)}, ErrDraftFull
	}
	take := min(free, len(raws))
	res := CaptureResult{Skipped: len(raws) - take}
	for _, raw := range raws[:take] {
		ref, err := q.Capture(ctx, raw, kind)
		if errors.Is(err, ErrDraftFull) {
			res.Skipped++
			continue
		}
		if err != nil {
			return res, err
		}
		res.Added = append(res.Added, ref)
	}
	return res, nil
}

// RemovePhoto detaches the draft photo at index and deletes its blob.
func (q *Queue) RemovePhoto(ctx context.Context, index int) error {
	q.mu.Lock()
	if q.locked {
		q.mu.Unlock()
		return ErrLocked
	}
	photos := q.st.Draft.Photos
	if index < 0 || index >= len(photos) {
		q.mu.Unlock()
		return ErrPhotoIndex
	}
	ref := photos[index]
	q.st.Draft.Photos = append(photos[:index:index], photos[index+1:]...)
	saver := q.saver
	q.pending++
	q.mu.Unlock()
	defer q.settle()

	if err := q.blobs.Delete(ctx, ref.ID); err != nil {
		q.logger.Warn("delete draft photo", zap.String("photo_id", ref.ID), zap.Error(err))
	}
	q.bus.Emit(bus.DraftChanged, "remove_photo")
	saver.SaveDebounced()
	return nil
}

// AbandonDraft deletes every draft photo and clears the draft fields.
// The normalization mode is kept.
func (q *Queue) AbandonDraft(ctx context.Context) error {
	q.mu.Lock()
	if q.locked {
		q.mu.Unlock()
		return ErrLocked
	}
	ids := q.st.Draft.PhotoIDs()
	q.st.Draft = Draft{Mode: q.st.Draft.Mode}
	saver := q.saver
	q.pending++
	q.mu.Unlock()
	defer q.settle()

	if err := q.blobs.DeleteMany(ctx, ids); err != nil {
		q.logger.Warn("delete abandoned photos", zap.Error(err))
	}
	q.bus.Emit(bus.DraftChanged, "abandon")
	saver.SaveDebounced()
	return nil
}

// DraftUpdate changes the draft text fields; nil fields are left alone.
type DraftUpdate struct {
	PO              *string
	GIT             *string
	PIC             *string
	Note            *string
	OptionalVisible *bool
}

// SetDraftFields applies u. The PO is normalized under the draft mode as if
// the field had lost focus.
func (q *Queue) SetDraftFields(u DraftUpdate) error {
	var pic string
	if u.PIC != nil {
		var err error
		if pic, err = CanonicalPIC(*u.PIC); err != nil {
			return err
		}
	}

	q.mu.Lock()
	if q.locked {
		q.mu.Unlock()
		return ErrLocked
	}
	d := &q.st.Draft
	if u.PO != nil {
		d.PO = ponum.Normalize(d.Mode, *u.PO, q.clock.Now())
	}
	if u.GIT != nil {
		d.GIT = *u.GIT
	}
	if u.PIC != nil {
		d.PIC = pic
	}
	if u.Note != nil {
		d.Note = *u.Note
	}
	if u.OptionalVisible != nil {
		d.OptionalVisible = *u.OptionalVisible
	}
	saver := q.saver
	q.mu.Unlock()

	q.bus.Emit(bus.DraftChanged, "fields")
	saver.SaveDebounced()
	return nil
}

// SetMode switches the draft normalization mode, optionally re-normalizing
// the PO typed so far.
func (q *Queue) SetMode(mode ponum.Mode, normalizeNow bool) error {
	q.mu.Lock()
	if q.locked {
		q.mu.Unlock()
		return ErrLocked
	}
	q.st.Draft.Mode = mode.OrStd()
	if normalizeNow {
		q.st.Draft.PO = ponum.Normalize(q.st.Draft.Mode, q.st.Draft.PO, q.clock.Now())
	}
	saver := q.saver
	q.mu.Unlock()

	q.bus.Emit(bus.DraftChanged, "mode")
	saver.SaveDebounced()
	return nil
}

// NormalizeDraftPO rewrites the draft PO into canonical form and returns it.
func (q *Queue) NormalizeDraftPO() (string, error) {
	q.mu.Lock()
	if q.locked {
		q.mu.Unlock()
		return "", ErrLocked
	}
	q.st.Draft.PO = ponum.Normalize(q.st.Draft.Mode, q.st.Draft.PO, q.clock.Now())
	po := q.st.Draft.PO
	saver := q.saver
	q.mu.Unlock()

	saver.SaveDebounced()
	return po, nil
}

// Commit turns the draft into a queue item. The draft photos become owned
// by the item and are not deleted. An empty PO is rejected with ErrEmptyPO
// unless allowEmptyPO is set.
func (q *Queue) Commit(ctx context.Context, allowEmptyPO bool) (Item, error) {
	q.mu.Lock()
	if q.locked {
		q.mu.Unlock()
		return Item{}, ErrLocked
	}
	d := q.st.Draft
	switch {
	case len(d.Photos) == 0:
		q.mu.Unlock()
		return Item{}, ErrNoPhotos
	case len(d.Photos) > MaxPhotos:
		q.mu.Unlock()
		return Item{}, ErrTooManyPhotos
	}

	mode := d.Mode.OrStd()
	po := strings.TrimSpace(ponum.Normalize(mode, d.PO, q.clock.Now()))
	if po == "" && !allowEmptyPO {
		q.st.Draft.PO = po
		q.mu.Unlock()
		return Item{}, ErrEmptyPO
	}

	it := Item{
		Category:   Category,
		PO:         po,
		GIT:        strings.TrimSpace(d.GIT),
		PIC:        d.PIC,
		Note:       strings.TrimSpace(d.Note),
		PhotoIDs:   make([]string, len(d.Photos)),
		Sizes:      make([]int, len(d.Photos)),
		PhotoKinds: make([]Kind, len(d.Photos)),
		Mode:       mode,
		Status:     StatusPending,
		UploadID:   q.ids.UploadID(),
	}
	for i, p := range d.Photos {
		kind := p.Kind
		if kind == "" {
			kind = KindMaterial
		}
		it.PhotoIDs[i] = p.ID
		it.Sizes[i] = p.SizeKB
		it.PhotoKinds[i] = kind
		it.TotalKB += p.SizeKB
	}

	q.st.Items = append(q.st.Items, it)
	q.st.Draft = Draft{Mode: mode}
	armed := q.st.Armed
	saver := q.saver
	q.mu.Unlock()

	q.logger.Info("record committed",
		zap.String("upload_id", it.UploadID), zap.String("po", it.PO), zap.Int("photos", len(it.PhotoIDs)))
	q.persist(ctx, saver)
	q.bus.Emit(bus.DraftChanged, "commit")
	q.bus.Emit(bus.ItemCommitted, CommitEvent{UploadID: it.UploadID, Armed: armed})
	return it.clone(), nil
}

// CommitEvent is the payload of bus.ItemCommitted.
type CommitEvent struct {
	UploadID string
	Armed    bool
}

// ItemEdit carries the full set of editable item fields.
type ItemEdit struct {
	Mode ponum.Mode
	PO   string
	GIT  string
	PIC  string
	Note string
}

// EditItem rewrites the metadata of the item at index. The PO is normalized
// under the edited mode and must not be empty. A changed PO makes the item a
// different record for the remote endpoint: it gets a fresh upload id and
// is marked not uploaded.
func (q *Queue) EditItem(ctx context.Context, index int, e ItemEdit) (Item, error) {
	pic, err := CanonicalPIC(e.PIC)
	if err != nil {
		return Item{}, err
	}
	mode := e.Mode.OrStd()
	po := strings.TrimSpace(ponum.Normalize(mode, e.PO, q.clock.Now()))
	if po == "" {
		return Item{}, ErrPORequired
	}

	q.mu.Lock()
	if q.locked {
		q.mu.Unlock()
		return Item{}, ErrLocked
	}
	if index < 0 || index >= len(q.st.Items) {
		q.mu.Unlock()
		return Item{}, ErrIndex
	}
	it := &q.st.Items[index]
	if it.PO != po {
		it.UploadID = q.ids.UploadID()
		it.Uploaded = false
	}
	it.Category = Category
	it.PO = po
	it.GIT = strings.TrimSpace(e.GIT)
	it.PIC = pic
	it.Note = strings.TrimSpace(e.Note)
	it.Mode = mode
	out := it.clone()
	saver := q.saver
	q.mu.Unlock()

	q.logger.Info("record edited", zap.String("upload_id", out.UploadID), zap.String("po", out.PO))
	q.persist(ctx, saver)
	q.bus.Emit(bus.QueueChanged, "edit")
	return out, nil
}

// DeleteItem removes the item at index, then deletes its blobs.
func (q *Queue) DeleteItem(ctx context.Context, index int) (Item, error) {
	q.mu.Lock()
	if q.locked {
		q.mu.Unlock()
		return Item{}, ErrLocked
	}
	if index < 0 || index >= len(q.st.Items) {
		q.mu.Unlock()
		return Item{}, ErrIndex
	}
	it := q.st.Items[index].clone()
	q.st.Items = append(q.st.Items[:index:index], q.st.Items[index+1:]...)
	saver := q.saver
	q.pending++
	q.mu.Unlock()
	defer q.settle()

	if err := q.blobs.DeleteMany(ctx, it.PhotoIDs); err != nil {
		q.logger.Warn("delete item photos", zap.String("upload_id", it.UploadID), zap.Error(err))
	}

	q.logger.Info("record deleted", zap.String("upload_id", it.UploadID), zap.String("po", it.PO))
	q.persist(ctx, saver)
	q.bus.Emit(bus.QueueChanged, "delete")
	return it, nil
}

// ResetAll deletes every queued and draft photo, empties the queue and the
// draft, and clears the persisted snapshot.
func (q *Queue) ResetAll(ctx context.Context) error {
	q.mu.Lock()
	if q.locked {
		q.mu.Unlock()
		return ErrLocked
	}
	ids := append(q.st.QueuedPhotoIDs(), q.st.Draft.PhotoIDs()...)
	q.st.Items = nil
	q.st.Draft = Draft{Mode: q.st.Draft.Mode}
	saver := q.saver
	q.pending++
	q.mu.Unlock()
	defer q.settle()

	if err := q.blobs.DeleteMany(ctx, ids); err != nil {
		q.logger.Warn("delete photos on reset", zap.Error(err))
	}
	if err := saver.Clear(ctx); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}
	q.logger.Info("queue reset", zap.Int("photos", len(ids)))
	q.bus.Emit(bus.QueueChanged, "reset")
	q.bus.Emit(bus.DraftChanged, "reset")
	return nil
}

// settle ends a mutation counted in pending.
func (q *Queue) settle() {
	q.mu.Lock()
	q.pending--
	q.mu.Unlock()
}

// persist writes the snapshot now. A failed write leaves memory
// authoritative and falls back to a debounced retry.
func (q *Queue) persist(ctx context.Context, saver Saver) {
	if err := saver.PersistNow(ctx); err != nil {
		q.logger.Warn("persist snapshot failed, retrying later", zap.Error(err))
		saver.SaveDebounced()
	}
}
