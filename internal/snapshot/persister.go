package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/camlog/internal/bus"
	"github.com/matheus3301/camlog/internal/ident"
	"github.com/matheus3301/camlog/internal/queue"
	"github.com/matheus3301/camlog/internal/store"
)

// DebounceDelay coalesces bursts of mutations into one write.
const DebounceDelay = 450 * time.Millisecond

// KV is the metadata store.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// DBKV adapts the profile database kv table to KV.
type DBKV struct {
	db *store.DB
}

func NewDBKV(db *store.DB) *DBKV { return &DBKV{db: db} }

func (k *DBKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return k.db.GetKV(ctx, key)
}

func (k *DBKV) Put(ctx context.Context, key string, value []byte) error {
	return k.db.PutKV(ctx, key, value)
}

func (k *DBKV) Delete(ctx context.Context, key string) error {
	return k.db.DeleteKV(ctx, key)
}

// Blobs is the part of the Blob Store restore needs.
type Blobs interface {
	Putter
	GetMany(ctx context.Context, ids []string) ([][]byte, error)
	DeleteMany(ctx context.Context, ids []string) error
	IDs(ctx context.Context) ([]string, bool, error)
}

// Source is the state being persisted.
type Source interface {
	State() queue.State
	Replace(queue.State)
}

// Persister writes the queue state to the metadata store.
type Persister struct {
	kv     KV
	src    Source
	blobs  Blobs
	ids    ident.Generator
	clock  ident.Clock
	bus    *bus.Bus
	logger *zap.Logger
	delay  time.Duration

	mu        sync.Mutex
	timer     *time.Timer
	restoring atomic.Bool

	// writeMu orders snapshot writes and deletes. The state is read under
	// it, so a write never lands after a Clear with state from before it.
	writeMu sync.Mutex
}

// NewPersister creates a persister. It does not read anything until
// Restore is called.
func NewPersister(kv KV, src Source, blobs Blobs, ids ident.Generator, clock ident.Clock, b *bus.Bus, logger *zap.Logger) *Persister {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = ident.RealClock{}
	}
	return &Persister{
		kv:     kv,
		src:    src,
		blobs:  blobs,
		ids:    ids,
		clock:  clock,
		bus:    b,
		logger: logger,
		delay:  DebounceDelay,
	}
}

// PersistNow serializes the whole state and overwrites the snapshot. A
// pending debounced save is dropped since this write covers it.
func (p *Persister) PersistNow(ctx context.Context) error {
	p.cancelPending()
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	snap := Encode(p.src.State(), p.clock.Now())
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := p.kv.Put(ctx, Key, data); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if !p.restoring.Load() {
		p.bus.Emit(bus.SnapshotSaved, snap.TS)
	}
	return nil
}

// SaveDebounced schedules a PersistNow, restarting the delay on every call.
// Calls made while restoring are ignored.
func (p *Persister) SaveDebounced() {
	if p.restoring.Load() {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(p.delay, func() {
		p.mu.Lock()
		p.timer = nil
		p.mu.Unlock()
		if err := p.PersistNow(context.Background()); err != nil {
			p.logger.Warn("debounced snapshot save failed", zap.Error(err))
		}
	})
}

// cancelPending stops a scheduled save and reports whether one was pending.
func (p *Persister) cancelPending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer == nil {
		return false
	}
	stopped := p.timer.Stop()
	p.timer = nil
	return stopped
}

// Flush writes a pending debounced save immediately. Used on shutdown.
func (p *Persister) Flush(ctx context.Context) error {
	if !p.cancelPending() {
		return nil
	}
	return p.PersistNow(ctx)
}

// Clear deletes the snapshot and drops any pending save.
func (p *Persister) Clear(ctx context.Context) error {
	p.cancelPending()
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if err := p.kv.Delete(ctx, Key); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

// RestoreResult describes what Restore found.
type RestoreResult struct {
	Found    bool // a snapshot was stored
	Corrupt  bool // it could not be read or parsed
	Migrated bool
	Stats    MigrateStats
	Missing  int // draft photos whose bytes are gone
	Orphans  int // unreferenced blobs swept
}

// Restore loads the stored snapshot into the source. A snapshot that
// cannot be read or parsed is treated as no prior state. Legacy snapshots
// are migrated and immediately persisted in the current shape.
func (p *Persister) Restore(ctx context.Context) (RestoreResult, error) {
	p.restoring.Store(true)
	defer p.restoring.Store(false)

	var res RestoreResult
	data, ok, err := p.kv.Get(ctx, Key)
	if err != nil {
		p.logger.Warn("read snapshot failed, starting empty", zap.Error(err))
		res.Corrupt = true
		p.src.Replace(queue.State{})
		return res, nil
	}
	if !ok {
		p.src.Replace(queue.State{})
		return res, nil
	}
	res.Found = true

	dec, err := Decode(data)
	if err != nil {
		p.logger.Warn("parse snapshot failed, starting empty", zap.Error(err))
		res.Corrupt = true
		p.src.Replace(queue.State{})
		return res, nil
	}

	current := dec.Current
	if dec.Legacy != nil {
		migrated, stats := Migrate(ctx, *dec.Legacy, p.blobs, p.ids, p.logger)
		current = &migrated
		res.Migrated = true
		res.Stats = stats
	}

	st := Sanitize(*current, p.clock.Now())
	res.Missing = p.rehydrate(ctx, st.Draft.Photos)
	p.src.Replace(st)

	if res.Migrated {
		if err := p.PersistNow(ctx); err != nil {
			return res, fmt.Errorf("persist migrated snapshot: %w", err)
		}
		p.logger.Info("legacy snapshot migrated",
			zap.Int("extracted", res.Stats.Extracted), zap.Int("failed", res.Stats.Failed))
	}
	res.Orphans = p.sweep(ctx, st)
	return res, nil
}

// rehydrate loads draft photo bytes into the Blob Store cache and counts
// the ones that are gone.
func (p *Persister) rehydrate(ctx context.Context, photos []queue.PhotoRef) int {
	if len(photos) == 0 {
		return 0
	}
	ids := make([]string, len(photos))
	for i, ph := range photos {
		ids[i] = ph.ID
	}
	data, err := p.blobs.GetMany(ctx, ids)
	if err != nil {
		p.logger.Warn("rehydrate draft photos", zap.Error(err))
		return 0
	}
	missing := 0
	for i, d := range data {
		if len(d) == 0 {
			missing++
			p.logger.Warn("draft photo missing", zap.String("photo_id", ids[i]))
		}
	}
	return missing
}

// sweep deletes stored blobs that st does not reference. These are left by
// captures whose debounced snapshot write never happened. Only called once
// a snapshot was read successfully.
func (p *Persister) sweep(ctx context.Context, st queue.State) int {
	stored, ok, err := p.blobs.IDs(ctx)
	if err != nil {
		p.logger.Warn("list blobs for sweep", zap.Error(err))
		return 0
	}
	if !ok {
		return 0
	}

	ref := make(map[string]struct{})
	for _, id := range st.QueuedPhotoIDs() {
		ref[id] = struct{}{}
	}
	for _, id := range st.Draft.PhotoIDs() {
		ref[id] = struct{}{}
	}

	var orphans []string
	for _, id := range stored {
		if _, ok := ref[id]; !ok {
			orphans = append(orphans, id)
		}
	}
	if len(orphans) == 0 {
		return 0
	}
	if err := p.blobs.DeleteMany(ctx, orphans); err != nil {
		p.logger.Warn("sweep orphan blobs", zap.Error(err))
	}
	p.logger.Info("swept orphan photos", zap.Int("count", len(orphans)))
	return len(orphans)
}
