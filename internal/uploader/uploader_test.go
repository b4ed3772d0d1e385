package uploader

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/camlog/internal/blob"
	"github.com/matheus3301/camlog/internal/bus"
	"github.com/matheus3301/camlog/internal/compress"
	"github.com/matheus3301/camlog/internal/queue"
	"github.com/matheus3301/camlog/internal/remote"
	"github.com/matheus3301/camlog/internal/snapshot"
	"github.com/matheus3301/camlog/internal/status"
	"github.com/matheus3301/camlog/internal/store"
	"github.com/matheus3301/camlog/internal/testutil"
)

// fakeRemote records every posted record and answers from a script.
type fakeRemote struct {
	mu         sync.Mutex
	calls      []remote.Record
	replies    []reply
	unset      bool
	defaultRep reply
}

type reply struct {
	resp remote.SaveResponse
	err  error
}

func (f *fakeRemote) Configured() bool { return !f.unset }

func (f *fakeRemote) SaveRecord(_ context.Context, rec remote.Record) (remote.SaveResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, rec)
	r := f.defaultRep
	if len(f.replies) > 0 {
		r = f.replies[0]
		f.replies = f.replies[1:]
	}
	if r.err == nil && !r.resp.Delivered() {
		return r.resp, &remote.ResponseError{Action: remote.ActionSave, Message: r.resp.Message}
	}
	return r.resp, r.err
}

func (f *fakeRemote) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeNet struct{ online bool }

func (n *fakeNet) Online() bool { return n.online }

// countingBlobs wraps the store to count deletions.
type countingBlobs struct {
	*blob.Store
	mu      sync.Mutex
	deletes int
}

func (c *countingBlobs) DeleteMany(ctx context.Context, ids []string) error {
	c.mu.Lock()
	c.deletes++
	c.mu.Unlock()
	return c.Store.DeleteMany(ctx, ids)
}

// heldBlobs is the queue's photo store. Once hold is armed, the next
// DeleteMany waits for release.
type heldBlobs struct {
	*blob.Store
	mu      sync.Mutex
	armed   bool
	entered chan struct{}
	release chan struct{}
}

func (h *heldBlobs) hold() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.armed = true
	h.entered = make(chan struct{})
	h.release = make(chan struct{})
}

func (h *heldBlobs) DeleteMany(ctx context.Context, ids []string) error {
	h.mu.Lock()
	held := h.armed
	h.armed = false
	entered, release := h.entered, h.release
	h.mu.Unlock()
	if held {
		close(entered)
		<-release
	}
	return h.Store.DeleteMany(ctx, ids)
}

// gatedRemote holds the first SaveRecord until release is closed.
type gatedRemote struct {
	*fakeRemote
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedRemote) SaveRecord(ctx context.Context, rec remote.Record) (remote.SaveResponse, error) {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	return g.fakeRemote.SaveRecord(ctx, rec)
}

func testDB(t *testing.T) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type fixture struct {
	q      *queue.Queue
	qblobs *heldBlobs
	mem    *blob.MemoryBackend
	blobs  *countingBlobs
	kv     *snapshot.DBKV
	p      *snapshot.Persister
	remote *fakeRemote
	net    *fakeNet
	bus    *bus.Bus
	sync   *Synchronizer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := blob.NewMemory()
	photos := blob.New(mem)
	b := bus.New()
	clock := testutil.NewStubClock(time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC))
	ids := testutil.NewStubIDs()

	qblobs := &heldBlobs{Store: photos}
	q := queue.New(qblobs, ids, clock, compress.Options{}, b, nil)
	kv := snapshot.NewDBKV(testDB(t))
	p := snapshot.NewPersister(kv, q, photos, ids, clock, b, nil)
	q.SetSaver(p)

	f := &fixture{
		q:      q,
		qblobs: qblobs,
		mem:    mem,
		blobs:  &countingBlobs{Store: photos},
		kv:     kv,
		p:      p,
		remote: &fakeRemote{defaultRep: reply{resp: remote.SaveResponse{OK: true, Status: "success"}}},
		net:    &fakeNet{online: true},
		bus:    b,
	}
	f.sync = New(q, f.blobs, f.remote, f.net, p, status.NewMachine(b), b, nil)
	f.sync.retryDelay = 20 * time.Millisecond
	t.Cleanup(f.sync.Stop)
	return f
}

func (f *fixture) commit(t *testing.T, po string, photos int) queue.Item {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < photos; i++ {
		if _, err := f.q.Capture(ctx, testutil.JPEG(t, 80, 60, uint8(i*17)), queue.KindMaterial); err != nil {
			t.Fatalf("capture: %v", err)
		}
	}
	if err := f.q.SetDraftFields(queue.DraftUpdate{PO: &po}); err != nil {
		t.Fatalf("SetDraftFields: %v", err)
	}
	it, err := f.q.Commit(ctx, false)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return it
}

func (f *fixture) snapshotStored(t *testing.T) bool {
	t.Helper()
	_, ok, err := f.kv.Get(context.Background(), snapshot.Key)
	if err != nil {
		t.Fatal(err)
	}
	return ok
}

func TestEndToEndReplayedDelivery(t *testing.T) {
	f := newFixture(t)
	f.remote.defaultRep = reply{resp: remote.SaveResponse{OK: true, Already: true}}

	it := f.commit(t, "251234", 3)
	if it.PO != "203025001234" {
		t.Fatalf("stored PO = %q, want 203025001234", it.PO)
	}
	if it.UploadID == "" {
		t.Fatal("upload id is empty")
	}
	if f.mem.Len() != 3 {
		t.Fatalf("blobs = %d, want 3", f.mem.Len())
	}

	res, err := f.sync.Upload(context.Background())
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if !res.Completed || res.Delivered != 1 || res.Replayed != 1 {
		t.Fatalf("result = %+v", res)
	}
	if f.remote.callCount() != 1 {
		t.Fatalf("calls = %d, want 1", f.remote.callCount())
	}
	rec := f.remote.calls[0]
	if rec.UploadID != it.UploadID || len(rec.Images) != 3 {
		t.Fatalf("record upload_id=%q images=%d", rec.UploadID, len(rec.Images))
	}
	if !strings.HasPrefix(rec.Images[0], "data:image/jpeg;base64,") {
		t.Fatalf("image payload %q is not a jpeg data url", rec.Images[0][:20])
	}
	if rec.Status != queue.StatusPending || rec.Category != queue.Category {
		t.Fatalf("record status=%q category=%q", rec.Status, rec.Category)
	}
	if f.mem.Len() != 0 {
		t.Fatalf("blobs after upload = %d, want 0", f.mem.Len())
	}
	if st := f.q.State(); len(st.Items) != 0 {
		t.Fatalf("queue not cleared: %d items", len(st.Items))
	}
	if f.snapshotStored(t) {
		t.Fatal("snapshot still stored after completed cycle")
	}
	if f.q.Locked() {
		t.Fatal("queue still locked")
	}
	if got := f.sync.Machine().Current(); got != status.Idle {
		t.Fatalf("status = %s, want IDLE", got)
	}

	if _, err := f.sync.Upload(context.Background()); !errors.Is(err, ErrQueueEmpty) {
		t.Fatalf("second Upload err = %v, want ErrQueueEmpty", err)
	}
	if f.remote.callCount() != 1 {
		t.Fatalf("second upload made a network call")
	}
}

func TestUploadedItemsAreNotResent(t *testing.T) {
	f := newFixture(t)
	f.q.Replace(queue.State{
		Items: []queue.Item{{
			Category: queue.Category,
			PO:       "203025001234",
			PhotoIDs: []string{"PH_x"},
			Sizes:    []int{10},
			UploadID: "UPL_done",
			Uploaded: true,
		}},
	})

	for i := 0; i < 2; i++ {
		res, err := f.sync.Upload(context.Background())
		if i == 0 && (err != nil || !res.Cleared) {
			t.Fatalf("first Upload = %+v, %v; want cleared", res, err)
		}
		if i == 1 && !errors.Is(err, ErrQueueEmpty) {
			t.Fatalf("second Upload err = %v, want ErrQueueEmpty", err)
		}
	}
	if f.remote.callCount() != 0 {
		t.Fatalf("calls = %d, want 0", f.remote.callCount())
	}
	if f.blobs.deletes != 0 {
		t.Fatalf("blob deletions = %d, want 0", f.blobs.deletes)
	}
}

func TestFailureStopsCycleAndKeepsQueue(t *testing.T) {
	f := newFixture(t)
	first := f.commit(t, "251111", 1)
	second := f.commit(t, "252222", 2)
	third := f.commit(t, "253333", 1)

	f.remote.replies = []reply{
		{resp: remote.SaveResponse{Status: "success"}},
		{resp: remote.SaveResponse{Status: "error", Message: "sheet locked"}},
	}
	ch, unsub := f.bus.Subscribe(bus.UploadFailed, 1)
	defer unsub()

	_, err := f.sync.Upload(context.Background())
	var ierr *ItemError
	if !errors.As(err, &ierr) {
		t.Fatalf("err = %v, want *ItemError", err)
	}
	if ierr.UploadID != second.UploadID || ierr.Index != 1 {
		t.Fatalf("failed item = %+v", ierr)
	}
	var rerr *remote.ResponseError
	if !errors.As(err, &rerr) || rerr.Message != "sheet locked" {
		t.Fatalf("cause = %v, want response error with message", err)
	}
	if f.remote.callCount() != 2 {
		t.Fatalf("calls = %d, want 2 (third item never attempted)", f.remote.callCount())
	}

	st := f.q.State()
	if len(st.Items) != 3 || !st.Items[0].Uploaded || st.Items[1].Uploaded || st.Items[2].Uploaded {
		t.Fatalf("uploaded flags = %v %v %v", st.Items[0].Uploaded, st.Items[1].Uploaded, st.Items[2].Uploaded)
	}
	// First item's photos are gone, the rest remain.
	if f.mem.Len() != len(second.PhotoIDs)+len(third.PhotoIDs) {
		t.Fatalf("blobs = %d, want %d", f.mem.Len(), len(second.PhotoIDs)+len(third.PhotoIDs))
	}
	_ = first

	if f.q.Locked() {
		t.Fatal("queue locked after failure")
	}
	if !f.snapshotStored(t) {
		t.Fatal("partial progress not persisted")
	}
	if f.sync.RetryPending() {
		t.Fatal("manual failure scheduled a retry")
	}
	if f.sync.Machine().LastError() == "" {
		t.Fatal("status machine did not record the failure")
	}

	select {
	case evt := <-ch:
		if evt.Payload.(FailedEvent).UploadID != second.UploadID {
			t.Fatalf("failed event = %+v", evt.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("no upload.failed event")
	}

	// A second manual attempt resumes at the failed item.
	res, err := f.sync.Upload(context.Background())
	if err != nil || !res.Completed || res.Delivered != 2 {
		t.Fatalf("resume = %+v, %v", res, err)
	}
	if f.remote.calls[2].UploadID != second.UploadID {
		t.Fatalf("resumed with %q, want %q", f.remote.calls[2].UploadID, second.UploadID)
	}
}

func TestEntryConditions(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, f *fixture)
		want  error
	}{
		{
			name: "empty queue",
			want: ErrQueueEmpty,
		},
		{
			name: "uncommitted draft photos",
			setup: func(t *testing.T, f *fixture) {
				f.commit(t, "251234", 1)
				if _, err := f.q.Capture(context.Background(), testutil.JPEG(t, 20, 20, 1), queue.KindSJ); err != nil {
					t.Fatal(err)
				}
			},
			want: ErrDraftPending,
		},
		{
			name: "offline",
			setup: func(t *testing.T, f *fixture) {
				f.commit(t, "251234", 1)
				f.net.online = false
			},
			want: ErrOffline,
		},
		{
			name: "not configured",
			setup: func(t *testing.T, f *fixture) {
				f.commit(t, "251234", 1)
				f.remote.unset = true
			},
			want: ErrNotConfigured,
		},
		{
			name: "busy",
			setup: func(t *testing.T, f *fixture) {
				f.commit(t, "251234", 1)
				sess, err := f.q.BeginSync()
				if err != nil {
					t.Fatal(err)
				}
				t.Cleanup(sess.Release)
			},
			want: ErrBusy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.setup != nil {
				tt.setup(t, f)
			}
			_, err := f.sync.Upload(context.Background())
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if f.remote.callCount() != 0 {
				t.Fatalf("calls = %d, want 0", f.remote.callCount())
			}
			if !f.q.Armed() {
				t.Fatal("manual upload did not arm")
			}
		})
	}
}

func TestTryAutoRequiresArmed(t *testing.T) {
	f := newFixture(t)
	f.commit(t, "251234", 1)

	res, err := f.sync.TryAuto(context.Background(), "online")
	if err != nil || res.Completed {
		t.Fatalf("unarmed TryAuto = %+v, %v", res, err)
	}
	if f.remote.callCount() != 0 {
		t.Fatal("unarmed TryAuto posted")
	}

	f.q.SetArmed(true)
	res, err = f.sync.TryAuto(context.Background(), "online")
	if err != nil || !res.Completed {
		t.Fatalf("armed TryAuto = %+v, %v", res, err)
	}
	if f.remote.callCount() != 1 {
		t.Fatalf("calls = %d, want 1", f.remote.callCount())
	}
}

func TestTryAutoDisarmsWhenNothingPending(t *testing.T) {
	f := newFixture(t)
	f.q.Replace(queue.State{
		Armed: true,
		Items: []queue.Item{{Category: queue.Category, UploadID: "UPL_9", Uploaded: true}},
	})

	_, err := f.sync.TryAuto(context.Background(), "startup")
	if !errors.Is(err, ErrNothingToSend) {
		t.Fatalf("err = %v, want ErrNothingToSend", err)
	}
	if f.q.Armed() {
		t.Fatal("still armed")
	}
	if len(f.q.State().Items) != 1 {
		t.Fatal("auto check must not clear the queue")
	}
}

func TestAutoFailureSchedulesRetry(t *testing.T) {
	f := newFixture(t)
	f.commit(t, "251234", 2)
	f.q.SetArmed(true)
	f.remote.replies = []reply{{err: errors.New("connection reset")}}

	done, unsub := f.bus.Subscribe(bus.UploadCompleted, 1)
	defer unsub()

	if _, err := f.sync.TryAuto(context.Background(), "after_save"); err == nil {
		t.Fatal("expected failure")
	}
	if !f.sync.RetryPending() {
		t.Fatal("no retry scheduled")
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("retry did not complete the cycle")
	}
	if f.remote.callCount() != 2 {
		t.Fatalf("calls = %d, want 2", f.remote.callCount())
	}
	if f.remote.calls[0].UploadID != f.remote.calls[1].UploadID {
		t.Fatal("retry used a different upload id")
	}
}

func TestAutoAttemptDuringDeleteRetries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.commit(t, "251234", 1)
	kept := f.commit(t, "251235", 1)
	f.q.SetArmed(true)

	done, unsub := f.bus.Subscribe(bus.UploadCompleted, 1)
	defer unsub()

	f.qblobs.hold()
	deleted := make(chan error, 1)
	go func() {
		_, err := f.q.DeleteItem(ctx, 0)
		deleted <- err
	}()
	select {
	case <-f.qblobs.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("DeleteItem never reached the blob store")
	}

	if _, err := f.sync.TryAuto(ctx, "after_save"); !errors.Is(err, ErrBusy) {
		close(f.qblobs.release)
		t.Fatalf("TryAuto during delete: err = %v, want ErrBusy", err)
	}
	if !f.sync.RetryPending() {
		t.Error("no retry scheduled after the queue was busy")
	}
	if n := f.remote.callCount(); n != 0 {
		t.Errorf("calls during delete = %d, want 0", n)
	}

	close(f.qblobs.release)
	if err := <-deleted; err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("retry did not complete the cycle")
	}
	if n := f.remote.callCount(); n != 1 {
		t.Fatalf("calls = %d, want only the item that was not deleted", n)
	}
	if got := f.remote.calls[0].UploadID; got != kept.UploadID {
		t.Fatalf("sent upload id %q, want %q", got, kept.UploadID)
	}
}

func TestStopWaitsForCycleInFlight(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.commit(t, "251234", 1)
	f.commit(t, "251235", 1)

	gr := &gatedRemote{fakeRemote: f.remote, entered: make(chan struct{}), release: make(chan struct{})}
	s := New(f.q, f.blobs, gr, f.net, f.p, status.NewMachine(f.bus), f.bus, nil)

	uploaded := make(chan error, 1)
	go func() {
		_, err := s.Upload(ctx)
		uploaded <- err
	}()
	select {
	case <-gr.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("cycle never reached the remote")
	}

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
		t.Fatal("Stop returned while an item was being sent")
	case <-time.After(50 * time.Millisecond):
	}

	close(gr.release)
	if err := <-uploaded; !errors.Is(err, ErrStopped) {
		t.Fatalf("Upload err = %v, want ErrStopped", err)
	}
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after the cycle ended")
	}

	if n := f.remote.callCount(); n != 1 {
		t.Fatalf("calls = %d, want 1: no item starts after Stop", n)
	}
	st := f.q.State()
	if len(st.Items) != 2 || !st.Items[0].Uploaded || st.Items[1].Uploaded {
		t.Fatalf("items after stop = %+v, want first uploaded and second pending", st.Items)
	}
	if f.q.Locked() {
		t.Fatal("queue still locked after an interrupted cycle")
	}
	if !f.snapshotStored(t) {
		t.Fatal("progress of the interrupted cycle was not persisted")
	}
	if _, err := s.Upload(ctx); !errors.Is(err, ErrStopped) {
		t.Fatalf("Upload after Stop err = %v, want ErrStopped", err)
	}
}

func TestMissingPhotosAreSkipped(t *testing.T) {
	f := newFixture(t)
	it := f.commit(t, "251234", 3)
	if err := f.blobs.Store.Delete(context.Background(), it.PhotoIDs[1]); err != nil {
		t.Fatal(err)
	}

	if _, err := f.sync.Upload(context.Background()); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	rec := f.remote.calls[0]
	if len(rec.Images) != 2 {
		t.Fatalf("images = %d, want 2", len(rec.Images))
	}
	if len(rec.Sizes) != 3 || len(rec.PhotoKinds) != 3 {
		t.Fatalf("sizes/kinds must keep the item's arrays, got %d/%d", len(rec.Sizes), len(rec.PhotoKinds))
	}
}

func TestLegacyItemsGetUploadIDs(t *testing.T) {
	f := newFixture(t)
	f.q.Replace(queue.State{
		Items: []queue.Item{{Category: queue.Category, PO: "203025001234", TotalKB: 40}},
	})
	if _, err := f.sync.Upload(context.Background()); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if id := f.remote.calls[0].UploadID; !strings.HasPrefix(id, "LEGACY_") {
		t.Fatalf("upload id = %q, want LEGACY_ prefix", id)
	}
}
