package daemon

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/matheus3301/camlog/internal/api"
	"github.com/matheus3301/camlog/internal/blob"
	"github.com/matheus3301/camlog/internal/bus"
	"github.com/matheus3301/camlog/internal/compress"
	"github.com/matheus3301/camlog/internal/config"
	"github.com/matheus3301/camlog/internal/ctl"
	"github.com/matheus3301/camlog/internal/lock"
	"github.com/matheus3301/camlog/internal/netwatch"
	"github.com/matheus3301/camlog/internal/queue"
	"github.com/matheus3301/camlog/internal/remote"
	"github.com/matheus3301/camlog/internal/snapshot"
	"github.com/matheus3301/camlog/internal/status"
	"github.com/matheus3301/camlog/internal/store"
	intsync "github.com/matheus3301/camlog/internal/sync"
	"github.com/matheus3301/camlog/internal/testutil"
	"github.com/matheus3301/camlog/internal/uploader"
)

// fakeEndpoint answers simpanData with already=true and records upload ids.
type fakeEndpoint struct {
	saves     atomic.Int32
	uploadIDs chan string
}

func (f *fakeEndpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		body, _ := io.ReadAll(r.Body)
		form, _ := url.ParseQuery(string(body))
		var rec remote.Record
		_ = json.Unmarshal([]byte(form.Get("data")), &rec)
		f.saves.Add(1)
		f.uploadIDs <- rec.UploadID
		_, _ = io.WriteString(w, `{"ok":true,"already":true}`)
	default:
		switch r.URL.Query().Get("action") {
		case remote.ActionSearch:
			_, _ = io.WriteString(w, `{"ok":true,"data":{"git":[{"po_number":"`+r.URL.Query().Get("q")+`","material_json":"[]"}],"photos":[]}}`)
		default:
			_, _ = io.WriteString(w, `{"ok":true,"data":[["R1","PH_1","MATERIAL","203025001234","","DODY","","2025-03-10"]]}`)
		}
	}
}

type harness struct {
	client   *ctl.Client
	endpoint *fakeEndpoint
	blobs    *blob.MemoryBackend
	machine  *status.Machine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	// Use a short path to avoid macOS 104-char Unix socket limit.
	tmpDir, err := os.MkdirTemp("/tmp", "camlog-test-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(tmpDir) })

	lk, err := lock.Acquire(tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = lk.Release() })

	db, err := store.Open(filepath.Join(tmpDir, "camlog.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ep := &fakeEndpoint{uploadIDs: make(chan string, 10)}
	httpSrv := httptest.NewServer(ep)
	t.Cleanup(httpSrv.Close)

	logger, _ := zap.NewDevelopment()
	b := bus.New()
	machine := status.NewMachine(b)
	clock := testutil.NewStubClock(time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC))
	ids := testutil.NewStubIDs()
	mem := blob.NewMemory()
	photos := blob.New(mem)

	q := queue.New(photos, ids, clock, compress.Options{}, b, logger)
	p := snapshot.NewPersister(snapshot.NewDBKV(db), q, photos, ids, clock, b, logger)
	q.SetSaver(p)
	if _, err := p.Restore(context.Background()); err != nil {
		t.Fatal(err)
	}

	rc := remote.New(config.RemoteConfig{Endpoint: httpSrv.URL, APIKey: "k"}, logger)
	nw := netwatch.New(config.NetwatchConfig{}, nil, b, logger)
	up := uploader.New(q, photos, rc, nw, p, machine, b, logger)
	t.Cleanup(up.Stop)

	control := api.NewControl(api.Deps{
		Profile:  "test",
		Queue:    q,
		Uploader: up,
		Remote:   rc,
		Net:      nw,
		Machine:  machine,
		Journal:  intsync.NewJournal(db),
		Clock:    clock,
		Logger:   logger,
	})

	srv, err := Listen(filepath.Join(tmpDir, "d.sock"), control, logger)
	if err != nil {
		t.Fatal(err)
	}
	go func() { _ = srv.Start() }()
	t.Cleanup(func() { srv.Stop(context.Background()) })

	c, err := ctl.New(filepath.Join(tmpDir, "d.sock"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })

	return &harness{client: c, endpoint: ep, blobs: mem, machine: machine}
}

func codeOf(err error) codes.Code {
	return grpcstatus.Code(err)
}

func TestDaemonCaptureCommitUpload(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	st, err := h.client.Status(ctx)
	if err != nil {
		t.Fatalf("Status error = %v", err)
	}
	if st["profile"] != "test" || st["status"] != string(status.Idle) || st["configured"] != true {
		t.Fatalf("status = %v", st)
	}

	files := [][]byte{
		testutil.JPEG(t, 120, 90, 1),
		testutil.JPEG(t, 120, 90, 2),
		testutil.JPEG(t, 120, 90, 3),
	}
	capRes, err := h.client.Capture(ctx, "sj", files)
	if err != nil {
		t.Fatalf("Capture error = %v", err)
	}
	if added := capRes["added"].([]any); len(added) != 3 {
		t.Fatalf("added = %d, want 3", len(added))
	}

	if _, err := h.client.Call(ctx, api.MethodSetDraft, map[string]any{"po": "251234", "pic": "dody"}); err != nil {
		t.Fatalf("SetDraft error = %v", err)
	}
	commit, err := h.client.Commit(ctx, false)
	if err != nil {
		t.Fatalf("Commit error = %v", err)
	}
	item := commit["item"].(map[string]any)
	if item["po"] != "203025001234" || item["pic"] != "DODY" || item["upload_id"] == "" {
		t.Fatalf("committed item = %v", item)
	}

	list, err := h.client.ListQueue(ctx)
	if err != nil {
		t.Fatalf("ListQueue error = %v", err)
	}
	if items := list["items"].([]any); len(items) != 1 {
		t.Fatalf("queue items = %d, want 1", len(items))
	}

	up, err := h.client.Upload(ctx)
	if err != nil {
		t.Fatalf("Upload error = %v", err)
	}
	if up["completed"] != true || up["replayed"] != float64(1) {
		t.Fatalf("upload = %v", up)
	}
	if got := <-h.endpoint.uploadIDs; got != item["upload_id"] {
		t.Fatalf("posted upload id %q, want %q", got, item["upload_id"])
	}
	if h.endpoint.saves.Load() != 1 {
		t.Fatalf("saves = %d, want 1", h.endpoint.saves.Load())
	}
	if h.blobs.Len() != 0 {
		t.Fatalf("blobs left = %d", h.blobs.Len())
	}

	st, err = h.client.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st["armed"] != true {
		t.Fatal("manual upload did not arm")
	}
	if stats := st["stats"].(map[string]any); stats["items"] != float64(0) {
		t.Fatalf("stats after upload = %v", stats)
	}
}

func TestDaemonErrorCodes(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tests := []struct {
		name   string
		method string
		req    map[string]any
		want   codes.Code
	}{
		{"commit without photos", api.MethodCommit, nil, codes.FailedPrecondition},
		{"upload empty queue", api.MethodUpload, nil, codes.FailedPrecondition},
		{"unknown mode", api.MethodSetMode, map[string]any{"mode": "XYZ"}, codes.InvalidArgument},
		{"unknown pic", api.MethodSetDraft, map[string]any{"pic": "nobody"}, codes.InvalidArgument},
		{"delete missing item", api.MethodDeleteItem, map[string]any{"index": 3}, codes.InvalidArgument},
		{"index required", api.MethodRemovePhoto, nil, codes.InvalidArgument},
		{"bad image", api.MethodCapture, map[string]any{"images": api.EncodeImages([][]byte{[]byte("nope")})}, codes.InvalidArgument},
		{"empty search", api.MethodSearch, map[string]any{"po": "--"}, codes.InvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.client.Call(ctx, tt.method, tt.req)
			if codeOf(err) != tt.want {
				t.Fatalf("code = %v (%v), want %v", codeOf(err), err, tt.want)
			}
		})
	}
}

func TestDaemonHistoryAndSearch(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hist, err := h.client.Call(ctx, api.MethodHistory, map[string]any{"limit": 10})
	if err != nil {
		t.Fatalf("History error = %v", err)
	}
	rows := hist["rows"].([]any)
	if len(rows) != 1 || rows[0].(map[string]any)["pic"] != "DODY" {
		t.Fatalf("rows = %v", rows)
	}

	res, err := h.client.Call(ctx, api.MethodSearch, map[string]any{"po": "25-1234"})
	if err != nil {
		t.Fatalf("Search error = %v", err)
	}
	if res["query"] != "203025001234" {
		t.Fatalf("query = %v, want normalized PO", res["query"])
	}
	if git := res["git"].([]any); len(git) != 1 {
		t.Fatalf("git = %v", git)
	}
}
