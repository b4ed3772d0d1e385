package model

import (
	"context"
	"sync"
	"time"

	"github.com/matheus3301/camlog/internal/api"
)

// Caller is the daemon control surface the TUI drives.
type Caller interface {
	Call(ctx context.Context, method string, req map[string]any) (map[string]any, error)
}

// Status is the daemon summary shown in the status bar.
type Status struct {
	Profile      string
	State        string
	LastError    string
	Online       bool
	Configured   bool
	Endpoint     string
	Armed        bool
	Locked       bool
	RetryPending bool
	Items        int
	Pending      int
	Photos       int
	TotalKB      int
	DraftPhotos  int
	LastSuccess  time.Time
}

// Draft mirrors the in-progress capture.
type Draft struct {
	Mode      string
	ModeLabel string
	PO        string
	GIT       string
	PIC       string
	Note      string
	Photos    int
	TotalKB   int
	FreeSlots int
}

// Item is one committed queue entry.
type Item struct {
	Index    int
	Label    string
	Category string
	PO       string
	PIC      string
	Photos   int
	TotalKB  int
	UploadID string
	Uploaded bool
}

// Row is one history or search photo row.
type Row struct {
	Time     string
	Category string
	PO       string
	GIT      string
	PIC      string
	PhotoID  string
}

// GitRecord is a goods-in-transit record returned by a search.
type GitRecord struct {
	PO        string
	GIT       string
	Vendor    string
	Timestamp string
	Materials []string
	PhotoIDs  []string
}

// SearchResult is the decoded reply of a PO search.
type SearchResult struct {
	Query  string
	Git    []GitRecord
	Photos []Row
}

// ViewModel caches daemon state between refreshes.
type ViewModel struct {
	mu sync.RWMutex

	client Caller
	status *Status
	draft  Draft
	items  []Item
	Flash  Flash
}

// NewViewModel creates a view model backed by the daemon client.
func NewViewModel(c Caller) *ViewModel {
	return &ViewModel{client: c}
}

// Refresh reloads status and the queue.
func (vm *ViewModel) Refresh(ctx context.Context) error {
	st, err := vm.client.Call(ctx, api.MethodStatus, nil)
	if err != nil {
		return err
	}
	q, err := vm.client.Call(ctx, api.MethodListQueue, nil)
	if err != nil {
		return err
	}

	status := decodeStatus(st)
	items := decodeItems(list(q["items"]))
	draft := decodeDraft(obj(q["draft"]))

	vm.mu.Lock()
	vm.status = &status
	vm.items = items
	vm.draft = draft
	vm.mu.Unlock()
	return nil
}

// Upload runs a manual upload cycle and reports how many items went out.
func (vm *ViewModel) Upload(ctx context.Context) (delivered int, cleared bool, err error) {
	r, err := vm.client.Call(ctx, api.MethodUpload, nil)
	if err != nil {
		return 0, false, err
	}
	return num(r["delivered"]), r["cleared"] == true, nil
}

// Delete removes the queue item at index.
func (vm *ViewModel) Delete(ctx context.Context, index int) (Item, error) {
	r, err := vm.client.Call(ctx, api.MethodDeleteItem, map[string]any{"index": index})
	if err != nil {
		return Item{}, err
	}
	return decodeItem(obj(r["deleted"])), nil
}

// History fetches the most recent uploaded photo rows.
func (vm *ViewModel) History(ctx context.Context) ([]Row, error) {
	r, err := vm.client.Call(ctx, api.MethodHistory, nil)
	if err != nil {
		return nil, err
	}
	return decodeRows(list(r["rows"])), nil
}

// Search looks up a PO number on the endpoint.
func (vm *ViewModel) Search(ctx context.Context, po string) (SearchResult, error) {
	r, err := vm.client.Call(ctx, api.MethodSearch, map[string]any{"po": po})
	if err != nil {
		return SearchResult{}, err
	}
	res := SearchResult{Query: str(r["query"]), Photos: decodeRows(list(r["photos"]))}
	for _, g := range list(r["git"]) {
		rec := obj(g)
		gr := GitRecord{
			PO:        str(rec["po"]),
			GIT:       str(rec["git"]),
			Vendor:    str(rec["vendor"]),
			Timestamp: str(rec["timestamp"]),
			PhotoIDs:  strs(list(rec["photo_ids"])),
		}
		for _, m := range list(rec["materials"]) {
			mat := obj(m)
			gr.Materials = append(gr.Materials, str(mat["material"]))
		}
		res.Git = append(res.Git, gr)
	}
	return res, nil
}

// Status returns the last loaded status, nil before the first refresh.
func (vm *ViewModel) Status() *Status {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.status
}

// Items returns the last loaded queue.
func (vm *ViewModel) Items() []Item {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.items
}

// Draft returns the last loaded draft.
func (vm *ViewModel) Draft() Draft {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.draft
}

func decodeStatus(r map[string]any) Status {
	st := obj(r["stats"])
	s := Status{
		Profile:      str(r["profile"]),
		State:        str(r["status"]),
		LastError:    str(r["last_error"]),
		Online:       r["online"] == true,
		Configured:   r["configured"] == true,
		Endpoint:     str(r["endpoint"]),
		Armed:        r["armed"] == true,
		Locked:       r["locked"] == true,
		RetryPending: r["retry_pending"] == true,
		Items:        num(st["items"]),
		Pending:      num(st["pending"]),
		Photos:       num(st["photos"]),
		TotalKB:      num(st["total_kb"]),
		DraftPhotos:  num(st["draft_photos"]),
	}
	if ms, ok := r["last_success_ms"].(float64); ok {
		s.LastSuccess = time.UnixMilli(int64(ms))
	}
	return s
}

func decodeDraft(d map[string]any) Draft {
	return Draft{
		Mode:      str(d["mode"]),
		ModeLabel: str(d["mode_label"]),
		PO:        str(d["po"]),
		GIT:       str(d["git"]),
		PIC:       str(d["pic"]),
		Note:      str(d["note"]),
		Photos:    len(list(d["photos"])),
		TotalKB:   num(d["total_kb"]),
		FreeSlots: num(d["free_slots"]),
	}
}

func decodeItems(l []any) []Item {
	items := make([]Item, 0, len(l))
	for _, v := range l {
		items = append(items, decodeItem(obj(v)))
	}
	return items
}

func decodeItem(it map[string]any) Item {
	return Item{
		Index:    num(it["index"]),
		Label:    str(it["label"]),
		Category: str(it["category"]),
		PO:       str(it["po"]),
		PIC:      str(it["pic"]),
		Photos:   len(list(it["photo_ids"])),
		TotalKB:  num(it["total_kb"]),
		UploadID: str(it["upload_id"]),
		Uploaded: it["uploaded"] == true,
	}
}

func decodeRows(l []any) []Row {
	rows := make([]Row, 0, len(l))
	for _, v := range l {
		r := obj(v)
		rows = append(rows, Row{
			Time:     str(r["time"]),
			Category: str(r["category"]),
			PO:       str(r["po"]),
			GIT:      str(r["git"]),
			PIC:      str(r["pic"]),
			PhotoID:  str(r["photo_id"]),
		})
	}
	return rows
}

func obj(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func list(v any) []any {
	l, _ := v.([]any)
	return l
}

func num(v any) int {
	f, _ := v.(float64)
	return int(f)
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func strs(l []any) []string {
	out := make([]string, 0, len(l))
	for _, v := range l {
		out = append(out, str(v))
	}
	return out
}
