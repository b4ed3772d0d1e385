package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/matheus3301/camlog/internal/config"
	"github.com/matheus3301/camlog/internal/ponum"
	"github.com/matheus3301/camlog/internal/queue"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(config.RemoteConfig{Endpoint: srv.URL + "/exec", APIKey: "secret", Timeout: 5 * time.Second}, nil)
}

func TestSaveRecordPostsForm(t *testing.T) {
	var got Record
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded;charset=UTF-8" {
			t.Errorf("content-type = %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		form, err := url.ParseQuery(string(body))
		if err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if form.Get("action") != ActionSave || form.Get("key") != "secret" {
			t.Errorf("action=%q key=%q", form.Get("action"), form.Get("key"))
		}
		if err := json.Unmarshal([]byte(form.Get("data")), &got); err != nil {
			t.Errorf("data is not a record: %v", err)
		}
		_, _ = io.WriteString(w, `{"ok":true,"status":"success"}`)
	})

	it := queue.Item{
		Category:   queue.Category,
		PO:         "203025001234",
		PIC:        "DODY",
		PhotoIDs:   []string{"PH_1"},
		Sizes:      []int{42},
		PhotoKinds: []queue.Kind{queue.KindSJ},
		TotalKB:    42,
		UploadID:   "UPL_1",
	}
	resp, err := c.SaveRecord(context.Background(), NewRecord(it, []string{"data:image/jpeg;base64,AA=="}))
	if err != nil {
		t.Fatalf("SaveRecord: %v", err)
	}
	if !resp.Delivered() {
		t.Fatal("not delivered")
	}
	if got.UploadID != "UPL_1" || got.Mode != ponum.Std || got.Status != queue.StatusPending {
		t.Fatalf("record = %+v", got)
	}
	if len(got.Images) != 1 || got.PhotoKinds[0] != queue.KindSJ {
		t.Fatalf("images=%v kinds=%v", got.Images, got.PhotoKinds)
	}
}

func TestSaveRecordOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr bool
		wantMsg string
	}{
		{"success", 200, `{"status":"success"}`, false, ""},
		{"already delivered", 200, `{"ok":true,"already":true}`, false, ""},
		{"rejected with message", 200, `{"status":"error","message":"PO missing"}`, true, "PO missing"},
		{"rejected without message", 200, `{"status":"error"}`, true, "Unknown error"},
		{"malformed", 200, `<html>`, true, ""},
		{"http error", 502, `bad gateway`, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			_, err := c.SaveRecord(context.Background(), Record{UploadID: "UPL_1"})
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			var rerr *ResponseError
			if tt.wantErr && !errors.As(err, &rerr) {
				t.Fatalf("err = %T, want *ResponseError", err)
			}
			if tt.wantMsg != "" && rerr.Message != tt.wantMsg {
				t.Fatalf("message = %q, want %q", rerr.Message, tt.wantMsg)
			}
		})
	}
}

func TestNotConfigured(t *testing.T) {
	c := New(config.RemoteConfig{Endpoint: "https://example.invalid"}, nil)
	if c.Configured() {
		t.Fatal("client without key reports configured")
	}
	if _, err := c.SaveRecord(context.Background(), Record{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
	if _, err := c.PendingPhotos(context.Background(), 0); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}

func TestGetAppendsToExistingQuery(t *testing.T) {
	var q url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q = r.URL.Query()
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	c := New(config.RemoteConfig{Endpoint: srv.URL + "/exec?deployment=7", APIKey: "k"}, nil)
	if _, err := c.PendingPhotos(context.Background(), 0); err != nil {
		t.Fatalf("PendingPhotos: %v", err)
	}
	if q.Get("deployment") != "7" || q.Get("action") != ActionPending || q.Get("key") != "k" {
		t.Fatalf("query = %v", q)
	}
}

func TestPendingPhotos(t *testing.T) {
	row := `["R1","PH_1","MATERIAL,MATERIAL","203025001234","G-1","DODY","ok","2025-06-01 10:00"]`
	tests := []struct {
		name  string
		body  string
		limit int
		want  int
	}{
		{"wrapped", `{"ok":true,"data":[` + row + `,` + row + `]}`, 0, 2},
		{"bare array", `[` + row + `]`, 0, 1},
		{"capped", `[` + row + `,` + row + `,` + row + `]`, 2, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, tt.body)
			})
			rows, err := c.PendingPhotos(context.Background(), tt.limit)
			if err != nil {
				t.Fatalf("PendingPhotos: %v", err)
			}
			if len(rows) != tt.want {
				t.Fatalf("rows = %d, want %d", len(rows), tt.want)
			}
			if rows[0].Category != "MATERIAL" || rows[0].PIC != "DODY" || rows[0].Time != "2025-06-01 10:00" {
				t.Fatalf("row = %+v", rows[0])
			}
		})
	}
}

func TestParsePhotoRowCategory(t *testing.T) {
	tests := []struct {
		cell any
		want string
	}{
		{"SJ|KOLI", "SJ"},
		{" ;MATERIAL", "MATERIAL"},
		{"", "FOTO"},
		{nil, "FOTO"},
	}
	for _, tt := range tests {
		row := parsePhotoRow([]any{"1", "PH", tt.cell})
		if row.Category != tt.want {
			t.Errorf("category(%v) = %q, want %q", tt.cell, row.Category, tt.want)
		}
	}
	row := parsePhotoRow([]any{float64(12), "PH", "SJ", float64(203025001234)})
	if row.ID != "12" || row.PO != "203025001234" {
		t.Fatalf("numeric cells = %+v", row)
	}
}

func TestSearchByPO(t *testing.T) {
	body := `{"ok":true,"data":{
		"git":[{"po_number":203025001234,"git_number":"G-7","vendor_name":"",
			"material_json":"[{\"material\":\"Cable\",\"qtyConfirmed\":3,\"unit\":\"M\"}]",
			"foto_material":"PH_aaaaaa, x ,PH_bbbbbb","foto_sjv":"PH_cccccc","timestamp":"2025-06-01"}],
		"photos":[["R1","PH_1","SJ","203025001234","","","",""]]}}`
	var gotQ string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQ = r.URL.Query().Get("q")
		_, _ = io.WriteString(w, body)
	})

	res, err := c.SearchByPO(context.Background(), "203025001234")
	if err != nil {
		t.Fatalf("SearchByPO: %v", err)
	}
	if gotQ != "203025001234" {
		t.Fatalf("q = %q", gotQ)
	}
	if res.Legacy || len(res.Git) != 1 || len(res.Photos) != 1 {
		t.Fatalf("result = %+v", res)
	}
	g := res.Git[0]
	if g.PONumber != "203025001234" || g.VendorName != "Vendor Unknown" {
		t.Fatalf("git = %+v", g)
	}
	if len(g.Materials) != 1 || g.Materials[0].Material != "Cable" || g.Materials[0].QtyConfirmed != 3 {
		t.Fatalf("materials = %+v", g.Materials)
	}
	want := []string{"PH_aaaaaa", "PH_bbbbbb", "PH_cccccc"}
	if len(g.PhotoIDs) != len(want) {
		t.Fatalf("photo ids = %v, want %v", g.PhotoIDs, want)
	}
	for i := range want {
		if g.PhotoIDs[i] != want[i] {
			t.Fatalf("photo ids = %v, want %v", g.PhotoIDs, want)
		}
	}
}

func TestSearchByPOLegacyShapes(t *testing.T) {
	row := `["R1","PH_1","SJ","203025001234","","","",""]`
	for name, body := range map[string]string{
		"bare array": `[` + row + `]`,
		"flat data":  `{"data":[` + row + `]}`,
	} {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, body)
			})
			res, err := c.SearchByPO(context.Background(), "x")
			if err != nil {
				t.Fatalf("SearchByPO: %v", err)
			}
			if !res.Legacy || len(res.Photos) != 1 || len(res.Git) != 0 {
				t.Fatalf("result = %+v", res)
			}
		})
	}
}

func TestSearchByPOBadMaterialJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":{"git":[{"material_json":"not json"}],"photos":[]}}`)
	})
	res, err := c.SearchByPO(context.Background(), "x")
	if err != nil {
		t.Fatalf("SearchByPO: %v", err)
	}
	if res.Git[0].MaterialsErr == "" || len(res.Git[0].Materials) != 0 {
		t.Fatalf("git = %+v", res.Git[0])
	}
	if res.Empty() {
		t.Fatal("a git record is not an empty result")
	}
}
