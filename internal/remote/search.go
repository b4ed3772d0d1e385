package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// PhotoRow is one row of the photo history sheet.
type PhotoRow struct {
	ID       string
	PhotoID  string
	Category string
	PO       string
	GIT      string
	PIC      string
	Note     string
	Time     string
}

var categorySep = regexp.MustCompile(`[,|;]+`)

// parsePhotoRow reads [ID, ID_FOTO, KATEGORI, PO, GIT, PIC, KET, TIME, ...].
// Some rows repeat the category ("MATERIAL,MATERIAL"); only the first
// non-empty part is kept.
func parsePhotoRow(cells []any) PhotoRow {
	cell := func(i int) string {
		if i >= len(cells) || cells[i] == nil {
			return ""
		}
		switch v := cells[i].(type) {
		case string:
			return v
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		default:
			return fmt.Sprint(v)
		}
	}
	row := PhotoRow{
		ID:       cell(0),
		PhotoID:  cell(1),
		PO:       cell(3),
		GIT:      cell(4),
		PIC:      cell(5),
		Note:     cell(6),
		Time:     cell(7),
		Category: "FOTO",
	}
	for _, part := range categorySep.Split(cell(2), -1) {
		if p := strings.TrimSpace(part); p != "" {
			row.Category = p
			break
		}
	}
	return row
}

func parsePhotoRows(raw []json.RawMessage) []PhotoRow {
	rows := make([]PhotoRow, 0, len(raw))
	for _, r := range raw {
		var cells []any
		if err := json.Unmarshal(r, &cells); err != nil {
			continue
		}
		rows = append(rows, parsePhotoRow(cells))
	}
	return rows
}

// PendingPhotos returns up to limit rows of the unfiltered photo history.
// A limit of zero or less means HistoryLimit.
func (c *Client) PendingPhotos(ctx context.Context, limit int) ([]PhotoRow, error) {
	if limit <= 0 {
		limit = HistoryLimit
	}
	var body json.RawMessage
	if err := c.get(ctx, ActionPending, nil, &body); err != nil {
		return nil, err
	}

	// Either {"ok":true,"data":[rows]} or a bare array of rows.
	var rows []json.RawMessage
	var wrapped struct {
		OK   bool              `json:"ok"`
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.OK {
		rows = wrapped.Data
	} else if err := json.Unmarshal(body, &rows); err != nil {
		return nil, &ResponseError{Action: ActionPending, Message: "unexpected response shape"}
	}

	out := parsePhotoRows(rows)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Material is one line of a GIT record.
type Material struct {
	Material     string  `json:"material"`
	QtyConfirmed float64 `json:"qtyConfirmed"`
	Unit         string  `json:"unit"`
}

// GitRecord is a goods-in-transit record matched by a search.
type GitRecord struct {
	PONumber   string
	GITNumber  string
	VendorName string
	Timestamp  string
	Materials  []Material
	// MaterialsErr is set when the embedded material list is not valid JSON.
	MaterialsErr string
	PhotoIDs     []string
}

type gitWire struct {
	MaterialJSON string `json:"material_json"`
	FotoMaterial string `json:"foto_material"`
	FotoSJV      string `json:"foto_sjv"`
	VendorName   string `json:"vendor_name"`
	PONumber     any    `json:"po_number"`
	GITNumber    any    `json:"git_number"`
	Timestamp    any    `json:"timestamp"`
}

func str(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func (g gitWire) record() GitRecord {
	rec := GitRecord{
		PONumber:   str(g.PONumber),
		GITNumber:  str(g.GITNumber),
		VendorName: g.VendorName,
		Timestamp:  str(g.Timestamp),
	}
	if rec.VendorName == "" {
		rec.VendorName = "Vendor Unknown"
	}

	mj := strings.TrimSpace(g.MaterialJSON)
	if mj == "" {
		mj = "[]"
	}
	if err := json.Unmarshal([]byte(mj), &rec.Materials); err != nil {
		rec.MaterialsErr = err.Error()
	}

	for _, list := range []string{g.FotoMaterial, g.FotoSJV} {
		for _, id := range strings.Split(list, ",") {
			if id = strings.TrimSpace(id); len(id) > 5 {
				rec.PhotoIDs = append(rec.PhotoIDs, id)
			}
		}
	}
	return rec
}

// SearchResult holds both result sets of a PO search.
type SearchResult struct {
	Query  string
	Git    []GitRecord
	Photos []PhotoRow
	// Legacy is set when the endpoint answered with a flat photo list.
	Legacy bool
}

// Empty reports whether nothing matched.
func (r SearchResult) Empty() bool {
	return len(r.Git) == 0 && len(r.Photos) == 0
}

// SearchByPO looks up a normalized PO number.
func (c *Client) SearchByPO(ctx context.Context, query string) (SearchResult, error) {
	res := SearchResult{Query: query}
	var body json.RawMessage
	if err := c.get(ctx, ActionSearch, url.Values{"q": {query}}, &body); err != nil {
		return res, err
	}

	// Flat legacy shapes: a bare array, or {"data": [...]}.
	var flat []json.RawMessage
	if err := json.Unmarshal(body, &flat); err == nil {
		res.Photos = parsePhotoRows(flat)
		res.Legacy = true
		return res, nil
	}
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return res, &ResponseError{Action: ActionSearch, Message: "unexpected response shape"}
	}
	if err := json.Unmarshal(env.Data, &flat); err == nil {
		res.Photos = parsePhotoRows(flat)
		res.Legacy = true
		return res, nil
	}

	var data struct {
		Git    []gitWire         `json:"git"`
		Photos []json.RawMessage `json:"photos"`
	}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return res, &ResponseError{Action: ActionSearch, Message: "unexpected data shape"}
		}
	}
	for _, g := range data.Git {
		res.Git = append(res.Git, g.record())
	}
	res.Photos = parsePhotoRows(data.Photos)
	return res, nil
}
