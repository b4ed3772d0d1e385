package api

import (
	"context"
	"math"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/matheus3301/camlog/internal/ponum"
	"github.com/matheus3301/camlog/internal/remote"
)

// History lists recent photo rows from the endpoint, at most "limit"
// (default and maximum 50).
func (c *Control) History(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	limit := remote.HistoryLimit
	if _, ok := field(req, "limit"); ok {
		n, err := getInt(req, "limit")
		if err != nil {
			return nil, err
		}
		if n > 0 {
			limit = min(n, remote.HistoryLimit)
		}
	}
	rows, err := c.remote.PendingPhotos(ctx, limit)
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(map[string]any{"rows": rowsView(rows)})
}

// Search looks up "po", normalized under the draft's current mode.
func (c *Control) Search(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	mode := c.queue.State().Draft.Mode
	q := ponum.Normalize(mode, getString(req, "po"), c.clock.Now())
	if q == "" {
		return nil, status.Error(codes.InvalidArgument, "po number is empty")
	}
	res, err := c.remote.SearchByPO(ctx, q)
	if err != nil {
		return nil, toStatus(err)
	}

	git := make([]any, len(res.Git))
	for i, g := range res.Git {
		mats := make([]any, len(g.Materials))
		for j, m := range g.Materials {
			qty := m.QtyConfirmed
			if math.IsNaN(qty) || math.IsInf(qty, 0) {
				qty = 0
			}
			mats[j] = map[string]any{"material": m.Material, "qty": qty, "unit": m.Unit}
		}
		git[i] = map[string]any{
			"po":            g.PONumber,
			"git":           g.GITNumber,
			"vendor":        g.VendorName,
			"timestamp":     g.Timestamp,
			"materials":     mats,
			"materials_err": g.MaterialsErr,
			"photo_ids":     anyStrings(g.PhotoIDs),
		}
	}
	return reply(map[string]any{
		"query":  res.Query,
		"git":    git,
		"photos": rowsView(res.Photos),
		"legacy": res.Legacy,
	})
}

func rowsView(rows []remote.PhotoRow) []any {
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = map[string]any{
			"id":       r.ID,
			"photo_id": r.PhotoID,
			"category": r.Category,
			"po":       r.PO,
			"git":      r.GIT,
			"pic":      r.PIC,
			"note":     r.Note,
			"time":     r.Time,
		}
	}
	return out
}
