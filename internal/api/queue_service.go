package api

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/matheus3301/camlog/internal/ponum"
	"github.com/matheus3301/camlog/internal/queue"
)

// ListQueue returns every item, the draft and the counters.
func (c *Control) ListQueue(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	st := c.queue.State()
	items := make([]any, len(st.Items))
	for i, it := range st.Items {
		items[i] = itemView(i, it)
	}
	return reply(map[string]any{
		"items":  items,
		"draft":  draftView(st.Draft),
		"stats":  statsView(st.Stats()),
		"armed":  st.Armed,
		"locked": c.queue.Locked(),
	})
}

// EditItem rewrites the item at "index". Fields missing from the request
// keep their current value.
func (c *Control) EditItem(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	idx, err := getInt(req, "index")
	if err != nil {
		return nil, err
	}
	st := c.queue.State()
	if idx >= len(st.Items) {
		return nil, toStatus(queue.ErrIndex)
	}
	cur := st.Items[idx]

	e := queue.ItemEdit{Mode: cur.Mode, PO: cur.PO, GIT: cur.GIT, PIC: cur.PIC, Note: cur.Note}
	if s := optString(req, "mode"); s != nil {
		if e.Mode, err = ponum.ParseMode(*s); err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
	}
	if s := optString(req, "po"); s != nil {
		e.PO = *s
	}
	if s := optString(req, "git"); s != nil {
		e.GIT = *s
	}
	if s := optString(req, "pic"); s != nil {
		e.PIC = *s
	}
	if s := optString(req, "note"); s != nil {
		e.Note = *s
	}

	it, err := c.queue.EditItem(ctx, idx, e)
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(map[string]any{"item": itemView(idx, it)})
}

// DeleteItem removes the item at "index" and its photos.
func (c *Control) DeleteItem(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	idx, err := getInt(req, "index")
	if err != nil {
		return nil, err
	}
	it, err := c.queue.DeleteItem(ctx, idx)
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(map[string]any{"deleted": itemView(idx, it)})
}

// ResetAll empties the queue and the draft.
func (c *Control) ResetAll(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if err := c.queue.ResetAll(ctx); err != nil {
		return nil, toStatus(err)
	}
	return reply(map[string]any{"stats": statsView(c.queue.Stats())})
}

// Upload runs a manual upload cycle. The cycle is not tied to the caller:
// a client that disconnects does not abort an item mid-flight.
func (c *Control) Upload(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	res, err := c.up.Upload(context.WithoutCancel(ctx))
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(map[string]any{
		"delivered": res.Delivered,
		"replayed":  res.Replayed,
		"cleared":   res.Cleared,
		"completed": res.Completed,
	})
}

func itemView(index int, it queue.Item) map[string]any {
	kinds := make([]any, len(it.PhotoKinds))
	for i, k := range it.PhotoKinds {
		kinds[i] = string(k)
	}
	return map[string]any{
		"index":     index,
		"label":     it.Label(),
		"category":  it.Category,
		"po":        it.PO,
		"git":       it.GIT,
		"pic":       it.PIC,
		"note":      it.Note,
		"mode":      string(it.Mode.OrStd()),
		"photo_ids": anyStrings(it.PhotoIDs),
		"sizes":     anyInts(it.Sizes),
		"kinds":     kinds,
		"total_kb":  it.TotalKB,
		"status":    it.Status,
		"upload_id": it.UploadID,
		"uploaded":  it.Uploaded,
	}
}

func statsView(s queue.Stats) map[string]any {
	return map[string]any{
		"items":        s.Items,
		"pending":      s.Pending,
		"photos":       s.Photos,
		"total_kb":     s.TotalKB,
		"draft_photos": s.DraftPhotos,
	}
}
