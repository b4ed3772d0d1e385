package api

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/matheus3301/camlog/internal/ponum"
	"github.com/matheus3301/camlog/internal/queue"
)

// Capture compresses and stores base64 "images" of the given "kind".
// Only the draft's free slots are filled; the rest are reported as skipped.
func (c *Control) Capture(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	kind, err := queue.ParseKind(getString(req, "kind"))
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	raws, err := getBytesList(req, "images")
	if err != nil {
		return nil, err
	}
	if len(raws) == 0 {
		return nil, status.Error(codes.InvalidArgument, "images is empty")
	}

	res, err := c.queue.CaptureMany(ctx, raws, kind)
	if err != nil {
		return nil, toStatus(err)
	}
	added := make([]any, len(res.Added))
	for i, p := range res.Added {
		added[i] = photoView(p)
	}
	return reply(map[string]any{
		"added":   added,
		"skipped": res.Skipped,
		"draft":   draftView(c.queue.State().Draft),
	})
}

// RemovePhoto deletes the draft photo at "index".
func (c *Control) RemovePhoto(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	idx, err := getInt(req, "index")
	if err != nil {
		return nil, err
	}
	if err := c.queue.RemovePhoto(ctx, idx); err != nil {
		return nil, toStatus(err)
	}
	return reply(map[string]any{"draft": draftView(c.queue.State().Draft)})
}

// SetDraft updates the draft fields present in the request: po, git, pic,
// note and optional_visible.
func (c *Control) SetDraft(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	u := queue.DraftUpdate{
		PO:              optString(req, "po"),
		GIT:             optString(req, "git"),
		PIC:             optString(req, "pic"),
		Note:            optString(req, "note"),
		OptionalVisible: optBool(req, "optional_visible"),
	}
	if err := c.queue.SetDraftFields(u); err != nil {
		return nil, toStatus(err)
	}
	return reply(map[string]any{"draft": draftView(c.queue.State().Draft)})
}

// SetMode switches the draft's PO mode. With "normalize" the current PO is
// re-normalized under the new mode right away.
func (c *Control) SetMode(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	mode, err := ponum.ParseMode(getString(req, "mode"))
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := c.queue.SetMode(mode, getBool(req, "normalize")); err != nil {
		return nil, toStatus(err)
	}
	return reply(map[string]any{"draft": draftView(c.queue.State().Draft)})
}

// AbandonDraft discards the draft and its photos.
func (c *Control) AbandonDraft(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if err := c.queue.AbandonDraft(ctx); err != nil {
		return nil, toStatus(err)
	}
	return reply(map[string]any{"draft": draftView(c.queue.State().Draft)})
}

// Commit turns the draft into a queue item. "allow_empty_po" confirms
// saving without a PO number.
func (c *Control) Commit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	it, err := c.queue.Commit(ctx, getBool(req, "allow_empty_po"))
	if err != nil {
		return nil, toStatus(err)
	}
	st := c.queue.State()
	return reply(map[string]any{
		"item":  itemView(len(st.Items)-1, it),
		"armed": st.Armed,
	})
}

func photoView(p queue.PhotoRef) map[string]any {
	return map[string]any{"id": p.ID, "size_kb": p.SizeKB, "kind": string(p.Kind)}
}

func draftView(d queue.Draft) map[string]any {
	photos := make([]any, len(d.Photos))
	total := 0
	for i, p := range d.Photos {
		photos[i] = photoView(p)
		total += p.SizeKB
	}
	mode := d.Mode.OrStd()
	return map[string]any{
		"po":               d.PO,
		"git":              d.GIT,
		"pic":              d.PIC,
		"note":             d.Note,
		"mode":             string(mode),
		"mode_label":       mode.Label(),
		"optional_visible": d.OptionalVisible,
		"photos":           photos,
		"total_kb":         total,
		"free_slots":       queue.MaxPhotos - len(d.Photos),
	}
}
