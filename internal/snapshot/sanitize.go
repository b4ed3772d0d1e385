package snapshot

import (
	"time"

	"github.com/matheus3301/camlog/internal/ident"
	"github.com/matheus3301/camlog/internal/ponum"
	"github.com/matheus3301/camlog/internal/queue"
)

// Sanitize turns a decoded snapshot into queue state, backfilling defaults
// older clients did not write: category, mode, canonical PO, parallel
// size/kind arrays, status label and upload id.
func Sanitize(s Snapshot, now time.Time) queue.State {
	mode := s.Form.POMode
	if mode == "" {
		mode = s.CurrentPOMode
	}

	st := queue.State{
		Draft: queue.Draft{
			PO:              s.Form.PO,
			GIT:             s.Form.GIT,
			PIC:             s.Form.PIC,
			Note:            s.Form.Note,
			Mode:            mode.OrStd(),
			OptionalVisible: s.Form.OptionalVisible,
		},
		Armed: s.UploadArmed,
	}

	for _, p := range s.CapturedMeta {
		if p.Kind == "" {
			p.Kind = queue.KindMaterial
		}
		if p.SizeKB < 0 {
			p.SizeKB = 0
		}
		st.Draft.Photos = append(st.Draft.Photos, p)
	}

	for _, it := range s.POQueue {
		st.Items = append(st.Items, sanitizeItem(it, now))
	}
	return st
}

func sanitizeItem(it queue.Item, now time.Time) queue.Item {
	it.Category = queue.Category
	it.Mode = it.Mode.OrStd()
	it.PO = ponum.Normalize(it.Mode, it.PO, now)

	if it.PhotoIDs == nil {
		it.PhotoIDs = []string{}
	}
	if len(it.Sizes) != len(it.PhotoIDs) {
		it.Sizes = make([]int, len(it.PhotoIDs))
	}
	if len(it.PhotoKinds) != len(it.PhotoIDs) {
		it.PhotoKinds = make([]queue.Kind, len(it.PhotoIDs))
		for i := range it.PhotoKinds {
			it.PhotoKinds[i] = queue.KindMaterial
		}
	}
	if it.Status == "" {
		it.Status = queue.StatusPending
	}
	if it.UploadID == "" {
		first := ""
		if len(it.PhotoIDs) > 0 {
			first = it.PhotoIDs[0]
		}
		it.UploadID = ident.LegacyUploadID(it.Category, it.PO, it.TotalKB, first)
	}
	return it
}
