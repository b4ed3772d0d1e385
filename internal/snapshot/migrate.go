package snapshot

import (
	"context"

	"go.uber.org/zap"

	"github.com/matheus3301/camlog/internal/compress"
	"github.com/matheus3301/camlog/internal/ident"
	"github.com/matheus3301/camlog/internal/queue"
)

// Putter is the part of the Blob Store migration writes to.
type Putter interface {
	Put(ctx context.Context, id string, data []byte) error
}

// MigrateStats counts what a migration extracted.
type MigrateStats struct {
	Extracted int
	Failed    int
}

// Migrate moves every inline payload of l into the Blob Store under a fresh
// photo id and returns the equivalent current snapshot. Items that already
// reference photo ids are left untouched, so migrating migrated data is a
// no-op. Payloads that cannot be decoded or stored are dropped and counted
// in Failed.
func Migrate(ctx context.Context, l Legacy, blobs Putter, ids ident.Generator, logger *zap.Logger) (Snapshot, MigrateStats) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var stats MigrateStats

	put := func(dataURL string) (string, bool) {
		data, err := compress.ParseDataURL(dataURL)
		if err != nil {
			logger.Warn("skip undecodable inline photo", zap.Error(err))
			stats.Failed++
			return "", false
		}
		id := ids.PhotoID()
		if err := blobs.Put(ctx, id, data); err != nil {
			logger.Warn("store inline photo", zap.String("photo_id", id), zap.Error(err))
			stats.Failed++
			return "", false
		}
		stats.Extracted++
		return id, true
	}

	s := Snapshot{
		V:               Version,
		TS:              l.TS,
		CurrentCategory: queue.Category,
		CurrentPOMode:   l.CurrentPOMode,
		CapturedMeta:    append([]queue.PhotoRef{}, l.CapturedMeta...),
		Form:            l.Form,
		UploadArmed:     l.UploadArmed,
	}

	for _, f := range l.CapturedFiles {
		if f.DataURL == "" {
			continue
		}
		id, ok := put(f.DataURL)
		if !ok {
			continue
		}
		kind := f.Kind
		if kind == "" {
			kind = queue.KindMaterial
		}
		s.CapturedMeta = append(s.CapturedMeta, queue.PhotoRef{ID: id, SizeKB: f.SizeKB, Kind: kind})
	}

	s.POQueue = make([]queue.Item, 0, len(l.POQueue))
	for _, li := range l.POQueue {
		it := li.Item
		if len(it.PhotoIDs) > 0 || len(li.Images) == 0 {
			s.POQueue = append(s.POQueue, it)
			continue
		}

		parallel := len(it.Sizes) == len(li.Images) && len(it.PhotoKinds) == len(li.Images)
		var (
			newIDs   []string
			newSizes []int
			newKinds []queue.Kind
		)
		for i, img := range li.Images {
			id, ok := put(img)
			if !ok {
				continue
			}
			newIDs = append(newIDs, id)
			if parallel {
				newSizes = append(newSizes, it.Sizes[i])
				newKinds = append(newKinds, it.PhotoKinds[i])
			} else {
				newSizes = append(newSizes, 0)
				newKinds = append(newKinds, queue.KindMaterial)
			}
		}
		it.PhotoIDs = newIDs
		it.Sizes = newSizes
		it.PhotoKinds = newKinds
		s.POQueue = append(s.POQueue, it)
	}
	return s, stats
}
