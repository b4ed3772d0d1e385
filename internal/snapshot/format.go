// Package snapshot persists the queue state as one versioned JSON value and
// upgrades older shapes that embedded photo payloads inline.
package snapshot

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/matheus3301/camlog/internal/ponum"
	"github.com/matheus3301/camlog/internal/queue"
)

// Key is the metadata store key holding the snapshot.
const Key = "snapshot"

// Version is the current snapshot format.
const Version = 3

// Form mirrors the draft text fields.
type Form struct {
	PO              string     `json:"po"`
	GIT             string     `json:"git"`
	PIC             string     `json:"pic"`
	Note            string     `json:"ket"`
	OptionalVisible bool       `json:"optionalVisible"`
	POMode          ponum.Mode `json:"poMode"`
}

// Snapshot is the current (v3) format. Draft photos are stored as metadata
// only; their bytes live in the Blob Store.
type Snapshot struct {
	V               int              `json:"v"`
	TS              int64            `json:"ts"`
	CurrentCategory string           `json:"currentCategory"`
	CurrentPOMode   ponum.Mode       `json:"currentPOMode"`
	CapturedMeta    []queue.PhotoRef `json:"capturedMeta"`
	POQueue         []queue.Item     `json:"poQueue"`
	Form            Form             `json:"form"`
	UploadArmed     bool             `json:"uploadArmed"`
}

// LegacyFile is a draft photo stored inline as a data URL.
type LegacyFile struct {
	ID      string     `json:"id,omitempty"`
	DataURL string     `json:"dataUrl"`
	SizeKB  int        `json:"sizeKb"`
	Kind    queue.Kind `json:"jenis"`
}

// LegacyItem is a queue item that may carry inline data URLs in Images.
type LegacyItem struct {
	queue.Item
	Images []string `json:"images,omitempty"`
}

// Legacy is any snapshot written before version 3 or still holding inline
// payloads.
type Legacy struct {
	V             int              `json:"v"`
	TS            int64            `json:"ts"`
	CurrentPOMode ponum.Mode       `json:"currentPOMode"`
	CapturedFiles []LegacyFile     `json:"capturedFiles"`
	CapturedMeta  []queue.PhotoRef `json:"capturedMeta"`
	POQueue       []LegacyItem     `json:"poQueue"`
	Form          Form             `json:"form"`
	UploadArmed   bool             `json:"uploadArmed"`
}

// Decoded is the result of Decode: exactly one of Current or Legacy is set.
type Decoded struct {
	Current *Snapshot
	Legacy  *Legacy
}

// header reads only what decides the decoder.
type header struct {
	V             int               `json:"v"`
	CapturedFiles []json.RawMessage `json:"capturedFiles"`
	POQueue       []struct {
		Images []json.RawMessage `json:"images"`
	} `json:"poQueue"`
}

func (p header) inline() bool {
	if len(p.CapturedFiles) > 0 {
		return true
	}
	for _, it := range p.POQueue {
		if len(it.Images) > 0 {
			return true
		}
	}
	return false
}

// Decode reads the version tag first and dispatches to the matching
// decoder. Data at the current version without inline payloads decodes as
// Snapshot; anything else decodes as Legacy.
func Decode(data []byte) (Decoded, error) {
	var p header
	if err := json.Unmarshal(data, &p); err != nil {
		return Decoded{}, fmt.Errorf("decode snapshot header: %w", err)
	}

	if p.V >= Version && !p.inline() {
		var s Snapshot
		if err := json.Unmarshal(data, &s); err != nil {
			return Decoded{}, fmt.Errorf("decode snapshot v%d: %w", p.V, err)
		}
		return Decoded{Current: &s}, nil
	}

	var l Legacy
	if err := json.Unmarshal(data, &l); err != nil {
		return Decoded{}, fmt.Errorf("decode legacy snapshot: %w", err)
	}
	return Decoded{Legacy: &l}, nil
}

// Encode projects st into the current format.
func Encode(st queue.State, now time.Time) Snapshot {
	mode := st.Draft.Mode.OrStd()
	meta := make([]queue.PhotoRef, len(st.Draft.Photos))
	copy(meta, st.Draft.Photos)
	items := make([]queue.Item, len(st.Items))
	copy(items, st.Items)

	return Snapshot{
		V:               Version,
		TS:              now.UnixMilli(),
		CurrentCategory: queue.Category,
		CurrentPOMode:   mode,
		CapturedMeta:    meta,
		POQueue:         items,
		Form: Form{
			PO:              st.Draft.PO,
			GIT:             st.Draft.GIT,
			PIC:             st.Draft.PIC,
			Note:            st.Draft.Note,
			OptionalVisible: st.Draft.OptionalVisible,
			POMode:          mode,
		},
		UploadArmed: st.Armed,
	}
}
