// Package queue holds the draft being composed and the list of committed
// records waiting for upload.
package queue

import (
	"fmt"
	"slices"
	"strings"

	"github.com/matheus3301/camlog/internal/ponum"
)

const (
	// Category is the only record category this client produces.
	Category = "MATERIAL"
	// MaxPhotos bounds the photos of one draft or item.
	MaxPhotos = 10
	// StatusPending is the display label of a freshly committed item.
	StatusPending = "Pending"
)

// Kind tags what a photo documents.
type Kind string

const (
	KindSJ       Kind = "SJ" // delivery note
	KindKoli     Kind = "KOLI"
	KindMaterial Kind = "MATERIAL"
)

var kinds = []Kind{KindSJ, KindKoli, KindMaterial}

// ParseKind returns the Kind named by s. The empty string is KindMaterial.
func ParseKind(s string) (Kind, error) {
	if s == "" {
		return KindMaterial, nil
	}
	for _, k := range kinds {
		if strings.EqualFold(string(k), s) {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown photo kind %q", s)
}

// Roster is the list of people a record can be assigned to.
var Roster = []string{
	"ANTONIUS.TK",
	"ARIF.ATMAJA",
	"BERNIKE.AS",
	"CAECILIA.MI",
	"DODY",
	"GILANG",
	"IMAN.WS",
	"JOANNA.NYDIA",
	"RATNA.AV",
	"RIMBA.G",
	"SANJUMA.T",
}

// CanonicalPIC returns the roster spelling of name. The empty string is
// accepted as "unassigned".
func CanonicalPIC(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", nil
	}
	for _, r := range Roster {
		if strings.EqualFold(r, name) {
			return r, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPIC, name)
}

// PhotoRef points at a payload in the Blob Store.
type PhotoRef struct {
	ID     string `json:"id"`
	SizeKB int    `json:"sizeKb"`
	Kind   Kind   `json:"jenis"`
}

// Draft is the record currently being composed.
type Draft struct {
	PO              string
	GIT             string
	PIC             string
	Note            string
	Mode            ponum.Mode
	OptionalVisible bool
	Photos          []PhotoRef
}

// PhotoIDs returns the ids of the draft photos in order.
func (d Draft) PhotoIDs() []string {
	ids := make([]string, len(d.Photos))
	for i, p := range d.Photos {
		ids[i] = p.ID
	}
	return ids
}

// Item is a committed record. The JSON names are the ones the remote
// endpoint and older snapshots use.
type Item struct {
	Category   string     `json:"kategori"`
	PO         string     `json:"no_po"`
	GIT        string     `json:"git_number"`
	PIC        string     `json:"pic_po"`
	Note       string     `json:"keterangan"`
	PhotoIDs   []string   `json:"image_ids"`
	Sizes      []int      `json:"sizes"`
	PhotoKinds []Kind     `json:"photo_types"`
	TotalKB    int        `json:"total_kb"`
	Mode       ponum.Mode `json:"po_mode"`
	Status     string     `json:"status_upload_ke_srm"`
	UploadID   string     `json:"upload_id"`
	Uploaded   bool       `json:"_uploaded"`
}

// Label is how an item is named in messages: its PO, or "PO" when empty.
func (it Item) Label() string {
	if it.PO == "" {
		return "PO"
	}
	return it.PO
}

func (it Item) clone() Item {
	it.PhotoIDs = slices.Clone(it.PhotoIDs)
	it.Sizes = slices.Clone(it.Sizes)
	it.PhotoKinds = slices.Clone(it.PhotoKinds)
	return it
}

// State is everything the snapshot persists.
type State struct {
	Draft Draft
	Items []Item
	Armed bool
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := State{Draft: s.Draft, Armed: s.Armed}
	out.Draft.Photos = slices.Clone(s.Draft.Photos)
	if s.Items != nil {
		out.Items = make([]Item, len(s.Items))
		for i, it := range s.Items {
			out.Items[i] = it.clone()
		}
	}
	return out
}

// Pending reports whether any item still waits for upload.
func (s State) Pending() bool {
	for _, it := range s.Items {
		if !it.Uploaded {
			return true
		}
	}
	return false
}

// QueuedPhotoIDs returns every photo id referenced by the items.
func (s State) QueuedPhotoIDs() []string {
	var ids []string
	for _, it := range s.Items {
		ids = append(ids, it.PhotoIDs...)
	}
	return ids
}

// Stats summarizes the queue.
type Stats struct {
	Items       int
	Pending     int
	Photos      int
	TotalKB     int
	DraftPhotos int
}

// Stats computes queue counters.
func (s State) Stats() Stats {
	st := Stats{Items: len(s.Items), DraftPhotos: len(s.Draft.Photos)}
	for _, it := range s.Items {
		if !it.Uploaded {
			st.Pending++
		}
		st.Photos += len(it.PhotoIDs)
		st.TotalKB += it.TotalKB
	}
	return st
}
