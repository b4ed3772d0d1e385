package remote

import (
	"context"

	"github.com/matheus3301/camlog/internal/ponum"
	"github.com/matheus3301/camlog/internal/queue"
)

// Record is the simpanData payload. Images are JPEG data URLs in photo
// order; Sizes and PhotoKinds stay parallel to the ids the item holds.
type Record struct {
	Category   string       `json:"kategori"`
	PO         string       `json:"no_po"`
	GIT        string       `json:"git_number"`
	PIC        string       `json:"pic_po"`
	Note       string       `json:"keterangan"`
	Images     []string     `json:"images"`
	Sizes      []int        `json:"sizes"`
	PhotoKinds []queue.Kind `json:"photo_types"`
	TotalKB    int          `json:"total_kb"`
	Mode       ponum.Mode   `json:"po_mode"`
	Status     string       `json:"status_upload_ke_srm"`
	UploadID   string       `json:"upload_id"`
	Uploaded   bool         `json:"_uploaded"`
}

// NewRecord builds the wire payload of it with the given images.
func NewRecord(it queue.Item, images []string) Record {
	r := Record{
		Category:   it.Category,
		PO:         it.PO,
		GIT:        it.GIT,
		PIC:        it.PIC,
		Note:       it.Note,
		Images:     images,
		Sizes:      it.Sizes,
		PhotoKinds: it.PhotoKinds,
		TotalKB:    it.TotalKB,
		Mode:       it.Mode.OrStd(),
		Status:     it.Status,
		UploadID:   it.UploadID,
		Uploaded:   it.Uploaded,
	}
	if r.Images == nil {
		r.Images = []string{}
	}
	if r.Sizes == nil {
		r.Sizes = []int{}
	}
	if r.PhotoKinds == nil {
		r.PhotoKinds = []queue.Kind{}
	}
	if r.Status == "" {
		r.Status = queue.StatusPending
	}
	return r
}

// SaveResponse is the simpanData reply.
type SaveResponse struct {
	OK      bool   `json:"ok"`
	Status  string `json:"status"`
	Already bool   `json:"already"`
	Message string `json:"message"`
}

// Delivered reports whether the endpoint holds the record: it accepted it
// now, or it already had a record with the same upload id.
func (r SaveResponse) Delivered() bool {
	return r.Status == "success" || r.Already
}

// SaveRecord posts one record. A reply that does not confirm delivery is
// returned together with a *ResponseError.
func (c *Client) SaveRecord(ctx context.Context, rec Record) (SaveResponse, error) {
	var resp SaveResponse
	if err := c.post(ctx, ActionSave, rec, &resp); err != nil {
		return SaveResponse{}, err
	}
	if !resp.Delivered() {
		msg := resp.Message
		if msg == "" {
			msg = "Unknown error"
		}
		return resp, &ResponseError{Action: ActionSave, Message: msg}
	}
	return resp, nil
}
