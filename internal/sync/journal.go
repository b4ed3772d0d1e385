package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/matheus3301/camlog/internal/store"
)

const (
	keyLastSuccess = "sync.last_success"
	keyLastFailure = "sync.last_failure"
)

// Outcome is one journal entry.
type Outcome struct {
	At        int64  `json:"at"` // unix ms
	Delivered int    `json:"delivered,omitempty"`
	UploadID  string `json:"upload_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Time returns At as a time.Time.
func (o Outcome) Time() time.Time { return time.UnixMilli(o.At) }

// Journal keeps the last successful and last failed cycle in the kv table.
type Journal struct {
	db *store.DB
}

// NewJournal creates a journal over db.
func NewJournal(db *store.DB) *Journal {
	return &Journal{db: db}
}

// RecordSuccess stores a completed cycle.
func (j *Journal) RecordSuccess(ctx context.Context, at time.Time, delivered int) error {
	return j.put(ctx, keyLastSuccess, Outcome{At: at.UnixMilli(), Delivered: delivered})
}

// RecordFailure stores the item that stopped a cycle.
func (j *Journal) RecordFailure(ctx context.Context, at time.Time, uploadID, msg string) error {
	return j.put(ctx, keyLastFailure, Outcome{At: at.UnixMilli(), UploadID: uploadID, Error: msg})
}

// LastSuccess returns the last completed cycle, or nil.
func (j *Journal) LastSuccess(ctx context.Context) (*Outcome, error) {
	return j.get(ctx, keyLastSuccess)
}

// LastFailure returns the last failed cycle, or nil.
func (j *Journal) LastFailure(ctx context.Context) (*Outcome, error) {
	return j.get(ctx, keyLastFailure)
}

func (j *Journal) put(ctx context.Context, key string, o Outcome) error {
	data, err := json.Marshal(o)
	if err != nil {
		return err
	}
	return j.db.PutKV(ctx, key, data)
}

func (j *Journal) get(ctx context.Context, key string) (*Outcome, error) {
	data, ok, err := j.db.GetKV(ctx, key)
	if err != nil || !ok {
		return nil, err
	}
	var o Outcome
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return &o, nil
}
