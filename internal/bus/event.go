package bus

import "time"

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Event kinds published by the core. Subscribers filter by prefix
// ("upload.", "net.", ...).
const (
	SnapshotSaved = "snapshot.saved"

	DraftChanged  = "draft.changed"
	QueueChanged  = "queue.changed"
	ItemCommitted = "queue.committed"

	UploadStarted   = "upload.started"
	UploadProgress  = "upload.progress"
	UploadItemOK    = "upload.item_ok"
	UploadFailed    = "upload.failed"
	UploadCompleted = "upload.completed"

	NetOnline  = "net.online"
	NetOffline = "net.offline"

	StatusChanged = "sync.status_changed"
)

// NewEvent stamps an event with the current time.
func NewEvent(kind string, payload any) Event {
	return Event{Kind: kind, Timestamp: time.Now(), Payload: payload}
}
