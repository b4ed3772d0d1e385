package uploader

// StartedEvent is the payload of bus.UploadStarted.
type StartedEvent struct {
	Reason  string
	Auto    bool
	Pending int
}

// ProgressEvent is published before each item is posted.
type ProgressEvent struct {
	Index    int
	Done     int
	Total    int
	UploadID string
}

// ItemEvent is the payload of bus.UploadItemOK.
type ItemEvent struct {
	Index    int
	UploadID string
	Already  bool
}

// FailedEvent is the payload of bus.UploadFailed.
type FailedEvent struct {
	Index    int
	UploadID string
	Err      string
	Auto     bool
}

// CompletedEvent is the payload of bus.UploadCompleted.
type CompletedEvent struct {
	Delivered int
	Replayed  int
}
