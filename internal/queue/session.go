package queue

import (
	"github.com/matheus3301/camlog/internal/bus"
	"github.com/matheus3301/camlog/internal/ident"
)

// Session is an upload cycle's ownership of the queue. While a session is
// open every user mutation fails with ErrLocked.
type Session struct {
	q        *Queue
	released bool
}

// BeginSync locks the queue for an upload cycle. It fails with ErrLocked
// when another cycle already holds it and with ErrMutating while a capture
// or a delete is still writing blobs.
func (q *Queue) BeginSync() (*Session, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.locked {
		return nil, ErrLocked
	}
	if q.reserved+q.pending > 0 {
		return nil, ErrMutating
	}
	q.locked = true
	return &Session{q: q}, nil
}

// State returns a copy of the queue state.
func (s *Session) State() State {
	return s.q.State()
}

// EnsureUploadIDs backfills the legacy upload id of items that lack one.
// It reports whether any item changed.
func (s *Session) EnsureUploadIDs() bool {
	s.q.mu.Lock()
	defer s.q.mu.Unlock()
	changed := false
	for i := range s.q.st.Items {
		it := &s.q.st.Items[i]
		if it.UploadID != "" {
			continue
		}
		first := ""
		if len(it.PhotoIDs) > 0 {
			first = it.PhotoIDs[0]
		}
		it.UploadID = ident.LegacyUploadID(it.Category, it.PO, it.TotalKB, first)
		changed = true
	}
	return changed
}

// MarkUploaded flags the item carrying uploadID as delivered.
func (s *Session) MarkUploaded(uploadID string) bool {
	s.q.mu.Lock()
	defer s.q.mu.Unlock()
	for i := range s.q.st.Items {
		if s.q.st.Items[i].UploadID == uploadID {
			s.q.st.Items[i].Uploaded = true
			return true
		}
	}
	return false
}

// SetArmed changes the armed flag without scheduling a save; the cycle
// persists explicitly.
func (s *Session) SetArmed(armed bool) {
	s.q.mu.Lock()
	s.q.st.Armed = armed
	s.q.mu.Unlock()
}

// Reset empties the queue and the draft fields and returns the photo ids
// the queue referenced. Draft photos are untouched; a cycle only starts
// with an empty draft.
func (s *Session) Reset() []string {
	s.q.mu.Lock()
	ids := s.q.st.QueuedPhotoIDs()
	s.q.st.Items = nil
	s.q.st.Draft = Draft{Mode: s.q.st.Draft.Mode, Photos: s.q.st.Draft.Photos}
	s.q.mu.Unlock()
	s.q.bus.Emit(bus.QueueChanged, "cleared")
	return ids
}

// Release ends the session. Calling it more than once is harmless.
func (s *Session) Release() {
	if s == nil || s.released {
		return
	}
	s.released = true
	s.q.mu.Lock()
	s.q.locked = false
	s.q.mu.Unlock()
	s.q.bus.Emit(bus.QueueChanged, "unlocked")
}
