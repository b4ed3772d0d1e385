package testutil

import (
	"fmt"
	"sync"
	"time"
)

// StubClock returns a fixed time. Safe for concurrent use.
type StubClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewStubClock creates a StubClock set to the given time.
func NewStubClock(t time.Time) *StubClock {
	return &StubClock{now: t}
}

// FixedClock returns a StubClock set to 2025-06-15 10:30:00 UTC.
func FixedClock() *StubClock {
	return NewStubClock(time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC))
}

func (c *StubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *StubClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// StubIDs returns sequential ids: "UPL_1", "PH_1", "PH_2", etc.
// Upload and photo ids are counted separately.
type StubIDs struct {
	mu      sync.Mutex
	uploads int
	photos  int
}

func NewStubIDs() *StubIDs {
	return &StubIDs{}
}

func (g *StubIDs) UploadID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.uploads++
	return fmt.Sprintf("UPL_%d", g.uploads)
}

func (g *StubIDs) PhotoID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.photos++
	return fmt.Sprintf("PH_%d", g.photos)
}
