package model

import (
	"sync"
	"time"
)

// Level grades a flash message.
type Level int

const (
	Info Level = iota
	Warn
	Err
)

// Flash holds the transient notification shown in the status bar.
type Flash struct {
	mu      sync.RWMutex
	now     func() time.Time
	message string
	level   Level
	expires time.Time
}

// Set stores a flash message that expires after the given duration.
func (f *Flash) Set(level Level, msg string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.message = msg
	f.level = level
	f.expires = f.clock().Add(d)
}

// Get returns the current message and its level, or "" once expired.
func (f *Flash) Get() (string, Level) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.message == "" || f.clock().After(f.expires) {
		return "", Info
	}
	return f.message, f.level
}

func (f *Flash) clock() time.Time {
	if f.now != nil {
		return f.now()
	}
	return time.Now()
}
