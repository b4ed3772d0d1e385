package status

import (
	"fmt"
	"slices"
	"sync"

	"github.com/matheus3301/camlog/internal/bus"
)

// State is the synchronizer's position in an upload cycle.
type State string

const (
	Idle      State = "IDLE"
	Uploading State = "UPLOADING"
	Succeeded State = "SUCCEEDED"
	Failed    State = "FAILED"
)

// validTransitions defines allowed state transitions. A cycle always ends
// back in Idle so the queue is released to the user.
var validTransitions = map[State][]State{
	Idle:      {Uploading},
	Uploading: {Succeeded, Failed},
	Succeeded: {Idle},
	Failed:    {Idle},
}

// Machine tracks and enforces synchronizer state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	lastErr string
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Idle.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Idle,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// LastError returns the message recorded by the most recent Fail.
func (m *Machine) LastError() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transitionLocked(to)
}

// Fail moves Uploading to Failed and remembers why.
func (m *Machine) Fail(cause error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.transitionLocked(Failed); err != nil {
		return err
	}
	if cause != nil {
		m.lastErr = cause.Error()
	}
	return nil
}

func (m *Machine) transitionLocked(to State) error {
	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	if to == Uploading {
		m.lastErr = ""
	}
	m.bus.Emit(bus.StatusChanged, StatusChange{From: from, To: to})
	return nil
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From State
	To   State
}
