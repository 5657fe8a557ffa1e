package hotkey

import (
	"fmt"
	"sync"
	"time"
)

type EventType int

const (
	Down EventType = iota + 1
	Up
)

func (t EventType) String() string {
	switch t {
	case Down:
		return "down"
	case Up:
		return "up"
	}
	return "unknown"
}

type Event struct {
	Type EventType
	At   time.Time
}

// Factory builds an unregistered Hotkey for a binding.
type Factory func(Binding) Hotkey

// Manager owns the single active registration and merges its key events
// into one ordered stream that survives rebinding.
type Manager struct {
	factory Factory
	events  chan Event

	mu      sync.Mutex
	current Hotkey
	binding Binding
	stop    chan struct{}
	done    chan struct{}
}

func NewManager(factory Factory) *Manager {
	return &Manager{
		factory: factory,
		events:  make(chan Event, 16),
	}
}

// Events delivers presses and releases strictly alternating, starting
// with Down, even when both arrive before the reader catches up.
func (m *Manager) Events() <-chan Event {
	return m.events
}

func (m *Manager) Binding() Binding {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.binding
}

// Bind makes b the active hotkey. Any previous binding is unregistered
// first; if b cannot be registered the previous binding is restored and
// the error returned. Events from a replaced binding are never delivered.
func (m *Manager) Bind(b Binding) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, prevBinding := m.current, m.binding
	if prev != nil {
		m.detachLocked()
	}

	next := m.factory(b)
	if err := next.Register(); err != nil {
		if prev != nil {
			restored := m.factory(prevBinding)
			if rerr := restored.Register(); rerr == nil {
				m.attachLocked(restored, prevBinding)
			}
		}
		return fmt.Errorf("register hotkey %s: %w", b, err)
	}
	m.attachLocked(next, b)
	return nil
}

// Close unregisters the active hotkey.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		m.detachLocked()
	}
}

func (m *Manager) attachLocked(hk Hotkey, b Binding) {
	m.current = hk
	m.binding = b
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	go m.forward(hk, m.stop, m.done)
}

func (m *Manager) detachLocked() {
	close(m.stop)
	<-m.done
	m.current.Unregister()
	m.current = nil
}

func (m *Manager) forward(hk Hotkey, stop, done chan struct{}) {
	defer close(done)
	pressed := false
	for {
		ch, typ := hk.Keydown(), Down
		if pressed {
			ch, typ = hk.Keyup(), Up
		}
		select {
		case <-stop:
			return
		case <-ch:
		}
		pressed = !pressed
		select {
		case m.events <- Event{Type: typ, At: time.Now()}:
		case <-stop:
			return
		}
	}
}
