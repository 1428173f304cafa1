package events

import (
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/resolvd/pkg/log"
	"github.com/cuemby/resolvd/pkg/types"
	"github.com/google/uuid"
)

// Listener receives address-change notifications. Implementations are
// registered by name; a disabled listener stays registered but is skipped
// during delivery.
type Listener interface {
	Name() string
	OnAddressChanged(event types.AddressEvent)
	Enabled() bool
}

// Callback is a stateless listener registered under a name.
type Callback func(event types.AddressEvent)

// Filter decides whether an event is delivered. All registered filters
// must return true for delivery to proceed.
type Filter func(event types.AddressEvent) bool

// Manager distributes address-change events to named listeners and
// callbacks, subject to named filters. A single mutex guards the whole
// manager; Notify holds it for the duration of delivery.
type Manager struct {
	mu        sync.Mutex
	listeners map[string]Listener
	callbacks map[string]Callback
	filters   map[string]Filter
	disabled  map[string]bool // listener names muted at the manager

	paused bool
	queue  []types.AddressEvent
}

// NewManager creates an empty event manager.
func NewManager() *Manager {
	return &Manager{
		listeners: make(map[string]Listener),
		callbacks: make(map[string]Callback),
		filters:   make(map[string]Filter),
		disabled:  make(map[string]bool),
	}
}

var (
	defaultManager     *Manager
	defaultManagerOnce sync.Once
)

// Default returns the process-wide manager instance. Tests that need
// isolation should construct their own Manager instead.
func Default() *Manager {
	defaultManagerOnce.Do(func() {
		defaultManager = NewManager()
	})
	return defaultManager
}

// RegisterListener registers (or replaces) a listener under its name.
func (m *Manager) RegisterListener(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners[l.Name()] = l
}

// UnregisterListener removes the listener registered under name.
func (m *Manager) UnregisterListener(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.listeners, name)
	delete(m.disabled, name)
}

// EnableListener lifts a manager-level mute on the named listener.
func (m *Manager) EnableListener(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.disabled, name)
}

// DisableListener mutes the named listener without unregistering it.
func (m *Manager) DisableListener(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disabled[name] = true
}

// AddCallback registers (or replaces) a callback under name.
func (m *Manager) AddCallback(name string, cb Callback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks[name] = cb
}

// RemoveCallback removes the callback registered under name.
func (m *Manager) RemoveCallback(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.callbacks, name)
}

// AddFilter registers (or replaces) a delivery filter under name.
func (m *Manager) AddFilter(name string, f Filter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filters[name] = f
}

// RemoveFilter removes the filter registered under name.
func (m *Manager) RemoveFilter(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.filters, name)
}

// PauseEvents suspends delivery; notified events queue up until resume.
func (m *Manager) PauseEvents() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = true
}

// ResumeEvents re-enables delivery and drains the queue in FIFO order.
func (m *Manager) ResumeEvents() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.paused = false
	for _, event := range m.queue {
		m.deliverLocked(event)
	}
	m.queue = nil
}

// ClearQueue drops any events queued while paused.
func (m *Manager) ClearQueue() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = nil
}

// QueueLength returns the number of events held back by a pause.
func (m *Manager) QueueLength() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Notify delivers the event to every enabled listener and every callback.
// A zero ID or timestamp is filled in. While paused, events queue instead.
func (m *Manager) Notify(event types.AddressEvent) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.paused {
		m.queue = append(m.queue, event)
		return
	}
	m.deliverLocked(event)
}

// ListenerCount returns the number of registered listeners and callbacks.
func (m *Manager) ListenerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listeners) + len(m.callbacks)
}

func (m *Manager) deliverLocked(event types.AddressEvent) {
	for _, f := range m.filters {
		if !f(event) {
			return
		}
	}

	for name, l := range m.listeners {
		if m.disabled[name] || !l.Enabled() {
			continue
		}
		m.safeDeliver(name, event, func() { l.OnAddressChanged(event) })
	}
	for name, cb := range m.callbacks {
		m.safeDeliver(name, event, func() { cb(event) })
	}
}

// safeDeliver invokes one subscriber, isolating panics so a failing
// subscriber cannot abort delivery to the rest.
func (m *Manager) safeDeliver(name string, event types.AddressEvent, deliver func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Logger.Error().
				Str("component", "events").
				Str("subscriber", name).
				Str("hostname", event.Hostname).
				Err(fmt.Errorf("subscriber panic: %v", r)).
				Msg("event delivery failed")
		}
	}()
	deliver()
}
