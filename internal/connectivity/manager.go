// Package connectivity implements the Connectivity Manager: the
// online/offline state machine every transport failure and success feeds
// into, grounded on the teacher's FailoverController bookkeeping style.
package connectivity

import (
	"log/slog"
	"sync"
	"time"
)

// Event is emitted on every state transition, fanned out to subscribers.
type Event int

const (
	Connected Event = iota
	Reconnecting
	Disconnected
)

func (e Event) String() string {
	switch e {
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case Disconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// defaultOfflineThreshold is the consecutive-failure count that flips
// the manager from online to offline.
const defaultOfflineThreshold = 3

// Manager tracks online/offline state from transport successes and
// failures, plus an operator-driven force_offline override.
type Manager struct {
	mu               sync.Mutex
	isOnline         bool
	failureCount     int
	lastSuccess      time.Time
	offlineThreshold int
	forceOffline     bool
	subscribers      []chan Event
}

// New builds a Manager starting online, with the default offline
// threshold of 3 consecutive failures.
func New() *Manager {
	return &Manager{isOnline: true, offlineThreshold: defaultOfflineThreshold}
}

// WithOfflineThreshold overrides the default 3-failure threshold.
func (m *Manager) WithOfflineThreshold(n int) *Manager {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offlineThreshold = n
	return m
}

// Subscribe registers a channel to receive future Events. Sends are
// non-blocking: a slow subscriber never stalls the state machine.
func (m *Manager) Subscribe(ch chan Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = append(m.subscribers, ch)
}

func (m *Manager) emitLocked(ev Event) {
	for _, ch := range m.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}

// RecordSuccess reports a successful transport call. A no-op while
// force_offline is set.
func (m *Manager) RecordSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.forceOffline {
		return
	}
	wasOffline := !m.isOnline
	m.isOnline = true
	m.failureCount = 0
	m.lastSuccess = time.Now()
	if wasOffline {
		slog.Info("connectivity restored")
		m.emitLocked(Connected)
	}
}

// RecordFailure reports a failed transport call, incrementing the
// failure count and flipping to offline once it reaches the threshold.
func (m *Manager) RecordFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failureCount++
	if m.failureCount >= m.offlineThreshold {
		if m.isOnline {
			slog.Warn("connectivity lost", "failure_count", m.failureCount)
		}
		m.isOnline = false
		m.emitLocked(Disconnected)
		return
	}
	m.emitLocked(Reconnecting)
}

// SetForceOffline overrides the state machine, forcing offline (or
// clearing the override) regardless of the underlying failure count.
func (m *Manager) SetForceOffline(forced bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forceOffline = forced
	if forced {
		m.isOnline = false
		slog.Info("connectivity forced offline")
		m.emitLocked(Disconnected)
	}
}

// IsOnline reports the current online state.
func (m *Manager) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isOnline
}

// FailureCount reports the current consecutive-failure count.
func (m *Manager) FailureCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failureCount
}

// LastSuccess reports the timestamp of the last recorded success.
func (m *Manager) LastSuccess() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSuccess
}
