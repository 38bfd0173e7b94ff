// Package sessiontrack maps exec session-keys (a working directory, or
// "default") to remote session ids and tracks their last-used time so the
// reaper can sweep idle sessions. Entries are workdir-keyed remote shell
// sessions with no message history attached.
package sessiontrack

import (
	"sync"
	"time"
)

const DefaultKey = "default"

// Entry records one live session-key to remote-session-id binding.
type Entry struct {
	Key        string
	SessionID  string
	CreatedAt  time.Time
	LastActive time.Time
}

// Map is a concurrency-safe session-key → Entry table. A single
// per-key mutex slot is not enough on its own to dedupe concurrent
// creation attempts; callers pair Map with golang.org/x/sync/singleflight
// keyed on the session-key (see internal/execsvc) so that at most one
// CreateSession RPC fires per key, satisfying the concurrency model's
// per-key single-flight requirement.
type Map struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

// New creates an empty session map.
func New() *Map {
	return &Map{entries: make(map[string]*Entry)}
}

// Get returns the entry for key, if any.
func (m *Map) Get(key string) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Put records a new session-key → remote-session-id binding.
func (m *Map) Put(key, sessionID string, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = &Entry{
		Key:        key,
		SessionID:  sessionID,
		CreatedAt:  now,
		LastActive: now,
	}
}

// Touch bumps LastActive for key, if it exists.
func (m *Map) Touch(key string, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok {
		e.LastActive = now
	}
}

// Delete removes the entry for key and reports whether one existed.
func (m *Map) Delete(key string) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return Entry{}, false
	}
	delete(m.entries, key)
	return *e, true
}

// All returns a snapshot of every entry, for the reaper's staleness sweep.
func (m *Map) All() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, *e)
	}
	return out
}

// Len reports the number of tracked sessions.
func (m *Map) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Clear empties the map, returning the removed entries so the caller can
// delete the corresponding remote sessions. Used by cleanup.
func (m *Map) Clear() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, *e)
	}
	m.entries = make(map[string]*Entry)
	return out
}

// Stale returns entries whose LastActive is older than before the cutoff.
func (m *Map) Stale(cutoff time.Time) []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Entry
	for _, e := range m.entries {
		if e.LastActive.Before(cutoff) {
			out = append(out, *e)
		}
	}
	return out
}
