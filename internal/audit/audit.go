// Package audit implements the §4.H AuditLog: a bounded, append-only,
// queryable record of credential and lifecycle events. No operation in
// this package ever mutates or deletes an existing entry.
package audit

import (
	"strings"
	"sync"
	"time"

	"github.com/dws/control-plane/internal/telemetry"
)

const defaultCapacity = 10000

// Entry is the §3 AuditEntry projection. Subject generalizes
// "credentialId" to any resource id (a confidential DB id, a provider id)
// so the same log serves every component in §2's "H observes A, C, D, E".
type Entry struct {
	Ts      time.Time
	Action  string
	Subject string
	Owner   string
	Details string
}

// Log is a fixed-capacity ring buffer: once full, the oldest entry is
// dropped to make room for the newest (spec §4.H).
type Log struct {
	mu       sync.Mutex
	capacity int
	entries  []Entry
	start    int
	count    int
}

// New constructs a Log with the given capacity, defaulting to 10000 (spec
// §3) when capacity <= 0.
func New(capacity int) *Log {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Log{capacity: capacity, entries: make([]Entry, capacity)}
}

// Append adds an entry, evicting the oldest if the log is at capacity.
func (l *Log) Append(action, subject, owner, details string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := (l.start + l.count) % l.capacity
	l.entries[idx] = Entry{
		Ts:      time.Now().UTC(),
		Action:  action,
		Subject: subject,
		Owner:   strings.ToLower(owner),
		Details: details,
	}

	telemetry.AuditEntriesTotal.WithLabelValues(action).Inc()

	if l.count < l.capacity {
		l.count++
	} else {
		l.start = (l.start + 1) % l.capacity
		telemetry.AuditEntriesDroppedTotal.Inc()
	}
}

// Query returns up to limit entries, newest first, optionally filtered to
// a single owner. limit <= 0 means unlimited.
func (l *Log) Query(owner string, limit int) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	owner = strings.ToLower(owner)
	out := make([]Entry, 0, l.count)
	for i := l.count - 1; i >= 0; i-- {
		e := l.entries[(l.start+i)%l.capacity]
		if owner != "" && e.Owner != owner {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
