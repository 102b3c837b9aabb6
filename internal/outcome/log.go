// Package outcome holds the bounded, newest-first history of attendance
// attempts shown to the user.
package outcome

import (
	"time"

	"github.com/google/uuid"
)

// DefaultCapacity is the number of entries kept before the oldest is evicted.
const DefaultCapacity = 100

// Status is the state an entry reports for one attempt.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Entry is one immutable log line. A record's progress is expressed by
// appending a new entry, never by editing an old one.
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Subject   string    `json:"subject"`
	Target    string    `json:"target"`
	Status    Status    `json:"status"`
	Message   string    `json:"message"`
}

// Log is a capped list of entries, newest first. It is owned by a single
// goroutine and does no locking.
type Log struct {
	capacity int
	entries  []Entry
}

// NewLog returns a log that keeps at most capacity entries. A non-positive
// capacity selects DefaultCapacity.
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{capacity: capacity}
}

// Append stores e at the head of the log, filling ID and Timestamp when
// unset, and drops whatever falls past capacity.
func (l *Log) Append(e Entry) Entry {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	next := make([]Entry, 0, min(len(l.entries)+1, l.capacity))
	next = append(next, e)
	for _, old := range l.entries {
		if len(next) == l.capacity {
			break
		}
		next = append(next, old)
	}
	l.entries = next
	return e
}

// Entries returns a copy of the log, newest first.
func (l *Log) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Log) Len() int { return len(l.entries) }

func (l *Log) Capacity() int { return l.capacity }

// Clear drops every entry.
func (l *Log) Clear() {
	l.entries = nil
}
