package responder

import (
	"sync"
	"time"
)

// QueryLogEntry records one served query for post-hoc grading: what was
// asked, from where, and how it was answered.
type QueryLogEntry struct {
	Time      time.Time `json:"time"`
	Transport string    `json:"transport"`
	Remote    string    `json:"remote"`
	QName     string    `json:"qname"`
	QType     string    `json:"qtype"`
	RCode     string    `json:"rcode"`
	Flags     uint16    `json:"flags"`
}

// QueryLog is the one piece of mutable per-run state: an append-only record
// of every query served. Entries are only ever added; a run's history never
// shrinks or reorders.
type QueryLog struct {
	mu      sync.Mutex
	entries []QueryLogEntry
}

// NewQueryLog returns an empty log.
func NewQueryLog() *QueryLog {
	return &QueryLog{}
}

// Append adds one entry.
func (l *QueryLog) Append(e QueryLogEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
}

// Snapshot returns a copy of all entries in append order.
func (l *QueryLog) Snapshot() []QueryLogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]QueryLogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len reports the number of entries.
func (l *QueryLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
