package chat

import (
	"sync"
	"time"

	"github.com/andy6609/chat-relay/internal/protocol"
)

// ActivityEntry records one delivered direct or broadcast message.
type ActivityEntry struct {
	From string
	To   string
	Body string
	At   time.Time
}

// ActivityLog is a fixed-size ring of the most recent exchanges. It has its
// own lock, independent of the Registry's.
type ActivityLog struct {
	mu      sync.Mutex
	entries []ActivityEntry
	start   int // index of the oldest entry
	count   int
	maxBody int
	now     func() time.Time
}

func NewActivityLog(capacity, maxBody int) *ActivityLog {
	if capacity <= 0 {
		capacity = 10
	}
	if maxBody <= 0 {
		maxBody = 255
	}
	return &ActivityLog{
		entries: make([]ActivityEntry, capacity),
		maxBody: maxBody,
		now:     time.Now,
	}
}

// Append adds an entry, overwriting the oldest one once the ring is full.
func (l *ActivityLog) Append(from, to, body string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := ActivityEntry{
		From: from,
		To:   to,
		Body: protocol.Truncate(body, l.maxBody),
		At:   l.now(),
	}
	size := len(l.entries)
	if l.count < size {
		l.entries[(l.start+l.count)%size] = e
		l.count++
		return
	}
	l.entries[l.start] = e
	l.start = (l.start + 1) % size
}

// Snapshot returns the retained entries, oldest first.
func (l *ActivityLog) Snapshot() []ActivityEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]ActivityEntry, l.count)
	for i := 0; i < l.count; i++ {
		out[i] = l.entries[(l.start+i)%len(l.entries)]
	}
	return out
}

func (l *ActivityLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}
