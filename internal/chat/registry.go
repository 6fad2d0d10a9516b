package chat

import (
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/andy6609/chat-relay/internal/protocol"
)

// Registry is the fixed-capacity table of active sessions. Every read and
// write happens under mu; slot order is registration order for free slots
// scanned from the front, and name lookups return the first active match.
type Registry struct {
	mu      sync.Mutex
	slots   []slot
	count   int
	closed  bool // set by CloseAll; later registrations fail
	maxName int
	now     func() time.Time
	logger  *slog.Logger
}

type slot struct {
	conn        *Conn
	name        string
	connectedAt time.Time
	active      bool
}

func NewRegistry(capacity, maxNameLength int, logger *slog.Logger) *Registry {
	if capacity <= 0 {
		capacity = 100
	}
	if maxNameLength <= 0 {
		maxNameLength = protocol.MaxNameLength
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		slots:   make([]slot, capacity),
		maxName: maxNameLength,
		now:     time.Now,
		logger:  logger,
	}
}

func (r *Registry) Capacity() int { return len(r.slots) }

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Register stores conn under name in the first free slot. Non-printable
// characters are removed and names longer than the configured maximum are
// truncated. A full registry is left untouched.
func (r *Registry) Register(conn *Conn, name string) (int, error) {
	name = r.displayName(name)
	if name == "" {
		return -1, ErrEmptyName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return -1, ErrClosed
	}
	if r.count >= len(r.slots) {
		return -1, ErrRegistryFull
	}
	for i := range r.slots {
		if r.slots[i].active {
			continue
		}
		r.slots[i] = slot{
			conn:        conn,
			name:        name,
			connectedAt: r.now(),
			active:      true,
		}
		r.count++
		ConnectedClients.Set(float64(r.count))
		r.logger.Info("user registered", "username", name, "slot", i)
		return i, nil
	}
	return -1, ErrRegistryFull
}

// displayName is the form of raw that Register stores.
func (r *Registry) displayName(raw string) string {
	name := strings.Map(func(c rune) rune {
		if !unicode.IsPrint(c) {
			return -1
		}
		return c
	}, raw)
	return protocol.Truncate(strings.TrimSpace(name), r.maxName)
}

// Unregister closes conn and frees its slot. Unknown or already removed
// connections are ignored.
func (r *Registry) Unregister(conn *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.slots {
		s := &r.slots[i]
		if !s.active || s.conn != conn {
			continue
		}
		_ = s.conn.Close()
		r.logger.Info("user left", "username", s.name, "slot", i)
		*s = slot{}
		r.count--
		ConnectedClients.Set(float64(r.count))
		return
	}
}

// FindByName returns the connection of the first active slot named name.
func (r *Registry) FindByName(name string) (*Conn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.slots {
		if r.slots[i].active && r.slots[i].name == name {
			return r.slots[i].conn, nil
		}
	}
	return nil, ErrNotFound
}

// Snapshot copies every active slot in slot order.
func (r *Registry) Snapshot() []Peer {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	peers := make([]Peer, 0, r.count)
	for i := range r.slots {
		s := &r.slots[i]
		if !s.active {
			continue
		}
		peers = append(peers, Peer{
			Slot:        i,
			Name:        s.name,
			Addr:        s.conn.RemoteAddr(),
			ConnectedAt: s.connectedAt,
			Connected:   now.Sub(s.connectedAt),
		})
	}
	return peers
}

// BroadcastExcept sends line to every active connection other than sender and
// reports how many sends succeeded. The lock is held for the whole fan-out so
// the recipient set cannot change mid-broadcast.
func (r *Registry) BroadcastExcept(sender *Conn, line string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	delivered := 0
	for i := range r.slots {
		s := &r.slots[i]
		if !s.active || s.conn == sender {
			continue
		}
		if err := s.conn.Send(line); err != nil {
			r.logger.Debug("broadcast send failed", "username", s.name, "error", err)
			continue
		}
		delivered++
	}
	return delivered
}

// CloseAll sends notice to every active session, closes their connections and
// empties the table. The registry refuses new registrations afterwards.
// Session handlers blocked in Receive then fail and their
// own Unregister becomes a no-op.
func (r *Registry) CloseAll(notice string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	closed := 0
	for i := range r.slots {
		s := &r.slots[i]
		if !s.active {
			continue
		}
		if notice != "" {
			_ = s.conn.Send(notice)
		}
		_ = s.conn.Close()
		*s = slot{}
		closed++
	}
	r.count = 0
	ConnectedClients.Set(0)
	return closed
}
