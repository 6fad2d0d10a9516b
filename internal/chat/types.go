package chat

import "time"

// Peer is a read-only copy of an active registry slot.
type Peer struct {
	Slot        int
	Name        string
	Addr        string
	ConnectedAt time.Time
	Connected   time.Duration
}

// BroadcastRecipient marks activity entries that went to every peer.
const BroadcastRecipient = "*"

var (
	ErrRegistryFull = errorString("registry_full")
	ErrEmptyName    = errorString("empty_name")
	ErrNotFound     = errorString("not_found")
	ErrClosed       = errorString("registry_closed")
)

type errorString string

func (e errorString) Error() string { return string(e) }
