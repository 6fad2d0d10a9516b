// Package monitor renders a live view of the chat registry and recent
// activity, and lets the operator stop the server with a keypress.
package monitor

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/andy6609/chat-relay/internal/chat"
)

// PeerSource is the registry view the monitor reads.
type PeerSource interface {
	Snapshot() []chat.Peer
	Capacity() int
}

// ActivitySource is the activity log view the monitor reads.
type ActivitySource interface {
	Snapshot() []chat.ActivityEntry
}

// Stopper is the shutdown coordinator as seen by the monitor.
type Stopper interface {
	Trigger(reason string)
	Draining() bool
	Done() <-chan struct{}
}

type Options struct {
	Interval time.Duration
	Out      io.Writer
	Keys     <-chan byte
	Width    func() int
}

// Monitor is a read-only observer: it copies snapshots under the sources'
// locks and renders only after those locks are released.
type Monitor struct {
	peers    PeerSource
	activity ActivitySource
	shutdown Stopper
	out      io.Writer
	keys     <-chan byte
	interval time.Duration
	width    func() int
	now      func() time.Time
	logger   *slog.Logger
}

func New(peers PeerSource, activity ActivitySource, shutdown Stopper, opts Options, logger *slog.Logger) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if opts.Width == nil {
		opts.Width = func() int { return fallbackWidth }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		peers:    peers,
		activity: activity,
		shutdown: shutdown,
		out:      opts.Out,
		keys:     opts.Keys,
		interval: opts.Interval,
		width:    opts.Width,
		now:      time.Now,
		logger:   logger,
	}
}

// Run refreshes the view every interval until the quit key is pressed,
// shutdown begins elsewhere, or ctx ends. It always renders once more before
// returning.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	keys := m.keys
	m.render()
	for {
		select {
		case <-ctx.Done():
			m.render()
			return
		case <-m.shutdown.Done():
			m.render()
			return
		case k, ok := <-keys:
			if !ok {
				keys = nil
				continue
			}
			if isQuitKey(k) {
				m.shutdown.Trigger("monitor quit key")
				m.render()
				return
			}
		case <-ticker.C:
			m.render()
		}
	}
}

// Ctrl-C counts as quit because raw mode stops the terminal from raising SIGINT.
func isQuitKey(k byte) bool {
	return k == 'q' || k == 'Q' || k == 0x03
}

// snapshot takes the registry copy first, then the activity copy. The two
// locks are never held together.
func (m *Monitor) snapshot() Frame {
	peers := m.peers.Snapshot()
	activity := m.activity.Snapshot()
	return Frame{
		Peers:    peers,
		Activity: activity,
		Capacity: m.peers.Capacity(),
		Now:      m.now(),
		Draining: m.shutdown.Draining(),
		Width:    m.width(),
	}
}

func (m *Monitor) render() {
	if _, err := io.WriteString(m.out, Render(m.snapshot())); err != nil {
		m.logger.Debug("monitor render failed", "error", err)
	}
}
