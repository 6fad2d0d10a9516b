package chat

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Shutdown moves the process from running to draining exactly once. Any
// number of triggers may race; only the first one has an effect.
type Shutdown struct {
	once     sync.Once
	draining atomic.Bool
	done     chan struct{}

	mu       sync.Mutex
	listener io.Closer
	logger   *slog.Logger
}

func NewShutdown(logger *slog.Logger) *Shutdown {
	if logger == nil {
		logger = slog.Default()
	}
	return &Shutdown{done: make(chan struct{}), logger: logger}
}

// Attach registers the listener to close on Trigger. If draining already
// began the listener is closed right away.
func (s *Shutdown) Attach(l io.Closer) {
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()
	if s.Draining() {
		_ = l.Close()
	}
}

// Trigger starts draining and closes the listener to unblock Accept.
func (s *Shutdown) Trigger(reason string) {
	s.once.Do(func() {
		s.logger.Info("shutdown requested", "reason", reason)
		s.draining.Store(true)
		close(s.done)

		s.mu.Lock()
		l := s.listener
		s.mu.Unlock()
		if l != nil {
			_ = l.Close()
		}
	})
}

func (s *Shutdown) Draining() bool { return s.draining.Load() }

// Done is closed once draining begins.
func (s *Shutdown) Done() <-chan struct{} { return s.done }
