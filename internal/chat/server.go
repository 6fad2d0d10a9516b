package chat

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/andy6609/chat-relay/internal/protocol"
)

const closingNotice = "Servidor cerrando. Desconectando..."

// Options tunes the server. Zero values fall back to DefaultOptions.
type Options struct {
	Capacity           int
	MaxNameLength      int
	MaxMessageLength   int
	ActivityCapacity   int
	ActivityBodyLength int
	WriteTimeout       time.Duration
	HandshakeTimeout   time.Duration
	AcceptRetry        time.Duration
	Grace              time.Duration
}

func DefaultOptions() Options {
	return Options{
		Capacity:           100,
		MaxNameLength:      protocol.MaxNameLength,
		MaxMessageLength:   protocol.MaxMessageLength,
		ActivityCapacity:   10,
		ActivityBodyLength: 255,
		WriteTimeout:       2 * time.Second,
		HandshakeTimeout:   30 * time.Second,
		AcceptRetry:        100 * time.Millisecond,
		Grace:              500 * time.Millisecond,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Capacity <= 0 {
		o.Capacity = d.Capacity
	}
	if o.MaxNameLength <= 0 {
		o.MaxNameLength = d.MaxNameLength
	}
	if o.MaxMessageLength <= 0 {
		o.MaxMessageLength = d.MaxMessageLength
	}
	if o.ActivityCapacity <= 0 {
		o.ActivityCapacity = d.ActivityCapacity
	}
	if o.ActivityBodyLength <= 0 {
		o.ActivityBodyLength = d.ActivityBodyLength
	}
	if o.AcceptRetry <= 0 {
		o.AcceptRetry = d.AcceptRetry
	}
	if o.Grace <= 0 {
		o.Grace = d.Grace
	}
	return o
}

type Server struct {
	addr     string
	opts     Options
	logger   *slog.Logger
	reg      *Registry
	activity *ActivityLog
	router   *Router
	shutdown *Shutdown
	listener net.Listener

	sessions   sync.WaitGroup
	acceptDone chan struct{}
}

func NewServer(addr string, opts Options, shutdown *Shutdown, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if shutdown == nil {
		shutdown = NewShutdown(logger)
	}
	opts = opts.withDefaults()
	reg := NewRegistry(opts.Capacity, opts.MaxNameLength, logger)
	activity := NewActivityLog(opts.ActivityCapacity, opts.ActivityBodyLength)
	return &Server{
		addr:     addr,
		opts:     opts,
		logger:   logger,
		reg:      reg,
		activity: activity,
		router:   NewRouter(reg, activity, logger),
		shutdown: shutdown,
	}
}

func (s *Server) Registry() *Registry    { return s.reg }
func (s *Server) Activity() *ActivityLog { return s.activity }
func (s *Server) Shutdown() *Shutdown    { return s.shutdown }

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start binds the listening socket and begins accepting. A bind failure is
// the only error that should end the process.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	s.Serve(ln)
	s.logger.Info("server started", "addr", ln.Addr().String(), "capacity", s.opts.Capacity)
	return nil
}

// Serve accepts connections from ln in the background until shutdown.
// Start calls it after binding; ln is closed by the shutdown trigger.
func (s *Server) Serve(ln net.Listener) {
	s.listener = ln
	s.shutdown.Attach(ln)

	s.acceptDone = make(chan struct{})
	go s.acceptLoop(ln)
}

// Stop triggers shutdown if nobody has yet, waits for the accept loop, then
// notifies and disconnects every session and waits up to the grace period
// for their handlers to return. It reports whether all handlers exited.
func (s *Server) Stop() bool {
	s.shutdown.Trigger("stop")
	if s.acceptDone != nil {
		<-s.acceptDone
	}

	closed := s.reg.CloseAll(protocol.InfoLine(closingNotice))
	s.logger.Info("shutting down", "sessions_closed", closed)

	drained := waitTimeout(&s.sessions, s.opts.Grace)
	if !drained {
		s.logger.Warn("sessions still running after grace period", "grace", s.opts.Grace)
	}

	if s.listener != nil {
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Warn("listener close failed", "error", err)
		}
	}
	s.logger.Info("shutdown complete")
	return drained
}

func (s *Server) acceptLoop(ln net.Listener) {
	defer close(s.acceptDone)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.shutdown.Draining() {
				return
			}
			s.logger.Warn("accept failed, retrying", "error", err, "delay", s.opts.AcceptRetry)
			select {
			case <-time.After(s.opts.AcceptRetry):
			case <-s.shutdown.Done():
				return
			}
			continue
		}
		if s.shutdown.Draining() {
			_ = conn.Close()
			return
		}

		s.logger.Info("client connected", "addr", conn.RemoteAddr().String())

		c := NewConn(conn, s.opts.WriteTimeout)
		sess := NewSession(c, s.reg, s.router, s.opts.MaxMessageLength, s.opts.HandshakeTimeout, s.logger)
		s.sessions.Add(1)
		go func() {
			defer s.sessions.Done()
			sess.Run()
		}()
	}
}

func waitTimeout(wg *sync.WaitGroup, d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}
