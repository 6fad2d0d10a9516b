package chat

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/andy6609/chat-relay/internal/protocol"
)

// State is the lifecycle stage of a session.
type State int32

const (
	StateHandshaking State = iota
	StateActive
	StateClosing
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateHandshaking:
		return "handshaking"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateTerminated:
		return "terminated"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

const fullNotice = "Servidor lleno"

// Session owns one accepted connection for its whole life: it reads the
// display name, registers it, routes every following line and finally
// unregisters itself.
type Session struct {
	conn             *Conn
	reg              *Registry
	router           *Router
	maxMessage       int
	handshakeTimeout time.Duration
	logger           *slog.Logger

	name  string
	state atomic.Int32
}

func NewSession(conn *Conn, reg *Registry, router *Router, maxMessage int, handshakeTimeout time.Duration, logger *slog.Logger) *Session {
	if maxMessage <= 0 {
		maxMessage = protocol.MaxMessageLength
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		conn:             conn,
		reg:              reg,
		router:           router,
		maxMessage:       maxMessage,
		handshakeTimeout: handshakeTimeout,
		logger:           logger,
	}
}

func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) Name() string { return s.name }

// Run blocks until the session terminates.
func (s *Session) Run() {
	defer s.state.Store(int32(StateTerminated))

	buf := make([]byte, s.maxMessage)
	lines := &lineAssembler{max: s.maxMessage}
	pending, ok := s.handshake(buf, lines)
	if !ok {
		_ = s.conn.Close()
		return
	}

	s.state.Store(int32(StateActive))
	s.send(protocol.InfoLine(fmt.Sprintf("Bienvenido al servidor, %s!", s.name)))

	if !s.dispatch(pending) {
		s.loop(buf, lines)
	}

	s.state.Store(int32(StateClosing))
	s.reg.Unregister(s.conn)
	s.logger.Debug("session closed", "username", s.name)
}

// handshake reads the display name and registers it. The name is the first
// read up to its first newline, which is optional. Complete lines that
// arrived after the name in the same read are returned for routing.
func (s *Session) handshake(buf []byte, lines *lineAssembler) ([]string, bool) {
	if s.handshakeTimeout > 0 {
		_ = s.conn.SetReadDeadline(time.Now().Add(s.handshakeTimeout))
	}
	n, err := s.conn.Receive(buf)
	if n == 0 {
		if err != nil {
			s.logger.Debug("handshake read failed", "addr", s.conn.RemoteAddr(), "error", err)
		}
		return nil, false
	}
	_ = s.conn.SetReadDeadline(time.Time{})

	chunk := buf[:n]
	var rest []byte
	if i := bytes.IndexByte(chunk, '\n'); i >= 0 {
		chunk, rest = chunk[:i], chunk[i+1:]
	}
	name := strings.TrimSpace(string(chunk))
	if name == "" {
		return nil, false
	}

	if _, err := s.reg.Register(s.conn, name); err != nil {
		switch {
		case errors.Is(err, ErrRegistryFull):
			RejectedConnections.Inc()
			s.logger.Info("registry full, rejecting", "addr", s.conn.RemoteAddr(), "username", name)
			s.send(protocol.ErrorLine(fullNotice))
		case errors.Is(err, ErrClosed):
			// shutdown in progress
		default:
			s.logger.Debug("handshake rejected", "addr", s.conn.RemoteAddr(), "error", err)
		}
		return nil, false
	}
	s.name = s.reg.displayName(name)
	return lines.feed(rest), true
}

func (s *Session) loop(buf []byte, lines *lineAssembler) {
	for {
		n, err := s.conn.Receive(buf)
		if n > 0 && s.dispatch(lines.feed(buf[:n])) {
			return
		}
		if err != nil || n == 0 {
			s.logger.Debug("receive ended", "username", s.name, "error", err)
			return
		}
	}
}

// dispatch routes lines in order and reports whether the client asked to quit.
func (s *Session) dispatch(lines []string) bool {
	for _, line := range lines {
		res := s.router.Route(s.name, s.conn, line)
		s.router.Deliver(s.conn, res)
		if res.Disconnect {
			return true
		}
	}
	return false
}

func (s *Session) send(line string) {
	if err := s.conn.Send(line); err != nil {
		s.logger.Debug("send failed", "addr", s.conn.RemoteAddr(), "error", err)
	}
}

// lineAssembler turns a byte stream into newline-terminated commands. A line
// that grows past max bytes before its newline arrives is emitted truncated
// and the rest of it, up to the next newline, is dropped.
type lineAssembler struct {
	max     int
	partial []byte
	discard bool
}

func (a *lineAssembler) feed(chunk []byte) []string {
	var out []string
	for {
		i := bytes.IndexByte(chunk, '\n')
		if i < 0 {
			break
		}
		seg := chunk[:i]
		chunk = chunk[i+1:]
		if a.discard {
			a.discard = false
			continue
		}
		a.partial = append(a.partial, seg...)
		out = a.flush(out)
	}
	if a.discard {
		return out
	}
	a.partial = append(a.partial, chunk...)
	if len(a.partial) > a.max {
		out = a.flush(out)
		a.discard = true
	}
	return out
}

func (a *lineAssembler) flush(out []string) []string {
	line := strings.TrimRight(string(a.partial), "\r")
	a.partial = a.partial[:0]
	if line == "" {
		return out
	}
	return append(out, protocol.Truncate(line, a.max))
}
