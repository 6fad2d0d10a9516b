package chat

import (
	"net"
	"sync"
	"time"
)

// Conn wraps a net.Conn so that lines written from several goroutines (the
// owning session, a peer's /msg, a broadcast fan-out) never interleave.
type Conn struct {
	conn         net.Conn
	writeTimeout time.Duration

	mu        sync.Mutex // serializes writes
	closeOnce sync.Once
	closeErr  error
}

func NewConn(conn net.Conn, writeTimeout time.Duration) *Conn {
	return &Conn{conn: conn, writeTimeout: writeTimeout}
}

// Send writes one newline-terminated line. A slow peer fails with a timeout
// instead of stalling the sender.
func (c *Conn) Send(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	_, err := c.conn.Write([]byte(line + "\n"))
	return err
}

// Receive reads whatever the peer sent next, up to len(buf) bytes.
func (c *Conn) Receive(buf []byte) (int, error) {
	return c.conn.Read(buf)
}

// SetReadDeadline bounds the next Receive; the zero time clears it.
func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

// Close is safe to call more than once; only the first call reaches the socket.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

func (c *Conn) RemoteAddr() string {
	if addr := c.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
