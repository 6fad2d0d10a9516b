package chat

import (
	"bufio"
	"io"
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// pipeConn returns a registry-side Conn and the peer end a test reads from.
func pipeConn(t testing.TB) (*Conn, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() {
		_ = server.Close()
		_ = client.Close()
	})
	return NewConn(server, 200*time.Millisecond), client
}

// collect streams every line read from c until it closes.
func collect(c net.Conn) <-chan string {
	ch := make(chan string, 256)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(c)
		for sc.Scan() {
			ch <- sc.Text()
		}
	}()
	return ch
}

func waitForPrefix(t *testing.T, ch <-chan string, prefix string) string {
	t.Helper()
	deadline := time.NewTimer(2 * time.Second)
	defer deadline.Stop()
	for {
		select {
		case s, ok := <-ch:
			if !ok {
				t.Fatalf("stream closed waiting for prefix %q", prefix)
			}
			if strings.HasPrefix(s, prefix) {
				return s
			}
			// ignore other lines (welcome, INFO, etc.)
		case <-deadline.C:
			t.Fatalf("timeout waiting for prefix %q", prefix)
		}
	}
}

// expectQuiet asserts that nothing arrives on ch within d.
func expectQuiet(t *testing.T, ch <-chan string, d time.Duration) {
	t.Helper()
	select {
	case s, ok := <-ch:
		if ok {
			t.Fatalf("unexpected line %q", s)
		}
	case <-time.After(d):
	}
}
