// Package client implements the interactive side of the chat protocol.
package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/andy6609/chat-relay/internal/protocol"
)

// ErrServerClosed is returned by Run when the server ends the connection.
var ErrServerClosed = errors.New("server closed the connection")

var (
	listStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	itemStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	infoStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	directStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("5"))
	broadcastStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3"))
	plainStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
)

// Render formats one server line for display.
func Render(line string) string {
	kind, payload := protocol.Classify(line)
	switch kind {
	case protocol.KindListStart:
		return listStyle.Render("== connected clients ==")
	case protocol.KindListEnd:
		return listStyle.Render("=======================")
	case protocol.KindListItem:
		return itemStyle.Render(" * " + payload)
	case protocol.KindInfo:
		return infoStyle.Render(payload)
	case protocol.KindError:
		return errorStyle.Render("error: " + payload)
	case protocol.KindMsgFrom:
		return directStyle.Render("[private] " + payload)
	case protocol.KindBroadcastFrom:
		return broadcastStyle.Render("[broadcast] " + payload)
	}
	return plainStyle.Render(payload)
}

// Run sends name as the first line and then relays lines in both
// directions until the user quits, input ends, the server hangs up or ctx
// is cancelled.
func Run(ctx context.Context, conn net.Conn, name string, in io.Reader, out io.Writer) error {
	if _, err := io.WriteString(conn, name+"\n"); err != nil {
		return fmt.Errorf("send nick: %w", err)
	}

	serverDone := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(conn)
		for sc.Scan() {
			fmt.Fprintln(out, Render(sc.Text()))
		}
		serverDone <- sc.Err()
	}()

	input := make(chan string)
	go func() {
		defer close(input)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			input <- sc.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-serverDone:
			if err != nil {
				return fmt.Errorf("receive: %w", err)
			}
			return ErrServerClosed
		case line, ok := <-input:
			if !ok {
				return nil
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if _, err := io.WriteString(conn, line+"\n"); err != nil {
				return fmt.Errorf("send: %w", err)
			}
			if line == protocol.CmdQuit {
				return nil
			}
		}
	}
}
