package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/andy6609/chat-relay/internal/chat"
)

// Frame is everything one dashboard render shows.
type Frame struct {
	Peers    []chat.Peer
	Activity []chat.ActivityEntry
	Capacity int
	Now      time.Time
	Draining bool
	Width    int
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	rowStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	closingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
)

// Render draws f as terminal text. Lines end in CRLF because the console is
// in raw mode, where a bare LF does not return the carriage.
func Render(f Frame) string {
	width := f.Width
	if width <= 0 {
		width = fallbackWidth
	}
	heavy := strings.Repeat("=", width)
	light := strings.Repeat("-", width)

	var lines []string
	add := func(s ...string) { lines = append(lines, s...) }

	add(heavy, titleStyle.Render("    CHAT RELAY - MONITOR"), light)
	add(
		infoStyle.Render(fmt.Sprintf("  Connected clients: %d / %d", len(f.Peers), f.Capacity)),
		infoStyle.Render("  Time: "+f.Now.Format("2006-01-02 15:04:05")),
		heavy,
	)

	add(headerStyle.Render(fmt.Sprintf("  %-4s  %-31s  %-21s  %-10s", "ID", "NICK", "ADDRESS", "CONNECTED")), light)
	if len(f.Peers) == 0 {
		add(infoStyle.Render("  No clients connected"))
	}
	for i, p := range f.Peers {
		add(rowStyle.Render(fmt.Sprintf("  %-4d  %-31s  %-21s  %-10s", i+1, p.Name, p.Addr, chat.FormatDuration(p.Connected))))
	}

	add(heavy, headerStyle.Render("  RECENT ACTIVITY"), light)
	if len(f.Activity) == 0 {
		add(infoStyle.Render("  No messages yet"))
	}
	for _, e := range f.Activity {
		to := e.To
		if to == chat.BroadcastRecipient {
			to = "(all)"
		}
		add(rowStyle.Render(fmt.Sprintf("  %s  %s -> %s: %s", e.At.Format("15:04:05"), e.From, to, e.Body)))
	}

	add(heavy)
	if f.Draining {
		add(closingStyle.Render("  Shutting down..."))
	} else {
		add(infoStyle.Render("  Press 'q' to quit | refreshes automatically"))
	}
	add(heavy)

	return clearHome + strings.Join(lines, "\r\n") + "\r\n"
}
