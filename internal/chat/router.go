package chat

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/andy6609/chat-relay/internal/protocol"
)

// Outbound is a single line addressed to one connection.
type Outbound struct {
	To   *Conn
	Line string
}

// Result is what the router decided for one input line.
type Result struct {
	Replies    []Outbound
	Broadcast  string // framed line for every other session, empty when none
	Disconnect bool
}

var helpLines = []string{
	"Comandos disponibles:",
	"  /list                 - ver clientes conectados",
	"  /msg <nick> <texto>   - enviar mensaje privado",
	"  /broadcast <texto>    - enviar a todos los clientes",
	"  /help                 - mostrar esta ayuda",
	"  /quit                 - salir del chat",
}

// Router interprets client lines against the registry.
type Router struct {
	reg      *Registry
	activity *ActivityLog
	logger   *slog.Logger
}

func NewRouter(reg *Registry, activity *ActivityLog, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{reg: reg, activity: activity, logger: logger}
}

// Route decides the sends produced by line. It performs registry lookups but
// no network I/O, so its result can be inspected before delivery.
func (rt *Router) Route(senderName string, sender *Conn, line string) Result {
	start := time.Now()
	cmd, rest := splitToken(line)

	eventType := "unknown"
	var res Result
	switch cmd {
	case protocol.CmdList:
		eventType = "list"
		res = rt.list(sender)
	case protocol.CmdMsg:
		eventType = "msg"
		res = rt.direct(senderName, sender, rest)
	case protocol.CmdBroadcast:
		eventType = "broadcast"
		res = rt.broadcast(senderName, sender, rest)
	case protocol.CmdHelp:
		eventType = "help"
		res = reply(sender, helpResponse()...)
	case protocol.CmdQuit:
		eventType = "quit"
		res = Result{Disconnect: true}
	default:
		res = reply(sender, protocol.ErrorLine("Comando no reconocido: "+cmd+" (usa /help)"))
	}

	observeCommand(eventType, start)
	return res
}

// Deliver performs the sends in res on behalf of sender. Failures to reach a
// peer are logged and otherwise ignored.
func (rt *Router) Deliver(sender *Conn, res Result) {
	for _, out := range res.Replies {
		if err := out.To.Send(out.Line); err != nil {
			rt.logger.Debug("send failed", "addr", out.To.RemoteAddr(), "error", err)
		}
	}
	if res.Broadcast == "" {
		return
	}
	n := rt.reg.BroadcastExcept(sender, res.Broadcast)
	if err := sender.Send(protocol.InfoLine(fmt.Sprintf("Broadcast enviado a %d clientes", n))); err != nil {
		rt.logger.Debug("send failed", "addr", sender.RemoteAddr(), "error", err)
	}
}

func (rt *Router) list(sender *Conn) Result {
	peers := rt.reg.Snapshot()
	lines := make([]string, 0, len(peers)+2)
	lines = append(lines, protocol.ListStart)
	for _, p := range peers {
		lines = append(lines, protocol.ListItemLine(fmt.Sprintf("%s - conectado %s", p.Name, FormatDuration(p.Connected))))
	}
	lines = append(lines, protocol.ListEnd)
	return reply(sender, lines...)
}

func (rt *Router) direct(senderName string, sender *Conn, args string) Result {
	name, text := splitToken(args)
	if name == "" || text == "" {
		return reply(sender, protocol.ErrorLine("Uso: /msg <nick> <mensaje>"))
	}
	target, err := rt.reg.FindByName(name)
	if err != nil {
		return reply(sender, protocol.ErrorLine(fmt.Sprintf("Usuario '%s' no encontrado", name)))
	}
	rt.activity.Append(senderName, name, text)
	return Result{Replies: []Outbound{
		{To: target, Line: protocol.MsgFromLine(senderName, text)},
		{To: sender, Line: protocol.InfoLine("Mensaje enviado a " + name)},
	}}
}

func (rt *Router) broadcast(senderName string, sender *Conn, text string) Result {
	if text == "" {
		return reply(sender, protocol.ErrorLine("Uso: /broadcast <mensaje>"))
	}
	rt.activity.Append(senderName, BroadcastRecipient, text)
	return Result{Broadcast: protocol.BroadcastFromLine(senderName, text)}
}

func helpResponse() []string {
	lines := make([]string, len(helpLines))
	for i, l := range helpLines {
		lines[i] = protocol.InfoLine(l)
	}
	return lines
}

func reply(to *Conn, lines ...string) Result {
	out := make([]Outbound, len(lines))
	for i, l := range lines {
		out[i] = Outbound{To: to, Line: l}
	}
	return Result{Replies: out}
}

// splitToken returns the leading whitespace-delimited token of s and the
// remainder with its leading whitespace removed.
func splitToken(s string) (string, string) {
	s = strings.TrimLeft(s, " \t")
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimLeft(s[i:], " \t")
}

// FormatDuration renders d as hh:mm:ss.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs%3600)/60, secs%60)
}
