// Package protocol defines the line-oriented wire format shared by the chat
// server and its clients.
package protocol

import (
	"fmt"
	"strings"
)

// Client commands.
const (
	CmdList      = "/list"
	CmdMsg       = "/msg"
	CmdBroadcast = "/broadcast"
	CmdHelp      = "/help"
	CmdQuit      = "/quit"
)

// Server response prefixes. Every server line starts with exactly one of them.
const (
	ListStart     = "LIST_START"
	ListItem      = "LIST_ITEM:"
	ListEnd       = "LIST_END"
	Info          = "INFO:"
	Error         = "ERROR:"
	MsgFrom       = "MSG_FROM:"
	BroadcastFrom = "BROADCAST_FROM:"
)

const (
	MaxNameLength    = 31
	MaxMessageLength = 1024
)

// Kind classifies a server line.
type Kind int

const (
	KindUnknown Kind = iota
	KindListStart
	KindListItem
	KindListEnd
	KindInfo
	KindError
	KindMsgFrom
	KindBroadcastFrom
)

func InfoLine(text string) string  { return Info + text }
func ErrorLine(text string) string { return Error + text }
func ListItemLine(text string) string {
	return ListItem + text
}

func MsgFromLine(sender, text string) string {
	return fmt.Sprintf("%s%s: %s", MsgFrom, sender, text)
}

func BroadcastFromLine(sender, text string) string {
	return fmt.Sprintf("%s%s: %s", BroadcastFrom, sender, text)
}

// Classify splits a server line into its kind and the payload after the prefix.
func Classify(line string) (Kind, string) {
	line = strings.TrimRight(line, "\r\n")
	switch {
	case line == ListStart:
		return KindListStart, ""
	case line == ListEnd:
		return KindListEnd, ""
	case strings.HasPrefix(line, ListItem):
		return KindListItem, line[len(ListItem):]
	case strings.HasPrefix(line, Info):
		return KindInfo, line[len(Info):]
	case strings.HasPrefix(line, Error):
		return KindError, line[len(Error):]
	case strings.HasPrefix(line, MsgFrom):
		return KindMsgFrom, line[len(MsgFrom):]
	case strings.HasPrefix(line, BroadcastFrom):
		return KindBroadcastFrom, line[len(BroadcastFrom):]
	}
	return KindUnknown, line
}

// Truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
