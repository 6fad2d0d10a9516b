package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type routerFixture struct {
	reg      *Registry
	activity *ActivityLog
	router   *Router
	alice    *Conn
	bob      *Conn
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	reg := NewRegistry(8, 0, discardLogger())
	activity := NewActivityLog(10, 0)
	f := &routerFixture{
		reg:      reg,
		activity: activity,
		router:   NewRouter(reg, activity, discardLogger()),
	}
	f.alice, _ = pipeConn(t)
	f.bob, _ = pipeConn(t)
	_, err := reg.Register(f.alice, "alice")
	require.NoError(t, err)
	_, err = reg.Register(f.bob, "bob")
	require.NoError(t, err)
	return f
}

func lines(out []Outbound) []string {
	s := make([]string, len(out))
	for i, o := range out {
		s[i] = o.Line
	}
	return s
}

func TestRouter_DirectMessage(t *testing.T) {
	f := newRouterFixture(t)

	res := f.router.Route("alice", f.alice, "/msg bob hello")
	require.Len(t, res.Replies, 2)
	assert.Same(t, f.bob, res.Replies[0].To)
	assert.Equal(t, "MSG_FROM:alice: hello", res.Replies[0].Line)
	assert.Same(t, f.alice, res.Replies[1].To)
	assert.Equal(t, "INFO:Mensaje enviado a bob", res.Replies[1].Line)
	assert.False(t, res.Disconnect)

	entries := f.activity.Snapshot()
	require.Len(t, entries, 1)
	assert.Equal(t, ActivityEntry{From: "alice", To: "bob", Body: "hello", At: entries[0].At}, entries[0])
}

func TestRouter_DirectMessageKeepsInnerWhitespace(t *testing.T) {
	f := newRouterFixture(t)
	res := f.router.Route("alice", f.alice, "/msg   bob   hello  there")
	require.Len(t, res.Replies, 2)
	assert.Equal(t, "MSG_FROM:alice: hello  there", res.Replies[0].Line)
}

func TestRouter_DirectMessageUnknownPeer(t *testing.T) {
	f := newRouterFixture(t)

	res := f.router.Route("alice", f.alice, "/msg carol hi")
	require.Len(t, res.Replies, 1)
	assert.Same(t, f.alice, res.Replies[0].To)
	assert.Contains(t, res.Replies[0].Line, "ERROR:")
	assert.Contains(t, res.Replies[0].Line, "carol")
	assert.Empty(t, res.Broadcast)
	assert.Zero(t, f.activity.Len())
}

func TestRouter_DirectMessageUsage(t *testing.T) {
	f := newRouterFixture(t)
	for _, line := range []string{"/msg", "/msg bob", "/msg bob   "} {
		res := f.router.Route("alice", f.alice, line)
		require.Len(t, res.Replies, 1, line)
		assert.Equal(t, "ERROR:Uso: /msg <nick> <mensaje>", res.Replies[0].Line, line)
	}
	assert.Zero(t, f.activity.Len())
}

func TestRouter_List(t *testing.T) {
	f := newRouterFixture(t)

	res := f.router.Route("bob", f.bob, "/list")
	got := lines(res.Replies)
	require.Len(t, got, 4)
	assert.Equal(t, "LIST_START", got[0])
	assert.Regexp(t, `^LIST_ITEM:alice - conectado \d\d:\d\d:\d\d$`, got[1])
	assert.Regexp(t, `^LIST_ITEM:bob - `, got[2])
	assert.Equal(t, "LIST_END", got[3])
	for _, o := range res.Replies {
		assert.Same(t, f.bob, o.To)
	}
}

func TestRouter_Broadcast(t *testing.T) {
	f := newRouterFixture(t)

	res := f.router.Route("alice", f.alice, "/broadcast hi all")
	assert.Empty(t, res.Replies)
	assert.Equal(t, "BROADCAST_FROM:alice: hi all", res.Broadcast)

	entries := f.activity.Snapshot()
	require.Len(t, entries, 1)
	assert.Equal(t, BroadcastRecipient, entries[0].To)

	res = f.router.Route("alice", f.alice, "/broadcast")
	require.Len(t, res.Replies, 1)
	assert.Equal(t, "ERROR:Uso: /broadcast <mensaje>", res.Replies[0].Line)
}

func TestRouter_HelpQuitUnknown(t *testing.T) {
	f := newRouterFixture(t)

	res := f.router.Route("alice", f.alice, "/help")
	require.NotEmpty(t, res.Replies)
	for _, o := range res.Replies {
		assert.Same(t, f.alice, o.To)
		assert.Regexp(t, `^INFO:`, o.Line)
	}

	res = f.router.Route("alice", f.alice, "/quit")
	assert.True(t, res.Disconnect)
	assert.Empty(t, res.Replies)

	for _, line := range []string{"hello", "/LIST", "/msgbob hi"} {
		res = f.router.Route("alice", f.alice, line)
		require.Len(t, res.Replies, 1, line)
		assert.Regexp(t, `^ERROR:Comando no reconocido`, res.Replies[0].Line)
	}
}

func TestRouter_DeliverBroadcastConfirmsCount(t *testing.T) {
	reg := NewRegistry(4, 0, discardLogger())
	router := NewRouter(reg, NewActivityLog(4, 0), discardLogger())
	alice, aliceEnd := pipeConn(t)
	bob, bobEnd := pipeConn(t)
	aliceLines := collect(aliceEnd)
	bobLines := collect(bobEnd)
	_, err := reg.Register(alice, "alice")
	require.NoError(t, err)
	_, err = reg.Register(bob, "bob")
	require.NoError(t, err)

	router.Deliver(alice, router.Route("alice", alice, "/broadcast yo"))
	assert.Equal(t, "BROADCAST_FROM:alice: yo", waitForPrefix(t, bobLines, "BROADCAST_FROM:"))
	assert.Equal(t, "INFO:Broadcast enviado a 1 clientes", waitForPrefix(t, aliceLines, "INFO:"))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "00:00:00", FormatDuration(0))
	assert.Equal(t, "01:01:05", FormatDuration(time.Hour+time.Minute+5*time.Second))
	assert.Equal(t, "00:00:00", FormatDuration(-time.Second))
}
