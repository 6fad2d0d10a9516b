package chat

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestActivityLog_KeepsMostRecent(t *testing.T) {
	l := NewActivityLog(3, 0)
	for i := 0; i < 5; i++ {
		l.Append("alice", "bob", fmt.Sprintf("m%d", i))
	}

	got := l.Snapshot()
	require.Len(t, got, 3)
	assert.Equal(t, "m2", got[0].Body)
	assert.Equal(t, "m3", got[1].Body)
	assert.Equal(t, "m4", got[2].Body)
}

func TestActivityLog_PartiallyFilled(t *testing.T) {
	l := NewActivityLog(10, 0)
	l.Append("alice", BroadcastRecipient, "hi all")

	got := l.Snapshot()
	require.Len(t, got, 1)
	assert.Equal(t, "alice", got[0].From)
	assert.Equal(t, BroadcastRecipient, got[0].To)
	assert.False(t, got[0].At.IsZero())
}

func TestActivityLog_TruncatesBody(t *testing.T) {
	l := NewActivityLog(2, 8)
	l.Append("a", "b", strings.Repeat("x", 100))
	assert.Equal(t, "xxxxxxxx", l.Snapshot()[0].Body)
}

func TestActivityLog_FIFOEviction(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		capacity := rapid.IntRange(1, 12).Draw(rt, "capacity")
		k := rapid.IntRange(0, 50).Draw(rt, "inserts")

		l := NewActivityLog(capacity, 0)
		for i := 0; i < k; i++ {
			l.Append("s", "r", fmt.Sprint(i))
		}

		want := k
		if want > capacity {
			want = capacity
		}
		got := l.Snapshot()
		if len(got) != want || l.Len() != want {
			rt.Fatalf("len %d (Len %d), want %d", len(got), l.Len(), want)
		}
		for j, e := range got {
			if e.Body != fmt.Sprint(k-want+j) {
				rt.Fatalf("entry %d = %q, want %d", j, e.Body, k-want+j)
			}
		}
	})
}
