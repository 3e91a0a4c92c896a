package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/analyticket/analyticket/internal/models"
)

// syncBuffer is a bytes.Buffer read under the lineWriter's lock.
type syncBuffer struct {
	buf bytes.Buffer
	w   *lineWriter
}

func newSyncBuffer() *syncBuffer {
	b := &syncBuffer{}
	b.w = newLineWriter(&b.buf)
	return b
}

func (b *syncBuffer) lines() []watchLine {
	b.w.mu.Lock()
	defer b.w.mu.Unlock()

	var out []watchLine
	for _, raw := range strings.Split(strings.TrimSpace(b.buf.String()), "\n") {
		if raw == "" {
			continue
		}
		var l watchLine
		if json.Unmarshal([]byte(raw), &l) == nil {
			out = append(out, l)
		}
	}
	return out
}

func (b *syncBuffer) has(match func(watchLine) bool) bool {
	for _, l := range b.lines() {
		if match(l) {
			return true
		}
	}
	return false
}

func TestChangeInvalidations(t *testing.T) {
	tests := []struct {
		name string
		ev   models.RealtimeEvent
		want []string
	}{
		{"ticket update", models.RealtimeEvent{Type: models.EventUpdate, Table: "tickets", RecordID: "t1"}, []string{"tickets:list:", "tickets:t1"}},
		{"ticket insert without id", models.RealtimeEvent{Type: models.EventInsert, Table: "tickets"}, []string{"tickets:list:"}},
		{"message", models.RealtimeEvent{Type: models.EventInsert, Table: "ticket_messages"}, []string{"tickets:"}},
		{"notification", models.RealtimeEvent{Type: models.EventDelete, Table: "notifications"}, []string{"notifications:"}},
		{"typing", models.RealtimeEvent{Type: models.EventTyping, Table: "tickets"}, nil},
		{"unknown table", models.RealtimeEvent{Type: models.EventUpdate, Table: "users"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, changeInvalidations(tt.ev))
		})
	}
}

func TestWatchChannels(t *testing.T) {
	cmd := NewWatchCmd()
	require.NoError(t, cmd.Flags().Set("table", "ticket_messages"))
	require.NoError(t, cmd.Flags().Set("filter", "ticket_id=eq.42"))
	got, err := watchChannels(cmd, []string{"presence:t42", "presence:t42"})
	require.NoError(t, err)
	assert.Equal(t, []string{"presence:t42", "table:ticket_messages:ticket_id=eq.42"}, got)

	cmd = NewWatchCmd()
	_, err = watchChannels(cmd, nil)
	require.Error(t, err)

	cmd = NewWatchCmd()
	require.NoError(t, cmd.Flags().Set("filter", "x=eq.1"))
	_, err = watchChannels(cmd, []string{"a"})
	require.Error(t, err)
}

func TestRunWatchStreamsStatusEventsAndInvalidates(t *testing.T) {
	rt, _ := newTestRuntime(t)
	manager, pub, err := rt.Realtime()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, rt.cache.Set(ctx, "tickets:list:::50", []byte("v")))

	out := newSyncBuffer()
	done := make(chan error, 1)
	go func() {
		done <- runWatch(ctx, rt, manager, []string{"table:tickets"}, true, out.w)
	}()

	require.Eventually(t, func() bool {
		return out.has(func(l watchLine) bool { return l.Kind == "status" && l.Status == models.StatusConnected })
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, pub.Publish(ctx, "table:tickets", models.RealtimeEvent{
		Type: models.EventUpdate, Table: "tickets", RecordID: "t1",
	}))
	require.NoError(t, pub.Publish(ctx, "table:tickets", models.RealtimeEvent{
		Type: models.EventTyping, Sender: "agent-7",
	}))

	require.Eventually(t, func() bool {
		return out.has(func(l watchLine) bool {
			return l.Kind == "event" && l.Event != nil && l.Event.Type == models.EventTyping &&
				assert.ObjectsAreEqual([]string{"agent-7"}, l.Typing)
		})
	}, 5*time.Second, 10*time.Millisecond)

	require.True(t, out.has(func(l watchLine) bool {
		return l.Kind == "event" && l.Event != nil && l.Event.RecordID == "t1"
	}))
	_, ok := rt.cache.Get(ctx, "tickets:list:::50")
	assert.False(t, ok, "change events drop cached list views")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
	assert.Equal(t, 0, manager.RefCount("table:tickets"))
}
