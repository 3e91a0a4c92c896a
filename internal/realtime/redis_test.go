package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/analyticket/analyticket/internal/models"
)

func newRedisTransport(t *testing.T) (*RedisTransport, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisTransport(client), mr
}

func waitStatus(t *testing.T, s Stream, want models.ConnectionStatus) {
	t.Helper()
	timeout := time.After(waitFor)
	for {
		select {
		case st, ok := <-s.Status():
			require.True(t, ok, "status channel closed before %s", want)
			if st == want {
				return
			}
		case <-timeout:
			t.Fatalf("timed out waiting for status %s", want)
		}
	}
}

func TestRedisTransportDeliversPublishedEvents(t *testing.T) {
	tr, _ := newRedisTransport(t)
	ctx := context.Background()

	s, err := tr.Open(ctx, "table:tickets")
	require.NoError(t, err)
	defer s.Close()
	waitStatus(t, s, models.StatusConnected)

	payload, _ := json.Marshal(map[string]string{"title": "Printer on fire"})
	require.NoError(t, tr.Publish(ctx, "table:tickets", models.RealtimeEvent{
		Type: models.EventInsert, Table: "tickets", RecordID: "t1", Payload: payload,
	}))

	select {
	case ev := <-s.Events():
		assert.Equal(t, "table:tickets", ev.Channel)
		assert.Equal(t, models.EventInsert, ev.Type)
		assert.Equal(t, "t1", ev.RecordID)
		assert.JSONEq(t, string(payload), string(ev.Payload))
		assert.False(t, ev.ReceivedAt.IsZero())
	case <-time.After(waitFor):
		t.Fatal("no event received")
	}
}

func TestRedisTransportUsesPrefixedChannel(t *testing.T) {
	tr, mr := newRedisTransport(t)

	s, err := tr.Open(context.Background(), "c")
	require.NoError(t, err)
	defer s.Close()
	waitStatus(t, s, models.StatusConnected)

	assert.Equal(t, []string{"rt:c"}, mr.PubSubChannels(""))
}

func TestRedisTransportSkipsUndecodableMessages(t *testing.T) {
	tr, mr := newRedisTransport(t)
	ctx := context.Background()

	s, err := tr.Open(ctx, "c")
	require.NoError(t, err)
	defer s.Close()
	waitStatus(t, s, models.StatusConnected)

	mr.Publish("rt:c", "not json")
	require.NoError(t, tr.Publish(ctx, "c", models.RealtimeEvent{Type: models.EventMessage, RecordID: "m1"}))

	select {
	case ev := <-s.Events():
		assert.Equal(t, "m1", ev.RecordID)
	case <-time.After(waitFor):
		t.Fatal("no event received")
	}
}

func TestRedisTransportCloseEndsStream(t *testing.T) {
	tr, _ := newRedisTransport(t)

	s, err := tr.Open(context.Background(), "c")
	require.NoError(t, err)
	waitStatus(t, s, models.StatusConnected)

	_ = s.Close()
	waitStatus(t, s, models.StatusClosed)
	_, ok := <-s.Events()
	assert.False(t, ok)
}

func TestRedisTransportThroughManager(t *testing.T) {
	tr, _ := newRedisTransport(t)
	m := NewManager(tr)
	defer m.Close()
	ctx := context.Background()

	var a, b recorder
	ha, err := m.Subscribe(ctx, "c", a.record)
	require.NoError(t, err)
	_, err = m.Subscribe(ctx, "c", b.record)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return m.Status("c") == models.StatusConnected }, waitFor, tick)

	require.NoError(t, tr.Publish(ctx, "c", models.RealtimeEvent{Type: models.EventReaction, Sender: "bob"}))
	require.Eventually(t, func() bool { return a.count() == 1 && b.count() == 1 }, waitFor, tick)

	require.NoError(t, ha.Unsubscribe())
	require.NoError(t, tr.Publish(ctx, "c", models.RealtimeEvent{Type: models.EventReaction, Sender: "bob"}))
	require.Eventually(t, func() bool { return b.count() == 2 }, waitFor, tick)
	assert.Equal(t, 1, a.count())
}

func TestRedisTransportRejectsEmptyChannel(t *testing.T) {
	tr, _ := newRedisTransport(t)
	_, err := tr.Open(context.Background(), "")
	require.Error(t, err)
	require.Error(t, tr.Publish(context.Background(), "", models.RealtimeEvent{}))
}
