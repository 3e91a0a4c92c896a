package realtime

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/analyticket/analyticket/internal/models"
)

func postgresURL(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	url := os.Getenv("ANALYTICKET_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("ANALYTICKET_TEST_DATABASE_URL not set")
	}
	return url
}

func TestPgChannelQuotesName(t *testing.T) {
	assert.Equal(t, `"rt:table:tickets"`, pgChannel("table:tickets"))
	assert.Equal(t, `"rt:a""b"`, pgChannel(`a"b`))
}

func TestNewPostgresTransportRejectsBadURL(t *testing.T) {
	_, err := NewPostgresTransport("postgres://%zz")
	require.Error(t, err)
}

func TestPostgresTransportListenNotify(t *testing.T) {
	tr, err := NewPostgresTransport(postgresURL(t))
	require.NoError(t, err)
	defer tr.Close()
	ctx := context.Background()

	s, err := tr.Open(ctx, ChannelName("tickets", ""))
	require.NoError(t, err)
	defer s.Close()
	waitStatus(t, s, models.StatusConnected)

	require.NoError(t, tr.Publish(ctx, ChannelName("tickets", ""), models.RealtimeEvent{
		Type: models.EventUpdate, Table: "tickets", RecordID: "t9",
	}))

	select {
	case ev := <-s.Events():
		assert.Equal(t, "t9", ev.RecordID)
		assert.Equal(t, models.EventUpdate, ev.Type)
	case <-time.After(5 * time.Second):
		t.Fatal("no notification received")
	}
}
