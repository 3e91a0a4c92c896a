// Package realtime multiplexes backend change notifications and peer events
// (typing, reactions) over one underlying subscription per channel name.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/analyticket/analyticket/internal/models"
)

// ErrClosed is returned after the manager or transport has been closed.
var ErrClosed = errors.New("realtime: closed")

// Stream is one open subscription. Events and Status are closed after Close
// returns. Status always holds the most recent value; intermediate values
// may be dropped if nobody is reading.
type Stream interface {
	Events() <-chan models.RealtimeEvent
	Status() <-chan models.ConnectionStatus
	Close() error
}

// Transport opens streams. Open must not wait on the network: connection
// progress and failures are reported through Stream.Status.
type Transport interface {
	Open(ctx context.Context, channel string) (Stream, error)
}

// Publisher is implemented by transports that can send events.
type Publisher interface {
	Publish(ctx context.Context, channel string, ev models.RealtimeEvent) error
}

// ChannelName returns the channel for changes on table, optionally narrowed
// by filter (for example "ticket_id=eq.42").
func ChannelName(table, filter string) string {
	if filter == "" {
		return "table:" + table
	}
	return "table:" + table + ":" + filter
}

func validateChannel(channel string) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("realtime: channel name is required")
	}
	return nil
}

func encodeEvent(channel string, ev models.RealtimeEvent) ([]byte, error) {
	ev.Channel = channel
	ev.ReceivedAt = time.Time{}
	return json.Marshal(ev)
}

func decodeEvent(channel string, payload []byte, now time.Time) (models.RealtimeEvent, error) {
	var ev models.RealtimeEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return models.RealtimeEvent{}, err
	}
	ev.Channel = channel
	ev.ReceivedAt = now
	return ev, nil
}
