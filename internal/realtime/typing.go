package realtime

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/analyticket/analyticket/internal/clock"
	"github.com/analyticket/analyticket/internal/models"
)

// TypingTimeout is how long a typing indicator stays visible without a
// refresh.
const TypingTimeout = 5 * time.Second

type typingPayload struct {
	Typing bool `json:"typing"`
}

// TypingEvent builds the event a client publishes while its user types.
func TypingEvent(sender string, typing bool) models.RealtimeEvent {
	payload, _ := json.Marshal(typingPayload{Typing: typing})
	return models.RealtimeEvent{Type: models.EventTyping, Sender: sender, Payload: payload}
}

// TypingTracker keeps who is typing on each channel. Feed it events with
// Observe; entries lapse TypingTimeout after the last typing event.
type TypingTracker struct {
	clock clock.Clock

	mu     sync.Mutex
	expiry map[string]map[string]time.Time
}

// NewTypingTracker returns an empty tracker.
func NewTypingTracker(clk clock.Clock) *TypingTracker {
	if clk == nil {
		clk = clock.Real()
	}
	return &TypingTracker{clock: clk, expiry: make(map[string]map[string]time.Time)}
}

// Observe records ev if it is a typing event. A payload of {"typing":false}
// clears the sender immediately; an empty payload counts as typing.
func (t *TypingTracker) Observe(ev models.RealtimeEvent) {
	if ev.Type != models.EventTyping || ev.Sender == "" {
		return
	}
	p := typingPayload{Typing: true}
	if len(ev.Payload) > 0 {
		_ = json.Unmarshal(ev.Payload, &p)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	users := t.expiry[ev.Channel]
	if !p.Typing {
		delete(users, ev.Sender)
		return
	}
	if users == nil {
		users = make(map[string]time.Time)
		t.expiry[ev.Channel] = users
	}
	users[ev.Sender] = t.clock.Now().Add(TypingTimeout)
}

// Typing returns the senders currently typing on channel, sorted.
func (t *TypingTracker) Typing(channel string) []string {
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()
	users := t.expiry[channel]
	var out []string
	for user, exp := range users {
		if now.After(exp) {
			delete(users, user)
			continue
		}
		out = append(out, user)
	}
	if len(users) == 0 {
		delete(t.expiry, channel)
	}
	sort.Strings(out)
	return out
}
