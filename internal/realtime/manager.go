package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/analyticket/analyticket/internal/clock"
	"github.com/analyticket/analyticket/internal/models"
)

// StatusHandler observes connection status changes.
type StatusHandler func(channel string, status models.ConnectionStatus)

// Manager shares one Stream per channel name between any number of
// subscribers and tears it down when the last one leaves.
type Manager struct {
	transport Transport
	clock     clock.Clock
	logger    *slog.Logger
	onStatus  []StatusHandler

	mu       sync.Mutex
	channels map[string]*channelState
	closed   bool
}

type channelState struct {
	name    string
	stream  Stream
	handles []*Handle
	status  models.ConnectionStatus
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithStatusHandler registers fn for status changes on every channel.
func WithStatusHandler(fn StatusHandler) ManagerOption {
	return func(m *Manager) {
		if fn != nil {
			m.onStatus = append(m.onStatus, fn)
		}
	}
}

// WithClock sets the clock used to stamp events lacking ReceivedAt.
func WithClock(clk clock.Clock) ManagerOption {
	return func(m *Manager) {
		if clk != nil {
			m.clock = clk
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager returns a manager opening streams through transport.
func NewManager(transport Transport, opts ...ManagerOption) *Manager {
	m := &Manager{
		transport: transport,
		clock:     clock.Real(),
		logger:    slog.Default(),
		channels:  make(map[string]*channelState),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Handle is one subscriber's membership in a channel.
type Handle struct {
	id       string
	channel  string
	onEvent  func(models.RealtimeEvent)
	onStatus func(models.ConnectionStatus)
	manager  *Manager
	once     sync.Once
}

// ID returns the handle's unique id.
func (h *Handle) ID() string { return h.id }

// Channel returns the channel name.
func (h *Handle) Channel() string { return h.channel }

// Unsubscribe leaves the channel. The shared stream is closed when the last
// handle leaves. Calling it more than once has no effect.
func (h *Handle) Unsubscribe() error {
	var err error
	h.once.Do(func() { err = h.manager.release(h) })
	return err
}

// SubscribeOption configures one subscription.
type SubscribeOption func(*Handle)

// OnStatus registers fn for status changes on this subscription's channel.
func OnStatus(fn func(models.ConnectionStatus)) SubscribeOption {
	return func(h *Handle) { h.onStatus = fn }
}

// Subscribe joins channel, opening the underlying stream if this is the first
// subscriber. onEvent runs on the channel's delivery goroutine; events on one
// channel are delivered in order to handles in subscription order.
func (m *Manager) Subscribe(ctx context.Context, channel string, onEvent func(models.RealtimeEvent), opts ...SubscribeOption) (*Handle, error) {
	if err := validateChannel(channel); err != nil {
		return nil, err
	}
	if onEvent == nil {
		return nil, errors.New("realtime: onEvent is required")
	}
	h := &Handle{id: uuid.NewString(), channel: channel, onEvent: onEvent, manager: m}
	for _, opt := range opts {
		opt(h)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	if cs, ok := m.channels[channel]; ok {
		cs.handles = append(cs.handles, h)
		return h, nil
	}

	stream, err := m.transport.Open(ctx, channel)
	if err != nil {
		return nil, fmt.Errorf("open channel %s: %w", channel, err)
	}
	cs := &channelState{
		name:    channel,
		stream:  stream,
		handles: []*Handle{h},
		status:  models.StatusConnecting,
	}
	m.channels[channel] = cs
	m.logger.Debug("realtime channel opened", "channel", channel)

	go m.pumpEvents(cs)
	go m.pumpStatus(cs)
	return h, nil
}

// Status returns the channel's last reported status, or StatusIdle when no
// one is subscribed.
func (m *Manager) Status(channel string) models.ConnectionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cs, ok := m.channels[channel]; ok {
		return cs.status
	}
	return models.StatusIdle
}

// RefCount returns the number of live handles on channel.
func (m *Manager) RefCount(channel string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cs, ok := m.channels[channel]; ok {
		return len(cs.handles)
	}
	return 0
}

// Channels lists channels with at least one subscriber, sorted.
func (m *Manager) Channels() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.channels))
	for name := range m.channels {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Close tears down every channel. Later Subscribe calls return ErrClosed.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	channels := m.channels
	m.channels = make(map[string]*channelState)
	m.mu.Unlock()

	var errs []error
	for _, cs := range channels {
		if err := cs.stream.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", cs.name, err))
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) release(h *Handle) error {
	m.mu.Lock()
	cs, ok := m.channels[h.channel]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	for i, other := range cs.handles {
		if other == h {
			cs.handles = append(cs.handles[:i:i], cs.handles[i+1:]...)
			break
		}
	}
	if len(cs.handles) > 0 {
		m.mu.Unlock()
		return nil
	}
	delete(m.channels, h.channel)
	m.mu.Unlock()

	m.logger.Debug("realtime channel closed", "channel", h.channel)
	return cs.stream.Close()
}

// live returns cs's handles if cs is still the registered state for its
// channel.
func (m *Manager) live(cs *channelState) []*Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.channels[cs.name] != cs {
		return nil
	}
	return append([]*Handle(nil), cs.handles...)
}

func (m *Manager) pumpEvents(cs *channelState) {
	for ev := range cs.stream.Events() {
		if ev.ReceivedAt.IsZero() {
			ev.ReceivedAt = m.clock.Now()
		}
		if ev.Channel == "" {
			ev.Channel = cs.name
		}
		for _, h := range m.live(cs) {
			h.onEvent(ev)
		}
	}
}

func (m *Manager) pumpStatus(cs *channelState) {
	for st := range cs.stream.Status() {
		m.mu.Lock()
		cs.status = st
		m.mu.Unlock()

		for _, fn := range m.onStatus {
			fn(cs.name, st)
		}
		for _, h := range m.live(cs) {
			if h.onStatus != nil {
				h.onStatus(st)
			}
		}
	}
}
