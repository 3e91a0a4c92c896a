// Package loading tracks the lifecycle of named asynchronous operations:
// idle → loading → success|error, with automatic retries for recoverable
// failures, a cooldown between retry triggers, and stale-response guarding.
package loading

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/analyticket/analyticket/internal/clock"
	"github.com/analyticket/analyticket/internal/models"
	"github.com/analyticket/analyticket/internal/retry"
)

var (
	// ErrDisposed is returned by every call on a disposed machine.
	ErrDisposed = errors.New("loading: machine disposed")
	// ErrStale is returned to a caller whose response was discarded because a
	// newer attempt or a Reset superseded it.
	ErrStale = errors.New("loading: response superseded")
)

// Op is one attempt of the tracked operation.
type Op[T any] func(ctx context.Context) (T, error)

// Listener observes state changes. It receives a copy of the state.
type Listener func(models.LoadingState)

type listenerEntry struct {
	id int
	fn Listener
}

// Machine is the state machine for one operation. It is safe for concurrent
// use.
type Machine[T any] struct {
	id       string
	policy   *retry.Policy
	clock    clock.Clock
	logger   *slog.Logger
	classify func(error, time.Time) models.ErrorRecord
	group    *singleflight.Group

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	state       models.LoadingState
	result      T
	hasResult   bool
	op          Op[T]
	seq         uint64
	applied     uint64
	floor       uint64
	timer       clock.Timer
	timerGen    uint64
	lastTrigger time.Time
	listeners   []listenerEntry
	nextID      int
	changed     chan struct{}
	disposed    bool
}

// New returns an idle machine for operationID.
func New[T any](operationID string, opts ...Option) *Machine[T] {
	cfg := newConfig(opts)
	return newMachine[T](operationID, cfg, &singleflight.Group{})
}

func newMachine[T any](operationID string, cfg config, group *singleflight.Group) *Machine[T] {
	ctx, cancel := context.WithCancel(context.Background())
	return &Machine[T]{
		id:       operationID,
		policy:   cfg.policy,
		clock:    cfg.clock,
		logger:   cfg.logger.With("operation_id", operationID),
		classify: cfg.classify,
		group:    group,
		ctx:      ctx,
		cancel:   cancel,
		state:    models.LoadingState{Phase: models.PhaseIdle, OperationID: operationID},
		changed:  make(chan struct{}),
	}
}

// ID returns the operation id.
func (m *Machine[T]) ID() string { return m.id }

// State returns a snapshot of the current state.
func (m *Machine[T]) State() models.LoadingState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Result returns the value of the last applied successful attempt.
func (m *Machine[T]) Result() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.result, m.hasResult
}

// Subscribe registers l and returns a function that removes it. Listeners
// run synchronously in the goroutine that made the transition, in
// registration order, after the machine lock is released.
func (m *Machine[T]) Subscribe(l Listener) (cancel func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	m.listeners = append(m.listeners, listenerEntry{id: id, fn: l})

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			for i, e := range m.listeners {
				if e.id == id {
					m.listeners = append(m.listeners[:i:i], m.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// Run executes op, starting a new retry cycle. A Run issued while another
// attempt for the same operation is in flight joins that attempt and receives
// its outcome; the joiner's ctx is not used. On a recoverable failure an
// automatic retry of op is scheduled until MaxRetries failures accumulate.
func (m *Machine[T]) Run(ctx context.Context, op Op[T]) (T, error) {
	var zero T
	if op == nil {
		return zero, errors.New("loading: nil op")
	}
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return zero, ErrDisposed
	}
	m.op = op
	m.mu.Unlock()

	v, err, _ := m.group.Do(m.id, func() (any, error) {
		return m.attempt(ctx, op, true)
	})
	if err != nil {
		return zero, err
	}
	res, _ := v.(T)
	return res, nil
}

// Retry triggers a manual retry of the last op. It reports false and does
// nothing unless the machine is in the error phase with no retry pending and
// the cooldown since the previous retry trigger has elapsed. A manual retry
// starts a fresh cycle with RetryCount back at zero.
func (m *Machine[T]) Retry() bool {
	m.mu.Lock()
	if m.disposed || m.op == nil || m.state.Phase != models.PhaseError || m.state.RetryScheduled {
		m.mu.Unlock()
		return false
	}
	now := m.clock.Now()
	if !m.lastTrigger.IsZero() && now.Sub(m.lastTrigger) < m.policy.Cooldown() {
		m.mu.Unlock()
		return false
	}
	m.lastTrigger = now
	m.state.RetryCount = 0
	m.state.RetryScheduled = true
	m.state.NextRetryAt = now
	m.timerGen++
	gen := m.timerGen
	snap, ls := m.transitionLocked()
	m.mu.Unlock()

	m.notify(ls, snap)
	m.logger.Debug("manual retry triggered")

	go m.fire(gen, true)
	return true
}

// Reset returns the machine to idle, cancels any pending retry and discards
// the responses of attempts still in flight.
func (m *Machine[T]) Reset() {
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return
	}
	m.stopTimerLocked()
	m.floor = m.seq
	m.lastTrigger = time.Time{}
	m.state = models.LoadingState{Phase: models.PhaseIdle, OperationID: m.id, Seq: m.seq}
	snap, ls := m.transitionLocked()
	m.mu.Unlock()

	m.group.Forget(m.id)
	m.notify(ls, snap)
}

// Await blocks until the state is terminal (success, idle, or an error with
// no retry pending) or ctx is done.
func (m *Machine[T]) Await(ctx context.Context) (models.LoadingState, error) {
	for {
		m.mu.Lock()
		if m.disposed {
			m.mu.Unlock()
			return models.LoadingState{}, ErrDisposed
		}
		if m.state.Terminal() {
			s := m.snapshotLocked()
			m.mu.Unlock()
			return s, nil
		}
		ch := m.changed
		m.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return m.State(), ctx.Err()
		}
	}
}

// Dispose cancels pending timers and in-flight attempts. Further calls return
// ErrDisposed. Dispose is idempotent.
func (m *Machine[T]) Dispose() {
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return
	}
	m.disposed = true
	m.stopTimerLocked()
	m.listeners = nil
	close(m.changed)
	m.mu.Unlock()

	m.cancel()
	m.group.Forget(m.id)
}

func (m *Machine[T]) attempt(ctx context.Context, op Op[T], fresh bool) (T, error) {
	var zero T

	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return zero, ErrDisposed
	}
	m.stopTimerLocked()
	m.seq++
	seq := m.seq
	now := m.clock.Now()
	if fresh {
		m.state.RetryCount = 0
		m.state.StartedAt = now
	}
	m.state.Phase = models.PhaseLoading
	m.state.Seq = seq
	m.state.LastAttemptAt = now
	m.state.RetryScheduled = false
	m.state.NextRetryAt = time.Time{}
	snap, ls := m.transitionLocked()
	m.mu.Unlock()

	m.notify(ls, snap)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(m.ctx, cancel)
	defer stop()

	val, err := op(runCtx)
	return m.complete(seq, val, err)
}

func (m *Machine[T]) complete(seq uint64, val T, opErr error) (T, error) {
	var zero T

	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return zero, ErrDisposed
	}
	if seq <= m.applied || seq <= m.floor {
		m.mu.Unlock()
		m.logger.Debug("discarding stale response", "seq", seq)
		return zero, ErrStale
	}
	m.applied = seq
	now := m.clock.Now()

	if opErr == nil {
		m.result = val
		m.hasResult = true
		m.state.Phase = models.PhaseSuccess
		m.state.RetryCount = 0
		m.state.LastError = nil
		snap, ls := m.transitionLocked()
		m.mu.Unlock()
		m.notify(ls, snap)
		return val, nil
	}

	rec := m.classify(opErr, now)
	if m.state.RetryCount < m.policy.MaxRetries() {
		m.state.RetryCount++
	}
	m.state.Phase = models.PhaseError
	m.state.LastError = &rec

	if rec.Recoverable && m.state.RetryCount < m.policy.MaxRetries() {
		delay := m.policy.Delay(m.state.RetryCount - 1)
		if !m.lastTrigger.IsZero() {
			if remaining := m.policy.Cooldown() - now.Sub(m.lastTrigger); remaining > delay {
				delay = remaining
			}
		}
		m.state.RetryScheduled = true
		m.state.NextRetryAt = now.Add(delay)
		m.timerGen++
		gen := m.timerGen

		snap, ls := m.transitionLocked()
		m.mu.Unlock()
		m.notify(ls, snap)
		m.logger.Debug("scheduling retry",
			"kind", rec.Kind, "retry_count", snap.RetryCount, "delay", delay)
		m.schedule(gen, delay)
		return zero, opErr
	}

	m.logger.Warn("operation failed",
		"kind", rec.Kind, "retry_count", m.state.RetryCount, "error", rec.Message)
	snap, ls := m.transitionLocked()
	m.mu.Unlock()
	m.notify(ls, snap)
	return zero, opErr
}

// schedule arms the retry timer for generation gen. It must be called without
// the lock held: a clock may run f before AfterFunc returns.
func (m *Machine[T]) schedule(gen uint64, delay time.Duration) {
	if delay <= 0 {
		// The scheduling attempt is still inside group.Do.
		go m.fire(gen, false)
		return
	}
	t := m.clock.AfterFunc(delay, func() { m.fire(gen, false) })

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.timerGen || m.disposed {
		t.Stop()
		return
	}
	m.timer = t
}

// fire runs the retry armed for generation gen. Automatic retries continue
// the current cycle; manual ones start a new one.
func (m *Machine[T]) fire(gen uint64, fresh bool) {
	m.mu.Lock()
	if m.disposed || gen != m.timerGen || !m.state.RetryScheduled {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	m.lastTrigger = m.clock.Now()
	op := m.op
	m.mu.Unlock()

	for {
		ran := false
		_, _, _ = m.group.Do(m.id, func() (any, error) {
			ran = true
			return m.attempt(m.ctx, op, fresh)
		})
		if ran {
			return
		}
		// Joined a call that was still returning, possibly the one that
		// scheduled this retry. Go again unless something superseded it.
		m.mu.Lock()
		pending := !m.disposed && gen == m.timerGen && m.state.RetryScheduled
		m.mu.Unlock()
		if !pending {
			return
		}
	}
}

func (m *Machine[T]) stopTimerLocked() {
	m.timerGen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Machine[T]) snapshotLocked() models.LoadingState {
	s := m.state
	if s.LastError != nil {
		rec := *s.LastError
		s.LastError = &rec
	}
	return s
}

// transitionLocked wakes Await callers and returns what notify needs.
func (m *Machine[T]) transitionLocked() (models.LoadingState, []Listener) {
	close(m.changed)
	m.changed = make(chan struct{})

	ls := make([]Listener, len(m.listeners))
	for i, e := range m.listeners {
		ls[i] = e.fn
	}
	return m.snapshotLocked(), ls
}

func (m *Machine[T]) notify(ls []Listener, s models.LoadingState) {
	for _, l := range ls {
		l(s)
	}
}
