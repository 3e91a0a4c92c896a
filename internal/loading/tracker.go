package loading

import (
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/analyticket/analyticket/internal/models"
)

type disposer interface {
	Dispose()
	State() models.LoadingState
}

// Tracker owns one Machine per operation id. Machines share the tracker's
// policy, clock, logger and classifier.
type Tracker struct {
	cfg   config
	group singleflight.Group

	mu       sync.Mutex
	machines map[string]disposer
	closed   bool
}

// NewTracker returns an empty tracker.
func NewTracker(opts ...Option) *Tracker {
	return &Tracker{
		cfg:      newConfig(opts),
		machines: make(map[string]disposer),
	}
}

// For returns the machine for operationID, creating it on first use. It fails
// if the id is already tracked with a different result type or the tracker
// is closed.
func For[T any](t *Tracker, operationID string) (*Machine[T], error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrDisposed
	}
	if existing, ok := t.machines[operationID]; ok {
		m, ok := existing.(*Machine[T])
		if !ok {
			return nil, fmt.Errorf("loading: operation %q already tracked with result type %T", operationID, existing)
		}
		return m, nil
	}
	m := newMachine[T](operationID, t.cfg, &t.group)
	t.machines[operationID] = m
	return m, nil
}

// Machine returns an untyped machine for operationID.
func (t *Tracker) Machine(operationID string) (*Machine[any], error) {
	return For[any](t, operationID)
}

// Release disposes and forgets the machine for operationID.
func (t *Tracker) Release(operationID string) {
	t.mu.Lock()
	m, ok := t.machines[operationID]
	delete(t.machines, operationID)
	t.mu.Unlock()
	if ok {
		m.Dispose()
	}
}

// States returns a snapshot of every tracked machine, sorted by id.
func (t *Tracker) States() []models.LoadingState {
	t.mu.Lock()
	ms := make([]disposer, 0, len(t.machines))
	for _, m := range t.machines {
		ms = append(ms, m)
	}
	t.mu.Unlock()

	out := make([]models.LoadingState, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.State())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OperationID < out[j].OperationID })
	return out
}

// Close disposes every machine. Later For calls return ErrDisposed.
func (t *Tracker) Close() {
	t.mu.Lock()
	ms := t.machines
	t.machines = make(map[string]disposer)
	t.closed = true
	t.mu.Unlock()

	for _, m := range ms {
		m.Dispose()
	}
}
