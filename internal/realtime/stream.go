package realtime

import (
	"context"
	"sync"

	"github.com/analyticket/analyticket/internal/models"
)

const eventBuffer = 64

// pipe is the Stream shared by the transports. A single goroutine owns the
// write side and calls finish when it exits.
type pipe struct {
	events chan models.RealtimeEvent
	status chan models.ConnectionStatus
	cancel context.CancelFunc
	done   chan struct{}

	closeOnce sync.Once
	closeErr  error
	onClose   func() error
}

func newPipe(parent context.Context) (*pipe, context.Context) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	return &pipe{
		events: make(chan models.RealtimeEvent, eventBuffer),
		status: make(chan models.ConnectionStatus, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}, ctx
}

func (p *pipe) Events() <-chan models.RealtimeEvent    { return p.events }
func (p *pipe) Status() <-chan models.ConnectionStatus { return p.status }

func (p *pipe) Close() error {
	p.closeOnce.Do(func() {
		p.cancel()
		if p.onClose != nil {
			p.closeErr = p.onClose()
		}
		<-p.done
	})
	return p.closeErr
}

// setStatus replaces any unread status with st.
func (p *pipe) setStatus(st models.ConnectionStatus) {
	select {
	case <-p.status:
	default:
	}
	p.status <- st
}

// emit delivers ev unless ctx is done first.
func (p *pipe) emit(ctx context.Context, ev models.RealtimeEvent) bool {
	select {
	case p.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (p *pipe) finish() {
	p.setStatus(models.StatusClosed)
	close(p.events)
	close(p.status)
	close(p.done)
}
