package models

import (
	"errors"
	"time"
)

// Phase is the lifecycle position of a tracked operation.
type Phase string

// Phase constants.
const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseSuccess Phase = "success"
	PhaseError   Phase = "error"
)

// LoadingState is the observable state of one operation. Listeners receive
// copies; mutating one has no effect on the machine.
type LoadingState struct {
	Phase          Phase        `json:"phase"`
	OperationID    string       `json:"operation_id"`
	RetryCount     int          `json:"retry_count"`
	LastError      *ErrorRecord `json:"last_error,omitempty"`
	StartedAt      time.Time    `json:"started_at"`
	LastAttemptAt  time.Time    `json:"last_attempt_at"`
	Seq            uint64       `json:"seq"`
	RetryScheduled bool         `json:"retry_scheduled"`
	NextRetryAt    time.Time    `json:"next_retry_at,omitempty"`
}

// Terminal reports whether the state will not change without caller action.
func (s LoadingState) Terminal() bool {
	switch s.Phase {
	case PhaseSuccess, PhaseIdle:
		return true
	case PhaseError:
		return !s.RetryScheduled
	default:
		return false
	}
}

// RetryPolicy configures automatic retries. It is shared by every call site.
type RetryPolicy struct {
	MaxRetries int           `json:"max_retries" yaml:"max_retries"`
	BaseDelay  time.Duration `json:"base_delay" yaml:"base_delay"`
	Multiplier float64       `json:"multiplier" yaml:"multiplier"`
	Cooldown   time.Duration `json:"cooldown" yaml:"cooldown"`
	// MaxDelay caps a single backoff interval. Zero means uncapped.
	MaxDelay time.Duration `json:"max_delay,omitempty" yaml:"max_delay"`
}

// DefaultRetryPolicy returns the policy used when nothing is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		Multiplier: 2,
		Cooldown:   2 * time.Second,
		MaxDelay:   30 * time.Second,
	}
}

// Validate rejects policies that cannot produce a sane schedule.
func (p RetryPolicy) Validate() error {
	if p.MaxRetries < 0 {
		return errors.New("max_retries must be >= 0")
	}
	if p.BaseDelay < 0 {
		return errors.New("base_delay must be >= 0")
	}
	if p.Multiplier < 1 {
		return errors.New("multiplier must be >= 1")
	}
	if p.Cooldown < 0 {
		return errors.New("cooldown must be >= 0")
	}
	if p.MaxDelay < 0 {
		return errors.New("max_delay must be >= 0")
	}
	return nil
}
