package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RecoverableError is implemented by enriched errors that carry structured
// context and remediation hints. The classify and output packages both rely
// on it, which is why it lives here.
type RecoverableError interface {
	error
	ErrorCode() string
	Context() map[string]string
	SuggestedAction() string
}

// ErrorKind is the failure taxonomy used to pick a recovery strategy.
type ErrorKind string

// Error kinds.
const (
	ErrorKindNetwork    ErrorKind = "network"
	ErrorKindDatabase   ErrorKind = "database"
	ErrorKindPermission ErrorKind = "permission"
	ErrorKindTimeout    ErrorKind = "timeout"
	ErrorKindUnknown    ErrorKind = "unknown"
)

// Recoverable reports whether failures of this kind are retried automatically.
func (k ErrorKind) Recoverable() bool {
	return k == ErrorKindNetwork || k == ErrorKindTimeout
}

// UserMessage is the text shown in the error panel.
func (k ErrorKind) UserMessage() string {
	switch k {
	case ErrorKindNetwork:
		return "Unable to reach the server. Check your connection."
	case ErrorKindDatabase:
		return "The data could not be loaded because of a server-side query error."
	case ErrorKindPermission:
		return "You do not have permission to view this data."
	case ErrorKindTimeout:
		return "The request took too long to complete."
	default:
		return "Something went wrong while loading data."
	}
}

// Suggestion is the recovery hint paired with UserMessage.
func (k ErrorKind) Suggestion() string {
	switch k {
	case ErrorKindNetwork:
		return "Retrying automatically; cached data is shown meanwhile."
	case ErrorKindDatabase:
		return "Retry later or contact an administrator if the problem persists."
	case ErrorKindPermission:
		return "Sign in again or ask an administrator for access."
	case ErrorKindTimeout:
		return "Retrying automatically with a longer delay."
	default:
		return "Retry the operation."
	}
}

// ErrorRecord is a classified failure. It is a value type and never mutated
// after classification.
type ErrorRecord struct {
	Kind        ErrorKind `json:"kind"`
	Message     string    `json:"message"`
	OccurredAt  time.Time `json:"occurred_at"`
	Recoverable bool      `json:"recoverable"`
}

// FetchError is the tagged error returned by the data-access layer. Its Kind
// is authoritative; callers never need to inspect the wrapped error's shape.
type FetchError struct {
	Kind     ErrorKind
	Op       string
	Resource string
	Err      error
}

func (e *FetchError) Error() string {
	msg := string(e.Kind) + " error"
	if e.Err != nil {
		msg = e.Err.Error()
	}
	switch {
	case e.Op != "" && e.Resource != "":
		return fmt.Sprintf("%s %s: %s", e.Op, e.Resource, msg)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, msg)
	default:
		return msg
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) ErrorCode() string {
	return "FETCH_" + strings.ToUpper(string(e.Kind))
}

func (e *FetchError) Context() map[string]string {
	ctx := map[string]string{
		"kind":        string(e.Kind),
		"recoverable": strconv.FormatBool(e.Kind.Recoverable()),
	}
	if e.Op != "" {
		ctx["op"] = e.Op
	}
	if e.Resource != "" {
		ctx["resource"] = e.Resource
	}
	return ctx
}

func (e *FetchError) SuggestedAction() string { return e.Kind.Suggestion() }

// UserMessage is the end-user text for the failure's kind.
func (e *FetchError) UserMessage() string { return e.Kind.UserMessage() }

// SlogAttrs returns structured log attributes for the failure.
func (e *FetchError) SlogAttrs() []any {
	attrs := []any{"kind", string(e.Kind)}
	if e.Op != "" {
		attrs = append(attrs, "op", e.Op)
	}
	if e.Resource != "" {
		attrs = append(attrs, "resource", e.Resource)
	}
	return attrs
}
