// Package classify maps raw failures onto the models.ErrorKind taxonomy.
//
// The data-access layer wraps its errors with Wrap at the source, so most
// callers hit the *models.FetchError fast path. Shape inspection (pg error
// codes, net errors, status codes) and message heuristics remain as a fallback
// for errors that did not come through that layer.
package classify

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/analyticket/analyticket/internal/models"
)

// StatusCoder is implemented by errors that carry an HTTP-style status code.
type StatusCoder interface {
	StatusCode() int
}

// Classify turns err into an ErrorRecord stamped with now. It has no side
// effects and the same error shape always yields the same Kind.
func Classify(err error, now time.Time) models.ErrorRecord {
	kind := KindOf(err)
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return models.ErrorRecord{
		Kind:        kind,
		Message:     msg,
		OccurredAt:  now,
		Recoverable: kind.Recoverable(),
	}
}

// Retryable reports whether err should be retried automatically.
func Retryable(err error) bool {
	return KindOf(err).Recoverable()
}

// KindOf returns the ErrorKind for err.
func KindOf(err error) models.ErrorKind {
	if err == nil {
		return models.ErrorKindUnknown
	}

	var fe *models.FetchError
	if errors.As(err, &fe) && fe.Kind != "" {
		return fe.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return models.ErrorKindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return models.ErrorKindUnknown
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return kindOfPgCode(pgErr.Code)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return models.ErrorKindTimeout
	}
	if isConnectionFailure(err) {
		return models.ErrorKindNetwork
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		if kind, ok := kindOfStatus(sc.StatusCode()); ok {
			return kind
		}
	}

	return kindOfMessage(err.Error())
}

// Wrap tags err with its kind so downstream layers never have to guess.
// A nil err yields nil; an err that is already a FetchError is returned as-is.
func Wrap(op, resource string, err error) error {
	if err == nil {
		return nil
	}
	var fe *models.FetchError
	if errors.As(err, &fe) {
		return err
	}
	return &models.FetchError{Kind: KindOf(err), Op: op, Resource: resource, Err: err}
}

func kindOfPgCode(code string) models.ErrorKind {
	switch {
	case pgerrcode.IsConnectionException(code),
		code == pgerrcode.AdminShutdown,
		code == pgerrcode.CrashShutdown,
		code == pgerrcode.CannotConnectNow,
		code == pgerrcode.TooManyConnections:
		return models.ErrorKindNetwork
	case code == pgerrcode.InsufficientPrivilege,
		pgerrcode.IsInvalidAuthorizationSpecification(code),
		code == pgerrcode.InvalidPassword:
		return models.ErrorKindPermission
	case code == pgerrcode.QueryCanceled,
		code == pgerrcode.LockNotAvailable,
		code == pgerrcode.DeadlockDetected,
		code == pgerrcode.SerializationFailure:
		return models.ErrorKindTimeout
	default:
		return models.ErrorKindDatabase
	}
}

func isConnectionFailure(err error) bool {
	var opErr *net.OpError
	var dnsErr *net.DNSError
	switch {
	case errors.As(err, &opErr), errors.As(err, &dnsErr):
		return true
	case errors.Is(err, net.ErrClosed),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE):
		return true
	}
	return false
}

func kindOfStatus(code int) (models.ErrorKind, bool) {
	switch {
	case code == 401 || code == 403:
		return models.ErrorKindPermission, true
	case code == 408 || code == 504:
		return models.ErrorKindTimeout, true
	case code >= 500:
		return models.ErrorKindNetwork, true
	case code >= 400:
		return models.ErrorKindDatabase, true
	}
	return "", false
}

var messageRules = []struct {
	kind    models.ErrorKind
	needles []string
}{
	{models.ErrorKindPermission, []string{"permission denied", "not authorized", "unauthorized", "forbidden", "jwt", "row-level security"}},
	{models.ErrorKindTimeout, []string{"timeout", "timed out", "deadline exceeded"}},
	{models.ErrorKindNetwork, []string{"network", "fetch failed", "failed to fetch", "connection refused", "connection reset", "no such host", "broken pipe"}},
	{models.ErrorKindDatabase, []string{"sql", "relation", "syntax error", "violates", "constraint", "column"}},
}

func kindOfMessage(msg string) models.ErrorKind {
	lower := strings.ToLower(msg)
	for _, rule := range messageRules {
		for _, needle := range rule.needles {
			if strings.Contains(lower, needle) {
				return rule.kind
			}
		}
	}
	return models.ErrorKindUnknown
}
