package release

import (
	"context"
	"errors"

	"github.com/sydlexius/spinmatch/internal/gateway"
)

// ErrInvalidQuery means the caller supplied nothing the engine can look up.
var ErrInvalidQuery = errors.New("invalid query: need a barcode, catalog number, artist and album, or label image")

// ErrTimeout means the overall deadline for a request expired while external
// services were still being consulted. It is distinct from "not found".
var ErrTimeout = errors.New("lookup timed out")

// ErrNotAvailable means the marketplace has no data for the release.
var ErrNotAvailable = errors.New("marketplace data not available")

// ErrorKind is a stable, caller-facing classification of a failure.
type ErrorKind string

// Error kinds the embedding application can branch on.
const (
	KindInvalidQuery   ErrorKind = "invalid_query"
	KindNotAvailable   ErrorKind = "not_available"
	KindAuthFailure    ErrorKind = "auth_failure"
	KindQuotaExhausted ErrorKind = "quota_exhausted"
	KindUnavailable    ErrorKind = "unavailable"
	KindTimeout        ErrorKind = "timeout"
	KindCanceled       ErrorKind = "canceled"
	KindInternal       ErrorKind = "internal"
)

// Kind maps err onto an ErrorKind. A nil error has no kind.
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidQuery):
		return KindInvalidQuery
	case errors.Is(err, ErrNotAvailable):
		return KindNotAvailable
	case errors.Is(err, gateway.ErrAuthFailure):
		return KindAuthFailure
	case errors.Is(err, gateway.ErrQuotaExhausted):
		return KindQuotaExhausted
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, gateway.ErrTransient), errors.Is(err, gateway.ErrRequestFailed):
		return KindUnavailable
	default:
		return KindInternal
	}
}
