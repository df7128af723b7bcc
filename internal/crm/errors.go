package crm

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrRateLimited is returned when the remote explicitly refused a request.
// It is retryable once the governor's cooldown has elapsed.
var ErrRateLimited = errors.New("crm: rate limit exceeded")

// ValidationError is a 4xx rejection of the request parameters. It is never
// retried.
type ValidationError struct {
	Status int
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("crm: request rejected with status %d", e.Status)
	}
	return fmt.Sprintf("crm: request rejected with status %d: %s", e.Status, e.Detail)
}

// ServerError is a 5xx response. Treated as transient by the fetcher.
type ServerError struct {
	Status int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("crm: server error %d", e.Status)
}

// FetchError reports a failed multi-page fetch. Pages that succeeded before
// the failure are preserved in Partial so callers do not lose progress.
type FetchError struct {
	Category string
	Page     int
	Partial  []map[string]any
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("crm: fetch of %q failed at page %d (%d records retained): %v",
		e.Category, e.Page, len(e.Partial), e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsTransient reports whether err is worth retrying: network faults,
// timeouts, 5xx responses, and explicit rate refusals (after cooldown).
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var se *ServerError
	if errors.As(err, &se) {
		return true
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
