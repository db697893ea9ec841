package news

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	ErrNoReferencedPosts = errors.New("article references no posts")
	ErrDuplicateArticle  = errors.New("article duplicates already stored posts")
)

// TransportError is a network-level failure talking to an external service.
type TransportError struct {
	Op      string
	Timeout bool
	Err     error
}

func (e *TransportError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s: timed out: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// MalformedResponseError means the remote answered but the payload could not be used.
type MalformedResponseError struct {
	Op  string
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s: malformed response: %v", e.Op, e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// PartialItemError describes one skipped item inside an otherwise successful batch.
type PartialItemError struct {
	Index int
	Err   error
}

func (e *PartialItemError) Error() string {
	return fmt.Sprintf("item %d skipped: %v", e.Index, e.Err)
}

func (e *PartialItemError) Unwrap() error { return e.Err }

// IntegrityError is a reference to a post id that is not in the current batch.
type IntegrityError struct {
	PostID string
	Theme  string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("opportunity %q references unknown post %q", e.Theme, e.PostID)
}

// NewTransportError wraps err and flags it as a timeout when the cause was a deadline.
func NewTransportError(op string, err error) *TransportError {
	return &TransportError{Op: op, Timeout: IsTimeout(err), Err: err}
}

func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// ErrorKind names the class of err for logs and API results.
func ErrorKind(err error) string {
	var transportErr *TransportError
	var malformedErr *MalformedResponseError
	var integrityErr *IntegrityError
	var partialErr *PartialItemError

	switch {
	case err == nil:
		return ""
	case errors.As(err, &transportErr):
		if transportErr.Timeout {
			return "timeout"
		}
		return "transport"
	case errors.As(err, &malformedErr):
		return "malformed_response"
	case errors.As(err, &integrityErr):
		return "integrity"
	case errors.As(err, &partialErr):
		return "partial_item"
	default:
		return "internal"
	}
}
