package catp

import (
	"context"
	"errors"
	"fmt"
)

// Protocol error taxonomy. Servers pick the closest sentinel, the wire
// carries its code, and clients rebuild a wrapped sentinel so errors.Is
// holds on both sides of the connection.
var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrSizeMismatch     = errors.New("size mismatch")
	ErrLimitExceeded    = errors.New("limit exceeded")
	ErrNotFound         = errors.New("not found")
	ErrDeadlineExceeded = errors.New("deadline exceeded")
	ErrCanceled         = errors.New("canceled")
	ErrInternal         = errors.New("internal error")
)

const (
	CodeInvalidArgument  = "INVALID_ARGUMENT"
	CodeSizeMismatch     = "SIZE_MISMATCH"
	CodeLimitExceeded    = "LIMIT_EXCEEDED"
	CodeNotFound         = "NOT_FOUND"
	CodeDeadlineExceeded = "DEADLINE_EXCEEDED"
	CodeCanceled         = "CANCELED"
	CodeInternal         = "INTERNAL"
)

// CodeOf maps an error to its wire code. Context errors collapse into the
// deadline/cancel codes; anything unrecognized is INTERNAL so store and
// repository details never leak to callers.
func CodeOf(err error) string {
	switch {
	case errors.Is(err, ErrInvalidArgument):
		return CodeInvalidArgument
	case errors.Is(err, ErrSizeMismatch):
		return CodeSizeMismatch
	case errors.Is(err, ErrLimitExceeded):
		return CodeLimitExceeded
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrDeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return CodeDeadlineExceeded
	case errors.Is(err, ErrCanceled), errors.Is(err, context.Canceled):
		return CodeCanceled
	default:
		return CodeInternal
	}
}

// ErrorFromFrame rebuilds a typed error from a wire Error payload.
func ErrorFromFrame(e Error) error {
	sentinel := ErrInternal
	switch e.Code {
	case CodeInvalidArgument:
		sentinel = ErrInvalidArgument
	case CodeSizeMismatch:
		sentinel = ErrSizeMismatch
	case CodeLimitExceeded:
		sentinel = ErrLimitExceeded
	case CodeNotFound:
		sentinel = ErrNotFound
	case CodeDeadlineExceeded:
		sentinel = ErrDeadlineExceeded
	case CodeCanceled:
		sentinel = ErrCanceled
	}
	if e.Message == "" {
		return sentinel
	}
	return fmt.Errorf("%w: %s", sentinel, e.Message)
}
