package framesink

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Sentinel errors. Match with errors.Is; call sites wrap them with context.
var (
	ErrFull                = errors.New("no free frame slot")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrNotInitialized      = errors.New("resource not initialized")
	ErrDispatchFailed      = errors.New("dispatch failed")
	ErrGeometryUnavailable = errors.New("geometry unavailable")
	ErrDestroyFailed       = errors.New("frame destroy failed")
	ErrAlreadyDestroyed    = errors.New("frame already destroyed")

	// Both dispatch failures satisfy errors.Is(err, ErrDispatchFailed).
	ErrChannelClosed = errors.Mark(errors.New("dispatch channel closed"), ErrDispatchFailed)
	ErrQueueFull     = errors.Mark(errors.New("dispatch queue full"), ErrDispatchFailed)
)

// SinkError provides detailed error context for surface and lifecycle operations
type SinkError struct {
	Operation string // What operation was being attempted
	Details   string // Additional error context
	Err       error  // Underlying error if any
}

func (e *SinkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("framesink %s failed: %s: %v", e.Operation, e.Details, e.Err)
	}
	return fmt.Sprintf("framesink %s failed: %s", e.Operation, e.Details)
}

func (e *SinkError) Unwrap() error {
	return e.Err
}

func invalidArgf(format string, args ...any) error {
	return errors.Wrapf(ErrInvalidArgument, format, args...)
}
