package reqgraph

import (
	"errors"
	"fmt"
)

// Sentinel errors for programmatic checking via errors.Is().
var (
	ErrInvalidInvalidation = errors.New("invalid invalidation")
	ErrGraphInvariant      = errors.New("graph invariant violation")
)

// InvalidInvalidation is returned when a request's invalidateOnFileCreate
// input does not match exactly one of the three permitted shapes.
type InvalidInvalidation struct {
	RequestID string
	Msg       string
}

func (e *InvalidInvalidation) Error() string {
	return fmt.Sprintf("%s: request %q: %s", ErrInvalidInvalidation, e.RequestID, e.Msg)
}

func (e *InvalidInvalidation) Unwrap() error { return ErrInvalidInvalidation }

// GraphInvariantViolation is fatal and non-recoverable: it
// indicates the caller asked for one node kind but the graph holds another,
// or some other internal consistency failure.
type GraphInvariantViolation struct {
	Msg string
}

func (e *GraphInvariantViolation) Error() string {
	return fmt.Sprintf("%s: %s", ErrGraphInvariant, e.Msg)
}

func (e *GraphInvariantViolation) Unwrap() error { return ErrGraphInvariant }
