// Package request defines the request contract consumed by the tracker
// runtime and the RunAPI façade a running request body uses to
// declare dependencies.
package request

import (
	"context"

	"github.com/yudppp/parcel/internal/collab"
	"github.com/yudppp/parcel/internal/reasons"
)

// Spec is the request contract the tracker runs: an id, a type, an input
// value, and the function that produces a result from them. ID must be a
// deterministic function of Type and the parts of Input that matter for
// identity — the tracker uses it verbatim as the Request node's content key.
type Spec struct {
	ID    string
	Type  string
	Input any
	Run   func(ctx context.Context, rc RunContext) (any, error)
}

// RunContext is passed to Spec.Run: the request's input, its RunAPI handle,
// the worker pool, the current option set, the previous result (if any),
// and the reason it was invalidated this time.
type RunContext struct {
	Input            any
	API              *RunAPI
	Farm             collab.WorkerPool
	Options          map[string]any
	PrevResult       any
	InvalidateReason reasons.Reason
}

// RunOptions controls a single runRequest invocation.
type RunOptions struct {
	// Force skips the cached-result short-circuit even if the request
	// currently has a valid result.
	Force bool
}
