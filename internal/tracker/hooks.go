package tracker

import (
	"context"
	"fmt"
	"sync"

	"github.com/yudppp/parcel/internal/logging"
)

// Hooks observes request lifecycle events. A nil Hooks disables both
// callbacks. Panics inside a
// hook are recovered and logged rather than propagated, so a misbehaving
// hook cannot take down a run in progress.
type Hooks interface {
	BeforeRequest(ctx context.Context, requestID string)
	AfterRequest(ctx context.Context, requestID string, err error)
}

// hookEngine wraps a Hooks implementation with panic recovery and error
// bookkeeping, mirroring the plugin hook runner's safety contract: recover,
// log, and never let a hook failure reach the caller.
type hookEngine struct {
	hooks Hooks
	log   logging.Logger

	mu  sync.Mutex
	err []error
}

func newHookEngine(hooks Hooks, log logging.Logger) *hookEngine {
	return &hookEngine{hooks: hooks, log: logging.OrNop(log)}
}

func (e *hookEngine) recordError(err error) {
	if err == nil {
		return
	}
	e.mu.Lock()
	e.err = append(e.err, err)
	e.mu.Unlock()
}

// Errors returns a snapshot of every error a hook has raised so far.
func (e *hookEngine) Errors() []error {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]error, len(e.err))
	copy(out, e.err)
	return out
}

func (e *hookEngine) before(ctx context.Context, runID, requestID string) {
	e.log.WithField("run_id", runID).Debugf("tracker: before %s", requestID)
	if e == nil || e.hooks == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("BeforeRequest(%s) panic: %v", requestID, r)
			e.log.Errorf("tracker: %v", err)
			e.recordError(err)
		}
	}()
	e.hooks.BeforeRequest(ctx, requestID)
}

func (e *hookEngine) after(ctx context.Context, runID, requestID string, runErr error) {
	e.log.WithField("run_id", runID).Debugf("tracker: after %s (err=%v)", requestID, runErr)
	if e == nil || e.hooks == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("AfterRequest(%s) panic: %v", requestID, r)
			e.log.Errorf("tracker: %v", err)
			e.recordError(err)
		}
	}()
	e.hooks.AfterRequest(ctx, requestID, runErr)
}
