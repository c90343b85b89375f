// Package tracker implements the RequestTracker runtime: it runs
// request.Spec values against a shared request graph, short-circuiting to a
// cached result whenever a request's node is still valid, and dedupes
// concurrent runs of the same request id via singleflight.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/singleflight"

	"github.com/yudppp/parcel/internal/collab"
	"github.com/yudppp/parcel/internal/logging"
	"github.com/yudppp/parcel/internal/reqgraph"
	"github.com/yudppp/parcel/internal/request"
)

// ErrNoResult is returned by GetRequestResult when requestID has no inline
// result and no object-cache entry to fall back to.
var ErrNoResult = errors.New("tracker: request has no stored result")

// ErrCancelled is returned when ctx is signaled by the time spec.Run
// resolves, even if Run itself returned a nil error. The request is left
// invalid rather than completed, so a later retry is possible.
var ErrCancelled = errors.New("tracker: request cancelled")

// Tracker runs requests against graph, the shared request dependency graph.
type Tracker struct {
	graph *reqgraph.Graph
	cache collab.ObjectCache
	farm  collab.WorkerPool

	optionsMu sync.RWMutex
	options   map[string]any

	rawHooks Hooks
	hooks    *hookEngine
	log      logging.Logger

	group singleflight.Group
}

// Option configures a Tracker at construction time.
type Option func(*Tracker)

func WithObjectCache(c collab.ObjectCache) Option { return func(t *Tracker) { t.cache = c } }
func WithWorkerPool(p collab.WorkerPool) Option   { return func(t *Tracker) { t.farm = p } }
func WithOptions(o map[string]any) Option         { return func(t *Tracker) { t.options = o } }
func WithHooks(h Hooks) Option                    { return func(t *Tracker) { t.rawHooks = h } }
func WithLogger(l logging.Logger) Option          { return func(t *Tracker) { t.log = l } }

// New constructs a Tracker over graph.
func New(graph *reqgraph.Graph, opts ...Option) *Tracker {
	t := &Tracker{graph: graph, log: logging.Nop(), options: map[string]any{}}
	for _, o := range opts {
		o(t)
	}
	t.log = logging.OrNop(t.log)
	t.hooks = newHookEngine(t.rawHooks, t.log)
	return t
}

// SetOptions replaces the live option set consulted by option-change
// invalidation and passed to running request bodies.
func (t *Tracker) SetOptions(options map[string]any) {
	t.optionsMu.Lock()
	t.options = options
	t.optionsMu.Unlock()
}

func (t *Tracker) snapshotOptions() map[string]any {
	t.optionsMu.RLock()
	defer t.optionsMu.RUnlock()
	out := make(map[string]any, len(t.options))
	for k, v := range t.options {
		out[k] = v
	}
	return out
}

// startRequest ensures spec's Request node exists, returning its id.
func (t *Tracker) startRequest(spec request.Spec) reqgraph.ID {
	return t.graph.EnsureRequestNode(&reqgraph.StoredRequest{ID: spec.ID, Type: spec.Type, Input: spec.Input})
}

// CanSkipSubrequest implements request.Host: sub can be skipped by its
// parent's run iff it already has a valid result.
func (t *Tracker) CanSkipSubrequest(id string) bool {
	_, nodeID, ok := t.graph.GetNodeByContentKey(id)
	if !ok {
		return false
	}
	return t.graph.HasValidResult(nodeID)
}

// RequestResult implements request.Host: resolve id's logical result,
// inline or via the object cache.
func (t *Tracker) RequestResult(ctx context.Context, id string) (any, error) {
	n, _, ok := t.graph.GetNodeByContentKey(id)
	if !ok || n.Kind() != reqgraph.KindRequest {
		return nil, fmt.Errorf("%w: %s", ErrNoResult, id)
	}
	r := n.Request()
	if r.HasResult {
		return r.Result, nil
	}
	if r.ResultCacheKey == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoResult, id)
	}
	if t.cache == nil {
		return nil, fmt.Errorf("%w: %s: no object cache configured", ErrNoResult, id)
	}
	raw, found, err := t.cache.Get(ctx, r.ResultCacheKey)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s: cache key %s not found", ErrNoResult, id, r.ResultCacheKey)
	}
	var result any
	if err := msgpack.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode cached result for %s: %w", id, err)
	}
	return result, nil
}

// PersistResult implements request.Host: serialize result and write it to
// the object cache under cacheKey.
func (t *Tracker) PersistResult(ctx context.Context, cacheKey string, result any) error {
	if t.cache == nil {
		return fmt.Errorf("tracker: no object cache configured, cannot persist key %s", cacheKey)
	}
	raw, err := msgpack.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result for cache key %s: %w", cacheKey, err)
	}
	return t.cache.Set(ctx, cacheKey, raw)
}

// RunRequest implements request.Host and is the tracker's single entry
// point: it runs spec, deduplicating concurrent calls for the same id and
// reusing spec's cached result when its node is still valid.
func (t *Tracker) RunRequest(ctx context.Context, spec request.Spec, opts request.RunOptions) (any, error) {
	resultCh := t.group.DoChan(spec.ID, func() (any, error) {
		return t.runOnce(ctx, spec, opts)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultCh:
		return res.Val, res.Err
	}
}

func (t *Tracker) runOnce(ctx context.Context, spec request.Spec, opts request.RunOptions) (any, error) {
	id := t.startRequest(spec)

	if !opts.Force && t.graph.HasValidResult(id) {
		return t.RequestResult(ctx, spec.ID)
	}

	runID := uuid.NewString()

	t.graph.MarkIncomplete(id)
	t.hooks.before(ctx, runID, spec.ID)

	if err := t.graph.ClearInvalidations(spec.ID); err != nil {
		t.graph.ClearIncomplete(id)
		t.hooks.after(ctx, runID, spec.ID, err)
		return nil, err
	}

	node, _ := t.graph.GetNode(id)
	invalidateReason := node.Request().InvalidateReason

	api := request.New(t.graph, spec.ID, t)
	rc := request.RunContext{
		Input:            spec.Input,
		API:              api,
		Farm:             t.farm,
		Options:          t.snapshotOptions(),
		PrevResult:       node.Request().Result,
		InvalidateReason: invalidateReason,
	}

	result, runErr := spec.Run(ctx, rc)

	// Sub-request edges are replaced whether the body succeeded, failed, or
	// was cancelled, so they always match what this run observed.
	subErr := t.graph.SetSubrequests(spec.ID, api.GetSubRequests())

	if cErr := ctx.Err(); cErr != nil {
		if err := t.graph.RejectRequest(spec.ID); err != nil {
			t.log.Errorf("tracker: rejectRequest(%s): %v", spec.ID, err)
		}
		wrapped := fmt.Errorf("%w: %s: %v", ErrCancelled, spec.ID, cErr)
		t.hooks.after(ctx, runID, spec.ID, wrapped)
		return nil, wrapped
	}

	if runErr != nil {
		if err := t.graph.RejectRequest(spec.ID); err != nil {
			t.log.Errorf("tracker: rejectRequest(%s): %v", spec.ID, err)
		}
		t.hooks.after(ctx, runID, spec.ID, runErr)
		return nil, runErr
	}

	if subErr != nil {
		t.hooks.after(ctx, runID, spec.ID, subErr)
		return nil, subErr
	}

	if n, _ := t.graph.GetNode(id); !n.Request().HasResult {
		if err := t.graph.StoreResult(spec.ID, result, ""); err != nil {
			t.hooks.after(ctx, runID, spec.ID, err)
			return nil, err
		}
	}

	if err := t.graph.CompleteRequest(spec.ID); err != nil {
		t.hooks.after(ctx, runID, spec.ID, err)
		return nil, err
	}

	t.hooks.after(ctx, runID, spec.ID, nil)
	return result, nil
}
