package request

import (
	"context"
	"sort"
	"sync"

	"github.com/yudppp/parcel/internal/reqgraph"
)

// Host is implemented by the tracker and gives RunAPI the narrow surface it
// needs to run/inspect sub-requests without importing the tracker package
// (which in turn imports this one).
type Host interface {
	RunRequest(ctx context.Context, sub Spec, opts RunOptions) (any, error)
	RequestResult(ctx context.Context, id string) (any, error)
	CanSkipSubrequest(id string) bool
	PersistResult(ctx context.Context, cacheKey string, result any) error
}

// Invalidation is one entry in the snapshot returned by GetInvalidations:
// the set of invalidated_by_update dependencies recorded for a request at
// the moment its RunAPI was constructed.
type Invalidation struct {
	Kind string // "file", "env", or "option"
	Path string // populated when Kind == "file"
	Name string // populated when Kind == "env" or "option"
}

// RunAPI is the per-request façade a running request body uses to declare
// dependencies as it runs. All mutating methods forward
// directly to the RequestGraph; GetInvalidations returns a snapshot frozen
// at construction time regardless of later calls.
type RunAPI struct {
	requestID string
	graph     *reqgraph.Graph
	host      Host

	invalidationsSnapshot []Invalidation

	mu          sync.Mutex
	subRequests map[string]struct{}
}

// New constructs a RunAPI for requestID. The invalidations snapshot is taken
// immediately, before the caller declares any new dependencies this run.
func New(graph *reqgraph.Graph, requestID string, host Host) *RunAPI {
	return &RunAPI{
		requestID:             requestID,
		graph:                 graph,
		host:                  host,
		invalidationsSnapshot: snapshotInvalidations(graph, requestID),
		subRequests:           make(map[string]struct{}),
	}
}

func snapshotInvalidations(graph *reqgraph.Graph, requestID string) []Invalidation {
	n, id, ok := graph.GetNodeByContentKey(requestID)
	if !ok || n.Kind() != reqgraph.KindRequest {
		return nil
	}
	var out []Invalidation
	for _, depID := range graph.DependencyIDs(id, reqgraph.EdgeInvalidatedByUpdate) {
		dep, ok := graph.GetNode(depID)
		if !ok {
			continue
		}
		switch dep.Kind() {
		case reqgraph.KindFile:
			out = append(out, Invalidation{Kind: "file", Path: dep.FilePath()})
		case reqgraph.KindEnv:
			out = append(out, Invalidation{Kind: "env", Name: dep.EnvName()})
		case reqgraph.KindOption:
			out = append(out, Invalidation{Kind: "option", Name: dep.OptionName()})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Path+out[i].Name < out[j].Path+out[j].Name
	})
	return out
}

func (r *RunAPI) InvalidateOnFileUpdate(path string) error {
	return r.graph.InvalidateOnFileUpdate(r.requestID, path)
}

func (r *RunAPI) InvalidateOnFileDelete(path string) error {
	return r.graph.InvalidateOnFileDelete(r.requestID, path)
}

func (r *RunAPI) InvalidateOnFileCreate(spec reqgraph.FileCreateInvalidation) error {
	return r.graph.InvalidateOnFileCreate(r.requestID, spec)
}

func (r *RunAPI) InvalidateOnStartup() error {
	return r.graph.InvalidateOnStartup(r.requestID)
}

func (r *RunAPI) InvalidateOnEnvChange(name, currentValue string) error {
	return r.graph.InvalidateOnEnvChange(r.requestID, name, currentValue)
}

func (r *RunAPI) InvalidateOnOptionChange(name string, currentValue any) error {
	return r.graph.InvalidateOnOptionChange(r.requestID, name, currentValue)
}

// GetInvalidations returns the snapshot taken when this RunAPI was created;
// later invalidations declared in this same run do not appear in it.
func (r *RunAPI) GetInvalidations() []Invalidation {
	return r.invalidationsSnapshot
}

// StoreResult records the request's result on its node. When cacheKey is
// non-empty the result is additionally persisted to the object cache under
// that key, so a future process can load it without rerunning the request.
func (r *RunAPI) StoreResult(ctx context.Context, result any, cacheKey string) error {
	if err := r.graph.StoreResult(r.requestID, result, cacheKey); err != nil {
		return err
	}
	if cacheKey == "" {
		return nil
	}
	return r.host.PersistResult(ctx, cacheKey, result)
}

// GetSubRequests returns the content keys of every sub-request this run has
// observed via RunRequest or CanSkipSubrequest, sorted for determinism.
func (r *RunAPI) GetSubRequests() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.subRequests))
	for k := range r.subRequests {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// GetRequestResult fetches a previously-stored result for id.
func (r *RunAPI) GetRequestResult(ctx context.Context, id string) (any, error) {
	return r.host.RequestResult(ctx, id)
}

// CanSkipSubrequest reports whether id already has a valid cached result;
// regardless of the answer, id is recorded as a dependency so the parent's
// subrequest edges stay accurate even when the child body is skipped.
func (r *RunAPI) CanSkipSubrequest(id string) bool {
	r.mu.Lock()
	r.subRequests[id] = struct{}{}
	r.mu.Unlock()
	return r.host.CanSkipSubrequest(id)
}

// RunRequest runs sub as a sub-request of the current one; sub.ID is
// recorded as a dependency regardless of outcome.
func (r *RunAPI) RunRequest(ctx context.Context, sub Spec, opts RunOptions) (any, error) {
	r.mu.Lock()
	r.subRequests[sub.ID] = struct{}{}
	r.mu.Unlock()
	return r.host.RunRequest(ctx, sub, opts)
}
