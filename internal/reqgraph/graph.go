package reqgraph

import (
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/zeebo/blake3"

	"github.com/yudppp/parcel/internal/contentgraph"
	"github.com/yudppp/parcel/internal/reasons"
)

type ID = contentgraph.ID

// Graph is the typed request dependency graph: File, Glob, FileName, Env,
// Option, and Request nodes connected by the six invalidation edge kinds. It
// wraps a generic ContentGraph and maintains the side indices required for
// O(1) iteration of each kind-partitioned node set.
type Graph struct {
	cg *contentgraph.Graph[*Node, EdgeLabel]

	invalidNodeIds       map[ID]struct{}
	incompleteNodeIds    map[ID]struct{}
	unpredictableNodeIds map[ID]struct{}
	globNodeIds          map[ID]struct{}
	envNodeIds           map[ID]struct{}
	optionNodeIds        map[ID]struct{}
}

// New creates an empty request graph.
func New() *Graph {
	return &Graph{
		cg:                   contentgraph.New[*Node, EdgeLabel](),
		invalidNodeIds:       make(map[ID]struct{}),
		incompleteNodeIds:    make(map[ID]struct{}),
		unpredictableNodeIds: make(map[ID]struct{}),
		globNodeIds:          make(map[ID]struct{}),
		envNodeIds:           make(map[ID]struct{}),
		optionNodeIds:        make(map[ID]struct{}),
	}
}

// ---- node management -------------------------------------------------

// AddNode adds n (deduplicated by content key) and folds it into the
// kind-partitioned side indices.
func (g *Graph) AddNode(n *Node) ID {
	id := g.cg.AddNodeByContentKey(n.ContentKey(), n)
	switch n.Kind() {
	case KindGlob:
		g.globNodeIds[id] = struct{}{}
	case KindEnv:
		g.envNodeIds[id] = struct{}{}
	case KindOption:
		g.optionNodeIds[id] = struct{}{}
	}
	return id
}

// RemoveNode detaches id from the graph and purges every side index,
// mirroring AddNode.
func (g *Graph) RemoveNode(id ID) {
	g.cg.RemoveNode(id)
	delete(g.invalidNodeIds, id)
	delete(g.incompleteNodeIds, id)
	delete(g.unpredictableNodeIds, id)
	delete(g.globNodeIds, id)
	delete(g.envNodeIds, id)
	delete(g.optionNodeIds, id)
}

// GetNode returns the node at id.
func (g *Graph) GetNode(id ID) (*Node, bool) { return g.cg.GetNode(id) }

// GetNodeByContentKey looks a node up by its content key.
func (g *Graph) GetNodeByContentKey(key string) (*Node, ID, bool) {
	return g.cg.GetNodeByContentKey(key)
}

// HasNode reports whether id is live.
func (g *Graph) HasNode(id ID) bool { return g.cg.HasNode(id) }

func (g *Graph) sortedIndex(set map[ID]struct{}) []ID {
	out := make([]ID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (g *Graph) InvalidNodeIDs() []ID       { return g.sortedIndex(g.invalidNodeIds) }
func (g *Graph) IncompleteNodeIDs() []ID    { return g.sortedIndex(g.incompleteNodeIds) }
func (g *Graph) UnpredictableNodeIDs() []ID { return g.sortedIndex(g.unpredictableNodeIds) }
func (g *Graph) GlobNodeIDs() []ID          { return g.sortedIndex(g.globNodeIds) }
func (g *Graph) EnvNodeIDs() []ID           { return g.sortedIndex(g.envNodeIds) }
func (g *Graph) OptionNodeIDs() []ID        { return g.sortedIndex(g.optionNodeIds) }

func (g *Graph) IsInvalid(id ID) bool    { _, ok := g.invalidNodeIds[id]; return ok }
func (g *Graph) IsIncomplete(id ID) bool { _, ok := g.incompleteNodeIds[id]; return ok }

// HasInvalidRequests reports whether any request node is currently invalid.
func (g *Graph) HasInvalidRequests() bool { return len(g.invalidNodeIds) > 0 }

// ---- request lookups ---------------------------------------------------

// requestNode resolves a request id to its node, failing with
// GraphInvariantViolation if absent or of the wrong kind.
func (g *Graph) requestNode(requestID string) (*Node, ID, error) {
	n, id, ok := g.cg.GetNodeByContentKey(requestID)
	if !ok {
		return nil, 0, &GraphInvariantViolation{Msg: fmt.Sprintf("unknown request id %q", requestID)}
	}
	if n.Kind() != KindRequest {
		return nil, 0, &GraphInvariantViolation{Msg: fmt.Sprintf("node %q is not a Request", requestID)}
	}
	return n, id, nil
}

// EnsureRequestNode creates the Request node for stored if absent and
// returns its id; if present, the existing node is returned unchanged. Used
// by the tracker's startRequest.
func (g *Graph) EnsureRequestNode(stored *StoredRequest) ID {
	if _, id, ok := g.cg.GetNodeByContentKey(stored.ID); ok {
		return id
	}
	return g.AddNode(NewRequestNode(stored))
}

// MarkIncomplete flags id as having a run in flight (or crashed mid-run).
func (g *Graph) MarkIncomplete(id ID) { g.incompleteNodeIds[id] = struct{}{} }

// ClearIncomplete drops id's in-flight flag.
func (g *Graph) ClearIncomplete(id ID) { delete(g.incompleteNodeIds, id) }

// HasValidResult reports whether requestID's node is a Request with a result
// available (inline or via the object cache) and is not currently invalid.
func (g *Graph) HasValidResult(id ID) bool {
	n, ok := g.cg.GetNode(id)
	if !ok || n.Kind() != KindRequest {
		return false
	}
	if g.IsInvalid(id) {
		return false
	}
	r := n.Request()
	return r.HasResult || r.ResultCacheKey != ""
}

// CompleteRequest resets requestID's invalidation reason to Valid and clears
// both its invalid and incomplete flags, marking a successful run finished.
func (g *Graph) CompleteRequest(requestID string) error {
	n, id, err := g.requestNode(requestID)
	if err != nil {
		return err
	}
	n.request.InvalidateReason = reasons.Valid
	delete(g.invalidNodeIds, id)
	delete(g.incompleteNodeIds, id)
	return nil
}

// RejectRequest clears requestID's incomplete flag and marks it invalid with
// reasons.Error, recording that its last run failed.
func (g *Graph) RejectRequest(requestID string) error {
	_, id, err := g.requestNode(requestID)
	if err != nil {
		return err
	}
	delete(g.incompleteNodeIds, id)
	return g.InvalidateNode(id, reasons.Error)
}

// ---- invalidation primitives -------------------------------------------

// InvalidateNode OR-combines reason into id's invalidateReason, marks it
// invalid, then recursively invalidates every ancestor reachable via
// reversed subrequest edges with the same reason.
func (g *Graph) InvalidateNode(id ID, reason reasons.Reason) error {
	n, ok := g.cg.GetNode(id)
	if !ok {
		return &GraphInvariantViolation{Msg: "invalidate: node does not exist"}
	}
	if n.Kind() != KindRequest {
		return &GraphInvariantViolation{Msg: "invalidate: node is not a Request"}
	}
	g.invalidateRecursive(id, reason, make(map[ID]struct{}))
	return nil
}

func (g *Graph) invalidateRecursive(id ID, reason reasons.Reason, seen map[ID]struct{}) {
	if _, done := seen[id]; done {
		return
	}
	seen[id] = struct{}{}

	n, ok := g.cg.GetNode(id)
	if !ok || n.Kind() != KindRequest {
		return
	}
	n.request.InvalidateReason = n.request.InvalidateReason.Combine(reason)
	g.invalidNodeIds[id] = struct{}{}

	for _, parent := range g.cg.GetNodeIdsConnectedTo(id, EdgeSubrequest) {
		g.invalidateRecursive(parent, reason, seen)
	}
}

// InvalidateUnpredictableNodes invalidates every unpredictable request with
// reason Startup.
func (g *Graph) InvalidateUnpredictableNodes() {
	for _, id := range g.UnpredictableNodeIDs() {
		g.InvalidateNode(id, reasons.Startup)
	}
}

// InvalidateEnvNodes compares every Env node's recorded value against
// envMap and invalidates dependents whose value differs, then updates the
// recorded value.
func (g *Graph) InvalidateEnvNodes(envMap map[string]string) {
	for _, id := range g.EnvNodeIDs() {
		n, ok := g.cg.GetNode(id)
		if !ok {
			continue
		}
		recorded, recordedPresent := n.EnvValue()
		current, currentPresent := envMap[n.EnvName()]
		if recordedPresent == currentPresent && recorded == current {
			continue
		}
		for _, reqID := range g.cg.GetNodeIdsConnectedTo(id, EdgeInvalidatedByUpdate) {
			g.InvalidateNode(reqID, reasons.EnvChange)
		}
		n.SetEnvValue(current, currentPresent)
	}
}

// InvalidateOptionNodes is the Option-kind analogue of InvalidateEnvNodes,
// comparing hashes of option values.
func (g *Graph) InvalidateOptionNodes(options map[string]any) {
	for _, id := range g.OptionNodeIDs() {
		n, ok := g.cg.GetNode(id)
		if !ok {
			continue
		}
		current, present := options[n.OptionName()]
		currentHash := ""
		if present {
			currentHash = hashOptionValue(current)
		}
		if currentHash == n.OptionHash() {
			continue
		}
		for _, reqID := range g.cg.GetNodeIdsConnectedTo(id, EdgeInvalidatedByUpdate) {
			g.InvalidateNode(reqID, reasons.OptionChange)
		}
		n.SetOptionHash(currentHash)
	}
}

// ClearInvalidations drops requestID from unpredictableNodeIds and removes
// every outgoing invalidated_by_{update,delete,create} edge, so the
// request's body can rebuild them from scratch this run.
func (g *Graph) ClearInvalidations(requestID string) error {
	_, id, err := g.requestNode(requestID)
	if err != nil {
		return err
	}
	delete(g.unpredictableNodeIds, id)

	for _, label := range []EdgeLabel{EdgeInvalidatedByUpdate, EdgeInvalidatedByDelete, EdgeInvalidatedByCreate} {
		for _, to := range g.cg.GetNodeIdsConnectedFrom(id, label) {
			g.cg.RemoveEdge(id, to, label)
		}
	}
	return nil
}

// SetSubrequests replaces requestID's full set of subrequest edges with
// exactly childIDs, creating a Request node for any child id not already
// present. Used after a run completes to record which sub-requests it
// declared this time.
func (g *Graph) SetSubrequests(requestID string, childIDs []string) error {
	_, parentID, err := g.requestNode(requestID)
	if err != nil {
		return err
	}
	ids := make([]ID, len(childIDs))
	for i, cid := range childIDs {
		ids[i] = g.EnsureRequestNode(&StoredRequest{ID: cid})
	}
	g.cg.ReplaceNodeIdsConnectedFrom(parentID, ids, EdgeSubrequest)
	return nil
}

// DependencyIDs returns the nodes id reaches via label, sorted ascending.
// Exported so the RunAPI façade can snapshot a request's declared
// dependencies without reaching into the underlying ContentGraph.
func (g *Graph) DependencyIDs(id ID, label EdgeLabel) []ID {
	return g.cg.GetNodeIdsConnectedFrom(id, label)
}

// StoreResult records result (and, when non-empty, the object-cache key it
// was persisted under) on requestID's node. It does not alter the node's
// valid/invalid bookkeeping; completing the request is the tracker's job.
func (g *Graph) StoreResult(requestID string, result any, cacheKey string) error {
	n, _, err := g.requestNode(requestID)
	if err != nil {
		return err
	}
	n.request.Result = result
	n.request.HasResult = true
	n.request.ResultCacheKey = cacheKey
	return nil
}

func hashOptionValue(v any) string {
	sum := blake3.Sum256([]byte(fmt.Sprintf("%#v", v)))
	return hex.EncodeToString(sum[:])
}
