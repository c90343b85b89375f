// Package contentgraph implements a generic directed, labeled multigraph
// keyed by a stable content key.
//
// Nodes are deduplicated by content key; a separate dense integer id is
// assigned per distinct key and used on edges. Ids are never reused within a
// process lifetime so that serialized edge references stay valid even after
// node removal.
package contentgraph

import "sort"

// ID is a dense integer node id, stable for the lifetime of the process and
// preserved across serialize/deserialize round-trips.
type ID uint32

// Node is the minimal contract a graph payload must satisfy: it must know
// its own stable content key.
type Node interface {
	ContentKey() string
}

type slot[N Node] struct {
	node    N
	key     string
	present bool
}

// Graph is a generic directed multigraph. N is the node payload type, L is
// the edge label type (typically a small string-backed enum).
type Graph[N Node, L comparable] struct {
	slots []slot[N]
	byKey map[string]ID

	// out[label][from] = set of `to` ids; in[label][to] = set of `from` ids.
	out map[L]map[ID]map[ID]struct{}
	in  map[L]map[ID]map[ID]struct{}
}

// New creates an empty graph.
func New[N Node, L comparable]() *Graph[N, L] {
	return &Graph[N, L]{
		byKey: make(map[string]ID),
		out:   make(map[L]map[ID]map[ID]struct{}),
		in:    make(map[L]map[ID]map[ID]struct{}),
	}
}

// AddNodeByContentKey returns the existing id for key if present (the node
// payload is left untouched), otherwise allocates a new id and stores n.
// Idempotent: calling it twice with the same key is a no-op the second time.
func (g *Graph[N, L]) AddNodeByContentKey(key string, n N) ID {
	if id, ok := g.byKey[key]; ok {
		return id
	}
	id := ID(len(g.slots))
	g.slots = append(g.slots, slot[N]{node: n, key: key, present: true})
	g.byKey[key] = id
	return id
}

// SetNode overwrites the payload stored for an existing id. Used when a
// node's value needs to change without altering its identity (e.g. an Env
// node's recorded current value).
func (g *Graph[N, L]) SetNode(id ID, n N) bool {
	if !g.HasNode(id) {
		return false
	}
	g.slots[id].node = n
	return true
}

// GetNode returns the node stored at id.
func (g *Graph[N, L]) GetNode(id ID) (N, bool) {
	if !g.HasNode(id) {
		var zero N
		return zero, false
	}
	return g.slots[id].node, true
}

// GetNodeByContentKey looks up a node by its content key.
func (g *Graph[N, L]) GetNodeByContentKey(key string) (N, ID, bool) {
	id, ok := g.byKey[key]
	if !ok {
		var zero N
		return zero, 0, false
	}
	n, _ := g.GetNode(id)
	return n, id, true
}

// HasContentKey reports whether key is present in the graph.
func (g *Graph[N, L]) HasContentKey(key string) bool {
	_, ok := g.byKey[key]
	return ok
}

// HasNode reports whether id refers to a live (non-tombstoned) node.
func (g *Graph[N, L]) HasNode(id ID) bool {
	return int(id) < len(g.slots) && g.slots[id].present
}

// AddEdge adds the (from, to, label) edge if absent. Returns true if a new
// edge was created, false if it already existed (at most one edge per
// (from, to, label) triple).
func (g *Graph[N, L]) AddEdge(from, to ID, label L) bool {
	if g.HasEdge(from, to, label) {
		return false
	}
	if g.out[label] == nil {
		g.out[label] = make(map[ID]map[ID]struct{})
	}
	if g.out[label][from] == nil {
		g.out[label][from] = make(map[ID]struct{})
	}
	g.out[label][from][to] = struct{}{}

	if g.in[label] == nil {
		g.in[label] = make(map[ID]map[ID]struct{})
	}
	if g.in[label][to] == nil {
		g.in[label][to] = make(map[ID]struct{})
	}
	g.in[label][to][from] = struct{}{}
	return true
}

// HasEdge reports whether the (from, to, label) edge exists.
func (g *Graph[N, L]) HasEdge(from, to ID, label L) bool {
	m := g.out[label]
	if m == nil {
		return false
	}
	toSet, ok := m[from]
	if !ok {
		return false
	}
	_, ok = toSet[to]
	return ok
}

// RemoveEdge removes the (from, to, label) edge if present.
func (g *Graph[N, L]) RemoveEdge(from, to ID, label L) {
	if m := g.out[label]; m != nil {
		if toSet, ok := m[from]; ok {
			delete(toSet, to)
			if len(toSet) == 0 {
				delete(m, from)
			}
		}
	}
	if m := g.in[label]; m != nil {
		if fromSet, ok := m[to]; ok {
			delete(fromSet, from)
			if len(fromSet) == 0 {
				delete(m, to)
			}
		}
	}
}

// GetNodeIdsConnectedFrom returns the ids reachable from id via an outgoing
// edge of the given label, sorted ascending for determinism.
func (g *Graph[N, L]) GetNodeIdsConnectedFrom(id ID, label L) []ID {
	m := g.out[label]
	if m == nil {
		return nil
	}
	return sortedIDs(m[id])
}

// GetNodeIdsConnectedTo returns the ids with an incoming edge of the given
// label to id, sorted ascending for determinism.
func (g *Graph[N, L]) GetNodeIdsConnectedTo(id ID, label L) []ID {
	m := g.in[label]
	if m == nil {
		return nil
	}
	return sortedIDs(m[id])
}

// ReplaceNodeIdsConnectedTo replaces the set of incoming edges on label for
// id with newIds: edges present in the old set but absent from newIds are
// removed, edges absent from the old set but present in newIds are added.
// Returns the ids that were added and removed, each sorted ascending.
func (g *Graph[N, L]) ReplaceNodeIdsConnectedTo(id ID, newIds []ID, label L) (added, removed []ID) {
	current := make(map[ID]struct{})
	for _, from := range g.GetNodeIdsConnectedTo(id, label) {
		current[from] = struct{}{}
	}
	want := make(map[ID]struct{}, len(newIds))
	for _, from := range newIds {
		want[from] = struct{}{}
	}

	for from := range want {
		if _, ok := current[from]; !ok {
			g.AddEdge(from, id, label)
			added = append(added, from)
		}
	}
	for from := range current {
		if _, ok := want[from]; !ok {
			g.RemoveEdge(from, id, label)
			removed = append(removed, from)
		}
	}
	sort.Slice(added, func(i, j int) bool { return added[i] < added[j] })
	sort.Slice(removed, func(i, j int) bool { return removed[i] < removed[j] })
	return added, removed
}

// ReplaceNodeIdsConnectedFrom is the outgoing-edge analogue of
// ReplaceNodeIdsConnectedTo: it replaces the set of edges leading out of id
// on label so that it matches newIds exactly.
func (g *Graph[N, L]) ReplaceNodeIdsConnectedFrom(id ID, newIds []ID, label L) (added, removed []ID) {
	current := make(map[ID]struct{})
	for _, to := range g.GetNodeIdsConnectedFrom(id, label) {
		current[to] = struct{}{}
	}
	want := make(map[ID]struct{}, len(newIds))
	for _, to := range newIds {
		want[to] = struct{}{}
	}

	for to := range want {
		if _, ok := current[to]; !ok {
			g.AddEdge(id, to, label)
			added = append(added, to)
		}
	}
	for to := range current {
		if _, ok := want[to]; !ok {
			g.RemoveEdge(id, to, label)
			removed = append(removed, to)
		}
	}
	sort.Slice(added, func(i, j int) bool { return added[i] < added[j] })
	sort.Slice(removed, func(i, j int) bool { return removed[i] < removed[j] })
	return added, removed
}

// RemoveNode tombstones id: it is detached from every incident edge (in
// every label, both directions) and from the content-key index. The slot is
// not reused, so existing references to id remain distinguishable from a
// live node.
func (g *Graph[N, L]) RemoveNode(id ID) {
	if !g.HasNode(id) {
		return
	}
	key := g.slots[id].key
	delete(g.byKey, key)

	for label, outMap := range g.out {
		if toSet, ok := outMap[id]; ok {
			for to := range toSet {
				if inMap := g.in[label]; inMap != nil {
					if fromSet, ok := inMap[to]; ok {
						delete(fromSet, id)
						if len(fromSet) == 0 {
							delete(inMap, to)
						}
					}
				}
			}
			delete(outMap, id)
		}
	}
	for label, inMap := range g.in {
		if fromSet, ok := inMap[id]; ok {
			for from := range fromSet {
				if outMap := g.out[label]; outMap != nil {
					if toSet, ok := outMap[from]; ok {
						delete(toSet, id)
						if len(toSet) == 0 {
							delete(outMap, from)
						}
					}
				}
			}
			delete(inMap, id)
		}
	}

	var zero N
	g.slots[id] = slot[N]{node: zero, present: false}
}

// NodeIDs returns every live node id, sorted ascending.
func (g *Graph[N, L]) NodeIDs() []ID {
	ids := make([]ID, 0, len(g.slots))
	for i, s := range g.slots {
		if s.present {
			ids = append(ids, ID(i))
		}
	}
	return ids
}

// ExportedSlot is the serializable form of one arena slot, including
// tombstones, so that re-import preserves ids exactly.
type ExportedSlot[N Node] struct {
	Present bool
	Key     string
	Node    N
}

// ExportSlots returns every arena slot, live or tombstoned, in id order.
func (g *Graph[N, L]) ExportSlots() []ExportedSlot[N] {
	out := make([]ExportedSlot[N], len(g.slots))
	for i, s := range g.slots {
		out[i] = ExportedSlot[N]{Present: s.present, Key: s.key, Node: s.node}
	}
	return out
}

// ExportedEdge is the serializable form of one directed labeled edge.
type ExportedEdge[L comparable] struct {
	From, To ID
	Label    L
}

// ExportEdges returns every edge in the graph in unspecified order; callers
// that need a deterministic encoding should sort by a concrete, ordered
// projection of L themselves.
func (g *Graph[N, L]) ExportEdges() []ExportedEdge[L] {
	var out []ExportedEdge[L]
	for label, m := range g.out {
		for from, toSet := range m {
			for to := range toSet {
				out = append(out, ExportedEdge[L]{From: from, To: to, Label: label})
			}
		}
	}
	return out
}

// ImportSlots replaces the graph's node arena wholesale, restoring ids
// exactly as exported. Any existing edges are left dangling and must be
// re-imported via ImportEdge.
func (g *Graph[N, L]) ImportSlots(slots []ExportedSlot[N]) {
	g.slots = make([]slot[N], len(slots))
	g.byKey = make(map[string]ID, len(slots))
	for i, s := range slots {
		g.slots[i] = slot[N]{node: s.Node, key: s.Key, present: s.Present}
		if s.Present {
			g.byKey[s.Key] = ID(i)
		}
	}
}

// ImportEdge restores a single edge. Intended for use only while
// reconstructing a graph from ImportSlots; both endpoints must already be
// present in the arena.
func (g *Graph[N, L]) ImportEdge(from, to ID, label L) {
	g.AddEdge(from, to, label)
}

func sortedIDs(set map[ID]struct{}) []ID {
	if len(set) == 0 {
		return nil
	}
	ids := make([]ID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
