package reqgraph

import (
	"sort"

	"github.com/yudppp/parcel/internal/contentgraph"
	"github.com/yudppp/parcel/internal/reasons"
)

// NodeRecord is the flat, serializable projection of one Node, suitable for
// msgpack encoding. Exactly the fields relevant to Kind are populated.
type NodeRecord struct {
	Present bool
	Kind    Kind

	FilePath    string
	GlobPattern string
	Segment     string

	EnvName    string
	EnvValue   string
	EnvPresent bool

	OptionName string
	OptionHash string

	RequestID                string
	RequestType              string
	RequestInput             any
	RequestResult            any
	RequestHasResult         bool
	RequestResultCacheKey    string
	RequestInvalidateReason  reasons.Reason
}

// EdgeRecord is the serializable projection of one edge.
type EdgeRecord struct {
	From, To uint32
	Label    EdgeLabel
}

// Snapshot is the complete wire format of a Graph: node arena (including
// tombstones, to preserve ids), edges, and every side index.
type Snapshot struct {
	Nodes []NodeRecord
	Edges []EdgeRecord

	InvalidNodeIDs       []uint32
	IncompleteNodeIDs    []uint32
	UnpredictableNodeIDs []uint32
	GlobNodeIDs          []uint32
	EnvNodeIDs           []uint32
	OptionNodeIDs        []uint32
}

// Export produces a deterministic Snapshot of g.
func (g *Graph) Export() Snapshot {
	slots := g.cg.ExportSlots()
	nodes := make([]NodeRecord, len(slots))
	for i, s := range slots {
		if !s.Present {
			continue
		}
		nodes[i] = nodeToRecord(s.Node)
	}

	rawEdges := g.cg.ExportEdges()
	edges := make([]EdgeRecord, len(rawEdges))
	for i, e := range rawEdges {
		edges[i] = EdgeRecord{From: uint32(e.From), To: uint32(e.To), Label: e.Label}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Label != edges[j].Label {
			return edges[i].Label < edges[j].Label
		}
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})

	return Snapshot{
		Nodes:                nodes,
		Edges:                edges,
		InvalidNodeIDs:       toUint32(g.InvalidNodeIDs()),
		IncompleteNodeIDs:    toUint32(g.IncompleteNodeIDs()),
		UnpredictableNodeIDs: toUint32(g.UnpredictableNodeIDs()),
		GlobNodeIDs:          toUint32(g.GlobNodeIDs()),
		EnvNodeIDs:           toUint32(g.EnvNodeIDs()),
		OptionNodeIDs:        toUint32(g.OptionNodeIDs()),
	}
}

// Import reconstructs a Graph from a Snapshot, preserving ids exactly.
func Import(snap Snapshot) *Graph {
	g := New()

	slots := make([]contentgraph.ExportedSlot[*Node], len(snap.Nodes))
	for i, rec := range snap.Nodes {
		if !rec.Present {
			slots[i] = contentgraph.ExportedSlot[*Node]{Present: false}
			continue
		}
		n := recordToNode(rec)
		slots[i] = contentgraph.ExportedSlot[*Node]{Present: true, Key: n.ContentKey(), Node: n}
	}
	g.cg.ImportSlots(slots)

	for _, e := range snap.Edges {
		g.cg.ImportEdge(contentgraph.ID(e.From), contentgraph.ID(e.To), e.Label)
	}

	fromUint32(snap.InvalidNodeIDs, g.invalidNodeIds)
	fromUint32(snap.IncompleteNodeIDs, g.incompleteNodeIds)
	fromUint32(snap.UnpredictableNodeIDs, g.unpredictableNodeIds)
	fromUint32(snap.GlobNodeIDs, g.globNodeIds)
	fromUint32(snap.EnvNodeIDs, g.envNodeIds)
	fromUint32(snap.OptionNodeIDs, g.optionNodeIds)

	return g
}

func nodeToRecord(n *Node) NodeRecord {
	rec := NodeRecord{Present: true, Kind: n.Kind()}
	switch n.Kind() {
	case KindFile:
		rec.FilePath = n.FilePath()
	case KindGlob:
		rec.GlobPattern = n.GlobPattern()
	case KindFileName:
		rec.Segment = n.Segment()
	case KindEnv:
		rec.EnvName = n.EnvName()
		rec.EnvValue, rec.EnvPresent = n.EnvValue()
	case KindOption:
		rec.OptionName = n.OptionName()
		rec.OptionHash = n.OptionHash()
	case KindRequest:
		r := n.Request()
		rec.RequestID = r.ID
		rec.RequestType = r.Type
		rec.RequestInput = r.Input
		rec.RequestResult = r.Result
		rec.RequestHasResult = r.HasResult
		rec.RequestResultCacheKey = r.ResultCacheKey
		rec.RequestInvalidateReason = r.InvalidateReason
	}
	return rec
}

func recordToNode(rec NodeRecord) *Node {
	switch rec.Kind {
	case KindFile:
		return NewFileNode(rec.FilePath)
	case KindGlob:
		return NewGlobNode(rec.GlobPattern)
	case KindFileName:
		return NewFileNameNode(rec.Segment)
	case KindEnv:
		return NewEnvNode(rec.EnvName, rec.EnvValue, rec.EnvPresent)
	case KindOption:
		return NewOptionNode(rec.OptionName, rec.OptionHash)
	case KindRequest:
		return NewRequestNode(&StoredRequest{
			ID:               rec.RequestID,
			Type:             rec.RequestType,
			Input:            rec.RequestInput,
			Result:           rec.RequestResult,
			HasResult:        rec.RequestHasResult,
			ResultCacheKey:   rec.RequestResultCacheKey,
			InvalidateReason: rec.RequestInvalidateReason,
		})
	default:
		return &Node{}
	}
}

func toUint32(ids []ID) []uint32 {
	out := make([]uint32, len(ids))
	for i, id := range ids {
		out[i] = uint32(id)
	}
	return out
}

func fromUint32(in []uint32, set map[ID]struct{}) {
	for _, v := range in {
		set[ID(v)] = struct{}{}
	}
}
