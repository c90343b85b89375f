package reqgraph

// GC removes every File/Glob/FileName/Env/Option node with no incident edge
// in either direction, across every edge label. Callers should run it only
// after ClearInvalidations has been applied to every request, so stale
// declarations from a prior run have already had their edges dropped.
func (g *Graph) GC() []ID {
	var removed []ID
	for _, id := range g.cg.NodeIDs() {
		n, ok := g.cg.GetNode(id)
		if !ok || n.Kind() == KindRequest {
			continue
		}
		if g.isIsolated(id) {
			g.RemoveNode(id)
			removed = append(removed, id)
		}
	}
	return removed
}

func (g *Graph) isIsolated(id ID) bool {
	for _, label := range []EdgeLabel{
		EdgeSubrequest,
		EdgeInvalidatedByUpdate,
		EdgeInvalidatedByDelete,
		EdgeInvalidatedByCreate,
		EdgeInvalidatedByCreateAbove,
		EdgeDirname,
	} {
		if len(g.cg.GetNodeIdsConnectedFrom(id, label)) > 0 {
			return false
		}
		if len(g.cg.GetNodeIdsConnectedTo(id, label)) > 0 {
			return false
		}
	}
	return true
}
