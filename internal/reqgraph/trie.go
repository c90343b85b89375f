package reqgraph

import "strings"

// invalidateOnFileCreateAbove builds a filename trie of FileName nodes
// connected by dirname edges, with the File node for aboveFilePath marking
// both the start and the end of the chain via invalidated_by_create_above
// edges.
func (g *Graph) invalidateOnFileCreateAbove(reqID ID, fileName, aboveFilePath string) error {
	segments := splitReversed(fileName)
	if len(segments) == 0 {
		return &InvalidInvalidation{Msg: "fileName must not be empty"}
	}

	segIDs := make([]ID, len(segments))
	for i, seg := range segments {
		segIDs[i] = g.ensureFileNameNode(seg)
	}
	for i := 0; i < len(segIDs)-1; i++ {
		g.cg.AddEdge(segIDs[i], segIDs[i+1], EdgeDirname)
	}

	aboveID := g.ensureFileNode(aboveFilePath)

	head := segIDs[0]
	tail := segIDs[len(segIDs)-1]
	g.cg.AddEdge(aboveID, head, EdgeInvalidatedByCreateAbove)
	g.cg.AddEdge(tail, aboveID, EdgeInvalidatedByCreateAbove)

	g.cg.AddEdge(reqID, aboveID, EdgeInvalidatedByCreate)
	return nil
}

// splitReversed splits fileName on "/" and reverses it, so that the first
// element is the file's own basename and the last is its outermost declared
// ancestor directory segment.
func splitReversed(fileName string) []string {
	fileName = strings.Trim(fileName, "/")
	if fileName == "" {
		return nil
	}
	parts := strings.Split(fileName, "/")
	out := make([]string, len(parts))
	for i := range parts {
		out[i] = parts[len(parts)-1-i]
	}
	return out
}
