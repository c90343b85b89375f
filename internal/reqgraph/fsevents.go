package reqgraph

import (
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/yudppp/parcel/internal/reasons"
)

// EventType is the kind of filesystem change reported by the input
// collaborator.
type EventType uint8

const (
	EventCreate EventType = iota
	EventUpdate
	EventDelete
)

// Event is one filesystem change.
type Event struct {
	Path string
	Type EventType
}

// RespondToFSEvents folds a batch of filesystem events into the graph,
// propagating invalidation. Events are processed in the order supplied;
// within one event, node invalidations are applied before moving to the
// next. Returns true iff at least one invalidation happened and the graph
// now has invalid requests.
func (g *Graph) RespondToFSEvents(events []Event) bool {
	invalidatedAny := false
	for _, ev := range events {
		if g.respondToOne(ev) {
			invalidatedAny = true
		}
	}
	return invalidatedAny && g.HasInvalidRequests()
}

func (g *Graph) respondToOne(ev Event) bool {
	invalidated := false

	switch ev.Type {
	case EventUpdate:
		invalidated = g.onKnownPathUpdate(ev.Path) || invalidated
		// Platform quirk: some watchers report a create event
		// for a path the graph already knows about; treat it like an
		// update in that case too. Handled in the create branch below.
	case EventCreate:
		if g.cg.HasContentKey(ev.Path) {
			// Some watchers report create for a path the graph already
			// tracks; tolerate it as an update too.
			invalidated = g.onKnownPathUpdate(ev.Path) || invalidated
		}
		invalidated = g.onCreate(ev.Path) || invalidated
	case EventDelete:
		invalidated = g.onDelete(ev.Path) || invalidated
	}

	return invalidated
}

func (g *Graph) onKnownPathUpdate(p string) bool {
	n, id, ok := g.cg.GetNodeByContentKey(p)
	if !ok || n.Kind() != KindFile {
		return false
	}
	invalidated := false
	for _, reqID := range g.cg.GetNodeIdsConnectedTo(id, EdgeInvalidatedByUpdate) {
		g.InvalidateNode(reqID, reasons.FileUpdate)
		invalidated = true
	}
	return invalidated
}

func (g *Graph) onDelete(p string) bool {
	n, id, ok := g.cg.GetNodeByContentKey(p)
	if !ok || n.Kind() != KindFile {
		return false
	}
	invalidated := false
	for _, reqID := range g.cg.GetNodeIdsConnectedTo(id, EdgeInvalidatedByDelete) {
		g.InvalidateNode(reqID, reasons.FileDelete)
		invalidated = true
	}
	return invalidated
}

func (g *Graph) onCreate(p string) bool {
	invalidated := false

	base := path.Base(p)
	if n, segID, ok := g.cg.GetNodeByContentKey("file_name:" + base); ok && n.Kind() == KindFileName {
		if g.invalidateFileNameNode(segID, path.Dir(p)) {
			invalidated = true
		}
	}

	for _, globID := range g.GlobNodeIDs() {
		gn, ok := g.cg.GetNode(globID)
		if !ok {
			continue
		}
		ok, err := doublestar.Match(gn.GlobPattern(), strings.TrimPrefix(p, "/"))
		if err != nil || !ok {
			continue
		}
		for _, reqID := range g.cg.GetNodeIdsConnectedTo(globID, EdgeInvalidatedByCreate) {
			g.InvalidateNode(reqID, reasons.FileCreate)
			invalidated = true
		}
	}

	return invalidated
}

// invalidateFileNameNode is the recursive "walk the dirname chain" matcher
// for the filename-above trie. remainingDir is the directory that would
// remain once every segment consumed so far (including segID) is stripped
// from the event path.
func (g *Graph) invalidateFileNameNode(segID ID, remainingDir string) bool {
	invalidated := false

	// End-of-chain matches: File nodes reached via segID -> P edges.
	for _, pID := range g.cg.GetNodeIdsConnectedFrom(segID, EdgeInvalidatedByCreateAbove) {
		pNode, ok := g.cg.GetNode(pID)
		if !ok || pNode.Kind() != KindFile {
			continue
		}
		if isAncestorOrEqual(remainingDir, path.Dir(pNode.FilePath())) {
			for _, reqID := range g.cg.GetNodeIdsConnectedTo(pID, EdgeInvalidatedByCreate) {
				g.InvalidateNode(reqID, reasons.FileCreate)
				invalidated = true
			}
		}
	}

	for _, parentID := range g.cg.GetNodeIdsConnectedFrom(segID, EdgeDirname) {
		parent, ok := g.cg.GetNode(parentID)
		if !ok {
			continue
		}
		if path.Base(remainingDir) != parent.Segment() {
			continue
		}
		if g.invalidateFileNameNode(parentID, path.Dir(remainingDir)) {
			invalidated = true
		}
	}

	return invalidated
}

// isAncestorOrEqual reports whether ancestor is dir itself or a directory
// strictly above dir in the filesystem tree. Both arguments are treated as
// slash-separated absolute or relative paths already cleaned by path.Dir.
func isAncestorOrEqual(ancestor, dir string) bool {
	ancestor = path.Clean(ancestor)
	dir = path.Clean(dir)
	if ancestor == dir {
		return true
	}
	prefix := ancestor
	if prefix != "/" {
		prefix += "/"
	}
	return strings.HasPrefix(dir, prefix)
}
