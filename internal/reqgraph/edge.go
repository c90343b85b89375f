package reqgraph

// EdgeLabel discriminates the six edge kinds connecting request-graph nodes.
type EdgeLabel uint8

const (
	// EdgeSubrequest: parent request depends on child request.
	EdgeSubrequest EdgeLabel = iota
	// EdgeInvalidatedByUpdate: request <- file/env/option, update invalidates.
	EdgeInvalidatedByUpdate
	// EdgeInvalidatedByDelete: request <- file, deletion invalidates.
	EdgeInvalidatedByDelete
	// EdgeInvalidatedByCreate: request <- file/glob/filename, creation invalidates.
	EdgeInvalidatedByCreate
	// EdgeInvalidatedByCreateAbove: paired edges forming the filename trie
	// endpoints.
	EdgeInvalidatedByCreateAbove
	// EdgeDirname: filename segment -> parent filename segment.
	EdgeDirname
)

func (l EdgeLabel) String() string {
	switch l {
	case EdgeSubrequest:
		return "subrequest"
	case EdgeInvalidatedByUpdate:
		return "invalidated_by_update"
	case EdgeInvalidatedByDelete:
		return "invalidated_by_delete"
	case EdgeInvalidatedByCreate:
		return "invalidated_by_create"
	case EdgeInvalidatedByCreateAbove:
		return "invalidated_by_create_above"
	case EdgeDirname:
		return "dirname"
	default:
		return "unknown"
	}
}
