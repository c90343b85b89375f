// Package reqgraph implements the typed request dependency graph: six node
// kinds, six edge kinds, invalidation propagation, the filename trie for
// "create above" predicates, and the filesystem-event handler.
package reqgraph

import (
	"fmt"

	"github.com/yudppp/parcel/internal/reasons"
)

// Kind discriminates the six node variants.
type Kind uint8

const (
	KindFile Kind = iota
	KindGlob
	KindFileName
	KindEnv
	KindOption
	KindRequest
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "File"
	case KindGlob:
		return "Glob"
	case KindFileName:
		return "FileName"
	case KindEnv:
		return "Env"
	case KindOption:
		return "Option"
	case KindRequest:
		return "Request"
	default:
		return "Unknown"
	}
}

// StoredRequest is the payload carried by a Request node: everything the
// tracker needs to decide whether a cached result can be reused.
type StoredRequest struct {
	ID   string
	Type string

	// Input is an opaque, caller-defined description of the request's
	// arguments; the tracker never interprets it beyond passing it back
	// to the request body.
	Input any

	// Result/HasResult hold an inline result. When HasResult is false but
	// ResultCacheKey is set, the result lives in the object cache instead.
	Result         any
	HasResult      bool
	ResultCacheKey string

	InvalidateReason reasons.Reason
}

// Node is the tagged union of the six node variants. Kind-specific accessors
// below panic with a GraphInvariantViolation-flavored message if called
// against the wrong kind; callers that only hold an id should use Kind() to
// dispatch first.
type Node struct {
	kind Kind

	// File
	filePath string

	// Glob
	globPattern string

	// FileName
	segment string

	// Env
	envName    string
	envValue   string
	envPresent bool

	// Option
	optionName string
	optionHash string

	// Request
	request *StoredRequest
}

// ContentKey implements contentgraph.Node.
func (n *Node) ContentKey() string {
	switch n.kind {
	case KindFile:
		return n.filePath
	case KindGlob:
		return n.globPattern
	case KindFileName:
		return "file_name:" + n.segment
	case KindEnv:
		return "env:" + n.envName
	case KindOption:
		return "option:" + n.optionName
	case KindRequest:
		return n.request.ID
	default:
		return ""
	}
}

func (n *Node) Kind() Kind { return n.kind }

func NewFileNode(path string) *Node       { return &Node{kind: KindFile, filePath: path} }
func NewGlobNode(pattern string) *Node    { return &Node{kind: KindGlob, globPattern: pattern} }
func NewFileNameNode(segment string) *Node { return &Node{kind: KindFileName, segment: segment} }

func NewEnvNode(name, value string, present bool) *Node {
	return &Node{kind: KindEnv, envName: name, envValue: value, envPresent: present}
}

func NewOptionNode(name, hash string) *Node {
	return &Node{kind: KindOption, optionName: name, optionHash: hash}
}

func NewRequestNode(r *StoredRequest) *Node {
	return &Node{kind: KindRequest, request: r}
}

func (n *Node) FilePath() string {
	mustKind(n, KindFile)
	return n.filePath
}

func (n *Node) GlobPattern() string {
	mustKind(n, KindGlob)
	return n.globPattern
}

func (n *Node) Segment() string {
	mustKind(n, KindFileName)
	return n.segment
}

func (n *Node) EnvName() string {
	mustKind(n, KindEnv)
	return n.envName
}

func (n *Node) EnvValue() (string, bool) {
	mustKind(n, KindEnv)
	return n.envValue, n.envPresent
}

func (n *Node) SetEnvValue(value string, present bool) {
	mustKind(n, KindEnv)
	n.envValue = value
	n.envPresent = present
}

func (n *Node) OptionName() string {
	mustKind(n, KindOption)
	return n.optionName
}

func (n *Node) OptionHash() string {
	mustKind(n, KindOption)
	return n.optionHash
}

func (n *Node) SetOptionHash(hash string) {
	mustKind(n, KindOption)
	n.optionHash = hash
}

func (n *Node) Request() *StoredRequest {
	mustKind(n, KindRequest)
	return n.request
}

func mustKind(n *Node, want Kind) {
	if n.kind != want {
		panic(&GraphInvariantViolation{Msg: fmt.Sprintf("expected %s node, got %s", want, n.kind)})
	}
}
