// Package collab declares the external collaborator contracts the tracker
// core depends on but does not implement: the content-addressed object
// cache, the filesystem watcher/snapshot facility, and the worker pool
// handle. Only the interfaces matter here; concrete implementations live in
// internal/objectcache and internal/fswatch.
package collab

import "context"

// ObjectCache is the content-addressed object store the core reads/writes
// serialized request results and the persisted graph through.
type ObjectCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// WatcherOptions controls which paths a watch/snapshot call ignores.
type WatcherOptions struct {
	Ignore []string
}

// InputFS is the filesystem watcher/snapshot facility. The core only
// consumes an event stream and an opaque snapshot handle; it never watches
// the filesystem itself.
type InputFS interface {
	WriteSnapshot(ctx context.Context, root, snapshotPath string, opts WatcherOptions) error
	GetEventsSince(ctx context.Context, root, snapshotPath string, opts WatcherOptions) ([]Event, error)
}

// EventType is one of 'create', 'update', or 'delete'.
type EventType string

const (
	EventCreate EventType = "create"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// Event is one filesystem change reported by an InputFS.
type Event struct {
	Path string
	Type EventType
}

// WorkerPool is an opaque handle the tracker forwards to request bodies; the
// core never calls into it directly.
type WorkerPool interface {
	Handle() any
}
