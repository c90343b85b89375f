// Package fswatch implements collab.InputFS on top of directory snapshots:
// WriteSnapshot records the current tree, and GetEventsSince diffs a later
// tree against it to produce create/update/delete events.
package fswatch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/yudppp/parcel/internal/collab"
)

type fileStat struct {
	ModUnixNano int64
	Size        int64
}

type snapshot struct {
	Files map[string]fileStat
}

// FS is a collab.InputFS backed by filesystem walks diffed against a
// previously written snapshot file.
type FS struct{}

// New constructs an FS.
func New() *FS { return &FS{} }

// WriteSnapshot walks root and writes the current file-state table to
// snapshotPath, msgpack-encoded.
func (f *FS) WriteSnapshot(_ context.Context, root, snapshotPath string, opts collab.WatcherOptions) error {
	snap, err := walk(root, opts.Ignore)
	if err != nil {
		return err
	}
	raw, err := msgpack.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(snapshotPath), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	if err := os.WriteFile(snapshotPath, raw, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// GetEventsSince diffs root's current state against the snapshot recorded
// at snapshotPath, returning one Event per path that was created, updated,
// or deleted since. A missing snapshotPath is treated as an empty prior
// state, so every existing file is reported as a create.
func (f *FS) GetEventsSince(_ context.Context, root, snapshotPath string, opts collab.WatcherOptions) ([]collab.Event, error) {
	prev, err := loadSnapshot(snapshotPath)
	if err != nil {
		return nil, err
	}
	current, err := walk(root, opts.Ignore)
	if err != nil {
		return nil, err
	}

	var events []collab.Event
	for path, stat := range current.Files {
		old, existed := prev.Files[path]
		switch {
		case !existed:
			events = append(events, collab.Event{Path: path, Type: collab.EventCreate})
		case old != stat:
			events = append(events, collab.Event{Path: path, Type: collab.EventUpdate})
		}
	}
	for path := range prev.Files {
		if _, still := current.Files[path]; !still {
			events = append(events, collab.Event{Path: path, Type: collab.EventDelete})
		}
	}
	return events, nil
}

func loadSnapshot(path string) (snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return snapshot{Files: map[string]fileStat{}}, nil
		}
		return snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	var snap snapshot
	if err := msgpack.Unmarshal(raw, &snap); err != nil {
		return snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Files == nil {
		snap.Files = map[string]fileStat{}
	}
	return snap, nil
}

func walk(root string, ignore []string) (snapshot, error) {
	snap := snapshot{Files: map[string]fileStat{}}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if matchesAny(ignore, rel) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		snap.Files[rel] = fileStat{ModUnixNano: info.ModTime().UnixNano(), Size: info.Size()}
		return nil
	})
	if err != nil {
		return snapshot{}, fmt.Errorf("walk %s: %w", root, err)
	}
	return snap, nil
}

func matchesAny(patterns []string, path string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, strings.TrimPrefix(path, "/")); ok {
			return true
		}
	}
	return false
}
