// Package persistence derives the cache key a run's request graph and
// filesystem snapshot are stored under, and loads/saves the request graph
// through a collab.ObjectCache. The filesystem snapshot itself is not read
// or written here.
package persistence

import (
	"context"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/zeebo/blake3"

	"github.com/yudppp/parcel/internal/collab"
	"github.com/yudppp/parcel/internal/reqgraph"
)

// CacheKeyInputs is everything that determines whether a previously
// persisted graph can be reused: the engine version and the sorted
// identity of the entry requests this run was asked to build. A version
// bump, or a different set of entries, produces a different key and so
// implicitly invalidates the whole cache rather than requiring an explicit
// migration step.
type CacheKeyInputs struct {
	EngineVersion string
	Entries       []string
}

// CacheKey derives the deterministic root cache key for in.
func CacheKey(in CacheKeyInputs) string {
	entries := append([]string(nil), in.Entries...)
	sort.Strings(entries)

	h := blake3.New()
	fmt.Fprintf(h, "engine:%s\n", in.EngineVersion)
	for _, e := range entries {
		fmt.Fprintf(h, "entry:%s\n", e)
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum)
}

// graphKey and snapshotKey derive the two keys actually stored under root,
// as fixed suffixes of the root cache key.
func graphKey(root string) string    { return "k:" + root + ":requestGraph" }
func snapshotKey(root string) string { return "k:" + root + ":snapshot" }

// SnapshotPath returns the stable key identifying the filesystem snapshot
// associated with root; GetEventsSince treats a missing key as "no prior
// snapshot".
func SnapshotPath(root string) string { return snapshotKey(root) }

// LoadRequestGraph loads and decodes the request graph persisted under
// root's cache key, or returns (nil, false, nil) if none exists yet (a
// version bump or new entry set falls through here because root itself
// changed).
func LoadRequestGraph(ctx context.Context, cache collab.ObjectCache, root string) (*reqgraph.Graph, bool, error) {
	raw, found, err := cache.Get(ctx, graphKey(root))
	if err != nil {
		return nil, false, fmt.Errorf("load request graph: %w", err)
	}
	if !found {
		return nil, false, nil
	}
	var snap reqgraph.Snapshot
	if err := msgpack.Unmarshal(raw, &snap); err != nil {
		return nil, false, fmt.Errorf("decode request graph: %w", err)
	}
	return reqgraph.Import(snap), true, nil
}

// SaveRequestGraph encodes and persists g under root's cache key.
func SaveRequestGraph(ctx context.Context, cache collab.ObjectCache, root string, g *reqgraph.Graph) error {
	raw, err := msgpack.Marshal(g.Export())
	if err != nil {
		return fmt.Errorf("encode request graph: %w", err)
	}
	if err := cache.Set(ctx, graphKey(root), raw); err != nil {
		return fmt.Errorf("save request graph: %w", err)
	}
	return nil
}
