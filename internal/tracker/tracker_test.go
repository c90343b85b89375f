package tracker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yudppp/parcel/internal/reqgraph"
	"github.com/yudppp/parcel/internal/request"
)

type memCache struct {
	entries map[string][]byte
}

func newMemCache() *memCache { return &memCache{entries: map[string][]byte{}} }

func (m *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.entries[key]
	return v, ok, nil
}

func (m *memCache) Set(_ context.Context, key string, value []byte) error {
	m.entries[key] = value
	return nil
}

func TestRunRequestExecutesOnceAndCachesResult(t *testing.T) {
	g := reqgraph.New()
	tr := New(g)

	var runs int32
	spec := request.Spec{
		ID:   "build:a",
		Type: "build",
		Run: func(ctx context.Context, rc request.RunContext) (any, error) {
			atomic.AddInt32(&runs, 1)
			return "result-a", nil
		},
	}

	result, err := tr.RunRequest(context.Background(), spec, request.RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, "result-a", result)
	assert.EqualValues(t, 1, runs)

	result, err = tr.RunRequest(context.Background(), spec, request.RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, "result-a", result)
	assert.EqualValues(t, 1, runs, "second run must be served from cache, not re-executed")
}

func TestRunRequestForceReruns(t *testing.T) {
	g := reqgraph.New()
	tr := New(g)

	var runs int32
	spec := request.Spec{
		ID: "build:b",
		Run: func(ctx context.Context, rc request.RunContext) (any, error) {
			atomic.AddInt32(&runs, 1)
			return runs, nil
		},
	}

	_, err := tr.RunRequest(context.Background(), spec, request.RunOptions{})
	require.NoError(t, err)
	_, err = tr.RunRequest(context.Background(), spec, request.RunOptions{Force: true})
	require.NoError(t, err)
	assert.EqualValues(t, 2, runs)
}

func TestRunRequestRejectsOnError(t *testing.T) {
	g := reqgraph.New()
	tr := New(g)

	boom := errors.New("boom")
	spec := request.Spec{
		ID: "build:c",
		Run: func(ctx context.Context, rc request.RunContext) (any, error) {
			return nil, boom
		},
	}

	_, err := tr.RunRequest(context.Background(), spec, request.RunOptions{})
	require.ErrorIs(t, err, boom)

	_, id, ok := g.GetNodeByContentKey("build:c")
	require.True(t, ok)
	assert.True(t, g.IsInvalid(id))
	assert.False(t, g.IsIncomplete(id))
}

func TestRunRequestRevalidatesAfterInvalidation(t *testing.T) {
	g := reqgraph.New()
	tr := New(g)

	var runs int32
	spec := request.Spec{
		ID: "build:d",
		Run: func(ctx context.Context, rc request.RunContext) (any, error) {
			atomic.AddInt32(&runs, 1)
			rc.API.InvalidateOnFileUpdate("/src/main.go")
			return "ok", nil
		},
	}

	_, err := tr.RunRequest(context.Background(), spec, request.RunOptions{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, runs)

	invalidated := g.RespondToFSEvents([]reqgraph.Event{{Path: "/src/main.go", Type: reqgraph.EventUpdate}})
	require.True(t, invalidated)

	_, err = tr.RunRequest(context.Background(), spec, request.RunOptions{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, runs, "invalidated request must rerun")
}

func TestRunOnceLeavesRequestInvalidWhenContextCancelledAfterRun(t *testing.T) {
	g := reqgraph.New()
	tr := New(g)

	ctx, cancel := context.WithCancel(context.Background())
	spec := request.Spec{
		ID: "build:cancelled",
		Run: func(ctx context.Context, rc request.RunContext) (any, error) {
			// Run succeeds, but the caller's context is cancelled by the time
			// it returns (e.g. a timeout fired mid-run without Run noticing).
			cancel()
			return "ok", nil
		},
	}

	_, err := tr.runOnce(ctx, spec, request.RunOptions{})
	require.ErrorIs(t, err, ErrCancelled)

	_, id, ok := g.GetNodeByContentKey("build:cancelled")
	require.True(t, ok)
	assert.True(t, g.IsInvalid(id), "a cancelled run must not be left VALID")
	assert.False(t, g.IsIncomplete(id))
	assert.False(t, g.HasValidResult(id), "retry must be possible after cancellation")
}

func TestRunRequestRecordsSubrequestEdges(t *testing.T) {
	g := reqgraph.New()
	tr := New(g)

	child := request.Spec{
		ID: "child",
		Run: func(ctx context.Context, rc request.RunContext) (any, error) {
			return "child-result", nil
		},
	}
	parent := request.Spec{
		ID: "parent",
		Run: func(ctx context.Context, rc request.RunContext) (any, error) {
			v, err := rc.API.RunRequest(ctx, child, request.RunOptions{})
			if err != nil {
				return nil, err
			}
			return "parent-" + v.(string), nil
		},
	}

	result, err := tr.RunRequest(context.Background(), parent, request.RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, "parent-child-result", result)

	_, parentID, _ := g.GetNodeByContentKey("parent")
	_, childID, _ := g.GetNodeByContentKey("child")
	assert.True(t, g.HasNode(parentID))
	assert.True(t, g.HasNode(childID))
	assert.Equal(t, []reqgraph.ID{childID}, g.DependencyIDs(parentID, reqgraph.EdgeSubrequest))
}

func TestStoreResultWithCacheKeyRoundTripsThroughObjectCache(t *testing.T) {
	g := reqgraph.New()
	cache := newMemCache()
	tr := New(g, WithObjectCache(cache))

	spec := request.Spec{
		ID: "build:e",
		Run: func(ctx context.Context, rc request.RunContext) (any, error) {
			if err := rc.API.StoreResult(ctx, "heavy-result", "objkey:e"); err != nil {
				return nil, err
			}
			return "heavy-result", nil
		},
	}

	_, err := tr.RunRequest(context.Background(), spec, request.RunOptions{})
	require.NoError(t, err)
	assert.Contains(t, cache.entries, "objkey:e")

	// Drop the inline copy so the read below has to go through the cache.
	n, _, _ := g.GetNodeByContentKey("build:e")
	n.Request().Result = nil
	n.Request().HasResult = false

	got, err := tr.RequestResult(context.Background(), "build:e")
	require.NoError(t, err)
	assert.Equal(t, "heavy-result", got)
}

func TestHooksFireAroundRun(t *testing.T) {
	g := reqgraph.New()
	var before, after []string
	h := recordingHooks{
		onBefore: func(id string) { before = append(before, id) },
		onAfter:  func(id string, err error) { after = append(after, id) },
	}
	tr := New(g, WithHooks(h))

	spec := request.Spec{
		ID:  "build:f",
		Run: func(ctx context.Context, rc request.RunContext) (any, error) { return nil, nil },
	}
	_, err := tr.RunRequest(context.Background(), spec, request.RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"build:f"}, before)
	assert.Equal(t, []string{"build:f"}, after)
}

type recordingHooks struct {
	onBefore func(id string)
	onAfter  func(id string, err error)
}

func (h recordingHooks) BeforeRequest(ctx context.Context, requestID string) { h.onBefore(requestID) }
func (h recordingHooks) AfterRequest(ctx context.Context, requestID string, err error) {
	h.onAfter(requestID, err)
}
