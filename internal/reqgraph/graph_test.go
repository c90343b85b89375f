package reqgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yudppp/parcel/internal/reasons"
)

func newRequest(id string) *StoredRequest {
	return &StoredRequest{ID: id, Type: "test"}
}

func TestClearThenFileUpdateRecordsExactlyOneInvalidation(t *testing.T) {
	g := New()
	g.EnsureRequestNode(newRequest("r"))
	require.NoError(t, g.ClearInvalidations("r"))
	require.NoError(t, g.InvalidateOnFileUpdate("r", "/x.txt"))

	_, reqID, _ := g.GetNodeByContentKey("r")
	fileIDs := g.cg.GetNodeIdsConnectedFrom(reqID, EdgeInvalidatedByUpdate)
	require.Len(t, fileIDs, 1)
	fn, _ := g.GetNode(fileIDs[0])
	assert.Equal(t, "/x.txt", fn.FilePath())
}

func TestFileUpdateInvalidatesDependent(t *testing.T) {
	g := New()
	g.EnsureRequestNode(newRequest("r"))
	require.NoError(t, g.InvalidateOnFileUpdate("r", "/x.txt"))

	assert.False(t, g.HasInvalidRequests())
	invalidated := g.RespondToFSEvents([]Event{{Path: "/x.txt", Type: EventUpdate}})
	assert.True(t, invalidated)
	assert.True(t, g.HasInvalidRequests())

	_, id, _ := g.GetNodeByContentKey("r")
	n, _ := g.GetNode(id)
	assert.True(t, n.Request().InvalidateReason.Has(reasons.FileUpdate))
}

func TestEnvChangeInvalidatesOnMismatch(t *testing.T) {
	g := New()
	g.EnsureRequestNode(newRequest("r"))
	require.NoError(t, g.InvalidateOnEnvChange("r", "FOO", "1"))

	g.InvalidateEnvNodes(map[string]string{"FOO": "1"})
	assert.False(t, g.HasInvalidRequests(), "matching env must not invalidate")

	g.InvalidateEnvNodes(map[string]string{"FOO": "2"})
	assert.True(t, g.HasInvalidRequests())
	_, id, _ := g.GetNodeByContentKey("r")
	n, _ := g.GetNode(id)
	assert.True(t, n.Request().InvalidateReason.Has(reasons.EnvChange))
}

func TestOptionChangeInvalidatesOnMismatch(t *testing.T) {
	g := New()
	g.EnsureRequestNode(newRequest("r"))
	require.NoError(t, g.InvalidateOnOptionChange("r", "mode", "production"))

	g.InvalidateOptionNodes(map[string]any{"mode": "production"})
	assert.False(t, g.HasInvalidRequests())

	g.InvalidateOptionNodes(map[string]any{"mode": "development"})
	assert.True(t, g.HasInvalidRequests())
}

func TestFileNameAboveInvalidatesOnlyWithinScope(t *testing.T) {
	g := New()
	g.EnsureRequestNode(newRequest("r"))
	require.NoError(t, g.InvalidateOnFileCreate("r", FileCreateInvalidation{
		FileName:      "node_modules/foo",
		AboveFilePath: "/proj/src/index.js",
	}))

	invalidated := g.RespondToFSEvents([]Event{{Path: "/proj/node_modules/foo", Type: EventCreate}})
	assert.True(t, invalidated)

	_, id, _ := g.GetNodeByContentKey("r")
	n, _ := g.GetNode(id)
	assert.True(t, n.Request().InvalidateReason.Has(reasons.FileCreate))
}

func TestFileNameAboveDoesNotMatchUnrelatedDirectory(t *testing.T) {
	g := New()
	g.EnsureRequestNode(newRequest("r"))
	require.NoError(t, g.InvalidateOnFileCreate("r", FileCreateInvalidation{
		FileName:      "node_modules/foo",
		AboveFilePath: "/proj/src/index.js",
	}))

	invalidated := g.RespondToFSEvents([]Event{{Path: "/other/node_modules/foo", Type: EventCreate}})
	assert.False(t, invalidated)
	assert.False(t, g.HasInvalidRequests())
}

func TestFileNameAboveSingleSegment(t *testing.T) {
	g := New()
	g.EnsureRequestNode(newRequest("r"))
	require.NoError(t, g.InvalidateOnFileCreate("r", FileCreateInvalidation{
		FileName:      "package.json",
		AboveFilePath: "/proj/src/index.js",
	}))

	invalidated := g.RespondToFSEvents([]Event{{Path: "/proj/package.json", Type: EventCreate}})
	assert.True(t, invalidated)
}

func TestGlobCreateInvalidates(t *testing.T) {
	g := New()
	g.EnsureRequestNode(newRequest("r"))
	require.NoError(t, g.InvalidateOnFileCreate("r", FileCreateInvalidation{Glob: "src/**/*.css"}))

	invalidated := g.RespondToFSEvents([]Event{{Path: "src/components/button.css", Type: EventCreate}})
	assert.True(t, invalidated)
}

func TestFileDeleteInvalidates(t *testing.T) {
	g := New()
	g.EnsureRequestNode(newRequest("r"))
	require.NoError(t, g.InvalidateOnFileDelete("r", "/x.txt"))

	invalidated := g.RespondToFSEvents([]Event{{Path: "/x.txt", Type: EventDelete}})
	assert.True(t, invalidated)
}

func TestInvalidateOnFileCreateRejectsMalformedShape(t *testing.T) {
	g := New()
	g.EnsureRequestNode(newRequest("r"))
	err := g.InvalidateOnFileCreate("r", FileCreateInvalidation{Glob: "a", FilePath: "b"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInvalidation)

	err = g.InvalidateOnFileCreate("r", FileCreateInvalidation{})
	assert.ErrorIs(t, err, ErrInvalidInvalidation)
}

func TestInvalidateIsTransitiveAcrossSubrequests(t *testing.T) {
	g := New()
	g.EnsureRequestNode(newRequest("parent"))
	g.EnsureRequestNode(newRequest("child"))

	_, parentID, _ := g.GetNodeByContentKey("parent")
	_, childID, _ := g.GetNodeByContentKey("child")
	g.cg.AddEdge(parentID, childID, EdgeSubrequest)

	require.NoError(t, g.InvalidateNode(childID, reasons.FileUpdate))

	assert.True(t, g.IsInvalid(childID))
	assert.True(t, g.IsInvalid(parentID), "ancestor must be invalidated transitively")
}

func TestAddEdgeIsAtMostOnePerTriple(t *testing.T) {
	g := New()
	g.EnsureRequestNode(newRequest("r"))
	require.NoError(t, g.InvalidateOnFileUpdate("r", "/x.txt"))
	require.NoError(t, g.InvalidateOnFileUpdate("r", "/x.txt"))

	_, reqID, _ := g.GetNodeByContentKey("r")
	ids := g.cg.GetNodeIdsConnectedFrom(reqID, EdgeInvalidatedByUpdate)
	assert.Len(t, ids, 1)
}

func TestRemoveNodePurgesSideIndices(t *testing.T) {
	g := New()
	g.EnsureRequestNode(newRequest("r"))
	_, id, _ := g.GetNodeByContentKey("r")
	require.NoError(t, g.InvalidateNode(id, reasons.Error))
	require.True(t, g.IsInvalid(id))

	g.RemoveNode(id)
	assert.False(t, g.IsInvalid(id))
	assert.False(t, g.HasNode(id))
}

func TestGCRemovesIsolatedAuxiliaryNodes(t *testing.T) {
	g := New()
	g.EnsureRequestNode(newRequest("r"))
	require.NoError(t, g.InvalidateOnFileUpdate("r", "/x.txt"))
	require.NoError(t, g.ClearInvalidations("r"))

	removed := g.GC()
	require.Len(t, removed, 1)
	assert.False(t, g.cg.HasContentKey("/x.txt"))
}

func TestExportImportRoundTripPreservesIDs(t *testing.T) {
	g := New()
	g.EnsureRequestNode(newRequest("r"))
	require.NoError(t, g.InvalidateOnFileUpdate("r", "/x.txt"))
	require.NoError(t, g.InvalidateOnEnvChange("r", "FOO", "1"))

	_, reqID, _ := g.GetNodeByContentKey("r")
	_, fileID, _ := g.GetNodeByContentKey("/x.txt")

	snap := g.Export()
	g2 := Import(snap)

	_, reqID2, ok := g2.GetNodeByContentKey("r")
	require.True(t, ok)
	assert.Equal(t, reqID, reqID2)

	_, fileID2, ok := g2.GetNodeByContentKey("/x.txt")
	require.True(t, ok)
	assert.Equal(t, fileID, fileID2)

	assert.ElementsMatch(t, g.EnvNodeIDs(), g2.EnvNodeIDs())
	assert.True(t, g2.cg.HasEdge(reqID2, fileID2, EdgeInvalidatedByUpdate))
}
