package execution

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/caoash/nebula/internal/meta"
)

func testBlock(specID string, id uint64) *meta.BatchBlock {
	return meta.NewShadowBlock(meta.BlockSignature{
		Table: "events", SpecID: specID, ID: id, TimeStart: id, TimeEnd: id + 1,
	}, 100, 1000, nil)
}

func TestBlockManagerAddRemoveBySpecRoundTrip(t *testing.T) {
	bm := NewBlockManager()
	require.True(t, bm.Add("events", testBlock("s1", 0)))
	require.True(t, bm.Add("events", testBlock("s1", 1)))
	require.True(t, bm.Add("events", testBlock("s2", 0)))
	before := bm.NumBlocks()
	require.EqualValues(t, 3, before)

	removed := bm.RemoveBySpec("events", "s1")
	require.Equal(t, 2, removed)
	require.EqualValues(t, before-2, bm.NumBlocks())

	require.True(t, bm.Add("events", testBlock("s1", 0)))
	require.EqualValues(t, before-1, bm.NumBlocks())
}

func TestBlockManagerActiveSpecsAndEmptySpecs(t *testing.T) {
	bm := NewBlockManager()
	remote := TableStates{"events": meta.NewTableState("events")}
	remote["events"].Add(testBlock("s1", 0))
	bm.Swap("node-a", remote)

	active := bm.ActiveSpecs([]string{"node-a"})
	require.Contains(t, active, "s1")

	bm.RecordEmptySpec("s2")
	require.True(t, bm.HasSpec("events", "s2", "node-a"))
	bm.ClearEmptySpecs()
	require.False(t, bm.HasSpec("events", "s2", "node-a"))
}

func TestBlockManagerSwapAndRemoveNode(t *testing.T) {
	bm := NewBlockManager()
	states := TableStates{"events": meta.NewTableState("events")}
	states["events"].Add(testBlock("s1", 0))
	bm.Swap("node-a", states)
	require.Equal(t, states, bm.States("node-a"))

	bm.RemoveNode("node-a")
	require.Nil(t, bm.States("node-a"))
}
