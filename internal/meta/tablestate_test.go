package meta

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func sig(spec string, id uint64, start, end uint64) BlockSignature {
	return BlockSignature{Table: "events", SpecID: spec, ID: id, TimeStart: start, TimeEnd: end}
}

func TestTableStateAddRemoveBySpec(t *testing.T) {
	ts := NewTableState("events")
	require.True(t, ts.Add(NewShadowBlock(sig("s1", 0, 0, 100), 10, 1000, nil)))
	require.True(t, ts.Add(NewShadowBlock(sig("s1", 1, 100, 200), 20, 2000, nil)))
	require.True(t, ts.Add(NewShadowBlock(sig("s2", 0, 200, 300), 5, 500, nil)))

	require.EqualValues(t, 35, ts.Rows())
	require.EqualValues(t, 2, len(ts.Specs()))

	// duplicate insert is a no-op
	require.False(t, ts.Add(NewShadowBlock(sig("s1", 0, 0, 100), 10, 1000, nil)))
	require.EqualValues(t, 35, ts.Rows())

	removed := ts.RemoveBySpec("s1")
	require.Equal(t, 2, removed)
	require.EqualValues(t, 5, ts.Rows())
	require.False(t, ts.HasSpec("s1"))
	require.True(t, ts.HasSpec("s2"))
}

func TestTableStateQueryWindow(t *testing.T) {
	ts := NewTableState("events")
	ts.Add(NewShadowBlock(sig("s1", 0, 0, 100), 1, 1, nil))
	ts.Add(NewShadowBlock(sig("s1", 1, 100, 200), 1, 1, nil))
	ts.Add(NewShadowBlock(sig("s1", 2, 300, 400), 1, 1, nil))

	got := ts.QueryWindow(100, 100)
	require.Len(t, got, 2) // inclusive boundary touches both [0,100] and [100,200]

	got = ts.QueryWindow(250, 290)
	require.Len(t, got, 0)
}

func TestTableStateMergeCommutative(t *testing.T) {
	a := NewTableState("events")
	a.Add(NewShadowBlock(sig("s1", 0, 0, 100), 10, 100, nil))

	b := NewTableState("events")
	b.Add(NewShadowBlock(sig("s2", 0, 100, 200), 20, 200, nil))

	merged1 := NewTableState("events")
	merged1.Merge(a)
	merged1.Merge(b)

	merged2 := NewTableState("events")
	merged2.Merge(b)
	merged2.Merge(a)

	require.Equal(t, merged1.Rows(), merged2.Rows())
	require.Equal(t, merged1.Specs(), merged2.Specs())
}
