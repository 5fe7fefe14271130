package block

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashFlatAggregation(t *testing.T) {
	schema := NewSchema([]Field{
		{Name: "host", Kind: String},
		{Name: "shard", Kind: Int32},
		{Name: "count", Kind: Int64},
	})
	hf, err := NewHashFlat(
		schema,
		[]string{"host", "shard", "count"},
		[]string{"host", "shard"},
		map[string]MergeFunc{"count": SumInt64},
	)
	require.NoError(t, err)

	const n = 101053
	for i := 0; i < n; i++ {
		_, _, err := hf.Add(MapRow{"host": "const-host", "shard": int32(0), "count": int64(1)})
		require.NoError(t, err)
	}

	fb := hf.FlatBuffer()
	require.EqualValues(t, 1, fb.Rows())
	v, ok := fb.Row(0).Get("count")
	require.True(t, ok)
	require.EqualValues(t, n, v)
}

func TestHashFlatUpsertCreatesDistinctKeys(t *testing.T) {
	schema := NewSchema([]Field{
		{Name: "host", Kind: String},
		{Name: "count", Kind: Int64},
	})
	hf, err := NewHashFlat(schema, []string{"host", "count"}, []string{"host"},
		map[string]MergeFunc{"count": SumInt64})
	require.NoError(t, err)

	for _, host := range []string{"a", "b", "a", "c", "b", "a"} {
		_, _, err := hf.Add(MapRow{"host": host, "count": int64(1)})
		require.NoError(t, err)
	}

	fb := hf.FlatBuffer()
	require.EqualValues(t, 3, fb.Rows())

	totals := map[string]int64{}
	for i := 0; i < int(fb.Rows()); i++ {
		host, _ := fb.Row(i).Get("host")
		count, _ := fb.Row(i).Get("count")
		totals[host.(string)] = count.(int64)
	}
	require.Equal(t, int64(3), totals["a"])
	require.Equal(t, int64(2), totals["b"])
	require.Equal(t, int64(1), totals["c"])
}
