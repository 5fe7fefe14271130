package block

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func testSchema() *Schema {
	return NewSchema([]Field{
		{Name: "_time_", Kind: Int64},
		{Name: "id", Kind: Int32},
		{Name: "event", Kind: String},
		{Name: "items", Kind: List, ItemKind: String},
		{Name: "flag", Kind: Bool},
		{Name: "value", Kind: Int8},
		{Name: "i128", Kind: Int128},
		{Name: "weight", Kind: Float64},
	})
}

func testFieldNames() []string {
	return []string{"_time_", "id", "event", "items", "flag", "value", "i128", "weight"}
}

func randomRow(r *rand.Rand, i int) MapRow {
	items := make([]interface{}, r.Intn(4))
	for j := range items {
		items[j] = randString(r, 6)
	}
	return MapRow{
		"_time_": int64(1600000000 + i),
		"id":     int32(i),
		"event":  randString(r, 12),
		"items":  items,
		"flag":   i%2 == 0,
		"value":  int8(r.Intn(128)),
		"i128":   Int128FromInt64(int64(i) * 1_000_003),
		"weight": r.Float64() * 1000,
	}
}

func randString(r *rand.Rand, n int) string {
	const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[r.Intn(len(alphabet))]
	}
	return string(b)
}

func TestFlatBufferRoundTrip(t *testing.T) {
	schema := testSchema()
	fields := testFieldNames()
	fb, err := New(schema, fields)
	require.NoError(t, err)

	r := rand.New(rand.NewSource(42))
	const n = 21053
	rows := make([]MapRow, n)
	for i := 0; i < n; i++ {
		rows[i] = randomRow(r, i)
		idx, err := fb.Add(rows[i])
		require.NoError(t, err)
		require.Equal(t, i, idx)
	}
	require.EqualValues(t, n, fb.Rows())

	size := fb.PrepareSerde()
	buf := make([]byte, size)
	written, err := fb.Serialize(buf)
	require.NoError(t, err)
	require.Equal(t, size, written)

	back, err := Deserialize(schema, fields, buf)
	require.NoError(t, err)
	require.EqualValues(t, n, back.Rows())

	for i := 0; i < n; i++ {
		for _, name := range fields {
			want, wantOK := rows[i].Get(name)
			got, gotOK := back.Row(i).Get(name)
			require.Equal(t, wantOK, gotOK, "field %s row %d presence", name, i)
			require.Equal(t, want, got, "field %s row %d", name, i)
		}
	}
}

func TestFlatBufferRollback(t *testing.T) {
	schema := testSchema()
	fields := testFieldNames()
	fb, err := New(schema, fields)
	require.NoError(t, err)

	r := rand.New(rand.NewSource(7))
	for i := 0; i < 5; i++ {
		_, err := fb.Add(randomRow(r, i))
		require.NoError(t, err)
	}
	require.EqualValues(t, 5, fb.Rows())
	fb.Rollback()
	require.EqualValues(t, 4, fb.Rows())

	for i := 0; i < 5; i++ {
		_, err := fb.Add(randomRow(r, 100+i))
		require.NoError(t, err)
		fb.Rollback()
		require.EqualValues(t, 4, fb.Rows())
	}

	idx, err := fb.Add(randomRow(r, 999))
	require.NoError(t, err)
	require.Equal(t, 4, idx)
	require.EqualValues(t, 5, fb.Rows())
}

func TestFlatBufferSchemaMismatch(t *testing.T) {
	schema := testSchema()
	fb, err := New(schema, testFieldNames())
	require.NoError(t, err)

	_, err = fb.Add(MapRow{"id": "not-an-int32"})
	require.Error(t, err)
	require.EqualValues(t, 0, fb.Rows())
}
