package meta

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	require.Equal(t, Hourly, Extract("s3://b/dt={DATE}/hr={HOUR}"))
	require.Equal(t, Timestamp, Extract("s3://b/ts={timestamp}"))
	require.Equal(t, Invalid, Extract("s3://b/dt={DATE}/mi={MINUTE}"))
	require.Equal(t, Daily, Extract("s3://b/dt={date}"))
	require.Equal(t, Invalid, Extract("s3://b/hr={HOUR}"))
}

func TestMaterialize(t *testing.T) {
	wm := int64(1608422400) // 2020-12-20 00:00:00 UTC
	require.Equal(t, "s3://nebula/2020-12-20", Materialize(Daily, "s3://nebula/{date}", wm))
	require.Equal(t, "1608422400", Materialize(Timestamp, "{timestamp}", wm))
}

func TestEnumeratePaths(t *testing.T) {
	results := EnumeratePaths("s3://b/dt={date}/hr={hour}", map[string][]string{
		"date": {"2020-12-20"},
		"hour": {"00", "01"},
	})
	require.Len(t, results, 2)
	require.Contains(t, results, "s3://b/dt=2020-12-20/hr=00")
	require.Contains(t, results, "s3://b/dt=2020-12-20/hr=01")
}
