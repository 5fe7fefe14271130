package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/caoash/nebula/internal/block"
	"github.com/caoash/nebula/internal/execution"
	"github.com/caoash/nebula/internal/meta"
)

type fakeClient struct{}

func (fakeClient) Update(ctx context.Context) (uint64, error) { return 0, nil }
func (fakeClient) Task(ctx context.Context, t Task) (TaskState, error) {
	return TaskSucceeded, nil
}
func (fakeClient) Execute(ctx context.Context, plan QueryPlan) (BatchRows, error) {
	return BatchRows{}, nil
}

func fakeClientMaker(addr string) NodeClient { return fakeClient{} }

func specsWithAffinity(n int) []*meta.Spec {
	out := make([]*meta.Spec, n)
	for i := range out {
		out[i] = &meta.Spec{ID: string(rune('a' + i)), Table: "events", State: meta.SpecNew}
	}
	return out
}

func TestAssignDeterministicSplit(t *testing.T) {
	cluster := meta.NewClusterInfo(nil)
	cluster.Update(meta.Node{Addr: "node-100", Active: true, MemUsed: 100})
	cluster.Update(meta.Node{Addr: "node-200", Active: true, MemUsed: 200})

	bm := execution.NewBlockManager()
	repo := NewSpecRepository(nil, cluster, bm)
	reg := repo.registryFor("events")
	reg.Update(specsWithAffinity(3))

	tasks, nodeCount := repo.Assign(context.Background(), fakeClientMaker)
	require.Equal(t, 2, nodeCount)
	require.Equal(t, 3, tasks)

	counts := map[string]int{}
	for _, s := range repo.RegistrySnapshot("events") {
		counts[s.Affinity]++
		require.Equal(t, meta.SpecReady, s.State)
	}
	require.Equal(t, 2, counts["node-100"])
	require.Equal(t, 1, counts["node-200"])
}

func TestLostRecoveryReassignsToSurvivor(t *testing.T) {
	cluster := meta.NewClusterInfo(nil)
	cluster.Update(meta.Node{Addr: "node-1", Active: true, MemUsed: 100})
	cluster.Update(meta.Node{Addr: "node-2", Active: true, MemUsed: 200})

	bm := execution.NewBlockManager()
	repo := NewSpecRepository(nil, cluster, bm)
	reg := repo.registryFor("events")
	reg.Update(specsWithAffinity(3))

	repo.Assign(context.Background(), fakeClientMaker)

	cluster.MarkLost("node-1")
	repo.Lost("node-1")

	tasks, _ := repo.Assign(context.Background(), fakeClientMaker)
	require.True(t, tasks > 0)

	for _, s := range repo.RegistrySnapshot("events") {
		require.Equal(t, "node-2", s.Affinity)
		require.Equal(t, meta.SpecReady, s.State)
	}
}

type stubClient struct{ rows BatchRows }

func (s stubClient) Update(ctx context.Context) (uint64, error) { return 0, nil }
func (s stubClient) Task(ctx context.Context, t Task) (TaskState, error) {
	return TaskSucceeded, nil
}
func (s stubClient) Execute(ctx context.Context, plan QueryPlan) (BatchRows, error) {
	return s.rows, nil
}

func TestExecuteSkipsNodesWithNoAffinityAndMerges(t *testing.T) {
	schema := block.NewSchema([]block.Field{{Name: "user_id", Kind: block.Int64}})

	cluster := meta.NewClusterInfo(nil)
	cluster.Update(meta.Node{Addr: "node-1", Active: true})
	bm := execution.NewBlockManager()
	cfg := TableConfig{Name: "events", Schema: schema, Fields: []string{"user_id"}}
	repo := NewSpecRepository([]TableConfig{cfg}, cluster, bm)

	reg := repo.registryFor("events")
	reg.Update([]*meta.Spec{
		{ID: "s1", Table: "events", Affinity: "node-1", TimeStart: 1, TimeEnd: 10},
		{ID: "s2", Table: "events", Affinity: meta.NoAffinity, TimeStart: 1, TimeEnd: 10},
	})

	fb, err := block.New(schema, []string{"user_id"})
	require.NoError(t, err)
	_, err = fb.Add(block.MapRow{"user_id": int64(7)})
	require.NoError(t, err)
	data := make([]byte, fb.PrepareSerde())
	_, err = fb.Serialize(data)
	require.NoError(t, err)

	reply := BatchRows{Schema: schema, Type: BatchFlat, Data: data, Stats: QueryStats{RowsScan: 1, BlocksScan: 1}}
	seen := map[string]bool{}
	maker := func(addr string) NodeClient {
		seen[addr] = true
		return stubClient{rows: reply}
	}

	plan := NewQueryPlan("events", "")
	rows, err := repo.Execute(context.Background(), plan, maker)
	require.NoError(t, err)
	require.Equal(t, uint64(1), rows.Stats.RowsRet)
	require.Equal(t, []string{"node-1"}, keysOf(seen))

	merged, err := block.Deserialize(schema, []string{"user_id"}, rows.Data)
	require.NoError(t, err)
	require.EqualValues(t, 1, merged.Rows())
}

func keysOf(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
