// Copyright (c) 2015 Western Digital Corporation or its affiliates.  All rights reserved.
// SPDX-License-Identifier: MIT

package execution

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/caoash/nebula/internal/block"
	"github.com/caoash/nebula/internal/ingest"
	"github.com/caoash/nebula/internal/meta"
)

func workerFixture(body string) (*Worker, *BlockManager) {
	bm := NewBlockManager()
	in := NewIngestor(fakeLoader{body: body}, bm)
	schema := testSchema()
	w := NewWorker(bm, in, map[string]TableInfo{
		"events": {Schema: schema, Fields: []string{"user_id", "event_type", "count"}},
	})
	return w, bm
}

func TestWorkerRunTaskIngestsAndQueries(t *testing.T) {
	body := `{"user_id": 1, "event_type": "click", "count": 3}
{"user_id": 2, "event_type": "view", "count": 1}
`
	w, _ := workerFixture(body)

	spec := &meta.Spec{ID: "spec1", Table: "events", DomainLocator: "s3://bucket/x", TimeStart: 10, TimeEnd: 20}
	state, err := w.RunTask(context.Background(), ingest.Task{Kind: ingest.IngestionTask, IngestSpec: spec})
	require.NoError(t, err)
	require.Equal(t, ingest.TaskSucceeded, state)

	plan := ingest.NewQueryPlan("events", "")
	rows, err := w.RunQuery(context.Background(), plan)
	require.NoError(t, err)
	require.Equal(t, uint64(2), rows.Stats.RowsRet)
	require.Equal(t, ingest.BatchFlat, rows.Type)

	fb, err := block.Deserialize(rows.Schema, []string{"user_id", "event_type", "count"}, rows.Data)
	require.NoError(t, err)
	require.EqualValues(t, 2, fb.Rows())
}

func TestWorkerRunTaskExpireRemovesBlocks(t *testing.T) {
	body := `{"user_id": 1, "event_type": "click", "count": 3}`
	w, bm := workerFixture(body)

	spec := &meta.Spec{ID: "spec1", Table: "events", DomainLocator: "s3://bucket/x"}
	_, err := w.RunTask(context.Background(), ingest.Task{Kind: ingest.IngestionTask, IngestSpec: spec})
	require.NoError(t, err)
	require.NotEmpty(t, bm.Query("events", nil))

	_, err = w.RunTask(context.Background(), ingest.Task{
		Kind:        ingest.ExpirationTask,
		ExpireSpecs: []meta.SpecTable{{Table: "events", SpecID: "spec1"}},
	})
	require.NoError(t, err)
	require.Empty(t, bm.Query("events", nil))
}

func TestWorkerRunQueryLimitsRows(t *testing.T) {
	body := `{"user_id": 1, "event_type": "a", "count": 1}
{"user_id": 2, "event_type": "b", "count": 1}
{"user_id": 3, "event_type": "c", "count": 1}
`
	w, _ := workerFixture(body)
	spec := &meta.Spec{ID: "spec1", Table: "events", DomainLocator: "s3://bucket/x"}
	_, err := w.RunTask(context.Background(), ingest.Task{Kind: ingest.IngestionTask, IngestSpec: spec})
	require.NoError(t, err)

	plan := ingest.NewQueryPlan("events", "")
	plan.Limit = 2
	rows, err := w.RunQuery(context.Background(), plan)
	require.NoError(t, err)
	require.Equal(t, uint64(2), rows.Stats.RowsRet)
}
