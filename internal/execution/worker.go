// Copyright (c) 2015 Western Digital Corporation or its affiliates.  All rights reserved.
// SPDX-License-Identifier: MIT

package execution

import (
	"context"
	"fmt"

	log "github.com/golang/glog"

	"github.com/caoash/nebula/internal/block"
	"github.com/caoash/nebula/internal/ingest"
	"github.com/caoash/nebula/internal/meta"
)

// TableInfo is the per-table information a Worker needs to ingest into and
// query: its schema and the default field projection.
type TableInfo struct {
	Schema *block.Schema
	Fields []string
}

// Worker is the concrete worker-side TaskRunner/QueryRunner internal/rpcnode
// dispatches to: it ingests, expires, and answers queries against the local
// BlockManager. The query path here is deliberately minimal — filtering by
// table and time window, then concatenating matching blocks' rows — since
// the full filter/group/sort/aggregation DSL is an out-of-scope execution
// operator per spec.md §1; Worker only supplies the glue a real query
// engine would sit behind.
type Worker struct {
	bm       *BlockManager
	ingestor *Ingestor
	tables   map[string]TableInfo
}

// NewWorker builds a Worker over bm and ingestor, with table schema
// information sourced from the loaded cluster configuration.
func NewWorker(bm *BlockManager, ingestor *Ingestor, tables map[string]TableInfo) *Worker {
	return &Worker{bm: bm, ingestor: ingestor, tables: tables}
}

// RunTask executes a dispatched ingestion, expiration, or command task.
// Tasks() adapts this to rpcnode.TaskRunner.
func (w *Worker) RunTask(ctx context.Context, t ingest.Task) (ingest.TaskState, error) {
	switch t.Kind {
	case ingest.IngestionTask:
		return w.runIngest(ctx, t)
	case ingest.ExpirationTask:
		return w.runExpire(t)
	case ingest.CommandTask:
		log.Infof("execution: command task: %s", t.Command)
		return ingest.TaskSucceeded, nil
	}
	return ingest.TaskFailed, fmt.Errorf("execution: unknown task kind %v", t.Kind)
}

func (w *Worker) runIngest(ctx context.Context, t ingest.Task) (ingest.TaskState, error) {
	if t.IngestSpec == nil {
		return ingest.TaskFailed, fmt.Errorf("execution: ingestion task has no spec")
	}
	info, ok := w.tables[t.IngestSpec.Table]
	if !ok {
		return ingest.TaskFailed, fmt.Errorf("execution: unknown table %q", t.IngestSpec.Table)
	}
	if _, err := w.ingestor.Ingest(ctx, t.IngestSpec, info.Schema, info.Fields); err != nil {
		return ingest.TaskFailed, err
	}
	return ingest.TaskSucceeded, nil
}

func (w *Worker) runExpire(t ingest.Task) (ingest.TaskState, error) {
	for _, st := range t.ExpireSpecs {
		w.bm.RemoveBySpec(st.Table, st.SpecID)
	}
	return ingest.TaskSucceeded, nil
}

// RunQuery executes a query plan against this worker's local blocks.
// Queries() adapts this to rpcnode.QueryRunner.
func (w *Worker) RunQuery(ctx context.Context, plan ingest.QueryPlan) (ingest.BatchRows, error) {
	info, ok := w.tables[plan.Table]
	if !ok {
		return ingest.BatchRows{}, fmt.Errorf("execution: unknown table %q", plan.Table)
	}
	fields := plan.Fields
	if len(fields) == 0 {
		fields = info.Fields
	}

	filter := func(sig meta.BlockSignature, _ map[string]meta.ColumnStats) bool {
		if plan.TimeEnd == 0 && plan.TimeStart == 0 {
			return true
		}
		end := plan.TimeEnd
		if end == 0 {
			end = sig.TimeEnd
		}
		return sig.Overlaps(plan.TimeStart, end)
	}
	blocks := w.bm.Query(plan.Table, filter)

	stats := ingest.QueryStats{BlocksScan: uint64(len(blocks))}

	merged, err := block.New(info.Schema, fields)
	if err != nil {
		return ingest.BatchRows{}, err
	}
	for _, b := range blocks {
		if b.Data == nil {
			continue // shadow block; this node doesn't hold the rows
		}
		stats.RowsScan += b.Rows
		for i := 0; uint64(i) < b.Data.Rows(); i++ {
			row := b.Data.Row(i)
			if plan.Limit > 0 && int(stats.RowsRet) >= plan.Limit {
				break
			}
			if _, err := merged.Add(row); err != nil {
				continue
			}
			stats.RowsRet++
		}
		if plan.Limit > 0 && int(stats.RowsRet) >= plan.Limit {
			break
		}
	}

	data := make([]byte, merged.PrepareSerde())
	if _, err := merged.Serialize(data); err != nil {
		return ingest.BatchRows{}, err
	}

	return ingest.BatchRows{
		Schema: info.Schema,
		Type:   ingest.BatchFlat,
		Stats:  stats,
		Data:   data,
	}, nil
}

// taskRunner adapts Worker.RunTask to rpcnode.TaskRunner's single-method
// shape, keeping Worker itself free to expose RunTask/RunQuery under
// distinct names (Go does not allow two Run methods with different
// signatures on one type).
type taskRunner struct{ w *Worker }

// Run implements rpcnode.TaskRunner.
func (r taskRunner) Run(ctx context.Context, t ingest.Task) (ingest.TaskState, error) {
	return r.w.RunTask(ctx, t)
}

// Tasks returns w as an rpcnode.TaskRunner.
func (w *Worker) Tasks() taskRunner { return taskRunner{w} }

// queryRunner adapts Worker.RunQuery to rpcnode.QueryRunner's shape.
type queryRunner struct{ w *Worker }

// Run implements rpcnode.QueryRunner.
func (r queryRunner) Run(ctx context.Context, plan ingest.QueryPlan) (ingest.BatchRows, error) {
	return r.w.RunQuery(ctx, plan)
}

// Queries returns w as an rpcnode.QueryRunner.
func (w *Worker) Queries() queryRunner { return queryRunner{w} }
