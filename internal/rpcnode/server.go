// Copyright (c) 2015 Western Digital Corporation or its affiliates.  All rights reserved.
// SPDX-License-Identifier: MIT

package rpcnode

import (
	"context"
	"encoding/json"
	"runtime"

	log "github.com/golang/glog"
	"gopkg.in/vmihailenco/msgpack.v2"

	"github.com/caoash/nebula/internal/execution"
	"github.com/caoash/nebula/internal/ingest"
	"github.com/caoash/nebula/internal/meta"
	"github.com/caoash/nebula/internal/pool"
	"github.com/caoash/nebula/pkg/rpc"
)

// TaskRunner executes a dispatched Task against this node's local state:
// ingestion, expiration, or an operator command.
type TaskRunner interface {
	Run(ctx context.Context, t ingest.Task) (ingest.TaskState, error)
}

// QueryRunner executes a query plan against this node's local blocks.
type QueryRunner interface {
	Run(ctx context.Context, plan ingest.QueryPlan) (ingest.BatchRows, error)
}

// NodeSrvHandler is the worker-side RPC handler: it answers the
// coordinator's Echo/Echos/Poll/Task/Query RPCs over the bulk gob codec.
// Task and Query both run on pool, a two-priority thread pool, per
// spec.md §5's "high for query execution, low for ingestion and
// expiration" scheduling model — query execution never waits behind a
// queued ingest.
type NodeSrvHandler struct {
	bm      *execution.BlockManager
	tasks   TaskRunner
	queries QueryRunner
	pool    *pool.WorkerPool
}

// NewNodeSrvHandler builds a handler over the local node's BlockManager,
// task runner, query runner, and worker pool.
func NewNodeSrvHandler(bm *execution.BlockManager, tasks TaskRunner, queries QueryRunner, workers *pool.WorkerPool) *NodeSrvHandler {
	return &NodeSrvHandler{bm: bm, tasks: tasks, queries: queries, pool: workers}
}

// Register registers the handler's RPCs with the default Go RPC server,
// following rpc.RegisterName's usual one-handler-per-name convention.
func (h *NodeSrvHandler) Register() error {
	return rpc.RegisterName("NodeSrvHandler", h)
}

// Echo answers a liveness probe.
func (h *NodeSrvHandler) Echo(req EchoReq, reply *EchoReply) error {
	reply.Nonce = req.Nonce
	return nil
}

// Echos answers a liveness probe for a batch of downstream peer addresses,
// by issuing Echo to each one over a fresh connection.
func (h *NodeSrvHandler) Echos(req EchosReq, reply *EchosReply) error {
	cc := rpc.NewConnectionCache(dialTimeout, rpcTimeout, len(req.Addrs)+1)
	reply.Alive = make([]bool, len(req.Addrs))
	for i, addr := range req.Addrs {
		var r EchoReply
		reply.Alive[i] = cc.Send(context.Background(), addr, EchoMethod, &EchoReq{}, &r) == nil
	}
	return nil
}

// Poll reports this node's current blocks and empty specs.
func (h *NodeSrvHandler) Poll(req PollReq, reply *PollReply) error {
	reply.MemUsed = memUsed()
	for table := range h.bm.Tables(0) {
		for _, b := range h.bm.Query(table, func(meta.BlockSignature, map[string]meta.ColumnStats) bool { return true }) {
			reply.Blocks = append(reply.Blocks, blockToWire(b))
		}
	}
	for s := range h.bm.EmptySpecs() {
		reply.EmptySpecs = append(reply.EmptySpecs, s)
	}
	return nil
}

// Task dispatches an ingestion, expiration, or command task to the local
// TaskRunner.
func (h *NodeSrvHandler) Task(req *TaskReq, reply *TaskReply) error {
	t := ingest.Task{
		Kind:        req.Kind,
		ExpireSpecs: req.ExpireSpecs,
		Command:     req.Command,
		Sync:        req.Sync,
	}
	if len(req.IngestSpec) > 0 {
		var spec meta.Spec
		if err := msgpack.Unmarshal(req.IngestSpec, &spec); err != nil {
			return err
		}
		t.IngestSpec = &spec
	}

	var state ingest.TaskState
	var runErr error
	done := make(chan struct{})
	h.pool.Submit(pool.LowPriority, func() {
		defer close(done)
		state, runErr = h.tasks.Run(context.Background(), t)
	})
	<-done

	if runErr != nil {
		log.Errorf("rpcnode: task %v failed: %s", req.Kind, runErr)
	}
	reply.State = state
	return nil
}

// Query runs a query plan against local blocks, scheduled at HighPriority
// so it never queues behind ingestion/expiration work.
func (h *NodeSrvHandler) Query(req *QueryReq, reply *QueryReply) error {
	var rows ingest.BatchRows
	var runErr error
	done := make(chan struct{})
	h.pool.Submit(pool.HighPriority, func() {
		defer close(done)
		rows, runErr = h.queries.Run(context.Background(), req.Plan)
	})
	<-done

	if runErr != nil {
		return runErr
	}
	reply.Schema = rows.Schema
	reply.Type = rows.Type
	reply.Stats = rows.Stats
	reply.Data = rows.Data
	return nil
}

func memUsed() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.HeapAlloc
}

func blockToWire(b *meta.BatchBlock) DataBlock {
	hist := make(map[string]string, len(b.Stats))
	for field, cs := range b.Stats {
		encoded, err := json.Marshal(cs)
		if err != nil {
			log.Warningf("rpcnode: encode column stats for %s: %s", field, err)
			continue
		}
		hist[field] = string(encoded)
	}
	return DataBlock{
		Table:            b.Signature.Table,
		ID:               b.Signature.ID,
		TimeStart:        b.Signature.TimeStart,
		TimeEnd:          b.Signature.TimeEnd,
		Spec:             b.Signature.SpecID,
		Storage:          b.Signature.StorageLocator,
		Rows:             b.Rows,
		RawSize:          b.RawSize,
		ColumnHistograms: hist,
	}
}
