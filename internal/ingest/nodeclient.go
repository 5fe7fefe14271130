// Copyright (c) 2015 Western Digital Corporation or its affiliates.  All rights reserved.
// SPDX-License-Identifier: MIT

// Package ingest implements the coordinator's control loops: spec
// enumeration, node assignment, loss recovery, and expiration. The wire
// encoding of these operations lives in internal/rpcnode, which implements
// the NodeClient contract declared here against the pkg/rpc transport.
package ingest

import (
	"context"

	"github.com/google/uuid"

	"github.com/caoash/nebula/internal/block"
	"github.com/caoash/nebula/internal/meta"
)

// TaskState is the outcome of dispatching a Task to a node.
type TaskState byte

const (
	TaskSucceeded TaskState = iota
	TaskFailed
	TaskQueue
	TaskInProgress
)

func (s TaskState) String() string {
	switch s {
	case TaskSucceeded:
		return "SUCCEEDED"
	case TaskFailed:
		return "FAILED"
	case TaskQueue:
		return "QUEUE"
	case TaskInProgress:
		return "IN_PROGRESS"
	}
	return "UNKNOWN"
}

// TaskKind tags which member of Task is populated.
type TaskKind int

const (
	IngestionTask TaskKind = iota
	ExpirationTask
	CommandTask
)

// Task is the tagged union dispatched to a node's Task RPC: an ingestion
// spec, a batch of (table, spec_id) pairs to expire, or an operator command.
type Task struct {
	Kind        TaskKind
	IngestSpec  *meta.Spec
	ExpireSpecs []meta.SpecTable
	Command     string
	Sync        bool
}

// NewQueryPlan returns a QueryPlan for table and filter carrying a fresh
// UUID, so callers building a QueryPlan don't have to thread UUID
// generation through the query-submission path themselves. Every other
// field is left at its zero value.
func NewQueryPlan(table, filter string) QueryPlan {
	return QueryPlan{UUID: uuid.New().String(), Table: table, Filter: filter}
}

// BatchType distinguishes how BatchRows.Data is encoded.
type BatchType int

const (
	BatchFlat BatchType = iota
	BatchJSON
)

// QueryStats reports how much work a query did on one node.
type QueryStats struct {
	BlocksScan uint64
	RowsScan   uint64
	RowsRet    uint64
}

// QueryPlan is the coordinator's request to a worker's Query RPC.
type QueryPlan struct {
	UUID      string
	Table     string
	Filter    string
	Customs   map[string]string
	Fields    []string
	Groups    []string
	Sorts     []string
	Desc      bool
	Limit     int
	TimeStart uint64
	TimeEnd   uint64
}

// BatchRows is a worker's reply to a Query RPC. When Type is BatchFlat, Data
// is exactly the bytes FlatBuffer.Serialize produced.
type BatchRows struct {
	Schema *block.Schema
	Type   BatchType
	Stats  QueryStats
	Data   []byte
}

// NodeState groups a worker's current blocks (summarized as shadow
// BatchBlocks) and its recorded empty specs. NodeClient.Update does not
// return it: Update writes the polled state into the BlockManager itself.
type NodeState struct {
	Table      string
	Blocks     []*meta.BatchBlock
	EmptySpecs []string
}

// NodeClient is the transport-agnostic capability set SpecRepository uses
// to talk to a single worker node.
type NodeClient interface {
	// Update retrieves the node's current state and replaces the
	// BlockManager's shadow for that node atomically. Returns the reported
	// memory usage for ClusterInfo bookkeeping.
	Update(ctx context.Context) (memUsed uint64, err error)
	// Task dispatches an ingestion, expiration, or command task.
	Task(ctx context.Context, t Task) (TaskState, error)
	// Execute fans out a query plan; used by the query path, never by the
	// control loops.
	Execute(ctx context.Context, plan QueryPlan) (BatchRows, error)
}

// ClientMaker builds (or reuses) a NodeClient for a node address.
type ClientMaker func(addr string) NodeClient
