// Copyright (c) 2015 Western Digital Corporation or its affiliates.  All rights reserved.
// SPDX-License-Identifier: MIT

// Package rpcnode implements the coordinator-worker wire protocol over
// pkg/rpc: five RPCs (Echo, Echos, Query, Poll, Task) registered with
// net/rpc via rpc.RegisterName, dialed through an rpc.ConnectionCache.
// Client implements ingest.NodeClient; NodeSrvHandler is the worker-side
// handler.
package rpcnode

import (
	"github.com/caoash/nebula/internal/block"
	"github.com/caoash/nebula/internal/ingest"
	"github.com/caoash/nebula/internal/meta"
	"github.com/caoash/nebula/pkg/rpc"
)

// Assert that these implement rpc.BulkData.
var (
	_ rpc.BulkData = (*QueryReply)(nil)
	_ rpc.BulkData = (*TaskReq)(nil)
)

// Method names, following the teacher's "<Handler>.<Method>" convention.
const (
	EchoMethod  = "NodeSrvHandler.Echo"
	EchosMethod = "NodeSrvHandler.Echos"
	QueryMethod = "NodeSrvHandler.Query"
	PollMethod  = "NodeSrvHandler.Poll"
	TaskMethod  = "NodeSrvHandler.Task"
)

// EchoReq/EchoReply implement a trivial liveness check.
type EchoReq struct {
	Nonce uint64
}

// EchoReply is returned by Echo; Nonce round-trips the caller's value so a
// single connection can be used to detect stale in-flight replies.
type EchoReply struct {
	Nonce uint64
}

// EchosReq batches a liveness check for multiple downstream addresses, as
// used by a coordinator probing a set of candidate replacements at once.
type EchosReq struct {
	Addrs []string
}

// EchosReply reports which of EchosReq.Addrs answered.
type EchosReply struct {
	Alive []bool
}

// QueryReq wraps a query plan for the wire.
type QueryReq struct {
	Plan ingest.QueryPlan
}

// QueryReply wraps a BatchRows reply. Data is the bulk payload; Get/Set
// below let the codec move it around the gob-encoded header instead of
// through it.
type QueryReply struct {
	Schema *block.Schema
	Type   ingest.BatchType
	Stats  ingest.QueryStats
	Data   []byte

	bExclusive bool
}

// Get implements rpc.BulkData.
func (r *QueryReply) Get() ([]byte, bool) { b := r.Data; r.Data = nil; return b, r.bExclusive }

// Set implements rpc.BulkData.
func (r *QueryReply) Set(b []byte, exclusive bool) { r.Data, r.bExclusive = b, exclusive }

// PollReq requests a node's current shadow state.
type PollReq struct{}

// DataBlock is one block entry in a PollReply, matching spec's wire shape.
type DataBlock struct {
	Table            string
	ID               uint64
	TimeStart        uint64
	TimeEnd          uint64
	Spec             string
	Storage          string
	Rows             uint64
	RawSize          uint64
	ColumnHistograms map[string]string // field name -> json-encoded histogram
}

// PollReply enumerates a node's blocks and recorded empty specs.
type PollReply struct {
	MemUsed    uint64
	Blocks     []DataBlock
	EmptySpecs []string
}

// taskSpecKind tags which member of TaskReq is populated, mirroring
// ingest.TaskKind without importing it twice under a different name.
type taskSpecKind = ingest.TaskKind

// TaskReq is the tagged-union TaskSpec described by the wire protocol: an
// ingestion spec, a batch of (table, spec_id) pairs to expire, or an
// operator command, plus a sync flag. The ingestion spec travels as
// msgpack-encoded bytes in IngestSpec, per the wire protocol's
// "IngestTask(spec: msgpack)" member, and rides the bulk segment of the
// codec rather than a second gob pass.
type TaskReq struct {
	Kind        taskSpecKind
	IngestSpec  []byte
	ExpireSpecs []meta.SpecTable
	Command     string
	Sync        bool

	bExclusive bool
}

// Get implements rpc.BulkData.
func (r *TaskReq) Get() ([]byte, bool) { b := r.IngestSpec; r.IngestSpec = nil; return b, r.bExclusive }

// Set implements rpc.BulkData.
func (r *TaskReq) Set(b []byte, exclusive bool) { r.IngestSpec, r.bExclusive = b, exclusive }

// TaskReply carries the single-byte task state code.
type TaskReply struct {
	State ingest.TaskState
}
