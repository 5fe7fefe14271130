// Copyright (c) 2015 Western Digital Corporation or its affiliates.  All rights reserved.
// SPDX-License-Identifier: MIT

package rpcnode

import (
	"context"
	"encoding/json"
	"time"

	log "github.com/golang/glog"
	"gopkg.in/vmihailenco/msgpack.v2"

	"github.com/caoash/nebula/internal/execution"
	"github.com/caoash/nebula/internal/ingest"
	"github.com/caoash/nebula/internal/meta"
	"github.com/caoash/nebula/pkg/retry"
	"github.com/caoash/nebula/pkg/rpc"
)

const (
	dialTimeout    = 5 * time.Second
	rpcTimeout     = 30 * time.Second
	maxConnections = 256
)

// pollRetrier absorbs a transient dial/RPC failure during Update's poll
// before Expire logs the node as unreachable for the whole cycle: a poll
// runs once per Expire tick, so a handful of short retries costs nothing
// against the tick interval but saves a node from being treated as fully
// unresponsive over one dropped connection. Expire polls every node
// concurrently, so this returns a fresh value each call rather than
// sharing one Retrier — Do mutates MaxSleep in place when misconfigured,
// and a shared value would race under -race even though MinSleep/MaxSleep
// here never actually trigger that branch.
func pollRetrier() retry.Retrier {
	return retry.Retrier{MinSleep: 50 * time.Millisecond, MaxSleep: 1 * time.Second, MaxNumRetries: 3}
}

// Client implements ingest.NodeClient over the coordinator-worker wire
// protocol, using a shared rpc.ConnectionCache keyed by node address.
type Client struct {
	cc *rpc.ConnectionCache
	bm *execution.BlockManager

	addr string
}

// NewClientMaker returns an ingest.ClientMaker backed by a single
// ConnectionCache shared across every node the coordinator talks to, and
// writing each node's polled shadow state into bm.
func NewClientMaker(bm *execution.BlockManager) ingest.ClientMaker {
	cc := rpc.NewConnectionCache(dialTimeout, rpcTimeout, maxConnections)
	return func(addr string) ingest.NodeClient {
		return &Client{cc: cc, bm: bm, addr: addr}
	}
}

// Update polls the node's shadow state and atomically replaces the
// BlockManager's view of it.
func (c *Client) Update(ctx context.Context) (uint64, error) {
	var reply PollReply
	var sendErr error
	r := pollRetrier()
	r.Do(ctx, func(attempt int) bool {
		reply = PollReply{}
		sendErr = c.cc.Send(ctx, c.addr, PollMethod, &PollReq{}, &reply)
		if sendErr != nil && attempt > 0 {
			log.Warningf("rpcnode: poll %s attempt %d: %s", c.addr, attempt, sendErr)
		}
		return sendErr == nil
	})
	if sendErr != nil {
		return 0, sendErr
	}

	byTable := make(execution.TableStates)
	for _, db := range reply.Blocks {
		ts, ok := byTable[db.Table]
		if !ok {
			ts = meta.NewTableState(db.Table)
			byTable[db.Table] = ts
		}
		ts.Add(blockFromWire(db))
	}
	c.bm.Swap(c.addr, byTable)

	for _, s := range reply.EmptySpecs {
		c.bm.RecordEmptySpec(s)
	}
	return reply.MemUsed, nil
}

// Task dispatches a task to the node.
func (c *Client) Task(ctx context.Context, t ingest.Task) (ingest.TaskState, error) {
	req := TaskReq{
		Kind:        t.Kind,
		ExpireSpecs: t.ExpireSpecs,
		Command:     t.Command,
		Sync:        t.Sync,
	}
	if t.IngestSpec != nil {
		encoded, err := msgpack.Marshal(t.IngestSpec)
		if err != nil {
			return ingest.TaskFailed, err
		}
		req.IngestSpec = encoded
	}
	var reply TaskReply
	if err := c.cc.Send(ctx, c.addr, TaskMethod, &req, &reply); err != nil {
		log.Warningf("rpcnode: task RPC to %s: %s", c.addr, err)
		return ingest.TaskFailed, err
	}
	return reply.State, nil
}

// Execute fans a query plan out to the node.
func (c *Client) Execute(ctx context.Context, plan ingest.QueryPlan) (ingest.BatchRows, error) {
	req := QueryReq{Plan: plan}
	var reply QueryReply
	if err := c.cc.Send(ctx, c.addr, QueryMethod, &req, &reply); err != nil {
		return ingest.BatchRows{}, err
	}
	return ingest.BatchRows{
		Schema: reply.Schema,
		Type:   reply.Type,
		Stats:  reply.Stats,
		Data:   reply.Data,
	}, nil
}

// blockFromWire reconstructs a shadow BatchBlock (no local Data) from a
// polled DataBlock entry.
func blockFromWire(db DataBlock) *meta.BatchBlock {
	sig := meta.BlockSignature{
		Table:          db.Table,
		SpecID:         db.Spec,
		ID:             db.ID,
		TimeStart:      db.TimeStart,
		TimeEnd:        db.TimeEnd,
		StorageLocator: db.Storage,
	}
	stats := make(map[string]meta.ColumnStats, len(db.ColumnHistograms))
	for field, encoded := range db.ColumnHistograms {
		var cs meta.ColumnStats
		if err := json.Unmarshal([]byte(encoded), &cs); err != nil {
			log.Warningf("rpcnode: decode column stats for %s.%s: %s", db.Table, field, err)
			continue
		}
		stats[field] = cs
	}
	return meta.NewShadowBlock(sig, db.Rows, db.RawSize, stats)
}
