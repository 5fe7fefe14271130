// Copyright (c) 2015 Western Digital Corporation or its affiliates.  All rights reserved.
// SPDX-License-Identifier: MIT

// Package execution implements the worker/coordinator-shared block catalog:
// BlockManager, the process-wide node -> table -> TableState registry every
// query and control-loop cycle consults.
package execution

import (
	"sync"

	"github.com/caoash/nebula/internal/meta"
)

// Self is the distinguished node key under which a process's own local
// blocks are stored, as opposed to the coordinator's shadow view of a
// remote worker's blocks.
const Self = ""

// TableStates maps table name to its TableState.
type TableStates map[string]*meta.TableState

// BlockManager is the process-wide registry of table states: the local
// node's real data under Self, every other node's shadow view under its
// address. There is one BlockManager per process (worker or coordinator).
type BlockManager struct {
	mu         sync.Mutex
	data       map[string]TableStates
	emptySpecs map[string]struct{}
	numBlocks  uint64
}

// NewBlockManager creates an empty BlockManager with only the local (Self)
// entry present.
func NewBlockManager() *BlockManager {
	return &BlockManager{
		data:       map[string]TableStates{Self: {}},
		emptySpecs: make(map[string]struct{}),
	}
}

func (bm *BlockManager) local() TableStates {
	return bm.data[Self]
}

// Add routes block into the local node's table states, creating the
// TableState on demand, and increments the global block counter.
func (bm *BlockManager) Add(table string, block *meta.BatchBlock) bool {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	ts, ok := bm.local()[table]
	if !ok {
		ts = meta.NewTableState(table)
		bm.local()[table] = ts
	}
	inserted := ts.Add(block)
	if inserted {
		bm.numBlocks++
	}
	return inserted
}

// RemoveBySpec removes every block for (table, specID) from the local
// node's TableState, returning the count removed.
func (bm *BlockManager) RemoveBySpec(table, specID string) int {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	ts, ok := bm.local()[table]
	if !ok {
		return 0
	}
	n := ts.RemoveBySpec(specID)
	if uint64(n) <= bm.numBlocks {
		bm.numBlocks -= uint64(n)
	}
	return n
}

// RecordEmptySpec remembers a spec that legitimately produced zero rows, so
// the assigner does not keep reassigning it as if it were lost.
func (bm *BlockManager) RecordEmptySpec(specID string) {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	bm.emptySpecs[specID] = struct{}{}
}

// EmptySpecs returns a snapshot of the recorded empty-spec set.
func (bm *BlockManager) EmptySpecs() map[string]struct{} {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	out := make(map[string]struct{}, len(bm.emptySpecs))
	for id := range bm.emptySpecs {
		out[id] = struct{}{}
	}
	return out
}

// ClearEmptySpecs discards the recorded empty-spec set; the expire cycle
// calls this once per pass before recomputing it.
func (bm *BlockManager) ClearEmptySpecs() {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	bm.emptySpecs = make(map[string]struct{})
}

// Swap atomically replaces node's whole shadow TableStates map, used when a
// Poll cycle against that node completes.
func (bm *BlockManager) Swap(node string, states TableStates) {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	bm.data[node] = states
}

// States returns node's TableStates map (Self for the local node).
func (bm *BlockManager) States(node string) TableStates {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	return bm.data[node]
}

// RemoveNode drops a remote node's shadow state entirely.
func (bm *BlockManager) RemoveNode(addr string) {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	delete(bm.data, addr)
}

// NumBlocks returns the running count of blocks added minus removed.
func (bm *BlockManager) NumBlocks() uint64 {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	return bm.numBlocks
}

// Tables returns up to limit distinct table names seen across all nodes; a
// limit of zero or less returns every table.
func (bm *BlockManager) Tables(limit int) map[string]struct{} {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	out := make(map[string]struct{})
	for _, states := range bm.data {
		for table := range states {
			out[table] = struct{}{}
			if limit > 0 && len(out) >= limit {
				return out
			}
		}
	}
	return out
}

// HasSpec reports whether specID is present for table on node, or in the
// global empty-specs set (an empty spec is considered "present" since it
// legitimately ran and needs no reassignment).
func (bm *BlockManager) HasSpec(table, specID, node string) bool {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	if _, ok := bm.emptySpecs[specID]; ok {
		return true
	}
	states, ok := bm.data[node]
	if !ok {
		return false
	}
	ts, ok := states[table]
	if !ok {
		return false
	}
	return ts.HasSpec(specID)
}

// Metrics returns a TableState that is the merge of every node's (including
// Self's) TableState for table, for cluster-wide metric views.
func (bm *BlockManager) Metrics(table string) *meta.TableState {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	merged := meta.NewTableState(table)
	for _, states := range bm.data {
		if ts, ok := states[table]; ok {
			merged.Merge(ts)
		}
	}
	return merged
}

// ActiveSpecs returns the union of Specs() across the TableStates of every
// node address in activeAddrs (the coordinator's current active-node list),
// excluding Self.
func (bm *BlockManager) ActiveSpecs(activeAddrs []string) map[string]struct{} {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	out := make(map[string]struct{})
	for _, addr := range activeAddrs {
		states, ok := bm.data[addr]
		if !ok {
			continue
		}
		for _, ts := range states {
			for id := range ts.Specs() {
				out[id] = struct{}{}
			}
		}
	}
	return out
}

// Query prunes table's blocks (searching every node's shadow plus Self) by
// filter and returns the matches.
func (bm *BlockManager) Query(table string, filter meta.BlockFilter) []*meta.BatchBlock {
	bm.mu.Lock()
	snapshot := make([]*meta.TableState, 0, len(bm.data))
	for _, states := range bm.data {
		if ts, ok := states[table]; ok {
			snapshot = append(snapshot, ts)
		}
	}
	bm.mu.Unlock()

	var out []*meta.BatchBlock
	for _, ts := range snapshot {
		out = append(out, ts.Query(filter)...)
	}
	return out
}
