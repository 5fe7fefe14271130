// Copyright (c) 2015 Western Digital Corporation or its affiliates.  All rights reserved.
// SPDX-License-Identifier: MIT

package meta

import "sync"

// BlockFilter is a predicate over a candidate block's time window and
// column statistics. Query must return every block that might satisfy the
// filter (no false negatives); false positives are allowed and are expected
// to be narrowed further by the caller's own execution layer.
type BlockFilter func(sig BlockSignature, stats map[string]ColumnStats) bool

// TableState holds the set of BatchBlocks for a single table on a single
// node, indexed by block signature, by spec id, and — via a
// sorted-by-TimeStart slice that Query scans in full — by time range. A real
// interval tree buys asymptotic improvement only at block counts this
// system does not reach per table per node; the sorted-slice scan keeps
// the same "no false negatives" contract at a fraction of the code.
type TableState struct {
	mu sync.RWMutex

	table string

	byKey    map[string]*BatchBlock // keyed by Signature.Key(); id is only unique within a spec
	bySpec   map[string]map[string]*BatchBlock
	sorted   []*BatchBlock // kept sorted by Signature.TimeStart
	rows     uint64
	rawBytes uint64
}

// NewTableState creates an empty TableState for table.
func NewTableState(table string) *TableState {
	return &TableState{
		table:  table,
		byKey:  make(map[string]*BatchBlock),
		bySpec: make(map[string]map[string]*BatchBlock),
	}
}

// Table returns the table name this state indexes.
func (t *TableState) Table() string {
	return t.table
}

// Add inserts block, returning false if a block with an equal signature is
// already present (idempotent insert, no-op).
func (t *TableState) Add(b *BatchBlock) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := b.Signature.Key()
	if _, ok := t.byKey[key]; ok {
		return false
	}
	t.byKey[key] = b
	specBlocks, ok := t.bySpec[b.Signature.SpecID]
	if !ok {
		specBlocks = make(map[string]*BatchBlock)
		t.bySpec[b.Signature.SpecID] = specBlocks
	}
	specBlocks[key] = b
	t.insertSorted(b)
	t.rows += b.Rows
	t.rawBytes += b.RawSize
	return true
}

func (t *TableState) insertSorted(b *BatchBlock) {
	i := 0
	for i < len(t.sorted) && t.sorted[i].Signature.TimeStart <= b.Signature.TimeStart {
		i++
	}
	t.sorted = append(t.sorted, nil)
	copy(t.sorted[i+1:], t.sorted[i:])
	t.sorted[i] = b
}

// RemoveBySpec removes every block whose signature's SpecID equals specID,
// returning the count removed.
func (t *TableState) RemoveBySpec(specID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	specBlocks, ok := t.bySpec[specID]
	if !ok {
		return 0
	}
	removed := 0
	for key, b := range specBlocks {
		delete(t.byKey, key)
		t.removeSorted(b)
		t.rows -= b.Rows
		t.rawBytes -= b.RawSize
		removed++
	}
	delete(t.bySpec, specID)
	return removed
}

func (t *TableState) removeSorted(b *BatchBlock) {
	for i, cand := range t.sorted {
		if cand.Signature == b.Signature {
			t.sorted = append(t.sorted[:i], t.sorted[i+1:]...)
			return
		}
	}
}

// Query returns every block for which filter might be true. Blocks are
// scanned in TimeStart order; filter is still applied to every block since
// an interval scan alone over-approximates on stats, not just time.
func (t *TableState) Query(filter BlockFilter) []*BatchBlock {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []*BatchBlock
	for _, b := range t.sorted {
		if filter == nil || filter(b.Signature, b.Stats) {
			out = append(out, b)
		}
	}
	return out
}

// QueryWindow returns every block whose [TimeStart, TimeEnd] overlaps
// [start, end], both bounds inclusive.
func (t *TableState) QueryWindow(start, end uint64) []*BatchBlock {
	return t.Query(func(sig BlockSignature, _ map[string]ColumnStats) bool {
		return sig.Overlaps(start, end)
	})
}

// IsOnline reports whether a (table, specID) pair is still considered live
// by the caller, used by Expired to find blocks whose spec has vanished.
type IsOnline func(table, specID string) bool

// SpecTable pairs a spec ID with the table it belongs to.
type SpecTable struct {
	Table  string
	SpecID string
}

// Expired returns the (table, spec_id) pairs held by this state whose spec
// is no longer online per isOnline.
func (t *TableState) Expired(isOnline IsOnline) []SpecTable {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []SpecTable
	for specID := range t.bySpec {
		if !isOnline(t.table, specID) {
			out = append(out, SpecTable{Table: t.table, SpecID: specID})
		}
	}
	return out
}

// HasSpec reports whether any block for specID is held.
func (t *TableState) HasSpec(specID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.bySpec[specID]
	return ok
}

// Specs returns the set of spec IDs currently represented.
func (t *TableState) Specs() map[string]struct{} {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]struct{}, len(t.bySpec))
	for id := range t.bySpec {
		out[id] = struct{}{}
	}
	return out
}

// Rows returns the aggregate row count across all held blocks.
func (t *TableState) Rows() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rows
}

// RawBytes returns the aggregate raw byte size across all held blocks.
func (t *TableState) RawBytes() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rawBytes
}

// Merge unions other's blocks into t; signature duplicates are ignored.
// Merge is commutative and associative since it only ever calls Add, whose
// dedup key is the signature itself.
func (t *TableState) Merge(other *TableState) {
	other.mu.RLock()
	blocks := make([]*BatchBlock, 0, len(other.byKey))
	for _, b := range other.byKey {
		blocks = append(blocks, b)
	}
	other.mu.RUnlock()
	for _, b := range blocks {
		t.Add(b)
	}
}
