// Copyright (c) 2015 Western Digital Corporation or its affiliates.  All rights reserved.
// SPDX-License-Identifier: MIT

// Package meta implements Nebula's cluster and catalog model: block
// identity, per-table block indices, the ingestion spec state machine, the
// node/cluster snapshot, and the macro template language specs are
// enumerated from.
package meta

import (
	"fmt"

	"github.com/caoash/nebula/internal/block"
)

// BlockSignature is a block's value-equal, hashable identity. Two blocks
// with equal signatures are interchangeable; TableState uses it to dedupe
// idempotent inserts.
type BlockSignature struct {
	Table          string
	SpecID         string
	ID             uint64
	TimeStart      uint64
	TimeEnd        uint64
	StorageLocator string
}

// Key returns a string uniquely identifying the signature, suitable as a
// map key (BlockSignature itself is already comparable and map-key-safe,
// but Key gives callers a stable, loggable form).
func (s BlockSignature) Key() string {
	return fmt.Sprintf("%s/%s/%d/%d/%d/%s", s.Table, s.SpecID, s.ID, s.TimeStart, s.TimeEnd, s.StorageLocator)
}

// Overlaps reports whether the signature's [TimeStart, TimeEnd] window
// intersects [start, end], both bounds inclusive, matching spec.md's
// resolution of the time_end-inclusive open question.
func (s BlockSignature) Overlaps(start, end uint64) bool {
	return s.TimeStart <= end && start <= s.TimeEnd
}

// ColumnStats holds cached per-column statistics computed once at ingest
// time and never recomputed: row count, null count, min/max (as formatted
// strings so Bool/String/Int128/numeric columns share one representation),
// and an optional approximate histogram of bucket boundaries to counts.
type ColumnStats struct {
	Rows      uint64
	Nulls     uint64
	Min       string
	Max       string
	Histogram map[string]uint64
}

// BatchBlock pairs a BlockSignature with ownership of one FlatBuffer and
// its cached column statistics. Created by the ingest path; read-only
// thereafter; destroyed only via spec-level eviction. Data is populated on
// the node that actually holds the rows; a coordinator's shadow BatchBlock
// (reconstructed from a Poll reply) carries only the signature and stats.
type BatchBlock struct {
	Signature BlockSignature
	Rows      uint64
	RawSize   uint64
	Stats     map[string]ColumnStats
	Data      *block.FlatBuffer
}

// NewBatchBlock wraps a locally-built FlatBuffer, deriving Rows/RawSize
// from it directly.
func NewBatchBlock(sig BlockSignature, fb *block.FlatBuffer, stats map[string]ColumnStats) *BatchBlock {
	return &BatchBlock{Signature: sig, Rows: fb.Rows(), RawSize: fb.RawSize(), Stats: stats, Data: fb}
}

// NewShadowBlock wraps signature/stats-only metadata reported by a remote
// node's Poll reply, with no local row data.
func NewShadowBlock(sig BlockSignature, rows, rawSize uint64, stats map[string]ColumnStats) *BatchBlock {
	return &BatchBlock{Signature: sig, Rows: rows, RawSize: rawSize, Stats: stats}
}
