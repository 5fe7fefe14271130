// Copyright (c) 2015 Western Digital Corporation or its affiliates.  All rights reserved.
// SPDX-License-Identifier: MIT

package rpcnode

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/caoash/nebula/internal/meta"
)

func TestBlockWireRoundTrip(t *testing.T) {
	sig := meta.BlockSignature{
		Table:          "events",
		SpecID:         "spec-1",
		ID:             7,
		TimeStart:      100,
		TimeEnd:        199,
		StorageLocator: "s3://bucket/events/2026-08-02/00",
	}
	stats := map[string]meta.ColumnStats{
		"user_id": {Rows: 10, Nulls: 1, Min: "1", Max: "9", Histogram: map[string]uint64{"1": 5, "2": 5}},
	}
	block := meta.NewShadowBlock(sig, 10, 2048, stats)

	wire := blockToWire(block)
	require.Equal(t, sig.Table, wire.Table)
	require.Equal(t, sig.ID, wire.ID)
	require.Contains(t, wire.ColumnHistograms, "user_id")

	back := blockFromWire(wire)
	require.Equal(t, sig, back.Signature)
	require.Equal(t, uint64(10), back.Rows)
	require.Equal(t, stats["user_id"], back.Stats["user_id"])
}
