// Copyright (c) 2015 Western Digital Corporation or its affiliates.  All rights reserved.
// SPDX-License-Identifier: MIT

package execution

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	log "github.com/golang/glog"

	"github.com/caoash/nebula/internal/block"
	"github.com/caoash/nebula/internal/core"
	"github.com/caoash/nebula/internal/meta"
	"github.com/caoash/nebula/internal/metric"
)

// BlockLoader is the out-of-scope cloud filesystem/Kafka adapter boundary:
// Ingestor only ever asks for a reader over a fully-qualified domain
// locator, never for a particular scheme's client.
type BlockLoader interface {
	Load(ctx context.Context, locator string) (io.ReadCloser, error)
}

var ingestOp = metric.NewOpMetric("nebula_ingest", "table")

// Ingestor builds a table's FlatBuffer for one spec by streaming
// newline-delimited JSON records from a BlockLoader, and registers the
// result (or its empty-spec marker) in a BlockManager.
type Ingestor struct {
	loader  BlockLoader
	bm      *BlockManager
	blockID uint64
}

// NewIngestor builds an Ingestor reading through loader and registering
// blocks into bm.
func NewIngestor(loader BlockLoader, bm *BlockManager) *Ingestor {
	return &Ingestor{loader: loader, bm: bm}
}

// Ingest resolves spec's domain locator, decodes one JSON object per line
// into schema's projected fields, and on success registers a BatchBlock
// under table. A value that cannot be coerced to its field's kind is stored
// as null; a malformed line, or a row that still fails the schema check, is
// skipped and logged but does not fail the ingest; an empty result (zero parsed rows) is
// recorded as an empty spec rather than as a zero-row block, per spec.md
// §3's Empty-spec definition.
func (in *Ingestor) Ingest(ctx context.Context, spec *meta.Spec, schema *block.Schema, fields []string) (rows int, err error) {
	op := ingestOp.Start(spec.Table)
	defer op.End()

	rc, err := in.loader.Load(ctx, spec.DomainLocator)
	if err != nil {
		op.Failed()
		return 0, fmt.Errorf("execution: ingest %s: %w", spec.DomainLocator, core.ErrIO)
	}
	defer rc.Close()

	fb, err := block.New(schema, fields)
	if err != nil {
		op.Failed()
		return 0, err
	}

	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var raw map[string]interface{}
		if jsonErr := json.Unmarshal(line, &raw); jsonErr != nil {
			log.Warningf("execution: table %s spec %s: skipping malformed row: %s", spec.Table, spec.ID, jsonErr)
			continue
		}
		row := coerceRow(fb.Fields(), raw)
		if _, addErr := fb.Add(row); addErr != nil {
			log.Warningf("execution: table %s spec %s: row failed schema check: %s", spec.Table, spec.ID, addErr)
			continue
		}
	}
	if scanErr := scanner.Err(); scanErr != nil {
		op.Failed()
		return 0, fmt.Errorf("execution: ingest %s: %w", spec.DomainLocator, core.ErrIO)
	}

	if fb.Rows() == 0 {
		in.bm.RecordEmptySpec(spec.ID)
		return 0, nil
	}

	sig := meta.BlockSignature{
		Table:          spec.Table,
		SpecID:         spec.ID,
		ID:             in.nextBlockID(),
		TimeStart:      spec.TimeStart,
		TimeEnd:        spec.TimeEnd,
		StorageLocator: spec.DomainLocator,
	}
	colStats := computeColumnStats(fb)
	bb := meta.NewBatchBlock(sig, fb, colStats)
	in.bm.Add(spec.Table, bb)
	return int(fb.Rows()), nil
}

func (in *Ingestor) nextBlockID() uint64 {
	in.blockID++
	return in.blockID
}

// coerceRow converts a JSON-decoded record's values (encoding/json only
// ever produces bool, float64, string, []interface{}, map[string]interface{}
// and nil) into the exact Go types FlatBuffer.Add's schema check expects for
// each projected field, so a source record with valid values is never
// rejected purely because JSON has no int8/int32/float32 distinction.
func coerceRow(fields []block.Field, raw map[string]interface{}) block.MapRow {
	row := make(block.MapRow, len(fields))
	for _, f := range fields {
		v, ok := raw[f.Name]
		if !ok || v == nil {
			continue
		}
		if coerced, ok := coerceValue(f, v); ok {
			row[f.Name] = coerced
		}
	}
	return row
}

// coerceValue converts one decoded JSON value to field's declared Kind.
// Returning ok=false leaves the field absent, which FlatBuffer.Add treats
// as null rather than as a hard schema failure for the whole row.
func coerceValue(f block.Field, v interface{}) (interface{}, bool) {
	switch f.Kind {
	case block.Bool:
		b, ok := v.(bool)
		return b, ok
	case block.Int8:
		n, ok := coerceFloat(v)
		return int8(n), ok
	case block.Int16:
		n, ok := coerceFloat(v)
		return int16(n), ok
	case block.Int32:
		n, ok := coerceFloat(v)
		return int32(n), ok
	case block.Int64:
		n, ok := coerceFloat(v)
		return int64(n), ok
	case block.Int128:
		n, ok := coerceFloat(v)
		return block.Int128FromInt64(int64(n)), ok
	case block.Float32:
		n, ok := coerceFloat(v)
		return float32(n), ok
	case block.Float64:
		n, ok := coerceFloat(v)
		return n, ok
	case block.String:
		s, ok := v.(string)
		return s, ok
	case block.List:
		items, ok := v.([]interface{})
		if !ok {
			return nil, false
		}
		out := make([]interface{}, 0, len(items))
		itemField := block.Field{Name: f.Name, Kind: f.ItemKind}
		for _, item := range items {
			coerced, ok := coerceValue(itemField, item)
			if !ok {
				return nil, false
			}
			out = append(out, coerced)
		}
		return out, true
	case block.Map:
		m, ok := v.(map[string]interface{})
		if !ok {
			return nil, false
		}
		out := make(map[interface{}]interface{}, len(m))
		keyField := block.Field{Name: f.Name, Kind: f.KeyKind}
		valField := block.Field{Name: f.Name, Kind: f.ValKind}
		for k, val := range m {
			coercedKey, ok := coerceValue(keyField, k)
			if !ok {
				return nil, false
			}
			coercedVal, ok := coerceValue(valField, val)
			if !ok {
				return nil, false
			}
			out[coercedKey] = coercedVal
		}
		return out, true
	}
	return nil, false
}

// coerceFloat extracts a float64 from a decoded JSON number, or parses a
// numeric string (some cloud-store exports quote integers to avoid
// precision loss above 2^53).
func coerceFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case string:
		n, err := strconv.ParseFloat(x, 64)
		return n, err == nil
	}
	return 0, false
}

// computeColumnStats derives each projected field's ColumnStats (row count,
// null count, min/max as formatted strings) from fb's contents, computed
// once at ingest time per spec.md §3's BatchBlock description.
func computeColumnStats(fb *block.FlatBuffer) map[string]meta.ColumnStats {
	out := make(map[string]meta.ColumnStats, len(fb.Fields()))
	rows := int(fb.Rows())
	for i, f := range fb.Fields() {
		var nulls uint64
		var min, max string
		first := true
		for r := 0; r < rows; r++ {
			v, ok := fb.Row(r).At(i)
			if !ok {
				nulls++
				continue
			}
			s := formatScalar(v)
			if first {
				min, max = s, s
				first = false
				continue
			}
			if s < min {
				min = s
			}
			if s > max {
				max = s
			}
		}
		out[f.Name] = meta.ColumnStats{
			Rows:  uint64(rows),
			Nulls: nulls,
			Min:   min,
			Max:   max,
		}
	}
	return out
}

// formatScalar renders a column value as a string for min/max comparison,
// matching spec.md §3's "formatted strings so Bool/String/Int128/numeric
// columns share one representation" requirement.
func formatScalar(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case block.Int128:
		return fmt.Sprintf("%d:%d", x.Hi, x.Lo)
	default:
		return fmt.Sprintf("%v", x)
	}
}
