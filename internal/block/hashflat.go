// Copyright (c) 2015 Western Digital Corporation or its affiliates.  All rights reserved.
// SPDX-License-Identifier: MIT

package block

import (
	"fmt"
	"strings"
)

// MergeFunc combines an incoming value with the value already stored for a
// non-key column of a matched row. existing is nil when the stored cell is
// null; the same applies to incoming.
type MergeFunc func(existing, incoming interface{}) interface{}

// SumInt64 accumulates int64 values, treating a null either side as zero.
func SumInt64(existing, incoming interface{}) interface{} {
	var e, i int64
	if existing != nil {
		e = existing.(int64)
	}
	if incoming != nil {
		i = incoming.(int64)
	}
	return e + i
}

// SumFloat64 accumulates float64 values, treating a null either side as zero.
func SumFloat64(existing, incoming interface{}) interface{} {
	var e, i float64
	if existing != nil {
		e = existing.(float64)
	}
	if incoming != nil {
		i = incoming.(float64)
	}
	return e + i
}

// CountMerge ignores the incoming value and increments an int64 counter.
func CountMerge(existing, incoming interface{}) interface{} {
	var e int64
	if existing != nil {
		e = existing.(int64)
	}
	return e + 1
}

// LastMerge replaces the stored value with the incoming one, including null.
func LastMerge(existing, incoming interface{}) interface{} {
	return incoming
}

// MaxInt64 keeps the larger of the two int64 values; a null either side
// loses to the other.
func MaxInt64(existing, incoming interface{}) interface{} {
	if existing == nil {
		return incoming
	}
	if incoming == nil {
		return existing
	}
	if incoming.(int64) > existing.(int64) {
		return incoming
	}
	return existing
}

// MinInt64 keeps the smaller of the two int64 values; a null either side
// loses to the other.
func MinInt64(existing, incoming interface{}) interface{} {
	if existing == nil {
		return incoming
	}
	if incoming == nil {
		return existing
	}
	if incoming.(int64) < existing.(int64) {
		return incoming
	}
	return existing
}

// HashFlat is a FlatBuffer variant that upserts by key: Add looks up the
// row whose key-field tuple matches the incoming row, and if one exists,
// merges each non-key field into it in place with the configured MergeFunc
// instead of appending a new row. Key fields themselves are set only when
// the row is first created.
type HashFlat struct {
	fb        *FlatBuffer
	keyFields map[string]bool
	merge     map[string]MergeFunc
	index     map[string]int
}

// NewHashFlat creates an empty HashFlat projected onto fieldNames, keyed on
// keyFields (a subset of fieldNames). merge supplies the MergeFunc for each
// non-key field that should accumulate across upserts; a field with no
// entry in merge defaults to LastMerge.
func NewHashFlat(schema *Schema, fieldNames, keyFields []string, merge map[string]MergeFunc) (*HashFlat, error) {
	fb, err := New(schema, fieldNames)
	if err != nil {
		return nil, err
	}
	keys := make(map[string]bool, len(keyFields))
	for _, k := range keyFields {
		if _, ok := fb.fieldIndex(k); !ok {
			return nil, fmt.Errorf("block: key field %q not in projection", k)
		}
		keys[k] = true
	}
	return &HashFlat{
		fb:        fb,
		keyFields: keys,
		merge:     merge,
		index:     make(map[string]int),
	}, nil
}

// FlatBuffer exposes the underlying storage for reads (Row, Rows, RawSize,
// Serialize, ...).
func (h *HashFlat) FlatBuffer() *FlatBuffer {
	return h.fb
}

func (h *HashFlat) keyOf(row Row) string {
	var b strings.Builder
	for _, f := range h.fb.fields {
		if !h.keyFields[f.Name] {
			continue
		}
		v, _ := row.Get(f.Name)
		fmt.Fprintf(&b, "%v\x00", v)
	}
	return b.String()
}

// Add upserts row: if a row with the same key-field values already exists,
// every non-key field is merged into it via its configured MergeFunc and
// merged reports true; otherwise a new row is appended and merged reports
// false. The returned index is the row's position either way.
func (h *HashFlat) Add(row Row) (idx int, merged bool, err error) {
	key := h.keyOf(row)
	if i, ok := h.index[key]; ok {
		for _, f := range h.fb.fields {
			if h.keyFields[f.Name] {
				continue
			}
			incoming, _ := row.Get(f.Name)
			ci, _ := h.fb.fieldIndex(f.Name)
			existing, _ := h.fb.columns[ci].get(i)
			fn := h.merge[f.Name]
			if fn == nil {
				fn = LastMerge
			}
			if err := h.fb.columns[ci].set(i, fn(existing, incoming)); err != nil {
				return -1, false, err
			}
		}
		return i, true, nil
	}
	i, err := h.fb.Add(row)
	if err != nil {
		return -1, false, err
	}
	h.index[key] = i
	return i, false, nil
}
