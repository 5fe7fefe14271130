// Copyright (c) 2015 Western Digital Corporation or its affiliates.  All rights reserved.
// SPDX-License-Identifier: MIT

package block

// Row is the input contract for FlatBuffer.Add: every field is read from a
// Row by name; a field absent from the row (ok == false) is stored as null.
type Row interface {
	Get(name string) (value interface{}, ok bool)
}

// MapRow is a convenience Row backed by a plain map, most useful in tests
// and for adapting already-decoded records (e.g. JSON, cloud-store rows)
// into the FlatBuffer ingest path.
type MapRow map[string]interface{}

// Get implements Row.
func (m MapRow) Get(name string) (interface{}, bool) {
	v, ok := m[name]
	return v, ok
}

// RowView is a read handle into one row of a FlatBuffer, valid until the
// FlatBuffer is destroyed or a subsequent Add/Rollback invalidates it.
type RowView struct {
	fb  *FlatBuffer
	idx int
}

// Get returns the value stored for the named projected field in this row,
// and whether it is present (false means null).
func (r RowView) Get(name string) (interface{}, bool) {
	i, ok := r.fb.fieldIndex(name)
	if !ok {
		return nil, false
	}
	return r.fb.columns[i].get(r.idx)
}

// At returns the value stored at projected column index i in this row.
func (r RowView) At(i int) (interface{}, bool) {
	return r.fb.columns[i].get(r.idx)
}

// Index returns the row's 0-based insertion index.
func (r RowView) Index() int {
	return r.idx
}
