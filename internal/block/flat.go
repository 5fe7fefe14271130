// Copyright (c) 2015 Western Digital Corporation or its affiliates.  All rights reserved.
// SPDX-License-Identifier: MIT

package block

import (
	"encoding/binary"
	"fmt"
)

// FlatBuffer is an append-only, column-major, schema-projected container of
// rows. A FlatBuffer stores only the fields named at construction (any subset
// of its Schema, possibly all of it), and every row added must supply (or
// omit, yielding null) exactly those fields.
type FlatBuffer struct {
	schema *Schema
	fields []Field
	byName map[string]int
	columns []*column
	rows    int
}

// New creates an empty FlatBuffer projected onto the named fields of schema,
// in the order given.
func New(schema *Schema, fieldNames []string) (*FlatBuffer, error) {
	fb := &FlatBuffer{
		schema:  schema,
		fields:  make([]Field, 0, len(fieldNames)),
		byName:  make(map[string]int, len(fieldNames)),
		columns: make([]*column, 0, len(fieldNames)),
	}
	for _, name := range fieldNames {
		i, ok := schema.IndexOf(name)
		if !ok {
			return nil, fmt.Errorf("block: schema has no field %q", name)
		}
		f := schema.Field(i)
		fb.byName[f.Name] = len(fb.fields)
		fb.fields = append(fb.fields, f)
		fb.columns = append(fb.columns, newColumn(f))
	}
	return fb, nil
}

// Deserialize reconstructs a FlatBuffer from bytes previously produced by
// Serialize against the same schema and field projection. The caller is
// trusted to supply the correct schema: the wire format carries no type
// information of its own, only row and field counts for sanity checking.
func Deserialize(schema *Schema, fieldNames []string, data []byte) (*FlatBuffer, error) {
	fb, err := New(schema, fieldNames)
	if err != nil {
		return nil, err
	}
	rowCount, n := binary.Uvarint(data)
	if n <= 0 {
		return nil, fmt.Errorf("block: corrupt row count header")
	}
	off := n
	fieldCount, n := binary.Uvarint(data[off:])
	if n <= 0 {
		return nil, fmt.Errorf("block: corrupt field count header")
	}
	off += n
	if int(fieldCount) != len(fb.fields) {
		return nil, fmt.Errorf("block: field count mismatch: wire has %d, projection wants %d", fieldCount, len(fb.fields))
	}
	cols := make([]*column, len(fb.fields))
	for i, f := range fb.fields {
		c, newOff, err := readField(data, off, f, int(rowCount))
		if err != nil {
			return nil, err
		}
		cols[i] = c
		off = newOff
	}
	fb.columns = cols
	fb.rows = int(rowCount)
	return fb, nil
}

// fieldIndex returns the projected column index of a field by name.
func (fb *FlatBuffer) fieldIndex(name string) (int, bool) {
	i, ok := fb.byName[name]
	return i, ok
}

// Fields returns the FlatBuffer's projected fields, in column order.
func (fb *FlatBuffer) Fields() []Field {
	return fb.fields
}

// Add appends one row, reading each projected field from row by name. A
// field row.Get reports absent is stored as null. If any field's value
// fails the schema's type check, no column is mutated: Add is atomic.
func (fb *FlatBuffer) Add(row Row) (int, error) {
	values := make([]interface{}, len(fb.fields))
	for i, f := range fb.fields {
		v, ok := row.Get(f.Name)
		if !ok {
			v = nil
		}
		values[i] = v
	}
	appended := 0
	for i, v := range values {
		if err := fb.columns[i].appendValue(v); err != nil {
			for j := 0; j < appended; j++ {
				fb.columns[j].rollback()
			}
			return -1, err
		}
		appended++
	}
	idx := fb.rows
	fb.rows++
	return idx, nil
}

// Rollback removes the most recently added row. It panics if the FlatBuffer
// is empty; callers are expected to pair Rollback with a just-failed or
// just-abandoned Add.
func (fb *FlatBuffer) Rollback() {
	if fb.rows == 0 {
		panic("block: Rollback called on empty FlatBuffer")
	}
	for _, c := range fb.columns {
		c.rollback()
	}
	fb.rows--
}

// Row returns a read handle for row i. i must be in [0, Rows()).
func (fb *FlatBuffer) Row(i int) RowView {
	return RowView{fb: fb, idx: i}
}

// Rows returns the number of rows currently stored.
func (fb *FlatBuffer) Rows() uint64 {
	return uint64(fb.rows)
}

// RawSize estimates the in-memory footprint of the buffer's column data,
// excluding struct and slice header overhead.
func (fb *FlatBuffer) RawSize() uint64 {
	var size uint64
	for _, c := range fb.columns {
		size += c.rawSize()
	}
	return size
}

// PrepareSerde computes the exact number of bytes Serialize will write,
// so callers can size (or pool-allocate, see pkg/rpc.GetBuffer) the
// destination buffer ahead of time.
func (fb *FlatBuffer) PrepareSerde() uint64 {
	size := uint64(sovUvarint(uint64(fb.rows)))
	size += uint64(sovUvarint(uint64(len(fb.fields))))
	for _, c := range fb.columns {
		size += uint64(bitmapLen(fb.rows))
		size += fieldWireSize(c)
	}
	return size
}

// Serialize writes the buffer's wire form into dst, which must be at least
// PrepareSerde() bytes long, and returns the number of bytes written.
func (fb *FlatBuffer) Serialize(dst []byte) (uint64, error) {
	need := fb.PrepareSerde()
	if uint64(len(dst)) < need {
		return 0, fmt.Errorf("block: Serialize needs %d bytes, got %d", need, len(dst))
	}
	off := binary.PutUvarint(dst, uint64(fb.rows))
	off += binary.PutUvarint(dst[off:], uint64(len(fb.fields)))
	for _, c := range fb.columns {
		off = writeField(dst, off, c)
	}
	return uint64(off), nil
}
