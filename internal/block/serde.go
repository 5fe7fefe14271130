// Copyright (c) 2015 Western Digital Corporation or its affiliates.  All rights reserved.
// SPDX-License-Identifier: MIT

package block

import (
	"encoding/binary"
	"fmt"
)

// Wire format. A serialized FlatBuffer carries no schema of its own: the
// caller of Deserialize supplies the Schema and projected field list that
// were used to produce the bytes, exactly as BlockManager's callers already
// know which table (and therefore which schema) a block belongs to. The
// bytes hold only:
//
//	uvarint rowCount
//	uvarint fieldCount      (sanity-checked against len(fields))
//	per field, in projected order:
//	  null bitmap           ceil(rowCount/8) bytes, bit set => null
//	  fixed-width kind:     rowCount * kind.width() raw bytes
//	  String:               (rowCount+1) uvarint cumulative offsets, then heap bytes
//	  List:                 per row: uvarint item count, then items of ItemKind
//	  Map:                  per row: uvarint kv count, then key/val pairs

func sovUvarint(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}

func bitmapLen(rows int) int {
	return (rows + 7) / 8
}

func bitmapSet(bm []byte, i int) {
	bm[i/8] |= 1 << uint(i%8)
}

func bitmapGet(bm []byte, i int) bool {
	return bm[i/8]&(1<<uint(i%8)) != 0
}

// varScalarSize returns the encoded size, in bytes, of a single ItemKind or
// KeyKind/ValKind scalar value as stored inside a List or Map cell.
func varScalarSize(kind Kind, v interface{}) int {
	if kind.IsFixedWidth() {
		return kind.width()
	}
	s := v.(string)
	return sovUvarint(uint64(len(s))) + len(s)
}

func encodeVarScalar(buf []byte, off int, kind Kind, v interface{}) int {
	if kind.IsFixedWidth() {
		copy(buf[off:], encodeFixedScalar(kind, v))
		return off + kind.width()
	}
	s := v.(string)
	off += binary.PutUvarint(buf[off:], uint64(len(s)))
	off += copy(buf[off:], s)
	return off
}

func decodeVarScalar(buf []byte, off int, kind Kind) (interface{}, int) {
	if kind.IsFixedWidth() {
		w := kind.width()
		return decodeFixedScalar(kind, buf[off:off+w]), off + w
	}
	n, m := binary.Uvarint(buf[off:])
	off += m
	s := string(buf[off : off+int(n)])
	return s, off + int(n)
}

// fieldWireSize returns the number of bytes field c's column occupies once
// serialized, excluding its null bitmap.
func fieldWireSize(c *column) uint64 {
	rows := c.rowCount()
	switch {
	case c.field.Kind.IsFixedWidth():
		return uint64(rows * c.field.Kind.width())
	case c.field.Kind == String:
		cum := uint64(0)
		size := uint64(sovUvarint(0))
		for _, s := range c.strs {
			cum += uint64(len(s))
			size += uint64(sovUvarint(cum))
		}
		size += cum
		return size
	case c.field.Kind == List:
		var size uint64
		for _, items := range c.listItems {
			size += uint64(sovUvarint(uint64(len(items))))
			for _, it := range items {
				size += uint64(varScalarSize(c.field.ItemKind, it))
			}
		}
		return size
	case c.field.Kind == Map:
		var size uint64
		for i, keys := range c.mapKeys {
			size += uint64(sovUvarint(uint64(len(keys))))
			for j, k := range keys {
				size += uint64(varScalarSize(c.field.KeyKind, k))
				size += uint64(varScalarSize(c.field.ValKind, c.mapVals[i][j]))
			}
		}
		return size
	}
	return 0
}

// writeField appends field c's null bitmap and column body to buf at off,
// returning the new offset.
func writeField(buf []byte, off int, c *column) int {
	rows := c.rowCount()
	bm := buf[off : off+bitmapLen(rows)]
	for i := range bm {
		bm[i] = 0
	}
	for i, null := range c.nulls {
		if null {
			bitmapSet(bm, i)
		}
	}
	off += len(bm)

	switch {
	case c.field.Kind.IsFixedWidth():
		off += copy(buf[off:], c.fixed)
	case c.field.Kind == String:
		offsets := make([]uint64, rows+1)
		cum := uint64(0)
		for i, s := range c.strs {
			offsets[i] = cum
			cum += uint64(len(s))
		}
		offsets[rows] = cum
		for _, o := range offsets {
			off += binary.PutUvarint(buf[off:], o)
		}
		for _, s := range c.strs {
			off += copy(buf[off:], s)
		}
	case c.field.Kind == List:
		for _, items := range c.listItems {
			off += binary.PutUvarint(buf[off:], uint64(len(items)))
			for _, it := range items {
				off = encodeVarScalar(buf, off, c.field.ItemKind, it)
			}
		}
	case c.field.Kind == Map:
		for i, keys := range c.mapKeys {
			off += binary.PutUvarint(buf[off:], uint64(len(keys)))
			for j, k := range keys {
				off = encodeVarScalar(buf, off, c.field.KeyKind, k)
				off = encodeVarScalar(buf, off, c.field.ValKind, c.mapVals[i][j])
			}
		}
	}
	return off
}

// readField parses field f's null bitmap and column body out of buf at off
// into a fresh column with rowCount rows, returning the new offset.
func readField(buf []byte, off int, f Field, rowCount int) (*column, int, error) {
	c := newColumn(f)
	bl := bitmapLen(rowCount)
	if off+bl > len(buf) {
		return nil, 0, fmt.Errorf("block: truncated null bitmap for field %q", f.Name)
	}
	bm := buf[off : off+bl]
	off += bl
	c.nulls = make([]bool, rowCount)
	for i := 0; i < rowCount; i++ {
		c.nulls[i] = bitmapGet(bm, i)
	}

	switch {
	case f.Kind.IsFixedWidth():
		w := f.Kind.width()
		n := rowCount * w
		if off+n > len(buf) {
			return nil, 0, fmt.Errorf("block: truncated fixed column for field %q", f.Name)
		}
		c.fixed = append([]byte(nil), buf[off:off+n]...)
		off += n
	case f.Kind == String:
		offTableLen := (rowCount + 1) * sovUvarint(0)
		if off+offTableLen > len(buf) {
			return nil, 0, fmt.Errorf("block: truncated string offsets for field %q", f.Name)
		}
		offsets := make([]uint64, rowCount+1)
		pos := off
		for i := 0; i <= rowCount; i++ {
			v, m := binary.Uvarint(buf[pos:])
			offsets[i] = v
			pos += m
		}
		off = pos
		heapLen := int(offsets[rowCount])
		if off+heapLen > len(buf) {
			return nil, 0, fmt.Errorf("block: truncated string heap for field %q", f.Name)
		}
		heap := buf[off : off+heapLen]
		c.strs = make([][]byte, rowCount)
		for i := 0; i < rowCount; i++ {
			c.strs[i] = heap[offsets[i]:offsets[i+1]]
		}
		off += heapLen
	case f.Kind == List:
		c.listItems = make([][]interface{}, rowCount)
		for i := 0; i < rowCount; i++ {
			n, m := binary.Uvarint(buf[off:])
			off += m
			items := make([]interface{}, n)
			for j := range items {
				var v interface{}
				v, off = decodeVarScalar(buf, off, f.ItemKind)
				items[j] = v
			}
			c.listItems[i] = items
		}
	case f.Kind == Map:
		c.mapKeys = make([][]interface{}, rowCount)
		c.mapVals = make([][]interface{}, rowCount)
		for i := 0; i < rowCount; i++ {
			n, m := binary.Uvarint(buf[off:])
			off += m
			keys := make([]interface{}, n)
			vals := make([]interface{}, n)
			for j := range keys {
				keys[j], off = decodeVarScalar(buf, off, f.KeyKind)
				vals[j], off = decodeVarScalar(buf, off, f.ValKind)
			}
			c.mapKeys[i] = keys
			c.mapVals[i] = vals
		}
	}
	return c, off, nil
}
