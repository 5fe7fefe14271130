// Copyright (c) 2015 Western Digital Corporation or its affiliates.  All rights reserved.
// SPDX-License-Identifier: MIT

package block

// column holds one field's values across all rows of a FlatBuffer. Fixed
// width scalar kinds are packed column-major into a single byte buffer for
// scan efficiency; variable width kinds (string, list, map) are kept as
// per-row slices. At serde time strings are packed into an offset table +
// heap, while lists and maps are written row by row behind an item count.
type column struct {
	field Field
	nulls []bool

	fixed []byte // width*rowCount bytes for fixed-width kinds

	strs [][]byte // String

	listItems [][]interface{} // List: per-row slice of ItemKind-typed values

	mapKeys [][]interface{} // Map: per-row slice of KeyKind-typed keys
	mapVals [][]interface{} // Map: per-row slice of ValKind-typed values, parallel to mapKeys
}

func newColumn(f Field) *column {
	return &column{field: f}
}

func (c *column) rowCount() int {
	return len(c.nulls)
}

// appendNull appends a null placeholder for this column.
func (c *column) appendNull() {
	c.nulls = append(c.nulls, true)
	if c.field.Kind.IsFixedWidth() {
		c.fixed = append(c.fixed, make([]byte, c.field.Kind.width())...)
		return
	}
	switch c.field.Kind {
	case String:
		c.strs = append(c.strs, nil)
	case List:
		c.listItems = append(c.listItems, nil)
	case Map:
		c.mapKeys = append(c.mapKeys, nil)
		c.mapVals = append(c.mapVals, nil)
	}
}

// appendValue type-checks v against the field's declared kind and appends
// it. A nil value is equivalent to appendNull.
func (c *column) appendValue(v interface{}) error {
	if v == nil {
		c.appendNull()
		return nil
	}
	switch c.field.Kind {
	case List:
		items, ok := v.([]interface{})
		if !ok {
			return &SchemaError{Field: c.field.Name, Kind: c.field.Kind, Value: v}
		}
		for _, item := range items {
			if !kindAccepts(c.field.ItemKind, item) {
				return &SchemaError{Field: c.field.Name, Kind: c.field.ItemKind, Value: item}
			}
		}
		c.nulls = append(c.nulls, false)
		c.listItems = append(c.listItems, items)
		return nil
	case Map:
		m, ok := v.(map[interface{}]interface{})
		if !ok {
			return &SchemaError{Field: c.field.Name, Kind: c.field.Kind, Value: v}
		}
		keys := make([]interface{}, 0, len(m))
		vals := make([]interface{}, 0, len(m))
		for k, val := range m {
			if !kindAccepts(c.field.KeyKind, k) {
				return &SchemaError{Field: c.field.Name, Kind: c.field.KeyKind, Value: k}
			}
			if !kindAccepts(c.field.ValKind, val) {
				return &SchemaError{Field: c.field.Name, Kind: c.field.ValKind, Value: val}
			}
			keys = append(keys, k)
			vals = append(vals, val)
		}
		c.nulls = append(c.nulls, false)
		c.mapKeys = append(c.mapKeys, keys)
		c.mapVals = append(c.mapVals, vals)
		return nil
	case String:
		s, ok := v.(string)
		if !ok {
			return &SchemaError{Field: c.field.Name, Kind: c.field.Kind, Value: v}
		}
		c.nulls = append(c.nulls, false)
		c.strs = append(c.strs, []byte(s))
		return nil
	default:
		if !kindAccepts(c.field.Kind, v) {
			return &SchemaError{Field: c.field.Name, Kind: c.field.Kind, Value: v}
		}
		c.nulls = append(c.nulls, false)
		c.fixed = append(c.fixed, encodeFixedScalar(c.field.Kind, v)...)
		return nil
	}
}

// set overwrites the value at row i in place; used by HashFlat to merge
// non-key columns without appending a new row.
func (c *column) set(i int, v interface{}) error {
	if v == nil {
		c.nulls[i] = true
		return nil
	}
	c.nulls[i] = false
	switch c.field.Kind {
	case List:
		items, ok := v.([]interface{})
		if !ok {
			return &SchemaError{Field: c.field.Name, Kind: c.field.Kind, Value: v}
		}
		c.listItems[i] = items
	case Map:
		m, ok := v.(map[interface{}]interface{})
		if !ok {
			return &SchemaError{Field: c.field.Name, Kind: c.field.Kind, Value: v}
		}
		keys := make([]interface{}, 0, len(m))
		vals := make([]interface{}, 0, len(m))
		for k, val := range m {
			keys = append(keys, k)
			vals = append(vals, val)
		}
		c.mapKeys[i] = keys
		c.mapVals[i] = vals
	case String:
		s, ok := v.(string)
		if !ok {
			return &SchemaError{Field: c.field.Name, Kind: c.field.Kind, Value: v}
		}
		c.strs[i] = []byte(s)
	default:
		if !kindAccepts(c.field.Kind, v) {
			return &SchemaError{Field: c.field.Name, Kind: c.field.Kind, Value: v}
		}
		w := c.field.Kind.width()
		copy(c.fixed[i*w:(i+1)*w], encodeFixedScalar(c.field.Kind, v))
	}
	return nil
}

// rollback drops the last appended row from this column.
func (c *column) rollback() {
	n := len(c.nulls) - 1
	c.nulls = c.nulls[:n]
	if c.field.Kind.IsFixedWidth() {
		w := c.field.Kind.width()
		c.fixed = c.fixed[:n*w]
		return
	}
	switch c.field.Kind {
	case String:
		c.strs = c.strs[:n]
	case List:
		c.listItems = c.listItems[:n]
	case Map:
		c.mapKeys = c.mapKeys[:n]
		c.mapVals = c.mapVals[:n]
	}
}

// get returns the value at row i, or (nil, false) if the cell is null.
func (c *column) get(i int) (interface{}, bool) {
	if i < 0 || i >= len(c.nulls) || c.nulls[i] {
		return nil, false
	}
	if c.field.Kind.IsFixedWidth() {
		w := c.field.Kind.width()
		return decodeFixedScalar(c.field.Kind, c.fixed[i*w:(i+1)*w]), true
	}
	switch c.field.Kind {
	case String:
		return string(c.strs[i]), true
	case List:
		out := make([]interface{}, len(c.listItems[i]))
		copy(out, c.listItems[i])
		return out, true
	case Map:
		m := make(map[interface{}]interface{}, len(c.mapKeys[i]))
		for j, k := range c.mapKeys[i] {
			m[k] = c.mapVals[i][j]
		}
		return m, true
	}
	return nil, false
}

// rawSize estimates the number of bytes this column occupies in memory.
func (c *column) rawSize() uint64 {
	size := uint64(len(c.nulls)) // null flags, one byte each, approximate
	switch {
	case c.field.Kind.IsFixedWidth():
		size += uint64(len(c.fixed))
	case c.field.Kind == String:
		for _, s := range c.strs {
			size += uint64(len(s))
		}
	case c.field.Kind == List:
		w, fixed := itemWidth(c.field.ItemKind)
		for _, items := range c.listItems {
			if fixed {
				size += uint64(len(items) * w)
			} else {
				for _, it := range items {
					if s, ok := it.(string); ok {
						size += uint64(len(s))
					}
				}
			}
		}
	case c.field.Kind == Map:
		for i := range c.mapKeys {
			size += uint64(len(c.mapKeys[i])) * 16
		}
	}
	return size
}

func itemWidth(k Kind) (width int, fixed bool) {
	if k.IsFixedWidth() {
		return k.width(), true
	}
	return 0, false
}
