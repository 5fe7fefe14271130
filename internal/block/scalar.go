// Copyright (c) 2015 Western Digital Corporation or its affiliates.  All rights reserved.
// SPDX-License-Identifier: MIT

package block

import (
	"encoding/binary"
	"math"
)

// kindAccepts reports whether v is an acceptable Go value for kind.
func kindAccepts(kind Kind, v interface{}) bool {
	switch kind {
	case Bool:
		_, ok := v.(bool)
		return ok
	case Int8:
		_, ok := v.(int8)
		return ok
	case Int16:
		_, ok := v.(int16)
		return ok
	case Int32:
		_, ok := v.(int32)
		return ok
	case Int64:
		_, ok := v.(int64)
		return ok
	case Int128:
		switch v.(type) {
		case Int128, int64:
			return true
		}
		return false
	case Float32:
		_, ok := v.(float32)
		return ok
	case Float64:
		_, ok := v.(float64)
		return ok
	case String:
		_, ok := v.(string)
		return ok
	}
	return false
}

// encodeFixedScalar encodes a fixed-width scalar value into little-endian
// bytes of the kind's declared width.
func encodeFixedScalar(kind Kind, v interface{}) []byte {
	buf := make([]byte, kind.width())
	switch kind {
	case Bool:
		if v.(bool) {
			buf[0] = 1
		}
	case Int8:
		buf[0] = byte(v.(int8))
	case Int16:
		binary.LittleEndian.PutUint16(buf, uint16(v.(int16)))
	case Int32:
		binary.LittleEndian.PutUint32(buf, uint32(v.(int32)))
	case Int64:
		binary.LittleEndian.PutUint64(buf, uint64(v.(int64)))
	case Int128:
		i := asInt128(v)
		binary.LittleEndian.PutUint64(buf[0:8], i.Lo)
		binary.LittleEndian.PutUint64(buf[8:16], uint64(i.Hi))
	case Float32:
		binary.LittleEndian.PutUint32(buf, math.Float32bits(v.(float32)))
	case Float64:
		binary.LittleEndian.PutUint64(buf, math.Float64bits(v.(float64)))
	}
	return buf
}

// decodeFixedScalar is the inverse of encodeFixedScalar.
func decodeFixedScalar(kind Kind, buf []byte) interface{} {
	switch kind {
	case Bool:
		return buf[0] != 0
	case Int8:
		return int8(buf[0])
	case Int16:
		return int16(binary.LittleEndian.Uint16(buf))
	case Int32:
		return int32(binary.LittleEndian.Uint32(buf))
	case Int64:
		return int64(binary.LittleEndian.Uint64(buf))
	case Int128:
		lo := binary.LittleEndian.Uint64(buf[0:8])
		hi := int64(binary.LittleEndian.Uint64(buf[8:16]))
		return Int128{Hi: hi, Lo: lo}
	case Float32:
		return math.Float32frombits(binary.LittleEndian.Uint32(buf))
	case Float64:
		return math.Float64frombits(binary.LittleEndian.Uint64(buf))
	}
	return nil
}

func asInt128(v interface{}) Int128 {
	switch i := v.(type) {
	case Int128:
		return i
	case int64:
		return Int128FromInt64(i)
	}
	return Int128{}
}
