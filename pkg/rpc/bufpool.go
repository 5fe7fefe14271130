// Copyright (c) 2017 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT
//
// Size-classed buffer pools for the bulk data segment of the RPC codec.
// Nebula's bulk payloads are serialized FlatBuffer blocks (Query replies)
// and msgpack-encoded specs (Task requests), so the classes below are sized
// for typical query row-batch and spec payloads rather than any fixed
// on-disk block size.

package rpc

import "sync"

const (
	buf64KBSize = 64 << 10
	buf1MBSize  = 1 << 20
	buf16MBSize = 16 << 20
)

var (
	buf64KBPool = sync.Pool{New: func() interface{} { b := make([]byte, buf64KBSize); return &b }}
	buf1MBPool  = sync.Pool{New: func() interface{} { b := make([]byte, buf1MBSize); return &b }}
	buf16MBPool = sync.Pool{New: func() interface{} { b := make([]byte, buf16MBSize); return &b }}
)

// GetBuffer returns a []byte with length n and capacity >= n.
// The buffer may not be zeroed!
func GetBuffer(n int) []byte {
	switch {
	case n <= buf64KBSize:
		return (*buf64KBPool.Get().(*[]byte))[:n]
	case n <= buf1MBSize:
		return (*buf1MBPool.Get().(*[]byte))[:n]
	case n <= buf16MBSize:
		return (*buf16MBPool.Get().(*[]byte))[:n]
	}
	// Larger than our classes: just allocate.
	return make([]byte, n)
}

// PutBuffer returns a buffer to the pool. It's okay to call this on any
// buffer that isn't going to be used again, whether it came from GetBuffer
// or not. 'exclusive' indicates whether the caller is the exclusive owner of
// the buffer (if false, the buffer can't be recycled).
func PutBuffer(b []byte, exclusive bool) {
	if !exclusive {
		return
	}
	switch cap(b) {
	case buf64KBSize:
		buf64KBPool.Put(&b)
	case buf1MBSize:
		buf1MBPool.Put(&b)
	case buf16MBSize:
		buf16MBPool.Put(&b)
	}
}
