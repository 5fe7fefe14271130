// Copyright (c) 2015 Western Digital Corporation or its affiliates.  All rights reserved.
// SPDX-License-Identifier: MIT

package storageuri

import (
	"context"
	"io"
)

// FileInfo describes one entry returned by FileSystem.List, mirroring the
// original engine's file-listing metadata.
type FileInfo struct {
	IsDir     bool
	Timestamp int64
	Size      int64
	Name      string
	Domain    string
}

// FileSystem is the minimal read-side storage abstraction ingestion needs:
// enumerate a domain locator's contents and open a streaming reader over an
// object. Each supported Scheme has its own implementation.
type FileSystem interface {
	// List enumerates the entries under path (a Locator's Path).
	List(ctx context.Context, path string) ([]FileInfo, error)
	// Open returns a reader for the object at path. Callers must Close it.
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	// Info returns metadata for a single object.
	Info(ctx context.Context, path string) (FileInfo, error)
}

// Registry resolves a Scheme to the FileSystem that serves it.
type Registry struct {
	byScheme map[Scheme]FileSystem
}

// NewRegistry builds a Registry with the given scheme -> FileSystem
// bindings.
func NewRegistry(bindings map[Scheme]FileSystem) *Registry {
	r := &Registry{byScheme: make(map[Scheme]FileSystem, len(bindings))}
	for s, fs := range bindings {
		r.byScheme[s] = fs
	}
	return r
}

// For resolves loc.Scheme to its FileSystem, or reports ok=false if no
// binding was registered for it.
func (r *Registry) For(loc Locator) (FileSystem, bool) {
	fs, ok := r.byScheme[loc.Scheme]
	return fs, ok
}
