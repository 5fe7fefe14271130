// Copyright (c) 2015 Western Digital Corporation or its affiliates.  All rights reserved.
// SPDX-License-Identifier: MIT

package execution

import (
	"context"
	"fmt"
	"io"

	"github.com/caoash/nebula/internal/storageuri"
	"github.com/caoash/nebula/pkg/tokenbucket"
)

// StorageBlockLoader adapts a storageuri.Registry into the BlockLoader
// contract Ingestor consumes: parse the locator, resolve its scheme to a
// FileSystem, open it. This is the one concrete implementation of the
// out-of-scope cloud filesystem adapter boundary named in spec.md §1.
type StorageBlockLoader struct {
	registry *storageuri.Registry
	limiter  *tokenbucket.TokenBucket // nil means unlimited
}

// NewStorageBlockLoader wraps registry as a BlockLoader. ratePerSec bounds
// how many Load calls per second the loader issues against the backing
// FileSystem; a spec re-ingest storm (many overlapping specs assigned at
// once, e.g. after Assign reassigns a lost node's whole backlog) would
// otherwise open every domain locator at once and trip a cloud store's
// request-rate limits. ratePerSec <= 0 disables limiting.
func NewStorageBlockLoader(registry *storageuri.Registry, ratePerSec float32) *StorageBlockLoader {
	l := &StorageBlockLoader{registry: registry}
	if ratePerSec > 0 {
		l.limiter = tokenbucket.New(ratePerSec, ratePerSec)
	}
	return l
}

// Load implements BlockLoader.
func (l *StorageBlockLoader) Load(ctx context.Context, locator string) (io.ReadCloser, error) {
	loc, err := storageuri.Parse(locator)
	if err != nil {
		return nil, err
	}
	fs, ok := l.registry.For(loc)
	if !ok {
		return nil, fmt.Errorf("execution: no filesystem registered for scheme %q", loc.Scheme)
	}
	if l.limiter != nil {
		l.limiter.Take(1)
	}
	return fs.Open(ctx, loc.Path)
}
