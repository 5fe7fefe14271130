// Copyright (c) 2015 Western Digital Corporation or its affiliates.  All rights reserved.
// SPDX-License-Identifier: MIT

package ingest

import (
	"sync"

	"github.com/caoash/nebula/internal/meta"
)

// TableRegistry holds the authoritative spec set for one table on the
// coordinator. Update merges a freshly-enumerated snapshot in by spec ID:
// a spec already present keeps its current Affinity/State (its assignment
// survives re-enumeration); only genuinely new specs start at SpecNew.
type TableRegistry struct {
	mu    sync.Mutex
	table string
	specs map[string]*meta.Spec
}

// NewTableRegistry creates an empty registry for table.
func NewTableRegistry(table string) *TableRegistry {
	return &TableRegistry{table: table, specs: make(map[string]*meta.Spec)}
}

// Update merges snapshot into the registry, returning the snapshot size.
func (r *TableRegistry) Update(snapshot []*meta.Spec) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range snapshot {
		if _, ok := r.specs[s.ID]; ok {
			continue
		}
		r.specs[s.ID] = s
	}
	return len(snapshot)
}

// All returns every spec currently tracked, in no particular order.
func (r *TableRegistry) All() []*meta.Spec {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*meta.Spec, 0, len(r.specs))
	for _, s := range r.specs {
		out = append(out, s)
	}
	return out
}

// Online reports whether specID is currently tracked by the registry (i.e.
// still part of the table's live configuration, not yet expired).
func (r *TableRegistry) Online(specID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.specs[specID]
	return ok
}

// Remove drops specID from the registry, typically once its configured
// retention has elapsed.
func (r *TableRegistry) Remove(specID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.specs, specID)
}

// Clean removes every spec whose TimeEnd is more than retentionSeconds in
// the past relative to now (unix seconds).
func (r *TableRegistry) Clean(retentionSeconds, now uint64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, s := range r.specs {
		if now > s.TimeEnd+retentionSeconds {
			delete(r.specs, id)
			removed++
		}
	}
	return removed
}
