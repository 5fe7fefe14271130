// Copyright (c) 2015 Western Digital Corporation or its affiliates.  All rights reserved.
// SPDX-License-Identifier: MIT

package ingest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/golang/glog"
	"golang.org/x/sync/errgroup"

	"github.com/caoash/nebula/internal/block"
	"github.com/caoash/nebula/internal/execution"
	"github.com/caoash/nebula/internal/meta"
)

// SpecRepository owns the coordinator's authoritative spec set and drives
// its three control loops. Each of Refresh, Expire, and Assign acquires mu
// for its whole duration, so the loops are mutually exclusive with each
// other: a suspension on RPC or cloud-store I/O inside one loop blocks the
// others from interleaving, by design (see spec's concurrency model).
type SpecRepository struct {
	mu sync.Mutex

	cluster      *meta.ClusterInfo
	blockManager *execution.BlockManager
	provider     SpecProvider
	configs      []TableConfig
	registries   map[string]*TableRegistry
}

// NewSpecRepository creates a SpecRepository over the given table configs,
// cluster membership, and BlockManager.
func NewSpecRepository(configs []TableConfig, cluster *meta.ClusterInfo, bm *execution.BlockManager) *SpecRepository {
	registries := make(map[string]*TableRegistry, len(configs))
	for _, c := range configs {
		registries[c.Name] = NewTableRegistry(c.Name)
	}
	return &SpecRepository{
		cluster:      cluster,
		blockManager: bm,
		configs:      configs,
		registries:   registries,
	}
}

func (r *SpecRepository) registryFor(table string) *TableRegistry {
	reg, ok := r.registries[table]
	if !ok {
		reg = NewTableRegistry(table)
		r.registries[table] = reg
	}
	return reg
}

// Refresh re-enumerates every configured table's specs and merges them into
// that table's registry, preserving the assignment/state of specs that
// already existed. Returns the total number of specs considered.
func (r *SpecRepository) Refresh(version string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := uint64(time.Now().Unix())
	total := 0
	for _, cfg := range r.configs {
		reg := r.registryFor(cfg.Name)
		reg.Clean(cfg.RetentionSeconds, now)

		snapshot, err := r.provider.Generate(version, cfg, now)
		if err != nil {
			// ConfigurationError: fail this table's refresh, keep its
			// previous spec set, move on to the next table.
			log.Errorf("ingest: refresh table %q: %s", cfg.Name, err)
			continue
		}
		total += reg.Update(snapshot)
	}
	return total
}

// Expire polls every active node's shadow state, computes which
// (table, spec_id) pairs it holds that are no longer online in any table's
// registry, and dispatches a single ExpirationTask per node covering all of
// them. Nodes are polled concurrently, since each node's RPC round trip is
// independent of every other's. Returns the total number of pairs expired.
func (r *SpecRepository) Expire(ctx context.Context, clientMaker ClientMaker) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.blockManager.ClearEmptySpecs()

	isOnline := func(table, specID string) bool {
		reg, ok := r.registries[table]
		return ok && reg.Online(specID)
	}

	var total int64
	g, gctx := errgroup.WithContext(ctx)
	for _, node := range r.cluster.Nodes() {
		if !node.Active {
			continue
		}
		node := node
		g.Go(func() error {
			client := clientMaker(node.Addr)
			memUsed, err := client.Update(gctx)
			if err != nil {
				log.Warningf("ingest: update node %s: %s", node.Addr, err)
				return nil
			}

			var expired []meta.SpecTable
			for _, ts := range r.blockManager.States(node.Addr) {
				expired = append(expired, ts.Expired(isOnline)...)
			}

			if len(expired) > 0 {
				state, err := client.Task(gctx, Task{Kind: ExpirationTask, ExpireSpecs: expired, Sync: true})
				if err != nil {
					log.Warningf("ingest: expire task to %s: %s", node.Addr, err)
				} else {
					log.Infof("ingest: expired %d specs on %s: %s", len(expired), node.Addr, state)
				}
				atomic.AddInt64(&total, int64(len(expired)))
			}

			n := node
			n.MemUsed = memUsed
			n.LastPoll = time.Now()
			r.cluster.Update(n)
			return nil
		})
	}
	g.Wait()
	return int(total)
}

// Assign sorts active nodes ascending by reported memory usage and, for
// every spec across every table, resets lost specs to NEW, assigns
// unassigned specs round-robin, and dispatches an IngestionTask for any
// spec that NeedsSync. Returns (tasks sent, active node count).
func (r *SpecRepository) Assign(ctx context.Context, clientMaker ClientMaker) (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	nodes := r.cluster.ActiveNodes()
	if len(nodes) == 0 {
		log.Warning("ingest: no nodes to assign specs to")
		return 0, 0
	}

	activeAddrs := make([]string, len(nodes))
	for i, n := range nodes {
		activeAddrs[i] = n.Addr
	}
	activeSpecs := r.blockManager.ActiveSpecs(activeAddrs)
	emptySpecs := r.blockManager.EmptySpecs()

	idx := 0
	numTasks := 0
	for _, reg := range r.registries {
		for _, spec := range reg.All() {
			if spec.Affinity != meta.NoAffinity {
				_, active := activeSpecs[spec.ID]
				_, empty := emptySpecs[spec.ID]
				if !active && !empty {
					resetSpec(spec)
				}
			}

			// nodes is already filtered to active nodes by ActiveNodes, so
			// round-robin is a plain index advance with no liveness check.
			if spec.Affinity == meta.NoAffinity {
				spec.Affinity = nodes[idx].Addr
				idx = (idx + 1) % len(nodes)
			}

			if spec.State.NeedsSync() {
				numTasks++
				client := clientMaker(spec.Affinity)
				state, err := client.Task(ctx, Task{Kind: IngestionTask, IngestSpec: spec, Sync: true})
				if err != nil {
					log.Warningf("ingest: task to %s: %s", spec.Affinity, err)
					continue
				}
				switch state {
				case TaskSucceeded:
					spec.State = meta.SpecReady
				case TaskFailed, TaskQueue:
					log.Warningf("ingest: task state %s at node %s for spec %s", state, spec.Affinity, spec.ID)
				}
			}
		}
	}
	return numTasks, len(nodes)
}

// Execute fans plan out to every node holding a spec for plan.Table whose
// time window overlaps plan's, merges the replies into one BatchRows, and
// truncates to plan.Limit. A query never visits a node the coordinator
// doesn't believe holds a relevant spec, per spec.md §2's "queries consult
// BlockManager to prune and fan out" data flow; nodes are queried
// concurrently, matching Expire's fan-out shape, since one node's reply is
// independent of every other's. Unlike Refresh/Expire/Assign, Execute only
// holds mu long enough to snapshot the relevant registry: a query is
// latency-sensitive (it runs at HighPriority on the worker side) and must
// never sit blocked behind a slow control-loop cycle, or vice versa.
func (r *SpecRepository) Execute(ctx context.Context, plan QueryPlan, clientMaker ClientMaker) (BatchRows, error) {
	r.mu.Lock()
	cfg, ok := r.tableConfig(plan.Table)
	reg, regOK := r.registries[plan.Table]
	var specs []*meta.Spec
	if regOK {
		specs = reg.All()
	}
	r.mu.Unlock()
	if !ok || !regOK {
		return BatchRows{}, fmt.Errorf("ingest: unknown table %q", plan.Table)
	}

	nodes := make(map[string]struct{})
	for _, spec := range specs {
		if spec.Affinity == meta.NoAffinity {
			continue
		}
		if plan.TimeStart != 0 || plan.TimeEnd != 0 {
			end := plan.TimeEnd
			if end == 0 {
				end = spec.TimeEnd
			}
			if !(spec.TimeStart <= end && plan.TimeStart <= spec.TimeEnd) {
				continue
			}
		}
		nodes[spec.Affinity] = struct{}{}
	}

	fields := plan.Fields
	if len(fields) == 0 {
		fields = cfg.Fields
	}
	merged, err := block.New(cfg.Schema, fields)
	if err != nil {
		return BatchRows{}, err
	}

	var mu sync.Mutex
	var stats QueryStats
	g, gctx := errgroup.WithContext(ctx)
	for addr := range nodes {
		addr := addr
		g.Go(func() error {
			client := clientMaker(addr)
			rows, err := client.Execute(gctx, plan)
			if err != nil {
				log.Warningf("ingest: query %s to %s: %s", plan.UUID, addr, err)
				return nil
			}
			fb, err := block.Deserialize(cfg.Schema, fields, rows.Data)
			if err != nil {
				log.Warningf("ingest: decode query reply from %s: %s", addr, err)
				return nil
			}

			mu.Lock()
			defer mu.Unlock()
			stats.BlocksScan += rows.Stats.BlocksScan
			stats.RowsScan += rows.Stats.RowsScan
			for i := 0; uint64(i) < fb.Rows(); i++ {
				if plan.Limit > 0 && int(stats.RowsRet) >= plan.Limit {
					break
				}
				if _, err := merged.Add(fb.Row(i)); err != nil {
					continue
				}
				stats.RowsRet++
			}
			return nil
		})
	}
	g.Wait() // errors are logged per-node above; a failed node just contributes no rows

	data := make([]byte, merged.PrepareSerde())
	if _, err := merged.Serialize(data); err != nil {
		return BatchRows{}, err
	}
	return BatchRows{Schema: cfg.Schema, Type: BatchFlat, Stats: stats, Data: data}, nil
}

func (r *SpecRepository) tableConfig(table string) (TableConfig, bool) {
	for _, c := range r.configs {
		if c.Name == table {
			return c, true
		}
	}
	return TableConfig{}, false
}

// Lost resets every spec currently assigned to addr back to NEW with no
// affinity, so the next Assign reassigns them. Returns the count reset.
func (r *SpecRepository) Lost(addr string) int {
	count := 0
	for _, reg := range r.registries {
		for _, spec := range reg.All() {
			if spec.Affinity == addr {
				resetSpec(spec)
				count++
			}
		}
	}
	return count
}

func resetSpec(spec *meta.Spec) {
	spec.Affinity = meta.NoAffinity
	spec.State = meta.SpecNew
}

// RegistrySnapshot exposes a table's tracked specs for diagnostics/tests.
func (r *SpecRepository) RegistrySnapshot(table string) []*meta.Spec {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.registries[table]
	if !ok {
		return nil
	}
	return reg.All()
}
