// Copyright (c) 2015 Western Digital Corporation or its affiliates.  All rights reserved.
// SPDX-License-Identifier: MIT

package meta

import (
	"sort"
	"sync"
	"time"
)

// Node describes one worker as known to the coordinator. When two updates
// for the same address race, the higher Generation (and, within a
// generation, the more recent LastPoll) wins, resolving the "most recently
// polled node is authoritative" design note. Generation is whatever the
// caller supplies: ClusterInfo never increments it, and NewClusterInfo
// starts every node at zero.
type Node struct {
	Addr       string
	Active     bool
	MemUsed    uint64
	MemTotal   uint64
	LastPoll   time.Time
	Generation uint64
}

// NewerThan reports whether n should supersede other as the authoritative
// record for the same address.
func (n Node) NewerThan(other Node) bool {
	if n.Generation != other.Generation {
		return n.Generation > other.Generation
	}
	return n.LastPoll.After(other.LastPoll)
}

// ClusterInfo is the coordinator's view of cluster membership, sourced from
// the YAML configuration at startup and updated as nodes are polled, lost,
// or rejoin. The configuration file remains the source of truth for which
// addresses may participate; ClusterInfo tracks their live state.
type ClusterInfo struct {
	mu    sync.RWMutex
	nodes map[string]Node
}

// NewClusterInfo creates a ClusterInfo seeded with the given node addresses,
// all initially active with a zero generation.
func NewClusterInfo(addrs []string) *ClusterInfo {
	ci := &ClusterInfo{nodes: make(map[string]Node, len(addrs))}
	for _, addr := range addrs {
		ci.nodes[addr] = Node{Addr: addr, Active: true}
	}
	return ci
}

// Nodes returns a snapshot of every known node, active or not.
func (ci *ClusterInfo) Nodes() []Node {
	ci.mu.RLock()
	defer ci.mu.RUnlock()
	out := make([]Node, 0, len(ci.nodes))
	for _, n := range ci.nodes {
		out = append(out, n)
	}
	return out
}

// ActiveNodes returns a snapshot of active nodes sorted ascending by
// reported memory usage, the order SpecRepository.Assign round-robins over.
func (ci *ClusterInfo) ActiveNodes() []Node {
	ci.mu.RLock()
	defer ci.mu.RUnlock()
	out := make([]Node, 0, len(ci.nodes))
	for _, n := range ci.nodes {
		if n.Active {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MemUsed < out[j].MemUsed })
	return out
}

// Update merges a freshly-polled Node record in, applying the
// most-recently-polled-wins precedence via Node.NewerThan.
func (ci *ClusterInfo) Update(n Node) {
	ci.mu.Lock()
	defer ci.mu.Unlock()
	if existing, ok := ci.nodes[n.Addr]; ok && !n.NewerThan(existing) {
		return
	}
	ci.nodes[n.Addr] = n
}

// MarkLost flags addr inactive, leaving its last-known stats in place for
// diagnostics.
func (ci *ClusterInfo) MarkLost(addr string) {
	ci.mu.Lock()
	defer ci.mu.Unlock()
	n, ok := ci.nodes[addr]
	if !ok {
		return
	}
	n.Active = false
	ci.nodes[addr] = n
}

// Remove drops addr from the cluster entirely.
func (ci *ClusterInfo) Remove(addr string) {
	ci.mu.Lock()
	defer ci.mu.Unlock()
	delete(ci.nodes, addr)
}
