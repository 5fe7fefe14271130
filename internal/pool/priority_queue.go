// Copyright (c) 2015 Western Digital Corporation or its affiliates.  All rights reserved.
// SPDX-License-Identifier: MIT

package pool

import (
	"container/heap"
	"errors"
	"sync"
)

// ErrQueueFull is returned by TryPush when the queue has reached its
// configured capacity.
var ErrQueueFull = errors.New("pool: queue is full")

// PQAble orders two queue elements: Less reports whether the receiver
// should run before peer.
type PQAble interface {
	Less(peer interface{}) bool
}

// priorityQueue is a blocking, bounded (optionally unbounded) priority
// queue built on container/heap. Pop blocks until an element is available;
// the highest-priority element (per PQAble.Less) is returned first.
type priorityQueue struct {
	lock     sync.Mutex
	notEmpty sync.Cond
	data     pqHeap
	max      int
}

// newPriorityQueue creates a queue with capacity max; max <= 0 means
// unbounded.
func newPriorityQueue(max int) *priorityQueue {
	q := &priorityQueue{max: max}
	q.notEmpty.L = &q.lock
	return q
}

// TryPush pushes item, or returns ErrQueueFull if the queue is at capacity.
func (pq *priorityQueue) TryPush(item PQAble) error {
	pq.lock.Lock()
	defer pq.lock.Unlock()

	if pq.max > 0 && pq.data.Len() >= pq.max {
		return ErrQueueFull
	}
	heap.Push(&pq.data, item)
	if pq.data.Len() == 1 {
		pq.notEmpty.Broadcast()
	}
	return nil
}

// Len returns the current queue length.
func (pq *priorityQueue) Len() int {
	pq.lock.Lock()
	defer pq.lock.Unlock()
	return pq.data.Len()
}

// Pop blocks until an element is available, then removes and returns the
// highest-priority one.
func (pq *priorityQueue) Pop() PQAble {
	pq.lock.Lock()
	for pq.data.Len() == 0 {
		pq.notEmpty.Wait()
	}
	defer pq.lock.Unlock()
	return heap.Pop(&pq.data).(PQAble)
}

type pqHeap []PQAble

func (q pqHeap) Len() int            { return len(q) }
func (q pqHeap) Less(i, j int) bool  { return q[i].Less(q[j]) }
func (q pqHeap) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *pqHeap) Push(x interface{}) { *q = append(*q, x.(PQAble)) }
func (q *pqHeap) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[0 : n-1]
	return item
}
