// Copyright (c) 2015 Western Digital Corporation or its affiliates.  All rights reserved.
// SPDX-License-Identifier: MIT

package pool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWorkerPoolRunsAllJobs(t *testing.T) {
	p := New(4)
	var n int64
	var wg sync.WaitGroup
	wg.Add(100)
	for i := 0; i < 100; i++ {
		pri := LowPriority
		if i%2 == 0 {
			pri = HighPriority
		}
		p.Submit(pri, func() {
			atomic.AddInt64(&n, 1)
			wg.Done()
		})
	}
	wg.Wait()
	require.Equal(t, int64(100), atomic.LoadInt64(&n))
	p.Stop()
}

func TestWorkerPoolPrefersHighPriority(t *testing.T) {
	// Single worker so ordering is deterministic: block it until every job
	// is queued, then release and observe the run order.
	p := New(1)
	release := make(chan struct{})
	var order []string
	var mu sync.Mutex
	var wg sync.WaitGroup

	wg.Add(1)
	p.Submit(HighPriority, func() {
		<-release
		wg.Done()
	})
	for p.Len() > 0 {
		time.Sleep(time.Millisecond)
	}

	wg.Add(2)
	p.Submit(LowPriority, func() {
		mu.Lock()
		order = append(order, "low")
		mu.Unlock()
		wg.Done()
	})
	p.Submit(HighPriority, func() {
		mu.Lock()
		order = append(order, "high")
		mu.Unlock()
		wg.Done()
	})
	for p.Len() < 2 {
		time.Sleep(time.Millisecond)
	}
	close(release)
	wg.Wait()

	require.Equal(t, []string{"high", "low"}, order)
	p.Stop()
}
