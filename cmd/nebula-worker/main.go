// Copyright (c) 2015 Western Digital Corporation or its affiliates.  All rights reserved.
// SPDX-License-Identifier: MIT

// nebula-worker is the worker-side process: it answers the coordinator's
// Echo/Echos/Poll/Task/Query RPCs against its local BlockManager, per
// spec.md §5.
package main

import (
	"flag"
	"net/http"
	"os"
	"runtime"

	log "github.com/golang/glog"

	"github.com/caoash/nebula/internal/config"
	"github.com/caoash/nebula/internal/execution"
	"github.com/caoash/nebula/internal/pool"
	"github.com/caoash/nebula/internal/rpcnode"
	"github.com/caoash/nebula/internal/storageuri"
)

var (
	addr       = flag.String("addr", ":4321", "address to listen on for worker RPCs")
	ingestRate = flag.Float64("ingestRate", 0, "max BlockLoader.Load calls per second, 0 for unlimited")
)

func init() {
	flag.Parse()
}

func main() {
	cfgPath := os.Getenv("NCONF")
	if cfgPath == "" {
		log.Fatalf("NCONF is not set")
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("loading config: %s", err)
	}

	tableConfigs, err := cfg.IngestTableConfigs()
	if err != nil {
		log.Fatalf("resolving table schemas: %s", err)
	}
	tables := make(map[string]execution.TableInfo, len(tableConfigs))
	for _, tc := range tableConfigs {
		tables[tc.Name] = execution.TableInfo{Schema: tc.Schema, Fields: tc.Fields}
	}

	// Only the File scheme is bound unconditionally: HTTPFileSystem and
	// S3FileSystem are each rooted at one base/bucket (see DESIGN.md), so
	// wiring them here would silently mis-serve any locator pointing at a
	// different host or bucket than the one baked in at startup.
	registry := storageuri.NewRegistry(map[storageuri.Scheme]storageuri.FileSystem{
		storageuri.File: storageuri.LocalFileSystem{},
	})

	bm := execution.NewBlockManager()
	loader := execution.NewStorageBlockLoader(registry, float32(*ingestRate))
	ingestor := execution.NewIngestor(loader, bm)
	worker := execution.NewWorker(bm, ingestor, tables)

	numWorkers := cfg.Workers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	workers := pool.New(numWorkers)

	handler := rpcnode.NewNodeSrvHandler(bm, worker.Tasks(), worker.Queries(), workers)
	if err := handler.Register(); err != nil {
		log.Fatalf("registering RPC handler: %s", err)
	}

	log.Infof("nebula-worker listening on %s", *addr)
	err = http.ListenAndServe(*addr, nil) // blocks forever
	log.Fatalf("http listener returned error: %s", err)
}
