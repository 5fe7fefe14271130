// Copyright (c) 2015 Western Digital Corporation or its affiliates.  All rights reserved.
// SPDX-License-Identifier: MIT

package execution

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/caoash/nebula/internal/storageuri"
)

func newLocalRegistry() *storageuri.Registry {
	return storageuri.NewRegistry(map[storageuri.Scheme]storageuri.FileSystem{
		storageuri.File: storageuri.LocalFileSystem{},
	})
}

func writeLocalFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "block.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestStorageBlockLoaderReadsFile(t *testing.T) {
	path := writeLocalFile(t, "hello")
	loader := NewStorageBlockLoader(newLocalRegistry(), 0)

	rc, err := loader.Load(context.Background(), path)
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))
}

func TestStorageBlockLoaderUnknownScheme(t *testing.T) {
	loader := NewStorageBlockLoader(newLocalRegistry(), 0)
	_, err := loader.Load(context.Background(), "s3://bucket/x")
	require.Error(t, err)
}

func TestStorageBlockLoaderRateLimitsLoad(t *testing.T) {
	path := writeLocalFile(t, "x")
	limited := NewStorageBlockLoader(newLocalRegistry(), 1000)
	require.NotNil(t, limited.limiter)

	rc, err := limited.Load(context.Background(), path)
	require.NoError(t, err)
	rc.Close()

	unlimited := NewStorageBlockLoader(newLocalRegistry(), 0)
	require.Nil(t, unlimited.limiter)
}
