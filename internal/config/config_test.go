// Copyright (c) 2015 Western Digital Corporation or its affiliates.  All rights reserved.
// SPDX-License-Identifier: MIT

package config

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/caoash/nebula/internal/block"
)

const sampleYAML = `
version: "3"
nodes:
  - 10.0.0.1:9090
  - 10.0.0.2:9090
intervals:
  refresh: 30s
  expire: 60s
  assign: 15s
workers: 8
tables:
  - name: events
    pattern: "s3://bucket/events/{date}/{hour}"
    fields: [user_id, event_type, count]
    retention_seconds: 604800
    schema:
      - name: user_id
        kind: int64
      - name: event_type
        kind: string
      - name: count
        kind: int32
      - name: tags
        kind: list
        item: string
`

func writeTemp(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "nebula.yaml")
	require.NoError(t, ioutil.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestLoadParsesSample(t *testing.T) {
	path := writeTemp(t, sampleYAML)
	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, []string{"10.0.0.1:9090", "10.0.0.2:9090"}, cfg.Nodes)
	require.Equal(t, 8, cfg.Workers)
	require.Len(t, cfg.Tables, 1)
	require.Equal(t, "events", cfg.Tables[0].Name)
}

func TestLoadRejectsMissingNodes(t *testing.T) {
	path := writeTemp(t, `
tables:
  - name: events
    pattern: "s3://bucket/events/{date}"
    fields: [a]
    retention_seconds: 1
    schema:
      - name: a
        kind: int64
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/nebula.yaml")
	require.Error(t, err)
}

func TestTableConfigSchema(t *testing.T) {
	path := writeTemp(t, sampleYAML)
	cfg, err := Load(path)
	require.NoError(t, err)

	schema, err := cfg.Tables[0].Schema()
	require.NoError(t, err)
	require.Equal(t, 4, schema.Len())

	idx, ok := schema.IndexOf("user_id")
	require.True(t, ok)
	require.Equal(t, block.Int64, schema.Field(idx).Kind)

	idx, ok = schema.IndexOf("tags")
	require.True(t, ok)
	require.Equal(t, block.List, schema.Field(idx).Kind)
	require.Equal(t, block.String, schema.Field(idx).ItemKind)
}

func TestIngestTableConfigs(t *testing.T) {
	path := writeTemp(t, sampleYAML)
	cfg, err := Load(path)
	require.NoError(t, err)

	tcs, err := cfg.IngestTableConfigs()
	require.NoError(t, err)
	require.Len(t, tcs, 1)
	require.Equal(t, "events", tcs[0].Name)
	require.Equal(t, uint64(604800), tcs[0].RetentionSeconds)
	require.Equal(t, []string{"user_id", "event_type", "count"}, tcs[0].Fields)
}

func TestSchemaRejectsUnprojectedField(t *testing.T) {
	path := writeTemp(t, `
nodes: ["10.0.0.1:9090"]
intervals:
  refresh: 30s
  expire: 60s
  assign: 15s
tables:
  - name: bad
    pattern: "s3://bucket/{date}"
    fields: [a, missing]
    retention_seconds: 1
    schema:
      - name: a
        kind: int64
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	_, err = cfg.Tables[0].Schema()
	require.Error(t, err)
}

func TestSchemaRejectsUnknownKind(t *testing.T) {
	path := writeTemp(t, `
nodes: ["10.0.0.1:9090"]
intervals:
  refresh: 30s
  expire: 60s
  assign: 15s
tables:
  - name: bad
    pattern: "s3://bucket/{date}"
    fields: [a]
    retention_seconds: 1
    schema:
      - name: a
        kind: nonsense
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	_, err = cfg.Tables[0].Schema()
	require.Error(t, err)
}
