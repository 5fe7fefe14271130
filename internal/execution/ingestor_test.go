// Copyright (c) 2015 Western Digital Corporation or its affiliates.  All rights reserved.
// SPDX-License-Identifier: MIT

package execution

import (
	"context"
	"io"
	"io/ioutil"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/caoash/nebula/internal/block"
	"github.com/caoash/nebula/internal/meta"
)

type fakeLoader struct {
	body string
	err  error
}

func (l fakeLoader) Load(ctx context.Context, locator string) (io.ReadCloser, error) {
	if l.err != nil {
		return nil, l.err
	}
	return ioutil.NopCloser(strings.NewReader(l.body)), nil
}

func testSchema() *block.Schema {
	return block.NewSchema([]block.Field{
		{Name: "user_id", Kind: block.Int64},
		{Name: "event_type", Kind: block.String},
		{Name: "count", Kind: block.Int32},
		{Name: "tags", Kind: block.List, ItemKind: block.String},
	})
}

func TestIngestorBuildsBlockFromJSONLines(t *testing.T) {
	body := `{"user_id": 1, "event_type": "click", "count": 3, "tags": ["a", "b"]}
{"user_id": 2, "event_type": "view", "count": 1}
`
	bm := NewBlockManager()
	in := NewIngestor(fakeLoader{body: body}, bm)

	spec := &meta.Spec{ID: "spec1", Table: "events", DomainLocator: "s3://bucket/events/1", TimeStart: 1, TimeEnd: 2}
	rows, err := in.Ingest(context.Background(), spec, testSchema(), []string{"user_id", "event_type", "count", "tags"})
	require.NoError(t, err)
	require.Equal(t, 2, rows)

	blocks := bm.Query("events", nil)
	require.Len(t, blocks, 1)
	require.Equal(t, uint64(2), blocks[0].Rows)
	require.Contains(t, blocks[0].Stats, "user_id")
	require.Equal(t, "1", blocks[0].Stats["user_id"].Min)
	require.Equal(t, "2", blocks[0].Stats["user_id"].Max)
}

func TestIngestorEmptyResultRecordsEmptySpec(t *testing.T) {
	bm := NewBlockManager()
	in := NewIngestor(fakeLoader{body: ""}, bm)

	spec := &meta.Spec{ID: "spec-empty", Table: "events", DomainLocator: "s3://bucket/events/empty"}
	rows, err := in.Ingest(context.Background(), spec, testSchema(), []string{"user_id"})
	require.NoError(t, err)
	require.Equal(t, 0, rows)

	require.True(t, bm.HasSpec("events", "spec-empty", Self))
	require.Empty(t, bm.Query("events", nil))
}

func TestIngestorSkipsMalformedRowsWithoutFailing(t *testing.T) {
	body := `not json
{"user_id": 5, "event_type": "x", "count": 1}
`
	bm := NewBlockManager()
	in := NewIngestor(fakeLoader{body: body}, bm)

	spec := &meta.Spec{ID: "spec2", Table: "events", DomainLocator: "s3://bucket/x"}
	rows, err := in.Ingest(context.Background(), spec, testSchema(), []string{"user_id", "event_type", "count"})
	require.NoError(t, err)
	require.Equal(t, 1, rows)
}

func TestIngestorLoaderErrorIsIOError(t *testing.T) {
	bm := NewBlockManager()
	in := NewIngestor(fakeLoader{err: io.ErrUnexpectedEOF}, bm)

	spec := &meta.Spec{ID: "spec3", Table: "events", DomainLocator: "s3://bucket/x"}
	_, err := in.Ingest(context.Background(), spec, testSchema(), []string{"user_id"})
	require.Error(t, err)
}
