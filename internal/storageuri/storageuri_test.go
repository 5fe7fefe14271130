// Copyright (c) 2015 Western Digital Corporation or its affiliates.  All rights reserved.
// SPDX-License-Identifier: MIT

package storageuri

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDefaultsToFile(t *testing.T) {
	loc, err := Parse("/var/data/events/2026-08-02")
	require.NoError(t, err)
	require.Equal(t, File, loc.Scheme)
	require.Equal(t, "/var/data/events/2026-08-02", loc.Path)
}

func TestParseSchemes(t *testing.T) {
	cases := []struct {
		raw    string
		scheme Scheme
		host   string
		path   string
	}{
		{"s3://bucket/events/2026-08-02/00", S3, "bucket", "/events/2026-08-02/00"},
		{"gs://bucket/events", GS, "bucket", "/events"},
		{"abfs://container/events", ABFS, "container", "/events"},
		{"http://host.example/events", HTTP, "host.example", "/events"},
		{"file:///var/data/events", File, "", "/var/data/events"},
	}
	for _, c := range cases {
		loc, err := Parse(c.raw)
		require.NoError(t, err, c.raw)
		require.Equal(t, c.scheme, loc.Scheme, c.raw)
		require.Equal(t, c.host, loc.Host, c.raw)
		require.Equal(t, c.path, loc.Path, c.raw)
	}
}

func TestParseUnsupportedScheme(t *testing.T) {
	_, err := Parse("ftp://host/path")
	require.Error(t, err)
}

func TestRegistryFor(t *testing.T) {
	reg := NewRegistry(map[Scheme]FileSystem{File: LocalFileSystem{}})
	loc, err := Parse("/tmp/x")
	require.NoError(t, err)
	fs, ok := reg.For(loc)
	require.True(t, ok)
	require.IsType(t, LocalFileSystem{}, fs)

	loc2, err := Parse("s3://bucket/x")
	require.NoError(t, err)
	_, ok = reg.For(loc2)
	require.False(t, ok)
}
